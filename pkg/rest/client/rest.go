package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/inbucket/mailroute/pkg/rest/model"
)

// httpClient allows http.Client to be mocked for tests
type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Generic REST restClient
type restClient struct {
	client  httpClient
	baseURL *url.URL
}

// APIError is a non-200 response from the server.
type APIError struct {
	StatusCode int
	Message    string
	// Temporary is set when the server asked for the request to be retried later.
	Temporary bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("unexpected HTTP response status %v: %s", e.StatusCode, e.Message)
}

// do performs an HTTP request with this client and returns the response.
func (c *restClient) do(
	ctx context.Context,
	method, uri string,
	query url.Values,
	body []byte,
) (*http.Response, error) {
	url := c.baseURL.JoinPath(uri)
	if len(query) > 0 {
		url.RawQuery = query.Encode()
	}
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url.String(), r)
	if err != nil {
		return nil, fmt.Errorf("%s for %q: %v", method, url, err)
	}
	req.Header.Set("Accept", "application/json")

	return c.client.Do(req)
}

// doJSON performs an HTTP request with this client and marshalls the JSON response into v.
func (c *restClient) doJSON(
	ctx context.Context,
	method, uri string,
	query url.Values,
	body []byte,
	v any,
) error {
	resp, err := c.do(ctx, method, uri, query, body)
	if err != nil {
		return err
	}

	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode == http.StatusOK {
		if v == nil {
			return nil
		}
		// Decode response body
		return json.NewDecoder(resp.Body).Decode(v)
	}

	apiErr := &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
	var jerr model.JSONErrorV1
	if err := json.NewDecoder(resp.Body).Decode(&jerr); err == nil && jerr.Error != "" {
		apiErr.Message = jerr.Error
		apiErr.Temporary = jerr.Temporary
	}
	return apiErr
}
