// Package client provides a basic REST client for mailroute
package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/inbucket/mailroute/pkg/rest/model"
)

// Client accesses the mailroute REST API v1
type Client struct {
	restClient
}

// New creates a new v1 REST API client given the base URL of a mailroute server, ex:
// "http://localhost:9025"
func New(baseURL string, opts ...func(*ClientOptions)) (*Client, error) {
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	options := getDefaultClientOptions()
	for _, opt := range opts {
		opt(options)
	}
	c := &Client{
		restClient{
			client: &http.Client{
				Transport: options.transport,
				Timeout:   options.timeout,
			},
			baseURL: parsedURL,
		},
	}
	return c, nil
}

// Route submits the raw message source for routing from sender to recipient, and returns the
// decision.  An *APIError with Temporary set means the message should be submitted again later.
func (c *Client) Route(ctx context.Context, from, to string, source []byte) (*Decision, error) {
	query := url.Values{}
	query.Set("from", from)
	query.Set("to", to)
	d := &Decision{}
	if err := c.doJSON(ctx, "POST", "/api/v1/messages", query, source, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Explain returns how mail to address would be routed.
func (c *Client) Explain(ctx context.Context, address string) (*model.JSONPlanV1, error) {
	plan := &model.JSONPlanV1{}
	uri := "/api/v1/explain/" + url.PathEscape(address)
	if err := c.doJSON(ctx, "GET", uri, nil, nil, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// Status returns build and wiring information of the server.
func (c *Client) Status(ctx context.Context) (*model.JSONStatusV1, error) {
	status := &model.JSONStatusV1{}
	if err := c.doJSON(ctx, "GET", "/api/v1/status", nil, nil, status); err != nil {
		return nil, err
	}
	return status, nil
}

// Decision is the outcome of routing a message.
type Decision struct {
	model.JSONDecisionV1
}

// Forwarded returns true if the message was delivered to at least one destination.
func (d *Decision) Forwarded() bool {
	return d.Action == "forward"
}
