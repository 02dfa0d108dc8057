package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientV1Route(t *testing.T) {
	c, err := New(baseURLStr)
	require.NoError(t, err)
	mth := &mockHTTPClient{
		body: `{"id": "abc", "action": "forward", "phase": "accept", "addresses": ["a@b.com"]}`,
	}
	c.client = mth

	// Method under test
	d, err := c.Route(context.Background(), "sender@example.com", "user1@domain.com",
		[]byte("Subject: hi\r\n\r\nbody\r\n"))
	require.NoError(t, err)

	assert.Equal(t, "POST", mth.req.Method)
	assert.Equal(t,
		baseURLStr+"/api/v1/messages?from=sender%40example.com&to=user1%40domain.com",
		mth.req.URL.String())
	assert.Equal(t, []byte("Subject: hi\r\n\r\nbody\r\n"), mth.ReqBody())
	assert.Equal(t, "abc", d.ID)
	assert.Equal(t, []string{"a@b.com"}, d.Addresses)
	assert.True(t, d.Forwarded())
}

func TestClientV1RouteTemporaryFailure(t *testing.T) {
	c, err := New(baseURLStr)
	require.NoError(t, err)
	c.client = &mockHTTPClient{
		statusCode: 503,
		body:       `{"error": "temporary delivery failure: 451 busy", "temporary": true}`,
	}

	d, err := c.Route(context.Background(), "", "user1@domain.com", nil)
	assert.Nil(t, d)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.Temporary)
	assert.Equal(t, "temporary delivery failure: 451 busy", apiErr.Message)
}

func TestClientV1Explain(t *testing.T) {
	c, err := New(baseURLStr)
	require.NoError(t, err)
	mth := &mockHTTPClient{
		body: `{"address": "user1+news@domain.com", "parsed": true, "admitted": true,
			"accept": {"groups": [["a@b.com"]]}, "reject_reason": "Invalid recipient"}`,
	}
	c.client = mth

	// Method under test
	plan, err := c.Explain(context.Background(), "user1+news@domain.com")
	require.NoError(t, err)

	assert.Equal(t, "GET", mth.req.Method)
	assert.Equal(t, baseURLStr+"/api/v1/explain/user1+news@domain.com", mth.req.URL.String())
	assert.True(t, plan.Admitted)
	assert.Equal(t, [][]string{{"a@b.com"}}, plan.Accept.Groups)
	assert.Nil(t, plan.RejectForward)
}

func TestClientV1Status(t *testing.T) {
	c, err := New(baseURLStr)
	require.NoError(t, err)
	mth := &mockHTTPClient{
		body: `{"version": "1.0.0", "listeners": {"after.message_forwarded": ["lua"]}}`,
	}
	c.client = mth

	// Method under test
	status, err := c.Status(context.Background())
	require.NoError(t, err)

	assert.Equal(t, baseURLStr+"/api/v1/status", mth.req.URL.String())
	assert.Equal(t, "1.0.0", status.Version)
	assert.Equal(t, []string{"lua"}, status.Listeners["after.message_forwarded"])
}
