package rest

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/emersion/go-smtp"
	"github.com/inbucket/mailroute/pkg/config"
	"github.com/inbucket/mailroute/pkg/extension/event"
	"github.com/inbucket/mailroute/pkg/rest/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeJSON(t *testing.T, body []byte, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(body, v), "body: %s", body)
}

func TestRouteMessageForwards(t *testing.T) {
	ts := setupWebServer(config.Routing{
		Users:       config.String("user1"),
		Destination: config.String("dest@email.com"),
	}, nil)

	w, err := testRestPost("/api/v1/messages?from=sender@example.com&to=user1@domain.com", testMessage)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, w.Code, "logs: %s", ts.logs)

	var got model.JSONDecisionV1
	decodeJSON(t, w.Body.Bytes(), &got)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "forward", got.Action)
	assert.Equal(t, "accept", got.Phase)
	assert.Equal(t, []string{"dest@email.com"}, got.Addresses)
	assert.Empty(t, got.Reason)

	msgs := ts.smarthost.Messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "X-Mailroute-Forwarding: PASS")
	assert.Contains(t, msgs[0], "Subject: Hello")
}

func TestRouteMessageRejects(t *testing.T) {
	ts := setupWebServer(config.Routing{
		Users:           config.String("user1"),
		RejectTreatment: config.String(": Unknown mailbox"),
	}, nil)

	w, err := testRestPost("/api/v1/messages?from=sender@example.com&to=stranger@domain.com", testMessage)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, w.Code)

	var got model.JSONDecisionV1
	decodeJSON(t, w.Body.Bytes(), &got)
	assert.Equal(t, event.ActionReject, got.Action)
	assert.Equal(t, "reject", got.Phase)
	assert.Equal(t, "stranger: Unknown mailbox", got.Reason)
	assert.Empty(t, got.Addresses)
	assert.Empty(t, ts.smarthost.Commands())
}

func TestRouteMessageRejectForwards(t *testing.T) {
	ts := setupWebServer(config.Routing{
		Users:           config.String("user1"),
		RejectTreatment: config.String("spam@email.com"),
	}, nil)

	w, err := testRestPost("/api/v1/messages?to=stranger@domain.com", testMessage)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, w.Code)

	var got model.JSONDecisionV1
	decodeJSON(t, w.Body.Bytes(), &got)
	assert.Equal(t, "forward", got.Action)
	assert.Equal(t, "reject-forward", got.Phase)
	assert.Equal(t, []string{"spam@email.com"}, got.Addresses)

	msgs := ts.smarthost.Messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "X-Mailroute-Forwarding: FAIL")
}

func TestRouteMessageUnverifiedFallsThroughToReject(t *testing.T) {
	ts := setupWebServer(config.Routing{
		Users:       config.String("user1"),
		Destination: config.String("dest@email.com"),
	}, nil, "other@email.com")

	w, err := testRestPost("/api/v1/messages?to=user1@domain.com", testMessage)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Retry-After"))

	var got model.JSONDecisionV1
	decodeJSON(t, w.Body.Bytes(), &got)
	assert.Equal(t, event.ActionReject, got.Action)
	assert.Equal(t, "Invalid recipient", got.Reason)
	assert.Empty(t, ts.smarthost.Commands())
}

func TestRouteMessageRecoverableIsTemporary(t *testing.T) {
	ts := setupWebServer(config.Routing{
		Users:       config.String("user1"),
		Destination: config.String("dest@email.com"),
	}, nil)
	ts.smarthost.RcptError("dest@email.com", &smtp.SMTPError{
		Code:         451,
		EnhancedCode: smtp.EnhancedCode{4, 3, 0},
		Message:      "Mailbox busy",
	})

	w, err := testRestPost("/api/v1/messages?to=user1@domain.com", testMessage)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	var got model.JSONErrorV1
	decodeJSON(t, w.Body.Bytes(), &got)
	assert.Contains(t, got.Error, "temporary delivery failure")
	assert.True(t, got.Temporary)
	assert.Empty(t, ts.smarthost.Messages())
}

func TestRouteMessageConfigError(t *testing.T) {
	setupWebServer(config.Routing{
		CustomHeader: config.String("Not A Header"),
	}, nil)

	w, err := testRestPost("/api/v1/messages?to=user1@domain.com", testMessage)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, w.Header().Get("Retry-After"))

	var got model.JSONErrorV1
	decodeJSON(t, w.Body.Bytes(), &got)
	assert.False(t, got.Temporary)
}

func TestRouteMessageBadRequests(t *testing.T) {
	setupWebServer(config.Routing{Users: config.String("*")}, nil)

	testCases := []struct {
		name string
		url  string
		body string
		want int
	}{
		{"missing recipient", "/api/v1/messages?from=a@b.com", testMessage, http.StatusBadRequest},
		{"malformed header", "/api/v1/messages?to=a@b.com", "no colon here\r\n\r\n", http.StatusBadRequest},
		{"too large", "/api/v1/messages?to=a@b.com", testMessage + string(make([]byte, 2048)), http.StatusRequestEntityTooLarge},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w, err := testRestPost(tc.url, tc.body)
			require.NoError(t, err)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestExplain(t *testing.T) {
	setupWebServer(config.Routing{
		Users:           config.String("user1"),
		Destination:     config.String("a@email.com:b@email.com, nope"),
		RejectTreatment: config.String("spam@email.com"),
	}, map[string]string{"user2": "user2@elsewhere.com"}, "a@email.com", "spam@email.com")

	t.Run("admitted user", func(t *testing.T) {
		w, err := testRestGet("/api/v1/explain/user1+news@Domain.com")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, w.Code)

		var got model.JSONPlanV1
		decodeJSON(t, w.Body.Bytes(), &got)
		assert.True(t, got.Parsed)
		assert.Equal(t, "user1", got.User)
		assert.Equal(t, "news", got.Subaddress)
		assert.Equal(t, "domain.com", got.Domain)
		assert.True(t, got.Admitted)
		assert.False(t, got.Overridden)
		require.NotNil(t, got.Accept)
		assert.Equal(t, [][]string{{"a@email.com", "b@email.com"}}, got.Accept.Groups)
		assert.Equal(t, []string{"nope"}, got.Accept.Invalid)
		assert.Equal(t, []string{"b@email.com"}, got.Accept.Unverified)
		require.NotNil(t, got.RejectForward)
		assert.Equal(t, [][]string{{"spam@email.com"}}, got.RejectForward.Groups)
	})

	t.Run("stored override", func(t *testing.T) {
		w, err := testRestGet("/api/v1/explain/user2@domain.com")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, w.Code)

		var got model.JSONPlanV1
		decodeJSON(t, w.Body.Bytes(), &got)
		assert.True(t, got.Overridden)
		assert.True(t, got.Admitted)
		assert.Equal(t, [][]string{{"user2@elsewhere.com"}}, got.Accept.Groups)
	})

	t.Run("unparsable", func(t *testing.T) {
		w, err := testRestGet("/api/v1/explain/not-an-address")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, w.Code)

		var got model.JSONPlanV1
		decodeJSON(t, w.Body.Bytes(), &got)
		assert.False(t, got.Parsed)
		assert.False(t, got.Admitted)
		assert.Nil(t, got.Accept)
		assert.Equal(t, "Invalid recipient", got.RejectReason)
	})
}

func TestStatus(t *testing.T) {
	ts := setupWebServer(config.Routing{}, nil)
	ts.extHost.Events.AfterMessageForwarded.AddListener("audit", func(event.RouteDecision) {})
	config.Version = "1.2.3"

	w, err := testRestGet("/api/v1/status")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, w.Code)

	var got model.JSONStatusV1
	decodeJSON(t, w.Body.Bytes(), &got)
	assert.Equal(t, "1.2.3", got.Version)
	assert.Equal(t, "memory", got.StoreBackend)
	assert.Equal(t, "smarthost.test:25", got.RelayAddr)
	assert.Contains(t, got.Listeners["after.message_forwarded"], "audit")
}

func TestMetrics(t *testing.T) {
	setupWebServer(config.Routing{Users: config.String("*")}, nil)
	_, err := testRestPost("/api/v1/messages?to=someone@domain.com", testMessage)
	require.NoError(t, err)

	w, err := testRestGet("/metrics")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "mailroute_decisions_total")
}
