package resolve_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/inbucket/mailroute/pkg/config"
	"github.com/inbucket/mailroute/pkg/kvstore"
	"github.com/inbucket/mailroute/pkg/kvstore/mem"
	"github.com/inbucket/mailroute/pkg/resolve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyDefaults(t *testing.T) {
	r := resolve.NewResolver(nil, nil)
	p, err := r.Policy(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "", p.Users)
	assert.Equal(t, "*", p.Subaddresses)
	assert.Equal(t, "", p.Destination)
	assert.Equal(t, resolve.DefaultRejectReason, p.RejectTreatment)
	assert.Equal(t, "", p.EnvironmentRejectTreatment)
	assert.Equal(t, ",", p.AddressSeparator)
	assert.Equal(t, ":", p.DestinationSeparator)
	assert.Equal(t, "+", p.LocalPartSeparator)
	assert.Equal(t, ";", p.RejectSeparator)
	assert.Equal(t, "X-Mailroute-Forwarding", p.CustomHeader)
	assert.Equal(t, map[string]string{"X-Mailroute-Forwarding": "PASS"}, p.PassHeaders())
	assert.Equal(t, map[string]string{"X-Mailroute-Forwarding": "FAIL"}, p.FailHeaders())
	assert.Equal(t, 0, p.ForwardRetries)
	assert.Equal(t, time.Duration(0), p.ForwardRetryDelay)
	assert.True(t, p.UseStoredAddress)
	assert.False(t, p.UseStoredFormat)
	assert.False(t, p.UseStoredHeader)
	assert.True(t, p.UseStoredUser)
	assert.True(t, p.ValidEmailAddress.MatchString("user+tag@example.com"))
	assert.False(t, p.ValidEmailAddress.MatchString("user@localhost"))
	assert.False(t, p.ValidEmailAddress.MatchString(":Invalidrecipient"))
	assert.True(t, p.RecoverableError.MatchString("Temporary delivery failure: 451 busy"))
}

func TestPolicyPrecedence(t *testing.T) {
	env := &config.Routing{
		Users:           config.String(" user1 , user2 "),
		Destination:     config.String("env@example.com"),
		RejectTreatment: config.String("  : Env reason  "),
		Subaddresses:    config.String("news"),
	}
	store := mem.NewStore(map[string]string{
		resolve.KeyDestination: "stored@example.com",
		resolve.KeySubaddresses: "",
	})
	p, err := resolve.NewResolver(env, store).Policy(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "user1,user2", p.Users, "environment over default, whitespace removed")
	assert.Equal(t, "stored@example.com", p.Destination, "store over environment")
	assert.Equal(t, "", p.Subaddresses, "stored empty string must not fall through")
	assert.Equal(t, ": Env reason", p.RejectTreatment, "reason trimmed at the ends only")
	assert.Equal(t, ": Env reason", p.EnvironmentRejectTreatment)
}

func TestPolicyStoreToggles(t *testing.T) {
	store := mem.NewStore(map[string]string{
		resolve.KeyDestination:        "stored@example.com",
		resolve.KeyLocalPartSeparator: "-",
		resolve.KeyCustomHeader:       "X-Stored",
	})
	env := &config.Routing{
		UseStoredAddressConfiguration: config.String("FALSE"),
		UseStoredFormatConfiguration:  config.String("1"),
		UseStoredHeaderConfiguration:  config.String("True"),
	}
	p, err := resolve.NewResolver(env, store).Policy(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "", p.Destination, "address domain disabled")
	assert.Equal(t, "-", p.LocalPartSeparator, "format domain enabled")
	assert.Equal(t, "X-Stored", p.CustomHeader, "header domain enabled")
}

func TestPolicyConfigErrors(t *testing.T) {
	testCases := []struct {
		name string
		env  config.Routing
	}{
		{name: "bad header", env: config.Routing{CustomHeader: config.String("Forwarded")}},
		{name: "bad email pattern", env: config.Routing{FormatValidEmailAddressRegexp: config.String("(")}},
		{name: "bad recoverable pattern", env: config.Routing{RecoverableErrorRegexp: config.String("[")}},
		{name: "empty separator", env: config.Routing{FormatAddressSeparator: config.String("")}},
		{name: "bad retries", env: config.Routing{ForwardRetries: config.String("many")}},
		{name: "negative retries", env: config.Routing{ForwardRetries: config.String("-1")}},
		{name: "bad delay", env: config.Routing{ForwardRetryDelay: config.String("soon")}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := resolve.NewResolver(&tc.env, nil).Policy(context.Background())
			var cerr *resolve.ConfigError
			require.ErrorAs(t, err, &cerr)
		})
	}
}

func TestPolicyStoreFailureIsTemporary(t *testing.T) {
	boom := errors.New("connection refused")
	store := kvstore.StoreFunc(func(ctx context.Context, key string) (string, bool, error) {
		return "", false, boom
	})
	_, err := resolve.NewResolver(nil, store).Policy(context.Background())
	require.ErrorIs(t, err, boom)

	var serr *resolve.StoreError
	require.ErrorAs(t, err, &serr)
	assert.True(t, serr.Temporary())
}

func TestPolicyIdempotent(t *testing.T) {
	env := &config.Routing{Users: config.String("user1"), Destination: config.String("a@b.com")}
	store := mem.NewStore(map[string]string{resolve.KeyRejectTreatment: "spam@b.com"})
	r := resolve.NewResolver(env, store)

	first, err := r.Policy(context.Background())
	require.NoError(t, err)
	second, err := r.Policy(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.ValidEmailAddress.String(), second.ValidEmailAddress.String())
	assert.Equal(t, first.RecoverableError.String(), second.RecoverableError.String())
	first.ValidEmailAddress, second.ValidEmailAddress = nil, nil
	first.RecoverableError, second.RecoverableError = nil, nil
	first.ValidCustomHeader, second.ValidCustomHeader = nil, nil
	assert.Equal(t, first, second)
}

func TestUnverifiedMessage(t *testing.T) {
	assert.Equal(t, "destination address not verified",
		resolve.NewResolver(nil, nil).UnverifiedMessage())

	env := &config.Routing{UnverifiedDestinationErrorMessage: config.String("not yet verified")}
	r := resolve.NewResolver(env, nil)
	assert.Equal(t, "not yet verified", r.UnverifiedMessage())
	p, err := r.Policy(context.Background())
	require.NoError(t, err)
	assert.Equal(t, r.UnverifiedMessage(), p.UnverifiedDestinationErrorMessage)
}
