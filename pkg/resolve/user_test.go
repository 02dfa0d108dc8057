package resolve_test

import (
	"context"
	"testing"

	"github.com/inbucket/mailroute/pkg/config"
	"github.com/inbucket/mailroute/pkg/kvstore/mem"
	"github.com/inbucket/mailroute/pkg/resolve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserOverride(t *testing.T) {
	env := &config.Routing{
		Destination:     config.String("global@example.com"),
		RejectTreatment: config.String("Global reason"),
		Subaddresses:    config.String("*"),
	}
	testCases := []struct {
		name        string
		stored      map[string]string
		found       bool
		destination string
		treatment   string
		subs        string
	}{
		{
			name:        "absent",
			stored:      map[string]string{},
			destination: "global@example.com",
			treatment:   "Global reason",
			subs:        "*",
		},
		{
			name:        "destination only",
			stored:      map[string]string{"user1": " dest@email.com "},
			found:       true,
			destination: "dest@email.com",
			treatment:   "Global reason",
			subs:        "*",
		},
		{
			name:        "destination and treatment",
			stored:      map[string]string{"user1": "dest@email.com; Custom reject reason "},
			found:       true,
			destination: "dest@email.com",
			treatment:   "Custom reject reason",
			subs:        "*",
		},
		{
			name:        "empty value keeps global destination",
			stored:      map[string]string{"user1": ""},
			found:       true,
			destination: "global@example.com",
			treatment:   "Global reason",
			subs:        "*",
		},
		{
			name:        "treatment only means no destination",
			stored:      map[string]string{"user1": ";: Go away"},
			found:       true,
			destination: "",
			treatment:   ": Go away",
			subs:        "*",
		},
		{
			name:        "empty treatment is kept",
			stored:      map[string]string{"user1": "dest@email.com;"},
			found:       true,
			destination: "dest@email.com",
			treatment:   "",
			subs:        "*",
		},
		{
			name:        "stored empty subaddresses",
			stored:      map[string]string{"user1+": ""},
			destination: "global@example.com",
			treatment:   "Global reason",
			subs:        "",
		},
		{
			name:        "stored subaddress list",
			stored:      map[string]string{"user1": "d@e.com", "user1+": "news, shop"},
			found:       true,
			destination: "d@e.com",
			treatment:   "Global reason",
			subs:        "news,shop",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := resolve.NewResolver(env, mem.NewStore(tc.stored))
			ctx := context.Background()
			p, err := r.Policy(ctx)
			require.NoError(t, err)
			u, err := r.User(ctx, p, "user1")
			require.NoError(t, err)

			assert.Equal(t, tc.found, u.Found)
			assert.Equal(t, tc.destination, u.DestinationFor(p))
			assert.Equal(t, tc.treatment, u.RejectTreatmentFor(p))
			assert.Equal(t, tc.subs, u.SubaddressesFor(p))
		})
	}
}

func TestUserOverrideDisabled(t *testing.T) {
	env := &config.Routing{UseStoredUserConfiguration: config.String("false")}
	r := resolve.NewResolver(env, mem.NewStore(map[string]string{"user1": "d@e.com"}))
	ctx := context.Background()
	p, err := r.Policy(ctx)
	require.NoError(t, err)

	u, err := r.User(ctx, p, "user1")
	require.NoError(t, err)
	assert.False(t, u.Found)
	assert.Equal(t, "", u.DestinationFor(p))
}
