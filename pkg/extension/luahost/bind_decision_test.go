package luahost

import (
	"testing"

	"github.com/inbucket/mailroute/pkg/extension/event"
	"github.com/inbucket/mailroute/pkg/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteDecisionFields(t *testing.T) {
	ls, output := test.NewLuaState(registerRouteDecisionType)
	ls.SetGlobal("d", wrapUserData(ls, routeDecisionName, &event.RouteDecision{
		ID:        "id1",
		From:      "from@example.com",
		To:        "user1+tag@domain.com",
		Size:      42,
		Action:    event.ActionForward,
		Phase:     "reject-forward",
		Addresses: []string{"user1+spam@email.com"},
	}))

	script := `
		assert_json(decision_table(d), {
			id = "id1",
			from = "from@example.com",
			to = "user1+tag@domain.com",
			subject = "",
			size = 42,
			action = "forward",
			phase = "reject-forward",
			addresses = {"user1+spam@email.com"},
			reason = "",
		})
		assert_eq(d.unknown, nil, "unknown")
	`
	require.NoError(t, ls.DoString(script), "log: %s", output)
}

func TestAdmissionFor(t *testing.T) {
	ls, _ := test.NewLuaState(registerAdmissionType)

	testCases := []struct {
		arg  string
		want *event.AdmissionResponse
	}{
		{arg: "true", want: &event.AdmissionResponse{Admit: true}},
		{arg: "false", want: &event.AdmissionResponse{Admit: false}},
	}
	for _, tc := range testCases {
		t.Run(tc.arg, func(t *testing.T) {
			require.NoError(t, ls.DoString("result = admission_for("+tc.arg+")"))
			got, err := unwrapAdmission(ls.GetGlobal("result"))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	require.NoError(t, ls.DoString("result = admission_for(nil)"))
	_, err := unwrapAdmission(ls.GetGlobal("result"))
	assert.Error(t, err)
}
