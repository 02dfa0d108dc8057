package luahost

import (
	"testing"

	"github.com/inbucket/mailroute/pkg/test"
	"github.com/stretchr/testify/require"
)

func TestMailrouteEventFuncs(t *testing.T) {
	script := `
		assert(mailroute, "mailroute should not be nil")
		assert(mailroute.after, "mailroute.after should not be nil")
		assert(mailroute.before, "mailroute.before should not be nil")

		local fns = {
			after = { "message_forwarded", "message_rejected" },
			before = { "recipient_admitted" },
		}

		local calls = {}
		local testfn = function(name)
			calls[name] = true
		end

		for kind, names in pairs(fns) do
			for i, name in ipairs(names) do
				assert(mailroute[kind][name] == nil, kind .. "." .. name .. " should start nil")
				mailroute[kind][name] = testfn
				assert(mailroute[kind][name], kind .. "." .. name .. " should not be nil")
				mailroute[kind][name](kind .. "." .. name)
			end
		end

		for kind, names in pairs(fns) do
			for i, name in ipairs(names) do
				assert(calls[kind .. "." .. name], kind .. "." .. name .. " should have been called")
			end
		end
	`

	ls, _ := test.NewLuaState(registerMailrouteTypes)
	require.NoError(t, ls.DoString(script))

	mr, err := getMailroute(ls)
	require.NoError(t, err)
	require.NotNil(t, mr.After.MessageForwarded)
	require.NotNil(t, mr.After.MessageRejected)
	require.NotNil(t, mr.Before.RecipientAdmitted)
}

func TestMailrouteInvalidIndex(t *testing.T) {
	ls, _ := test.NewLuaState(registerMailrouteTypes)
	require.Error(t, ls.DoString(`mailroute.before.message_stored = function() end`))
}
