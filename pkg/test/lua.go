package test

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/cjoudrey/gluahttp"
	"github.com/cosmotek/loguago"
	json "github.com/inbucket/gopher-json"
	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"
)

// LuaInit defines assertion and admission helpers for mailroute extension scripts.  Prepend it to
// a script; the logger and json modules must be preloadable.
const LuaInit = `
	local logger = require("logger")
	local json = require("json")

	async = false
	test_ok = true

	-- Fails the test: via test_ok when async, by raising otherwise.
	function fail(message)
		if async then
			logger.error(message, {from = "mailroute test"})
			test_ok = false
		else
			error(message, 2)
		end
	end

	-- Compares plain values, and list tables element by element.
	function assert_eq(got, want, field)
		local label = field or "value"
		if type(got) == "table" and type(want) == "table" then
			if #got ~= #want then
				fail(string.format("%s: got %d elements, wanted %d", label, #got, #want))
				return
			end
			for i, v in ipairs(want) do
				assert_eq(got[i], v, string.format("%s[%d]", label, i))
			end
			return
		end
		if got ~= want then
			fail(string.format("%s: got %q, wanted %q", label, tostring(got), tostring(want)))
		end
	end

	function assert_contains(got, want)
		if not string.find(got, want, 1, true) then
			fail(string.format("got %q, wanted it to contain %q", got, want))
		end
	end

	-- Copies the fields of a route decision into a plain table.
	function decision_table(d)
		return {
			id = d.id,
			from = d.from,
			to = d.to,
			subject = d.subject,
			size = d.size,
			action = d.action,
			phase = d.phase,
			addresses = d.addresses,
			reason = d.reason,
		}
	end

	-- Checks every field named in want against route decision d.
	function assert_decision(d, want)
		local got = decision_table(d)
		for field, v in pairs(want) do
			assert_eq(got[field], v, field)
		end
	end

	-- Compares the JSON encodings of two tables.
	function assert_json(got, want)
		local gotjs, err = json.encode(got)
		if err then
			fail("encode got: " .. err)
			return
		end
		local wantjs = json.encode(want)
		assert_eq(gotjs, wantjs, "json")
	end

	-- Maps a recipient test result to an admission response: nil for no opinion.
	function admission_for(admit)
		if admit == nil then
			return nil
		end
		if admit then
			return admission.admit()
		end
		return admission.deny()
	end
`

// NewLuaState creates an LState with the modules a mailroute script can require, runs every
// register function against it, then loads LuaInit.
//
// Returns the LState and a builder holding the output of the logger module.
func NewLuaState(register ...func(*lua.LState)) (*lua.LState, *strings.Builder) {
	output := &strings.Builder{}
	logger := loguago.NewLogger(zerolog.New(output))

	ls := lua.NewState()
	ls.PreloadModule("http", gluahttp.NewHttpModule(&http.Client{Timeout: 5 * time.Second}).Loader)
	ls.PreloadModule("json", json.Loader)
	ls.PreloadModule("logger", logger.Loader)
	for _, fn := range register {
		fn(ls)
	}
	if err := ls.DoString(LuaInit); err != nil {
		panic(err)
	}

	return ls, output
}

// AssertNotified requires a truthy value on notify, sent by an asynchronous Lua listener.
func AssertNotified(t *testing.T, notify chan lua.LValue) {
	t.Helper()
	select {
	case lv := <-notify:
		if lua.LVIsFalse(lv) {
			t.Error("Lua listener reported a failure, see log output")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Lua listener did not report within 2s")
	}
}
