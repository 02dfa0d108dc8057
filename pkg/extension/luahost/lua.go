// Package luahost runs Lua scripts as listeners for mailroute extension events.
package luahost

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/inbucket/mailroute/pkg/config"
	"github.com/inbucket/mailroute/pkg/extension"
	"github.com/inbucket/mailroute/pkg/extension/event"
	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

const listenerName = "lua"

// Host of Lua extensions.
type Host struct {
	extHost    *extension.Host
	pool       *statePool
	logContext zerolog.Context
}

// New constructs a new Lua Host, pre-compiling the script at conf.Path.  A missing script is not
// an error; nil is returned instead.
func New(logger zerolog.Logger, conf config.Lua, extHost *extension.Host) (*Host, error) {
	scriptPath := conf.Path
	if scriptPath == "" {
		return nil, nil
	}

	startLog := logger.With().Str("module", "lua").Str("phase", "startup").
		Str("path", scriptPath).Logger()

	if fi, err := os.Stat(scriptPath); err != nil {
		startLog.Info().Msg("Script file not found")
		return nil, nil
	} else if fi.IsDir() {
		return nil, fmt.Errorf("lua script %v is a directory", scriptPath)
	}

	startLog.Info().Msg("Loading script")
	file, err := os.Open(scriptPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return NewFromReader(logger, extHost, bufio.NewReader(file), scriptPath)
}

// NewFromReader constructs a new Lua Host, loading Lua source from the provided reader.  The
// provided path is used in logging and error messages.
func NewFromReader(
	logger zerolog.Logger,
	extHost *extension.Host,
	r io.Reader,
	path string,
) (*Host, error) {
	logContext := logger.With().Str("module", "lua")

	chunk, err := parse.Parse(r, path)
	if err != nil {
		return nil, err
	}
	proto, err := lua.Compile(chunk, path)
	if err != nil {
		return nil, err
	}

	// Build the pool and confirm an LState is retrievable.
	pool := newStatePool(logger, proto)
	h := &Host{extHost: extHost, pool: pool, logContext: logContext}
	ls, err := pool.getState()
	if err != nil {
		return nil, err
	}
	err = h.wireFunctions(ls)
	pool.putState(ls)
	if err != nil {
		return nil, err
	}

	return h, nil
}

// CreateChannel creates a channel and places it into the named global variable in newly created
// LStates.
func (h *Host) CreateChannel(name string) chan lua.LValue {
	return h.pool.createChannel(name)
}

// wireFunctions registers an event listener for each function the script defined.
func (h *Host) wireFunctions(ls *lua.LState) error {
	mr, err := getMailroute(ls)
	if err != nil {
		return err
	}

	events := h.extHost.Events
	logger := h.logContext.Logger()
	if mr.After.MessageForwarded != nil {
		events.AfterMessageForwarded.AddListener(listenerName, h.handleAfterMessageForwarded)
		logger.Debug().Msg("Listening for after.message_forwarded")
	}
	if mr.After.MessageRejected != nil {
		events.AfterMessageRejected.AddListener(listenerName, h.handleAfterMessageRejected)
		logger.Debug().Msg("Listening for after.message_rejected")
	}
	if mr.Before.RecipientAdmitted != nil {
		events.BeforeRecipientAdmitted.AddListener(listenerName, h.handleBeforeRecipientAdmitted)
		logger.Debug().Msg("Listening for before.recipient_admitted")
	}

	return nil
}

func (h *Host) handleAfterMessageForwarded(d event.RouteDecision) {
	h.callAfter("after.message_forwarded", d, func(mr *Mailroute) *lua.LFunction {
		return mr.After.MessageForwarded
	})
}

func (h *Host) handleAfterMessageRejected(d event.RouteDecision) {
	h.callAfter("after.message_rejected", d, func(mr *Mailroute) *lua.LFunction {
		return mr.After.MessageRejected
	})
}

func (h *Host) callAfter(
	funcName string,
	d event.RouteDecision,
	fn func(*Mailroute) *lua.LFunction,
) {
	logger, ls, mr, ok := h.prepareFuncCall(funcName)
	if !ok {
		return
	}
	defer h.pool.putState(ls)

	logger.Debug().Str("id", d.ID).Msg("Calling Lua function")
	if err := ls.CallByParam(
		lua.P{Fn: fn(mr), NRet: 0, Protect: true},
		wrapUserData(ls, routeDecisionName, &d),
	); err != nil {
		logger.Error().Err(err).Msg("Failed to call Lua function")
	}
}

func (h *Host) handleBeforeRecipientAdmitted(rcpt event.Recipient) *event.AdmissionResponse {
	logger, ls, mr, ok := h.prepareFuncCall("before.recipient_admitted")
	if !ok {
		return nil
	}
	defer h.pool.putState(ls)

	logger.Debug().Str("id", rcpt.ID).Msg("Calling Lua function")
	if err := ls.CallByParam(
		lua.P{Fn: mr.Before.RecipientAdmitted, NRet: 1, Protect: true},
		wrapUserData(ls, recipientName, &rcpt),
	); err != nil {
		logger.Error().Err(err).Msg("Failed to call Lua function")
		return nil
	}

	lval := ls.Get(1)
	ls.Pop(1)
	logger.Debug().Msgf("Lua function returned %q (%v)", lval, lval.Type().String())

	if lua.LVIsFalse(lval) {
		return nil
	}

	result, err := unwrapAdmission(lval)
	if err != nil {
		logger.Error().Err(err).Msg("Bad response from Lua function")
		return nil
	}

	return result
}

// prepareFuncCall checks out an LState and the mailroute global.  The caller must return the
// LState to the pool when ok is true.
func (h *Host) prepareFuncCall(
	funcName string,
) (logger zerolog.Logger, ls *lua.LState, mr *Mailroute, ok bool) {
	logger = h.logContext.Str("event", funcName).Logger()

	ls, err := h.pool.getState()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to get Lua state instance from pool")
		return logger, nil, nil, false
	}

	mr, err = getMailroute(ls)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to get mailroute userdata")
		h.pool.putState(ls)
		return logger, nil, nil, false
	}

	return logger, ls, mr, true
}
