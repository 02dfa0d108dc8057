// Package route decides what happens to an inbound message: forward it to its destinations,
// forward it to the reject destinations, or reject it with a reason.
package route

import (
	"context"

	"github.com/google/uuid"
	"github.com/inbucket/mailroute/pkg/destination"
	"github.com/inbucket/mailroute/pkg/extension"
	"github.com/inbucket/mailroute/pkg/extension/event"
	"github.com/inbucket/mailroute/pkg/forward"
	"github.com/inbucket/mailroute/pkg/message"
	"github.com/inbucket/mailroute/pkg/resolve"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Phase names the routing phase that produced a decision.
type Phase string

// Routing phases, in order.
const (
	PhaseAccept        Phase = "accept"
	PhaseRejectForward Phase = "reject-forward"
	PhaseReject        Phase = "reject"
)

// Transport is the platform a message is routed within.
type Transport interface {
	forward.Deliverer
	// Reject refuses the message with a human readable reason.  It must not fail.
	Reject(reason string)
}

// Decision is the final outcome of routing one message.
type Decision struct {
	ID string
	// Action is event.ActionForward or event.ActionReject.
	Action string
	Phase  Phase
	// Addresses holds the destinations that accepted the message.
	Addresses []string
	// Reason is the reject reason passed to the transport.
	Reason string
}

// Router routes inbound messages.  It holds no per-message state and may be shared.
type Router struct {
	Resolver *resolve.Resolver
	extHost  *extension.Host
}

// NewRouter creates a Router resolving configuration with resolver.  extHost may be nil.
func NewRouter(resolver *resolve.Resolver, extHost *extension.Host) *Router {
	if extHost == nil {
		extHost = extension.NewHost()
	}
	return &Router{Resolver: resolver, extHost: extHost}
}

// HandleInboundMessage routes msg through t.  A nil error means the message was either forwarded
// or rejected, as reported by the Decision.  An error means the transport should retry the whole
// message later; a *resolve.ConfigError means it never will succeed until the configuration is
// fixed.
func (r *Router) HandleInboundMessage(
	ctx context.Context,
	msg *message.Inbound,
	t Transport,
) (*Decision, error) {
	id := uuid.NewString()
	logger := log.With().Str("module", "route").Str("id", id).Str("from", msg.From).
		Str("to", msg.To).Logger()
	logger.Debug().Str("subject", msg.Subject()).Str("message-id", msg.MessageID()).
		Int64("size", msg.Size).Msg("Routing message")

	pl, err := r.plan(ctx, msg.To)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to resolve configuration")
		return nil, err
	}
	if pl.Recipient != nil {
		logger = logger.With().Str("user", pl.Recipient.User).
			Str("subaddress", pl.Recipient.Subaddress).Logger()
		admitted := r.admit(id, msg, pl)
		if admitted != pl.Admitted {
			logger.Info().Bool("admitted", admitted).Msg("Admission overridden by extension")
		}
		pl.Admitted = admitted
	} else {
		logger.Warn().Msg("Recipient address could not be parsed")
	}

	engine := forward.NewEngine(pl.Policy, logger)
	if pl.Admitted {
		phaseLog := logger.With().Str("phase", string(PhaseAccept)).Logger()
		logDiagnostics(phaseLog, zerolog.WarnLevel, pl.Accept)
		addrs, err := engine.Forward(ctx, t, pl.Accept.Groups, pl.Policy.PassHeaders())
		if err != nil {
			phaseLog.Warn().Err(err).Msg("Forwarding failed temporarily")
			return nil, err
		}
		if len(addrs) > 0 {
			return r.forwarded(id, msg, PhaseAccept, addrs, phaseLog), nil
		}
		phaseLog.Debug().Msg("Delivered nowhere")
	} else {
		logger.Debug().Msg("Recipient not admitted")
	}

	if !pl.RejectForward.Empty() {
		phaseLog := logger.With().Str("phase", string(PhaseRejectForward)).Logger()
		logDiagnostics(phaseLog, zerolog.DebugLevel, pl.RejectForward)
		addrs, err := engine.Forward(ctx, t, pl.RejectForward.Groups, pl.Policy.FailHeaders())
		if err != nil {
			phaseLog.Warn().Err(err).Msg("Reject forwarding failed temporarily")
			return nil, err
		}
		if len(addrs) > 0 {
			return r.forwarded(id, msg, PhaseRejectForward, addrs, phaseLog), nil
		}
		phaseLog.Debug().Msg("Delivered nowhere")
	}

	t.Reject(pl.RejectReason)
	d := &Decision{ID: id, Action: event.ActionReject, Phase: PhaseReject, Reason: pl.RejectReason}
	logger.Info().Str("phase", string(PhaseReject)).Str("reason", d.Reason).Msg("Rejected")
	r.emit(msg, d, &r.extHost.Events.AfterMessageRejected)

	return d, nil
}

// Explain works out how mail to address would be routed, without delivering anything or calling
// extensions.
func (r *Router) Explain(ctx context.Context, address string) (*Plan, error) {
	return r.plan(ctx, address)
}

// admit gives extensions the final say on the admission verdict.
func (r *Router) admit(id string, msg *message.Inbound, pl *Plan) bool {
	rcpt := pl.Recipient
	res := r.extHost.Events.BeforeRecipientAdmitted.Emit(&event.Recipient{
		ID:         id,
		From:       msg.From,
		Address:    msg.To,
		LocalPart:  rcpt.LocalPart,
		Domain:     rcpt.Domain,
		User:       rcpt.User,
		Subaddress: rcpt.Subaddress,
		Overridden: pl.User.Found,
		Admitted:   pl.Admitted,
	})
	if res == nil {
		return pl.Admitted
	}
	return res.Admit
}

func (r *Router) forwarded(
	id string,
	msg *message.Inbound,
	phase Phase,
	addrs []string,
	logger zerolog.Logger,
) *Decision {
	d := &Decision{ID: id, Action: event.ActionForward, Phase: phase, Addresses: addrs}
	logger.Info().Strs("destinations", addrs).Msg("Forwarded")
	r.emit(msg, d, &r.extHost.Events.AfterMessageForwarded)
	return d
}

func (r *Router) emit(
	msg *message.Inbound,
	d *Decision,
	broker *extension.AsyncEventBroker[event.RouteDecision],
) {
	decisionsTotal.WithLabelValues(d.Action, string(d.Phase)).Inc()
	broker.Emit(&event.RouteDecision{
		ID:        d.ID,
		From:      msg.From,
		To:        msg.To,
		Subject:   msg.Subject(),
		Size:      msg.Size,
		Action:    d.Action,
		Phase:     string(d.Phase),
		Addresses: d.Addresses,
		Reason:    d.Reason,
	})
}

func logDiagnostics(logger zerolog.Logger, level zerolog.Level, spec *destination.Spec) {
	if len(spec.Invalid) > 0 {
		logger.WithLevel(level).Strs("invalid", spec.Invalid).Msg("Ignored invalid destinations")
	}
	if len(spec.Duplicate) > 0 {
		logger.WithLevel(level).Strs("duplicate", spec.Duplicate).
			Msg("Ignored duplicate destinations")
	}
}
