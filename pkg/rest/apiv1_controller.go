package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/inbucket/mailroute/pkg/config"
	"github.com/inbucket/mailroute/pkg/destination"
	"github.com/inbucket/mailroute/pkg/forward"
	"github.com/inbucket/mailroute/pkg/message"
	"github.com/inbucket/mailroute/pkg/resolve"
	"github.com/inbucket/mailroute/pkg/rest/model"
	"github.com/inbucket/mailroute/pkg/server/web"
	"github.com/rs/zerolog/log"
)

// retryAfter is the Retry-After hint, in seconds, sent with temporary failures.
const retryAfter = 60

// RouteMessageV1 routes the raw message in the request body from the "from" to the "to" query
// parameter, and renders the decision.
func RouteMessageV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	from := req.URL.Query().Get("from")
	to := req.URL.Query().Get("to")
	if to == "" {
		return renderError(w, http.StatusBadRequest, errors.New("missing to parameter"))
	}

	msg, err := message.Read(from, to, req.Body, ctx.RootConfig.Web.MaxMessageBytes)
	if errors.Is(err, message.ErrTooLarge) {
		return renderError(w, http.StatusRequestEntityTooLarge, err)
	}
	if err != nil {
		return renderError(w, http.StatusBadRequest, err)
	}

	d, err := ctx.Router.HandleInboundMessage(req.Context(), msg, ctx.Relay.Transport(msg))
	if err != nil {
		return renderRoutingError(w, err)
	}

	return web.RenderJSON(w,
		&model.JSONDecisionV1{
			ID:        d.ID,
			Action:    d.Action,
			Phase:     string(d.Phase),
			Addresses: d.Addresses,
			Reason:    d.Reason,
		})
}

// ExplainV1 renders how mail to an address would be routed, without delivering anything.
func ExplainV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	// Don't have to validate these aren't empty, Gorilla returns 404
	address := ctx.Vars["address"]
	pl, err := ctx.Router.Explain(req.Context(), address)
	if err != nil {
		return renderRoutingError(w, err)
	}

	plan := &model.JSONPlanV1{
		Address:       address,
		Parsed:        pl.Recipient != nil,
		Overridden:    pl.User.Found,
		Admitted:      pl.Admitted,
		Accept:        destinations(ctx, pl.Accept),
		RejectForward: destinations(ctx, pl.RejectForward),
		RejectReason:  pl.RejectReason,
	}
	if rcpt := pl.Recipient; rcpt != nil {
		plan.User = rcpt.User
		plan.Subaddress = rcpt.Subaddress
		plan.Domain = rcpt.Domain
	}
	return web.RenderJSON(w, plan)
}

// StatusV1 renders build and wiring information.
func StatusV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	status := &model.JSONStatusV1{
		Version:      config.Version,
		BuildDate:    config.BuildDate,
		StoreBackend: ctx.RootConfig.Store.Backend,
		RelayAddr:    ctx.RootConfig.Relay.Addr,
		Listeners:    map[string][]string{},
	}
	if ctx.ExtHost != nil {
		status.Listeners = ctx.ExtHost.Listeners()
	}
	return web.RenderJSON(w, status)
}

func destinations(ctx *web.Context, spec *destination.Spec) *model.JSONDestinationsV1 {
	if spec == nil {
		return nil
	}
	d := &model.JSONDestinationsV1{
		Groups:    spec.Groups,
		Invalid:   spec.Invalid,
		Duplicate: spec.Duplicate,
	}
	if d.Groups == nil {
		d.Groups = [][]string{}
	}
	if ctx.Relay != nil {
		for _, addr := range spec.Addresses() {
			if !ctx.Relay.IsVerified(addr) {
				d.Unverified = append(d.Unverified, addr)
			}
		}
	}
	return d
}

// renderRoutingError maps a routing failure to a response.  Configuration errors will not clear
// up on their own; anything else asks the client to come back later.
func renderRoutingError(w http.ResponseWriter, err error) error {
	var cerr *resolve.ConfigError
	if errors.As(err, &cerr) {
		log.Error().Str("module", "rest").Err(err).Msg("Routing configuration is invalid")
		return renderError(w, http.StatusInternalServerError, err)
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	return renderError(w, http.StatusServiceUnavailable, err)
}

func renderError(w http.ResponseWriter, status int, err error) error {
	return web.RenderJSONStatus(w, status,
		&model.JSONErrorV1{
			Error:     err.Error(),
			Temporary: forward.IsTemporary(err) || status == http.StatusServiceUnavailable,
		})
}
