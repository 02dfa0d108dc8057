package route

import (
	"context"
	"strings"

	"github.com/inbucket/mailroute/pkg/destination"
	"github.com/inbucket/mailroute/pkg/policy"
	"github.com/inbucket/mailroute/pkg/resolve"
	"github.com/inbucket/mailroute/pkg/stringutil"
)

// Plan is everything the router knows about a recipient before delivering anything.
type Plan struct {
	To     string
	Policy *resolve.Policy
	// Recipient is nil when the address could not be parsed; such mail is always rejected.
	Recipient *policy.Recipient
	User      *resolve.UserOverride
	Admitted  bool

	// Accept holds the destinations tried when admitted.
	Accept *destination.Spec
	// RejectForward holds the destinations tried when accept-forwarding delivered nowhere.
	RejectForward *destination.Spec
	// RejectReason is passed to the transport when nothing was delivered.
	RejectReason string

	parser *destination.Parser
}

// plan resolves configuration for to, and works out its admission, destinations and reject
// reason.  Lookups run strictly in order since the user keys depend on the parsed recipient.
func (r *Router) plan(ctx context.Context, to string) (*Plan, error) {
	p, err := r.Resolver.Policy(ctx)
	if err != nil {
		return nil, err
	}
	pl := &Plan{To: to, Policy: p, parser: destination.NewParser(p)}

	rcpt, err := policy.NewRecipient(to, p.LocalPartSeparator)
	if err != nil {
		pl.User = &resolve.UserOverride{}
		pl.RejectReason = pl.rejectReason(localPartOf(to), "")
		return pl, nil
	}
	pl.Recipient = rcpt

	if pl.User, err = r.Resolver.User(ctx, p, rcpt.User); err != nil {
		return nil, err
	}
	admission := &policy.Admission{
		Users:              p.Users,
		Subaddresses:       pl.User.SubaddressesFor(p),
		ListSeparator:      p.AddressSeparator,
		LocalPartSeparator: p.LocalPartSeparator,
	}
	pl.Admitted = admission.ShouldAccept(rcpt, pl.User.Found)
	pl.Accept = pl.parser.Parse(pl.User.DestinationFor(p), rcpt.User)
	pl.RejectForward = pl.parser.Parse(pl.User.RejectTreatmentFor(p), rcpt.User)
	pl.RejectReason = pl.rejectReason(rcpt.LocalPart, rcpt.User)

	return pl, nil
}

// rejectReason picks the first reject treatment that is not a destination, from the user, global
// and environment layers in that order, falling back to the built-in reason.  A reason not
// starting with a letter or digit is prefixed with localPart.
func (pl *Plan) rejectReason(localPart, user string) string {
	var candidates []string
	if pl.User != nil && pl.User.HasRejectTreatment {
		candidates = append(candidates, pl.User.RejectTreatment)
	}
	candidates = append(candidates, pl.Policy.RejectTreatment, pl.Policy.EnvironmentRejectTreatment)

	reason := resolve.DefaultRejectReason
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c != "" && !pl.parser.HasDestination(c, user) {
			reason = c
			break
		}
	}
	if !stringutil.StartsWithAlphaNum(reason) {
		reason = localPart + reason
	}

	return reason
}

// localPartOf returns the lowercased text before the last @ of an address that failed to parse.
func localPartOf(address string) string {
	if i := strings.LastIndex(address, "@"); i >= 0 {
		address = address[:i]
	}
	return strings.ToLower(address)
}
