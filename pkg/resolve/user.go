package resolve

import (
	"context"
	"strings"

	"github.com/inbucket/mailroute/pkg/stringutil"
	"github.com/rs/zerolog/log"
)

// UserOverride holds the stored configuration for one user.  Each Has* flag separates "stored as
// empty" from "not stored"; only the latter falls back to the global policy.
type UserOverride struct {
	// Found is true when the user key was present in the store.
	Found bool

	Destination        string
	HasDestination     bool
	RejectTreatment    string
	HasRejectTreatment bool

	Subaddresses    string
	HasSubaddresses bool
}

// User looks up the stored overrides for user: the key "<user>" holds
// "destination[<reject separator>rejectTreatment]" and "<user><local part separator>" holds the
// subaddress policy.  Nothing is looked up when stored user configuration is disabled.
func (r *Resolver) User(ctx context.Context, p *Policy, user string) (*UserOverride, error) {
	u := &UserOverride{}
	if !p.UseStoredUser || user == "" {
		return u, nil
	}

	value, ok, err := fromStore(r.Store, true, user)(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		u.Found = true
		dest, treatment, hasTreatment := strings.Cut(value, p.RejectSeparator)
		dest = stringutil.RemoveWhitespace(dest)
		// A bare empty value admits the user but keeps the global destination.
		if dest != "" || hasTreatment {
			u.Destination = dest
			u.HasDestination = true
		}
		if hasTreatment {
			u.RejectTreatment = strings.TrimSpace(treatment)
			u.HasRejectTreatment = true
		}
	}

	subKey := user + p.LocalPartSeparator
	value, ok, err = fromStore(r.Store, true, subKey)(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		u.Subaddresses = stringutil.RemoveWhitespace(value)
		u.HasSubaddresses = true
	}

	if u.Found || u.HasSubaddresses {
		log.Debug().Str("module", "resolve").Str("user", user).Bool("found", u.Found).
			Bool("subaddresses", u.HasSubaddresses).Msg("Loaded stored user configuration")
	}
	return u, nil
}

// DestinationFor returns the destination text for the user, falling back to the global one.
func (u *UserOverride) DestinationFor(p *Policy) string {
	if u != nil && u.HasDestination {
		return u.Destination
	}
	return p.Destination
}

// RejectTreatmentFor returns the reject treatment for the user, falling back to the global one.
func (u *UserOverride) RejectTreatmentFor(p *Policy) string {
	if u != nil && u.HasRejectTreatment {
		return u.RejectTreatment
	}
	return p.RejectTreatment
}

// SubaddressesFor returns the subaddress policy for the user, falling back to the global one.
func (u *UserOverride) SubaddressesFor(p *Policy) string {
	if u != nil && u.HasSubaddresses {
		return u.Subaddresses
	}
	return p.Subaddresses
}
