package policy

import (
	"strings"

	"github.com/inbucket/mailroute/pkg/stringutil"
)

// Wildcard admits any user or subaddress.
const Wildcard = "*"

// Admission decides whether mail for a recipient should be routed at all.
type Admission struct {
	// Users is the allowed-users policy: Wildcard or a list of users.
	Users string
	// Subaddresses is the allowed-subaddresses policy: Wildcard, a list, or either of those
	// prefixed with LocalPartSeparator to require a subaddress.
	Subaddresses string
	// ListSeparator splits the Users and Subaddresses lists.
	ListSeparator string
	// LocalPartSeparator separates user from subaddress.
	LocalPartSeparator string
}

// ShouldAcceptUser indicates if mail for user is admitted.  A user with a stored override is
// always admitted.
func (a *Admission) ShouldAcceptUser(user string, overridden bool) bool {
	if overridden || a.Users == Wildcard {
		return true
	}
	return stringutil.SliceContains(stringutil.SplitList(a.Users, a.ListSeparator),
		strings.ToLower(user))
}

// SubaddressRequired returns true if the policy rejects recipients without a subaddress.
func (a *Admission) SubaddressRequired() bool {
	return a.LocalPartSeparator != "" && strings.HasPrefix(a.Subaddresses, a.LocalPartSeparator)
}

// ShouldAcceptSubaddress indicates if mail carrying subaddress is admitted.  An empty
// subaddress means the recipient carried none.
func (a *Admission) ShouldAcceptSubaddress(subaddress string) bool {
	if subaddress == "" {
		return !a.SubaddressRequired()
	}
	list := a.Subaddresses
	if a.SubaddressRequired() {
		list = strings.TrimPrefix(list, a.LocalPartSeparator)
	}
	if list == Wildcard {
		return true
	}
	return stringutil.SliceContains(stringutil.SplitList(list, a.ListSeparator),
		strings.ToLower(subaddress))
}

// ShouldAccept combines the user and subaddress checks for r.
func (a *Admission) ShouldAccept(r *Recipient, overridden bool) bool {
	return a.ShouldAcceptUser(r.User, overridden) && a.ShouldAcceptSubaddress(r.Subaddress)
}
