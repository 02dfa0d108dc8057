// Package destination parses destination specifications: groups of redundant addresses, where
// every group is delivered independently and the addresses within a group are tried in order.
package destination

import (
	"regexp"
	"strings"

	"github.com/inbucket/mailroute/pkg/resolve"
	"github.com/inbucket/mailroute/pkg/stringutil"
)

// Spec is a parsed destination specification.  Groups never holds an empty group, and no
// address appears twice across all groups.
type Spec struct {
	Groups [][]string

	// Invalid lists non-empty candidates that failed validation.
	Invalid []string
	// Duplicate lists candidates dropped because an earlier group or address already held them.
	Duplicate []string
}

// Empty returns true if the spec has nothing to deliver to.
func (s *Spec) Empty() bool {
	return s == nil || len(s.Groups) == 0
}

// Addresses returns every address of the spec in order.
func (s *Spec) Addresses() []string {
	if s == nil {
		return nil
	}
	var result []string
	for _, g := range s.Groups {
		result = append(result, g...)
	}
	return result
}

// Parser turns destination text into a Spec.
type Parser struct {
	// AddressSeparator separates independent groups.
	AddressSeparator string
	// DestinationSeparator separates redundant addresses within a group.
	DestinationSeparator string
	// LocalPartSeparator and "@" at the start of a candidate mark it relative to the current user.
	LocalPartSeparator string
	// ValidEmailAddress must match every accepted address.
	ValidEmailAddress *regexp.Regexp
}

// NewParser returns a Parser using the separators and address pattern of p.
func NewParser(p *resolve.Policy) *Parser {
	return &Parser{
		AddressSeparator:     p.AddressSeparator,
		DestinationSeparator: p.DestinationSeparator,
		LocalPartSeparator:   p.LocalPartSeparator,
		ValidEmailAddress:    p.ValidEmailAddress,
	}
}

// Parse splits text into groups of validated, de-duplicated addresses.  Candidates beginning with
// the local-part separator or "@" are completed with user.
func (p *Parser) Parse(text, user string) *Spec {
	spec := &Spec{}
	seen := make(map[string]bool)
	for _, groupText := range strings.Split(text, p.AddressSeparator) {
		var group []string
		for _, candidate := range strings.Split(groupText, p.DestinationSeparator) {
			addr := p.complete(stringutil.RemoveWhitespace(candidate), user)
			if addr == "" {
				continue
			}
			if !p.valid(addr) {
				spec.Invalid = append(spec.Invalid, addr)
				continue
			}
			key := strings.ToLower(addr)
			if seen[key] {
				spec.Duplicate = append(spec.Duplicate, addr)
				continue
			}
			seen[key] = true
			group = append(group, addr)
		}
		if len(group) > 0 {
			spec.Groups = append(spec.Groups, group)
		}
	}
	return spec
}

// HasDestination returns true if text names at least one valid address.  Reject treatments that
// do are forwarded to instead of being used as a reason.
func (p *Parser) HasDestination(text, user string) bool {
	return !p.Parse(text, user).Empty()
}

func (p *Parser) complete(candidate, user string) string {
	if candidate == "" {
		return ""
	}
	if strings.HasPrefix(candidate, "@") ||
		(p.LocalPartSeparator != "" && strings.HasPrefix(candidate, p.LocalPartSeparator)) {
		return user + candidate
	}
	return candidate
}

func (p *Parser) valid(addr string) bool {
	if p.ValidEmailAddress == nil {
		return false
	}
	return p.ValidEmailAddress.MatchString(addr)
}
