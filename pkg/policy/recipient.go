package policy

import (
	"strings"
)

// Recipient identifies the mailbox an inbound message is addressed to.
type Recipient struct {
	// Address is the recipient address as received.
	Address string
	// LocalPart is the lowercased part of the address before @, including the subaddress.
	LocalPart string
	// Domain is the lowercased part of the address after @.
	Domain string
	// User is the local part up to the first local-part separator.
	User string
	// Subaddress is the local part after the first local-part separator, or empty.
	Subaddress string
}

// NewRecipient parses an address into a Recipient, splitting its local part on separator.
func NewRecipient(address, separator string) (*Recipient, error) {
	local, domain, err := ParseEmailAddress(address)
	if err != nil {
		return nil, err
	}
	user, sub := SplitLocalPart(local, separator)
	return &Recipient{
		Address:    address,
		LocalPart:  strings.ToLower(local),
		Domain:     strings.ToLower(domain),
		User:       user,
		Subaddress: sub,
	}, nil
}

// HasSubaddress returns true if the recipient carried a subaddress tag.
func (r *Recipient) HasSubaddress() bool {
	return r.Subaddress != ""
}
