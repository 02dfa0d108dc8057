package policy

import (
	"errors"
	"fmt"
	"strings"
)

// atextSpecials may appear unquoted in a local part, alongside letters and digits.
const atextSpecials = "!#$%&'*+-/=?^_`{|}~"

// SplitLocalPart lowercases localPart and splits it at the first occurrence of separator.  The
// text before is the user, the text after is the subaddress; subaddress is empty when the
// separator does not occur.
func SplitLocalPart(localPart, separator string) (user, subaddress string) {
	localPart = strings.ToLower(localPart)
	user, subaddress, _ = strings.Cut(localPart, separator)
	return user, subaddress
}

// ParseEmailAddress unescapes an email address, and splits the local part from the domain part.
// An error is returned if the local or domain parts fail validation following the guidelines
// in RFC3696.
func ParseEmailAddress(address string) (local string, domain string, err error) {
	local, domain, err = parseEmailAddress(address)
	if err != nil {
		return "", "", err
	}
	if !ValidateDomainPart(domain) {
		return "", "", fmt.Errorf("domain part %q failed validation", domain)
	}
	return local, domain, nil
}

// ValidateDomainPart returns true if the domain part complies to RFC3696, RFC1035.
func ValidateDomainPart(domain string) bool {
	if domain == "" || len(domain) > 255 {
		return false
	}
	for _, label := range strings.Split(strings.TrimSuffix(domain, "."), ".") {
		if !validLabel(label) {
			return false
		}
	}
	return true
}

func validLabel(label string) bool {
	if label == "" || len(label) > 63 {
		return false
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}
	hasAlphaNum := false
	for i := 0; i < len(label); i++ {
		c := label[i]
		switch {
		case isAlphaNum(c) || c == '_':
			hasAlphaNum = true
		case c == '-':
		default:
			return false
		}
	}
	return hasAlphaNum
}

// parseEmailAddress unescapes an email address, and splits the local part from the domain part.
// The domain part is optional and not validated.
func parseEmailAddress(address string) (local string, domain string, err error) {
	switch {
	case address == "":
		return "", "", errors.New("empty address")
	case len(address) > 320:
		return "", "", errors.New("address exceeds 320 characters")
	case address[0] == '@':
		return "", "", errors.New("address cannot start with @ symbol")
	case address[0] == '.':
		return "", "", errors.New("address cannot start with a period")
	}

	var buf strings.Builder
	prev := byte('.')
	escaped, quoted := false, false
scan:
	for i := 0; i < len(address); i++ {
		c := address[i]
		if c > 127 {
			return "", "", errors.New("characters outside of US-ASCII range not permitted")
		}
		if escaped {
			buf.WriteByte(c)
			escaped = false
			prev = c
			continue
		}
		switch {
		case c == '\\':
			escaped = true
		case c == '"':
			switch {
			case quoted:
				quoted = false
			case i == 0:
				quoted = true
			default:
				return "", "", errors.New("quoted string can only begin at start of address")
			}
		case quoted:
			buf.WriteByte(c)
		case c == '@':
			if i > 128 {
				return "", "", errors.New("local part must not exceed 128 characters")
			}
			if prev == '.' {
				return "", "", errors.New("local part cannot end with a period")
			}
			domain = address[i+1:]
			break scan
		case c == '.':
			if prev == '.' {
				return "", "", errors.New("sequence of periods is not permitted")
			}
			buf.WriteByte(c)
		case isAlphaNum(c) || strings.IndexByte(atextSpecials, c) >= 0:
			buf.WriteByte(c)
		default:
			return "", "", fmt.Errorf("character %q must be quoted", c)
		}
		prev = c
	}
	if escaped {
		return "", "", errors.New("cannot end address with unterminated quoted-pair")
	}
	if quoted {
		return "", "", errors.New("cannot end address with unterminated string quote")
	}
	return buf.String(), domain, nil
}

func isAlphaNum(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}
