// Package resolve merges built-in defaults, the environment, and the override store into the
// effective routing policy for a message.
package resolve

import (
	"regexp"
	"time"

	"github.com/inbucket/mailroute/pkg/config"
)

// Keys of globally stored configuration.
const (
	KeyUsers                = "@USERS"
	KeySubaddresses         = "@SUBADDRESSES"
	KeyDestination          = "@DESTINATION"
	KeyRejectTreatment      = "@REJECT_TREATMENT"
	KeyAddressSeparator     = "@FORMAT_ADDRESS_SEPARATOR"
	KeyDestinationSeparator = "@FORMAT_DESTINATION_SEPARATOR"
	KeyLocalPartSeparator   = "@FORMAT_LOCAL_PART_SEPARATOR"
	KeyRejectSeparator      = "@FORMAT_REJECT_SEPARATOR"
	KeyValidEmailAddress    = "@FORMAT_VALID_EMAIL_ADDRESS_REGEXP"
	KeyCustomHeader         = "@CUSTOM_HEADER"
	KeyCustomHeaderPass     = "@CUSTOM_HEADER_PASS"
	KeyCustomHeaderFail     = "@CUSTOM_HEADER_FAIL"
)

// DefaultRejectReason is used when no configured reject treatment is a usable reason.
const DefaultRejectReason = "Invalid recipient"

// Defaults is the built-in layer, lowest in precedence.  Every field is set.
var Defaults = config.Routing{
	Users:                             config.String(""),
	Subaddresses:                      config.String("*"),
	Destination:                       config.String(""),
	RejectTreatment:                   config.String(DefaultRejectReason),
	FormatAddressSeparator:            config.String(","),
	FormatDestinationSeparator:        config.String(":"),
	FormatLocalPartSeparator:          config.String("+"),
	FormatRejectSeparator:             config.String(";"),
	FormatValidEmailAddressRegexp:     config.String(`(?i)^[a-z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?(?:\.[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?)+$`),
	CustomHeader:                      config.String("X-Mailroute-Forwarding"),
	CustomHeaderPass:                  config.String("PASS"),
	CustomHeaderFail:                  config.String("FAIL"),
	CustomHeaderValidRegexp:           config.String(`^X-[A-Za-z0-9-]+$`),
	UnverifiedDestinationErrorMessage: config.String("destination address not verified"),
	RecoverableErrorRegexp:            config.String(`(?i)temporar|try again|timed? ?out|internal error`),
	ForwardRetries:                    config.String("0"),
	ForwardRetryDelay:                 config.String("0s"),
	UseStoredAddressConfiguration:     config.String("true"),
	UseStoredFormatConfiguration:      config.String("false"),
	UseStoredHeaderConfiguration:      config.String("false"),
	UseStoredUserConfiguration:        config.String("true"),
}

// Policy is the effective routing configuration for one invocation.  It is not modified once
// resolved.
type Policy struct {
	// Address domain.
	Users           string
	Subaddresses    string
	Destination     string
	RejectTreatment string

	// EnvironmentRejectTreatment is the reject treatment set in the environment, ignoring the
	// store.  Empty when unset.
	EnvironmentRejectTreatment string

	// Format domain.
	AddressSeparator     string
	DestinationSeparator string
	LocalPartSeparator   string
	RejectSeparator      string
	ValidEmailAddress    *regexp.Regexp

	// Header domain.
	CustomHeader      string
	CustomHeaderPass  string
	CustomHeaderFail  string
	ValidCustomHeader *regexp.Regexp

	// Delivery error classification and retry.
	UnverifiedDestinationErrorMessage string
	RecoverableError                  *regexp.Regexp
	ForwardRetries                    int
	ForwardRetryDelay                 time.Duration

	// Store toggles per configuration domain.
	UseStoredAddress bool
	UseStoredFormat  bool
	UseStoredHeader  bool
	UseStoredUser    bool
}

// PassHeaders returns the headers stamped on accepted mail.
func (p *Policy) PassHeaders() map[string]string {
	return map[string]string{p.CustomHeader: p.CustomHeaderPass}
}

// FailHeaders returns the headers stamped on reject-forwarded mail.
func (p *Policy) FailHeaders() map[string]string {
	return map[string]string{p.CustomHeader: p.CustomHeaderFail}
}
