package forward

import (
	"regexp"

	"github.com/inbucket/mailroute/pkg/resolve"
)

// Class is the category of a failed delivery.
type Class int

const (
	// Unrecoverable failures will not succeed on retry.
	Unrecoverable Class = iota
	// Recoverable failures are transient; the message should be retried later.
	Recoverable
	// Unverified failures name a destination the platform has not confirmed ownership of.
	Unverified
)

func (c Class) String() string {
	switch c {
	case Recoverable:
		return "recoverable"
	case Unverified:
		return "unverified"
	default:
		return "unrecoverable"
	}
}

// Classifier sorts delivery failures by their message text.  This is the only coupling between
// the engine and the wording of the delivery backend's errors.
type Classifier struct {
	// UnverifiedMessage must equal the failure message exactly.
	UnverifiedMessage string
	// Recoverable is matched against the failure message.
	Recoverable *regexp.Regexp
}

// NewClassifier returns a Classifier using the patterns of p.
func NewClassifier(p *resolve.Policy) *Classifier {
	return &Classifier{
		UnverifiedMessage: p.UnverifiedDestinationErrorMessage,
		Recoverable:       p.RecoverableError,
	}
}

// Classify categorizes a delivery failure message.
func (c *Classifier) Classify(msg string) Class {
	if c.UnverifiedMessage != "" && msg == c.UnverifiedMessage {
		return Unverified
	}
	if c.Recoverable != nil && c.Recoverable.MatchString(msg) {
		return Recoverable
	}
	return Unrecoverable
}

// ClassifyError categorizes err by its message.
func (c *Classifier) ClassifyError(err error) Class {
	return c.Classify(err.Error())
}
