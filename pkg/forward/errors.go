package forward

import (
	"errors"
	"fmt"
	"strings"
)

// AttemptError records one failed delivery.
type AttemptError struct {
	Address string
	Class   Class
	Err     error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("%s: %v", e.Address, e.Err)
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}

// Error is returned when no group delivered, at least one failed recoverably and none failed
// permanently, so the whole message should be retried later.
type Error struct {
	// Groups holds the result of every destination group.
	Groups []*GroupResult
}

func (e *Error) Error() string {
	failed := 0
	var reasons []string
	for _, g := range e.Groups {
		if g.Delivered != "" {
			continue
		}
		failed++
		for _, f := range g.Failures {
			reasons = append(reasons, f.Error())
		}
	}
	return fmt.Sprintf("forwarding incomplete, %d of %d destination groups undelivered: %s",
		failed, len(e.Groups), strings.Join(reasons, "; "))
}

// Temporary signals the transport that delivery of the message should be retried.
func (e *Error) Temporary() bool {
	return true
}

// Unwrap returns every recorded attempt error.
func (e *Error) Unwrap() []error {
	var errs []error
	for _, g := range e.Groups {
		for _, f := range g.Failures {
			errs = append(errs, f)
		}
	}
	return errs
}

// TemporaryErr is implemented by errors that know whether they are worth retrying.
type TemporaryErr interface {
	Temporary() bool
}

// IsTemporary returns true if err, or an error it wraps, has a Temporary method returning true.
func IsTemporary(err error) bool {
	var temp TemporaryErr
	if errors.As(err, &temp) {
		return temp.Temporary()
	}
	return false
}
