// Package forward delivers a message to groups of redundant destinations and decides whether a
// failed delivery is worth retrying.
package forward

import (
	"context"
	"time"

	"github.com/inbucket/mailroute/pkg/resolve"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Headers are added to the message for one forwarding phase.
type Headers map[string]string

// Deliverer hands the message to a single destination address.  Deliver is called concurrently
// for different groups.
type Deliverer interface {
	Deliver(ctx context.Context, address string, headers Headers) error
}

// DeliverFunc adapts a function to the Deliverer interface.
type DeliverFunc func(ctx context.Context, address string, headers Headers) error

// Deliver calls f.
func (f DeliverFunc) Deliver(ctx context.Context, address string, headers Headers) error {
	return f(ctx, address, headers)
}

// GroupResult is the outcome of delivering to one group of redundant addresses.
type GroupResult struct {
	Addresses []string
	// Delivered is the address that accepted the message, empty if none did.
	Delivered string
	// Unverified counts attempts refused because the destination was not verified.
	Unverified int
	// Failures holds every failed attempt in order, including unverified ones.
	Failures []*AttemptError
}

// Succeeded returns true if an address of the group accepted the message.
func (g *GroupResult) Succeeded() bool {
	return g.Delivered != ""
}

// Unrecoverable returns true if any attempt in the group failed permanently.
func (g *GroupResult) Unrecoverable() bool {
	for _, f := range g.Failures {
		if f.Class == Unrecoverable {
			return true
		}
	}
	return false
}

// Recoverable returns true if any attempt in the group failed in a way that may clear up.
// Unverified destinations do not count: retrying cannot verify them.
func (g *GroupResult) Recoverable() bool {
	for _, f := range g.Failures {
		if f.Class == Recoverable {
			return true
		}
	}
	return false
}

// Acceptable returns true if the group delivered, or only failed in ways that may clear up.
func (g *GroupResult) Acceptable() bool {
	return g.Succeeded() || !g.Unrecoverable()
}

// Engine forwards messages to destination groups.  Groups are delivered concurrently; the
// addresses of a group are tried in order until one accepts the message.
type Engine struct {
	Classifier *Classifier
	// Retries is the number of extra rounds for groups that failed only recoverably.
	Retries int
	// RetryDelay is the pause before each extra round.
	RetryDelay time.Duration

	logger zerolog.Logger
}

// NewEngine returns an Engine using the classification and retry settings of p.
func NewEngine(p *resolve.Policy, logger zerolog.Logger) *Engine {
	return &Engine{
		Classifier: NewClassifier(p),
		Retries:    p.ForwardRetries,
		RetryDelay: p.ForwardRetryDelay,
		logger:     logger.With().Str("module", "forward").Logger(),
	}
}

// AttemptGroup delivers to the addresses of group in order, stopping at the first success.
func (e *Engine) AttemptGroup(
	ctx context.Context,
	d Deliverer,
	group []string,
	headers Headers,
) *GroupResult {
	result := &GroupResult{Addresses: group}
	e.attempt(ctx, d, result, headers)
	return result
}

// Forward delivers to every group and returns the addresses that accepted the message.
//
// Once any group delivered, the delivered addresses are returned without error so the message
// is not sent to them twice.  With nothing delivered, an error is returned only when some group
// failed recoverably and none failed permanently: the whole message should be retried later.
// When groups holds a single address, its own delivery error is returned rather than an *Error.
// Otherwise an empty result tells the caller to move on to its next option.  No groups means
// nothing to do.
func (e *Engine) Forward(
	ctx context.Context,
	d Deliverer,
	groups [][]string,
	headers Headers,
) ([]string, error) {
	if len(groups) == 0 {
		return nil, nil
	}
	start := time.Now()
	defer func() {
		forwardDuration.Observe(time.Since(start).Seconds())
	}()

	results := make([]*GroupResult, len(groups))
	for i, g := range groups {
		results[i] = &GroupResult{Addresses: g}
	}
	for round := 0; ; round++ {
		e.round(ctx, d, results, headers)
		if round >= e.Retries || !anyPending(results) {
			break
		}
		e.logger.Debug().Int("round", round+1).Dur("delay", e.RetryDelay).
			Msg("Retrying undelivered destination groups")
		if !sleep(ctx, e.RetryDelay) {
			e.logger.Debug().Err(ctx.Err()).Msg("Retry abandoned")
			break
		}
	}

	return e.outcome(results)
}

// round attempts every group that is neither delivered nor permanently failed.
func (e *Engine) round(ctx context.Context, d Deliverer, results []*GroupResult, headers Headers) {
	var eg errgroup.Group
	for _, r := range results {
		if !pending(r) {
			continue
		}
		eg.Go(func() error {
			e.attempt(ctx, d, r, headers)
			return nil
		})
	}
	_ = eg.Wait()
}

func (e *Engine) attempt(ctx context.Context, d Deliverer, r *GroupResult, headers Headers) {
	classifier := e.Classifier
	if classifier == nil {
		classifier = &Classifier{}
	}
	for _, addr := range r.Addresses {
		err := d.Deliver(ctx, addr, headers)
		if err == nil {
			deliveryAttempts.WithLabelValues("delivered").Inc()
			e.logger.Debug().Str("destination", addr).Msg("Delivered")
			r.Delivered = addr
			return
		}
		class := classifier.ClassifyError(err)
		deliveryAttempts.WithLabelValues(class.String()).Inc()
		if class == Unverified {
			r.Unverified++
		}
		r.Failures = append(r.Failures, &AttemptError{Address: addr, Class: class, Err: err})
		e.logger.Warn().Str("destination", addr).Stringer("class", class).Err(err).
			Msg("Delivery failed")
	}
}

func (e *Engine) outcome(results []*GroupResult) ([]string, error) {
	var delivered []string
	undelivered := 0
	acceptable, recoverable := true, false
	for _, r := range results {
		if r.Succeeded() {
			delivered = append(delivered, r.Delivered)
			continue
		}
		undelivered++
		if !r.Acceptable() {
			acceptable = false
		}
		if r.Recoverable() {
			recoverable = true
		}
	}
	if undelivered == 0 {
		return delivered, nil
	}
	if len(delivered) > 0 {
		e.logger.Warn().Strs("delivered", delivered).Int("undelivered", undelivered).
			Msg("Forwarded to some destination groups only")
		return delivered, nil
	}
	if !acceptable || !recoverable {
		return nil, nil
	}

	if len(results) == 1 && len(results[0].Addresses) == 1 && len(results[0].Failures) > 0 {
		failures := results[0].Failures
		return nil, failures[len(failures)-1].Err
	}
	return nil, &Error{Groups: results}
}

// pending reports whether another round could deliver to r.
func pending(r *GroupResult) bool {
	if r.Succeeded() || r.Unrecoverable() {
		return false
	}
	return len(r.Failures) == 0 || r.Recoverable()
}

func anyPending(results []*GroupResult) bool {
	for _, r := range results {
		if pending(r) {
			return true
		}
	}
	return false
}

// sleep waits for d, returning false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
