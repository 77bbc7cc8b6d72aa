package locator

import (
	"context"
	"fmt"

	"oeb_automation/domain/entities"
	"oeb_automation/domain/interfaces"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// DefaultAttempts is the number of evaluations tried before a stale
// reference is surfaced to the caller
const DefaultAttempts = 5

// Observer receives the outcome of every resolution
type Observer interface {
	LocatorResolved(locator string, attempts int, err error)
}

// Resolver evaluates locators against a page. An evaluation that runs into a
// stale element reference is restarted from scratch, up to a fixed number of
// attempts. Every other failure is returned as is.
type Resolver struct {
	logger   *logrus.Logger
	attempts int
	observer Observer
}

// Option configures a Resolver
type Option func(*Resolver)

// WithAttempts sets the attempt budget. Values below one are ignored.
func WithAttempts(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.attempts = n
		}
	}
}

// WithObserver reports every resolution to o
func WithObserver(o Observer) Option {
	return func(r *Resolver) {
		r.observer = o
	}
}

// NewResolver - creates new resolver
func NewResolver(logger *logrus.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	r := &Resolver{
		logger:   logger,
		attempts: DefaultAttempts,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Attempts returns the attempt budget
func (r *Resolver) Attempts() int {
	return r.attempts
}

// All resolves loc to every matching element. An empty result is not an
// error: the page may simply not have rendered the element yet.
func (r *Resolver) All(ctx context.Context, page interfaces.Page, loc Locator) ([]interfaces.Element, error) {
	var result []interfaces.Element
	attempt := 0

	operation := func() error {
		attempt++
		els, err := loc.evaluate(ctx, page)
		if err == nil {
			result = els
			return nil
		}
		if !entities.IsStale(err) {
			return backoff.Permanent(err)
		}
		r.logger.WithFields(logrus.Fields{
			"locator": loc.String(),
			"attempt": attempt,
		}).Debugf("Stale reference during evaluation: %v", err)
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(r.attempts-1)), ctx)
	err := backoff.Retry(operation, policy)

	if err != nil && entities.IsStale(err) {
		r.logger.WithFields(logrus.Fields{
			"locator":  loc.String(),
			"attempts": attempt,
		}).Warn("Giving up after repeated stale references")
	}
	if r.observer != nil {
		r.observer.LocatorResolved(loc.String(), attempt, err)
	}
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = []interfaces.Element{}
	}
	return result, nil
}

// Unique resolves loc to exactly one element
func (r *Resolver) Unique(ctx context.Context, page interfaces.Page, loc Locator) (interfaces.Element, error) {
	els, err := r.All(ctx, page, loc)
	if err != nil {
		return nil, err
	}
	switch len(els) {
	case 0:
		return nil, fmt.Errorf("%w: %s", entities.ErrNotFound, loc)
	case 1:
		return els[0], nil
	default:
		return nil, entities.Ambiguous("%s resolved to %d elements, expected one", loc, len(els))
	}
}

// Count returns the number of elements loc currently resolves to
func (r *Resolver) Count(ctx context.Context, page interfaces.Page, loc Locator) (int, error) {
	els, err := r.All(ctx, page, loc)
	if err != nil {
		return 0, err
	}
	return len(els), nil
}
