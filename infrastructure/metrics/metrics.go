// Package metrics exposes Prometheus instrumentation for locator evaluations
// and download waits.
package metrics

import (
	"errors"
	"time"

	"oeb_automation/domain/entities"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// Namespace is the Prometheus namespace for all suite metrics
	Namespace = "oeb"

	LabelStatus  = "status"
	LabelOutcome = "outcome"

	StatusOK        = "ok"
	StatusStale     = "stale"
	StatusAmbiguous = "ambiguous"
	StatusTimeout   = "timeout"
	StatusError     = "error"
)

// Collectors implements the locator and download observers
type Collectors struct {
	LocatorEvaluations *prometheus.CounterVec
	StaleRetries       prometheus.Counter
	DownloadWait       *prometheus.HistogramVec
}

// New - creates the collectors and registers them on reg
func New(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		LocatorEvaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "locator_evaluations_total",
				Help:      "Locator resolutions by final status",
			},
			[]string{LabelStatus},
		),
		StaleRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "locator_stale_retries_total",
				Help:      "Evaluations restarted after a stale element reference",
			},
		),
		DownloadWait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "download_wait_seconds",
				Help:      "Time spent waiting for downloads by outcome",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 25},
			},
			[]string{LabelOutcome},
		),
	}

	for _, collector := range []prometheus.Collector{c.LocatorEvaluations, c.StaleRetries, c.DownloadWait} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// LocatorResolved - counts the resolution and the stale attempts before it
func (c *Collectors) LocatorResolved(locator string, attempts int, err error) {
	if attempts > 1 {
		c.StaleRetries.Add(float64(attempts - 1))
	}
	c.LocatorEvaluations.WithLabelValues(status(err)).Inc()
}

// DownloadAwaited - observes the wait duration
func (c *Collectors) DownloadAwaited(pattern string, elapsed time.Duration, err error) {
	c.DownloadWait.WithLabelValues(status(err)).Observe(elapsed.Seconds())
}

func status(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case entities.IsStale(err):
		return StatusStale
	case errors.Is(err, entities.ErrAmbiguousResult):
		return StatusAmbiguous
	case errors.Is(err, entities.ErrDownloadTimeout):
		return StatusTimeout
	default:
		return StatusError
	}
}
