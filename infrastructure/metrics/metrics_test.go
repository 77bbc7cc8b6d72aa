package metrics

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"oeb_automation/application/download"
	"oeb_automation/application/locator"
	"oeb_automation/domain/entities"
	"oeb_automation/infrastructure/browser"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCollectors(t *testing.T) (*Collectors, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)
	return c, reg
}

func TestNew_DuplicateRegistration(t *testing.T) {
	_, reg := newCollectors(t)
	_, err := New(reg)
	assert.Error(t, err)
}

func TestLocatorResolved(t *testing.T) {
	c, _ := newCollectors(t)

	c.LocatorResolved("css(a)", 1, nil)
	c.LocatorResolved("css(a)", 3, nil)
	c.LocatorResolved("css(a)", 5, entities.Stale(errors.New("detached")))
	c.LocatorResolved("css(a)", 1, entities.Ambiguous("two parents"))
	c.LocatorResolved("css(a)", 1, errors.New("invalid selector"))

	assert.Equal(t, float64(2), testutil.ToFloat64(c.LocatorEvaluations.WithLabelValues(StatusOK)))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.LocatorEvaluations.WithLabelValues(StatusStale)))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.LocatorEvaluations.WithLabelValues(StatusAmbiguous)))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.LocatorEvaluations.WithLabelValues(StatusError)))
	assert.Equal(t, float64(6), testutil.ToFloat64(c.StaleRetries))
}

func TestDownloadAwaited(t *testing.T) {
	c, reg := newCollectors(t)

	c.DownloadAwaited(`\.pdf$`, 300*time.Millisecond, nil)
	c.DownloadAwaited(`\.pdf$`, 5*time.Second, &entities.DownloadTimeoutError{Timeout: 5 * time.Second})

	expected := `
# HELP oeb_download_wait_seconds Time spent waiting for downloads by outcome
# TYPE oeb_download_wait_seconds histogram
oeb_download_wait_seconds_bucket{outcome="ok",le="0.1"} 0
oeb_download_wait_seconds_bucket{outcome="ok",le="0.25"} 0
oeb_download_wait_seconds_bucket{outcome="ok",le="0.5"} 1
oeb_download_wait_seconds_bucket{outcome="ok",le="1"} 1
oeb_download_wait_seconds_bucket{outcome="ok",le="2.5"} 1
oeb_download_wait_seconds_bucket{outcome="ok",le="5"} 1
oeb_download_wait_seconds_bucket{outcome="ok",le="10"} 1
oeb_download_wait_seconds_bucket{outcome="ok",le="25"} 1
oeb_download_wait_seconds_bucket{outcome="ok",le="+Inf"} 1
oeb_download_wait_seconds_sum{outcome="ok"} 0.3
oeb_download_wait_seconds_count{outcome="ok"} 1
oeb_download_wait_seconds_bucket{outcome="timeout",le="0.1"} 0
oeb_download_wait_seconds_bucket{outcome="timeout",le="0.25"} 0
oeb_download_wait_seconds_bucket{outcome="timeout",le="0.5"} 0
oeb_download_wait_seconds_bucket{outcome="timeout",le="1"} 0
oeb_download_wait_seconds_bucket{outcome="timeout",le="2.5"} 0
oeb_download_wait_seconds_bucket{outcome="timeout",le="5"} 1
oeb_download_wait_seconds_bucket{outcome="timeout",le="10"} 1
oeb_download_wait_seconds_bucket{outcome="timeout",le="25"} 1
oeb_download_wait_seconds_bucket{outcome="timeout",le="+Inf"} 1
oeb_download_wait_seconds_sum{outcome="timeout"} 5
oeb_download_wait_seconds_count{outcome="timeout"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "oeb_download_wait_seconds"))
}

func TestCollectors_AsObservers(t *testing.T) {
	c, _ := newCollectors(t)
	ctx := context.Background()
	logger := logrus.New()

	page, err := browser.SnapshotFromString(`<html><body><p>Foo</p></body></html>`)
	require.NoError(t, err)
	r := locator.NewResolver(logger, locator.WithObserver(c))
	_, err = r.All(ctx, browser.WithFaults(page, 2), locator.TagWithText("p", "Foo"))
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(c.LocatorEvaluations.WithLabelValues(StatusOK)))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.StaleRetries))

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/dl", 0755))
	require.NoError(t, afero.WriteFile(fs, "/dl/badge.pdf", []byte("%PDF"), 0644))
	w := download.NewWatcher(fs, logger, download.WithObserver(c))
	_, err = w.Wait(ctx, entities.DownloadExpectation{
		Directory: "/dl",
		Pattern:   regexp.MustCompile(`\.pdf$`),
		Timeout:   time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, testutil.CollectAndCount(c.DownloadWait))
}
