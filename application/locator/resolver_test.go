package locator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"oeb_automation/domain/entities"
	"oeb_automation/domain/interfaces"
	"oeb_automation/infrastructure/browser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu       sync.Mutex
	attempts []int
	errs     []error
}

func (o *recordingObserver) LocatorResolved(locator string, attempts int, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attempts = append(o.attempts, attempts)
	o.errs = append(o.errs, err)
}

type brokenPage struct {
	err   error
	calls int
}

func (p *brokenPage) QueryAll(ctx context.Context, selector string) ([]interfaces.Element, error) {
	p.calls++
	return nil, p.err
}

func TestResolver_RetriesStaleUpToBudget(t *testing.T) {
	ctx := context.Background()

	for faults := 0; faults < DefaultAttempts; faults++ {
		page := browser.WithFaults(newPage(t), faults)
		observer := &recordingObserver{}
		r := newResolver(WithObserver(observer))

		els, err := r.All(ctx, page, TagWithText("p", "Foo"))
		require.NoError(t, err, "faults=%d", faults)
		assert.Len(t, els, 2)
		assert.Equal(t, faults+1, page.Calls())
		assert.Equal(t, []int{faults + 1}, observer.attempts)
	}
}

func TestResolver_PropagatesStaleWhenExhausted(t *testing.T) {
	ctx := context.Background()
	page := browser.WithFaults(newPage(t), DefaultAttempts)
	observer := &recordingObserver{}
	r := newResolver(WithObserver(observer))

	els, err := r.All(ctx, page, ContainingText("div.card", "span", "Lernpfad erstellen"))
	assert.Nil(t, els)
	assert.True(t, entities.IsStale(err))
	assert.Equal(t, DefaultAttempts, page.Calls())
	require.Len(t, observer.errs, 1)
	assert.ErrorIs(t, observer.errs[0], entities.ErrStaleReference)
}

func TestResolver_WithAttempts(t *testing.T) {
	ctx := context.Background()

	r := newResolver(WithAttempts(2))
	assert.Equal(t, 2, r.Attempts())

	page := browser.WithFaults(newPage(t), 1)
	_, err := r.All(ctx, page, CSS("li"))
	require.NoError(t, err)

	page = browser.WithFaults(newPage(t), 2)
	_, err = r.All(ctx, page, CSS("li"))
	assert.ErrorIs(t, err, entities.ErrStaleReference)
	assert.Equal(t, 2, page.Calls())

	assert.Equal(t, DefaultAttempts, newResolver(WithAttempts(0)).Attempts())
}

func TestResolver_OtherErrorsAreNotRetried(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("invalid selector")
	page := &brokenPage{err: boom}

	_, err := newResolver().All(ctx, page, ContainingText("div[", "span", "x"))
	assert.ErrorIs(t, err, boom)
	assert.False(t, entities.IsStale(err))
	assert.Equal(t, 1, page.calls)
}

func TestResolver_Unique(t *testing.T) {
	ctx := context.Background()
	page := newPage(t)
	r := newResolver()

	el, err := r.Unique(ctx, page, TagWithText("li", "E"))
	require.NoError(t, err)
	assert.Equal(t, []string{"E"}, texts(t, []interfaces.Element{el}))

	_, err = r.Unique(ctx, page, CSS("#missing"))
	assert.ErrorIs(t, err, entities.ErrNotFound)

	_, err = r.Unique(ctx, page, CSS("div.card"))
	assert.ErrorIs(t, err, entities.ErrAmbiguousResult)

	count, err := r.Count(ctx, page, CSS("div.card"))
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestResolver_SnapshotSelectorError(t *testing.T) {
	_, err := newResolver().All(context.Background(), newPage(t), CSS("div[["))
	require.Error(t, err)
	assert.False(t, entities.IsStale(err))
}
