package teardown

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"oeb_automation/infrastructure/api"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend keeps badges in memory and can be told to fail on chosen ids
type fakeBackend struct {
	mu          sync.Mutex
	badges      []api.Badge
	assertions  map[string][]api.Assertion
	revoked     []string
	failRevoke  map[string]bool
	failDelete  map[string]bool
	tokenErr    error
	gotPassword string
}

func (f *fakeBackend) RequestToken(_ context.Context, _, password string) (*api.Token, error) {
	f.gotPassword = password
	if f.tokenErr != nil {
		return nil, f.tokenErr
	}
	return &api.Token{AccessToken: "t"}, nil
}

func (f *fakeBackend) FindBadges(_ context.Context, token *api.Token, query string, contains bool) ([]api.Badge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []api.Badge
	for _, b := range f.badges {
		if b.Name == query || (contains && strings.Contains(strings.ToLower(b.Name), query)) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBackend) FindAssertions(_ context.Context, _ *api.Token, badgeID string) ([]api.Assertion, error) {
	return f.assertions[badgeID], nil
}

func (f *fakeBackend) RevokeAssertions(_ context.Context, _ *api.Token, assertions []api.Assertion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range assertions {
		if f.failRevoke[a.EntityID] {
			return errors.New("revoke failed")
		}
		f.revoked = append(f.revoked, a.EntityID)
	}
	return nil
}

func (f *fakeBackend) DeleteBadge(_ context.Context, _ *api.Token, entityID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete[entityID] {
		return errors.New("delete failed")
	}
	kept := f.badges[:0]
	for _, b := range f.badges {
		if b.EntityID != entityID {
			kept = append(kept, b)
		}
	}
	f.badges = kept
	return nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newFake() *fakeBackend {
	return &fakeBackend{
		badges: []api.Badge{
			{EntityID: "b1", Name: "automated test title"},
			{EntityID: "b2", Name: "Automated test expired QR"},
			{EntityID: "b3", Name: "Keep me"},
		},
		assertions: map[string][]api.Assertion{
			"b1": {{EntityID: "a1"}, {EntityID: "a2"}},
			"b2": {{EntityID: "a3"}},
		},
		failRevoke: map[string]bool{},
		failDelete: map[string]bool{},
	}
}

func TestRun_RemovesFixtureBadges(t *testing.T) {
	fake := newFake()
	report, err := NewCleaner(fake, "user", "pw", quietLogger()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "pw", fake.gotPassword)
	assert.Equal(t, 2, report.Badges)
	assert.Equal(t, 3, report.Assertions)
	assert.Empty(t, report.Residue)
	assert.ElementsMatch(t, []string{"a1", "a2", "a3"}, fake.revoked)
	require.Len(t, fake.badges, 1)
	assert.Equal(t, "b3", fake.badges[0].EntityID)
}

func TestRun_NothingToDo(t *testing.T) {
	fake := &fakeBackend{badges: []api.Badge{{EntityID: "x", Name: "manual"}}}
	report, err := NewCleaner(fake, "user", "pw", quietLogger()).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Badges)
}

func TestRun_ResidueIsAnError(t *testing.T) {
	fake := newFake()
	fake.failRevoke["a3"] = true

	report, err := NewCleaner(fake, "user", "pw", quietLogger()).Run(context.Background())
	require.ErrorIs(t, err, ErrResidue)
	require.NotNil(t, report)

	// b1 is still removed although b2 failed
	assert.Equal(t, 1, report.Badges)
	assert.Equal(t, []string{"b2"}, report.Residue)
}

func TestRun_DeleteFailureLeavesResidue(t *testing.T) {
	fake := newFake()
	fake.failDelete["b1"] = true

	report, err := NewCleaner(fake, "user", "pw", quietLogger()).Run(context.Background())
	require.ErrorIs(t, err, ErrResidue)
	assert.Equal(t, []string{"b1"}, report.Residue)
	// assertions of b1 were revoked before the delete failed
	assert.Contains(t, fake.revoked, "a1")
}

func TestRun_AuthenticationFailure(t *testing.T) {
	fake := newFake()
	fake.tokenErr = &api.StatusError{StatusCode: 401}

	report, err := NewCleaner(fake, "user", "bad", quietLogger()).Run(context.Background())
	assert.Nil(t, report)
	var statusErr *api.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 401, statusErr.StatusCode)
	assert.Len(t, fake.badges, 3)
}

func TestRun_CancelledBeforeResidueCheck(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCleaner(newFake(), "user", "pw", quietLogger()).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
