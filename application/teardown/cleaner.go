// Package teardown removes the badges test runs leave behind on the backend.
package teardown

import (
	"context"
	"errors"
	"fmt"

	"oeb_automation/infrastructure/api"

	"github.com/sirupsen/logrus"
)

// FixtureMarker is contained in the name of every badge a test run creates
const FixtureMarker = "automated"

// ErrResidue is returned when fixture badges survive the cleanup
var ErrResidue = errors.New("fixture badges left after teardown")

// Backend is the part of the REST client the cleaner needs
type Backend interface {
	RequestToken(ctx context.Context, username, password string) (*api.Token, error)
	FindBadges(ctx context.Context, token *api.Token, query string, contains bool) ([]api.Badge, error)
	FindAssertions(ctx context.Context, token *api.Token, badgeID string) ([]api.Assertion, error)
	RevokeAssertions(ctx context.Context, token *api.Token, assertions []api.Assertion) error
	DeleteBadge(ctx context.Context, token *api.Token, entityID string) error
}

// Report summarizes one cleanup
type Report struct {
	Badges     int
	Assertions int
	Residue    []string
}

// Cleaner deletes every fixture badge together with its assertions
type Cleaner struct {
	backend  Backend
	username string
	password string
	logger   *logrus.Logger
}

// NewCleaner - creates new cleaner authenticating as username
func NewCleaner(backend Backend, username, password string, logger *logrus.Logger) *Cleaner {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Cleaner{
		backend:  backend,
		username: username,
		password: password,
		logger:   logger,
	}
}

// Run - revokes the assertions of every fixture badge, deletes the badges and
// checks that none are left. Badges that fail are skipped so the rest still
// get removed; they surface as residue.
func (c *Cleaner) Run(ctx context.Context) (*Report, error) {
	token, err := c.backend.RequestToken(ctx, c.username, c.password)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate %s: %w", c.username, err)
	}

	badges, err := c.backend.FindBadges(ctx, token, FixtureMarker, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list fixture badges: %w", err)
	}
	c.logger.Infof("Tearing down %d fixture badges", len(badges))

	report := &Report{}
	for _, badge := range badges {
		log := c.logger.WithFields(logrus.Fields{"badge": badge.EntityID, "name": badge.Name})

		assertions, err := c.backend.FindAssertions(ctx, token, badge.EntityID)
		if err != nil {
			log.WithError(err).Warn("Failed to list assertions")
			continue
		}
		if err := c.backend.RevokeAssertions(ctx, token, assertions); err != nil {
			log.WithError(err).Warn("Failed to revoke assertions")
			continue
		}
		report.Assertions += len(assertions)

		if err := c.backend.DeleteBadge(ctx, token, badge.EntityID); err != nil {
			log.WithError(err).Warn("Failed to delete badge")
			continue
		}
		report.Badges++
		log.Debugf("Deleted badge with %d assertions", len(assertions))
	}

	if err := ctx.Err(); err != nil {
		return report, err
	}

	residue, err := c.backend.FindBadges(ctx, token, FixtureMarker, true)
	if err != nil {
		return report, fmt.Errorf("failed to check residue: %w", err)
	}
	for _, badge := range residue {
		report.Residue = append(report.Residue, badge.EntityID)
	}
	if len(report.Residue) > 0 {
		c.logger.WithField("residue", report.Residue).Error("Didn't succeed in deleting residue badges")
		return report, fmt.Errorf("%w: %d remaining", ErrResidue, len(report.Residue))
	}

	c.logger.Info("Teardown completed")
	return report, nil
}
