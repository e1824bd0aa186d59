package probe

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hamed0406/scholarwatch/internal/domain"
)

const DefaultMaxSamples = 5

var errNoIndex = errors.New("no search index configured")

// PresenceChecker asks an Index whether a site has any indexed publications.
// It never returns an error: every failure becomes a SearchError outcome.
type PresenceChecker struct {
	Logger     *zap.Logger
	Index      Index
	Policy     Policy
	MaxSamples int
	Pacer      Pacer
}

func NewPresenceChecker(logger *zap.Logger, idx Index, policy Policy, maxSamples int, pacer Pacer) *PresenceChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxSamples < 1 {
		maxSamples = DefaultMaxSamples
	}
	if pacer == nil {
		pacer = NoPacer
	}
	return &PresenceChecker{
		Logger:     logger,
		Index:      idx,
		Policy:     policy,
		MaxSamples: maxSamples,
		Pacer:      pacer,
	}
}

// Limit is the number of records a check will draw at most.
func (c *PresenceChecker) Limit() int {
	if c.Policy == StopAtFirst || c.MaxSamples < 1 {
		return 1
	}
	return c.MaxSamples
}

// Check runs a single query attempt for site. There is no retry.
func (c *PresenceChecker) Check(ctx context.Context, site domain.Site) (out Outcome) {
	query := Query(site)
	limit := c.Limit()

	defer func() {
		if r := recover(); r != nil {
			out = c.fail(site, query, fmt.Errorf("index panicked: %v", r))
		}
	}()

	if c.Index == nil {
		return c.fail(site, query, errNoIndex)
	}

	var records []domain.Publication
	for pub, err := range c.Index.Search(ctx, query) {
		if err != nil {
			return c.fail(site, query, err)
		}
		records = append(records, pub)
		if len(records) >= limit {
			break
		}
		// records is non-empty here, so what was drawn still counts.
		if err := c.Pacer.Wait(ctx); err != nil {
			c.Logger.Warn("presence_pacing_stopped",
				zap.String("site", string(site.ID)),
				zap.Int("samples", len(records)),
				zap.Error(err),
			)
			break
		}
	}

	if len(records) == 0 {
		c.Logger.Info("presence_absent",
			zap.String("site", string(site.ID)),
			zap.String("query", query),
		)
		return Outcome{Kind: Absent}
	}
	c.Logger.Info("presence_found",
		zap.String("site", string(site.ID)),
		zap.String("query", query),
		zap.Int("samples", len(records)),
		zap.String("first_title", records[0].Title()),
	)
	return Outcome{Kind: Found, Records: records}
}

func (c *PresenceChecker) fail(site domain.Site, query string, err error) Outcome {
	c.Logger.Warn("presence_search_failed",
		zap.String("site", string(site.ID)),
		zap.String("query", query),
		zap.Error(err),
	)
	return Outcome{Kind: SearchError, Err: err}
}
