package matching

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"jobcompass/internal/ai"
	"jobcompass/internal/database"
	"jobcompass/internal/logger"
)

// Scorer rates one listing for a profile.
type Scorer interface {
	Score(ctx context.Context, l database.Listing, p database.UserProfile, c *database.SearchCriteria) (*ai.MatchResult, error)
}

// Scored pairs a listing with its analysis.
type Scored struct {
	Listing database.Listing
	Result  *ai.MatchResult
}

type BatchMatcher struct {
	scorer Scorer
	logger *zap.Logger
}

func NewBatchMatcher(scorer Scorer, log *zap.Logger) *BatchMatcher {
	return &BatchMatcher{scorer: scorer, logger: logger.OrNop(log)}
}

// MatchAll scores listings one at a time. Listings that fail to score are logged and
// left out; the rest come back best first.
func (b *BatchMatcher) MatchAll(ctx context.Context, p database.UserProfile, listings []database.Listing, c *database.SearchCriteria) ([]Scored, error) {
	out := make([]Scored, 0, len(listings))
	for _, l := range listings {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, err := b.scorer.Score(ctx, l, p, c)
		if err != nil {
			b.logger.Warn("skip listing that failed to score",
				zap.Uint("listing_id", l.ID),
				zap.Uint("user_profile_id", p.ID),
				zap.Error(err),
			)
			continue
		}
		out = append(out, Scored{Listing: l, Result: res})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Result.OverallScore > out[j].Result.OverallScore
	})
	return out, nil
}
