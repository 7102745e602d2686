package matching

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"jobcompass/internal/database"
	"jobcompass/internal/ingest"
	"jobcompass/internal/logger"
	"jobcompass/internal/match"
	"jobcompass/internal/store"
)

// Ingester fetches and persists fresh listings for a board.
type Ingester interface {
	Run(ctx context.Context, req ingest.Request) (*ingest.Report, error)
}

// Summary totals one profile's pipeline run.
type Summary struct {
	UserProfileID uint   `json:"user_profile_id"`
	IngestRunIDs  []uint `json:"ingest_run_ids"`
	Persisted     int    `json:"persisted"`
	Considered    int    `json:"considered"`
	Matched       int    `json:"matched"`
	Created       int    `json:"created"`
	Failures      int    `json:"failures"`
}

type Pipeline struct {
	store      *store.Store
	ingester   Ingester
	matcher    *BatchMatcher
	lifecycle  *match.Lifecycle
	maxResults int
	logger     *zap.Logger
}

func NewPipeline(st *store.Store, ingester Ingester, matcher *BatchMatcher, lifecycle *match.Lifecycle, maxResults int, log *zap.Logger) *Pipeline {
	return &Pipeline{
		store:      st,
		ingester:   ingester,
		matcher:    matcher,
		lifecycle:  lifecycle,
		maxResults: maxResults,
		logger:     logger.OrNop(log),
	}
}

// ProcessProfile ingests every active board with each active criteria of the profile,
// scores the returned listings the profile has no match for yet and stores the matches.
// Failures of a single board are logged and counted; the profile lookup and context
// cancellation abort the run.
func (p *Pipeline) ProcessProfile(ctx context.Context, profileID uint) (*Summary, error) {
	profile, err := p.store.Profiles.Get(ctx, profileID)
	if err != nil {
		return nil, err
	}
	log := p.logger.With(zap.Uint("user_profile_id", profile.ID))
	summary := &Summary{UserProfileID: profile.ID}

	criteria, err := p.store.Criteria.Active(ctx, profile.ID)
	if err != nil {
		return nil, err
	}
	if len(criteria) == 0 {
		log.Info("profile has no active search criteria")
		return summary, nil
	}
	boards, err := p.store.Boards.Active(ctx)
	if err != nil {
		return nil, err
	}

	for i := range criteria {
		c := criteria[i]
		for _, board := range boards {
			if err := p.processBoard(ctx, profile, &c, board, summary); err != nil {
				if ctx.Err() != nil {
					return summary, ctx.Err()
				}
				summary.Failures++
				log.Warn("board pipeline failed",
					zap.Uint("board_id", board.ID),
					zap.Uint("search_criteria_id", c.ID),
					zap.Error(err),
				)
			}
		}
	}

	log.Info("profile processed",
		zap.Int("persisted", summary.Persisted),
		zap.Int("matched", summary.Matched),
		zap.Int("created", summary.Created),
		zap.Int("failures", summary.Failures),
	)
	return summary, nil
}

func (p *Pipeline) processBoard(ctx context.Context, profile *database.UserProfile, c *database.SearchCriteria, board database.Board, summary *Summary) error {
	report, err := p.ingester.Run(ctx, ingest.Request{
		BoardID:    board.ID,
		CriteriaID: &c.ID,
		MaxResults: p.maxResults,
	})
	if err != nil {
		return err
	}
	summary.IngestRunIDs = append(summary.IngestRunIDs, report.Run.ID)
	summary.Persisted += len(report.Listings)

	unmatched, err := p.unmatched(ctx, profile.ID, report.Batch)
	if err != nil {
		return err
	}
	candidates := PreFilter(unmatched, *c)
	summary.Considered += len(candidates)
	scored, err := p.matcher.MatchAll(ctx, *profile, candidates, c)
	if err != nil {
		return err
	}

	for _, s := range scored {
		m := database.Match{
			UserProfileID:    profile.ID,
			ListingID:        s.Listing.ID,
			SearchCriteriaID: &c.ID,
		}
		s.Result.Apply(&m)
		p.lifecycle.Init(&m, match.StatusNew)
		created, err := p.store.Matches.Upsert(ctx, &m)
		if err != nil {
			return err
		}
		summary.Matched++
		if created {
			summary.Created++
		}
	}
	return nil
}

// unmatched drops the listings the profile already has a match for, whether or
// not this run inserted them.
func (p *Pipeline) unmatched(ctx context.Context, profileID uint, batch []database.Listing) ([]database.Listing, error) {
	ids := make([]uint, 0, len(batch))
	for _, l := range batch {
		ids = append(ids, l.ID)
	}
	matched, err := p.store.Matches.MatchedListingIDs(ctx, profileID, ids)
	if err != nil {
		return nil, err
	}
	out := make([]database.Listing, 0, len(batch))
	for _, l := range batch {
		if !matched[l.ID] {
			out = append(out, l)
		}
	}
	return out, nil
}

// ProcessAll runs ProcessProfile for every active profile in turn.
func (p *Pipeline) ProcessAll(ctx context.Context) ([]*Summary, error) {
	profiles, err := p.store.Profiles.Active(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Summary, 0, len(profiles))
	for _, profile := range profiles {
		summary, err := p.ProcessProfile(ctx, profile.ID)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return out, err
			}
			p.logger.Error("process profile failed", zap.Uint("user_profile_id", profile.ID), zap.Error(err))
			continue
		}
		out = append(out, summary)
	}
	return out, nil
}
