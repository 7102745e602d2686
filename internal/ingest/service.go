// Package ingest pulls listings from search providers into the store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"jobcompass/internal/database"
	"jobcompass/internal/errcode"
	"jobcompass/internal/listing"
	"jobcompass/internal/logger"
	"jobcompass/internal/metrics"
	"jobcompass/internal/search"
	"jobcompass/internal/storage"
	"jobcompass/internal/store"
)

const defaultMaxResults = 10

// Archiver keeps a copy of every raw provider batch.
type Archiver interface {
	ArchiveJSON(ctx context.Context, key string, v any) error
}

// Request selects the board and the query source of one run.
// Query overrides the text built from the criteria when both are set.
type Request struct {
	BoardID    uint   `json:"board_id"`
	CriteriaID *uint  `json:"search_criteria_id,omitempty"`
	Query      string `json:"query,omitempty"`
	MaxResults int    `json:"max_results,omitempty"`
}

// Report is the outcome of one run.
type Report struct {
	Run *database.IngestRun `json:"run"`
	// Listings holds the rows this run inserted.
	Listings []database.Listing `json:"listings"`
	// Batch holds every live stored listing of the board the search returned,
	// including the ones an earlier run already persisted.
	Batch []database.Listing `json:"-"`
}

// PreviewRequest runs a search without a board or persistence.
type PreviewRequest struct {
	Type       string
	Query      listing.Query
	RawQuery   string
	Domains    []string
	MaxResults int
}

// Preview is a normalized, batch-deduplicated result set.
type Preview struct {
	Query      string             `json:"query"`
	Provider   string             `json:"provider"`
	Fetched    int                `json:"fetched"`
	Skipped    int                `json:"skipped"`
	Duplicates int                `json:"duplicates"`
	Listings   []database.Listing `json:"listings"`
}

type Service struct {
	store    *store.Store
	registry *search.Registry
	archive  Archiver
	logger   *zap.Logger
	now      func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithArchiver stores raw batches; without it archiving is skipped.
func WithArchiver(a Archiver) Option {
	return func(s *Service) { s.archive = a }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(st *store.Store, registry *search.Registry, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:    st,
		registry: registry,
		logger:   logger.OrNop(log),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run searches the board's provider and persists the new listings.
func (s *Service) Run(ctx context.Context, req Request) (*Report, error) {
	board, err := s.store.Boards.Get(ctx, req.BoardID)
	if err != nil {
		return nil, err
	}

	var criteria *database.SearchCriteria
	if req.CriteriaID != nil {
		criteria, err = s.store.Criteria.Get(ctx, *req.CriteriaID)
		if err != nil {
			return nil, err
		}
	}

	q, text, err := resolveQuery(criteria, req.Query)
	if err != nil {
		return nil, err
	}

	provider, err := s.registry.For(board.Type)
	if err != nil {
		return nil, err
	}

	run := &database.IngestRun{
		BoardID:          board.ID,
		SearchCriteriaID: req.CriteriaID,
		Query:            text,
		Provider:         provider.Name(),
		Status:           database.IngestRunning,
		StartedAt:        s.now(),
	}
	if err := s.store.IngestRuns.Create(ctx, run); err != nil {
		return nil, err
	}

	log := s.logger.With(
		zap.Uint("board_id", board.ID),
		zap.Uint("ingest_run_id", run.ID),
		zap.String("provider", provider.Name()),
	)

	results, err := provider.Search(ctx, search.Request{
		Query:      text,
		Location:   q.Location,
		Domains:    boardDomains(board.URL),
		MaxResults: maxResults(req.MaxResults),
	})
	if err != nil {
		log.Error("provider search failed", zap.Error(err))
		s.fail(ctx, run, err)
		return nil, err
	}
	run.Fetched = len(results)

	if s.archive != nil && len(results) > 0 {
		key := storage.ArchiveKey(board.ID, uuid.NewString())
		if err := s.archive.ArchiveJSON(ctx, key, results); err != nil {
			log.Warn("archive raw batch failed", zap.String("key", key), zap.Error(err))
		} else {
			run.ArchiveKey = key
		}
	}

	candidates, skipped := s.normalize(results, q, log)
	run.Normalized = len(candidates)
	run.Skipped = skipped
	for i := range candidates {
		candidates[i].BoardID = board.ID
	}

	unique := dedupeBatch(candidates)
	urls := listingURLs(unique)
	fresh, err := s.dropExisting(ctx, board.ID, unique)
	if err != nil {
		s.fail(ctx, run, err)
		return nil, err
	}

	persisted, err := s.store.Listings.InsertNew(ctx, fresh)
	if err != nil {
		log.Error("persist listings failed", zap.Error(err))
		s.fail(ctx, run, err)
		return nil, err
	}
	run.Persisted = len(persisted)
	run.Duplicates = len(candidates) - len(persisted)

	batch, err := s.store.Listings.ByURLs(ctx, board.ID, urls)
	if err != nil {
		log.Warn("load stored batch failed", zap.Error(err))
		batch = persisted
	}

	finished := s.now()
	if err := s.store.Boards.MarkSearched(ctx, board.ID, finished); err != nil {
		log.Warn("stamp board last search failed", zap.Error(err))
	}
	run.Status = database.IngestCompleted
	run.FinishedAt = &finished
	if err := s.store.IngestRuns.Save(ctx, run); err != nil {
		return nil, err
	}

	metrics.ObserveIngest(metrics.OutcomePersisted, run.Persisted)
	metrics.ObserveIngest(metrics.OutcomeDuplicate, run.Duplicates)
	metrics.ObserveIngest(metrics.OutcomeSkipped, run.Skipped)

	log.Info("ingestion finished",
		zap.Int("fetched", run.Fetched),
		zap.Int("skipped", run.Skipped),
		zap.Int("duplicates", run.Duplicates),
		zap.Int("persisted", run.Persisted),
	)
	return &Report{Run: run, Listings: persisted, Batch: batch}, nil
}

// Preview normalizes a live search without touching the store.
func (s *Service) Preview(ctx context.Context, req PreviewRequest) (*Preview, error) {
	q := req.Query
	text := strings.TrimSpace(req.RawQuery)
	if text == "" {
		text = q.String()
	} else if q.Empty() {
		q.Keywords = text
	}
	if text == "" {
		return nil, errcode.Invalid("query", "The query field is required.")
	}

	provider, err := s.registry.For(req.Type)
	if err != nil {
		return nil, err
	}

	results, err := provider.Search(ctx, search.Request{
		Query:      text,
		Location:   q.Location,
		Domains:    req.Domains,
		MaxResults: maxResults(req.MaxResults),
	})
	if err != nil {
		return nil, err
	}

	log := s.logger.With(zap.String("provider", provider.Name()))
	candidates, skipped := s.normalize(results, q, log)
	unique := dedupeBatch(candidates)
	return &Preview{
		Query:      text,
		Provider:   provider.Name(),
		Fetched:    len(results),
		Skipped:    skipped,
		Duplicates: len(candidates) - len(unique),
		Listings:   unique,
	}, nil
}

func (s *Service) normalize(results []search.Result, q listing.Query, log *zap.Logger) ([]database.Listing, int) {
	now := s.now()
	out := make([]database.Listing, 0, len(results))
	skipped := 0
	for _, r := range results {
		l, err := listing.Normalize(r.Input(), q, now)
		if err != nil {
			skipped++
			log.Debug("skip provider result",
				zap.String("url", logger.TruncateForLog(r.URL, 200)),
				zap.Error(err),
			)
			continue
		}
		out = append(out, l)
	}
	return out, skipped
}

func listingURLs(listings []database.Listing) []string {
	urls := make([]string, 0, len(listings))
	for _, l := range listings {
		urls = append(urls, l.URL)
	}
	return urls
}

func (s *Service) dropExisting(ctx context.Context, boardID uint, candidates []database.Listing) ([]database.Listing, error) {
	existing, err := s.store.Listings.ExistingURLs(ctx, boardID, listingURLs(candidates))
	if err != nil {
		return nil, err
	}
	out := candidates[:0]
	for _, l := range candidates {
		if !existing[l.URL] {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *Service) fail(ctx context.Context, run *database.IngestRun, cause error) {
	finished := s.now()
	run.Status = database.IngestFailed
	run.Error = cause.Error()
	run.FinishedAt = &finished
	// the caller's context may already be done
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.store.IngestRuns.Save(saveCtx, run); err != nil {
		s.logger.Error("record failed ingest run", zap.Uint("ingest_run_id", run.ID), zap.Error(err))
	}
}

func resolveQuery(criteria *database.SearchCriteria, raw string) (listing.Query, string, error) {
	var q listing.Query
	if criteria != nil {
		q = listing.QueryFromCriteria(*criteria)
	}
	text := strings.TrimSpace(raw)
	switch {
	case text == "":
		text = q.String()
	case criteria == nil:
		q.Keywords = text
	}
	if text == "" {
		return q, "", errcode.Invalid("query", "The query field is required when no search criteria is given.")
	}
	return q, text, nil
}

// dedupeBatch keeps the first listing per canonical URL.
func dedupeBatch(listings []database.Listing) []database.Listing {
	seen := make(map[string]struct{}, len(listings))
	out := make([]database.Listing, 0, len(listings))
	for _, l := range listings {
		if _, ok := seen[l.URL]; ok {
			continue
		}
		seen[l.URL] = struct{}{}
		out = append(out, l)
	}
	return out
}

func boardDomains(rawURL string) []string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Hostname() == "" {
		return nil
	}
	return []string{strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")}
}

func maxResults(n int) int {
	if n <= 0 {
		return defaultMaxResults
	}
	return n
}

// IsPermanent reports whether retrying the same request cannot succeed.
func IsPermanent(err error) bool {
	return errcode.IsValidation(err) || errcode.IsNotFound(err) || errors.Is(err, search.ErrNotConfigured)
}

// String renders the request for logs.
func (r Request) String() string {
	criteria := "none"
	if r.CriteriaID != nil {
		criteria = fmt.Sprint(*r.CriteriaID)
	}
	return fmt.Sprintf("board=%d criteria=%s query=%q", r.BoardID, criteria, r.Query)
}
