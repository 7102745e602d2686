package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"jobcompass/internal/database"
	"jobcompass/internal/database/dbtest"
	"jobcompass/internal/errcode"
	"jobcompass/internal/listing"
	"jobcompass/internal/search"
	"jobcompass/internal/store"
)

type fakeProvider struct {
	results  []search.Result
	err      error
	requests []search.Request
}

func (f *fakeProvider) Name() string     { return search.TypeTavily }
func (f *fakeProvider) Configured() bool { return true }

func (f *fakeProvider) Search(_ context.Context, req search.Request) ([]search.Result, error) {
	f.requests = append(f.requests, req)
	return f.results, f.err
}

type recordingArchiver struct {
	keys []string
	err  error
}

func (a *recordingArchiver) ArchiveJSON(_ context.Context, key string, _ any) error {
	a.keys = append(a.keys, key)
	return a.err
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func batch() []search.Result {
	return []search.Result{
		{Title: "Senior Go Engineer at Acme", URL: "https://jobs.example.com/1", Content: "Remote role building Go services."},
		{Title: "Go Engineer at Acme (repost)", URL: "https://JOBS.example.com/1/?utm_source=feed", Content: "Same job again."},
		{Title: "Backend Developer at Initech", URL: "https://jobs.example.com/2", Content: "PostgreSQL and Go."},
		{Title: "Platform Engineer at Globex", URL: "https://jobs.example.com/3", Content: "Kubernetes."},
		{Title: "SRE at Umbrella", URL: "https://jobs.example.com/4", Content: "On call."},
	}
}

func setup(t *testing.T, provider *fakeProvider, opts ...Option) (*Service, *store.Store, *database.Board) {
	t.Helper()
	st := store.New(dbtest.Open(t))
	board := &database.Board{Name: "Example", URL: "https://www.Example.com/jobs", Type: "tavily", IsActive: true, SearchFrequencyHours: 24}
	if err := st.Boards.Create(context.Background(), board); err != nil {
		t.Fatalf("create board: %v", err)
	}
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewService(st, search.NewRegistry(provider), nil, opts...), st, board
}

func TestRunPersistsUniqueListings(t *testing.T) {
	provider := &fakeProvider{results: batch()}
	archiver := &recordingArchiver{}
	svc, st, board := setup(t, provider, WithArchiver(archiver))
	ctx := context.Background()

	report, err := svc.Run(ctx, Request{BoardID: board.ID, Query: "golang engineer", MaxResults: 5})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Listings) != 4 {
		t.Fatalf("expected 4 persisted listings, got %d", len(report.Listings))
	}
	run := report.Run
	if run.Status != database.IngestCompleted || run.Fetched != 5 || run.Persisted != 4 || run.Duplicates != 1 || run.Skipped != 0 {
		t.Fatalf("unexpected run %+v", run)
	}
	if len(archiver.keys) != 1 || run.ArchiveKey != archiver.keys[0] || !strings.HasPrefix(run.ArchiveKey, "ingest-runs/") {
		t.Fatalf("archive key not recorded: %v / %q", archiver.keys, run.ArchiveKey)
	}

	req := provider.requests[0]
	if req.Query != "golang engineer" || req.MaxResults != 5 || len(req.Domains) != 1 || req.Domains[0] != "example.com" {
		t.Fatalf("unexpected provider request %+v", req)
	}

	var count int64
	if err := st.DB.Model(&database.Listing{}).Where("board_id = ?", board.ID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 4 {
		t.Fatalf("expected 4 rows, got %d", count)
	}

	reloaded, err := st.Boards.Get(ctx, board.ID)
	if err != nil {
		t.Fatalf("get board: %v", err)
	}
	if reloaded.LastSearchedAt == nil || !reloaded.LastSearchedAt.Equal(fixedNow) {
		t.Fatalf("board not stamped: %v", reloaded.LastSearchedAt)
	}

	again, err := svc.Run(ctx, Request{BoardID: board.ID, Query: "golang engineer"})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if again.Run.Persisted != 0 || again.Run.Duplicates != 5 {
		t.Fatalf("second run must only find duplicates, got %+v", again.Run)
	}
	if len(again.Listings) != 0 || len(again.Batch) != 4 {
		t.Fatalf("second run must return the stored batch, got %d new / %d batch", len(again.Listings), len(again.Batch))
	}
	for _, l := range again.Batch {
		if l.ID == 0 || l.BoardID != board.ID {
			t.Fatalf("batch listing not loaded from the store: %+v", l)
		}
	}
}

func TestRunSkipsUnusableResults(t *testing.T) {
	provider := &fakeProvider{results: []search.Result{
		{Title: "", URL: "https://jobs.example.com/9"},
		{Title: "No link", URL: "mailto:jobs@example.com"},
		{Title: "Go Developer", URL: "https://jobs.example.com/10"},
	}}
	archiver := &recordingArchiver{err: errors.New("bucket offline")}
	svc, _, board := setup(t, provider, WithArchiver(archiver))

	report, err := svc.Run(context.Background(), Request{BoardID: board.ID, Query: "go"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Run.Skipped != 2 || report.Run.Persisted != 1 {
		t.Fatalf("unexpected run %+v", report.Run)
	}
	if report.Run.ArchiveKey != "" {
		t.Fatalf("failed archive must not be recorded")
	}
}

func TestRunUsesCriteria(t *testing.T) {
	provider := &fakeProvider{results: batch()[:1]}
	svc, st, board := setup(t, provider)
	ctx := context.Background()

	profile := &database.UserProfile{Name: "Ada", Email: "ada@example.com", IsActive: true}
	if err := st.Profiles.Create(ctx, profile); err != nil {
		t.Fatalf("create profile: %v", err)
	}
	criteria := &database.SearchCriteria{UserProfileID: profile.ID, Name: "go", Keywords: []string{"golang"}, Locations: []string{"Berlin"}, JobType: "full-time", IsActive: true}
	if err := st.Criteria.Create(ctx, criteria); err != nil {
		t.Fatalf("create criteria: %v", err)
	}

	report, err := svc.Run(ctx, Request{BoardID: board.ID, CriteriaID: &criteria.ID})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if provider.requests[0].Query != "golang Berlin full-time job" || provider.requests[0].Location != "Berlin" {
		t.Fatalf("unexpected request %+v", provider.requests[0])
	}
	if got := report.Listings[0]; got.Location != "Berlin" || got.JobType != "full-time" {
		t.Fatalf("criteria must drive normalization, got %q %q", got.Location, got.JobType)
	}
}

func TestRunErrors(t *testing.T) {
	provider := &fakeProvider{err: errcode.Upstream("Search request failed with status 500", nil)}
	svc, st, board := setup(t, provider)
	ctx := context.Background()

	if _, err := svc.Run(ctx, Request{BoardID: board.ID}); !errcode.IsValidation(err) {
		t.Fatalf("empty query must be a validation error, got %v", err)
	}
	if _, err := svc.Run(ctx, Request{BoardID: 999, Query: "go"}); !errcode.IsNotFound(err) {
		t.Fatalf("unknown board must be not found, got %v", err)
	}

	if _, err := svc.Run(ctx, Request{BoardID: board.ID, Query: "go"}); !errcode.IsUpstream(err) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	runs, _, err := st.IngestRuns.List(ctx, store.IngestRunFilter{BoardID: board.ID}, store.NewPage(1, 10, 10))
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != database.IngestFailed || runs[0].Error == "" || runs[0].FinishedAt == nil {
		t.Fatalf("failed run not recorded: %+v", runs)
	}
}

func TestPreview(t *testing.T) {
	provider := &fakeProvider{results: batch()}
	svc, st, _ := setup(t, provider)

	preview, err := svc.Preview(context.Background(), PreviewRequest{
		Type:  "TAVILY",
		Query: listing.Query{Keywords: "go", Location: "Remote"},
	})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if preview.Fetched != 5 || preview.Duplicates != 1 || len(preview.Listings) != 4 || preview.Query != "go Remote" {
		t.Fatalf("unexpected preview %+v", preview)
	}

	var count int64
	st.DB.Model(&database.Listing{}).Count(&count)
	if count != 0 {
		t.Fatalf("preview must not persist, found %d rows", count)
	}

	if _, err := svc.Preview(context.Background(), PreviewRequest{Type: "monster", RawQuery: "go"}); !errcode.IsValidation(err) {
		t.Fatalf("unknown provider type must be a validation error, got %v", err)
	}
}

func TestIsPermanent(t *testing.T) {
	if !IsPermanent(errcode.NotFound("Board")) || !IsPermanent(search.ErrNotConfigured) {
		t.Fatalf("not found and unconfigured errors are permanent")
	}
	if IsPermanent(errcode.Upstream("timeout", nil)) {
		t.Fatalf("upstream errors are retryable")
	}
}
