package matching

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"jobcompass/internal/ai"
	"jobcompass/internal/database"
	"jobcompass/internal/database/dbtest"
	"jobcompass/internal/errcode"
	"jobcompass/internal/ingest"
	"jobcompass/internal/match"
	"jobcompass/internal/search"
	"jobcompass/internal/store"
)

type scriptedScorer struct {
	scores map[string]int
	fail   map[string]error
	calls  int
}

func (s *scriptedScorer) Score(_ context.Context, l database.Listing, _ database.UserProfile, _ *database.SearchCriteria) (*ai.MatchResult, error) {
	s.calls++
	if err := s.fail[l.Title]; err != nil {
		return nil, err
	}
	score, ok := s.scores[l.Title]
	if !ok {
		score = 50
	}
	return &ai.MatchResult{OverallScore: score, Strengths: []string{"fit"}}, nil
}

func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }

func TestPreFilter(t *testing.T) {
	t.Parallel()

	listings := []database.Listing{
		{Title: "keep", Location: "Berlin, Germany", JobType: "full-time"},
		{Title: "unknown fields", Location: ""},
		{Title: "wrong type", Location: "Berlin", JobType: "contract"},
		{Title: "wrong city", Location: "Paris"},
		{Title: "remote anywhere", Location: "Paris", IsRemote: true},
		{Title: "underpaid", Location: "Berlin", SalaryMin: floatPtr(30000), SalaryMax: floatPtr(40000)},
		{Title: "excluded skill", Location: "Berlin", Skills: []string{"PHP"}},
	}
	criteria := database.SearchCriteria{
		Locations:      []string{"berlin"},
		JobType:        "Full-Time",
		MinSalary:      floatPtr(50000),
		SkillsExcluded: []string{"php"},
	}

	got := PreFilter(listings, criteria)
	var titles []string
	for _, l := range got {
		titles = append(titles, l.Title)
	}
	if fmt.Sprint(titles) != "[keep unknown fields remote anywhere]" {
		t.Fatalf("PreFilter kept %v", titles)
	}

	remoteOnly := PreFilter(listings, database.SearchCriteria{IsRemote: boolPtr(true)})
	if len(remoteOnly) != 1 || remoteOnly[0].Title != "remote anywhere" {
		t.Fatalf("remote criteria kept %v", remoteOnly)
	}

	if len(PreFilter(listings, database.SearchCriteria{})) != len(listings) {
		t.Fatalf("empty criteria must keep everything")
	}
}

func TestMatchAllSkipsFailuresAndSorts(t *testing.T) {
	t.Parallel()

	scorer := &scriptedScorer{
		scores: map[string]int{"a": 40, "c": 90, "d": 65},
		fail:   map[string]error{"b": errcode.Parse("Failed to parse JSON response", nil)},
	}
	matcher := NewBatchMatcher(scorer, nil)
	listings := []database.Listing{{ID: 1, Title: "a"}, {ID: 2, Title: "b"}, {ID: 3, Title: "c"}, {ID: 4, Title: "d"}}

	scored, err := matcher.MatchAll(context.Background(), database.UserProfile{ID: 1}, listings, nil)
	if err != nil {
		t.Fatalf("MatchAll: %v", err)
	}
	if scorer.calls != 4 {
		t.Fatalf("every listing must be scored, got %d calls", scorer.calls)
	}
	if len(scored) != 3 {
		t.Fatalf("expected 3 results, got %d", len(scored))
	}
	for i, want := range []int{90, 65, 40} {
		if scored[i].Result.OverallScore != want {
			t.Fatalf("result %d score = %d, want %d", i, scored[i].Result.OverallScore, want)
		}
	}
}

func TestMatchAllStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	scorer := &scriptedScorer{}
	_, err := NewBatchMatcher(scorer, nil).MatchAll(ctx, database.UserProfile{}, []database.Listing{{Title: "a"}}, nil)
	if !errors.Is(err, context.Canceled) || scorer.calls != 0 {
		t.Fatalf("expected cancellation before scoring, got %v after %d calls", err, scorer.calls)
	}
}

type staticProvider struct {
	results []search.Result
}

func (p *staticProvider) Name() string     { return search.TypeTavily }
func (p *staticProvider) Configured() bool { return true }
func (p *staticProvider) Search(context.Context, search.Request) ([]search.Result, error) {
	return p.results, nil
}

func TestPipelineProcessProfile(t *testing.T) {
	ctx := context.Background()
	st := store.New(dbtest.Open(t))
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	board := &database.Board{Name: "Example", URL: "https://example.com", Type: "tavily", IsActive: true, SearchFrequencyHours: 24}
	if err := st.Boards.Create(ctx, board); err != nil {
		t.Fatalf("create board: %v", err)
	}
	profile := &database.UserProfile{Name: "Ada", Email: "ada@example.com", IsActive: true}
	if err := st.Profiles.Create(ctx, profile); err != nil {
		t.Fatalf("create profile: %v", err)
	}
	criteria := &database.SearchCriteria{UserProfileID: profile.ID, Name: "go", Keywords: []string{"golang"}, JobType: "full-time", IsActive: true, IsDefault: true}
	if err := st.Criteria.Create(ctx, criteria); err != nil {
		t.Fatalf("create criteria: %v", err)
	}

	provider := &staticProvider{results: []search.Result{
		{Title: "Go Engineer", URL: "https://example.com/jobs/1", Content: "Go services"},
		{Title: "Go Contractor", URL: "https://example.com/jobs/2", Content: "Go", Metadata: map[string]any{"job_type": "contract"}},
		{Title: "Platform Engineer", URL: "https://example.com/jobs/3", Content: "Kubernetes"},
	}}
	ingester := ingest.NewService(st, search.NewRegistry(provider), nil, ingest.WithClock(func() time.Time { return now }))
	scorer := &scriptedScorer{
		scores: map[string]int{"Go Engineer": 88},
		fail:   map[string]error{"Platform Engineer": errcode.Upstream("No response from Gemini API", nil)},
	}
	pipeline := NewPipeline(st, ingester, NewBatchMatcher(scorer, nil), match.NewLifecycle(func() time.Time { return now }), 10, nil)

	summary, err := pipeline.ProcessProfile(ctx, profile.ID)
	if err != nil {
		t.Fatalf("ProcessProfile: %v", err)
	}
	// the criteria's job type overrides the listing metadata, so nothing is filtered out
	if summary.Persisted != 3 || summary.Considered != 3 || summary.Matched != 2 || summary.Created != 2 || len(summary.IngestRunIDs) != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	matches, _, err := st.Matches.List(ctx, store.MatchFilter{UserProfileID: profile.ID}, store.NewPage(1, 10, 10))
	if err != nil {
		t.Fatalf("list matches: %v", err)
	}
	if len(matches) != 2 || matches[0].OverallScore != 88 {
		t.Fatalf("unexpected matches %+v", matches)
	}
	first := matches[0]
	if first.Status != string(match.StatusNew) || len(first.StatusHistory) != 1 || first.SearchCriteriaID == nil || *first.SearchCriteriaID != criteria.ID {
		t.Fatalf("match not initialised: %+v", first)
	}

	all, err := pipeline.ProcessAll(ctx)
	if err != nil {
		t.Fatalf("ProcessAll: %v", err)
	}
	if len(all) != 1 || all[0].Persisted != 0 || all[0].Created != 0 {
		t.Fatalf("second pass must find nothing new, got %+v", all)
	}

	if _, err := pipeline.ProcessProfile(ctx, 999); !errcode.IsNotFound(err) {
		t.Fatalf("unknown profile must be not found, got %v", err)
	}
}

func TestPipelineMatchesListingsStoredForAnotherProfile(t *testing.T) {
	ctx := context.Background()
	st := store.New(dbtest.Open(t))
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	board := &database.Board{Name: "Example", URL: "https://example.com", Type: "tavily", IsActive: true, SearchFrequencyHours: 24}
	if err := st.Boards.Create(ctx, board); err != nil {
		t.Fatalf("create board: %v", err)
	}
	var profiles []*database.UserProfile
	for _, email := range []string{"ada@example.com", "grace@example.com"} {
		profile := &database.UserProfile{Name: email, Email: email, IsActive: true}
		if err := st.Profiles.Create(ctx, profile); err != nil {
			t.Fatalf("create profile: %v", err)
		}
		c := &database.SearchCriteria{UserProfileID: profile.ID, Name: "go", Keywords: []string{"golang"}, IsActive: true, IsDefault: true}
		if err := st.Criteria.Create(ctx, c); err != nil {
			t.Fatalf("create criteria: %v", err)
		}
		profiles = append(profiles, profile)
	}

	provider := &staticProvider{results: []search.Result{
		{Title: "Go Engineer", URL: "https://example.com/jobs/1", Content: "Go services"},
		{Title: "Platform Engineer", URL: "https://example.com/jobs/2", Content: "Kubernetes"},
	}}
	ingester := ingest.NewService(st, search.NewRegistry(provider), nil, ingest.WithClock(func() time.Time { return now }))
	scorer := &scriptedScorer{}
	pipeline := NewPipeline(st, ingester, NewBatchMatcher(scorer, nil), match.NewLifecycle(func() time.Time { return now }), 10, nil)

	first, err := pipeline.ProcessProfile(ctx, profiles[0].ID)
	if err != nil {
		t.Fatalf("first profile: %v", err)
	}
	if first.Persisted != 2 || first.Created != 2 {
		t.Fatalf("unexpected first summary %+v", first)
	}

	second, err := pipeline.ProcessProfile(ctx, profiles[1].ID)
	if err != nil {
		t.Fatalf("second profile: %v", err)
	}
	if second.Persisted != 0 || second.Considered != 2 || second.Matched != 2 || second.Created != 2 {
		t.Fatalf("listings stored by another profile must still be matched, got %+v", second)
	}

	calls := scorer.calls
	again, err := pipeline.ProcessProfile(ctx, profiles[0].ID)
	if err != nil {
		t.Fatalf("repeat: %v", err)
	}
	if again.Considered != 0 || again.Matched != 0 || scorer.calls != calls {
		t.Fatalf("already matched listings must not be rescored, got %+v after %d calls", again, scorer.calls-calls)
	}
}
