package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"jobcompass/internal/database"
	"jobcompass/internal/database/dbtest"
	"jobcompass/internal/errcode"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(dbtest.Open(t))
}

func seedProfile(t *testing.T, s *Store, email string) *database.UserProfile {
	t.Helper()
	p := &database.UserProfile{Name: "Ada", Email: email, IsActive: true}
	if err := s.Profiles.Create(context.Background(), p); err != nil {
		t.Fatalf("create profile: %v", err)
	}
	return p
}

func seedBoard(t *testing.T, s *Store) *database.Board {
	t.Helper()
	b := &database.Board{Name: "LinkedIn", URL: "https://www.linkedin.com/jobs", Type: "tavily", IsActive: true, SearchFrequencyHours: 24}
	if err := s.Boards.Create(context.Background(), b); err != nil {
		t.Fatalf("create board: %v", err)
	}
	return b
}

func seedListing(t *testing.T, s *Store, boardID uint, n int) *database.Listing {
	t.Helper()
	l := &database.Listing{
		BoardID:    boardID,
		ExternalID: fmt.Sprintf("ext-%d", n),
		Title:      fmt.Sprintf("Engineer %d", n),
		URL:        fmt.Sprintf("https://jobs.example.com/%d", n),
		IsActive:   true,
	}
	if err := s.Listings.Create(context.Background(), l); err != nil {
		t.Fatalf("create listing: %v", err)
	}
	return l
}

func countDefaults(t *testing.T, s *Store, profileID uint) int64 {
	t.Helper()
	var n int64
	if err := s.DB.Model(&database.SearchCriteria{}).Where("user_profile_id = ? AND is_default = ?", profileID, true).Count(&n).Error; err != nil {
		t.Fatalf("count defaults: %v", err)
	}
	return n
}

func TestCriteriaSingleDefault(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	profile := seedProfile(t, s, "ada@example.com")
	other := seedProfile(t, s, "bob@example.com")

	otherDefault := &database.SearchCriteria{UserProfileID: other.ID, Name: "other", IsDefault: true, IsActive: true}
	if err := s.Criteria.Create(ctx, otherDefault); err != nil {
		t.Fatalf("create: %v", err)
	}

	var ids []uint
	for i := 0; i < 3; i++ {
		c := &database.SearchCriteria{UserProfileID: profile.ID, Name: fmt.Sprintf("c%d", i), IsDefault: true, IsActive: true}
		if err := s.Criteria.Create(ctx, c); err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, c.ID)
		if n := countDefaults(t, s, profile.ID); n != 1 {
			t.Fatalf("after create %d: %d defaults", i, n)
		}
	}

	first, err := s.Criteria.Get(ctx, ids[0])
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	first.IsDefault = true
	if err := s.Criteria.Update(ctx, first); err != nil {
		t.Fatalf("update: %v", err)
	}
	if n := countDefaults(t, s, profile.ID); n != 1 {
		t.Fatalf("after update: %d defaults", n)
	}

	def, err := s.Criteria.Default(ctx, profile.ID)
	if err != nil || def.ID != ids[0] {
		t.Fatalf("Default = %v, %v; want id %d", def, err, ids[0])
	}
	if n := countDefaults(t, s, other.ID); n != 1 {
		t.Fatalf("another profile's default must be untouched")
	}
}

func TestCriteriaDefaultFallsBackToLatest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	profile := seedProfile(t, s, "ada@example.com")

	if _, err := s.Criteria.Default(ctx, profile.ID); !errcode.IsNotFound(err) {
		t.Fatalf("expected NotFound without criteria, got %v", err)
	}

	var last uint
	for i := 0; i < 2; i++ {
		c := &database.SearchCriteria{UserProfileID: profile.ID, Name: fmt.Sprintf("c%d", i), IsActive: true}
		if err := s.Criteria.Create(ctx, c); err != nil {
			t.Fatalf("create: %v", err)
		}
		last = c.ID
	}
	def, err := s.Criteria.Default(ctx, profile.ID)
	if err != nil || def.ID != last {
		t.Fatalf("expected most recent criteria %d, got %v %v", last, def, err)
	}
}

func TestCriteriaDeleteKeepsLastOne(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	profile := seedProfile(t, s, "ada@example.com")

	a := &database.SearchCriteria{UserProfileID: profile.ID, Name: "a", IsActive: true}
	b := &database.SearchCriteria{UserProfileID: profile.ID, Name: "b", IsActive: true}
	for _, c := range []*database.SearchCriteria{a, b} {
		if err := s.Criteria.Create(ctx, c); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	if err := s.Criteria.Delete(ctx, a.ID); err != nil {
		t.Fatalf("deleting one of two must succeed: %v", err)
	}
	err := s.Criteria.Delete(ctx, b.ID)
	if !errcode.IsConflict(err) {
		t.Fatalf("deleting the last criteria must conflict, got %v", err)
	}
	if _, err := s.Criteria.Get(ctx, b.ID); err != nil {
		t.Fatalf("last criteria must survive: %v", err)
	}
	if err := s.Criteria.Delete(ctx, 9999); !errcode.IsNotFound(err) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestCriteriaRequiresExistingProfile(t *testing.T) {
	s := newTestStore(t)
	err := s.Criteria.Create(context.Background(), &database.SearchCriteria{UserProfileID: 42, Name: "x"})
	if !errcode.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCriteriaOwnerIsFixed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := seedProfile(t, s, "ada@example.com")
	other := seedProfile(t, s, "grace@example.com")

	only := &database.SearchCriteria{UserProfileID: owner.ID, Name: "only", IsActive: true}
	if err := s.Criteria.Create(ctx, only); err != nil {
		t.Fatalf("create: %v", err)
	}
	moved, err := s.Criteria.Get(ctx, only.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	moved.UserProfileID = other.ID
	if err := s.Criteria.Update(ctx, moved); !errors.Is(err, ErrCriteriaOwner) {
		t.Fatalf("moving criteria to another profile must fail, got %v", err)
	}

	stored, err := s.Criteria.Get(ctx, only.ID)
	if err != nil || stored.UserProfileID != owner.ID {
		t.Fatalf("criteria owner changed: %+v %v", stored, err)
	}
	if err := s.Criteria.Delete(ctx, only.ID); !errors.Is(err, ErrLastCriteria) {
		t.Fatalf("owner's last criteria must stay protected, got %v", err)
	}
}

func TestCriteriaWritesLockProfile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	profile := seedProfile(t, s, "ada@example.com")

	locked := 0
	err := s.DB.Callback().Query().Before("gorm:query").Register("test:profile_lock", func(db *gorm.DB) {
		if _, ok := db.Statement.Clauses["FOR"]; ok && db.Statement.Table == "user_profiles" {
			locked++
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	a := &database.SearchCriteria{UserProfileID: profile.ID, Name: "a", IsDefault: true, IsActive: true}
	b := &database.SearchCriteria{UserProfileID: profile.ID, Name: "b", IsActive: true}
	for _, c := range []*database.SearchCriteria{a, b} {
		if err := s.Criteria.Create(ctx, c); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	b.IsDefault = true
	if err := s.Criteria.Update(ctx, b); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := s.Criteria.Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if locked != 4 {
		t.Fatalf("expected every criteria write to lock the profile, got %d locks", locked)
	}
	if n := countDefaults(t, s, profile.ID); n != 1 {
		t.Fatalf("expected one default, got %d", n)
	}
}

func TestProfilesEmailUnique(t *testing.T) {
	s := newTestStore(t)
	seedProfile(t, s, "ada@example.com")

	err := s.Profiles.Create(context.Background(), &database.UserProfile{Name: "Ada 2", Email: "ADA@example.com"})
	var e *errcode.Error
	if !errors.As(err, &e) || e.Kind != errcode.KindValidation || len(e.Fields["email"]) == 0 {
		t.Fatalf("expected email validation error, got %v", err)
	}
}

func TestListingsInsertNewSkipsDuplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	board := seedBoard(t, s)
	existing := seedListing(t, s, board.ID, 1)

	batch := []database.Listing{
		{BoardID: board.ID, ExternalID: "ext-1", Title: "dup external id", URL: "https://jobs.example.com/other", IsActive: true},
		{BoardID: board.ID, ExternalID: "ext-2", Title: "new", URL: "https://jobs.example.com/2", IsActive: true},
		{BoardID: board.ID, ExternalID: "ext-3", Title: "dup url", URL: existing.URL, IsActive: true},
	}
	inserted, err := s.Listings.InsertNew(ctx, batch)
	if err != nil {
		t.Fatalf("InsertNew: %v", err)
	}
	if len(inserted) != 1 || inserted[0].ExternalID != "ext-2" || inserted[0].ID == 0 {
		t.Fatalf("unexpected inserted rows %+v", inserted)
	}

	if err := s.Listings.Create(ctx, &database.Listing{BoardID: board.ID, ExternalID: "ext-2", Title: "again", URL: "https://x.example.com"}); !errcode.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestListingsExistingURLsIncludesDeleted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	board := seedBoard(t, s)
	l := seedListing(t, s, board.ID, 1)
	if err := s.Listings.Delete(ctx, l.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	found, err := s.Listings.ExistingURLs(ctx, board.ID, []string{l.URL, "https://jobs.example.com/new"})
	if err != nil {
		t.Fatalf("ExistingURLs: %v", err)
	}
	if !found[l.URL] || found["https://jobs.example.com/new"] {
		t.Fatalf("unexpected lookup %v", found)
	}
	if _, err := s.Listings.Get(ctx, l.ID); !errcode.IsNotFound(err) {
		t.Fatalf("soft-deleted listing must not be readable, got %v", err)
	}
}

func TestMatchesDuplicatePairConflicts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	profile := seedProfile(t, s, "ada@example.com")
	board := seedBoard(t, s)
	l := seedListing(t, s, board.ID, 1)

	m := &database.Match{UserProfileID: profile.ID, ListingID: l.ID, OverallScore: 70, Status: "new"}
	if err := s.Matches.Create(ctx, m); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := s.Matches.Create(ctx, &database.Match{UserProfileID: profile.ID, ListingID: l.ID, OverallScore: 10, Status: "new"})
	if !errors.Is(err, ErrDuplicateMatch) || err.Error() != "Job match already exists" {
		t.Fatalf("expected duplicate conflict, got %v", err)
	}
}

func TestMatchesUpsertKeepsLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	profile := seedProfile(t, s, "ada@example.com")
	board := seedBoard(t, s)
	l := seedListing(t, s, board.ID, 1)

	viewed := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	m := &database.Match{
		UserProfileID: profile.ID,
		ListingID:     l.ID,
		OverallScore:  50,
		Status:        "applied",
		IsInterested:  true,
		ViewedAt:      &viewed,
		StatusHistory: []database.StatusChange{{Status: "new"}, {Status: "applied"}},
	}
	created, err := s.Matches.Upsert(ctx, m)
	if err != nil || !created {
		t.Fatalf("first upsert: %v %v", created, err)
	}

	refresh := &database.Match{UserProfileID: profile.ID, ListingID: l.ID, OverallScore: 88, Status: "new", MatchSummary: "better"}
	created, err = s.Matches.Upsert(ctx, refresh)
	if err != nil || created {
		t.Fatalf("second upsert: %v %v", created, err)
	}

	got, err := s.Matches.Get(ctx, m.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.OverallScore != 88 || got.MatchSummary != "better" {
		t.Fatalf("scores not refreshed: %+v", got)
	}
	if got.Status != "applied" || len(got.StatusHistory) != 2 || !got.IsInterested || got.ViewedAt == nil {
		t.Fatalf("lifecycle must be preserved: %+v", got)
	}
	if refresh.ID != m.ID || refresh.Status != "applied" {
		t.Fatalf("caller copy must reflect the stored row")
	}
}

func TestMatchesSuggestionsAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	profile := seedProfile(t, s, "ada@example.com")
	board := seedBoard(t, s)

	specs := []struct {
		score         int
		status        string
		interested    bool
		notInterested bool
	}{
		{90, "rejected", false, false},
		{85, "viewed", true, false},
		{80, "new", false, true},
		{70, "viewed", false, false},
		{60, "new", false, false},
		{50, "closed", false, false},
	}
	for i, sp := range specs {
		l := seedListing(t, s, board.ID, i)
		m := &database.Match{UserProfileID: profile.ID, ListingID: l.ID, OverallScore: sp.score, Status: sp.status, IsInterested: sp.interested, IsNotInterested: sp.notInterested}
		if err := s.Matches.Create(ctx, m); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	suggestions, err := s.Matches.Suggestions(ctx, profile.ID, 0)
	if err != nil {
		t.Fatalf("Suggestions: %v", err)
	}
	if len(suggestions) != 2 || suggestions[0].OverallScore != 70 || suggestions[1].OverallScore != 60 {
		t.Fatalf("unexpected suggestions %+v", suggestions)
	}
	if suggestions[0].Listing == nil {
		t.Fatalf("listing must be preloaded")
	}

	minScore := 60
	items, page, err := s.Matches.List(ctx, MatchFilter{UserProfileID: profile.ID, MinScore: &minScore, SortBy: "score", SortDir: "asc"}, NewPage(1, 2, 10))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 5 || page.LastPage != 3 || len(items) != 2 || items[0].OverallScore != 60 {
		t.Fatalf("unexpected page %+v items %+v", page, items)
	}
	if page.From == nil || *page.From != 1 || *page.To != 2 {
		t.Fatalf("unexpected from/to %v %v", page.From, page.To)
	}

	if _, _, err := s.Matches.List(ctx, MatchFilter{}, NewPage(1, 10, 10)); !errcode.IsValidation(err) {
		t.Fatalf("profile filter is required, got %v", err)
	}
}

func TestBoardsDue(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	fresh := seedBoard(t, s)
	if err := s.Boards.MarkSearched(ctx, fresh.ID, now.Add(-time.Hour)); err != nil {
		t.Fatalf("MarkSearched: %v", err)
	}
	never := &database.Board{Name: "Indeed", URL: "https://www.indeed.com", Type: "tavily", IsActive: true, SearchFrequencyHours: 24}
	if err := s.Boards.Create(ctx, never); err != nil {
		t.Fatalf("create: %v", err)
	}

	due, err := s.Boards.Due(ctx, now)
	if err != nil {
		t.Fatalf("Due: %v", err)
	}
	if len(due) != 1 || due[0].ID != never.ID {
		t.Fatalf("unexpected due boards %+v", due)
	}

	created, err := s.Boards.EnsureByName(ctx, &database.Board{Name: "Indeed", URL: "https://www.indeed.com", Type: "tavily"})
	if err != nil || created {
		t.Fatalf("EnsureByName must find the existing board: %v %v", created, err)
	}
}

func TestNewPageAndEmptyPagination(t *testing.T) {
	p := NewPage(0, 500, 15)
	if p.Number != 1 || p.PerPage != maxPerPage {
		t.Fatalf("unexpected page %+v", p)
	}

	s := newTestStore(t)
	items, page, err := s.Profiles.List(context.Background(), ProfileFilter{}, NewPage(3, 0, 15))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 0 || page.Total != 0 || page.LastPage != 1 || page.From != nil || page.PerPage != 15 {
		t.Fatalf("unexpected empty page %+v", page)
	}
}
