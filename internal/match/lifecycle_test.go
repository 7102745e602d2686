package match

import (
	"testing"
	"time"

	"jobcompass/internal/database"
	"jobcompass/internal/errcode"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLifecycle() (*Lifecycle, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	return NewLifecycle(clock.now), clock
}

func TestInitRecordsCreationEntry(t *testing.T) {
	lc, _ := newTestLifecycle()

	var m database.Match
	lc.Init(&m, "")
	if m.Status != string(StatusNew) || len(m.StatusHistory) != 1 {
		t.Fatalf("unexpected init state %q %v", m.Status, m.StatusHistory)
	}
}

func TestMarkViewedIsIdempotent(t *testing.T) {
	lc, clock := newTestLifecycle()

	var m database.Match
	lc.Init(&m, StatusNew)

	if !lc.MarkViewed(&m) {
		t.Fatalf("first MarkViewed must take effect")
	}
	firstViewed := *m.ViewedAt
	historyLen := len(m.StatusHistory)

	clock.advance(time.Hour)
	if lc.MarkViewed(&m) {
		t.Fatalf("second MarkViewed must be a no-op")
	}
	if !m.ViewedAt.Equal(firstViewed) || len(m.StatusHistory) != historyLen {
		t.Fatalf("viewed_at or history changed on repeat call")
	}
}

func TestHistoryGrowsByOnePerDistinctChange(t *testing.T) {
	lc, clock := newTestLifecycle()

	var m database.Match
	lc.Init(&m, StatusNew)

	sequence := []Status{StatusViewed, StatusApplied, StatusInterview, StatusOffer, StatusRejected, StatusApplied}
	for _, s := range sequence {
		clock.advance(time.Minute)
		if !lc.SetStatus(&m, s) {
			t.Fatalf("SetStatus(%s) reported no change", s)
		}
	}
	if len(m.StatusHistory) != len(sequence)+1 {
		t.Fatalf("history length = %d, want %d", len(m.StatusHistory), len(sequence)+1)
	}
	if m.Status != string(StatusApplied) {
		t.Fatalf("rejected must be able to move back to applied, got %s", m.Status)
	}

	if lc.SetStatus(&m, StatusApplied) {
		t.Fatalf("same status must not append history")
	}
	if len(m.StatusHistory) != len(sequence)+1 {
		t.Fatalf("history grew on unchanged status")
	}
	for i := 1; i < len(m.StatusHistory); i++ {
		if !m.StatusHistory[i].ChangedAt.After(m.StatusHistory[i-1].ChangedAt) {
			t.Fatalf("history must stay in order")
		}
	}
}

func TestMarkAppliedAndRejectedStampTimes(t *testing.T) {
	lc, clock := newTestLifecycle()

	var m database.Match
	lc.Init(&m, StatusNew)

	lc.MarkApplied(&m)
	if m.AppliedAt == nil || !m.AppliedAt.Equal(clock.t) || m.Status != string(StatusApplied) {
		t.Fatalf("applied not stamped: %+v", m)
	}

	clock.advance(time.Hour)
	lc.MarkRejected(&m)
	lc.MarkRejected(&m)
	if m.RejectedAt == nil || !m.RejectedAt.Equal(clock.t) {
		t.Fatalf("rejected not stamped")
	}
	if len(m.StatusHistory) != 4 {
		t.Fatalf("unconditional transitions must always append, got %d entries", len(m.StatusHistory))
	}
}

func TestInterestFlagsAreExclusive(t *testing.T) {
	lc, _ := newTestLifecycle()

	var m database.Match
	lc.Init(&m, StatusNew)

	ops := []func(*database.Match){lc.MarkInterested, lc.MarkNotInterested, lc.MarkNotInterested, lc.MarkInterested}
	for i, op := range ops {
		op(&m)
		if m.IsInterested && m.IsNotInterested {
			t.Fatalf("both flags set after op %d", i)
		}
	}
	if !m.IsInterested {
		t.Fatalf("last op was MarkInterested")
	}
	if len(m.StatusHistory) != 1 || m.Status != string(StatusNew) {
		t.Fatalf("interest flags must not touch status")
	}
}

func TestParseStatus(t *testing.T) {
	if s, err := ParseStatus(" Interview "); err != nil || s != StatusInterview {
		t.Fatalf("ParseStatus = %q, %v", s, err)
	}
	if _, err := ParseStatus("hired"); !errcode.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
