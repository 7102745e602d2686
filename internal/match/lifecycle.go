// Package match implements the application lifecycle of a profile/listing match.
//
// The lifecycle is permissive: any status can be set from any other status.
// Every status change appends exactly one entry to the match's history, and
// the interest flags are mutually exclusive and independent of status.
package match

import (
	"fmt"
	"strings"
	"time"

	"jobcompass/internal/database"
	"jobcompass/internal/errcode"
)

// Status is the application stage of a match.
type Status string

const (
	StatusNew       Status = "new"
	StatusViewed    Status = "viewed"
	StatusApplied   Status = "applied"
	StatusInterview Status = "interview"
	StatusOffer     Status = "offer"
	StatusRejected  Status = "rejected"
	StatusClosed    Status = "closed"
)

// Statuses lists every valid status in lifecycle order.
var Statuses = []Status{
	StatusNew,
	StatusViewed,
	StatusApplied,
	StatusInterview,
	StatusOffer,
	StatusRejected,
	StatusClosed,
}

func (s Status) Valid() bool {
	for _, candidate := range Statuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// ParseStatus accepts a status name case-insensitively.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", errcode.Invalid("status", fmt.Sprintf("The selected status %q is invalid.", raw))
	}
	return s, nil
}

// Clock returns the current time.
type Clock func() time.Time

// Lifecycle applies status transitions to match records.
type Lifecycle struct {
	now Clock
}

func NewLifecycle(now Clock) *Lifecycle {
	if now == nil {
		now = time.Now
	}
	return &Lifecycle{now: now}
}

// Init stamps a fresh match with the "new" status (or the given one) and its creation entry.
func (l *Lifecycle) Init(m *database.Match, initial Status) {
	if initial == "" {
		initial = StatusNew
	}
	m.Status = string(initial)
	m.StatusHistory = append(m.StatusHistory[:0:0], database.StatusChange{
		Status:    string(initial),
		ChangedAt: l.now().UTC(),
	})
}

// MarkViewed only takes effect the first time.
func (l *Lifecycle) MarkViewed(m *database.Match) bool {
	if m.ViewedAt != nil {
		return false
	}
	now := l.now().UTC()
	m.ViewedAt = &now
	l.record(m, StatusViewed, now)
	return true
}

func (l *Lifecycle) MarkApplied(m *database.Match) {
	now := l.now().UTC()
	m.AppliedAt = &now
	l.record(m, StatusApplied, now)
}

func (l *Lifecycle) MarkRejected(m *database.Match) {
	now := l.now().UTC()
	m.RejectedAt = &now
	l.record(m, StatusRejected, now)
}

// SetStatus is the generic edit path: history grows only when the status differs.
func (l *Lifecycle) SetStatus(m *database.Match, s Status) bool {
	if m.Status == string(s) {
		return false
	}
	l.record(m, s, l.now().UTC())
	return true
}

func (l *Lifecycle) MarkInterested(m *database.Match) {
	m.IsInterested = true
	m.IsNotInterested = false
}

func (l *Lifecycle) MarkNotInterested(m *database.Match) {
	m.IsInterested = false
	m.IsNotInterested = true
}

func (l *Lifecycle) record(m *database.Match, s Status, at time.Time) {
	m.Status = string(s)
	m.StatusHistory = append(m.StatusHistory, database.StatusChange{Status: string(s), ChangedAt: at})
}
