package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"jobcompass/internal/database"
	"jobcompass/internal/errcode"
)

const matchEntity = "Job match"

// ErrDuplicateMatch is returned when a profile/listing pair already has a match.
var ErrDuplicateMatch = errcode.Conflict("Job match already exists")

const (
	defaultSuggestions = 5
	maxSuggestions     = 20
)

type Matches struct {
	db *gorm.DB
}

// MatchFilter narrows a profile's matches. UserProfileID is required.
type MatchFilter struct {
	UserProfileID   uint
	Status          string
	MinScore        *int
	MaxScore        *int
	IsInterested    *bool
	IsNotInterested *bool
	SortBy          string
	SortDir         string
}

var matchSortColumns = map[string]string{
	"score":      "overall_score",
	"created_at": "created_at",
	"updated_at": "updated_at",
	"status":     "status",
}

func (f MatchFilter) order() string {
	column, ok := matchSortColumns[strings.ToLower(f.SortBy)]
	if !ok {
		column = "overall_score"
	}
	dir := "DESC"
	if strings.EqualFold(f.SortDir, "asc") {
		dir = "ASC"
	}
	return column + " " + dir + ", id DESC"
}

func (s *Matches) List(ctx context.Context, f MatchFilter, p Page) ([]database.Match, Pagination, error) {
	if f.UserProfileID == 0 {
		return nil, Pagination{}, errcode.Invalid("user_profile_id", "The user profile id field is required.")
	}
	q := s.db.WithContext(ctx).Model(&database.Match{}).Where("user_profile_id = ?", f.UserProfileID)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.MinScore != nil {
		q = q.Where("overall_score >= ?", *f.MinScore)
	}
	if f.MaxScore != nil {
		q = q.Where("overall_score <= ?", *f.MaxScore)
	}
	if f.IsInterested != nil {
		q = q.Where("is_interested = ?", *f.IsInterested)
	}
	if f.IsNotInterested != nil {
		q = q.Where("is_not_interested = ?", *f.IsNotInterested)
	}
	items, page, err := paginate[database.Match](q, p, f.order(), "Listing")
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("list matches: %w", err)
	}
	return items, page, nil
}

func (s *Matches) Get(ctx context.Context, id uint) (*database.Match, error) {
	var m database.Match
	if err := s.db.WithContext(ctx).Preload("Listing").First(&m, id).Error; err != nil {
		return nil, lookupErr(err, matchEntity)
	}
	return &m, nil
}

// Suggestions returns the best-scored matches the user has not reacted to yet
// and that are still open.
func (s *Matches) Suggestions(ctx context.Context, profileID uint, limit int) ([]database.Match, error) {
	if limit <= 0 {
		limit = defaultSuggestions
	}
	if limit > maxSuggestions {
		limit = maxSuggestions
	}
	var out []database.Match
	err := s.db.WithContext(ctx).
		Preload("Listing").
		Where("user_profile_id = ?", profileID).
		Where("is_interested = ? AND is_not_interested = ?", false, false).
		Where("status NOT IN ?", []string{"rejected", "closed"}).
		Order("overall_score DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}
	return out, nil
}

// MatchedListingIDs reports which of the listings already have a match for the
// profile. Soft-deleted matches count so a dismissed pair is never rescored.
func (s *Matches) MatchedListingIDs(ctx context.Context, profileID uint, listingIDs []uint) (map[uint]bool, error) {
	found := make(map[uint]bool, len(listingIDs))
	if len(listingIDs) == 0 {
		return found, nil
	}
	var ids []uint
	err := s.db.WithContext(ctx).Unscoped().Model(&database.Match{}).
		Where("user_profile_id = ? AND listing_id IN ?", profileID, listingIDs).
		Pluck("listing_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("lookup matched listings: %w", err)
	}
	for _, id := range ids {
		found[id] = true
	}
	return found, nil
}

func (s *Matches) exists(tx *gorm.DB, profileID, listingID uint) (bool, error) {
	var count int64
	err := tx.Unscoped().Model(&database.Match{}).
		Where("user_profile_id = ? AND listing_id = ?", profileID, listingID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check match: %w", err)
	}
	return count > 0, nil
}

// Create rejects a second match for the same profile/listing pair.
func (s *Matches) Create(ctx context.Context, m *database.Match) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dup, err := s.exists(tx, m.UserProfileID, m.ListingID)
		if err != nil {
			return err
		}
		if dup {
			return ErrDuplicateMatch
		}
		if err := tx.Omit("UserProfile", "Listing", "SearchCriteria").Create(m).Error; err != nil {
			return fmt.Errorf("create match: %w", err)
		}
		return nil
	})
}

func (s *Matches) Save(ctx context.Context, m *database.Match) error {
	if err := s.db.WithContext(ctx).Omit("UserProfile", "Listing", "SearchCriteria").Save(m).Error; err != nil {
		return fmt.Errorf("update match: %w", err)
	}
	return nil
}

// scoreColumns are refreshed when the pipeline rescores an existing pair.
var scoreColumns = []string{
	"search_criteria_id",
	"overall_score",
	"skills_score",
	"experience_score",
	"education_score",
	"company_fit_score",
	"strengths",
	"weaknesses",
	"matching_skills",
	"missing_skills",
	"match_summary",
	"improvement_suggestions",
	"application_advice",
	"raw_analysis",
}

// Upsert creates the match for a new pair, or refreshes the scores of an existing one while
// keeping its status, history and flags. Pairs the user deleted are left alone.
// It reports whether a new row was created.
func (s *Matches) Upsert(ctx context.Context, m *database.Match) (bool, error) {
	var created bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing database.Match
		err := tx.Unscoped().
			Where("user_profile_id = ? AND listing_id = ?", m.UserProfileID, m.ListingID).
			First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Omit("UserProfile", "Listing", "SearchCriteria").Create(m).Error; err != nil {
				return fmt.Errorf("create match: %w", err)
			}
			created = true
			return nil
		case err != nil:
			return fmt.Errorf("find match: %w", err)
		case existing.DeletedAt.Valid:
			*m = existing
			return nil
		}

		m.ID = existing.ID
		if err := tx.Model(&existing).Select(scoreColumns).Updates(m).Error; err != nil {
			return fmt.Errorf("refresh match: %w", err)
		}
		m.Status = existing.Status
		m.StatusHistory = existing.StatusHistory
		m.IsInterested = existing.IsInterested
		m.IsNotInterested = existing.IsNotInterested
		m.ViewedAt, m.AppliedAt, m.RejectedAt = existing.ViewedAt, existing.AppliedAt, existing.RejectedAt
		m.UserNotes = existing.UserNotes
		m.CreatedAt = existing.CreatedAt
		return nil
	})
	return created, err
}

func (s *Matches) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&database.Match{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete match: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errcode.NotFound(matchEntity)
	}
	return nil
}
