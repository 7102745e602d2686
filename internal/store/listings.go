package store

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"jobcompass/internal/database"
	"jobcompass/internal/errcode"
)

const listingEntity = "Listing"

type Listings struct {
	db *gorm.DB
}

type ListingFilter struct {
	BoardID         uint
	Search          string
	Location        string
	JobType         string
	ExperienceLevel string
	IsRemote        *bool
	IsActive        *bool
}

func (s *Listings) List(ctx context.Context, f ListingFilter, p Page) ([]database.Listing, Pagination, error) {
	q := s.db.WithContext(ctx).Model(&database.Listing{})
	if f.BoardID != 0 {
		q = q.Where("board_id = ?", f.BoardID)
	}
	if strings.TrimSpace(f.Search) != "" {
		pattern := likePattern(f.Search)
		q = q.Where("LOWER(title) LIKE ? OR LOWER(company_name) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern, pattern)
	}
	if strings.TrimSpace(f.Location) != "" {
		q = q.Where("LOWER(location) LIKE ?", likePattern(f.Location))
	}
	if f.JobType != "" {
		q = q.Where("job_type = ?", f.JobType)
	}
	if f.ExperienceLevel != "" {
		q = q.Where("experience_level = ?", f.ExperienceLevel)
	}
	if f.IsRemote != nil {
		q = q.Where("is_remote = ?", *f.IsRemote)
	}
	if f.IsActive != nil {
		q = q.Where("is_active = ?", *f.IsActive)
	}
	items, page, err := paginate[database.Listing](q, p, "created_at DESC, id DESC", "Board")
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("list listings: %w", err)
	}
	return items, page, nil
}

func (s *Listings) Get(ctx context.Context, id uint) (*database.Listing, error) {
	var l database.Listing
	if err := s.db.WithContext(ctx).Preload("Board").First(&l, id).Error; err != nil {
		return nil, lookupErr(err, listingEntity)
	}
	return &l, nil
}

// Create inserts one listing; a duplicate (board, external id) or (board, url) pair is a Conflict.
func (s *Listings) Create(ctx context.Context, l *database.Listing) error {
	var count int64
	err := s.db.WithContext(ctx).Unscoped().Model(&database.Listing{}).
		Where("board_id = ? AND (external_id = ? OR url = ?)", l.BoardID, l.ExternalID, l.URL).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("check listing: %w", err)
	}
	if count > 0 {
		return errcode.Conflict("Listing already exists for this board")
	}
	if err := s.db.WithContext(ctx).Omit("Board").Create(l).Error; err != nil {
		return fmt.Errorf("create listing: %w", err)
	}
	return nil
}

// InsertNew inserts each listing with ON CONFLICT DO NOTHING and returns the rows actually written.
func (s *Listings) InsertNew(ctx context.Context, listings []database.Listing) ([]database.Listing, error) {
	inserted := make([]database.Listing, 0, len(listings))
	for i := range listings {
		row := listings[i]
		res := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Omit("Board").
			Create(&row)
		if res.Error != nil {
			return inserted, fmt.Errorf("insert listing %q: %w", row.URL, res.Error)
		}
		if res.RowsAffected > 0 {
			inserted = append(inserted, row)
		}
	}
	return inserted, nil
}

// ExistingURLs reports which of urls are already stored for the board, soft-deleted rows included.
func (s *Listings) ExistingURLs(ctx context.Context, boardID uint, urls []string) (map[string]bool, error) {
	found := make(map[string]bool, len(urls))
	if len(urls) == 0 {
		return found, nil
	}
	var existing []string
	err := s.db.WithContext(ctx).Unscoped().Model(&database.Listing{}).
		Where("board_id = ? AND url IN ?", boardID, urls).
		Pluck("url", &existing).Error
	if err != nil {
		return nil, fmt.Errorf("lookup existing listings: %w", err)
	}
	for _, u := range existing {
		found[u] = true
	}
	return found, nil
}

// ByURLs loads the live listings of a board with the given canonical URLs.
func (s *Listings) ByURLs(ctx context.Context, boardID uint, urls []string) ([]database.Listing, error) {
	var out []database.Listing
	if len(urls) == 0 {
		return out, nil
	}
	err := s.db.WithContext(ctx).
		Where("board_id = ? AND url IN ?", boardID, urls).
		Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("load listings by url: %w", err)
	}
	return out, nil
}

func (s *Listings) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&database.Listing{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete listing: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errcode.NotFound(listingEntity)
	}
	return nil
}
