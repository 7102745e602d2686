package store

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"jobcompass/internal/database"
	"jobcompass/internal/errcode"
)

const profileEntity = "User profile"

type Profiles struct {
	db *gorm.DB
}

// ProfileFilter narrows profile listings. Zero values do not filter.
type ProfileFilter struct {
	Search   string
	IsActive *bool
}

func (s *Profiles) List(ctx context.Context, f ProfileFilter, p Page) ([]database.UserProfile, Pagination, error) {
	q := s.db.WithContext(ctx).Model(&database.UserProfile{})
	if strings.TrimSpace(f.Search) != "" {
		pattern := likePattern(f.Search)
		q = q.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(title) LIKE ?", pattern, pattern, pattern)
	}
	if f.IsActive != nil {
		q = q.Where("is_active = ?", *f.IsActive)
	}
	items, page, err := paginate[database.UserProfile](q, p, "created_at DESC, id DESC")
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("list profiles: %w", err)
	}
	return items, page, nil
}

func (s *Profiles) Get(ctx context.Context, id uint) (*database.UserProfile, error) {
	var profile database.UserProfile
	if err := s.db.WithContext(ctx).First(&profile, id).Error; err != nil {
		return nil, lookupErr(err, profileEntity)
	}
	return &profile, nil
}

// Active returns every active profile in id order.
func (s *Profiles) Active(ctx context.Context) ([]database.UserProfile, error) {
	var profiles []database.UserProfile
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("id").Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("list active profiles: %w", err)
	}
	return profiles, nil
}

func (s *Profiles) Create(ctx context.Context, profile *database.UserProfile) error {
	if err := s.ensureEmailFree(ctx, profile.Email, 0); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(profile).Error; err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

func (s *Profiles) Update(ctx context.Context, profile *database.UserProfile) error {
	if err := s.ensureEmailFree(ctx, profile.Email, profile.ID); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Save(profile).Error; err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

func (s *Profiles) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&database.UserProfile{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete profile: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errcode.NotFound(profileEntity)
	}
	return nil
}

// ensureEmailFree treats soft-deleted profiles as taken, matching the unique index.
func (s *Profiles) ensureEmailFree(ctx context.Context, email string, exceptID uint) error {
	var count int64
	q := s.db.WithContext(ctx).Unscoped().Model(&database.UserProfile{}).Where("LOWER(email) = ?", strings.ToLower(email))
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return fmt.Errorf("check profile email: %w", err)
	}
	if count > 0 {
		return errcode.Invalid("email", "The email has already been taken.")
	}
	return nil
}
