package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"jobcompass/internal/database"
	"jobcompass/internal/errcode"
)

const criteriaEntity = "Search criteria"

// ErrLastCriteria is returned when deleting a profile's only criteria.
var ErrLastCriteria = errcode.Conflict("Cannot delete the only search criteria for this user")

// ErrCriteriaOwner is returned when an update tries to move a criteria to another profile.
var ErrCriteriaOwner = errcode.Invalid("user_profile_id", "The user profile id of a search criteria cannot be changed.")

type Criteria struct {
	db *gorm.DB
}

type CriteriaFilter struct {
	UserProfileID uint
	IsActive      *bool
}

func (s *Criteria) List(ctx context.Context, f CriteriaFilter, p Page) ([]database.SearchCriteria, Pagination, error) {
	q := s.db.WithContext(ctx).Model(&database.SearchCriteria{})
	if f.UserProfileID != 0 {
		q = q.Where("user_profile_id = ?", f.UserProfileID)
	}
	if f.IsActive != nil {
		q = q.Where("is_active = ?", *f.IsActive)
	}
	items, page, err := paginate[database.SearchCriteria](q, p, "is_default DESC, created_at DESC, id DESC")
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("list criteria: %w", err)
	}
	return items, page, nil
}

func (s *Criteria) Get(ctx context.Context, id uint) (*database.SearchCriteria, error) {
	var c database.SearchCriteria
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, lookupErr(err, criteriaEntity)
	}
	return &c, nil
}

// Active returns a profile's active criteria, default first.
func (s *Criteria) Active(ctx context.Context, profileID uint) ([]database.SearchCriteria, error) {
	var out []database.SearchCriteria
	err := s.db.WithContext(ctx).
		Where("user_profile_id = ? AND is_active = ?", profileID, true).
		Order("is_default DESC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list active criteria: %w", err)
	}
	return out, nil
}

// Default returns the profile's default criteria, or its most recent one when none is flagged.
func (s *Criteria) Default(ctx context.Context, profileID uint) (*database.SearchCriteria, error) {
	var c database.SearchCriteria
	err := s.db.WithContext(ctx).
		Where("user_profile_id = ?", profileID).
		Order("is_default DESC, created_at DESC, id DESC").
		First(&c).Error
	if err != nil {
		return nil, lookupErr(err, criteriaEntity)
	}
	return &c, nil
}

// Create inserts c; a default row clears the flag on every sibling in the same transaction.
func (s *Criteria) Create(ctx context.Context, c *database.SearchCriteria) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireProfile(tx, c.UserProfileID); err != nil {
			return err
		}
		if err := tx.Create(c).Error; err != nil {
			return fmt.Errorf("create criteria: %w", err)
		}
		if c.IsDefault {
			return clearOtherDefaults(tx, c.UserProfileID, c.ID)
		}
		return nil
	})
}

// Update saves c. The owning profile is fixed at creation.
func (s *Criteria) Update(ctx context.Context, c *database.SearchCriteria) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stored database.SearchCriteria
		if err := tx.Select("id", "user_profile_id").First(&stored, c.ID).Error; err != nil {
			return lookupErr(err, criteriaEntity)
		}
		if stored.UserProfileID != c.UserProfileID {
			return ErrCriteriaOwner
		}
		if err := requireProfile(tx, c.UserProfileID); err != nil {
			return err
		}
		if err := tx.Omit("UserProfile").Save(c).Error; err != nil {
			return fmt.Errorf("update criteria: %w", err)
		}
		if c.IsDefault {
			return clearOtherDefaults(tx, c.UserProfileID, c.ID)
		}
		return nil
	})
}

// Delete soft-deletes a criteria unless it is the last one of its profile.
func (s *Criteria) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c database.SearchCriteria
		if err := tx.First(&c, id).Error; err != nil {
			return lookupErr(err, criteriaEntity)
		}
		var owner database.UserProfile
		if err := lockProfile(tx).Find(&owner, c.UserProfileID).Error; err != nil {
			return fmt.Errorf("lock profile: %w", err)
		}

		var count int64
		if err := tx.Model(&database.SearchCriteria{}).Where("user_profile_id = ?", c.UserProfileID).Count(&count).Error; err != nil {
			return fmt.Errorf("count criteria: %w", err)
		}
		if count <= 1 {
			return ErrLastCriteria
		}

		if err := tx.Delete(&c).Error; err != nil {
			return fmt.Errorf("delete criteria: %w", err)
		}
		return nil
	})
}

func clearOtherDefaults(tx *gorm.DB, profileID, keepID uint) error {
	err := tx.Model(&database.SearchCriteria{}).
		Where("user_profile_id = ? AND id <> ? AND is_default = ?", profileID, keepID, true).
		Update("is_default", false).Error
	if err != nil {
		return fmt.Errorf("clear default criteria: %w", err)
	}
	return nil
}

// lockProfile takes the profile row for update so concurrent writers of the
// same profile's criteria serialise. SQLite drops the clause.
func lockProfile(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).Select("id")
}

func requireProfile(tx *gorm.DB, profileID uint) error {
	var profile database.UserProfile
	err := lockProfile(tx).First(&profile, profileID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errcode.Invalid("user_profile_id", "The selected user profile id is invalid.")
	}
	if err != nil {
		return fmt.Errorf("check profile: %w", err)
	}
	return nil
}
