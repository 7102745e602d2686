// Package store holds the gorm-backed repositories of the service.
package store

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"jobcompass/internal/errcode"
)

// Store groups every repository over one database handle.
type Store struct {
	DB         *gorm.DB
	Profiles   *Profiles
	Boards     *Boards
	Criteria   *Criteria
	Listings   *Listings
	Matches    *Matches
	IngestRuns *IngestRuns
}

func New(db *gorm.DB) *Store {
	return &Store{
		DB:         db,
		Profiles:   &Profiles{db: db},
		Boards:     &Boards{db: db},
		Criteria:   &Criteria{db: db},
		Listings:   &Listings{db: db},
		Matches:    &Matches{db: db},
		IngestRuns: &IngestRuns{db: db},
	}
}

// lookupErr maps gorm's not-found sentinel onto a NotFound error for entity.
func lookupErr(err error, entity string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errcode.NotFound(entity)
	}
	return fmt.Errorf("query %s: %w", strings.ToLower(entity), err)
}

// likePattern escapes a user search term for a LIKE clause.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(strings.TrimSpace(term))) + "%"
}
