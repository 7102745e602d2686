package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"jobcompass/internal/database"
)

const ingestRunEntity = "Ingest run"

type IngestRuns struct {
	db *gorm.DB
}

type IngestRunFilter struct {
	BoardID uint
	Status  string
}

func (s *IngestRuns) List(ctx context.Context, f IngestRunFilter, p Page) ([]database.IngestRun, Pagination, error) {
	q := s.db.WithContext(ctx).Model(&database.IngestRun{})
	if f.BoardID != 0 {
		q = q.Where("board_id = ?", f.BoardID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	items, page, err := paginate[database.IngestRun](q, p, "started_at DESC, id DESC")
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("list ingest runs: %w", err)
	}
	return items, page, nil
}

func (s *IngestRuns) Get(ctx context.Context, id uint) (*database.IngestRun, error) {
	var run database.IngestRun
	if err := s.db.WithContext(ctx).First(&run, id).Error; err != nil {
		return nil, lookupErr(err, ingestRunEntity)
	}
	return &run, nil
}

func (s *IngestRuns) Create(ctx context.Context, run *database.IngestRun) error {
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("create ingest run: %w", err)
	}
	return nil
}

func (s *IngestRuns) Save(ctx context.Context, run *database.IngestRun) error {
	if err := s.db.WithContext(ctx).Save(run).Error; err != nil {
		return fmt.Errorf("save ingest run: %w", err)
	}
	return nil
}
