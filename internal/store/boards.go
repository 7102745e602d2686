package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"jobcompass/internal/database"
	"jobcompass/internal/errcode"
)

const boardEntity = "Board"

type Boards struct {
	db *gorm.DB
}

type BoardFilter struct {
	Type     string
	IsActive *bool
}

func (s *Boards) List(ctx context.Context, f BoardFilter, p Page) ([]database.Board, Pagination, error) {
	q := s.db.WithContext(ctx).Model(&database.Board{})
	if t := strings.TrimSpace(f.Type); t != "" {
		q = q.Where("type = ?", strings.ToLower(t))
	}
	if f.IsActive != nil {
		q = q.Where("is_active = ?", *f.IsActive)
	}
	items, page, err := paginate[database.Board](q, p, "name ASC, id ASC")
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("list boards: %w", err)
	}
	return items, page, nil
}

func (s *Boards) Get(ctx context.Context, id uint) (*database.Board, error) {
	var board database.Board
	if err := s.db.WithContext(ctx).First(&board, id).Error; err != nil {
		return nil, lookupErr(err, boardEntity)
	}
	return &board, nil
}

func (s *Boards) Active(ctx context.Context) ([]database.Board, error) {
	var boards []database.Board
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("id").Find(&boards).Error; err != nil {
		return nil, fmt.Errorf("list active boards: %w", err)
	}
	return boards, nil
}

// Due returns the active boards whose search frequency has elapsed at now.
func (s *Boards) Due(ctx context.Context, now time.Time) ([]database.Board, error) {
	boards, err := s.Active(ctx)
	if err != nil {
		return nil, err
	}
	due := boards[:0]
	for _, b := range boards {
		if b.DueForSearch(now) {
			due = append(due, b)
		}
	}
	return due, nil
}

func (s *Boards) Create(ctx context.Context, board *database.Board) error {
	if err := s.db.WithContext(ctx).Create(board).Error; err != nil {
		return fmt.Errorf("create board: %w", err)
	}
	return nil
}

// EnsureByName creates board unless a board with the same name exists. It reports whether a row was created.
func (s *Boards) EnsureByName(ctx context.Context, board *database.Board) (bool, error) {
	var existing database.Board
	err := s.db.WithContext(ctx).Where("name = ?", board.Name).First(&existing).Error
	if err == nil {
		*board = existing
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("find board by name: %w", err)
	}
	if err := s.Create(ctx, board); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Boards) Update(ctx context.Context, board *database.Board) error {
	if err := s.db.WithContext(ctx).Save(board).Error; err != nil {
		return fmt.Errorf("update board: %w", err)
	}
	return nil
}

func (s *Boards) MarkSearched(ctx context.Context, id uint, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&database.Board{}).Where("id = ?", id).Update("last_searched_at", at).Error
	if err != nil {
		return fmt.Errorf("mark board searched: %w", err)
	}
	return nil
}

func (s *Boards) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&database.Board{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete board: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errcode.NotFound(boardEntity)
	}
	return nil
}
