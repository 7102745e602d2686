package store

import "gorm.io/gorm"

const maxPerPage = 100

// Page selects one page of a listing query.
type Page struct {
	Number  int
	PerPage int
}

// NewPage clamps the requested page and size; perPage <= 0 falls back to defaultPerPage.
func NewPage(number, perPage, defaultPerPage int) Page {
	if number < 1 {
		number = 1
	}
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return Page{Number: number, PerPage: perPage}
}

func (p Page) offset() int { return (p.Number - 1) * p.PerPage }

// Pagination describes the page returned alongside a list.
type Pagination struct {
	Total       int64 `json:"total"`
	PerPage     int   `json:"per_page"`
	CurrentPage int   `json:"current_page"`
	LastPage    int   `json:"last_page"`
	From        *int  `json:"from"`
	To          *int  `json:"to"`
}

func newPagination(p Page, total int64, count int) Pagination {
	last := 1
	if total > 0 {
		last = int((total + int64(p.PerPage) - 1) / int64(p.PerPage))
	}
	out := Pagination{
		Total:       total,
		PerPage:     p.PerPage,
		CurrentPage: p.Number,
		LastPage:    last,
	}
	if count > 0 {
		from := p.offset() + 1
		to := p.offset() + count
		out.From = &from
		out.To = &to
	}
	return out
}

// paginate counts q, then loads the requested page with the given associations.
func paginate[T any](q *gorm.DB, p Page, order string, preloads ...string) ([]T, Pagination, error) {
	var total int64
	if err := q.Session(&gorm.Session{}).Model(new(T)).Count(&total).Error; err != nil {
		return nil, Pagination{}, err
	}

	items := make([]T, 0, p.PerPage)
	if total > int64(p.offset()) {
		find := q.Session(&gorm.Session{})
		for _, assoc := range preloads {
			find = find.Preload(assoc)
		}
		if err := find.Order(order).Offset(p.offset()).Limit(p.PerPage).Find(&items).Error; err != nil {
			return nil, Pagination{}, err
		}
	}
	return items, newPagination(p, total, len(items)), nil
}
