package shared

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultPageSize is used when no page size is configured.
const DefaultPageSize = 20

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = DefaultPageSize
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// Offset returns the row offset of the current page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Check fails with ErrNotFound when the page lies beyond the last page.
// The first page of an empty result set is valid.
func (p Pagination) Check() error {
	if p.Page == 1 {
		return nil
	}
	if p.Page > p.TotalPages {
		return fmt.Errorf("page %d: %w", p.Page, ErrNotFound)
	}
	return nil
}

// HasNext reports whether a following page exists.
func (p Pagination) HasNext() bool {
	return p.Page < p.TotalPages
}

// HasPrevious reports whether a preceding page exists.
func (p Pagination) HasPrevious() bool {
	return p.Page > 1
}

// ParsePage parses a page query value. Empty means the first page.
func ParsePage(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 0, fmt.Errorf("invalid page %q: %w", raw, ErrNotFound)
	}
	return page, nil
}

// Page is the paginated envelope returned by list endpoints.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}
