package pagination

import "fmt"

// Page holds offset-based pagination inputs for the search query layer.
type Page struct {
	Page     int
	PageSize int
}

// ValidatePage rejects out-of-range page inputs instead of silently clamping;
// callers translate the error into a validation response.
func ValidatePage(page, pageSize int) (Page, error) {
	if page < 1 {
		return Page{}, fmt.Errorf("page must be >= 1")
	}
	if pageSize < 1 || pageSize > MaxLimit {
		return Page{}, fmt.Errorf("pageSize must be between 1 and %d", MaxLimit)
	}
	return Page{Page: page, PageSize: pageSize}, nil
}

// Offset returns the zero-based start index for the page.
func (p Page) Offset() int64 {
	return int64(p.Page-1) * int64(p.PageSize)
}

// End returns the inclusive stop index used by sorted-set range reads.
func (p Page) End() int64 {
	return p.Offset() + int64(p.PageSize) - 1
}

// Meta describes a result page for response envelopes.
type Meta struct {
	Page            int   `json:"page"`
	PageSize        int   `json:"pageSize"`
	TotalCount      int64 `json:"totalCount"`
	TotalPages      int   `json:"totalPages"`
	HasNextPage     bool  `json:"hasNextPage"`
	HasPreviousPage bool  `json:"hasPreviousPage"`
}

// NewMeta derives page metadata from the total row count.
func NewMeta(p Page, totalCount int64) Meta {
	totalPages := int((totalCount + int64(p.PageSize) - 1) / int64(p.PageSize))
	return Meta{
		Page:            p.Page,
		PageSize:        p.PageSize,
		TotalCount:      totalCount,
		TotalPages:      totalPages,
		HasNextPage:     p.Page < totalPages,
		HasPreviousPage: p.Page > 1,
	}
}
