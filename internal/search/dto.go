package search

import (
	"github.com/shopspring/decimal"
)

// Sort keys accepted by GetAvailableBooks.
const (
	SortByTitle = "title"
	SortByPrice = "price"

	SortAsc  = "asc"
	SortDesc = "desc"
)

// AvailableQuery selects a page of in-stock books.
type AvailableQuery struct {
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// OfferRow is one seller's in-stock listing for a book, hydrated from the
// projection and the per-ISBN seller list.
type OfferRow struct {
	ISBN       string          `json:"isbn"`
	Title      string          `json:"title"`
	Author     string          `json:"author"`
	Genre      string          `json:"genre,omitempty"`
	Format     string          `json:"format,omitempty"`
	Condition  string          `json:"condition,omitempty"`
	SellerID   string          `json:"sellerId"`
	SellerName string          `json:"sellerName,omitempty"`
	Price      decimal.Decimal `json:"price"`
	Stock      int             `json:"stock"`
	MinPrice   decimal.Decimal `json:"minPrice"`
	TotalStock int             `json:"totalStock"`
}

// AvailablePage is one page of seller rows plus the book-level total and the
// estimated seller-row total used for next-page hints.
type AvailablePage struct {
	Rows           []OfferRow `json:"rows"`
	Page           int        `json:"page"`
	PageSize       int        `json:"pageSize"`
	TotalBooks     int64      `json:"totalBooks"`
	EstimatedTotal int64      `json:"estimatedTotal"`
	HasNextPage    bool       `json:"hasNextPage"`
}

// SearchQuery is a token search over title, author and ISBN.
type SearchQuery struct {
	Query    string
	Page     int
	PageSize int
}

// SearchResult is one page of matching records, title-ordered.
type SearchResult struct {
	Records  []BookSearchRecord `json:"records"`
	Page     int                `json:"page"`
	PageSize int                `json:"pageSize"`
	Total    int                `json:"total"`
}

// QueryCount is one entry of the popular-searches leaderboard.
type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Analytics summarizes search traffic for one hourly window.
type Analytics struct {
	Window        string       `json:"window"`
	TotalSearches int64        `json:"totalSearches"`
	TopQueries    []QueryCount `json:"topQueries"`
}
