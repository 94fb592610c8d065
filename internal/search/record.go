package search

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mkrogh/bookmarket-backend/pkg/outbox/payloads"
)

// BookSearchRecord is the authoritative projection of one title, stored as a
// Redis hash under book:{isbn}.
type BookSearchRecord struct {
	ISBN             string          `json:"isbn"`
	Title            string          `json:"title"`
	Author           string          `json:"author"`
	Genre            string          `json:"genre,omitempty"`
	Language         string          `json:"language,omitempty"`
	Format           string          `json:"format,omitempty"`
	Condition        string          `json:"condition,omitempty"`
	Publisher        string          `json:"publisher,omitempty"`
	Year             int             `json:"year,omitempty"`
	Rating           *float64        `json:"rating,omitempty"`
	TotalStock       int             `json:"totalStock"`
	AvailableSellers int             `json:"availableSellers"`
	MinPrice         decimal.Decimal `json:"minPrice"`
}

// Available reports whether the title belongs in the availability indexes.
// A zero minimum price does not hide a stocked book; it only keeps the book
// out of the price ranking.
func (r BookSearchRecord) Available() bool {
	return r.TotalStock > 0 && r.AvailableSellers > 0
}

func (r BookSearchRecord) hashFields() map[string]any {
	fields := map[string]any{
		"isbn":              r.ISBN,
		"title":             r.Title,
		"author":            r.Author,
		"genre":             r.Genre,
		"language":          r.Language,
		"format":            r.Format,
		"condition":         r.Condition,
		"publisher":         r.Publisher,
		"year":              strconv.Itoa(r.Year),
		"total_stock":       strconv.Itoa(r.TotalStock),
		"available_sellers": strconv.Itoa(r.AvailableSellers),
		"min_price":         r.MinPrice.String(),
	}
	if r.Rating != nil {
		fields["rating"] = strconv.FormatFloat(*r.Rating, 'f', -1, 64)
	}
	return fields
}

func recordFromHash(hash map[string]string) (BookSearchRecord, bool) {
	if len(hash) == 0 || hash["isbn"] == "" {
		return BookSearchRecord{}, false
	}
	record := BookSearchRecord{
		ISBN:      hash["isbn"],
		Title:     hash["title"],
		Author:    hash["author"],
		Genre:     hash["genre"],
		Language:  hash["language"],
		Format:    hash["format"],
		Condition: hash["condition"],
		Publisher: hash["publisher"],
	}
	record.Year, _ = strconv.Atoi(hash["year"])
	record.TotalStock, _ = strconv.Atoi(hash["total_stock"])
	record.AvailableSellers, _ = strconv.Atoi(hash["available_sellers"])
	if raw := hash["min_price"]; raw != "" {
		if price, err := decimal.NewFromString(raw); err == nil {
			record.MinPrice = price
		}
	}
	if raw := hash["rating"]; raw != "" {
		if rating, err := strconv.ParseFloat(raw, 64); err == nil {
			record.Rating = &rating
		}
	}
	return record, true
}

// facetPairs lists the "dimension:value" memberships this record holds, used
// for diffing the facet sets on update.
func (r BookSearchRecord) facetPairs() []string {
	var pairs []string
	add := func(dimension, value string) {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" {
			return
		}
		pairs = append(pairs, dimension+":"+value)
	}
	add("genre", r.Genre)
	add("language", r.Language)
	add("format", r.Format)
	add("condition", r.Condition)
	add("publisher", r.Publisher)
	return pairs
}

func splitFacetPair(pair string) (dimension, value string, ok bool) {
	idx := strings.Index(pair, ":")
	if idx <= 0 || idx == len(pair)-1 {
		return "", "", false
	}
	return pair[:idx], pair[idx+1:], true
}

func decodeSellerOffers(raw string) ([]payloads.SellerOffer, error) {
	var offers []payloads.SellerOffer
	if err := json.Unmarshal([]byte(raw), &offers); err != nil {
		return nil, fmt.Errorf("decode sellers: %w", err)
	}
	return offers, nil
}

func upsertRecord(existing BookSearchRecord, event payloads.BookUpsertEvent) BookSearchRecord {
	existing.ISBN = event.ISBN
	existing.Title = event.Title
	existing.Author = event.Author
	existing.Genre = event.Genre
	existing.Language = event.Language
	existing.Format = event.Format
	existing.Condition = event.Condition
	existing.Publisher = event.Publisher
	existing.Year = event.Year
	existing.Rating = event.Rating
	return existing
}
