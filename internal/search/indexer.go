package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	pkgerrors "github.com/mkrogh/bookmarket-backend/pkg/errors"
	"github.com/mkrogh/bookmarket-backend/pkg/logger"
	"github.com/mkrogh/bookmarket-backend/pkg/outbox/payloads"
	pkgredis "github.com/mkrogh/bookmarket-backend/pkg/redis"
	"github.com/mkrogh/bookmarket-backend/pkg/types"
)

// Indexer maintains the Redis search projection: the inverted token index,
// facet sets, availability sorted sets, per-ISBN seller lists and the
// autocomplete structures. Callers must serialize writes per ISBN; the
// consumer hash-partitions messages to guarantee that.
type Indexer struct {
	store store
	logg  *logger.Logger
}

// NewIndexer builds the projection writer over the shared Redis client.
func NewIndexer(client *pkgredis.Client, logg *logger.Logger) (*Indexer, error) {
	st, err := newStore(client)
	if err != nil {
		return nil, err
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return newIndexer(st, logg), nil
}

func newIndexer(st store, logg *logger.Logger) *Indexer {
	return &Indexer{store: st, logg: logg}
}

// UpsertBook applies a BookCreated or BookUpdated event. Token and facet
// memberships are diffed against the previously indexed state so lost tokens
// are removed and gained tokens added, keeping the index consistent with the
// latest record.
func (ix *Indexer) UpsertBook(ctx context.Context, event payloads.BookUpsertEvent) error {
	isbn, err := normalizeISBN(event.ISBN)
	if err != nil {
		return err
	}
	event.ISBN = isbn

	old, _, err := ix.loadRecord(ctx, isbn)
	if err != nil {
		return fmt.Errorf("load record: %w", err)
	}
	record := upsertRecord(old, event)

	if err := ix.diffTokens(ctx, isbn, Tokenize(record.Title, record.Author, record.ISBN)); err != nil {
		return err
	}
	if err := ix.diffFacets(ctx, isbn, record.facetPairs()); err != nil {
		return err
	}

	if record.Rating != nil {
		if err := ix.store.ZAdd(ctx, ratingFacetKey(), *record.Rating, isbn); err != nil {
			return fmt.Errorf("index rating: %w", err)
		}
	} else if err := ix.store.ZRem(ctx, ratingFacetKey(), isbn); err != nil {
		return fmt.Errorf("drop rating: %w", err)
	}

	// Rewrite the hash wholesale so cleared optional fields do not linger.
	if err := ix.store.Del(ctx, bookKey(isbn)); err != nil {
		return fmt.Errorf("reset record: %w", err)
	}
	if err := ix.store.HSet(ctx, bookKey(isbn), record.hashFields()); err != nil {
		return fmt.Errorf("store record: %w", err)
	}
	if err := ix.store.SAdd(ctx, allBooksKey(), isbn); err != nil {
		return fmt.Errorf("register isbn: %w", err)
	}

	if record.Available() {
		if err := ix.store.ZAdd(ctx, availableByTitleKey(), titleScore(record.Title), isbn); err != nil {
			return fmt.Errorf("rescore title: %w", err)
		}
	}

	if old.Title != "" && old.Title != record.Title {
		if err := removeTitleCompletion(ctx, ix.store, old.Title); err != nil {
			return fmt.Errorf("drop old completion: %w", err)
		}
	}
	if err := indexTitleCompletion(ctx, ix.store, record.Title); err != nil {
		return fmt.Errorf("index completion: %w", err)
	}
	return nil
}

// DeleteBook removes an ISBN from every structure it appears in.
func (ix *Indexer) DeleteBook(ctx context.Context, rawISBN string) error {
	isbn, err := normalizeISBN(rawISBN)
	if err != nil {
		return err
	}

	record, found, err := ix.loadRecord(ctx, isbn)
	if err != nil {
		return fmt.Errorf("load record: %w", err)
	}

	tokens, err := ix.store.SMembers(ctx, bookTokensKey(isbn))
	if err != nil {
		return fmt.Errorf("load tokens: %w", err)
	}
	for _, token := range tokens {
		if err := ix.store.SRem(ctx, tokenKey(token), isbn); err != nil {
			return fmt.Errorf("drop token %q: %w", token, err)
		}
	}

	pairs, err := ix.store.SMembers(ctx, bookFacetsKey(isbn))
	if err != nil {
		return fmt.Errorf("load facets: %w", err)
	}
	for _, pair := range pairs {
		if dimension, value, ok := splitFacetPair(pair); ok {
			if err := ix.store.SRem(ctx, facetKey(dimension, value), isbn); err != nil {
				return fmt.Errorf("drop facet %q: %w", pair, err)
			}
		}
	}

	if err := ix.store.ZRem(ctx, availableByTitleKey(), isbn); err != nil {
		return fmt.Errorf("drop title rank: %w", err)
	}
	if err := ix.store.ZRem(ctx, availableByPriceKey(), isbn); err != nil {
		return fmt.Errorf("drop price rank: %w", err)
	}
	if err := ix.store.ZRem(ctx, ratingFacetKey(), isbn); err != nil {
		return fmt.Errorf("drop rating: %w", err)
	}

	if found && record.Title != "" {
		if err := removeTitleCompletion(ctx, ix.store, record.Title); err != nil {
			return fmt.Errorf("drop completion: %w", err)
		}
	}

	if err := ix.store.SRem(ctx, allBooksKey(), isbn); err != nil {
		return fmt.Errorf("deregister isbn: %w", err)
	}
	if err := ix.store.Del(ctx, bookKey(isbn), bookTokensKey(isbn), bookFacetsKey(isbn), sellersKey(isbn)); err != nil {
		return fmt.Errorf("drop record keys: %w", err)
	}
	return ix.invalidateAvailablePages(ctx)
}

// MergeStock folds a stock update into the record and moves the ISBN in or
// out of the availability sorted sets. Cached available-books pages are
// invalidated so the next query re-reads the indexes.
func (ix *Indexer) MergeStock(ctx context.Context, event payloads.BookStockUpdatedEvent) error {
	isbn, err := normalizeISBN(event.ISBN)
	if err != nil {
		return err
	}

	record, found, err := ix.loadRecord(ctx, isbn)
	if err != nil {
		return fmt.Errorf("load record: %w", err)
	}
	if !found {
		// Stock can outrun BookCreated across partitions; keep a skeleton.
		record = BookSearchRecord{ISBN: isbn}
	}
	record.TotalStock = event.TotalStock
	record.AvailableSellers = event.AvailableSellers
	record.MinPrice = event.MinPrice

	fields := map[string]any{
		"isbn":              record.ISBN,
		"total_stock":       record.TotalStock,
		"available_sellers": record.AvailableSellers,
		"min_price":         record.MinPrice.String(),
	}
	if err := ix.store.HSet(ctx, bookKey(isbn), fields); err != nil {
		return fmt.Errorf("merge record: %w", err)
	}
	if err := ix.store.SAdd(ctx, allBooksKey(), isbn); err != nil {
		return fmt.Errorf("register isbn: %w", err)
	}

	if len(event.Sellers) > 0 {
		if err := ix.writeSellers(ctx, isbn, event.Sellers); err != nil {
			return err
		}
	}

	if record.Available() {
		// Price ranking needs a real price; a zero min price keeps the book
		// findable by title but unranked by price.
		if record.MinPrice.IsPositive() {
			price, _ := record.MinPrice.Float64()
			if err := ix.store.ZAdd(ctx, availableByPriceKey(), price, isbn); err != nil {
				return fmt.Errorf("rank by price: %w", err)
			}
		} else if err := ix.store.ZRem(ctx, availableByPriceKey(), isbn); err != nil {
			return fmt.Errorf("unrank by price: %w", err)
		}
		if record.Title != "" {
			if err := ix.store.ZAdd(ctx, availableByTitleKey(), titleScore(record.Title), isbn); err != nil {
				return fmt.Errorf("rank by title: %w", err)
			}
		}
	} else {
		if err := ix.store.ZRem(ctx, availableByPriceKey(), isbn); err != nil {
			return fmt.Errorf("unrank by price: %w", err)
		}
		if err := ix.store.ZRem(ctx, availableByTitleKey(), isbn); err != nil {
			return fmt.Errorf("unrank by title: %w", err)
		}
	}
	return ix.invalidateAvailablePages(ctx)
}

// SetSellerName records a seller's display name and writes it through into
// every seller list the seller appears in.
func (ix *Indexer) SetSellerName(ctx context.Context, sellerID, name string) error {
	if sellerID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	if err := ix.store.HSet(ctx, sellerNamesKey(), map[string]any{sellerID: name}); err != nil {
		return fmt.Errorf("store seller name: %w", err)
	}

	isbns, err := ix.store.SMembers(ctx, sellerBooksKey(sellerID))
	if err != nil {
		return fmt.Errorf("load seller books: %w", err)
	}
	for _, isbn := range isbns {
		offers, err := ix.loadSellers(ctx, isbn)
		if err != nil {
			return err
		}
		changed := false
		for i := range offers {
			if offers[i].SellerID == sellerID && offers[i].SellerName != name {
				offers[i].SellerName = name
				changed = true
			}
		}
		if !changed {
			continue
		}
		if err := ix.storeSellers(ctx, isbn, offers); err != nil {
			return err
		}
	}
	return nil
}

func (ix *Indexer) diffTokens(ctx context.Context, isbn string, tokens []string) error {
	oldTokens, err := ix.store.SMembers(ctx, bookTokensKey(isbn))
	if err != nil {
		return fmt.Errorf("load tokens: %w", err)
	}
	added, removed := diffMembers(oldTokens, tokens)
	for _, token := range removed {
		if err := ix.store.SRem(ctx, tokenKey(token), isbn); err != nil {
			return fmt.Errorf("drop token %q: %w", token, err)
		}
	}
	for _, token := range added {
		if err := ix.store.SAdd(ctx, tokenKey(token), isbn); err != nil {
			return fmt.Errorf("add token %q: %w", token, err)
		}
	}
	if err := ix.store.Del(ctx, bookTokensKey(isbn)); err != nil {
		return fmt.Errorf("reset token set: %w", err)
	}
	if err := ix.store.SAdd(ctx, bookTokensKey(isbn), tokens...); err != nil {
		return fmt.Errorf("store token set: %w", err)
	}
	return nil
}

func (ix *Indexer) diffFacets(ctx context.Context, isbn string, pairs []string) error {
	oldPairs, err := ix.store.SMembers(ctx, bookFacetsKey(isbn))
	if err != nil {
		return fmt.Errorf("load facets: %w", err)
	}
	added, removed := diffMembers(oldPairs, pairs)
	for _, pair := range removed {
		if dimension, value, ok := splitFacetPair(pair); ok {
			if err := ix.store.SRem(ctx, facetKey(dimension, value), isbn); err != nil {
				return fmt.Errorf("drop facet %q: %w", pair, err)
			}
		}
	}
	for _, pair := range added {
		if dimension, value, ok := splitFacetPair(pair); ok {
			if err := ix.store.SAdd(ctx, facetKey(dimension, value), isbn); err != nil {
				return fmt.Errorf("add facet %q: %w", pair, err)
			}
		}
	}
	if err := ix.store.Del(ctx, bookFacetsKey(isbn)); err != nil {
		return fmt.Errorf("reset facet set: %w", err)
	}
	if err := ix.store.SAdd(ctx, bookFacetsKey(isbn), pairs...); err != nil {
		return fmt.Errorf("store facet set: %w", err)
	}
	return nil
}

func (ix *Indexer) writeSellers(ctx context.Context, isbn string, offers []payloads.SellerOffer) error {
	names, err := ix.store.HGetAll(ctx, sellerNamesKey())
	if err != nil {
		return fmt.Errorf("load seller names: %w", err)
	}
	for i := range offers {
		if offers[i].SellerName == "" {
			offers[i].SellerName = names[offers[i].SellerID]
		}
		if err := ix.store.SAdd(ctx, sellerBooksKey(offers[i].SellerID), isbn); err != nil {
			return fmt.Errorf("register seller book: %w", err)
		}
	}
	return ix.storeSellers(ctx, isbn, offers)
}

func (ix *Indexer) loadRecord(ctx context.Context, isbn string) (BookSearchRecord, bool, error) {
	hash, err := ix.store.HGetAll(ctx, bookKey(isbn))
	if err != nil {
		return BookSearchRecord{}, false, err
	}
	record, found := recordFromHash(hash)
	return record, found, nil
}

func (ix *Indexer) loadSellers(ctx context.Context, isbn string) ([]payloads.SellerOffer, error) {
	raw, found, err := ix.store.Get(ctx, sellersKey(isbn))
	if err != nil {
		return nil, fmt.Errorf("load sellers: %w", err)
	}
	if !found {
		return nil, nil
	}
	var offers []payloads.SellerOffer
	if err := json.Unmarshal([]byte(raw), &offers); err != nil {
		return nil, fmt.Errorf("decode sellers: %w", err)
	}
	return offers, nil
}

func (ix *Indexer) storeSellers(ctx context.Context, isbn string, offers []payloads.SellerOffer) error {
	raw, err := json.Marshal(offers)
	if err != nil {
		return fmt.Errorf("encode sellers: %w", err)
	}
	if err := ix.store.SetEx(ctx, sellersKey(isbn), string(raw), 0); err != nil {
		return fmt.Errorf("store sellers: %w", err)
	}
	return nil
}

func (ix *Indexer) invalidateAvailablePages(ctx context.Context) error {
	pages, err := ix.store.SMembers(ctx, availablePagesKey())
	if err != nil {
		return fmt.Errorf("load page registry: %w", err)
	}
	keys := append(pages, availablePagesKey())
	if err := ix.store.Del(ctx, keys...); err != nil {
		return fmt.Errorf("invalidate pages: %w", err)
	}
	return nil
}

func normalizeISBN(raw string) (string, error) {
	isbn, err := types.NewISBN(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid isbn")
	}
	return isbn.String(), nil
}

// diffMembers reports which members of next are missing from prev and which
// members of prev are gone from next.
func diffMembers(prev, next []string) (added, removed []string) {
	prevSet := make(map[string]struct{}, len(prev))
	for _, member := range prev {
		prevSet[member] = struct{}{}
	}
	nextSet := make(map[string]struct{}, len(next))
	for _, member := range next {
		nextSet[member] = struct{}{}
	}
	for _, member := range next {
		if _, ok := prevSet[member]; !ok {
			added = append(added, member)
		}
	}
	for _, member := range prev {
		if _, ok := nextSet[member]; !ok {
			removed = append(removed, member)
		}
	}
	return added, removed
}

// titleScore packs the first eight characters of the lowercased title into
// 48 bits (six per character), which a float64 represents exactly, giving a
// deterministic lexicographic sort key.
func titleScore(title string) float64 {
	runes := []rune(strings.ToLower(title))
	var packed uint64
	for i := 0; i < 8; i++ {
		var r rune
		if i < len(runes) {
			r = runes[i]
		}
		packed = packed<<6 | charRank(r)
	}
	return float64(packed)
}

func charRank(r rune) uint64 {
	switch {
	case r == 0:
		return 0
	case r < '0':
		return 1
	case r <= '9':
		return 2 + uint64(r-'0')
	case r < 'a':
		return 12
	case r <= 'z':
		return 13 + uint64(r-'a')
	default:
		return 39
	}
}
