package search

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mkrogh/bookmarket-backend/pkg/config"
	pkgerrors "github.com/mkrogh/bookmarket-backend/pkg/errors"
	"github.com/mkrogh/bookmarket-backend/pkg/logger"
	"github.com/mkrogh/bookmarket-backend/pkg/metrics"
	"github.com/mkrogh/bookmarket-backend/pkg/outbox/payloads"
	"github.com/mkrogh/bookmarket-backend/pkg/pagination"
	pkgredis "github.com/mkrogh/bookmarket-backend/pkg/redis"
)

// Query types drive cache TTL assignment and the hit/miss counters.
const (
	queryTypeAvailable    = "available"
	queryTypeSearch       = "search"
	queryTypeAutocomplete = "autocomplete"
	queryTypeAnalytics    = "analytics"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100

	// cacheReadTimeout bounds cache lookups so a slow Redis never holds a
	// query hostage; misses fall through to the indexes.
	cacheReadTimeout = 2 * time.Second

	// freqWindow is the sliding hour used for TTL frequency boosts.
	freqWindow = time.Hour
)

// Service answers read queries over the search projection.
type Service interface {
	GetAvailableBooks(ctx context.Context, query AvailableQuery) (*AvailablePage, error)
	SearchBooks(ctx context.Context, query SearchQuery) (*SearchResult, error)
	Autocomplete(ctx context.Context, prefix string, limit int) ([]Suggestion, error)
	GetAnalytics(ctx context.Context) (*Analytics, error)
}

type queryService struct {
	store store
	cfg   config.SearchConfig
	cache *metrics.SearchCacheMetrics
	logg  *logger.Logger
	now   func() time.Time
}

// NewQueryService builds the query layer over the shared Redis client.
func NewQueryService(client *pkgredis.Client, cfg config.SearchConfig, cacheMetrics *metrics.SearchCacheMetrics, logg *logger.Logger) (Service, error) {
	st, err := newStore(client)
	if err != nil {
		return nil, err
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return newQueryService(st, cfg, cacheMetrics, logg), nil
}

func newQueryService(st store, cfg config.SearchConfig, cacheMetrics *metrics.SearchCacheMetrics, logg *logger.Logger) *queryService {
	return &queryService{
		store: st,
		cfg:   cfg,
		cache: cacheMetrics,
		logg:  logg,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// GetAvailableBooks range-reads the requested availability sorted set and
// hydrates one row per in-stock seller, preserving the sorted-set order.
func (s *queryService) GetAvailableBooks(ctx context.Context, query AvailableQuery) (*AvailablePage, error) {
	query, err := normalizeAvailableQuery(query)
	if err != nil {
		return nil, err
	}

	digest := digestOf("available", query.SortBy, query.SortOrder, query.Page, query.PageSize)
	var cached AvailablePage
	if s.readCache(ctx, queryTypeAvailable, digest, &cached) {
		return &cached, nil
	}

	setKey := availableByTitleKey()
	if query.SortBy == SortByPrice {
		setKey = availableByPriceKey()
	}

	totalBooks, err := s.store.ZCard(ctx, setKey)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count available books")
	}

	window := pagination.Page{Page: query.Page, PageSize: query.PageSize}
	members, err := s.store.ZRange(ctx, setKey, window.Offset(), window.End(), query.SortOrder == SortDesc)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read availability index")
	}

	rows, err := s.hydrateRows(ctx, members)
	if err != nil {
		return nil, err
	}

	page := &AvailablePage{
		Rows:       rows,
		Page:       query.Page,
		PageSize:   query.PageSize,
		TotalBooks: totalBooks,
	}
	// Seller-row total is an estimate: books times the sellers-per-book
	// average observed on this page.
	if len(members) > 0 {
		avg := float64(len(rows)) / float64(len(members))
		page.EstimatedTotal = int64(float64(totalBooks) * avg)
	}
	if page.EstimatedTotal > 0 {
		lastPage := (page.EstimatedTotal + int64(query.PageSize) - 1) / int64(query.PageSize)
		page.HasNextPage = int64(query.Page) < lastPage
	}

	s.writeCache(ctx, queryTypeAvailable, digest, page, true)
	return page, nil
}

// SearchBooks intersects the token sets of the query terms and returns the
// matching records ordered by title.
func (s *queryService) SearchBooks(ctx context.Context, query SearchQuery) (*SearchResult, error) {
	tokens := Tokenize(query.Query)
	if len(tokens) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "search query required")
	}
	if query.Page < 1 {
		query.Page = 1
	}
	if query.PageSize < 1 {
		query.PageSize = defaultPageSize
	}
	if query.PageSize > maxPageSize {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "page size exceeds maximum")
	}

	s.recordSearch(ctx, strings.ToLower(strings.TrimSpace(query.Query)))

	digest := digestOf("search", strings.Join(tokens, " "), query.Page, query.PageSize)
	var cached SearchResult
	if s.readCache(ctx, queryTypeSearch, digest, &cached) {
		return &cached, nil
	}

	var isbns []string
	var err error
	if len(tokens) == 1 {
		isbns, err = s.store.SMembers(ctx, tokenKey(tokens[0]))
	} else {
		keys := make([]string, len(tokens))
		for i, token := range tokens {
			keys[i] = tokenKey(token)
		}
		isbns, err = s.store.SInter(ctx, keys...)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read token index")
	}

	records := make([]BookSearchRecord, 0, len(isbns))
	for _, isbn := range isbns {
		hash, err := s.store.HGetAll(ctx, bookKey(isbn))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load record")
		}
		if record, ok := recordFromHash(hash); ok {
			records = append(records, record)
		}
	}
	sortRecordsByTitle(records)

	// An exact title match feeds autocomplete popularity.
	lowered := strings.ToLower(strings.TrimSpace(query.Query))
	for _, record := range records {
		if strings.ToLower(record.Title) == lowered {
			if err := recordTitleHit(ctx, s.store, record.Title); err != nil {
				s.logg.Warn(ctx, "title popularity bump failed")
			}
			break
		}
	}

	total := len(records)
	start := (query.Page - 1) * query.PageSize
	if start > total {
		start = total
	}
	end := start + query.PageSize
	if end > total {
		end = total
	}

	result := &SearchResult{
		Records:  records[start:end],
		Page:     query.Page,
		PageSize: query.PageSize,
		Total:    total,
	}
	s.writeCache(ctx, queryTypeSearch, digest, result, false)
	return result, nil
}

// Autocomplete suggests titles for a prefix of at least two characters.
func (s *queryService) Autocomplete(ctx context.Context, prefix string, limit int) ([]Suggestion, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if len([]rune(prefix)) < minPrefixLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "prefix must be at least 2 characters")
	}
	if limit < 1 {
		limit = 10
	}

	digest := digestOf("autocomplete", prefix, limit)
	var cached []Suggestion
	if s.readCache(ctx, queryTypeAutocomplete, digest, &cached) {
		return cached, nil
	}

	suggestions, err := suggestTitles(ctx, s.store, prefix, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read autocomplete index")
	}
	s.writeCache(ctx, queryTypeAutocomplete, digest, suggestions, false)
	return suggestions, nil
}

// GetAnalytics reports the current hourly window's counters and top queries.
func (s *queryService) GetAnalytics(ctx context.Context) (*Analytics, error) {
	window := s.window()

	digest := digestOf("analytics", window)
	var cached Analytics
	if s.readCache(ctx, queryTypeAnalytics, digest, &cached) {
		return &cached, nil
	}

	var total int64
	if raw, found, err := s.store.Get(ctx, statsKey(window)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read search stats")
	} else if found {
		total, _ = strconv.ParseInt(raw, 10, 64)
	}

	members, err := s.store.ZRange(ctx, popularKey(window), 0, 9, true)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read popular searches")
	}
	top := make([]QueryCount, 0, len(members))
	for _, member := range members {
		top = append(top, QueryCount{Query: member.Member, Count: int64(member.Score)})
	}

	analytics := &Analytics{Window: window, TotalSearches: total, TopQueries: top}
	s.writeCache(ctx, queryTypeAnalytics, digest, analytics, false)
	return analytics, nil
}

func (s *queryService) recordSearch(ctx context.Context, query string) {
	window := s.window()
	if _, err := s.store.IncrEx(ctx, statsKey(window), 25*time.Hour); err != nil {
		s.logg.Warn(ctx, "search stats increment failed")
	}
	if err := s.store.ZIncrBy(ctx, popularKey(window), 1, query); err != nil {
		s.logg.Warn(ctx, "popular searches increment failed")
	}
}

func (s *queryService) window() string {
	return s.now().Format("2006-01-02-15")
}

// readCache attempts a cache hit within the cache read deadline. Failures
// count as misses; the caller recomputes from the indexes.
func (s *queryService) readCache(ctx context.Context, queryType, digest string, out any) bool {
	readCtx, cancel := context.WithTimeout(ctx, cacheReadTimeout)
	defer cancel()

	raw, found, err := s.store.Get(readCtx, cacheKey(queryType, digest))
	if err != nil {
		s.logg.Warn(ctx, "cache read failed")
		s.cache.IncMiss(queryType)
		return false
	}
	if !found {
		s.cache.IncMiss(queryType)
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		s.cache.IncMiss(queryType)
		return false
	}
	s.cache.IncHit(queryType)
	return true
}

func (s *queryService) writeCache(ctx context.Context, queryType, digest string, value any, registerPage bool) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	key := cacheKey(queryType, digest)
	if err := s.store.SetEx(ctx, key, string(raw), s.effectiveTTL(ctx, queryType, digest)); err != nil {
		s.logg.Warn(ctx, "cache write failed")
		return
	}
	if registerPage {
		if err := s.store.SAdd(ctx, availablePagesKey(), key); err != nil {
			s.logg.Warn(ctx, "cache page registration failed")
		}
	}
}

// effectiveTTL applies the per-query-type base TTL, boosted x1.5 once a query
// shape is seen 20 times in an hour and x2 at 50.
func (s *queryService) effectiveTTL(ctx context.Context, queryType, digest string) time.Duration {
	base := s.baseTTL(queryType)
	count, err := s.store.IncrEx(ctx, freqKey(queryType, digest), freqWindow)
	if err != nil {
		return base
	}
	switch {
	case count >= 50:
		return base * 2
	case count >= 20:
		return base * 3 / 2
	default:
		return base
	}
}

func (s *queryService) baseTTL(queryType string) time.Duration {
	switch queryType {
	case queryTypeAvailable:
		return s.cfg.HotCacheTTL
	case queryTypeSearch:
		return s.cfg.WarmCacheTTL
	case queryTypeAutocomplete:
		return s.cfg.ColdCacheTTL
	default:
		return s.cfg.AnalyticsCacheTTL
	}
}

func (s *queryService) hydrateRows(ctx context.Context, members []scoredMember) ([]OfferRow, error) {
	rows := make([]OfferRow, 0, len(members))
	for _, member := range members {
		hash, err := s.store.HGetAll(ctx, bookKey(member.Member))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load record")
		}
		record, ok := recordFromHash(hash)
		if !ok {
			continue
		}
		offers, err := s.loadSellers(ctx, record.ISBN)
		if err != nil {
			return nil, err
		}
		for _, offer := range offers {
			if offer.Stock <= 0 {
				continue
			}
			rows = append(rows, OfferRow{
				ISBN:       record.ISBN,
				Title:      record.Title,
				Author:     record.Author,
				Genre:      record.Genre,
				Format:     record.Format,
				Condition:  record.Condition,
				SellerID:   offer.SellerID,
				SellerName: offer.SellerName,
				Price:      offer.Price,
				Stock:      offer.Stock,
				MinPrice:   record.MinPrice,
				TotalStock: record.TotalStock,
			})
		}
	}
	return rows, nil
}

func (s *queryService) loadSellers(ctx context.Context, isbn string) ([]payloads.SellerOffer, error) {
	raw, found, err := s.store.Get(ctx, sellersKey(isbn))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sellers")
	}
	if !found {
		return nil, nil
	}
	var offers []payloads.SellerOffer
	if err := json.Unmarshal([]byte(raw), &offers); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode sellers")
	}
	return offers, nil
}

func normalizeAvailableQuery(query AvailableQuery) (AvailableQuery, error) {
	if query.Page < 1 {
		return query, pkgerrors.New(pkgerrors.CodeValidation, "page must be at least 1")
	}
	if query.PageSize == 0 {
		query.PageSize = defaultPageSize
	}
	if query.PageSize < 1 || query.PageSize > maxPageSize {
		return query, pkgerrors.New(pkgerrors.CodeValidation, "page size must be between 1 and 100")
	}
	if query.SortBy == "" {
		query.SortBy = SortByTitle
	}
	if query.SortBy != SortByTitle && query.SortBy != SortByPrice {
		return query, pkgerrors.New(pkgerrors.CodeValidation, "unsupported sort key")
	}
	if query.SortOrder == "" {
		query.SortOrder = SortAsc
	}
	if query.SortOrder != SortAsc && query.SortOrder != SortDesc {
		return query, pkgerrors.New(pkgerrors.CodeValidation, "unsupported sort order")
	}
	return query, nil
}

func digestOf(parts ...any) string {
	var b strings.Builder
	for i, part := range parts {
		if i > 0 {
			b.WriteByte('|')
		}
		fmt.Fprintf(&b, "%v", part)
	}
	sum := sha1.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func sortRecordsByTitle(records []BookSearchRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return strings.ToLower(records[i].Title) < strings.ToLower(records[j].Title)
	})
}
