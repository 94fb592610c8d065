package search

import (
	pkgredis "github.com/mkrogh/bookmarket-backend/pkg/redis"
)

// keyer is a zero client used purely for key construction so the search
// keyspace stays under the shared "bm:search" namespace.
var keyer pkgredis.Client

func bookKey(isbn string) string {
	return keyer.SearchKey("book", isbn)
}

// bookTokensKey holds the tokens currently indexed for an ISBN, so updates
// can diff instead of rebuilding the inverted index.
func bookTokensKey(isbn string) string {
	return keyer.SearchKey("tokens", isbn)
}

// bookFacetsKey holds the "dimension:value" pairs currently indexed for an
// ISBN, mirroring bookTokensKey for facet diffing.
func bookFacetsKey(isbn string) string {
	return keyer.SearchKey("facets", isbn)
}

func tokenKey(token string) string {
	return keyer.SearchKey("index", token)
}

func sellersKey(isbn string) string {
	return keyer.SearchKey("sellers", isbn)
}

func sellerBooksKey(sellerID string) string {
	return keyer.SearchKey("seller_books", sellerID)
}

func sellerNamesKey() string {
	return keyer.SearchKey("seller_names")
}

func allBooksKey() string {
	return keyer.SearchKey("all_books")
}

func facetKey(dimension, value string) string {
	return keyer.SearchKey("facet", dimension, value)
}

func ratingFacetKey() string {
	return keyer.SearchKey("facet", "rating")
}

func availableByTitleKey() string {
	return keyer.SearchKey("available", "books", "by", "title")
}

func availableByPriceKey() string {
	return keyer.SearchKey("available", "books", "by", "price")
}

func autocompleteKey(prefix string) string {
	return keyer.SearchKey("autocomplete", prefix)
}

func cacheKey(queryType, digest string) string {
	return keyer.SearchKey("cache", queryType, digest)
}

// availablePagesKey registers every cached available-books page so stock
// updates can invalidate them without a keyspace scan.
func availablePagesKey() string {
	return keyer.SearchKey("cache", "available", "pages")
}

func freqKey(queryType, digest string) string {
	return keyer.SearchKey("freq", queryType, digest)
}

func statsKey(window string) string {
	return keyer.SearchKey("stats", window)
}

func popularKey(window string) string {
	return keyer.SearchKey("popular", window)
}
