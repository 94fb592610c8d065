package metrics

import "github.com/prometheus/client_golang/prometheus"

// SearchCacheMetrics tracks cache hits and misses per query type.
type SearchCacheMetrics struct {
	hits   *prometheus.CounterVec
	misses *prometheus.CounterVec
}

// NewSearchCacheMetrics registers the search cache counters.
func NewSearchCacheMetrics(reg prometheus.Registerer) *SearchCacheMetrics {
	if reg == nil {
		return &SearchCacheMetrics{}
	}
	hits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "search_cache_hits",
		Help: "Search cache hits per query type.",
	}, []string{"query_type"})
	misses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "search_cache_misses",
		Help: "Search cache misses per query type.",
	}, []string{"query_type"})
	reg.MustRegister(hits, misses)
	return &SearchCacheMetrics{hits: hits, misses: misses}
}

// IncHit increments the hit counter for a query type.
func (m *SearchCacheMetrics) IncHit(queryType string) {
	if m == nil || m.hits == nil {
		return
	}
	m.hits.WithLabelValues(normalizeLabel(queryType)).Inc()
}

// IncMiss increments the miss counter for a query type.
func (m *SearchCacheMetrics) IncMiss(queryType string) {
	if m == nil || m.misses == nil {
		return
	}
	m.misses.WithLabelValues(normalizeLabel(queryType)).Inc()
}
