package cache

import (
	"fmt"
	"sort"
	"strings"

	"github.com/seisgate/seisgate/pkg/types"
)

// QueryCache holds the independent cache tiers sitting in front of the
// metadata index: search results (short TTL, high churn), facets (long TTL,
// low churn), and fallback scanner results (very short TTL so recovered
// index-backed results replace partial ones quickly).
type QueryCache struct {
	Search  *LRUCache
	Facets  *LRUCache
	Scanner *LRUCache
}

// QueryCacheConfig configures every tier
type QueryCacheConfig struct {
	Search  Config `yaml:"search"`
	Facets  Config `yaml:"facets"`
	Scanner Config `yaml:"scanner"`
}

// NewQueryCache creates all cache tiers
func NewQueryCache(config *QueryCacheConfig) *QueryCache {
	if config == nil {
		config = &QueryCacheConfig{}
	}
	return &QueryCache{
		Search:  NewLRUCache(&config.Search),
		Facets:  NewLRUCache(&config.Facets),
		Scanner: NewLRUCache(&config.Scanner),
	}
}

// Stats returns per-tier statistics keyed by tier name
func (qc *QueryCache) Stats() map[string]types.CacheStats {
	return map[string]types.CacheStats{
		"search":  qc.Search.Stats(),
		"facets":  qc.Facets.Stats(),
		"scanner": qc.Scanner.Stats(),
	}
}

// Close stops every tier's background cleanup
func (qc *QueryCache) Close() {
	qc.Search.Close()
	qc.Facets.Close()
	qc.Scanner.Close()
}

// SearchKey builds a canonical cache key for a filter/pagination combination.
// Logically identical queries produce the same key irrespective of argument
// order: id lists and field maps are sorted before rendering.
func SearchKey(filter types.QueryFilter, offset, limit int) string {
	return fmt.Sprintf("q|%s|o=%d|l=%d", canonicalFilter(filter), offset, limit)
}

// FacetKey builds a canonical cache key for a facet aggregation.
func FacetKey(filter types.QueryFilter) string {
	return "f|" + canonicalFilter(filter)
}

func canonicalFilter(filter types.QueryFilter) string {
	var parts []string

	if filter.Text != "" {
		parts = append(parts, "t="+strings.ToLower(strings.TrimSpace(filter.Text)))
	}
	if filter.PathPrefix != "" {
		parts = append(parts, "p="+filter.PathPrefix)
	}
	if len(filter.IDs) > 0 {
		ids := make([]string, len(filter.IDs))
		copy(ids, filter.IDs)
		sort.Strings(ids)
		parts = append(parts, "ids="+strings.Join(ids, ","))
	}
	if len(filter.Fields) > 0 {
		keys := make([]string, 0, len(filter.Fields))
		for k := range filter.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, k+"="+filter.Fields[k])
		}
	}

	return strings.Join(parts, "&")
}
