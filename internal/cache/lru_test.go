package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/seisgate/seisgate/pkg/types"
)

func TestLRUCachePutGet(t *testing.T) {
	c := NewLRUCache(&Config{MaxEntries: 10, TTL: time.Hour})
	defer c.Close()

	c.Put("a", 1)

	v, ok := c.Get("a")
	if !ok || v.(int) != 1 {
		t.Fatalf("Get(a) = %v, %v", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) should miss")
	}
}

// TestLRUCacheCapacityEviction covers the capacity-2 scenario: a third key
// evicts the least recently used entry regardless of remaining TTL, and
// re-querying the evicted key counts as a miss.
func TestLRUCacheCapacityEviction(t *testing.T) {
	c := NewLRUCache(&Config{MaxEntries: 2, TTL: 5 * time.Second})
	defer c.Close()

	c.Put("k1", "v1")
	c.Put("k2", "v2")
	c.Get("k1") // k2 is now least recently used
	c.Put("k3", "v3")

	if _, ok := c.Get("k2"); ok {
		t.Error("k2 should have been evicted")
	}
	if _, ok := c.Get("k1"); !ok {
		t.Error("k1 should still be cached")
	}
	if _, ok := c.Get("k3"); !ok {
		t.Error("k3 should be cached")
	}

	stats := c.Stats()
	if stats.Evictions != 1 {
		t.Errorf("evictions = %d, want 1", stats.Evictions)
	}
	if stats.Misses == 0 {
		t.Error("re-querying the evicted key must count as a miss")
	}
}

func TestLRUCacheTTLExpiry(t *testing.T) {
	c := NewLRUCache(&Config{MaxEntries: 10, TTL: 20 * time.Millisecond})
	defer c.Close()

	c.Put("a", 1)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("entry should be live before TTL")
	}

	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Error("entry must never be served past its TTL")
	}

	stats := c.Stats()
	if stats.Expired != 1 {
		t.Errorf("expired = %d, want 1", stats.Expired)
	}
}

func TestLRUCachePerEntryTTL(t *testing.T) {
	c := NewLRUCache(&Config{MaxEntries: 10, TTL: time.Hour})
	defer c.Close()

	c.PutWithTTL("short", 1, 10*time.Millisecond)
	c.Put("long", 2)

	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("short"); ok {
		t.Error("short entry should have expired")
	}
	if _, ok := c.Get("long"); !ok {
		t.Error("long entry should still be live")
	}
}

func TestGetOrComputeCachesResult(t *testing.T) {
	c := NewLRUCache(&Config{MaxEntries: 10, TTL: time.Hour})
	defer c.Close()

	computes := 0
	compute := func(ctx context.Context) (interface{}, error) {
		computes++
		return "value", nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrCompute(context.Background(), "k", compute)
		if err != nil {
			t.Fatal(err)
		}
		if v.(string) != "value" {
			t.Fatalf("value = %v", v)
		}
	}

	if computes != 1 {
		t.Errorf("compute ran %d times, want 1", computes)
	}
}

func TestGetOrComputeDoesNotCacheErrors(t *testing.T) {
	c := NewLRUCache(&Config{MaxEntries: 10, TTL: time.Hour})
	defer c.Close()

	computes := 0
	_, err := c.GetOrCompute(context.Background(), "k", func(ctx context.Context) (interface{}, error) {
		computes++
		return nil, fmt.Errorf("index down")
	})
	if err == nil {
		t.Fatal("expected error")
	}

	_, err = c.GetOrCompute(context.Background(), "k", func(ctx context.Context) (interface{}, error) {
		computes++
		return "ok", nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if computes != 2 {
		t.Errorf("failed compute must not be cached, computes = %d", computes)
	}
}

func TestGetOrComputeSingleFlight(t *testing.T) {
	c := NewLRUCache(&Config{MaxEntries: 10, TTL: time.Hour})
	defer c.Close()

	var computes int32
	release := make(chan struct{})
	compute := func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&computes, 1)
		<-release
		return "value", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrCompute(context.Background(), "k", compute)
			if err != nil || v.(string) != "value" {
				t.Errorf("GetOrCompute = %v, %v", v, err)
			}
		}()
	}

	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := atomic.LoadInt32(&computes); n != 1 {
		t.Errorf("concurrent misses collapsed into %d computes, want 1", n)
	}
}

func TestLRUCacheConcurrentAccess(t *testing.T) {
	c := NewLRUCache(&Config{MaxEntries: 64, TTL: time.Hour})
	defer c.Close()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", i%100)
				c.Put(key, i)
				c.Get(key)
			}
		}(g)
	}
	wg.Wait()

	if c.Len() > 64 {
		t.Errorf("len = %d exceeds capacity", c.Len())
	}
}

func TestQueryCacheTiers(t *testing.T) {
	qc := NewQueryCache(&QueryCacheConfig{
		Search:  Config{MaxEntries: 4, TTL: time.Minute},
		Facets:  Config{MaxEntries: 4, TTL: time.Hour},
		Scanner: Config{MaxEntries: 4, TTL: time.Second},
	})
	defer qc.Close()

	qc.Search.Put("s", 1)
	qc.Facets.Put("f", 2)

	stats := qc.Stats()
	for _, tier := range []string{"search", "facets", "scanner"} {
		if _, ok := stats[tier]; !ok {
			t.Errorf("missing stats for tier %s", tier)
		}
	}
	if stats["search"].Entries != 1 || stats["facets"].Entries != 1 || stats["scanner"].Entries != 0 {
		t.Errorf("tier entries = %+v", stats)
	}
}

func TestSearchKeyNormalization(t *testing.T) {
	a := SearchKey(types.QueryFilter{
		IDs:    []string{"s2", "s1"},
		Fields: map[string]string{"crs": "EPSG:23031", "region": "north-sea"},
	}, 0, 20)
	b := SearchKey(types.QueryFilter{
		IDs:    []string{"s1", "s2"},
		Fields: map[string]string{"region": "north-sea", "crs": "EPSG:23031"},
	}, 0, 20)

	if a != b {
		t.Errorf("logically identical filters produced different keys:\n%s\n%s", a, b)
	}

	c := SearchKey(types.QueryFilter{IDs: []string{"s1", "s2"}}, 20, 20)
	if a == c {
		t.Error("different pagination must produce different keys")
	}

	if SearchKey(types.QueryFilter{Text: "North  "}, 0, 10) != SearchKey(types.QueryFilter{Text: "north"}, 0, 10) {
		t.Error("text should be case- and whitespace-normalized")
	}

	if FacetKey(types.QueryFilter{Text: "x"}) == SearchKey(types.QueryFilter{Text: "x"}, 0, 0) {
		t.Error("facet and search keys must not collide")
	}
}

// TestGetOrComputeCountsOneMiss pins the hit/miss accounting: a single cold
// GetOrCompute is one logical miss, not one per internal lookup, and a warm
// call is one hit. The hit rate the stats endpoint reports depends on this.
func TestGetOrComputeCountsOneMiss(t *testing.T) {
	c := NewLRUCache(&Config{MaxEntries: 4, TTL: time.Minute})
	defer c.Close()

	_, err := c.GetOrCompute(context.Background(), "k", func(ctx context.Context) (interface{}, error) {
		return "v", nil
	})
	if err != nil {
		t.Fatal(err)
	}

	stats := c.Stats()
	if stats.Misses != 1 {
		t.Errorf("misses after one cold GetOrCompute = %d, want 1", stats.Misses)
	}
	if stats.Hits != 0 {
		t.Errorf("hits after one cold GetOrCompute = %d, want 0", stats.Hits)
	}

	if _, err := c.GetOrCompute(context.Background(), "k", func(ctx context.Context) (interface{}, error) {
		t.Error("compute must not run on a warm key")
		return nil, nil
	}); err != nil {
		t.Fatal(err)
	}

	stats = c.Stats()
	if stats.Misses != 1 || stats.Hits != 1 {
		t.Errorf("hits/misses = %d/%d, want 1/1", stats.Hits, stats.Misses)
	}
	if stats.HitRate != 0.5 {
		t.Errorf("hit rate = %v, want 0.5", stats.HitRate)
	}
}
