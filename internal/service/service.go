// Package service is the composition root and upstream surface of SeisGate.
// It owns every subsystem — query cache, metadata index client, fallback
// scanner, mount health monitor, volumetric gateway, metrics — and exposes
// the operations the front end consumes. All results are structured and
// serialization-ready; no raw native or transport error leaves this package.
package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/seisgate/seisgate/internal/cache"
	"github.com/seisgate/seisgate/internal/config"
	"github.com/seisgate/seisgate/internal/gateway"
	"github.com/seisgate/seisgate/internal/health"
	"github.com/seisgate/seisgate/internal/index"
	"github.com/seisgate/seisgate/internal/metrics"
	"github.com/seisgate/seisgate/internal/native"
	"github.com/seisgate/seisgate/internal/scanner"
	seiserrors "github.com/seisgate/seisgate/pkg/errors"
	"github.com/seisgate/seisgate/pkg/log"
	"github.com/seisgate/seisgate/pkg/types"
)

// enumerationKey is the scanner-tier cache key for the full root walk. The
// walk has no parameters, so one entry covers every fallback query.
const enumerationKey = "scan|roots"

// Service wires the SeisGate subsystems together.
type Service struct {
	config    *config.Configuration
	cache     *cache.QueryCache
	index     *index.Client
	scanner   *scanner.Scanner
	monitor   *health.Monitor
	gateway   *gateway.Gateway
	collector *metrics.Collector
	logger    zerolog.Logger

	mu      sync.Mutex
	started bool
}

// New assembles a service from configuration. The native runtime is injected
// so tests can substitute a fake for the real volumetric library.
func New(ctx context.Context, cfg *config.Configuration, runtime native.Runtime) (*Service, error) {
	if cfg == nil {
		cfg = config.NewDefault()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	collector, err := metrics.NewCollector(&cfg.Metrics)
	if err != nil {
		return nil, err
	}

	queryCache := cache.NewQueryCache(&cache.QueryCacheConfig{
		Search:  cache.Config{MaxEntries: cfg.Cache.Search.MaxEntries, TTL: cfg.Cache.Search.TTL},
		Facets:  cache.Config{MaxEntries: cfg.Cache.Facets.MaxEntries, TTL: cfg.Cache.Facets.TTL},
		Scanner: cache.Config{MaxEntries: cfg.Cache.Scanner.MaxEntries, TTL: cfg.Cache.Scanner.TTL},
	})

	var indexClient *index.Client
	if cfg.Index.Enabled {
		indexClient = index.NewClient(&cfg.Index)
	}

	var lister scanner.ObjectLister
	for _, root := range cfg.Storage.Roots {
		if strings.HasPrefix(root, "s3://") {
			l, err := scanner.NewS3Lister(ctx, &cfg.Storage)
			if err != nil {
				return nil, err
			}
			lister = l
			break
		}
	}

	monitor := health.NewMonitor(cfg.Storage.Roots, &health.Config{
		ProbeTimeout:     cfg.Health.ProbeTimeout,
		ProbeInterval:    cfg.Health.ProbeInterval,
		SlowThreshold:    cfg.Health.SlowThreshold,
		FailureThreshold: cfg.Health.FailureThreshold,
		Cooldown:         cfg.Health.Cooldown,
	})
	monitor.OnProbe = func(path string, state types.MountState, latency time.Duration) {
		collector.RecordProbe(path, string(state), latency)
	}
	monitor.OnCircuitOpen = func(path string) {
		collector.RecordCircuitOpen(path)
	}

	s := &Service{
		config:    cfg,
		cache:     queryCache,
		index:     indexClient,
		scanner:   scanner.New(&cfg.Storage, lister),
		monitor:   monitor,
		collector: collector,
		logger:    log.WithComponent("service"),
	}
	s.gateway = gateway.New(&cfg.Gateway, runtime, s, collector)
	return s, nil
}

// Start launches the background subsystems: the probe loop and the metrics
// endpoint.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	if err := s.monitor.Start(ctx); err != nil {
		return err
	}
	if err := s.collector.Start(ctx); err != nil {
		s.monitor.Stop()
		return err
	}

	s.started = true
	s.logger.Info().
		Int("roots", len(s.config.Storage.Roots)).
		Bool("index_enabled", s.config.Index.Enabled).
		Msg("service started")
	return nil
}

// Stop tears the service down: native handles close, the probe loop halts,
// caches stop their cleanup goroutines.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false

	var firstErr error
	if err := s.gateway.Close(); err != nil {
		firstErr = err
	}
	if err := s.monitor.Stop(); err != nil && firstErr == nil {
		firstErr = err
	}
	s.cache.Close()
	if err := s.collector.Stop(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	s.logger.Info().Msg("service stopped")
	return firstErr
}

// ListMetadata returns one page of survey records. The cache answers first;
// a miss queries the metadata index; an unavailable index triggers exactly
// one fallback to the direct scanner, whose partial results are tagged and
// cached under the short-lived scanner tier.
func (s *Service) ListMetadata(ctx context.Context, filter types.QueryFilter, offset, limit int) (*types.QueryPage, error) {
	if offset < 0 {
		offset = 0
	}

	if s.index != nil {
		key := cache.SearchKey(filter, offset, limit)
		computed := false
		v, err := s.cache.Search.GetOrCompute(ctx, key, func(ctx context.Context) (interface{}, error) {
			computed = true
			page, err := s.index.Query(ctx, filter, offset, limit)
			s.collector.RecordIndexRequest("query", err == nil)
			if err != nil {
				return nil, err
			}
			return page, nil
		})
		if computed {
			s.collector.RecordCacheMiss("search")
		} else {
			s.collector.RecordCacheHit("search")
		}
		if err == nil {
			s.collector.UpdateCacheEntries("search", s.cache.Search.Len())
			return v.(*types.QueryPage), nil
		}
		if seiserrors.CodeOf(err) != seiserrors.ErrCodeIndexUnavailable {
			return nil, err
		}
		s.logger.Warn().Err(err).Msg("metadata index unavailable, falling back to scanner")
	}

	return s.listFromScanner(ctx, filter, offset, limit)
}

// listFromScanner serves a metadata page from the direct root walk. The walk
// itself is cached so repeated fallback queries within the scanner TTL do
// not rescan storage.
func (s *Service) listFromScanner(ctx context.Context, filter types.QueryFilter, offset, limit int) (*types.QueryPage, error) {
	s.collector.RecordFallback()

	computed := false
	v, err := s.cache.Scanner.GetOrCompute(ctx, enumerationKey, func(ctx context.Context) (interface{}, error) {
		computed = true
		return s.scanner.Enumerate(ctx)
	})
	if computed {
		s.collector.RecordCacheMiss("scanner")
	} else {
		s.collector.RecordCacheHit("scanner")
	}
	if err != nil {
		return nil, err
	}
	records := v.([]types.SurveyRecord)

	matched := filterRecords(records, filter)
	page := paginate(matched, offset, clampLimit(limit, s.maxLimit()))
	page.Fallback = true
	return page, nil
}

// GetMetadataByID returns one survey record. A partial record from the
// scanner is returned when the index is unavailable.
func (s *Service) GetMetadataByID(ctx context.Context, id string) (*types.SurveyRecord, error) {
	if s.index != nil {
		rec, err := s.index.GetByID(ctx, id)
		s.collector.RecordIndexRequest("get_by_id", err == nil || seiserrors.CodeOf(err) == seiserrors.ErrCodeSurveyNotFound)
		if err == nil {
			return rec, nil
		}
		if seiserrors.CodeOf(err) != seiserrors.ErrCodeIndexUnavailable {
			return nil, err
		}
		s.logger.Warn().Err(err).Str("survey_id", id).Msg("metadata index unavailable, falling back to scanner")
	}

	s.collector.RecordFallback()
	v, err := s.cache.Scanner.GetOrCompute(ctx, enumerationKey, func(ctx context.Context) (interface{}, error) {
		return s.scanner.Enumerate(ctx)
	})
	if err != nil {
		return nil, err
	}
	for _, rec := range v.([]types.SurveyRecord) {
		if rec.ID == id {
			found := rec
			return &found, nil
		}
	}
	return nil, seiserrors.Newf(seiserrors.ErrCodeSurveyNotFound, "survey %q not found", id)
}

// GetFacets returns aggregate counts grouped by categorical fields. Facets
// require the index; the scanner holds no statistics to aggregate, so an
// unavailable index surfaces as such rather than degrading silently.
func (s *Service) GetFacets(ctx context.Context, filter types.QueryFilter) ([]types.FacetCounts, error) {
	if s.index == nil {
		return nil, seiserrors.New(seiserrors.ErrCodeIndexUnavailable, "metadata index is disabled")
	}

	key := cache.FacetKey(filter)
	computed := false
	v, err := s.cache.Facets.GetOrCompute(ctx, key, func(ctx context.Context) (interface{}, error) {
		computed = true
		facets, err := s.index.Facets(ctx, filter)
		s.collector.RecordIndexRequest("facets", err == nil)
		if err != nil {
			return nil, err
		}
		return facets, nil
	})
	if computed {
		s.collector.RecordCacheMiss("facets")
	} else {
		s.collector.RecordCacheHit("facets")
	}
	if err != nil {
		return nil, err
	}
	s.collector.UpdateCacheEntries("facets", s.cache.Facets.Len())
	return v.([]types.FacetCounts), nil
}

// Extract runs one slice extraction. The mount gate fails fast when the
// survey's storage root has an open circuit, so callers never hang behind a
// stale mount.
func (s *Service) Extract(ctx context.Context, req types.ExtractRequest) (*types.ExtractResult, error) {
	rec, err := s.Locate(ctx, req.SurveyID)
	if err != nil {
		return nil, err
	}
	if err := s.monitor.Gate(rec.Path); err != nil {
		return nil, err
	}
	return s.gateway.Extract(ctx, req)
}

// Locate implements gateway.SurveyLocator.
func (s *Service) Locate(ctx context.Context, id string) (types.SurveyRecord, error) {
	rec, err := s.GetMetadataByID(ctx, id)
	if err != nil {
		return types.SurveyRecord{}, err
	}
	return *rec, nil
}

// CacheStats reports per-tier cache statistics.
func (s *Service) CacheStats() map[string]types.CacheStats {
	stats := s.cache.Stats()
	for tier, st := range stats {
		s.collector.UpdateCacheEntries(tier, st.Entries)
	}
	return stats
}

// MountStatus reports the last observed health of every probed storage root.
func (s *Service) MountStatus() map[string]types.MountStatus {
	return s.monitor.Status()
}

func (s *Service) maxLimit() int {
	if s.config.Index.MaxLimit > 0 {
		return s.config.Index.MaxLimit
	}
	return 100
}

func clampLimit(limit, max int) int {
	if limit <= 0 {
		return index.DefaultLimit
	}
	if limit > max {
		return max
	}
	return limit
}

// filterRecords applies the query filter to scanner records. Partial records
// carry only id, path, and size, so field filters are ignored and text search
// falls back to substring matching on id and path.
func filterRecords(records []types.SurveyRecord, filter types.QueryFilter) []types.SurveyRecord {
	ids := make(map[string]bool, len(filter.IDs))
	for _, id := range filter.IDs {
		ids[id] = true
	}
	text := strings.ToLower(strings.TrimSpace(filter.Text))

	var matched []types.SurveyRecord
	for _, rec := range records {
		if len(ids) > 0 && !ids[rec.ID] {
			continue
		}
		if filter.PathPrefix != "" && !strings.HasPrefix(rec.Path, filter.PathPrefix) {
			continue
		}
		if text != "" &&
			!strings.Contains(strings.ToLower(rec.ID), text) &&
			!strings.Contains(strings.ToLower(rec.Path), text) {
			continue
		}
		matched = append(matched, rec)
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return matched
}

func paginate(records []types.SurveyRecord, offset, limit int) *types.QueryPage {
	page := &types.QueryPage{
		TotalMatches: int64(len(records)),
	}
	if offset >= len(records) {
		page.NextOffset = offset
		return page
	}

	end := offset + limit
	if end > len(records) {
		end = len(records)
	}
	page.Items = records[offset:end]
	page.NextOffset = end
	page.HasMore = end < len(records)
	return page
}
