// Package gateway mediates all access to the native volumetric runtime. It
// owns the per-survey handle table, dispatches the runtime's blocking calls
// onto a bounded worker pool, converts continuous coordinates into native
// index space, classifies null samples, and enforces the payload ceiling on
// raw responses. No raw native error ever crosses this boundary.
package gateway

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/seisgate/seisgate/internal/config"
	"github.com/seisgate/seisgate/internal/metrics"
	"github.com/seisgate/seisgate/internal/native"
	seiserrors "github.com/seisgate/seisgate/pkg/errors"
	"github.com/seisgate/seisgate/pkg/log"
	"github.com/seisgate/seisgate/pkg/types"
)

// SurveyLocator resolves a survey id to its metadata record, in particular
// the backing file path the native runtime opens. The service facade backs
// this with the metadata index.
type SurveyLocator interface {
	Locate(ctx context.Context, id string) (types.SurveyRecord, error)
}

// Gateway is the volumetric access gateway.
type Gateway struct {
	config    *config.GatewayConfig
	runtime   native.Runtime
	locator   SurveyLocator
	collector *metrics.Collector
	pool      *workerPool
	logger    zerolog.Logger

	openGroup singleflight.Group

	mu      sync.Mutex
	handles map[string]*handleEntry
	closed  bool
}

// handleEntry is one open native handle with its immutable layout.
type handleEntry struct {
	handle native.Handle
	layout native.Layout
	path   string
}

// New creates a gateway. The runtime and locator are required; the collector
// may be an inert (disabled) instance but not nil.
func New(cfg *config.GatewayConfig, runtime native.Runtime, locator SurveyLocator, collector *metrics.Collector) *Gateway {
	if cfg == nil {
		defaults := config.NewDefault().Gateway
		cfg = &defaults
	}

	return &Gateway{
		config:    cfg,
		runtime:   runtime,
		locator:   locator,
		collector: collector,
		pool:      newWorkerPool(cfg.WorkerPoolSize),
		handles:   make(map[string]*handleEntry),
		logger:    log.WithComponent("gateway"),
	}
}

// Open ensures a native handle exists for the survey and returns its layout.
// The open is idempotent: concurrent callers for the same id share a single
// native open, and later callers reuse the cached handle.
func (g *Gateway) Open(ctx context.Context, surveyID string) (native.Layout, error) {
	entry, err := g.open(ctx, surveyID)
	if err != nil {
		return native.Layout{}, err
	}
	return entry.layout, nil
}

func (g *Gateway) open(ctx context.Context, surveyID string) (*handleEntry, error) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil, seiserrors.New(seiserrors.ErrCodeShutdownInProgress, "gateway is shutting down")
	}
	if entry, ok := g.handles[surveyID]; ok {
		g.mu.Unlock()
		return entry, nil
	}
	g.mu.Unlock()

	v, err, _ := g.openGroup.Do(surveyID, func() (interface{}, error) {
		g.mu.Lock()
		if entry, ok := g.handles[surveyID]; ok {
			g.mu.Unlock()
			return entry, nil
		}
		g.mu.Unlock()

		record, err := g.locator.Locate(ctx, surveyID)
		if err != nil {
			return nil, err
		}

		// The native open blocks like any other native call.
		if err := g.pool.acquire(ctx); err != nil {
			return nil, err
		}
		handle, err := g.runtime.Open(record.Path)
		g.pool.release()
		if err != nil {
			return nil, seiserrors.Newf(seiserrors.ErrCodeNativeOpenFailure,
				"failed to open survey %q", surveyID).
				WithCause(err).
				WithContext("path", record.Path).
				WithComponent("gateway").
				WithOperation("open")
		}

		entry := &handleEntry{
			handle: handle,
			layout: handle.Layout(),
			path:   record.Path,
		}

		g.mu.Lock()
		if g.closed {
			g.mu.Unlock()
			handle.Close()
			return nil, seiserrors.New(seiserrors.ErrCodeShutdownInProgress, "gateway is shutting down")
		}
		g.handles[surveyID] = entry
		g.mu.Unlock()

		g.logger.Info().
			Str("survey_id", surveyID).
			Str("path", record.Path).
			Msg("opened native handle")
		return entry, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*handleEntry), nil
}

// Extract runs one slice extraction end to end: open (or reuse) the handle,
// convert coordinates, dispatch the blocking read to the worker pool, and
// post-process the samples into statistics and warnings.
func (g *Gateway) Extract(ctx context.Context, req types.ExtractRequest) (*types.ExtractResult, error) {
	start := time.Now()
	requestID := uuid.New().String()
	logger := g.logger.With().
		Str("request_id", requestID).
		Str("survey_id", req.SurveyID).
		Str("axis", string(req.Axis)).
		Logger()

	if !req.Axis.Valid() {
		return nil, seiserrors.Newf(seiserrors.ErrCodeInvalidAxis,
			"unknown axis %q; valid axes are inline, crossline, sample", req.Axis).
			WithRequestID(requestID)
	}

	ctx, cancel := context.WithTimeout(ctx, g.config.ExtractTimeout)
	defer cancel()

	entry, err := g.open(ctx, req.SurveyID)
	if err != nil {
		g.collector.RecordExtraction(string(req.Axis), "error", time.Since(start))
		return nil, annotate(err, requestID)
	}

	subset, clamped, err := convertCoordinates(req, entry.layout)
	if err != nil {
		logger.Warn().Err(err).
			Float64("primary_coord", req.PrimaryCoord).
			Msg("rejected extraction coordinates")
		g.collector.RecordExtraction(string(req.Axis), "invalid", time.Since(start))
		return nil, annotate(err, requestID)
	}
	if err := subset.Validate(); err != nil {
		g.collector.RecordExtraction(string(req.Axis), "invalid", time.Since(start))
		return nil, seiserrors.New(seiserrors.ErrCodeInvalidCoordinateRange,
			"converted subset selects no samples").
			WithCause(err).
			WithComponent("gateway").
			WithOperation("extract").
			WithRequestID(requestID)
	}

	logger.Debug().
		Int("primary_index", subset.PrimaryIndex).
		Int("elements", subset.ElementCount()).
		Msg("dispatching native read")

	samples, err := g.readSubset(ctx, entry, subset, requestID, logger)
	if err != nil {
		logger.Error().Err(err).
			Float64("primary_coord", req.PrimaryCoord).
			Float64("secondary_start", req.SecondaryStart).
			Float64("secondary_end", req.SecondaryEnd).
			Msg("extraction failed")
		g.collector.RecordExtraction(string(req.Axis), "error", time.Since(start))
		return nil, annotate(err, requestID)
	}

	stats := summarize(samples, entry.layout.NoValueSentinel)
	warnings := evaluateWarnings(ruleInput{
		Request:      req,
		Stats:        stats,
		Clamped:      clamped,
		ReturnRaw:    req.ReturnRaw,
		PayloadLimit: g.config.MaxPayloadElements,
	})

	result := &types.ExtractResult{
		SurveyID:   req.SurveyID,
		Axis:       req.Axis,
		Statistics: stats,
		Warnings:   warnings,
		Elapsed:    time.Since(start),
	}

	// Raw samples are included only when requested and under the ceiling;
	// an oversized slice keeps its statistics and gains a warning instead
	// of being truncated.
	if req.ReturnRaw && stats.ElementCount <= g.config.MaxPayloadElements {
		result.Samples = samples
	}

	g.collector.RecordExtraction(string(req.Axis), "ok", result.Elapsed)
	g.collector.RecordExtractionSize(stats.ElementCount)
	logger.Debug().
		Int("elements", stats.ElementCount).
		Int("null_traces", stats.NullTraces).
		Dur("elapsed", result.Elapsed).
		Msg("extraction completed")
	return result, nil
}

// readSubset dispatches the blocking native read to the worker pool and
// awaits completion. If the context ends first the caller abandons the wait;
// the native call has no cancellation hook and runs to completion in the
// background, its result discarded.
func (g *Gateway) readSubset(ctx context.Context, entry *handleEntry, subset native.SubsetRequest, requestID string, logger zerolog.Logger) ([][]float32, error) {
	if err := g.pool.acquire(ctx); err != nil {
		return nil, err
	}

	type outcome struct {
		samples [][]float32
		err     error
	}
	done := make(chan outcome, 1)

	g.collector.ExtractionStarted()
	go func() {
		defer g.pool.release()
		defer g.collector.ExtractionFinished()
		samples, err := entry.handle.ReadSubset(subset)
		done <- outcome{samples, err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, seiserrors.New(seiserrors.ErrCodeNativeExtractionFailure,
				"native read failed").
				WithCause(out.err).
				WithContext("path", entry.path).
				WithDetail("primary_index", subset.PrimaryIndex).
				WithDetail("secondary_start", subset.SecondaryStart).
				WithDetail("secondary_end", subset.SecondaryEnd).
				WithComponent("gateway").
				WithOperation("extract")
		}
		return out.samples, nil
	case <-ctx.Done():
		logger.Warn().Msg("abandoning in-flight native read; it will run to completion in the background")
		go func() {
			out := <-done
			logger.Debug().Err(out.err).Msg("abandoned native read finished, result discarded")
		}()
		return nil, ctxError(ctx, "extraction abandoned before the native read completed").
			WithRequestID(requestID)
	}
}

// summarize computes slice statistics and null classification. A sample is
// null when it is NaN or equals the dataset's no-value sentinel; a trace is
// null only when every one of its samples is null.
func summarize(samples [][]float32, sentinel float32) types.SliceStatistics {
	stats := types.SliceStatistics{
		TraceCount: len(samples),
	}
	if len(samples) > 0 {
		stats.SamplesPerTrace = len(samples[0])
	}

	var (
		sum   float64
		count int
		min   = math.Inf(1)
		max   = math.Inf(-1)
	)

	for _, trace := range samples {
		stats.ElementCount += len(trace)
		traceNull := true
		for _, v := range trace {
			if isNull(v, sentinel) {
				continue
			}
			traceNull = false
			f := float64(v)
			sum += f
			count++
			if f < min {
				min = f
			}
			if f > max {
				max = f
			}
		}
		if traceNull && len(trace) > 0 {
			stats.NullTraces++
		}
	}

	if count > 0 {
		stats.Min = min
		stats.Max = max
		stats.Mean = sum / float64(count)
	}
	return stats
}

func isNull(v, sentinel float32) bool {
	return math.IsNaN(float64(v)) || v == sentinel
}

// HandleCount reports the number of open native handles.
func (g *Gateway) HandleCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.handles)
}

// Close releases every native handle. Handles are owned exclusively by this
// table, so shutdown is the only release path.
func (g *Gateway) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	handles := g.handles
	g.handles = make(map[string]*handleEntry)
	g.mu.Unlock()

	var firstErr error
	for id, entry := range handles {
		if err := entry.handle.Close(); err != nil {
			g.logger.Error().Err(err).Str("survey_id", id).Msg("failed to close native handle")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	g.logger.Info().Int("handles", len(handles)).Msg("gateway closed")
	return firstErr
}

// annotate stamps the request id onto structured errors so log lines and
// error payloads correlate.
func annotate(err error, requestID string) error {
	if sgErr, ok := err.(*seiserrors.SeisGateError); ok {
		return sgErr.WithRequestID(requestID)
	}
	return err
}
