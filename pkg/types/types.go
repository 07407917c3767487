package types

import (
	"time"
)

// SurveyRecord represents the indexed metadata for one volumetric survey.
// Records are produced by an external crawl/index process and are read-only
// to this service.
type SurveyRecord struct {
	ID             string            `json:"id"`
	Path           string            `json:"path"`
	SizeBytes      int64             `json:"size_bytes"`
	InlineRange    AxisRange         `json:"inline_range"`
	CrosslineRange AxisRange         `json:"crossline_range"`
	SampleRange    AxisRange         `json:"sample_range"`
	SampleCount    int               `json:"sample_count"`
	CRS            string            `json:"crs,omitempty"`
	Statistics     *SurveyStatistics `json:"statistics,omitempty"`
	IndexedAt      time.Time         `json:"indexed_at,omitempty"`

	// Partial marks a record discovered by the fallback scanner rather than
	// the metadata index. Partial records carry no statistics.
	Partial bool `json:"partial,omitempty"`
}

// AxisRange describes the inclusive coordinate range of one survey axis.
type AxisRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether v lies inside the range.
func (r AxisRange) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// SurveyStatistics holds precomputed amplitude statistics for a survey.
type SurveyStatistics struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// Axis selects the orthogonal slice orientation of an extraction.
type Axis string

const (
	AxisInline    Axis = "inline"
	AxisCrossline Axis = "crossline"
	AxisSample    Axis = "sample"
)

// Valid reports whether the axis selector is one of the known orientations.
func (a Axis) Valid() bool {
	switch a {
	case AxisInline, AxisCrossline, AxisSample:
		return true
	}
	return false
}

// QueryFilter restricts a metadata query. Zero values match everything.
type QueryFilter struct {
	Text       string            `json:"text,omitempty"`
	IDs        []string          `json:"ids,omitempty"`
	PathPrefix string            `json:"path_prefix,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
}

// QueryPage is one page of metadata query results.
type QueryPage struct {
	TotalMatches int64          `json:"total_matches"`
	Items        []SurveyRecord `json:"items"`
	HasMore      bool           `json:"has_more"`
	NextOffset   int            `json:"next_offset"`

	// Fallback is set when the page was produced by the direct scanner
	// because the metadata index was unavailable.
	Fallback bool `json:"fallback,omitempty"`
}

// FacetCounts holds aggregate record counts grouped by one categorical field.
type FacetCounts struct {
	Field  string           `json:"field"`
	Counts map[string]int64 `json:"counts"`
}

// ExtractRequest describes one slice extraction. Created per call; it has no
// persisted identity beyond the request-scoped ID used for log correlation.
type ExtractRequest struct {
	SurveyID       string  `json:"survey_id"`
	Axis           Axis    `json:"axis"`
	PrimaryCoord   float64 `json:"primary_coord"`
	SecondaryStart float64 `json:"secondary_start"`
	SecondaryEnd   float64 `json:"secondary_end"`
	SampleStart    float64 `json:"sample_start"`
	SampleEnd      float64 `json:"sample_end"`
	ReturnRaw      bool    `json:"return_raw"`
}

// ExtractResult is the post-processed outcome of one extraction.
type ExtractResult struct {
	SurveyID   string          `json:"survey_id"`
	Axis       Axis            `json:"axis"`
	Statistics SliceStatistics `json:"statistics"`
	Samples    [][]float32     `json:"samples,omitempty"`
	Warnings   []Warning       `json:"warnings,omitempty"`
	Elapsed    time.Duration   `json:"elapsed"`
}

// SliceStatistics summarizes the extracted slice.
type SliceStatistics struct {
	TraceCount      int     `json:"trace_count"`
	SamplesPerTrace int     `json:"samples_per_trace"`
	ElementCount    int     `json:"element_count"`
	NullTraces      int     `json:"null_traces"`
	Min             float64 `json:"min"`
	Max             float64 `json:"max"`
	Mean            float64 `json:"mean"`
}

// Warning is a structured, machine-readable response annotation.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CacheStats represents cache performance statistics for one tier.
type CacheStats struct {
	Hits        uint64  `json:"hits"`
	Misses      uint64  `json:"misses"`
	Evictions   uint64  `json:"evictions"`
	Expired     uint64  `json:"expired"`
	Entries     int     `json:"entries"`
	Capacity    int     `json:"capacity"`
	HitRate     float64 `json:"hit_rate"`
	Utilization float64 `json:"utilization"`
}

// MountState classifies the responsiveness of a backing storage root.
type MountState string

const (
	MountHealthy MountState = "healthy"
	MountSlow    MountState = "slow"
	MountStale   MountState = "stale"
)

// MountStatus is the last observed health of one backing storage root.
// Mutated only by the health monitor; read by the gateway before every
// extraction.
type MountStatus struct {
	Path                string        `json:"path"`
	State               MountState    `json:"state"`
	Latency             time.Duration `json:"latency"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	CircuitState        string        `json:"circuit_state"`
	LastCheck           time.Time     `json:"last_check"`
	Error               string        `json:"error,omitempty"`
}
