// Package native defines the boundary to the native volumetric runtime. The
// runtime is treated as a synchronous library: every call blocks until the
// underlying read completes and offers no cooperative cancellation. Callers
// must never invoke these primitives from a serving path directly; the
// gateway dispatches them to a bounded worker pool.
package native

import (
	"fmt"
)

// Axis identifies the slice orientation in native index space.
type Axis int

const (
	AxisInline Axis = iota
	AxisCrossline
	AxisSample
)

// Layout describes the geometry of one survey as reported by the native
// runtime at open time. Axis ranges are in survey line numbers; SampleCount
// is the trace length. NoValueSentinel is the dataset-declared placeholder
// meaning "no data", distinct from NaN.
type Layout struct {
	InlineMin    int
	InlineMax    int
	CrosslineMin int
	CrosslineMax int
	SampleCount  int

	SampleIntervalUs float64
	NoValueSentinel  float32
}

// AxisBounds returns the inclusive [min, max] line-number bounds for the
// given axis.
func (l Layout) AxisBounds(axis Axis) (int, int) {
	switch axis {
	case AxisInline:
		return l.InlineMin, l.InlineMax
	case AxisCrossline:
		return l.CrosslineMin, l.CrosslineMax
	default:
		return 0, l.SampleCount - 1
	}
}

// SubsetRequest selects a rectangular subset of one survey in sample-index
// space. All indices are zero-based and already validated/clamped by the
// caller; End indices are exclusive.
type SubsetRequest struct {
	Axis           Axis
	PrimaryIndex   int
	SecondaryStart int
	SecondaryEnd   int
	SampleStart    int
	SampleEnd      int
}

// Validate performs basic structural checks on a subset request.
func (r SubsetRequest) Validate() error {
	if r.SecondaryStart >= r.SecondaryEnd {
		return fmt.Errorf("secondary range [%d, %d) is empty", r.SecondaryStart, r.SecondaryEnd)
	}
	if r.SampleStart >= r.SampleEnd {
		return fmt.Errorf("sample range [%d, %d) is empty", r.SampleStart, r.SampleEnd)
	}
	return nil
}

// ElementCount returns the number of samples the request selects.
func (r SubsetRequest) ElementCount() int {
	return (r.SecondaryEnd - r.SecondaryStart) * (r.SampleEnd - r.SampleStart)
}

// Handle is an open native resource bound to one survey. A handle is owned
// exclusively by the gateway's handle table and released only at process
// shutdown.
type Handle interface {
	// Layout returns the survey geometry. The result is fetched once at
	// open time and is immutable for the life of the handle.
	Layout() Layout

	// ReadSubset performs a blocking read of the selected subset and
	// returns traces indexed [secondary][sample]. The call cannot be
	// canceled once started.
	ReadSubset(req SubsetRequest) ([][]float32, error)

	Close() error
}

// Runtime opens native handles for survey files.
type Runtime interface {
	Open(path string) (Handle, error)
}
