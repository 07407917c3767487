package gateway

import (
	"math"

	"github.com/seisgate/seisgate/internal/native"
	seiserrors "github.com/seisgate/seisgate/pkg/errors"
	"github.com/seisgate/seisgate/pkg/types"
)

// axisGeometry is the bound geometry of one slice orientation: the primary
// axis the slice is constant along, and the two varying axes of the plane.
// Line-number axes carry their survey minimum so continuous coordinates can
// be shifted into zero-based native index space.
type axisGeometry struct {
	nativeAxis native.Axis

	primaryMin, primaryMax int

	// secondary maps to SubsetRequest.SecondaryStart/End.
	secondaryMin, secondaryCount int

	// tertiary maps to SubsetRequest.SampleStart/End. For sample slices it
	// holds the crossline axis; the native layer interprets it per axis.
	tertiaryMin, tertiaryCount int
}

func geometryFor(axis types.Axis, layout native.Layout) axisGeometry {
	inlineMin, inlineMax := layout.AxisBounds(native.AxisInline)
	crosslineMin, crosslineMax := layout.AxisBounds(native.AxisCrossline)
	sampleMin, sampleMax := layout.AxisBounds(native.AxisSample)

	inlineCount := inlineMax - inlineMin + 1
	crosslineCount := crosslineMax - crosslineMin + 1
	sampleCount := sampleMax - sampleMin + 1

	switch axis {
	case types.AxisInline:
		return axisGeometry{
			nativeAxis:     native.AxisInline,
			primaryMin:     inlineMin,
			primaryMax:     inlineMax,
			secondaryMin:   crosslineMin,
			secondaryCount: crosslineCount,
			tertiaryMin:    sampleMin,
			tertiaryCount:  sampleCount,
		}
	case types.AxisCrossline:
		return axisGeometry{
			nativeAxis:     native.AxisCrossline,
			primaryMin:     crosslineMin,
			primaryMax:     crosslineMax,
			secondaryMin:   inlineMin,
			secondaryCount: inlineCount,
			tertiaryMin:    sampleMin,
			tertiaryCount:  sampleCount,
		}
	default: // types.AxisSample
		return axisGeometry{
			nativeAxis:     native.AxisSample,
			primaryMin:     sampleMin,
			primaryMax:     sampleMax,
			secondaryMin:   inlineMin,
			secondaryCount: inlineCount,
			tertiaryMin:    crosslineMin,
			tertiaryCount:  crosslineCount,
		}
	}
}

// convertCoordinates maps the continuous request coordinates into a native
// subset request. Coordinates round to the nearest line (never truncate).
// The primary coordinate must land inside the survey; range endpoints are
// clamped into bounds, and an empty range after clamping is rejected.
func convertCoordinates(req types.ExtractRequest, layout native.Layout) (native.SubsetRequest, bool, error) {
	geo := geometryFor(req.Axis, layout)

	primary := roundCoord(req.PrimaryCoord)
	if primary < geo.primaryMin || primary > geo.primaryMax {
		return native.SubsetRequest{}, false, seiserrors.Newf(
			seiserrors.ErrCodeInvalidCoordinateRange,
			"%s coordinate %g is outside the valid range [%d, %d]",
			req.Axis, req.PrimaryCoord, geo.primaryMin, geo.primaryMax,
		).WithDetail("axis", string(req.Axis)).
			WithDetail("min", geo.primaryMin).
			WithDetail("max", geo.primaryMax)
	}

	secStart, secEnd, secClamped := convertRange(req.SecondaryStart, req.SecondaryEnd, geo.secondaryMin, geo.secondaryCount)
	if secStart >= secEnd {
		return native.SubsetRequest{}, false, seiserrors.Newf(
			seiserrors.ErrCodeInvalidCoordinateRange,
			"secondary range [%g, %g) is empty after conversion; valid range is [%d, %d]",
			req.SecondaryStart, req.SecondaryEnd,
			geo.secondaryMin, geo.secondaryMin+geo.secondaryCount-1,
		)
	}

	terStart, terEnd, terClamped := convertRange(req.SampleStart, req.SampleEnd, geo.tertiaryMin, geo.tertiaryCount)
	if terStart >= terEnd {
		return native.SubsetRequest{}, false, seiserrors.Newf(
			seiserrors.ErrCodeInvalidCoordinateRange,
			"sample range [%g, %g) is empty after conversion; valid range is [%d, %d]",
			req.SampleStart, req.SampleEnd,
			geo.tertiaryMin, geo.tertiaryMin+geo.tertiaryCount-1,
		)
	}

	return native.SubsetRequest{
		Axis:           geo.nativeAxis,
		PrimaryIndex:   primary - geo.primaryMin,
		SecondaryStart: secStart,
		SecondaryEnd:   secEnd,
		SampleStart:    terStart,
		SampleEnd:      terEnd,
	}, secClamped || terClamped, nil
}

// convertRange rounds a continuous [start, end) range, shifts it into
// zero-based index space, and clamps it into [0, count]. The returned bool
// reports whether clamping moved an endpoint.
func convertRange(start, end float64, min, count int) (int, int, bool) {
	s := roundCoord(start) - min
	e := roundCoord(end) - min

	clamped := false
	if s < 0 {
		s, clamped = 0, true
	}
	if s > count {
		s, clamped = count, true
	}
	if e < 0 {
		e, clamped = 0, true
	}
	if e > count {
		e, clamped = count, true
	}
	return s, e, clamped
}

// roundCoord rounds to the nearest integer, half away from zero, so a
// coordinate like 1500.6 resolves to line 1501 rather than 1500.
func roundCoord(v float64) int {
	return int(math.Round(v))
}
