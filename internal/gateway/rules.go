package gateway

import (
	"fmt"

	"github.com/seisgate/seisgate/pkg/types"
)

// Warning codes attached to extraction responses.
const (
	WarnPayloadTooLarge = "PAYLOAD_TOO_LARGE"
	WarnRangeClamped    = "RANGE_CLAMPED"
	WarnAllTracesNull   = "ALL_TRACES_NULL"
	WarnHighNullRatio   = "HIGH_NULL_RATIO"
)

// ruleInput is the assembled view of one extraction that the warning rules
// evaluate over.
type ruleInput struct {
	Request      types.ExtractRequest
	Stats        types.SliceStatistics
	Clamped      bool
	ReturnRaw    bool
	PayloadLimit int
}

// warningRule pairs a predicate with the message it emits. Rules are
// independent of each other and are evaluated in declaration order so
// responses list warnings deterministically.
type warningRule struct {
	code    string
	applies func(in ruleInput) bool
	message func(in ruleInput) string
}

var warningRules = []warningRule{
	{
		code: WarnPayloadTooLarge,
		applies: func(in ruleInput) bool {
			return in.ReturnRaw && in.Stats.ElementCount > in.PayloadLimit
		},
		message: func(in ruleInput) string {
			return fmt.Sprintf("slice holds %d elements, above the %d element payload limit; raw samples omitted (statistics remain valid)",
				in.Stats.ElementCount, in.PayloadLimit)
		},
	},
	{
		code: WarnRangeClamped,
		applies: func(in ruleInput) bool {
			return in.Clamped
		},
		message: func(in ruleInput) string {
			return "requested range extended beyond the survey and was clamped to the survey bounds"
		},
	},
	{
		code: WarnAllTracesNull,
		applies: func(in ruleInput) bool {
			return in.Stats.TraceCount > 0 && in.Stats.NullTraces == in.Stats.TraceCount
		},
		message: func(in ruleInput) string {
			return "every trace in the extracted slice is null (no-value)"
		},
	},
	{
		code: WarnHighNullRatio,
		applies: func(in ruleInput) bool {
			if in.Stats.TraceCount == 0 || in.Stats.NullTraces == in.Stats.TraceCount {
				return false
			}
			return float64(in.Stats.NullTraces)/float64(in.Stats.TraceCount) > 0.5
		},
		message: func(in ruleInput) string {
			return fmt.Sprintf("%d of %d traces in the extracted slice are null", in.Stats.NullTraces, in.Stats.TraceCount)
		},
	},
}

// evaluateWarnings runs the rule pipeline and returns the warnings that
// apply, in rule order.
func evaluateWarnings(in ruleInput) []types.Warning {
	var warnings []types.Warning
	for _, rule := range warningRules {
		if rule.applies(in) {
			warnings = append(warnings, types.Warning{
				Code:    rule.code,
				Message: rule.message(in),
			})
		}
	}
	return warnings
}
