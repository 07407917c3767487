package gateway

import (
	"testing"

	"github.com/seisgate/seisgate/pkg/types"
)

func TestWarningRules(t *testing.T) {
	tests := []struct {
		name      string
		input     ruleInput
		wantCodes []string
	}{
		{
			name: "clean extraction",
			input: ruleInput{
				Stats:        types.SliceStatistics{TraceCount: 10, ElementCount: 500},
				ReturnRaw:    true,
				PayloadLimit: 100000,
			},
			wantCodes: nil,
		},
		{
			name: "payload over ceiling",
			input: ruleInput{
				Stats:        types.SliceStatistics{TraceCount: 10, ElementCount: 200},
				ReturnRaw:    true,
				PayloadLimit: 100,
			},
			wantCodes: []string{WarnPayloadTooLarge},
		},
		{
			name: "payload rule ignores statistics-only requests",
			input: ruleInput{
				Stats:        types.SliceStatistics{TraceCount: 10, ElementCount: 200},
				ReturnRaw:    false,
				PayloadLimit: 100,
			},
			wantCodes: nil,
		},
		{
			name: "clamped range",
			input: ruleInput{
				Stats:        types.SliceStatistics{TraceCount: 10, ElementCount: 50},
				Clamped:      true,
				PayloadLimit: 100000,
			},
			wantCodes: []string{WarnRangeClamped},
		},
		{
			name: "all traces null",
			input: ruleInput{
				Stats:        types.SliceStatistics{TraceCount: 4, NullTraces: 4, ElementCount: 8},
				PayloadLimit: 100000,
			},
			wantCodes: []string{WarnAllTracesNull},
		},
		{
			name: "high null ratio below total",
			input: ruleInput{
				Stats:        types.SliceStatistics{TraceCount: 4, NullTraces: 3, ElementCount: 8},
				PayloadLimit: 100000,
			},
			wantCodes: []string{WarnHighNullRatio},
		},
		{
			name: "half null is not high",
			input: ruleInput{
				Stats:        types.SliceStatistics{TraceCount: 4, NullTraces: 2, ElementCount: 8},
				PayloadLimit: 100000,
			},
			wantCodes: nil,
		},
		{
			name: "rules stack in declaration order",
			input: ruleInput{
				Stats:        types.SliceStatistics{TraceCount: 4, NullTraces: 4, ElementCount: 200},
				Clamped:      true,
				ReturnRaw:    true,
				PayloadLimit: 100,
			},
			wantCodes: []string{WarnPayloadTooLarge, WarnRangeClamped, WarnAllTracesNull},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warnings := evaluateWarnings(tt.input)

			var codes []string
			for _, w := range warnings {
				codes = append(codes, w.Code)
				if w.Message == "" {
					t.Errorf("warning %s has an empty message", w.Code)
				}
			}

			if len(codes) != len(tt.wantCodes) {
				t.Fatalf("codes = %v, want %v", codes, tt.wantCodes)
			}
			for i := range codes {
				if codes[i] != tt.wantCodes[i] {
					t.Errorf("codes = %v, want %v", codes, tt.wantCodes)
					break
				}
			}
		})
	}
}
