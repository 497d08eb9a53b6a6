package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateCost(t *testing.T) {
	cases := []struct {
		name  string
		model string
		usage TokenUsage
		want  float64
	}{
		{
			name:  "haiku flat tokens",
			model: "claude-haiku-4-5-20251001",
			usage: TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000},
			// 1M * $0.80 + 1M * $4.00
			want: 4.80,
		},
		{
			name:  "sonnet flat tokens",
			model: "claude-sonnet-4-5-20250929",
			usage: TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000},
			want:  18.00,
		},
		{
			name:  "opus flat tokens",
			model: "claude-opus-4-6",
			usage: TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000},
			want:  90.00,
		},
		{
			name:  "haiku with cache write and read",
			model: "claude-haiku-4-5-20251001",
			usage: TokenUsage{
				InputTokens:              500_000,
				OutputTokens:             100_000,
				CacheCreationInputTokens: 200_000,
				CacheReadInputTokens:     300_000,
			},
			// 0.40 + 0.40 + 0.2M*$0.80*1.25 + 0.3M*$0.80*0.1
			want: 1.024,
		},
		{
			name:  "unknown model estimates zero",
			model: "some-other-model",
			usage: TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000},
			want:  0,
		},
		{
			name:  "zero usage",
			model: "claude-haiku-4-5-20251001",
			usage: TokenUsage{},
			want:  0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, tc.usage.EstimateCost(tc.model), 0.001)
		})
	}
}

func TestTokenUsage_Add(t *testing.T) {
	a := TokenUsage{InputTokens: 100, OutputTokens: 20, CacheReadInputTokens: 4000}
	b := TokenUsage{InputTokens: 50, OutputTokens: 30, CacheCreationInputTokens: 2000, CacheReadInputTokens: 1000}

	sum := a.Add(b)
	assert.Equal(t, int64(150), sum.InputTokens)
	assert.Equal(t, int64(50), sum.OutputTokens)
	assert.Equal(t, int64(2000), sum.CacheCreationInputTokens)
	assert.Equal(t, int64(5000), sum.CacheReadInputTokens)

	// Inputs are untouched.
	assert.Equal(t, int64(100), a.InputTokens)
}

func TestLogCost_DoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		TokenUsage{InputTokens: 100, OutputTokens: 50}.LogCost("claude-haiku-4-5-20251001", "proofread_batch")
	})
	assert.NotPanics(t, func() {
		TokenUsage{InputTokens: 100, OutputTokens: 50}.LogCost("unknown-model", "narrative")
	})
	assert.NotPanics(t, func() {
		TokenUsage{}.LogCost("claude-haiku-4-5-20251001", "")
	})
}
