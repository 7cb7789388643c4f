package llm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestTemperature(t *testing.T) {
	c := NewClient("test-key", "gpt-4o-mini", "gpt-4o", 0.7, 256, 60)

	// Unset falls back to the client default.
	require.Equal(t, float32(0.7), c.requestTemperature(CompletionRequest{}))

	require.Equal(t, float32(0.1), c.requestTemperature(CompletionRequest{
		Temperature: Temperature(0.1),
	}))

	// An explicit zero is honored, not replaced by the default.
	require.Equal(t, float32(0), c.requestTemperature(CompletionRequest{
		Temperature: Temperature(0),
	}))
}
