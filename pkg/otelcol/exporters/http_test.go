package exporters

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHttpOptions(t *testing.T) {
	require.Len(t, HttpOptions("collector:4318"), 3)
	require.Len(t, HttpOptions("https://otel.example.com/v1/traces"), 2)
}
