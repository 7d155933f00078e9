package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormatTimeSortsLexically(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	whole := FormatTime(base)
	later := FormatTime(base.Add(1500 * time.Microsecond))
	require.Equal(t, "2024-01-01T00:00:00.000000000Z", whole)
	require.Len(t, later, len(whole))
	require.Less(t, whole, later)
	require.Less(t, later, FormatTime(base.Add(time.Second)))

	parsed, err := time.Parse(time.RFC3339, later)
	require.NoError(t, err)
	require.True(t, parsed.Equal(base.Add(1500*time.Microsecond)))

	require.Equal(t, whole, FormatTime(base.In(time.FixedZone("CET", 3600))))
}
