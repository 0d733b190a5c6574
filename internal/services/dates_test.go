package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	want := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2026-04-10", "10/04/2026", " 2026-04-10T00:00:00Z "} {
		got, err := ParseDate(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), in)
	}

	got, err := ParseDate("")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	_, err = ParseDate("yesterday")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}
