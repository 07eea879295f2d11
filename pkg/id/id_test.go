package id

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Not parallel: another timestamp in between would reseed the entropy.
func TestAtIsMonotonicWithinMillisecond(t *testing.T) {
	ts := time.Date(2026, 10, 14, 13, 0, 0, 0, time.UTC)
	prev := At(ts)
	for i := 0; i < 100; i++ {
		next := At(ts)
		assert.Less(t, prev, next)
		prev = next
	}
}

func TestTimeRoundTrip(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 10, 14, 13, 0, 0, int(250*time.Millisecond), time.UTC)
	got, err := Time(At(ts))
	require.NoError(t, err)
	assert.True(t, got.Equal(ts))
}

func TestTimeRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := Time("not-an-id")
	assert.Error(t, err)
}
