package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAndGauges(t *testing.T) {
	require.NoError(t, InitMetrics(""))
	t.Cleanup(func() { _ = Close() })

	Incr("cart_add", 1)
	Incr("cart_add", 2)
	SetGauge("system_memuse", 512)
	SetGauge("system_memuse", 600)

	assert.Equal(t, int64(3), Counter("cart_add"))
	v, ok := Gauge("system_memuse")
	assert.True(t, ok)
	assert.Equal(t, int64(600), v)
	_, ok = Gauge("unknown")
	assert.False(t, ok)

	snap := Snapshot()
	assert.Equal(t, int64(3), snap["cart_add"])
	assert.Equal(t, int64(600), snap["system_memuse"])
}

func TestSelect(t *testing.T) {
	require.NoError(t, InitMetrics(t.TempDir()))
	t.Cleanup(func() { _ = Close() })

	Incr("review_submit", 1)
	Incr("review_submit", 1)

	now := time.Now()
	points, err := Select("review_submit", now.Add(-time.Minute), now.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.ElementsMatch(t, []int64{1, 2}, []int64{points[0].Value, points[1].Value})

	points, err = Select("never_written", now.Add(-time.Minute), now.Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestNoopWhenClosed(t *testing.T) {
	require.NoError(t, InitMetrics(""))
	require.NoError(t, Close())
	assert.NotPanics(t, func() { SetGauge("x", 1) })
	points, err := Select("x", time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	assert.Empty(t, points)
	assert.NoError(t, Close())
}
