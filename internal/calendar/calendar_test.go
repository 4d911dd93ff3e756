package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fixedNow() time.Time {
	// 2023-04-14 AD is 2080-01-01 BS.
	return time.Date(2023, time.April, 14, 10, 30, 0, 0, time.UTC)
}

func TestIteratorDescends(t *testing.T) {
	it := New(Config{Lookback: 5, Offset: 0, Now: fixedNow}, zap.NewNop())

	var got []string
	for d, ok := it.Next(); ok; d, ok = it.Next() {
		got = append(got, d.String())
	}
	require.Len(t, got, 5)
	assert.Equal(t, "2080-01-01", got[0])
	assert.Equal(t, "2079-12-30", got[1], "window crosses the BS year boundary")
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i], got[i-1], "dates must strictly descend")
	}
}

func TestIteratorOffsetTrailsToday(t *testing.T) {
	it := New(Config{Lookback: 3, Offset: 2, Now: fixedNow}, zap.NewNop())

	// The newest date is today minus the offset, never ahead of it.
	d, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, "2079-12-29", d.String())
}

func TestIteratorSkipsDoneDates(t *testing.T) {
	it := New(Config{Lookback: 4, Offset: 0, Now: fixedNow}, zap.NewNop())
	it.SkipDone(map[string]struct{}{
		"2080-01-01": {},
		"2079-12-29": {},
	})

	var got []string
	for d, ok := it.Next(); ok; d, ok = it.Next() {
		got = append(got, d.String())
	}
	assert.Equal(t, []string{"2079-12-30", "2079-12-28"}, got)
}

func TestIteratorDefaults(t *testing.T) {
	it := New(Config{Now: fixedNow}, zap.NewNop())

	count := 0
	for _, ok := it.Next(); ok; _, ok = it.Next() {
		count++
	}
	assert.Equal(t, DefaultLookback, count)
}

func TestRemaining(t *testing.T) {
	it := New(Config{Lookback: 3, Offset: 0, Now: fixedNow}, zap.NewNop())

	_, ok := it.Next()
	require.True(t, ok)
	rest := it.Remaining()
	require.Len(t, rest, 2)
	assert.Equal(t, "2079-12-30", rest[0].String())
}
