package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClock(t *testing.T) {
	t.Run("manual ticks", func(t *testing.T) {
		c := new(clock)
		ticks := make(chan time.Time)
		done := make(chan struct{})
		go func() {
			c.run(ticks)
			close(done)
		}()

		moment := time.Date(2024, time.March, 5, 7, 8, 9, 0, time.UTC)
		ticks <- moment
		ticks <- moment.Add(time.Second)
		close(ticks)
		<-done

		require.Equal(t, moment.Add(time.Second).UnixMilli(), c.now().UnixMilli())
		require.Equal(t, "Tue, 05 Mar 2024 07:08:10 GMT", *c.date.Load())
	})

	t.Run("date is in GMT", func(t *testing.T) {
		c := new(clock)
		c.tick(time.Date(2024, time.March, 5, 10, 0, 0, 0, time.FixedZone("UTC+3", 3*3600)))
		require.Equal(t, "Tue, 05 Mar 2024 07:00:00 GMT", *c.date.Load())
	})
}

func TestNow(t *testing.T) {
	// a tick may be late by a millisecond or so
	const tolerance = Resolution + Resolution/2

	for range 5 {
		require.Less(t, time.Since(Now()), tolerance)
		time.Sleep(Resolution / 3)
	}

	require.GreaterOrEqual(t, Since(Now().Add(-time.Second)), time.Second)
}

func TestDate(t *testing.T) {
	parsed, err := time.Parse(DateFormat, Date())
	require.NoError(t, err)
	require.WithinDuration(t, time.Now(), parsed, 2*time.Second)
}

func BenchmarkNow(b *testing.B) {
	b.Run("time.Now", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = time.Now()
		}
	})

	b.Run("timer.Now", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = Now()
		}
	})
}
