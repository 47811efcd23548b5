package crawl_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fwojciec/idedocs/crawl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// timed returns how long a Wait for host took.
func timed(t *testing.T, l *crawl.HostLimiter, host string) time.Duration {
	t.Helper()
	start := time.Now()
	require.NoError(t, l.Wait(context.Background(), host))
	return time.Since(start)
}

func TestHostLimiter(t *testing.T) {
	t.Parallel()

	t.Run("spaces requests to one host", func(t *testing.T) {
		t.Parallel()

		l := crawl.NewHostLimiter(100 * time.Millisecond)

		assert.Less(t, timed(t, l, "zed.dev"), 50*time.Millisecond)
		assert.GreaterOrEqual(t, timed(t, l, "zed.dev"), 80*time.Millisecond)
	})

	t.Run("does not couple hosts", func(t *testing.T) {
		t.Parallel()

		l := crawl.NewHostLimiter(time.Second)
		timed(t, l, "zed.dev")

		assert.Less(t, timed(t, l, "docs.cursor.com"), 50*time.Millisecond)
	})

	t.Run("returns when the context ends", func(t *testing.T) {
		t.Parallel()

		l := crawl.NewHostLimiter(time.Minute)
		timed(t, l, "zed.dev")
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		assert.Error(t, l.Wait(ctx, "zed.dev"))
	})

	t.Run("zero interval does not wait", func(t *testing.T) {
		t.Parallel()

		l := crawl.NewHostLimiter(0)
		start := time.Now()
		for range 20 {
			require.NoError(t, l.Wait(context.Background(), "zed.dev"))
		}

		assert.Less(t, time.Since(start), 50*time.Millisecond)
		assert.Zero(t, l.Interval("zed.dev"))
	})

	t.Run("concurrent waiters all proceed", func(t *testing.T) {
		t.Parallel()

		l := crawl.NewHostLimiter(5 * time.Millisecond)
		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- l.Wait(context.Background(), "zed.dev")
			}()
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			assert.NoError(t, err)
		}
	})
}

func TestHostLimiter_SlowDown(t *testing.T) {
	t.Parallel()

	t.Run("raises one host's interval", func(t *testing.T) {
		t.Parallel()

		l := crawl.NewHostLimiter(100 * time.Millisecond)

		l.SlowDown("zed.dev", 2*time.Second)

		assert.Equal(t, 2*time.Second, l.Interval("zed.dev"))
		assert.Equal(t, 100*time.Millisecond, l.Interval("docs.cursor.com"))
	})

	t.Run("limits hosts of an otherwise unlimited crawl", func(t *testing.T) {
		t.Parallel()

		l := crawl.NewHostLimiter(0)
		l.SlowDown("zed.dev", 100*time.Millisecond)

		timed(t, l, "zed.dev")
		assert.GreaterOrEqual(t, timed(t, l, "zed.dev"), 80*time.Millisecond)
	})

	t.Run("never speeds a host up", func(t *testing.T) {
		t.Parallel()

		l := crawl.NewHostLimiter(time.Second)
		l.SlowDown("zed.dev", 5*time.Second)

		l.SlowDown("zed.dev", 2*time.Second)
		l.SlowDown("zed.dev", 100*time.Millisecond)

		assert.Equal(t, 5*time.Second, l.Interval("zed.dev"))
	})

	t.Run("caps absurd delays", func(t *testing.T) {
		t.Parallel()

		l := crawl.NewHostLimiter(0)

		l.SlowDown("zed.dev", time.Hour)

		assert.Equal(t, 30*time.Second, l.Interval("zed.dev"))
	})
}
