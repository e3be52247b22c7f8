package async

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/campus/pkg/observability"
)

// syncBuffer guards a buffer written by logger goroutines
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newLogger() (*observability.Logger, *syncBuffer) {
	out := &syncBuffer{}
	return observability.NewLogger(observability.DebugLevel, out), out
}

func TestRun(t *testing.T) {
	logger, out := newLogger()

	t.Run("success", func(t *testing.T) {
		assert.NoError(t, run(context.Background(), logger, time.Second, "ok", func(context.Context) error {
			return nil
		}))
	})

	t.Run("error is logged", func(t *testing.T) {
		err := run(context.Background(), logger, time.Second, "cleanup", func(context.Context) error {
			return errors.New("connection refused")
		})
		assert.EqualError(t, err, "connection refused")
		assert.Contains(t, out.String(), "connection refused")
		assert.Contains(t, out.String(), `"task":"cleanup"`)
	})

	t.Run("panic is recovered", func(t *testing.T) {
		err := run(context.Background(), logger, time.Second, "boom", func(context.Context) error {
			panic("nil map")
		})
		assert.EqualError(t, err, "panic: nil map")
		assert.Contains(t, out.String(), "stack")
	})

	t.Run("timeout cancels the task", func(t *testing.T) {
		err := run(context.Background(), logger, 20*time.Millisecond, "slow", func(ctx context.Context) error {
			select {
			case <-time.After(time.Second):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestSafeGo(t *testing.T) {
	logger, _ := newLogger()
	done := make(chan struct{})

	SafeGo(context.Background(), logger, time.Second, "task", func(context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
}

func TestEvery(t *testing.T) {
	logger, _ := newLogger()
	ctx, cancel := context.WithCancel(context.Background())
	var runs atomic.Int32

	Every(ctx, logger, 10*time.Millisecond, time.Second, "tick", func(context.Context) error {
		if runs.Add(1) == 1 {
			panic("first run")
		}
		return nil
	})

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	time.Sleep(30 * time.Millisecond)
	stopped := runs.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, runs.Load())
}
