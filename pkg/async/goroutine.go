package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/platinummonkey/campus/pkg/observability"
)

// SafeGo executes fn in a goroutine bounded by timeout. Errors and panics
// are logged, never propagated.
func SafeGo(parentCtx context.Context, logger *observability.Logger, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		_ = run(parentCtx, logger, timeout, taskName, fn)
	}()
}

// Every runs fn every interval until ctx is done. The first run happens
// after one interval.
func Every(ctx context.Context, logger *observability.Logger, interval, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = run(ctx, logger, timeout, taskName, fn)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// run executes fn once, converting a panic into an error
func run(parentCtx context.Context, logger *observability.Logger, timeout time.Duration, taskName string, fn func(context.Context) error) (err error) {
	ctx, cancel := context.WithTimeout(parentCtx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			logger.WithFields(map[string]interface{}{
				"task":  taskName,
				"stack": string(debug.Stack()),
			}).Error(err.Error())
		}
	}()

	if err = fn(ctx); err != nil {
		logger.WithError(err).WithField("task", taskName).Warn("Background task failed")
	}
	return err
}
