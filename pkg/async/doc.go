// Package async runs background work without letting a panic or a hung
// task take the server down.
//
// SafeGo runs one task in a goroutine with a timeout and panic recovery:
//
//	async.SafeGo(ctx, logger, 5*time.Second, "cache warm", func(ctx context.Context) error {
//		return warm(ctx)
//	})
//
// Every runs a task on an interval until its context is cancelled. Each run
// gets its own timeout, and a failing or panicking run does not stop the
// schedule:
//
//	async.Every(ctx, logger, time.Hour, time.Minute, "session cleanup", func(ctx context.Context) error {
//		_, err := sessions.CleanupExpired(ctx, time.Now())
//		return err
//	})
package async
