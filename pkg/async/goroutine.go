package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/platinummonkey/gatekeeper/pkg/observability"
)

// SafeGo executes a function in a goroutine with panic recovery, timeout
// enforcement, and error logging.
//
// Use this instead of a bare `go func()` for fire-and-forget work like
// audit writes, so a slow or panicking background task never takes the
// request path down with it. The task detaches from the parent context's
// cancellation but keeps its values (request id, actor id).
//
// Example:
//
//	async.SafeGo(r.Context(), logger, 5*time.Second, "audit write", func(ctx context.Context) error {
//	    return recorder.Record(ctx, event)
//	})
func SafeGo(parentCtx context.Context, logger *observability.Logger, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(parentCtx), timeout)
		defer cancel()

		log := logger
		if log == nil {
			log = observability.FromContext(ctx)
		}
		log = log.WithField("task", taskName)

		defer func() {
			if r := recover(); r != nil {
				log.WithFields(map[string]interface{}{
					"panic": fmt.Sprintf("%v", r),
					"stack": string(debug.Stack()),
				}).Error("Background task panicked")
			}
		}()

		if err := fn(ctx); err != nil {
			log.WithError(err).Error("Background task failed")
		}
	}()
}
