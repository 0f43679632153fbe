package activity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/atoyama/workmate-api/internal/types"
)

// Dispatcher fans document change snapshots out to the processor on
// background goroutines, detached from the request that caused the
// change. Processing failures are logged and never surface to the
// caller.
type Dispatcher struct {
	logger    *slog.Logger
	processor *Processor
	timeout   time.Duration
	wg        sync.WaitGroup
}

func NewDispatcher(processor *Processor, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		logger:    logger,
		processor: processor,
		timeout:   30 * time.Second,
	}
}

func (d *Dispatcher) UserChanged(before, after *types.User) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.processor.OnUserChanged(ctx, before, after); err != nil {
			d.logger.ErrorContext(ctx, "Failed to process user change",
				slog.String("userID", after.ID.String()), slog.Any("error", err))
		}
	}()
}

func (d *Dispatcher) TaskCreated(task *types.Task) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.processor.OnTaskCreated(ctx, task); err != nil {
			d.logger.ErrorContext(ctx, "Failed to process task creation",
				slog.String("taskID", task.ID.String()), slog.Any("error", err))
		}
	}()
}

// Wait blocks until all in-flight change handlers finish. Used on
// shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
