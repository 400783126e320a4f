// Package batch runs bulk operations (re-resolution, re-indexing) strictly
// sequentially with progress reporting. Sequential execution keeps the
// reported counters exact: current always equals succeeded+failed.
package batch

import (
	"context"

	"finchat-engine/internal/common/logger"
)

// Progress is the running tally after each item.
type Progress struct {
	Current   int `json:"current"`
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// ItemFunc processes one item; a non-nil error counts the item as failed
// without stopping the run.
type ItemFunc func(ctx context.Context, index int) error

// ProgressFunc observes the tally after each item. May be nil.
type ProgressFunc func(p Progress)

// Runner executes batches one item at a time.
type Runner struct {
	logger logger.Logger
}

// NewRunner creates a batch runner.
func NewRunner(log logger.Logger) *Runner {
	return &Runner{logger: log}
}

// Run processes total items in order. Cancellation is honored between items:
// the in-flight item finishes, remaining items never start, and the partial
// tally is returned with ctx.Err(). Per-item failures are recorded and do
// not abort the run.
func (r *Runner) Run(ctx context.Context, total int, fn ItemFunc, onProgress ProgressFunc) (Progress, error) {
	p := Progress{Total: total}

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			r.logger.Warn("batch cancelled", map[string]interface{}{
				"current": p.Current,
				"total":   p.Total,
			})
			return p, err
		}

		if err := fn(ctx, i); err != nil {
			p.Failed++
			r.logger.Error("batch item failed", map[string]interface{}{
				"index": i,
				"error": err.Error(),
			})
		} else {
			p.Succeeded++
		}
		p.Current++

		if onProgress != nil {
			onProgress(p)
		}
	}

	return p, nil
}
