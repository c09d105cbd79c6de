package bulk

import (
	"context"
	"fmt"
)

// MaxBatchSize bounds the number of items committed together.
const MaxBatchSize = 500

// CommitFunc commits one batch atomically.
type CommitFunc[T any] func(ctx context.Context, batch []T) error

// Report describes a completed or partially completed write.
type Report struct {
	Batches   int
	Committed int
}

// BatchError reports the first batch that failed. Batches before Index were
// committed and stay committed.
type BatchError struct {
	Index     int
	Committed int
	Err       error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d failed after %d items committed: %v", e.Index, e.Committed, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// Writer splits items into batches and commits them in order.
type Writer[T any] struct {
	size      int
	commit    CommitFunc[T]
	afterEach func(ctx context.Context, index int, batch []T)
}

func NewWriter[T any](size int, commit CommitFunc[T]) *Writer[T] {
	if size <= 0 || size > MaxBatchSize {
		size = MaxBatchSize
	}
	return &Writer[T]{size: size, commit: commit}
}

// AfterEach registers a hook run after every committed batch.
func (w *Writer[T]) AfterEach(fn func(ctx context.Context, index int, batch []T)) *Writer[T] {
	w.afterEach = fn
	return w
}

func (w *Writer[T]) Size() int {
	return w.size
}

// Write commits items sequentially. It stops at the first failed batch.
func (w *Writer[T]) Write(ctx context.Context, items []T) (Report, error) {
	var report Report
	for start, index := 0, 0; start < len(items); start, index = start+w.size, index+1 {
		if err := ctx.Err(); err != nil {
			return report, &BatchError{Index: index, Committed: report.Committed, Err: err}
		}

		end := min(start+w.size, len(items))
		batch := items[start:end]
		if err := w.commit(ctx, batch); err != nil {
			return report, &BatchError{Index: index, Committed: report.Committed, Err: err}
		}

		report.Batches++
		report.Committed += len(batch)
		if w.afterEach != nil {
			w.afterEach(ctx, index, batch)
		}
	}
	return report, nil
}
