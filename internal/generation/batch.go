package generation

import (
	"context"

	"github.com/smukkama/carbon-monitor/internal/database"
)

// DefaultBatchSize is the number of measurements committed per write
const DefaultBatchSize = 100

type flushFunc func(ctx context.Context, batch []database.Measurement) error

// batchWriter buffers measurements and flushes them once the batch is
// full. Callers must Flush at the end to commit the partial batch.
type batchWriter struct {
	size    int
	batch   []database.Measurement
	flush   flushFunc
	flushed int
}

func newBatchWriter(size int, flush flushFunc) *batchWriter {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &batchWriter{
		size:  size,
		batch: make([]database.Measurement, 0, size),
		flush: flush,
	}
}

// Add buffers m and flushes when the batch is full
func (bw *batchWriter) Add(ctx context.Context, m database.Measurement) error {
	bw.batch = append(bw.batch, m)
	if len(bw.batch) >= bw.size {
		return bw.Flush(ctx)
	}
	return nil
}

// Flush commits whatever is buffered. On error the batch is kept.
func (bw *batchWriter) Flush(ctx context.Context) error {
	if len(bw.batch) == 0 {
		return nil
	}
	if err := bw.flush(ctx, bw.batch); err != nil {
		return err
	}
	bw.flushed += len(bw.batch)
	bw.batch = make([]database.Measurement, 0, bw.size)
	return nil
}

// Flushed returns the number of measurements committed so far
func (bw *batchWriter) Flushed() int {
	return bw.flushed
}
