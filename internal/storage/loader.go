package storage

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// CopyFn abstracts a backend's bulk insert. It should insert the rows
// (aligned to columns) and return the number of rows written.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// LoadBatches drains rows from in, groups them into batches of batchSize and
// calls copyFn for each non-empty batch. It returns the total reported by
// copyFn and the first error encountered; on cancellation it returns
// (total, ctx.Err()). Progress is logged at DEBUG after each flush.
func LoadBatches(
	ctx context.Context,
	log *zap.Logger,
	columns []string,
	in <-chan []any,
	batchSize int,
	copyFn CopyFn,
) (int64, error) {
	if batchSize <= 0 {
		return 0, errors.New("batchSize must be > 0")
	}
	if copyFn == nil {
		return 0, errors.New("copyFn must not be nil")
	}
	if log == nil {
		log = zap.NewNop()
	}

	var (
		total     int64
		batches   int64
		batch     = make([][]any, 0, batchSize)
		start     = time.Now()
		lastFlush = start
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := copyFn(ctx, columns, batch)
		total += n
		batch = batch[:0]
		if err != nil {
			log.Warn("batch copy failed",
				zap.Int64("batch", batches+1),
				zap.Int64("copied", n),
				zap.Int64("total", total),
				zap.Error(err))
			return err
		}

		batches++
		now := time.Now()
		since := now.Sub(lastFlush)
		rps := 0.0
		if since > 0 {
			rps = float64(n) / since.Seconds()
		}
		log.Debug("batch copied",
			zap.Int64("batch", batches),
			zap.Int64("inserted", n),
			zap.Int64("total", total),
			zap.Float64("rps", rps),
			zap.Duration("elapsed", now.Sub(start).Truncate(time.Millisecond)))
		lastFlush = now
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()

		case row, ok := <-in:
			if !ok {
				if err := flush(); err != nil {
					return total, err
				}
				log.Debug("loader input closed", zap.Int64("batches", batches), zap.Int64("total", total))
				return total, nil
			}
			batch = append(batch, row)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return total, err
				}
			}
		}
	}
}
