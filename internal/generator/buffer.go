package generator

import (
	"fmt"
	"time"
)

// mergeIfNeeded tops up the active buffer until it holds at least one batch.
//
// Each round joins the outstanding read, appends the staging buffer to the
// active one and, while the epoch still owes samples, starts reading the
// next file. The next read is started even when the buffer is already full
// enough, so it overlaps with the caller consuming the batch.
func (g *Generator[C]) mergeIfNeeded() error {
	for g.active.NElements() < g.cfg.BatchSize {
		waiting := g.reader.prefetching()
		waitStart := time.Now()
		if err := g.reader.join(); err != nil {
			return err
		}
		if waiting {
			g.rec.RecordPrefetchWait(time.Since(waitStart))
		}

		if err := g.active.Append(g.staging); err != nil {
			return fmt.Errorf("generator: merge %s: %w", g.reader.path, err)
		}
		g.staging.Clear()

		available := g.active.NElements()
		g.rec.SetBufferedSamples(available)
		if g.cfg.Debug {
			g.log.Info("buffer merged",
				"processed", g.processed,
				"file_index", g.fileIndex,
				"buffered", available,
				"file", g.reader.path,
				"total_files", len(g.files))
		}

		if g.processed+available < g.totalSamples && g.fileIndex < len(g.files) {
			if err := g.startRead(g.files[g.fileIndex]); err != nil {
				return err
			}
			g.fileIndex++
		} else if available < g.cfg.BatchSize {
			// nothing left to read: the files held fewer samples than
			// their metadata promised
			return g.exhausted()
		}
	}
	return nil
}

// produceBatch cuts exactly one batch from the front of the active buffer.
func (g *Generator[C]) produceBatch() (C, error) {
	var zero C
	if err := g.mergeIfNeeded(); err != nil {
		return zero, err
	}

	if g.cfg.Debug {
		g.log.Info("provided batch",
			"from", g.processed,
			"to", g.processed+g.cfg.BatchSize,
			"buffered", g.active.NElements())
	}

	batch := g.active.Split(g.cfg.BatchSize)
	g.processed += g.cfg.BatchSize
	g.lastBatchSize = g.cfg.BatchSize

	g.rec.RecordBatch(g.cfg.BatchSize)
	g.rec.SetBufferedSamples(g.active.NElements())

	if g.totalSamples-g.processed < g.cfg.BatchSize {
		g.state = StateEpochDrained
	}
	return batch, nil
}

func (g *Generator[C]) exhausted() error {
	return &DataExhaustionError{
		Processed: g.processed,
		Buffered:  g.active.NElements(),
		Total:     g.totalSamples,
		FilesRead: g.fileIndex,
		Files:     len(g.files),
	}
}
