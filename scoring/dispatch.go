package scoring

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Scorer is the per-batch unit of work run by the dispatcher's pool. It
// must always return one record per turn; failures are records, not errors.
type Scorer interface {
	ScoreBatch(ctx context.Context, batch []Turn) []ScoreRecord
}

// Stats are the running aggregates of a run.
type Stats struct {
	Scored       int64
	Errors       int64
	Distribution map[string]int
}

func NewStats() Stats {
	d := make(map[string]int, len(DensityLabels))
	for _, label := range DensityLabels {
		d[label] = 0
	}
	return Stats{Distribution: d}
}

func (st *Stats) add(rec ScoreRecord) {
	if rec.OK {
		st.Scored++
		st.Distribution[rec.Density]++
		return
	}
	st.Errors++
	st.Distribution[DensityError]++
}

// Progress describes one completed chunk.
type Progress struct {
	BatchesDone  int
	BatchesTotal int
	Stats        Stats
}

// Dispatcher drives batches through the scorer under bounded parallelism.
// Workers return their records to the dispatcher; only the dispatcher
// touches the sink and the checkpoint.
type Dispatcher struct {
	Scorer      Scorer
	Sink        *ResultSink
	Checkpoints CheckpointStore
	Parallelism int
	RunID       string
	OnProgress  func(Progress)
}

// Run processes batches in chunks of Parallelism. Batches within a chunk
// complete in any order; chunks are strictly sequential. Sink writes and
// the checkpoint happen only after the whole chunk is done, so the
// checkpoint's last id never passes a batch that has not produced its
// records. A chunk that observes cancellation is discarded unwritten:
// absorbing it would checkpoint past turns that were never really scored.
func (d *Dispatcher) Run(ctx context.Context, batches [][]Turn) (Stats, error) {
	stats := NewStats()
	parallel := d.Parallelism
	if parallel < 1 {
		parallel = 1
	}

	for start := 0; start < len(batches); start += parallel {
		end := start + parallel
		if end > len(batches) {
			end = len(batches)
		}
		chunk := batches[start:end]

		results := make([][]ScoreRecord, len(chunk))
		g, gctx := errgroup.WithContext(ctx)
		for i, batch := range chunk {
			i, batch := i, batch
			g.Go(func() error {
				results[i] = d.Scorer.ScoreBatch(gctx, batch)
				return nil
			})
		}
		_ = g.Wait()

		if err := ctx.Err(); err != nil {
			return stats, err
		}

		for _, recs := range results {
			for _, rec := range recs {
				if err := d.Sink.Append(rec); err != nil {
					return stats, err
				}
				stats.add(rec)
			}
		}

		lastBatch := chunk[len(chunk)-1]
		cp := Checkpoint{
			RunID:        d.RunID,
			LastID:       lastBatch[len(lastBatch)-1].ID,
			Scored:       stats.Scored,
			Errors:       stats.Errors,
			Distribution: stats.Distribution,
		}
		if err := d.Checkpoints.Save(cp); err != nil {
			return stats, err
		}

		if d.OnProgress != nil {
			d.OnProgress(Progress{BatchesDone: end, BatchesTotal: len(batches), Stats: stats})
		}
	}
	return stats, nil
}
