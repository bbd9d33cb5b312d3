package scoring

import (
	"context"
	"time"

	"github.com/theimaginaryfoundation/density-scorer/scoring/fileutils"
)

const maxErrorReasonChars = 200

var defaultBackoff = []time.Duration{time.Second, 3 * time.Second, 8 * time.Second}

// BatchScorer turns one batch into one classification request. Transport
// and protocol failures are retried with fixed backoff; once the final
// attempt fails the error is absorbed into one ERROR record per turn, so
// ScoreBatch never fails the run.
type BatchScorer struct {
	LLM Completer

	MaxAttempts   int             // total attempts, 0 = 3
	Backoff       []time.Duration // waits between attempts, nil = 1s/3s/8s
	MaxTokens     int64           // 0 = 500 unbatched, 2000 batched
	Temperature   float64         // 0 = 0.1
	TruncateChars int             // per-turn content budget, 0 = 3000 batched, 4000 unbatched

	Sleep func(time.Duration) // nil = time.Sleep
}

// ScoreBatch returns exactly one record per turn in batch.
func (s *BatchScorer) ScoreBatch(ctx context.Context, batch []Turn) []ScoreRecord {
	if len(batch) == 0 {
		return nil
	}

	req := s.buildRequest(batch)

	attempts := s.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	backoff := s.Backoff
	if backoff == nil {
		backoff = defaultBackoff
	}
	sleep := s.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		comp, err := s.LLM.Complete(ctx, req)
		if err == nil {
			return Reconcile(batch, comp)
		}
		lastErr = err
		if attempt < attempts-1 {
			wait := backoff[len(backoff)-1]
			if attempt < len(backoff) {
				wait = backoff[attempt]
			}
			sleep(wait)
		}
	}
	return errorRecords(batch, lastErr)
}

func (s *BatchScorer) buildRequest(batch []Turn) CompletionRequest {
	trunc := s.TruncateChars
	maxTokens := s.MaxTokens
	temp := s.Temperature
	if temp == 0 {
		temp = 0.1
	}

	if len(batch) == 1 {
		if trunc <= 0 {
			trunc = 4000
		}
		if maxTokens <= 0 {
			maxTokens = 500
		}
		return CompletionRequest{
			System:      SingleInstructions(),
			User:        BuildSingleInput(batch[0], trunc),
			MaxTokens:   maxTokens,
			Temperature: temp,
		}
	}

	if trunc <= 0 {
		trunc = 3000
	}
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	return CompletionRequest{
		System:      BatchInstructions(),
		User:        BuildBatchInput(batch, trunc),
		MaxTokens:   maxTokens,
		Temperature: temp,
	}
}

func errorRecords(batch []Turn, err error) []ScoreRecord {
	reason := "request failed"
	if err != nil {
		reason = fileutils.Truncate(err.Error(), maxErrorReasonChars)
	}
	out := make([]ScoreRecord, 0, len(batch))
	for _, t := range batch {
		out = append(out, ScoreRecord{ID: t.ID, Density: DensityError, Reason: reason})
	}
	return out
}
