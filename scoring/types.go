// Package scoring implements the resumable batch-scoring pipeline: it pulls
// conversation turns from a corpus, groups them into batches, sends each
// batch to a classification service, reconciles the reply back onto the
// submitted turn ids, and checkpoints progress so a killed run can resume.
package scoring

import "context"

// Turn is one classifiable record from the corpus. Immutable once read; the
// id is both the resume cursor and the correlation key for replies.
type Turn struct {
	ID      int64
	Role    string
	Content string
	Channel string
}

// Density labels assigned by the scoring rubric.
const (
	DensityCore     = "CORE"
	DensityEnriched = "ENRICHED"
	DensityActive   = "ACTIVE"
	DensityPruned   = "PRUNED"
	DensityError    = "ERROR"

	// DensityUnknown is the default for a parsed score object that omits
	// its density field. Not part of the rubric.
	DensityUnknown = "UNKNOWN"
)

// DensityLabels is the fixed label set pre-seeded into distributions.
var DensityLabels = []string{DensityCore, DensityEnriched, DensityActive, DensityPruned, DensityError}

// ScoreRecord is the per-turn outcome written to the result log. Every
// submitted turn produces exactly one record, success or failure.
type ScoreRecord struct {
	ID      int64   `json:"id"`
	Score   int     `json:"score"`
	Density string  `json:"density"`
	Reason  string  `json:"reason"`
	TokSec  float64 `json:"tok_s"`
	Tokens  int64   `json:"tokens"`
	OK      bool    `json:"ok"`
}

// CompletionRequest is one outbound request to the classification service.
type CompletionRequest struct {
	System      string
	User        string
	MaxTokens   int64
	Temperature float64
}

// Completion is the raw service reply. Text is handed to the reconciler
// unparsed; the reply is often non-canonical JSON.
type Completion struct {
	Text             string
	CompletionTokens int64
	TokensPerSecond  float64
}

// Completer issues a single request/response round trip. Implementations
// enforce the per-attempt timeout; retry policy belongs to the caller.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}
