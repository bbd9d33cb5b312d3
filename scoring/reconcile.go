package scoring

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var objectPattern = regexp.MustCompile(`\{[^{}]+\}`)

// Reconcile converts the raw reply for a batch into exactly one ScoreRecord
// per submitted turn. Candidates whose id is not in the batch are discarded
// (the service may hallucinate ids); a duplicate id keeps the first match;
// turns left uncovered become ERROR records. The output id set always
// equals the input id set, with no duplicates.
func Reconcile(batch []Turn, comp Completion) []ScoreRecord {
	candidates := parseCandidates(comp.Text)

	// Unbatched fallback: a lone untagged object can only belong to the
	// one turn that was sent.
	if len(batch) == 1 && len(candidates) == 1 && candidates[0].ID == 0 {
		candidates[0].ID = batch[0].ID
	}

	ids := make(map[int64]bool, len(batch))
	for _, t := range batch {
		ids[t.ID] = true
	}

	covered := make(map[int64]ScoreRecord, len(batch))
	for _, c := range candidates {
		if !ids[c.ID] {
			continue
		}
		if _, dup := covered[c.ID]; dup {
			continue
		}
		density := c.Density
		if density == "" {
			density = DensityUnknown
		}
		covered[c.ID] = ScoreRecord{
			ID:      c.ID,
			Score:   c.Score,
			Density: density,
			Reason:  c.Reason,
			TokSec:  comp.TokensPerSecond,
			Tokens:  comp.CompletionTokens,
			OK:      true,
		}
	}

	out := make([]ScoreRecord, 0, len(batch))
	for _, t := range batch {
		if rec, ok := covered[t.ID]; ok {
			out = append(out, rec)
			continue
		}
		out = append(out, ScoreRecord{
			ID:      t.ID,
			Density: DensityError,
			Reason:  fmt.Sprintf("Not in batch response (%d scores returned for %d turns)", len(candidates), len(batch)),
			TokSec:  comp.TokensPerSecond,
			OK:      false,
		})
	}
	return out
}

// parseCandidates extracts loosely-typed score objects from reply text.
// Tiered: strict parse (a single object is wrapped as a one-element array),
// then the first bracket-delimited array substring, then every
// brace-delimited object parsed in isolation with failures discarded.
func parseCandidates(text string) []scoreCandidate {
	s := strings.TrimSpace(text)
	if s == "" {
		return nil
	}

	var arr []scoreCandidate
	if err := json.Unmarshal([]byte(s), &arr); err == nil {
		return arr
	}
	var one scoreCandidate
	if err := json.Unmarshal([]byte(s), &one); err == nil {
		return []scoreCandidate{one}
	}

	if start, end := strings.IndexByte(s, '['), strings.LastIndexByte(s, ']'); start != -1 && end > start {
		if err := json.Unmarshal([]byte(s[start:end+1]), &arr); err == nil {
			return arr
		}
	}

	var out []scoreCandidate
	for _, m := range objectPattern.FindAllString(s, -1) {
		var c scoreCandidate
		if err := json.Unmarshal([]byte(m), &c); err != nil {
			continue
		}
		out = append(out, c)
	}
	return out
}
