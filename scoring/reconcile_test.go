package scoring

import (
	"strings"
	"testing"
)

func testBatch(ids ...int64) []Turn {
	batch := make([]Turn, 0, len(ids))
	for _, id := range ids {
		batch = append(batch, Turn{ID: id, Role: "user", Content: "content", Channel: "test"})
	}
	return batch
}

func recordIDs(t *testing.T, recs []ScoreRecord, batch []Turn) {
	t.Helper()
	if len(recs) != len(batch) {
		t.Fatalf("len(recs)=%d want=%d", len(recs), len(batch))
	}
	seen := make(map[int64]bool, len(recs))
	for _, r := range recs {
		if seen[r.ID] {
			t.Fatalf("duplicate record id %d", r.ID)
		}
		seen[r.ID] = true
	}
	for _, turn := range batch {
		if !seen[turn.ID] {
			t.Fatalf("missing record for turn %d", turn.ID)
		}
	}
}

func TestReconcile_WellFormedArray(t *testing.T) {
	t.Parallel()

	batch := testBatch(101, 102, 103)
	comp := Completion{
		Text:             `[{"id":101,"score":9,"density":"CORE","reason":"values"},{"id":102,"score":5,"density":"ACTIVE","reason":"generic"},{"id":103,"score":2,"density":"PRUNED","reason":"noise"}]`,
		CompletionTokens: 120,
		TokensPerSecond:  140.5,
	}

	recs := Reconcile(batch, comp)
	recordIDs(t, recs, batch)
	for _, r := range recs {
		if !r.OK {
			t.Fatalf("record %d not ok: %+v", r.ID, r)
		}
		if r.Tokens != 120 || r.TokSec != 140.5 {
			t.Fatalf("usage not propagated: %+v", r)
		}
	}
	if recs[0].Score != 9 || recs[0].Density != DensityCore {
		t.Fatalf("recs[0]=%+v", recs[0])
	}
}

func TestReconcile_PartialCoverageSynthesizesErrors(t *testing.T) {
	t.Parallel()

	batch := testBatch(1, 2, 3, 4, 5)
	comp := Completion{Text: `[{"id":1,"score":4,"density":"ACTIVE"},{"id":3,"score":4,"density":"ACTIVE"},{"id":5,"score":4,"density":"ACTIVE"}]`}

	recs := Reconcile(batch, comp)
	recordIDs(t, recs, batch)

	var ok, errs int
	for _, r := range recs {
		if r.OK {
			ok++
			continue
		}
		errs++
		if r.Density != DensityError {
			t.Fatalf("error record density=%q", r.Density)
		}
		if !strings.Contains(r.Reason, "3 scores returned for 5 turns") {
			t.Fatalf("reason=%q", r.Reason)
		}
	}
	if ok != 3 || errs != 2 {
		t.Fatalf("ok=%d errs=%d", ok, errs)
	}
}

func TestReconcile_SingleObjectWrapped(t *testing.T) {
	t.Parallel()

	batch := testBatch(7)
	recs := Reconcile(batch, Completion{Text: `{"id":7,"score":8,"density":"ENRICHED","reason":"style"}`})
	recordIDs(t, recs, batch)
	if !recs[0].OK || recs[0].Density != DensityEnriched {
		t.Fatalf("recs[0]=%+v", recs[0])
	}
}

func TestReconcile_SingleObjectWithoutIDAttributedToLoneTurn(t *testing.T) {
	t.Parallel()

	batch := testBatch(42)
	recs := Reconcile(batch, Completion{Text: `{"score":3,"density":"PRUNED","reason":"ok"}`})
	recordIDs(t, recs, batch)
	if !recs[0].OK || recs[0].ID != 42 || recs[0].Density != DensityPruned {
		t.Fatalf("recs[0]=%+v", recs[0])
	}
}

func TestReconcile_ArraySubstringFallback(t *testing.T) {
	t.Parallel()

	batch := testBatch(1, 2)
	text := "Here are the scores:\n[{\"id\":1,\"score\":6,\"density\":\"ACTIVE\"},{\"id\":2,\"score\":9,\"density\":\"CORE\"}]\nDone."
	recs := Reconcile(batch, Completion{Text: text})
	recordIDs(t, recs, batch)
	for _, r := range recs {
		if !r.OK {
			t.Fatalf("record %d not ok", r.ID)
		}
	}
}

func TestReconcile_ObjectExtractionFallback(t *testing.T) {
	t.Parallel()

	// No parseable array, but two standalone objects buried in prose,
	// one of them broken.
	batch := testBatch(1, 2, 3)
	text := `score one {"id":1,"score":5,"density":"ACTIVE"} garbage {"id":2,"score":broken} and {"id":3,"score":2,"density":"PRUNED"}`
	recs := Reconcile(batch, Completion{Text: text})
	recordIDs(t, recs, batch)

	byID := make(map[int64]ScoreRecord)
	for _, r := range recs {
		byID[r.ID] = r
	}
	if !byID[1].OK || !byID[3].OK {
		t.Fatalf("expected 1 and 3 ok: %+v", recs)
	}
	if byID[2].OK || byID[2].Density != DensityError {
		t.Fatalf("expected 2 to be a synthetic error: %+v", byID[2])
	}
}

func TestReconcile_EmptyAndNonJSONReplies(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "whitespace", text: "  \n\t"},
		{name: "prose", text: "I could not score these turns."},
		{name: "truncated_array", text: `[{"id":1,"score":5,"densi`},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			batch := testBatch(1, 2)
			recs := Reconcile(batch, Completion{Text: tc.text})
			recordIDs(t, recs, batch)
			for _, r := range recs {
				if r.OK || r.Density != DensityError {
					t.Fatalf("record %d should be a synthetic error: %+v", r.ID, r)
				}
			}
		})
	}
}

func TestReconcile_DiscardsHallucinatedIDs(t *testing.T) {
	t.Parallel()

	batch := testBatch(10, 11)
	text := `[{"id":10,"score":5,"density":"ACTIVE"},{"id":999,"score":9,"density":"CORE"},{"id":11,"score":5,"density":"ACTIVE"}]`
	recs := Reconcile(batch, Completion{Text: text})
	recordIDs(t, recs, batch)
	for _, r := range recs {
		if r.ID == 999 {
			t.Fatalf("hallucinated id kept: %+v", r)
		}
		if !r.OK {
			t.Fatalf("record %d not ok", r.ID)
		}
	}
}

func TestReconcile_DuplicateIDFirstMatchWins(t *testing.T) {
	t.Parallel()

	batch := testBatch(5)
	text := `[{"id":5,"score":9,"density":"CORE","reason":"first"},{"id":5,"score":1,"density":"PRUNED","reason":"second"}]`
	recs := Reconcile(batch, Completion{Text: text})
	recordIDs(t, recs, batch)
	if recs[0].Score != 9 || recs[0].Reason != "first" {
		t.Fatalf("recs[0]=%+v", recs[0])
	}
}

func TestReconcile_MissingSubfieldsDefault(t *testing.T) {
	t.Parallel()

	batch := testBatch(8)
	recs := Reconcile(batch, Completion{Text: `[{"id":8}]`})
	recordIDs(t, recs, batch)
	r := recs[0]
	if !r.OK || r.Score != 0 || r.Density != DensityUnknown || r.Reason != "" {
		t.Fatalf("recs[0]=%+v", r)
	}
}
