package scoring

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
)

// scoreCandidate mirrors one element of the array the service is asked to
// emit. Loosely typed on purpose: missing fields keep their zero values and
// are defaulted during reconciliation.
type scoreCandidate struct {
	ID      int64  `json:"id"`
	Score   int    `json:"score"`
	Density string `json:"density"`
	Reason  string `json:"reason"`
}

const batchScoringPrompt = `You are a training data classifier. Score each conversation turn by "personality density" — how much it reveals about the human's unique personality, values, expertise, or decision-making style.

Density scale:
- CORE (9-10): Deep values, strong opinions, unique decision patterns
- ENRICHED (7-8): Preferences, expertise signals, communication style
- ACTIVE (4-6): Useful context but generic
- PRUNED (1-3): Noise, boilerplate, "ok", media-only, system output

You will receive multiple turns, each tagged with its ID. Score EACH one and echo its ID back. Output ONLY a JSON array, one object per turn. Each element must match this schema:

%s

Be concise in reasoning. Output valid JSON array only.`

const singleScoringPrompt = `Classify this conversation turn by personality density. Think briefly, then output ONLY one JSON line.

Density scale:
- CORE (9-10): Deep values, opinions, unique decisions
- ENRICHED (7-8): Preferences, expertise, style
- ACTIVE (4-6): Useful but generic
- PRUNED (1-3): Noise, debug, "ok", media-only

The turn is tagged with its ID; echo it back. Output format (STRICTLY one JSON object, nothing else):
{"id":N,"score":N,"density":"LEVEL","reason":"short"}`

var scoreSchemaJSON = mustScoreSchemaJSON()

func mustScoreSchemaJSON() string {
	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := r.Reflect(scoreCandidate{})
	b, err := json.Marshal(schema)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// BatchInstructions returns the scoring rubric for batched requests,
// including the JSON schema of the expected array elements.
func BatchInstructions() string {
	return fmt.Sprintf(batchScoringPrompt, scoreSchemaJSON)
}

// SingleInstructions returns the scoring rubric for unbatched requests.
func SingleInstructions() string {
	return singleScoringPrompt
}

// BuildBatchInput formats a batch as the user message: each turn tagged
// with its id, role, and channel, content cut to truncateChars, turns
// joined with an explicit separator.
func BuildBatchInput(turns []Turn, truncateChars int) string {
	parts := make([]string, 0, len(turns))
	for _, t := range turns {
		parts = append(parts, fmt.Sprintf("[ID:%d] Role:%s Channel:%s\n%s",
			t.ID, t.Role, t.Channel, cutContent(t.Content, truncateChars)))
	}
	return fmt.Sprintf("Score these %d turns:\n\n%s", len(turns), strings.Join(parts, "\n---\n"))
}

// BuildSingleInput formats a single turn as the user message.
func BuildSingleInput(t Turn, truncateChars int) string {
	return fmt.Sprintf("[ID:%d]\nChannel: %s\nRole: %s\nContent: %s",
		t.ID, t.Channel, t.Role, cutContent(t.Content, truncateChars))
}

// cutContent bounds request size. Plain byte cut, no ellipsis: the service
// scores the prefix, it does not need to know text was dropped.
func cutContent(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max]
}
