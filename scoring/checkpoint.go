package scoring

import (
	"encoding/json"
	"os"
	"time"

	"github.com/theimaginaryfoundation/density-scorer/scoring/fileutils"
)

// Checkpoint is the durable resume marker: the highest fully-processed turn
// id plus the run's aggregate statistics.
type Checkpoint struct {
	RunID        string         `json:"run_id,omitempty"`
	LastID       int64          `json:"last_id"`
	Scored       int64          `json:"scored"`
	Errors       int64          `json:"errors"`
	Distribution map[string]int `json:"distribution"`
	UpdatedAt    string         `json:"updated_at"`
}

// CheckpointStore reads and atomically overwrites a single checkpoint file.
type CheckpointStore struct {
	Path string
}

// Load returns the last fully-processed turn id, or 0 when no checkpoint
// exists or the stored value is unreadable.
func (s CheckpointStore) Load() int64 {
	cp, ok := s.LoadCheckpoint()
	if !ok {
		return 0
	}
	return cp.LastID
}

// LoadCheckpoint returns the full stored checkpoint, reporting false for a
// missing or corrupt file.
func (s CheckpointStore) LoadCheckpoint() (Checkpoint, bool) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return Checkpoint{}, false
	}
	var cp Checkpoint
	if err := json.Unmarshal(b, &cp); err != nil {
		return Checkpoint{}, false
	}
	return cp, true
}

// Save overwrites the checkpoint. The write goes through a temp file and a
// rename, so a crash leaves the previous checkpoint, never a torn one.
func (s CheckpointStore) Save(cp Checkpoint) error {
	if cp.UpdatedAt == "" {
		cp.UpdatedAt = time.Now().Format(time.RFC3339)
	}
	return fileutils.WriteJSONFileAtomic(s.Path, cp, false)
}
