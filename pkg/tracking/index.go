package tracking

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Index is the manifest for the sharded JSONL run log.
//
// Analysis tooling loads shards incrementally (newest-first) so no single
// file grows unbounded.
type Index struct {
	Version            int       `json:"version"`
	GeneratedAt        time.Time `json:"generated_at"`
	MaxRecordsPerShard int       `json:"max_records_per_shard,omitempty"`

	// Shards are ordered oldest -> newest (append-only).
	Shards []Shard `json:"shards"`

	TotalRecords int `json:"total_records,omitempty"`
}

type Shard struct {
	Seq     int    `json:"seq"`
	File    string `json:"file"`    // file name relative to the tracking directory, e.g. "runs-000001.jsonl"
	Records int    `json:"records"` // number of JSONL lines in the shard (best-effort)
}

func LoadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	idx := &Index{}
	if err := json.Unmarshal(data, idx); err != nil {
		return nil, err
	}
	if idx.Version == 0 {
		idx.Version = 1
	}
	return idx, nil
}

func SaveIndexAtomic(path string, idx *Index) error {
	if idx == nil {
		return nil
	}
	if idx.Version <= 0 {
		idx.Version = 1
	}
	idx.GeneratedAt = time.Now()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
