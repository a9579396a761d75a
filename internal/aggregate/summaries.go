package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"liquidityEngine/internal/model"
)

// SummarySink receives the full set of pool summaries after every batch.
type SummarySink interface {
	WriteSummaries(ctx context.Context, summaries []model.PoolSummary) error
}

// FileSummaryStore keeps the summaries in one JSON file.
type FileSummaryStore struct {
	Path string
}

// Load returns nil when the file does not exist yet.
func (s *FileSummaryStore) Load() ([]model.PoolSummary, error) {
	if s == nil || s.Path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read summaries: %w", err)
	}
	var out []model.PoolSummary
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse summaries: %w", err)
	}
	return out, nil
}

func (s *FileSummaryStore) WriteSummaries(_ context.Context, summaries []model.PoolSummary) error {
	if s == nil || s.Path == "" {
		return nil
	}
	dir := filepath.Dir(s.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create summaries dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summaries: %w", err)
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write summaries tmp: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("rename summaries: %w", err)
	}
	return nil
}
