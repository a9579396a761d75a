package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrStateRewind is returned when a save would move the aggregated sequence
// number backwards. Reset the store before recomputing.
var ErrStateRewind = errors.New("aggregate state moved backwards")

// StateStore persists the sequence number of the last aggregated event.
type StateStore interface {
	Load(ctx context.Context) (uint64, bool, error)
	Save(ctx context.Context, seq uint64) error
}

// resetter is implemented by stores that can forget their progress.
type resetter interface {
	Reset(ctx context.Context) error
}

// FileStateStore keeps the last aggregated event seq in a local JSON file.
type FileStateStore struct {
	Path string
}

type aggregateState struct {
	LastSeq   uint64 `json:"last_seq"`
	Flushes   uint64 `json:"flushes"`
	UpdatedAt string `json:"updated_at"`
}

func (s *FileStateStore) read() (aggregateState, bool, error) {
	var st aggregateState
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return st, false, nil
	}
	if err != nil {
		return st, false, fmt.Errorf("read aggregate state: %w", err)
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, false, fmt.Errorf("parse aggregate state %s: %w", s.Path, err)
	}
	return st, true, nil
}

func (s *FileStateStore) Load(ctx context.Context) (uint64, bool, error) {
	if s == nil || s.Path == "" {
		return 0, false, nil
	}
	st, ok, err := s.read()
	return st.LastSeq, ok, err
}

// Save records seq. A seq below the stored one fails with ErrStateRewind.
func (s *FileStateStore) Save(ctx context.Context, seq uint64) error {
	if s == nil || s.Path == "" {
		return nil
	}
	prev, _, err := s.read()
	if err != nil {
		return err
	}
	if seq < prev.LastSeq {
		return fmt.Errorf("save seq %d after %d: %w", seq, prev.LastSeq, ErrStateRewind)
	}
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}
	data, err := json.Marshal(aggregateState{
		LastSeq:   seq,
		Flushes:   prev.Flushes + 1,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal aggregate state: %w", err)
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write aggregate state: %w", err)
	}
	return os.Rename(tmp, s.Path)
}

// Reset drops the stored progress.
func (s *FileStateStore) Reset(ctx context.Context) error {
	if s == nil || s.Path == "" {
		return nil
	}
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reset aggregate state: %w", err)
	}
	return nil
}
