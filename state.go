package commitflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// FlowState is the durable record of one worktree flow: the branch and
// worktree created for an isolated unit of work, plus the base it forked
// from. It is written at creation and read back to plan the merge and
// cleanup.
type FlowState struct {
	ID           string    `json:"id"`
	RepoRoot     string    `json:"repo_root"`
	GitCommonDir string    `json:"git_common_dir"`
	Base         string    `json:"base"`
	Branch       string    `json:"branch"`
	WorktreePath string    `json:"worktree_path"`
	CreatedAt    time.Time `json:"created_at"`
}

// DefaultStatePath returns the state file location under the repository's
// git common directory, shared by all worktrees of the repository.
func DefaultStatePath(commonDir string) string {
	return filepath.Join(commonDir, "commitflow", "state.json")
}

// LoadState reads a flow state record. Returns ErrStateNotFound when no
// state file exists at path.
func LoadState(path string) (*FlowState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("read state: %w", err)
	}

	var state FlowState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &state, nil
}

// Save writes the flow state record to path, creating parent directories
// as needed.
func (s *FlowState) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// RemoveState deletes the state file. Removing an absent file is a no-op.
func RemoveState(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove state: %w", err)
	}
	return nil
}

// newStateID generates a short unique flow identifier.
func newStateID() string {
	id, err := nanoid.New()
	if err != nil {
		// nanoid only fails when the system entropy source does, in which
		// case a timestamp still uniquely names the single active flow.
		return fmt.Sprintf("flow-%d", time.Now().UnixNano())
	}
	return id
}
