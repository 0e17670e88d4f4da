package commitflow

import "errors"

// Repository and change-set errors
var (
	// ErrNotGitRepo indicates the path is not inside a git repository.
	ErrNotGitRepo = errors.New("not a git repository")

	// ErrNoChanges indicates there are no changed files to summarize.
	ErrNoChanges = errors.New("no changes to summarize")

	// ErrNothingToCommit indicates there are no staged changes to commit.
	ErrNothingToCommit = errors.New("nothing to commit")

	// ErrDirtyWorktree indicates the primary working tree has uncommitted changes.
	ErrDirtyWorktree = errors.New("working tree has uncommitted changes")
)

// Worktree lifecycle errors
var (
	// ErrWorktreeExists indicates the worktree path is already in use.
	ErrWorktreeExists = errors.New("worktree path already exists")

	// ErrWorktreeNotFound indicates the worktree does not exist.
	ErrWorktreeNotFound = errors.New("worktree not found")

	// ErrStateNotFound indicates no persisted worktree flow state exists.
	ErrStateNotFound = errors.New("worktree flow state not found")

	// ErrSquashMessageRequired indicates a squash merge was requested
	// without a commit message.
	ErrSquashMessageRequired = errors.New("squash merge requires a commit message")
)

// GitError wraps a git command failure with context.
type GitError struct {
	Op     string // Operation that failed (e.g., "commit", "merge")
	Output string // Combined stdout/stderr output
	Err    error  // Underlying error
}

func (e *GitError) Error() string {
	if e.Output != "" {
		return e.Op + ": " + e.Output
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *GitError) Unwrap() error {
	return e.Err
}
