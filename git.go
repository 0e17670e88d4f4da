package commitflow

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// GitContext manages git operations for a repository. The zero value is not
// usable; construct with NewGitContext so the repository root and git common
// directory are resolved up front and threaded through every call.
type GitContext struct {
	repoRoot  string // Absolute path to the primary working tree
	commonDir string // Absolute path to the shared .git directory
	workDir   string // Working directory for git commands (defaults to repoRoot)
}

// NewGitContext creates a git context rooted at the repository containing
// path. Returns ErrNotGitRepo when path is not inside a working tree.
func NewGitContext(path string) (*GitContext, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}

	root, err := gitOutput(absPath, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, ErrNotGitRepo
	}

	commonDir, err := gitOutput(absPath, "rev-parse", "--git-common-dir")
	if err != nil {
		return nil, ErrNotGitRepo
	}
	if !filepath.IsAbs(commonDir) {
		commonDir = filepath.Join(absPath, commonDir)
	}

	return &GitContext{
		repoRoot:  root,
		commonDir: commonDir,
		workDir:   root,
	}, nil
}

// RepoRoot returns the absolute path to the primary working tree.
func (g *GitContext) RepoRoot() string {
	return g.repoRoot
}

// CommonDir returns the absolute path to the shared .git directory.
func (g *GitContext) CommonDir() string {
	return g.commonDir
}

// InWorktree returns a context whose git commands run inside the given
// worktree instead of the primary working tree.
func (g *GitContext) InWorktree(worktreePath string) *GitContext {
	return &GitContext{
		repoRoot:  g.repoRoot,
		commonDir: g.commonDir,
		workDir:   worktreePath,
	}
}

// CurrentBranch returns the current branch name.
func (g *GitContext) CurrentBranch() (string, error) {
	branch, err := g.runGit("rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", &GitError{Op: "get current branch", Err: err}
	}
	return branch, nil
}

// Checkout switches to the specified ref.
func (g *GitContext) Checkout(ref string) error {
	if _, err := g.runGit("checkout", ref); err != nil {
		return &GitError{Op: "checkout", Err: err}
	}
	return nil
}

// BranchExists checks whether a local branch exists.
func (g *GitContext) BranchExists(name string) bool {
	_, err := g.runGit("show-ref", "--verify", "--quiet", "refs/heads/"+name)
	return err == nil
}

// RemoteRefExists checks whether a remote-tracking ref exists, e.g. "origin/main".
func (g *GitContext) RemoteRefExists(name string) bool {
	_, err := g.runGit("show-ref", "--verify", "--quiet", "refs/remotes/"+name)
	return err == nil
}

// DeleteBranch deletes a branch. Without force this is a safe delete: git
// refuses when the branch is not fully merged.
func (g *GitContext) DeleteBranch(name string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	if _, err := g.runGit("branch", flag, name); err != nil {
		return &GitError{Op: "delete branch", Err: err}
	}
	return nil
}

// DefaultBase returns the branch new work should fork from. It prefers the
// remote HEAD's target when that branch exists locally, then the remote ref
// itself, then main, then master, and finally the current branch.
func (g *GitContext) DefaultBase() (string, error) {
	if originHead, err := g.runGit("symbolic-ref", "--quiet", "--short", "refs/remotes/origin/HEAD"); err == nil {
		if name, ok := strings.CutPrefix(originHead, "origin/"); ok {
			if g.BranchExists(name) {
				return name, nil
			}
			if g.RemoteRefExists(originHead) {
				return originHead, nil
			}
			return name, nil
		}
	}
	if g.BranchExists("main") {
		return "main", nil
	}
	if g.BranchExists("master") {
		return "master", nil
	}
	return g.CurrentBranch()
}

// StageAll stages all changes (git add -A).
func (g *GitContext) StageAll() error {
	if _, err := g.runGit("add", "-A"); err != nil {
		return &GitError{Op: "stage all", Err: err}
	}
	return nil
}

// HasStaged reports whether any changes are staged in the index.
func (g *GitContext) HasStaged() (bool, error) {
	out, err := g.runGit("diff", "--cached", "--name-only")
	if err != nil {
		return false, &GitError{Op: "check staged", Err: err}
	}
	return out != "", nil
}

// Commit creates a commit from the staged changes. The subject and body are
// passed as separate message segments; an empty body is omitted.
// Returns ErrNothingToCommit when the index is empty.
func (g *GitContext) Commit(subject, body string) error {
	args := []string{"commit", "-m", subject}
	if body != "" {
		args = append(args, "-m", body)
	}
	output, err := g.runGit(args...)
	if err != nil {
		if strings.Contains(output, "nothing to commit") ||
			strings.Contains(err.Error(), "nothing to commit") {
			return ErrNothingToCommit
		}
		return &GitError{Op: "commit", Output: output, Err: err}
	}
	return nil
}

// IsClean returns true if the working tree has no uncommitted changes.
func (g *GitContext) IsClean() (bool, error) {
	status, err := g.runGit("status", "--porcelain")
	if err != nil {
		return false, &GitError{Op: "status", Err: err}
	}
	return status == "", nil
}

// Merge merges branch into the current branch with a merge commit (--no-ff).
func (g *GitContext) Merge(branch string) error {
	_, err := g.runGit("-c", "merge.autoEdit=false", "merge", "--no-ff", "--no-edit", branch)
	if err != nil {
		return &GitError{Op: "merge", Err: err}
	}
	return nil
}

// MergeSquash stages branch's changes as a squash merge and commits them
// with the given message.
func (g *GitContext) MergeSquash(branch, message string) error {
	if strings.TrimSpace(message) == "" {
		return ErrSquashMessageRequired
	}
	if _, err := g.runGit("merge", "--squash", branch); err != nil {
		return &GitError{Op: "squash merge", Err: err}
	}
	if _, err := g.runGit("commit", "-m", message); err != nil {
		return &GitError{Op: "squash commit", Err: err}
	}
	return nil
}

// AddWorktree registers a new worktree at path. When createBranch is true
// the branch is created from base; otherwise the existing branch is checked
// out into the worktree.
func (g *GitContext) AddWorktree(path, branch, base string, createBranch bool) error {
	var err error
	if createBranch {
		_, err = g.runGit("worktree", "add", "-b", branch, path, base)
	} else {
		_, err = g.runGit("worktree", "add", path, branch)
	}
	if err != nil {
		return &GitError{Op: "add worktree", Err: err}
	}
	return nil
}

// RemoveWorktree removes a worktree and its registration.
func (g *GitContext) RemoveWorktree(path string) error {
	if _, err := g.runGit("worktree", "remove", path); err != nil {
		return &GitError{Op: "remove worktree", Err: err}
	}
	return nil
}

// PruneWorktrees removes stale worktree administrative files.
func (g *GitContext) PruneWorktrees() error {
	if _, err := g.runGit("worktree", "prune"); err != nil {
		return &GitError{Op: "prune worktrees", Err: err}
	}
	return nil
}

// WorktreeInfo represents an active git worktree.
type WorktreeInfo struct {
	Path   string // Filesystem path to the worktree
	Branch string // Branch checked out in the worktree
	Commit string // HEAD commit SHA
}

// ListWorktrees returns all active worktrees, primary tree first.
func (g *GitContext) ListWorktrees() ([]WorktreeInfo, error) {
	output, err := g.runGit("worktree", "list", "--porcelain")
	if err != nil {
		return nil, &GitError{Op: "list worktrees", Err: err}
	}

	var worktrees []WorktreeInfo
	var current WorktreeInfo

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			if current.Path != "" {
				worktrees = append(worktrees, current)
				current = WorktreeInfo{}
			}
			continue
		}

		switch {
		case strings.HasPrefix(line, "worktree "):
			current.Path = strings.TrimPrefix(line, "worktree ")
		case strings.HasPrefix(line, "HEAD "):
			current.Commit = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			// Format: branch refs/heads/branch-name
			ref := strings.TrimPrefix(line, "branch ")
			current.Branch = strings.TrimPrefix(ref, "refs/heads/")
		case line == "detached":
			current.Branch = "(detached)"
		}
	}

	if current.Path != "" {
		worktrees = append(worktrees, current)
	}

	return worktrees, nil
}

// EnsureExcluded appends an exclude pattern to <common-dir>/info/exclude so
// the pattern is ignored locally without touching the tracked .gitignore.
// Adding an already-present pattern is a no-op.
func (g *GitContext) EnsureExcluded(pattern string) error {
	excludePath := filepath.Join(g.commonDir, "info", "exclude")
	if err := os.MkdirAll(filepath.Dir(excludePath), 0755); err != nil {
		return fmt.Errorf("create info dir: %w", err)
	}

	existing, err := os.ReadFile(excludePath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read exclude file: %w", err)
	}
	for _, line := range strings.Split(string(existing), "\n") {
		if line == pattern {
			return nil
		}
	}

	f, err := os.OpenFile(excludePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open exclude file: %w", err)
	}
	defer f.Close()

	entry := pattern + "\n"
	if len(existing) > 0 && !bytes.HasSuffix(existing, []byte("\n")) {
		entry = "\n" + entry
	}
	if _, err := f.WriteString(entry); err != nil {
		return fmt.Errorf("append exclude pattern: %w", err)
	}
	return nil
}

// runGit executes a git command in the context's working directory and
// returns trimmed stdout. On failure the returned string carries whatever
// the command printed, so callers can inspect git's own diagnostics.
func (g *GitContext) runGit(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = g.workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg == "" {
			errMsg = strings.TrimSpace(stdout.String())
		}
		return errMsg, fmt.Errorf("%s", errMsg)
	}

	return strings.TrimSpace(stdout.String()), nil
}

// runGitRaw executes a git command and returns stdout verbatim, preserving
// NUL separators and trailing bytes.
func (g *GitContext) runGitRaw(args ...string) ([]byte, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = g.workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errMsg := strings.TrimSpace(stderr.String())
		return nil, fmt.Errorf("%s", errMsg)
	}
	return stdout.Bytes(), nil
}

// gitOutput runs a git command in dir without a constructed context.
// Used during context construction only.
func gitOutput(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
