package commitflow

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"fix-player", "fix-player"},
		{"Fix Player!", "fix-player"},
		{"  修复播放器  ", "work"},
		{"feat/new API v2", "feat-new-api-v2"},
		{"---", "work"},
		{"", "work"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Slugify(tt.in); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCreateFlow(t *testing.T) {
	dir := setupTestRepo(t)
	gitCtx, err := NewGitContext(dir)
	if err != nil {
		t.Fatalf("NewGitContext: %v", err)
	}

	now := time.Date(2026, 8, 29, 10, 30, 0, 0, time.Local)
	state, err := CreateFlow(gitCtx, CreateOptions{Slug: "Fix Player!", Now: now})
	if err != nil {
		t.Fatalf("CreateFlow: %v", err)
	}

	if state.Branch != "wt/20260829-1030-fix-player" {
		t.Errorf("branch = %q", state.Branch)
	}
	if !gitCtx.BranchExists(state.Branch) {
		t.Error("expected flow branch to exist")
	}
	if _, err := os.Stat(state.WorktreePath); err != nil {
		t.Errorf("worktree path missing: %v", err)
	}
	if !strings.Contains(state.WorktreePath, ".worktrees") {
		t.Errorf("worktree path = %q, want under .worktrees", state.WorktreePath)
	}
	if state.ID == "" {
		t.Error("expected non-empty flow id")
	}

	// State is persisted under the git common dir.
	loaded, err := LoadState(DefaultStatePath(gitCtx.CommonDir()))
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if loaded.Branch != state.Branch {
		t.Errorf("persisted branch = %q, want %q", loaded.Branch, state.Branch)
	}

	// The worktree dir is excluded, so the primary tree stays clean.
	clean, err := gitCtx.IsClean()
	if err != nil {
		t.Fatalf("IsClean: %v", err)
	}
	if !clean {
		t.Error("expected clean primary tree after worktree creation")
	}

	worktrees, err := gitCtx.ListWorktrees()
	if err != nil {
		t.Fatalf("ListWorktrees: %v", err)
	}
	if len(worktrees) != 2 {
		t.Errorf("worktree count = %d, want primary + flow", len(worktrees))
	}
}

func TestCreateFlow_PathExists(t *testing.T) {
	dir := setupTestRepo(t)
	gitCtx, err := NewGitContext(dir)
	if err != nil {
		t.Fatalf("NewGitContext: %v", err)
	}

	writeFile(t, dir, "taken/README.md", "occupied\n")

	_, err = CreateFlow(gitCtx, CreateOptions{Slug: "work", Path: "taken"})
	if !errors.Is(err, ErrWorktreeExists) {
		t.Errorf("err = %v, want ErrWorktreeExists", err)
	}
}

func TestCreateFlow_ReusesExistingBranch(t *testing.T) {
	dir := setupTestRepo(t)
	gitCtx, err := NewGitContext(dir)
	if err != nil {
		t.Fatalf("NewGitContext: %v", err)
	}

	if _, err := gitCtx.runGit("branch", "wt/existing"); err != nil {
		t.Fatalf("create branch: %v", err)
	}

	state, err := CreateFlow(gitCtx, CreateOptions{Branch: "wt/existing"})
	if err != nil {
		t.Fatalf("CreateFlow: %v", err)
	}
	if state.Branch != "wt/existing" {
		t.Errorf("branch = %q, want wt/existing", state.Branch)
	}

	wt, err := gitCtx.ListWorktrees()
	if err != nil {
		t.Fatalf("ListWorktrees: %v", err)
	}
	if len(wt) != 2 {
		t.Errorf("worktree count = %d, want 2", len(wt))
	}
}

func TestPlanFinish(t *testing.T) {
	state := &FlowState{
		RepoRoot:     "/repo",
		Base:         "main",
		Branch:       "wt/x",
		WorktreePath: "/repo/.worktrees/wt__x",
	}

	t.Run("merge and cleanup", func(t *testing.T) {
		plan := PlanFinish(state, FinishOptions{Merge: true, Cleanup: true})
		if len(plan.Planned) != 5 {
			t.Fatalf("planned steps = %v", plan.Planned)
		}
		if !strings.Contains(plan.Planned[1], "--no-ff") {
			t.Errorf("expected no-ff merge step, got %q", plan.Planned[1])
		}
	})

	t.Run("squash strategy", func(t *testing.T) {
		plan := PlanFinish(state, FinishOptions{Merge: true, Strategy: StrategySquash})
		if len(plan.Planned) != 3 {
			t.Fatalf("planned steps = %v", plan.Planned)
		}
		if !strings.Contains(plan.Planned[1], "--squash") {
			t.Errorf("expected squash step, got %q", plan.Planned[1])
		}
	})

	t.Run("nothing requested", func(t *testing.T) {
		plan := PlanFinish(state, FinishOptions{})
		if len(plan.Planned) != 0 {
			t.Errorf("planned steps = %v, want none", plan.Planned)
		}
	})
}

// commitInWorktree stages and commits a file inside the flow worktree.
func commitInWorktree(t *testing.T, gitCtx *GitContext, state *FlowState, rel, content string) {
	t.Helper()

	writeFile(t, state.WorktreePath, rel, content)
	wtCtx := gitCtx.InWorktree(state.WorktreePath)
	if err := wtCtx.StageAll(); err != nil {
		t.Fatalf("stage in worktree: %v", err)
	}
	if err := wtCtx.Commit("feat: 新增测试功能", ""); err != nil {
		t.Fatalf("commit in worktree: %v", err)
	}
}

func TestFinish_MergeAndCleanup(t *testing.T) {
	dir := setupTestRepo(t)
	gitCtx, err := NewGitContext(dir)
	if err != nil {
		t.Fatalf("NewGitContext: %v", err)
	}

	state, err := CreateFlow(gitCtx, CreateOptions{Slug: "merge-test"})
	if err != nil {
		t.Fatalf("CreateFlow: %v", err)
	}
	commitInWorktree(t, gitCtx, state, "feature.txt", "hello\n")

	err = Finish(gitCtx, state, FinishOptions{Merge: true, Cleanup: true})
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}

	// Merged content is present on the base branch.
	if _, statErr := os.Stat(filepath.Join(dir, "feature.txt")); statErr != nil {
		t.Errorf("merged file missing: %v", statErr)
	}
	// Worktree and branch are gone, state removed.
	if _, statErr := os.Stat(state.WorktreePath); !os.IsNotExist(statErr) {
		t.Error("expected worktree path removed")
	}
	if gitCtx.BranchExists(state.Branch) {
		t.Error("expected flow branch deleted")
	}
	if _, loadErr := LoadState(DefaultStatePath(gitCtx.CommonDir())); !errors.Is(loadErr, ErrStateNotFound) {
		t.Errorf("state err = %v, want ErrStateNotFound", loadErr)
	}
}

func TestFinish_FromInsideWorktree(t *testing.T) {
	dir := setupTestRepo(t)
	gitCtx, err := NewGitContext(dir)
	if err != nil {
		t.Fatalf("NewGitContext: %v", err)
	}

	state, err := CreateFlow(gitCtx, CreateOptions{Slug: "inside"})
	if err != nil {
		t.Fatalf("CreateFlow: %v", err)
	}
	commitInWorktree(t, gitCtx, state, "inside.txt", "hello\n")

	// Resolve the context the way the CLI does when run from inside the
	// flow worktree: the toplevel is the worktree, and merging there
	// would fail because the base branch is checked out in the primary
	// tree. Re-rooting at the recorded primary tree must make the full
	// finish succeed.
	wtCtx, err := NewGitContext(state.WorktreePath)
	if err != nil {
		t.Fatalf("NewGitContext in worktree: %v", err)
	}
	primary := wtCtx.InWorktree(state.RepoRoot)

	if err := Finish(primary, state, FinishOptions{Merge: true, Cleanup: true}); err != nil {
		t.Fatalf("Finish from inside worktree: %v", err)
	}

	if _, statErr := os.Stat(filepath.Join(dir, "inside.txt")); statErr != nil {
		t.Errorf("merged file missing in primary tree: %v", statErr)
	}
	if _, statErr := os.Stat(state.WorktreePath); !os.IsNotExist(statErr) {
		t.Error("expected worktree path removed")
	}
	if gitCtx.BranchExists(state.Branch) {
		t.Error("expected flow branch deleted")
	}
}

func TestFinish_SquashMerge(t *testing.T) {
	dir := setupTestRepo(t)
	gitCtx, err := NewGitContext(dir)
	if err != nil {
		t.Fatalf("NewGitContext: %v", err)
	}

	state, err := CreateFlow(gitCtx, CreateOptions{Slug: "squash-test"})
	if err != nil {
		t.Fatalf("CreateFlow: %v", err)
	}
	commitInWorktree(t, gitCtx, state, "squashed.txt", "hello\n")

	err = Finish(gitCtx, state, FinishOptions{
		Merge:         true,
		Strategy:      StrategySquash,
		SquashMessage: "feat: 合并工作分支",
	})
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}

	out, err := gitCtx.runGit("log", "-1", "--format=%s")
	if err != nil {
		t.Fatalf("git log: %v", err)
	}
	if out != "feat: 合并工作分支" {
		t.Errorf("squash commit subject = %q", out)
	}
}

func TestFinish_SquashRequiresMessage(t *testing.T) {
	dir := setupTestRepo(t)
	gitCtx, err := NewGitContext(dir)
	if err != nil {
		t.Fatalf("NewGitContext: %v", err)
	}

	state, err := CreateFlow(gitCtx, CreateOptions{Slug: "no-message"})
	if err != nil {
		t.Fatalf("CreateFlow: %v", err)
	}
	commitInWorktree(t, gitCtx, state, "x.txt", "x\n")

	err = Finish(gitCtx, state, FinishOptions{Merge: true, Strategy: StrategySquash})
	if !errors.Is(err, ErrSquashMessageRequired) {
		t.Errorf("err = %v, want ErrSquashMessageRequired", err)
	}
}

func TestFinish_DirtyTreeRefusesMerge(t *testing.T) {
	dir := setupTestRepo(t)
	gitCtx, err := NewGitContext(dir)
	if err != nil {
		t.Fatalf("NewGitContext: %v", err)
	}

	state, err := CreateFlow(gitCtx, CreateOptions{Slug: "dirty"})
	if err != nil {
		t.Fatalf("CreateFlow: %v", err)
	}
	commitInWorktree(t, gitCtx, state, "y.txt", "y\n")

	// Dirty the primary tree.
	writeFile(t, dir, "README.md", "# dirty\n")

	err = Finish(gitCtx, state, FinishOptions{Merge: true})
	if !errors.Is(err, ErrDirtyWorktree) {
		t.Errorf("err = %v, want ErrDirtyWorktree", err)
	}
}
