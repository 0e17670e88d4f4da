package commitflow

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Merge strategies for finishing a flow.
const (
	StrategyMerge  = "merge"
	StrategySquash = "squash"
)

// defaultWorktreeDir is where flow worktrees live, relative to the
// repository root.
const defaultWorktreeDir = ".worktrees"

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases value and collapses every non-alphanumeric run into a
// single hyphen. An empty result falls back to "work".
func Slugify(value string) string {
	slug := strings.ToLower(strings.TrimSpace(value))
	slug = nonSlugChars.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "work"
	}
	return slug
}

// CreateOptions configures a new worktree flow. All fields are optional.
type CreateOptions struct {
	// Slug names the unit of work; it becomes part of the branch name.
	Slug string

	// Base is the branch/ref the worktree forks from. Empty means the
	// repository's detected default base.
	Base string

	// Branch overrides the generated "wt/<timestamp>-<slug>" branch name.
	Branch string

	// Path overrides the worktree location. Relative paths are resolved
	// against the repository root.
	Path string

	// WorktreeDir is the directory for generated worktree paths, relative
	// to the repository root. Empty means ".worktrees".
	WorktreeDir string

	// StatePath overrides where the flow state is persisted.
	StatePath string

	// Now overrides the clock used in generated branch names.
	Now time.Time
}

// CreateFlow creates an isolated worktree on a freshly named branch and
// persists the flow state. An existing branch of the same name is reused;
// an existing worktree path is an error.
func CreateFlow(g *GitContext, opts CreateOptions) (*FlowState, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	base := strings.TrimSpace(opts.Base)
	if base == "" {
		detected, err := g.DefaultBase()
		if err != nil {
			return nil, fmt.Errorf("detect base branch: %w", err)
		}
		base = detected
	}

	branch := strings.TrimSpace(opts.Branch)
	if branch == "" {
		slug := "work"
		if opts.Slug != "" {
			slug = Slugify(opts.Slug)
		}
		branch = fmt.Sprintf("wt/%s-%s", now.Format("20060102-1504"), slug)
	}

	worktreeDir := opts.WorktreeDir
	if worktreeDir == "" {
		worktreeDir = defaultWorktreeDir
	}

	worktreePath := strings.TrimSpace(opts.Path)
	if worktreePath == "" {
		safeDir := strings.ReplaceAll(branch, "/", "__")
		worktreePath = filepath.Join(g.RepoRoot(), worktreeDir, safeDir)
	} else if !filepath.IsAbs(worktreePath) {
		worktreePath = filepath.Join(g.RepoRoot(), worktreePath)
	}

	if _, err := os.Stat(worktreePath); err == nil {
		return nil, ErrWorktreeExists
	}
	if err := os.MkdirAll(filepath.Dir(worktreePath), 0755); err != nil {
		return nil, fmt.Errorf("create worktree parent: %w", err)
	}

	// Keep the worktree directory out of status output without touching
	// the tracked .gitignore.
	if err := g.EnsureExcluded(worktreeDir + "/"); err != nil {
		return nil, err
	}

	if err := g.AddWorktree(worktreePath, branch, base, !g.BranchExists(branch)); err != nil {
		return nil, err
	}

	state := &FlowState{
		ID:           newStateID(),
		RepoRoot:     g.RepoRoot(),
		GitCommonDir: g.CommonDir(),
		Base:         base,
		Branch:       branch,
		WorktreePath: worktreePath,
		CreatedAt:    now,
	}

	statePath := opts.StatePath
	if statePath == "" {
		statePath = DefaultStatePath(g.CommonDir())
	}
	if err := state.Save(statePath); err != nil {
		return nil, err
	}

	return state, nil
}

// FinishOptions selects which finishing steps to run.
type FinishOptions struct {
	// Merge merges the flow branch into its base in the primary tree.
	Merge bool

	// Cleanup removes the worktree, safe-deletes the branch, and removes
	// the state file.
	Cleanup bool

	// Strategy is StrategyMerge (default) or StrategySquash.
	Strategy string

	// SquashMessage is the commit message for a squash merge. Required
	// with StrategySquash so git never opens an editor.
	SquashMessage string

	// StatePath overrides where the flow state lives.
	StatePath string
}

func (o FinishOptions) strategy() string {
	if o.Strategy == "" {
		return StrategyMerge
	}
	return o.Strategy
}

// FinishPlan describes the commands a finish run would execute, for
// review before anything is touched.
type FinishPlan struct {
	RepoRoot     string   `json:"repo_root"`
	Base         string   `json:"base"`
	Branch       string   `json:"branch"`
	WorktreePath string   `json:"worktree_path"`
	Planned      []string `json:"planned"`
}

// PlanFinish lists the steps Finish would run for the given state and
// options, without executing anything.
func PlanFinish(state *FlowState, opts FinishOptions) FinishPlan {
	var planned []string
	if opts.Merge {
		planned = append(planned, fmt.Sprintf("git checkout %s (in %s)", state.Base, state.RepoRoot))
		if opts.strategy() == StrategySquash {
			planned = append(planned,
				fmt.Sprintf("git merge --squash %s", state.Branch),
				`git commit -m "<squash-message>"`)
		} else {
			planned = append(planned, fmt.Sprintf("git merge --no-ff --no-edit %s", state.Branch))
		}
	}
	if opts.Cleanup {
		planned = append(planned,
			fmt.Sprintf("git worktree remove %s", state.WorktreePath),
			fmt.Sprintf("git branch -d %s", state.Branch),
			"remove state file")
	}

	return FinishPlan{
		RepoRoot:     state.RepoRoot,
		Base:         state.Base,
		Branch:       state.Branch,
		WorktreePath: state.WorktreePath,
		Planned:      planned,
	}
}

// Finish merges and/or cleans up the flow described by state. Merging
// requires a clean primary tree; cleanup deletes the branch with a safe
// delete, so git refuses when the branch is not fully merged.
func Finish(g *GitContext, state *FlowState, opts FinishOptions) error {
	if opts.Merge {
		clean, err := g.IsClean()
		if err != nil {
			return err
		}
		if !clean {
			return ErrDirtyWorktree
		}

		if err := g.Checkout(state.Base); err != nil {
			return err
		}
		switch opts.strategy() {
		case StrategySquash:
			if err := g.MergeSquash(state.Branch, opts.SquashMessage); err != nil {
				return err
			}
		default:
			if err := g.Merge(state.Branch); err != nil {
				return err
			}
		}
	}

	if opts.Cleanup {
		if err := g.RemoveWorktree(state.WorktreePath); err != nil {
			return err
		}
		if err := g.DeleteBranch(state.Branch, false); err != nil {
			return err
		}

		statePath := opts.StatePath
		if statePath == "" {
			statePath = DefaultStatePath(state.GitCommonDir)
		}
		if err := RemoveState(statePath); err != nil {
			return err
		}
	}

	return nil
}
