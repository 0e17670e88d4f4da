// Package commitflow inspects a git working tree's pending changes and
// synthesizes a conventional-style commit message from the changed paths
// and statuses alone. It also manages short-lived parallel worktrees for
// isolated units of work: creation on a freshly named branch, merge back
// into the base, and safe cleanup.
//
// The classification engine is pure: four independent heuristics (commit
// type, dominant area, subject object, action) each consume the same
// immutable change set and feed a length-bounded subject line plus a
// capped file-listing body. Only the change-set reader and the worktree
// lifecycle touch the git binary.
//
//	gitCtx, err := commitflow.NewGitContext(".")
//	if err != nil { ... }
//	msg, err := commitflow.Suggest(gitCtx, commitflow.Options{Mode: commitflow.ModeStaged})
//
// See cmd/commitflow for the CLI surface.
package commitflow
