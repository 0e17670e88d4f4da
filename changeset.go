package commitflow

import (
	"bytes"

	"github.com/samber/lo"
)

// FileStatus is the single-letter change status reported by git's diff
// machinery (the first letter of the raw name-status code).
type FileStatus string

// Change statuses.
const (
	StatusAdded    FileStatus = "A"
	StatusModified FileStatus = "M"
	StatusDeleted  FileStatus = "D"
	StatusRenamed  FileStatus = "R"
	StatusCopied   FileStatus = "C"
)

// IsAddition reports whether the status introduces a path that did not
// previously exist. Renames and copies are recorded under their new path,
// so the classifiers treat them like additions.
func (s FileStatus) IsAddition() bool {
	return s == StatusAdded || s == StatusRenamed || s == StatusCopied
}

// ChangedFile is one changed path with its status. Path is repository-relative
// and slash-separated; for renames and copies it is the new path.
type ChangedFile struct {
	Status FileStatus
	Path   string
}

// ChangeSet is an ordered list of changed files in the order the diff
// machinery reported them. It is never sorted or de-duplicated.
type ChangeSet []ChangedFile

// Paths returns the paths in change-set order.
func (cs ChangeSet) Paths() []string {
	return lo.Map(cs, func(c ChangedFile, _ int) string { return c.Path })
}

// Statuses returns the statuses in change-set order.
func (cs ChangeSet) Statuses() []FileStatus {
	return lo.Map(cs, func(c ChangedFile, _ int) FileStatus { return c.Status })
}

// Mode selects which changes the reader inspects.
type Mode string

// Reader modes.
const (
	// ModeStaged reads the changes between the index and HEAD.
	ModeStaged Mode = "staged"

	// ModeWorktree reads unstaged changes plus untracked files.
	ModeWorktree Mode = "worktree"
)

// ChangedFiles reads the change set for the given mode. In worktree mode,
// tracked changes come first and untracked files are appended after, each
// sublist in its own discovery order.
func (g *GitContext) ChangedFiles(mode Mode) (ChangeSet, error) {
	args := []string{"diff", "--name-status", "-z"}
	if mode == ModeStaged {
		args = []string{"diff", "--cached", "--name-status", "-z"}
	}

	raw, err := g.runGitRaw(args...)
	if err != nil {
		return nil, &GitError{Op: "list changed files", Err: err}
	}
	changed := parseNameStatus(raw)

	if mode == ModeWorktree {
		untracked, err := g.untrackedFiles()
		if err != nil {
			return nil, err
		}
		changed = append(changed, untracked...)
	}

	return changed, nil
}

// untrackedFiles lists paths not tracked by git and not excluded by ignore
// rules, each carrying status Added.
func (g *GitContext) untrackedFiles() (ChangeSet, error) {
	raw, err := g.runGitRaw("ls-files", "--others", "--exclude-standard", "-z")
	if err != nil {
		return nil, &GitError{Op: "list untracked files", Err: err}
	}

	var changed ChangeSet
	for _, p := range splitNul(raw) {
		changed = append(changed, ChangedFile{Status: StatusAdded, Path: p})
	}
	return changed, nil
}

// ShortStat returns git's one-line insertions/deletions summary for the
// given mode, or "" when there is no diff.
func (g *GitContext) ShortStat(mode Mode) (string, error) {
	args := []string{"diff", "--shortstat"}
	if mode == ModeStaged {
		args = []string{"diff", "--cached", "--shortstat"}
	}
	out, err := g.runGit(args...)
	if err != nil {
		return "", &GitError{Op: "diff shortstat", Err: err}
	}
	return out, nil
}

// parseNameStatus decodes `git diff --name-status -z` output. Records are
// NUL-separated: an ordinary change is a status field followed by one path,
// while a rename/copy status (R<score> or C<score>) is followed by two
// paths (old, new). Status and field count must be decided together: a
// rename consumes three fields, everything else two, and getting that wrong
// de-synchronizes every record after it.
func parseNameStatus(raw []byte) ChangeSet {
	fields := splitNul(raw)

	var changed ChangeSet
	i := 0
	for i < len(fields) {
		status := fields[i]
		if status == "" {
			i++
			continue
		}

		if status[0] == 'R' || status[0] == 'C' {
			if i+2 >= len(fields) {
				break
			}
			changed = append(changed, ChangedFile{
				Status: FileStatus(status[:1]),
				Path:   fields[i+2],
			})
			i += 3
			continue
		}

		if i+1 >= len(fields) {
			break
		}
		changed = append(changed, ChangedFile{
			Status: FileStatus(status[:1]),
			Path:   fields[i+1],
		})
		i += 2
	}
	return changed
}

// splitNul splits NUL-separated output into fields, dropping the trailing
// empty field git emits after the final NUL.
func splitNul(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	parts := bytes.Split(raw, []byte{0})
	if len(parts) > 0 && len(parts[len(parts)-1]) == 0 {
		parts = parts[:len(parts)-1]
	}
	fields := make([]string, len(parts))
	for i, p := range parts {
		fields[i] = string(p)
	}
	return fields
}
