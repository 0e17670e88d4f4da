package commitflow

import (
	"fmt"
	"strings"
)

// Rendering defaults.
const (
	// DefaultSubjectLimit is the subject length cap in code points.
	DefaultSubjectLimit = 50

	// DefaultFileCap is the maximum number of file lines in the body.
	DefaultFileCap = 12
)

// CommitMessage is a rendered commit message: a length-bounded subject and
// an optional newline-joined body. It is built once per invocation and
// never mutated.
type CommitMessage struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Options configures a suggestion run.
type Options struct {
	// Mode selects staged or worktree changes. Defaults to ModeStaged.
	Mode Mode

	// Hint is an optional user-supplied summary. It overrides the rendered
	// summary verbatim and can flip the commit type to fix.
	Hint string

	// SubjectLimit caps the subject in code points. 0 means DefaultSubjectLimit.
	SubjectLimit int

	// FileCap caps the body file listing. 0 means DefaultFileCap.
	FileCap int

	// Rules overrides the classification tables. nil means DefaultRuleset.
	Rules *Ruleset
}

// Suggest reads the change set for opts.Mode, runs the four classifiers,
// and renders a commit message. Returns ErrNoChanges when there is nothing
// to summarize.
func Suggest(g *GitContext, opts Options) (CommitMessage, error) {
	mode := opts.Mode
	if mode == "" {
		mode = ModeStaged
	}
	rules := DefaultRuleset()
	if opts.Rules != nil {
		rules = *opts.Rules
	}

	changed, err := g.ChangedFiles(mode)
	if err != nil {
		return CommitMessage{}, err
	}
	if len(changed) == 0 {
		return CommitMessage{}, ErrNoChanges
	}

	stat, err := g.ShortStat(mode)
	if err != nil {
		return CommitMessage{}, err
	}

	paths := changed.Paths()
	object, hasObject := rules.InferObject(changed)

	return Render(RenderInput{
		CommitType:   InferType(paths, opts.Hint),
		Area:         rules.InferArea(paths),
		Object:       object,
		HasObject:    hasObject,
		Action:       InferAction(changed.Statuses()),
		Hint:         opts.Hint,
		StatLine:     stat,
		Changes:      changed,
		SubjectLimit: opts.SubjectLimit,
		FileCap:      opts.FileCap,
	}), nil
}

// RenderInput carries the classifier outputs into the renderer.
type RenderInput struct {
	CommitType   string
	Area         string
	Object       string
	HasObject    bool
	Action       string
	Hint         string
	StatLine     string
	Changes      ChangeSet
	SubjectLimit int
	FileCap      int
}

// Render merges the classifier outputs into a subject/body pair. The
// subject prefers the hint verbatim, then an object-derived phrase, then a
// generic "{action}{area}变更" fallback, and is always capped at the
// subject limit. The body is a statistics line plus a capped file listing.
func Render(in RenderInput) CommitMessage {
	limit := in.SubjectLimit
	if limit <= 0 {
		limit = DefaultSubjectLimit
	}
	fileCap := in.FileCap
	if fileCap <= 0 {
		fileCap = DefaultFileCap
	}

	var summary string
	switch {
	case in.Hint != "":
		summary = strings.TrimSpace(in.Hint)
	case in.HasObject:
		switch {
		case in.CommitType == TypeDocs:
			summary = in.Action + in.Object + "文档"
		case (in.Object == labelAboutPage || in.Object == labelPrivacyPage) && touchesAbout(in.Changes):
			summary = in.Action + in.Object + "页面"
		case strings.Contains(in.Object, "页面") || strings.HasSuffix(in.Object, "页"):
			summary = in.Action + in.Object
		default:
			summary = in.Action + in.Object + "功能"
		}
	default:
		summary = in.Action + in.Area + "变更"
	}

	subject := compactSubject(in.CommitType, summary, limit)

	var lines []string
	if in.StatLine != "" {
		lines = append(lines, "- 统计："+in.StatLine)
	}
	for i, c := range in.Changes {
		if i == fileCap {
			break
		}
		lines = append(lines, fmt.Sprintf("- %s %s", c.Status, c.Path))
	}
	if len(in.Changes) > fileCap {
		lines = append(lines, fmt.Sprintf("- ... 以及另外 %d 个文件", len(in.Changes)-fileCap))
	}

	return CommitMessage{
		Subject: subject,
		Body:    strings.TrimSpace(strings.Join(lines, "\n")),
	}
}

func touchesAbout(changes ChangeSet) bool {
	for _, c := range changes {
		if strings.Contains(strings.ToLower(c.Path), "about") {
			return true
		}
	}
	return false
}

// compactSubject builds "prefix: summary" within the code-point limit.
// An over-length subject first drops the low-information 功能/页面 suffix
// words and, failing that, is hard-truncated. Truncation always terminates;
// an over-length subject is cosmetic, never an error.
func compactSubject(prefix, summary string, limit int) string {
	subject := strings.TrimSpace(prefix + ": " + summary)
	if runeLen(subject) <= limit {
		return subject
	}

	compact := strings.ReplaceAll(summary, "功能", "")
	compact = strings.ReplaceAll(compact, "页面", "")
	if s := strings.TrimSpace(prefix + ": " + compact); runeLen(s) <= limit {
		return s
	}

	return string([]rune(subject)[:limit])
}

func runeLen(s string) int {
	return len([]rune(s))
}
