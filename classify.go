package commitflow

import (
	"regexp"
	"strings"

	"github.com/samber/lo"
)

// Commit types.
const (
	TypeFeat  = "feat"
	TypeFix   = "fix"
	TypeDocs  = "docs"
	TypeTest  = "test"
	TypeChore = "chore"
)

// Action labels.
const (
	ActionAdded   = "新增"
	ActionRemoved = "移除"
	ActionUpdated = "更新"
)

// Object labels referenced outside the keyword table.
const (
	labelAboutPage   = "关于我们"
	labelPrivacyPage = "隐私政策"
)

// areaFallback is the display name for areas with no mapping, and for an
// empty change set (the area classifier is advisory and never errors).
const areaFallback = "项目"

// defectHintKeywords marks a user hint as describing a fix.
var defectHintKeywords = []string{"修复", "bug", "崩溃", "异常", "错误"}

// typeRule pairs a predicate with the commit type it yields. Rules are
// evaluated in order and the first match wins, so precedence lives in the
// slice, not in control flow.
type typeRule struct {
	name    string
	matches func(paths []string, hint string) bool
	result  string
}

var typeRules = []typeRule{
	{
		name: "defect hint",
		matches: func(_ []string, hint string) bool {
			return hint != "" && lo.SomeBy(defectHintKeywords, func(k string) bool {
				return strings.Contains(hint, k)
			})
		},
		result: TypeFix,
	},
	{
		name: "docs only",
		matches: func(paths []string, _ string) bool {
			return allPaths(paths, isDocsPath)
		},
		result: TypeDocs,
	},
	{
		name: "tests only",
		matches: func(paths []string, _ string) bool {
			return allPaths(paths, isTestPath)
		},
		result: TypeTest,
	},
	{
		name: "chore only",
		matches: func(paths []string, _ string) bool {
			return allPaths(paths, isChorePath)
		},
		result: TypeChore,
	},
	{
		name:    "default",
		matches: func(_ []string, _ string) bool { return true },
		result:  TypeFeat,
	},
}

// InferType classifies the change set into a conventional commit type.
// A defect-language hint short-circuits everything else; the path rules
// require every path to match, so a single source change among docs keeps
// the set out of the docs bucket.
func InferType(paths []string, hint string) string {
	for _, rule := range typeRules {
		if rule.matches(paths, hint) {
			return rule.result
		}
	}
	return TypeFeat
}

// allPaths reports whether every path matches. Empty input never matches:
// the allow-list rules must not fire on nothing.
func allPaths(paths []string, match func(string) bool) bool {
	if len(paths) == 0 {
		return false
	}
	return lo.EveryBy(paths, match)
}

func isDocsPath(p string) bool {
	return strings.HasPrefix(p, "docs/") || strings.HasSuffix(strings.ToLower(p), ".md")
}

var testPathPatterns = []*regexp.Regexp{
	regexp.MustCompile(`_test\.go$`),
	regexp.MustCompile(`\.(spec|test)\.(ts|tsx|js|jsx)$`),
	regexp.MustCompile(`(^|/)__tests__(/|$)`),
	regexp.MustCompile(`(^|/)tests?(/|$)`),
}

func isTestPath(p string) bool {
	return lo.SomeBy(testPathPatterns, func(r *regexp.Regexp) bool {
		return r.MatchString(p)
	})
}

// choreArtifacts is an explicit allow-list of non-functional files, not a
// heuristic guess.
var choreArtifacts = map[string]struct{}{
	"package.json":      {},
	"package-lock.json": {},
	"yarn.lock":         {},
	"pnpm-lock.yaml":    {},
	"go.mod":            {},
	"go.sum":            {},
	"tsconfig.json":     {},
	"app.json":          {},
	"app.config.js":     {},
	"app.config.ts":     {},
	".gitignore":        {},
	".gitattributes":    {},
}

func isChorePath(p string) bool {
	base := p[strings.LastIndex(p, "/")+1:]
	if _, ok := choreArtifacts[base]; ok {
		return true
	}
	if strings.HasPrefix(p, ".github/") || strings.HasPrefix(p, ".vscode/") {
		return true
	}
	if strings.HasSuffix(base, ".yml") || strings.HasSuffix(base, ".yaml") {
		return strings.Contains(base, "eslint") || strings.Contains(base, "prettier")
	}
	return false
}

// KeywordRule maps a path substring to the object label it suggests.
type KeywordRule struct {
	Keyword string
	Label   string
}

// Ruleset carries the configurable classification tables: area display
// names keyed by top-level path segment, and the ordered keyword table for
// object inference. The keyword order is the tie-break order, so appended
// entries never displace a built-in on equal score.
type Ruleset struct {
	Areas    map[string]string
	Keywords []KeywordRule
}

// DefaultRuleset returns the built-in classification tables.
func DefaultRuleset() Ruleset {
	return Ruleset{
		Areas: map[string]string{
			"mobile-app": "移动端",
			"backend":    "后端",
			"docs":       "文档",
		},
		Keywords: []KeywordRule{
			{"about", labelAboutPage},
			{"privacy", labelPrivacyPage},
			{"auth", "认证"},
			{"register", "注册"},
			{"signup", "注册"},
			{"login", "登录"},
			{"profile", "个人中心"},
			{"account", "账号"},
			{"search", "搜索"},
			{"player", "播放器"},
			{"history", "历史"},
			{"download", "下载"},
			{"cache", "缓存"},
			{"toast", "Toast"},
			{"supabase", "Supabase"},
			{"api", "接口"},
			{"route", "路由"},
			{"layout", "布局"},
		},
	}
}

// InferArea returns the display name for the plurality top-level path
// segment. Ties break to the segment seen first, and unknown segments (or
// an empty input) map to the generic fallback.
func (r Ruleset) InferArea(paths []string) string {
	counts := make(map[string]int)
	var order []string
	for _, p := range paths {
		top := p
		if idx := strings.Index(p, "/"); idx >= 0 {
			top = p[:idx]
		}
		if _, seen := counts[top]; !seen {
			order = append(order, top)
		}
		counts[top]++
	}
	if len(order) == 0 {
		return areaFallback
	}

	// First maximum wins, in first-encountered order.
	best := order[0]
	for _, top := range order[1:] {
		if counts[top] > counts[best] {
			best = top
		}
	}

	if name, ok := r.Areas[best]; ok {
		return name
	}
	return areaFallback
}

// InferObject guesses what the change set is about. The priority phase
// prefers a precise label for brand-new about/privacy pages over a generic
// folder-derived guess; otherwise every keyword is scored against every
// path, weighting newly added files higher since they signal new capability
// more strongly than modified ones.
func (r Ruleset) InferObject(changes ChangeSet) (string, bool) {
	for _, c := range changes {
		p := strings.ToLower(c.Path)
		if c.Status.IsAddition() && strings.Contains(p, "about") {
			return labelAboutPage, true
		}
		if c.Status.IsAddition() && strings.Contains(p, "privacy") {
			return labelPrivacyPage, true
		}
	}

	scores := make(map[string]int)
	var order []string
	for _, kw := range r.Keywords {
		for _, c := range changes {
			if !strings.Contains(strings.ToLower(c.Path), kw.Keyword) {
				continue
			}
			weight := 1
			if c.Status.IsAddition() {
				weight = 3
			}
			if _, seen := scores[kw.Label]; !seen {
				order = append(order, kw.Label)
			}
			scores[kw.Label] += weight
		}
	}
	if len(order) == 0 {
		return "", false
	}

	best := order[0]
	for _, label := range order[1:] {
		if scores[label] > scores[best] {
			best = label
		}
	}
	return best, true
}

// InferAction reduces the statuses to one verb. Additions dominate
// deletions, which dominate updates: a set that both adds and deletes is
// reported as an addition, since net-new capability is the more salient
// narrative.
func InferAction(statuses []FileStatus) string {
	if lo.SomeBy(statuses, FileStatus.IsAddition) {
		return ActionAdded
	}
	if lo.SomeBy(statuses, func(s FileStatus) bool { return s == StatusDeleted }) {
		return ActionRemoved
	}
	return ActionUpdated
}
