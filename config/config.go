package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/randalmurphal/commitflow"
	"gopkg.in/yaml.v3"
)

// File locations.
const (
	// LocalConfigName is the per-repository config file at the git root.
	LocalConfigName = ".commitflow.yaml"

	// globalConfigDir is the directory under ~/.config for the global file.
	globalConfigDir = "commitflow"

	// globalConfigFile is the global config filename.
	globalConfigFile = "config.yaml"
)

// Keyword is one user-supplied keyword/label pair for object inference.
type Keyword struct {
	Keyword string `yaml:"keyword"`
	Label   string `yaml:"label"`
}

// Config holds the tunable classification and rendering settings.
type Config struct {
	// SubjectLimit caps the subject line in code points.
	SubjectLimit int `yaml:"subject_limit"`

	// FileCap caps the body file listing.
	FileCap int `yaml:"file_cap"`

	// WorktreeDir is where flow worktrees are created, relative to the
	// repository root.
	WorktreeDir string `yaml:"worktree_dir"`

	// Areas adds or overrides display names per top-level path segment.
	Areas map[string]string `yaml:"areas"`

	// Keywords appends keyword rules after the built-in table.
	Keywords []Keyword `yaml:"keywords"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		SubjectLimit: commitflow.DefaultSubjectLimit,
		FileCap:      commitflow.DefaultFileCap,
		WorktreeDir:  ".worktrees",
	}
}

// Load resolves the effective configuration for a repository: defaults,
// overlaid by the global file, overlaid by the repository-local file.
// Missing files are skipped; a malformed file is an error.
func Load(repoRoot string) (Config, error) {
	cfg := Default()

	if home, err := os.UserHomeDir(); err == nil {
		globalPath := filepath.Join(home, ".config", globalConfigDir, globalConfigFile)
		if err := cfg.overlayFile(globalPath); err != nil {
			return Config{}, err
		}
	}

	if repoRoot != "" {
		if err := cfg.overlayFile(filepath.Join(repoRoot, LocalConfigName)); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

// overlayFile merges the settings from path into c. A missing file is not
// an error.
func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var layer Config
	if err := yaml.Unmarshal(data, &layer); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if layer.SubjectLimit > 0 {
		c.SubjectLimit = layer.SubjectLimit
	}
	if layer.FileCap > 0 {
		c.FileCap = layer.FileCap
	}
	if layer.WorktreeDir != "" {
		c.WorktreeDir = layer.WorktreeDir
	}
	if len(layer.Areas) > 0 {
		if c.Areas == nil {
			c.Areas = make(map[string]string, len(layer.Areas))
		}
		for segment, name := range layer.Areas {
			c.Areas[segment] = name
		}
	}
	c.Keywords = append(c.Keywords, layer.Keywords...)

	return nil
}

// Ruleset builds the classification tables: the built-in ruleset with the
// configured areas merged in and the configured keywords appended.
func (c Config) Ruleset() commitflow.Ruleset {
	rules := commitflow.DefaultRuleset()
	for segment, name := range c.Areas {
		rules.Areas[segment] = name
	}
	for _, kw := range c.Keywords {
		rules.Keywords = append(rules.Keywords, commitflow.KeywordRule{
			Keyword: kw.Keyword,
			Label:   kw.Label,
		})
	}
	return rules
}
