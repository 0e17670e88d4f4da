package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/randalmurphal/commitflow"
	"github.com/randalmurphal/commitflow/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

var version = "development"

// Exit codes shared by suggest and commit.
const (
	exitInvalidArgs = 2
	exitNoChanges   = 3
)

func main() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	cmd := &cli.Command{
		Name:    "commitflow",
		Version: version,
		Usage:   "Commit message suggestion and worktree flow for git",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "debug output",
				Sources: cli.EnvVars("COMMITFLOW_VERBOSE"),
			},
			&cli.BoolFlag{
				Name:    "very-verbose",
				Aliases: []string{"vv"},
				Usage:   "trace output",
				Sources: cli.EnvVars("COMMITFLOW_VERY_VERBOSE"),
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			return initCli(ctx, cmd)
		},
		Commands: []*cli.Command{
			{
				Name:  "suggest",
				Usage: "Suggest a commit message from the pending changes",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "cached",
						Usage: "summarize staged changes (default)",
					},
					&cli.BoolFlag{
						Name:  "worktree",
						Usage: "summarize unstaged worktree changes",
					},
					&cli.StringFlag{
						Name:  "hint",
						Usage: "override/assist the summary (e.g. '完成注册功能')",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "output JSON {subject, body}",
					},
				},
				Action: suggestCommand,
			},
			{
				Name:  "commit",
				Usage: "Stage (optional), suggest a message, and run git commit",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "stage",
						Usage: "staging strategy: auto, all, none",
						Value: "auto",
					},
					&cli.StringFlag{
						Name:  "hint",
						Usage: "summary hint (e.g. '完成注册功能')",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "only print the suggested message",
					},
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "run git commit without extra confirmation",
					},
				},
				Action: commitCommand,
			},
			{
				Name:  "worktree",
				Usage: "Manage short-lived parallel worktrees",
				Commands: []*cli.Command{
					{
						Name:  "create",
						Usage: "Create a worktree on a fresh branch and record the flow state",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "slug",
								Usage: "short slug for the branch name, e.g. 'fix-player'",
							},
							&cli.StringFlag{
								Name:  "base",
								Usage: "base branch/ref, e.g. 'main' or 'origin/main'",
							},
							&cli.StringFlag{
								Name:  "branch",
								Usage: "branch name to create/use, e.g. 'wt/20260829-1030-fix-player'",
							},
							&cli.StringFlag{
								Name:  "path",
								Usage: "worktree path (relative to repo root or absolute)",
							},
						},
						Action: worktreeCreateCommand,
					},
					{
						Name:  "finish",
						Usage: "Merge back and/or clean up the recorded worktree flow",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "state",
								Usage: "path to state.json (optional)",
							},
							&cli.BoolFlag{
								Name:  "yes",
								Usage: "actually perform actions; without this, only prints the plan",
							},
							&cli.BoolFlag{
								Name:  "merge",
								Usage: "merge the flow branch into its base in the primary tree",
							},
							&cli.BoolFlag{
								Name:  "cleanup",
								Usage: "remove the worktree and safe-delete the branch",
							},
							&cli.StringFlag{
								Name:  "strategy",
								Usage: "merge strategy: merge, squash",
								Value: commitflow.StrategyMerge,
							},
							&cli.StringFlag{
								Name:  "squash-message",
								Usage: "commit message for a squash merge",
							},
						},
						Action: worktreeFinishCommand,
					},
					{
						Name:   "status",
						Usage:  "Show the recorded flow state and active worktrees",
						Action: worktreeStatusCommand,
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("command terminated with error")
	}
}

func initCli(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	godotenv.Load()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Logger.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	})

	switch {
	case cmd.Bool("very-verbose"):
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case cmd.Bool("verbose"):
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}

	return ctx, nil
}

// openRepo resolves the repository for the current directory, exiting with
// the no-changes/repository-failure code when there is none.
func openRepo() (*commitflow.GitContext, error) {
	gitCtx, err := commitflow.NewGitContext(".")
	if err != nil {
		return nil, cli.Exit("not a git repository", exitNoChanges)
	}
	return gitCtx, nil
}

func suggestCommand(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("cached") && cmd.Bool("worktree") {
		return cli.Exit("choose one of --cached or --worktree", exitInvalidArgs)
	}

	mode := commitflow.ModeStaged
	if cmd.Bool("worktree") {
		mode = commitflow.ModeWorktree
	}

	gitCtx, err := openRepo()
	if err != nil {
		return err
	}

	cfg, err := config.Load(gitCtx.RepoRoot())
	if err != nil {
		return cli.Exit(fmt.Sprintf("config error: %v", err), 1)
	}
	rules := cfg.Ruleset()

	log.Debug().Str("mode", string(mode)).Msg("classifying pending changes")

	msg, err := commitflow.Suggest(gitCtx, commitflow.Options{
		Mode:         mode,
		Hint:         cmd.String("hint"),
		SubjectLimit: cfg.SubjectLimit,
		FileCap:      cfg.FileCap,
		Rules:        &rules,
	})
	if err != nil {
		return cli.Exit(err.Error(), exitNoChanges)
	}

	if cmd.Bool("json") {
		return printMessageJSON(msg)
	}
	printMessage(msg)
	return nil
}

func printMessage(msg commitflow.CommitMessage) {
	fmt.Printf("subject: %s\n", msg.Subject)
	if msg.Body != "" {
		fmt.Println("body:")
		fmt.Println(msg.Body)
	}
}

func printMessageJSON(msg commitflow.CommitMessage) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	return enc.Encode(msg)
}

func commitCommand(ctx context.Context, cmd *cli.Command) error {
	stage := cmd.String("stage")
	switch stage {
	case "auto", "all", "none":
	default:
		return cli.Exit(fmt.Sprintf("invalid --stage value: %s", stage), exitInvalidArgs)
	}

	gitCtx, err := openRepo()
	if err != nil {
		return err
	}

	staged, err := gitCtx.HasStaged()
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if !staged {
		if stage == "none" {
			return cli.Exit("no staged changes; pass --stage all/auto or stage manually", 3)
		}
		log.Debug().Msg("staging all changes")
		if err := gitCtx.StageAll(); err != nil {
			return cli.Exit(err.Error(), 1)
		}
	}

	staged, err = gitCtx.HasStaged()
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if !staged {
		return cli.Exit("nothing to commit", 4)
	}

	cfg, err := config.Load(gitCtx.RepoRoot())
	if err != nil {
		return cli.Exit(fmt.Sprintf("config error: %v", err), 1)
	}
	rules := cfg.Ruleset()

	msg, err := commitflow.Suggest(gitCtx, commitflow.Options{
		Mode:         commitflow.ModeStaged,
		Hint:         cmd.String("hint"),
		SubjectLimit: cfg.SubjectLimit,
		FileCap:      cfg.FileCap,
		Rules:        &rules,
	})
	if err != nil {
		return cli.Exit(err.Error(), exitNoChanges)
	}

	printMessage(msg)

	if cmd.Bool("dry-run") {
		return nil
	}
	if !cmd.Bool("yes") {
		return cli.Exit("\npass --yes to execute git commit", 5)
	}

	if err := gitCtx.Commit(msg.Subject, msg.Body); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	log.Debug().Str("subject", msg.Subject).Msg("commit created")
	return nil
}

func worktreeCreateCommand(ctx context.Context, cmd *cli.Command) error {
	gitCtx, err := openRepo()
	if err != nil {
		return err
	}

	cfg, err := config.Load(gitCtx.RepoRoot())
	if err != nil {
		return cli.Exit(fmt.Sprintf("config error: %v", err), 1)
	}

	state, err := commitflow.CreateFlow(gitCtx, commitflow.CreateOptions{
		Slug:        cmd.String("slug"),
		Base:        cmd.String("base"),
		Branch:      cmd.String("branch"),
		Path:        cmd.String("path"),
		WorktreeDir: cfg.WorktreeDir,
	})
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	return printJSONIndented(state)
}

func worktreeFinishCommand(ctx context.Context, cmd *cli.Command) error {
	strategy := cmd.String("strategy")
	if strategy != commitflow.StrategyMerge && strategy != commitflow.StrategySquash {
		return cli.Exit(fmt.Sprintf("invalid --strategy value: %s", strategy), exitInvalidArgs)
	}
	if cmd.Bool("merge") && strategy == commitflow.StrategySquash && cmd.String("squash-message") == "" {
		return cli.Exit("--strategy squash requires --squash-message to avoid opening an editor", exitInvalidArgs)
	}

	gitCtx, err := openRepo()
	if err != nil {
		return err
	}

	statePath := cmd.String("state")
	if statePath == "" {
		statePath = commitflow.DefaultStatePath(gitCtx.CommonDir())
	}
	state, err := commitflow.LoadState(statePath)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	// Finishing is often invoked from inside the flow worktree, where the
	// cwd toplevel is the worktree itself; checkout, merge, and cleanup
	// must run in the recorded primary tree.
	primaryCtx := gitCtx.InWorktree(state.RepoRoot)

	opts := commitflow.FinishOptions{
		Merge:         cmd.Bool("merge"),
		Cleanup:       cmd.Bool("cleanup"),
		Strategy:      strategy,
		SquashMessage: cmd.String("squash-message"),
		StatePath:     statePath,
	}

	if !cmd.Bool("yes") {
		plan := commitflow.PlanFinish(state, opts)
		return printJSONIndented(struct {
			commitflow.FinishPlan
			Note string `json:"note"`
		}{plan, "Add --yes to execute. This tool does not prompt interactively."})
	}

	if err := commitflow.Finish(primaryCtx, state, opts); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	return printJSONIndented(map[string]any{
		"done":          true,
		"repo_root":     state.RepoRoot,
		"base":          state.Base,
		"branch":        state.Branch,
		"worktree_path": state.WorktreePath,
	})
}

func worktreeStatusCommand(ctx context.Context, cmd *cli.Command) error {
	gitCtx, err := openRepo()
	if err != nil {
		return err
	}

	statePath := commitflow.DefaultStatePath(gitCtx.CommonDir())
	state, err := commitflow.LoadState(statePath)
	switch err {
	case nil:
		fmt.Printf("flow %s: branch %s on %s, created %s\n",
			state.ID, state.Branch, state.Base, humanize.Time(state.CreatedAt))
		fmt.Printf("worktree: %s\n", state.WorktreePath)
	case commitflow.ErrStateNotFound:
		fmt.Println("no active worktree flow")
	default:
		return cli.Exit(err.Error(), 1)
	}

	worktrees, err := gitCtx.ListWorktrees()
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("Worktrees")
	t.AppendHeader(table.Row{"Path", "Branch", "HEAD"})
	for _, wt := range worktrees {
		commit := wt.Commit
		if len(commit) > 12 {
			commit = commit[:12]
		}
		t.AppendRow(table.Row{wt.Path, wt.Branch, commit})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()

	return nil
}

func printJSONIndented(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
