package core

import (
	"context"
	"fmt"
	"log/slog"

	"fireq/internal/buildctx"
	"fireq/internal/config"
	"fireq/internal/status"
)

// Default lanes and log files of the two root branches
const (
	BuildLane = "deploy/build"
	WebLane   = "deploy/web"
	WebLog    = "web.log"
)

// Reporter receives the pending and terminal record of every lane
type Reporter interface {
	Pending(ctx context.Context, bc buildctx.Context, lane status.Lane)
	Terminal(ctx context.Context, bc buildctx.Context, lane status.Lane, code int)
}

// Summarizer is told once the whole tree of a build has finished
type Summarizer interface {
	Summarize(bc buildctx.Context, code int) error
}

// Runner walks the task tree of a build: publish and checks at the root,
// install and check targets under checks, end-to-end shards under e2e
type Runner struct {
	Executor Executor
	Reporter Reporter
	Commands Commands
	Summary  Summarizer
	Logger   *slog.Logger

	// Shards is how many groups end-to-end specs are split into
	Shards int
	Policy Policy
}

// NewRunner builds a Runner from the configuration. It fails when the
// configured command overrides name unknown commands
func NewRunner(cfg *config.Config, exec Executor, reporter Reporter, logger *slog.Logger) (*Runner, error) {
	cmds, err := LoadCommands(cfg.Commands)
	if err != nil {
		return nil, err
	}
	policy := RunAll
	if cfg.FailFast {
		policy = CancelOnFailure
	}
	return &Runner{
		Executor: exec,
		Reporter: reporter,
		Commands: cmds,
		Logger:   logger,
		Shards:   cfg.E2ECount,
		Policy:   policy,
	}, nil
}

// Build runs publish and checks concurrently and returns the aggregate
// exit code
func (r *Runner) Build(ctx context.Context, bc buildctx.Context) int {
	logger := r.Logger.With("build_id", bc.ID, "name_uniq", bc.NameUniq)
	logger.Info("build started", "sha", bc.SHA, "log_url", bc.LogURL)

	g := NewTaskGroup(ctx, r.Policy)
	g.Go("publish", func(ctx context.Context) int { return r.publish(ctx, bc) })
	g.Go("checks", func(ctx context.Context) int { return r.checks(ctx, bc) })
	results := g.Wait()
	code := results.Code()

	if code == 0 {
		logger.Info("build finished", "code", code)
	} else {
		logger.Warn("build failed", "code", code, "failed", results.Failed())
	}

	if r.Summary != nil {
		if err := r.Summary.Summarize(bc, code); err != nil {
			logger.Warn("writing build summary failed", "error", err)
		}
	}
	return code
}

func (r *Runner) publish(ctx context.Context, bc buildctx.Context) int {
	lane := status.Lane{Name: WebLane, LogFile: WebLog}
	r.Reporter.Pending(ctx, bc, lane)

	code := r.sh(ctx, bc, CmdPublish, bc.Vars(), WebLog)
	if code == 0 {
		lane.TargetURL = "http://" + bc.Host
	}
	r.Reporter.Terminal(ctx, bc, lane, code)
	return code
}

func (r *Runner) checks(ctx context.Context, bc buildctx.Context) int {
	r.Reporter.Pending(ctx, bc, status.Lane{Name: BuildLane})

	if bc.Install {
		installed := bc.WithEnv(bc.Checks.Env)
		if code := r.sh(ctx, installed, CmdInstall, installed.Vars(), ""); code != 0 {
			r.cleanup(ctx, bc, code)
			return code
		}
	}

	code := r.runTargets(ctx, bc, PlainTargets(bc.Targets()))
	r.cleanup(ctx, bc, code)
	return code
}

// cleanup closes the build lane and removes the clones of the build. It
// runs even when the group context is already cancelled
func (r *Runner) cleanup(ctx context.Context, bc buildctx.Context, code int) {
	ctx = context.WithoutCancel(ctx)
	r.Reporter.Terminal(ctx, bc, status.Lane{Name: BuildLane}, code)
	if c := r.sh(ctx, bc, CmdCleanup, bc.Vars(), ""); c != 0 {
		r.Logger.Warn("cleanup failed", "name_uniq", bc.NameUniq, "code", c)
	}
}

func (r *Runner) runTargets(ctx context.Context, bc buildctx.Context, targets []Target) int {
	g := NewTaskGroup(ctx, r.Policy)
	for _, t := range targets {
		g.Go(t.Name, func(ctx context.Context) int { return r.runTarget(ctx, bc, t) })
	}
	return g.Wait().Code()
}

func (r *Runner) runTarget(ctx context.Context, bc buildctx.Context, t Target) int {
	lane := status.Lane{Name: t.Lane(), LogFile: t.LogFile()}
	r.Reporter.Pending(ctx, bc, lane)

	var code int
	if t.Name == E2ETarget {
		code = r.checkE2E(ctx, bc.WithLogFile(t.LogFile()))
	} else {
		tc := bc.WithTarget(t.Name, t.Parent).WithEnv(t.Env)
		code = r.sh(ctx, tc, CmdTarget, tc.Vars(), t.LogFile())
	}

	r.Reporter.Terminal(ctx, bc, lane, code)
	r.Logger.Info("target finished", "name_uniq", bc.NameUniq, "target", t.Name, "code", code)
	return code
}

// checkE2E clones a discovery environment, asks it for the spec list and
// runs the specs as shards
func (r *Runner) checkE2E(ctx context.Context, bc buildctx.Context) int {
	bc = bc.WithE2EName(bc.NameUniq + "-" + E2ETarget)
	if code := r.sh(ctx, bc, CmdE2EClone, bc.Vars(), ""); code != 0 {
		return code
	}

	specs, code := r.discover(ctx, bc)
	if code != 0 {
		return code
	}
	if len(specs) == 0 {
		r.Logger.Warn("no end-to-end specs found", "name_uniq", bc.NameUniq)
		return 0
	}

	shards := ShardTargets(specs, r.Shards)
	r.Logger.Info("running end-to-end shards",
		"name_uniq", bc.NameUniq,
		"specs", len(specs),
		"shards", len(shards),
	)
	return r.runTargets(ctx, bc, shards)
}

func (r *Runner) discover(ctx context.Context, bc buildctx.Context) ([]string, int) {
	vars := bc.Vars()
	vars["marker"] = SpecMarker
	command, err := r.Commands.Render(CmdE2ESpecs, vars)
	if err != nil {
		r.Logger.Error("rendering command failed", "command", CmdE2ESpecs, "error", err)
		return nil, 1
	}

	out, code, err := r.Executor.Output(ctx, command)
	if err != nil {
		r.Logger.Error("spec discovery failed", "name_uniq", bc.NameUniq, "error", err)
		return nil, 1
	}
	if code != 0 {
		r.Logger.Error("spec discovery failed", "name_uniq", bc.NameUniq, "code", code)
		return nil, code
	}
	return ParseSpecs(out), 0
}

// sh renders the named command and runs it, logging to logfile (or the
// context's default log). Rendering and start failures count as exit 1
func (r *Runner) sh(ctx context.Context, bc buildctx.Context, name string, vars map[string]string, logfile string) int {
	command, err := r.Commands.Render(name, vars)
	if err != nil {
		r.Logger.Error("rendering command failed", "command", name, "error", err)
		return 1
	}
	r.Logger.Debug("running command", "command", name, "name_uniq", bc.NameUniq, "log_file", logfile)

	code, err := r.Executor.Run(ctx, bc, command, logfile)
	if err != nil {
		r.Logger.Error("command failed to start", "command", name, "error", fmt.Errorf("%s: %w", bc.NameUniq, err))
		return 1
	}
	return code
}
