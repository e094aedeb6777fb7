package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/0x6d61/sqltarget/internal/engine"
	"github.com/0x6d61/sqltarget/internal/report"
	"github.com/0x6d61/sqltarget/internal/target"
)

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the injection points of one or many targets",
		Long: `Resolve parses the request options of each target into testable
parameters, asks about custom injection marks and structured bodies,
prepares the target's output directory and session file, and resumes
previously stored knowledge. The result is printed as a report.`,
		Args: cobra.NoArgs,
		RunE: runResolve,
	}
}

// runResolve wires options → target environment → reporter for every
// target.
func runResolve(cmd *cobra.Command, args []string) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}

	urls, err := opts.targets()
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		return fmt.Errorf("target URL is required (use --url, --bulk-file or --direct)")
	}

	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	base, err := opts.runConfig()
	if err != nil {
		return err
	}
	base.MultipleTargets = opts.BulkFile != ""

	provider, err := opts.provider(cmd.InOrStdin(), cmd.ErrOrStderr(), logger)
	if err != nil {
		return err
	}

	reporter, err := report.New(opts.Format)
	if err != nil {
		return fmt.Errorf("unknown report format %q: %w", opts.Format, err)
	}
	if tr, ok := reporter.(*report.TextReporter); ok {
		tr.Verbose = opts.Verbose
	}

	out := cmd.OutOrStdout()
	if opts.Output != "" {
		f, err := os.Create(opts.Output)
		if err != nil {
			return fmt.Errorf("failed to create output file %q: %w", opts.Output, err)
		}
		defer f.Close()
		out = f
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	env := target.NewEnv(opts.OutputDir, base, provider, logger)
	defer func() {
		if err := env.Close(); err != nil {
			logger.Warn("closing target environment", "error", err)
		}
	}()

	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := resolveTarget(ctx, env, base, u, reporter, out, logger); err != nil {
			return err
		}
	}

	if path := env.ResultsPath(); path != "" {
		logger.Info("you can find results of scanning in multiple targets mode inside the CSV file", "path", path)
	}
	return nil
}

// resolveTarget prepares one target and reports it. In multi-target mode a
// target without testable parameters is reported and skipped; any other
// failure stops the run.
func resolveTarget(ctx context.Context, env *target.Env, base *engine.RunConfig, url string,
	reporter report.Reporter, out io.Writer, logger *slog.Logger) error {
	cfg := base.Clone()
	cfg.URL = url
	kb := engine.NewKnowledgeBase(cfg)

	env.InitTargetEnv(cfg, kb)
	setupErr := env.SetupTargetEnv(ctx, cfg, kb)

	var generic *engine.GenericError
	switch {
	case setupErr == nil:
		for _, inj := range kb.Injections {
			if err := env.AppendResult(cfg, inj); err != nil {
				return err
			}
		}
	case base.MultipleTargets && errors.As(setupErr, &generic):
		logger.Error("skipping target", "url", url, "error", setupErr)
	default:
		return setupErr
	}

	if err := reporter.Generate(ctx, report.NewResult(cfg, kb, setupErr), out); err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}
	return nil
}
