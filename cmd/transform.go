package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
	"mvdan.cc/gofumpt/format"

	"github.com/verso-build/verso/api"
	"github.com/verso-build/verso/internal/apply"
	"github.com/verso-build/verso/internal/cache"
	"github.com/verso-build/verso/internal/lockfile"
	"github.com/verso-build/verso/internal/output"
	"github.com/verso-build/verso/internal/rules"
	"github.com/verso-build/verso/internal/ruleset"
)

var (
	moduleName  string
	tokenFlag   string
	workers     int
	incremental bool
	formatGo    bool
	reportPath  string
	keepGoing   bool
)

var transformCmd = &cobra.Command{
	Use:   "transform [source] [destination]",
	Short: "Rewrite a source tree into its version-namespaced copy",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		source := args[0]
		dest := args[1]

		cfg, set, err := buildSet(moduleName)
		if err != nil {
			return err
		}

		start := time.Now()
		report, err := runPass(cmd.Context(), cfg, set, moduleName, source, dest)
		if err != nil {
			return err
		}

		output.Info("pass complete",
			"files", report.Files,
			"transformed", report.Transformed,
			"copied", report.Copied,
			"skipped", report.Skipped,
			"errors", len(report.Errors),
			"elapsed", time.Since(start).Round(time.Millisecond))

		if reportPath != "" {
			data, err := report.JSON()
			if err != nil {
				return fmt.Errorf("encode report: %w", err)
			}
			if err := os.WriteFile(reportPath, data, 0o644); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
		}

		if !report.OK() {
			for _, fe := range report.Errors {
				output.Error("file failed", "file", fe.Path, "kind", fe.Kind, "message", fe.Message)
			}
			if !keepGoing {
				return fmt.Errorf("%d file(s) failed", len(report.Errors))
			}
		}
		return nil
	},
}

func init() {
	transformCmd.Flags().StringVarP(&moduleName, "module", "m", "", "Module name for per-module overrides")
	transformCmd.Flags().StringVar(&tokenFlag, "version", "", "Override the configured version token")
	transformCmd.Flags().IntVarP(&workers, "workers", "w", 0, "Per-file parallelism (0 = GOMAXPROCS)")
	transformCmd.Flags().BoolVar(&incremental, "incremental", false, "Skip files already up to date in the destination")
	transformCmd.Flags().BoolVar(&formatGo, "format", false, "Run gofumpt over rewritten .go files")
	transformCmd.Flags().StringVar(&reportPath, "report", "", "Write the pass report as JSON to this path")
	transformCmd.Flags().BoolVar(&keepGoing, "continue-on-error", false, "Exit zero even when some files failed")
	rootCmd.AddCommand(transformCmd)
}

// buildSet loads the config and composes the rule set for module. A module
// with no override block gets the base set and a warning, not a failure.
func buildSet(module string) (*api.Config, *rules.RuleSet, error) {
	cfg, err := api.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if tokenFlag != "" {
		cfg.VersionToken = tokenFlag
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}

	set, err := ruleset.Build(cfg, module)
	if err != nil {
		if !errors.Is(err, rules.ErrUnknownModule) {
			return nil, nil, err
		}
		output.Warn("no override block for module, using base rules", "module", module)
	}
	return cfg, set, nil
}

// runPass executes one full tree pass source -> dest, holding the
// destination lock for its duration.
func runPass(ctx context.Context, cfg *api.Config, set *rules.RuleSet, module, source, dest string) (*apply.Report, error) {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, fmt.Errorf("create destination: %w", err)
	}
	lock, err := lockfile.Acquire(dest)
	if err != nil {
		return nil, err
	}
	defer func() { _ = lock.Release() }()

	applier := &apply.Applier{
		Src:     osfs.New(source),
		Dst:     osfs.New(dest),
		Set:     set,
		Workers: workers,
	}
	if formatGo {
		applier.Formatter = gofumptFormatter
	}
	if incremental {
		c, err := cache.Open(filepath.Clean(dest) + ".cache.db")
		if err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}
		defer func() { _ = c.Close() }()
		applier.Cache = c
		applier.Fingerprint = ruleset.Fingerprint(cfg, module)
	}

	return applier.Run(ctx)
}

// gofumptFormatter formats rewritten Go sources; anything gofumpt rejects
// passes through unchanged.
func gofumptFormatter(content []byte, path string) []byte {
	if filepath.Ext(path) != ".go" {
		return content
	}
	formatted, err := format.Source(content, format.Options{})
	if err != nil {
		return content
	}
	return formatted
}
