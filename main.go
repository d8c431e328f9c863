// testaudit - tag test functions that build fixtures by hand
//
// Commands:
//   testaudit [run]   Scan tests/ and src/, insert "// @audit: ..." markers, print the report
//   watch             Re-run the audit whenever a test file changes
//   rules             Print the effective rule table
//   doctor            Check layout, config and rules
//   version           Show version information

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cfgpkg "github.com/lex-fmt/testaudit/internal/config"
	"github.com/lex-fmt/testaudit/internal/logging"
)

// Version information (set at build time)
var (
	Version   = "0.3.0"
	BuildDate = "unknown"
)

type options struct {
	root       string
	configPath string
	verbose    bool

	dryRun     bool
	jsonOut    string
	metricsOut string
	auditLog   string
}

// app carries the state shared by all commands of one invocation.
type app struct {
	opts    options
	config  cfgpkg.Config
	cfgPath string
	logger  *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "testaudit",
		Short: "Tag test functions that build fixtures by hand",
		Long: `testaudit scans a Rust crate for #[test] functions and flags three
anti-patterns by textual matching:

  no_source            AST nodes or tokens created without source locations
  manual_construction  tokens built directly instead of through factories
  hardcoded_source     ad hoc multi-line source strings inlined in the test

Flagged tests get a "// @audit: ..." comment above their attribute. Running
the tool again never adds a second marker.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
		RunE: a.runAudit,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.opts.root, "root", ".", "repository root to audit")
	pf.StringVar(&a.opts.configPath, "config", "", "config file (default <root>/"+cfgpkg.FileName+" when present)")
	pf.BoolVarP(&a.opts.verbose, "verbose", "v", false, "debug logging")
	a.addRunFlags(root)

	run := &cobra.Command{
		Use:   "run",
		Short: "Audit test files and insert markers (default command)",
		Args:  cobra.NoArgs,
		RunE:  a.runAudit,
	}
	a.addRunFlags(run)

	root.AddCommand(run, a.watchCmd(), a.rulesCmd(), a.doctorCmd(), versionCmd())
	return root
}

func (a *app) addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.BoolVar(&a.opts.dryRun, "dry-run", false, "report without modifying any file")
	f.StringVar(&a.opts.jsonOut, "json", "", "also write the report as JSON to this file")
	f.StringVar(&a.opts.metricsOut, "metrics", "", "write Prometheus text metrics to this file")
	f.StringVar(&a.opts.auditLog, "audit-log", "", "append a JSON line describing the run to this file")
}

// setup resolves the root, loads config and builds the logger.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" || cmd.Name() == "doctor" {
		return nil
	}
	abs, err := filepath.Abs(a.opts.root)
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}
	a.opts.root = abs

	cfg, cfgPath, err := cfgpkg.Resolve(cfgpkg.Flags{ConfigPath: a.opts.configPath, Root: abs})
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	a.config = cfg
	a.cfgPath = cfgPath

	logger, err := logging.New(logging.Options{
		Level:   cfg.Logging.Level,
		JSON:    cfg.Logging.JSON,
		Verbose: a.opts.verbose,
	})
	if err != nil {
		return err
	}
	a.logger = logger
	if cfgPath != "" {
		a.logger.Debug("config loaded", zap.String("path", cfgPath))
	}
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "testaudit v%s (built %s)\n", Version, BuildDate)
		},
	}
}
