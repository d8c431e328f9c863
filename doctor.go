package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lex-fmt/testaudit/internal/audit"
	cfgpkg "github.com/lex-fmt/testaudit/internal/config"
	"github.com/lex-fmt/testaudit/internal/support"
)

type doctorReport struct {
	GeneratedAtUtc  string         `json:"generatedAtUtc"`
	RepoRoot        string         `json:"repoRoot"`
	ConfigPath      string         `json:"configPath,omitempty"`
	ConfigValid     bool           `json:"configValid"`
	TestsDirFound   bool           `json:"testsDirFound"`
	SourcesDirFound bool           `json:"sourcesDirFound"`
	RuleCounts      map[string]int `json:"ruleCounts,omitempty"`
	CandidateFiles  int            `json:"candidateFiles"`
	Status          string         `json:"status"`
	Reasons         []string       `json:"reasons,omitempty"`
}

func (a *app) doctorCmd() *cobra.Command {
	var jsonOut string
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the repository layout, config and rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rep := buildDoctorReport(a.opts.root, a.opts.configPath)
			if jsonOut != "" {
				if err := support.WriteJSONAtomic(jsonOut, rep); err != nil {
					return fmt.Errorf("write doctor report: %w", err)
				}
			}
			if err := printDoctorReport(cmd.OutOrStdout(), rep); err != nil {
				return err
			}
			if rep.Status != "OK" {
				return fmt.Errorf("doctor: %s", strings.Join(rep.Reasons, "; "))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&jsonOut, "json", "", "also write the doctor report as JSON to this file")
	return cmd
}

func buildDoctorReport(root, configFlag string) doctorReport {
	rep := doctorReport{
		GeneratedAtUtc: time.Now().UTC().Format(time.RFC3339),
		Status:         "OK",
	}
	degrade := func(reason string) {
		rep.Status = "DEGRADED"
		rep.Reasons = append(rep.Reasons, reason)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		degrade(fmt.Sprintf("cannot resolve root: %v", err))
		return rep
	}
	rep.RepoRoot = abs
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		degrade("root is not a directory")
		return rep
	}

	cfg, cfgPath, err := cfgpkg.Resolve(cfgpkg.Flags{ConfigPath: configFlag, Root: abs})
	rep.ConfigPath = cfgPath
	if err != nil {
		degrade(fmt.Sprintf("config invalid: %v", err))
		return rep
	}
	rep.ConfigValid = true

	layout := cfg.Layout()
	rep.TestsDirFound = layout.TestsDir != "" && dirExists(filepath.Join(abs, layout.TestsDir))
	rep.SourcesDirFound = layout.SourcesDir != "" && dirExists(filepath.Join(abs, layout.SourcesDir))
	if !rep.TestsDirFound && !rep.SourcesDirFound {
		degrade(fmt.Sprintf("neither %s/ nor %s/ exists under root", layout.TestsDir, layout.SourcesDir))
	}

	// Validate already compiled the rules; this only counts them.
	rules, err := cfg.RuleSet()
	if err != nil {
		degrade(fmt.Sprintf("rules invalid: %v", err))
		return rep
	}
	rep.RuleCounts = map[string]int{}
	for _, c := range audit.Categories {
		rep.RuleCounts[string(c)] = len(rules.Rules(c))
	}

	files, skipped, err := audit.Discover(abs, layout)
	if err != nil {
		degrade(fmt.Sprintf("discovery failed: %v", err))
		return rep
	}
	for _, fe := range skipped {
		degrade(fmt.Sprintf("cannot walk %s: %v", fe.Path, fe.Err))
	}
	rep.CandidateFiles = len(files)
	if len(files) == 0 {
		degrade("no candidate test files found")
	}
	return rep
}

func printDoctorReport(w io.Writer, rep doctorReport) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Root:            %s\n", rep.RepoRoot)
	config := rep.ConfigPath
	if config == "" {
		config = "(built-in defaults)"
	}
	fmt.Fprintf(&b, "Config:          %s (valid: %t)\n", config, rep.ConfigValid)
	fmt.Fprintf(&b, "Tests dir:       %t\n", rep.TestsDirFound)
	fmt.Fprintf(&b, "Sources dir:     %t\n", rep.SourcesDirFound)
	for _, c := range audit.Categories {
		if n, ok := rep.RuleCounts[string(c)]; ok {
			fmt.Fprintf(&b, "Rules %-20s %d\n", string(c)+":", n)
		}
	}
	fmt.Fprintf(&b, "Candidate files: %d\n", rep.CandidateFiles)
	fmt.Fprintf(&b, "Status:          %s\n", rep.Status)
	for _, r := range rep.Reasons {
		fmt.Fprintf(&b, "  - %s\n", r)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
