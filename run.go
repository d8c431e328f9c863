package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lex-fmt/testaudit/internal/audit"
	"github.com/lex-fmt/testaudit/internal/metrics"
	"github.com/lex-fmt/testaudit/internal/support"
)

func (a *app) runAudit(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments: %v", args)
	}
	rep, err := a.audit(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if len(rep.Failures) > 0 {
		return fmt.Errorf("audit incomplete: %d paths could not be audited", len(rep.Failures))
	}
	return nil
}

// audit runs one pass over the root, prints the report to out and writes
// the optional outputs.
func (a *app) audit(out io.Writer) (*audit.Report, error) {
	rules, err := a.config.RuleSet()
	if err != nil {
		return nil, err
	}
	auditor := audit.New(rules,
		audit.WithLayout(a.config.Layout()),
		audit.WithDryRun(a.opts.dryRun),
		audit.WithLogger(a.logger),
	)
	rep, err := auditor.Run(a.opts.root)
	if err != nil {
		return nil, fmt.Errorf("audit %s: %w", a.opts.root, err)
	}
	if err := rep.WriteText(out); err != nil {
		return nil, err
	}
	if err := a.writeOutputs(rep); err != nil {
		return nil, err
	}
	return rep, nil
}

func (a *app) writeOutputs(rep *audit.Report) error {
	if a.opts.jsonOut != "" {
		if err := support.WriteJSONAtomic(a.opts.jsonOut, rep); err != nil {
			return fmt.Errorf("write json report: %w", err)
		}
		a.logger.Debug("json report written", zap.String("path", a.opts.jsonOut))
	}
	if a.opts.metricsOut != "" {
		rec := metrics.NewRecorder()
		rec.Observe(rep)
		if err := rec.WriteTextfile(a.opts.metricsOut); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
		a.logger.Debug("metrics written", zap.String("path", a.opts.metricsOut))
	}
	if a.opts.auditLog != "" {
		if err := support.AppendAudit(a.opts.auditLog, auditEntry(rep)); err != nil {
			return fmt.Errorf("append audit log: %w", err)
		}
	}
	return nil
}

func auditEntry(rep *audit.Report) support.AuditEntry {
	cats := make(map[string]int, len(rep.CategoryCounts))
	for c, n := range rep.CategoryCounts {
		cats[string(c)] = n
	}
	result := "PASS"
	switch {
	case len(rep.Failures) > 0:
		result = "ERROR"
	case rep.FlaggedTests > 0:
		result = "FLAGGED"
	}
	return support.AuditEntry{
		RunID:          rep.RunID,
		Root:           rep.Root,
		DryRun:         rep.DryRun,
		Files:          len(rep.Files),
		Tests:          rep.TotalTests,
		Flagged:        rep.FlaggedTests,
		Categories:     cats,
		FilesModified:  len(rep.Modified),
		Failures:       len(rep.Failures),
		DurationMillis: rep.Duration.Milliseconds(),
		Result:         result,
	}
}
