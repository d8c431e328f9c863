// Package audit finds test functions that build fixtures by hand and tags
// them with "// @audit: ..." marker comments.
//
// The pipeline is textual: test functions are located by attribute and brace
// counting, classified by regular expressions, and annotated by inserting a
// single comment line. Nothing else in a file is rewritten.
package audit

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lex-fmt/testaudit/internal/support"
)

// Auditor runs the locate, detect, annotate pipeline over a directory tree.
type Auditor struct {
	rules  *RuleSet
	layout Layout
	dryRun bool
	logger *zap.Logger
}

// Option configures an Auditor.
type Option func(*Auditor)

// WithLayout sets where candidate files are looked for.
func WithLayout(l Layout) Option {
	return func(a *Auditor) { a.layout = l }
}

// WithDryRun reports the edits a run would make without writing any file.
func WithDryRun(dryRun bool) Option {
	return func(a *Auditor) { a.dryRun = dryRun }
}

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(a *Auditor) {
		if l != nil {
			a.logger = l
		}
	}
}

// New returns an Auditor for rules.
func New(rules *RuleSet, opts ...Option) *Auditor {
	a := &Auditor{
		rules:  rules,
		layout: DefaultLayout(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run audits every candidate file under root. Files are handled one at a
// time; a path that cannot be walked and a file that cannot be read, edited
// or written are recorded in the report and the run moves on. The error is non-nil only when candidate
// discovery fails.
func (a *Auditor) Run(root string) (*Report, error) {
	start := time.Now()
	files, skipped, err := Discover(root, a.layout)
	if err != nil {
		return nil, err
	}

	rep := newReport(root, a.dryRun)
	rep.RunID = uuid.NewString()
	rep.StartedAt = start.UTC()
	rep.CandidateFiles = len(files)

	log := a.logger.With(zap.String("run_id", rep.RunID))
	log.Info("audit started",
		zap.String("root", root),
		zap.Int("candidates", len(files)),
		zap.Bool("dry_run", a.dryRun))

	for _, fe := range skipped {
		rel := relPath(root, fe.Path)
		log.Warn("path skipped", zap.String("path", rel), zap.String("op", fe.Op), zap.Error(fe.Err))
		rep.addFailure(fe, rel)
	}
	for _, path := range files {
		rel := relPath(root, path)
		res, err := a.auditFile(path, rel, log)
		if err != nil {
			var fe *FileError
			if !errors.As(err, &fe) {
				fe = &FileError{Path: rel, Op: "audit", Err: err}
			}
			log.Warn("file skipped", zap.String("file", rel), zap.String("op", fe.Op), zap.Error(fe.Err))
			rep.addFailure(fe, rel)
			continue
		}
		if res != nil {
			rep.add(*res)
		}
	}

	rep.Duration = time.Since(start)
	log.Info("audit finished",
		zap.Int("tests", rep.TotalTests),
		zap.Int("flagged", rep.FlaggedTests),
		zap.Int("modified", len(rep.Modified)),
		zap.Int("failures", len(rep.Failures)),
		zap.Duration("took", rep.Duration))
	return rep, nil
}

// auditFile processes one file. It returns nil, nil for files without test
// functions.
func (a *Auditor) auditFile(path, rel string, log *zap.Logger) (*FileResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileError{Path: rel, Op: "read", Err: err}
	}
	if !utf8.Valid(data) {
		return nil, &FileError{Path: rel, Op: "read", Err: ErrInvalidUTF8}
	}
	original := string(data)

	records := Locate(original)
	if missed := strings.Count(original, TestAttribute) - len(records); missed > 0 {
		log.Debug("test attributes without a declaration", zap.String("file", rel), zap.Int("count", missed))
	}
	if len(records) == 0 {
		return nil, nil
	}

	res := &FileResult{Path: rel, Tests: len(records)}
	buffer := original
	offset := 0
	for _, rec := range records {
		// Detection always reads the untouched text at the original lines;
		// only the insertion point moves with earlier markers.
		v := Detect(a.rules, original, rec)
		if len(v) == 0 {
			continue
		}
		ft := FlaggedTest{Name: rec.Name, Line: rec.StartLine, Categories: v.Sorted()}
		at := rec.StartLine + offset
		if !HasMarker(buffer, at) {
			updated, err := Annotate(buffer, at, v)
			if err != nil {
				return nil, &FileError{Path: rel, Op: "annotate", Err: err}
			}
			offset += strings.Count(updated, "\n") - strings.Count(buffer, "\n")
			buffer = updated
			ft.Marked = true
		}
		log.Debug("test flagged",
			zap.String("file", rel),
			zap.String("test", rec.Name),
			zap.String("categories", v.String()),
			zap.Bool("marked", ft.Marked))
		res.Flagged = append(res.Flagged, ft)
	}

	if buffer != original {
		res.Modified = true
		if !a.dryRun {
			if err := support.ReplaceFile(path, []byte(buffer)); err != nil {
				return nil, &FileError{Path: rel, Op: "write", Err: err}
			}
		}
	}
	return res, nil
}

func (r *Report) add(res FileResult) {
	r.Files = append(r.Files, res)
	r.TotalTests += res.Tests
	r.FlaggedTests += len(res.Flagged)
	for _, t := range res.Flagged {
		for _, c := range t.Categories {
			r.CategoryCounts[c]++
		}
	}
	if res.Modified {
		r.Modified = append(r.Modified, res.Path)
	}
}

func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
