package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/lex-fmt/testaudit/internal/audit"
	cfgpkg "github.com/lex-fmt/testaudit/internal/config"
	"github.com/lex-fmt/testaudit/internal/support"
)

const flaggedTest = `#[test]
fn lexes_dash() {
    assert_eq!(lex("-")[0], Token::Dash);
}
`

func newRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRunCommand(t *testing.T) {
	root := newRepo(t, map[string]string{"tests/lexer.rs": flaggedTest})
	outDir := t.TempDir()
	jsonPath := filepath.Join(outDir, "report.json")
	metricsPath := filepath.Join(outDir, "testaudit.prom")
	logPath := filepath.Join(outDir, "audit.jsonl")

	out, err := execute(t, "run", "--root", root,
		"--json", jsonPath, "--metrics", metricsPath, "--audit-log", logPath)
	require.NoError(t, err)

	assert.Contains(t, out, "tests/lexer.rs (1 tests)\n  - lexes_dash: manual_construction\n")
	assert.Contains(t, out, "Tagged 1 files with @audit comments\n")

	data, err := os.ReadFile(filepath.Join(root, "tests", "lexer.rs"))
	require.NoError(t, err)
	assert.Equal(t, "// @audit: manual_construction\n"+flaggedTest, string(data))

	var rep audit.Report
	data, err = os.ReadFile(jsonPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &rep))
	assert.Equal(t, 1, rep.FlaggedTests)
	assert.Equal(t, []string{"tests/lexer.rs"}, rep.Modified)

	data, err = os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `testaudit_violations_total{category="manual_construction"} 1`)

	data, err = os.ReadFile(logPath)
	require.NoError(t, err)
	var entry support.AuditEntry
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "FLAGGED", entry.Result)
	assert.Equal(t, rep.RunID, entry.RunID)
}

func TestDefaultCommandIsRun(t *testing.T) {
	root := newRepo(t, map[string]string{"tests/lexer.rs": flaggedTest})

	out, err := execute(t, "--root", root, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Dry run: would tag 1 files with @audit comments\n")

	data, err := os.ReadFile(filepath.Join(root, "tests", "lexer.rs"))
	require.NoError(t, err)
	assert.Equal(t, flaggedTest, string(data))
}

func TestRunCommandSecondPassChangesNothing(t *testing.T) {
	root := newRepo(t, map[string]string{"tests/lexer.rs": flaggedTest})

	_, err := execute(t, "--root", root)
	require.NoError(t, err)
	out, err := execute(t, "--root", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Tagged 0 files with @audit comments\n")
}

func TestRunCommandFailsOnUnreadableFile(t *testing.T) {
	root := newRepo(t, map[string]string{
		"tests/lexer.rs": flaggedTest,
		"tests/bad.rs":   "#[test]\nfn f() {}\n\xff",
	})

	out, err := execute(t, "--root", root)
	require.Error(t, err)
	assert.Equal(t, "audit incomplete: 1 paths could not be audited", err.Error())
	assert.Contains(t, out, "=== Errors (1) ===")
	assert.Contains(t, out, "Tagged 1 files with @audit comments\n")
}

func TestRunCommandUsesConfigRules(t *testing.T) {
	root := newRepo(t, map[string]string{
		cfgpkg.FileName:  "rules:\n  no_source:\n    - 'Span::default\\(\\)'\n",
		"tests/span.rs": "#[test]\nfn spans() {\n    let s = Span::default();\n}\n",
	})

	out, err := execute(t, "--root", root)
	require.NoError(t, err)
	assert.Contains(t, out, "  - spans: no_source\n")
}

func TestRunCommandRejectsBadConfig(t *testing.T) {
	root := newRepo(t, map[string]string{cfgpkg.FileName: "schemaVersion: \"9\"\n"})

	_, err := execute(t, "--root", root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config load failed")
}

func TestRulesCommand(t *testing.T) {
	out, err := execute(t, "rules", "--root", t.TempDir())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "no_source (4 rules)\n  1. \\.new\\("), out)
	assert.Contains(t, out, "\nmanual_construction (3 rules)\n")
	assert.Contains(t, out, "\nhardcoded_source (6 rules)\n")
}

func TestDoctorCommand(t *testing.T) {
	root := newRepo(t, map[string]string{"tests/lexer.rs": flaggedTest})
	out, err := execute(t, "doctor", "--root", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Candidate files: 1\n")
	assert.Contains(t, out, "Status:          OK\n")

	out, err = execute(t, "doctor", "--root", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, out, "Status:          DEGRADED\n")
	assert.Contains(t, err.Error(), "no candidate test files found")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "testaudit v"+Version+" (built "+BuildDate+")\n", out)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchReauditsNewFiles(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := newRepo(t, map[string]string{"tests/clean.rs": "#[test]\nfn ok() {\n    assert!(true);\n}\n"})
	a := &app{opts: options{root: root}, config: cfgpkg.Default(), logger: zap.NewNop()}

	ctx, cancel := context.WithCancel(context.Background())
	var out syncBuffer
	done := make(chan error, 1)
	go func() { done <- a.watch(ctx, &out) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "=== Test Audit Report ===")
	}, 5*time.Second, 20*time.Millisecond)

	path := filepath.Join(root, "tests", "lexer.rs")
	require.NoError(t, os.WriteFile(path, []byte(flaggedTest), 0o644))

	require.Eventually(t, func() bool {
		data, err := os.ReadFile(path)
		return err == nil && strings.HasPrefix(string(data), "// @audit: manual_construction\n")
	}, 10*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}
