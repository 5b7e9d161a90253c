package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-sleepeval/infrastructure/store"
	"github.com/ahrav/go-sleepeval/internal/testutils"
)

// newExperiment writes a small generated experiment and returns its root.
func newExperiment(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	fs, err := store.NewFileStore(store.FileStoreConfig{Root: root}, nil, nil)
	require.NoError(t, err)

	spec := testutils.DefaultExperimentSpec()
	spec.Subjects, spec.Epochs = 3, 30
	for _, rec := range testutils.GenerateExperiment(spec, 7) {
		require.NoError(t, fs.Write(context.Background(), rec))
	}
	return root
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Operations(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
		dirs []string
	}{
		{name: "default table", args: nil, want: []string{"accuracy (%)", "AMOE", "SLEEPNET", "mean", "std"}},
		{name: "attention table", args: []string{"-op", "att-table"}, want: []string{"mean attention", "AMOE", "SLEEPNET"}},
		{name: "confusion", args: []string{"-op", "cm"}, want: []string{"AMOE  acc=", "DEEPSLEEP  acc=", "REM", "F1"}},
		{name: "hypnogram", args: []string{"-op", "hypnogram", "-subject", "2"}, want: []string{"hypnogram " + testutils.SubjectName(2), "wrong"}},
		{
			name: "experts",
			args: []string{"-op", "experts"},
			want: []string{"experts of AMOE", "Expert-EEG"},
			dirs: []string{"Expert-EEG", "Expert-EOG", "Expert-EMG"},
		},
		{
			name: "voters",
			args: []string{"-op", "voters"},
			want: []string{"ensembles over", "SOFT-V", "MAJ-V", "U-BOUND"},
			dirs: []string{"SOFT-V", "MAJ-V", "U-BOUND"},
		},
		{name: "model selection", args: []string{"-models", "SLEEPNET"}, want: []string{"SLEEPNET"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := newExperiment(t)
			args := append(append([]string{"-no-color", "-log-level", "error"}, tt.args...), root)
			code, stdout, stderr := runCLI(t, args...)
			require.Equal(t, exitOK, code, stderr)
			for _, w := range tt.want {
				assert.Contains(t, stdout, w)
			}
			for _, dir := range tt.dirs {
				assert.DirExists(t, filepath.Join(root, dir))
			}
		})
	}
}

func TestRun_UsageErrors(t *testing.T) {
	root := newExperiment(t)

	tests := []struct {
		name string
		args []string
	}{
		{name: "no root", args: nil},
		{name: "two roots", args: []string{root, root}},
		{name: "unknown op", args: []string{"-op", "plot", root}},
		{name: "bad log level", args: []string{"-log-level", "loud", root}},
		{name: "unknown flag", args: []string{"-verbose", root}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, _ := runCLI(t, tt.args...)
			assert.Equal(t, exitUsage, code)
			assert.Empty(t, stdout)
		})
	}

	t.Run("help", func(t *testing.T) {
		code, _, stderr := runCLI(t, "-h")
		assert.Equal(t, exitOK, code)
		assert.Contains(t, stderr, "usage: sleepeval")
	})
}

func TestRun_Errors(t *testing.T) {
	root := newExperiment(t)

	t.Run("unknown model", func(t *testing.T) {
		code, _, stderr := runCLI(t, "-models", "AMO", root)
		assert.Equal(t, exitError, code)
		assert.Contains(t, stderr, `did you mean "AMOE"?`)
	})

	t.Run("missing root", func(t *testing.T) {
		code, _, _ := runCLI(t, filepath.Join(root, "nope"))
		assert.Equal(t, exitError, code)
	})

	t.Run("subject out of range", func(t *testing.T) {
		code, _, stderr := runCLI(t, "-op", "hypnogram", "-subject", "9", root)
		assert.Equal(t, exitError, code)
		assert.Contains(t, stderr, "invalid input")
	})

	t.Run("invalid config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "report.yaml")
		require.NoError(t, os.WriteFile(path, []byte("workers: 0\n"), 0o644))
		code, _, stderr := runCLI(t, "-config", path, root)
		assert.Equal(t, exitError, code)
		assert.Contains(t, stderr, "load config")
	})
}

func TestRun_ConfigAndMetrics(t *testing.T) {
	root := newExperiment(t)
	dir := t.TempDir()

	configPath := filepath.Join(dir, "report.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
voters:
  - id: ORACLE
    type: upper_bound
store:
  format: yaml
  reads_per_second: 1000
  burst: 10
workers: 3
`), 0o644))
	metricsPath := filepath.Join(dir, "sleepeval.prom")

	code, stdout, stderr := runCLI(t, "-no-color", "-op", "voters", "-config", configPath, "-metrics-file", metricsPath, root)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "ORACLE")
	assert.NotContains(t, stdout, "SOFT-V")

	matches, err := filepath.Glob(filepath.Join(root, "ORACLE", "*.yaml"))
	require.NoError(t, err)
	assert.Len(t, matches, 3)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "sleepeval_events_total")
	assert.Contains(t, string(data), `sleepeval_subject_accuracy_percent{model="ORACLE"`)
	assert.Contains(t, stderr, "operation finished")
}
