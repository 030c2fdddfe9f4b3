package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/papermill/jobs"
	"github.com/poiesic/papermill/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// workspace writes a config file pointing at a fresh database and job log
// directory, and returns the global flags that select it.
func workspace(t *testing.T) []string {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "papermill.yaml")
	cfg := fmt.Sprintf("database:\n  path: %s\njobs:\n  log_dir: %s\n",
		filepath.Join(dir, "db"), filepath.Join(dir, "jobs"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))
	return []string{"--log-level", "error", "--config", cfgPath, "--env-file", filepath.Join(dir, "missing.env")}
}

func run(t *testing.T, global []string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	argv := append([]string{"papermill"}, global...)
	err := app.Run(append(argv, args...))
	return out.String(), err
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := run(t, []string{"--log-level", "verbose"}, "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestAddSegmentStats(t *testing.T) {
	global := workspace(t)
	file := filepath.Join(t.TempDir(), "paper.txt")
	require.NoError(t, os.WriteFile(file, []byte("ABCDEFGHIJKLMNOP"), 0o644))

	out, err := run(t, global, "add", "--title", "A Paper", "--year", "2024", file, file)
	require.NoError(t, err)
	assert.Contains(t, out, "with 2 attachments")

	out, err = run(t, global, "dedupe")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 1 duplicate attachments")

	_, err = run(t, global, "segment", "--segment-size", "10", "--overlap", "3")
	require.NoError(t, err)

	out, err = run(t, global, "stats")
	require.NoError(t, err)
	var stats pipeline.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 1, stats.FileCount)
	assert.Equal(t, 1, stats.DocumentsWithSegments)
	assert.Equal(t, 0, stats.MissingFiles)
	assert.Equal(t, 1, stats.MissingSummary)
}

func TestSegmentRejectsInvalidParams(t *testing.T) {
	global := workspace(t)

	_, err := run(t, global, "segment", "--segment-size", "5", "--overlap", "5")
	require.ErrorIs(t, err, pipeline.ErrInvalidParams)
}

func TestEmbedRequiresAPIKey(t *testing.T) {
	for _, k := range []string{"LLM_API_KEY", "EMBED_API_KEY"} {
		t.Setenv(k, "")
	}
	global := workspace(t)

	_, err := run(t, global, "embed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EmbeddingAPIKey")
}

func TestClearSummaryArgs(t *testing.T) {
	global := workspace(t)

	_, err := run(t, global, "clear-summary")
	require.Error(t, err)

	_, err = run(t, global, "clear-summary", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid document id")

	_, err = run(t, global, "clear-summary", "42")
	require.Error(t, err)
}

func TestExitError(t *testing.T) {
	code := func(c int) *int { return &c }

	assert.NoError(t, exitError(&jobs.Status{ExitCode: code(jobs.ExitSuccess)}))

	err := exitError(&jobs.Status{ID: "j1", Kind: jobs.KindEmbedding, ExitCode: code(jobs.ExitCancelled)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled")

	err = exitError(&jobs.Status{ID: "j2", Kind: jobs.KindSummarization, ExitCode: code(jobs.ExitFailure), LastMessage: "failed: boom"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed: boom")
}

func TestProgressTracker(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressTracker(&buf)

	st := &jobs.Status{
		Kind:        jobs.KindEmbedding,
		LastMessage: "batch · batch 1/2",
		Stats: jobs.Stats{Counters: map[string]int{
			"total_segments": 4,
			"embedded":       1,
			"skipped":        1,
		}},
	}

	p.Update(st)
	assert.Empty(t, buf.String(), "updates before Start are ignored")
	assert.Equal(t, time.Duration(0), p.Elapsed())

	p.Start()
	p.Update(st)
	assert.Contains(t, buf.String(), "Progress: 2/4 segments (50.0%)")
	assert.Contains(t, buf.String(), "batch 1/2")

	n := buf.Len()
	p.Update(st)
	p.Finish(st)
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
	assert.Greater(t, buf.Len(), n)
}

func TestProgressOf(t *testing.T) {
	st := &jobs.Status{
		Kind: jobs.KindSummarization,
		Stats: jobs.Stats{Counters: map[string]int{
			"total_documents": 5, "processed": 2, "errors": 1, "skipped": 1,
		}},
	}
	done, total, unit := progressOf(st)
	assert.Equal(t, 4, done)
	assert.Equal(t, 5, total)
	assert.Equal(t, "documents", unit)

	st.Kind = jobs.KindSegmentation
	st.Stats.Counters = map[string]int{"total_documents": 3, "processed_documents": 3}
	done, total, _ = progressOf(st)
	assert.Equal(t, 3, done)
	assert.Equal(t, 3, total)
}
