package requestlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotWriter_WritesOneLinePerSnapshot(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "snap-%s.jsonl")

	w, err := NewSnapshotWriter(tmpl, 10*1024, 5, 100, 50*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	w.Write(Snapshot{RequestID: "req-1", SourceFormat: "OPENAI", TargetFormat: "CLAUDE"})
	w.Close()

	content, err := os.ReadFile(w.currentFile)
	require.NoError(t, err)
	var got Snapshot
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(content))), &got))
	assert.Equal(t, "req-1", got.RequestID)
}

func TestSnapshotWriter_RotatesPastMaxSize(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "snap-%s.jsonl")

	w, err := NewSnapshotWriter(tmpl, 50, 10, 100, 10*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	for i := 0; i < 20; i++ {
		w.Write(Snapshot{RequestID: "req", SourceFormat: "OPENAI-PADDING-PADDING-PADDING"})
		time.Sleep(5 * time.Millisecond)
	}
	w.Close()

	matches, err := filepath.Glob(filepath.Join(dir, "snap-*.jsonl"))
	require.NoError(t, err)
	assert.Greater(t, len(matches), 1)
}

func TestSnapshotWriter_PrunesToMaxFiles(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "snap-%s.jsonl")

	w, err := NewSnapshotWriter(tmpl, 20, 2, 100, 10*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	for i := 0; i < 30; i++ {
		w.Write(Snapshot{RequestID: "req", SourceFormat: "PADDING-PADDING-PADDING"})
		time.Sleep(5 * time.Millisecond)
	}
	w.Close()

	matches, err := filepath.Glob(filepath.Join(dir, "snap-*.jsonl"))
	require.NoError(t, err)
	assert.LessOrEqual(t, len(matches), 3)
}
