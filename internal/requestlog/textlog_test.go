package requestlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextLog_AppendWritesFormattedLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.txt")

	log, err := NewTextLog(path)
	require.NoError(t, err)
	defer log.Close()

	log.Append(Entry{
		Timestamp:  time.Date(2026, 3, 5, 10, 30, 0, 0, time.UTC),
		Model:      "gpt-4o",
		ProviderID: "openai",
		Account:    "acct-1",
		SentTokens: 10,
		RecvTokens: 20,
		Status:     "200",
	})
	log.Close()

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "05-03-2026 10:30:00 | gpt-4o | openai | acct-1 | 10 | 20 | 200\n", string(content))
}

func TestTextLog_TrimsToMaxLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.txt")

	log, err := NewTextLog(path)
	require.NoError(t, err)

	for i := 0; i < maxLines+50; i++ {
		log.Append(Entry{
			Timestamp:  time.Now(),
			Model:      fmt.Sprintf("model-%d", i),
			ProviderID: "openai",
			Status:     "200",
		})
	}
	log.Close()

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	assert.Len(t, lines, maxLines)
	assert.Contains(t, lines[len(lines)-1], fmt.Sprintf("model-%d", maxLines+49))
}

func TestTextLog_CreatesParentDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "logs", "log.txt")

	log, err := NewTextLog(path)
	require.NoError(t, err)
	defer log.Close()

	_, err = os.Stat(filepath.Dir(path))
	assert.NoError(t, err)
}

func TestTextLog_ConcurrentAppendsAllLand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.txt")

	log, err := NewTextLog(path)
	require.NoError(t, err)

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func(n int) {
			for j := 0; j < 5; j++ {
				log.Append(Entry{Timestamp: time.Now(), Model: fmt.Sprintf("m-%d-%d", n, j)})
			}
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}
	log.Close()

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	assert.Len(t, lines, 50)
}
