package usage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaygate/internal/domain"
)

func TestJSONFileSink_WriteThenAllRoundTrips(t *testing.T) {
	sink, err := NewJSONFileSink(filepath.Join(t.TempDir(), "usage.json"))
	require.NoError(t, err)

	ctx := context.Background()
	entry := domain.UsageEntry{
		Timestamp:  time.Now().UTC(),
		ProviderID: "openai",
		Model:      "gpt-4o",
		Tokens:     domain.TokenCounts{Prompt: 10, Completion: 20},
		CostUSD:    0.0012,
		RequestID:  "req-1",
	}
	require.NoError(t, sink.Write(ctx, []domain.UsageEntry{entry}))

	all, err := sink.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, entry.RequestID, all[0].RequestID)
	assert.Equal(t, entry.Tokens, all[0].Tokens)
}

func TestJSONFileSink_AllOnMissingFileIsEmpty(t *testing.T) {
	sink, err := NewJSONFileSink(filepath.Join(t.TempDir(), "nested", "usage.json"))
	require.NoError(t, err)

	all, err := sink.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestJSONFileSink_WriteAppendsAcrossCalls(t *testing.T) {
	sink, err := NewJSONFileSink(filepath.Join(t.TempDir(), "usage.json"))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sink.Write(ctx, []domain.UsageEntry{{RequestID: "a"}}))
	require.NoError(t, sink.Write(ctx, []domain.UsageEntry{{RequestID: "b"}, {RequestID: "c"}}))

	all, err := sink.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestJSONFileSink_WriteEmptyBatchIsNoop(t *testing.T) {
	sink, err := NewJSONFileSink(filepath.Join(t.TempDir(), "usage.json"))
	require.NoError(t, err)

	require.NoError(t, sink.Write(context.Background(), nil))
	all, err := sink.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}
