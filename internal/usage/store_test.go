package usage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/RichardoC/lms-chat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "usage.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestLogAndStats(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	records := []*models.UsageRecord{
		{UserID: 1, UserRole: "student", InferenceSystem: "openai", ModelName: "gpt-4o-mini", InputTokens: 100, OutputTokens: 20, ToolUsed: true, ToolName: "list_courses", LatencyMS: 300},
		{UserID: 1, UserRole: "student", InferenceSystem: "openai", ModelName: "gpt-4o-mini", InputTokens: 50, OutputTokens: 10, LatencyMS: 100},
		{UserID: 2, UserRole: "teacher", InferenceSystem: "local", ModelName: "llama3.1:8b", InputTokens: 10, OutputTokens: 5, ToolUsed: true, ToolName: "create_module", LatencyMS: 200},
	}
	for _, rec := range records {
		require.NoError(t, store.Log(ctx, rec))
	}
	assert.Equal(t, 120, records[0].TotalTokens)
	assert.Equal(t, "chat", records[0].RequestType)

	all, err := store.Stats(ctx, 0, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.TotalRequests)
	assert.Equal(t, int64(160), all.TotalInputTokens)
	assert.Equal(t, int64(195), all.TotalTokens)
	assert.Equal(t, int64(2), all.ToolRequests)
	assert.InDelta(t, 200.0, all.AvgLatencyMS, 0.001)
	require.Len(t, all.Models, 2)
	assert.Equal(t, "openai", all.Models[0].System)
	assert.Equal(t, int64(2), all.Models[0].Requests)
	assert.Len(t, all.Tools, 2)

	mine, err := store.Stats(ctx, 2, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), mine.TotalRequests)
	require.Len(t, mine.Tools, 1)
	assert.Equal(t, "create_module", mine.Tools[0].Tool)
}

func TestStatsWindow(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Log(ctx, &models.UsageRecord{UserID: 1, InputTokens: 1}))
	store.now = func() time.Time { return time.Now().AddDate(0, 0, 10) }

	stats, err := store.Stats(ctx, 0, 7)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalRequests)
	assert.Empty(t, stats.Models)
}
