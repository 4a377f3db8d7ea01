package db

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"robopilot/internal/models"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	conn, err := Open(filepath.Join(t.TempDir(), "nested", "robopilot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewStore(conn, "gpt-4o", "logs/log_2024-03-01_12-00-00.json")
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	clock := time.Unix(1700000000, 0)
	s.now = func() time.Time { return clock }

	msgs := []models.Message{
		models.System("sys"),
		models.User("turn on the vacuum"),
		models.AssistantToolCall("", models.ToolCall{ID: "call_0", Name: "suck", Arguments: "{}"}),
		models.FunctionResult("suck", "Sucked!"),
		models.Assistant("Done."),
	}
	for _, m := range msgs {
		require.NoError(t, s.Write(ctx, m))
		clock = clock.Add(time.Second)
	}
	require.NoError(t, s.Close(ctx, models.Summary{UsedTokens: 321, Model: "gpt-4o"}))

	got, err := GetSessionMessages(ctx, s.db, s.ID())
	require.NoError(t, err)
	assert.Equal(t, msgs, got)

	count, items, err := GetRecentSessions(ctx, s.db, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.Len(t, items, 1)
	it := items[0]
	assert.Equal(t, s.ID(), it.ID)
	assert.Equal(t, "turn on the vacuum", it.LastUserPrompt)
	assert.Equal(t, "gpt-4o", it.ModelID)
	assert.Equal(t, 321, it.UsedTokens)
	assert.Equal(t, int64(1700000000), it.CreatedAtUnix)
	assert.Equal(t, int64(1700000005), it.UpdatedAtUnix)
	assert.Equal(t, "logs/log_2024-03-01_12-00-00.json", it.LogPath)
}

func TestStoreCloseWithoutWrites(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.Close(context.Background(), models.Summary{}))

	count, _, err := GetRecentSessions(context.Background(), s.db, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRecentSessionsPaging(t *testing.T) {
	ctx := context.Background()
	first := openTemp(t)
	conn := first.db

	var ids []string
	for i := 0; i < 3; i++ {
		s := NewStore(conn, "gpt-4o", "")
		ts := time.Unix(int64(1000+i), 0)
		s.now = func() time.Time { return ts }
		require.NoError(t, s.Write(ctx, models.System("sys")))
		ids = append(ids, s.ID())
	}

	count, page, err := GetRecentSessions(ctx, conn, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	require.Len(t, page, 2)
	assert.Equal(t, ids[2], page[0].ID)
	assert.Equal(t, ids[1], page[1].ID)

	_, page, err = GetRecentSessions(ctx, conn, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[0], page[0].ID)

	it, err := LookupSession(ctx, conn, ids[1][:8])
	require.NoError(t, err)
	assert.Equal(t, ids[1], it.ID)

	_, err = LookupSession(ctx, conn, "zzzz")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestPromptPreview(t *testing.T) {
	assert.Equal(t, "move home", PromptPreview("  move home \n"))
	assert.Equal(t, "first …", PromptPreview("first\nsecond"))

	long := PromptPreview(strings.Repeat("a", 100))
	assert.True(t, strings.HasSuffix(long, "…"))
	assert.LessOrEqual(t, len([]rune(long)), previewWidth)
}
