package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/RichardoC/lms-chat/internal/apperr"
	"github.com/RichardoC/lms-chat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	database, err := New(filepath.Join(t.TempDir(), "conversations.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func turn(convID int64, id, user, assistant string) *models.Turn {
	return &models.Turn{
		ConvID:    convID,
		TurnID:    id,
		User:      models.Message{Role: models.RoleUser, Content: user},
		Assistant: models.Message{Role: models.RoleAssistant, Content: assistant},
	}
}

func TestConversationLifecycle(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)

	conv, err := database.CreateConversation(ctx, 42, "New Chat")
	require.NoError(t, err)
	assert.NotZero(t, conv.ID)

	other, err := database.CreateConversation(ctx, 7, "Someone else")
	require.NoError(t, err)

	list, err := database.GetConversations(ctx, 42)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, conv.ID, list[0].ID)

	require.NoError(t, database.UpdateConversationTitle(ctx, conv.ID, "Course planning"))
	got, err := database.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Course planning", got.Title)

	require.NoError(t, database.DeleteConversation(ctx, conv.ID))
	_, err = database.GetConversation(ctx, conv.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = database.GetConversation(ctx, other.ID)
	assert.NoError(t, err)
}

func TestMissingConversationIsNotFound(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)

	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(database.DeleteConversation(ctx, 99)))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(database.UpdateConversationTitle(ctx, 99, "x")))
}

func TestSaveTurnAppendsInOrder(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)
	conv, err := database.CreateConversation(ctx, 1, "t")
	require.NoError(t, err)

	_, err = database.SaveTurn(ctx, turn(conv.ID, "a", "list my courses", "You have 2 courses."))
	require.NoError(t, err)
	_, err = database.SaveTurn(ctx, turn(conv.ID, "b", "modules in course 3?", "Course 3 has 4 modules."))
	require.NoError(t, err)

	messages, err := database.GetMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, messages, 4)
	assert.Equal(t, "list my courses", messages[0].Content)
	assert.Equal(t, models.RoleAssistant, messages[1].Role)
	assert.Equal(t, "Course 3 has 4 modules.", messages[3].Content)

	history, err := database.GetConversationHistory(ctx, conv.ID, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "modules in course 3?", history[0].Content)
	assert.Equal(t, "Course 3 has 4 modules.", history[1].Content)
}

func TestSaveTurnIsIdempotent(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)
	conv, err := database.CreateConversation(ctx, 1, "t")
	require.NoError(t, err)

	first, err := database.SaveTurn(ctx, turn(conv.ID, "turn-1", "hi", "hello"))
	require.NoError(t, err)

	again, err := database.SaveTurn(ctx, turn(conv.ID, "turn-1", "hi", "a different answer"))
	require.NoError(t, err)
	assert.Equal(t, "hello", again.Assistant.Content)
	assert.Equal(t, first.Assistant.ID, again.Assistant.ID)

	messages, err := database.GetMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.Len(t, messages, 2)

	found, err := database.FindTurn(ctx, conv.ID, "turn-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "hi", found.User.Content)

	missing, err := database.FindTurn(ctx, conv.ID, "turn-2")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestFindTurnKeepsReplyState(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)
	conv, err := database.CreateConversation(ctx, 1, "t")
	require.NoError(t, err)

	asked := turn(conv.ID, "turn-1", "create an assignment in course 3", "What is the name?")
	asked.Status = "needs_clarification"
	asked.PendingTool = "create_assignment"
	asked.PendingArgs = map[string]any{"course_id": float64(3)}
	_, err = database.SaveTurn(ctx, asked)
	require.NoError(t, err)
	_, err = database.SaveTurn(ctx, turn(conv.ID, "turn-2", "hi", "hello"))
	require.NoError(t, err)

	found, err := database.FindTurn(ctx, conv.ID, "turn-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "needs_clarification", found.Status)
	assert.Equal(t, "create_assignment", found.PendingTool)
	assert.Equal(t, map[string]any{"course_id": float64(3)}, found.PendingArgs)

	plain, err := database.FindTurn(ctx, conv.ID, "turn-2")
	require.NoError(t, err)
	assert.Empty(t, plain.Status)
	assert.Empty(t, plain.PendingTool)
	assert.Nil(t, plain.PendingArgs)
}
