package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/RichardoC/lms-chat/internal/apperr"
	"github.com/RichardoC/lms-chat/internal/models"
	"github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    canvas_user_id INTEGER NOT NULL,
    title TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_conversations_owner ON conversations(canvas_user_id, updated_at);

CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id INTEGER NOT NULL,
    turn_id TEXT NOT NULL DEFAULT '',
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT '',
    pending_tool TEXT NOT NULL DEFAULT '',
    pending_args TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
);

-- A turn is stored at most once per conversation.
CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_turn
    ON messages(conversation_id, turn_id, role) WHERE turn_id <> '';`

type Database struct {
	db *sql.DB
}

// New opens (and migrates) the conversation store at dbPath.
func New(dbPath string) (*Database, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Database{db: db}, nil
}

// Columns added after the first release; older files get them on open.
var addedColumns = []string{
	"ALTER TABLE messages ADD COLUMN status TEXT NOT NULL DEFAULT ''",
	"ALTER TABLE messages ADD COLUMN pending_tool TEXT NOT NULL DEFAULT ''",
	"ALTER TABLE messages ADD COLUMN pending_args TEXT NOT NULL DEFAULT ''",
}

func migrate(db *sql.DB) error {
	for _, stmt := range addedColumns {
		if _, err := db.Exec(stmt); err != nil && !strings.Contains(err.Error(), "duplicate column name") {
			return fmt.Errorf("failed to migrate messages: %w", err)
		}
	}
	return nil
}

func (db *Database) Close() error {
	return db.db.Close()
}

// Ping reports whether the store is reachable.
func (db *Database) Ping(ctx context.Context) error {
	return db.db.PingContext(ctx)
}

func (db *Database) CreateConversation(ctx context.Context, ownerID int64, title string) (*models.Conversation, error) {
	query := `
        INSERT INTO conversations (canvas_user_id, title, created_at, updated_at)
        VALUES (?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
        RETURNING id, created_at, updated_at`

	conv := &models.Conversation{OwnerID: ownerID, Title: title}
	err := db.db.QueryRowContext(ctx, query, ownerID, title).Scan(&conv.ID, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (db *Database) GetConversation(ctx context.Context, id int64) (*models.Conversation, error) {
	query := `
        SELECT id, canvas_user_id, title, created_at, updated_at
        FROM conversations
        WHERE id = ?`

	var conv models.Conversation
	err := db.db.QueryRowContext(ctx, query, id).Scan(&conv.ID, &conv.OwnerID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "conversation %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (db *Database) GetConversations(ctx context.Context, ownerID int64) ([]models.Conversation, error) {
	query := `
        SELECT id, canvas_user_id, title, created_at, updated_at
        FROM conversations
        WHERE canvas_user_id = ?
        ORDER BY updated_at DESC, id DESC`

	rows, err := db.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return []models.Conversation{}, err
	}
	defer rows.Close()

	conversations := make([]models.Conversation, 0)
	for rows.Next() {
		var conv models.Conversation
		err := rows.Scan(&conv.ID, &conv.OwnerID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
		if err != nil {
			return []models.Conversation{}, err
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

// SaveTurn stores both halves of a turn in one transaction. If the turn was
// already stored, the stored copy is returned and nothing is written.
func (db *Database) SaveTurn(ctx context.Context, turn *models.Turn) (*models.Turn, error) {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	insert := `
        INSERT INTO messages (conversation_id, turn_id, role, content, status, pending_tool, pending_args, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
        RETURNING id, created_at`

	var pendingArgs string
	if len(turn.PendingArgs) > 0 {
		data, err := json.Marshal(turn.PendingArgs)
		if err != nil {
			return nil, fmt.Errorf("failed to encode pending arguments: %w", err)
		}
		pendingArgs = string(data)
	}

	for _, msg := range []*models.Message{&turn.User, &turn.Assistant} {
		msg.ConvID = turn.ConvID
		msg.TurnID = turn.TurnID
		// Reply metadata lives on the assistant row only.
		var status, tool, args string
		if msg == &turn.Assistant {
			status, tool, args = turn.Status, turn.PendingTool, pendingArgs
		}
		err := tx.QueryRowContext(ctx, insert, turn.ConvID, turn.TurnID, msg.Role, msg.Content, status, tool, args).Scan(&msg.ID, &msg.CreatedAt)
		if isUniqueViolation(err) {
			tx.Rollback()
			existing, findErr := db.FindTurn(ctx, turn.ConvID, turn.TurnID)
			if findErr != nil {
				return nil, findErr
			}
			return existing, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to save %s message: %w", msg.Role, err)
		}
	}

	if _, err := tx.ExecContext(ctx, "UPDATE conversations SET updated_at = CURRENT_TIMESTAMP WHERE id = ?", turn.ConvID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return turn, nil
}

// FindTurn returns the stored turn, or nil when the turn id is unknown.
func (db *Database) FindTurn(ctx context.Context, convID int64, turnID string) (*models.Turn, error) {
	if turnID == "" {
		return nil, nil
	}
	query := `
        SELECT id, conversation_id, turn_id, role, content, status, pending_tool, pending_args, created_at
        FROM messages
        WHERE conversation_id = ? AND turn_id = ?
        ORDER BY id ASC`

	rows, err := db.db.QueryContext(ctx, query, convID, turnID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	turn := &models.Turn{ConvID: convID, TurnID: turnID}
	var found bool
	for rows.Next() {
		var (
			msg               models.Message
			status, tool, raw string
		)
		if err := rows.Scan(&msg.ID, &msg.ConvID, &msg.TurnID, &msg.Role, &msg.Content, &status, &tool, &raw, &msg.CreatedAt); err != nil {
			return nil, err
		}
		switch msg.Role {
		case models.RoleUser:
			turn.User = msg
		case models.RoleAssistant:
			turn.Assistant = msg
			turn.Status, turn.PendingTool = status, tool
			if raw != "" {
				if err := json.Unmarshal([]byte(raw), &turn.PendingArgs); err != nil {
					return nil, fmt.Errorf("failed to decode pending arguments: %w", err)
				}
			}
			found = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return turn, nil
}

// GetConversationHistory returns the last limit messages in chronological order.
func (db *Database) GetConversationHistory(ctx context.Context, conversationID int64, limit int) ([]models.Message, error) {
	query := `
        SELECT id, conversation_id, turn_id, role, content, created_at
        FROM messages
        WHERE conversation_id = ?
        ORDER BY id DESC
        LIMIT ?`

	messages, err := db.queryMessages(ctx, query, conversationID, limit)
	if err != nil {
		return messages, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// GetMessages returns every message of a conversation in insertion order.
func (db *Database) GetMessages(ctx context.Context, conversationID int64) ([]models.Message, error) {
	query := `
        SELECT id, conversation_id, turn_id, role, content, created_at
        FROM messages
        WHERE conversation_id = ?
        ORDER BY id ASC`

	return db.queryMessages(ctx, query, conversationID)
}

func (db *Database) queryMessages(ctx context.Context, query string, args ...any) ([]models.Message, error) {
	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return []models.Message{}, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		err := rows.Scan(&msg.ID, &msg.ConvID, &msg.TurnID, &msg.Role, &msg.Content, &msg.CreatedAt)
		if err != nil {
			return []models.Message{}, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (db *Database) DeleteConversation(ctx context.Context, id int64) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Delete messages
	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE conversation_id = ?", id); err != nil {
		return err
	}

	// Delete conversation
	res, err := tx.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.New(apperr.KindNotFound, "conversation %d not found", id)
	}

	return tx.Commit()
}

func (db *Database) UpdateConversationTitle(ctx context.Context, id int64, title string) error {
	res, err := db.db.ExecContext(ctx, "UPDATE conversations SET title = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", title, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.New(apperr.KindNotFound, "conversation %d not found", id)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}
