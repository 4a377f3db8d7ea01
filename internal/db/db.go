// Package db keeps a SQLite history of chat sessions next to the JSON log
// files.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-runewidth"
	_ "modernc.org/sqlite"

	"robopilot/internal/models"
)

const previewWidth = 60

// DefaultPath is robopilot.db in the user's config directory.
func DefaultPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, herr := os.UserHomeDir()
		if herr != nil {
			return "", err
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "robopilot", "robopilot.db"), nil
}

// Open opens (and if needed creates) the history database at path.
func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, err
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			model_id TEXT NOT NULL,
			last_user_prompt TEXT NOT NULL DEFAULT '',
			log_path TEXT NOT NULL DEFAULT '',
			used_tokens INTEGER NOT NULL DEFAULT 0,
			closed_at INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT,
			name TEXT NOT NULL DEFAULT '',
			call_id TEXT NOT NULL DEFAULT '',
			call_name TEXT NOT NULL DEFAULT '',
			call_arguments TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session_id ON messages(session_id, id);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return db, nil
}

func CreateSession(ctx context.Context, db *sql.DB, id string, nowUnix int64, modelID, logPath string) error {
	_, err := db.ExecContext(ctx,
		"INSERT INTO sessions(id, created_at, updated_at, model_id, last_user_prompt, log_path) VALUES(?, ?, ?, ?, '', ?)",
		id,
		nowUnix,
		nowUnix,
		modelID,
		logPath,
	)
	return err
}

func InsertMessage(ctx context.Context, db *sql.DB, sessionID string, m models.Message, nowUnix int64) error {
	var call models.ToolCall
	if m.ToolCall != nil {
		call = *m.ToolCall
	}
	_, err := db.ExecContext(ctx,
		"INSERT INTO messages(session_id, role, content, name, call_id, call_name, call_arguments, created_at) VALUES(?, ?, ?, ?, ?, ?, ?, ?)",
		sessionID,
		string(m.Role),
		m.Content,
		m.Name,
		call.ID,
		call.Name,
		call.Arguments,
		nowUnix,
	)
	return err
}

func UpdateSessionOnUser(ctx context.Context, db *sql.DB, id string, nowUnix int64, lastUserPrompt string) error {
	_, err := db.ExecContext(ctx,
		"UPDATE sessions SET updated_at = ?, last_user_prompt = ? WHERE id = ?",
		nowUnix,
		lastUserPrompt,
		id,
	)
	return err
}

func TouchSession(ctx context.Context, db *sql.DB, id string, nowUnix int64) error {
	_, err := db.ExecContext(ctx,
		"UPDATE sessions SET updated_at = ? WHERE id = ?",
		nowUnix,
		id,
	)
	return err
}

func CloseSession(ctx context.Context, db *sql.DB, id string, nowUnix int64, usedTokens int) error {
	_, err := db.ExecContext(ctx,
		"UPDATE sessions SET updated_at = ?, closed_at = ?, used_tokens = ? WHERE id = ?",
		nowUnix,
		nowUnix,
		usedTokens,
		id,
	)
	return err
}

// GetRecentSessions returns the total session count and one page of
// sessions, most recently updated first.
func GetRecentSessions(ctx context.Context, db *sql.DB, limit, offset int) (int, []models.SessionListItem, error) {
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&count); err != nil {
		return 0, nil, err
	}

	rows, err := db.QueryContext(ctx,
		"SELECT id, created_at, updated_at, last_user_prompt, model_id, log_path, used_tokens FROM sessions ORDER BY updated_at DESC, created_at DESC LIMIT ? OFFSET ?",
		limit,
		offset,
	)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()

	items := make([]models.SessionListItem, 0, limit)
	for rows.Next() {
		var it models.SessionListItem
		if err := rows.Scan(&it.ID, &it.CreatedAtUnix, &it.UpdatedAtUnix, &it.LastUserPrompt, &it.ModelID, &it.LogPath, &it.UsedTokens); err != nil {
			return 0, nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, err
	}

	return count, items, nil
}

// GetSessionMessages returns the stored messages of one session in
// append order.
func GetSessionMessages(ctx context.Context, db *sql.DB, sessionID string) ([]models.Message, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT role, content, name, call_id, call_name, call_arguments FROM messages WHERE session_id = ? ORDER BY id ASC",
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []models.Message{}
	for rows.Next() {
		var (
			m       models.Message
			role    string
			content sql.NullString
			call    models.ToolCall
		)
		if err := rows.Scan(&role, &content, &m.Name, &call.ID, &call.Name, &call.Arguments); err != nil {
			return nil, err
		}
		m.Role = models.Role(role)
		if content.Valid {
			text := content.String
			m.Content = &text
		}
		if call.Name != "" {
			m.ToolCall = &call
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return msgs, nil
}

// LookupSession finds a session by id or unique id prefix.
func LookupSession(ctx context.Context, db *sql.DB, idOrPrefix string) (models.SessionListItem, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, created_at, updated_at, last_user_prompt, model_id, log_path, used_tokens FROM sessions WHERE substr(id, 1, ?) = ? ORDER BY updated_at DESC LIMIT 2",
		len(idOrPrefix),
		idOrPrefix,
	)
	if err != nil {
		return models.SessionListItem{}, err
	}
	defer rows.Close()

	var found []models.SessionListItem
	for rows.Next() {
		var it models.SessionListItem
		if err := rows.Scan(&it.ID, &it.CreatedAtUnix, &it.UpdatedAtUnix, &it.LastUserPrompt, &it.ModelID, &it.LogPath, &it.UsedTokens); err != nil {
			return models.SessionListItem{}, err
		}
		found = append(found, it)
	}
	if err := rows.Err(); err != nil {
		return models.SessionListItem{}, err
	}

	switch len(found) {
	case 0:
		return models.SessionListItem{}, fmt.Errorf("session %q: %w", idOrPrefix, ErrNotFound)
	case 1:
		return found[0], nil
	default:
		return models.SessionListItem{}, fmt.Errorf("session prefix %q is ambiguous", idOrPrefix)
	}
}

var ErrNotFound = errors.New("not found")

// PromptPreview shortens a prompt to one line for listings.
func PromptPreview(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i] + " …"
	}
	return runewidth.Truncate(s, previewWidth, "…")
}
