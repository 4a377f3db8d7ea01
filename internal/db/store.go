package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"robopilot/internal/models"
)

// Store mirrors one session into the history database. The session row is
// created on the first write.
type Store struct {
	db      *sql.DB
	id      string
	model   string
	logPath string
	now     func() time.Time
	created bool
}

func NewStore(db *sql.DB, model, logPath string) *Store {
	return &Store{
		db:      db,
		id:      uuid.NewString(),
		model:   model,
		logPath: logPath,
		now:     time.Now,
	}
}

// ID is the session id, also used by the Redis mirror.
func (s *Store) ID() string {
	return s.id
}

func (s *Store) Write(ctx context.Context, m models.Message) error {
	nowUnix := s.now().Unix()
	if !s.created {
		if err := CreateSession(ctx, s.db, s.id, nowUnix, s.model, s.logPath); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		s.created = true
	}

	if err := InsertMessage(ctx, s.db, s.id, m, nowUnix); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if m.Role == models.RoleUser {
		return UpdateSessionOnUser(ctx, s.db, s.id, nowUnix, PromptPreview(m.Text()))
	}
	return TouchSession(ctx, s.db, s.id, nowUnix)
}

func (s *Store) Close(ctx context.Context, sum models.Summary) error {
	if !s.created {
		return nil
	}
	return CloseSession(ctx, s.db, s.id, s.now().Unix(), sum.UsedTokens)
}
