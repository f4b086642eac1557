package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Vasu1712/scenyx-editor/internal/logging"
	"github.com/Vasu1712/scenyx-editor/internal/models"
	"github.com/Vasu1712/scenyx-editor/internal/storage"
)

// UserStore persists users, presence and edit records in PostgreSQL.
type UserStore struct {
	db  *sql.DB
	log *zap.Logger
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db, log: logging.L().Named("postgres")}
}

// CreateUser inserts a user with a fresh id.
func (s *UserStore) CreateUser(ctx context.Context, name string) (*models.User, error) {
	user := &models.User{ID: uuid.NewString(), Name: name, Presence: models.Presence{FileIDs: []models.FileID{}}}
	_, err := s.db.ExecContext(ctx, `INSERT INTO users (id, name) VALUES ($1, $2)`, user.ID, user.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetUser loads a user together with its presence set.
func (s *UserStore) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM users WHERE id = $1`, userID).Scan(&user.ID, &user.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", userID, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT file_id FROM file_presence WHERE user_id = $1 ORDER BY entered_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get presence for user %s: %w", userID, err)
	}
	defer rows.Close()

	user.Presence.FileIDs = []models.FileID{}
	for rows.Next() {
		var fileID string
		if err := rows.Scan(&fileID); err != nil {
			return nil, fmt.Errorf("failed to scan presence row: %w", err)
		}
		user.Presence.FileIDs = append(user.Presence.FileIDs, models.FileID(fileID))
	}
	return user, rows.Err()
}

// EnterFile records that the user is present in fileID. ON CONFLICT keeps a
// repeated enter from failing.
func (s *UserStore) EnterFile(ctx context.Context, userID string, fileID models.FileID) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO file_presence (user_id, file_id)
		SELECT id, $2 FROM users WHERE id = $1
		ON CONFLICT (user_id, file_id) DO NOTHING`, userID, string(fileID))
	if err != nil {
		return fmt.Errorf("failed to enter file: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if _, err := s.GetUser(ctx, userID); errors.Is(err, storage.ErrUserNotFound) {
			return err
		}
	}
	s.log.Debug("user entered file", logging.User(userID), logging.File(string(fileID)))
	return nil
}

// ExitFile deletes the presence row of (userID, fileID), if any.
func (s *UserStore) ExitFile(ctx context.Context, userID string, fileID models.FileID) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM file_presence WHERE user_id = $1 AND file_id = $2`, userID, string(fileID))
	if err != nil {
		return fmt.Errorf("failed to exit file: %w", err)
	}
	s.log.Debug("user exited file", logging.User(userID), logging.File(string(fileID)))
	return nil
}

// PresentUsers lists the users currently present in fileID.
func (s *UserStore) PresentUsers(ctx context.Context, fileID models.FileID) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM file_presence WHERE file_id = $1 ORDER BY entered_at`, string(fileID))
	if err != nil {
		return nil, fmt.Errorf("failed to list presence for %s: %w", fileID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan presence row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RecordEdit upserts the latest edit of (rec.UserID, rec.FileID).
func (s *UserStore) RecordEdit(ctx context.Context, rec models.EditRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO file_edits (id, user_id, file_id, session_started_at, file_opened_at, edited_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, file_id) DO UPDATE SET
			session_started_at = EXCLUDED.session_started_at,
			file_opened_at = EXCLUDED.file_opened_at,
			edited_at = EXCLUDED.edited_at`,
		rec.ID, rec.UserID, string(rec.FileID), rec.SessionStartedAt, rec.FileOpenedAt, rec.EditedAt)
	if err != nil {
		return fmt.Errorf("failed to record edit: %w", err)
	}
	return nil
}
