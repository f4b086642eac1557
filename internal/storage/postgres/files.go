package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Vasu1712/scenyx-editor/internal/models"
	"github.com/Vasu1712/scenyx-editor/internal/storage"
)

// FileStore persists file records in PostgreSQL.
type FileStore struct {
	db *sql.DB
}

func NewFileStore(db *sql.DB) *FileStore {
	return &FileStore{db: db}
}

// CreateFiles inserts one file per snapshot in a single transaction.
func (s *FileStore) CreateFiles(ctx context.Context, ownerID string, snapshots []models.FileSnapshot) ([]models.FileID, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ids := make([]models.FileID, 0, len(snapshots))
	for _, snap := range snapshots {
		id := models.NewFileID(uuid.NewString())
		_, err := tx.ExecContext(ctx,
			`INSERT INTO files (id, owner_id, name, document) VALUES ($1, $2, $3, $4)`,
			string(id), ownerID, snap.Name, snap.Document)
		if err != nil {
			return nil, fmt.Errorf("failed to create file %q: %w", snap.Name, err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit files: %w", err)
	}
	return ids, nil
}

func (s *FileStore) GetFile(ctx context.Context, fileID models.FileID) (*models.File, error) {
	file := &models.File{}
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, document, created_at FROM files WHERE id = $1`, string(fileID)).
		Scan(&id, &file.OwnerID, &file.Name, &file.Document, &file.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file %s: %w", fileID, err)
	}
	file.ID = models.FileID(id)
	return file, nil
}
