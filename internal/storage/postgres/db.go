package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"

	"github.com/Vasu1712/scenyx-editor/internal/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS file_presence (
	user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	file_id    TEXT NOT NULL,
	entered_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (user_id, file_id)
);
CREATE TABLE IF NOT EXISTS file_edits (
	id                 TEXT NOT NULL,
	user_id            TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	file_id            TEXT NOT NULL,
	session_started_at TIMESTAMPTZ NOT NULL,
	file_opened_at     TIMESTAMPTZ NOT NULL,
	edited_at          TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (user_id, file_id)
);
CREATE TABLE IF NOT EXISTS files (
	id         TEXT PRIMARY KEY,
	owner_id   TEXT NOT NULL,
	name       TEXT NOT NULL,
	document   BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// Open connects to PostgreSQL and creates the tables if they are missing.
func Open(ctx context.Context, dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	logging.L().Info("connected to PostgreSQL", zap.Int("max_open_conns", 25))
	return db, nil
}
