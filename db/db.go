package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"ytscribe/transcript"
)

var DB *sql.DB

// InitializeDB opens the transcript cache, creating the file and schema if
// needed. Cached records are keyed by video ID and preferred language so a
// repeat invocation does not submit (and bill) a new run.
func InitializeDB(dbPath string) error {
	logrus.WithField("path", dbPath).Debug("Initializing transcript cache")

	// Ensure the directory for the database file exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return fmt.Errorf("error creating directory for database: %v", err)
	}

	var err error
	DB, err = sql.Open("sqlite3", dbPath)
	if err != nil {
		return fmt.Errorf("error opening database: %v", err)
	}

	// Set connection pool settings
	DB.SetMaxOpenConns(2)
	DB.SetMaxIdleConns(1)
	DB.SetConnMaxLifetime(30 * time.Minute)

	_, err = DB.Exec(`CREATE TABLE IF NOT EXISTS transcripts (
                    id INTEGER PRIMARY KEY AUTOINCREMENT,
                    video_id TEXT NOT NULL,
                    language TEXT NOT NULL DEFAULT '',
                    record TEXT NOT NULL,
                    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
                    UNIQUE(video_id, language)
)`)
	if err != nil {
		DB.Close() // Close the database connection in case of an error
		return fmt.Errorf("error creating table: %v", err)
	}

	return nil
}

// GetRecord returns the cached record for a video and language, or nil
// when there is none.
func GetRecord(ctx context.Context, videoID, language string) (*transcript.Record, error) {
	var raw string
	err := DB.QueryRowContext(ctx,
		"SELECT record FROM transcripts WHERE video_id = ? AND language = ?",
		videoID, language).Scan(&raw)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("error querying database: %v", err)
	}

	var record transcript.Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("error decoding cached record: %v", err)
	}

	return &record, nil
}

func SaveRecord(ctx context.Context, videoID, language string, record *transcript.Record) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("error encoding record: %v", err)
	}

	tx, err := DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %v", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO transcripts (video_id, language, record) VALUES (?, ?, ?) "+
			"ON CONFLICT(video_id, language) DO UPDATE SET record=excluded.record, created_at=CURRENT_TIMESTAMP")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("error preparing statement: %v", err)
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, videoID, language, string(raw))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("error executing statement: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %v", err)
	}

	return nil
}

func DeleteRecord(ctx context.Context, videoID, language string) error {
	tx, err := DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %v", err)
	}

	stmt, err := tx.PrepareContext(ctx, "DELETE FROM transcripts WHERE video_id = ? AND language = ?")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("error preparing delete statement: %v", err)
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, videoID, language)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("error executing delete statement: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %v", err)
	}

	return nil
}
