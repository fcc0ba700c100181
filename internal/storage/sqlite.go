package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/docqa/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// created_at holds unix nanoseconds so cutoff comparisons are numeric.
func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER,
		session_id TEXT,
		ephemeral INTEGER NOT NULL DEFAULT 0,
		title TEXT,
		filename TEXT,
		file_type TEXT,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_user_id ON documents(user_id);
	CREATE INDEX IF NOT EXISTS idx_documents_ephemeral_created ON documents(ephemeral, created_at);
	`
	_, err := db.Exec(schema)
	return err
}

const selectColumns = `SELECT id, user_id, session_id, ephemeral, title, filename, file_type, content, created_at FROM documents`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var (
		doc       models.Document
		userID    sql.NullInt64
		sessionID sql.NullString
		title     sql.NullString
		filename  sql.NullString
		fileType  sql.NullString
		createdAt int64
	)
	if err := row.Scan(&doc.ID, &userID, &sessionID, &doc.Ephemeral, &title, &filename, &fileType, &doc.Content, &createdAt); err != nil {
		return nil, err
	}
	doc.OwnerID = userID.Int64
	doc.SessionID = sessionID.String
	doc.Title = title.String
	doc.Filename = filename.String
	doc.FileType = fileType.String
	doc.CreatedAt = time.Unix(0, createdAt).UTC()
	return &doc, nil
}

// CreateDocument inserts a document and sets its ID and CreatedAt.
func (s *SQLiteStorage) CreateDocument(ctx context.Context, doc *models.Document) error {
	if err := validate(doc); err != nil {
		return err
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	userID := sql.NullInt64{Int64: doc.OwnerID, Valid: doc.OwnerID > 0}
	sessionID := sql.NullString{String: doc.SessionID, Valid: doc.SessionID != ""}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (user_id, session_id, ephemeral, title, filename, file_type, content, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, sessionID, doc.Ephemeral, doc.Title, doc.Filename, doc.FileType, doc.Content, doc.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read document id: %w", err)
	}
	doc.ID = id
	return nil
}

// GetDocument returns a document by ID.
func (s *SQLiteStorage) GetDocument(ctx context.Context, id int64) (*models.Document, error) {
	doc, err := scanDocument(s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// DeleteDocument removes a document by ID.
func (s *SQLiteStorage) DeleteDocument(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}

// DeleteDocuments removes ids in a single transaction.
func (s *SQLiteStorage) DeleteDocuments(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM documents WHERE id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("delete document %d: %w", id, err)
		}
	}
	return tx.Commit()
}

// ListDocuments returns every document ordered by id.
func (s *SQLiteStorage) ListDocuments(ctx context.Context) ([]*models.Document, error) {
	return s.query(ctx, selectColumns+` ORDER BY id`)
}

// ListEphemeralBefore returns ephemeral documents created before cutoff.
func (s *SQLiteStorage) ListEphemeralBefore(ctx context.Context, cutoff time.Time) ([]*models.Document, error) {
	return s.query(ctx, selectColumns+` WHERE ephemeral = 1 AND created_at < ? ORDER BY id`, cutoff.UnixNano())
}

func (s *SQLiteStorage) query(ctx context.Context, q string, args ...any) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// CountDocuments returns the total number of documents.
func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
