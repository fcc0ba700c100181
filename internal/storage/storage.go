// Package storage persists uploaded documents. It is the source of truth the
// in-memory index is rebuilt from.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/docqa/internal/models"
)

var (
	// ErrNotFound is returned when a document id does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrEmptyContent is returned when creating a document without text.
	ErrEmptyContent = errors.New("document content is empty")
)

// Storage defines document persistence operations.
type Storage interface {
	// CreateDocument assigns doc.ID and doc.CreatedAt and stores it.
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id int64) (*models.Document, error)
	DeleteDocument(ctx context.Context, id int64) error
	// DeleteDocuments removes all ids in one transaction. Unknown ids are ignored.
	DeleteDocuments(ctx context.Context, ids []int64) error
	// ListDocuments returns every document in id order.
	ListDocuments(ctx context.Context) ([]*models.Document, error)
	// ListEphemeralBefore returns ephemeral documents created strictly before cutoff, in id order.
	ListEphemeralBefore(ctx context.Context, cutoff time.Time) ([]*models.Document, error)
	CountDocuments(ctx context.Context) (int64, error)
	Close() error
}

// Drivers accepted by Open.
const (
	DriverSQLite = "sqlite"
	DriverBolt   = "bolt"
)

// Open returns the storage selected by driver, stored at path.
func Open(driver, path string) (Storage, error) {
	switch strings.ToLower(driver) {
	case "", DriverSQLite:
		return NewSQLiteStorage(path)
	case DriverBolt:
		return NewBoltStorage(path)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

func validate(doc *models.Document) error {
	if strings.TrimSpace(doc.Content) == "" {
		return ErrEmptyContent
	}
	return nil
}
