package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/hyperjump/docqa/internal/models"
)

var documentsBucket = []byte("documents")

// BoltStorage implements Storage on a bbolt file. Documents are JSON values
// keyed by their big-endian id so cursor order is id order.
type BoltStorage struct {
	db *bolt.DB
}

// NewBoltStorage opens or creates the bbolt database at path.
func NewBoltStorage(path string) (*BoltStorage, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(documentsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}
	return &BoltStorage{db: db}, nil
}

func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

// CreateDocument stores doc under the bucket's next sequence number.
func (s *BoltStorage) CreateDocument(ctx context.Context, doc *models.Document) error {
	if err := validate(doc); err != nil {
		return err
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(documentsBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		doc.ID = int64(seq)
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshal document: %w", err)
		}
		return b.Put(itob(doc.ID), data)
	})
}

// GetDocument returns a document by ID.
func (s *BoltStorage) GetDocument(ctx context.Context, id int64) (*models.Document, error) {
	var doc *models.Document
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(documentsBucket).Get(itob(id))
		if data == nil {
			return fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		doc = &models.Document{}
		return json.Unmarshal(data, doc)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// DeleteDocument removes a document by ID.
func (s *BoltStorage) DeleteDocument(ctx context.Context, id int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(documentsBucket)
		if b.Get(itob(id)) == nil {
			return fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return b.Delete(itob(id))
	})
}

// DeleteDocuments removes ids in one transaction.
func (s *BoltStorage) DeleteDocuments(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(documentsBucket)
		for _, id := range ids {
			if err := b.Delete(itob(id)); err != nil {
				return fmt.Errorf("delete document %d: %w", id, err)
			}
		}
		return nil
	})
}

// ListDocuments returns every document ordered by id.
func (s *BoltStorage) ListDocuments(ctx context.Context) ([]*models.Document, error) {
	return s.scan(func(*models.Document) bool { return true })
}

// ListEphemeralBefore returns ephemeral documents created before cutoff.
func (s *BoltStorage) ListEphemeralBefore(ctx context.Context, cutoff time.Time) ([]*models.Document, error) {
	return s.scan(func(d *models.Document) bool {
		return d.Ephemeral && d.CreatedAt.Before(cutoff)
	})
}

func (s *BoltStorage) scan(keep func(*models.Document) bool) ([]*models.Document, error) {
	var docs []*models.Document
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(documentsBucket).ForEach(func(k, v []byte) error {
			var doc models.Document
			if err := json.Unmarshal(v, &doc); err != nil {
				return fmt.Errorf("unmarshal document %d: %w", binary.BigEndian.Uint64(k), err)
			}
			if keep(&doc) {
				docs = append(docs, &doc)
			}
			return nil
		})
	})
	return docs, err
}

// CountDocuments returns the number of stored documents.
func (s *BoltStorage) CountDocuments(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.View(func(tx *bolt.Tx) error {
		n = int64(tx.Bucket(documentsBucket).Stats().KeyN)
		return nil
	})
	return n, err
}

// Close closes the database file.
func (s *BoltStorage) Close() error {
	return s.db.Close()
}
