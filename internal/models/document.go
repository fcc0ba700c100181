// Package models defines core data structures for documents, caller scopes, and queries.
package models

import "time"

// VisibilityClass says which kind of caller a document belongs to.
type VisibilityClass int

const (
	// VisibilityNone marks a document with neither an owner nor a session.
	VisibilityNone VisibilityClass = iota
	// VisibilityOwned marks a document uploaded by a registered user.
	VisibilityOwned
	// VisibilityEphemeral marks a document uploaded by an anonymous guest session.
	VisibilityEphemeral
)

// String returns the lowercase class name.
func (c VisibilityClass) String() string {
	switch c {
	case VisibilityOwned:
		return "owned"
	case VisibilityEphemeral:
		return "ephemeral"
	default:
		return "none"
	}
}

// Visibility holds the attributes used to decide which callers may see a document.
type Visibility struct {
	Class     VisibilityClass
	OwnerID   int64
	SessionID string
}

// Owned returns the visibility of a document belonging to ownerID.
func Owned(ownerID int64) Visibility {
	return Visibility{Class: VisibilityOwned, OwnerID: ownerID}
}

// Ephemeral returns the visibility of a document belonging to a guest session.
func Ephemeral(sessionID string) Visibility {
	return Visibility{Class: VisibilityEphemeral, SessionID: sessionID}
}

// Document is a persisted uploaded document.
type Document struct {
	ID        int64     `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Filename  string    `json:"filename" db:"filename"`
	FileType  string    `json:"file_type" db:"file_type"`
	Content   string    `json:"content" db:"content"`
	OwnerID   int64     `json:"owner_id,omitempty" db:"user_id"`
	SessionID string    `json:"session_id,omitempty" db:"session_id"`
	Ephemeral bool      `json:"ephemeral" db:"ephemeral"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Visibility derives the document's visibility from its owner and session fields.
func (d *Document) Visibility() Visibility {
	switch {
	case d.Ephemeral:
		return Ephemeral(d.SessionID)
	case d.OwnerID > 0:
		return Owned(d.OwnerID)
	default:
		return Visibility{Class: VisibilityNone}
	}
}

// SetVisibility copies v onto the document's owner and session fields.
func (d *Document) SetVisibility(v Visibility) {
	d.OwnerID, d.SessionID, d.Ephemeral = 0, "", false
	switch v.Class {
	case VisibilityOwned:
		d.OwnerID = v.OwnerID
	case VisibilityEphemeral:
		d.SessionID = v.SessionID
		d.Ephemeral = true
	}
}

// DocumentInput is the JSON body for uploading a document without a file.
type DocumentInput struct {
	Title    string `json:"title,omitempty"`
	Filename string `json:"filename,omitempty"`
	Content  string `json:"content"`
}

// DocumentSummary is the listing view of a document.
type DocumentSummary struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary returns the listing view of d.
func (d *Document) Summary() DocumentSummary {
	return DocumentSummary{ID: d.ID, Title: d.Title, Filename: d.Filename, CreatedAt: d.CreatedAt}
}
