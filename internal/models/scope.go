package models

import "fmt"

// ScopeKind identifies which variant a Scope holds.
type ScopeKind int

const (
	scopeUnset ScopeKind = iota
	// ScopeAdministrator sees every non-ephemeral document.
	ScopeAdministrator
	// ScopeOwner sees the documents of one registered user.
	ScopeOwner
	// ScopeSession sees the ephemeral documents of one guest session.
	ScopeSession
)

// Scope is the resolved identity of a caller. It is built once per request from
// already-authenticated input and never mutated. The zero Scope sees nothing.
type Scope struct {
	kind      ScopeKind
	userID    int64
	sessionID string
}

// Administrator returns an administrator scope. userID is the administrator's own
// account and only affects the visibility of documents they upload; 0 means none.
func Administrator(userID int64) Scope {
	return Scope{kind: ScopeAdministrator, userID: userID}
}

// Owner returns the scope of a registered user.
func Owner(userID int64) Scope {
	return Scope{kind: ScopeOwner, userID: userID}
}

// Session returns the scope of a guest session.
func Session(sessionID string) Scope {
	return Scope{kind: ScopeSession, sessionID: sessionID}
}

// Kind returns the scope variant.
func (s Scope) Kind() ScopeKind { return s.kind }

// UserID returns the user id of an administrator or owner scope.
func (s Scope) UserID() int64 { return s.userID }

// SessionID returns the session id of a session scope.
func (s Scope) SessionID() string { return s.sessionID }

// IsAdministrator reports whether s is an administrator scope.
func (s Scope) IsAdministrator() bool { return s.kind == ScopeAdministrator }

// Valid reports whether s identifies a caller.
func (s Scope) Valid() bool {
	switch s.kind {
	case ScopeAdministrator:
		return true
	case ScopeOwner:
		return s.userID > 0
	case ScopeSession:
		return s.sessionID != ""
	default:
		return false
	}
}

// Allows reports whether a caller with scope s may see a document with visibility v.
func (s Scope) Allows(v Visibility) bool {
	switch s.kind {
	case ScopeAdministrator:
		return v.Class != VisibilityEphemeral
	case ScopeOwner:
		return s.userID > 0 && v.Class == VisibilityOwned && v.OwnerID == s.userID
	case ScopeSession:
		return s.sessionID != "" && v.Class == VisibilityEphemeral && v.SessionID == s.sessionID
	default:
		return false
	}
}

// UploadVisibility returns the visibility given to documents uploaded under s.
func (s Scope) UploadVisibility() Visibility {
	switch s.kind {
	case ScopeOwner:
		return Owned(s.userID)
	case ScopeSession:
		return Ephemeral(s.sessionID)
	case ScopeAdministrator:
		if s.userID > 0 {
			return Owned(s.userID)
		}
	}
	return Visibility{Class: VisibilityNone}
}

// String is used in logs.
func (s Scope) String() string {
	switch s.kind {
	case ScopeAdministrator:
		return fmt.Sprintf("admin(%d)", s.userID)
	case ScopeOwner:
		return fmt.Sprintf("owner(%d)", s.userID)
	case ScopeSession:
		return fmt.Sprintf("session(%s)", s.sessionID)
	default:
		return "none"
	}
}
