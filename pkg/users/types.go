package users

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/platinummonkey/idsync/pkg/identity"
)

var (
	// ErrNotFound is returned when no record exists for a subject ID
	ErrNotFound = errors.New("user record not found")

	// ErrMissingSubject is returned when an upsert has no conflict key
	ErrMissingSubject = errors.New("subject_id is required")
)

// Record is the persisted mirror of a user's identity claims. SubjectID is
// the sole conflict key; every other mutable field is fully replaced on
// each successful sync.
type Record struct {
	SubjectID   string
	Email       sql.NullString
	DisplayName sql.NullString
	AvatarURL   sql.NullString
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RecordFromClaims builds the record written for a claims snapshot.
// Absent optional claims are stored as NULL.
func RecordFromClaims(claims identity.Claims, now time.Time) *Record {
	return &Record{
		SubjectID:   claims.SubjectID,
		Email:       nullable(claims.Email),
		DisplayName: nullable(claims.DisplayName),
		AvatarURL:   nullable(claims.AvatarURL),
		UpdatedAt:   now,
	}
}

// View is the JSON form of a record
type View struct {
	SubjectID   string    `json:"subject_id"`
	Email       *string   `json:"email"`
	DisplayName *string   `json:"display_name"`
	AvatarURL   *string   `json:"avatar_url"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// View converts the record for JSON encoding, keeping NULLs as null.
func (r *Record) View() View {
	return View{
		SubjectID:   r.SubjectID,
		Email:       ptr(r.Email),
		DisplayName: ptr(r.DisplayName),
		AvatarURL:   ptr(r.AvatarURL),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// Store persists user records keyed by subject ID.
// Implementations must make Upsert atomic per call.
type Store interface {
	// Upsert inserts the record or replaces the mutable fields of the
	// existing record with the same SubjectID.
	Upsert(ctx context.Context, record *Record) error

	// Get returns the record for subjectID or ErrNotFound.
	Get(ctx context.Context, subjectID string) (*Record, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func ptr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
