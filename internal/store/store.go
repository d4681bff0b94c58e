// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ashureev/providata-intake/internal/domain"
)

// ErrVersionConflict is returned by SaveSession when the stored session was
// written by someone else since it was read.
var ErrVersionConflict = errors.New("session version conflict")

// SessionStore persists one dialogue session per identity.
type SessionStore interface {
	// GetSession returns the stored session, or nil if the identity is unseen.
	GetSession(ctx context.Context, identity string) (*domain.Session, error)

	// SaveSession writes the session if its Version still matches the stored one
	// and increments Version on success. A zero Version inserts a new row.
	SaveSession(ctx context.Context, session *domain.Session) error

	// ResetSession unconditionally overwrites the stored session and sets the new Version.
	ResetSession(ctx context.Context, session *domain.Session) error
}

// Directory is the domain data the dialogue reads and writes.
type Directory interface {
	// FindOfficesByMunicipality does a case- and accent-insensitive partial match on active offices.
	FindOfficesByMunicipality(ctx context.Context, municipality string) ([]domain.Office, error)

	// ListMunicipalitiesWithOffices returns the distinct municipalities with an active office, sorted.
	ListMunicipalitiesWithOffices(ctx context.Context) ([]string, error)

	// FindCategoriesForOffice returns the office's active categories, or the
	// general ones when the office defines none.
	FindCategoriesForOffice(ctx context.Context, officeID string) ([]domain.Category, error)

	// UpsertContact finds a contact by phone, updating changed fields, or creates one.
	UpsertContact(ctx context.Context, in domain.ContactInput) (domain.Contact, error)

	// CreateRequest registers a request and returns it with its tracking code.
	CreateRequest(ctx context.Context, req domain.NewRequest) (domain.Request, error)
}

// Deduplicator records provider message ids that were already handled.
type Deduplicator interface {
	// MarkProcessed records messageID and reports whether it was seen for the first time.
	MarkProcessed(ctx context.Context, messageID string, at time.Time) (bool, error)

	// PruneProcessed removes ids recorded before the threshold.
	PruneProcessed(ctx context.Context, before time.Time) (int64, error)
}

// Repository is the full persistence surface of the service.
type Repository interface {
	SessionStore
	Directory
	Deduplicator

	// UpsertOffice creates or updates an office.
	UpsertOffice(ctx context.Context, office domain.Office) error

	// UpsertCategory creates or updates a category.
	UpsertCategory(ctx context.Context, category domain.Category) error

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
