// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/artpar/eventdsl/core/event"
	"github.com/artpar/eventdsl/core/schema"
)

// ErrNotFound is returned by stores when the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// Metrics records runtime activity.
type Metrics interface {
	// ObserveValidation records one validation of typeID.
	ObserveValidation(typeID string, valid bool, errorCount int, d time.Duration)

	// ObserveRender records one render of typeID. err is the render error, if any.
	ObserveRender(typeID string, err error, d time.Duration)

	// ObserveReload records a catalog reload that left loaded types active.
	ObserveReload(loaded int, err error)
}

// -----------------------------------------------------------------------------
// Declaration Ports
// -----------------------------------------------------------------------------

// DeclarationSource supplies declarations to the catalog.
type DeclarationSource interface {
	// Name identifies the source in logs (e.g., "dir:./types").
	Name() string

	// Load returns every declaration the source currently holds.
	Load(ctx context.Context) ([]schema.TypeDeclaration, error)
}

// Revision is one stored version of a declaration's source text.
type Revision struct {
	ID        string    `json:"id"`
	TypeID    string    `json:"type"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// DeclarationStore persists declaration source text. Every Put adds a new
// revision; the latest revision of each type is the active one.
type DeclarationStore interface {
	// Put stores a new revision.
	Put(ctx context.Context, rev Revision) error

	// Latest returns the newest revision of every type, ordered by type id.
	Latest(ctx context.Context) ([]Revision, error)

	// History returns every revision of typeID, newest first.
	History(ctx context.Context, typeID string) ([]Revision, error)

	// Delete removes every revision of typeID.
	Delete(ctx context.Context, typeID string) error
}

// EventSource reads concrete events from an external format.
type EventSource interface {
	Events(ctx context.Context) ([]event.Event, error)
}
