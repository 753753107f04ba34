package persistence

import (
	"context"
	"errors"

	"github.com/osvaldoandrade/flowdb/pkg/domain"
)

var (
	// ErrNotFound is returned when a flow or blob does not exist
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when a flow id is already taken
	ErrAlreadyExists = errors.New("already exists")
)

// PluginPersistence provides storage operations for persistence plugins.
// This is the main interface that all persistence backends must implement.
type PluginPersistence interface {
	// FlowStorage returns the flow document storage
	FlowStorage() FlowStorage

	// FileStorage returns the blob storage for output artifacts
	FileStorage() FileStorage

	// Health checks if the persistence backend is healthy
	Health(ctx context.Context) error

	// Close releases resources held by the persistence backend
	Close() error
}

// FlowStorage stores flow documents. Works and tasks travel embedded in
// the flow; there is no per-child storage.
type FlowStorage interface {
	// Insert stores a new flow document; rec.ID must be set
	Insert(ctx context.Context, rec *domain.FlowRecord) error

	// Get retrieves a flow by ID
	Get(ctx context.Context, id string) (*domain.FlowRecord, error)

	// Delete removes the flow document. Referenced blobs are left alone.
	Delete(ctx context.Context, id string) error

	// List returns every stored flow, oldest first
	List(ctx context.Context) ([]*domain.FlowRecord, error)

	// FindByStatus returns the flows whose status equals status
	FindByStatus(ctx context.Context, status string) ([]*domain.FlowRecord, error)

	// CountByStatus returns the number of flows per status
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// FileStorage keeps the binary artifacts referenced from file-sets.
type FileStorage interface {
	// Put stores data under a new id and returns it
	Put(ctx context.Context, name string, data []byte) (string, error)

	// Get returns the full content of a blob
	Get(ctx context.Context, id string) ([]byte, error)

	// Delete removes a blob
	Delete(ctx context.Context, id string) error
}
