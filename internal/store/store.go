// Package store provides data storage interfaces and implementations.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/vyrodovalexey/itemstats/internal/model"
)

// Store errors.
var (
	ErrNotFound  = errors.New("item not found")
	ErrInvalidID = errors.New("invalid item ID")
	ErrNilItem   = errors.New("item cannot be nil")

	// ErrStorage marks failures reading or writing the backing file.
	ErrStorage = errors.New("storage error")

	// ErrMalformedTable is returned when the backing file exists but cannot
	// be parsed as an item table. It matches ErrStorage with errors.Is.
	ErrMalformedTable = fmt.Errorf("malformed item table: %w", ErrStorage)
)

// Store defines the interface for item storage operations.
type Store interface {
	// List returns all items in stored order.
	List(ctx context.Context) ([]model.Item, error)

	// Get retrieves an item by its ID.
	Get(ctx context.Context, id int64) (*model.Item, error)

	// Create appends a new item and returns it with its assigned ID.
	Create(ctx context.Context, item *model.Item) (*model.Item, error)

	// Delete removes an item from the store by its ID.
	Delete(ctx context.Context, id int64) error
}
