package datastore

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("path not found")

// Store is the boundary to the hierarchical data service. Paths are
// slash-separated ("users/<uid>", "products/<pid>"); values are JSON
// objects. Reading a collection path ("products") returns a map of child
// key to child object.
type Store interface {
	Write(ctx context.Context, path string, value map[string]any) error
	Read(ctx context.Context, path string) (map[string]any, error)
	Update(ctx context.Context, path string, partial map[string]any) error
	Delete(ctx context.Context, path string) error
	QueryEqual(ctx context.Context, collection, field, value string) (map[string]map[string]any, error)
}
