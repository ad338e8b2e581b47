// Package storage defines the client-local durable key/value store.
//
// It plays the role a browser's localStorage plays for a web client: small
// structured-text values under fixed keys, surviving restarts.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by GetItem when the key is absent.
var ErrNotFound = errors.New("storage: key not found")

// Storage is a string key/value store.
type Storage interface {
	GetItem(ctx context.Context, key string) (string, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
	// Keys returns all keys with the given prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}
