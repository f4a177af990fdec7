// Package kv is the device-local key/value store behind the local storage
// strategy and the client caches.
package kv

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("key not found")

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete succeeds when the key does not exist.
	Delete(ctx context.Context, key string) error
}
