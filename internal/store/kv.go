// Package store provides durable per-profile key-value storage for editor
// state: the current document markup and the saved citation forms.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Well-known keys. Form keys are derived by the citation package.
const (
	KeyEditorContent = "editorContent"
	KeyDocumentTitle = "documentTitle"
)

// ErrNotFound is returned by Get when no entry exists for the key.
var ErrNotFound = errors.New("storage entry not found")

// KV is durable storage scoped by profile. Each browser profile owns its own
// key space.
type KV interface {
	Get(ctx context.Context, profile, key string) (string, error)
	Set(ctx context.Context, profile, key, value string) error
	Delete(ctx context.Context, profile, key string) error
	Ping(ctx context.Context) error
}

// StorageError wraps a backend failure with the operation and key involved.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Wrap turns a backend error into a StorageError. nil and ErrNotFound pass
// through unchanged.
func Wrap(op, key string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	return &StorageError{Op: op, Key: key, Err: err}
}
