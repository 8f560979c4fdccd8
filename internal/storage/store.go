// Package storage provides the persistent key/value slots timetracker keeps
// between runs (unsent duration, session credential, guest action stamps).
package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"regexp"

	"git.home.luguber.info/inful/timetracker/internal/foundation/errors"
)

// Store is a small string key/value store. It plays the role the browser's
// localStorage played for the original client: values are plain text and the
// last write wins.
type Store interface {
	// Get returns the value stored under key.
	// Returns ErrKeyNotFound if the slot is empty.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes the slot. Removing an empty slot is not an error.
	Remove(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}

// Driver identifies a Store implementation.
type Driver string

const (
	DriverFile   Driver = "file"
	DriverSQLite Driver = "sqlite"
	DriverMemory Driver = "memory"
)

var (
	// ErrKeyNotFound is returned by Get when the slot is empty.
	ErrKeyNotFound = errors.NotFoundError("storage slot is empty").Build()

	// ErrInvalidKey is returned for keys that cannot be used as slot names.
	ErrInvalidKey = errors.ValidationError("invalid storage key").Build()
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidateKey checks that key is usable by every driver.
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return ErrInvalidKey.WithContext("key", key)
	}
	return nil
}

// IsNotFound reports whether err signals an empty slot.
func IsNotFound(err error) bool {
	return stderrors.Is(err, ErrKeyNotFound)
}

// Open constructs the Store for driver rooted at path. The memory driver
// ignores path.
func Open(driver Driver, path string) (Store, error) {
	switch driver {
	case DriverFile, "":
		return NewFileStore(path)
	case DriverSQLite:
		return NewSQLiteStore(path)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, errors.ConfigError(fmt.Sprintf("unknown storage driver %q", driver)).Build()
	}
}
