package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"git.home.luguber.info/inful/timetracker/internal/foundation/errors"
)

// FileStore is a filesystem-based implementation of Store. Every slot is a
// single file:
//
//	<base>/
//	  slots/
//	    unsentTimeSpent
//	    authToken
//
// Writes go through a temporary file and a rename so a crash mid-flush never
// leaves a truncated value behind.
type FileStore struct {
	basePath string
	mu       sync.RWMutex
}

// NewFileStore creates a new filesystem-based slot store.
func NewFileStore(basePath string) (*FileStore, error) {
	if basePath == "" {
		return nil, errors.ConfigError("file store requires a base path").Build()
	}
	dir := filepath.Join(basePath, "slots")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, errors.StorageError("create slot directory").
			WithCause(err).
			WithContext("path", dir).
			Build()
	}
	return &FileStore{basePath: basePath}, nil
}

// Get returns the value stored under key.
func (fs *FileStore) Get(_ context.Context, key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	// #nosec G304 - path is built from a validated key
	data, err := os.ReadFile(fs.slotPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrKeyNotFound.WithContext("key", key)
		}
		return "", errors.StorageError("read slot").WithCause(err).WithContext("key", key).Build()
	}
	return string(data), nil
}

// Set stores value under key.
func (fs *FileStore) Set(_ context.Context, key, value string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	target := fs.slotPath(key)
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+key+".*.tmp")
	if err != nil {
		return errors.StorageError("create temp slot").WithCause(err).WithContext("key", key).Build()
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.WriteString(value); err != nil {
		_ = tmp.Close()
		cleanup()
		return errors.StorageError("write slot").WithCause(err).WithContext("key", key).Build()
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return errors.StorageError("close slot").WithCause(err).WithContext("key", key).Build()
	}
	if err := os.Rename(tmpName, target); err != nil {
		cleanup()
		return errors.StorageError("commit slot").WithCause(err).WithContext("key", key).Build()
	}
	return nil
}

// Remove deletes the slot file.
func (fs *FileStore) Remove(_ context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.Remove(fs.slotPath(key)); err != nil && !os.IsNotExist(err) {
		return errors.StorageError("remove slot").WithCause(err).WithContext("key", key).Build()
	}
	return nil
}

// Close is a no-op; FileStore holds no open handles.
func (fs *FileStore) Close() error { return nil }

// Path returns the base directory of the store.
func (fs *FileStore) Path() string { return fs.basePath }

func (fs *FileStore) slotPath(key string) string {
	return filepath.Join(fs.basePath, "slots", key)
}

func (fs *FileStore) String() string {
	return fmt.Sprintf("file:%s", fs.basePath)
}
