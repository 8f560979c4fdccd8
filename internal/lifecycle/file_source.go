package lifecycle

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/timetracker/internal/foundation/errors"
	"git.home.luguber.info/inful/timetracker/internal/logfields"
)

// FileSource reads the state from a small text file ("visible", "hidden" or
// "pagehide") and reports a new state whenever the file changes. Desktop
// session hooks can write the file on lock/unlock.
type FileSource struct {
	path     string
	watcher  *fsnotify.Watcher
	stopChan chan struct{}
	wg       sync.WaitGroup

	mu      sync.Mutex
	started bool
}

// NewFileSource creates a FileSource for path.
func NewFileSource(path string) (*FileSource, error) {
	if path == "" {
		return nil, errors.ConfigError("file lifecycle source requires a path").Build()
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.ConfigError("failed to resolve lifecycle file path").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	return &FileSource{path: absPath, stopChan: make(chan struct{})}, nil
}

func (fs *FileSource) Name() string { return string(KindFile) }

// Initial returns the state currently in the file, or fallback when the file
// is missing or unreadable.
func (fs *FileSource) Initial(fallback State) State {
	s, err := fs.read()
	if err != nil {
		return fallback
	}
	return s
}

// Start watches the file's directory; watching the directory survives editors
// that replace the file on save.
func (fs *FileSource) Start(ctx context.Context, d *Dispatcher) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.started {
		return errors.LifecycleError("file source already started").Build()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.LifecycleError("failed to create file watcher").WithCause(err).Build()
	}
	dir := filepath.Dir(fs.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return errors.LifecycleError("failed to watch lifecycle directory").
			WithCause(err).
			WithContext("dir", dir).
			Build()
	}
	fs.watcher = watcher
	fs.started = true

	slog.Info("Watching lifecycle file", slog.String("path", fs.path))

	fs.wg.Add(1)
	go fs.watchLoop(ctx, d)
	return nil
}

// Stop stops the watcher and waits for the watch loop to exit.
func (fs *FileSource) Stop() error {
	fs.mu.Lock()
	if !fs.started {
		fs.mu.Unlock()
		return nil
	}
	fs.started = false
	close(fs.stopChan)
	err := fs.watcher.Close()
	fs.mu.Unlock()

	fs.wg.Wait()
	if err != nil {
		return errors.LifecycleError("failed to close file watcher").WithCause(err).Build()
	}
	return nil
}

func (fs *FileSource) watchLoop(ctx context.Context, d *Dispatcher) {
	defer fs.wg.Done()
	name := filepath.Base(fs.path)

	for {
		select {
		case <-ctx.Done():
			return
		case <-fs.stopChan:
			return
		case event, ok := <-fs.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			fs.reload(d)
		case err, ok := <-fs.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Lifecycle watcher error", logfields.Error(err))
		}
	}
}

// reload dispatches the file's state when it differs from the dispatcher's
// current state, which other sources may have changed since the last write.
// Editors often emit several events per save.
func (fs *FileSource) reload(d *Dispatcher) {
	s, err := fs.read()
	if err != nil {
		slog.Debug("Ignoring unreadable lifecycle file", slog.String("path", fs.path), logfields.Error(err))
		return
	}
	if s != d.Current() {
		d.Dispatch(fs.Name(), s)
	}
}

func (fs *FileSource) read() (State, error) {
	// #nosec G304 - path comes from operator configuration
	data, err := os.ReadFile(fs.path)
	if err != nil {
		return "", err
	}
	return ParseState(strings.TrimSpace(string(data)))
}
