package project

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeEvent reports that a root's toolchain version changed.
type ChangeEvent struct {
	Root    string
	Version string
	Path    string // version file that triggered the event
	Time    time.Time
}

// Handler receives version change events.
type Handler func(ChangeEvent)

// Service watches the version files of registered roots and fires
// change events when the configured toolchain changes. Writes, creates,
// removes, and renames all normalize into the same event; rapid
// successive changes are debounced.
type Service struct {
	mu sync.Mutex

	watcher  *fsnotify.Watcher
	roots    map[string]bool   // watched root dirs
	versions map[string]string // root -> last seen version
	handlers []Handler

	debounce time.Duration
	pending  map[string]*time.Timer // root -> debounce timer

	done   chan struct{}
	wg     sync.WaitGroup
	closed bool
}

// ServiceOption configures the service.
type ServiceOption func(*Service)

// WithDebounce sets the debounce window for rapid changes.
func WithDebounce(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d >= 0 {
			s.debounce = d
		}
	}
}

// NewService creates a version-file watch service and starts its event
// loop.
func NewService(opts ...ServiceOption) (*Service, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	s := &Service{
		watcher:  w,
		roots:    make(map[string]bool),
		versions: make(map[string]string),
		debounce: 100 * time.Millisecond,
		pending:  make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.wg.Add(1)
	go s.run()
	return s, nil
}

// Subscribe registers a handler for version changes.
func (s *Service) Subscribe(h Handler) {
	s.mu.Lock()
	s.handlers = append(s.handlers, h)
	s.mu.Unlock()
}

// WatchRoot starts watching a root's version files. The root directory
// itself is watched so file creation and deletion are seen.
func (s *Service) WatchRoot(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.roots[abs] {
		return nil
	}
	if err := s.watcher.Add(abs); err != nil {
		return err
	}
	s.roots[abs] = true
	s.versions[abs] = ReadLeanVersion(abs)
	return nil
}

// UnwatchRoot stops watching a root.
func (s *Service) UnwatchRoot(root string) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.roots[abs] {
		return
	}
	delete(s.roots, abs)
	delete(s.versions, abs)
	if t, ok := s.pending[abs]; ok {
		t.Stop()
		delete(s.pending, abs)
	}
	_ = s.watcher.Remove(abs)
}

// Version returns the last seen toolchain version for a watched root,
// or the default for unwatched roots.
func (s *Service) Version(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		return DefaultLeanVersion
	}

	s.mu.Lock()
	v, ok := s.versions[abs]
	s.mu.Unlock()

	if !ok {
		return ReadLeanVersion(abs)
	}
	return v
}

// Close stops the service and releases the underlying watcher.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for root, t := range s.pending {
		t.Stop()
		delete(s.pending, root)
	}
	s.mu.Unlock()

	close(s.done)
	err := s.watcher.Close()
	s.wg.Wait()
	return err
}

// run consumes fsnotify events until closed.
func (s *Service) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handleFSEvent(ev)
		case _, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			// Watcher errors are transient; the next event catches up.
		}
	}
}

// handleFSEvent filters raw events down to version-file changes and
// debounces them per root.
func (s *Service) handleFSEvent(ev fsnotify.Event) {
	base := filepath.Base(ev.Name)
	if base != ToolchainFile && base != LeanpkgFile {
		return
	}
	root := filepath.Dir(ev.Name)
	path := ev.Name

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.roots[root] {
		return
	}

	if t, ok := s.pending[root]; ok {
		t.Stop()
	}
	s.pending[root] = time.AfterFunc(s.debounce, func() {
		s.fire(root, path)
	})
}

// fire re-reads the version and notifies handlers when it changed.
func (s *Service) fire(root, path string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	delete(s.pending, root)

	version := ReadLeanVersion(root)
	if s.versions[root] == version {
		s.mu.Unlock()
		return
	}
	s.versions[root] = version
	handlers := make([]Handler, len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.Unlock()

	ev := ChangeEvent{Root: root, Version: version, Path: path, Time: time.Now()}
	for _, h := range handlers {
		h(ev)
	}
}
