// Package attach manages the mesh drop directory. Files land there via
// the attach subcommand (or any external copy); the newest .msh file is
// the one a submission would carry. A fsnotify watcher keeps the answer
// current while the chat TUI is open.
package attach

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"foampilot/internal/backend"
	"foampilot/internal/logging"
)

// MeshInfo describes one queued mesh file.
type MeshInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// Store scans a drop directory for mesh files, newest first.
type Store struct {
	mu      sync.RWMutex
	dir     string
	latest  string
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// IsMesh reports whether a filename is accepted for the mesh slot.
// Exactly one extension is: anything else never reaches the bridge.
func IsMesh(name string) bool {
	return strings.EqualFold(filepath.Ext(name), backend.MeshExt)
}

// NewStore opens (creating if needed) the drop directory and performs an
// initial scan.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create attachment directory: %w", err)
	}
	s := &Store{dir: dir}
	if err := s.Rescan(); err != nil {
		return nil, err
	}
	return s, nil
}

// LatestMesh returns the newest queued mesh path, or "".
func (s *Store) LatestMesh() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// List returns all queued meshes, newest first.
func (s *Store) List() ([]MeshInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var meshes []MeshInfo
	for _, entry := range entries {
		if entry.IsDir() || !IsMesh(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		meshes = append(meshes, MeshInfo{
			Path:    filepath.Join(s.dir, entry.Name()),
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(meshes, func(i, j int) bool {
		return meshes[i].ModTime.After(meshes[j].ModTime)
	})
	return meshes, nil
}

// Rescan re-derives the latest mesh from the directory contents.
func (s *Store) Rescan() error {
	meshes, err := s.List()
	if err != nil {
		return err
	}
	latest := ""
	if len(meshes) > 0 {
		latest = meshes[0].Path
	}

	s.mu.Lock()
	changed := s.latest != latest
	s.latest = latest
	s.mu.Unlock()
	if changed {
		logging.Store("attachment: latest mesh now %q", filepath.Base(latest))
	}
	return nil
}

// Add copies a mesh file into the drop directory and makes it the
// latest. Non-mesh extensions are rejected.
func (s *Store) Add(path string) (string, error) {
	if !IsMesh(path) {
		return "", fmt.Errorf("only %s mesh files are supported, got %q", backend.MeshExt, filepath.Base(path))
	}

	src, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	dest := filepath.Join(s.dir, filepath.Base(path))
	dst, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", err
	}
	if err := dst.Close(); err != nil {
		return "", err
	}

	if err := s.Rescan(); err != nil {
		return "", err
	}
	return dest, nil
}

// Watch starts a fsnotify loop that rescans on directory changes.
// Stops when Close is called.
func (s *Store) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return err
	}

	s.mu.Lock()
	s.watcher = watcher
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go func() {
		for {
			select {
			case <-done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if IsMesh(event.Name) {
					_ = s.Rescan()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Store("attachment watcher: %v", err)
			}
		}
	}()
	return nil
}

// Close stops the watcher, if running.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	if s.watcher != nil {
		err := s.watcher.Close()
		s.watcher = nil
		return err
	}
	return nil
}
