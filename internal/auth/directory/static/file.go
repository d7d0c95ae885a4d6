package static

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/aussiebroadwan/gatehouse/internal/auth/directory"
	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
)

// File serves users from a JSON file of the form {"users": [...]}.
// Entries carry argon2id hashes in passwordHash rather than plaintext
// passwords. Watch reloads the file whenever it changes on disk.
type File struct {
	path string

	mu    sync.RWMutex
	users []domain.User
}

// Load reads path once.
func Load(path string) (*File, error) {
	f := &File{path: path}
	if err := f.reload(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) reload() error {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("read users file: %w", err)
	}

	var doc domain.UserSearch
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse users file: %w", err)
	}

	seen := make(map[int64]struct{}, len(doc.Users))
	for i, u := range doc.Users {
		if u.Username == "" {
			return fmt.Errorf("users file: entry %d has no username", i)
		}
		if u.Password != "" {
			return fmt.Errorf("users file: %s has a plaintext password", u.Username)
		}
		if _, dup := seen[u.ID]; dup {
			return fmt.Errorf("users file: duplicate id %d", u.ID)
		}
		seen[u.ID] = struct{}{}
	}

	f.mu.Lock()
	f.users = doc.Users
	f.mu.Unlock()
	return nil
}

// FetchUser matches query case-insensitively against username, first and
// last name, the way the hosted directory searches.
func (f *File) FetchUser(_ context.Context, query string) (*domain.UserSearch, error) {
	q := strings.ToLower(query)

	f.mu.RLock()
	defer f.mu.RUnlock()

	out := &domain.UserSearch{Users: []domain.User{}}
	for _, u := range f.users {
		if strings.Contains(strings.ToLower(u.Username), q) ||
			strings.Contains(strings.ToLower(u.FirstName), q) ||
			strings.Contains(strings.ToLower(u.LastName), q) {
			out.Users = append(out.Users, u)
		}
	}
	out.Total = len(out.Users)
	return out, nil
}

func (f *File) GetUser(_ context.Context, id int64) (*domain.User, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	i := slices.IndexFunc(f.users, func(u domain.User) bool { return u.ID == id })
	if i < 0 {
		return nil, directory.ErrUserNotFound
	}
	u := f.users[i]
	return &u, nil
}

// Watch reloads the file on every change until ctx is done. A file that
// fails to parse is logged and the previous users are kept. The parent
// directory is watched so editors that replace the file are picked up.
func (f *File) Watch(ctx context.Context, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(f.path)); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", f.path, err)
	}

	go func() {
		defer w.Close()
		name := filepath.Clean(f.path)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != name || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := f.reload(); err != nil {
					logger.Error("users file reload failed", "path", f.path, "error", err)
					continue
				}
				logger.Info("users file reloaded", "path", f.path)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("users file watcher error", "error", err)
			}
		}
	}()
	return nil
}

var _ directory.Directory = (*File)(nil)
