package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FileStore keeps every decision in one JSON array on disk. It suits a
// single process; the mutex serialises read-modify-write cycles.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates dataDir if needed and stores decisions.json in it.
func NewFileStore(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{path: filepath.Join(dataDir, "decisions.json")}, nil
}

func (f *FileStore) Save(_ context.Context, d Decision) (Decision, error) {
	d = d.Normalize()
	f.mu.Lock()
	defer f.mu.Unlock()
	items, err := f.readAll()
	if err != nil {
		return Decision{}, err
	}
	replaced := false
	for i := range items {
		if items[i].ID == d.ID {
			items[i] = d
			replaced = true
			break
		}
	}
	if !replaced {
		items = append(items, d)
	}
	if err := f.writeAll(items); err != nil {
		return Decision{}, err
	}
	return d, nil
}

func (f *FileStore) List(_ context.Context) ([]Decision, error) {
	f.mu.Lock()
	items, err := f.readAll()
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	sortNewestFirst(items)
	return items, nil
}

func (f *FileStore) Get(_ context.Context, id string) (Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items, err := f.readAll()
	if err != nil {
		return Decision{}, err
	}
	for _, d := range items {
		if d.ID == id {
			return d, nil
		}
	}
	return Decision{}, ErrNotFound
}

func (f *FileStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	items, err := f.readAll()
	if err != nil {
		return err
	}
	kept := items[:0]
	for _, d := range items {
		if d.ID != id {
			kept = append(kept, d)
		}
	}
	if len(kept) == len(items) {
		return ErrNotFound
	}
	return f.writeAll(kept)
}

// readAll treats a missing or corrupted file as empty.
func (f *FileStore) readAll() ([]Decision, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return []Decision{}, nil
	}
	if err != nil {
		return nil, err
	}
	var items []Decision
	if err := json.Unmarshal(data, &items); err != nil {
		return []Decision{}, nil
	}
	for i := range items {
		items[i] = items[i].Normalize()
	}
	return items, nil
}

func (f *FileStore) writeAll(items []Decision) error {
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func sortNewestFirst(items []Decision) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Timestamp != items[j].Timestamp {
			return items[i].Timestamp > items[j].Timestamp
		}
		return items[i].ID < items[j].ID
	})
}
