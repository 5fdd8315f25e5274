package inmemory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mohammad-safakhou/techbrief/session/session_models"
)

const idLength = 8

type Store struct {
	shares map[string]*session_models.SharedComparison
	mu     sync.RWMutex
}

func NewInMemoryShareStore() *Store {
	return &Store{shares: make(map[string]*session_models.SharedComparison)}
}

// Save stores c under a fresh short id and returns the stored copy.
func (store *Store) Save(c session_models.SharedComparison) (session_models.SharedComparison, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	id := shortID()
	for _, taken := store.shares[id]; taken; _, taken = store.shares[id] {
		id = shortID()
	}
	c.ID = id
	c.ViewCount = 0
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	store.shares[id] = &c
	return c, nil
}

// Get returns a share and counts the view.
func (store *Store) Get(id string) (session_models.SharedComparison, bool) {
	store.mu.Lock()
	defer store.mu.Unlock()
	c, ok := store.shares[id]
	if !ok {
		return session_models.SharedComparison{}, false
	}
	c.ViewCount++
	return *c, true
}

// Recent lists up to limit shares, newest first.
func (store *Store) Recent(limit int) []session_models.SharedComparison {
	store.mu.RLock()
	out := make([]session_models.SharedComparison, 0, len(store.shares))
	for _, c := range store.shares {
		out = append(out, *c)
	}
	store.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (store *Store) Stats() session_models.Stats {
	store.mu.RLock()
	defer store.mu.RUnlock()
	st := session_models.Stats{TotalComparisons: len(store.shares)}
	for _, c := range store.shares {
		st.TotalViews += c.ViewCount
	}
	return st
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:idLength]
}
