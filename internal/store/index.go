package store

import (
	"context"
	"errors"
	"strings"

	"github.com/blevesearch/bleve"
	"go.uber.org/zap"
)

// indexedDoc is the searchable view of a decision.
type indexedDoc struct {
	Query    string `json:"query"`
	Left     string `json:"left"`
	Right    string `json:"right"`
	Winner   string `json:"winner"`
	Category string `json:"category"`
	Brief    string `json:"brief"`
}

// Index is an in-memory full-text index over decisions.
type Index struct {
	idx bleve.Index
}

func NewIndex() (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &Index{idx: idx}, nil
}

func (i *Index) Add(d Decision) error {
	return i.idx.Index(d.ID, indexedDoc{
		Query:    d.Query,
		Left:     d.Left,
		Right:    d.Right,
		Winner:   d.Winner,
		Category: d.Category,
		Brief:    d.Brief,
	})
}

func (i *Index) Remove(id string) error { return i.idx.Delete(id) }

// Search returns matching ids, best first.
func (i *Index) Search(q string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(q), limit, 0, false)
	res, err := i.idx.Search(req)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

func (i *Index) Close() error { return i.idx.Close() }

// IndexedStore keeps an Index in step with a DecisionStore. Index failures
// are logged; the backing store stays authoritative.
type IndexedStore struct {
	DecisionStore
	index  *Index
	logger *zap.Logger
}

// NewIndexedStore wraps s and indexes everything it already holds.
func NewIndexedStore(ctx context.Context, s DecisionStore, logger *zap.Logger) (*IndexedStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	idx, err := NewIndex()
	if err != nil {
		return nil, err
	}
	is := &IndexedStore{DecisionStore: s, index: idx, logger: logger}
	existing, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range existing {
		if err := idx.Add(d); err != nil {
			logger.Warn("index decision", zap.String("id", d.ID), zap.Error(err))
		}
	}
	return is, nil
}

// Close releases the index. The backing store is owned by the caller.
func (s *IndexedStore) Close() error { return s.index.Close() }

func (s *IndexedStore) Save(ctx context.Context, d Decision) (Decision, error) {
	saved, err := s.DecisionStore.Save(ctx, d)
	if err != nil {
		return Decision{}, err
	}
	if err := s.index.Add(saved); err != nil {
		s.logger.Warn("index decision", zap.String("id", saved.ID), zap.Error(err))
	}
	return saved, nil
}

func (s *IndexedStore) Delete(ctx context.Context, id string) error {
	if err := s.DecisionStore.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.index.Remove(id); err != nil {
		s.logger.Warn("unindex decision", zap.String("id", id), zap.Error(err))
	}
	return nil
}

// Search resolves index hits against the backing store. Decisions that
// have since expired from the backend are skipped.
func (s *IndexedStore) Search(ctx context.Context, q string, limit int) ([]Decision, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []Decision{}, nil
	}
	ids, err := s.index.Search(q, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Decision, 0, len(ids))
	for _, id := range ids {
		d, err := s.DecisionStore.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			_ = s.index.Remove(id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
