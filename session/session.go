package session

import (
	"fmt"

	"github.com/mohammad-safakhou/techbrief/session/inmemory"
	"github.com/mohammad-safakhou/techbrief/session/session_models"
)

// Store holds shared comparisons behind short ids.
type Store interface {
	Save(c session_models.SharedComparison) (session_models.SharedComparison, error)
	Get(id string) (session_models.SharedComparison, bool)
	Recent(limit int) []session_models.SharedComparison
	Stats() session_models.Stats
}

type StoreType string

const (
	InMemoryStore StoreType = "inmemory"
)

func NewStore(storeType StoreType) (Store, error) {
	switch storeType {
	case InMemoryStore, "":
		return inmemory.NewInMemoryShareStore(), nil
	}
	return nil, fmt.Errorf("unsupported store type: %s", storeType)
}
