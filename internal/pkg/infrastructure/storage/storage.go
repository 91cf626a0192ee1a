package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/diwise/activitystreams/pkg/activitystreams/errors"
)

// Store keeps exported json documents keyed by their @id
type Store interface {
	// Create stores a new document and fails with ErrAlreadyExists if the id is taken
	Create(ctx context.Context, id string, document map[string]any) error
	// Replace overwrites an existing document and fails with ErrNotFound if there is none
	Replace(ctx context.Context, id string, document map[string]any) error
	// Put stores a document whether or not the id is taken
	Put(ctx context.Context, id string, document map[string]any) error

	Get(ctx context.Context, id string) (map[string]any, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]map[string]any, error)

	Close()
}

const (
	DriverMemory   string = "memory"
	DriverPostgres string = "postgres"
	DriverSQLite   string = "sqlite"
)

// Open returns a store for driver. The postgres connection is configured from
// the environment and path is only used by sqlite.
func Open(ctx context.Context, driver, path string) (Store, error) {
	switch driver {
	case DriverPostgres:
		return NewPostgresStore(ctx, LoadConfiguration(ctx))
	case DriverSQLite:
		return NewSQLiteStore(path)
	case DriverMemory, "":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %s", driver)
	}
}

type memoryStore struct {
	mu        sync.RWMutex
	documents map[string][]byte
}

func NewMemoryStore() Store {
	return &memoryStore{
		documents: map[string][]byte{},
	}
}

func (s *memoryStore) Create(ctx context.Context, id string, document map[string]any) error {
	b, err := encode(document)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[id]; ok {
		return errors.NewAlreadyExistsError(fmt.Sprintf("an object with id %s already exists", id))
	}

	s.documents[id] = b
	return nil
}

func (s *memoryStore) Replace(ctx context.Context, id string, document map[string]any) error {
	b, err := encode(document)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[id]; !ok {
		return errors.NewNotFoundError(fmt.Sprintf("no object with id %s found", id))
	}

	s.documents[id] = b
	return nil
}

func (s *memoryStore) Put(ctx context.Context, id string, document map[string]any) error {
	b, err := encode(document)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.documents[id] = b
	return nil
}

func (s *memoryStore) Get(ctx context.Context, id string) (map[string]any, error) {
	s.mu.RLock()
	b, ok := s.documents[id]
	s.mu.RUnlock()

	if !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("no object with id %s found", id))
	}

	return decode(b)
}

func (s *memoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[id]; !ok {
		return errors.NewNotFoundError(fmt.Sprintf("no object with id %s found", id))
	}

	delete(s.documents, id)
	return nil
}

func (s *memoryStore) List(ctx context.Context) ([]map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.documents))
	for id := range s.documents {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	result := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		doc, err := decode(s.documents[id])
		if err != nil {
			return nil, err
		}
		result = append(result, doc)
	}

	return result, nil
}

func (s *memoryStore) Close() {}

func encode(document map[string]any) ([]byte, error) {
	b, err := json.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	return b, nil
}

func decode(b []byte) (map[string]any, error) {
	document := map[string]any{}
	err := json.Unmarshal(b, &document)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal stored document: %w", err)
	}
	return document, nil
}
