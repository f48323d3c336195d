package vectorstore

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"

	"seju-chat/internal/models"
)

// Entry is one (text, embedding, metadata) tuple owned by the index.
// Metadata always carries "source"; "page" is optional.
type Entry struct {
	ID        string
	Text      string
	Embedding []float32
	Metadata  map[string]string
}

// Store wraps a chromem-go collection behind the index contract. The
// RWMutex makes Replace appear as one operation to concurrent readers:
// a Search sees either the old or the new index, never a torn one.
type Store struct {
	mu         sync.RWMutex
	db         *chromem.DB
	collection *chromem.Collection
	name       string
	embedFunc  chromem.EmbeddingFunc
}

// New opens (or creates) the collection. embedFunc is only consulted when
// an entry arrives without a vector; passing nil installs a rejecting stub
// so such entries fail loudly instead of calling out to a default backend.
func New(path, collectionName string, inMemory bool, embedFunc chromem.EmbeddingFunc) (*Store, error) {
	var db *chromem.DB
	var err error
	if inMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	if embedFunc == nil {
		embedFunc = func(ctx context.Context, text string) ([]float32, error) {
			return nil, fmt.Errorf("no embedding function configured")
		}
	}

	collection, err := db.GetOrCreateCollection(collectionName, nil, embedFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}

	return &Store{
		db:         db,
		collection: collection,
		name:       collectionName,
		embedFunc:  embedFunc,
	}, nil
}

// Count returns the number of entries currently indexed.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collection.Count()
}

// Insert adds entries to the index, assigning IDs where missing.
func (s *Store) Insert(ctx context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(ctx, entries)
}

// Replace clears the index and bulk-inserts the given entries as a single
// logical operation.
func (s *Store) Replace(ctx context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCollection(s.name); err != nil {
		return fmt.Errorf("failed to clear collection: %w", err)
	}
	collection, err := s.db.GetOrCreateCollection(s.name, nil, s.embedFunc)
	if err != nil {
		return fmt.Errorf("failed to recreate collection: %w", err)
	}
	s.collection = collection

	return s.insertLocked(ctx, entries)
}

func (s *Store) insertLocked(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(entries))
	for i, e := range entries {
		id := e.ID
		if id == "" {
			id = uuid.NewString()
		}
		docs[i] = chromem.Document{
			ID:        id,
			Content:   e.Text,
			Metadata:  e.Metadata,
			Embedding: e.Embedding,
		}
	}
	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// Search returns the k nearest entries to the query vector in descending
// similarity order. k is truncated to the index size; chromem itself
// errors when asked for more results than it holds.
func (s *Store) Search(ctx context.Context, queryEmbedding []float32, k int) ([]models.RetrievedResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := s.collection.Count()
	if count == 0 || k <= 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	hits, err := s.collection.QueryEmbedding(ctx, queryEmbedding, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	results := make([]models.RetrievedResult, len(hits))
	for i, hit := range hits {
		results[i] = models.RetrievedResult{
			Text:     hit.Content,
			Metadata: hit.Metadata,
		}
	}
	return results, nil
}

// DeleteBySource removes every entry whose metadata source equals source,
// used when a single document is retracted without a full rebuild.
func (s *Store) DeleteBySource(ctx context.Context, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.collection.Delete(ctx, map[string]string{models.MetaSource: source}, nil)
	if err != nil {
		return fmt.Errorf("failed to delete by source: %w", err)
	}
	return nil
}
