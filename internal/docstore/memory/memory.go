// Package memory is an in-process document store. It is the default backend
// and what tests run against.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"moneybook/internal/docstore"
)

type record struct {
	doc docstore.Document
}

type Store struct {
	mu     sync.RWMutex
	txMu   sync.Mutex
	cols   map[string]map[string]record
	hub    *docstore.Hub
	opts   docstore.Options
	closed bool
}

// Ensure interface conformance
var (
	_ docstore.Store         = (*Store)(nil)
	_ docstore.Transactional = (*Store)(nil)
)

func New(opts ...docstore.Option) *Store {
	return &Store{
		cols: make(map[string]map[string]record),
		hub:  docstore.NewHub(),
		opts: docstore.BuildOptions(opts...),
	}
}

func (s *Store) Create(ctx context.Context, collection string, data any) (string, error) {
	doc, err := s.newDocument(collection, data)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", docstore.ErrStoreClosed
	}
	s.put(doc)
	s.mu.Unlock()

	s.hub.Publish(ctx, collection, s.List)
	return doc.ID, nil
}

func (s *Store) newDocument(collection string, data any) (docstore.Document, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return docstore.Document{}, err
	}
	now := s.opts.Now()
	raw, err := docstore.EncodeNew(data, now)
	if err != nil {
		return docstore.Document{}, err
	}
	id := s.opts.NewID()
	return docstore.Document{
		ID:        id,
		Path:      docstore.DocPath(collection, id),
		Data:      raw,
		CreatedAt: now,
	}, nil
}

func (s *Store) put(doc docstore.Document) {
	collection, _, _ := docstore.SplitDocPath(doc.Path)
	col, ok := s.cols[collection]
	if !ok {
		col = make(map[string]record)
		s.cols[collection] = col
	}
	col[doc.ID] = record{doc: doc}
}

func (s *Store) Update(ctx context.Context, docPath string, patch map[string]any) error {
	collection, _, err := docstore.SplitDocPath(docPath)
	if err != nil {
		return err
	}
	s.mu.Lock()
	doc, err := s.lookup(docPath)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	merged, err := docstore.Merge(doc.Data, patch)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	doc.Data = merged
	s.put(doc)
	s.mu.Unlock()

	s.hub.Publish(ctx, collection, s.List)
	return nil
}

func (s *Store) Delete(ctx context.Context, docPath string) error {
	collection, id, err := docstore.SplitDocPath(docPath)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return docstore.ErrStoreClosed
	}
	delete(s.cols[collection], id)
	s.mu.Unlock()

	s.hub.Publish(ctx, collection, s.List)
	return nil
}

func (s *Store) Get(_ context.Context, docPath string) (docstore.Document, error) {
	if _, _, err := docstore.SplitDocPath(docPath); err != nil {
		return docstore.Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(docPath)
}

func (s *Store) lookup(docPath string) (docstore.Document, error) {
	if s.closed {
		return docstore.Document{}, docstore.ErrStoreClosed
	}
	collection, id, _ := docstore.SplitDocPath(docPath)
	rec, ok := s.cols[collection][id]
	if !ok {
		return docstore.Document{}, fmt.Errorf("%s: %w", docPath, docstore.ErrNotFound)
	}
	return cloneDoc(rec.doc), nil
}

func (s *Store) List(_ context.Context, collection string, order docstore.Order) ([]docstore.Document, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return nil, err
	}
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, docstore.ErrStoreClosed
	}
	docs := make([]docstore.Document, 0, len(s.cols[collection]))
	for _, rec := range s.cols[collection] {
		docs = append(docs, cloneDoc(rec.doc))
	}
	s.mu.RUnlock()

	docstore.SortDocuments(docs, order)
	return docs, nil
}

func (s *Store) Subscribe(ctx context.Context, collection string, order docstore.Order, fn docstore.Listener) (docstore.Unsubscribe, error) {
	return s.hub.Subscribe(ctx, collection, order, fn, s.List)
}

// Hub exposes the subscription hub, mainly for tests.
func (s *Store) Hub() *docstore.Hub {
	return s.hub
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func cloneDoc(d docstore.Document) docstore.Document {
	d.Data = append(json.RawMessage(nil), d.Data...)
	return d
}
