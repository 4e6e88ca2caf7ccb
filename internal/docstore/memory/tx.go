package memory

import (
	"context"
	"fmt"

	"moneybook/internal/docstore"
)

// txn stages writes and applies them together on commit. Transactions are
// serialised against each other; plain writes outside a transaction are not.
type txn struct {
	s       *Store
	staged  map[string]*docstore.Document
	order   []string
	touched map[string]struct{}
}

func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	t := &txn{
		s:       s,
		staged:  make(map[string]*docstore.Document),
		touched: make(map[string]struct{}),
	}
	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return docstore.ErrStoreClosed
	}
	for _, path := range t.order {
		doc := t.staged[path]
		if doc == nil {
			collection, id, _ := docstore.SplitDocPath(path)
			delete(s.cols[collection], id)
			continue
		}
		s.put(*doc)
	}
	s.mu.Unlock()

	for collection := range t.touched {
		s.hub.Publish(ctx, collection, s.List)
	}
	return nil
}

func (t *txn) stage(path string, doc *docstore.Document) {
	if _, ok := t.staged[path]; !ok {
		t.order = append(t.order, path)
	}
	t.staged[path] = doc
	collection, _, _ := docstore.SplitDocPath(path)
	t.touched[collection] = struct{}{}
}

func (t *txn) Get(ctx context.Context, docPath string) (docstore.Document, error) {
	if doc, ok := t.staged[docPath]; ok {
		if doc == nil {
			return docstore.Document{}, fmt.Errorf("%s: %w", docPath, docstore.ErrNotFound)
		}
		return cloneDoc(*doc), nil
	}
	return t.s.Get(ctx, docPath)
}

func (t *txn) Create(_ context.Context, collection string, data any) (string, error) {
	doc, err := t.s.newDocument(collection, data)
	if err != nil {
		return "", err
	}
	t.stage(doc.Path, &doc)
	return doc.ID, nil
}

func (t *txn) Update(ctx context.Context, docPath string, patch map[string]any) error {
	doc, err := t.Get(ctx, docPath)
	if err != nil {
		return err
	}
	merged, err := docstore.Merge(doc.Data, patch)
	if err != nil {
		return err
	}
	doc.Data = merged
	t.stage(docPath, &doc)
	return nil
}

func (t *txn) Delete(_ context.Context, docPath string) error {
	if _, _, err := docstore.SplitDocPath(docPath); err != nil {
		return err
	}
	t.stage(docPath, nil)
	return nil
}
