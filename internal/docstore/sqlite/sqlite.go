// Package sqlite stores documents in a single SQLite table, one row per
// document with its fields kept as JSON.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"moneybook/internal/docstore"

	_ "modernc.org/sqlite"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db   *sql.DB
	hub  *docstore.Hub
	opts docstore.Options
}

// Ensure interface conformance
var (
	_ docstore.Store         = (*Store)(nil)
	_ docstore.Transactional = (*Store)(nil)
)

func New(dbPath string, opts ...docstore.Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection keeps read-modify-write sequences and transactions
	// from tripping over SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{
		db:   db,
		hub:  docstore.NewHub(),
		opts: docstore.BuildOptions(opts...),
	}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Create(ctx context.Context, collection string, data any) (string, error) {
	id, err := s.create(ctx, s.db, collection, data)
	if err != nil {
		return "", err
	}
	s.hub.Publish(ctx, collection, s.List)
	return id, nil
}

func (s *Store) create(ctx context.Context, q querier, collection string, data any) (string, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return "", err
	}
	now := s.opts.Now()
	raw, err := docstore.EncodeNew(data, now)
	if err != nil {
		return "", err
	}
	id := s.opts.NewID()
	_, err = q.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		collection, id, string(raw), now.UnixNano(), now.UnixNano())
	if err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}

	slog.DebugContext(ctx, "Document created", "collection", collection, "id", id)
	return id, nil
}

func (s *Store) Update(ctx context.Context, docPath string, patch map[string]any) error {
	collection, _, err := docstore.SplitDocPath(docPath)
	if err != nil {
		return err
	}
	if err := s.update(ctx, s.db, docPath, patch); err != nil {
		return err
	}
	s.hub.Publish(ctx, collection, s.List)
	return nil
}

func (s *Store) update(ctx context.Context, q querier, docPath string, patch map[string]any) error {
	doc, err := s.get(ctx, q, docPath)
	if err != nil {
		return err
	}
	merged, err := docstore.Merge(doc.Data, patch)
	if err != nil {
		return err
	}
	collection, id, _ := docstore.SplitDocPath(docPath)
	_, err = q.ExecContext(ctx,
		`UPDATE documents SET data = ?, updated_at = ? WHERE collection = ? AND id = ?`,
		string(merged), s.opts.Now().UnixNano(), collection, id)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, docPath string) error {
	collection, _, err := docstore.SplitDocPath(docPath)
	if err != nil {
		return err
	}
	if err := s.delete(ctx, s.db, docPath); err != nil {
		return err
	}
	s.hub.Publish(ctx, collection, s.List)
	return nil
}

func (s *Store) delete(ctx context.Context, q querier, docPath string) error {
	collection, id, err := docstore.SplitDocPath(docPath)
	if err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, docPath string) (docstore.Document, error) {
	return s.get(ctx, s.db, docPath)
}

func (s *Store) get(ctx context.Context, q querier, docPath string) (docstore.Document, error) {
	collection, id, err := docstore.SplitDocPath(docPath)
	if err != nil {
		return docstore.Document{}, err
	}
	var (
		data      string
		createdAt int64
	)
	err = q.QueryRowContext(ctx,
		`SELECT data, created_at FROM documents WHERE collection = ? AND id = ?`,
		collection, id).Scan(&data, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.Document{}, fmt.Errorf("%s: %w", docPath, docstore.ErrNotFound)
	}
	if err != nil {
		return docstore.Document{}, fmt.Errorf("get document: %w", err)
	}
	return docstore.Document{
		ID:        id,
		Path:      docPath,
		Data:      []byte(data),
		CreatedAt: time.Unix(0, createdAt).UTC(),
	}, nil
}

func (s *Store) List(ctx context.Context, collection string, order docstore.Order) ([]docstore.Document, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data, created_at FROM documents WHERE collection = ? ORDER BY created_at, id`,
		collection)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []docstore.Document
	for rows.Next() {
		var (
			id, data  string
			createdAt int64
		)
		if err := rows.Scan(&id, &data, &createdAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, docstore.Document{
			ID:        id,
			Path:      docstore.DocPath(collection, id),
			Data:      []byte(data),
			CreatedAt: time.Unix(0, createdAt).UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	docstore.SortDocuments(docs, order)
	return docs, nil
}

func (s *Store) Subscribe(ctx context.Context, collection string, order docstore.Order, fn docstore.Listener) (docstore.Unsubscribe, error) {
	return s.hub.Subscribe(ctx, collection, order, fn, s.List)
}

// Count returns how many documents are stored in collection.
func (s *Store) Count(ctx context.Context, collection string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE collection = ?`, collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}
