// Package docstore defines the per-user document store the ledger and the
// finance service are written against, plus the pieces shared by its
// implementations: paths, ordering, field merging and the subscription hub.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Collection names under a user's namespace.
const (
	Wallets      = "wallets"
	Categories   = "categories"
	Transactions = "transactions"
)

// FieldCreatedAt is the server-assigned creation timestamp present on every document.
const FieldCreatedAt = "createdAt"

var (
	ErrNotFound     = errors.New("document not found")
	ErrInvalidPath  = errors.New("invalid document path")
	ErrNotSupported = errors.New("operation not supported by store")
	ErrStoreClosed  = errors.New("store closed")
)

type (
	// Document is a stored record. Data holds its JSON fields without the id.
	Document struct {
		ID        string
		Path      string
		Data      json.RawMessage
		CreatedAt time.Time
	}

	// Order sorts a collection by one field.
	Order struct {
		Field string
		Desc  bool
	}

	// Unsubscribe stops a subscription. Calling it more than once is harmless.
	Unsubscribe func()

	// Listener receives the full ordered collection on every change.
	Listener func([]Document)

	Store interface {
		Create(ctx context.Context, collection string, data any) (string, error)
		// Update merges patch into an existing document; ErrNotFound if it is absent.
		Update(ctx context.Context, docPath string, patch map[string]any) error
		// Delete removes a document. Deleting a missing document is not an error.
		Delete(ctx context.Context, docPath string) error
		Get(ctx context.Context, docPath string) (Document, error)
		List(ctx context.Context, collection string, order Order) ([]Document, error)
		// Subscribe delivers the current list immediately and again after every
		// change to the collection, until the returned Unsubscribe is called.
		Subscribe(ctx context.Context, collection string, order Order, fn Listener) (Unsubscribe, error)
		Close() error
	}

	// Tx is the view of the store inside RunInTransaction.
	Tx interface {
		Create(ctx context.Context, collection string, data any) (string, error)
		Update(ctx context.Context, docPath string, patch map[string]any) error
		Delete(ctx context.Context, docPath string) error
		Get(ctx context.Context, docPath string) (Document, error)
	}

	// Transactional stores can apply several writes all-or-nothing.
	Transactional interface {
		RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	}

	Options struct {
		Now   func() time.Time
		NewID func() string
	}

	Option func(*Options)
)

var (
	ByCreatedAt = Order{Field: FieldCreatedAt}
	ByDateDesc  = Order{Field: "date", Desc: true}
)

// WithClock overrides the server timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *Options) { o.Now = now }
}

// WithIDGenerator overrides how new document ids are minted.
func WithIDGenerator(newID func() string) Option {
	return func(o *Options) { o.NewID = newID }
}

// BuildOptions applies opts over the defaults.
func BuildOptions(opts ...Option) Options {
	o := Options{
		Now:   func() time.Time { return time.Now().UTC() },
		NewID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// UserCollection is the path of one of a user's collections.
func UserCollection(userID, name string) string {
	return "users/" + userID + "/" + name
}

// DocPath joins a collection path and a document id.
func DocPath(collection, id string) string {
	return collection + "/" + id
}

// UserDoc is the path of a document inside one of a user's collections.
func UserDoc(userID, name, id string) string {
	return DocPath(UserCollection(userID, name), id)
}

// SplitDocPath separates a document path into its collection and id.
func SplitDocPath(docPath string) (collection, id string, err error) {
	i := strings.LastIndex(docPath, "/")
	if i <= 0 || i == len(docPath)-1 {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, docPath)
	}
	collection, id = docPath[:i], docPath[i+1:]
	if strings.Count(collection, "/")%2 != 0 {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, docPath)
	}
	return collection, id, nil
}

// ValidateCollection checks that path names a collection, not a document.
func ValidateCollection(path string) error {
	if path == "" || strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") ||
		strings.Count(path, "/")%2 != 0 || strings.Contains(path, "//") {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return nil
}

// DataTo decodes the document into v, including its id under "id".
func (d Document) DataTo(v any) error {
	fields := make(map[string]json.RawMessage)
	if len(d.Data) > 0 {
		if err := json.Unmarshal(d.Data, &fields); err != nil {
			return fmt.Errorf("decode document %s: %w", d.Path, err)
		}
	}
	id, _ := json.Marshal(d.ID)
	fields["id"] = id
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", d.Path, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode document %s: %w", d.Path, err)
	}
	return nil
}

// Decode turns documents into typed records.
func Decode[T any](docs []Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := d.DataTo(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
