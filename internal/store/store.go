package store

import (
	"context"
	"encoding/json"
)

// Tx is the handle given to a transaction body. Get adds the document to the
// read set; Put and Delete stage writes that are applied atomically at commit.
// If any document in the read set changes before commit, the transaction fails
// with domain.ErrTransactionAborted and none of the staged writes are applied.
type Tx interface {
	Get(collection, id string, dest any) error
	Put(collection, id string, doc any) error
	Delete(collection, id string)
}

// Store is a generic document store: JSON documents grouped into collections,
// keyed by store-assigned ids, with point reads, scans, equality filters and
// optimistic multi-document transactions.
type Store interface {
	// Get reads one document into dest; domain.ErrNotFound when absent.
	Get(ctx context.Context, collection, id string, dest any) error

	// List returns every document in a collection in insertion order.
	List(ctx context.Context, collection string) ([]json.RawMessage, error)

	// Query returns documents whose top-level field equals value.
	Query(ctx context.Context, collection, field, value string) ([]json.RawMessage, error)

	// Insert stores a new document under a generated id and returns the id.
	// The id is also written into the document's "id" field.
	Insert(ctx context.Context, collection string, doc any) (string, error)

	// Update replaces an existing document; domain.ErrNotFound when absent.
	Update(ctx context.Context, collection, id string, doc any) error

	// Delete removes a document; deleting an absent document is not an error.
	Delete(ctx context.Context, collection, id string) error

	// Transact runs fn with a transactional handle. Either every staged write
	// commits or none does. A conflict on the read set yields
	// domain.ErrTransactionAborted; an error returned by fn aborts the
	// transaction and is passed through unchanged.
	Transact(ctx context.Context, fn func(tx Tx) error) error

	// Ping checks connectivity to the backing store.
	Ping(ctx context.Context) error
}

// withID re-marshals doc with the generated id injected into the "id" field,
// so documents carry their identity the way the rest of the system expects.
func withID(doc any, id string) ([]byte, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	m["id"] = id
	return json.Marshal(m)
}

// matchField reports whether the document's top-level field stringifies to value
func matchField(raw []byte, field, value string) bool {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return false
	}
	v, ok := m[field]
	if !ok {
		return false
	}
	if s, ok := v.(string); ok {
		return s == value
	}
	b, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return string(b) == value
}
