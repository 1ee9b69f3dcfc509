// Package store wires txgraph into a BadgerDB-backed key-value store: a
// worked example of the "caller's concern" collaborators txgraph.Graph
// deliberately leaves out (hashing, value storage, persistence).
//
// Every Store.Begin'd transaction buffers its writes locally and records
// every key it touches with txgraph. Commit only asks Badger to persist the
// buffered writes once txgraph has certified the transaction as
// serializable with everything else that committed while it was open; a
// rejection here discards the buffer without ever reaching Badger.
package store

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/orneryd/txgraph/pkg/hashid"
	"github.com/orneryd/txgraph/txgraph"
)

// ErrConflict is returned by Tx.Commit when txgraph rejects the
// transaction as unserializable with an already-committed writer.
var ErrConflict = errors.New("store: transaction conflicts with a committed writer")

// ErrOOM is returned by Tx.Commit (or Tx.Get/Tx.Put) when the graph's
// allocator refused a required reservation. Treat it like ErrConflict: the
// transaction did not commit and must be retried or abandoned.
var ErrOOM = errors.New("store: graph allocator exhausted (simulated OOM)")

// Store pairs a Badger database with a txgraph.Graph certifying every
// transaction's serializability. A Store is safe for concurrent Begin
// calls; the underlying Graph is not, so Store serializes all graph access
// behind its own mutex (SPEC_FULL.md §5 pushes this requirement onto
// whoever embeds txgraph, which here is this package).
type Store struct {
	mu     sync.Mutex
	db     *badger.DB
	graph  *txgraph.Graph
	hasher hashid.Hasher
}

// Open opens (creating if necessary) a Badger database at dir and wraps it
// with a certifying Store. graph must not be shared with any other Store.
func Open(dir string, graph *txgraph.Graph, hasher hashid.Hasher) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: opening badger at %s: %w", dir, err)
	}
	if hasher == nil {
		hasher = hashid.Default()
	}
	return &Store{db: db, graph: graph, hasher: hasher}, nil
}

// Close closes the underlying Badger database and releases the graph's
// remaining nodes.
func (s *Store) Close() error {
	s.mu.Lock()
	s.graph.Close()
	s.mu.Unlock()
	return s.db.Close()
}

// Tx is one logical transaction against the store: a certified, buffered
// read-write session over string keys.
type Tx struct {
	store   *Store
	node    *txgraph.Node
	badger  *badger.Txn
	pending map[string][]byte
	deleted map[string]struct{}
}

// Begin starts a transaction: a fresh txgraph node plus a read-only Badger
// view (writes are buffered in memory and only applied on a certified
// Commit). It returns ErrOOM if the graph's allocator refuses the new
// node's bookkeeping allocation.
func (s *Store) Begin() (*Tx, error) {
	s.mu.Lock()
	n, ok := s.graph.Begin()
	s.mu.Unlock()
	if !ok {
		log.Printf("store: Begin: graph allocator refused the new node")
		return nil, ErrOOM
	}
	return &Tx{
		store:   s,
		node:    n,
		badger:  s.db.NewTransaction(false),
		pending: make(map[string][]byte),
		deleted: make(map[string]struct{}),
	}, nil
}

// Get reads key, preferring a value this same transaction already buffered,
// and records the read with txgraph so later writers can be checked against
// it at commit time.
func (tx *Tx) Get(key string) ([]byte, error) {
	if v, ok := tx.pending[key]; ok {
		return v, nil
	}
	if _, ok := tx.deleted[key]; ok {
		return nil, badger.ErrKeyNotFound
	}

	tx.store.mu.Lock()
	tx.node.Read(tx.store.hasher.HashString(key))
	nomem := tx.node.State() == txgraph.Nomem
	tx.store.mu.Unlock()
	if nomem {
		return nil, ErrOOM
	}

	item, err := tx.badger.Get([]byte(key))
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

// Put buffers a write against key. Nothing reaches Badger until Commit
// certifies the transaction.
func (tx *Tx) Put(key string, value []byte) error {
	tx.store.mu.Lock()
	tx.node.Write(tx.store.hasher.HashString(key))
	nomem := tx.node.State() == txgraph.Nomem
	tx.store.mu.Unlock()
	if nomem {
		return ErrOOM
	}
	tx.pending[key] = value
	delete(tx.deleted, key)
	return nil
}

// Delete buffers a deletion against key.
func (tx *Tx) Delete(key string) error {
	tx.store.mu.Lock()
	tx.node.Write(tx.store.hasher.HashString(key))
	nomem := tx.node.State() == txgraph.Nomem
	tx.store.mu.Unlock()
	if nomem {
		return ErrOOM
	}
	delete(tx.pending, key)
	tx.deleted[key] = struct{}{}
	return nil
}

// Commit certifies the transaction with txgraph and, only if certification
// succeeds, applies the buffered writes to Badger in one native
// transaction.
func (tx *Tx) Commit() error {
	defer tx.badger.Discard()

	tx.store.mu.Lock()
	ok, oom := tx.node.Commit()
	tx.store.mu.Unlock()

	if oom {
		log.Printf("store: tx %s aborted: graph allocator exhausted", tx.node.Label())
		return ErrOOM
	}
	if !ok {
		log.Printf("store: tx %s rejected: not serializable", tx.node.Label())
		return ErrConflict
	}

	wb := tx.store.db.NewWriteBatch()
	defer wb.Cancel()
	for k, v := range tx.pending {
		if err := wb.Set([]byte(k), v); err != nil {
			return fmt.Errorf("store: buffering write for %q: %w", k, err)
		}
	}
	for k := range tx.deleted {
		if err := wb.Delete([]byte(k)); err != nil {
			return fmt.Errorf("store: buffering delete for %q: %w", k, err)
		}
	}
	return wb.Flush()
}

// Rollback discards the transaction's buffered writes and rolls its
// txgraph node back, releasing its conflict-graph bookkeeping.
func (tx *Tx) Rollback() {
	tx.badger.Discard()
	tx.store.mu.Lock()
	if tx.node.State() == txgraph.Active || tx.node.State() == txgraph.Nomem {
		tx.node.Rollback()
	}
	tx.store.mu.Unlock()
}

// GC runs an explicit mark-and-sweep pass over the store's conflict graph.
// Stores with autogc disabled should call this periodically.
func (s *Store) GC() {
	s.mu.Lock()
	s.graph.GC()
	s.mu.Unlock()
}
