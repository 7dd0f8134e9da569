package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/tispark/tispark/core/types"
	"github.com/tispark/tispark/log"
	"github.com/tispark/tispark/scale"
)

const (
	commitPrefix = "commit:"

	// maxTxnRetries bounds retries of a transaction that lost a conflict
	// with a concurrent writer.
	maxTxnRetries = 16
)

// BadgerStore is a CommitmentStore on a Badger database. Commitments are
// stored SCALE-encoded under "commit:" followed by the raw id.
type BadgerStore struct {
	db  *badger.DB
	log *log.Logger
}

// OpenBadger opens or creates a Badger database at path. An empty path
// opens an in-memory database.
func OpenBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open badger: %w", err)
	}
	return NewBadgerStore(db), nil
}

// NewBadgerStore wraps an open database. Close closes db.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db, log: log.Default().Module("store")}
}

func commitKey(id types.Hash) []byte {
	return append([]byte(commitPrefix), id[:]...)
}

// update runs fn in a read-write transaction, retrying on conflicts.
func (s *BadgerStore) update(fn func(txn *badger.Txn) error) error {
	var err error
	for i := 0; i < maxTxnRetries; i++ {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return mapClosed(err)
		}
		s.log.Debug("transaction conflict, retrying", "attempt", i+1)
	}
	return err
}

func mapClosed(err error) error {
	if errors.Is(err, badger.ErrDBClosed) {
		return ErrClosed
	}
	return err
}

func getCommitment(txn *badger.Txn, id types.Hash) (*types.Commitment, error) {
	item, err := txn.Get(commitKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var c types.Commitment
	err = item.Value(func(val []byte) error {
		return scale.DecodeBytes(val, &c)
	})
	if err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", id, err)
	}
	if c.ID != id {
		return nil, fmt.Errorf("store: record under %s carries id %s", id, c.ID)
	}
	return &c, nil
}

func putCommitment(txn *badger.Txn, c *types.Commitment) error {
	data, err := scale.EncodeToBytes(*c)
	if err != nil {
		return err
	}
	return txn.Set(commitKey(c.ID), data)
}

// Insert implements CommitmentStore.
func (s *BadgerStore) Insert(c *types.Commitment) error {
	err := s.update(func(txn *badger.Txn) error {
		_, err := getCommitment(txn, c.ID)
		switch {
		case err == nil:
			return ErrAlreadyCommitted
		case !errors.Is(err, ErrNotFound):
			return err
		}
		return putCommitment(txn, c)
	})
	if err == nil {
		s.log.Debug("commitment stored", "id", c.ID)
	}
	return err
}

// Get implements CommitmentStore.
func (s *BadgerStore) Get(id types.Hash) (*types.Commitment, error) {
	var c *types.Commitment
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		c, err = getCommitment(txn, id)
		return err
	})
	if err != nil {
		return nil, mapClosed(err)
	}
	return c, nil
}

// Reveal implements CommitmentStore.
func (s *BadgerStore) Reveal(id types.Hash, key []byte) (*types.Commitment, error) {
	var updated *types.Commitment
	err := s.update(func(txn *badger.Txn) error {
		c, err := getCommitment(txn, id)
		if err != nil {
			return err
		}
		if updated, err = c.WithRevealedKey(key); err != nil {
			return err
		}
		return putCommitment(txn, updated)
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("commitment revealed", "id", id)
	return updated, nil
}

// Close implements CommitmentStore.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
