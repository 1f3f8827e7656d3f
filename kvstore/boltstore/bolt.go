// Package boltstore implements kvstore.Store over go.etcd.io/bbolt, the
// ordered, embedded, single-file KV engine the spec's §1 "OUT OF SCOPE"
// dependency describes: buckets give us keyspaces, bbolt's own
// byte-ordered B+tree gives us lexicographic key order, and its cursors
// give us forward, reverse and prefix iteration without buffering.
package boltstore

import (
	"bytes"
	"sort"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/feeddb/feeddb/errs"
	"github.com/feeddb/feeddb/kvstore"
)

// Store is a bbolt-backed kvstore.Store. It layers an explicit
// reader/writer discipline (spec §5) on top of bbolt's own MVCC: a
// request holds the guard only for the duration of a single call, except
// for iterators, which hold it for their entire lifetime — mirroring
// bbolt's own constraint that a long-lived read transaction blocks a
// writer's mmap growth until the reader finishes.
type Store struct {
	db   *bolt.DB
	path string

	mu sync.RWMutex
}

// Open opens (creating if absent) the bbolt file at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errs.Wrap(errs.Db, err)
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateKeyspace(keyspace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(keyspace))
		return err
	})
	if err != nil {
		return errs.WrapKey(errs.CannotCreateKeyspace, keyspace, err)
	}
	return nil
}

func (s *Store) ListKeyspaces() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			names = append(names, string(name))
			return nil
		})
	})
	if err != nil {
		return nil, errs.Wrap(errs.Db, err)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) Get(keyspace, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(keyspace))
		if b == nil {
			return errs.WithKey(errs.CFNotFound, keyspace)
		}
		v := b.Get([]byte(key))
		if v == nil {
			return errs.WithKey(errs.NotFound, key)
		}
		out = append(out, v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Put(keyspace, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(keyspace))
		if b == nil {
			return errs.WithKey(errs.CFNotFound, keyspace)
		}
		return b.Put([]byte(key), value)
	})
	if err != nil {
		if e, ok := err.(*errs.Error); ok {
			return e
		}
		return errs.WrapKey(errs.Put, key, err)
	}
	return nil
}

// cursorIterator walks a bbolt cursor inside a single long-lived
// read-only transaction, holding the store's RLock until Close.
type cursorIterator struct {
	store    *Store
	tx       *bolt.Tx
	cur      *bolt.Cursor
	reverse  bool
	prefix   []byte // nil unless this is a prefix iterator
	started  bool
	firstKey []byte
	closed   bool
	closeMu  sync.Mutex
}

func (it *cursorIterator) Next() (kvstore.KV, bool) {
	var k, v []byte
	if !it.started {
		it.started = true
		k, v = it.firstKey, nil
		if k == nil {
			if it.reverse {
				k, v = it.cur.Last()
			} else {
				k, v = it.cur.First()
			}
		} else {
			k, v = it.cur.Seek(k)
			if it.reverse && (k == nil || !bytes.Equal(k, it.firstKey)) {
				// Seek lands on the first key >= target; for reverse
				// ranges we want the first key <= target.
				k, v = it.cur.Prev()
			}
		}
	} else if it.reverse {
		k, v = it.cur.Prev()
	} else {
		k, v = it.cur.Next()
	}

	if k == nil {
		return kvstore.KV{}, false
	}
	if it.prefix != nil && !bytes.HasPrefix(k, it.prefix) {
		return kvstore.KV{}, false
	}

	return kvstore.KV{Key: append([]byte(nil), k...), Value: append([]byte(nil), v...)}, true
}

func (it *cursorIterator) Close() error {
	it.closeMu.Lock()
	defer it.closeMu.Unlock()
	if it.closed {
		return nil
	}
	it.closed = true
	err := it.tx.Rollback()
	it.store.mu.RUnlock()
	return err
}

func (s *Store) Range(keyspace, from string, reverse bool) (kvstore.Iterator, error) {
	s.mu.RLock()

	tx, err := s.db.Begin(false)
	if err != nil {
		s.mu.RUnlock()
		return nil, errs.Wrap(errs.Db, err)
	}

	b := tx.Bucket([]byte(keyspace))
	if b == nil {
		_ = tx.Rollback()
		s.mu.RUnlock()
		return nil, errs.WithKey(errs.CFNotFound, keyspace)
	}

	it := &cursorIterator{store: s, tx: tx, cur: b.Cursor(), reverse: reverse}
	if from != "" {
		it.firstKey = []byte(from)
	}
	return it, nil
}

func (s *Store) RangePrefix(keyspace, prefix string) (kvstore.Iterator, error) {
	s.mu.RLock()

	tx, err := s.db.Begin(false)
	if err != nil {
		s.mu.RUnlock()
		return nil, errs.Wrap(errs.Db, err)
	}

	b := tx.Bucket([]byte(keyspace))
	if b == nil {
		_ = tx.Rollback()
		s.mu.RUnlock()
		return nil, errs.WithKey(errs.CFNotFound, keyspace)
	}

	it := &cursorIterator{store: s, tx: tx, cur: b.Cursor(), prefix: []byte(prefix), firstKey: []byte(prefix)}
	return it, nil
}
