// Package persist implements durable persistence for a database.Database:
// an append-only journal of fact writes and structural edits, plus
// snapshots taken on request (SaveSnapshot), backed by an embedded dgraph-io/badger/v4 store (grounded on
// the corpus's badger wrapper). Journal entries are gob-encoded, matching
// the low-ceremony binary encoding style the corpus reaches for when no
// cross-language wire format is required.
package persist

import (
	"bytes"
	"encoding/gob"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/gridcube/gridcube/internal/pkg/logging"
	"github.com/gridcube/gridcube/pkg/database"
)

var log = logging.Log()

// EntryKind distinguishes journal entry payloads.
type EntryKind int

const (
	FactWrite EntryKind = iota
	StructureChange
)

// Entry is one journaled mutation, gob-encoded as the badger value.
type Entry struct {
	Kind      EntryKind
	Cube      string
	Address   []string
	Value     float64
	Dimension string
	Detail    string // human-readable structural change description
}

// Store is a badger-backed journal plus snapshot store for one database.
//
// Layout: keys "j/<seq>" hold journal entries in commit order; key
// "snapshot" holds the most recent full Facts() dump per cube, gob-encoded.
type Store struct {
	db  *badger.DB
	seq uint64
}

// Config mirrors the corpus's badger.Config shape, trimmed to what this
// package exercises.
type Config struct {
	Path     string
	InMemory bool
}

// Open opens (creating if absent) the badger store backing a persist.Store.
func Open(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open persistence store: %w", err)
	}
	s := &Store{db: db}
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte("j/")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			s.seq++ // continue after entries already journaled
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying badger database.
func (s *Store) Close() error { return s.db.Close() }

func encode(e Entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(b []byte) (Entry, error) {
	var e Entry
	err := gob.NewDecoder(bytes.NewReader(b)).Decode(&e)
	return e, err
}

// AppendFactWrite journals a single fact write.
func (s *Store) AppendFactWrite(cube string, address []string, value float64) error {
	return s.append(Entry{Kind: FactWrite, Cube: cube, Address: address, Value: value})
}

// AppendStructureChange journals a structural edit's commit.
func (s *Store) AppendStructureChange(dimension, detail string) error {
	return s.append(Entry{Kind: StructureChange, Dimension: dimension, Detail: detail})
}

func (s *Store) append(e Entry) error {
	s.seq++
	b, err := encode(e)
	if err != nil {
		return err
	}
	key := []byte(fmt.Sprintf("j/%020d", s.seq))
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, b)
	})
}

// ReplayJournal replays every journaled fact write onto db, in commit
// order. Structural changes are journaled for audit but not replayed (the
// snapshot holds facts only, so dimensions and cubes must already exist on
// db, as for LoadSnapshot); replaying
// only facts keeps this idempotent against a snapshot-then-journal restore.
func (s *Store) ReplayJournal(db *database.Database) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte("j/")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var entry Entry
			if err := it.Item().Value(func(v []byte) error {
				e, err := decode(v)
				entry = e
				return err
			}); err != nil {
				return err
			}
			if entry.Kind != FactWrite {
				continue
			}
			if err := db.Write(entry.Cube, entry.Value, entry.Address...); err != nil {
				log.Error(err, "journal replay skipped a fact write", "cube", entry.Cube, "address", entry.Address)
			}
		}
		return nil
	})
}

// SaveSnapshot writes a full point-in-time dump of every fact in every cube
// of db, keyed "snapshot", overwriting any prior snapshot.
func (s *Store) SaveSnapshot(db *database.Database) error {
	snap := map[string][]database.FactView{}
	for _, cubeName := range db.Cubes() {
		facts, err := db.Facts(cubeName)
		if err != nil {
			return err
		}
		snap[cubeName] = facts
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("snapshot"), buf.Bytes())
	})
}

// LoadSnapshot restores every fact recorded in the most recent snapshot
// into db. Dimensions and cubes must already exist (typically created by
// pkg/config.Apply against the same model that produced the snapshot).
func (s *Store) LoadSnapshot(db *database.Database) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("snapshot"))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			snap := map[string][]database.FactView{}
			if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&snap); err != nil {
				return err
			}
			for cubeName, facts := range snap {
				for _, f := range facts {
					if err := db.Write(cubeName, f.Value, f.Address...); err != nil {
						log.Error(err, "snapshot load skipped a fact", "cube", cubeName, "address", f.Address)
					}
				}
			}
			return nil
		})
	})
}
