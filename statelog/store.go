package statelog

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/dgraph-io/badger/v3"

	"github.com/DistCompiler/pgo/restaurant/shm"
)

const snapshotPrefix = "snap-"

func snapshotKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", snapshotPrefix, seq))
}

// Store persists every snapshot into a badger database, in order.
type Store struct {
	db     *badger.DB
	ownsDB bool
	seq    sequencer
}

// NewStore saves snapshots into an already open database. Closing the store
// leaves the database open.
func NewStore(db *badger.DB) *Store {
	return &Store{db: db}
}

// OpenStore opens (or creates) a badger database in dir.
func OpenStore(dir string) (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("error on opening snapshot store %s: %w", dir, err)
	}
	return &Store{db: db, ownsDB: true}, nil
}

func (store *Store) DB() *badger.DB {
	return store.db
}

func (store *Store) SaveState(st *shm.FullState) error {
	s := Capture(st)
	store.seq.stamp(&s)

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&s); err != nil {
		return fmt.Errorf("error on encoding snapshot %d: %w", s.Seq, err)
	}
	err := store.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey(s.Seq), buf.Bytes())
	})
	if err != nil {
		return fmt.Errorf("error on storing snapshot %d: %w", s.Seq, err)
	}
	return nil
}

func (store *Store) Close() error {
	if !store.ownsDB {
		return nil
	}
	return store.db.Close()
}

// LoadSnapshots reads back every snapshot saved into db, oldest first.
func LoadSnapshots(db *badger.DB) ([]Snapshot, error) {
	var snaps []Snapshot
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(snapshotPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var s Snapshot
				if err := gob.NewDecoder(bytes.NewReader(val)).Decode(&s); err != nil {
					return err
				}
				snaps = append(snaps, s)
				return nil
			})
			if err != nil {
				return fmt.Errorf("error on decoding %s: %w", it.Item().Key(), err)
			}
		}
		return nil
	})
	return snaps, err
}
