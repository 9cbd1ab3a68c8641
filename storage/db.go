package storage

import (
	"errors"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
)

// ErrKeyNotFound is returned by Get when the key has never been written.
var ErrKeyNotFound = errors.New("storage: key not found")

// Database is a generic interface for a key-value store, letting the daemon
// run against an in-memory backend in tests and LevelDB in production.
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Close()
}

// --- In-Memory DB (for testing) ---

type MemDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemDB() *MemDB {
	return &MemDB{
		data: make(map[string][]byte),
	}
}

func (db *MemDB) Put(key []byte, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (db *MemDB) Get(key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	value, ok := db.data[string(key)]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), value...), nil
}

func (db *MemDB) Has(key []byte) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	_, ok := db.data[string(key)]
	return ok, nil
}

// Close satisfies the Database interface for MemDB.
func (db *MemDB) Close() {
	// Nothing to close for an in-memory database.
}

// --- Persistent DB ---

// LevelDB is a persistent key-value store backed by LevelDB.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

// Put inserts or updates a key-value pair.
func (ldb *LevelDB) Put(key []byte, value []byte) error {
	return ldb.db.Put(key, value, nil)
}

// Get retrieves a value for a given key.
func (ldb *LevelDB) Get(key []byte) ([]byte, error) {
	value, err := ldb.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrKeyNotFound
	}
	return value, err
}

// Has reports whether a key exists.
func (ldb *LevelDB) Has(key []byte) (bool, error) {
	return ldb.db.Has(key, nil)
}

// Close closes the database connection.
func (ldb *LevelDB) Close() {
	ldb.db.Close()
}
