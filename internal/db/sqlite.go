// Package db opens the SQLite model store and applies its migrations.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"
)

// Pool modes. The write pool holds a single connection and takes the write
// lock when a transaction begins.
const (
	ModeWrite = "write"
	ModeRead  = "read"
)

const (
	busyTimeout     = "5000"
	defaultReadPool = 4
)

// Store is the write/read pool pair of one SQLite file.
type Store struct {
	Write *sql.DB
	Read  *sql.DB
}

// Open opens the store at path and migrates it to the latest schema.
func Open(path string, readMaxOpen int) (*Store, error) {
	writeDB, readDB, err := OpenSQLitePair(path, readMaxOpen)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(writeDB); err != nil {
		_ = readDB.Close()
		_ = writeDB.Close()
		return nil, err
	}
	return &Store{Write: writeDB, Read: readDB}, nil
}

// Close closes both pools.
func (s *Store) Close() error {
	rerr := s.Read.Close()
	werr := s.Write.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

// OpenSQLite opens a pool in the given mode. maxOpen sizes read pools; zero
// selects the default.
func OpenSQLite(path string, mode string, maxOpen int) (*sql.DB, error) {
	if mode != ModeRead && mode != ModeWrite {
		return nil, fmt.Errorf("invalid SQLite mode %q: must be %q or %q", mode, ModeRead, ModeWrite)
	}

	db, err := sql.Open("sqlite3", buildDSN(path, mode))
	if err != nil {
		return nil, fmt.Errorf("open sqlite (%s): %w", mode, err)
	}

	if mode == ModeWrite {
		maxOpen = 1
	} else if maxOpen <= 0 {
		maxOpen = defaultReadPool
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite (%s): %w", mode, err)
	}
	return db, nil
}

// OpenSQLitePair opens a write pool and a read pool on the same file.
func OpenSQLitePair(path string, readMaxOpen int) (writeDB, readDB *sql.DB, err error) {
	writeDB, err = OpenSQLite(path, ModeWrite, 0)
	if err != nil {
		return nil, nil, err
	}
	readDB, err = OpenSQLite(path, ModeRead, readMaxOpen)
	if err != nil {
		_ = writeDB.Close()
		return nil, nil, err
	}
	return writeDB, readDB, nil
}

func buildDSN(path string, mode string) string {
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_busy_timeout", busyTimeout)
	params.Set("_synchronous", "NORMAL")
	params.Set("_foreign_keys", "on")
	if mode == ModeWrite {
		params.Set("_txlock", "immediate")
	}
	return path + "?" + params.Encode()
}
