package store

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Store executes composed statements against one SQLite database.
type Store struct {
	db     *sql.DB
	memory bool
}

type pragma struct {
	name  string
	value string
}

// filePragmas apply to databases on disk. An in-memory database keeps its
// "memory" journal and only gets the remaining settings.
var filePragmas = []pragma{
	{"journal_mode", "WAL"},
	{"synchronous", "NORMAL"},
	{"busy_timeout", "5000"},
	{"foreign_keys", "ON"},
}

// Open opens (creating if needed) the SQLite database at path.
// Pass MemoryPath for a throwaway database.
//
// The pool holds a single connection: every statement, seed script and run
// log write on a Store sees the same database, including in memory.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, memory: isMemory(path)}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database %s: %w", path, err)
	}
	if err := s.configure(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func isMemory(path string) bool {
	return path == MemoryPath || strings.HasPrefix(path, "file::memory:")
}

func (s *Store) configure() error {
	for _, p := range filePragmas {
		if s.memory && p.name == "journal_mode" {
			continue
		}
		stmt := fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("configure database: %q: %w", stmt, err)
		}
	}
	return nil
}

// InMemory reports whether the store was opened on MemoryPath.
func (s *Store) InMemory() bool {
	return s.memory
}

// Close closes the database. Closing a zero Store is a no-op.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the underlying handle for queries the Store does not wrap.
func (s *Store) DB() *sql.DB {
	return s.db
}

// verifyPragma reads a pragma back and compares its textual value.
func (s *Store) verifyPragma(name, want string) error {
	var got string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&got); err != nil {
		return fmt.Errorf("read pragma %s: %w", name, err)
	}
	if got != want {
		return fmt.Errorf("pragma %s = %q, want %q", name, got, want)
	}
	return nil
}
