package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite keeps one database file per namespace under the data directory.
type SQLite struct {
	db         *sql.DB
	path       string
	backupPath string
}

// NewSQLite opens or creates <dataDir>/<slug>.db.
func NewSQLite(dataDir, namespace string) (*SQLite, error) {
	if dataDir == "" {
		dataDir = filepath.Join(os.TempDir(), "alertbell")
	}
	if err := ensureDirs(dataDir); err != nil {
		return nil, err
	}
	name := Slug(namespace)
	path := filepath.Join(dataDir, name+".db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &SQLite{
		db:         db,
		path:       path,
		backupPath: filepath.Join(BackupDir(dataDir), name+".db"),
	}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *SQLite) createTables() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS alert_state (
		symbol     TEXT PRIMARY KEY,
		record     BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	)`)
	return err
}

// Path returns the database file path.
func (s *SQLite) Path() string {
	return s.path
}

// BackupPath returns where Backup writes its copy.
func (s *SQLite) BackupPath() string {
	return s.backupPath
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Lookup(name string) ([]byte, error) {
	var record []byte
	err := s.db.QueryRow(`SELECT record FROM alert_state WHERE symbol = ?`, name).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, persistenceError("look up state for", name, err)
	}
	return record, nil
}

func (s *SQLite) Update(name string, record []byte) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO alert_state (symbol, record, updated_at)
		VALUES (?,?,?)`,
		name, record, time.Now().UnixNano(),
	)
	if err != nil {
		return persistenceError("save state for", name, err)
	}
	return nil
}

// Backup writes a compacted copy of the database to the backup directory,
// replacing the previous backup.
func (s *SQLite) Backup() error {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM alert_state`).Scan(&count); err != nil {
		return persistenceError("count states", "", err)
	}
	if count == 0 {
		return nil
	}

	if err := os.Remove(s.backupPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return persistenceError("remove old backup", s.backupPath, err)
	}
	quoted := strings.ReplaceAll(s.backupPath, "'", "''")
	if _, err := s.db.Exec(`VACUUM INTO '` + quoted + `'`); err != nil {
		return persistenceError("back up to", s.backupPath, err)
	}
	return nil
}

// Symbols lists every symbol name that has a stored state.
func (s *SQLite) Symbols() ([]string, error) {
	rows, err := s.db.Query(`SELECT symbol FROM alert_state ORDER BY symbol`)
	if err != nil {
		return nil, persistenceError("query symbols", "", err)
	}
	defer rows.Close()

	symbols := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, persistenceError("scan symbol", "", err)
		}
		symbols = append(symbols, name)
	}
	return symbols, rows.Err()
}
