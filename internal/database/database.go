package database

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// DBManager serialises writes to a sqlite database file.
type DBManager struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// NewDBManager opens dbPath, creating the file if needed.
func NewDBManager(dbPath string) (*DBManager, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000", dbPath))
	if err != nil {
		return nil, fmt.Errorf("could not open sqlite3 database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not connect to sqlite3 database %s: %w", dbPath, err)
	}

	logrus.WithField("file", dbPath).Debug("Opened sqlite3 database")

	return &DBManager{
		db:   db,
		path: dbPath,
	}, nil
}

func (dm *DBManager) Path() string {
	return dm.path
}

// ExecuteWrite performs a single write statement.
func (dm *DBManager) ExecuteWrite(query string, args ...any) (sql.Result, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	return dm.db.Exec(query, args...)
}

// ExecuteWriteTx runs fn inside one transaction, rolling back when it fails.
func (dm *DBManager) ExecuteWriteTx(fn func(*sql.Tx) error) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	tx, err := dm.db.Begin()
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logrus.WithError(rbErr).Warn("could not roll back transaction")
		}
		return err
	}

	return tx.Commit()
}

func (dm *DBManager) Query(query string, args ...any) (*sql.Rows, error) {
	return dm.db.Query(query, args...)
}

func (dm *DBManager) Close() error {
	return dm.db.Close()
}
