package stats

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/MuchTitan/evtsyslog/internal/database"
	"github.com/sirupsen/logrus"
)

type Repository interface {
	CreateTables() error
	// AddCounters adds the given deltas to the stored totals.
	AddCounters(deltas []Snapshot) error
	Load() ([]Snapshot, error)
	CleanupOldEntries(thresholdDays int) (int64, error)
	Close() error
}

type SQLiteRepository struct {
	db *database.DBManager
}

func NewSQLiteRepository(dbFile string) (*SQLiteRepository, error) {
	dbManager, err := database.NewDBManager(dbFile)
	if err != nil {
		return nil, err
	}
	logrus.WithField("file", dbManager.Path()).Info("Using statistics store")
	return &SQLiteRepository{
		db: dbManager,
	}, nil
}

func (r *SQLiteRepository) CreateTables() error {
	query := `CREATE TABLE IF NOT EXISTS channel_stats (
        channel TEXT NOT NULL PRIMARY KEY,
        forwarded INTEGER NOT NULL DEFAULT 0,
        dropped INTEGER NOT NULL DEFAULT 0,
        send_errors INTEGER NOT NULL DEFAULT 0,
        created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
        updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
    )`
	if _, err := r.db.ExecuteWrite(query); err != nil {
		return fmt.Errorf("could not create db table channel_stats: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) AddCounters(deltas []Snapshot) error {
	return r.db.ExecuteWriteTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
            INSERT INTO channel_stats (channel, forwarded, dropped, send_errors, updated_at)
            VALUES ($1, $2, $3, $4, $5)
            ON CONFLICT(channel) DO UPDATE SET
                forwarded = forwarded + excluded.forwarded,
                dropped = dropped + excluded.dropped,
                send_errors = send_errors + excluded.send_errors,
                updated_at = excluded.updated_at
        `)
		if err != nil {
			return err
		}
		defer stmt.Close()

		now := time.Now().UTC().Format("2006-01-02 15:04:05")
		for _, d := range deltas {
			if _, err := stmt.Exec(d.Channel, d.Forwarded, d.Dropped, d.SendErrors, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) Load() ([]Snapshot, error) {
	rows, err := r.db.Query(`SELECT channel, forwarded, dropped, send_errors FROM channel_stats ORDER BY channel`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var s Snapshot
		if err := rows.Scan(&s.Channel, &s.Forwarded, &s.Dropped, &s.SendErrors); err != nil {
			return nil, err
		}
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}

func (r *SQLiteRepository) CleanupOldEntries(thresholdDays int) (int64, error) {
	cutoffDate := time.Now().UTC().AddDate(0, 0, -thresholdDays).Format("2006-01-02 15:04:05")
	res, err := r.db.ExecuteWrite("DELETE FROM channel_stats WHERE updated_at < datetime($1)", cutoffDate)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
