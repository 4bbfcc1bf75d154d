package storage

import (
	"database/sql"
	"log/slog"
	"math"

	"curveindex/pkg/common"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// KeyStore keeps a key dataset in SQLite so one generated array can be
// indexed and benchmarked many times. It stores input keys only.
type KeyStore struct {
	db *sql.DB
}

func OpenKeyStore(path string) (*KeyStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite %s", path)
	}

	query := `
	CREATE TABLE IF NOT EXISTS keys (
		id  INTEGER PRIMARY KEY AUTOINCREMENT,
		key REAL NOT NULL
	);`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "init keys table")
	}

	_, err = db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = NORMAL;
	`)
	if err != nil {
		slog.Warn("failed to set sqlite pragmas", "path", path, "err", err)
	}

	return &KeyStore{db: db}, nil
}

// Save appends keys in a single transaction.
func (s *KeyStore) Save(keys []common.KeyType) error {
	if len(keys) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin")
	}

	stmt, err := tx.Prepare("INSERT INTO keys (key) VALUES (?)")
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "prepare insert")
	}
	defer stmt.Close()

	for _, k := range keys {
		if math.IsNaN(float64(k)) {
			tx.Rollback()
			return errors.New("cannot store NaN key")
		}
		if _, err := stmt.Exec(float64(k)); err != nil {
			tx.Rollback()
			return errors.Wrap(err, "insert key")
		}
	}

	return errors.Wrap(tx.Commit(), "commit")
}

// LoadAll returns every stored key in ascending order.
func (s *KeyStore) LoadAll() ([]common.KeyType, error) {
	rows, err := s.db.Query("SELECT key FROM keys ORDER BY key ASC, id ASC")
	if err != nil {
		return nil, errors.Wrap(err, "query keys")
	}
	defer rows.Close()

	var keys []common.KeyType
	for rows.Next() {
		var k float64
		if err := rows.Scan(&k); err != nil {
			return nil, errors.Wrap(err, "scan key")
		}
		keys = append(keys, common.KeyType(k))
	}
	return keys, errors.Wrap(rows.Err(), "iterate keys")
}

func (s *KeyStore) Count() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM keys").Scan(&n)
	return n, errors.Wrap(err, "count keys")
}

func (s *KeyStore) Truncate() error {
	_, err := s.db.Exec("DELETE FROM keys")
	return errors.Wrap(err, "truncate keys")
}

func (s *KeyStore) Close() error {
	return s.db.Close()
}
