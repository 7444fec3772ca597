package cache

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

type sqliteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend returns a Backend storing the snapshot in a single-row
// SQLite table. The upsert runs in an implicit transaction, which gives
// the atomic-replace guarantee.
func NewSQLiteBackend(path string) (Backend, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("CREATE TABLE IF NOT EXISTS Snapshot (ID INTEGER PRIMARY KEY CHECK (ID = 0), Data BLOB NOT NULL)"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Load() ([]byte, bool, error) {
	var data []byte
	err := b.db.QueryRow("SELECT Data FROM Snapshot WHERE ID = 0").Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (b *sqliteBackend) Save(data []byte) error {
	_, err := b.db.Exec(
		"INSERT INTO Snapshot (ID, Data) VALUES (0, ?) ON CONFLICT (ID) DO UPDATE SET Data = excluded.Data",
		data,
	)
	return err
}

func (b *sqliteBackend) Close() error { return b.db.Close() }
