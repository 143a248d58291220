package extchannel

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	*sql.DB
}

// OpenSQLite3 opens dir/name and runs initSQL on it
func OpenSQLite3(dir, name, initSQL string) (*DB, error) {
	os.MkdirAll(dir, 0775)

	db, err := sql.Open("sqlite3", filepath.Join(dir, name))
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(initSQL); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{DB: db}, nil
}

const authSQL = `CREATE TABLE IF NOT EXISTS ban (
	addr VARCHAR(39) NOT NULL,
	name VARCHAR(32) NOT NULL
);
`

const storageSQL = `CREATE TABLE IF NOT EXISTS storage (
	key VARCHAR(512) NOT NULL,
	value VARCHAR(512) NOT NULL
);
`

// A Storage holds the ban list and the key/value store
type Storage struct {
	auth *DB
	kv   *DB
}

// OpenStorage opens auth.sqlite and storage.sqlite in dir
func OpenStorage(dir string) (*Storage, error) {
	auth, err := OpenSQLite3(dir, "auth.sqlite", authSQL)
	if err != nil {
		return nil, err
	}

	kv, err := OpenSQLite3(dir, "storage.sqlite", storageSQL)
	if err != nil {
		auth.Close()
		return nil, err
	}

	return &Storage{auth: auth, kv: kv}, nil
}

func (s *Storage) Close() error {
	err := s.auth.Close()
	if err2 := s.kv.Close(); err == nil {
		err = err2
	}
	return err
}
