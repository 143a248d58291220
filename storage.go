package extchannel

import (
	"database/sql"
	"errors"
)

func modOrAddStorageItem(db *sql.DB, key, value string) error {
	if err := deleteStorageItem(db, key); err != nil {
		return err
	}

	_, err := db.Exec(`INSERT INTO storage (
		key,
		value
	) VALUES (
		?,
		?
	);`, key, value)
	return err
}

func readStorageItem(db *sql.DB, key string) (string, error) {
	var r string
	err := db.QueryRow(`SELECT value FROM storage WHERE key = ?;`, key).Scan(&r)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}

	return r, nil
}

func deleteStorageItem(db *sql.DB, key string) error {
	_, err := db.Exec(`DELETE FROM storage WHERE key = ?;`, key)
	return err
}

// SetKey sets an entry in the key/value store,
// an empty value deletes it
func (s *Storage) SetKey(key, value string) error {
	if value == "" {
		return deleteStorageItem(s.kv.DB, key)
	}

	return modOrAddStorageItem(s.kv.DB, key, value)
}

// Key returns an entry of the key/value store, "" if it is not set
func (s *Storage) Key(key string) (string, error) {
	return readStorageItem(s.kv.DB, key)
}
