package store

import (
	"database/sql"
	"encoding/binary"
)

// KVKey is the fixed enum of key_value rows (spec.md §6).
type KVKey int64

const (
	KeyInterpunct KVKey = 0
	KeyMaxID      KVKey = 1
)

// GetBool reads a boolean key_value flag. Absent keys default to false.
func (s *Store) GetBool(key KVKey) (bool, error) {
	var v []byte
	err := s.db.QueryRow(`SELECT value FROM key_value WHERE key = ?`, int64(key)).Scan(&v)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(v) == 1 && v[0] != 0, nil
}

// SetBool writes a boolean key_value flag. Used once, at database
// creation, for INTERPUNCT (spec.md §3 invariant: immutable thereafter).
func (s *Store) SetBool(key KVKey, v bool) error {
	b := byte(0)
	if v {
		b = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO key_value(key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		int64(key), []byte{b},
	)
	return err
}

// GetUint32Tx reads a uint32 key_value entry (per DESIGN.md open question
// (a): a plain big-endian encoding, not a pickled value). Absent keys
// return ok=false.
func GetUint32Tx(q interface {
	QueryRow(query string, args ...any) *sql.Row
}, key KVKey) (value uint32, ok bool, err error) {
	var v []byte
	err = q.QueryRow(`SELECT value FROM key_value WHERE key = ?`, int64(key)).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if len(v) != 4 {
		return 0, false, nil
	}
	return binary.BigEndian.Uint32(v), true, nil
}

// SetUint32Tx writes a uint32 key_value entry within an existing
// transaction.
func SetUint32Tx(ex interface {
	Exec(query string, args ...any) (sql.Result, error)
}, key KVKey, value uint32) error {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, value)
	_, err := ex.Exec(
		`INSERT INTO key_value(key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		int64(key), b,
	)
	return err
}
