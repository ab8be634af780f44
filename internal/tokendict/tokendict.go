// Package tokendict implements the write-through token intern table
// (spec.md §4.3): normalized token bytes -> monotonically increasing
// integer id, backed by the `token` table and the `MAX_ID` key_value
// entry.
package tokendict

import (
	"database/sql"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/finja/internal/store"
)

// reservedSeed is the initial MAX_ID when the key is absent (DESIGN.md
// open question (b)): large enough to clear both key_value enumerants
// (INTERPUNCT=0, MAX_ID=1) without the two numbering spaces colliding.
const reservedSeed = 1

type entry struct {
	key string
	id  uint32
}

// Dict is the in-memory, write-through cache in front of the `token`
// table. It is not safe for concurrent use; spec.md §5 guarantees FINJA
// never needs it to be.
type Dict struct {
	st     *store.Store
	budget *Budget

	// cache is keyed by a fast xxhash pre-hash of the normalized key,
	// the same "fast hash before exact compare" shape the teacher uses
	// for its in-memory content cache (internal/core/file_content_store.go
	// FastHash field) -- collisions are resolved by the linear scan
	// inside each bucket.
	cache map[uint64][]entry

	pending []entry // ids assigned this session, not yet flushed
	maxID   uint32
}

// Open loads MAX_ID from the store (seeding it if absent) and returns a
// ready-to-use dictionary.
func Open(st *store.Store, budget *Budget) (*Dict, error) {
	maxID, ok, err := store.GetUint32Tx(st.DB(), store.KeyMaxID)
	if err != nil {
		return nil, fmt.Errorf("load MAX_ID: %w", err)
	}
	if !ok {
		maxID = reservedSeed
	}
	return &Dict{
		st:     st,
		budget: budget,
		cache:  make(map[uint64][]entry),
		maxID:  maxID,
	}, nil
}

func shard(key []byte) uint64 {
	return xxhash.Sum64(key)
}

func (d *Dict) fromCache(key []byte) (uint32, bool) {
	h := shard(key)
	for _, e := range d.cache[h] {
		if e.key == string(key) {
			return e.id, true
		}
	}
	return 0, false
}

func (d *Dict) putCache(key []byte, id uint32) {
	h := shard(key)
	d.cache[h] = append(d.cache[h], entry{key: string(key), id: id})
	if d.budget.Add(1) {
		d.Clear()
		d.budget.Reset()
	}
}

// Clear drops every in-memory entry. Safe because the dictionary is
// write-through: a subsequent IDFor falls back to the store.
func (d *Dict) Clear() {
	d.cache = make(map[uint64][]entry)
}

// IDFor returns the integer id for a normalized token, assigning a fresh
// one (buffered for Commit) if the token has never been seen.
func (d *Dict) IDFor(key []byte) (uint32, error) {
	if id, ok := d.fromCache(key); ok {
		return id, nil
	}

	var id uint32
	err := d.st.DB().QueryRow(`SELECT id FROM token WHERE string = ?`, key).Scan(&id)
	switch {
	case err == nil:
		d.putCache(key, id)
		return id, nil
	case err != sql.ErrNoRows:
		return 0, fmt.Errorf("lookup token: %w", err)
	}

	d.maxID++
	id = d.maxID
	d.pending = append(d.pending, entry{key: string(key), id: id})
	d.putCache(key, id)
	return id, nil
}

// Commit flushes the pending insert buffer and persists MAX_ID, within
// tx. Returns the number of rows written. Must run inside the caller's
// per-file transaction (spec.md §4.6 step 4) before any posting
// referencing a freshly assigned id becomes visible.
func (d *Dict) Commit(tx *sql.Tx) (int, error) {
	if len(d.pending) == 0 {
		return 0, nil
	}
	stmt, err := tx.Prepare(`INSERT INTO token(id, string) VALUES (?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare token insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range d.pending {
		if _, err := stmt.Exec(e.id, []byte(e.key)); err != nil {
			return 0, fmt.Errorf("insert token %d: %w", e.id, err)
		}
	}
	n := len(d.pending)
	d.pending = d.pending[:0]

	if err := store.SetUint32Tx(tx, store.KeyMaxID, d.maxID); err != nil {
		return 0, fmt.Errorf("persist MAX_ID: %w", err)
	}
	return n, nil
}
