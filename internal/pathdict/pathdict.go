// Package pathdict implements the path-segment intern table (spec.md
// §4.4): every file path is compressed into a packed little-endian u32
// array of interned segment ids, backed by the `path_token` table.
package pathdict

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"os"
	"strings"

	"github.com/standardbeagle/finja/internal/store"
	"github.com/standardbeagle/finja/internal/tokendict"
)

// Dict is the two-way, write-through segment intern table.
type Dict struct {
	st     *store.Store
	budget *tokendict.Budget

	toID   map[string]uint32
	toText map[uint32]string

	pending []pendingSeg
}

type pendingSeg struct {
	id   uint32
	text string
}

// Open returns a ready-to-use path dictionary.
func Open(st *store.Store, budget *tokendict.Budget) *Dict {
	return &Dict{
		st:     st,
		budget: budget,
		toID:   make(map[string]uint32),
		toText: make(map[uint32]string),
	}
}

// Clear drops every in-memory entry; correctness is unaffected because
// the dictionary is write-through.
func (d *Dict) Clear() {
	d.toID = make(map[string]uint32)
	d.toText = make(map[uint32]string)
}

func (d *Dict) remember(id uint32, text string) {
	d.toID[text] = id
	d.toText[id] = text
	if d.budget.Add(1) {
		d.Clear()
		d.budget.Reset()
	}
}

// idFor interns one path segment, assigning a fresh row if needed.
func (d *Dict) idFor(segment string) (uint32, error) {
	if id, ok := d.toID[segment]; ok {
		return id, nil
	}

	var id int64
	err := d.st.DB().QueryRow(`SELECT id FROM path_token WHERE string = ?`, segment).Scan(&id)
	switch {
	case err == nil:
		d.remember(uint32(id), segment)
		return uint32(id), nil
	case err != sql.ErrNoRows:
		return 0, fmt.Errorf("lookup path segment: %w", err)
	}

	res, err := d.st.DB().Exec(`INSERT INTO path_token(string) VALUES (?)`, segment)
	if err != nil {
		return 0, fmt.Errorf("insert path segment: %w", err)
	}
	lastID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	d.remember(uint32(lastID), segment)
	return uint32(lastID), nil
}

// lookupID resolves segment to its id without interning a new row,
// mirroring search.Planner.lookupExisting: a read-only caller (--pignore
// resolution) must not mutate the dictionary just because a segment was
// never seen.
func (d *Dict) lookupID(segment string) (uint32, bool, error) {
	if id, ok := d.toID[segment]; ok {
		return id, true, nil
	}

	var id int64
	err := d.st.DB().QueryRow(`SELECT id FROM path_token WHERE string = ?`, segment).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup path segment: %w", err)
	}
	d.remember(uint32(id), segment)
	return uint32(id), true, nil
}

// textFor reverses idFor, consulting the store on a cache miss.
func (d *Dict) textFor(id uint32) (string, error) {
	if text, ok := d.toText[id]; ok {
		return text, nil
	}
	var text string
	err := d.st.DB().QueryRow(`SELECT string FROM path_token WHERE id = ?`, id).Scan(&text)
	if err != nil {
		return "", fmt.Errorf("lookup path segment %d: %w", id, err)
	}
	d.remember(id, text)
	return text, nil
}

// Compress splits path on the host separator, interns every segment, and
// packs the resulting ids into a contiguous little-endian u32 array
// (spec.md §4.4). The width must stay exactly 4 bytes per id: the
// --pignore hex-LIKE filter's exactness depends on no id's hex expansion
// being a byte-subsequence prefix of a wider one (DESIGN.md open question
// (c)).
func (d *Dict) Compress(path string) ([]byte, error) {
	segments := strings.Split(path, string(os.PathSeparator))
	out := make([]byte, 0, 4*len(segments))
	for _, seg := range segments {
		id, err := d.idFor(seg)
		if err != nil {
			return nil, err
		}
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], id)
		out = append(out, buf[:]...)
	}
	return out, nil
}

// Decompress reverses Compress.
func (d *Dict) Decompress(packed []byte) (string, error) {
	if len(packed)%4 != 0 {
		return "", fmt.Errorf("packed path length %d is not a multiple of 4", len(packed))
	}
	segments := make([]string, 0, len(packed)/4)
	for i := 0; i < len(packed); i += 4 {
		id := binary.LittleEndian.Uint32(packed[i : i+4])
		text, err := d.textFor(id)
		if err != nil {
			return "", err
		}
		segments = append(segments, text)
	}
	return strings.Join(segments, string(os.PathSeparator)), nil
}

// SegmentHexPattern packs a single segment's id the same way Compress
// does and hex-encodes it upper-case, for use in a `hex(file.path) NOT
// LIKE '%...%'` exclusion predicate (spec.md §4.4, §6 --pignore). It
// never interns a new path_token row: a --pignore segment that was never
// seen while indexing cannot appear in any stored path, so ok is false
// and the caller should drop the predicate rather than mutate the store
// during what must stay a read-only search.
func (d *Dict) SegmentHexPattern(segment string) (pattern string, ok bool, err error) {
	id, found, err := d.lookupID(segment)
	if err != nil {
		return "", false, err
	}
	if !found {
		return "", false, nil
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], id)
	return fmt.Sprintf("%%%X%%", buf[:]), true, nil
}
