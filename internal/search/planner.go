// Package search compiles a conjunctive multi-term query into a single
// relational query (spec.md §4.8): tokens are resolved through the
// dictionary, ordered by ascending cardinality so the join drives from
// the most selective term, and path-exclusion predicates are appended.
package search

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/standardbeagle/finja/internal/pathdict"
	"github.com/standardbeagle/finja/internal/store"
	"github.com/standardbeagle/finja/internal/token"
	"github.com/standardbeagle/finja/internal/tokendict"
)

// Match is one result row. Line/Encoding are zero in file-mode.
type Match struct {
	Path     []byte // packed path, still compressed
	FileID   int64
	Line     uint32
	Encoding string
}

// Query describes one search invocation (spec.md §4.8, §6).
type Query struct {
	Terms      []string
	Ignores    []string // --pignore segments
	FileMode   bool
	MaxResults int // 0 = unlimited
}

// Planner resolves and executes conjunctive queries.
type Planner struct {
	st     *store.Store
	tokens *tokendict.Dict
	paths  *pathdict.Dict
}

// New returns a ready-to-use planner.
func New(st *store.Store, tokens *tokendict.Dict, paths *pathdict.Dict) *Planner {
	return &Planner{st: st, tokens: tokens, paths: paths}
}

// Search executes q and returns its matches. A query term that never
// made it into the dictionary yields an empty result (spec.md §4.8 step
// 1), not an error.
func (p *Planner) Search(q Query) ([]Match, error) {
	if len(q.Terms) == 0 {
		return nil, nil
	}

	tokenIDs, err := p.resolveTerms(q.Terms)
	if err != nil {
		return nil, err
	}
	if tokenIDs == nil {
		return nil, nil // a term failed to resolve
	}

	ordered, err := p.orderByCardinality(tokenIDs)
	if err != nil {
		return nil, err
	}

	ignorePatterns, err := p.resolveIgnores(q.Ignores)
	if err != nil {
		return nil, err
	}

	sqlText, args := compile(ordered, ignorePatterns, q.FileMode)
	rows, err := p.st.DB().Query(sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var m Match
		if q.FileMode {
			if err := rows.Scan(&m.Path, &m.FileID); err != nil {
				return nil, fmt.Errorf("scan file-mode row: %w", err)
			}
		} else {
			if err := rows.Scan(&m.Path, &m.FileID, &m.Line, &m.Encoding); err != nil {
				return nil, fmt.Errorf("scan line-mode row: %w", err)
			}
		}
		out = append(out, m)
		if q.MaxResults > 0 && len(out) >= q.MaxResults {
			break
		}
	}
	return out, rows.Err()
}

// resolveTerms normalizes every query term and looks up its existing id
// without interning it. Returns nil (not an error) if any term is missing
// from the dictionary.
func (p *Planner) resolveTerms(terms []string) ([]uint32, error) {
	ids := make([]uint32, 0, len(terms))
	for _, raw := range terms {
		key, ok := token.Normalize(raw)
		if !ok {
			return nil, nil
		}
		id, existsErr := p.lookupExisting(key)
		if existsErr != nil {
			return nil, existsErr
		}
		if id == 0 {
			return nil, nil
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// lookupExisting resolves a normalized key to its id without interning a
// new one: a search must not mutate the dictionary just by failing to
// find a term.
func (p *Planner) lookupExisting(key []byte) (uint32, error) {
	var id uint32
	err := p.st.DB().QueryRow(`SELECT id FROM token WHERE string = ?`, key).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("lookup query token: %w", err)
	}
	return id, nil
}

// orderByCardinality sorts token ids ascending by posting count (spec.md
// §4.8 step 2).
func (p *Planner) orderByCardinality(ids []uint32) ([]uint32, error) {
	type counted struct {
		id    uint32
		count int
	}
	counts := make([]counted, len(ids))
	for i, id := range ids {
		var c int
		if err := p.st.DB().QueryRow(`SELECT COUNT(*) FROM finja WHERE token_id = ?`, id).Scan(&c); err != nil {
			return nil, fmt.Errorf("count token cardinality: %w", err)
		}
		counts[i] = counted{id: id, count: c}
	}
	for i := 1; i < len(counts); i++ {
		for j := i; j > 0 && counts[j].count < counts[j-1].count; j-- {
			counts[j], counts[j-1] = counts[j-1], counts[j]
		}
	}
	out := make([]uint32, len(counts))
	for i, c := range counts {
		out[i] = c.id
	}
	return out, nil
}

// resolveIgnores turns each --pignore segment into a hex-LIKE pattern
// (spec.md §4.4).
func (p *Planner) resolveIgnores(ignores []string) ([]string, error) {
	if len(ignores) == 0 {
		return nil, nil
	}
	patterns := make([]string, 0, len(ignores))
	for _, seg := range ignores {
		pat, ok, err := p.paths.SegmentHexPattern(seg)
		if err != nil {
			return nil, fmt.Errorf("resolve pignore %q: %w", seg, err)
		}
		if !ok {
			continue // never interned: no stored path can contain it
		}
		patterns = append(patterns, pat)
	}
	return patterns, nil
}

// compile builds the join query of spec.md §4.8 step 3 for n ordered
// token ids and m ignore patterns.
func compile(ids []uint32, ignorePatterns []string, fileMode bool) (string, []any) {
	var b strings.Builder
	args := make([]any, 0, len(ids)+len(ignorePatterns))

	projection := "f.path, f.id"
	if !fileMode {
		projection = "f.path, f.id, i.line, f.encoding"
	}

	fmt.Fprintf(&b, "SELECT DISTINCT %s\n  FROM finja AS i\n  JOIN file AS f ON i.file_id = f.id\n", projection)
	for k := 1; k < len(ids); k++ {
		fmt.Fprintf(&b, "  JOIN finja AS i%d ON i.file_id = i%d.file_id", k, k)
		if !fileMode {
			fmt.Fprintf(&b, " AND i.line = i%d.line", k)
		}
		b.WriteString("\n")
	}

	b.WriteString(" WHERE i.token_id = ?\n")
	args = append(args, ids[0])
	for k := 1; k < len(ids); k++ {
		fmt.Fprintf(&b, "   AND i%d.token_id = ?\n", k)
		args = append(args, ids[k])
	}
	for _, pat := range ignorePatterns {
		b.WriteString("   AND hex(f.path) NOT LIKE ?\n")
		args = append(args, pat)
	}

	return b.String(), args
}
