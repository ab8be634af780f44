// Package display formats search results the way spec.md §4.9
// describes: file-mode prints one deduplicated path per match plus its
// content duplicates, line-mode streams matches grouped by directory
// with optional surrounding context. Grounded on the teacher's
// internal/display formatter shape (an Options struct plus one method
// per output mode) but writing straight to an io.Writer instead of
// building a string, since line-mode output is a stream, not a
// snapshot.
package display

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/standardbeagle/finja/internal/pathdict"
	"github.com/standardbeagle/finja/internal/search"
	"github.com/standardbeagle/finja/internal/store"
)

// notFoundPlaceholder replaces a context line's text when the source file
// can't be read at display time (spec.md §7).
const notFoundPlaceholder = "!! File not found "

// Options controls how Write renders a result set (spec.md §6 flags).
type Options struct {
	FileMode bool
	Raw      bool
	Context  int // lines of context per match; default 1
}

// Formatter renders search.Match rows against the project root on disk.
type Formatter struct {
	st    *store.Store
	paths *pathdict.Dict
	root  string
}

// New returns a ready-to-use formatter. root is the project directory the
// stored paths are relative to, used to read context lines.
func New(st *store.Store, paths *pathdict.Dict, root string) *Formatter {
	return &Formatter{st: st, paths: paths, root: root}
}

type resolved struct {
	match search.Match
	path  string
}

func (f *Formatter) resolve(matches []search.Match) ([]resolved, error) {
	out := make([]resolved, len(matches))
	for i, m := range matches {
		p, err := f.paths.Decompress(m.Path)
		if err != nil {
			return nil, fmt.Errorf("decompress path: %w", err)
		}
		out[i] = resolved{match: m, path: p}
	}
	return out, nil
}

// Write renders matches to w per opts.
func (f *Formatter) Write(w io.Writer, matches []search.Match, opts Options) error {
	if opts.Context <= 0 {
		opts.Context = 1
	}
	resolved, err := f.resolve(matches)
	if err != nil {
		return err
	}
	if opts.FileMode {
		return f.writeFileMode(w, resolved, opts)
	}
	return f.writeLineMode(w, resolved, opts)
}

// writeFileMode sorts by path descending and, unless raw, appends a
// duplicates: block per file (spec.md §4.9).
func (f *Formatter) writeFileMode(w io.Writer, rows []resolved, opts Options) error {
	sort.Slice(rows, func(i, j int) bool { return rows[i].path > rows[j].path })

	sep := "\n"
	if opts.Raw {
		sep = "\x00"
	}

	for _, r := range rows {
		if _, err := fmt.Fprintf(w, "%s%s", r.path, sep); err != nil {
			return err
		}
		if opts.Raw {
			continue
		}
		dups, err := f.duplicatesFor(r.match.FileID)
		if err != nil {
			return err
		}
		if len(dups) == 0 {
			continue
		}
		if _, err := fmt.Fprintln(w, "duplicates:"); err != nil {
			return err
		}
		for _, d := range dups {
			if _, err := fmt.Fprintf(w, "  %s\n", d); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeLineMode sorts by (path desc, line desc) and streams matches
// grouped by directory, with either a single line or a context block per
// match (spec.md §4.9).
func (f *Formatter) writeLineMode(w io.Writer, rows []resolved, opts Options) error {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].path != rows[j].path {
			return rows[i].path > rows[j].path
		}
		return rows[i].match.Line > rows[j].match.Line
	})

	sep := ":"
	if opts.Raw {
		sep = "\x00"
	}

	lastDir := ""
	for _, r := range rows {
		dir := filepath.Dir(r.path)
		if !opts.Raw && dir != lastDir {
			if _, err := fmt.Fprintf(w, "%s:\n", dir); err != nil {
				return err
			}
			lastDir = dir
		}

		if opts.Context <= 1 || opts.Raw {
			line, err := f.readLine(r.path, r.match.Line)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "%s%s%d%s%s%s", r.path, sep, r.match.Line, sep, line, "\n"); err != nil {
				return err
			}
			continue
		}

		block, err := f.readContext(r.path, r.match.Line, opts.Context)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s:%d:\n", r.path, r.match.Line); err != nil {
			return err
		}
		for _, line := range block {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *Formatter) duplicatesFor(fileID int64) ([]string, error) {
	rows, err := f.st.DB().Query(
		`SELECT f2.path FROM file f1 JOIN file f2 ON f2.md5 = f1.md5 AND f2.id != f1.id WHERE f1.id = ?`,
		fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("query duplicates: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var packed []byte
		if err := rows.Scan(&packed); err != nil {
			return nil, fmt.Errorf("scan duplicate path: %w", err)
		}
		p, err := f.paths.Decompress(packed)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// readLine fetches one line of source text, reading straight off disk the
// way linecache does in the original (spec.md §D). A read failure
// produces the inline placeholder rather than aborting the whole result.
func (f *Formatter) readLine(relPath string, line uint32) (string, error) {
	lines, err := f.readLines(relPath, line, line)
	if err != nil {
		return notFoundPlaceholder, nil
	}
	if len(lines) == 0 {
		return "", nil
	}
	return lines[0], nil
}

// readContext returns `context` lines centered on line, with leading and
// trailing blank lines trimmed (spec.md §4.9).
func (f *Formatter) readContext(relPath string, line uint32, context int) ([]string, error) {
	half := uint32((context - 1) / 2)
	var start uint32 = 1
	if line > half {
		start = line - half
	}
	end := start + uint32(context) - 1

	lines, err := f.readLines(relPath, start, end)
	if err != nil {
		return []string{notFoundPlaceholder}, nil
	}
	return trimBlankEdges(lines), nil
}

func trimBlankEdges(lines []string) []string {
	start, end := 0, len(lines)
	for start < end && lines[start] == "" {
		start++
	}
	for end > start && lines[end-1] == "" {
		end--
	}
	return lines[start:end]
}

func (f *Formatter) readLines(relPath string, from, to uint32) ([]string, error) {
	path := relPath
	if !filepath.IsAbs(path) {
		path = filepath.Join(f.root, relPath)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var out []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var n uint32
	for scanner.Scan() {
		n++
		if n < from {
			continue
		}
		if n > to {
			break
		}
		out = append(out, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
