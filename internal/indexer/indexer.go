// Package indexer drives the change detector over changed files, runs
// the tokenizer, and writes postings inside one transaction per file
// (spec.md §4.6). It also implements the two-pass reindex orchestrator
// (spec.md §4.7).
package indexer

import (
	"bufio"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/go-enry/go-enry/v2"
	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/standardbeagle/finja/internal/changedetect"
	"github.com/standardbeagle/finja/internal/ferrors"
	"github.com/standardbeagle/finja/internal/logging"
	"github.com/standardbeagle/finja/internal/pathdict"
	"github.com/standardbeagle/finja/internal/store"
	"github.com/standardbeagle/finja/internal/token"
	"github.com/standardbeagle/finja/internal/tokendict"
)

// Indexer coordinates the dictionaries, change detector, and store
// transactions spec.md §4.6 describes.
type Indexer struct {
	st     *store.Store
	tokens *tokendict.Dict
	paths  *pathdict.Dict
	detect *changedetect.Detector
	budget *tokendict.Budget
	log    *logging.Logger

	passes          []token.Pass
	filesSinceCheck int
}

// New wires the indexer's dependencies together.
func New(st *store.Store, tokens *tokendict.Dict, paths *pathdict.Dict, detect *changedetect.Detector, budget *tokendict.Budget, log *logging.Logger, interpunct bool) *Indexer {
	return &Indexer{
		st:     st,
		tokens: tokens,
		paths:  paths,
		detect: detect,
		budget: budget,
		log:    log,
		passes: token.Passes(interpunct),
	}
}

// IndexFile runs the change detector for one file and, if authorized,
// tokenizes and writes its postings. fsPath is where the file actually
// lives on disk; storedPath is the root-relative path recorded in the
// index. Returns whether a duplicate content divergence was observed
// (propagated up to the reindex orchestrator).
func (ix *Indexer) IndexFile(fsPath, storedPath string) (needSecondPass bool, err error) {
	res, err := ix.detect.Detect(fsPath, storedPath)
	if err != nil {
		switch err.(type) {
		case *ferrors.VanishedError:
			ix.log.Skip(storedPath, "not found, skipping")
			return false, nil
		case *ferrors.NotPlainFileError:
			ix.log.Skip(storedPath, "not a plain file, skipping")
			return false, nil
		default:
			return false, err
		}
	}

	if !res.Reindex {
		return res.NeedSecondPass, nil
	}

	if err := ix.tokenizeAndWrite(fsPath, storedPath, res.FileID); err != nil {
		return res.NeedSecondPass, err
	}

	ix.filesSinceCheck++
	if ix.filesSinceCheck >= cacheCheckInterval {
		ix.filesSinceCheck = 0
		ix.checkCacheBudget()
	}

	return res.NeedSecondPass, nil
}

// cacheCheckInterval is how often (in files) the indexer re-checks the
// shared dictionary cache budget (spec.md §4.6 step 5).
const cacheCheckInterval = 256

func (ix *Indexer) checkCacheBudget() {
	// Add(0) re-evaluates the running total against the limit without
	// mutating it, covering the case where many lookups happened without
	// a fresh insert tipping the budget at insert time.
	if ix.budget.Add(0) {
		ix.tokens.Clear()
		ix.paths.Clear()
		ix.budget.Reset()
	}
}

func (ix *Indexer) tokenizeAndWrite(fsPath, storedPath string, fileID int64) error {
	data, err := os.ReadFile(fsPath)
	if err != nil {
		return ferrors.NewVanished(storedPath, err)
	}

	if enry.IsBinary(data) {
		ix.log.Skip(storedPath, "is binary, skipping")
		return ix.touchEncoding(fileID, "")
	}

	text, encodingName, err := decode(data)
	if err != nil {
		ix.log.Skip(storedPath, fmt.Sprintf("decoding failed %s", encodingName))
		return nil // existing postings, if any, are left stale per spec.md §7
	}

	occs := token.Tokenize(splitLines(text), ix.passes)

	// Every occurrence is interned before the transaction opens: the store
	// allows a single connection, so a dictionary lookup issued while tx
	// holds it would block. Newly assigned token ids stay buffered and the
	// dictionary is flushed only after the postings, so the new token rows
	// and MAX_ID land in the very same transaction as the postings that
	// reference them (spec.md §4.3, §4.6 step 4).
	ids := make([]uint32, len(occs))
	for i, occ := range occs {
		if ids[i], err = ix.tokens.IDFor([]byte(occ.Key)); err != nil {
			return ferrors.NewStore("intern token", err)
		}
	}

	tx, err := ix.st.DB().Begin()
	if err != nil {
		return ferrors.NewStore("begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM finja WHERE file_id = ?`, fileID); err != nil {
		return ferrors.NewStore("delete old postings", err)
	}

	if err := insertPostings(tx, fileID, occs, ids); err != nil {
		return err
	}

	if _, err := ix.tokens.Commit(tx); err != nil {
		return ferrors.NewStore("commit token dictionary", err)
	}

	if _, err := tx.Exec(`UPDATE file SET encoding = ? WHERE id = ?`, encodingName, fileID); err != nil {
		return ferrors.NewStore("update encoding", err)
	}

	if err := tx.Commit(); err != nil {
		return ferrors.NewStore("commit file transaction", err)
	}
	return nil
}

func (ix *Indexer) touchEncoding(fileID int64, encodingName string) error {
	_, err := ix.st.DB().Exec(`UPDATE file SET encoding = ? WHERE id = ?`, encodingName, fileID)
	if err != nil {
		return ferrors.NewStore("update encoding", err)
	}
	return nil
}

func insertPostings(tx *sql.Tx, fileID int64, occs []token.Occurrence, ids []uint32) error {
	if len(occs) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`INSERT INTO finja(token_id, file_id, line) VALUES (?, ?, ?)`)
	if err != nil {
		return ferrors.NewStore("prepare posting insert", err)
	}
	defer stmt.Close()

	for i, occ := range occs {
		if _, err := stmt.Exec(ids[i], fileID, occ.Line); err != nil {
			return ferrors.NewStore("insert posting", err)
		}
	}
	return nil
}

// decode attempts a UTF-8 decode first; on failure it sniffs an encoding
// from the raw bytes and retries (spec.md §4.6 step 2).
func decode(data []byte) (text, encodingName string, err error) {
	if isValidUTF8(data) {
		return string(data), "utf-8", nil
	}

	detector := chardet.NewTextDetector()
	result, derr := detector.DetectBest(data)
	if derr != nil {
		return "", "unknown", derr
	}
	enc, err := htmlindex.Get(result.Charset)
	if err != nil {
		return "", result.Charset, err
	}
	decoded, err := enc.NewDecoder().String(string(data))
	if err != nil {
		return "", result.Charset, err
	}
	return decoded, result.Charset, nil
}

func isValidUTF8(data []byte) bool {
	return utf8.Valid(data)
}

func splitLines(text string) []token.Line {
	var lines []token.Line
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var n uint32
	for scanner.Scan() {
		n++
		lines = append(lines, token.Line{Number: n, Text: scanner.Text()})
	}
	return lines
}
