package indexer

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/standardbeagle/finja/internal/ferrors"
	"github.com/standardbeagle/finja/internal/store"
)

// Options controls one reindex invocation.
type Options struct {
	Root       string
	IgnoreDirs []string
	IgnoreExts []string
	BatchLimit int // 0 = unlimited (spec.md §6 --batch)
}

// Stats summarizes one Reindex call, surfaced by the CLI.
type Stats struct {
	FilesVisited int
	Passes       int
	BatchHit     bool // the batch ceiling was reached before the walk finished
}

// Reindex runs the two-pass protocol from spec.md §4.7: clear found,
// walk (or read FINJA.lst), detect+index each file, delete vanished
// rows, and repeat once more if any duplicate diverged or any file
// vanished.
func (ix *Indexer) Reindex(opts Options) (Stats, error) {
	var stats Stats
	for {
		stats.Passes++
		needSecondPass, batchHit, err := ix.reindexPass(opts, &stats)
		if err != nil {
			return stats, err
		}
		if batchHit {
			stats.BatchHit = true
			return stats, nil
		}
		if !needSecondPass {
			return stats, nil
		}
		if stats.Passes >= 2 {
			// spec.md §4.7 step 6: the protocol terminates after at most
			// one extra pass; a third would indicate a logic error rather
			// than a legitimate re-divergence.
			return stats, nil
		}
	}
}

func (ix *Indexer) reindexPass(opts Options, stats *Stats) (needSecondPass bool, batchHit bool, err error) {
	if _, err := ix.st.DB().Exec(`UPDATE file SET found = 0`); err != nil {
		return false, false, ferrors.NewStore("clear found", err)
	}

	paths, err := fileList(opts)
	if err != nil {
		return false, false, err
	}

	visitedThisPass := 0
	for _, rel := range paths {
		if opts.BatchLimit > 0 && stats.FilesVisited >= opts.BatchLimit {
			batchHit = true
			break
		}
		fsPath := rel
		if !filepath.IsAbs(rel) {
			fsPath = filepath.Join(opts.Root, rel)
		}
		sp, err := ix.IndexFile(fsPath, rel)
		if err != nil {
			return false, false, err
		}
		if sp {
			needSecondPass = true
		}
		stats.FilesVisited++
		visitedThisPass++
	}

	if batchHit {
		return needSecondPass, true, nil
	}

	deletedAny, err := ix.sweepVanished()
	if err != nil {
		return false, false, err
	}
	if deletedAny {
		needSecondPass = true
	}

	return needSecondPass, false, nil
}

// sweepVanished deletes the postings and file rows left with found=0
// after a full walk (spec.md §4.7 step 5).
func (ix *Indexer) sweepVanished() (bool, error) {
	var count int
	if err := ix.st.DB().QueryRow(`SELECT COUNT(*) FROM file WHERE found = 0`).Scan(&count); err != nil {
		return false, ferrors.NewStore("count vanished", err)
	}
	if count == 0 {
		return false, nil
	}

	tx, err := ix.st.DB().Begin()
	if err != nil {
		return false, ferrors.NewStore("begin vanished cleanup", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM finja WHERE file_id IN (SELECT id FROM file WHERE found = 0)`); err != nil {
		return false, ferrors.NewStore("delete vanished postings", err)
	}
	if _, err := tx.Exec(`DELETE FROM file WHERE found = 0`); err != nil {
		return false, ferrors.NewStore("delete vanished files", err)
	}
	if err := tx.Commit(); err != nil {
		return false, ferrors.NewStore("commit vanished cleanup", err)
	}
	return true, nil
}

// fileList returns every path to visit this pass, root-relative:
// FINJA.lst's contents if present, otherwise a pruned directory walk
// (spec.md §4.7 step 3). An absolute entry in FINJA.lst is passed through
// unchanged (spec.md §6: the list may name files outside the tree).
func fileList(opts Options) ([]string, error) {
	listPath := filepath.Join(opts.Root, store.ListName)
	if f, err := os.Open(listPath); err == nil {
		defer f.Close()
		var paths []string
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			paths = append(paths, line)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read %s: %w", listPath, err)
		}
		return paths, nil
	}

	ignoreDirs := toSet(opts.IgnoreDirs)
	ignoreExts := toSet(opts.IgnoreExts)

	var paths []string
	err := filepath.WalkDir(opts.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // spec.md §7: a vanished entry is skipped, not fatal
		}
		if d.IsDir() {
			if path != opts.Root && ignoreDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == store.FileName || d.Name() == store.ListName {
			return nil
		}
		ext := strings.TrimPrefix(filepath.Ext(d.Name()), ".")
		if ignoreExts[ext] {
			return nil
		}
		rel, err := filepath.Rel(opts.Root, path)
		if err != nil {
			return nil
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", opts.Root, err)
	}
	return paths, nil
}

func toSet(items []string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}
