// Package engine wires the store, dictionaries, change detector, indexer,
// search planner and display formatter into one explicit value, replacing
// the original's global connection cache / current-args / second-pass
// globals (spec.md §9 design note).
package engine

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/standardbeagle/finja/internal/changedetect"
	"github.com/standardbeagle/finja/internal/config"
	"github.com/standardbeagle/finja/internal/display"
	"github.com/standardbeagle/finja/internal/indexer"
	"github.com/standardbeagle/finja/internal/logging"
	"github.com/standardbeagle/finja/internal/pathdict"
	"github.com/standardbeagle/finja/internal/search"
	"github.com/standardbeagle/finja/internal/store"
	"github.com/standardbeagle/finja/internal/tokendict"
)

// Engine is the single state-holder threaded through every operation one
// FINJA invocation performs.
type Engine struct {
	Root   string
	Config *config.Config
	Log    *logging.Logger

	store   *store.Store
	tokens  *tokendict.Dict
	paths   *pathdict.Dict
	detect  *changedetect.Detector
	budget  *tokendict.Budget
	indexer *indexer.Indexer
	planner *search.Planner
	display *display.Formatter
}

// Open creates the engine for the project at root. create controls
// whether a missing FINJA file is created (true for --index, false for a
// plain search). cfg's Interpunct is honored only on creation; on an
// existing database the stored value wins, since spec.md §6 says the
// flag is "meaningful only on database creation" and therefore immutable
// thereafter.
func Open(root string, cfg *config.Config, create bool, log *logging.Logger) (*Engine, error) {
	path := filepath.Join(root, store.FileName)
	st, justCreated, err := store.Open(path, create)
	if err != nil {
		return nil, err
	}

	interpunct, err := reconcileInterpunct(st, cfg, justCreated)
	if err != nil {
		st.Close()
		return nil, err
	}

	budget := tokendict.NewBudget(cfg.EffectiveCacheSize(tokendict.DefaultCacheSize, tokendict.LessMemoryDivisor))

	tokens, err := tokendict.Open(st, budget)
	if err != nil {
		st.Close()
		return nil, err
	}
	paths := pathdict.Open(st, budget)
	detect := changedetect.New(st, paths)
	ix := indexer.New(st, tokens, paths, detect, budget, log, interpunct)
	planner := search.New(st, tokens, paths)
	disp := display.New(st, paths, root)

	return &Engine{
		Root:    root,
		Config:  cfg,
		Log:     log,
		store:   st,
		tokens:  tokens,
		paths:   paths,
		detect:  detect,
		budget:  budget,
		indexer: ix,
		planner: planner,
		display: disp,
	}, nil
}

// reconcileInterpunct enforces spec.md §6's immutability rule: a freshly
// created database records cfg.Interpunct once; an existing one reports
// its own stored value regardless of what cfg asked for.
func reconcileInterpunct(st *store.Store, cfg *config.Config, justCreated bool) (bool, error) {
	if justCreated {
		if err := st.SetBool(store.KeyInterpunct, cfg.Interpunct); err != nil {
			return false, fmt.Errorf("persist interpunct setting: %w", err)
		}
		return cfg.Interpunct, nil
	}
	stored, err := st.GetBool(store.KeyInterpunct)
	if err != nil {
		return false, fmt.Errorf("read interpunct setting: %w", err)
	}
	return stored, nil
}

// Reindex runs a full reindex pass over the project tree (--index /
// --update, spec.md §4.7).
func (e *Engine) Reindex() (indexer.Stats, error) {
	return e.indexer.Reindex(indexer.Options{
		Root:       e.Root,
		IgnoreDirs: e.Config.IgnoreDirs,
		IgnoreExts: e.Config.IgnoreExts,
		BatchLimit: e.Config.BatchLimit,
	})
}

// Search resolves and executes a conjunctive query (spec.md §4.8).
func (e *Engine) Search(q search.Query) ([]search.Match, error) {
	return e.planner.Search(q)
}

// WriteResults formats matches to w per spec.md §4.9.
func (e *Engine) WriteResults(w io.Writer, matches []search.Match, opts display.Options) error {
	return e.display.Write(w, matches, opts)
}

// Vacuum reclaims space (--vacuum, spec.md §6).
func (e *Engine) Vacuum() error {
	return e.store.Vacuum()
}

// Close releases the underlying database handle.
func (e *Engine) Close() error {
	return e.store.Close()
}
