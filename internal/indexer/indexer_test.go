package indexer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/finja/internal/changedetect"
	"github.com/standardbeagle/finja/internal/logging"
	"github.com/standardbeagle/finja/internal/pathdict"
	"github.com/standardbeagle/finja/internal/search"
	"github.com/standardbeagle/finja/internal/store"
	"github.com/standardbeagle/finja/internal/tokendict"
)

type harness struct {
	st     *store.Store
	tokens *tokendict.Dict
	paths  *pathdict.Dict
	ix     *Indexer
	root   string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	root := t.TempDir()
	st, _, err := store.Open(filepath.Join(root, store.FileName), true)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	budget := tokendict.NewBudget(0)
	tokens, err := tokendict.Open(st, budget)
	require.NoError(t, err)
	paths := pathdict.Open(st, budget)
	detector := changedetect.New(st, paths)

	var buf devNull
	log := logging.New(buf, "index")

	ix := New(st, tokens, paths, detector, budget, log, false)
	return &harness{st: st, tokens: tokens, paths: paths, ix: ix, root: root}
}

type devNull struct{}

func (devNull) Write(p []byte) (int, error) { return len(p), nil }

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func postingCount(t *testing.T, st *store.Store) int {
	t.Helper()
	var n int
	require.NoError(t, st.DB().QueryRow(`SELECT COUNT(*) FROM finja`).Scan(&n))
	return n
}

func TestReindex_S1_BasicIndex(t *testing.T) {
	h := newHarness(t)
	writeFile(t, h.root, "a/foo.txt", "hello world\nfoo bar\n")

	stats, err := h.ix.Reindex(Options{Root: h.root})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesVisited)
	assert.Greater(t, postingCount(t, h.st), 0)
}

// TestReindex_S1_TokenTableSurvivesProcessBoundary guards against the
// token table being flushed a transaction later than the postings that
// reference it (or never flushed, for the last file in a tree): it
// closes the indexing session's store and opens a brand new one against
// the same file, so a search here can only succeed by reading what
// actually landed on disk, not this process's in-memory token cache.
func TestReindex_S1_TokenTableSurvivesProcessBoundary(t *testing.T) {
	h := newHarness(t)
	writeFile(t, h.root, "a/foo.txt", "hello world\nfoo bar\n")

	_, err := h.ix.Reindex(Options{Root: h.root})
	require.NoError(t, err)
	require.NoError(t, h.st.Close())

	st2, created, err := store.Open(filepath.Join(h.root, store.FileName), false)
	require.NoError(t, err)
	defer st2.Close()
	require.False(t, created, "reopening an existing store must not recreate its schema")

	budget2 := tokendict.NewBudget(0)
	tokens2, err := tokendict.Open(st2, budget2)
	require.NoError(t, err)
	paths2 := pathdict.Open(st2, budget2)

	planner := search.New(st2, tokens2, paths2)
	matches, err := planner.Search(search.Query{Terms: []string{"hello"}})
	require.NoError(t, err)
	require.Len(t, matches, 1, "a fresh session must resolve a term indexed by a prior one")
}

func TestReindex_IdempotentOnUnchangedTree(t *testing.T) {
	h := newHarness(t)
	writeFile(t, h.root, "a.txt", "alpha beta gamma\n")

	_, err := h.ix.Reindex(Options{Root: h.root})
	require.NoError(t, err)
	before := postingCount(t, h.st)

	_, err = h.ix.Reindex(Options{Root: h.root})
	require.NoError(t, err)
	after := postingCount(t, h.st)

	assert.Equal(t, before, after, "indexing an unchanged tree twice produces identical postings")
}

func TestReindex_VanishedFileCleansUp(t *testing.T) {
	h := newHarness(t)
	p := writeFile(t, h.root, "gone.txt", "ephemeral content\n")

	_, err := h.ix.Reindex(Options{Root: h.root})
	require.NoError(t, err)
	require.Greater(t, postingCount(t, h.st), 0)

	require.NoError(t, os.Remove(p))

	_, err = h.ix.Reindex(Options{Root: h.root})
	require.NoError(t, err)
	assert.Equal(t, 0, postingCount(t, h.st))

	var fileCount int
	require.NoError(t, h.st.DB().QueryRow(`SELECT COUNT(*) FROM file`).Scan(&fileCount))
	assert.Equal(t, 0, fileCount)
}

func TestReindex_IgnoresConfiguredDirs(t *testing.T) {
	h := newHarness(t)
	writeFile(t, h.root, ".git/objects/x", "should not be indexed")
	writeFile(t, h.root, "src/main.go", "package main\n")

	stats, err := h.ix.Reindex(Options{Root: h.root, IgnoreDirs: []string{".git"}})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesVisited)
}

func TestReindex_BatchLimit(t *testing.T) {
	h := newHarness(t)
	writeFile(t, h.root, "a.txt", "aaa\n")
	writeFile(t, h.root, "b.txt", "bbb\n")
	writeFile(t, h.root, "c.txt", "ccc\n")

	stats, err := h.ix.Reindex(Options{Root: h.root, BatchLimit: 2})
	require.NoError(t, err)
	assert.True(t, stats.BatchHit)
	assert.Equal(t, 2, stats.FilesVisited)
}

func TestReindex_S4_DuplicateDivergence(t *testing.T) {
	h := newHarness(t)
	writeFile(t, h.root, "x", "foo")
	writeFile(t, h.root, "y", "foo")

	_, err := h.ix.Reindex(Options{Root: h.root})
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(h.root, "x")))
	writeFile(t, h.root, "x", "bar")

	stats, err := h.ix.Reindex(Options{Root: h.root})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.Passes, 2, "a diverged duplicate forces a second pass")
}
