package engine

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/finja/internal/config"
	"github.com/standardbeagle/finja/internal/display"
	"github.com/standardbeagle/finja/internal/logging"
	"github.com/standardbeagle/finja/internal/search"
	"github.com/standardbeagle/finja/internal/store"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func TestEngine_S1_IndexThenSearch(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a/foo.txt", "hello world\nfoo bar\n")

	log := logging.New(&bytes.Buffer{}, "index")
	e, err := Open(root, config.Default(), true, log)
	require.NoError(t, err)
	defer e.Close()

	stats, err := e.Reindex()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesVisited)

	matches, err := e.Search(search.Query{Terms: []string{"hello"}})
	require.NoError(t, err)
	require.Len(t, matches, 1)

	var buf bytes.Buffer
	require.NoError(t, e.WriteResults(&buf, matches, display.Options{Context: 1}))
	assert.Contains(t, buf.String(), "hello world")
}

func TestEngine_InterpunctImmutableAfterCreation(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "foo\n")

	log := logging.New(&bytes.Buffer{}, "index")
	cfg := config.Default()
	cfg.Interpunct = true

	e, err := Open(root, cfg, true, log)
	require.NoError(t, err)
	_, err = e.Reindex()
	require.NoError(t, err)
	require.NoError(t, e.Close())

	reopenCfg := config.Default()
	reopenCfg.Interpunct = false // a later invocation asking for something different...
	e2, err := Open(root, reopenCfg, false, log)
	require.NoError(t, err)
	defer e2.Close()

	stored, err := e2.store.GetBool(store.KeyInterpunct)
	require.NoError(t, err)
	assert.True(t, stored, "the database's own stored interpunct flag wins over a new CLI request")
}

func TestEngine_VacuumSucceeds(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "foo\n")

	log := logging.New(&bytes.Buffer{}, "index")
	e, err := Open(root, config.Default(), true, log)
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Reindex()
	require.NoError(t, err)
	assert.NoError(t, e.Vacuum())
}
