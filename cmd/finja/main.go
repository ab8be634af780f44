// Command finja is the CLI surface spec.md §6 describes: index a project
// tree and answer conjunctive token queries against it. Flag layout and
// the loadConfigWithOverrides-style precedence (file, then CLI overrides)
// are grounded on the teacher's cmd/lci/main.go.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/finja/internal/config"
	"github.com/standardbeagle/finja/internal/display"
	"github.com/standardbeagle/finja/internal/engine"
	"github.com/standardbeagle/finja/internal/logging"
	"github.com/standardbeagle/finja/internal/search"
	"github.com/standardbeagle/finja/internal/store"
)

func main() {
	app := &cli.App{
		Name:                   "finja",
		Usage:                  "local full-text code index and search",
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "index", Aliases: []string{"i"}, Usage: "reindex the current directory"},
			&cli.BoolFlag{Name: "update", Aliases: []string{"u"}, Usage: "reindex before searching"},
			&cli.BoolFlag{Name: "file-mode", Aliases: []string{"f"}, Usage: "match any position within a file instead of same-line"},
			&cli.IntFlag{Name: "context", Aliases: []string{"c"}, Value: 1, Usage: "lines of context per match"},
			&cli.BoolFlag{Name: "raw", Aliases: []string{"r"}, Usage: "machine-readable output, NUL-separated"},
			&cli.IntFlag{Name: "batch", Aliases: []string{"b"}, Usage: "limit files processed per invocation (0 = unlimited)"},
			&cli.StringSliceFlag{Name: "pignore", Aliases: []string{"p"}, Usage: "exclude paths containing this segment; repeatable"},
			&cli.BoolFlag{Name: "vacuum", Aliases: []string{"v"}, Usage: "reclaim space in the index"},
			&cli.BoolFlag{Name: "less-memory", Aliases: []string{"l"}, Usage: "shrink the dictionary cache bound by 100x"},
			&cli.BoolFlag{Name: "interpunct", Usage: "enable international interpunct separators (only meaningful at index creation)"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	terms := c.Args().Slice()

	if !c.Bool("index") && !c.Bool("update") && len(terms) == 0 {
		// spec.md §6: exit 1 when invoked with neither indexing nor search.
		return cli.Exit("nothing to do: pass --index, --update, or a search query", 1)
	}

	root, create, err := resolveRoot(c.Bool("index"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	cfg, err := loadConfigWithOverrides(c, root)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	log := logging.Default("finja")
	eng, err := engine.Open(root, cfg, create, log)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer eng.Close()

	if c.Bool("index") || c.Bool("update") {
		stats, err := eng.Reindex()
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		log.Progress("indexed %d files in %d pass(es)", stats.FilesVisited, stats.Passes)
	}

	if c.Bool("vacuum") {
		if err := eng.Vacuum(); err != nil {
			return cli.Exit(err.Error(), 1)
		}
	}

	if len(terms) == 0 {
		return nil
	}

	matches, err := eng.Search(search.Query{
		Terms:    terms,
		Ignores:  c.StringSlice("pignore"),
		FileMode: c.Bool("file-mode"),
	})
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	return eng.WriteResults(os.Stdout, matches, display.Options{
		FileMode: c.Bool("file-mode"),
		Raw:      c.Bool("raw"),
		Context:  cfg.ContextLines,
	})
}

// resolveRoot finds the project root by walking upward from the current
// directory looking for a file literally named FINJA (spec.md §6),
// mirroring find_finja in the original. In --index mode a missing FINJA
// is not an error: the current directory becomes the new root and the
// database is created there.
func resolveRoot(indexing bool) (root string, create bool, err error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false, err
	}

	dir := cwd
	for {
		if _, statErr := os.Stat(filepath.Join(dir, store.FileName)); statErr == nil {
			return dir, false, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	if indexing {
		return cwd, true, nil
	}
	return "", false, fmt.Errorf("could not find %s", store.FileName)
}

func loadConfigWithOverrides(c *cli.Context, root string) (*config.Config, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if c.IsSet("less-memory") {
		cfg.LessMemory = c.Bool("less-memory")
	}
	if c.IsSet("interpunct") {
		cfg.Interpunct = c.Bool("interpunct")
	}
	if c.IsSet("batch") {
		cfg.BatchLimit = c.Int("batch")
	}
	if c.IsSet("context") {
		cfg.ContextLines = c.Int("context")
	}

	return cfg, nil
}
