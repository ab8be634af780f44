// Package config loads FINJA's small knob set: cache size, low-memory
// mode, extra ignored directories/extensions. Adapted from the teacher's
// internal/config/kdl_config.go: an optional KDL file overrides hardcoded
// defaults, and CLI flags always win over the file (spec.md §6).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// FileName is the optional project-level config file.
const FileName = ".finja.kdl"

// DefaultIgnoreDirs are pruned from the directory walk (spec.md §4.7).
var DefaultIgnoreDirs = []string{".git", ".svn", ".bzr", ".hypothesis", "__pycache__"}

// DefaultIgnoreExts are skipped during the directory walk (spec.md §4.7).
var DefaultIgnoreExts = []string{"svg", "pyc", "ai", "ps"}

// Config holds every tunable FINJA knob.
type Config struct {
	CacheSize    int  // combined token+path dictionary cache bound (spec.md §4.3)
	LessMemory   bool // divides CacheSize by 100 (spec.md §5, §6)
	Interpunct   bool // only meaningful at database creation (spec.md §6)
	IgnoreDirs   []string
	IgnoreExts   []string
	BatchLimit   int // 0 = unlimited (spec.md §6 --batch)
	ContextLines int
}

// Default returns FINJA's hardcoded defaults.
func Default() *Config {
	return &Config{
		CacheSize:    0, // 0 means tokendict.DefaultCacheSize
		IgnoreDirs:   append([]string(nil), DefaultIgnoreDirs...),
		IgnoreExts:   append([]string(nil), DefaultIgnoreExts...),
		ContextLines: 1,
	}
}

// Load reads an optional .finja.kdl from root, overriding the defaults.
// A missing file is not an error.
func Load(root string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(root, FileName)
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	doc, err := kdl.Parse(strings.NewReader(string(content)))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "cache_size":
			if v, ok := firstIntArg(n); ok {
				cfg.CacheSize = v
			}
		case "less_memory":
			if b, ok := firstBoolArg(n); ok {
				cfg.LessMemory = b
			}
		case "interpunct":
			if b, ok := firstBoolArg(n); ok {
				cfg.Interpunct = b
			}
		case "context_lines":
			if v, ok := firstIntArg(n); ok {
				cfg.ContextLines = v
			}
		case "ignore_dirs":
			if extra := collectStringArgs(n); len(extra) > 0 {
				cfg.IgnoreDirs = append(cfg.IgnoreDirs, extra...)
			}
		case "ignore_exts":
			if extra := collectStringArgs(n); len(extra) > 0 {
				cfg.IgnoreExts = append(cfg.IgnoreExts, extra...)
			}
		}
	}

	return cfg, nil
}

// EffectiveCacheSize resolves the CacheSize knob against LessMemory.
func (c *Config) EffectiveCacheSize(defaultSize, divisor int) int {
	size := c.CacheSize
	if size <= 0 {
		size = defaultSize
	}
	if c.LessMemory {
		size /= divisor
	}
	return size
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArgNode(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

func firstStringArgNode(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}
