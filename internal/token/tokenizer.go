package token

import "strings"

// Occurrence is a normalized token tagged with the line it was found on.
type Occurrence struct {
	Key  string // Normalize()'d key, as a string so it can key a Go map/set
	Line uint32
}

// semanticPunct is the punctuation alphabet shared by every negative pass.
const semanticPunct = "~^$&#%=,:;!?+\"'`´*/\\()<>{}[]|"

// whitespace is the separator alphabet every pass splits on.
const whitespace = " \t\r\n"

// interpunctChars is the set of international interpunct-like separators,
// included only when the database was created with --interpunct.
const interpunctChars = "··᛫•‧∘∙⋅●◦⦁⸰・･𐂧ּ⸱"

// Pass is one traversal of a line under one separator alphabet, or the
// single positive pass that matches [A-Za-z0-9_]+ runs directly.
type Pass struct {
	Positive   bool
	Separators string
}

// Passes builds the fixed list of tokenizer passes for a given interpunct
// setting. Pass 0 is positive; passes 1-4 are negative splits with
// progressively smaller separator alphabets (spec.md §4.2).
func Passes(interpunct bool) []Pass {
	extra := ""
	if interpunct {
		extra = interpunctChars
	}
	return []Pass{
		{Positive: true},
		{Separators: whitespace + "._-" + semanticPunct + extra},
		{Separators: whitespace + ".-" + semanticPunct + extra},
		{Separators: whitespace + "._" + semanticPunct + extra},
		{Separators: whitespace + semanticPunct + extra},
	}
}

// Line is one line of file content, 1-indexed.
type Line struct {
	Number uint32
	Text   string
}

// Tokenize runs every pass over every line and folds the results into a
// deduplicated set of (key, line) occurrences.
func Tokenize(lines []Line, passes []Pass) []Occurrence {
	seen := make(map[Occurrence]struct{})
	var out []Occurrence
	add := func(raw string, line uint32) {
		key, ok := Normalize(raw)
		if !ok {
			return
		}
		occ := Occurrence{Key: string(key), Line: line}
		if _, dup := seen[occ]; dup {
			return
		}
		seen[occ] = struct{}{}
		out = append(out, occ)
	}

	for _, ln := range lines {
		for _, p := range passes {
			if p.Positive {
				for _, run := range positiveRuns(ln.Text) {
					add(run, ln.Number)
				}
				continue
			}
			for _, frag := range splitByAny(ln.Text, p.Separators) {
				add(frag, ln.Number)
			}
		}
	}
	return out
}

// positiveRuns returns every maximal run matching [A-Za-z0-9_]+.
func positiveRuns(s string) []string {
	var runs []string
	start := -1
	for i, r := range s {
		if isWordRune(r) {
			if start == -1 {
				start = i
			}
			continue
		}
		if start != -1 {
			runs = append(runs, s[start:i])
			start = -1
		}
	}
	if start != -1 {
		runs = append(runs, s[start:])
	}
	return runs
}

func isWordRune(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z':
		return true
	case r >= 'a' && r <= 'z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '_':
		return true
	}
	return false
}

// splitByAny splits s on any rune in seps, dropping empty fragments.
func splitByAny(s string, seps string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(seps, r)
	})
}
