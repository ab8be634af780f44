package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func keys(occs []Occurrence) map[string]bool {
	m := make(map[string]bool, len(occs))
	for _, o := range occs {
		m[o.Key] = true
	}
	return m
}

func TestTokenize_CompoundRecall(t *testing.T) {
	lines := []Line{{Number: 1, Text: "getUserName_v2"}}
	occs := Tokenize(lines, Passes(false))
	k := keys(occs)

	assert.True(t, k["getusername_v2"], "pass 0 should keep the whole run")
	assert.True(t, k["v2"], "a negative pass should split on underscore")
	assert.True(t, k["getusername"], "a negative pass should split on underscore")
}

func TestTokenize_DeduplicatesWithinLine(t *testing.T) {
	lines := []Line{{Number: 1, Text: "foo foo foo"}}
	occs := Tokenize(lines, Passes(false))
	count := 0
	for _, o := range occs {
		if o.Key == "foo" && o.Line == 1 {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestTokenize_BasicSentence(t *testing.T) {
	lines := []Line{
		{Number: 1, Text: "hello world"},
		{Number: 2, Text: "foo bar"},
	}
	occs := Tokenize(lines, Passes(false))
	k := keys(occs)
	assert.True(t, k["hello"])
	assert.True(t, k["world"])
	assert.True(t, k["foo"])
	assert.True(t, k["bar"])
}

func TestTokenize_Idempotent(t *testing.T) {
	lines := []Line{{Number: 1, Text: "alpha beta gamma\n"}}
	a := Tokenize(lines, Passes(false))
	b := Tokenize(lines, Passes(false))
	assert.Equal(t, len(a), len(b))
	assert.Equal(t, keys(a), keys(b))
}

func TestTokenize_InterpunctToggle(t *testing.T) {
	lines := []Line{{Number: 1, Text: "foo·bar"}}
	with := Tokenize(lines, Passes(true))
	assert.True(t, keys(with)["foo"])
	assert.True(t, keys(with)["bar"])
}

func TestPasses_Shape(t *testing.T) {
	p := Passes(false)
	assert.Len(t, p, 5)
	assert.True(t, p[0].Positive)
	for _, pass := range p[1:] {
		assert.False(t, pass.Positive)
	}
}
