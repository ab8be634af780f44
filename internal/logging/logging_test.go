package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSkip_Format(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "index")
	l.Skip("a/b.txt", "is binary, skipping")
	assert.True(t, strings.Contains(buf.String(), "a/b.txt: is binary, skipping"))
}
