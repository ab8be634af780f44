package ferrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "a/b.txt: not found, skipping", NewVanished("a/b.txt", nil).Error())
	assert.Equal(t, "a/b.txt: not a plain file, skipping", NewNotPlainFile("a/b.txt").Error())
	assert.Equal(t, "a/b.txt: is binary, skipping", NewBinaryFile("a/b.txt").Error())
	assert.Equal(t, "a/b.txt: decoding failed latin-1", NewDecode("a/b.txt", "latin-1", nil).Error())
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("boom")
	d := NewDecode("f", "utf-8", cause)
	assert.ErrorIs(t, d, cause)

	s := NewStore("commit", cause)
	assert.ErrorIs(t, s, cause)

	v := NewVanished("f", cause)
	assert.ErrorIs(t, v, cause)
}
