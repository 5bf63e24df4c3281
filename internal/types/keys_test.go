package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyIndex_Match(t *testing.T) {
	idx := NewKeyIndex([]string{"7", "abc", "ABC", "x", "x"})

	assert.Equal(t, []string{"7"}, idx.Match("7"))
	assert.Equal(t, []string{"abc"}, idx.Match("abc"), "exact match wins")
	assert.Equal(t, []string{"x"}, idx.Match("X "), "case and trailing spaces fold")
	assert.ElementsMatch(t, []string{"abc", "ABC"}, idx.Match("Abc"))
	assert.Empty(t, idx.Match("8"))
}
