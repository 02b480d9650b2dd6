package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeMaskFillsWildcards(t *testing.T) {
	m := normalizeMask("bob")
	assert.Equal(t, "*", m.Nick)
	assert.Equal(t, "*", m.User)
	assert.Equal(t, "bob", m.Host)

	m = normalizeMask("alice!~al@example.org")
	assert.Equal(t, "alice", m.Nick)
	assert.Equal(t, "~al", m.User)
	assert.Equal(t, "example.org", m.Host)
}

func TestGlobMatch(t *testing.T) {
	assert.True(t, globMatch("*.example.org", "irc.example.org"))
	assert.False(t, globMatch("*.example.org", "irc.example.com"))
	assert.True(t, globMatch("a?c", "abc"))
	assert.False(t, globMatch("a?c", "ac"))
}

func TestMaskListCancelsNarrowerEntries(t *testing.T) {
	var l maskList

	_, ok := l.add(normalizeMask("*!*@bad.example.org"))
	assert.True(t, ok)

	cancelled, ok := l.add(normalizeMask("*!*@*.example.org"))
	assert.True(t, ok)
	assert.Len(t, cancelled, 1)
	assert.Len(t, l.entries, 1)
}

func TestMaskListRejectsNarrowerWhenBroaderExists(t *testing.T) {
	var l maskList

	_, ok := l.add(normalizeMask("*!*@*.example.org"))
	assert.True(t, ok)

	_, ok = l.add(normalizeMask("*!*@bad.example.org"))
	assert.False(t, ok)
	assert.Len(t, l.entries, 1)
}
