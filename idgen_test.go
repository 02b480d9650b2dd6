package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDCounterWraps(t *testing.T) {
	g := idCounter{next: idMax}
	assert.EqualValues(t, idMax, g.nextID())
	assert.EqualValues(t, 0, g.nextID())
	assert.EqualValues(t, 1, g.nextID())
}

func TestIDWindowAcceptsInOrder(t *testing.T) {
	var w idWindow
	assert.True(t, w.accept(0))
	assert.True(t, w.accept(1))
	assert.True(t, w.accept(2))
}

func TestIDWindowRejectsDuplicate(t *testing.T) {
	var w idWindow
	assert.True(t, w.accept(5))
	assert.True(t, w.accept(6))
	assert.False(t, w.accept(5))
}

func TestIDWindowAcceptsOutOfOrderWithinWindow(t *testing.T) {
	var w idWindow
	assert.True(t, w.accept(10))
	assert.True(t, w.accept(20))
	assert.True(t, w.accept(15))
	assert.False(t, w.accept(15))
}

func TestIDWindowHandlesWrap(t *testing.T) {
	var w idWindow
	assert.True(t, w.accept(idMax))
	assert.True(t, w.accept(0))
	assert.True(t, w.accept(1))
	assert.False(t, w.accept(0))
}
