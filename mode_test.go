package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModeFlagSetClearHas(t *testing.T) {
	var m ModeFlag
	m = m.Set(AOp)
	assert.True(t, m.Has(AOp))
	assert.False(t, m.Has(AVoice))

	m = m.Set(AVoice)
	assert.True(t, m.Has(AOp))
	assert.True(t, m.Has(AVoice))

	m = m.Clear(AOp)
	assert.False(t, m.Has(AOp))
	assert.True(t, m.Has(AVoice))
}

func TestParseModeTokens(t *testing.T) {
	tokens := parseModeTokens("+ov-k")
	assert.Len(t, tokens, 3)
	assert.Equal(t, modeAdd, tokens[0].Dir)
	assert.EqualValues(t, 'o', tokens[0].Char)
	assert.Equal(t, modeAdd, tokens[1].Dir)
	assert.EqualValues(t, 'v', tokens[1].Char)
	assert.Equal(t, modeRemove, tokens[2].Dir)
	assert.EqualValues(t, 'k', tokens[2].Char)
}

func TestModeBatchString(t *testing.T) {
	b := &modeBatch{}
	b.add(modeAdd, 'o', "alice")
	b.add(modeAdd, 'v', "bob")
	b.add(modeRemove, 'k', "")

	assert.Equal(t, "+ov-k alice bob", b.String())
}

func TestWhoCharForMember(t *testing.T) {
	assert.Equal(t, "@", whoCharForMember(ModeFlag(0).Set(AOp)))
	assert.Equal(t, "+", whoCharForMember(ModeFlag(0).Set(AVoice)))
	assert.Equal(t, "", whoCharForMember(ModeFlag(0)))
}
