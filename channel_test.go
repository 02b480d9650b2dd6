package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinChecksLimit(t *testing.T) {
	ch := NewChannel("#test", "#test")
	ch.Modes = ch.Modes.Set(ALimit)
	ch.Limit = 1
	ch.addMember(newTestUser("alice"), AOp)

	err := ch.joinChecks("bob", "user", "example.org", "")
	assert.Equal(t, errChannelFull, err)
}

func TestJoinChecksBadKey(t *testing.T) {
	ch := NewChannel("#test", "#test")
	ch.Modes = ch.Modes.Set(AKeySet)
	ch.Key_ = "secret"

	err := ch.joinChecks("bob", "user", "example.org", "wrong")
	assert.Equal(t, errBadChannelKey, err)

	err = ch.joinChecks("bob", "user", "example.org", "secret")
	assert.NoError(t, err)
}

func TestJoinChecksBanned(t *testing.T) {
	ch := NewChannel("#test", "#test")
	_, ok := ch.Bans.add(normalizeMask("*!*@bad.example.org"))
	require.True(t, ok)

	err := ch.joinChecks("bob", "user", "bad.example.org", "")
	assert.Equal(t, errBanned, err)

	err = ch.joinChecks("bob", "user", "good.example.org", "")
	assert.NoError(t, err)
}

func TestJoinChecksExemptOverridesBan(t *testing.T) {
	ch := NewChannel("#test", "#test")
	_, ok := ch.Bans.add(normalizeMask("*!*@bad.example.org"))
	require.True(t, ok)
	_, ok = ch.Exempts.add(normalizeMask("bob!*@bad.example.org"))
	require.True(t, ok)

	err := ch.joinChecks("bob", "user", "bad.example.org", "")
	assert.NoError(t, err)
}

func TestAddRemoveMemberUpdatesBothSides(t *testing.T) {
	ch := NewChannel("#test", "#test")
	c := newTestUser("alice")

	ch.addMember(c, AOp)
	assert.Equal(t, 1, ch.count())
	_, onChan := c.userVariant().Channels[ch.Key]
	assert.True(t, onChan)

	ch.removeMember(c)
	assert.Equal(t, 0, ch.count())
	_, onChan = c.userVariant().Channels[ch.Key]
	assert.False(t, onChan)
}

func TestIsHeld(t *testing.T) {
	ch := NewChannel("#test", "#test")
	now := time.Now()

	assert.False(t, ch.isHeld(now))

	ch.HoldUpto = now.Add(time.Minute)
	assert.True(t, ch.isHeld(now))

	ch.HoldUpto = now.Add(-time.Minute)
	assert.False(t, ch.isHeld(now))
}

func TestBroadcastIdentityAnonymizesOnAnonymousChannel(t *testing.T) {
	ch := NewChannel("#test", "#test")
	c := newTestUser("alice")

	assert.Equal(t, c.nickUhost(), broadcastIdentity(c, ch))

	ch.Modes = ch.Modes.Set(AAnonymous)
	assert.Equal(t, anonymousIdentity, broadcastIdentity(c, ch))
}
