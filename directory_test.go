package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestUser(nick string) *Client {
	return &Client{
		Kind:    KindLocalUser,
		Nick:    nick,
		NickKey: canonicalizeNick(nick),
		Host:    "example.org",
		Variant: &UserVariant{Ident: "user", Channels: make(map[string]*Member)},
	}
}

func TestDirectoryInsertAndFindLive(t *testing.T) {
	d := NewDirectory()
	c := newTestUser("alice")
	d.insertLive(c)

	found, ok := d.findClient("alice")
	assert.True(t, ok)
	assert.Same(t, c, found)
}

func TestDirectoryTraceRenameFollowsChain(t *testing.T) {
	d := NewDirectory()
	live := newTestUser("newnick")
	d.insertLive(live)

	phantom := &Client{
		Kind:    KindPhantom,
		Nick:    "oldnick",
		NickKey: "oldnick",
		Variant: &PhantomVariant{RenameTo: live},
	}
	d.Clients["oldnick"] = phantom

	found, ok := d.findClient("oldnick")
	assert.True(t, ok)
	assert.Same(t, live, found)
}

func TestDirectoryInsertPhantomLinksRaceOntoRfrChain(t *testing.T) {
	d := NewDirectory()
	now := time.Now()

	departing := newTestUser("alice")
	newHolder := newTestUser("alice")
	d.Clients["alice"] = newHolder

	phantom := d.insertPhantom(departing, "irc.example.org", now)

	assert.Same(t, newHolder, d.Clients["alice"])
	assert.Same(t, phantom, newHolder.Rfr)
}

func TestDropPhantomPrunesExpiredUnreffed(t *testing.T) {
	d := NewDirectory()
	now := time.Now()

	phantom := &Client{
		Kind:     KindPhantom,
		NickKey:  "alice",
		HoldUpto: now.Add(-time.Second),
		Variant:  &PhantomVariant{},
	}
	d.Clients["alice"] = phantom

	d.dropPhantom("alice", now)

	_, ok := d.Clients["alice"]
	assert.False(t, ok)
}

func TestDropPhantomKeepsExpiredButAcked(t *testing.T) {
	d := NewDirectory()
	now := time.Now()

	phantom := &Client{
		Kind:     KindPhantom,
		NickKey:  "alice",
		HoldUpto: now.Add(-time.Second),
		OnAck:    1,
		Variant:  &PhantomVariant{},
	}
	d.Clients["alice"] = phantom

	d.dropPhantom("alice", now)

	_, ok := d.Clients["alice"]
	assert.True(t, ok)
}
