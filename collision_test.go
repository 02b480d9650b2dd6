package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub() *Hub {
	return &Hub{
		Config:       &Config{ServerName: "irc.example.org"},
		Directory:    NewDirectory(),
		LocalClients: make(map[uint64]*LocalClient),
		AckQueues:    make(map[*LocalClient]*AckQueue),
		Whowas:       &whowasRing{},
		Stats:        newCommandStats(),
	}
}

func TestResolveNickCollisionFreeKeySucceeds(t *testing.T) {
	h := newTestHub()
	incoming := newTestUser("alice")

	ok := h.resolveNickCollision("alice", incoming)
	assert.True(t, ok)
}

func TestResolveNickCollisionKillsBothByDefault(t *testing.T) {
	h := newTestHub()
	existing := newTestUser("alice")
	h.Directory.insertLive(existing)
	incoming := newTestUser("alice")

	ok := h.resolveNickCollision("alice", incoming)
	assert.False(t, ok)

	holder, found := h.Directory.Clients["alice"]
	require.True(t, found)
	assert.True(t, holder.isPhantom())
}

func TestResolveNickCollisionExpiredPhantomFreesKey(t *testing.T) {
	h := newTestHub()
	phantom := &Client{
		Kind:     KindPhantom,
		NickKey:  "alice",
		HoldUpto: h.startTime, // zero time, already expired
		Variant:  &PhantomVariant{},
	}
	h.Directory.Clients["alice"] = phantom
	incoming := newTestUser("alice")

	ok := h.resolveNickCollision("alice", incoming)
	assert.True(t, ok)
}

func TestRenameInPlaceLeavesTracingPhantom(t *testing.T) {
	h := newTestHub()
	c := newTestUser("alice")
	h.Directory.insertLive(c)

	h.renameInPlace(c, "alice2", "alice2")

	assert.Equal(t, "alice2", c.Nick)
	phantom, ok := h.Directory.Clients["alice"]
	require.True(t, ok)
	assert.True(t, phantom.isPhantom())
	assert.Same(t, c, phantom.phantomVariant().RenameTo)
	assert.Same(t, phantom, c.Rfr)
}
