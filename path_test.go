package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecomputePathsSingleHop(t *testing.T) {
	h := newTestHub()
	h.Self = &Client{Kind: KindSelf, Nick: "irc.example.org", Variant: &ServerVariant{}}
	h.Directory.Clients[h.Self.NickKey] = h.Self

	peer := &Client{Kind: KindLocalServer, Nick: "leaf.example.org", Variant: &ServerVariant{}}
	h.Directory.Clients["leaf.example.org"] = peer
	link := &Link{From: h.Self, To: peer}
	h.Self.serverVariant().Links = append(h.Self.serverVariant().Links, link)

	remote := &Client{Kind: KindRemoteServer, Nick: "far.example.org", Variant: &ServerVariant{}}
	h.Directory.Clients["far.example.org"] = remote
	remoteLink := &Link{From: peer, To: remote}
	peer.serverVariant().Links = append(peer.serverVariant().Links, remoteLink)

	h.recomputePaths()

	assert.Same(t, remoteLink, remote.Via)
	assert.Equal(t, 2, remote.Hops)
}

func TestRecomputePathsAssignsAltForMultiConnectPaths(t *testing.T) {
	h := newTestHub()
	h.Self = &Client{Kind: KindSelf, Nick: "irc.example.org", Variant: &ServerVariant{}}
	h.Directory.Clients[h.Self.NickKey] = h.Self

	peerA := &Client{Kind: KindLocalServer, Nick: "a.example.org", Variant: &ServerVariant{}}
	peerB := &Client{Kind: KindLocalServer, Nick: "b.example.org", Variant: &ServerVariant{}}
	h.Directory.Clients["a.example.org"] = peerA
	h.Directory.Clients["b.example.org"] = peerB

	linkA := &Link{From: h.Self, To: peerA, MultiConnect: true}
	linkB := &Link{From: h.Self, To: peerB, MultiConnect: true}
	h.Self.serverVariant().Links = append(h.Self.serverVariant().Links, linkA, linkB)

	remote := &Client{Kind: KindRemoteServer, Nick: "far.example.org", Variant: &ServerVariant{}}
	h.Directory.Clients["far.example.org"] = remote
	viaA := &Link{From: peerA, To: remote, MultiConnect: true}
	viaB := &Link{From: peerB, To: remote, MultiConnect: true}
	peerA.serverVariant().Links = append(peerA.serverVariant().Links, viaA)
	peerB.serverVariant().Links = append(peerB.serverVariant().Links, viaB)

	h.recomputePaths()

	require.NotNil(t, remote.Via)
	assert.NotNil(t, remote.Alt)
	assert.NotEqual(t, remote.Via, remote.Alt)
}
