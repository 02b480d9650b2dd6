package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAckQueueReceiveAckMatchesHead(t *testing.T) {
	q := &AckQueue{}
	c := newTestUser("alice")
	q.register("QUIT", "alice", c, nil)
	assert.Equal(t, 1, c.OnAck)

	ok := q.receiveAck("QUIT", "alice", "")
	assert.True(t, ok)
	assert.Equal(t, 0, c.OnAck)
	assert.Empty(t, q.entries)
}

func TestAckQueueContraryPopsThroughMatch(t *testing.T) {
	q := &AckQueue{}
	c1 := newTestUser("alice")
	c2 := newTestUser("bob")
	q.register("QUIT", "alice", c1, nil)
	q.register("QUIT", "bob", c2, nil)

	assert.True(t, q.markContrary("QUIT", "bob", ""))

	ok := q.receiveAck("QUIT", "bob", "")
	assert.True(t, ok)
	assert.Empty(t, q.entries)
	assert.Equal(t, 0, c1.OnAck)
	assert.Equal(t, 0, c2.OnAck)
}

func TestAckQueueReceiveAckNoMatch(t *testing.T) {
	q := &AckQueue{}
	ok := q.receiveAck("QUIT", "nobody", "")
	assert.False(t, ok)
}
