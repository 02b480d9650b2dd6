package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseListenerSpec(t *testing.T) {
	spec, err := parseListenerSpec("6667")
	require.NoError(t, err)
	assert.Equal(t, ListenerSpec{Port: "6667"}, spec)

	spec, err = parseListenerSpec("127.0.0.1/6697%S")
	require.NoError(t, err)
	assert.Equal(t, ListenerSpec{Host: "127.0.0.1", Port: "6697", Flags: "S"}, spec)

	spec, err = parseListenerSpec("6668%ZI")
	require.NoError(t, err)
	assert.Equal(t, ListenerSpec{Port: "6668", Flags: "ZI"}, spec)

	_, err = parseListenerSpec("host/")
	assert.Error(t, err)

	_, err = parseListenerSpec("not-a-port")
	assert.Error(t, err)
}

func TestParseListenerSpecs(t *testing.T) {
	specs, err := parseListenerSpecs("6667, 127.0.0.1/6697%S")
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, ListenerSpec{Port: "6667"}, specs[0])
	assert.Equal(t, ListenerSpec{Host: "127.0.0.1", Port: "6697", Flags: "S"}, specs[1])
}
