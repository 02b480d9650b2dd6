package main

import (
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, ioutil.WriteFile(path, []byte(contents), 0o644))
	return path
}

func baseConfigContents(extra string) string {
	return `
listen-host = 0.0.0.0
listen-port = 6667
server-name = irc.example.org
server-info = Example IRC server
version = test-1.0
created-date = 2026-01-01
motd = /etc/motd.txt
max-nick-length = 20
wakeup-time = 30s
ping-time = 90s
dead-time = 5m
opers-config = ` + "OPERSPATH" + `
ts6-sid = 1AB
` + extra
}

func TestLoadConfigRequiredKeys(t *testing.T) {
	dir := t.TempDir()
	opersPath := writeTestFile(t, dir, "opers.conf", "admin = secret\n")
	contents := baseConfigContents("")
	contents = replacePath(contents, opersPath)
	cfgPath := writeTestFile(t, dir, "catbox.conf", contents)

	cfg, err := loadConfig(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "irc.example.org", cfg.ServerName)
	assert.Equal(t, "1AB", cfg.TS6SID)
	assert.Equal(t, 20, cfg.MaxNickLength)
	assert.Equal(t, "secret", cfg.Opers["admin"])
	assert.Empty(t, cfg.Servers)
}

func TestLoadConfigMissingRequiredKey(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestFile(t, dir, "catbox.conf", `
listen-host = 0.0.0.0
server-name = irc.example.org
`)
	_, err := loadConfig(cfgPath)
	require.Error(t, err)
}

func TestLoadConfigRejectsBadTS6SID(t *testing.T) {
	dir := t.TempDir()
	opersPath := writeTestFile(t, dir, "opers.conf", "admin = secret\n")
	contents := baseConfigContents("")
	contents = replacePath(contents, opersPath)
	contents = strings.Replace(contents, "ts6-sid = 1AB", "ts6-sid = abc", 1)
	cfgPath := writeTestFile(t, dir, "catbox.conf", contents)

	_, err := loadConfig(cfgPath)
	require.Error(t, err)
}

func TestLoadConfigCapsMaxNickLength(t *testing.T) {
	dir := t.TempDir()
	opersPath := writeTestFile(t, dir, "opers.conf", "admin = secret\n")
	contents := baseConfigContents("")
	contents = replacePath(contents, opersPath)
	contents = strings.Replace(contents, "max-nick-length = 20", "max-nick-length = 120", 1)
	cfgPath := writeTestFile(t, dir, "catbox.conf", contents)

	cfg, err := loadConfig(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, 63, cfg.MaxNickLength)
}

func TestLoadConfigParsesClasses(t *testing.T) {
	dir := t.TempDir()
	opersPath := writeTestFile(t, dir, "opers.conf", "admin = secret\n")
	contents := baseConfigContents(`
class-default-pingfreq = 2m
class-default-sendq = 1048576
class-default-maxlocal = 100
class-default-maxglobal = 200
`)
	contents = replacePath(contents, opersPath)
	cfgPath := writeTestFile(t, dir, "catbox.conf", contents)

	cfg, err := loadConfig(cfgPath)
	require.NoError(t, err)
	require.Contains(t, cfg.Classes, "default")
	assert.Equal(t, 100, cfg.Classes["default"].MaxLocal)
	assert.Equal(t, 200, cfg.Classes["default"].MaxGlobal)
	assert.Equal(t, 1048576, cfg.Classes["default"].SendQMax)
}

func TestLoadConfigServersYAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	opersPath := writeTestFile(t, dir, "opers.conf", "admin = secret\n")
	serversPath := writeTestFile(t, dir, "servers.yaml", `
hub.example.org:
  host: 10.0.0.1
  port: "6670"
  password: linkpass
  autoconn: true
`)
	contents := baseConfigContents("servers-config = " + serversPath + "\n")
	contents = replacePath(contents, opersPath)
	cfgPath := writeTestFile(t, dir, "catbox.conf", contents)

	cfg, err := loadConfig(cfgPath)
	require.NoError(t, err)
	require.Contains(t, cfg.Servers, "hub.example.org")
	peer := cfg.Servers["hub.example.org"]
	assert.Equal(t, "10.0.0.1", peer.Host)
	assert.True(t, peer.Autoconn)
}

func replacePath(contents, opersPath string) string {
	return strings.Replace(contents, "opers-config = OPERSPATH", "opers-config = "+opersPath, 1)
}
