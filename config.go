package main

import (
	"fmt"
	"io/ioutil"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/horgh/config"
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// ServerPeer is one entry of the `servers` sub-map: the
// connection info for a configured peer link, used by CONNECT and
// autoconnect.
type ServerPeer struct {
	Host     string
	Port     string
	Password string
	Flags    string
	Autoconn bool
}

// ListenerSpec is one `[host/]port[%flags]` listener, as taken from the
// CLI surface or the `ircd-listen` config key. Flags are the
// connection-chain filter letters (Z compression, S SSL, U charset, I
// multi-connect) this listener forces on accepted links, independent of
// whatever a peer later negotiates in its PASS opts.
type ListenerSpec struct {
	Host  string
	Port  string
	Flags string
}

// ClassConfig is one `class-<name>-*` section: per-class limits (the
// Tracking/Stats and class binding).
type ClassConfig struct {
	PingFreq  time.Duration
	SendQMax  int
	MaxLocal  int
	MaxGlobal int
}

// Config holds a server's configuration, loaded from a key=value file via
// github.com/horgh/config plus an optional YAML file (named by the
// servers-config key) for the per-server link section PopulateStruct's
// flat string-map model cannot express directly. Classes come from the
// key=value file's class-<name>-* keys, not from YAML.
type Config struct {
	ListenHost  string
	ListenPort  string
	ServerName  string
	ServerInfo  string
	Version     string
	CreatedDate string
	MOTD        string

	// Listeners is the full `[host/]port[%flags]` listener set: the
	// first entry mirrors ListenHost/ListenPort for callers that only
	// care about one socket. Populated from `ircd-listen` config lines
	// and overridable by positional CLI listener specs.
	Listeners []ListenerSpec

	// Charset names the transport-side charset conversion the listener
	// negotiates (the `U` connection-chain filter and `-charset CS` CLI
	// flag); the core never re-encodes and treats this as opaque.
	Charset string

	MaxNickLength int

	// Period of time to wait before waking server up (maximum).
	WakeupTime time.Duration

	// Period of time a client can be idle before we send it a PING.
	PingTime time.Duration

	// Period of time a client can be idle before we consider it dead.
	DeadTime time.Duration

	// HoldPeriod is parsed from ircd-hold-period, but no other code reads
	// it: nick and channel holds always use the holdPeriod constant.
	HoldPeriod time.Duration

	// ChaseTimeLimit is parsed from ircd-chase-time-limit, but no other
	// code reads it: following a phantom's rfr chain is not bounded by it.
	ChaseTimeLimit time.Duration

	// MaxBans is parsed from ircd-max-bans, but no other code reads it:
	// channel ban/exempt/invite lists have no size cap.
	MaxBans int

	// Oper name to password.
	Opers map[string]string

	// Classes is the set of connection classes loaded from
	// class-<name>-* keys, keyed by name.
	Classes map[string]ClassConfig

	// Servers is the set of configured peer links (the `servers` sub-map),
	// keyed by server name.
	Servers map[string]ServerPeer

	// TS6 SID. Must be unique in the network. Format: [0-9][A-Z0-9]{2}
	TS6SID string
}

// loadConfig reads and validates a server's configuration file, following
// a required-key presence check first, then type conversion, followed by
// the listener/class/servers sections.
func loadConfig(file string) (*Config, error) {
	configMap, err := config.ReadStringMap(file)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read config")
	}

	requiredKeys := []string{
		"listen-host",
		"listen-port",
		"server-name",
		"server-info",
		"version",
		"created-date",
		"motd",
		"max-nick-length",
		"wakeup-time",
		"ping-time",
		"dead-time",
		"opers-config",
		"ts6-sid",
	}

	for _, key := range requiredKeys {
		v, exists := configMap[key]
		if !exists {
			return nil, fmt.Errorf("missing required key: %s", key)
		}
		if len(v) == 0 {
			return nil, fmt.Errorf("configuration value is blank: %s", key)
		}
	}

	cfg := &Config{
		ListenHost:  configMap["listen-host"],
		ListenPort:  configMap["listen-port"],
		ServerName:  configMap["server-name"],
		ServerInfo:  configMap["server-info"],
		Version:     configMap["version"],
		CreatedDate: configMap["created-date"],
		MOTD:        configMap["motd"],
	}

	nickLen64, err := strconv.ParseInt(configMap["max-nick-length"], 10, 8)
	if err != nil {
		return nil, fmt.Errorf("max nick length is not valid: %s", err)
	}
	cfg.MaxNickLength = int(nickLen64)
	if cfg.MaxNickLength > 63 {
		cfg.MaxNickLength = 63 // compile-time ceiling
	}

	cfg.WakeupTime, err = time.ParseDuration(configMap["wakeup-time"])
	if err != nil {
		return nil, fmt.Errorf("wakeup time is in invalid format: %s", err)
	}

	cfg.PingTime, err = time.ParseDuration(configMap["ping-time"])
	if err != nil {
		return nil, fmt.Errorf("ping time is in invalid format: %s", err)
	}

	cfg.DeadTime, err = time.ParseDuration(configMap["dead-time"])
	if err != nil {
		return nil, fmt.Errorf("dead time is in invalid format: %s", err)
	}

	if v, ok := configMap["ircd-hold-period"]; ok && v != "" {
		cfg.HoldPeriod, err = time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("ircd-hold-period is in invalid format: %s", err)
		}
	}

	if v, ok := configMap["ircd-chase-time-limit"]; ok && v != "" {
		cfg.ChaseTimeLimit, err = time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("ircd-chase-time-limit is in invalid format: %s", err)
		}
	}

	if v, ok := configMap["ircd-max-bans"]; ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("ircd-max-bans is in invalid format: %s", err)
		}
		cfg.MaxBans = n
	}

	opers, err := config.ReadStringMap(configMap["opers-config"])
	if err != nil {
		return nil, fmt.Errorf("unable to load opers config: %s", err)
	}
	cfg.Opers = opers

	matched, err := regexp.MatchString("^[0-9][0-9A-Z]{2}$", configMap["ts6-sid"])
	if err != nil {
		return nil, fmt.Errorf("unable to validate ts6-sid: %s", err)
	}
	if !matched {
		return nil, fmt.Errorf("ts6-sid is in invalid format")
	}
	cfg.TS6SID = configMap["ts6-sid"]

	cfg.Classes = parseClassConfig(configMap)

	cfg.Charset = configMap["ircd-charset"]

	if v, ok := configMap["ircd-listen"]; ok && v != "" {
		listeners, err := parseListenerSpecs(v)
		if err != nil {
			return nil, errors.Wrap(err, "ircd-listen is in invalid format")
		}
		cfg.Listeners = listeners
	}

	if yamlPath, ok := configMap["servers-config"]; ok && yamlPath != "" {
		servers, err := loadServersYAML(yamlPath)
		if err != nil {
			return nil, errors.Wrap(err, "unable to load servers config")
		}
		cfg.Servers = servers
	} else {
		cfg.Servers = map[string]ServerPeer{}
	}

	return cfg, nil
}

// parseClassConfig extracts every class-<name>-{pingfreq,sendq,maxlocal,
// maxglobal} quadruple present in the raw config map into a ClassConfig
// keyed by name.
func parseClassConfig(configMap map[string]string) map[string]ClassConfig {
	names := map[string]bool{}
	for key := range configMap {
		if !strings.HasPrefix(key, "class-") {
			continue
		}
		rest := strings.TrimPrefix(key, "class-")
		idx := strings.LastIndex(rest, "-")
		if idx < 0 {
			continue
		}
		names[rest[:idx]] = true
	}

	classes := make(map[string]ClassConfig, len(names))
	for name := range names {
		var cc ClassConfig
		if v := configMap["class-"+name+"-pingfreq"]; v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				cc.PingFreq = d
			}
		}
		if v := configMap["class-"+name+"-sendq"]; v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				cc.SendQMax = n
			}
		}
		if v := configMap["class-"+name+"-maxlocal"]; v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				cc.MaxLocal = n
			}
		}
		if v := configMap["class-"+name+"-maxglobal"]; v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				cc.MaxGlobal = n
			}
		}
		classes[name] = cc
	}
	return classes
}

// parseListenerSpecs parses a comma-separated list of `ircd-listen`
// entries, each in the CLI surface's `[host/]port[%flags]` form.
func parseListenerSpecs(raw string) ([]ListenerSpec, error) {
	parts := strings.Split(raw, ",")
	specs := make([]ListenerSpec, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		spec, err := parseListenerSpec(p)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// parseListenerSpec parses one `[host/]port[%flags]` listener spec: an
// optional host before a '/', the port, and an optional '%'-delimited
// flags suffix (the connection-chain filter letters from §6: Z
// compression, S SSL, U charset, I multi-connect).
func parseListenerSpec(s string) (ListenerSpec, error) {
	var spec ListenerSpec

	if idx := strings.Index(s, "%"); idx >= 0 {
		spec.Flags = s[idx+1:]
		s = s[:idx]
	}

	if idx := strings.LastIndex(s, "/"); idx >= 0 {
		spec.Host = s[:idx]
		s = s[idx+1:]
	}

	if s == "" {
		return spec, fmt.Errorf("missing port in listener spec")
	}
	if _, err := strconv.Atoi(s); err != nil {
		return spec, fmt.Errorf("invalid port %q: %s", s, err)
	}
	spec.Port = s

	return spec, nil
}

// loadServersYAML reads the `servers` sub-map from a YAML overlay file, a
// shape PopulateStruct's flat string conversion cannot express. This is
// the one place the module reaches for gopkg.in/yaml.v2 directly rather
// than horgh/config's ReadStringMap, matching the overlay design note in
// the module's configuration documentation.
func loadServersYAML(path string) (map[string]ServerPeer, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc map[string]ServerPeer
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(err, "unable to parse yaml")
	}
	return doc, nil
}
