package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

// Args are command line arguments.
type Args struct {
	ConfigFile string
	ListenFD   int
	ServerName string
	SID        string

	// Charset overrides ircd-charset from config (the `-charset CS` form
	// of the §6 CLI surface).
	Charset string

	// Listeners overrides the ircd-listen set from config. Each
	// positional argument after the flags is a `[host/]port[%flags]`
	// listener spec; zero or more may be given.
	Listeners []ListenerSpec
}

func getArgs() *Args {
	configFile := flag.String("conf", "", "Configuration file.")
	fd := flag.Int(
		"listen-fd",
		-1,
		"File descriptor with listening port to use (optional).",
	)
	serverName := flag.String(
		"server-name",
		"",
		"Server name. Overrides server-name from config.",
	)
	sid := flag.String(
		"sid",
		"",
		"SID. Overrides ts6-sid from config.",
	)
	charset := flag.String(
		"charset",
		"",
		"Charset CS. Overrides ircd-charset from config.",
	)

	flag.Parse()

	if len(*configFile) == 0 {
		printUsage(fmt.Errorf("you must provide a configuration file"))
		return nil
	}

	configPath, err := filepath.Abs(*configFile)
	if err != nil {
		printUsage(fmt.Errorf(
			"unable to determine path to the configuration file: %s", err))
		return nil
	}

	var listeners []ListenerSpec
	for _, a := range flag.Args() {
		spec, err := parseListenerSpec(a)
		if err != nil {
			printUsage(fmt.Errorf("invalid listener spec %q: %s", a, err))
			return nil
		}
		listeners = append(listeners, spec)
	}

	return &Args{
		ConfigFile: configPath,
		ListenFD:   *fd,
		ServerName: *serverName,
		SID:        *sid,
		Charset:    *charset,
		Listeners:  listeners,
	}
}

func printUsage(err error) {
	_, _ = fmt.Fprintf(os.Stderr, "%s\n", err) // nolint: gas
	_, _ = fmt.Fprintf(os.Stderr,
		"Usage: %s [-charset CS] <arguments> [[host/]port[%%flags] ...]\n",
		os.Args[0]) // nolint: gas
	flag.PrintDefaults()
}
