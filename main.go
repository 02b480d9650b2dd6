package main

import (
	"log"
	"os"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.SetOutput(os.Stdout)

	args := getArgs()
	if args == nil {
		os.Exit(1)
	}

	cfg, err := loadConfig(args.ConfigFile)
	if err != nil {
		log.Fatalf("unable to load configuration: %s", err)
	}

	if args.ServerName != "" {
		cfg.ServerName = args.ServerName
	}
	if args.SID != "" {
		cfg.TS6SID = args.SID
	}
	if args.Charset != "" {
		cfg.Charset = args.Charset
	}
	if len(args.Listeners) > 0 {
		cfg.Listeners = args.Listeners
	}
	if len(cfg.Listeners) > 0 {
		cfg.ListenHost = cfg.Listeners[0].Host
		cfg.ListenPort = cfg.Listeners[0].Port
	}

	h := NewHub(cfg)

	log.Printf("%s starting up", cfg.ServerName)

	if err := h.Serve(); err != nil {
		log.Fatalf("server error: %s", err)
	}

	log.Printf("%s shut down", cfg.ServerName)
}
