package main

import (
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/horgh/irc"
)

// EventType discriminates the dispatch-thread event queue ("All
// directory, channel, and peer-queue mutation happens on the dispatch
// thread"). Per-connection read/write loops are the only other goroutines,
// so that "only I/O boundary goroutines run in parallel" and every
// directory/channel mutation is single-threaded.
type EventType int

const (
	NewClientEvent EventType = iota
	DeadClientEvent
	MessageEvent
	TimerTickEvent
	OutboundConnectedEvent
	OutboundFailedEvent
)

// Event is one item on the Hub's single-consumer dispatch channel.
type Event struct {
	Type    EventType
	Client  *LocalClient
	Message irc.Message
	Err     error
}

// Hub is the top-level daemon: the single owning struct for directory,
// channel, class, and peer-queue state across the full multi-server,
// multi-connect topology.
type Hub struct {
	Config *Config

	Directory *Directory
	Classes   map[string]*Class
	Bindings  *Bindings

	// Self is the Client (KindSelf) representing this server's own
	// identity in the directory, so path recomputation and routing can
	// treat "us" uniformly with every other server Client.
	Self *Client

	// LocalClients covers every live connection regardless of FSM state,
	// keyed by an internal connection id (distinct from any protocol id).
	LocalClients map[uint64]*LocalClient
	nextLocalID  uint64

	// AckQueues holds one queue per multi-connect-capable local link
	//.
	AckQueues map[*LocalClient]*AckQueue

	idGen idCounter

	collisionBinding collisionPolicy

	Stats  *commandStats
	Whowas *whowasRing

	startTime time.Time

	events       chan Event
	shutdownChan chan struct{}
	shuttingDown bool
	wg           sync.WaitGroup

	listeners []net.Listener
}

// NewHub constructs a Hub ready to run Serve. Configuration must already
// be loaded.
func NewHub(cfg *Config) *Hub {
	h := &Hub{
		Config:       cfg,
		Directory:    NewDirectory(),
		Classes:      make(map[string]*Class),
		Bindings:     NewBindings(),
		LocalClients: make(map[uint64]*LocalClient),
		AckQueues:    make(map[*LocalClient]*AckQueue),
		Stats:        newCommandStats(),
		Whowas:       &whowasRing{},
		startTime:    time.Now(),
		events:       make(chan Event, 4096),
		shutdownChan: make(chan struct{}),
	}

	h.Self = &Client{
		Kind:    KindSelf,
		Nick:    cfg.ServerName,
		NickKey: canonicalizeServer(cfg.ServerName),
		Variant: &ServerVariant{},
	}
	h.Directory.Clients[h.Self.NickKey] = h.Self

	for name, cc := range cfg.Classes {
		h.Classes[name] = NewClass(name, cc.MaxLocal, cc.MaxGlobal, 0, int64(cc.PingFreq.Seconds()), cc.SendQMax)
	}

	registerCoreBindings(h.Bindings)

	return h
}

// defaultClass returns the "default" class if the configuration defines
// one, or nil if none is configured -- class accounting is then simply
// skipped for that client, matching a single-class-for-everyone behavior
// when no classes section is configured.
func (h *Hub) defaultClass() *Class {
	return h.Classes["default"]
}

// isShuttingDown reports whether the hub is draining for shutdown, the
// check every read loop makes before each blocking read.
func (h *Hub) isShuttingDown() bool {
	return h.shuttingDown
}

// newEvent enqueues an event for the dispatch goroutine. It is the
// boundary every I/O goroutine crosses to request a state mutation --
// the only point at which those goroutines touch shared state at all.
func (h *Hub) newEvent(e Event) {
	select {
	case h.events <- e:
	case <-h.shutdownChan:
	}
}

// Serve accepts connections on the configured listener and runs the
// single dispatch loop until shutdown. It blocks until the hub is told to
// shut down.
func (h *Hub) Serve() error {
	specs := h.Config.Listeners
	if len(specs) == 0 {
		specs = []ListenerSpec{{Host: h.Config.ListenHost, Port: h.Config.ListenPort}}
	}

	for _, spec := range specs {
		addr := fmt.Sprintf("%s:%s", spec.Host, spec.Port)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("unable to listen on %s: %w", addr, err)
		}
		h.listeners = append(h.listeners, ln)

		log.Printf("listening on %s (flags %q)", addr, spec.Flags)

		h.wg.Add(1)
		go h.acceptLoop(ln)
	}

	h.wg.Add(1)
	go h.timerLoop()

	h.dispatchLoop()

	h.wg.Wait()
	return nil
}

func (h *Hub) acceptLoop(ln net.Listener) {
	defer h.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if h.isShuttingDown() {
				return
			}
			log.Printf("accept: %s", err)
			continue
		}

		id := h.nextLocalID
		h.nextLocalID++

		lc := NewLocalClient(h, id, conn)
		h.newEvent(Event{Type: NewClientEvent, Client: lc})

		h.wg.Add(2)
		go func() {
			defer h.wg.Done()
			lc.readLoop()
		}()
		go func() {
			defer h.wg.Done()
			lc.writeLoop()
		}()
	}
}

// timerLoop drives the timer-driven flow: ping scheduling,
// hold-upto expiry, autoconnect retry, re-op timers, all funneled through
// the same single dispatch thread via TimerTickEvent.
func (h *Hub) timerLoop() {
	defer h.wg.Done()

	wake := h.Config.WakeupTime
	if wake <= 0 {
		wake = 30 * time.Second
	}
	ticker := time.NewTicker(wake)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.newEvent(Event{Type: TimerTickEvent})
		case <-h.shutdownChan:
			return
		}
	}
}

// dispatchLoop is the single-threaded cooperative scheduler: every
// directory/channel/peer-queue mutation happens here, one event at a
// time, so "within a binding the world is stable."
func (h *Hub) dispatchLoop() {
	for {
		select {
		case e := <-h.events:
			h.handleEvent(e)
			if h.shuttingDown && len(h.LocalClients) == 0 {
				return
			}
		case <-h.shutdownChan:
			if len(h.LocalClients) == 0 {
				return
			}
		}
	}
}

func (h *Hub) handleEvent(e Event) {
	switch e.Type {
	case NewClientEvent:
		h.LocalClients[e.Client.ID] = e.Client
	case DeadClientEvent:
		h.handleDeadClient(e.Client, e.Err)
	case MessageEvent:
		h.routeMessage(e.Client, e.Message)
	case TimerTickEvent:
		h.onTimerTick()
	}
}

func (h *Hub) onTimerTick() {
	now := time.Now()
	h.Directory.sweepPhantoms(now)
	h.sweepHeldChannels(now)
	h.checkPings(now)
	h.reopTick(now)
}

// shutdown walks every peer, SQUITs all servers, then drains until the
// last peer interface dies.
func (h *Hub) shutdown(reason string) {
	if h.shuttingDown {
		return
	}
	h.shuttingDown = true
	close(h.shutdownChan)

	for _, c := range h.Directory.Clients {
		if c.Kind == KindLocalServer {
			h.squit(c, reason)
		}
	}
	for _, lc := range h.LocalClients {
		lc.quit(reason)
	}

	for _, ln := range h.listeners {
		_ = ln.Close()
	}
}
