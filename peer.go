package main

import (
	"fmt"
	"log"
	"net"
	"time"

	"github.com/horgh/irc"
)

// FSMState is a per-link Peer FSM state.
type FSMState int

const (
	StateInitial FSMState = iota
	StateLogin
	StateIdle
	StateTalk
	StateQuit
	StateLastWait
)

// localClientWriteQueueSize bounds the write channel: this
// should only max out in case of connection issues, and
// maybeQueueMessage never blocks the dispatch goroutine regardless.
const localClientWriteQueueSize = 32768

// LocalClient is the per-link transport/FSM state. Once
// registration completes it is attached to a directory Client (local user
// or local server) via the Client field.
type LocalClient struct {
	Hub  *Hub
	Conn Conn
	ID   uint64

	WriteChan chan irc.Message

	ConnectionStartTime time.Time
	SendQueueExceeded   bool

	State FSMState

	// Outbound is true if we are the side that dialed out (CONNECT),
	// which starts life in StateIdle awaiting the peer's SERVER line.
	Outbound bool

	// Pre-registration fields, populated incrementally as NICK/USER or
	// PASS/CAPAB/SERVER arrive.
	PreRegNick       string
	PreRegUser       string
	PreRegRealName   string
	PreRegPass       string
	PreRegTS6SID     string
	PreRegServerName string
	PreRegServerDesc string
	PreRegCapabs     map[string]struct{}

	GotPASS    bool
	GotCAPAB   bool
	GotSERVER  bool
	SentSERVER bool
	SentSVINFO bool
	Bursting   bool

	LastActivityTime time.Time
	LastPingTime     time.Time
	LastMessageTime  time.Time
	Pinged           bool

	// Penalty is the anti-flood correction budget.
	Penalty      int
	errorBudget  int

	// Client is set once registration completes: the directory entry
	// (KindLocalUser or KindLocalServer) this link backs.
	Client *Client
}

// NewLocalClient creates a LocalClient in StateInitial.
func NewLocalClient(h *Hub, id uint64, conn net.Conn) *LocalClient {
	now := time.Now()
	ioWait := h.Config.DeadTime
	if ioWait <= 0 {
		ioWait = 5 * time.Minute
	}

	return &LocalClient{
		Hub:                 h,
		Conn:                NewConn(conn, ioWait),
		ID:                  id,
		WriteChan:           make(chan irc.Message, localClientWriteQueueSize),
		ConnectionStartTime: now,
		State:               StateInitial,
		PreRegCapabs:        make(map[string]struct{}),
		LastActivityTime:    now,
		LastPingTime:        now,
		LastMessageTime:     now,
		errorBudget:         10,
	}
}

func (lc *LocalClient) String() string {
	if lc.Client != nil {
		return lc.Client.String()
	}
	return fmt.Sprintf("%d %s", lc.ID, lc.Conn.RemoteAddr())
}

// maybeQueueMessage enqueues a message for delivery without ever blocking
// the dispatch goroutine: a full write channel sets SendQueueExceeded and
// drops the message, matching "Exceeding sendq terminates the link
// with Max SendQ exceeded" (termination itself happens on the next timer
// tick/event, not synchronously here, since we must not block or mutate
// from inside an arbitrary caller's stack).
func (lc *LocalClient) maybeQueueMessage(m irc.Message) {
	select {
	case lc.WriteChan <- m:
	default:
		lc.SendQueueExceeded = true
	}
}

// readLoop endlessly reads from the connection and posts MessageEvent (or
// DeadClientEvent on error) to the hub's single dispatch thread. This is
// the only goroutine, besides writeLoop and an outbound CONNECT dial, that
// runs outside the dispatch thread.
func (lc *LocalClient) readLoop() {
	for {
		if lc.Hub.isShuttingDown() {
			return
		}

		line, err := lc.Conn.Read()
		if err != nil {
			lc.Hub.newEvent(Event{Type: DeadClientEvent, Client: lc, Err: err})
			return
		}

		message, err := irc.ParseMessage(line)
		if err != nil {
			lc.Hub.newEvent(Event{Type: DeadClientEvent, Client: lc, Err: err})
			return
		}

		lc.Hub.newEvent(Event{Type: MessageEvent, Client: lc, Message: message})
	}
}

// writeLoop endlessly drains WriteChan to the connection.
func (lc *LocalClient) writeLoop() {
	for message := range lc.WriteChan {
		if err := lc.Conn.WriteMessage(message); err != nil {
			log.Printf("%s: write error: %s", lc, err)
			lc.Hub.newEvent(Event{Type: DeadClientEvent, Client: lc, Err: err})
			return
		}
	}
}

// quit tears down a link: sends ERROR, closes the write channel (ending
// writeLoop), and removes the LocalClient from the hub's bookkeeping. It
// must only be called from the dispatch goroutine.
func (lc *LocalClient) quit(msg string) {
	if _, ok := lc.Hub.LocalClients[lc.ID]; !ok {
		return
	}

	lc.maybeQueueMessage(irc.Message{Command: "ERROR", Params: []string{msg}})

	close(lc.WriteChan)
	_ = lc.Conn.Close()

	delete(lc.Hub.LocalClients, lc.ID)
}

// messageFromServer sends a message with the server's own name as prefix,
// prepending the target nick (or "*" pre-registration) for numeric
// replies.
func (lc *LocalClient) messageFromServer(command string, params []string) {
	finalParams := params
	if len(command) == 3 { // numerics are always 3 digits
		nick := "*"
		if lc.Client != nil {
			nick = lc.Client.Nick
		} else if lc.PreRegNick != "" {
			nick = lc.PreRegNick
		}
		finalParams = append([]string{nick}, params...)
	}

	lc.maybeQueueMessage(irc.Message{
		Prefix:  lc.Hub.Config.ServerName,
		Command: command,
		Params:  finalParams,
	})
}
