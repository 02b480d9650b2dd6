package main

import "github.com/horgh/irc"

// CommandBinding is a handler registered against a command name in one of
// the Binding Registry's tables.
// Returning an error does not necessarily terminate the link; the router
// decides based on the error kind.
type CommandBinding func(h *Hub, lc *LocalClient, msg irc.Message) error

// FilterBinding runs before the command table for a link in Login state,
// or before client-cmd for a registered client link. It
// may short-circuit (stop == true) to prevent the command table from
// running at all -- e.g. a flood-control or ignore-list filter.
type FilterBinding func(h *Hub, lc *LocalClient, msg irc.Message) (stop bool, err error)

// Bindings is the Binding Registry: name-keyed dispatch tables populated
// at startup, looked up by the router on every parsed line.
type Bindings struct {
	ClientCmd   map[string]CommandBinding
	ServerCmd   map[string]CommandBinding
	RegisterCmd map[string]CommandBinding

	ClientFilter []FilterBinding

	// Penalty overrides the default +1-per-message penalty
	// for specific commands (e.g. heavier for PRIVMSG to many targets).
	Penalty map[string]int
}

// NewBindings creates an empty registry; router.go's registerCoreBindings
// populates it at startup.
func NewBindings() *Bindings {
	return &Bindings{
		ClientCmd:   make(map[string]CommandBinding),
		ServerCmd:   make(map[string]CommandBinding),
		RegisterCmd: make(map[string]CommandBinding),
		Penalty:     make(map[string]int),
	}
}

func (b *Bindings) bindClient(cmd string, fn CommandBinding) {
	b.ClientCmd[cmd] = fn
}

func (b *Bindings) bindServer(cmd string, fn CommandBinding) {
	b.ServerCmd[cmd] = fn
}

func (b *Bindings) bindRegister(cmd string, fn CommandBinding) {
	b.RegisterCmd[cmd] = fn
}

func (b *Bindings) addFilter(fn FilterBinding) {
	b.ClientFilter = append(b.ClientFilter, fn)
}

// penaltyFor returns the penalty a command should apply, defaulting to 1
// "+1 per message by default; bindings can return a
// multiplier").
func (b *Bindings) penaltyFor(cmd string) int {
	if p, ok := b.Penalty[cmd]; ok {
		return p
	}
	return 1
}
