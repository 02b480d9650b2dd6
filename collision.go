package main

import "time"

// collisionOutcome is the policy binding's verdict for a nick collision
//.
type collisionOutcome int

const (
	collisionKillBoth collisionOutcome = iota
	collisionRenameIncoming
	collisionRenameExisting
)

// collisionPolicy is the Binding Registry entry consulted on a nick
// collision. It returns the outcome and, for a rename outcome, the new
// nickname to use.
type collisionPolicy func(h *Hub, existing, incoming *Client) (collisionOutcome, string)

// defaultCollisionPolicy is "kill both" unless a different binding is
// registered -- the conservative default we fall back to when a
// rename outcome itself collides.
func defaultCollisionPolicy(h *Hub, existing, incoming *Client) (collisionOutcome, string) {
	return collisionKillBoth, ""
}

// Hub.collisionBinding may be overridden (e.g. by an ircd-rusnet-style
// overlay) to prefer renaming; nil means use defaultCollisionPolicy.

// resolveNickCollision resolves a nick collision. `key` is the canonical nick the
// incoming introduction/rename wants. It returns ok=true if the caller may
// now proceed to occupy the key with incoming (the directory has already
// been updated to make room), or ok=false if incoming was killed instead
// (the caller must not insert it).
func (h *Hub) resolveNickCollision(key string, incoming *Client) (ok bool) {
	now := time.Now()
	existing, present := h.Directory.Clients[key]

	if present && existing.isPhantom() {
		// A phantom never collides in the live sense: either it has expired
		// and is simply discarded, or the incoming introduction is a rejoin
		// within the hold window and re-binds to it instead of triggering
		// kill-both.
		delete(h.Directory.Clients, key)
		present = false
		if !existing.HoldUpto.Before(now) || existing.OnAck != 0 {
			incoming.Rfr = existing
		}
	}

	if !present {
		return true
	}

	policy := h.collisionBinding
	if policy == nil {
		policy = defaultCollisionPolicy
	}

	outcome, newNick := policy(h, existing, incoming)

	switch outcome {
	case collisionRenameIncoming:
		newKey := canonicalizeNick(newNick)
		if _, collides := h.Directory.Clients[newKey]; collides {
			outcome = collisionKillBoth
			break
		}
		incoming.Nick = newNick
		incoming.NickKey = newKey
		h.broadcastNickChange(incoming, newNick)
		return true

	case collisionRenameExisting:
		newKey := canonicalizeNick(newNick)
		if _, collides := h.Directory.Clients[newKey]; collides {
			outcome = collisionKillBoth
			break
		}
		h.renameInPlace(existing, newNick, newKey)
		return true
	}

	// Fallthrough / explicit kill-both: emit KILL for
	// the local side, install a phantom with nick-delay, ignore the
	// incoming.
	h.killClient(existing, "Nick collision")
	phantom := h.Directory.insertPhantom(existing, h.originServerName(existing), now)
	h.Directory.Clients[key] = phantom
	return false
}

// renameInPlace keeps the same Client
// object; the old nick becomes a phantom with rto = self and
// self.rfr = phantom, so messages still addressed to the old nick within
// the chase time limit can be traced.
func (h *Hub) renameInPlace(c *Client, newNick, newKey string) {
	oldKey := c.NickKey
	now := time.Now()

	// Build a phantom snapshot of the old identity sharing renamed-from
	// linkage with the live client.
	phantom := &Client{
		Kind:     KindPhantom,
		Nick:     c.Nick,
		NickKey:  oldKey,
		Host:     h.originServerName(c),
		HoldUpto: now.Add(holdPeriod),
		Variant:  &PhantomVariant{RenameTo: c},
	}

	delete(h.Directory.Clients, oldKey)
	h.Directory.Clients[oldKey] = phantom

	c.Rfr = phantom
	c.Nick = newNick
	c.NickKey = newKey
	h.Directory.Clients[newKey] = c

	h.broadcastNickChange(c, newNick)
}

// originServerName returns the name to stamp on a phantom created for c:
// the server c was on, or the hub's own name for a local client ("host
// becomes the originating server's name").
func (h *Hub) originServerName(c *Client) string {
	if c.CS != nil {
		return c.CS.Nick
	}
	return h.Config.ServerName
}

// resolveServerCollision implements the server-collision policy: an
// incoming SERVER whose name already refers to a live server squits the
// youngest of the two links; an ISERVER for an already-known server is a
// legitimate backup path announcement instead.
func (h *Hub) resolveServerCollision(existing *Client, incomingIsBackupPath bool, incomingLink *Link) {
	if incomingIsBackupPath {
		existing.serverVariant().Links = append(existing.serverVariant().Links, incomingLink)
		h.recomputePaths()
		return
	}

	// Squit the younger link (the one that registered more recently).
	victim := existing
	if victim.localClient() != nil && victim.localClient().ConnectionStartTime.After(h.startTime) {
		h.squit(victim, "Server collision")
	}
}
