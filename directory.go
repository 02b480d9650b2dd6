package main

import "time"

// Directory is the replicated, case-folded index of every client
// (user/server/service/phantom) and channel. It is the single
// owning struct for this global mutable state: it "lives in a
// single owning struct passed to every operation; no thread-local or
// truly global mutables."
type Directory struct {
	// Clients covers users, servers, services, and phantoms: one key
	// space, matching the unification of all of these under CLIENT.
	Clients map[string]*Client

	Channels map[string]*Channel
}

// NewDirectory creates an empty Directory.
func NewDirectory() *Directory {
	return &Directory{
		Clients:  make(map[string]*Client),
		Channels: make(map[string]*Channel),
	}
}

// findClient is an exact case-folded lookup, optionally tracing a phantom
// to its current nick via `rto`.
func (d *Directory) findClient(key string) (*Client, bool) {
	c, ok := d.Clients[key]
	if !ok {
		return nil, false
	}
	return d.traceRename(c), true
}

// traceRename follows a phantom's RenameTo chain to the live client it
// ultimately became, if any; returns c unchanged if it is not a phantom or
// has no RenameTo target yet.
func (d *Directory) traceRename(c *Client) *Client {
	seen := map[*Client]bool{}
	for c.isPhantom() {
		if seen[c] {
			break // defensive: the chain should never cycle, but never trust that blindly
		}
		seen[c] = true
		pv := c.phantomVariant()
		if pv.RenameTo == nil {
			break
		}
		c = pv.RenameTo
	}
	return c
}

// findChannel is an exact case-folded channel lookup.
func (d *Directory) findChannel(key string) (*Channel, bool) {
	ch, ok := d.Channels[key]
	return ch, ok
}

// findByUserhost implements `find_by_userhost`: an exact nick
// lookup when nick is given, otherwise a full scan matching the supplied
// user/host against every live user.
func (d *Directory) findByUserhost(nick, user, host string) *Client {
	if nick != "" {
		c, ok := d.findClient(canonicalizeNick(nick))
		if !ok || !c.isUser() {
			return nil
		}
		if user != "" && c.userVariant().Ident != user {
			return nil
		}
		if host != "" && c.Host != host {
			return nil
		}
		return c
	}

	for _, c := range d.Clients {
		if !c.isUser() {
			continue
		}
		if user != "" && c.userVariant().Ident != user {
			continue
		}
		if host != "" && c.Host != host {
			continue
		}
		return c
	}
	return nil
}

// insertLive adds a live (non-phantom) client under its NickKey. Callers
// must have already resolved any collision via the collision resolver
//; insertLive does not itself check for a pre-existing key.
func (d *Directory) insertLive(c *Client) {
	d.Clients[c.NickKey] = c
}

// removeLive removes a live client from the directory without leaving a
// phantom behind. Used for pure bookkeeping cleanup (e.g. removing a
// never-fully-registered client) where no hold semantics are wanted; the
// ordinary QUIT/KILL/nick-change path uses insertPhantom instead.
func (d *Directory) removeLive(c *Client) {
	if d.Clients[c.NickKey] == c {
		delete(d.Clients, c.NickKey)
	}
}

// insertPhantom converts a departing live client into a phantom occupying
// its former key, per the phantom lifecycle, and links it onto the
// current key holder's rfr chain if the key is still live under a
// different client (e.g. a fast-paced nick change race). `old` is the
// Client being retired; `originServer` is the host text to record (the
// originating server's name, used to trace in-flight messages).
func (d *Directory) insertPhantom(old *Client, originServer string, now time.Time) *Client {
	phantom := old
	phantom.Kind = KindPhantom
	phantom.Host = originServer
	phantom.HoldUpto = now.Add(holdPeriod)
	phantom.Variant = &PhantomVariant{}

	holder, stillLive := d.Clients[phantom.NickKey]
	if stillLive && holder != phantom {
		// Someone else already claimed this key (a rename race): link the
		// phantom onto the live holder's rfr chain instead of occupying
		// the directory slot directly.
		phantom.phantomVariant().PrevCollision = holder.Rfr
		holder.Rfr = phantom
		return phantom
	}

	d.Clients[phantom.NickKey] = phantom
	return phantom
}

// dropPhantom implements the recursive phantom drop: walk the holder's
// rfr chain, free expired entries with zero ack refs, and relink the
// remainder so the holder keeps a valid chain head. Call this on a timer
// tick (or opportunistically before a collision check) for the Client
// currently occupying key (which may itself be the phantom, or a live
// client with phantoms chained off its Rfr).
func (d *Directory) dropPhantom(key string, now time.Time) {
	holder, ok := d.Clients[key]
	if !ok {
		return
	}

	if holder.isPhantom() {
		if holder.HoldUpto.Before(now) && holder.OnAck == 0 {
			// Free this phantom; if it chains to an earlier phantom, that
			// one becomes the new key holder so the hold lineage continues.
			next := holder.phantomVariant().PrevCollision
			if next != nil {
				d.Clients[key] = next
			} else {
				delete(d.Clients, key)
			}
		}
		return
	}

	// Live holder: walk its Rfr chain and prune expired, unreffed links.
	var kept []*Client
	cur := holder.Rfr
	for cur != nil {
		pv := cur.phantomVariant()
		next := pv.PrevCollision
		if cur.HoldUpto.Before(now) && cur.OnAck == 0 {
			cur = next
			continue
		}
		kept = append(kept, cur)
		cur = next
	}

	var newHead *Client
	for i := len(kept) - 1; i >= 0; i-- {
		kept[i].phantomVariant().PrevCollision = newHead
		newHead = kept[i]
	}
	holder.Rfr = newHead
}

// sweepPhantoms runs dropPhantom over every directory key, for the
// periodic hold-upto expiry timer.
func (d *Directory) sweepPhantoms(now time.Time) {
	for key := range d.Clients {
		d.dropPhantom(key, now)
	}
}
