package main

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/horgh/irc"
)

// stateMutatingCommands are the message types whose delivery over a
// multi-connect link registers an outstanding Ack: the peer is expected
// to echo one of these back (or have already sent the same event itself,
// the contrary case) before the referenced objects can be released.
var stateMutatingCommands = map[string]bool{
	"JOIN":  true,
	"PART":  true,
	"QUIT":  true,
	"NICK":  true,
	"MODE":  true,
	"TOPIC": true,
	"KICK":  true,
	"SQUIT": true,
}

// singleTargetCommands are the state-mutating commands whose ack Target is
// the affected nick; a channel-wide property change like MODE/TOPIC has no
// single affected nick, so its ack matches on command+channel alone.
var singleTargetCommands = map[string]bool{
	"JOIN":  true,
	"PART":  true,
	"QUIT":  true,
	"NICK":  true,
	"KICK":  true,
	"SQUIT": true,
}

// ackTargetFor resolves the Target string an Ack should record for command,
// given the affected client (nil for none).
func ackTargetFor(command string, who *Client) string {
	if who != nil && singleTargetCommands[command] {
		return who.Nick
	}
	return ""
}

// sendToChannel implements the sendto_channel primitive: deliver to
// every local member (except exclude, if non-nil) and to every peer
// reachable via a channel member on the other side, tagged with a fresh
// multi-connect id on links that understand it so duplicate paths collapse
// to one delivery. who is the client this event concerns (nil for a
// server-originated change with no single affected user); it is carried
// through to the ack registered on any multi-connect link this reaches.
func (h *Hub) sendToChannel(ch *Channel, prefix, command string, params []string, exclude, who *Client) {
	id := h.idGen.nextID()

	seenServers := map[*Client]bool{}
	for _, m := range ch.Members {
		c := m.Client
		if c == exclude {
			continue
		}
		if c.isLocal() && c.Kind == KindLocalUser {
			h.deliverLocal(c, prefix, command, params)
			continue
		}
		if c.CS != nil {
			seenServers[c.CS] = true
		}
	}

	for server := range seenServers {
		h.forwardToServer(server, prefix, command, params, id, who, ch)
	}
}

// deliverToUser implements sendto_one for a single user target, whether
// local or remote. It is used for unicast deliveries (messaging, directed
// notices) that are not themselves state-mutating, so no ack is
// registered for the forwarded copy.
func (h *Hub) deliverToUser(dest *Client, prefix, command string, params []string) {
	if dest.isLocal() {
		h.deliverLocal(dest, prefix, command, params)
		return
	}
	h.forwardToServer(dest.CS, prefix, command, params, h.idGen.nextID(), nil, nil)
}

func (h *Hub) deliverLocal(c *Client, prefix, command string, params []string) {
	lc := c.localClient()
	if lc == nil {
		return
	}
	lc.maybeQueueMessage(irc.Message{Prefix: prefix, Command: command, Params: params})
}

// forwardToServer delivers one message toward a remote destination along its
// shortest path (via), tagging multi-connect-capable links with id so a
// redundant copy along alt is recognized and dropped by the receiver's
// idWindow. When the link is multi-connect and command is state-mutating,
// this registers an outstanding Ack on that link's queue: who and where
// identify what the ack concerns (where may be nil for a non-channel
// event).
func (h *Hub) forwardToServer(dest *Client, prefix, command string, params []string, id uint32, who *Client, where *Channel) {
	if dest == nil || dest.Kind == KindSelf {
		return
	}

	// Via is the last hop of the path; walk back to the hop that leaves
	// this server, whose To is the directly-linked peer.
	link := dest.Via
	for link != nil && link.To != nil && link.To.Kind == KindRemoteServer && link.From != nil {
		link = link.From.Via
	}
	if link == nil {
		return
	}

	target := link.To
	lc := target.localClient()
	if lc == nil {
		return
	}

	msg := irc.Message{Prefix: prefix, Command: command, Params: params}
	if link.MultiConnect {
		msg.Params = append([]string{strconv.FormatUint(uint64(id), 10)}, params...)
		msg.Command = "I" + command

		if stateMutatingCommands[command] {
			if q, ok := h.AckQueues[lc]; ok {
				q.register(command, ackTargetFor(command, who), who, where)
			}
		}
	}
	lc.maybeQueueMessage(msg)
}

// broadcastToServers relays a message, unmodified, to every directly-linked
// local server except exclude: used for messages that already carry their
// originating server's own multi-connect id (burst relays of an inbound
// UID/SID/MODE/etc.), where re-wrapping with a fresh id here would break
// the receiving leaf's ability to recognize the same event arriving by an
// alternate path back to its true origin.
func (h *Hub) broadcastToServers(msg irc.Message, exclude *Client) {
	for _, c := range h.Directory.Clients {
		if c.Kind != KindLocalServer || c == exclude {
			continue
		}
		lc := c.localClient()
		if lc == nil {
			continue
		}
		lc.maybeQueueMessage(msg)
	}
}

// broadcastOriginEvent floods a state-mutating event that this server
// itself originates (QUIT, NICK, SQUIT) to every directly-linked server,
// tagging each multi-connect link with one shared id so a redundant
// delivery via an alternate path collapses to one, and registering an
// outstanding Ack on each such link.
func (h *Hub) broadcastOriginEvent(prefix, command string, params []string, exclude, who *Client, where *Channel) {
	id := h.idGen.nextID()
	target := ackTargetFor(command, who)

	for _, c := range h.Directory.Clients {
		if c.Kind != KindLocalServer || c == exclude {
			continue
		}
		lc := c.localClient()
		if lc == nil {
			continue
		}

		msg := irc.Message{Prefix: prefix, Command: command, Params: params}
		if link := c.Via; link != nil && link.MultiConnect {
			msg.Params = append([]string{strconv.FormatUint(uint64(id), 10)}, params...)
			msg.Command = "I" + command

			if stateMutatingCommands[command] {
				if q, ok := h.AckQueues[lc]; ok {
					q.register(command, target, who, where)
				}
			}
		}
		lc.maybeQueueMessage(msg)
	}
}

// sendToServerMask implements the oper-only "$mask" broadcast target:
// deliver to every local user when our own server name matches mask, and
// forward once toward every directly-linked server whose own subtree
// contains a server name matching mask.
func (h *Hub) sendToServerMask(mask string, from *Client, command, text string) {
	if globMatch(mask, h.Config.ServerName) {
		for _, c := range h.Directory.Clients {
			if c.Kind != KindLocalUser {
				continue
			}
			h.deliverLocal(c, from.nickUhost(), command, []string{c.Nick, text})
		}
	}

	id := h.idGen.nextID()
	seenServers := map[*Client]bool{}
	for _, c := range h.Directory.Clients {
		if !c.isServer() || c.Kind == KindSelf || !globMatch(mask, c.Nick) {
			continue
		}
		link := c.Via
		for link != nil && link.To != nil && link.To.Kind == KindRemoteServer && link.From != nil {
			link = link.From.Via
		}
		if link != nil && link.To != nil {
			seenServers[link.To] = true
		}
	}

	for server := range seenServers {
		h.forwardToServer(server, from.nickUhost(), command, []string{"$" + mask, text}, id, nil, nil)
	}
}

// broadcastNickChange announces a nick change to every locally-connected
// channel peer, then floods the event network-wide exactly once per direct
// link: a remote peer server relays it to its own local channel members in
// turn, so per-member remote delivery here would double it.
func (h *Hub) broadcastNickChange(c *Client, newNick string) {
	notified := map[*Client]bool{}
	for _, m := range c.userVariant().Channels {
		for _, other := range m.Channel.Members {
			if other.Client == c || notified[other.Client] {
				continue
			}
			notified[other.Client] = true
			if other.Client.isLocal() {
				h.deliverLocal(other.Client, c.nickUhost(), "NICK", []string{newNick})
			}
		}
	}

	h.broadcastOriginEvent(c.nickUhost(), "NICK",
		[]string{newNick, strconv.FormatInt(time.Now().Unix(), 10)}, c.CS, c, nil)
}

// killClient implements the local half of KILL: notify the
// client's channels and peers, then tear down its local connection if any.
func (h *Hub) killClient(c *Client, reason string) {
	h.quitUser(c, "Killed: "+reason)
}

// quitUser removes a user from every channel it was in (announcing it to
// local channel peers as a QUIT, and flooding the event network-wide
// exactly once per direct link), then converts the client to a phantom
// holding its nick key for the hold period rather than dropping it outright
// -- if the client is local, its link is also torn down.
func (h *Hub) quitUser(c *Client, reason string) {
	if !c.isUser() {
		return
	}

	notified := map[*Client]bool{}
	for _, m := range c.userVariant().Channels {
		ch := m.Channel
		for _, other := range ch.Members {
			if other.Client == c || notified[other.Client] {
				continue
			}
			notified[other.Client] = true
			if other.Client.isLocal() {
				h.deliverLocal(other.Client, broadcastIdentity(c, ch), "QUIT", []string{reason})
			}
		}
		ch.removeMember(c)
		h.dropChannelIfEmpty(ch)
	}

	h.broadcastOriginEvent(c.Nick, "QUIT", []string{reason}, c.CS, c, nil)

	h.Whowas.add(whowasEntry{
		Nick:     c.Nick,
		Ident:    c.userVariant().Ident,
		Host:     c.Host,
		RealName: c.RealName,
		Server:   h.originServerName(c),
		When:     time.Now(),
	})

	lc := c.localClient()
	cl := c.userVariant().Class
	originServer := h.originServerName(c)

	if cl != nil {
		cl.remove(c)
	}
	if lc != nil {
		lc.quit(reason)
	}

	h.Directory.insertPhantom(c, originServer, time.Now())
}

// squit implements SQUIT: drop the server Client and every
// user/server behind it, then recompute paths. server must be a
// KindLocalServer or KindRemoteServer Client.
func (h *Hub) squit(server *Client, reason string) {
	if !server.isServer() || server.Kind == KindSelf {
		return
	}

	var behind []*Client
	for _, c := range h.Directory.Clients {
		if c == server {
			continue
		}
		if c.CS == server || (c.isServer() && c.Via != nil && c.Via.To == server) {
			behind = append(behind, c)
		}
	}
	for _, c := range behind {
		if c.isUser() {
			h.quitUser(c, fmt.Sprintf("%s %s", h.Config.ServerName, server.Nick))
		} else if c.isServer() {
			h.squit(c, reason)
		}
	}

	if server.Kind == KindLocalServer {
		if parent := h.Self; parent != nil {
			sv := parent.serverVariant()
			for i, l := range sv.Links {
				if l.To == server {
					sv.Links = append(sv.Links[:i], sv.Links[i+1:]...)
					break
				}
			}
		}
		delete(h.AckQueues, server.localClient())
		if lc := server.localClient(); lc != nil {
			lc.quit(reason)
		}
	}

	delete(h.Directory.Clients, server.NickKey)

	h.broadcastOriginEvent(h.Config.ServerName, "SQUIT", []string{server.Nick, reason}, server, server, nil)

	h.recomputePaths()
}

// sweepHeldChannels drops empty channels whose hold period has elapsed
//.
func (h *Hub) sweepHeldChannels(now time.Time) {
	var expired []string
	for key, ch := range h.Directory.Channels {
		if ch.count() == 0 && !ch.HoldUpto.After(now) {
			expired = append(expired, key)
		}
	}
	for _, key := range expired {
		delete(h.Directory.Channels, key)
	}
}

// checkPings implements the per-link ping/dead-time schedule: send a
// PING once a link has been quiet for PingTime, and drop it once it has
// been quiet for DeadTime without replying.
func (h *Hub) checkPings(now time.Time) {
	pingTime := h.Config.PingTime
	if pingTime <= 0 {
		pingTime = 90 * time.Second
	}
	deadTime := h.Config.DeadTime
	if deadTime <= 0 {
		deadTime = 5 * time.Minute
	}

	for _, lc := range h.LocalClients {
		if lc.SendQueueExceeded {
			h.disconnectLocal(lc, "Max SendQ exceeded")
			continue
		}

		idle := now.Sub(lc.LastActivityTime)
		if idle > deadTime {
			h.disconnectLocal(lc, "Ping timeout")
			continue
		}
		if idle > pingTime && !lc.Pinged {
			lc.Pinged = true
			lc.LastPingTime = now
			lc.messageFromServer("PING", []string{h.Config.ServerName})
		}
	}
}

// reopTick implements the re-op timer: a channel with +r set and no
// operator present for longer than holdPeriod gets one re-opped at random
// (the first member found), matching the original source's simple re-op
// policy rather than inventing a priority scheme it never specified.
func (h *Hub) reopTick(now time.Time) {
	for _, ch := range h.Directory.Channels {
		if !ch.Modes.Has(AReop) || ch.count() == 0 || ch.operatorPresent() {
			continue
		}
		if ch.NoopSince.IsZero() || now.Sub(ch.NoopSince) < holdPeriod {
			continue
		}

		for _, m := range ch.Members {
			m.Modes = m.Modes.Set(AOp)
			ch.NoopSince = time.Time{}
			h.sendToChannel(ch, h.Config.ServerName, "MODE", []string{ch.Name, "+o", m.Client.Nick}, nil, m.Client)
			break
		}
	}
}

// connectToServer implements the oper CONNECT command: dial out
// to a configured peer and begin the outbound handshake as the connecting
// side.
func (h *Hub) connectToServer(name string) error {
	peer, ok := h.Config.Servers[name]
	if !ok {
		return fmt.Errorf("no such configured server: %s", name)
	}

	conn, err := net.Dial("tcp", net.JoinHostPort(peer.Host, peer.Port))
	if err != nil {
		return fmt.Errorf("unable to connect to %s: %w", name, err)
	}

	id := h.nextLocalID
	h.nextLocalID++

	lc := NewLocalClient(h, id, conn)
	lc.Outbound = true
	lc.PreRegPass = peer.Password
	lc.PreRegTS6SID = string(h.Config.TS6SID)
	lc.State = StateIdle

	h.LocalClients[lc.ID] = lc
	h.sendServerIntro(lc)

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		lc.readLoop()
	}()
	go func() {
		defer h.wg.Done()
		lc.writeLoop()
	}()

	return nil
}
