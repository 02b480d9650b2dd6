package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/horgh/irc"
)

// routeMessage is the Command Router entry point: it applies the
// per-state dispatch rules to one already-parsed line from lc, then
// applies the flood penalty.
func (h *Hub) routeMessage(lc *LocalClient, msg irc.Message) {
	lc.LastActivityTime = time.Now()
	lc.Pinged = false

	cmd := strings.ToUpper(msg.Command)
	h.Stats.record(cmd)

	var err error
	switch lc.State {
	case StateInitial, StateLogin, StateIdle:
		err = h.routeRegistering(lc, cmd, msg)
	case StateTalk:
		err = h.routeTalk(lc, cmd, msg)
	default:
		err = nil
	}

	if err != nil {
		h.handleRouteError(lc, err)
	}

	lc.Penalty += h.Bindings.penaltyFor(cmd)
}

// routeRegistering handles the Login/Idle states: try
// client-filter bindings first, then register-cmd.
func (h *Hub) routeRegistering(lc *LocalClient, cmd string, msg irc.Message) error {
	for _, f := range h.Bindings.ClientFilter {
		stop, err := f(h, lc, msg)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}

	if fn, ok := h.Bindings.RegisterCmd[cmd]; ok {
		return fn(h, lc, msg)
	}

	lc.messageFromServer(errNotRegistered, []string{"You have not registered"})
	return nil
}

// routeTalk handles the Talk state: server-originated input dispatches
// through server-cmd; client-originated through client-filter then
// client-cmd.
func (h *Hub) routeTalk(lc *LocalClient, cmd string, msg irc.Message) error {
	if lc.Client != nil && lc.Client.Kind == KindLocalServer {
		if fn, ok := h.Bindings.ServerCmd[cmd]; ok {
			return fn(h, lc, msg)
		}
		return nil
	}

	for _, f := range h.Bindings.ClientFilter {
		stop, err := f(h, lc, msg)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}

	if fn, ok := h.Bindings.ClientCmd[cmd]; ok {
		return fn(h, lc, msg)
	}

	lc.messageFromServer(errUnknownCommand, []string{cmd, "Unknown command"})
	return nil
}

// handleRouteError implements the local-recovery policy for errors that
// escape a binding: reply with ERR_UNKNOWNCOMMAND carrying the error text
// and count it toward the per-link correction budget; past the budget,
// SQUIT/disconnect the link.
func (h *Hub) handleRouteError(lc *LocalClient, err error) {
	lc.errorBudget--
	lc.messageFromServer(errUnknownCommand, []string{"*", err.Error()})
	if lc.errorBudget <= 0 {
		h.disconnectLocal(lc, "Too many protocol errors")
	}
}

func (h *Hub) handleDeadClient(lc *LocalClient, err error) {
	reason := "Connection reset by peer"
	if err != nil {
		reason = err.Error()
	}
	h.disconnectLocal(lc, reason)
}

// disconnectLocal tears down a link's directory presence (if registered)
// and its transport state.
func (h *Hub) disconnectLocal(lc *LocalClient, reason string) {
	if lc.Client != nil {
		switch lc.Client.Kind {
		case KindLocalUser:
			h.quitUser(lc.Client, reason)
		case KindLocalServer:
			h.squit(lc.Client, reason)
		}
	}
	lc.quit(reason)
}

// registerCoreBindings populates the Binding Registry at startup.
func registerCoreBindings(b *Bindings) {
	b.bindRegister("NICK", cmdNick)
	b.bindRegister("USER", cmdUser)
	b.bindRegister("PASS", cmdPass)
	b.bindRegister("CAPAB", cmdCapab)
	b.bindRegister("SERVER", cmdServer)
	b.bindRegister("SVINFO", cmdSvinfo)
	b.bindRegister("QUIT", cmdRegisterQuit)

	b.bindClient("NICK", cmdNickChange)
	b.bindClient("USER", cmdUserAlreadyRegistered)
	b.bindClient("JOIN", cmdJoin)
	b.bindClient("PART", cmdPart)
	b.bindClient("PRIVMSG", cmdMessage)
	b.bindClient("NOTICE", cmdMessage)
	b.bindClient("TOPIC", cmdTopic)
	b.bindClient("MODE", cmdMode)
	b.bindClient("WHO", cmdWho)
	b.bindClient("WHOIS", cmdWhois)
	b.bindClient("WHOWAS", cmdWhowas)
	b.bindClient("LUSERS", cmdLusers)
	b.bindClient("MOTD", cmdMotd)
	b.bindClient("QUIT", cmdQuit)
	b.bindClient("PING", cmdPing)
	b.bindClient("PONG", cmdPong)
	b.bindClient("OPER", cmdOper)
	b.bindClient("DIE", cmdDie)
	b.bindClient("CONNECT", cmdConnect)
	b.bindClient("LINKS", cmdLinks)
	b.bindClient("STATS", cmdStats)

	b.bindServer("PING", cmdServerPing)
	b.bindServer("PONG", cmdServerPong)
	b.bindServer("ERROR", cmdServerError)
	b.bindServer("UID", cmdServerUID)
	b.bindServer("SID", cmdServerSID)
	b.bindServer("ISERVER", cmdServerISERVER)
	b.bindServer("NICK", cmdServerNick)
	b.bindServer("QUIT", cmdServerQuit)
	b.bindServer("SQUIT", cmdServerSquit)
	b.bindServer("KILL", cmdServerKill)
	b.bindServer("PRIVMSG", cmdServerMessage)
	b.bindServer("NOTICE", cmdServerMessage)
	b.bindServer("IPRIVMSG", cmdServerIMessage)
	b.bindServer("INOTICE", cmdServerIMessage)
	b.bindServer("MODE", cmdServerMode)
	b.bindServer("IMODE", cmdServerIMode)
	b.bindServer("TOPIC", cmdServerTopic)
	b.bindServer("ITOPIC", cmdServerITopic)
	b.bindServer("JOIN", cmdServerJoin)
	b.bindServer("NJOIN", cmdServerNJoin)
	b.bindServer("ACK", cmdServerAck)
}

// --- registration ---

func cmdNick(h *Hub, lc *LocalClient, msg irc.Message) error {
	if len(msg.Params) < 1 {
		lc.messageFromServer(errNoNickGiven, []string{"No nickname given"})
		return nil
	}
	nick := msg.Params[0]
	if !isValidNick(h.Config.MaxNickLength, nick) {
		lc.messageFromServer(errErroneusNick, []string{nick, "Erroneous nickname"})
		return nil
	}
	if _, ok := h.Directory.findClient(canonicalizeNick(nick)); ok {
		lc.messageFromServer(errNicknameInUse, []string{nick, "Nickname is already in use"})
		return nil
	}
	lc.PreRegNick = nick

	if lc.PreRegUser != "" {
		h.completeUserRegistration(lc)
	}
	return nil
}

func cmdUser(h *Hub, lc *LocalClient, msg irc.Message) error {
	if len(msg.Params) < 4 {
		lc.messageFromServer(errNeedMoreParams, []string{"USER", "Not enough parameters"})
		return nil
	}
	if !isValidUser(12, msg.Params[0]) {
		lc.messageFromServer(errNeedMoreParams, []string{"USER", "Invalid username"})
		return nil
	}
	lc.PreRegUser = msg.Params[0]
	lc.PreRegRealName = msg.Params[3]

	if lc.PreRegNick != "" {
		h.completeUserRegistration(lc)
	}
	return nil
}

func cmdRegisterQuit(h *Hub, lc *LocalClient, msg irc.Message) error {
	h.disconnectLocal(lc, "Client quit")
	return nil
}

// completeUserRegistration implements the Login->Talk transition for a
// user link once both NICK and USER have been seen: builds the Client,
// resolves nick collisions, registers it, and sends the RFC 2813 welcome
// burst.
func (h *Hub) completeUserRegistration(lc *LocalClient) {
	nickKey := canonicalizeNick(lc.PreRegNick)

	c := &Client{
		Kind:     KindLocalUser,
		Nick:     lc.PreRegNick,
		NickKey:  nickKey,
		Host:     lc.Conn.IP.String(),
		RealName: lc.PreRegRealName,
		CS:       h.Self,
		NickTS:   time.Now().Unix(),
		Variant: &UserVariant{
			Ident:    lc.PreRegUser,
			Channels: make(map[string]*Member),
			Local:    lc,
		},
	}

	if !h.resolveNickCollision(nickKey, c) {
		lc.messageFromServer(errNicknameInUse, []string{c.Nick, "Nickname is already in use"})
		return
	}

	h.Directory.insertLive(c)
	lc.Client = c
	lc.State = StateTalk

	if cl := h.defaultClass(); cl != nil {
		cl.add(c)
		c.userVariant().Class = cl
	}

	lc.messageFromServer(rplWelcome, []string{
		fmt.Sprintf("Welcome to the Internet Relay Network %s", c.nickUhost()),
	})
	lc.messageFromServer(rplYourHost, []string{
		fmt.Sprintf("Your host is %s, running version %s", h.Config.ServerName, h.Config.Version),
	})
	lc.messageFromServer(rplCreated, []string{
		fmt.Sprintf("This server was created %s", h.Config.CreatedDate),
	})
	lc.messageFromServer(rplMyInfo, []string{h.Config.ServerName, h.Config.Version, "aioOrwxz", "abeIiklmnpqrst"})

	cmdLusersImpl(h, lc)
	cmdMotdImpl(h, lc)

	c.Modes = c.Modes.Set(AInvisible)

	uidSuffix, err := makeTS6ID(lc.ID)
	if err != nil {
		return
	}
	h.broadcastToServers(irc.Message{
		Prefix:  h.Config.ServerName,
		Command: "UID",
		Params: []string{c.Nick, "1", strconv.FormatInt(c.NickTS, 10), "+i", c.userVariant().Ident, c.Host, c.Host,
			string(h.Config.TS6SID) + uidSuffix, c.RealName},
	}, nil)
}

// --- server handshake ---

func cmdPass(h *Hub, lc *LocalClient, msg irc.Message) error {
	if len(msg.Params) < 4 {
		return fmt.Errorf("PASS: not enough parameters")
	}
	if msg.Params[1] != "TS" || msg.Params[2] != "6" {
		return fmt.Errorf("PASS: unsupported protocol version")
	}
	lc.PreRegPass = msg.Params[0]
	lc.PreRegTS6SID = msg.Params[3]
	lc.GotPASS = true
	return nil
}

func cmdCapab(h *Hub, lc *LocalClient, msg irc.Message) error {
	if len(msg.Params) < 1 {
		return fmt.Errorf("CAPAB: not enough parameters")
	}
	for _, c := range strings.Fields(msg.Params[0]) {
		lc.PreRegCapabs[c] = struct{}{}
	}
	if _, ok := lc.PreRegCapabs["QS"]; !ok {
		return fmt.Errorf("CAPAB: peer does not support QS")
	}
	if _, ok := lc.PreRegCapabs["ENCAP"]; !ok {
		return fmt.Errorf("CAPAB: peer does not support ENCAP")
	}
	lc.GotCAPAB = true
	return nil
}

func cmdServer(h *Hub, lc *LocalClient, msg irc.Message) error {
	if !lc.GotPASS {
		return fmt.Errorf("SERVER: PASS must precede SERVER")
	}
	if len(msg.Params) < 3 {
		return fmt.Errorf("SERVER: not enough parameters")
	}

	name := msg.Params[0]
	if existing, ok := h.Directory.findClient(canonicalizeServer(name)); ok && existing.isServer() && existing.Kind != KindSelf {
		h.resolveServerCollision(existing, false, nil)
	}

	lc.PreRegServerName = name
	lc.PreRegServerDesc = msg.Params[2]
	lc.GotSERVER = true
	return nil
}

func cmdSvinfo(h *Hub, lc *LocalClient, msg irc.Message) error {
	if len(msg.Params) < 4 {
		return fmt.Errorf("SVINFO: not enough parameters")
	}
	if msg.Params[0] != "6" {
		return fmt.Errorf("SVINFO: unsupported TS version")
	}
	theirTime, err := strconv.ParseInt(msg.Params[3], 10, 64)
	if err == nil {
		delta := time.Now().Unix() - theirTime
		if delta > 60 || delta < -60 {
			return fmt.Errorf("SVINFO: time insanity")
		}
	}

	if !lc.GotSERVER {
		return fmt.Errorf("SVINFO: SERVER must precede SVINFO")
	}

	h.completeServerRegistration(lc)
	return nil
}

// completeServerRegistration finalizes a peer link, as local_client.go's
// svinfoCommand already chooses to do ("let's choose here to decide we're
// linked; the burst is still to come") rather than waiting for a further
// PING/PONG round trip.
func (h *Hub) completeServerRegistration(lc *LocalClient) {
	key := canonicalizeServer(lc.PreRegServerName)

	multi := false
	if _, ok := lc.PreRegCapabs["I"]; ok {
		multi = true
	}

	c := &Client{
		Kind:    KindLocalServer,
		Nick:    lc.PreRegServerName,
		NickKey: key,
		Host:    lc.PreRegServerName,
		CS:      h.Self,
		Hops:    1,
		Variant: &ServerVariant{Local: lc},
	}

	h.Directory.Clients[key] = c
	lc.Client = c
	lc.State = StateTalk
	lc.Bursting = true

	link := &Link{From: h.Self, To: c, MultiConnect: multi}
	h.Self.serverVariant().Links = append(h.Self.serverVariant().Links, link)
	c.Via = link

	if multi {
		h.AckQueues[lc] = &AckQueue{}
	}

	if !lc.SentSERVER {
		h.sendServerIntro(lc)
	}

	h.recomputePaths()

	lc.messageFromServer("PING", []string{h.Config.ServerName})

	h.broadcastToServers(irc.Message{
		Prefix:  h.Config.ServerName,
		Command: "ISERVER",
		Params:  []string{c.Nick, "1", fmt.Sprintf("%d", c.serverVariant().Token), c.Nick},
	}, c)
}

// sendServerIntro sends our own PASS/CAPAB/SERVER, for either side of a
// handshake (inbound reply or outbound CONNECT).
func (h *Hub) sendServerIntro(lc *LocalClient) {
	lc.maybeQueueMessage(irc.Message{Command: "PASS", Params: []string{lc.PreRegPass, "TS", "6", string(h.Config.TS6SID)}})
	capabs := "QS ENCAP I"
	if h.Config.Charset != "" {
		capabs += " U"
	}
	lc.maybeQueueMessage(irc.Message{Command: "CAPAB", Params: []string{capabs}})
	lc.maybeQueueMessage(irc.Message{Command: "SERVER", Params: []string{h.Config.ServerName, "1", h.Config.ServerInfo}})
	lc.SentSERVER = true
}

// --- user commands (StateTalk, client-cmd) ---

func cmdNickChange(h *Hub, lc *LocalClient, msg irc.Message) error {
	if len(msg.Params) < 1 {
		lc.messageFromServer(errNoNickGiven, []string{"No nickname given"})
		return nil
	}
	newNick := msg.Params[0]
	if !isValidNick(h.Config.MaxNickLength, newNick) {
		lc.messageFromServer(errErroneusNick, []string{newNick, "Erroneous nickname"})
		return nil
	}
	newKey := canonicalizeNick(newNick)
	c := lc.Client

	if newKey == c.NickKey {
		c.Nick = newNick
		return nil
	}

	if !h.resolveNickCollision(newKey, c) {
		return nil
	}

	h.renameInPlace(c, newNick, newKey)
	return nil
}

func cmdUserAlreadyRegistered(h *Hub, lc *LocalClient, msg irc.Message) error {
	lc.messageFromServer(errAlreadyRegistered, []string{"Unauthorized command (already registered)"})
	return nil
}

func cmdJoin(h *Hub, lc *LocalClient, msg irc.Message) error {
	if len(msg.Params) < 1 {
		lc.messageFromServer(errNeedMoreParams, []string{"JOIN", "Not enough parameters"})
		return nil
	}
	c := lc.Client
	key := ""
	if len(msg.Params) > 1 {
		key = msg.Params[1]
	}

	for _, rawName := range strings.Split(msg.Params[0], ",") {
		h.joinOne(lc, c, rawName, key)
	}
	return nil
}

func (h *Hub) joinOne(lc *LocalClient, c *Client, rawName, key string) {
	sanitized := sanitizeChannelName(rawName, '_')
	if !isValidChannel(sanitized) {
		lc.messageFromServer(errNoSuchChannel, []string{rawName, "No such channel"})
		return
	}

	binding, ok := channelJoinBindings[sanitized[0]]
	if !ok {
		lc.messageFromServer(errNoSuchChannel, []string{rawName, "No such channel"})
		return
	}

	canon := canonicalizeChannel(sanitized)
	ch, exists := h.Directory.findChannel(canon)
	creating := !exists
	if exists && ch.isHeld(time.Now()) {
		lc.messageFromServer(errNoSuchChannel, []string{sanitized, "Channel is temporarily unavailable"})
		return
	}

	effectiveName, startModes, err := binding(h, sanitized, creating)
	if err != nil {
		lc.messageFromServer(errNoSuchChannel, []string{sanitized, err.Error()})
		return
	}

	canon = canonicalizeChannel(effectiveName)
	if creating {
		ch = NewChannel(effectiveName, canon)
		ch.Modes = ANoOutside.Set(ATopicLock)
		h.Directory.Channels[canon] = ch
	} else if c.onChannel(ch) {
		return
	} else {
		if err := ch.joinChecks(c.Nick, c.userVariant().Ident, c.Host, key); err != nil {
			h.rejectJoin(lc, ch, err)
			return
		}
	}

	ch.addMember(c, startModes)

	if ch.Topic != "" {
		lc.messageFromServer(rplTopic, []string{ch.Name, ch.Topic})
	} else {
		lc.messageFromServer(rplNoTopic, []string{ch.Name, "No topic is set"})
	}

	var names []string
	for _, m := range ch.Members {
		names = append(names, m.namesFlag())
	}
	lc.messageFromServer(rplNameReply, []string{"=", ch.Name, strings.Join(names, " ")})
	lc.messageFromServer(rplEndOfNames, []string{ch.Name, "End of /NAMES list"})

	h.sendToChannel(ch, c.nickUhost(), "JOIN", []string{ch.Name}, c, c)
}

func (h *Hub) rejectJoin(lc *LocalClient, ch *Channel, err error) {
	switch err {
	case errChannelFull:
		lc.messageFromServer(errChannelIsFull, []string{ch.Name, "Cannot join channel (+l)"})
	case errBadChannelKey:
		lc.messageFromServer(errBadChannelKey, []string{ch.Name, "Cannot join channel (+k)"})
	case errInviteOnly:
		lc.messageFromServer(errInviteOnlyChan, []string{ch.Name, "Cannot join channel (+i)"})
	case errBanned:
		lc.messageFromServer(errBannedFromChan, []string{ch.Name, "Cannot join channel (+b)"})
	default:
		lc.messageFromServer(errNoSuchChannel, []string{ch.Name, err.Error()})
	}
}

func cmdPart(h *Hub, lc *LocalClient, msg irc.Message) error {
	if len(msg.Params) < 1 {
		lc.messageFromServer(errNeedMoreParams, []string{"PART", "Not enough parameters"})
		return nil
	}
	reason := ""
	if len(msg.Params) > 1 {
		reason = msg.Params[1]
	}
	for _, name := range strings.Split(msg.Params[0], ",") {
		h.partOne(lc, lc.Client, name, reason)
	}
	return nil
}

func (h *Hub) partOne(lc *LocalClient, c *Client, name, reason string) {
	canon := canonicalizeChannel(name)
	ch, ok := h.Directory.findChannel(canon)
	if !ok {
		lc.messageFromServer(errNoSuchChannel, []string{name, "No such channel"})
		return
	}
	if !c.onChannel(ch) {
		lc.messageFromServer(errNotOnChannel, []string{name, "You're not on that channel"})
		return
	}

	params := []string{ch.Name}
	if reason != "" {
		params = append(params, reason)
	}
	h.sendToChannel(ch, broadcastIdentity(c, ch), "PART", params, nil, c)

	ch.removeMember(c)
	h.dropChannelIfEmpty(ch)
}

// dropChannelIfEmpty applies the hold-or-drop rule once a channel's
// membership reaches zero.
func (h *Hub) dropChannelIfEmpty(ch *Channel) {
	if ch.count() > 0 {
		return
	}
	now := time.Now()
	if ch.isSafe() {
		ch.HoldUpto = now.Add(holdPeriod)
		return
	}
	if !ch.NoopSince.IsZero() {
		ch.HoldUpto = ch.NoopSince.Add(holdPeriod)
		if ch.HoldUpto.After(now) {
			return
		}
	}
	delete(h.Directory.Channels, ch.Key)
}

func cmdMessage(h *Hub, lc *LocalClient, msg irc.Message) error {
	if len(msg.Params) < 1 {
		lc.messageFromServer(errNeedMoreParams, []string{msg.Command, "Not enough parameters"})
		return nil
	}
	if len(msg.Params) < 2 {
		lc.messageFromServer(errNeedMoreParams, []string{msg.Command, "No text to send"})
		return nil
	}

	text := msg.Params[1]
	if len(text) > irc.MaxLineLength-64 {
		text = text[:irc.MaxLineLength-64]
	}

	for _, target := range strings.Split(msg.Params[0], ",") {
		h.routeTargetedMessage(lc.Client, msg.Command, target, text)
	}
	return nil
}

// routeTargetedMessage implements the target classification for
// PRIVMSG/NOTICE/SQUERY.
func (h *Hub) routeTargetedMessage(from *Client, command, target, text string) {
	switch {
	case len(target) > 0 && strings.ContainsRune(channelTypeChars, rune(target[0])):
		ch, ok := h.Directory.findChannel(canonicalizeChannel(target))
		if !ok {
			return
		}
		h.sendToChannel(ch, broadcastIdentity(from, ch), command, []string{ch.Name, text}, from, nil)

	case strings.HasPrefix(target, "$"):
		// Server-mask: oper-only broadcast to matching local servers/clients.
		if from.isUser() && !from.isOperator() {
			return
		}
		h.sendToServerMask(target[1:], from, command, text)

	default:
		// Plain nick, or a nick!user / nick%host qualified form; the
		// qualifier is discarded unchecked, and delivery targets the user
		// the nick resolves to.
		nick := target
		if i := strings.IndexAny(target, "!%"); i != -1 {
			nick = target[:i]
		}
		dest, ok := h.Directory.findClient(canonicalizeNick(nick))
		if !ok || !dest.isUser() {
			return
		}
		h.deliverToUser(dest, from.nickUhost(), command, []string{dest.Nick, text})
	}
}

func cmdTopic(h *Hub, lc *LocalClient, msg irc.Message) error {
	if len(msg.Params) < 1 {
		lc.messageFromServer(errNeedMoreParams, []string{"TOPIC", "Not enough parameters"})
		return nil
	}
	ch, ok := h.Directory.findChannel(canonicalizeChannel(msg.Params[0]))
	if !ok {
		lc.messageFromServer(errNoSuchChannel, []string{msg.Params[0], "No such channel"})
		return nil
	}

	if len(msg.Params) == 1 {
		if ch.Topic == "" {
			lc.messageFromServer(rplNoTopic, []string{ch.Name, "No topic is set"})
		} else {
			lc.messageFromServer(rplTopic, []string{ch.Name, ch.Topic})
		}
		return nil
	}

	c := lc.Client
	if ch.Modes.Has(ATopicLock) {
		m := ch.Members[c.NickKey]
		if m == nil || !m.Modes.Has(AOp) {
			lc.messageFromServer(errChanOpPrivsNeeded, []string{ch.Name, "You're not channel operator"})
			return nil
		}
	}

	topic := msg.Params[1]
	if len(topic) > maxTopicLength {
		topic = topic[:maxTopicLength]
	}
	ch.Topic = topic
	ch.TopicSetBy = c.Nick
	ch.TopicSetAt = time.Now().Unix()

	h.sendToChannel(ch, broadcastIdentity(c, ch), "TOPIC", []string{ch.Name, topic}, nil, c)
	return nil
}

func cmdPing(h *Hub, lc *LocalClient, msg irc.Message) error {
	token := h.Config.ServerName
	if len(msg.Params) > 0 {
		token = msg.Params[0]
	}
	lc.messageFromServer("PONG", []string{h.Config.ServerName, token})
	return nil
}

func cmdPong(h *Hub, lc *LocalClient, msg irc.Message) error {
	lc.Pinged = false
	return nil
}

func cmdQuit(h *Hub, lc *LocalClient, msg irc.Message) error {
	reason := "Client quit"
	if len(msg.Params) > 0 {
		reason = msg.Params[0]
	}
	h.disconnectLocal(lc, reason)
	return nil
}

func cmdLusers(h *Hub, lc *LocalClient, msg irc.Message) error {
	cmdLusersImpl(h, lc)
	return nil
}

func cmdLusersImpl(h *Hub, lc *LocalClient) {
	counts := h.computeLusers()
	lc.messageFromServer(rplLUserClient, []string{
		fmt.Sprintf("There are %d users and %d invisible on %d servers",
			counts.Users, counts.Invisible, counts.Servers),
	})
	lc.messageFromServer(rplLUserOp, []string{fmt.Sprintf("%d", counts.Operators), "operator(s) online"})
	lc.messageFromServer(rplLUserChannels, []string{fmt.Sprintf("%d", counts.Channels), "channels formed"})
	lc.messageFromServer(rplLUserMe, []string{
		fmt.Sprintf("I have %d clients and %d servers", counts.LocalUsers, counts.Servers),
	})
}

func (h *Hub) computeLusers() lusersCounts {
	var c lusersCounts
	for _, cl := range h.Directory.Clients {
		switch cl.Kind {
		case KindLocalUser, KindRemoteUser:
			c.Users++
			if cl.Modes.Has(AInvisible) {
				c.Invisible++
			}
			if cl.isOperator() {
				c.Operators++
			}
			if cl.Kind == KindLocalUser {
				c.LocalUsers++
			}
		case KindLocalServer, KindRemoteServer:
			c.Servers++
		}
	}
	c.Channels = len(h.Directory.Channels)
	return c
}

func cmdMotd(h *Hub, lc *LocalClient, msg irc.Message) error {
	cmdMotdImpl(h, lc)
	return nil
}

func cmdMotdImpl(h *Hub, lc *LocalClient) {
	if h.Config.MOTD == "" {
		lc.messageFromServer(errNoMotd, []string{"MOTD file is missing"})
		return
	}
	lc.messageFromServer(rplMotdStart, []string{fmt.Sprintf("- %s Message of the day - ", h.Config.ServerName)})
	for _, line := range strings.Split(h.Config.MOTD, "\n") {
		lc.messageFromServer(rplMotd, []string{"- " + line})
	}
	lc.messageFromServer(rplEndOfMotd, []string{"End of /MOTD command"})
}

func cmdOper(h *Hub, lc *LocalClient, msg irc.Message) error {
	if len(msg.Params) < 2 {
		lc.messageFromServer(errNeedMoreParams, []string{"OPER", "Not enough parameters"})
		return nil
	}
	pass, ok := h.Config.Opers[msg.Params[0]]
	if !ok || pass != msg.Params[1] {
		lc.messageFromServer(errPasswdMismatch, []string{"Password incorrect"})
		return nil
	}
	lc.Client.Modes = lc.Client.Modes.Set(AOp)
	lc.messageFromServer(rplYoureOper, []string{"You are now an IRC operator"})
	return nil
}

func cmdDie(h *Hub, lc *LocalClient, msg irc.Message) error {
	if !lc.Client.isOperator() {
		lc.messageFromServer(errNoPrivileges, []string{"Permission Denied- You're not an IRC operator"})
		return nil
	}
	h.shutdown("Server shutting down")
	return nil
}

func cmdWho(h *Hub, lc *LocalClient, msg irc.Message) error {
	if len(msg.Params) < 1 {
		lc.messageFromServer(rplEndOfWho, []string{"*", "End of /WHO list"})
		return nil
	}
	mask := msg.Params[0]
	ch, isChannel := h.Directory.findChannel(canonicalizeChannel(mask))
	if isChannel {
		for _, m := range ch.Members {
			h.sendWhoLine(lc, m.Client, ch)
		}
	} else {
		c, ok := h.Directory.findClient(canonicalizeNick(mask))
		if ok && c.isUser() {
			h.sendWhoLine(lc, c, nil)
		}
	}
	lc.messageFromServer(rplEndOfWho, []string{mask, "End of /WHO list"})
	return nil
}

func (h *Hub) sendWhoLine(lc *LocalClient, c *Client, ch *Channel) {
	chanName := "*"
	flags := "H"
	if ch != nil {
		chanName = ch.Name
		if m := ch.Members[c.NickKey]; m != nil {
			flags += whoCharForMember(m.Modes)
		}
	}
	lc.messageFromServer(rplWhoReply, []string{
		chanName, c.userVariant().Ident, c.Host, h.Config.ServerName, c.Nick, flags,
		"0 " + c.RealName,
	})
}

func cmdWhois(h *Hub, lc *LocalClient, msg irc.Message) error {
	if len(msg.Params) < 1 {
		lc.messageFromServer(errNoSuchNick, []string{"*", "No such nick/channel"})
		return nil
	}
	nick := msg.Params[len(msg.Params)-1]
	if strings.ContainsAny(nick, "*?") && lc.Client.CS != h.Self {
		// Deliberate choice: reject wildcards from a remote requester.
		return nil
	}

	target, ok := h.Directory.findClient(canonicalizeNick(nick))
	if !ok || !target.isUser() {
		lc.messageFromServer(errNoSuchNick, []string{nick, "No such nick/channel"})
		return nil
	}

	lc.messageFromServer(rplWhoisUser, []string{
		target.Nick, target.userVariant().Ident, target.Host, "*", target.RealName,
	})
	lc.messageFromServer(rplWhoisServer, []string{target.Nick, h.Config.ServerName, h.Config.ServerInfo})
	if target.isOperator() {
		lc.messageFromServer(rplWhoisOperator, []string{target.Nick, "is an IRC operator"})
	}
	if target.localClient() != nil {
		idle := time.Since(target.localClient().LastMessageTime).Seconds()
		lc.messageFromServer(rplWhoisIdle, []string{target.Nick, fmt.Sprintf("%d", int(idle)), "seconds idle"})
	}
	lc.messageFromServer(rplEndOfWhois, []string{target.Nick, "End of /WHOIS list"})
	return nil
}

func cmdWhowas(h *Hub, lc *LocalClient, msg irc.Message) error {
	if len(msg.Params) < 1 {
		lc.messageFromServer(errNoSuchNick, []string{"*", "No such nick/channel"})
		return nil
	}
	entries := h.Whowas.find(msg.Params[0], 5)
	for _, e := range entries {
		lc.messageFromServer(rplWhoisUser, []string{e.Nick, e.Ident, e.Host, "*", e.RealName})
	}
	lc.messageFromServer(rplEndOfWhois, []string{msg.Params[0], "End of /WHOWAS"})
	return nil
}

func cmdStats(h *Hub, lc *LocalClient, msg irc.Message) error {
	if len(msg.Params) < 1 {
		return nil
	}
	for cmd, n := range h.Stats.hits {
		lc.messageFromServer(rplHelpTxt, []string{fmt.Sprintf("%s %d", cmd, n)})
	}
	lc.messageFromServer(rplEndOfHelp, []string{"End of /STATS report"})
	return nil
}

func cmdLinks(h *Hub, lc *LocalClient, msg irc.Message) error {
	for _, c := range h.Directory.Clients {
		if c.isServer() && c.Kind != KindSelf {
			lc.messageFromServer(rplLinks, []string{c.Nick, h.Config.ServerName, fmt.Sprintf("%d %s", c.Hops, c.Nick)})
		}
	}
	lc.messageFromServer(rplEndOfLinks, []string{"*", "End of /LINKS list"})
	return nil
}

func cmdConnect(h *Hub, lc *LocalClient, msg irc.Message) error {
	if !lc.Client.isOperator() {
		lc.messageFromServer(errNoPrivileges, []string{"Permission Denied- You're not an IRC operator"})
		return nil
	}
	if len(msg.Params) < 1 {
		lc.messageFromServer(errNeedMoreParams, []string{"CONNECT", "Not enough parameters"})
		return nil
	}
	return h.connectToServer(msg.Params[0])
}
