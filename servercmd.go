package main

import (
	"strconv"
	"strings"
	"time"

	"github.com/horgh/irc"
)

// cmdMode implements client-side MODE for both users and channels:
// parse the mode-letter tokens, apply each accepted change to the target,
// and broadcast the accepted batch.
func cmdMode(h *Hub, lc *LocalClient, msg irc.Message) error {
	if len(msg.Params) < 1 {
		lc.messageFromServer(errNeedMoreParams, []string{"MODE", "Not enough parameters"})
		return nil
	}

	target := msg.Params[0]
	if strings.ContainsRune(channelTypeChars, rune(target[0])) {
		return h.handleChannelMode(lc, target, msg.Params[1:])
	}
	return h.handleUserMode(lc, target, msg.Params[1:])
}

func (h *Hub) handleUserMode(lc *LocalClient, target string, args []string) error {
	c := lc.Client
	if canonicalizeNick(target) != c.NickKey {
		lc.messageFromServer(errUModeUnknownFlag, []string{"Cannot change mode for other users"})
		return nil
	}

	if len(args) == 0 {
		lc.messageFromServer(rplUModeIs, []string{c.modesString()})
		return nil
	}

	batch := &modeBatch{}
	for _, tok := range parseModeTokens(args[0]) {
		flag, ok := userModeChars[tok.Char]
		if !ok {
			lc.messageFromServer(errUModeUnknownFlag, []string{"Unknown MODE flag"})
			continue
		}
		if tok.Char == 'o' && tok.Dir == modeAdd {
			continue // +o is only granted via OPER/collision path, never direct MODE
		}
		if tok.Dir == modeAdd {
			c.Modes = c.Modes.Set(flag)
		} else {
			c.Modes = c.Modes.Clear(flag)
		}
		batch.add(tok.Dir, tok.Char, "")
	}

	if s := batch.String(); s != "" {
		lc.messageFromServer("MODE", []string{c.Nick, s})
	}
	return nil
}

func (h *Hub) handleChannelMode(lc *LocalClient, target string, args []string) error {
	ch, ok := h.Directory.findChannel(canonicalizeChannel(target))
	if !ok {
		lc.messageFromServer(errNoSuchChannel, []string{target, "No such channel"})
		return nil
	}

	if len(args) == 0 {
		lc.messageFromServer(rplChannelModeIs, []string{ch.Name, sortedModeLetters(ch.Modes, channelModeChars)})
		return nil
	}

	c := lc.Client
	member := ch.Members[c.NickKey]
	if member == nil || !member.Modes.Has(AOp) {
		lc.messageFromServer(errChanOpPrivsNeeded, []string{ch.Name, "You're not channel operator"})
		return nil
	}

	batch := &modeBatch{}
	paramIdx := 1
	nextParam := func() string {
		if paramIdx < len(args) {
			p := args[paramIdx]
			paramIdx++
			return p
		}
		return ""
	}

	for _, tok := range parseModeTokens(args[0]) {
		switch tok.Char {
		case maskModeBan, maskModeExempt, maskModeInvite:
			h.applyMaskModeChange(ch, tok.Dir, tok.Char, nextParam(), batch)
			continue
		}

		if mm, ok := channelMemberModeChars[tok.Char]; ok {
			nick := nextParam()
			target := ch.Members[canonicalizeNick(nick)]
			if target == nil {
				continue
			}
			if tok.Dir == modeAdd {
				target.Modes = target.Modes.Set(mm.Flag)
			} else {
				target.Modes = target.Modes.Clear(mm.Flag)
			}
			batch.add(tok.Dir, tok.Char, target.Client.Nick)
			continue
		}

		flag, ok := channelModeChars[tok.Char]
		if !ok {
			continue
		}

		param := ""
		switch tok.Char {
		case 'l':
			if tok.Dir == modeAdd {
				param = nextParam()
				if n, err := strconv.Atoi(param); err == nil {
					ch.Limit = n
				}
			} else {
				ch.Limit = 0
			}
		case 'k':
			if tok.Dir == modeAdd {
				param = nextParam()
				ch.Key_ = param
			} else {
				ch.Key_ = ""
			}
		}

		if tok.Dir == modeAdd {
			ch.Modes = ch.Modes.Set(flag)
		} else {
			ch.Modes = ch.Modes.Clear(flag)
		}
		batch.add(tok.Dir, tok.Char, param)
	}

	if s := batch.String(); s != "" {
		h.sendToChannel(ch, broadcastIdentity(c, ch), "MODE", append([]string{ch.Name}, strings.Fields(s)...), nil, c)
	}
	return nil
}

// applyMaskModeChange applies one +b/+e/+I token to the relevant mask
// list, implementing mask cancellation on add.
func (h *Hub) applyMaskModeChange(ch *Channel, dir modeDirection, char byte, param string, batch *modeBatch) {
	var list *maskList
	switch char {
	case maskModeBan:
		list = &ch.Bans
	case maskModeExempt:
		list = &ch.Exempts
	case maskModeInvite:
		list = &ch.Invites
	}

	if param == "" {
		return
	}
	mask := normalizeMask(param)

	if dir == modeAdd {
		cancelled, ok := list.add(mask)
		if !ok {
			return
		}
		for _, c := range cancelled {
			batch.add(modeRemove, char, c.String())
		}
		batch.add(modeAdd, char, mask.String())
		return
	}

	if list.remove(mask) {
		batch.add(modeRemove, char, mask.String())
	}
}

// rplUModeIs is RPL_UMODEIS (221), not otherwise listed among numerics.go's
// reply-table entries since nothing exercised self-mode-query before this
// module added it.
const rplUModeIs = "221"

// --- TS6 server-to-server command handlers ---

func cmdServerPing(h *Hub, lc *LocalClient, msg irc.Message) error {
	lc.messageFromServer("PONG", []string{h.Config.ServerName})
	return nil
}

func cmdServerPong(h *Hub, lc *LocalClient, msg irc.Message) error {
	lc.Pinged = false
	lc.Bursting = false
	return nil
}

func cmdServerError(h *Hub, lc *LocalClient, msg irc.Message) error {
	h.disconnectLocal(lc, "received ERROR from peer")
	return nil
}

// cmdServerUID introduces a remote user (the TS6 UID
// command): nick, hopcount, nickTS, umodes, ident, host, ip, uid, realname.
func cmdServerUID(h *Hub, lc *LocalClient, msg irc.Message) error {
	if len(msg.Params) < 9 {
		return nil
	}

	origin := lc.Client
	nickTS, _ := strconv.ParseInt(msg.Params[2], 10, 64)
	hops, _ := strconv.Atoi(msg.Params[1])

	c := &Client{
		Kind:     KindRemoteUser,
		Nick:     msg.Params[0],
		NickKey:  canonicalizeNick(msg.Params[0]),
		Host:     msg.Params[5],
		CS:       origin,
		Hops:     hops + 1,
		NickTS:   nickTS,
		RealName: msg.Params[8],
		Variant: &UserVariant{
			Ident:    msg.Params[4],
			Channels: make(map[string]*Member),
		},
	}

	for _, ch := range msg.Params[3] {
		if ch == '+' {
			continue
		}
		if flag, ok := userModeChars[byte(ch)]; ok {
			c.Modes = c.Modes.Set(flag)
		}
	}

	if !h.resolveNickCollision(c.NickKey, c) {
		return nil
	}
	h.Directory.insertLive(c)

	h.broadcastToServers(msg, lc.Client)
	return nil
}

// cmdServerSID introduces a remote server by TS6 SID: name, hopcount,
// sid, description.
func cmdServerSID(h *Hub, lc *LocalClient, msg irc.Message) error {
	if len(msg.Params) < 4 {
		return nil
	}
	hops, _ := strconv.Atoi(msg.Params[1])
	key := canonicalizeServer(msg.Params[0])

	c := &Client{
		Kind:    KindRemoteServer,
		Nick:    msg.Params[0],
		NickKey: key,
		Host:    msg.Params[0],
		CS:      lc.Client,
		Hops:    hops + 1,
		Variant: &ServerVariant{},
	}

	h.Directory.Clients[key] = c
	h.recomputePaths()
	h.broadcastToServers(msg, lc.Client)
	return nil
}

// cmdServerISERVER announces a (possibly redundant, multi-connect) link to
// an already-known server: name, hopcount, token, description.
func cmdServerISERVER(h *Hub, lc *LocalClient, msg irc.Message) error {
	if len(msg.Params) < 4 {
		return nil
	}
	key := canonicalizeServer(msg.Params[0])
	existing, ok := h.Directory.findClient(key)
	if !ok || !existing.isServer() {
		return cmdServerSID(h, lc, msg)
	}

	link := &Link{From: lc.Client, To: existing, MultiConnect: true}
	h.resolveServerCollision(existing, true, link)
	h.broadcastToServers(msg, lc.Client)
	return nil
}

func cmdServerNick(h *Hub, lc *LocalClient, msg irc.Message) error {
	if len(msg.Params) < 1 {
		return nil
	}
	c := lc.Client
	if c.Kind == KindLocalServer {
		// A NICK from a server link (rather than that server's own UID
		// reintroduction) names one of its users changing nick; find them
		// by the message prefix.
		existing, ok := h.Directory.findClient(canonicalizeNick(msg.Prefix))
		if !ok {
			return nil
		}
		c = existing
	}

	newNick := msg.Params[0]
	newKey := canonicalizeNick(newNick)
	if !h.resolveNickCollision(newKey, c) {
		return nil
	}
	h.renameInPlace(c, newNick, newKey)
	if q, ok := h.AckQueues[lc]; ok {
		q.markContrary("NICK", newNick, "")
	}
	h.broadcastToServers(msg, lc.Client)
	return nil
}

func cmdServerQuit(h *Hub, lc *LocalClient, msg irc.Message) error {
	target, ok := h.Directory.findClient(canonicalizeNick(msg.Prefix))
	if !ok {
		return nil
	}
	reason := ""
	if len(msg.Params) > 0 {
		reason = msg.Params[0]
	}
	nick := target.Nick
	h.quitUser(target, reason)
	if q, ok := h.AckQueues[lc]; ok {
		q.markContrary("QUIT", nick, "")
	}
	h.broadcastToServers(msg, lc.Client)
	return nil
}

func cmdServerSquit(h *Hub, lc *LocalClient, msg irc.Message) error {
	if len(msg.Params) < 1 {
		return nil
	}
	target, ok := h.Directory.findClient(canonicalizeServer(msg.Params[0]))
	if !ok {
		return nil
	}
	reason := ""
	if len(msg.Params) > 1 {
		reason = msg.Params[1]
	}
	h.squit(target, reason)
	return nil
}

func cmdServerKill(h *Hub, lc *LocalClient, msg irc.Message) error {
	if len(msg.Params) < 1 {
		return nil
	}
	target, ok := h.Directory.findClient(canonicalizeNick(msg.Params[0]))
	if !ok {
		return nil
	}
	reason := "Killed"
	if len(msg.Params) > 1 {
		reason = msg.Params[1]
	}
	nick := target.Nick
	h.killClient(target, reason)
	if q, ok := h.AckQueues[lc]; ok {
		// killClient's local effect is a QUIT, so that is what our own
		// outstanding ack (if any) for this nick was registered as.
		q.markContrary("QUIT", nick, "")
	}
	h.broadcastToServers(msg, lc.Client)
	return nil
}

func cmdServerMessage(h *Hub, lc *LocalClient, msg irc.Message) error {
	if len(msg.Params) < 2 {
		return nil
	}
	from, ok := h.Directory.findClient(canonicalizeNick(msg.Prefix))
	if !ok {
		from, ok = h.Directory.findClient(canonicalizeServer(msg.Prefix))
		if !ok {
			return nil
		}
	}
	h.routeTargetedMessage(from, msg.Command, msg.Params[0], msg.Params[1])
	return nil
}

// cmdServerIMessage handles IPRIVMSG/INOTICE: the multi-connect-tagged
// forms carrying a leading id parameter for duplicate suppression.
func cmdServerIMessage(h *Hub, lc *LocalClient, msg irc.Message) error {
	if len(msg.Params) < 3 {
		return nil
	}
	if !h.acceptMultiConnectID(lc, msg.Params[0]) {
		return nil
	}
	inner := irc.Message{Prefix: msg.Prefix, Command: strings.TrimPrefix(msg.Command, "I"), Params: msg.Params[1:]}
	return cmdServerMessage(h, lc, inner)
}

func cmdServerMode(h *Hub, lc *LocalClient, msg irc.Message) error {
	if len(msg.Params) < 2 {
		return nil
	}
	target := msg.Params[0]
	if strings.ContainsRune(channelTypeChars, rune(target[0])) {
		ch, ok := h.Directory.findChannel(canonicalizeChannel(target))
		if !ok {
			return nil
		}
		h.applyServerChannelMode(ch, msg.Params[1:])
		if q, ok := h.AckQueues[lc]; ok {
			q.markContrary("MODE", "", ch.Key)
		}
		h.broadcastToServers(msg, lc.Client)
		return nil
	}

	c, ok := h.Directory.findClient(canonicalizeNick(target))
	if !ok {
		return nil
	}
	for _, tok := range parseModeTokens(msg.Params[1]) {
		if flag, ok := userModeChars[tok.Char]; ok {
			if tok.Dir == modeAdd {
				c.Modes = c.Modes.Set(flag)
			} else {
				c.Modes = c.Modes.Clear(flag)
			}
		}
	}
	return nil
}

func (h *Hub) applyServerChannelMode(ch *Channel, args []string) {
	paramIdx := 1
	nextParam := func() string {
		if paramIdx < len(args) {
			p := args[paramIdx]
			paramIdx++
			return p
		}
		return ""
	}
	if len(args) == 0 {
		return
	}
	for _, tok := range parseModeTokens(args[0]) {
		switch tok.Char {
		case maskModeBan, maskModeExempt, maskModeInvite:
			h.applyMaskModeChange(ch, tok.Dir, tok.Char, nextParam(), &modeBatch{})
			continue
		}
		if mm, ok := channelMemberModeChars[tok.Char]; ok {
			m := ch.Members[canonicalizeNick(nextParam())]
			if m == nil {
				continue
			}
			if tok.Dir == modeAdd {
				m.Modes = m.Modes.Set(mm.Flag)
			} else {
				m.Modes = m.Modes.Clear(mm.Flag)
			}
			continue
		}
		flag, ok := channelModeChars[tok.Char]
		if !ok {
			continue
		}
		switch tok.Char {
		case 'l':
			if tok.Dir == modeAdd {
				if n, err := strconv.Atoi(nextParam()); err == nil {
					ch.Limit = n
				}
			}
		case 'k':
			if tok.Dir == modeAdd {
				ch.Key_ = nextParam()
			}
		}
		if tok.Dir == modeAdd {
			ch.Modes = ch.Modes.Set(flag)
		} else {
			ch.Modes = ch.Modes.Clear(flag)
		}
	}
}

// cmdServerIMode handles IMODE, the multi-connect-tagged MODE form.
func cmdServerIMode(h *Hub, lc *LocalClient, msg irc.Message) error {
	if len(msg.Params) < 3 {
		return nil
	}
	if !h.acceptMultiConnectID(lc, msg.Params[0]) {
		return nil
	}
	inner := irc.Message{Prefix: msg.Prefix, Command: "MODE", Params: msg.Params[1:]}
	return cmdServerMode(h, lc, inner)
}

func cmdServerTopic(h *Hub, lc *LocalClient, msg irc.Message) error {
	if len(msg.Params) < 2 {
		return nil
	}
	ch, ok := h.Directory.findChannel(canonicalizeChannel(msg.Params[0]))
	if !ok {
		return nil
	}
	ch.Topic = msg.Params[1]
	ch.TopicSetBy = msg.Prefix
	ch.TopicSetAt = time.Now().Unix()
	if q, ok := h.AckQueues[lc]; ok {
		q.markContrary("TOPIC", "", ch.Key)
	}
	h.broadcastToServers(msg, lc.Client)
	return nil
}

// cmdServerITopic handles ITOPIC, the multi-connect-tagged TOPIC form.
func cmdServerITopic(h *Hub, lc *LocalClient, msg irc.Message) error {
	if len(msg.Params) < 3 {
		return nil
	}
	if !h.acceptMultiConnectID(lc, msg.Params[0]) {
		return nil
	}
	inner := irc.Message{Prefix: msg.Prefix, Command: "TOPIC", Params: msg.Params[1:]}
	return cmdServerTopic(h, lc, inner)
}

// cmdServerJoin handles a remote user joining a channel, announced over a
// peer link as a JOIN with a server prefix.
func cmdServerJoin(h *Hub, lc *LocalClient, msg irc.Message) error {
	if len(msg.Params) < 1 {
		return nil
	}
	c, ok := h.Directory.findClient(canonicalizeNick(msg.Prefix))
	if !ok || !c.isUser() {
		return nil
	}

	canon := canonicalizeChannel(msg.Params[0])
	ch, exists := h.Directory.findChannel(canon)
	if !exists {
		ch = NewChannel(msg.Params[0], canon)
		ch.Modes = ANoOutside.Set(ATopicLock)
		h.Directory.Channels[canon] = ch
	}

	ch.addMember(c, 0)
	h.broadcastToServers(msg, lc.Client)
	return nil
}

// cmdServerNJoin handles a channel-creation burst line carrying the full
// membership list at once (name, then comma-separated @/%/+-prefixed
// nicks), the bulk form peers use during burst rather than one JOIN per
// member.
func cmdServerNJoin(h *Hub, lc *LocalClient, msg irc.Message) error {
	if len(msg.Params) < 2 {
		return nil
	}
	canon := canonicalizeChannel(msg.Params[0])
	ch, exists := h.Directory.findChannel(canon)
	if !exists {
		ch = NewChannel(msg.Params[0], canon)
		ch.Modes = ANoOutside.Set(ATopicLock)
		h.Directory.Channels[canon] = ch
	}

	for _, entry := range strings.Split(msg.Params[1], ",") {
		var modes ModeFlag
		for len(entry) > 0 && strings.ContainsRune("@%+", rune(entry[0])) {
			for _, mm := range channelMemberModeChars {
				if mm.Prefix == entry[0] {
					modes = modes.Set(mm.Flag)
				}
			}
			entry = entry[1:]
		}
		c, ok := h.Directory.findClient(canonicalizeNick(entry))
		if !ok || !c.isUser() {
			continue
		}
		ch.addMember(c, modes)
	}

	h.broadcastToServers(msg, lc.Client)
	return nil
}

func cmdServerAck(h *Hub, lc *LocalClient, msg irc.Message) error {
	if len(msg.Params) < 2 {
		return nil
	}
	q, ok := h.AckQueues[lc]
	if !ok {
		return nil
	}
	chanKey := ""
	if len(msg.Params) > 2 {
		chanKey = canonicalizeChannel(msg.Params[2])
	}
	q.receiveAck(msg.Params[0], msg.Params[1], chanKey)
	return nil
}

// acceptMultiConnectID implements the receiver side of duplicate suppression: parse the
// leading id parameter and consult the originating peer's idWindow,
// discarding a duplicate delivery silently.
func (h *Hub) acceptMultiConnectID(lc *LocalClient, idParam string) bool {
	n, err := strconv.ParseUint(idParam, 10, 32)
	if err != nil {
		return true
	}
	origin := lc.Client
	if origin == nil {
		return true
	}
	return origin.idWindow.accept(uint32(n))
}
