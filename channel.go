package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/pkg/errors"
)

// Member is the join record linking a Client to a Channel. The
// reverse pointers the source keeps (prevnick/prevchan) for O(1) removal
// are, in Go, simply the two map entries (Channel.Members[key] and
// Client's UserVariant.Channels[key]) that both reference this same
// *Member -- removing a Member means deleting both map entries, which is
// O(1) without needing an explicit linked-list splice.
type Member struct {
	Client  *Client
	Channel *Channel

	// Modes holds this member's channel-level flags (AOp/AHalfop/AVoice).
	Modes ModeFlag
}

// Channel holds everything to do with one channel.
type Channel struct {
	Name string // display form, including type character
	Key  string // canonical (lowercased) name, the directory key

	Members map[string]*Member // nick key -> membership

	Invited map[string]struct{} // nick keys currently invited

	Bans    maskList
	Exempts maskList
	Invites maskList

	Modes ModeFlag
	Limit int
	Key_  string // channel key (+k); named Key_ to avoid clashing with the name key

	Topic      string
	TopicSetBy string
	TopicSetAt int64

	TS int64

	// Founder is set for safe ("!") channels: the Client that created it,
	// which the source treats specially in collision resolution.
	Founder *Client

	// HoldUpto is nonzero while the channel is held after going empty
	//; while HoldUpto is in the future and the channel has no members,
	// a JOIN of that name is refused rather than recreating the channel.
	HoldUpto time.Time

	// NoopSince records when the last operator left the channel, for the
	// re-op timer; an operator joining resets it to zero.
	NoopSince time.Time
}

// NewChannel creates an empty channel record for the given already-
// sanitized, canonicalized name pair.
func NewChannel(display, key string) *Channel {
	return &Channel{
		Name:    display,
		Key:     key,
		Members: make(map[string]*Member),
		Invited: make(map[string]struct{}),
		TS:      time.Now().Unix(),
	}
}

// count is the number of current members (invariant: ch.count ==
// |ch.users|, enforced structurally here since count is just len(Members)).
func (ch *Channel) count() int {
	return len(ch.Members)
}

// isHeld reports whether the channel is empty but still within its
// hold-upto window: held while hold_upto is in the future, removed on the next tick after it passes.
func (ch *Channel) isHeld(now time.Time) bool {
	return ch.count() == 0 && ch.HoldUpto.After(now)
}

// isSafe reports whether this is a "!"-prefixed safe channel.
func (ch *Channel) isSafe() bool {
	return len(ch.Name) > 0 && ch.Name[0] == '!'
}

// operatorPresent reports whether any current member holds +o.
func (ch *Channel) operatorPresent() bool {
	for _, m := range ch.Members {
		if m.Modes.Has(AOp) {
			return true
		}
	}
	return false
}

// holdPeriod is the default nick/channel hold duration.
const holdPeriod = 900 * time.Second

// errChannelFull, errBadChannelKey, errInviteOnly, errBanned are the
// JOIN-time rejections, mapped to numerics by the
// caller.
var (
	errChannelFull   = errors.New("channel is full")
	errBadChannelKey = errors.New("bad channel key")
	errInviteOnly    = errors.New("invite only channel")
	errBanned        = errors.New("banned from channel")
	errChannelHeld   = errors.New("channel name temporarily unavailable")
)

// joinChecks runs the join-time mode evaluation (limit, key, invite,
// ban/exempt) for a prospective joiner who is not already a member. It does
// not mutate the channel; the caller adds the Member only after this
// succeeds.
func (ch *Channel) joinChecks(nick, user, host, key string) error {
	if ch.Modes.Has(ALimit) && ch.Limit > 0 && ch.count() >= ch.Limit {
		return errChannelFull
	}

	if ch.Modes.Has(AKeySet) && ch.Key_ != "" && ch.Key_ != key {
		return errBadChannelKey
	}

	banned := ch.Bans.matchAny(nick, user, host)
	exempt := ch.Exempts.matchAny(nick, user, host)

	if ch.Modes.Has(AInviteOnly) {
		_, invited := ch.Invited[canonicalizeNick(nick)]
		if !invited && !exempt {
			return errInviteOnly
		}
	}

	if banned && !exempt {
		return errBanned
	}

	return nil
}

// addMember creates and links a Member for client joining this channel,
// with the given starting channel-level modes (the join binding decides
// these -- e.g. the first joiner of a freshly-created channel gets +o).
func (ch *Channel) addMember(c *Client, modes ModeFlag) *Member {
	m := &Member{Client: c, Channel: ch, Modes: modes}
	ch.Members[c.NickKey] = m
	c.userVariant().Channels[ch.Key] = m
	if modes.Has(AOp) {
		ch.NoopSince = time.Time{}
	}
	return m
}

// removeMember unlinks client's membership, returning the removed Member
// (nil if they were not a member). It updates NoopSince if this removal
// drops the last operator.
func (ch *Channel) removeMember(c *Client) *Member {
	m, ok := ch.Members[c.NickKey]
	if !ok {
		return nil
	}
	delete(ch.Members, c.NickKey)
	if c.isUser() {
		delete(c.userVariant().Channels, ch.Key)
	}
	if m.Modes.Has(AOp) && !ch.operatorPresent() {
		ch.NoopSince = time.Now()
	}
	return m
}

// namesFlag renders the NAMES-list display prefix for a member (the
// 6), e.g. "@alice".
func (m *Member) namesFlag() string {
	return whoCharForMember(m.Modes) + m.Client.Nick
}

// channelJoinBinding is the per-type-character join behavior:
// it decides whether the channel may be created, the joiner's starting
// mode, and (for safe channels) the effective name.
type channelJoinBinding func(h *Hub, requestedName string, creating bool) (effectiveName string, startingModes ModeFlag, err error)

// channelJoinBindings is the Binding Registry's table for channel types,
// keyed by the leading character.
var channelJoinBindings = map[byte]channelJoinBinding{
	'#': standardJoinBinding,
	'&': standardJoinBinding,
	'+': standardJoinBinding,
	'!': safeJoinBinding,
}

func standardJoinBinding(h *Hub, name string, creating bool) (string, ModeFlag, error) {
	var modes ModeFlag
	if creating {
		modes = AOp
	}
	return name, modes, nil
}

// safeIDLength is the random identifier length prepended to "!" channels.
const safeIDLength = 5

const safeIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// safeJoinBinding implements the "!" channel join behavior: a
// random 5-char id is prepended to the user-supplied name, with a
// collision check against existing short ids.
func safeJoinBinding(h *Hub, name string, creating bool) (string, ModeFlag, error) {
	if !creating {
		return name, 0, nil
	}

	suffix := name
	if len(suffix) > 0 && suffix[0] == '!' {
		suffix = suffix[1:]
	}

	for attempt := 0; attempt < 64; attempt++ {
		id := randomSafeID()
		candidate := "!" + id + suffix
		if _, exists := h.Directory.findChannel(canonicalizeChannel(candidate)); !exists {
			return candidate, AOp, nil
		}
	}
	return "", 0, errors.New("could not allocate a unique safe channel id")
}

func randomSafeID() string {
	b := make([]byte, safeIDLength)
	for i := range b {
		b[i] = safeIDAlphabet[rand.Intn(len(safeIDAlphabet))]
	}
	return string(b)
}

// anonymousIdentity is substituted for the real sender identity when
// broadcasting PART/QUIT/PRIVMSG on an anonymous (+a) channel (from the
// "must happen at the moment of broadcast, never by mutating stored
// sender identity").
const anonymousIdentity = "anonymous!anonymous@anonymous."

// broadcastIdentity returns the nick!user@host to use as the message
// prefix for c's action within ch, applying the anonymous-channel
// rewrite rule without touching c's stored identity.
func broadcastIdentity(c *Client, ch *Channel) string {
	if ch != nil && ch.Modes.Has(AAnonymous) {
		return anonymousIdentity
	}
	return c.nickUhost()
}

func (ch *Channel) String() string {
	return fmt.Sprintf("%s (%d members)", ch.Name, ch.count())
}
