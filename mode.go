package main

import (
	"sort"
	"strings"
)

// ModeFlag is the single bitset shared across user, channel, channel-member,
// and link contexts. Which bits are meaningful in which context is a
// matter of convention, not of distinct Go types, mirroring the source's
// single modeflag word reused everywhere.
type ModeFlag uint64

// Flag bit assignments, in a fixed order. Values are
// assigned by position, not by symbolic meaning, because nothing in the
// spec or the source depends on particular numeric values -- only on the
// bits being distinct and stable within one running process.
const (
	AIson ModeFlag = 1 << iota
	AServer
	AOp
	AHalfop
	AAdmin
	AVoice
	AInvisible
	AWallop
	ARestricted
	AAway
	AMasked
	ASSL
	AMulti
	ASecret
	APrivate
	AModerated
	ANoOutside
	ATopicLock
	AInviteOnly
	ALimit
	AKeySet
	AAnonymous
	AQuiet
	ADenied
	AExempt
	AInvited
	ANoColor
	AAsciiNick
	AReop
	AService
	APinged
	AIsUplink
)

// userModeChars maps the letters accepted by user MODE to their flag. It
// does not mark restricted modes: handleUserMode refuses to set +o itself,
// which is granted only through OPER, never directly via user MODE,
// matching RFC 2812.
var userModeChars = map[byte]ModeFlag{
	'i': AInvisible,
	'w': AWallop,
	'r': ARestricted,
	'a': AAway,
	'x': AMasked,
	'z': ASSL,
	'O': AIsUplink, // local oper flag; never propagated to peers.
	'o': AOp,
}

// userModeNotPropagated is the set of user modes that must never be
// forwarded to peer servers.
var userModeNotPropagated = ModeFlag(AIsUplink)

// channelModeChars maps the letters accepted by channel MODE to their flag.
// Modes that take no list and no parameter when unset are listed alongside
// the ones (+l, +k) that always require a parameter on set.
var channelModeChars = map[byte]ModeFlag{
	's': ASecret,
	'p': APrivate,
	'm': AModerated,
	'n': ANoOutside,
	't': ATopicLock,
	'i': AInviteOnly,
	'l': ALimit,
	'k': AKeySet,
	'a': AAnonymous,
	'q': AQuiet,
	'r': AReop,
}

// channelMaskModeChars are the list-valued channel modes: adding a
// broader mask cancels narrower overlapping ones.
const (
	maskModeBan    byte = 'b'
	maskModeExempt byte = 'e'
	maskModeInvite byte = 'I'
)

// channelMemberModeChars maps membership-level mode letters to both the
// flag and the display prefix character (the whochar table).
var channelMemberModeChars = map[byte]struct {
	Flag   ModeFlag
	Prefix byte
}{
	'o': {AOp, '@'},
	'h': {AHalfop, '%'},
	'v': {AVoice, '+'},
}

// Has reports whether every bit in want is set.
func (m ModeFlag) Has(want ModeFlag) bool { return m&want == want }

// Set returns m with want's bits set.
func (m ModeFlag) Set(want ModeFlag) ModeFlag { return m | want }

// Clear returns m with want's bits cleared.
func (m ModeFlag) Clear(want ModeFlag) ModeFlag { return m &^ want }

// modeDirection is the sign of one parsed mode-change token.
type modeDirection int

const (
	modeAdd modeDirection = iota
	modeRemove
)

// modeChange is one accepted letter+direction(+optional parameter) out of
// a parsed MODE command, prior to being grouped into the broadcast batch.
type modeChange struct {
	Dir   modeDirection
	Char  byte
	Param string
}

// modeBatch accumulates accepted changes for one MODE command, grouped by
// sign for broadcast, as a rolling output buffer.
type modeBatch struct {
	changes []modeChange
}

func (b *modeBatch) add(dir modeDirection, char byte, param string) {
	b.changes = append(b.changes, modeChange{Dir: dir, Char: char, Param: param})
}

// String renders the batch as "+xy param1 -ab param2" form, the shape
// broadcast on MODE/channel creation and the one tests assert against.
func (b *modeBatch) String() string {
	if len(b.changes) == 0 {
		return ""
	}

	var letters strings.Builder
	var params []string
	lastDir := b.changes[0].Dir
	var sb strings.Builder
	writeSign := func(d modeDirection) {
		if d == modeAdd {
			sb.WriteByte('+')
		} else {
			sb.WriteByte('-')
		}
	}
	writeSign(lastDir)
	for _, c := range b.changes {
		if c.Dir != lastDir {
			writeSign(c.Dir)
			lastDir = c.Dir
		}
		sb.WriteByte(c.Char)
		if c.Param != "" {
			params = append(params, c.Param)
		}
	}
	letters.WriteString(sb.String())

	out := letters.String()
	for _, p := range params {
		out += " " + p
	}
	return out
}

// parseModeTokens tokenises "[+|-]chars" groups from a MODE command's
// leading argument, returning (direction, char) pairs in order. It does not
// consume parameters -- the caller pulls one from the parameter list
// whenever a handler claims one.
func parseModeTokens(arg string) []struct {
	Dir  modeDirection
	Char byte
} {
	var out []struct {
		Dir  modeDirection
		Char byte
	}
	dir := modeAdd
	for i := 0; i < len(arg); i++ {
		switch arg[i] {
		case '+':
			dir = modeAdd
		case '-':
			dir = modeRemove
		default:
			out = append(out, struct {
				Dir  modeDirection
				Char byte
			}{dir, arg[i]})
		}
	}
	return out
}

// modeCharForFlag returns the canonical letter for a membership flag, used
// to render NAMES prefixes and MODE broadcasts; 0 if the flag has no
// single-letter membership mode (e.g. it is a channel-level flag).
func modeCharForFlag(f ModeFlag) byte {
	// Deterministic order: op before halfop before voice, matching
	// conventional display priority (@%+).
	type pair struct {
		c byte
		f ModeFlag
	}
	ordered := []pair{{'o', AOp}, {'h', AHalfop}, {'v', AVoice}}
	for _, p := range ordered {
		if f.Has(p.f) {
			return p.c
		}
	}
	return 0
}

// whoCharForMember returns the display prefix (@, %, +) for a member's
// highest membership mode, or "" if they hold none.
func whoCharForMember(f ModeFlag) string {
	for _, c := range []byte{'o', 'h', 'v'} {
		if m, ok := channelMemberModeChars[c]; ok && f.Has(m.Flag) {
			return string(m.Prefix)
		}
	}
	return ""
}

// sortedModeLetters renders a channel's simple (non-list, non-parameter)
// mode flags as a deterministic "+xyz" string for RPL_CHANNELMODEIS etc.
func sortedModeLetters(flags ModeFlag, table map[byte]ModeFlag) string {
	var letters []byte
	for c, f := range table {
		if flags.Has(f) {
			letters = append(letters, c)
		}
	}
	sort.Slice(letters, func(i, j int) bool { return letters[i] < letters[j] })
	return "+" + string(letters)
}
