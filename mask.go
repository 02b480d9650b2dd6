package main

import "strings"

// Mask is one normalized "nick!user@host" entry in a channel's ban, exempt,
// or invite list.
type Mask struct {
	Nick string
	User string
	Host string

	SetBy   string
	SetAt   int64
}

// maskList holds the normalized entries for one of a channel's three list
// modes (+b, +e, +I).
type maskList struct {
	entries []Mask
}

// normalizeMask fills in "*" wildcards for any of nick!user@host missing
// from the user-supplied mask text, the way the source's mask parser does
// so every stored entry has all three components.
func normalizeMask(raw string) Mask {
	nick, rest := "*", raw
	if i := strings.Index(rest, "!"); i != -1 {
		nick, rest = rest[:i], rest[i+1:]
	}

	user, host := "*", "*"
	if i := strings.Index(rest, "@"); i != -1 {
		user, host = rest[:i], rest[i+1:]
	} else if rest != "" {
		host = rest
	}

	if nick == "" {
		nick = "*"
	}
	if user == "" {
		user = "*"
	}
	if host == "" {
		host = "*"
	}

	return Mask{Nick: nick, User: user, Host: host}
}

func (m Mask) String() string {
	return m.Nick + "!" + m.User + "@" + m.Host
}

// matches reports whether m matches the given nick!user@host, using simple
// '*'/'?' glob semantics per component.
func (m Mask) matches(nick, user, host string) bool {
	return globMatch(m.Nick, nick) && globMatch(m.User, user) && globMatch(m.Host, host)
}

// covers reports whether m is at least as broad as other: every string
// other matches, m also matches. Used for mask cancellation: a
// broader mask being added removes narrower ones it covers.
func (m Mask) covers(other Mask) bool {
	return globCovers(m.Nick, other.Nick) &&
		globCovers(m.User, other.User) &&
		globCovers(m.Host, other.Host)
}

// globMatch implements '*' (any run) and '?' (one char) glob matching,
// case-insensitively, as IRC hostmasks conventionally are.
func globMatch(pattern, s string) bool {
	pattern = strings.ToLower(pattern)
	s = strings.ToLower(s)
	return globMatchRunes([]rune(pattern), []rune(s))
}

func globMatchRunes(p, s []rune) bool {
	if len(p) == 0 {
		return len(s) == 0
	}
	switch p[0] {
	case '*':
		for i := 0; i <= len(s); i++ {
			if globMatchRunes(p[1:], s[i:]) {
				return true
			}
		}
		return false
	case '?':
		if len(s) == 0 {
			return false
		}
		return globMatchRunes(p[1:], s[1:])
	default:
		if len(s) == 0 || p[0] != s[0] {
			return false
		}
		return globMatchRunes(p[1:], s[1:])
	}
}

// globCovers reports whether every string matched by narrow is also matched
// by broad -- a conservative, pattern-structural approximation (broad is
// judged to cover narrow when broad is '*' or textually equal to narrow,
// when broad ends in '*' and the rest is a prefix of narrow, or when broad
// starts with '*' and the rest, holding no other wildcard, is a suffix of
// narrow). This mirrors the
// practical cancellation rule ("*!*@*.example.com" cancels
// "*!*@bad.example.com") without needing general glob-containment, which is
// undecidable in the fully general case.
func globCovers(broad, narrow string) bool {
	if broad == narrow {
		return true
	}
	if broad == "*" {
		return true
	}
	if strings.HasSuffix(broad, "*") {
		prefix := strings.TrimSuffix(broad, "*")
		return strings.HasPrefix(strings.ToLower(narrow), strings.ToLower(prefix))
	}
	if strings.HasPrefix(broad, "*") {
		suffix := strings.TrimPrefix(broad, "*")
		if !strings.ContainsAny(suffix, "*?") {
			return strings.HasSuffix(strings.ToLower(narrow), strings.ToLower(suffix))
		}
	}
	return false
}

// add inserts mask into the list, removing (and returning, for the
// cancellation broadcast) any existing entries it covers. If mask is itself
// covered by an existing entry, it is not added and ok is false.
func (l *maskList) add(mask Mask) (cancelled []Mask, ok bool) {
	for _, e := range l.entries {
		if e.covers(mask) {
			return nil, false
		}
	}

	var kept []Mask
	for _, e := range l.entries {
		if mask.covers(e) {
			cancelled = append(cancelled, e)
			continue
		}
		kept = append(kept, e)
	}
	l.entries = append(kept, mask)
	return cancelled, true
}

// remove deletes an exact-match entry, returning whether one was found.
func (l *maskList) remove(mask Mask) bool {
	for i, e := range l.entries {
		if e.Nick == mask.Nick && e.User == mask.User && e.Host == mask.Host {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return true
		}
	}
	return false
}

// matchAny reports whether any entry in the list matches the given identity.
func (l *maskList) matchAny(nick, user, host string) bool {
	for _, e := range l.entries {
		if e.matches(nick, user, host) {
			return true
		}
	}
	return false
}
