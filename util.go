package main

import "strings"

// maxChannelLength is the RFC 2811 channel name length ceiling.
const maxChannelLength = 50

// maxTopicLength is arbitrary, kept low enough that a TOPIC line never
// approaches irc.MaxLineLength once prefixed and trailing-CRLF'd.
const maxTopicLength = 300

// channelTypeChars are the first-character discriminators the channel
// engine's join binding dispatches on.
const channelTypeChars = "#&+!"

// nickSpecialChars is the RFC 2812 special character class permitted in a
// nickname beyond alnum, when the server is not restricted to an 8-bit
// round-trip charset.
const nickSpecialChars = "[]\\`_^{|}~-"

// canonicalizeNick converts the given nick to its canonical (lowercased)
// representation, which is the directory lookup key.
//
// Note: we don't check validity or strip whitespace here.
func canonicalizeNick(n string) string {
	return strings.ToLower(n)
}

// canonicalizeChannel converts the given channel to its canonical
// (lowercased) representation, which is the directory lookup key. The
// leading type character participates in folding like the rest of the name.
func canonicalizeChannel(c string) string {
	return strings.ToLower(c)
}

// canonicalizeServer converts a server name to its canonical (lowercased)
// representation. Server names share the client directory's key space
//.
func canonicalizeServer(s string) string {
	return strings.ToLower(s)
}

// isValidNick checks if a nickname is valid: alnum plus
// nickSpecialChars, no leading digit, within maxLen.
func isValidNick(maxLen int, n string) bool {
	if len(n) == 0 || len(n) > maxLen {
		return false
	}

	for i, char := range n {
		if char >= 'a' && char <= 'z' {
			continue
		}
		if char >= 'A' && char <= 'Z' {
			continue
		}

		if char >= '0' && char <= '9' {
			// No digits in first position.
			if i == 0 {
				return false
			}
			continue
		}

		if strings.ContainsRune(nickSpecialChars, char) {
			continue
		}

		return false
	}

	return true
}

// isValidUser checks if a user (USER command ident) is valid.
func isValidUser(maxLen int, u string) bool {
	if len(u) == 0 || len(u) > maxLen {
		return false
	}

	for _, char := range u {
		if char >= 'a' && char <= 'z' {
			continue
		}
		if char >= 'A' && char <= 'Z' {
			continue
		}
		if char >= '0' && char <= '9' {
			continue
		}
		if char == '.' || char == '-' {
			continue
		}

		return false
	}

	return true
}

// sanitizeChannelName strips/replaces the characters a channel name forbids
// (BEL, CR, LF, comma, space, other non-graphic bytes) and truncates to
// maxChannelLength. It does not canonicalize or validate the type char.
func sanitizeChannelName(c string, fallback byte) string {
	out := make([]byte, 0, len(c))
	for i := 0; i < len(c); i++ {
		b := c[i]
		switch {
		case b == '\a' || b == '\r' || b == '\n' || b == ',' || b == ' ':
			out = append(out, fallback)
		case b < 0x20 || b == 0x7f:
			out = append(out, fallback)
		default:
			out = append(out, b)
		}
	}
	if len(out) > maxChannelLength {
		out = out[:maxChannelLength]
	}
	return string(out)
}

// isValidChannel checks a channel name for validity: known type char
// followed by at least one more (sanitized) byte, within length.
//
// Call sanitizeChannelName first; this only checks shape.
func isValidChannel(c string) bool {
	if len(c) < 2 || len(c) > maxChannelLength {
		return false
	}

	if !strings.ContainsRune(channelTypeChars, rune(c[0])) {
		return false
	}

	return true
}
