package main

import "fmt"

// TS6SID is a server's 3-character TS6 server id: [0-9][0-9A-Z]{2}.
type TS6SID string

// TS6UID is a user's TS6 unique id: the owning server's TS6SID followed by
// 6 base-36 characters, unique for the lifetime of the id on that server.
type TS6UID string

const ts6idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const ts6idLength = 6

// makeTS6ID renders a monotonic counter as a fixed-width base-36 TS6 id
// suffix; the caller prepends the SID. completeUserRegistration uses it,
// with the link's id as the counter, for the UID it announces. The
// multi-connect ids of idgen.go are a separate 31-bit space sent as
// decimal and do not use it.
func makeTS6ID(counter uint64) (string, error) {
	base := uint64(len(ts6idAlphabet))
	max := uint64(1)
	for i := 0; i < ts6idLength; i++ {
		max *= base
	}
	if counter >= max {
		return "", fmt.Errorf("ts6 id space exhausted")
	}

	buf := make([]byte, ts6idLength)
	n := counter
	for i := ts6idLength - 1; i >= 0; i-- {
		buf[i] = ts6idAlphabet[n%base]
		n /= base
	}
	return string(buf), nil
}
