package main

// Ack is a queued expectation, on a multi-connect peer link, that the peer
// will echo back our state change. The referenced
// objects are kept alive (via OnAck) while the ack is outstanding.
type Ack struct {
	// Command/Target identify what we expect to be acked back, e.g.
	// "PART"/the affected nick.
	Command string
	Target  string

	// Who is the affected client (may be a phantom).
	Who *Client

	// Where is the channel this ack concerns, or nil for the "channel 0"
	// (global/non-channel) sentinel the ack protocol describes.
	Where *Channel

	// Contrary marks an entry whose matching event already arrived from
	// the peer before our own ACK did: it is "treated as
	// already answered" but must still hold refs until the official ACK.
	Contrary bool
}

// AckQueue is the ordered queue of outstanding Acks on one multi-connect
// link.
type AckQueue struct {
	entries []*Ack
}

// register adds a new outstanding Ack to the tail of the queue and bumps
// the referenced objects' OnAck counts so they cannot be freed while it is
// outstanding.
func (q *AckQueue) register(command, target string, who *Client, where *Channel) *Ack {
	a := &Ack{Command: command, Target: target, Who: who, Where: where}
	if who != nil {
		who.OnAck++
	}
	if where != nil {
		where.OnAck++
	}
	q.entries = append(q.entries, a)
	return a
}

// release drops the refs an Ack was holding. Called whenever an entry is
// popped off the queue, whether by a genuine ACK or by being subsumed
// under a contrary-entry pop.
func (a *Ack) release() {
	if a.Who != nil {
		a.Who.OnAck--
	}
	if a.Where != nil {
		a.Where.OnAck--
	}
}

// receiveAck processes an incoming `ACK command target [channel]` line
// the ack protocol:
//
//  1. If the queue head matches, pop it.
//  2. Otherwise scan for a matching contrary entry; pop everything up to
//     and including it.
//
// It reports whether a match was found and processed.
func (q *AckQueue) receiveAck(command, target, chanKey string) bool {
	if len(q.entries) == 0 {
		return false
	}

	matches := func(a *Ack) bool {
		if a.Command != command || a.Target != target {
			return false
		}
		if chanKey == "" {
			return a.Where == nil
		}
		return a.Where != nil && a.Where.Key == chanKey
	}

	head := q.entries[0]
	if matches(head) {
		head.release()
		q.entries = q.entries[1:]
		return true
	}

	for i, a := range q.entries {
		if a.Contrary && matches(a) {
			for j := 0; j <= i; j++ {
				q.entries[j].release()
			}
			q.entries = q.entries[i+1:]
			return true
		}
	}

	return false
}

// markContrary handles the race case: when a command arrives that
// cancels our own outstanding ack (the peer's own mirrored event beat our
// ACK back to us), the matching queue entry is marked contrary rather than
// dropped, so it still holds refs until the official ACK arrives.
func (q *AckQueue) markContrary(command, target, chanKey string) bool {
	for _, a := range q.entries {
		if a.Command != command || a.Target != target || a.Contrary {
			continue
		}
		if chanKey == "" && a.Where != nil {
			continue
		}
		if chanKey != "" && (a.Where == nil || a.Where.Key != chanKey) {
			continue
		}
		a.Contrary = true
		return true
	}
	return false
}
