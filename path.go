package main

// recomputePaths runs after any SQUIT or new ISERVER, doing a
// two-phase shortest-path BFS assigning `via` (shortest) and `alt`
// (second-shortest, multi-connect-capable only) to every remote server.
func (h *Hub) recomputePaths() {
	// Phase 1: reset via/alt/hops on every remote server; locals untouched.
	for _, c := range h.Directory.Clients {
		if c.Kind != KindRemoteServer {
			continue
		}
		c.Via = nil
		c.Alt = nil
		c.Hops = 0
	}

	type frontierEntry struct {
		link *Link
		hops int
	}

	visited := map[*Client]bool{}
	var frontier []frontierEntry

	if h.Self != nil {
		visited[h.Self] = true
		for _, link := range h.Self.serverVariant().Links {
			frontier = append(frontier, frontierEntry{link: link, hops: 1})
		}
	}

	// Phase 2: BFS outward from the local server, assigning via on first
	// visit and alt on second disjoint visit (only when both candidate
	// links are multi-connect-capable).
	for len(frontier) > 0 {
		var next []frontierEntry

		for _, fe := range frontier {
			target := fe.link.To
			if target == nil || target.Kind == KindSelf {
				continue
			}

			if !visited[target] {
				visited[target] = true
				target.Via = fe.link
				target.Hops = fe.hops

				for _, l := range target.serverVariant().Links {
					next = append(next, frontierEntry{link: l, hops: fe.hops + 1})
				}
				continue
			}

			if target.Alt == nil && target.Via != nil && target.Via.From != fe.link.From &&
				target.Via.MultiConnect && fe.link.MultiConnect {
				target.Alt = fe.link
			}
		}

		frontier = next
	}

	// Phase 3 (backward pass): fill alt for servers that first appeared on
	// a path where only via was reachable but have an alternate link
	// deeper in the tree -- walk every server's links once more now that
	// via is settled everywhere, promoting any still-alt-less multi-
	// connect-capable link found.
	for _, c := range h.Directory.Clients {
		if c.Kind != KindRemoteServer || c.Alt != nil || c.Via == nil {
			continue
		}
		for _, local := range h.localServerClients() {
			for _, link := range local.serverVariant().Links {
				if link == c.Via || !link.MultiConnect || !c.Via.MultiConnect {
					continue
				}
				if link.To == c || h.linkReaches(link, c) {
					c.Alt = link
					break
				}
			}
			if c.Alt != nil {
				break
			}
		}
	}
}

// linkReaches reports whether following link's subtree eventually reaches
// target, by a bounded BFS over server adjacency (used only by the
// backward alt-fill pass, which runs rarely compared to the forward pass).
func (h *Hub) linkReaches(link *Link, target *Client) bool {
	seen := map[*Client]bool{link.To: true}
	queue := []*Client{link.To}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == target {
			return true
		}
		if cur == nil || !cur.isServer() {
			continue
		}
		for _, l := range cur.serverVariant().Links {
			if !seen[l.To] {
				seen[l.To] = true
				queue = append(queue, l.To)
			}
		}
	}
	return false
}

// localServerClients returns every Client of Kind KindSelf/KindLocalServer
// that can originate BFS links, i.e. the hub's own identity plus each
// directly-connected peer.
func (h *Hub) localServerClients() []*Client {
	var out []*Client
	if h.Self != nil {
		out = append(out, h.Self)
	}
	for _, c := range h.Directory.Clients {
		if c.Kind == KindLocalServer {
			out = append(out, c)
		}
	}
	return out
}
