package main

// Link is an entry in a server's adjacency list. LINK flags carry
// per-neighbor state such as the multi-connect backlink marker; the
// adjacency itself is directed (From -> To) but path recomputation
// treats the graph as undirected for BFS purposes.
type Link struct {
	From *Client // the server this link originates from (always a server Client)
	To   *Client // the neighbor server this link reaches

	// MultiConnect marks this link as capable of carrying the multi-
	// connect extension (A_MULTI), i.e. both peers advertised `I`.
	MultiConnect bool

	// Flags carries any other per-neighbor LINK state (backlink marker,
	// etc.) using the same shared ModeFlag bitset as everything else.
	Flags ModeFlag
}
