package main

import (
	"fmt"
	"time"
)

// ClientKind discriminates the Variant carried by a Client. It exists
// alongside the Variant interface (rather than relying purely on type
// switches) because several call sites need a cheap kind test without
// caring about the variant's payload ("Union field ... represent as a
// sum type").
type ClientKind int

// Client kinds: "CLIENT represents one of: self, a local user, a
// local peer server, a remote user, a remote server, a service, or a
// phantom."
const (
	KindSelf ClientKind = iota
	KindLocalUser
	KindLocalServer
	KindRemoteUser
	KindRemoteServer
	KindService
	KindPhantom
)

func (k ClientKind) String() string {
	switch k {
	case KindSelf:
		return "self"
	case KindLocalUser:
		return "local-user"
	case KindLocalServer:
		return "local-server"
	case KindRemoteUser:
		return "remote-user"
	case KindRemoteServer:
		return "remote-server"
	case KindService:
		return "service"
	case KindPhantom:
		return "phantom"
	default:
		return "unknown"
	}
}

// Variant is the tagged-union payload of a Client: exactly one concrete
// type is populated per Client, selected by Kind. This is the Go
// equivalent of the source's mutually-exclusive union slot (class pointer
// XOR token+usercount XOR rename-to pointer), implemented as a sum type
// rather than a literal union.
type Variant interface {
	isVariant()
}

// UserVariant is the payload for KindLocalUser/KindRemoteUser/KindService:
// channel memberships plus (for local users only) the owning LocalClient
// and Class.
type UserVariant struct {
	Ident    string
	Channels map[string]*Member // canonical channel name -> membership

	// Local is nil for remote users/services.
	Local *LocalClient
	Class *Class
}

func (*UserVariant) isVariant() {}

// ServerVariant is the payload for KindLocalServer/KindRemoteServer: the
// per-peer token, user count, and (for local servers only) the owning
// LocalClient and adjacency Link list.
type ServerVariant struct {
	Token     int
	UserCount int
	Links     []*Link

	// Local is nil for remote servers.
	Local *LocalClient
}

func (*ServerVariant) isVariant() {}

// PhantomVariant is the payload for KindPhantom: the rename-to pointer and
// the collision-chain linkage.
type PhantomVariant struct {
	// RenameTo ("rto") is set when this phantom was produced by a nick
	// change: it points at the live Client the old nick renamed to.
	RenameTo *Client

	// PrevCollision ("pcl") chains to the phantom that held this key
	// before the current holder claimed it, forming the holder's rfr
	// chain (nil at the chain's tail).
	PrevCollision *Client

	// OwingPeer repurposes the "away" text slot to record which peer
	// still owes us an ACK for this phantom's departure.
	OwingPeer string
}

func (*PhantomVariant) isVariant() {}

// Client is the single tagged-union type representing every directory
// entry: self, local/remote user, local/remote server, service, or
// phantom.
type Client struct {
	Kind ClientKind

	// Identity.
	Nick     string // display form
	NickKey  string // lowercased lookup key
	Host     string // for a live client: hostname; for a phantom: the
	// originating server's name.
	VHost    string
	RealName string
	Away     string

	Modes ModeFlag

	// Topology.
	CS   *Client // owning server ("cs"); nil for self
	Via  *Link   // shortest path to reach this client
	Alt  *Link   // second-shortest, only set when multi-connect-capable
	Hops int

	// Variant holds exactly one of *UserVariant, *ServerVariant,
	// *PhantomVariant, selected by Kind.
	Variant Variant

	// Rfr ("renamed-from" / collision-list head): on a live client, either
	// the phantom this client renamed from or the head of its nick key's
	// phantom chain; phantoms link to one another through
	// PhantomVariant.PrevCollision, not Rfr -- see the phantom lifecycle.
	Rfr *Client

	// HoldUpto is nonzero exactly when Kind == KindPhantom: the nick-key
	// hold expiry time.
	HoldUpto time.Time

	// Multi-connect duplicate suppression state, carried per
	// Client because an id's origin is the server that introduced it and
	// a remote server IS a Client.
	idWindow idWindow

	// OnAck is the ACK-protocol reference count: nonzero keeps a
	// phantom (or any Client) alive regardless of HoldUpto.
	OnAck int

	NickTS int64
}

func (c *Client) String() string {
	if c.isServer() && c.Kind != KindSelf {
		return fmt.Sprintf("%s[%d]", c.Nick, c.serverVariant().Token)
	}
	if c.isUser() {
		return fmt.Sprintf("%s!~%s@%s", c.Nick, c.userVariant().Ident, c.Host)
	}
	return c.Nick
}

// isUser reports whether this Client represents a user identity (local,
// remote, or service) as opposed to a server or phantom.
func (c *Client) isUser() bool {
	switch c.Kind {
	case KindLocalUser, KindRemoteUser, KindService:
		return true
	default:
		return false
	}
}

func (c *Client) isServer() bool {
	return c.Kind == KindLocalServer || c.Kind == KindRemoteServer || c.Kind == KindSelf
}

func (c *Client) isLocal() bool {
	switch c.Kind {
	case KindSelf, KindLocalUser, KindLocalServer:
		return true
	default:
		return false
	}
}

func (c *Client) isPhantom() bool {
	return c.Kind == KindPhantom
}

// userVariant asserts the user payload. Callers must only invoke this on a
// Client where isUser() is true; a mismatch is a programming error the same
// way a wrong union tag would be, so this panics rather than forcing every
// caller to handle an error that should never occur.
func (c *Client) userVariant() *UserVariant {
	return c.Variant.(*UserVariant)
}

func (c *Client) serverVariant() *ServerVariant {
	return c.Variant.(*ServerVariant)
}

func (c *Client) phantomVariant() *PhantomVariant {
	return c.Variant.(*PhantomVariant)
}

// localClient returns the underlying connection/FSM state for a local user
// or local server Client, or nil if this Client is remote/phantom.
func (c *Client) localClient() *LocalClient {
	switch c.Kind {
	case KindLocalUser:
		return c.userVariant().Local
	case KindLocalServer:
		return c.serverVariant().Local
	default:
		return nil
	}
}

// onChannel reports whether this (user) Client is a member of ch.
func (c *Client) onChannel(ch *Channel) bool {
	if !c.isUser() {
		return false
	}
	_, ok := c.userVariant().Channels[ch.Key]
	return ok
}

// nickUhost renders "nick!user@host" for use as a message prefix or mask
// comparand.
func (c *Client) nickUhost() string {
	ident := "*"
	if c.isUser() {
		ident = c.userVariant().Ident
	}
	return fmt.Sprintf("%s!%s@%s", c.Nick, ident, c.Host)
}

// matchesMask reports whether the client's ident/host match a K-line style
// user@host mask pair, as local_client.go's registerUser already does for
// kill lines, generalized to any mask source.
func (c *Client) matchesMask(userMask, hostMask string) bool {
	ident := "*"
	if c.isUser() {
		ident = c.userVariant().Ident
	}
	return globMatch(userMask, ident) && globMatch(hostMask, c.Host)
}

// isOperator reports whether a user Client holds +o.
func (c *Client) isOperator() bool {
	return c.isUser() && c.Modes.Has(AOp)
}

// modesString renders a user's simple modes as "+iwx" form.
func (c *Client) modesString() string {
	return sortedModeLetters(c.Modes, userModeChars)
}
