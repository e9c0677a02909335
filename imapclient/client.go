// Package imapclient implements the IMAP4rev1 connection engine: wire codec,
// command pipeline, connection-state machine and the mailbox cache, plus the
// operations layer built on top of them.
package imapclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/hkdb/imapkit/imap"
	"github.com/rs/zerolog"

	"github.com/hkdb/imapkit/internal/logging"
)

// Dialer abstracts the network dial step so callers can substitute a SOCKS/
// HTTP proxy dialer (see imapclient/imapproxy) without the client needing to
// know about proxies.
type Dialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

type netDialer struct{ d net.Dialer }

func (n *netDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	return n.d.DialContext(ctx, network, addr)
}

// Options configures a Client. Addr is mandatory; everything else has a
// documented default.
type Options struct {
	Addr      string
	TLSConfig *tls.Config // nil disables implicit TLS; use StartTLS after Dial instead

	Dialer Dialer

	ConnectTimeout  time.Duration
	GreetingTimeout time.Duration
	SocketTimeout   time.Duration

	// Logger overrides the package default base logger; nil uses the
	// default (see internal/logging).
	Logger *zerolog.Logger

	// ClientID is sent via the ID command (RFC 2971) immediately after
	// capability discovery, when the server advertises ID. Nil disables it.
	ClientID map[string]string

	// DisableCompress prevents COMPRESS=DEFLATE from being negotiated even
	// when advertised.
	DisableCompress bool
}

// Client is a single IMAP4rev1 connection: the state machine, the mailbox
// cache and the command pipeline bound to one net.Conn at a time.
type Client struct {
	opts Options
	log  zerolog.Logger

	conn net.Conn
	pipe *pipeline

	mu         sync.RWMutex
	state      imap.ConnState
	caps       imap.CapabilitySet
	enabled    imap.EnabledSet
	mailbox    *imap.SelectedMailbox
	folders    map[string]*imap.FolderEntry
	serverID   map[string]string
	greetingCB func(kind string, err error)

	events chan Event

	lockMu    sync.Mutex
	lockQueue []chan struct{}
	lockHeld  bool
}

// Event is a connection-lifecycle or mailbox-cache notification delivered on
// Client.Events(), per spec.md §5 ("External interfaces: events").
type Event struct {
	Kind      string // "exists", "expunge", "vanished", "flags", "state", "bye", "mailbox_open", "mailbox_close"
	Mailbox   *imap.SelectedMailbox
	Path      string // mailbox name the event concerns, for "exists"/"flags"/"mailbox_open"/"mailbox_close"
	Num       uint32 // sequence number, or the new EXISTS count
	PrevCount uint32 // previous EXISTS count, set on "exists"
	UID       imap.UID
	ModSeq    uint64
	Flags     []imap.Flag // the flag list on a "flags" event
	Text      string
}

// Dial connects, reads the greeting, and performs the initial CAPABILITY
// discovery (spec.md §4.4 state machine entry).
func Dial(ctx context.Context, opts Options) (*Client, error) {
	if opts.Dialer == nil {
		opts.Dialer = &netDialer{}
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 30 * time.Second
	}
	if opts.GreetingTimeout == 0 {
		opts.GreetingTimeout = 30 * time.Second
	}
	if opts.SocketTimeout == 0 {
		opts.SocketTimeout = 3 * time.Minute
	}

	dialCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	conn, err := opts.Dialer.DialContext(dialCtx, "tcp", opts.Addr)
	if err != nil {
		return nil, &imap.TimeoutError{Phase: "connect", Err: err}
	}
	if opts.TLSConfig != nil {
		tconn := tls.Client(conn, opts.TLSConfig)
		hctx, hcancel := context.WithTimeout(ctx, opts.ConnectTimeout)
		defer hcancel()
		if err := tconn.HandshakeContext(hctx); err != nil {
			conn.Close()
			return nil, &imap.TimeoutError{Phase: "connect", Err: err}
		}
		conn = tconn
	}
	conn = &deadlineConn{Conn: conn, timeout: opts.SocketTimeout}

	log := logging.WithComponent("imapclient")
	if opts.Logger != nil {
		log = logging.FromLogger(*opts.Logger, "imapclient")
	}
	c := &Client{
		opts:    opts,
		log:     log,
		conn:    conn,
		state:   imap.StateNotAuthenticated,
		caps:    imap.CapabilitySet{},
		enabled: imap.EnabledSet{},
		events:  make(chan Event, 64),
	}
	c.pipe = newPipeline(conn, c.onUntagged, c.encodeOptions)

	if err := c.readGreeting(ctx); err != nil {
		c.pipe.close()
		return nil, err
	}
	if len(c.caps) == 0 {
		if _, err := c.Capability(ctx); err != nil {
			c.pipe.close()
			return nil, err
		}
	}
	if opts.ClientID != nil && c.Capabilities().Has(imap.CapID) {
		if _, err := c.ID(ctx, opts.ClientID); err != nil {
			c.log.Debug().Err(err).Msg("ID exchange failed")
		}
	}
	return c, nil
}

// readGreeting blocks for the server's untagged OK/PREAUTH/BYE greeting.
func (c *Client) readGreeting(ctx context.Context) error {
	type result struct {
		kind string
		err  error
	}
	done := make(chan result, 1)
	c.greetingOnce(func(kind string, err error) { done <- result{kind, err} })

	select {
	case r := <-done:
		if r.err != nil {
			return r.err
		}
		if r.kind == "BYE" {
			return fmt.Errorf("imap: server closed connection during greeting")
		}
		if r.kind == "PREAUTH" {
			c.setState(imap.StateAuthenticated)
		}
		return nil
	case <-time.After(c.opts.GreetingTimeout):
		return &imap.TimeoutError{Phase: "greeting", Err: context.DeadlineExceeded}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// greetingOnce installs a one-shot hook that fires for the very first
// untagged response, before the normal onUntagged cache routing takes over
// (the greeting is not associated with any pending command).
func (c *Client) greetingOnce(cb func(kind string, err error)) {
	c.mu.Lock()
	c.greetingCB = cb
	c.mu.Unlock()
}

func (c *Client) encodeOptions() encodeOptions {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return encodeOptions{
		UTF8Accept:   c.enabled.Has(imap.CapUTF8Accept) || c.caps.Has(imap.CapUTF8Accept),
		LiteralPlus:  c.caps.Has(imap.CapLiteralPlus),
		LiteralMinus: c.caps.Has(imap.CapLiteralMinus),
	}
}

func (c *Client) setState(s imap.ConnState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.emit(Event{Kind: "state", Text: s.String()})
}

// State returns the current connection state.
func (c *Client) State() imap.ConnState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Capabilities returns a snapshot of the server's advertised capabilities.
func (c *Client) Capabilities() imap.CapabilitySet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.caps.Clone()
}

// Enabled returns the set of extensions turned on via ENABLE.
func (c *Client) Enabled() imap.EnabledSet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(imap.EnabledSet, len(c.enabled))
	for k := range c.enabled {
		out[k] = struct{}{}
	}
	return out
}

// Mailbox returns a snapshot of the selected mailbox, or nil if none is
// selected.
func (c *Client) Mailbox() *imap.SelectedMailbox {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mailbox.Clone()
}

// Events returns the channel on which connection and mailbox-cache
// notifications are delivered. Callers must keep draining it; the channel
// is bounded and a full channel drops the oldest pending event rather than
// block the read loop.
func (c *Client) Events() <-chan Event { return c.events }

func (c *Client) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		select {
		case <-c.events:
		default:
		}
		select {
		case c.events <- ev:
		default:
		}
	}
}

// Close terminates the connection without sending LOGOUT. Prefer Logout for
// a graceful shutdown.
func (c *Client) Close() error {
	c.setState(imap.StateLogout)
	return c.pipe.close()
}

// guard validates that name may run in the client's current state, per
// spec.md §4.4's guard table. Returns a *imap.WrongStateError when it does
// not.
func (c *Client) guard(name string, allowed ...imap.ConnState) error {
	cur := c.State()
	for _, s := range allowed {
		if cur == s {
			return nil
		}
	}
	return &imap.WrongStateError{Command: name, Have: cur, Want: allowed}
}
