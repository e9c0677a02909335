// Package imapidle layers reconnect-and-restart management on top of
// imapclient.Client.Idle: a single IdleSession only covers one IDLE (or NOOP
// poll) cycle and ends the moment the connection drops or the cycle's
// maxWait elapses. Watcher keeps one going indefinitely, reconnecting with
// backoff on failure and cycling the command before any middlebox would
// silently drop it, and Manager runs one Watcher per account and fans their
// notifications into a single channel.
package imapidle

import (
	"context"
	"sync"
	"time"

	"github.com/hkdb/imapkit/imap"
	"github.com/hkdb/imapkit/imapclient"
)

// Event is a notification surfaced by a watched account while idling.
type Event struct {
	AccountID string
	Kind      string // mirrors imapclient.Event.Kind: "exists", "expunge", "vanished", "flags", "state", "bye", "mailbox_open", "mailbox_close"
	Mailbox   *imap.SelectedMailbox
	Num       uint32
	UID       imap.UID
	Text      string
}

// Config tunes reconnect and cycling behavior.
type Config struct {
	// MaxWait bounds a single native IDLE before it is cycled. RFC 2177
	// recommends well under 29 minutes.
	MaxWait time.Duration

	// ReconnectBackoff is the initial delay before retrying a failed
	// (re)connect; it doubles up to MaxReconnectBackoff.
	ReconnectBackoff    time.Duration
	MaxReconnectBackoff time.Duration

	// MaxReconnectAttempts stops the watcher after this many consecutive
	// failures. Zero means retry forever.
	MaxReconnectAttempts int
}

// DefaultConfig returns sensible idling defaults.
func DefaultConfig() Config {
	return Config{
		MaxWait:               10 * time.Minute,
		ReconnectBackoff:      time.Second,
		MaxReconnectBackoff:   5 * time.Minute,
		MaxReconnectAttempts:  0,
	}
}

// Connector opens (or reopens) an authenticated, mailbox-selected Client for
// accountID. Watcher calls it whenever it needs a fresh connection, so the
// caller owns credential storage and mailbox choice entirely.
type Connector func(ctx context.Context, accountID string) (*imapclient.Client, error)

// Watcher keeps one account continuously idling, reconnecting on failure.
type Watcher struct {
	accountID string
	config    Config
	connect   Connector
	events    chan<- Event

	mu      sync.Mutex
	running bool
	client  *imapclient.Client
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher builds a Watcher for accountID. Start begins the loop.
func NewWatcher(accountID string, config Config, connect Connector) *Watcher {
	return &Watcher{accountID: accountID, config: config, connect: connect}
}

// Start begins the idle loop in a background goroutine, delivering events to
// events. Calling Start while already running is a no-op.
func (w *Watcher) Start(ctx context.Context, events chan<- Event) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.events = events
	w.mu.Unlock()

	go w.run(ctx)
}

// Stop ends the loop and closes the underlying connection, blocking until
// the goroutine has exited.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	done := w.doneCh
	w.mu.Unlock()
	<-done
}

func (w *Watcher) sendEvent(ev Event) {
	select {
	case w.events <- ev:
	case <-w.stopCh:
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer func() {
		w.mu.Lock()
		w.running = false
		if w.client != nil {
			w.client.Close()
			w.client = nil
		}
		close(w.doneCh)
		w.mu.Unlock()
	}()

	backoff := w.config.ReconnectBackoff
	attempts := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		default:
		}

		client, err := w.connect(ctx, w.accountID)
		if err != nil {
			attempts++
			if w.config.MaxReconnectAttempts > 0 && attempts >= w.config.MaxReconnectAttempts {
				return
			}
			select {
			case <-time.After(backoff):
				backoff = minDuration(backoff*2, w.config.MaxReconnectBackoff)
				continue
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			}
		}
		backoff = w.config.ReconnectBackoff
		attempts = 0

		w.mu.Lock()
		w.client = client
		w.mu.Unlock()

		w.drainUnilateral(client)

		for {
			if err := w.cycle(ctx, client); err != nil {
				client.Close()
				w.mu.Lock()
				w.client = nil
				w.mu.Unlock()
				break
			}

			select {
			case <-ctx.Done():
				client.Close()
				return
			case <-w.stopCh:
				client.Close()
				return
			default:
			}
		}
	}
}

// drainUnilateral relays every Client.Events() notification as an
// imapidle.Event until the client is replaced or closed.
func (w *Watcher) drainUnilateral(client *imapclient.Client) {
	go func() {
		for ev := range client.Events() {
			w.mu.Lock()
			current := w.client == client
			w.mu.Unlock()
			if !current {
				return
			}
			w.sendEvent(Event{
				AccountID: w.accountID,
				Kind:      ev.Kind,
				Mailbox:   ev.Mailbox,
				Num:       ev.Num,
				UID:       ev.UID,
				Text:      ev.Text,
			})
		}
	}()
}

// cycle runs one IDLE (or NOOP-poll) session through to completion: either
// MaxWait elapses, the caller calls Stop, ctx is cancelled, or the server
// drops the connection.
func (w *Watcher) cycle(ctx context.Context, client *imapclient.Client) error {
	sess, err := client.Idle(ctx, w.config.MaxWait)
	if err != nil {
		return err
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- sess.Wait() }()

	select {
	case err := <-waitErr:
		return err
	case <-w.stopCh:
		return sess.Stop()
	case <-ctx.Done():
		sess.Stop()
		return ctx.Err()
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

// Manager runs one Watcher per account and fans their events into a single
// channel, mirroring the lifecycle calls a mail client's account list needs:
// add an account, remove it, or tear everything down at once.
type Manager struct {
	config  Config
	connect Connector

	mu       sync.Mutex
	watchers map[string]*Watcher
	events   chan Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager builds a Manager. connect is shared by every account's Watcher.
func NewManager(config Config, connect Connector) *Manager {
	return &Manager{
		config:   config,
		connect:  connect,
		watchers: make(map[string]*Watcher),
		events:   make(chan Event, 128),
	}
}

// Events returns the channel all watched accounts' notifications arrive on.
func (m *Manager) Events() <-chan Event { return m.events }

// Start arms the Manager's internal context; call it once before
// WatchAccount.
func (m *Manager) Start(ctx context.Context) {
	m.ctx, m.cancel = context.WithCancel(ctx)
}

// Stop ends every account's watcher and waits for their goroutines to exit.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Lock()
	for id, w := range m.watchers {
		w.Stop()
		delete(m.watchers, id)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// WatchAccount starts (or restarts, if not currently running) idling for
// accountID.
func (m *Manager) WatchAccount(accountID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if w, ok := m.watchers[accountID]; ok {
		w.mu.Lock()
		running := w.running
		w.mu.Unlock()
		if running {
			return
		}
		delete(m.watchers, accountID)
	}

	w := NewWatcher(accountID, m.config, m.connect)
	m.watchers[accountID] = w

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		w.Start(m.ctx, m.events)
	}()
}

// UnwatchAccount stops idling for accountID, if running.
func (m *Manager) UnwatchAccount(accountID string) {
	m.mu.Lock()
	w, ok := m.watchers[accountID]
	if ok {
		delete(m.watchers, accountID)
	}
	m.mu.Unlock()
	if ok {
		w.Stop()
	}
}
