// Package imappool pools imapclient.Client connections per account, so a
// caller juggling several mailboxes does not pay a fresh TLS handshake and
// LOGIN round trip on every operation.
package imappool

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hkdb/imapkit/imapclient"
	"github.com/hkdb/imapkit/internal/logging"
	"github.com/rs/zerolog"
)

// IsConnectionError reports whether err looks like a dead/broken transport,
// warranting Discard instead of Release.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	for _, s := range []string{
		"use of closed network connection",
		"connection reset",
		"broken pipe",
		"EOF",
		"i/o timeout",
		"connection refused",
		"no such host",
		"network is unreachable",
	} {
		if strings.Contains(errStr, s) {
			return true
		}
	}
	return false
}

// Config configures a Pool.
type Config struct {
	MaxConnections int
	IdleTimeout    time.Duration
	ConnectTimeout time.Duration
	WaiterTimeout  time.Duration
}

// DefaultConfig returns sensible pool defaults.
func DefaultConfig() Config {
	return Config{
		MaxConnections: 3,
		IdleTimeout:    5 * time.Minute,
		ConnectTimeout: 30 * time.Second,
		WaiterTimeout:  2 * time.Minute,
	}
}

// Conn wraps a Client with pool bookkeeping.
type Conn struct {
	client    *imapclient.Client
	accountID string
	createdAt time.Time
	lastUsed  time.Time
	inUse     bool
	mu        sync.Mutex
}

// Client returns the underlying connection.
func (c *Conn) Client() *imapclient.Client { return c.client }

func (c *Conn) isHealthyLocked() bool { return c.client != nil }

// Pool manages a bounded set of live connections per account, login supplied
// by the caller via dial (so the pool has no opinion on credentials storage).
type Pool struct {
	config      Config
	connections map[string][]*Conn
	waiters     map[string][]chan *Conn
	mu          sync.Mutex
	log         zerolog.Logger

	dial func(ctx context.Context, accountID string) (*imapclient.Client, error)
}

// NewPool builds a Pool; dial opens and authenticates a fresh Client for
// accountID (typically Dial + Login/Authenticate).
func NewPool(config Config, dial func(ctx context.Context, accountID string) (*imapclient.Client, error)) *Pool {
	return &Pool{
		config:      config,
		connections: make(map[string][]*Conn),
		waiters:     make(map[string][]chan *Conn),
		log:         logging.WithComponent("imappool"),
		dial:        dial,
	}
}

// Get returns an available connection for accountID, reusing an idle one,
// opening a new one under MaxConnections, or waiting FIFO when the pool for
// that account is exhausted.
func (p *Pool) Get(ctx context.Context, accountID string) (*Conn, error) {
	p.mu.Lock()
	for _, conn := range p.connections[accountID] {
		conn.mu.Lock()
		if !conn.inUse && conn.isHealthyLocked() {
			conn.inUse = true
			conn.lastUsed = time.Now()
			conn.mu.Unlock()
			p.mu.Unlock()
			p.log.Debug().Str("account", accountID).Msg("reusing pooled connection")
			return conn, nil
		}
		conn.mu.Unlock()
	}

	current := len(p.connections[accountID])
	if current < p.config.MaxConnections {
		p.mu.Unlock()
		return p.createConnection(ctx, accountID)
	}

	p.log.Debug().Str("account", accountID).Int("current", current).Msg("pool exhausted, waiting")
	waiter := make(chan *Conn, 1)
	p.waiters[accountID] = append(p.waiters[accountID], waiter)
	p.mu.Unlock()

	select {
	case conn := <-waiter:
		if conn == nil {
			return nil, fmt.Errorf("imappool: pool closed")
		}
		return conn, nil
	case <-ctx.Done():
		p.dropWaiter(accountID, waiter)
		return nil, ctx.Err()
	case <-time.After(p.config.WaiterTimeout):
		p.dropWaiter(accountID, waiter)
		return nil, fmt.Errorf("imappool: timed out waiting for a connection")
	}
}

func (p *Pool) dropWaiter(accountID string, waiter chan *Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	waiters := p.waiters[accountID]
	for i, w := range waiters {
		if w == waiter {
			p.waiters[accountID] = append(waiters[:i], waiters[i+1:]...)
			return
		}
	}
}

func (p *Pool) createConnection(ctx context.Context, accountID string) (*Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, p.config.ConnectTimeout)
	defer cancel()

	client, err := p.dial(dialCtx, accountID)
	if err != nil {
		return nil, fmt.Errorf("imappool: dial %s: %w", accountID, err)
	}

	conn := &Conn{client: client, accountID: accountID, createdAt: time.Now(), lastUsed: time.Now(), inUse: true}
	p.mu.Lock()
	p.connections[accountID] = append(p.connections[accountID], conn)
	p.mu.Unlock()
	p.log.Info().Str("account", accountID).Msg("new pooled connection")
	return conn, nil
}

// Release returns a connection to the pool, handing it to the next waiter
// (if any) instead of going idle.
func (p *Pool) Release(conn *Conn) {
	if conn == nil {
		return
	}
	conn.mu.Lock()
	conn.inUse = false
	conn.lastUsed = time.Now()
	healthy := conn.isHealthyLocked()
	conn.mu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	if !healthy {
		return
	}
	inPool := false
	for _, c := range p.connections[conn.accountID] {
		if c == conn {
			inPool = true
			break
		}
	}
	if !inPool {
		return
	}

	if waiters := p.waiters[conn.accountID]; len(waiters) > 0 {
		w := waiters[0]
		p.waiters[conn.accountID] = waiters[1:]
		conn.mu.Lock()
		conn.inUse = true
		conn.mu.Unlock()
		w <- conn
	}
}

// Discard removes conn from the pool and force-closes it, for connections
// known to be dead (IsConnectionError).
func (p *Pool) Discard(conn *Conn) {
	if conn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	conn.mu.Lock()
	if conn.client != nil {
		conn.client.Close()
		conn.client = nil
	}
	conn.mu.Unlock()

	conns := p.connections[conn.accountID]
	for i, c := range conns {
		if c == conn {
			p.connections[conn.accountID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(p.connections[conn.accountID]) == 0 {
		delete(p.connections, conn.accountID)
	}
}

// CloseAccount force-closes every connection held for accountID.
func (p *Pool) CloseAccount(accountID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, conn := range p.connections[accountID] {
		conn.mu.Lock()
		if conn.client != nil {
			conn.client.Close()
			conn.client = nil
		}
		conn.mu.Unlock()
	}
	delete(p.connections, accountID)

	for _, w := range p.waiters[accountID] {
		close(w)
	}
	delete(p.waiters, accountID)
}

// CloseAll force-closes every connection in the pool.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	accountIDs := make([]string, 0, len(p.connections))
	for id := range p.connections {
		accountIDs = append(accountIDs, id)
	}
	p.mu.Unlock()
	for _, id := range accountIDs {
		p.CloseAccount(id)
	}
}

// CleanupIdle closes connections that have sat unused past IdleTimeout.
func (p *Pool) CleanupIdle() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	for accountID, conns := range p.connections {
		var remaining []*Conn
		for _, conn := range conns {
			conn.mu.Lock()
			idle := !conn.inUse && now.Sub(conn.lastUsed) > p.config.IdleTimeout
			if idle && conn.client != nil {
				conn.client.Close()
				conn.client = nil
			}
			conn.mu.Unlock()
			if !idle {
				remaining = append(remaining, conn)
			}
		}
		if len(remaining) == 0 {
			delete(p.connections, accountID)
		} else {
			p.connections[accountID] = remaining
		}
	}
}

// StartCleanupRoutine runs CleanupIdle on a one-minute ticker until ctx is
// cancelled.
func (p *Pool) StartCleanupRoutine(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.CleanupIdle()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stats summarizes the pool's current occupancy.
type Stats struct {
	Total, Active, Idle, Accounts int
}

// Stats returns current pool statistics.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Stats{Accounts: len(p.connections)}
	for _, conns := range p.connections {
		for _, c := range conns {
			s.Total++
			c.mu.Lock()
			if c.inUse {
				s.Active++
			} else {
				s.Idle++
			}
			c.mu.Unlock()
		}
	}
	return s
}
