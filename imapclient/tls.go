package imapclient

import (
	"context"
	"crypto/tls"

	"github.com/hkdb/imapkit/imap"
)

// StartTLS upgrades a plaintext connection to TLS (RFC 3501 §6.2.1) and
// discards any pre-TLS capability advertisement, since a server may lie
// about its capabilities before TLS per the RFC's "MUST discard" rule.
// Valid only in StateNotAuthenticated; a fresh CAPABILITY command always
// follows the handshake.
func (c *Client) StartTLS(ctx context.Context, cfg *tls.Config) error {
	if err := c.guard("STARTTLS", imap.StateNotAuthenticated); err != nil {
		return err
	}
	if !c.Capabilities().Has(imap.CapStartTLS) {
		return &imap.MissingExtensionError{Extension: imap.CapStartTLS}
	}

	_, err := c.pipe.exec(ctx, "STARTTLS", nil, hooks{})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.caps = imap.CapabilitySet{}
	plain := c.conn
	c.mu.Unlock()

	// Stop the plaintext read loop before the handshake touches the same
	// fd: otherwise the old goroutine's blocked Read races the handshake.
	c.pipe.haltForHandoff()

	tconn := tls.Client(plain, cfg)
	if err := tconn.HandshakeContext(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = tconn
	c.mu.Unlock()

	c.pipe = newPipeline(tconn, c.onUntagged, c.encodeOptions)

	if _, err := c.Capability(ctx); err != nil {
		return err
	}
	return nil
}
