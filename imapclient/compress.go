package imapclient

import (
	"compress/flate"
	"context"
	"io"
	"net"

	"github.com/hkdb/imapkit/imap"
)

// deflateConn wraps a net.Conn in a DEFLATE stream (RFC 4978 COMPRESS),
// compressing writes and decompressing reads while passing every other
// net.Conn method straight through to the underlying connection.
type deflateConn struct {
	net.Conn
	fr io.ReadCloser
	fw *flate.Writer
}

func newDeflateConn(c net.Conn) *deflateConn {
	return &deflateConn{Conn: c, fr: flate.NewReader(c), fw: flate.NewWriter(c, flate.DefaultCompression)}
}

func (d *deflateConn) Read(p []byte) (int, error) { return d.fr.Read(p) }

func (d *deflateConn) Write(p []byte) (int, error) {
	n, err := d.fw.Write(p)
	if err != nil {
		return n, err
	}
	if err := d.fw.Flush(); err != nil {
		return n, err
	}
	return n, nil
}

func (d *deflateConn) Close() error {
	d.fr.Close()
	d.fw.Close()
	return d.Conn.Close()
}

// Compress runs COMPRESS=DEFLATE (RFC 4978), wrapping the connection in a
// DEFLATE stream on success. Like StartTLS, it must halt the old pipeline's
// read loop before wrapping the shared net.Conn, to avoid two goroutines
// reading the same fd.
func (c *Client) Compress(ctx context.Context) error {
	if c.opts.DisableCompress {
		return &imap.MissingExtensionError{Extension: imap.CapCompress}
	}
	if err := c.guard("COMPRESS", imap.StateNotAuthenticated, imap.StateAuthenticated, imap.StateSelected); err != nil {
		return err
	}
	if !c.Capabilities().Has(imap.CapCompress) {
		return &imap.MissingExtensionError{Extension: imap.CapCompress}
	}

	args := []imap.Attribute{imap.Atom("DEFLATE")}
	if _, err := c.pipe.exec(ctx, "COMPRESS", args, hooks{}); err != nil {
		return err
	}

	c.mu.Lock()
	plain := c.conn
	c.mu.Unlock()

	c.pipe.haltForHandoff()

	wrapped := newDeflateConn(plain)

	c.mu.Lock()
	c.conn = wrapped
	c.mu.Unlock()

	c.pipe = newPipeline(wrapped, c.onUntagged, c.encodeOptions)
	return nil
}
