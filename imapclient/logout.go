package imapclient

import (
	"context"

	"github.com/hkdb/imapkit/imap"
)

// Logout runs LOGOUT, waiting for the server's BYE and tagged OK, then
// closes the underlying connection. Unlike Close, this is a graceful
// shutdown: it gives the server a chance to flush and say goodbye instead of
// just dropping the socket.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.guard("LOGOUT", imap.StateNotAuthenticated, imap.StateAuthenticated, imap.StateSelected); err != nil {
		return err
	}
	_, err := c.pipe.exec(ctx, "LOGOUT", nil, hooks{})
	c.setState(imap.StateLogout)
	closeErr := c.pipe.close()
	if err != nil {
		return err
	}
	return closeErr
}
