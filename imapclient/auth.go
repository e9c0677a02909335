package imapclient

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/emersion/go-sasl"
	"github.com/hkdb/imapkit/imap"
)

// xoauth2Client implements sasl.Client for XOAUTH2 (Google's OAuth2 SASL
// mechanism), grounded on the teacher's NewXOAuth2Client usage in
// internal/imap/client.go/idle.go. go-sasl ships PLAIN/LOGIN but not this
// mechanism, so we supply it ourselves; only the byte-encoding is ours, the
// choreography is identical to any other sasl.Client.
type xoauth2Client struct {
	username, token string
}

// NewXOAuth2Client builds a SASL client for the XOAUTH2 mechanism.
func NewXOAuth2Client(username, accessToken string) sasl.Client {
	return &xoauth2Client{username: username, token: accessToken}
}

func (c *xoauth2Client) Start() (mech string, ir []byte, err error) {
	ir = []byte(fmt.Sprintf("user=%s\x01auth=Bearer %s\x01\x01", c.username, c.token))
	return "XOAUTH2", ir, nil
}

func (c *xoauth2Client) Next(challenge []byte) ([]byte, error) {
	// A non-empty challenge after the initial response means the server
	// rejected the token and sent a JSON error blob; responding with an
	// empty message lets the tagged NO surface instead of hanging.
	return nil, nil
}

// oauthBearerClient implements RFC 7628 OAUTHBEARER, the successor to
// XOAUTH2 (SPEC_FULL.md domain stack: SASL mechanisms).
type oauthBearerClient struct {
	username, host, token string
	port                  int
}

// NewOAuthBearerClient builds a SASL client for the OAUTHBEARER mechanism.
func NewOAuthBearerClient(username, host string, port int, accessToken string) sasl.Client {
	return &oauthBearerClient{username: username, host: host, port: port, token: accessToken}
}

func (c *oauthBearerClient) Start() (string, []byte, error) {
	ir := []byte(fmt.Sprintf("n,a=%s,\x01host=%s\x01port=%d\x01auth=Bearer %s\x01\x01",
		c.username, c.host, c.port, c.token))
	return "OAUTHBEARER", ir, nil
}

func (c *oauthBearerClient) Next(challenge []byte) ([]byte, error) {
	// RFC 7628 §3.2.3: the client must respond to a failure challenge with a
	// single 0x01 byte to abort cleanly rather than hang.
	return []byte{0x01}, nil
}

// mechanismPriority lists the supported SASL mechanisms, strongest/most
// specific first. Authenticate does not consult it: the caller chooses the
// mechanism by the sasl.Client it passes in.
var mechanismPriority = []string{"OAUTHBEARER", "XOAUTH2", "PLAIN", "LOGIN"}

// Login authenticates with a username/password via LOGIN, or AUTHENTICATE
// PLAIN when the server advertises LOGINDISABLED, mirroring the teacher's
// loginPassword fallback order (a failed AUTHENTICATE can wedge some
// servers' wire state, so LOGIN is preferred whenever it is available).
func (c *Client) Login(ctx context.Context, username, password string) error {
	if err := c.guard("LOGIN", imap.StateNotAuthenticated); err != nil {
		return err
	}
	if c.Capabilities().Has(imap.CapLoginDisable) {
		return c.Authenticate(ctx, sasl.NewPlainClient("", username, password))
	}
	res, err := c.pipe.exec(ctx, "LOGIN", []imap.Attribute{imap.String(username), imap.String(password)}, hooks{})
	if err != nil {
		text := ""
		if res != nil {
			text = res.text
		}
		return &imap.AuthError{Response: text, Err: err}
	}
	c.setState(imap.StateAuthenticated)
	if len(c.Capabilities()) == 0 {
		if _, err := c.Capability(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Authenticate runs the AUTHENTICATE command with an arbitrary go-sasl
// client, handling the "+"-continuation challenge/response choreography
// itself (spec.md §4.2's generic continuation-prompt handling) while go-sasl
// only contributes the mechanism's byte encoding.
func (c *Client) Authenticate(ctx context.Context, mech sasl.Client) error {
	if err := c.guard("AUTHENTICATE", imap.StateNotAuthenticated); err != nil {
		return err
	}
	name, ir, err := mech.Start()
	if err != nil {
		return &imap.AuthError{Err: err}
	}

	args := []imap.Attribute{imap.Atom(name)}
	useSASLIR := c.Capabilities().Has(imap.CapSASLIR)
	if useSASLIR {
		if len(ir) == 0 {
			args = append(args, imap.Atom("="))
		} else {
			args = append(args, imap.Atom(base64.StdEncoding.EncodeToString(ir)))
		}
	}

	onPlus := func(text string) ([]byte, error) {
		challenge, err := base64.StdEncoding.DecodeString(text)
		if err != nil && text != "" {
			return nil, &imap.ProtocolError{Msg: "invalid base64 SASL challenge", Err: err}
		}
		resp, err := mech.Next(challenge)
		if err != nil {
			return nil, &imap.AuthError{Err: err}
		}
		line := base64.StdEncoding.EncodeToString(resp) + "\r\n"
		return []byte(line), nil
	}

	res, err := c.pipe.exec(ctx, "AUTHENTICATE", args, hooks{OnPlus: onPlus})
	if err != nil {
		code := ""
		if res != nil {
			code = res.code
		}
		return &imap.AuthError{ServerResponseCode: code, Err: err}
	}
	c.setState(imap.StateAuthenticated)
	if len(c.Capabilities()) == 0 {
		if _, err := c.Capability(ctx); err != nil {
			return err
		}
	}
	return nil
}
