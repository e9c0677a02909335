package imapclient

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hkdb/imapkit/imap"
)

// untaggedHandler is invoked once per untagged response seen while a command
// is outstanding. Connection-core state (capabilities, mailbox cache) always
// sees every untagged response first; the command's own hook sees it next so
// it can collect command-specific data (e.g. SEARCH numbers, FETCH data).
type untaggedHandler func(resp *imap.Attribute, keyword string, attrs []imap.Attribute) error

// hooks customises one exec() call: OnUntagged collects command-specific
// untagged data, OnPlus handles a continuation prompt for commands that use
// it for something other than a literal (AUTHENTICATE, IDLE).
type hooks struct {
	OnUntagged func(keyword string, attrs []imap.Attribute) error
	OnPlus     func(text string) ([]byte, error)
}

// pendingCmd is one entry of the FIFO command queue: exactly one command may
// be "in flight" (awaiting its tagged completion) at a time, per spec.md §4.2
// ("one command holds the wire").
type pendingCmd struct {
	tag    string
	name   string
	hooks  hooks
	done   chan *execResult
}

type execResult struct {
	tagged   *imap.Attribute // not set by handleTagged; a NO/BAD status is reported through err
	code     string
	codeArgs []imap.Attribute // the response code's remaining bracketed atoms, e.g. COPYUID's validity/uid-sets
	text     string
	err      error
}

// pipeline owns the wire codec and the FIFO of in-flight commands, and is the
// sole reader/writer of the underlying connection. spec.md §4.2's "exec"
// primitive is pipeline.exec.
type pipeline struct {
	conn net.Conn
	dec  *decoder

	mu      sync.Mutex
	writeMu sync.Mutex
	execSem chan struct{} // held by the one command in flight, from first write to completion
	queue   []*pendingCmd
	tagSeq  uint64

	onUntaggedCore untaggedHandler // connection-core/cache sink, set once at construction
	encOpts        func() encodeOptions

	contCh chan struct{}

	idleMu        sync.Mutex
	idleInterrupt func() // non-nil while an IDLE command is outstanding; see idle.go

	closed   atomic.Bool
	closeErr error

	readErrCh chan error
	stopped   chan struct{}
}

func newPipeline(conn net.Conn, core untaggedHandler, encOpts func() encodeOptions) *pipeline {
	p := &pipeline{
		conn:           conn,
		dec:            newDecoder(conn),
		onUntaggedCore: core,
		encOpts:        encOpts,
		execSem:        make(chan struct{}, 1),
		readErrCh:      make(chan error, 1),
		stopped:        make(chan struct{}),
	}
	go p.readLoop()
	return p
}

// haltForHandoff aborts the blocked read with a past deadline and waits for
// readLoop to exit, WITHOUT closing the underlying connection, so a caller
// (STARTTLS, COMPRESS) can hand the same net.Conn to a new pipeline. The
// read deadline it sets is transient: the next read on the connection (the
// TLS handshake, or the new pipeline's decoder) overwrites it before use.
func (p *pipeline) haltForHandoff() {
	p.conn.SetReadDeadline(time.Unix(1, 0))
	<-p.stopped
	p.conn.SetReadDeadline(time.Time{})
}

func (p *pipeline) nextTag() string {
	n := atomic.AddUint64(&p.tagSeq, 1)
	return fmt.Sprintf("A%04d", n)
}

// exec sends one command and blocks until its tagged completion arrives (or
// ctx is cancelled, or the connection dies). Literal arguments are written
// with the synchronising handshake described in spec.md §4.2 unless the
// server advertised LITERAL+/LITERAL- for that literal's size.
func (p *pipeline) exec(ctx context.Context, name string, args []imap.Attribute, h hooks) (*execResult, error) {
	if p.closed.Load() {
		return nil, imap.ErrNoConnection
	}
	p.preemptIdle()
	select {
	case p.execSem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-p.execSem }()
	tag := p.nextTag()
	cmd, err := encodeCommand(tag, name, args, p.encOpts())
	if err != nil {
		return nil, err
	}

	pc := &pendingCmd{tag: tag, name: name, hooks: h, done: make(chan *execResult, 1)}
	p.mu.Lock()
	p.queue = append(p.queue, pc)
	p.mu.Unlock()

	if err := p.writeSegments(ctx, cmd.Segments, h, pc); err != nil {
		p.removePending(pc)
		if res, ok := err.(*taggedDuringWrite); ok {
			if res.result.err != nil {
				return res.result, res.result.err
			}
			return res.result, nil
		}
		return nil, err
	}

	select {
	case res := <-pc.done:
		if res.err != nil {
			return res, res.err
		}
		return res, nil
	case err := <-p.readErrCh:
		p.readErrCh <- err // let any other waiter observe it too
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// taggedDuringWrite signals that the command's tagged completion (a NO/BAD
// rejecting the literal-sync handshake per spec.md §4.2 step 3) arrived while
// writeSegments was still waiting for "+". exec unwraps it instead of
// treating it as a plain write error.
type taggedDuringWrite struct {
	result *execResult
}

func (e *taggedDuringWrite) Error() string { return "tagged response arrived before continuation" }

// writeSegments writes each encoded segment, pausing before a literal payload
// that requires a "+" continuation. pc is watched throughout so a premature
// tagged NO/BAD fails the command immediately instead of deadlocking the
// writer until ctx is cancelled.
func (p *pipeline) writeSegments(ctx context.Context, segs []cmdSegment, h hooks, pc *pendingCmd) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	for i := 0; i < len(segs); i++ {
		seg := segs[i]
		if seg.Literal == nil {
			if _, err := p.conn.Write(seg.Text); err != nil {
				return err
			}
			continue
		}
		// The preceding loop iteration already wrote the "{N}\r\n" header
		// text segment; now decide whether to wait for "+".
		if !seg.NonSync {
			if err := p.waitContinuation(ctx, pc); err != nil {
				return err
			}
		}
		if _, err := p.conn.Write(seg.Literal); err != nil {
			return err
		}
	}
	return nil
}

func (p *pipeline) waitContinuation(ctx context.Context, pc *pendingCmd) error {
	select {
	case <-p.continuationSignal():
		return nil
	case res := <-pc.done:
		return &taggedDuringWrite{result: res}
	case err := <-p.readErrCh:
		p.readErrCh <- err
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// continuationSignal is replaced per-wait by readLoop; see readLoop's use of
// p.contCh. A buffered channel avoids a race between the "+" arriving and the
// writer starting to wait for it.
func (p *pipeline) continuationSignal() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.contCh == nil {
		p.contCh = make(chan struct{}, 1)
	}
	return p.contCh
}

// setIdleInterrupt records the function that sends DONE to end an
// outstanding IDLE command; clearIdleInterrupt removes it once IDLE
// completes. preemptIdle is called at the top of every exec() so that any
// other operation "acquires the pipeline" by ending IDLE first (spec.md
// §4.6 IDLE, "pre_check").
func (p *pipeline) setIdleInterrupt(fn func()) {
	p.idleMu.Lock()
	p.idleInterrupt = fn
	p.idleMu.Unlock()
}

func (p *pipeline) clearIdleInterrupt() {
	p.idleMu.Lock()
	p.idleInterrupt = nil
	p.idleMu.Unlock()
}

func (p *pipeline) preemptIdle() {
	p.idleMu.Lock()
	fn := p.idleInterrupt
	p.idleInterrupt = nil
	p.idleMu.Unlock()
	if fn != nil {
		fn()
	}
}

// writeRaw writes b directly to the connection under the write lock, for
// out-of-band payloads that are not a full encoded command (IDLE's DONE).
func (p *pipeline) writeRaw(b []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_, err := p.conn.Write(b)
	return err
}

func (p *pipeline) removePending(pc *pendingCmd) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, q := range p.queue {
		if q == pc {
			p.queue = append(p.queue[:i], p.queue[i+1:]...)
			return
		}
	}
}

// readLoop is the sole reader of the connection: it decodes each response
// and routes it to connection-core first, then to the front-of-queue
// command's hooks, per spec.md §4.3 ("Untagged-response routing").
func (p *pipeline) readLoop() {
	defer close(p.stopped)
	for {
		resp, err := p.dec.readResponse()
		if err != nil {
			p.fail(err)
			return
		}
		switch resp.Kind {
		case respContinuation:
			p.handleContinuation(resp)
		case respUntagged:
			p.handleUntagged(resp)
		case respTagged:
			p.handleTagged(resp)
		}
	}
}

func (p *pipeline) handleContinuation(resp *rawResponse) {
	p.mu.Lock()
	var front *pendingCmd
	if len(p.queue) > 0 {
		front = p.queue[0]
	}
	cont := p.contCh
	p.mu.Unlock()

	if front != nil && front.hooks.OnPlus != nil {
		payload, err := front.hooks.OnPlus(resp.ContinuationText)
		if err != nil {
			p.fail(err)
			return
		}
		if payload != nil {
			p.writeMu.Lock()
			p.conn.Write(payload)
			p.writeMu.Unlock()
		}
		return
	}
	if cont != nil {
		select {
		case cont <- struct{}{}:
		default:
		}
	}
}

func (p *pipeline) handleUntagged(resp *rawResponse) {
	keyword, rest := splitKeyword(resp.Attrs)
	keyword, rest = normalizeNumbered(keyword, rest)

	if p.onUntaggedCore != nil {
		if err := p.onUntaggedCore(nil, keyword, rest); err != nil {
			p.fail(err)
			return
		}
	}

	p.mu.Lock()
	var front *pendingCmd
	if len(p.queue) > 0 {
		front = p.queue[0]
	}
	p.mu.Unlock()
	if front != nil && front.hooks.OnUntagged != nil {
		if err := front.hooks.OnUntagged(keyword, rest); err != nil {
			p.fail(err)
		}
	}
}

func (p *pipeline) handleTagged(resp *rawResponse) {
	p.mu.Lock()
	var pc *pendingCmd
	idx := -1
	for i, q := range p.queue {
		if q.tag == resp.Tag {
			pc = q
			idx = i
			break
		}
	}
	if idx >= 0 {
		p.queue = append(p.queue[:idx], p.queue[idx+1:]...)
	}
	p.mu.Unlock()
	if pc == nil {
		return
	}

	status, code, codeArgs, text := parseStatusResponse(resp.Attrs)
	res := &execResult{code: code, codeArgs: codeArgs, text: text}
	switch status {
	case "OK":
	case "NO", "BAD":
		res.err = &imap.CommandError{Command: pc.name, Status: status, ServerResponseCode: code, ResponseText: text}
	default:
		res.err = &imap.ProtocolError{Msg: fmt.Sprintf("unexpected tagged status %q", status)}
	}
	pc.done <- res
}

func (p *pipeline) fail(err error) {
	if p.closed.Swap(true) {
		return
	}
	p.closeErr = err
	select {
	case p.readErrCh <- err:
	default:
	}
	p.mu.Lock()
	queued := p.queue
	p.queue = nil
	p.mu.Unlock()
	for _, pc := range queued {
		pc.done <- &execResult{err: err}
	}
}

func (p *pipeline) close() error {
	p.fail(imap.ErrNoConnection)
	return p.conn.Close()
}

// normalizeNumbered rewrites the "* <num> <VERB> ..." untagged framing
// (EXISTS/EXPUNGE/RECENT/FETCH) so VERB becomes the keyword and the sequence
// number becomes attrs[0], matching every other untagged response's
// "* <VERB> ..." shape. Non-numbered responses pass through unchanged.
func normalizeNumbered(keyword string, rest []imap.Attribute) (string, []imap.Attribute) {
	if _, err := strconv.ParseUint(keyword, 10, 32); err != nil {
		return keyword, rest
	}
	if len(rest) == 0 {
		return keyword, rest
	}
	verb, ok := rest[0].AsString()
	if !ok {
		return keyword, rest
	}
	newRest := append([]imap.Attribute{imap.Atom(keyword)}, rest[1:]...)
	return verb, newRest
}

// splitKeyword pulls the response keyword (the second wire token, e.g. "OK",
// "EXISTS", "FETCH") out of an untagged response's attribute list.
func splitKeyword(attrs []imap.Attribute) (string, []imap.Attribute) {
	if len(attrs) == 0 {
		return "", nil
	}
	kw, ok := attrs[0].AsString()
	if !ok {
		return "", attrs
	}
	return kw, attrs[1:]
}

// parseStatusResponse extracts "OK"/"NO"/"BAD", the optional bracketed
// response code's atom, and the trailing human-readable text from a tagged
// response's attribute list.
func parseStatusResponse(attrs []imap.Attribute) (status, code string, codeArgs []imap.Attribute, text string) {
	if len(attrs) == 0 {
		return "", "", nil, ""
	}
	status, _ = attrs[0].AsString()
	rest := attrs[1:]
	if len(rest) > 0 && rest[0].Kind == imap.AttrSection {
		if len(rest[0].List) > 0 {
			code, _ = rest[0].List[0].AsString()
			codeArgs = rest[0].List[1:]
		}
		rest = rest[1:]
	}
	var parts []string
	for _, a := range rest {
		if s, ok := a.AsString(); ok {
			parts = append(parts, s)
		}
	}
	text = joinSpace(parts)
	return
}

func joinSpace(parts []string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += " " + p
	}
	return out
}
