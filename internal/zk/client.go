// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package zk

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

// Client speaks the protocol over one TCP connection. It is not safe for
// concurrent use; the device itself handles a single session at a time.
type Client struct {
	conn      net.Conn
	layout    Layout
	loc       *time.Location
	sessionID uint16
	replyID   uint16
	connected bool
}

// Option configures a Client.
type Option func(*Client)

// WithLayout selects the record layout used to decode tables.
func WithLayout(l Layout) Option {
	return func(c *Client) {
		if l != "" {
			c.layout = l
		}
	}
}

// WithLocation sets the zone device wall-clock timestamps are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// NewClient wraps an established TCP connection.
func NewClient(conn net.Conn, opts ...Option) *Client {
	c := &Client{
		conn:    conn,
		layout:  LayoutAuto,
		loc:     time.Local,
		replyID: ushrtMax - 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dial opens a TCP connection to addr and performs the CONNECT handshake.
func Dial(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	c := NewClient(conn, opts...)
	if err := c.Connect(ctx); err != nil {
		_ = conn.Close() //nolint:errcheck // handshake error takes precedence
		return nil, err
	}
	return c, nil
}

// SessionID returns the session assigned by the device.
func (c *Client) SessionID() uint16 {
	return c.sessionID
}

// Connect performs the session handshake.
func (c *Client) Connect(ctx context.Context) error {
	c.sessionID = 0
	c.replyID = ushrtMax - 1
	resp, err := c.exchange(ctx, CmdConnect, nil)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	switch resp.Command {
	case AckOK:
		c.sessionID = resp.SessionID
		c.connected = true
		return nil
	case AckUnauth:
		return fmt.Errorf("connect: %w", ErrUnauthorized)
	default:
		return fmt.Errorf("connect: %w: reply %d", ErrUnexpectedReply, resp.Command)
	}
}

// Close ends the session (best effort) and closes the socket. It is safe to
// call more than once.
func (c *Client) Close(ctx context.Context) error {
	var exitErr error
	if c.connected {
		c.connected = false
		if resp, err := c.exchange(ctx, CmdExit, nil); err != nil {
			exitErr = fmt.Errorf("exit: %w", err)
		} else if resp.Command != AckOK {
			exitErr = fmt.Errorf("exit: %w: reply %d", ErrUnexpectedReply, resp.Command)
		}
	}
	if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return exitErr
}

// Users reads the user table.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	data, err := c.readWithBuffer(ctx, CmdUserTempRRQ, FctUser, 0)
	if err != nil {
		return nil, fmt.Errorf("read users: %w", err)
	}
	users, err := DecodeUsers(data, c.layout)
	if err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}

// Attendance reads the attendance log. users resolves uids in legacy records
// and may be nil.
func (c *Client) Attendance(ctx context.Context, users []User) ([]Attendance, error) {
	data, err := c.readWithBuffer(ctx, CmdAttLogRRQ, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("read attendance: %w", err)
	}
	records, err := DecodeAttendance(data, c.layout, users, c.loc)
	if err != nil {
		return nil, fmt.Errorf("decode attendance: %w", err)
	}
	return records, nil
}

// exchange sends one request and reads its reply under ctx's deadline.
func (c *Client) exchange(ctx context.Context, cmd uint16, data []byte) (*Packet, error) {
	if err := c.send(ctx, cmd, data); err != nil {
		return nil, err
	}
	return c.receive(ctx)
}

func (c *Client) send(ctx context.Context, cmd uint16, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.replyID = nextReplyID(c.replyID)
	p := &Packet{Command: cmd, SessionID: c.sessionID, ReplyID: c.replyID, Data: data}

	stop := c.bindDeadline(ctx)
	defer stop()
	if _, err := c.conn.Write(p.MarshalFrame()); err != nil {
		return c.ctxErr(ctx, err)
	}
	return nil
}

func (c *Client) receive(ctx context.Context) (*Packet, error) {
	stop := c.bindDeadline(ctx)
	defer stop()
	p, err := ReadPacket(c.conn)
	if err != nil {
		return nil, c.ctxErr(ctx, err)
	}
	if p.Command == AckError {
		return nil, ErrDeviceError
	}
	return p, nil
}

// bindDeadline applies ctx's deadline to the socket and aborts pending I/O on
// cancellation.
func (c *Client) bindDeadline(ctx context.Context) func() {
	if dl, ok := ctx.Deadline(); ok {
		_ = c.conn.SetDeadline(dl) //nolint:errcheck // a failed set surfaces on the next read/write
	} else {
		_ = c.conn.SetDeadline(time.Time{}) //nolint:errcheck // see above
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Now()) //nolint:errcheck // forces pending I/O to return
	})
	return func() { stop() }
}

// ctxErr prefers the context error over the I/O error it caused. Socket
// deadlines only ever come from ctx, so a deadline error maps to
// context.DeadlineExceeded even if ctx's own timer has not fired yet.
func (c *Client) ctxErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w (%v)", ctxErr, err)
	}
	if _, ok := ctx.Deadline(); ok && errors.Is(err, os.ErrDeadlineExceeded) {
		return fmt.Errorf("%w (%v)", context.DeadlineExceeded, err)
	}
	return err
}

// readWithBuffer fetches a whole table through the device's staging buffer.
func (c *Client) readWithBuffer(ctx context.Context, cmd uint16, fct, ext int32) ([]byte, error) {
	req := make([]byte, 11)
	req[0] = 1
	binary.LittleEndian.PutUint16(req[1:], cmd)
	binary.LittleEndian.PutUint32(req[3:], uint32(fct))
	binary.LittleEndian.PutUint32(req[7:], uint32(ext))

	resp, err := c.exchange(ctx, CmdPrepareBuffer, req)
	if err != nil {
		return nil, err
	}

	switch resp.Command {
	case CmdData:
		// Small tables come back inline.
		return resp.Data, nil
	case AckOK:
	default:
		return nil, fmt.Errorf("%w: prepare buffer reply %d", ErrUnexpectedReply, resp.Command)
	}

	if len(resp.Data) < 5 {
		return nil, fmt.Errorf("%w: prepare buffer reply has %d bytes", ErrShortPayload, len(resp.Data))
	}
	size := int(binary.LittleEndian.Uint32(resp.Data[1:5]))
	if size > maxPacketSize {
		return nil, fmt.Errorf("%w: buffer size %d exceeds limit", ErrShortPayload, size)
	}

	out := make([]byte, 0, size)
	for start := 0; start < size; {
		n := size - start
		if n > maxChunk {
			n = maxChunk
		}
		chunk, err := c.readChunk(ctx, start, n)
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
		start += n
	}

	if err := c.freeData(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) readChunk(ctx context.Context, start, size int) ([]byte, error) {
	req := make([]byte, 8)
	binary.LittleEndian.PutUint32(req[0:], uint32(start))
	binary.LittleEndian.PutUint32(req[4:], uint32(size))

	resp, err := c.exchange(ctx, CmdReadBuffer, req)
	if err != nil {
		return nil, err
	}

	switch resp.Command {
	case CmdData:
		if len(resp.Data) != size {
			return nil, fmt.Errorf("%w: chunk at %d has %d bytes, want %d", ErrShortPayload, start, len(resp.Data), size)
		}
		return resp.Data, nil
	case CmdPrepareData:
		if len(resp.Data) < 4 {
			return nil, fmt.Errorf("%w: prepare data reply", ErrShortPayload)
		}
		want := int(binary.LittleEndian.Uint32(resp.Data[:4]))
		return c.receiveStream(ctx, want)
	default:
		return nil, fmt.Errorf("%w: read buffer reply %d", ErrUnexpectedReply, resp.Command)
	}
}

// receiveStream collects DATA packets until want bytes arrived, then expects ACK_OK.
func (c *Client) receiveStream(ctx context.Context, want int) ([]byte, error) {
	out := make([]byte, 0, want)
	for len(out) < want {
		p, err := c.receive(ctx)
		if err != nil {
			return nil, err
		}
		if p.Command != CmdData {
			return nil, fmt.Errorf("%w: reply %d while streaming", ErrUnexpectedReply, p.Command)
		}
		out = append(out, p.Data...)
	}
	if len(out) != want {
		return nil, fmt.Errorf("%w: streamed %d bytes, want %d", ErrShortPayload, len(out), want)
	}
	p, err := c.receive(ctx)
	if err != nil {
		return nil, err
	}
	if p.Command != AckOK {
		return nil, fmt.Errorf("%w: reply %d after stream", ErrUnexpectedReply, p.Command)
	}
	return out, nil
}

func (c *Client) freeData(ctx context.Context) error {
	resp, err := c.exchange(ctx, CmdFreeData, nil)
	if err != nil {
		return fmt.Errorf("free data: %w", err)
	}
	if resp.Command != AckOK {
		return fmt.Errorf("free data: %w: reply %d", ErrUnexpectedReply, resp.Command)
	}
	return nil
}
