// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

// Package zk implements the TCP variant of the ZK-family biometric terminal
// protocol: framing, checksums, session handshake, buffered bulk reads and
// decoding of the user and attendance tables.
//
// Only the read path needed for attendance sync is implemented. UDP transport,
// comm-key authentication and device write commands are not supported.
package zk

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Command and reply codes.
const (
	CmdConnect       uint16 = 1000
	CmdExit          uint16 = 1001
	CmdUserTempRRQ   uint16 = 9
	CmdAttLogRRQ     uint16 = 13
	CmdPrepareData   uint16 = 1500
	CmdData          uint16 = 1501
	CmdFreeData      uint16 = 1502
	CmdPrepareBuffer uint16 = 1503
	CmdReadBuffer    uint16 = 1504

	AckOK     uint16 = 2000
	AckError  uint16 = 2001
	AckData   uint16 = 2002
	AckUnauth uint16 = 2005
)

// FctUser selects the user table for CmdUserTempRRQ.
const FctUser = 5

// DefaultPort is the terminal's TCP port.
const DefaultPort = 4370

const (
	magic1 uint16 = 0x5050
	magic2 uint16 = 0x7D82

	tcpHeaderSize    = 8
	packetHeaderSize = 8

	// maxChunk is the largest READ_BUFFER request the device accepts over TCP.
	maxChunk = 0xFFC0

	// maxPacketSize bounds a single frame so a corrupt length cannot exhaust memory.
	maxPacketSize = 16 << 20

	ushrtMax = 65535
)

// Sentinel errors. Callers match them with errors.Is.
var (
	ErrBadHeader       = errors.New("zk: bad frame header")
	ErrChecksum        = errors.New("zk: checksum mismatch")
	ErrUnauthorized    = errors.New("zk: device requires authentication")
	ErrShortPayload    = errors.New("zk: short payload")
	ErrUnexpectedReply = errors.New("zk: unexpected reply")
	ErrDeviceError     = errors.New("zk: device returned error")
)

// Packet is one protocol message, without the TCP frame.
type Packet struct {
	Command   uint16
	Checksum  uint16
	SessionID uint16
	ReplyID   uint16
	Data      []byte
}

// checksum is the terminal's 16-bit one's-complement style sum over buf.
func checksum(buf []byte) uint16 {
	sum := 0
	i := 0
	for ; i+1 < len(buf); i += 2 {
		sum += int(binary.LittleEndian.Uint16(buf[i:]))
		if sum > ushrtMax {
			sum -= ushrtMax
		}
	}
	if i < len(buf) {
		sum += int(buf[i])
	}
	for sum > ushrtMax {
		sum -= ushrtMax
	}
	sum = ^sum
	for sum < 0 {
		sum += ushrtMax
	}
	return uint16(sum)
}

// marshalPayload encodes the packet header and data with a fresh checksum.
func (p *Packet) marshalPayload() []byte {
	buf := make([]byte, packetHeaderSize+len(p.Data))
	binary.LittleEndian.PutUint16(buf[0:], p.Command)
	binary.LittleEndian.PutUint16(buf[2:], 0)
	binary.LittleEndian.PutUint16(buf[4:], p.SessionID)
	binary.LittleEndian.PutUint16(buf[6:], p.ReplyID)
	copy(buf[packetHeaderSize:], p.Data)

	p.Checksum = checksum(buf)
	binary.LittleEndian.PutUint16(buf[2:], p.Checksum)
	return buf
}

// MarshalFrame encodes the packet inside a TCP frame.
func (p *Packet) MarshalFrame() []byte {
	payload := p.marshalPayload()
	frame := make([]byte, tcpHeaderSize+len(payload))
	binary.LittleEndian.PutUint16(frame[0:], magic1)
	binary.LittleEndian.PutUint16(frame[2:], magic2)
	binary.LittleEndian.PutUint32(frame[4:], uint32(len(payload)))
	copy(frame[tcpHeaderSize:], payload)
	return frame
}

// ReadPacket reads one TCP frame from r and decodes its packet.
func ReadPacket(r io.Reader) (*Packet, error) {
	var hdr [tcpHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	if binary.LittleEndian.Uint16(hdr[0:]) != magic1 || binary.LittleEndian.Uint16(hdr[2:]) != magic2 {
		return nil, fmt.Errorf("%w: % x", ErrBadHeader, hdr[:4])
	}
	length := binary.LittleEndian.Uint32(hdr[4:])
	if length < packetHeaderSize {
		return nil, fmt.Errorf("%w: frame length %d", ErrShortPayload, length)
	}
	if length > maxPacketSize {
		return nil, fmt.Errorf("%w: frame length %d exceeds limit", ErrBadHeader, length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return parsePayload(payload)
}

func parsePayload(payload []byte) (*Packet, error) {
	if len(payload) < packetHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortPayload, len(payload))
	}
	p := &Packet{
		Command:   binary.LittleEndian.Uint16(payload[0:]),
		Checksum:  binary.LittleEndian.Uint16(payload[2:]),
		SessionID: binary.LittleEndian.Uint16(payload[4:]),
		ReplyID:   binary.LittleEndian.Uint16(payload[6:]),
		Data:      payload[packetHeaderSize:],
	}

	check := make([]byte, len(payload))
	copy(check, payload)
	check[2], check[3] = 0, 0
	if want := checksum(check); want != p.Checksum {
		return nil, fmt.Errorf("%w: got %#04x, want %#04x", ErrChecksum, p.Checksum, want)
	}
	return p, nil
}

// nextReplyID advances the request counter, wrapping before 65535.
func nextReplyID(id uint16) uint16 {
	id++
	if id >= ushrtMax {
		id -= ushrtMax
	}
	return id
}
