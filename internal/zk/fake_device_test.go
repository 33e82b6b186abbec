// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package zk

import (
	"encoding/binary"
	"net"
	"sync"
	"testing"
	"time"
)

// fakeDevice emulates a terminal on a loopback listener.
type fakeDevice struct {
	t        *testing.T
	ln       net.Listener
	users    []byte // user table including leading size
	attlog   []byte // attendance table including leading size
	inline   bool   // answer PREPARE_BUFFER with DATA directly
	stream   bool   // answer READ_BUFFER with PREPARE_DATA + DATA packets
	unauth   bool
	silent   bool // never answer
	session  uint16
	mu       sync.Mutex
	commands []uint16
	served   chan struct{}
}

func newFakeDevice(t *testing.T) *fakeDevice {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	d := &fakeDevice{t: t, ln: ln, session: 0x4242, served: make(chan struct{})}
	t.Cleanup(func() { _ = ln.Close() })
	return d
}

func (d *fakeDevice) addr() string { return d.ln.Addr().String() }

func (d *fakeDevice) seen() []uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]uint16(nil), d.commands...)
}

func (d *fakeDevice) serve() {
	go func() {
		defer close(d.served)
		conn, err := d.ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.SetDeadline(time.Now().Add(10 * time.Second))

		var staged []byte
		for {
			req, err := ReadPacket(conn)
			if err != nil {
				return
			}
			d.mu.Lock()
			d.commands = append(d.commands, req.Command)
			d.mu.Unlock()
			if d.silent {
				continue
			}

			reply := func(cmd uint16, data []byte) {
				p := &Packet{Command: cmd, SessionID: d.session, ReplyID: req.ReplyID, Data: data}
				if _, err := conn.Write(p.MarshalFrame()); err != nil {
					d.t.Errorf("fake device write: %v", err)
				}
			}

			switch req.Command {
			case CmdConnect:
				if d.unauth {
					reply(AckUnauth, nil)
					continue
				}
				reply(AckOK, nil)
			case CmdPrepareBuffer:
				table := binary.LittleEndian.Uint16(req.Data[1:3])
				staged = d.attlog
				if table == CmdUserTempRRQ {
					staged = d.users
				}
				if d.inline {
					reply(CmdData, staged)
					continue
				}
				resp := make([]byte, 9)
				binary.LittleEndian.PutUint32(resp[1:5], uint32(len(staged)))
				reply(AckOK, resp)
			case CmdReadBuffer:
				start := binary.LittleEndian.Uint32(req.Data[0:4])
				size := binary.LittleEndian.Uint32(req.Data[4:8])
				chunk := staged[start : start+size]
				if !d.stream {
					reply(CmdData, chunk)
					continue
				}
				head := make([]byte, 4)
				binary.LittleEndian.PutUint32(head, size)
				reply(CmdPrepareData, head)
				half := len(chunk) / 2
				reply(CmdData, chunk[:half])
				reply(CmdData, chunk[half:])
				reply(AckOK, nil)
			case CmdFreeData:
				reply(AckOK, nil)
			case CmdExit:
				reply(AckOK, nil)
				return
			default:
				reply(AckError, nil)
			}
		}
	}()
}

// table prefixes records with their total size.
func table(records ...[]byte) []byte {
	var body []byte
	for _, r := range records {
		body = append(body, r...)
	}
	out := make([]byte, 4, 4+len(body))
	binary.LittleEndian.PutUint32(out, uint32(len(body)))
	return append(out, body...)
}

func userRecord72(uid uint16, name, userID string) []byte {
	rec := make([]byte, userRecordV2)
	binary.LittleEndian.PutUint16(rec[0:], uid)
	copy(rec[11:35], name)
	binary.LittleEndian.PutUint32(rec[35:], 9900+uint32(uid))
	copy(rec[48:72], userID)
	return rec
}

func userRecord28(uid uint16, name string, userID uint32) []byte {
	rec := make([]byte, userRecordV1)
	binary.LittleEndian.PutUint16(rec[0:], uid)
	copy(rec[8:16], name)
	binary.LittleEndian.PutUint32(rec[24:], userID)
	return rec
}

func attRecord40(userID string, ts time.Time, status, punch uint8) []byte {
	rec := make([]byte, attRecordV2)
	binary.LittleEndian.PutUint16(rec[0:], 1)
	copy(rec[2:26], userID)
	rec[26] = status
	binary.LittleEndian.PutUint32(rec[27:], EncodeTime(ts))
	rec[31] = punch
	return rec
}

func attRecord16(userID uint32, ts time.Time, status, punch uint8) []byte {
	rec := make([]byte, attRecordV1)
	binary.LittleEndian.PutUint32(rec[0:], userID)
	binary.LittleEndian.PutUint32(rec[4:], EncodeTime(ts))
	rec[8] = status
	rec[9] = punch
	return rec
}

func attRecord8(uid uint16, ts time.Time, status, punch uint8) []byte {
	rec := make([]byte, attRecordShort)
	binary.LittleEndian.PutUint16(rec[0:], uid)
	rec[2] = status
	binary.LittleEndian.PutUint32(rec[3:], EncodeTime(ts))
	rec[7] = punch
	return rec
}
