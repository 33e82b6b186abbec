// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

// Package probe checks terminal reachability with a single ICMP echo. The
// result is advisory: callers log it and still attempt the device protocol.
package probe

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"

	"github.com/tomtom215/attendsync/internal/logging"
	"github.com/tomtom215/attendsync/internal/metrics"
)

// DefaultTimeout bounds one probe.
const DefaultTimeout = 2 * time.Second

// protocolICMP is the IANA protocol number for ICMPv4.
const protocolICMP = 1

// Result is the outcome of one probe.
type Result struct {
	Alive     bool          `json:"alive"`
	CheckedAt time.Time     `json:"checked_at"`
	RTT       time.Duration `json:"rtt_ns,omitempty"`
	Reason    string        `json:"reason,omitempty"`
}

// Prober sends ICMP echo requests.
type Prober struct {
	timeout time.Duration
	now     func() time.Time
	seq     atomic.Uint32
}

// New returns a Prober. A non-positive timeout selects DefaultTimeout.
func New(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{timeout: timeout, now: time.Now}
}

// Probe sends one echo to host. It never returns an error; every failure
// becomes Alive=false with a Reason.
func (p *Prober) Probe(ctx context.Context, host string) Result {
	res := Result{CheckedAt: p.now()}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	rtt, err := p.echo(ctx, host)
	if err != nil {
		res.Reason = err.Error()
		logging.Ctx(ctx).Debug().Err(err).Str("host", host).Msg("Device did not answer ICMP probe")
	} else {
		res.Alive = true
		res.RTT = rtt
	}
	metrics.SetDeviceReachable(res.Alive)
	return res
}

func (p *Prober) echo(ctx context.Context, host string) (time.Duration, error) {
	ip, err := resolveIPv4(ctx, host)
	if err != nil {
		return 0, err
	}

	conn, dst, err := listen(ip)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return 0, fmt.Errorf("set deadline: %w", err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now()) //nolint:errcheck // unblocks ReadFrom on cancel
	})
	defer stop()

	seq := int(p.seq.Add(1) & 0xffff)
	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{
			ID:   os.Getpid() & 0xffff,
			Seq:  seq,
			Data: []byte("attendsync-probe"),
		},
	}
	wb, err := msg.Marshal(nil)
	if err != nil {
		return 0, fmt.Errorf("marshal echo: %w", err)
	}

	start := time.Now()
	if _, err := conn.WriteTo(wb, dst); err != nil {
		return 0, fmt.Errorf("send echo: %w", err)
	}

	rb := make([]byte, 1500)
	for {
		n, peer, err := conn.ReadFrom(rb)
		if err != nil {
			if ctx.Err() != nil {
				return 0, fmt.Errorf("no reply within %v", time.Since(start).Round(time.Millisecond))
			}
			return 0, fmt.Errorf("read reply: %w", err)
		}
		if !sameHost(peer, ip) {
			continue
		}
		reply, err := icmp.ParseMessage(protocolICMP, rb[:n])
		if err != nil || reply.Type != ipv4.ICMPTypeEchoReply {
			continue
		}
		// Datagram sockets rewrite the echo ID, so only the sequence is compared.
		if echo, ok := reply.Body.(*icmp.Echo); ok && echo.Seq == seq {
			return time.Since(start), nil
		}
	}
}

// listen opens an unprivileged datagram ICMP socket, falling back to a raw socket.
func listen(ip net.IP) (*icmp.PacketConn, net.Addr, error) {
	conn, err := icmp.ListenPacket("udp4", "0.0.0.0")
	if err == nil {
		return conn, &net.UDPAddr{IP: ip}, nil
	}
	rawConn, rawErr := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if rawErr != nil {
		return nil, nil, fmt.Errorf("open icmp socket: %v; raw: %w", err, rawErr)
	}
	return rawConn, &net.IPAddr{IP: ip}, nil
}

func resolveIPv4(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return v4, nil
		}
		return nil, fmt.Errorf("%s is not an IPv4 address", host)
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", host, err)
	}
	for _, a := range addrs {
		if v4 := a.IP.To4(); v4 != nil {
			return v4, nil
		}
	}
	return nil, fmt.Errorf("resolve %s: no IPv4 address", host)
}

func sameHost(peer net.Addr, ip net.IP) bool {
	switch a := peer.(type) {
	case *net.UDPAddr:
		return a.IP.Equal(ip)
	case *net.IPAddr:
		return a.IP.Equal(ip)
	default:
		return false
	}
}
