// Package lobby advertises hosted games over IPv6 multicast and keeps a
// time-bounded view of the games other hosts advertise.
package lobby

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/net/ipv6"

	"github.com/kushgupta-hiver/lanconnect4/internal/loop"
	"github.com/kushgupta-hiver/lanconnect4/internal/proto"
)

const (
	DefaultGroupIP  = "ff15:2f3c:b5ab:1312:21cc:854d:a0bd:139e"
	DefaultPort     = 18556
	DefaultInterval = time.Second
	DefaultTimeout  = 5 * time.Second
	DefaultHops     = 1
)

// DefaultGroup is the site-local group every lobby is advertised on.
func DefaultGroup() *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP(DefaultGroupIP), Port: DefaultPort}
}

type AdvertiserOptions struct {
	Interval  time.Duration  // 0 = DefaultInterval
	Hops      int            // 0 = DefaultHops
	Interface *net.Interface // nil = system default
	Logger    *slog.Logger
}

// Advertiser sends one lobby record to a multicast group on a fixed
// interval from its own ephemeral socket.
type Advertiser struct {
	group *net.UDPAddr
	conn  *net.UDPConn
	pc    *ipv6.PacketConn
	loop  *loop.Looper
	log   *slog.Logger

	mu     sync.Mutex
	record []byte

	closeOnce sync.Once
	closeErr  error
}

func NewAdvertiser(group *net.UDPAddr, opts AdvertiserOptions) (*Advertiser, error) {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Hops <= 0 {
		opts.Hops = DefaultHops
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	conn, err := net.ListenUDP("udp6", &net.UDPAddr{IP: net.IPv6unspecified})
	if err != nil {
		return nil, fmt.Errorf("open advertising socket: %w", err)
	}
	pc := ipv6.NewPacketConn(conn)
	if err := pc.SetMulticastHopLimit(opts.Hops); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("set hop limit: %w", err)
	}
	if err := pc.SetMulticastLoopback(true); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("enable loopback: %w", err)
	}
	if opts.Interface != nil {
		if err := pc.SetMulticastInterface(opts.Interface); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("set multicast interface: %w", err)
		}
	}

	a := &Advertiser{
		group: group,
		conn:  conn,
		pc:    pc,
		log:   opts.Logger.With(slog.String("group", group.String())),
	}
	a.loop = loop.New(opts.Interval, func(context.Context) {
		if err := a.Advertise(); err != nil {
			a.log.Warn("advertise failed", slog.Any("err", err))
		}
	})
	return a, nil
}

// SetRecord replaces the advertised record. Encoding errors leave the
// previous record in place.
func (a *Advertiser) SetRecord(rec proto.Advert) error {
	data, err := rec.MarshalBinary()
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.record = data
	a.mu.Unlock()
	return nil
}

// Advertise sends the current record once.
func (a *Advertiser) Advertise() error {
	a.mu.Lock()
	data := a.record
	a.mu.Unlock()
	if data == nil {
		return nil
	}
	return a.send(data)
}

func (a *Advertiser) send(data []byte) error {
	if _, err := a.pc.WriteTo(data, nil, a.group); err != nil {
		return fmt.Errorf("send to %s: %w", a.group, err)
	}
	return nil
}

// Start begins periodic advertising; it is a no-op when already running.
func (a *Advertiser) Start() {
	if a.loop.Running() {
		return
	}
	a.loop.Start()
	a.log.Info("advertising started")
}

// Stop halts periodic advertising and waits for an in-flight send.
func (a *Advertiser) Stop() {
	if !a.loop.Running() {
		return
	}
	a.loop.Stop()
	a.log.Info("advertising stopped")
}

func (a *Advertiser) Advertising() bool { return a.loop.Running() }

func (a *Advertiser) LocalAddr() net.Addr { return a.conn.LocalAddr() }

// Close stops advertising, tells listeners the lobby is gone and
// releases the socket.
func (a *Advertiser) Close() error {
	a.closeOnce.Do(func() {
		a.Stop()
		if err := a.send(proto.ClosedNotice()); err != nil {
			a.log.Debug("closed notice not sent", slog.Any("err", err))
		}
		a.closeErr = a.conn.Close()
	})
	return a.closeErr
}
