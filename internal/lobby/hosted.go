package lobby

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/kushgupta-hiver/lanconnect4/internal/match"
	"github.com/kushgupta-hiver/lanconnect4/internal/proto"
)

var ErrNotAccepted = errors.New("no player has joined")

type HostOptions struct {
	Group            *net.UDPAddr // nil = DefaultGroup()
	ListenAddr       string       // "" = any address, ephemeral port
	Interval         time.Duration
	Hops             int
	Interface        *net.Interface
	AcceptPoll       time.Duration
	HandshakeTimeout time.Duration
	Logger           *slog.Logger

	// Listener replaces the TCP listener, e.g. a ws.Listener. Its Addr
	// supplies the advertised port when it is a *net.TCPAddr.
	Listener match.Listener
}

// HostedLobby is a lobby this process owns: a stream listener waiting
// for one opponent and an advertiser announcing it. Advertising and
// accepting are toggled independently.
type HostedLobby struct {
	info      proto.Advert
	ln        match.Listener
	adv       *Advertiser
	acc       *match.Acceptor
	handshake time.Duration
	log       *slog.Logger

	closeOnce sync.Once
}

// Host opens the lobby sockets. The record's Port is replaced with the
// listener's port. Names are checked before any socket is opened.
func Host(info proto.Advert, opts HostOptions) (*HostedLobby, error) {
	if _, err := info.MarshalBinary(); err != nil {
		return nil, err
	}
	if opts.Group == nil {
		opts.Group = DefaultGroup()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	log := opts.Logger.With(slog.String("lobby", info.LobbyName))

	ln := opts.Listener
	if ln == nil {
		laddr := &net.TCPAddr{}
		if opts.ListenAddr != "" {
			var err error
			if laddr, err = net.ResolveTCPAddr("tcp", opts.ListenAddr); err != nil {
				return nil, fmt.Errorf("resolve listen address: %w", err)
			}
		}
		tl, err := net.ListenTCP("tcp", laddr)
		if err != nil {
			return nil, fmt.Errorf("listen: %w", err)
		}
		ln = tl
	}
	if ta, ok := ln.Addr().(*net.TCPAddr); ok {
		info.Port = uint16(ta.Port)
	}

	adv, err := NewAdvertiser(opts.Group, AdvertiserOptions{
		Interval:  opts.Interval,
		Hops:      opts.Hops,
		Interface: opts.Interface,
		Logger:    log,
	})
	if err != nil {
		_ = ln.Close()
		return nil, err
	}
	if err := adv.SetRecord(info); err != nil {
		_ = adv.Close()
		_ = ln.Close()
		return nil, err
	}

	return &HostedLobby{
		info:      info,
		ln:        ln,
		adv:       adv,
		acc:       match.NewAcceptor(ln, match.AcceptorOptions{Poll: opts.AcceptPoll, Logger: log}),
		handshake: opts.HandshakeTimeout,
		log:       log,
	}, nil
}

func (h *HostedLobby) Info() proto.Advert { return h.info }
func (h *HostedLobby) Addr() net.Addr     { return h.ln.Addr() }

func (h *HostedLobby) StartAdvertising() { h.adv.Start() }
func (h *HostedLobby) StopAdvertising()  { h.adv.Stop() }
func (h *HostedLobby) Advertising() bool { return h.adv.Advertising() }

func (h *HostedLobby) StartAccepting() { h.acc.Start() }
func (h *HostedLobby) StopAccepting()  { h.acc.Stop() }

func (h *HostedLobby) Accepted() bool { return h.acc.Accepted() }

// Done is closed once an opponent has connected.
func (h *HostedLobby) Done() <-chan struct{} { return h.acc.Done() }

// Conn reads the opponent's username from the accepted stream and
// returns the game connection. It succeeds at most once.
func (h *HostedLobby) Conn() (*match.Conn, error) {
	nc := h.acc.Take()
	if nc == nil {
		return nil, ErrNotAccepted
	}
	return match.AcceptHandshake(nc, h.info.HostName, h.handshake, h.log)
}

// Close stops advertising and accepting, announces the lobby is gone
// and releases both sockets. An accepted stream already handed out by
// Conn stays open.
func (h *HostedLobby) Close() error {
	var errs []error
	h.closeOnce.Do(func() {
		errs = append(errs, h.adv.Close())
		errs = append(errs, h.acc.Close())
		if err := h.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
		h.log.Info("lobby closed")
	})
	return errors.Join(errs...)
}
