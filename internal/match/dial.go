package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/kushgupta-hiver/lanconnect4/internal/engine"
	"github.com/kushgupta-hiver/lanconnect4/internal/proto"
)

const DefaultJoinTimeout = 5 * time.Second

var ErrNoConnection = errors.New("no connection obtained")

// Dialer opens the raw stream to a host. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

type DialOptions struct {
	Timeout time.Duration // 0 = DefaultJoinTimeout
	Dialer  Dialer        // nil = &net.Dialer{}
	Logger  *slog.Logger
}

// Peer is where a host listens and the name it advertised.
type Peer struct {
	Address string
	Name    string
}

// Dial connects to a host and introduces username. If the host cannot be
// reached within the timeout, the error wraps ErrNoConnection; the caller
// may retry or pick another lobby.
func Dial(ctx context.Context, host Peer, username string, opts DialOptions) (*Conn, error) {
	if err := proto.Usernames.Validate(username); err != nil {
		return nil, fmt.Errorf("username: %w", err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultJoinTimeout
	}
	if opts.Dialer == nil {
		opts.Dialer = &net.Dialer{}
	}

	dctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	nc, err := opts.Dialer.DialContext(dctx, "tcp", host.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoConnection, err)
	}
	return DialConn(nc, username, host.Name, opts.Logger)
}

// DialConn runs the joining side of the handshake over an already open
// stream. The joiner is always PlayerTwo. nc is closed on failure.
func DialConn(nc net.Conn, username, hostName string, log *slog.Logger) (*Conn, error) {
	if err := proto.WriteHandshake(nc, username); err != nil {
		_ = nc.Close()
		return nil, err
	}
	c := newConn(nc, engine.PlayerTwo, username, hostName, log)
	c.log.Info("joined lobby")
	return c, nil
}

// AcceptHandshake runs the hosting side of the handshake: it reads the
// joiner's username. The host is always PlayerOne. A zero timeout waits
// indefinitely. nc is closed on failure.
func AcceptHandshake(nc net.Conn, hostName string, timeout time.Duration, log *slog.Logger) (*Conn, error) {
	if timeout > 0 {
		if err := nc.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			_ = nc.Close()
			return nil, fmt.Errorf("set handshake deadline: %w", err)
		}
	}
	opponent, err := proto.ReadHandshake(nc)
	if err != nil {
		_ = nc.Close()
		return nil, err
	}
	if timeout > 0 {
		_ = nc.SetReadDeadline(time.Time{})
	}
	c := newConn(nc, engine.PlayerOne, hostName, opponent, log)
	c.log.Info("opponent joined", slog.String("opponent", opponent))
	return c, nil
}
