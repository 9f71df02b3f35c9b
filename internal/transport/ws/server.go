// Package ws carries the game stream over WebSocket binary messages for
// networks where peers can reach each other over HTTP but not raw TCP.
// The bytes on the stream are exactly those of the TCP transport.
package ws

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

// Config allows tuning the upgrade.
type Config struct {
	// OriginPatterns lists extra origins allowed to connect from a browser.
	OriginPatterns []string
	// Addr is reported by Listener.Addr; nil reports "websocket".
	Addr   net.Addr
	Logger *slog.Logger
}

// Listener is an http.Handler that upgrades requests and queues the
// resulting streams for Accept. It satisfies match.Listener, so a
// match.Acceptor can wait on it exactly as on a TCP listener.
type Listener struct {
	cfg   Config
	log   *slog.Logger
	conns chan net.Conn

	mu       sync.Mutex
	deadline time.Time

	done      chan struct{}
	closeOnce sync.Once
}

func NewListener(cfg Config) *Listener {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Addr == nil {
		cfg.Addr = addr("websocket")
	}
	return &Listener{
		cfg:   cfg,
		log:   cfg.Logger,
		conns: make(chan net.Conn, 1),
		done:  make(chan struct{}),
	}
}

func (l *Listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case <-l.done:
		http.Error(w, "lobby closed", http.StatusServiceUnavailable)
		return
	default:
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: l.cfg.OriginPatterns})
	if err != nil {
		l.log.Debug("websocket upgrade failed", slog.String("remote", r.RemoteAddr), slog.Any("err", err))
		return
	}
	// The stream outlives this request, so it gets its own context.
	nc := websocket.NetConn(context.Background(), c, websocket.MessageBinary)

	select {
	case l.conns <- nc:
		l.log.Debug("websocket peer queued", slog.String("remote", r.RemoteAddr))
	default:
		c.Close(websocket.StatusTryAgainLater, "lobby full")
	}
}

func (l *Listener) Accept() (net.Conn, error) {
	l.mu.Lock()
	dl := l.deadline
	l.mu.Unlock()

	var expired <-chan time.Time
	if !dl.IsZero() {
		d := time.Until(dl)
		if d <= 0 {
			return nil, os.ErrDeadlineExceeded
		}
		t := time.NewTimer(d)
		defer t.Stop()
		expired = t.C
	}

	select {
	case nc := <-l.conns:
		return nc, nil
	case <-l.done:
		return nil, net.ErrClosed
	case <-expired:
		return nil, os.ErrDeadlineExceeded
	}
}

// SetDeadline bounds future Accept calls. The zero time means no bound.
func (l *Listener) SetDeadline(t time.Time) error {
	l.mu.Lock()
	l.deadline = t
	l.mu.Unlock()
	return nil
}

// Close rejects new upgrades and drops queued streams nobody accepted.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		close(l.done)
		for {
			select {
			case nc := <-l.conns:
				_ = nc.Close()
			default:
				return
			}
		}
	})
	return nil
}

func (l *Listener) Addr() net.Addr { return l.cfg.Addr }

type addr string

func (a addr) Network() string { return "websocket" }
func (a addr) String() string  { return string(a) }
