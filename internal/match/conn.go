package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kushgupta-hiver/lanconnect4/internal/engine"
	"github.com/kushgupta-hiver/lanconnect4/internal/proto"
)

// Conn is an established game stream with one opponent. It is owned by
// a single session; SendMove and ReceiveMove are not meant to be called
// concurrently with themselves.
type Conn struct {
	id       string
	nc       net.Conn
	role     engine.Player
	username string
	opponent string
	log      *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

func newConn(nc net.Conn, role engine.Player, username, opponent string, log *slog.Logger) *Conn {
	if log == nil {
		log = slog.Default()
	}
	id := uuid.NewString()
	return &Conn{
		id:       id,
		nc:       nc,
		role:     role,
		username: username,
		opponent: opponent,
		log:      log.With(slog.String("conn", id), slog.String("peer", nc.RemoteAddr().String())),
	}
}

func (c *Conn) ID() string               { return c.id }
func (c *Conn) Role() engine.Player      { return c.role }
func (c *Conn) Username() string         { return c.username }
func (c *Conn) OpponentUsername() string { return c.opponent }
func (c *Conn) RemoteAddr() net.Addr     { return c.nc.RemoteAddr() }
func (c *Conn) Logger() *slog.Logger     { return c.log }

func (c *Conn) SendMove(column int) error {
	if column < 0 {
		return fmt.Errorf("send move: negative column %d", column)
	}
	return proto.WriteMove(c.nc, uint32(column))
}

// ReceiveMove blocks until the opponent's next move arrives or ctx ends.
func (c *Conn) ReceiveMove(ctx context.Context) (int, error) {
	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		_ = c.nc.SetReadDeadline(time.Now())
		close(fired)
	})
	defer func() {
		// A cancellation that fired leaves a past deadline behind; clear
		// it so the stream stays readable.
		if !stop() {
			<-fired
			_ = c.nc.SetReadDeadline(time.Time{})
		}
	}()

	col, err := proto.ReadMove(c.nc)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, err
	}
	// Columns past MaxInt32 cannot index any board; fold them to -1 so
	// the caller rejects them as out of range.
	if col > 1<<31-1 {
		return -1, nil
	}
	return int(col), nil
}

// Close releases the stream. Only the first call does any work.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.nc.Close()
		if errors.Is(c.closeErr, net.ErrClosed) {
			c.closeErr = nil
		}
		c.log.Debug("connection closed")
	})
	return c.closeErr
}
