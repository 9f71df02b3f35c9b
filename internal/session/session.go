// Package session plays one game of Connect Four against a remote
// opponent over an established connection.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kushgupta-hiver/lanconnect4/internal/engine"
)

var (
	// ErrProtocol ends a session whose opponent sent a move the board
	// cannot take: out of range, into a full column, or after the end.
	ErrProtocol = errors.New("protocol fault")
	// ErrQuit is returned by a Prompter when the local player gives up.
	ErrQuit = errors.New("player quit")

	errNoPrompter = errors.New("session has no prompter")
)

// Stream is the game connection a session drives. *match.Conn
// satisfies it.
type Stream interface {
	Role() engine.Player
	Username() string
	OpponentUsername() string
	SendMove(column int) error
	ReceiveMove(ctx context.Context) (int, error)
	Close() error
}

// Prompter supplies the local player's chosen column.
type Prompter interface {
	Column(ctx context.Context, b *engine.Board) (int, error)
}

type PrompterFunc func(ctx context.Context, b *engine.Board) (int, error)

func (f PrompterFunc) Column(ctx context.Context, b *engine.Board) (int, error) { return f(ctx, b) }

// Renderer shows game progress. Every method may be a no-op.
type Renderer interface {
	Turn(b *engine.Board, yours bool, player string)
	Rejected(column int, reason error)
	Result(b *engine.Board, r Result)
}

type Verdict int

const (
	Won Verdict = iota + 1
	Lost
	Drew
)

func (v Verdict) String() string {
	switch v {
	case Won:
		return "you won"
	case Lost:
		return "you lost"
	case Drew:
		return "draw"
	}
	return "unknown"
}

type Result struct {
	Verdict     Verdict
	Winner      engine.Player // Empty on a draw
	Connections []engine.Connection
	Moves       int
}

type Options struct {
	Prompter Prompter
	Renderer Renderer // nil = render nothing
	Logger   *slog.Logger
}

// Session is the whole context of one game; nothing is kept in package
// state. The board is only touched by Run's goroutine.
type Session struct {
	board  *engine.Board
	conn   Stream
	prompt Prompter
	render Renderer
	log    *slog.Logger
}

func New(board *engine.Board, conn Stream, opts Options) *Session {
	if opts.Renderer == nil {
		opts.Renderer = nopRenderer{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Session{
		board:  board,
		conn:   conn,
		prompt: opts.Prompter,
		render: opts.Renderer,
		log:    opts.Logger.With(slog.String("role", conn.Role().String())),
	}
}

func (s *Session) Board() *engine.Board { return s.board }

// Run alternates local and remote moves until the board is over. The
// connection is closed when Run returns, whatever the outcome.
func (s *Session) Run(ctx context.Context) (Result, error) {
	defer s.conn.Close()
	s.log.Info("game started",
		slog.String("opponent", s.conn.OpponentUsername()),
		slog.Int("rows", s.board.Rows()),
		slog.Int("columns", s.board.Columns()),
		slog.Int("connect", s.board.ConnectN()),
	)

	for !s.board.IsOver() {
		var err error
		if s.board.Turn() == s.conn.Role() {
			err = s.localTurn(ctx)
		} else {
			err = s.remoteTurn(ctx)
		}
		if err != nil {
			s.log.Warn("game aborted", slog.Any("err", err))
			return Result{}, err
		}
	}

	res := s.result()
	s.log.Info("game over", slog.String("verdict", res.Verdict.String()), slog.Int("moves", res.Moves))
	s.render.Result(s.board, res)
	return res, nil
}

func (s *Session) localTurn(ctx context.Context) error {
	if s.prompt == nil {
		return errNoPrompter
	}
	s.render.Turn(s.board, true, s.conn.Username())
	for {
		col, err := s.prompt.Column(ctx, s.board)
		if err != nil {
			return err
		}
		if err := s.board.Apply(col); err != nil {
			s.render.Rejected(col, err)
			continue
		}
		s.log.Debug("sent move", slog.Int("column", col))
		if err := s.conn.SendMove(col); err != nil {
			return fmt.Errorf("send move: %w", err)
		}
		return nil
	}
}

func (s *Session) remoteTurn(ctx context.Context) error {
	s.render.Turn(s.board, false, s.conn.OpponentUsername())
	col, err := s.conn.ReceiveMove(ctx)
	if err != nil {
		return fmt.Errorf("receive move: %w", err)
	}
	if err := s.board.Apply(col); err != nil {
		return fmt.Errorf("%w: opponent played column %d: %w", ErrProtocol, col, err)
	}
	s.log.Debug("received move", slog.Int("column", col))
	return nil
}

func (s *Session) result() Result {
	res := Result{
		Verdict:     Drew,
		Connections: s.board.WinningConnections(),
		Moves:       s.board.Moves(),
	}
	if w, ok := s.board.Winner(); ok {
		res.Winner = w
		res.Verdict = Lost
		if w == s.conn.Role() {
			res.Verdict = Won
		}
	}
	return res
}

type nopRenderer struct{}

func (nopRenderer) Turn(*engine.Board, bool, string) {}
func (nopRenderer) Rejected(int, error)              {}
func (nopRenderer) Result(*engine.Board, Result)     {}
