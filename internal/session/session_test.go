package session_test

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/kushgupta-hiver/lanconnect4/internal/engine"
	"github.com/kushgupta-hiver/lanconnect4/internal/match"
	"github.com/kushgupta-hiver/lanconnect4/internal/session"
)

// script answers prompts from a fixed list of columns.
type script struct {
	mu   sync.Mutex
	cols []int
}

func (s *script) Column(context.Context, *engine.Board) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.cols) == 0 {
		return 0, session.ErrQuit
	}
	c := s.cols[0]
	s.cols = s.cols[1:]
	return c, nil
}

type recorder struct {
	mu       sync.Mutex
	rejected []int
	result   *session.Result
}

func (r *recorder) Turn(*engine.Board, bool, string) {}
func (r *recorder) Rejected(col int, _ error) {
	r.mu.Lock()
	r.rejected = append(r.rejected, col)
	r.mu.Unlock()
}
func (r *recorder) Result(_ *engine.Board, res session.Result) {
	r.mu.Lock()
	r.result = &res
	r.mu.Unlock()
}

func pair(t *testing.T) (host, joiner *match.Conn) {
	t.Helper()
	hc, jc := net.Pipe()
	ch := make(chan *match.Conn, 1)
	go func() {
		c, err := match.DialConn(jc, "bob", "alice", nil)
		if err != nil {
			t.Errorf("dial conn: %v", err)
		}
		ch <- c
	}()
	host, err := match.AcceptHandshake(hc, "alice", time.Second, nil)
	if err != nil {
		t.Fatalf("accept handshake: %v", err)
	}
	return host, <-ch
}

type outcome struct {
	res session.Result
	err error
}

func runBoth(t *testing.T, rows, cols, n int, hostCols, joinCols []int) (h, j outcome, hr, jr *recorder) {
	t.Helper()
	hostConn, joinConn := pair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	hb, _ := engine.New(rows, cols, n)
	jb, _ := engine.New(rows, cols, n)
	hr, jr = &recorder{}, &recorder{}
	hs := session.New(hb, hostConn, session.Options{Prompter: &script{cols: hostCols}, Renderer: hr})
	js := session.New(jb, joinConn, session.Options{Prompter: &script{cols: joinCols}, Renderer: jr})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); h.res, h.err = hs.Run(ctx) }()
	go func() { defer wg.Done(); j.res, j.err = js.Run(ctx) }()
	wg.Wait()

	if hb.String() != jb.String() {
		t.Fatalf("boards diverged:\nhost\n%s\njoiner\n%s", hb, jb)
	}
	return h, j, hr, jr
}

func TestSession_HostWins(t *testing.T) {
	h, j, hr, jr := runBoth(t, 6, 7, 4, []int{0, 1, 2, 3}, []int{0, 1, 2})

	if h.err != nil || j.err != nil {
		t.Fatalf("unexpected errors host=%v joiner=%v", h.err, j.err)
	}
	if h.res.Verdict != session.Won || j.res.Verdict != session.Lost {
		t.Fatalf("expected host won / joiner lost, got %v / %v", h.res.Verdict, j.res.Verdict)
	}
	if h.res.Winner != engine.PlayerOne || h.res.Moves != 7 {
		t.Fatalf("unexpected result %+v", h.res)
	}
	want := engine.Connection{{Row: 0, Col: 0}, {Row: 0, Col: 1}, {Row: 0, Col: 2}, {Row: 0, Col: 3}}
	if len(h.res.Connections) != 1 || len(h.res.Connections[0]) != 4 || h.res.Connections[0][3] != want[3] {
		t.Fatalf("unexpected connections %v", h.res.Connections)
	}
	if hr.result == nil || jr.result == nil {
		t.Fatalf("result not rendered")
	}
}

func TestSession_JoinerWins(t *testing.T) {
	h, j, _, _ := runBoth(t, 6, 7, 4, []int{0, 1, 0, 1}, []int{6, 6, 6, 6})

	if h.err != nil || j.err != nil {
		t.Fatalf("unexpected errors host=%v joiner=%v", h.err, j.err)
	}
	if j.res.Verdict != session.Won || h.res.Verdict != session.Lost || j.res.Winner != engine.PlayerTwo {
		t.Fatalf("expected joiner to win, got host=%+v joiner=%+v", h.res, j.res)
	}
}

func TestSession_Draw(t *testing.T) {
	h, j, _, _ := runBoth(t, 2, 2, 3, []int{0, 1}, []int{1, 0})

	if h.err != nil || j.err != nil {
		t.Fatalf("unexpected errors host=%v joiner=%v", h.err, j.err)
	}
	if h.res.Verdict != session.Drew || j.res.Verdict != session.Drew || h.res.Winner != engine.Empty {
		t.Fatalf("expected draw, got %+v / %+v", h.res, j.res)
	}
}

func TestSession_RejectedLocalMoveReprompts(t *testing.T) {
	// Column 0 is full after the first two moves; the host then tries it
	// again and an out-of-range column before a legal, winning one.
	h, j, hr, _ := runBoth(t, 2, 4, 2, []int{0, 0, 9, 1, 2}, []int{0, 3, 3})

	if h.err != nil || j.err != nil {
		t.Fatalf("unexpected errors host=%v joiner=%v", h.err, j.err)
	}
	if len(hr.rejected) != 2 || hr.rejected[0] != 0 || hr.rejected[1] != 9 {
		t.Fatalf("expected rejections [0 9], got %v", hr.rejected)
	}
	if h.res.Verdict != session.Won {
		t.Fatalf("expected host to win, got %+v", h.res)
	}
}

func TestSession_RemoteOutOfRangeIsProtocolFault(t *testing.T) {
	hostConn, joinConn := pair(t)
	board := engine.NewStandard()
	js := session.New(board, joinConn, session.Options{Prompter: &script{}})

	go func() { _ = hostConn.SendMove(42) }()
	_, err := js.Run(context.Background())
	if !errors.Is(err, session.ErrProtocol) || !errors.Is(err, engine.ErrColumnOutOfRange) {
		t.Fatalf("expected protocol fault, got %v", err)
	}
	if board.Moves() != 0 {
		t.Fatalf("bad remote move was applied")
	}
	// The session closed its stream.
	if _, err := hostConn.ReceiveMove(context.Background()); err == nil {
		t.Fatalf("expected closed stream")
	}
	_ = hostConn.Close()
}

func TestSession_RemoteFullColumnIsProtocolFault(t *testing.T) {
	hostConn, joinConn := pair(t)
	board, _ := engine.New(1, 3, 3)
	js := session.New(board, joinConn, session.Options{Prompter: &script{cols: []int{1}}})

	go func() {
		_ = hostConn.SendMove(0)
		_, _ = hostConn.ReceiveMove(context.Background())
		_ = hostConn.SendMove(0)
	}()
	_, err := js.Run(context.Background())
	if !errors.Is(err, session.ErrProtocol) || !errors.Is(err, engine.ErrColumnFull) {
		t.Fatalf("expected full-column protocol fault, got %v", err)
	}
	_ = hostConn.Close()
}

func TestSession_QuitClosesConnection(t *testing.T) {
	hostConn, joinConn := pair(t)
	hs := session.New(engine.NewStandard(), hostConn, session.Options{Prompter: &script{}})

	_, err := hs.Run(context.Background())
	if !errors.Is(err, session.ErrQuit) {
		t.Fatalf("expected ErrQuit, got %v", err)
	}
	if _, err := joinConn.ReceiveMove(context.Background()); err == nil {
		t.Fatalf("expected opponent to see the stream end")
	}
	_ = joinConn.Close()
}

func TestSession_ContextCancelWhileWaiting(t *testing.T) {
	hostConn, joinConn := pair(t)
	defer hostConn.Close()
	js := session.New(engine.NewStandard(), joinConn, session.Options{Prompter: &script{}})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := js.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
}
