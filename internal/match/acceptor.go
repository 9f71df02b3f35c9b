package match

import (
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"
)

const DefaultAcceptPoll = 50 * time.Millisecond

// Listener is a net.Listener whose Accept can be bounded by a deadline.
// *net.TCPListener satisfies it.
type Listener interface {
	net.Listener
	SetDeadline(t time.Time) error
}

type AcceptorOptions struct {
	Poll   time.Duration // 0 = DefaultAcceptPoll
	Logger *slog.Logger
}

// Acceptor waits for exactly one peer on a listener in the background.
// Start and Stop are idempotent; Stop returns only after the background
// goroutine has exited. Once a peer is accepted the Acceptor is spent.
type Acceptor struct {
	ln   Listener
	poll time.Duration
	log  *slog.Logger

	runMu sync.Mutex
	stop  chan struct{}
	wg    sync.WaitGroup

	mu    sync.Mutex
	conn  net.Conn
	taken bool
	done  chan struct{}
}

func NewAcceptor(ln Listener, opts AcceptorOptions) *Acceptor {
	if opts.Poll <= 0 {
		opts.Poll = DefaultAcceptPoll
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Acceptor{
		ln:   ln,
		poll: opts.Poll,
		log:  opts.Logger,
		done: make(chan struct{}),
	}
}

func (a *Acceptor) Start() {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.stop != nil || a.Accepted() {
		return
	}
	a.stop = make(chan struct{})
	a.wg.Add(1)
	go a.run(a.stop)
	a.log.Debug("accepting", slog.String("addr", a.ln.Addr().String()))
}

func (a *Acceptor) Stop() {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.stop == nil {
		return
	}
	close(a.stop)
	a.stop = nil
	a.wg.Wait()
}

func (a *Acceptor) Running() bool {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	return a.stop != nil && !a.Accepted()
}

// Done is closed once a peer has been accepted.
func (a *Acceptor) Done() <-chan struct{} { return a.done }

func (a *Acceptor) Accepted() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}

// Take hands the accepted stream to the caller. It returns nil before a
// peer is accepted and on every call after the first successful one.
func (a *Acceptor) Take() net.Conn {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil || a.taken {
		return nil
	}
	a.taken = true
	return a.conn
}

// Close drops an accepted stream nobody took.
func (a *Acceptor) Close() error {
	a.Stop()
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn != nil && !a.taken {
		a.taken = true
		return a.conn.Close()
	}
	return nil
}

func (a *Acceptor) run(stop <-chan struct{}) {
	defer a.wg.Done()
	for {
		select {
		case <-stop:
			return
		default:
		}

		if err := a.ln.SetDeadline(time.Now().Add(a.poll)); err != nil {
			a.log.Warn("set accept deadline", slog.Any("err", err))
			return
		}
		nc, err := a.ln.Accept()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			a.log.Warn("accept failed", slog.Any("err", err))
			select {
			case <-stop:
				return
			case <-time.After(a.poll):
			}
			continue
		}

		a.mu.Lock()
		a.conn = nc
		a.mu.Unlock()
		close(a.done)
		a.log.Info("peer accepted", slog.String("peer", nc.RemoteAddr().String()))
		return
	}
}
