package lobby

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"slices"
	"sync"
	"time"

	"golang.org/x/net/ipv6"

	"github.com/kushgupta-hiver/lanconnect4/internal/engine"
	"github.com/kushgupta-hiver/lanconnect4/internal/match"
	"github.com/kushgupta-hiver/lanconnect4/internal/proto"
)

// How long a drain waits for one more pending datagram.
const drainWait = time.Millisecond

// Lobby is an advertised game as last seen by a Registry.
type Lobby struct {
	proto.Advert
	Addr     netip.Addr
	LastSeen time.Time
}

// Peer is the stream address to join this lobby.
func (l Lobby) Peer() match.Peer {
	return match.Peer{
		Address: netip.AddrPortFrom(l.Addr, l.Port).String(),
		Name:    l.HostName,
	}
}

type RegistryOptions struct {
	Timeout   time.Duration    // 0 = DefaultTimeout
	Interface *net.Interface   // nil = every multicast-capable interface
	Clock     func() time.Time // nil = time.Now
	Logger    *slog.Logger
}

// Registry collects lobby adverts keyed by sender address. Entries that
// have not been refreshed within the timeout are never returned.
type Registry struct {
	timeout time.Duration
	now     func() time.Time
	log     *slog.Logger
	conn    *net.UDPConn

	mu      sync.Mutex
	entries map[netip.Addr]Lobby
	buf     []byte

	closeOnce sync.Once
	closeErr  error
}

// NewRegistry returns a registry with no socket; adverts arrive via Feed.
func NewRegistry(opts RegistryOptions) *Registry {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Registry{
		timeout: opts.Timeout,
		now:     opts.Clock,
		log:     opts.Logger,
		entries: make(map[netip.Addr]Lobby),
		buf:     make([]byte, 2*proto.AdvertSize),
	}
}

// Listen joins group and returns a registry that drains it on every
// Lobbies call.
func Listen(group *net.UDPAddr, opts RegistryOptions) (*Registry, error) {
	r := NewRegistry(opts)

	conn, err := net.ListenMulticastUDP("udp6", opts.Interface, group)
	if err != nil {
		return nil, fmt.Errorf("join %s: %w", group, err)
	}
	if opts.Interface == nil {
		joinAll(ipv6.NewPacketConn(conn), group, r.log)
	}
	r.conn = conn
	r.log = r.log.With(slog.String("group", group.String()))
	r.log.Info("listening for lobbies")
	return r, nil
}

// joinAll adds group membership on every up, multicast-capable
// interface so adverts arriving on any LAN segment are seen.
func joinAll(pc *ipv6.PacketConn, group *net.UDPAddr, log *slog.Logger) {
	ifaces, err := net.Interfaces()
	if err != nil {
		log.Debug("list interfaces", slog.Any("err", err))
		return
	}
	for i := range ifaces {
		ifi := &ifaces[i]
		if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagMulticast == 0 {
			continue
		}
		if err := pc.JoinGroup(ifi, &net.UDPAddr{IP: group.IP}); err != nil {
			// Already a member via the default interface, or no IPv6.
			log.Debug("join group", slog.String("iface", ifi.Name), slog.Any("err", err))
		}
	}
}

// Feed records one datagram received from src.
func (r *Registry) Feed(src netip.Addr, datagram []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feedLocked(src, datagram)
}

func (r *Registry) feedLocked(src netip.Addr, datagram []byte) {
	if proto.IsClosedNotice(datagram) {
		if _, ok := r.entries[src]; ok {
			delete(r.entries, src)
			r.log.Debug("lobby closed", slog.String("addr", src.String()))
		}
		return
	}
	adv, err := proto.UnmarshalAdvert(datagram)
	if err != nil {
		r.log.Debug("dropping datagram", slog.String("addr", src.String()), slog.Any("err", err))
		return
	}
	if err := engine.CheckDimensions(int(adv.Rows), int(adv.Columns), int(adv.ConnectN)); err != nil {
		r.log.Debug("dropping advert", slog.String("addr", src.String()), slog.Any("err", err))
		return
	}
	if _, seen := r.entries[src]; !seen {
		r.log.Debug("lobby found", slog.String("addr", src.String()), slog.String("lobby", adv.LobbyName))
	}
	r.entries[src] = Lobby{Advert: adv, Addr: src, LastSeen: r.now()}
}

// Lobbies drains pending adverts, prunes stale entries and returns the
// rest ordered by lobby name, then address.
func (r *Registry) Lobbies() []Lobby {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != nil {
		r.drainLocked()
	}
	r.pruneLocked()

	out := make([]Lobby, 0, len(r.entries))
	for _, l := range r.entries {
		out = append(out, l)
	}
	slices.SortFunc(out, func(a, b Lobby) int {
		if c := cmp.Compare(a.LobbyName, b.LobbyName); c != 0 {
			return c
		}
		return a.Addr.Compare(b.Addr)
	})
	return out
}

func (r *Registry) drainLocked() {
	for {
		if err := r.conn.SetReadDeadline(time.Now().Add(drainWait)); err != nil {
			r.log.Warn("set read deadline", slog.Any("err", err))
			return
		}
		n, src, err := r.conn.ReadFromUDPAddrPort(r.buf)
		if err != nil {
			var ne net.Error
			if !(errors.As(err, &ne) && ne.Timeout()) && !errors.Is(err, net.ErrClosed) {
				r.log.Warn("read advert", slog.Any("err", err))
			}
			return
		}
		r.feedLocked(src.Addr(), r.buf[:n])
	}
}

func (r *Registry) pruneLocked() {
	now := r.now()
	for addr, l := range r.entries {
		if now.Sub(l.LastSeen) > r.timeout {
			delete(r.entries, addr)
			r.log.Debug("lobby timed out", slog.String("addr", addr.String()))
		}
	}
}

func (r *Registry) Close() error {
	r.closeOnce.Do(func() {
		if r.conn != nil {
			r.closeErr = r.conn.Close()
		}
	})
	return r.closeErr
}
