// Package config gathers every tunable of the game in one place.
// Values come from defaults, then LC4_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kushgupta-hiver/lanconnect4/internal/engine"
	"github.com/kushgupta-hiver/lanconnect4/internal/lobby"
	"github.com/kushgupta-hiver/lanconnect4/internal/match"
)

type Config struct {
	GroupIP   string
	GroupPort int
	Interface string // "" = all multicast interfaces
	Hops      int

	AdvertiseInterval time.Duration
	LobbyTimeout      time.Duration
	JoinTimeout       time.Duration
	AcceptPoll        time.Duration
	HandshakeTimeout  time.Duration // 0 = wait for the joiner forever

	Rows     int
	Columns  int
	ConnectN int

	// WebSocket transport instead of raw TCP when set, e.g. ":8000".
	WSAddr string

	LogLevel slog.Level
}

func Default() Config {
	return Config{
		GroupIP:           lobby.DefaultGroupIP,
		GroupPort:         lobby.DefaultPort,
		Hops:              lobby.DefaultHops,
		AdvertiseInterval: lobby.DefaultInterval,
		LobbyTimeout:      lobby.DefaultTimeout,
		JoinTimeout:       match.DefaultJoinTimeout,
		AcceptPoll:        match.DefaultAcceptPoll,
		Rows:              engine.DefaultRows,
		Columns:           engine.DefaultColumns,
		ConnectN:          engine.DefaultConnectN,
		LogLevel:          slog.LevelWarn,
	}
}

// Load returns Default overridden by the environment.
func Load() (Config, error) {
	return FromEnv(os.Getenv)
}

// FromEnv is Load with an explicit lookup, for tests.
func FromEnv(getenv func(string) string) (Config, error) {
	c := Default()
	var errs []error

	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("LC4_GROUP", &c.GroupIP)
	num("LC4_PORT", &c.GroupPort)
	str("LC4_IFACE", &c.Interface)
	num("LC4_HOPS", &c.Hops)
	dur("LC4_ADVERTISE_INTERVAL", &c.AdvertiseInterval)
	dur("LC4_LOBBY_TIMEOUT", &c.LobbyTimeout)
	dur("LC4_JOIN_TIMEOUT", &c.JoinTimeout)
	dur("LC4_ACCEPT_POLL", &c.AcceptPoll)
	dur("LC4_HANDSHAKE_TIMEOUT", &c.HandshakeTimeout)
	num("LC4_ROWS", &c.Rows)
	num("LC4_COLUMNS", &c.Columns)
	num("LC4_CONNECT", &c.ConnectN)
	str("LC4_WS_ADDR", &c.WSAddr)
	if v := getenv("LC4_LOG_LEVEL"); v != "" {
		if err := c.LogLevel.UnmarshalText([]byte(strings.ToUpper(v))); err != nil {
			errs = append(errs, fmt.Errorf("LC4_LOG_LEVEL: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	var errs []error
	ip := net.ParseIP(c.GroupIP)
	if ip == nil || ip.To4() != nil || !ip.IsMulticast() {
		errs = append(errs, fmt.Errorf("group %q is not an IPv6 multicast address", c.GroupIP))
	}
	if c.GroupPort < 1 || c.GroupPort > 65535 {
		errs = append(errs, fmt.Errorf("group port %d out of range", c.GroupPort))
	}
	if c.Hops < 1 || c.Hops > 255 {
		errs = append(errs, fmt.Errorf("hops %d out of range", c.Hops))
	}
	for name, d := range map[string]time.Duration{
		"advertise interval": c.AdvertiseInterval,
		"lobby timeout":      c.LobbyTimeout,
		"join timeout":       c.JoinTimeout,
		"accept poll":        c.AcceptPoll,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.HandshakeTimeout < 0 {
		errs = append(errs, errors.New("handshake timeout must not be negative"))
	}
	if _, err := engine.New(c.Rows, c.Columns, c.ConnectN); err != nil {
		errs = append(errs, fmt.Errorf("board %dx%d connect %d: %w", c.Rows, c.Columns, c.ConnectN, err))
	}
	return errors.Join(errs...)
}

func (c Config) Group() *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP(c.GroupIP), Port: c.GroupPort}
}

// MulticastInterface resolves Interface; nil means "let the system pick".
func (c Config) MulticastInterface() (*net.Interface, error) {
	if c.Interface == "" {
		return nil, nil
	}
	ifi, err := net.InterfaceByName(c.Interface)
	if err != nil {
		return nil, fmt.Errorf("interface %q: %w", c.Interface, err)
	}
	return ifi, nil
}

func (c Config) NewBoard() (*engine.Board, error) {
	return engine.New(c.Rows, c.Columns, c.ConnectN)
}
