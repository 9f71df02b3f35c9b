package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/kushgupta-hiver/lanconnect4/internal/config"
	"github.com/kushgupta-hiver/lanconnect4/internal/engine"
	"github.com/kushgupta-hiver/lanconnect4/internal/lobby"
	"github.com/kushgupta-hiver/lanconnect4/internal/match"
	"github.com/kushgupta-hiver/lanconnect4/internal/proto"
	"github.com/kushgupta-hiver/lanconnect4/internal/session"
	"github.com/kushgupta-hiver/lanconnect4/internal/textui"
	"github.com/kushgupta-hiver/lanconnect4/internal/transport/ws"
)

const wsPath = "/ws"

type app struct {
	cfg      config.Config
	log      *slog.Logger
	in       *bufio.Scanner
	out      io.Writer
	reg      *lobby.Registry
	ifi      *net.Interface
	username string
	shown    []lobby.Lobby
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := run(cfg, logger, os.Stdin, os.Stdout); err != nil && !errors.Is(err, io.EOF) {
		logger.Error("exiting", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger, stdin io.Reader, out io.Writer) error {
	ifi, err := cfg.MulticastInterface()
	if err != nil {
		return err
	}
	a := &app{cfg: cfg, log: logger, in: bufio.NewScanner(stdin), out: out, ifi: ifi}

	if err := a.setUsername(""); err != nil {
		return err
	}

	a.reg, err = lobby.Listen(cfg.Group(), lobby.RegistryOptions{
		Timeout:   cfg.LobbyTimeout,
		Interface: ifi,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("lobby discovery: %w", err)
	}
	defer a.reg.Close()

	fmt.Fprintln(out, "Searching for lobbies...")
	// Give every advertising host one interval to be heard.
	time.Sleep(cfg.AdvertiseInterval + 100*time.Millisecond)
	a.refresh()
	fmt.Fprintln(out, `Type "help" for a list of commands.`)

	for {
		line, err := textui.ReadLine(a.in, out, "> ")
		if err != nil {
			return err
		}
		cmd := textui.ParseCommand(line)
		switch cmd.Name {
		case "":
		case "refresh":
			a.refresh()
		case "join":
			a.join(cmd.Arg)
		case "host":
			a.host(cmd.Arg)
		case "username":
			if err := a.setUsername(cmd.Arg); err != nil {
				return err
			}
		case "help":
			textui.PrintCommands(out)
		case "exit":
			return nil
		default:
			fmt.Fprintf(out, "Unknown command %q. Type \"help\" for a list of commands.\n", cmd.Name)
		}
	}
}

func (a *app) refresh() {
	a.shown = a.reg.Lobbies()
	textui.PrintLobbies(a.out, a.shown)
}

// setUsername takes name, or keeps asking until a valid one is typed.
func (a *app) setUsername(name string) error {
	for {
		if name == "" {
			var err error
			if name, err = textui.ReadLine(a.in, a.out, "Enter your username: "); err != nil {
				return err
			}
			if name == "" {
				continue
			}
		}
		if err := proto.Usernames.Validate(name); err != nil {
			fmt.Fprintf(a.out, "Invalid username: %v\n", err)
			name = ""
			continue
		}
		a.username = name
		fmt.Fprintf(a.out, "Your username is %s.\n", name)
		return nil
	}
}

func (a *app) join(arg string) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(a.shown) {
		fmt.Fprintln(a.out, `Usage: join [n], where n is a lobby number from "refresh".`)
		return
	}
	l := a.shown[n-1]
	board, err := engine.New(int(l.Rows), int(l.Columns), int(l.ConnectN))
	if err != nil {
		fmt.Fprintf(a.out, "Lobby %q has an unplayable board: %v\n", l.LobbyName, err)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Fprintf(a.out, "Joining %s...\n", l.LobbyName)
	opts := match.DialOptions{Timeout: a.cfg.JoinTimeout, Logger: a.log}
	if a.cfg.WSAddr != "" {
		opts.Dialer = ws.Dialer{Path: wsPath}
	}
	conn, err := match.Dial(ctx, l.Peer(), a.username, opts)
	if err != nil {
		a.log.Debug("join failed", slog.String("lobby", l.LobbyName), slog.Any("err", err))
		fmt.Fprintln(a.out, "Could not connect to the lobby.")
		return
	}
	a.play(ctx, board, conn)
}

func (a *app) host(name string) {
	if name == "" {
		var err error
		if name, err = textui.ReadLine(a.in, a.out, "Enter a lobby name: "); err != nil {
			return
		}
		if name == "" {
			name = a.username + "'s lobby"
		}
	}
	board, err := a.cfg.NewBoard()
	if err != nil {
		fmt.Fprintln(a.out, err)
		return
	}

	opts := lobby.HostOptions{
		Group:            a.cfg.Group(),
		Interval:         a.cfg.AdvertiseInterval,
		Hops:             a.cfg.Hops,
		Interface:        a.ifi,
		AcceptPoll:       a.cfg.AcceptPoll,
		HandshakeTimeout: a.cfg.HandshakeTimeout,
		Logger:           a.log,
	}
	if a.cfg.WSAddr != "" {
		srv, wl, err := a.serveWebSocket()
		if err != nil {
			fmt.Fprintf(a.out, "Could not host: %v\n", err)
			return
		}
		defer srv.Close()
		opts.Listener = wl
	}

	h, err := lobby.Host(proto.Advert{
		LobbyName: name,
		HostName:  a.username,
		Rows:      uint32(board.Rows()),
		Columns:   uint32(board.Columns()),
		ConnectN:  uint32(board.ConnectN()),
	}, opts)
	if err != nil {
		fmt.Fprintf(a.out, "Could not host: %v\n", err)
		return
	}
	defer h.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	h.StartAdvertising()
	h.StartAccepting()
	fmt.Fprintf(a.out, "Hosting %q. Waiting for another player to join... (Ctrl+C to cancel)\n", name)

	select {
	case <-h.Done():
	case <-ctx.Done():
		fmt.Fprintln(a.out, "\nStopped hosting.")
		return
	}
	conn, err := h.Conn()
	_ = h.Close()
	if err != nil {
		a.log.Debug("handshake failed", slog.Any("err", err))
		fmt.Fprintln(a.out, "The other player could not connect.")
		return
	}
	a.play(ctx, board, conn)
}

func (a *app) serveWebSocket() (*http.Server, *ws.Listener, error) {
	tl, err := net.Listen("tcp", a.cfg.WSAddr)
	if err != nil {
		return nil, nil, err
	}
	wl := ws.NewListener(ws.Config{Addr: tl.Addr(), Logger: a.log})
	mux := http.NewServeMux()
	mux.Handle(wsPath, wl)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(tl); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Warn("websocket server stopped", slog.Any("err", err))
		}
	}()
	return srv, wl, nil
}

func (a *app) play(ctx context.Context, board *engine.Board, conn *match.Conn) {
	fmt.Fprintf(a.out, "Playing against %s. You are %s.\n", conn.OpponentUsername(), conn.Role())
	s := session.New(board, conn, session.Options{
		Prompter: textui.Prompter{In: a.in, Out: a.out},
		Renderer: textui.Renderer{W: a.out},
		Logger:   conn.Logger(),
	})
	_, err := s.Run(ctx)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrQuit):
		fmt.Fprintln(a.out, "You left the game.")
	case errors.Is(err, session.ErrProtocol):
		fmt.Fprintln(a.out, "The other player sent an invalid move. Game over.")
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(a.out, "\nGame cancelled.")
	default:
		fmt.Fprintln(a.out, "Lost connection to the other player.")
	}
	a.refresh()
}
