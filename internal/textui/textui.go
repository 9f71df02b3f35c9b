// Package textui is the line-oriented terminal front end: lobby table,
// board output and prompts.
package textui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/kushgupta-hiver/lanconnect4/internal/engine"
	"github.com/kushgupta-hiver/lanconnect4/internal/lobby"
	"github.com/kushgupta-hiver/lanconnect4/internal/session"
)

// PrintLobbies writes a numbered table of lobbies, numbering from 1.
func PrintLobbies(w io.Writer, lobbies []lobby.Lobby) {
	if len(lobbies) == 0 {
		fmt.Fprintln(w, "No lobbies were found nearby.")
		fmt.Fprintln(w, `Use the "refresh" command to try again.`)
		fmt.Fprintln(w, `Use the "host" command to host your own lobby.`)
		return
	}
	numW := len(strconv.Itoa(len(lobbies)))
	nameW, hostW := runewidth.StringWidth("Lobby"), runewidth.StringWidth("Host")
	for _, l := range lobbies {
		nameW = max(nameW, runewidth.StringWidth(l.LobbyName))
		hostW = max(hostW, runewidth.StringWidth(l.HostName))
	}

	fmt.Fprintf(w, "%*s | %s | %s | Rows | Columns | Gamemode\n",
		numW, "#", runewidth.FillRight("Lobby", nameW), runewidth.FillRight("Host", hostW))
	for i, l := range lobbies {
		fmt.Fprintf(w, "%*d | %s | %s | %4d | %7d | Connect %d\n",
			numW, i+1,
			runewidth.FillRight(l.LobbyName, nameW),
			runewidth.FillRight(l.HostName, hostW),
			l.Rows, l.Columns, l.ConnectN)
	}
}

func PrintCommands(w io.Writer) {
	fmt.Fprintln(w, "refresh          =  Refreshes the list of lobbies.")
	fmt.Fprintln(w, "join [n]         =  Joins the Nth lobby in the list.")
	fmt.Fprintln(w, "host [name]      =  Hosts a lobby.")
	fmt.Fprintln(w, "username [name]  =  Changes your username.")
	fmt.Fprintln(w, "help             =  Shows the different commands.")
	fmt.Fprintln(w, "exit             =  Exits the game.")
}

type Command struct {
	Name string
	Arg  string
}

// ParseCommand splits "join 2" into {join, 2}. The name is lower-cased;
// the argument keeps its case and inner spaces.
func ParseCommand(line string) Command {
	line = strings.TrimSpace(line)
	name, arg, _ := strings.Cut(line, " ")
	return Command{Name: strings.ToLower(name), Arg: strings.TrimSpace(arg)}
}

// Renderer prints session progress. It satisfies session.Renderer.
type Renderer struct {
	W io.Writer
}

func (r Renderer) Turn(b *engine.Board, yours bool, player string) {
	fmt.Fprintln(r.W)
	if yours {
		fmt.Fprintf(r.W, "Your turn! (%s)\n", b.Turn())
	} else {
		fmt.Fprintf(r.W, "%s's turn. (%s)\n", player, b.Turn())
	}
	PrintBoard(r.W, b)
	if !yours {
		fmt.Fprintln(r.W, "Waiting for their move...")
	}
}

func (r Renderer) Rejected(column int, reason error) {
	switch {
	case errors.Is(reason, engine.ErrColumnFull):
		fmt.Fprintf(r.W, "Column %d is full.\n", column+1)
	case errors.Is(reason, engine.ErrColumnOutOfRange):
		fmt.Fprintf(r.W, "Column %d does not exist.\n", column+1)
	default:
		fmt.Fprintf(r.W, "Column %d: %v\n", column+1, reason)
	}
}

func (r Renderer) Result(b *engine.Board, res session.Result) {
	fmt.Fprintln(r.W)
	PrintBoard(r.W, b)
	switch res.Verdict {
	case session.Won:
		fmt.Fprintln(r.W, "You won!")
	case session.Lost:
		fmt.Fprintln(r.W, "You lost.")
	default:
		fmt.Fprintln(r.W, "The game ended in a draw.")
	}
	for _, c := range res.Connections {
		fmt.Fprintf(r.W, "Winning cells: %s\n", formatConnection(c))
	}
}

// PrintBoard writes the board with 1-based column numbers underneath.
func PrintBoard(w io.Writer, b *engine.Board) {
	fmt.Fprintln(w, b.String())
	nums := make([]string, b.Columns())
	for i := range nums {
		nums[i] = strconv.Itoa((i + 1) % 10)
	}
	fmt.Fprintln(w, strings.Join(nums, "   "))
}

func formatConnection(c engine.Connection) string {
	parts := make([]string, len(c))
	for i, p := range c {
		parts[i] = fmt.Sprintf("(%d,%d)", p.Row+1, p.Col+1)
	}
	return strings.Join(parts, " ")
}

// Prompter reads 1-based column numbers, one per line. "quit" or end of
// input gives up the game. Reads are not interrupted by ctx.
type Prompter struct {
	In  *bufio.Scanner
	Out io.Writer
}

func (p Prompter) Column(ctx context.Context, b *engine.Board) (int, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		fmt.Fprintf(p.Out, "Enter a column (1-%d): ", b.Columns())
		if !p.In.Scan() {
			if err := p.In.Err(); err != nil {
				return 0, err
			}
			return 0, session.ErrQuit
		}
		line := strings.TrimSpace(p.In.Text())
		if strings.EqualFold(line, "quit") {
			return 0, session.ErrQuit
		}
		n, err := strconv.Atoi(line)
		if err != nil {
			fmt.Fprintln(p.Out, "Please enter a column number.")
			continue
		}
		if n < 1 || n > b.Columns() {
			fmt.Fprintf(p.Out, "The column must be between 1 and %d.\n", b.Columns())
			continue
		}
		return n - 1, nil
	}
}

// ReadLine prompts and returns one trimmed line; io.EOF at end of input.
func ReadLine(in *bufio.Scanner, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	if !in.Scan() {
		if err := in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(in.Text()), nil
}
