package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Cell is the content of one grid position.
type Cell uint8

const (
	Empty Cell = iota
	PlayerOne
	PlayerTwo
)

// Player is a Cell that is never Empty.
type Player = Cell

// String renders O for PlayerOne, X for PlayerTwo and a space otherwise.
func (c Cell) String() string {
	switch c {
	case PlayerOne:
		return "O"
	case PlayerTwo:
		return "X"
	}
	return " "
}

// Opponent returns the other player. Empty maps to Empty.
func (c Cell) Opponent() Cell {
	switch c {
	case PlayerOne:
		return PlayerTwo
	case PlayerTwo:
		return PlayerOne
	}
	return Empty
}

// Outcome is the state of a game: still running, won or drawn.
type Outcome int

const (
	InProgress Outcome = iota
	Win
	Draw
)

func (o Outcome) String() string {
	switch o {
	case Win:
		return "win"
	case Draw:
		return "draw"
	}
	return "in-progress"
}

var (
	ErrInvalidDimensions = errors.New("invalid board dimensions")
	ErrColumnOutOfRange  = errors.New("column out of range")
	ErrColumnFull        = errors.New("column is full")
	ErrTerminal          = errors.New("game already finished")
)

const (
	DefaultRows     = 6
	DefaultColumns  = 7
	DefaultConnectN = 4

	// MaxDimension bounds rows, columns and connectN. Board sizes arrive
	// from the network, so they are capped before anything is allocated.
	MaxDimension = 64
)

// Coord addresses a cell; Row 0 is the bottom row.
type Coord struct {
	Row int
	Col int
}

// Connection is a winning run of cells, anchor first.
type Connection []Coord

type direction struct{ dRow, dCol int }

// Scan order matters: it decides which connection Winner reports first.
var directions = [...]direction{
	{0, 1},  // horizontal
	{1, 0},  // vertical
	{1, 1},  // diagonal up-right
	{1, -1}, // diagonal up-left
}

// Board is a Connect Four grid. Row 0 is the bottom row.
// It is not safe for concurrent use.
type Board struct {
	rows     int
	columns  int
	connectN int

	grid    [][]Cell
	heights []int
	turn    Player
	moves   int
}

// CheckDimensions reports whether a board of the given size can be built.
func CheckDimensions(rows, columns, connectN int) error {
	for _, n := range [...]int{rows, columns, connectN} {
		if n < 1 || n > MaxDimension {
			return fmt.Errorf("%w: %dx%d connect %d, each must be 1..%d",
				ErrInvalidDimensions, rows, columns, connectN, MaxDimension)
		}
	}
	return nil
}

// New returns an empty board with PlayerOne to move.
func New(rows, columns, connectN int) (*Board, error) {
	if err := CheckDimensions(rows, columns, connectN); err != nil {
		return nil, err
	}
	b := &Board{rows: rows, columns: columns, connectN: connectN}
	b.Reset()
	return b, nil
}

// NewStandard returns the classic 6x7 connect-four board.
func NewStandard() *Board {
	b, _ := New(DefaultRows, DefaultColumns, DefaultConnectN)
	return b
}

// Reset clears the grid and hands the turn back to PlayerOne.
func (b *Board) Reset() {
	b.grid = make([][]Cell, b.rows)
	for r := range b.grid {
		b.grid[r] = make([]Cell, b.columns)
	}
	b.heights = make([]int, b.columns)
	b.turn = PlayerOne
	b.moves = 0
}

// Rows, Columns and ConnectN are fixed at New.
func (b *Board) Rows() int     { return b.rows }
func (b *Board) Columns() int  { return b.columns }
func (b *Board) ConnectN() int { return b.connectN }

// Turn is the player to move next.
func (b *Board) Turn() Player { return b.turn }

// Moves counts placements since the last Reset.
func (b *Board) Moves() int { return b.moves }

// Height is the number of discs in column; 0 for a column that does
// not exist.
func (b *Board) Height(column int) int {
	if column < 0 || column >= b.columns {
		return 0
	}
	return b.heights[column]
}

// At returns the cell at row, col, or Empty outside the grid.
func (b *Board) At(row, col int) Cell {
	if row < 0 || row >= b.rows || col < 0 || col >= b.columns {
		return Empty
	}
	return b.grid[row][col]
}

// CanPlace reports whether column exists and still has room.
func (b *Board) CanPlace(column int) bool {
	return column >= 0 && column < b.columns && b.heights[column] < b.rows
}

// Place drops the current player's marker into column.
func (b *Board) Place(column int) bool {
	return b.Apply(column) == nil
}

// Apply is Place with the rejection reason.
func (b *Board) Apply(column int) error {
	if column < 0 || column >= b.columns {
		return ErrColumnOutOfRange
	}
	if b.heights[column] >= b.rows {
		return ErrColumnFull
	}
	if b.IsOver() {
		return ErrTerminal
	}
	b.grid[b.heights[column]][column] = b.turn
	b.heights[column]++
	b.turn = b.turn.Opponent()
	b.moves++
	return nil
}

func (b *Board) full() bool {
	return b.moves >= b.rows*b.columns
}

// IsOver reports a win or a full board.
func (b *Board) IsOver() bool {
	return b.full() || len(b.WinningConnections()) > 0
}

// Outcome classifies the board; a win takes precedence over a full grid.
func (b *Board) Outcome() Outcome {
	if len(b.WinningConnections()) > 0 {
		return Win
	}
	if b.full() {
		return Draw
	}
	return InProgress
}

// Winner returns the owner of the first winning connection.
func (b *Board) Winner() (Player, bool) {
	conns := b.WinningConnections()
	if len(conns) == 0 {
		return Empty, false
	}
	first := conns[0][0]
	return b.grid[first.Row][first.Col], true
}

// WinningConnections returns every run of connectN identical markers.
// Anchors are visited row-major; per anchor, directions follow the
// order in directions.
func (b *Board) WinningConnections() []Connection {
	var out []Connection
	n := b.connectN
	for row := 0; row < b.rows; row++ {
		for col := 0; col < b.columns; col++ {
			anchor := b.grid[row][col]
			if anchor == Empty {
				continue
			}
			for _, d := range directions {
				if !b.runFits(row, col, d) {
					continue
				}
				conn := make(Connection, 0, n)
				for i := 0; i < n; i++ {
					r, c := row+i*d.dRow, col+i*d.dCol
					if b.grid[r][c] != anchor {
						break
					}
					conn = append(conn, Coord{Row: r, Col: c})
				}
				if len(conn) == n {
					out = append(out, conn)
				}
			}
		}
	}
	return out
}

func (b *Board) runFits(row, col int, d direction) bool {
	n := b.connectN
	if d.dCol > 0 && col > b.columns-n {
		return false
	}
	if d.dRow > 0 && row > b.rows-n {
		return false
	}
	if d.dCol < 0 && col < n-1 {
		return false
	}
	return true
}

// String renders the grid top row first, cells separated by " | ".
func (b *Board) String() string {
	var sb strings.Builder
	for row := b.rows - 1; row >= 0; row-- {
		for col := 0; col < b.columns; col++ {
			if col > 0 {
				sb.WriteString(" | ")
			}
			sb.WriteString(b.grid[row][col].String())
		}
		if row > 0 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
