package types

import (
	"fmt"
	"strings"
)

// Point is a cell on the board. (0,0) is the top left corner.
type Point struct {
	X, Y int
}

// Add returns p shifted by the offset o.
func (p Point) Add(o Point) Point {
	return Point{X: p.X + o.X, Y: p.Y + o.Y}
}

// Grid represents the game grid dimensions
type Grid struct {
	Width  int
	Height int
}

// Contains reports whether p lies on the grid.
func (g Grid) Contains(p Point) bool {
	return p.X >= 0 && p.X < g.Width && p.Y >= 0 && p.Y < g.Height
}

// Area is the number of cells on the grid.
func (g Grid) Area() int {
	return g.Width * g.Height
}

// Direction is one of the four cardinal headings.
type Direction int

const (
	Up Direction = iota
	Down
	Left
	Right
)

var directionNames = map[Direction]string{
	Up:    "Up",
	Down:  "Down",
	Left:  "Left",
	Right: "Right",
}

// Directions lists every heading in declaration order.
var Directions = []Direction{Up, Down, Left, Right}

// Valid reports whether d is one of the four headings.
func (d Direction) Valid() bool {
	_, ok := directionNames[d]
	return ok
}

func (d Direction) String() string {
	if name, ok := directionNames[d]; ok {
		return name
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// Offset returns the unit vector for d. Up decreases Y.
func (d Direction) Offset() Point {
	switch d {
	case Up:
		return Point{X: 0, Y: -1}
	case Down:
		return Point{X: 0, Y: 1}
	case Left:
		return Point{X: -1, Y: 0}
	case Right:
		return Point{X: 1, Y: 0}
	default:
		return Point{}
	}
}

// Opposite returns the heading pointing the other way.
func (d Direction) Opposite() Direction {
	switch d {
	case Up:
		return Down
	case Down:
		return Up
	case Left:
		return Right
	case Right:
		return Left
	default:
		return d
	}
}

// ParseDirection accepts a heading name, case-insensitively.
func ParseDirection(s string) (Direction, error) {
	for d, name := range directionNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

// MarshalText encodes d by name, so maps keyed by Direction read well as JSON.
func (d Direction) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("unknown direction %d", int(d))
	}
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DirectionBetween returns the heading that moves from one cell to an
// adjacent one, and false if the cells are not one cardinal step apart.
func DirectionBetween(from, to Point) (Direction, bool) {
	for _, d := range Directions {
		if from.Add(d.Offset()) == to {
			return d, true
		}
	}
	return 0, false
}

// Tile classifies a board cell.
type Tile int

const (
	Empty Tile = iota
	SnakeBody
	SnakeHead
	Food
)

func (t Tile) String() string {
	switch t {
	case Empty:
		return "Empty"
	case SnakeBody:
		return "SnakeBody"
	case SnakeHead:
		return "SnakeHead"
	case Food:
		return "Food"
	default:
		return fmt.Sprintf("Tile(%d)", int(t))
	}
}

// Board is a derived width x height snapshot indexed [x][y].
type Board [][]Tile

// NewBoard returns a board of the given size with every cell Empty.
func NewBoard(grid Grid) Board {
	board := make(Board, grid.Width)
	for x := range board {
		board[x] = make([]Tile, grid.Height)
	}
	return board
}

// At returns the tile at p. p must be on the board.
func (b Board) At(p Point) Tile {
	return b[p.X][p.Y]
}

// Count returns how many cells hold tile t.
func (b Board) Count(t Tile) int {
	n := 0
	for _, column := range b {
		for _, tile := range column {
			if tile == t {
				n++
			}
		}
	}
	return n
}

// String draws the board one row per line: '.' empty, 'H' head, 'o' body, '*' food.
func (b Board) String() string {
	if len(b) == 0 {
		return ""
	}
	var sb strings.Builder
	for y := 0; y < len(b[0]); y++ {
		for x := range b {
			switch b[x][y] {
			case SnakeHead:
				sb.WriteByte('H')
			case SnakeBody:
				sb.WriteByte('o')
			case Food:
				sb.WriteByte('*')
			default:
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Status is the lifecycle state of a single game.
type Status int

const (
	NotStarted Status = iota
	Running
	Paused
	Won
	Lost
)

func (s Status) String() string {
	switch s {
	case NotStarted:
		return "NotStarted"
	case Running:
		return "Running"
	case Paused:
		return "Paused"
	case Won:
		return "Won"
	case Lost:
		return "Lost"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Ended reports whether s is terminal.
func (s Status) Ended() bool {
	return s == Won || s == Lost
}

// Outcome is what a single tick reports.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeWon
	OutcomeLost
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWon:
		return "won"
	case OutcomeLost:
		return "lost"
	default:
		return "none"
	}
}

// EndReason records why a game ended.
type EndReason int

const (
	ReasonNone EndReason = iota
	ReasonReversal
	ReasonWall
	ReasonSelf
	ReasonBoardFilled
)

func (r EndReason) String() string {
	switch r {
	case ReasonReversal:
		return "reversal"
	case ReasonWall:
		return "wall"
	case ReasonSelf:
		return "self"
	case ReasonBoardFilled:
		return "board_filled"
	default:
		return "none"
	}
}
