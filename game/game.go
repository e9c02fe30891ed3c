// Package game implements the snake state machine: a single snake on a fixed
// board, advanced one tick at a time by directional input.
//
// A Game is not safe for concurrent use. Callers that deliver input and
// scheduled ticks from different goroutines must serialize Tick, SetPlaying
// and the accessors themselves.
package game

import (
	"errors"
	"fmt"
	"time"

	"snake-game/game/entity"
	"snake-game/game/manager"
	"snake-game/game/types"

	"github.com/google/uuid"
	"golang.org/x/exp/rand"
)

var (
	// ErrInvalidConfiguration is wrapped by every construction failure.
	ErrInvalidConfiguration = errors.New("invalid game configuration")
	// ErrUnknownDirection is returned by Tick for a value outside Up/Down/Left/Right.
	ErrUnknownDirection = errors.New("unknown direction")
)

type Game struct {
	id           string
	grid         types.Grid
	snake        *entity.Snake
	collisionMgr *manager.CollisionManager
	foodMgr      *manager.FoodManager
	stateMgr     *manager.StateManager
	score        int
	steps        int
	startedAt    time.Time
}

// New builds a game on a width x height board with a straight snake of
// startLength cells and one food item. onGameEnd may be nil. A nil rng is
// replaced by a time-seeded source.
func New(width, height, startLength int, onGameEnd manager.EndFunc, rng *rand.Rand) (*Game, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("%w: board must be at least 1x1, got %dx%d", ErrInvalidConfiguration, width, height)
	}
	if startLength < 1 || startLength > width {
		return nil, fmt.Errorf("%w: start length %d must be between 1 and the board width %d", ErrInvalidConfiguration, startLength, width)
	}
	if startLength >= width*height {
		return nil, fmt.Errorf("%w: start length %d leaves no room for food on a %dx%d board", ErrInvalidConfiguration, startLength, width, height)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
	}

	grid := types.Grid{Width: width, Height: height}
	tailX := min(width/2, width-startLength)
	head := types.Point{X: tailX + startLength - 1, Y: height / 2}

	collisionMgr := manager.NewCollisionManager(grid)
	g := &Game{
		id:           uuid.New().String(),
		grid:         grid,
		snake:        entity.NewSnake(head, startLength, types.Right),
		collisionMgr: collisionMgr,
		foodMgr:      manager.NewFoodManager(grid, collisionMgr, rng),
		stateMgr:     manager.NewStateManager(onGameEnd),
		startedAt:    time.Now(),
	}

	if _, err := g.foodMgr.Place(g.snake); err != nil {
		return nil, fmt.Errorf("placing initial food: %w", err)
	}
	return g, nil
}

// Tick advances the game one step in dir. Terminal conditions are reported
// through the outcome and the end callback, not as errors. Once the game has
// ended Tick does nothing. A returned error leaves the game untouched.
func (g *Game) Tick(dir types.Direction) (types.Outcome, error) {
	if g.stateMgr.Ended() {
		return types.OutcomeNone, nil
	}
	if !dir.Valid() {
		return types.OutcomeNone, fmt.Errorf("%w: %v", ErrUnknownDirection, dir)
	}

	newHead, collision := g.collisionMgr.CheckMove(g.snake, dir)
	if collision != manager.NoCollision {
		return g.stateMgr.End(false, collision.Reason()), nil
	}

	ate := g.foodMgr.Contains(newHead)
	if ate && !g.roomForFoodAfterEating() {
		return types.OutcomeNone, fmt.Errorf("replacing eaten food at %v: %w", newHead, manager.ErrBoardFull)
	}

	g.foodMgr.RemoveFood(newHead)
	g.snake.Move(newHead, ate)
	g.snake.Direction = dir
	g.steps++
	if ate {
		g.score++
	}

	if g.snake.Len() == g.grid.Area() {
		return g.stateMgr.End(true, types.ReasonBoardFilled), nil
	}

	if ate {
		if _, err := g.foodMgr.Place(g.snake); err != nil {
			return types.OutcomeNone, fmt.Errorf("replacing eaten food at %v: %w", newHead, err)
		}
	}
	return types.OutcomeNone, nil
}

// roomForFoodAfterEating reports whether a replacement can be placed once the
// snake has grown onto a food cell, or whether growing fills the board.
func (g *Game) roomForFoodAfterEating() bool {
	length := g.snake.Len() + 1
	if length == g.grid.Area() {
		return true
	}
	free := g.grid.Area() - length - (g.foodMgr.Len() - 1)
	return free > 0
}

// Board derives a fresh snapshot of the grid. Snake first, then food.
func (g *Game) Board() types.Board {
	board := types.NewBoard(g.grid)
	for i, p := range g.snake.Body {
		if i == 0 {
			board[p.X][p.Y] = types.SnakeHead
		} else {
			board[p.X][p.Y] = types.SnakeBody
		}
	}
	for _, p := range g.foodMgr.GetFoodList() {
		board[p.X][p.Y] = types.Food
	}
	return board
}

func (g *Game) Playing() bool {
	return g.stateMgr.Playing()
}

// SetPlaying starts or pauses the game. The snake and food are untouched.
func (g *Game) SetPlaying(playing bool) {
	g.stateMgr.SetPlaying(playing)
}

func (g *Game) Status() types.Status {
	return g.stateMgr.Status()
}

// EndReason is ReasonNone until the game ends.
func (g *Game) EndReason() types.EndReason {
	return g.stateMgr.Reason()
}

func (g *Game) ID() string {
	return g.id
}

func (g *Game) Grid() types.Grid {
	return g.grid
}

// Score is the number of food items eaten.
func (g *Game) Score() int {
	return g.score
}

// Steps is the number of moves applied.
func (g *Game) Steps() int {
	return g.steps
}

// Heading is the direction of the last applied move, Right before the first.
func (g *Game) Heading() types.Direction {
	return g.snake.Direction
}

func (g *Game) Head() types.Point {
	return g.snake.GetHead()
}

func (g *Game) Len() int {
	return g.snake.Len()
}

// Snake returns a copy of the body, head first.
func (g *Game) Snake() []types.Point {
	return g.snake.Segments()
}

// Food returns a copy of the food positions.
func (g *Game) Food() []types.Point {
	return g.foodMgr.GetFoodList()
}

// IsDanger reports whether stepping onto p would end the game.
func (g *Game) IsDanger(p types.Point) bool {
	if !g.grid.Contains(p) {
		return true
	}
	for _, part := range g.snake.Body[1:] {
		if part == p {
			return true
		}
	}
	return false
}

func (g *Game) StartedAt() time.Time {
	return g.startedAt
}

// EndedAt is the zero time while the game is still going.
func (g *Game) EndedAt() time.Time {
	return g.stateMgr.EndedAt()
}
