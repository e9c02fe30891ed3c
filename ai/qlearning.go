// Package ai drives a game with tabular Q-learning. The agent sees the
// direction of the nearest food and which neighbouring cells are deadly, and
// learns one value per (state, heading) pair.
package ai

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"snake-game/game"
	"snake-game/game/types"

	"golang.org/x/exp/rand"
)

const (
	RewardFood    = 1.0
	RewardLoss    = -1.0
	RewardCloser  = 0.5
	RewardFarther = -0.3
)

// State is what the agent observes before a move.
type State struct {
	RelativeFoodDir [2]int  // sign of dx and dy from head to food
	FoodDistance    int     // Manhattan distance to the nearest food
	DangerDirs      [4]bool // indexed by types.Direction
}

// Key ignores the distance so states generalize across the board.
func (s State) Key() string {
	return fmt.Sprintf("%d,%d|%d%d%d%d",
		s.RelativeFoodDir[0], s.RelativeFoodDir[1],
		boolToInt(s.DangerDirs[types.Up]),
		boolToInt(s.DangerDirs[types.Down]),
		boolToInt(s.DangerDirs[types.Left]),
		boolToInt(s.DangerDirs[types.Right]))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type QTable map[string]map[types.Direction]float64

type Params struct {
	LearningRate float64
	Discount     float64
	Epsilon      float64
	MinEpsilon   float64
	EpsilonDecay float64 // applied after each game, 0 keeps Epsilon fixed
}

// Agent is safe for concurrent use.
type Agent struct {
	QTable       QTable
	LearningRate float64
	Discount     float64
	Epsilon      float64
	MinEpsilon   float64
	EpsilonDecay float64
	TotalReward  float64
	GamesPlayed  int

	rng *rand.Rand
	mu  sync.Mutex

	// last decision, waiting for Learn
	pending    bool
	lastState  State
	lastAction types.Direction
	lastScore  int
}

// NewAgent creates an agent with an empty table. A nil rng is seeded from 1.
func NewAgent(p Params, rng *rand.Rand) *Agent {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Agent{
		QTable:       make(QTable),
		LearningRate: p.LearningRate,
		Discount:     p.Discount,
		Epsilon:      p.Epsilon,
		MinEpsilon:   p.MinEpsilon,
		EpsilonDecay: p.EpsilonDecay,
		rng:          rng,
	}
}

// Observe reads the current state of g.
func Observe(g *game.Game) State {
	return observe(g.Head(), g.Food(), g.IsDanger)
}

func observe(head types.Point, food []types.Point, danger func(types.Point) bool) State {
	var s State
	for _, d := range types.Directions {
		s.DangerDirs[d] = danger(head.Add(d.Offset()))
	}

	if len(food) == 0 {
		return s
	}
	nearest := food[0]
	for _, f := range food[1:] {
		if manhattan(head, f) < manhattan(head, nearest) {
			nearest = f
		}
	}
	s.RelativeFoodDir = [2]int{sign(nearest.X - head.X), sign(nearest.Y - head.Y)}
	s.FoodDistance = manhattan(head, nearest)
	return s
}

func manhattan(a, b types.Point) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	default:
		return 0
	}
}

// Decide picks the next heading for g and remembers it for Learn. Turning
// back onto the neck is never chosen.
func (a *Agent) Decide(g *game.Game) types.Direction {
	state := Observe(g)
	candidates := candidateMoves(g)

	a.mu.Lock()
	defer a.mu.Unlock()

	var action types.Direction
	if a.rng.Float64() < a.Epsilon {
		action = candidates[a.rng.Intn(len(candidates))]
	} else {
		action = a.bestAction(state, candidates)
	}

	a.pending = true
	a.lastState = state
	a.lastAction = action
	a.lastScore = g.Score()
	return action
}

func candidateMoves(g *game.Game) []types.Direction {
	body := g.Snake()
	if len(body) < 2 {
		return types.Directions
	}
	back, ok := types.DirectionBetween(body[0], body[1])
	if !ok {
		return types.Directions
	}
	out := make([]types.Direction, 0, len(types.Directions)-1)
	for _, d := range types.Directions {
		if d != back {
			out = append(out, d)
		}
	}
	return out
}

// bestAction breaks ties in declaration order.
func (a *Agent) bestAction(state State, candidates []types.Direction) types.Direction {
	values := a.QTable[state.Key()]
	best := candidates[0]
	bestValue := math.Inf(-1)
	for _, d := range candidates {
		if v := values[d]; v > bestValue {
			best, bestValue = d, v
		}
	}
	return best
}

// Learn updates the table with the result of the last decision. outcome is
// what Tick returned for it. Without a preceding Decide it does nothing.
func (a *Agent) Learn(g *game.Game, outcome types.Outcome) float64 {
	next := Observe(g)
	score := g.Score()

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.pending {
		return 0
	}
	a.pending = false
	ate := score > a.lastScore

	r := reward(a.lastState.FoodDistance, next.FoodDistance, ate, outcome)

	maxNextQ := 0.0
	if outcome == types.OutcomeNone {
		maxNextQ = a.maxValue(next.Key())
	}

	key := a.lastState.Key()
	if _, ok := a.QTable[key]; !ok {
		a.QTable[key] = make(map[types.Direction]float64)
	}
	current := a.QTable[key][a.lastAction]
	a.QTable[key][a.lastAction] = current + a.LearningRate*(r+a.Discount*maxNextQ-current)

	a.TotalReward += r
	if outcome != types.OutcomeNone {
		a.GamesPlayed++
		if a.EpsilonDecay > 0 {
			a.Epsilon = max(a.MinEpsilon, a.Epsilon*a.EpsilonDecay)
		}
	}
	return r
}

func (a *Agent) maxValue(key string) float64 {
	values, ok := a.QTable[key]
	if !ok || len(values) == 0 {
		return 0
	}
	best := math.Inf(-1)
	for _, v := range values {
		best = max(best, v)
	}
	return best
}

func reward(prevDistance, nextDistance int, ate bool, outcome types.Outcome) float64 {
	switch {
	case outcome == types.OutcomeLost:
		return RewardLoss
	case ate || outcome == types.OutcomeWon:
		return RewardFood
	case nextDistance < prevDistance:
		return RewardCloser
	case nextDistance > prevDistance:
		return RewardFarther
	default:
		return 0
	}
}

// SaveQTable writes the table as JSON, creating the directory if needed.
func (a *Agent) SaveQTable(filename string) error {
	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating q-table directory: %w", err)
		}
	}

	a.mu.Lock()
	data, err := json.MarshalIndent(a.QTable, "", "  ")
	a.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshalling q-table: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing q-table: %w", err)
	}
	return nil
}

// LoadQTable replaces the table with the one stored in filename.
func (a *Agent) LoadQTable(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("reading q-table: %w", err)
	}

	table := make(QTable)
	if err := json.Unmarshal(data, &table); err != nil {
		return fmt.Errorf("parsing q-table %s: %w", filename, err)
	}

	a.mu.Lock()
	a.QTable = table
	a.mu.Unlock()
	return nil
}
