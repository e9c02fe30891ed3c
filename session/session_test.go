package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"snake-game/ai"
	"snake-game/game"
	"snake-game/game/types"
	"snake-game/metrics"
	"snake-game/stats"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

// alwaysUp steers into the top wall and counts what it was told.
type alwaysUp struct {
	decisions int
	outcomes  []types.Outcome
}

func (p *alwaysUp) Decide(*game.Game) types.Direction {
	p.decisions++
	return types.Up
}

func (p *alwaysUp) Learn(_ *game.Game, outcome types.Outcome) float64 {
	p.outcomes = append(p.outcomes, outcome)
	return 0
}

func newSession(t *testing.T, mutate func(*Options)) *Session {
	t.Helper()
	opts := Options{
		Width:       10,
		Height:      10,
		StartLength: 3,
		Interval:    time.Millisecond,
		Seed:        42,
	}
	if mutate != nil {
		mutate(&opts)
	}
	s, err := New(opts)
	require.NoError(t, err)
	return s
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestNew(t *testing.T) {
	s := newSession(t, nil)

	v := s.Snapshot()
	assert.Equal(t, types.NotStarted, v.Status)
	assert.Equal(t, []types.Point{{X: 7, Y: 5}, {X: 6, Y: 5}, {X: 5, Y: 5}}, v.Snake)
	assert.Len(t, v.Food, 1)
	assert.Equal(t, types.Right, v.Heading)
	assert.Equal(t, types.Grid{Width: 10, Height: 10}, v.Grid)
	assert.NotEmpty(t, v.GameID)
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(Options{Width: 10, Height: 10, StartLength: 3})
	assert.ErrorIs(t, err, game.ErrInvalidConfiguration, "zero interval")

	_, err = New(Options{Width: 2, Height: 1, StartLength: 2, Interval: time.Second})
	assert.ErrorIs(t, err, game.ErrInvalidConfiguration)
}

func TestStep_OnlyWhilePlaying(t *testing.T) {
	s := newSession(t, nil)

	_, err := s.Step()
	require.NoError(t, err)
	assert.Zero(t, s.Snapshot().Steps, "not started")

	s.Start()
	_, err = s.Step()
	require.NoError(t, err)
	assert.Equal(t, types.Point{X: 8, Y: 5}, s.Snapshot().Snake[0])

	s.Pause()
	_, err = s.Step()
	require.NoError(t, err)
	assert.Equal(t, 1, s.Snapshot().Steps)
	assert.Equal(t, types.Paused, s.Snapshot().Status)

	s.Toggle()
	assert.Equal(t, types.Running, s.Snapshot().Status)
	s.Toggle()
	assert.Equal(t, types.Paused, s.Snapshot().Status)
}

func TestSteer(t *testing.T) {
	s := newSession(t, nil)
	s.Start()

	require.NoError(t, s.Steer(types.Up))
	_, err := s.Step()
	require.NoError(t, err)
	_, err = s.Step()
	require.NoError(t, err)

	v := s.Snapshot()
	assert.Equal(t, types.Point{X: 7, Y: 3}, v.Snake[0], "heading persists between ticks")
	assert.Equal(t, types.Up, v.Heading)

	assert.ErrorIs(t, s.Steer(types.Direction(9)), game.ErrUnknownDirection)
	assert.Equal(t, types.Up, s.Snapshot().Heading)
}

func TestSteer_ReversalLoses(t *testing.T) {
	s := newSession(t, nil)
	s.Start()

	require.NoError(t, s.Steer(types.Left))
	outcome, err := s.Step()

	require.NoError(t, err)
	assert.Equal(t, types.OutcomeLost, outcome)
	assert.Equal(t, types.ReasonReversal, s.Snapshot().Reason)
}

func TestSteer_QuickTurnsApplyOnSeparateTicks(t *testing.T) {
	s := newSession(t, nil)
	s.Start()

	// heading Right with the head at (7,5)
	require.NoError(t, s.Steer(types.Up))
	require.NoError(t, s.Steer(types.Left))

	outcome, err := s.Step()
	require.NoError(t, err)
	require.Equal(t, types.OutcomeNone, outcome)
	assert.Equal(t, types.Up, s.Snapshot().Heading)

	outcome, err = s.Step()
	require.NoError(t, err)
	require.Equal(t, types.OutcomeNone, outcome, "Left follows Up instead of reversing Right")

	v := s.Snapshot()
	assert.Equal(t, types.Left, v.Heading)
	assert.Equal(t, types.Point{X: 6, Y: 4}, v.Snake[0])
}

func TestSteer_FullQueueKeepsLatest(t *testing.T) {
	s := newSession(t, nil)
	s.Start()

	require.NoError(t, s.Steer(types.Up))
	require.NoError(t, s.Steer(types.Up), "repeats are dropped")
	require.NoError(t, s.Steer(types.Left))
	require.NoError(t, s.Steer(types.Right))

	for _, want := range []types.Direction{types.Up, types.Right} {
		_, err := s.Step()
		require.NoError(t, err)
		assert.Equal(t, want, s.Snapshot().Heading)
	}
}

func TestReset_ClearsQueuedTurns(t *testing.T) {
	s := newSession(t, nil)
	require.NoError(t, s.Steer(types.Up))
	require.NoError(t, s.Reset())
	s.Start()

	_, err := s.Step()
	require.NoError(t, err)
	assert.Equal(t, types.Right, s.Snapshot().Heading)
}

func TestGameEnd_IsRecorded(t *testing.T) {
	reg := prometheus.NewRegistry()
	history, err := stats.NewGameStats(nil)
	require.NoError(t, err)
	var ended []View

	s := newSession(t, func(o *Options) {
		o.Stats = history
		o.Metrics = metrics.NewCollector(reg)
		o.OnEnd = func(v View) { ended = append(ended, v) }
	})
	s.Start()

	var outcome types.Outcome
	for i := 0; i < 3; i++ {
		outcome, err = s.Step()
		require.NoError(t, err)
	}

	assert.Equal(t, types.OutcomeLost, outcome, "three steps right from x=7 leaves the board")
	require.Len(t, ended, 1)
	assert.Equal(t, types.Lost, ended[0].Status)
	assert.Equal(t, types.ReasonWall, ended[0].Reason)
	assert.Equal(t, 1, ended[0].Games)
	assert.Equal(t, 1, s.Games())

	require.Len(t, history.GetStats(), 1)
	record := history.GetStats()[0]
	assert.Equal(t, ended[0].GameID, record.GameID)
	assert.Equal(t, "wall", record.Reason)
	assert.Equal(t, 2, record.Steps)
	assert.False(t, record.Won)

	assert.Equal(t, 1.0, counterValue(t, reg, "snake_games_total"))
	assert.Equal(t, 3.0, counterValue(t, reg, "snake_ticks_total"))

	_, err = s.Step()
	require.NoError(t, err)
	assert.Equal(t, 1, s.Games(), "an ended game is not recorded twice")
}

func TestReset(t *testing.T) {
	s := newSession(t, nil)
	s.Start()
	require.NoError(t, s.Steer(types.Down))
	_, err := s.Step()
	require.NoError(t, err)
	before := s.Snapshot()

	require.NoError(t, s.Reset())

	after := s.Snapshot()
	assert.NotEqual(t, before.GameID, after.GameID)
	assert.Equal(t, types.NotStarted, after.Status)
	assert.Zero(t, after.Steps)
	assert.Equal(t, types.Right, after.Heading)
	assert.Equal(t, types.Point{X: 7, Y: 5}, after.Snake[0])
}

func TestAutoRestart(t *testing.T) {
	pilot := &alwaysUp{}
	s := newSession(t, func(o *Options) {
		o.Pilot = pilot
		o.AutoRestart = true
	})
	s.Start()
	first := s.Snapshot().GameID

	for i := 0; i < 6; i++ {
		_, err := s.Step()
		require.NoError(t, err)
	}

	v := s.Snapshot()
	assert.Equal(t, 1, v.Games, "five steps up reach the wall on the sixth")
	assert.NotEqual(t, first, v.GameID)
	assert.Equal(t, types.Running, v.Status)
	assert.Equal(t, 6, pilot.decisions)
	require.Len(t, pilot.outcomes, 6)
	assert.Equal(t, types.OutcomeLost, pilot.outcomes[5])
}

func TestRun(t *testing.T) {
	s := newSession(t, nil)
	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := s.Run(ctx)

	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	v := s.Snapshot()
	assert.Equal(t, types.Lost, v.Status)
	assert.Equal(t, types.ReasonWall, v.Reason)
}

func TestPlayGames(t *testing.T) {
	history, err := stats.NewGameStats(nil)
	require.NoError(t, err)
	agent := ai.NewAgent(ai.Params{LearningRate: 0.1, Discount: 0.9, Epsilon: 0.2}, rand.New(rand.NewSource(3)))
	s := newSession(t, func(o *Options) {
		o.Width, o.Height = 6, 6
		o.Pilot = agent
		o.Stats = history
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, s.PlayGames(ctx, 5))

	assert.Equal(t, 5, s.Games())
	assert.Equal(t, 5, history.GetGamesPlayed())
	assert.Equal(t, 5, agent.GamesPlayed)
	assert.True(t, s.Snapshot().Status.Ended(), "the last game is left as it ended")

	require.NoError(t, s.PlayGames(ctx, 2))
	assert.Equal(t, 7, s.Games())
}

func TestPlayGames_NeedsPilot(t *testing.T) {
	s := newSession(t, nil)

	assert.Error(t, s.PlayGames(context.Background(), 1))
}
