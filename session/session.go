// Package session schedules a game: it owns the current *game.Game, turns
// steering and timer ticks into Tick calls, and records every finished game.
//
// All Session methods are safe for concurrent use. The OnEnd listener runs
// while the session is locked and must not call back into it.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"snake-game/game"
	"snake-game/game/types"
	"snake-game/logging"
	"snake-game/metrics"
	"snake-game/stats"

	"golang.org/x/exp/rand"
)

// Pilot chooses headings instead of the player. ai.Agent and ai.DQNAgent
// implement it.
type Pilot interface {
	Decide(g *game.Game) types.Direction
	Learn(g *game.Game, outcome types.Outcome) float64
}

type Options struct {
	Width       int
	Height      int
	StartLength int
	Interval    time.Duration // cadence of Run
	Seed        uint64        // 0 seeds from the clock

	Pilot       Pilot // nil means steered by Steer
	AutoRestart bool  // start a fresh game as soon as one ends

	Stats   *stats.GameStats
	Metrics *metrics.Collector
	Logger  *logging.Logger
	OnEnd   func(View)
}

// View is a read-only copy of the session's current game.
type View struct {
	GameID  string
	Grid    types.Grid
	Board   types.Board
	Snake   []types.Point
	Food    []types.Point
	Score   int
	Length  int
	Steps   int
	Status  types.Status
	Heading types.Direction
	Reason  types.EndReason
	Games   int // games finished in this session
}

type Session struct {
	mu      sync.Mutex
	opts    Options
	rng     *rand.Rand
	game    *game.Game
	heading types.Direction   // applied on the last tick
	turns   []types.Direction // steered but not yet applied
	games   int
}

// maxQueuedTurns lets two quick key presses land on consecutive ticks.
const maxQueuedTurns = 2

func New(opts Options) (*Session, error) {
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("%w: tick interval must be positive, got %v", game.ErrInvalidConfiguration, opts.Interval)
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	s := &Session{
		opts: opts,
		rng:  rand.New(rand.NewSource(seed)),
	}
	if err := s.reset(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) reset() error {
	g, err := game.New(s.opts.Width, s.opts.Height, s.opts.StartLength, s.handleEnd, s.rng)
	if err != nil {
		return err
	}
	s.game = g
	s.heading = g.Heading()
	s.turns = s.turns[:0]
	s.opts.Metrics.ObserveReset(g.Len())
	s.opts.Logger.Debug("New game %s on a %dx%d board", g.ID(), s.opts.Width, s.opts.Height)
	return nil
}

// handleEnd is the game's end callback. It runs inside Tick, so the session
// lock is already held.
func (s *Session) handleEnd(success bool) {
	g := s.game
	s.games++

	outcome := types.OutcomeLost
	if success {
		outcome = types.OutcomeWon
	}
	s.opts.Metrics.ObserveEnd(outcome, g.EndReason())

	if s.opts.Stats != nil {
		s.opts.Stats.AddGame(stats.Result{
			GameID:    g.ID(),
			StartTime: g.StartedAt(),
			EndTime:   g.EndedAt(),
			Score:     g.Score(),
			Length:    g.Len(),
			Steps:     g.Steps(),
			Won:       success,
			Reason:    g.EndReason().String(),
		})
	}

	if success {
		s.opts.Logger.Info("Game %s won after %d steps with score %d", g.ID(), g.Steps(), g.Score())
	} else {
		s.opts.Logger.Info("Game %s lost (%s) after %d steps with score %d", g.ID(), g.EndReason(), g.Steps(), g.Score())
	}

	if s.opts.OnEnd != nil {
		s.opts.OnEnd(s.view())
	}
}

// Steer queues a heading change. Each tick applies at most one queued turn,
// so pressing Up then Left while heading Right turns twice instead of
// reversing. Repeating the latest heading is ignored and a full queue has
// its last turn replaced.
func (s *Session) Steer(dir types.Direction) error {
	if !dir.Valid() {
		return fmt.Errorf("%w: %v", game.ErrUnknownDirection, dir)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	latest := s.heading
	if n := len(s.turns); n > 0 {
		latest = s.turns[n-1]
	}
	switch {
	case dir == latest:
	case len(s.turns) < maxQueuedTurns:
		s.turns = append(s.turns, dir)
	default:
		s.turns[len(s.turns)-1] = dir
	}
	return nil
}

func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.game.SetPlaying(true)
}

func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.game.SetPlaying(false)
}

// Toggle starts a stopped game and pauses a running one.
func (s *Session) Toggle() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.game.SetPlaying(!s.game.Playing())
}

// Reset throws the current game away and creates a new one that has not
// started yet.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.reset()
}

// Step applies one scheduled tick. Nothing happens unless the game is playing.
func (s *Session) Step() (types.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.step()
}

func (s *Session) step() (types.Outcome, error) {
	if !s.game.Playing() {
		return types.OutcomeNone, nil
	}

	if s.opts.Pilot != nil {
		s.heading = s.opts.Pilot.Decide(s.game)
		s.turns = s.turns[:0]
	} else if len(s.turns) > 0 {
		s.heading = s.turns[0]
		s.turns = append(s.turns[:0], s.turns[1:]...)
	}
	dir := s.heading

	scoreBefore := s.game.Score()
	start := time.Now()
	outcome, err := s.game.Tick(dir)
	if err != nil {
		s.opts.Logger.Error("Tick %s failed: %v", dir, err)
		return outcome, err
	}
	s.opts.Metrics.ObserveTick(time.Since(start), s.game.Len(), s.game.Score() > scoreBefore)

	if s.opts.Pilot != nil {
		s.opts.Pilot.Learn(s.game, outcome)
	}

	if outcome != types.OutcomeNone && s.opts.AutoRestart {
		if err := s.reset(); err != nil {
			return outcome, err
		}
		s.game.SetPlaying(true)
	}
	return outcome, nil
}

// Run steps the session every Interval until ctx is done or a tick fails.
func (s *Session) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Step(); err != nil {
				return err
			}
		}
	}
}

// PlayGames plays n games back to back without waiting between ticks. It
// starts each game itself, so it needs a Pilot. The session stays locked
// until the games are done or ctx is cancelled.
func (s *Session) PlayGames(ctx context.Context, n int) error {
	if s.opts.Pilot == nil {
		return errors.New("playing unattended games requires a pilot")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.games + n
	if s.game.Status().Ended() {
		if err := s.reset(); err != nil {
			return err
		}
	}
	s.game.SetPlaying(true)
	for s.games < target {
		if err := ctx.Err(); err != nil {
			return err
		}
		outcome, err := s.step()
		if err != nil {
			return err
		}
		if outcome != types.OutcomeNone && !s.opts.AutoRestart && s.games < target {
			if err := s.reset(); err != nil {
				return err
			}
			s.game.SetPlaying(true)
		}
	}
	return nil
}

// Snapshot returns a copy of the current game for rendering.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.view()
}

func (s *Session) view() View {
	g := s.game
	return View{
		GameID:  g.ID(),
		Grid:    g.Grid(),
		Board:   g.Board(),
		Snake:   g.Snake(),
		Food:    g.Food(),
		Score:   g.Score(),
		Length:  g.Len(),
		Steps:   g.Steps(),
		Status:  g.Status(),
		Heading: s.heading,
		Reason:  g.EndReason(),
		Games:   s.games,
	}
}

// Games is the number of games finished in this session.
func (s *Session) Games() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.games
}
