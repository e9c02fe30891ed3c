package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"snake-game/ai"
	"snake-game/config"
	"snake-game/logging"
	"snake-game/metrics"
	"snake-game/session"
	"snake-game/stats"
	"snake-game/ui"

	rl "github.com/gen2brain/raylib-go/raylib"
	"golang.org/x/exp/rand"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file (default $SNAKE_CONFIG)")
	speed := flag.Int("speed", 0, "Game speed in milliseconds per tick (lower = faster)")
	width := flag.Int("width", 0, "Board width in cells")
	height := flag.Int("height", 0, "Board height in cells")
	length := flag.Int("length", 0, "Initial snake length")
	seed := flag.Uint64("seed", 0, "Random seed (0 = time based)")
	autopilot := flag.Bool("autopilot", false, "Let the learning agent play")
	kind := flag.String("kind", "", "Autopilot kind: qtable or dqn")
	headless := flag.Bool("headless", false, "Run without a window (requires -autopilot)")
	games := flag.Int("games", 0, "Headless: number of games to play, 0 = until interrupted")
	metricsAddr := flag.String("metrics", "", "Address to serve Prometheus metrics on, e.g. :2112")
	flag.Parse()

	log := logging.Default()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("Failed to load config: %v", err)
		os.Exit(1)
	}

	// flags given on the command line win over file and environment
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "speed":
			cfg.SpeedMs = *speed
		case "width":
			cfg.Board.Width = *width
		case "height":
			cfg.Board.Height = *height
		case "length":
			cfg.Board.StartLength = *length
		case "seed":
			cfg.Seed = *seed
		case "autopilot":
			cfg.Autopilot.Enabled = *autopilot
		case "kind":
			cfg.Autopilot.Kind = *kind
		case "metrics":
			cfg.MetricsAddr = *metricsAddr
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Error("Invalid configuration: %v", err)
		os.Exit(1)
	}
	log.SetLevel(logging.ParseLevel(cfg.LogLevel))

	if *headless && !cfg.Autopilot.Enabled {
		log.Error("Headless mode needs the autopilot, add -autopilot")
		os.Exit(1)
	}

	collector := metrics.NewCollector(nil)
	if cfg.MetricsAddr != "" {
		metricsLog := logging.New("METRICS", logging.ColorMagenta, os.Stdout)
		metricsLog.SetLevel(log.Level())
		go func() {
			if err := metrics.Serve(cfg.MetricsAddr, nil, metricsLog); err != nil {
				metricsLog.Error("Metrics server stopped: %v", err)
			}
		}()
	}

	history := openStats(cfg, log)

	var (
		pilot     session.Pilot
		savePilot func() error
	)
	if cfg.Autopilot.Enabled {
		pilot, savePilot, err = newPilot(cfg, log)
		if err != nil {
			log.Error("Failed to create the autopilot: %v", err)
			os.Exit(1)
		}
	}

	sessionLog := logging.New("SESSION", logging.ColorCyan, os.Stdout)
	sessionLog.SetLevel(log.Level())
	opts := session.Options{
		Width:       cfg.Board.Width,
		Height:      cfg.Board.Height,
		StartLength: cfg.Board.StartLength,
		Interval:    cfg.TickInterval(),
		Seed:        cfg.Seed,
		Stats:       history,
		Metrics:     collector,
		Logger:      sessionLog,
		Pilot:       pilot,
	}

	if *headless {
		err = runHeadless(opts, *games, log)
	} else {
		err = runWindow(cfg, opts, history, log)
	}

	if savePilot != nil {
		if err := savePilot(); err != nil {
			log.Error("Failed to save the autopilot: %v", err)
		}
	}
	if err := history.Save(); err != nil {
		log.Error("Failed to save stats: %v", err)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("%v", err)
		os.Exit(1)
	}
}

// openStats falls back to memory-only stats when the store is unavailable.
func openStats(cfg *config.Config, log *logging.Logger) *stats.GameStats {
	if !cfg.Stats.Enabled {
		history, _ := stats.NewGameStats(nil)
		return history
	}

	store, err := stats.Open(cfg.Stats.AppName)
	if err != nil {
		log.Warn("Stats will not be saved: %v", err)
	}
	history, err := stats.NewGameStats(store)
	if err != nil {
		log.Warn("Ignoring saved stats: %v", err)
	}
	return history
}

// newPilot builds the configured agent and loads what it learned earlier.
// The returned save func is nil when there is nothing to persist to.
func newPilot(cfg *config.Config, log *logging.Logger) (session.Pilot, func() error, error) {
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	params := ai.Params{
		LearningRate: cfg.Autopilot.LearningRate,
		Discount:     cfg.Autopilot.Discount,
		Epsilon:      cfg.Autopilot.Epsilon,
		MinEpsilon:   cfg.Autopilot.MinEpsilon,
		EpsilonDecay: cfg.Autopilot.EpsilonDecay,
	}
	rng := rand.New(rand.NewSource(seed + 1))

	if cfg.Autopilot.Kind == config.KindDQN {
		agent, err := ai.NewDQNAgent(params, rng)
		if err != nil {
			return nil, nil, err
		}
		path := cfg.Autopilot.WeightsPath
		if path == "" {
			return agent, nil, nil
		}
		if err := agent.LoadWeights(path); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				log.Warn("Starting with fresh weights: %v", err)
			}
		} else {
			log.Info("Loaded network weights from %s", path)
		}
		return agent, func() error { return agent.SaveWeights(path) }, nil
	}

	agent := ai.NewAgent(params, rng)
	path := cfg.Autopilot.QTablePath
	if path == "" {
		return agent, nil, nil
	}
	if err := agent.LoadQTable(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn("Starting with an empty Q-table: %v", err)
		}
	} else {
		log.Info("Loaded Q-table with %d states from %s", len(agent.QTable), path)
	}
	return agent, func() error { return agent.SaveQTable(path) }, nil
}

func runHeadless(opts session.Options, games int, log *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if games > 0 {
		s, err := session.New(opts)
		if err != nil {
			return err
		}
		start := time.Now()
		err = s.PlayGames(ctx, games)
		log.Info("Played %d games in %v", s.Games(), time.Since(start).Round(time.Millisecond))
		return err
	}

	opts.AutoRestart = true
	s, err := session.New(opts)
	if err != nil {
		return err
	}
	s.Start()
	log.Info("Training until interrupted, one tick every %v", opts.Interval)
	return s.Run(ctx)
}

func runWindow(cfg *config.Config, opts session.Options, history *stats.GameStats, log *logging.Logger) error {
	rl.InitWindow(int32(cfg.Window.Width), int32(cfg.Window.Height), "Snake")
	rl.SetWindowState(rl.FlagWindowResizable)
	defer rl.CloseWindow()

	rl.SetTargetFPS(int32(cfg.Window.FPS))

	renderer := ui.NewRenderer()
	opts.OnEnd = renderer.RecordScore
	opts.AutoRestart = opts.Pilot != nil
	s, err := session.New(opts)
	if err != nil {
		return err
	}
	if opts.Pilot != nil {
		s.Start()
	}

	lastUpdate := time.Now()
	for !rl.WindowShouldClose() {
		for _, cmd := range ui.PollInput() {
			switch cmd.Action {
			case ui.ActionSteer:
				if err := s.Steer(cmd.Direction); err != nil {
					log.Warn("Ignoring input: %v", err)
				}
			case ui.ActionToggle:
				s.Toggle()
			case ui.ActionReset:
				if err := s.Reset(); err != nil {
					return err
				}
			case ui.ActionQuit:
				return nil
			}
		}

		if rl.IsWindowResized() {
			renderer.UpdateDimensions()
		}

		// Update game state at fixed interval
		if time.Since(lastUpdate) >= opts.Interval {
			if _, err := s.Step(); err != nil {
				return err
			}
			lastUpdate = time.Now()
		}

		renderer.Draw(s.Snapshot(), ui.Summary{
			GamesPlayed:  history.GetGamesPlayed(),
			Wins:         history.GetWins(),
			AverageScore: history.GetAverageScore(),
			MaxScore:     history.GetMaxScore(),
			Autopilot:    opts.Pilot != nil,
		})
	}
	return nil
}
