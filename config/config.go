// Package config loads the game configuration. Values are layered: built-in
// defaults, then an optional YAML file, then SNAKE_* environment variables
// (a .env file is loaded into the environment first). Command line flags are
// applied on top by main.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigEnv names the environment variable holding the config file path.
const ConfigEnv = "SNAKE_CONFIG"

// Autopilot kinds.
const (
	KindQTable = "qtable"
	KindDQN    = "dqn"
)

type Config struct {
	Board       BoardConfig     `yaml:"board"`
	SpeedMs     int             `yaml:"speed_ms"` // milliseconds between ticks
	Seed        uint64          `yaml:"seed"`     // 0 seeds from the clock
	Autopilot   AutopilotConfig `yaml:"autopilot"`
	Window      WindowConfig    `yaml:"window"`
	Stats       StatsConfig     `yaml:"stats"`
	MetricsAddr string          `yaml:"metrics_addr"` // empty disables /metrics
	LogLevel    string          `yaml:"log_level"`
}

type BoardConfig struct {
	Width       int `yaml:"width"`
	Height      int `yaml:"height"`
	StartLength int `yaml:"start_length"`
}

type AutopilotConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Kind         string  `yaml:"kind"` // qtable or dqn
	QTablePath   string  `yaml:"qtable_path"`
	WeightsPath  string  `yaml:"weights_path"` // dqn only
	LearningRate float64 `yaml:"learning_rate"`
	Discount     float64 `yaml:"discount"`
	Epsilon      float64 `yaml:"epsilon"`
	MinEpsilon   float64 `yaml:"min_epsilon"`
	EpsilonDecay float64 `yaml:"epsilon_decay"` // per game, 0 disables
}

type WindowConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	FPS    int `yaml:"fps"`
}

type StatsConfig struct {
	Enabled bool   `yaml:"enabled"`
	AppName string `yaml:"app_name"` // gdata application directory
}

// Defaults mirrors the classic setup: a 10x10 board, a snake of three and
// one tick per second.
func Defaults() *Config {
	return &Config{
		Board: BoardConfig{
			Width:       10,
			Height:      10,
			StartLength: 3,
		},
		SpeedMs: 1000,
		Autopilot: AutopilotConfig{
			Kind:         KindQTable,
			LearningRate: 0.1,
			Discount:     0.9,
			Epsilon:      0.1,
			MinEpsilon:   0.01,
		},
		Window: WindowConfig{
			Width:  1280,
			Height: 800,
			FPS:    60,
		},
		Stats: StatsConfig{
			Enabled: true,
			AppName: "snake_game",
		},
		LogLevel: "INFO",
	}
}

// TickInterval is the scheduler cadence.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.SpeedMs) * time.Millisecond
}

// Load builds a Config from defaults, the YAML file at path (or $SNAKE_CONFIG
// when path is empty) and the environment. A missing .env file is fine.
func Load(path string) (*Config, error) {
	if err := LoadEnvFile(); err != nil {
		return nil, err
	}

	cfg := Defaults()
	if path == "" {
		path = os.Getenv(ConfigEnv)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFile loads .env style files into the process environment without
// overriding variables that are already set. No arguments means ./.env.
func LoadEnvFile(filenames ...string) error {
	if err := godotenv.Load(filenames...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading env file: %w", err)
	}
	return nil
}

// Validate reports the first value that cannot produce a playable game.
func (c *Config) Validate() error {
	b := c.Board
	a := c.Autopilot
	w := c.Window
	switch {
	case b.Width < 1 || b.Height < 1:
		return fmt.Errorf("board must be at least 1x1, got %dx%d", b.Width, b.Height)
	case b.StartLength < 1 || b.StartLength > b.Width:
		return fmt.Errorf("start_length %d must be between 1 and the board width %d", b.StartLength, b.Width)
	case b.StartLength >= b.Width*b.Height:
		return fmt.Errorf("start_length %d leaves no room for food", b.StartLength)
	case c.SpeedMs <= 0:
		return fmt.Errorf("speed_ms must be positive, got %d", c.SpeedMs)
	case w.Width <= 0 || w.Height <= 0:
		return fmt.Errorf("window must have a positive size, got %dx%d", w.Width, w.Height)
	case w.FPS <= 0:
		return fmt.Errorf("window fps must be positive, got %d", w.FPS)
	case a.Kind != KindQTable && a.Kind != KindDQN:
		return fmt.Errorf("autopilot kind must be %q or %q, got %q", KindQTable, KindDQN, a.Kind)
	case a.LearningRate < 0 || a.LearningRate > 1:
		return fmt.Errorf("autopilot learning_rate must be within [0,1], got %v", a.LearningRate)
	case a.Discount < 0 || a.Discount > 1:
		return fmt.Errorf("autopilot discount must be within [0,1], got %v", a.Discount)
	case a.Epsilon < 0 || a.Epsilon > 1:
		return fmt.Errorf("autopilot epsilon must be within [0,1], got %v", a.Epsilon)
	case a.MinEpsilon < 0 || a.MinEpsilon > 1:
		return fmt.Errorf("autopilot min_epsilon must be within [0,1], got %v", a.MinEpsilon)
	case a.EpsilonDecay < 0 || a.EpsilonDecay > 1:
		return fmt.Errorf("autopilot epsilon_decay must be within [0,1], got %v", a.EpsilonDecay)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	ints := map[string]*int{
		"SNAKE_WIDTH":        &cfg.Board.Width,
		"SNAKE_HEIGHT":       &cfg.Board.Height,
		"SNAKE_START_LENGTH": &cfg.Board.StartLength,
		"SNAKE_SPEED_MS":     &cfg.SpeedMs,
	}
	for key, dst := range ints {
		if err := getEnvAsInt(key, dst); err != nil {
			return err
		}
	}

	if v, ok := os.LookupEnv("SNAKE_SEED"); ok {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("environment variable SNAKE_SEED must be an unsigned integer: %w", err)
		}
		cfg.Seed = seed
	}
	if v, ok := os.LookupEnv("SNAKE_AUTOPILOT"); ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("environment variable SNAKE_AUTOPILOT must be a boolean: %w", err)
		}
		cfg.Autopilot.Enabled = enabled
	}

	cfg.Autopilot.Kind = getEnvWithDefault("SNAKE_AUTOPILOT_KIND", cfg.Autopilot.Kind)
	cfg.Autopilot.QTablePath = getEnvWithDefault("SNAKE_QTABLE", cfg.Autopilot.QTablePath)
	cfg.Autopilot.WeightsPath = getEnvWithDefault("SNAKE_WEIGHTS", cfg.Autopilot.WeightsPath)
	cfg.MetricsAddr = getEnvWithDefault("SNAKE_METRICS_ADDR", cfg.MetricsAddr)
	cfg.LogLevel = getEnvWithDefault("SNAKE_LOG_LEVEL", cfg.LogLevel)
	return nil
}

// getEnvAsInt overwrites dst when key is set.
func getEnvAsInt(key string, dst *int) error {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return fmt.Errorf("environment variable %s must be an integer: %w", key, err)
	}
	*dst = value
	return nil
}

// getEnvWithDefault retrieves the value of an environment variable or returns a default value if not set.
func getEnvWithDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
