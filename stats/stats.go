// Package stats keeps the results of finished games and answers aggregate
// questions about them (average score, best score, win rate...).
//
// Single records are folded into group records of GroupSize games once
// enough of them pile up, so the history stays small however long the
// program runs. Groups are folded again at the next level the same way.
package stats

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/quasilyte/gdata/v2"
	"gopkg.in/yaml.v3"
)

const (
	GroupSize = 100 // records per group

	statsObject   = "stats"
	statsProperty = "history"
)

// GameRecord is either a single game (GamesCount == 1, CompressionIndex 0)
// or a group of games folded together.
type GameRecord struct {
	GameID           string    `yaml:"gameId,omitempty"`
	StartTime        time.Time `yaml:"startTime"`
	EndTime          time.Time `yaml:"endTime"`
	Score            int       `yaml:"score"`
	Length           int       `yaml:"length"`
	Steps            int       `yaml:"steps"`
	Won              bool      `yaml:"won"`
	Reason           string    `yaml:"reason,omitempty"`
	CompressionIndex int       `yaml:"compressionIndex"`
	GamesCount       int       `yaml:"gamesCount"`
	Wins             int       `yaml:"wins"`
	AverageScore     float64   `yaml:"averageScore"`
	MedianScore      float64   `yaml:"medianScore"`
	MaxScore         int       `yaml:"maxScore"`
	MinScore         int       `yaml:"minScore"`
	AverageDuration  float64   `yaml:"averageDuration"`
	MaxDuration      float64   `yaml:"maxDuration"`
	MinDuration      float64   `yaml:"minDuration"`
}

// Result describes one finished game.
type Result struct {
	GameID    string
	StartTime time.Time
	EndTime   time.Time
	Score     int
	Length    int
	Steps     int
	Won       bool
	Reason    string
}

// GameStats holds the history. A nil gdata manager keeps it in memory only.
type GameStats struct {
	Games []GameRecord
	store *gdata.Manager
	mutex sync.RWMutex
}

// NewGameStats creates the history and loads whatever store already holds.
// A load failure still returns usable, empty stats alongside the error.
func NewGameStats(store *gdata.Manager) (*GameStats, error) {
	s := &GameStats{
		Games: make([]GameRecord, 0),
		store: store,
	}
	if err := s.Load(); err != nil {
		return s, err
	}
	return s, nil
}

// AddGame records a finished game.
func (s *GameStats) AddGame(r Result) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	duration := r.EndTime.Sub(r.StartTime).Seconds()
	wins := 0
	if r.Won {
		wins = 1
	}
	s.Games = append(s.Games, GameRecord{
		GameID:          r.GameID,
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
		Score:           r.Score,
		Length:          r.Length,
		Steps:           r.Steps,
		Won:             r.Won,
		Reason:          r.Reason,
		GamesCount:      1,
		Wins:            wins,
		AverageScore:    float64(r.Score),
		MedianScore:     float64(r.Score),
		MaxScore:        r.Score,
		MinScore:        r.Score,
		AverageDuration: duration,
		MaxDuration:     duration,
		MinDuration:     duration,
	})

	s.groupGames()
}

// groupGames folds every full run of GroupSize records at one compression
// level into a single record at the next level.
func (s *GameStats) groupGames() {
	sort.SliceStable(s.Games, func(i, j int) bool {
		if s.Games[i].CompressionIndex != s.Games[j].CompressionIndex {
			return s.Games[i].CompressionIndex > s.Games[j].CompressionIndex
		}
		return s.Games[i].StartTime.Before(s.Games[j].StartTime)
	})

	for level := 0; ; level++ {
		var records, others []GameRecord
		for _, g := range s.Games {
			if g.CompressionIndex == level {
				records = append(records, g)
			} else {
				others = append(others, g)
			}
		}
		if len(records) < GroupSize {
			if level > maxLevel(s.Games) {
				return
			}
			continue
		}

		full := len(records) / GroupSize * GroupSize
		folded := make([]GameRecord, 0, full/GroupSize+len(records)-full)
		for i := 0; i < full; i += GroupSize {
			folded = append(folded, foldGroup(records[i:i+GroupSize], level+1))
		}
		folded = append(folded, records[full:]...)
		s.Games = append(others, folded...)
	}
}

func maxLevel(games []GameRecord) int {
	level := 0
	for _, g := range games {
		level = max(level, g.CompressionIndex)
	}
	return level
}

func foldGroup(group []GameRecord, level int) GameRecord {
	out := GameRecord{
		StartTime:        group[0].StartTime,
		EndTime:          group[0].EndTime,
		CompressionIndex: level,
		MaxScore:         group[0].MaxScore,
		MinScore:         group[0].MinScore,
		MaxDuration:      group[0].MaxDuration,
		MinDuration:      group[0].MinDuration,
	}

	var totalScore, totalDuration float64
	medians := make([]float64, 0, len(group))
	for _, g := range group {
		out.MaxScore = max(out.MaxScore, g.MaxScore)
		out.MinScore = min(out.MinScore, g.MinScore)
		out.MaxDuration = max(out.MaxDuration, g.MaxDuration)
		out.MinDuration = min(out.MinDuration, g.MinDuration)
		if g.StartTime.Before(out.StartTime) {
			out.StartTime = g.StartTime
		}
		if g.EndTime.After(out.EndTime) {
			out.EndTime = g.EndTime
		}
		totalScore += g.AverageScore * float64(g.GamesCount)
		totalDuration += g.AverageDuration * float64(g.GamesCount)
		out.GamesCount += g.GamesCount
		out.Wins += g.Wins
		for i := 0; i < g.GamesCount; i++ {
			medians = append(medians, g.MedianScore)
		}
	}

	out.AverageScore = totalScore / float64(out.GamesCount)
	out.AverageDuration = totalDuration / float64(out.GamesCount)
	out.MedianScore = median(medians)
	return out
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// GetStats returns a copy of the stored records.
func (s *GameStats) GetStats() []GameRecord {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return append([]GameRecord(nil), s.Games...)
}

func (s *GameStats) GetGamesPlayed() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	total := 0
	for _, g := range s.Games {
		total += g.GamesCount
	}
	return total
}

func (s *GameStats) GetWins() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	wins := 0
	for _, g := range s.Games {
		wins += g.Wins
	}
	return wins
}

func (s *GameStats) GetAverageScore() float64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var totalScore float64
	var totalGames int
	for _, g := range s.Games {
		totalScore += g.AverageScore * float64(g.GamesCount)
		totalGames += g.GamesCount
	}
	if totalGames == 0 {
		return 0
	}
	return totalScore / float64(totalGames)
}

// GetMedianScore weighs each record's median by the games it stands for.
func (s *GameStats) GetMedianScore() float64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	all := make([]float64, 0)
	for _, g := range s.Games {
		for i := 0; i < g.GamesCount; i++ {
			all = append(all, g.MedianScore)
		}
	}
	return median(all)
}

func (s *GameStats) GetMaxScore() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	best := 0
	for _, g := range s.Games {
		best = max(best, g.MaxScore)
	}
	return best
}

// GetAverageDuration is in seconds.
func (s *GameStats) GetAverageDuration() float64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var totalDuration float64
	var totalGames int
	for _, g := range s.Games {
		totalDuration += g.AverageDuration * float64(g.GamesCount)
		totalGames += g.GamesCount
	}
	if totalGames == 0 {
		return 0
	}
	return totalDuration / float64(totalGames)
}

// GetMaxDuration is in seconds.
func (s *GameStats) GetMaxDuration() float64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	longest := 0.0
	for _, g := range s.Games {
		longest = max(longest, g.MaxDuration)
	}
	return longest
}

// Save writes the history to the gdata store. Without a store it does nothing.
func (s *GameStats) Save() error {
	if s.store == nil {
		return nil
	}

	s.mutex.RLock()
	data, err := yaml.Marshal(s.Games)
	s.mutex.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	if err := s.store.SaveObjectProp(statsObject, statsProperty, data); err != nil {
		return fmt.Errorf("failed to save stats: %w", err)
	}
	return nil
}

// Load replaces the history with the stored one, if any.
func (s *GameStats) Load() error {
	if s.store == nil || !s.store.ObjectPropExists(statsObject, statsProperty) {
		return nil
	}

	data, err := s.store.LoadObjectProp(statsObject, statsProperty)
	if err != nil {
		return fmt.Errorf("failed to load stats: %w", err)
	}

	var games []GameRecord
	if err := yaml.Unmarshal(data, &games); err != nil {
		return fmt.Errorf("failed to unmarshal stats: %w", err)
	}

	s.mutex.Lock()
	s.Games = games
	s.mutex.Unlock()
	return nil
}

// Open creates a gdata store for appName.
func Open(appName string) (*gdata.Manager, error) {
	store, err := gdata.Open(gdata.Config{AppName: appName})
	if err != nil {
		return nil, fmt.Errorf("opening stats store %q: %w", appName, err)
	}
	return store, nil
}
