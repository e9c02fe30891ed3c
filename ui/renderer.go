package ui

import (
	"fmt"
	"sync"
	"time"

	"snake-game/game/types"
	"snake-game/session"

	rl "github.com/gen2brain/raylib-go/raylib"
)

const (
	maxScores     = 200 // Maximum number of scores to show in graph
	borderPadding = 10
)

// Summary carries the long-running numbers shown next to the board.
type Summary struct {
	GamesPlayed  int
	Wins         int
	AverageScore float64
	MaxScore     int
	Autopilot    bool
}

// Layout is where the board and the stats panel sit in the window.
type Layout struct {
	CellSize   int32
	OffsetX    int32
	OffsetY    int32
	GridWidth  int32
	GridHeight int32
	PanelX     int32
	PanelWidth int32
}

// ComputeLayout fits grid into the left part of a screenWidth x screenHeight
// window and leaves a seventh of the width for the stats panel.
func ComputeLayout(screenWidth, screenHeight int32, grid types.Grid) Layout {
	panel := screenWidth / 7
	gameWidth := screenWidth - panel

	availableWidth := gameWidth - borderPadding*2
	availableHeight := screenHeight - borderPadding*2
	cell := max(min(availableWidth/int32(grid.Width), availableHeight/int32(grid.Height)), 1)

	l := Layout{
		CellSize:   cell,
		GridWidth:  cell * int32(grid.Width),
		GridHeight: cell * int32(grid.Height),
		PanelX:     gameWidth,
		PanelWidth: panel,
	}
	l.OffsetX = borderPadding
	l.OffsetY = (screenHeight - l.GridHeight) / 2
	return l
}

func (l Layout) cell(p types.Point) (int32, int32) {
	return l.OffsetX + int32(p.X)*l.CellSize, l.OffsetY + int32(p.Y)*l.CellSize
}

type Renderer struct {
	screenWidth  int32
	screenHeight int32
	started      time.Time

	mu     sync.Mutex
	scores []int
}

func NewRenderer() *Renderer {
	r := &Renderer{started: time.Now()}
	r.UpdateDimensions()
	return r
}

func (r *Renderer) UpdateDimensions() {
	r.screenWidth = int32(rl.GetScreenWidth())
	r.screenHeight = int32(rl.GetScreenHeight())
}

// RecordScore adds a finished game to the performance graph. It can be used
// as a session end listener.
func (r *Renderer) RecordScore(v session.View) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.scores = append(r.scores, v.Score)
	if len(r.scores) > maxScores {
		r.scores = r.scores[len(r.scores)-maxScores:]
	}
}

func (r *Renderer) Draw(v session.View, summary Summary) {
	r.UpdateDimensions()
	rl.BeginDrawing()
	rl.ClearBackground(rl.Black)

	l := ComputeLayout(r.screenWidth, r.screenHeight, v.Grid)
	fontSize := min(r.screenHeight/45, l.PanelWidth/15)
	lineHeight := min(r.screenHeight/35, l.PanelWidth/12)

	rl.DrawRectangle(l.OffsetX-1, l.OffsetY-1, l.GridWidth+2, l.GridHeight+2, rl.DarkGray)
	for x := 0; x < v.Grid.Width; x++ {
		for y := 0; y < v.Grid.Height; y++ {
			px, py := l.cell(types.Point{X: x, Y: y})
			switch v.Board[x][y] {
			case types.SnakeHead:
				rl.DrawRectangle(px, py, l.CellSize, l.CellSize, rl.Lime)
			case types.SnakeBody:
				rl.DrawRectangle(px, py, l.CellSize, l.CellSize, rl.DarkGreen)
			case types.Food:
				rl.DrawRectangle(px, py, l.CellSize, l.CellSize, rl.Red)
			}
			rl.DrawRectangleLines(px, py, l.CellSize, l.CellSize, rl.Gray)
		}
	}
	if len(v.Snake) > 0 {
		r.drawHeading(l, v.Snake[0], v.Heading)
	}

	r.drawStatus(l, v, fontSize)
	r.drawStatsPanel(l, v, summary, fontSize, lineHeight)
	rl.EndDrawing()
}

func (r *Renderer) drawHeading(l Layout, head types.Point, heading types.Direction) {
	headX, headY := l.cell(head)
	half := l.CellSize / 2
	full := l.CellSize
	vec := func(x, y int32) rl.Vector2 { return rl.Vector2{X: float32(headX + x), Y: float32(headY + y)} }

	switch heading {
	case types.Right:
		rl.DrawTriangle(vec(full, half), vec(half, 0), vec(half, full), rl.Yellow)
	case types.Left:
		rl.DrawTriangle(vec(0, half), vec(half, full), vec(half, 0), rl.Yellow)
	case types.Down:
		rl.DrawTriangle(vec(half, full), vec(full, half), vec(0, half), rl.Yellow)
	case types.Up:
		rl.DrawTriangle(vec(half, 0), vec(0, half), vec(full, half), rl.Yellow)
	}
}

func statusText(v session.View) string {
	switch v.Status {
	case types.NotStarted:
		return "Press SPACE to start"
	case types.Paused:
		return "Paused"
	case types.Won:
		return "You win! Press R to play again"
	case types.Lost:
		return fmt.Sprintf("Game Over (%s)! Press R to play again", v.Reason)
	default:
		return ""
	}
}

func (r *Renderer) drawStatus(l Layout, v session.View, fontSize int32) {
	text := statusText(v)
	if text == "" {
		return
	}
	width := rl.MeasureText(text, fontSize)
	rl.DrawText(text, l.OffsetX+(l.GridWidth-width)/2, l.OffsetY+l.GridHeight/2, fontSize, rl.White)
}

func panelLines(v session.View, summary Summary) []string {
	lines := []string{
		fmt.Sprintf("Score: %d", v.Score),
		fmt.Sprintf("Length: %d", v.Length),
		fmt.Sprintf("Free: %d", v.Board.Count(types.Empty)),
		fmt.Sprintf("Steps: %d", v.Steps),
		fmt.Sprintf("Status: %s", v.Status),
		"",
		fmt.Sprintf("Games: %d", summary.GamesPlayed),
		fmt.Sprintf("Wins: %d", summary.Wins),
		fmt.Sprintf("Avg: %.2f", summary.AverageScore),
		fmt.Sprintf("Best: %d", summary.MaxScore),
	}
	if summary.Autopilot {
		lines = append(lines, "", "Autopilot")
	}
	return lines
}

func (r *Renderer) drawStatsPanel(l Layout, v session.View, summary Summary, fontSize, lineHeight int32) {
	statsX := l.PanelX + 5
	statsY := int32(10)

	rl.DrawRectangle(l.PanelX, 0, l.PanelWidth, r.screenHeight, rl.DarkGray)

	lines := panelLines(v, summary)
	for _, line := range lines {
		if line != "" {
			rl.DrawText(line, statsX, statsY, fontSize, rl.White)
		}
		statsY += lineHeight
	}

	r.drawPerformanceGraph(l, statsX, fontSize)
}

func (r *Renderer) drawPerformanceGraph(l Layout, graphX, fontSize int32) {
	graphWidth := l.PanelWidth - 20
	graphHeight := r.screenHeight / 5
	graphY := r.screenHeight - graphHeight - fontSize*2

	rl.DrawRectangleLines(graphX, graphY, graphWidth, graphHeight, rl.White)
	rl.DrawText("Performance", graphX, graphY-fontSize-5, fontSize, rl.White)

	duration := time.Since(r.started)
	timeText := fmt.Sprintf("%02d:%02d:%02d", int(duration.Hours()), int(duration.Minutes())%60, int(duration.Seconds())%60)
	rl.DrawText(timeText, graphX, r.screenHeight-fontSize-5, fontSize, rl.White)

	r.mu.Lock()
	scores := append([]int(nil), r.scores...)
	r.mu.Unlock()
	if len(scores) < 2 {
		return
	}

	maxScore, total := 1, 0
	for _, s := range scores {
		maxScore = max(maxScore, s)
		total += s
	}
	avgScore := float32(total) / float32(len(scores))

	scaleY := func(score float32) int32 {
		return graphY + graphHeight - int32(float32(graphHeight)*score/float32(maxScore))
	}
	for j := 1; j < len(scores); j++ {
		x1 := graphX + int32(float32(graphWidth)*float32(j-1)/float32(maxScores))
		x2 := graphX + int32(float32(graphWidth)*float32(j)/float32(maxScores))
		rl.DrawLine(x1, scaleY(float32(scores[j-1])), x2, scaleY(float32(scores[j])), rl.Lime)
	}

	avgY := scaleY(avgScore)
	for x := graphX; x < graphX+graphWidth; x += 5 {
		rl.DrawLine(x, avgY, x+2, avgY, rl.Yellow)
	}
}
