package manager

import (
	"snake-game/game/entity"
	"snake-game/game/types"
)

// CollisionType represents the type of collision
type CollisionType int

const (
	NoCollision CollisionType = iota
	ReversalCollision
	WallCollision
	SelfCollision
)

// Reason maps a collision onto the reason a game ends with it.
func (c CollisionType) Reason() types.EndReason {
	switch c {
	case ReversalCollision:
		return types.ReasonReversal
	case WallCollision:
		return types.ReasonWall
	case SelfCollision:
		return types.ReasonSelf
	default:
		return types.ReasonNone
	}
}

type CollisionManager struct {
	grid types.Grid
}

func NewCollisionManager(grid types.Grid) *CollisionManager {
	return &CollisionManager{
		grid: grid,
	}
}

// CheckMove classifies moving snake one step in dir. Checks run in a fixed
// order: reversal, wall, then self, so a doomed move reports the first rule
// it breaks. newHead is only meaningful when the result is NoCollision.
func (cm *CollisionManager) CheckMove(snake *entity.Snake, dir types.Direction) (types.Point, CollisionType) {
	if cm.IsReversal(snake, dir) {
		return types.Point{}, ReversalCollision
	}

	newHead := snake.GetHead().Add(dir.Offset())
	if cm.isWallCollision(newHead) {
		return newHead, WallCollision
	}
	if cm.isSelfCollision(newHead, snake) {
		return newHead, SelfCollision
	}
	return newHead, NoCollision
}

// IsReversal reports whether dir would put the head onto the neck.
func (cm *CollisionManager) IsReversal(snake *entity.Snake, dir types.Direction) bool {
	neck, ok := snake.GetNeck()
	if !ok {
		return false
	}
	return snake.GetHead().Add(dir.Offset()) == neck
}

// isWallCollision checks if a position collides with walls
func (cm *CollisionManager) isWallCollision(pos types.Point) bool {
	return !cm.grid.Contains(pos)
}

// isSelfCollision checks pos against every segment but the head, which is
// about to move away. The tail counts: it has not moved yet.
func (cm *CollisionManager) isSelfCollision(pos types.Point, snake *entity.Snake) bool {
	for i := 1; i < len(snake.Body); i++ {
		if pos == snake.Body[i] {
			return true
		}
	}
	return false
}

// ValidateSpawnPosition checks if a position is free for food
func (cm *CollisionManager) ValidateSpawnPosition(pos types.Point, snake *entity.Snake) bool {
	if cm.isWallCollision(pos) {
		return false
	}
	return !snake.Occupies(pos)
}
