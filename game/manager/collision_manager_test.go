package manager

import (
	"testing"

	"snake-game/game/entity"
	"snake-game/game/types"

	"github.com/stretchr/testify/assert"
)

func TestCollisionManager_CheckMove(t *testing.T) {
	cm := NewCollisionManager(types.Grid{Width: 5, Height: 5})
	// Head at (1,1), body curling down and right.
	snake := &entity.Snake{Body: []types.Point{{X: 1, Y: 1}, {X: 1, Y: 2}, {X: 2, Y: 2}, {X: 2, Y: 1}}}

	tests := []struct {
		name string
		dir  types.Direction
		want CollisionType
		head types.Point
	}{
		{"onto neck", types.Down, ReversalCollision, types.Point{}},
		{"onto own body", types.Right, SelfCollision, types.Point{X: 2, Y: 1}},
		{"free cell", types.Up, NoCollision, types.Point{X: 1, Y: 0}},
		{"free cell left", types.Left, NoCollision, types.Point{X: 0, Y: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			head, got := cm.CheckMove(snake, tt.dir)
			assert.Equal(t, tt.want, got)
			if got != ReversalCollision {
				assert.Equal(t, tt.head, head)
			}
		})
	}
}

func TestCollisionManager_Walls(t *testing.T) {
	cm := NewCollisionManager(types.Grid{Width: 3, Height: 2})

	corners := map[types.Point][]types.Direction{
		{X: 0, Y: 0}: {types.Up, types.Left},
		{X: 2, Y: 1}: {types.Down, types.Right},
	}
	for p, dirs := range corners {
		for _, dir := range dirs {
			_, got := cm.CheckMove(&entity.Snake{Body: []types.Point{p}}, dir)
			assert.Equal(t, WallCollision, got, "%v moving %v", p, dir)
			assert.Equal(t, types.ReasonWall, got.Reason())
		}
	}
}

func TestCollisionManager_ReversalCheckedFirst(t *testing.T) {
	cm := NewCollisionManager(types.Grid{Width: 3, Height: 3})
	snake := &entity.Snake{Body: []types.Point{{X: 0, Y: 0}, {X: 1, Y: 0}}}

	assert.True(t, cm.IsReversal(snake, types.Right))
	assert.False(t, cm.IsReversal(snake, types.Left))
	assert.False(t, cm.IsReversal(&entity.Snake{Body: []types.Point{{X: 1, Y: 1}}}, types.Left))
}

func TestCollisionManager_ValidateSpawnPosition(t *testing.T) {
	cm := NewCollisionManager(types.Grid{Width: 3, Height: 3})
	snake := &entity.Snake{Body: []types.Point{{X: 1, Y: 1}}}

	assert.False(t, cm.ValidateSpawnPosition(types.Point{X: 1, Y: 1}, snake))
	assert.False(t, cm.ValidateSpawnPosition(types.Point{X: 3, Y: 0}, snake))
	assert.True(t, cm.ValidateSpawnPosition(types.Point{X: 0, Y: 2}, snake))
}
