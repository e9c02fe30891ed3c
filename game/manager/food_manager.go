package manager

import (
	"errors"

	"snake-game/game/entity"
	"snake-game/game/types"

	"golang.org/x/exp/rand"
)

// ErrBoardFull is returned when food has to be placed but no cell is empty.
var ErrBoardFull = errors.New("no empty tiles to place food")

type FoodManager struct {
	grid         types.Grid
	foodList     []types.Point
	rng          *rand.Rand
	collisionMgr *CollisionManager
}

func NewFoodManager(grid types.Grid, collisionMgr *CollisionManager, rng *rand.Rand) *FoodManager {
	return &FoodManager{
		grid:         grid,
		foodList:     make([]types.Point, 0, 1),
		rng:          rng,
		collisionMgr: collisionMgr,
	}
}

// EmptyCells lists the cells holding neither snake nor food, scanning
// column by column (x outer, y inner).
func (fm *FoodManager) EmptyCells(snake *entity.Snake) []types.Point {
	empty := make([]types.Point, 0, max(fm.grid.Area()-snake.Len()-len(fm.foodList), 0))
	for x := 0; x < fm.grid.Width; x++ {
		for y := 0; y < fm.grid.Height; y++ {
			p := types.Point{X: x, Y: y}
			if fm.collisionMgr.ValidateSpawnPosition(p, snake) && !fm.Contains(p) {
				empty = append(empty, p)
			}
		}
	}
	return empty
}

// GenerateFood picks a uniformly random empty cell without placing it.
func (fm *FoodManager) GenerateFood(snake *entity.Snake) (types.Point, error) {
	empty := fm.EmptyCells(snake)
	if len(empty) == 0 {
		return types.Point{}, ErrBoardFull
	}
	return empty[fm.rng.Intn(len(empty))], nil
}

// Place generates a food item and adds it to the set.
func (fm *FoodManager) Place(snake *entity.Snake) (types.Point, error) {
	food, err := fm.GenerateFood(snake)
	if err != nil {
		return types.Point{}, err
	}
	fm.AddFood(food)
	return food, nil
}

func (fm *FoodManager) Contains(p types.Point) bool {
	for _, f := range fm.foodList {
		if f == p {
			return true
		}
	}
	return false
}

// GetFoodList returns a copy of the food positions.
func (fm *FoodManager) GetFoodList() []types.Point {
	food := make([]types.Point, len(fm.foodList))
	copy(food, fm.foodList)
	return food
}

func (fm *FoodManager) Len() int {
	return len(fm.foodList)
}

func (fm *FoodManager) AddFood(food types.Point) {
	if fm.Contains(food) {
		return
	}
	fm.foodList = append(fm.foodList, food)
}

// RemoveFood deletes food from the set and reports whether it was there.
func (fm *FoodManager) RemoveFood(food types.Point) bool {
	for i, f := range fm.foodList {
		if f == food {
			// Remove food from list by swapping with last element and truncating
			fm.foodList[i] = fm.foodList[len(fm.foodList)-1]
			fm.foodList = fm.foodList[:len(fm.foodList)-1]
			return true
		}
	}
	return false
}
