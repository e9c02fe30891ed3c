package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirection_Offsets(t *testing.T) {
	assert.Equal(t, Point{X: 0, Y: -1}, Up.Offset())
	assert.Equal(t, Point{X: 0, Y: 1}, Down.Offset())
	assert.Equal(t, Point{X: -1, Y: 0}, Left.Offset())
	assert.Equal(t, Point{X: 1, Y: 0}, Right.Offset())
	assert.Equal(t, Point{}, Direction(7).Offset())

	for _, d := range Directions {
		assert.Equal(t, Point{}, d.Offset().Add(d.Opposite().Offset()), "%v and its opposite cancel", d)
		assert.True(t, d.Valid())
	}
	assert.False(t, Direction(-1).Valid())
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection(" left ")
	require.NoError(t, err)
	assert.Equal(t, Left, d)

	_, err = ParseDirection("north")
	assert.Error(t, err)
}

func TestDirection_Text(t *testing.T) {
	text, err := Down.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "Down", string(text))

	var d Direction
	require.NoError(t, d.UnmarshalText([]byte("Right")))
	assert.Equal(t, Right, d)

	assert.Error(t, d.UnmarshalText([]byte("3")))
	_, err = Direction(9).MarshalText()
	assert.Error(t, err)
}

func TestDirectionBetween(t *testing.T) {
	d, ok := DirectionBetween(Point{X: 2, Y: 2}, Point{X: 2, Y: 1})
	assert.True(t, ok)
	assert.Equal(t, Up, d)

	_, ok = DirectionBetween(Point{X: 2, Y: 2}, Point{X: 3, Y: 3})
	assert.False(t, ok)
}

func TestBoard_String(t *testing.T) {
	b := NewBoard(Grid{Width: 3, Height: 2})
	b[0][0] = SnakeHead
	b[1][0] = SnakeBody
	b[2][1] = Food

	assert.Equal(t, "Ho.\n..*\n", b.String())
	assert.Equal(t, 3, b.Count(Empty))
}

func TestStatus_Ended(t *testing.T) {
	assert.True(t, Won.Ended())
	assert.True(t, Lost.Ended())
	assert.False(t, Paused.Ended())
	assert.Equal(t, "Running", Running.String())
	assert.Equal(t, "wall", ReasonWall.String())
	assert.Equal(t, "won", OutcomeWon.String())
}
