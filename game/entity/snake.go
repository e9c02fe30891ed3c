package entity

import (
	"snake-game/game/types"
)

// Snake is the player body. Body[0] is the head, the last element the tail.
type Snake struct {
	Body      []types.Point
	Direction types.Direction
}

// NewSnake lays out a straight snake of the given length with its head at
// head, the rest of the body trailing behind the heading.
func NewSnake(head types.Point, length int, heading types.Direction) *Snake {
	back := heading.Opposite().Offset()
	body := make([]types.Point, 0, length)
	p := head
	for i := 0; i < length; i++ {
		body = append(body, p)
		p = p.Add(back)
	}
	return &Snake{
		Body:      body,
		Direction: heading,
	}
}

// Move inserts newHead at the front. Unless grow is set the tail is dropped.
func (s *Snake) Move(newHead types.Point, grow bool) {
	if !grow {
		s.Body = s.Body[:len(s.Body)-1]
	}
	s.Body = append(s.Body, types.Point{})
	copy(s.Body[1:], s.Body[:len(s.Body)-1])
	s.Body[0] = newHead
}

func (s *Snake) GetHead() types.Point {
	return s.Body[0]
}

// GetNeck returns the segment right behind the head, if there is one.
func (s *Snake) GetNeck() (types.Point, bool) {
	if len(s.Body) < 2 {
		return types.Point{}, false
	}
	return s.Body[1], true
}

func (s *Snake) Len() int {
	return len(s.Body)
}

// Occupies reports whether any segment sits on p.
func (s *Snake) Occupies(p types.Point) bool {
	for _, part := range s.Body {
		if part == p {
			return true
		}
	}
	return false
}

// Segments returns a copy of the body, head first.
func (s *Snake) Segments() []types.Point {
	body := make([]types.Point, len(s.Body))
	copy(body, s.Body)
	return body
}
