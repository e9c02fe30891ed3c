package ui

import (
	"snake-game/game/types"

	rl "github.com/gen2brain/raylib-go/raylib"
)

type Action int

const (
	ActionNone Action = iota
	ActionSteer
	ActionToggle // start or pause
	ActionReset
	ActionQuit
)

// Command is one decoded key press.
type Command struct {
	Action    Action
	Direction types.Direction // only for ActionSteer
}

type binding struct {
	key int32
	cmd Command
}

var keyBindings = []binding{
	{rl.KeyUp, Command{Action: ActionSteer, Direction: types.Up}},
	{rl.KeyW, Command{Action: ActionSteer, Direction: types.Up}},
	{rl.KeyDown, Command{Action: ActionSteer, Direction: types.Down}},
	{rl.KeyS, Command{Action: ActionSteer, Direction: types.Down}},
	{rl.KeyLeft, Command{Action: ActionSteer, Direction: types.Left}},
	{rl.KeyA, Command{Action: ActionSteer, Direction: types.Left}},
	{rl.KeyRight, Command{Action: ActionSteer, Direction: types.Right}},
	{rl.KeyD, Command{Action: ActionSteer, Direction: types.Right}},
	{rl.KeySpace, Command{Action: ActionToggle}},
	{rl.KeyR, Command{Action: ActionReset}},
	{rl.KeyQ, Command{Action: ActionQuit}},
}

// MapKey decodes a raylib key code.
func MapKey(key int32) Command {
	for _, b := range keyBindings {
		if b.key == key {
			return b.cmd
		}
	}
	return Command{Action: ActionNone}
}

// PollInput drains raylib's key queue and returns the bound commands in the
// order the keys were pressed.
func PollInput() []Command {
	var cmds []Command
	for key := rl.GetKeyPressed(); key != 0; key = rl.GetKeyPressed() {
		if cmd := MapKey(key); cmd.Action != ActionNone {
			cmds = append(cmds, cmd)
		}
	}
	return cmds
}
