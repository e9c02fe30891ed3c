package manager

import (
	"time"

	"snake-game/game/types"
)

// EndFunc is notified once when a game ends. success is true for a win.
type EndFunc func(success bool)

// StateManager owns the lifecycle of one game:
//
//	NotStarted -> Running <-> Paused
//	Running|Paused|NotStarted -> Won|Lost
//
// Won and Lost are terminal.
type StateManager struct {
	status    types.Status
	reason    types.EndReason
	onGameEnd EndFunc
	endedAt   time.Time
}

func NewStateManager(onGameEnd EndFunc) *StateManager {
	return &StateManager{
		status:    types.NotStarted,
		onGameEnd: onGameEnd,
	}
}

func (sm *StateManager) Status() types.Status {
	return sm.status
}

func (sm *StateManager) Reason() types.EndReason {
	return sm.reason
}

func (sm *StateManager) EndedAt() time.Time {
	return sm.endedAt
}

func (sm *StateManager) Ended() bool {
	return sm.status.Ended()
}

func (sm *StateManager) Playing() bool {
	return sm.status == types.Running
}

// SetPlaying starts or pauses the game. It has no effect once ended, and
// pausing a game that never started leaves it NotStarted.
func (sm *StateManager) SetPlaying(playing bool) {
	if sm.Ended() {
		return
	}
	switch {
	case playing:
		sm.status = types.Running
	case sm.status == types.Running:
		sm.status = types.Paused
	}
}

// End moves the game into its terminal state and fires the end callback.
// Only the first call has any effect.
func (sm *StateManager) End(success bool, reason types.EndReason) types.Outcome {
	if sm.Ended() {
		return types.OutcomeNone
	}

	sm.reason = reason
	sm.endedAt = time.Now()
	outcome := types.OutcomeLost
	sm.status = types.Lost
	if success {
		outcome = types.OutcomeWon
		sm.status = types.Won
	}

	if sm.onGameEnd != nil {
		sm.onGameEnd(success)
	}
	return outcome
}
