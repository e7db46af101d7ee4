package voice

import "slices"

// State 会话控制器状态
type State int

const (
	StateIdle State = iota
	StateCreating
	StateListening
	StateStopping
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateCreating:
		return "Creating"
	case StateListening:
		return "Listening"
	case StateStopping:
		return "Stopping"
	case StateDestroyed:
		return "Destroyed"
	default:
		return "Unknown"
	}
}

var validTransitions = map[State][]State{
	StateIdle:      {StateCreating, StateStopping, StateDestroyed},
	StateCreating:  {StateListening, StateIdle, StateDestroyed},
	StateListening: {StateStopping, StateCreating, StateIdle, StateDestroyed},
	StateStopping:  {StateIdle, StateDestroyed},
	StateDestroyed: {StateCreating, StateDestroyed},
}

// StateMachine 状态机，调用方负责加锁
type StateMachine struct {
	currentState State
}

func NewStateMachine() *StateMachine {
	return &StateMachine{
		currentState: StateIdle,
	}
}

// CanTransition 检查是否可以转换
func (sm *StateMachine) CanTransition(to State) bool {
	validTo, ok := validTransitions[sm.currentState]
	if !ok {
		return false
	}
	return slices.Contains(validTo, to)
}

// Transition 状态转换
func (sm *StateMachine) Transition(to State) bool {
	if sm.CanTransition(to) {
		sm.currentState = to
		return true
	}
	return false
}

// GetCurrentState 获取当前状态
func (sm *StateMachine) GetCurrentState() State {
	return sm.currentState
}
