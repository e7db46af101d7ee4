package voice

import "testing"

func TestStateMachine(t *testing.T) {
	sm := NewStateMachine()

	tests := []struct {
		name          string
		from          State
		to            State
		shouldSucceed bool
	}{
		{"Idle to Creating", StateIdle, StateCreating, true},
		{"Idle to Stopping", StateIdle, StateStopping, true},
		{"Idle to Destroyed", StateIdle, StateDestroyed, true},
		{"Idle to Listening", StateIdle, StateListening, false},
		{"Creating to Listening", StateCreating, StateListening, true},
		{"Creating to Idle", StateCreating, StateIdle, true},
		{"Creating to Stopping", StateCreating, StateStopping, false},
		{"Listening to Stopping", StateListening, StateStopping, true},
		{"Listening to Creating", StateListening, StateCreating, true},
		{"Listening to Idle", StateListening, StateIdle, true},
		{"Stopping to Idle", StateStopping, StateIdle, true},
		{"Stopping to Listening", StateStopping, StateListening, false},
		{"Destroyed to Creating", StateDestroyed, StateCreating, true},
		{"Destroyed to Listening", StateDestroyed, StateListening, false},
		{"Destroyed to Idle", StateDestroyed, StateIdle, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm.currentState = tt.from
			result := sm.Transition(tt.to)
			if result != tt.shouldSucceed {
				t.Errorf("Transition(%v) = %v, want %v", tt.to, result, tt.shouldSucceed)
			}
			if result && sm.GetCurrentState() != tt.to {
				t.Errorf("State after transition = %v, want %v", sm.GetCurrentState(), tt.to)
			}
			if !result && sm.GetCurrentState() != tt.from {
				t.Errorf("State after rejected transition = %v, want %v", sm.GetCurrentState(), tt.from)
			}
		})
	}
}

func TestDestroyReachableFromEveryState(t *testing.T) {
	for _, from := range []State{StateIdle, StateCreating, StateListening, StateStopping, StateDestroyed} {
		sm := &StateMachine{currentState: from}
		if !sm.CanTransition(StateDestroyed) {
			t.Errorf("%s cannot reach Destroyed", from)
		}
	}
}

func TestStateString(t *testing.T) {
	if got := StateListening.String(); got != "Listening" {
		t.Errorf("String() = %q", got)
	}
	if got := State(42).String(); got != "Unknown" {
		t.Errorf("String() = %q", got)
	}
}
