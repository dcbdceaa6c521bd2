package lifecycle

import "fmt"

// Builder configures the transition table for lifecycle machines.
type Builder interface {
	// Configure returns a state configuration for the given state.
	Configure(state State) StateConfiguration

	// Build creates a machine instance with the given initial state.
	Build(initialState State) Machine
}

// StateConfiguration configures transitions out of a specific state.
type StateConfiguration interface {
	// Permit allows a trigger to transition to the target state.
	Permit(trigger Trigger, toState State) StateConfiguration
}

type stateConfig struct {
	fromState   State
	transitions map[Trigger]State
}

type builder struct {
	configurations map[State]*stateConfig
}

// NewBuilder creates a new lifecycle machine builder.
func NewBuilder() Builder {
	return &builder{
		configurations: make(map[State]*stateConfig),
	}
}

// Configure returns a state configuration for the given state.
func (b *builder) Configure(state State) StateConfiguration {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", state))
	}

	config, exists := b.configurations[state]
	if !exists {
		config = &stateConfig{
			fromState:   state,
			transitions: make(map[Trigger]State),
		}
		b.configurations[state] = config
	}
	return config
}

// Build creates a machine instance with the given initial state.
// Configurations are copied so built machines never share mutable state.
func (b *builder) Build(initialState State) Machine {
	if !initialState.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", initialState))
	}

	transitions := make(map[State]map[Trigger]State, len(b.configurations))
	for state, config := range b.configurations {
		targets := make(map[Trigger]State, len(config.transitions))
		for trigger, to := range config.transitions {
			targets[trigger] = to
		}
		transitions[state] = targets
	}

	return &machine{
		currentState: initialState,
		transitions:  transitions,
	}
}

// Permit allows a trigger to transition to the target state.
func (c *stateConfig) Permit(trigger Trigger, toState State) StateConfiguration {
	if !toState.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", toState))
	}
	c.transitions[trigger] = toState
	return c
}
