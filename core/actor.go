package core

// ActorKey identifies an actor within a scenario. Keys are opaque, stable
// identifiers decoupled from display names: they index the roster, decisions
// and cost attribution, and survive renames of the human-readable Name.
type ActorKey string

// String returns the wire representation of the actor key.
func (k ActorKey) String() string { return string(k) }

// ActorState is the roster entry for one actor. Name and ShortName are
// display strings; Model names the language model that speaks for the actor;
// CurrentGoals evolve across turns via decisions; PrivateInformation is
// visible only to the actor's own prompts, never to other actors.
type ActorState struct {
	Key                ActorKey `json:"key"`
	Name               string   `json:"name"`
	ShortName          string   `json:"short_name,omitempty"`
	Model              string   `json:"model,omitempty"`
	CurrentGoals       []string `json:"current_goals,omitempty"`
	PrivateInformation string   `json:"private_information,omitempty"`
}

// Clone returns a deep copy safe for independent mutation.
func (a ActorState) Clone() ActorState {
	clone := a
	if a.CurrentGoals != nil {
		clone.CurrentGoals = make([]string, len(a.CurrentGoals))
		copy(clone.CurrentGoals, a.CurrentGoals)
	}
	return clone
}
