package core

import "time"

// CostRecord captures the price of one model call. Immutable once appended.
// Turn carries provenance so branching can filter spend to the branch point.
type CostRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	Turn         int       `json:"turn"`
	Actor        ActorKey  `json:"actor"`
	Phase        PhaseType `json:"phase"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	Cost         float64   `json:"cost"`
}

// MetricRecord captures one measured value at a turn. Actor is empty for
// scenario-level metrics.
type MetricRecord struct {
	Turn      int       `json:"turn"`
	Name      string    `json:"name"`
	Value     float64   `json:"value"`
	Actor     ActorKey  `json:"actor,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Decision records one actor's commitment for a turn: the goals it holds
// after reflection, the reasoning it disclosed, and the action it takes.
type Decision struct {
	Actor     ActorKey `json:"actor"`
	Turn      int      `json:"turn"`
	Goals     []string `json:"goals,omitempty"`
	Reasoning string   `json:"reasoning,omitempty"`
	Action    string   `json:"action"`
}

// Clone returns a deep copy safe for independent mutation.
func (d Decision) Clone() Decision {
	clone := d
	if d.Goals != nil {
		clone.Goals = make([]string, len(d.Goals))
		copy(clone.Goals, d.Goals)
	}
	return clone
}

// Communication is one message exchanged during a communication phase.
// Type distinguishes message kinds (broadcast, direct, system); Recipients
// is empty for broadcasts addressed to everyone.
type Communication struct {
	ID         string     `json:"id"`
	Turn       int        `json:"turn"`
	Type       string     `json:"type"`
	Sender     ActorKey   `json:"sender"`
	Recipients []ActorKey `json:"recipients,omitempty"`
	Content    string     `json:"content"`
	Timestamp  time.Time  `json:"timestamp"`
}

// NewCommunication creates a communication record with a fresh ID and UTC timestamp.
func NewCommunication(turn int, commType string, sender ActorKey, recipients []ActorKey, content string) Communication {
	return Communication{
		ID:         NewID(),
		Turn:       turn,
		Type:       commType,
		Sender:     sender,
		Recipients: recipients,
		Content:    content,
		Timestamp:  time.Now().UTC(),
	}
}

// Clone returns a deep copy safe for independent mutation.
func (c Communication) Clone() Communication {
	clone := c
	if c.Recipients != nil {
		clone.Recipients = make([]ActorKey, len(c.Recipients))
		copy(clone.Recipients, c.Recipients)
	}
	return clone
}
