package model

import (
	"context"
	"fmt"
	"sync"
)

// Request captures the normalized model input produced by phase services.
type Request struct {
	// System is the system prompt establishing the actor's role.
	System string `json:"system,omitempty"`

	// Prompt is the user-turn content the model responds to.
	Prompt string `json:"prompt"`

	// MaxTokens caps the completion length. Zero lets the adapter choose.
	MaxTokens int64 `json:"max_tokens,omitempty"`

	// Temperature controls sampling randomness.
	Temperature float64 `json:"temperature,omitempty"`
}

// TokenUsage captures token counts for one completed call.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Total returns input plus output tokens.
func (u TokenUsage) Total() int { return u.InputTokens + u.OutputTokens }

// Response is the complete result of one model call.
type Response struct {
	Text  string     `json:"text"`
	Usage TokenUsage `json:"usage"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", etc.
}

// Model is the minimal interface phase services use to drive generation.
// Generate blocks until the completion is available or the context is done.
type Model interface {
	Generate(ctx context.Context, req Request) (Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockModel is a lightweight in-memory Model for tests and examples. It
// serves canned responses, records every request it receives, and can be
// scripted to fail. Safe for concurrent use.
type MockModel struct {
	mu        sync.Mutex
	info      Info
	canned    map[string]string
	queue     []string
	fallback  string
	err       error
	requests  []Request
	usagePer  TokenUsage
}

// NewMockModel constructs a mock with a deterministic default reply.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info:     Info{Name: name, Provider: "mock"},
		canned:   make(map[string]string),
		fallback: "mock response from " + name,
		usagePer: TokenUsage{InputTokens: 10, OutputTokens: 5},
	}
}

// AddResponse registers a canned completion for an exact prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.canned[prompt] = response
}

// QueueResponses appends replies served in order regardless of prompt,
// before any per-prompt or fallback lookup.
func (m *MockModel) QueueResponses(responses ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, responses...)
}

// SetFallback sets the reply for prompts with no canned or queued response.
func (m *MockModel) SetFallback(response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = response
}

// SetUsage sets the token usage reported per call.
func (m *MockModel) SetUsage(usage TokenUsage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usagePer = usage
}

// Fail makes every subsequent Generate return err. Pass nil to recover.
func (m *MockModel) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Requests returns a copy of every request received, in call order.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// CallCount reports how many Generate calls were made.
func (m *MockModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	if m.err != nil {
		return Response{}, fmt.Errorf("mock model %s: %w", m.info.Name, m.err)
	}

	text := m.fallback
	if len(m.queue) > 0 {
		text = m.queue[0]
		m.queue = m.queue[1:]
	} else if canned, ok := m.canned[req.Prompt]; ok {
		text = canned
	}

	return Response{Text: text, Usage: m.usagePer}, nil
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
