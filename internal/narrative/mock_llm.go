package narrative

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockLLM is a deterministic LLM implementation for testing.
// It returns predictable responses based on prompt content.
type MockLLM struct {
	mu sync.Mutex

	// Response is the fixed text returned by Generate.
	// If empty, a default response is generated from the prompt.
	Response string

	// Error, if set, is returned by Generate instead of a response.
	Error error

	// FailTimes makes the first N calls fail with FailErr before
	// falling through to Response.
	FailTimes int
	FailErr   error

	// LastPrompt stores the most recent prompt passed to Generate.
	LastPrompt string

	calls int
}

// NewMockLLM creates a mock LLM with the given fixed response.
func NewMockLLM(response string) *MockLLM {
	return &MockLLM{Response: response}
}

// NewMockLLMWithError creates a mock LLM that always returns an error.
func NewMockLLMWithError(err error) *MockLLM {
	return &MockLLM{Error: err}
}

// NewFlakyMockLLM fails the first failTimes calls, then returns response.
func NewFlakyMockLLM(failTimes int, response string) *MockLLM {
	return &MockLLM{
		Response:  response,
		FailTimes: failTimes,
		FailErr:   fmt.Errorf("%w: API unavailable", ErrLLMFailed),
	}
}

// Generate returns the configured response or generates a deterministic one.
func (m *MockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.LastPrompt = prompt

	if m.Error != nil {
		return "", m.Error
	}

	if m.calls <= m.FailTimes {
		if m.FailErr != nil {
			return "", m.FailErr
		}
		return "", ErrLLMFailed
	}

	if m.Response != "" {
		return m.Response, nil
	}

	// Generate a deterministic response based on prompt content
	return generateMockResponse(prompt), nil
}

// Calls reports how many times Generate has been invoked.
func (m *MockLLM) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Prompt returns the most recent prompt under the lock.
func (m *MockLLM) Prompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.LastPrompt
}

// generateMockResponse answers ending prompts with valid JSON and scene
// prompts with a short passage that mentions the player's choice.
func generateMockResponse(prompt string) string {
	if strings.Contains(prompt, `"epilogue"`) {
		return `{"epilogue":"The journey draws to a quiet close.","characterLegacy":"Their name is spoken with respect.","worldImpact":"The realm breathes easier.","tone":"hopeful","achievements":["Reached the end"]}`
	}

	choice := extractLine(prompt, "Player choice:")
	if choice == "" {
		choice = "wait"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("You decide to %s. ", choice))
	b.WriteString("The wind shifts as Sir Aldric watches from the gate, ")
	b.WriteString("and the road ahead bends toward the Tower of Dawn.")
	return b.String()
}

func extractLine(prompt, prefix string) string {
	for _, line := range strings.Split(prompt, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix))
		}
	}
	return ""
}
