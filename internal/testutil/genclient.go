package testutil

import (
	"context"
	"sync"

	"github.com/kaapeh/copiloto/internal/genai"
)

// GenClient is a fake generation client recording every call.
type GenClient struct {
	// DiagnoseResp is returned by Diagnose when DiagnoseErr is nil.
	DiagnoseResp genai.DiagnosisResponse

	// GreetResp is returned by Greet when GreetErr is nil.
	GreetResp string

	DiagnoseErr error
	GreetErr    error

	mu            sync.Mutex
	diagnoseCalls int
	greetCalls    int
	lastPrompt    string
}

var _ genai.Client = (*GenClient)(nil)

// Diagnose records the prompt and returns the configured response.
func (c *GenClient) Diagnose(_ context.Context, prompt string) (genai.DiagnosisResponse, error) {
	c.mu.Lock()
	c.diagnoseCalls++
	c.lastPrompt = prompt
	c.mu.Unlock()

	if c.DiagnoseErr != nil {
		return genai.DiagnosisResponse{}, c.DiagnoseErr
	}
	return c.DiagnoseResp, nil
}

// Greet records the prompt and returns the configured response.
func (c *GenClient) Greet(_ context.Context, prompt string) (string, error) {
	c.mu.Lock()
	c.greetCalls++
	c.lastPrompt = prompt
	c.mu.Unlock()

	if c.GreetErr != nil {
		return "", c.GreetErr
	}
	return c.GreetResp, nil
}

// DiagnoseCalls returns how many times Diagnose was invoked.
func (c *GenClient) DiagnoseCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.diagnoseCalls
}

// GreetCalls returns how many times Greet was invoked.
func (c *GenClient) GreetCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.greetCalls
}

// LastPrompt returns the most recent prompt passed to either method.
func (c *GenClient) LastPrompt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPrompt
}
