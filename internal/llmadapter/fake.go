package llmadapter

import (
	"context"
	"sync"
	"time"
)

// FakeAdapter is a deterministic Adapter for tests. Responses and errors are
// scripted per call index, falling back to DefaultText when exhausted.
type FakeAdapter struct {
	mu sync.Mutex

	DefaultText string
	Responses   []string
	Errors      []error
	calls       int

	Latency time.Duration
}

// NewFakeAdapter returns a FakeAdapter that echoes DefaultText by default.
func NewFakeAdapter(defaultText string) *FakeAdapter {
	return &FakeAdapter{DefaultText: defaultText}
}

// Generate implements Adapter.
func (f *FakeAdapter) Generate(_ context.Context, _, userPrompt string, params ModelParams) (Result, error) {
	f.mu.Lock()
	idx := f.calls
	f.calls++
	f.mu.Unlock()

	if idx < len(f.Errors) && f.Errors[idx] != nil {
		return Result{}, f.Errors[idx]
	}

	text := f.DefaultText
	if idx < len(f.Responses) {
		text = f.Responses[idx]
	}

	return Result{
		Text:             text,
		PromptTokens:     len(userPrompt) / 4,
		CompletionTokens: len(text) / 4,
		Latency:          f.Latency,
	}, nil
}

// CallCount reports how many times Generate has been invoked.
func (f *FakeAdapter) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
