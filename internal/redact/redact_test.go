package redact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScrubber_RemovesKnownSecrets(t *testing.T) {
	s := NewScrubber("sk-live-abc123", "hunter2")
	got := s.Scrub("auth failed using key sk-live-abc123 and password hunter2")
	assert.NotContains(t, got, "sk-live-abc123")
	assert.NotContains(t, got, "hunter2")
	assert.Contains(t, got, Placeholder)
}

func TestScrubber_IgnoresEmptySecrets(t *testing.T) {
	s := NewScrubber("", "real-secret")
	got := s.Scrub("value=real-secret")
	assert.NotContains(t, got, "real-secret")
}

func TestScrubber_CatchesGenericSecretShapes(t *testing.T) {
	s := NewScrubber()
	got := s.Scrub("request failed: Authorization: Bearer abcDEF123.456-token")
	assert.NotContains(t, got, "abcDEF123.456-token")
}

func TestScrubber_LeavesUnrelatedTextAlone(t *testing.T) {
	s := NewScrubber("my-secret")
	got := s.Scrub("upstream returned HTTP 503 for article 42")
	assert.Equal(t, "upstream returned HTTP 503 for article 42", got)
}
