// Package redact scrubs known secret values — and secret-shaped substrings —
// out of text before it reaches logs or stored error messages, covering the
// credential and API-key shapes this pipeline handles.
package redact

import (
	"regexp"
	"strings"
)

// Placeholder is substituted in place of any redacted secret.
const Placeholder = "[REDACTED]"

// genericSecretPatterns catch secret-shaped substrings even when the caller
// didn't know to list them explicitly (defense in depth, fail-closed).
var genericSecretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(password|api[_-]?key|token|secret)\s*[:=]\s*\S+`),
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._-]+`),
}

// Scrubber removes a fixed set of known secret values from arbitrary text.
// Construct one per worker invocation with the secrets resolved for that run
// (credential passwords, LLM API keys) so nothing plaintext can leak into an
// error_message or log line.
type Scrubber struct {
	secrets []string
}

// NewScrubber builds a Scrubber over the given known secret values. Empty
// strings are ignored so an unset secret never triggers spurious matches.
func NewScrubber(secrets ...string) *Scrubber {
	nonEmpty := make([]string, 0, len(secrets))
	for _, s := range secrets {
		if s != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}
	return &Scrubber{secrets: nonEmpty}
}

// Scrub returns text with every known secret value, and every generically
// secret-shaped substring, replaced by Placeholder.
func (s *Scrubber) Scrub(text string) string {
	out := text
	for _, secret := range s.secrets {
		out = strings.ReplaceAll(out, secret, Placeholder)
	}
	for _, pattern := range genericSecretPatterns {
		out = pattern.ReplaceAllString(out, Placeholder)
	}
	return out
}
