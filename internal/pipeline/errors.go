// Package pipeline implements the coordinator, the four stage workers, and
// the timeout enforcer that make up the continuously-running monitoring
// pipeline. Workers coordinate exclusively through the persistent status of
// WorkRecords (internal/models); there is no direct inter-worker messaging —
// a dispatcher hands work to a stage runner and the runner reports outcomes
// back through status transitions, keyed on (process_id, stage).
package pipeline

import (
	"github.com/yourmoment/core/internal/llmadapter"
	"github.com/yourmoment/core/internal/redact"
	"github.com/yourmoment/core/internal/upstream"
)

// classifyMessage turns an adapter error into the short, redaction-safe
// string stored on a WorkRecord's error_message column. scrubber removes
// every secret known for this run (decrypted credential passwords, LLM API
// keys) plus any generically secret-shaped substring before the text is
// persisted or logged — an adapter error can otherwise echo raw upstream
// response bodies or request details.
func classifyMessage(err error, scrubber *redact.Scrubber) string {
	msg := scrubber.Scrub(err.Error())
	switch {
	case upstream.IsTransient(err), llmadapter.IsTransient(err):
		return "transient: " + msg
	case upstream.IsPermanent(err), llmadapter.IsPermanent(err):
		return "permanent: " + msg
	default:
		return msg
	}
}

// errKind reports the telemetry label for an error: "transient", "permanent",
// or "local" for anything that isn't a classified adapter error (decryption
// failures, missing referenced entities — local invariant violations).
func errKind(err error) string {
	switch {
	case upstream.IsTransient(err), llmadapter.IsTransient(err):
		return "transient"
	case upstream.IsPermanent(err), llmadapter.IsPermanent(err):
		return "permanent"
	default:
		return "local"
	}
}
