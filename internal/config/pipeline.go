package config

import "time"

// PipelineConfig holds the environment-driven tunables that govern the
// coordinator, timeout enforcer, and stage workers. No flag changes the
// algorithms they parameterize — only their cadence and budgets.
type PipelineConfig struct {
	// TriggerInterval is how often the coordinator re-dispatches stage tasks
	// that are not currently in flight.
	TriggerInterval time.Duration `validate:"required,min=1s"`

	// TimeoutInterval is how often the timeout enforcer scans for processes
	// past their expires_at.
	TimeoutInterval time.Duration `validate:"required,min=1s"`

	// PreparationRate is the minimum delay between upstream fetches for a
	// single credential in the preparation stage.
	PreparationRate time.Duration `validate:"min=0"`

	// PostingRate is the minimum delay between upstream posts for a single
	// credential in the posting stage.
	PostingRate time.Duration `validate:"min=0"`

	// MaxRetries is the retry budget before a work record is marked failed.
	MaxRetries int `validate:"min=0"`

	// MaxProcessesPerUser caps concurrently-RUNNING processes per account.
	MaxProcessesPerUser int `validate:"min=1"`

	// CommentPrefix must appear at the start of every generated comment.
	CommentPrefix string `validate:"required"`
}

func loadPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		TriggerInterval:     getEnvSeconds("T_TRIGGER", 60),
		TimeoutInterval:     getEnvSeconds("T_TIMEOUT", 30),
		PreparationRate:     getEnvSeconds("R_PREP", 2),
		PostingRate:         getEnvSeconds("R_POST", 5),
		MaxRetries:          getEnvInt("N_RETRY", 3),
		MaxProcessesPerUser: getEnvInt("MAX_PROCESSES_PER_USER", 10),
		CommentPrefix:       getEnv("AI_COMMENT_PREFIX", "[AI] "),
	}
}
