// Package models holds the core entities of the monitoring pipeline.
package models

import "time"

// ProcessStatus is the lifecycle state of a MonitoringProcess.
type ProcessStatus string

// Process lifecycle states.
const (
	ProcessCreated   ProcessStatus = "CREATED"
	ProcessRunning   ProcessStatus = "RUNNING"
	ProcessStopped   ProcessStatus = "STOPPED"
	ProcessCompleted ProcessStatus = "COMPLETED"
	ProcessFailed    ProcessStatus = "FAILED"
)

// StopReason explains why a process left the RUNNING state.
type StopReason string

// Stop reasons.
const (
	StopReasonManual  StopReason = "manual"
	StopReasonTimeout StopReason = "timeout"
)

// WorkRecordStatus is the lifecycle state of a WorkRecord.
type WorkRecordStatus string

// Work record lifecycle states. Status progresses monotonically through this
// list, with "failed" reachable from any non-terminal status.
const (
	RecordDiscovered WorkRecordStatus = "discovered"
	RecordPrepared   WorkRecordStatus = "prepared"
	RecordGenerated  WorkRecordStatus = "generated"
	RecordPosted     WorkRecordStatus = "posted"
	RecordFailed     WorkRecordStatus = "failed"
)

// Stage identifies one of the four pipeline phases.
type Stage string

// Pipeline stages, in the order the coordinator considers them.
const (
	StageDiscovery   Stage = "discovery"
	StagePreparation Stage = "preparation"
	StageGeneration  Stage = "generation"
	StagePosting     Stage = "posting"
)

// Stages lists all four stages in coordinator evaluation order.
func Stages() []Stage {
	return []Stage{StageDiscovery, StagePreparation, StageGeneration, StagePosting}
}

// User scopes all other entities to an account.
type User struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

// UpstreamCredential holds a username/password pair for the upstream writing
// platform. Password is stored only in encrypted form.
type UpstreamCredential struct {
	ID                string     `db:"id"`
	UserID            string     `db:"user_id"`
	DisplayName       string     `db:"display_name"`
	Username          string     `db:"username"`
	PasswordEncrypted string     `db:"password_encrypted"`
	IsActive          bool       `db:"is_active"`
	CreatedAt         time.Time  `db:"created_at"`
	LastUsedAt        *time.Time `db:"last_used_at"`
}

// LLMVendor enumerates supported model vendors.
type LLMVendor string

// Supported vendor tags.
const (
	VendorOpenAI  LLMVendor = "openai"
	VendorMistral LLMVendor = "mistral"
)

// LLMProviderConfig holds a user's LLM credentials and generation parameters.
type LLMProviderConfig struct {
	ID              string    `db:"id"`
	UserID          string    `db:"user_id"`
	VendorTag       LLMVendor `db:"vendor_tag"`
	ModelName       string    `db:"model_name"`
	APIKeyEncrypted string    `db:"api_key_encrypted"`
	Temperature     float64   `db:"temperature"`
	MaxTokens       int       `db:"max_tokens"`
	JSONMode        bool      `db:"json_mode"`
	IsActive        bool      `db:"is_active"`
}

// PromptTemplate holds a reusable system/user prompt pair. Owner is nil for
// system (built-in) templates.
type PromptTemplate struct {
	ID                 string  `db:"id"`
	OwnerUserID        *string `db:"owner_user_id"`
	Name               string  `db:"name"`
	SystemPrompt       string  `db:"system_prompt"`
	UserPromptTemplate string  `db:"user_prompt_template"`
	IsSystem           bool    `db:"is_system"`
}

// ProcessFilters narrows the set of articles a process discovers.
type ProcessFilters struct {
	Tabs     []string `json:"tabs,omitempty"`
	Category string   `json:"category,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

// StageTaskIDs tracks the broker task id currently dispatched for each stage
// of a running process. A nil entry means no task is in flight.
type StageTaskIDs struct {
	Discovery   *string `json:"discovery,omitempty"`
	Preparation *string `json:"preparation,omitempty"`
	Generation  *string `json:"generation,omitempty"`
	Posting     *string `json:"posting,omitempty"`
}

// Get returns the task id stored for the given stage, or nil.
func (s StageTaskIDs) Get(stage Stage) *string {
	switch stage {
	case StageDiscovery:
		return s.Discovery
	case StagePreparation:
		return s.Preparation
	case StageGeneration:
		return s.Generation
	case StagePosting:
		return s.Posting
	default:
		return nil
	}
}

// With returns a copy of s with the given stage's task id set.
func (s StageTaskIDs) With(stage Stage, taskID *string) StageTaskIDs {
	switch stage {
	case StageDiscovery:
		s.Discovery = taskID
	case StagePreparation:
		s.Preparation = taskID
	case StageGeneration:
		s.Generation = taskID
	case StagePosting:
		s.Posting = taskID
	}
	return s
}

// Cleared returns a copy of s with every stage task id cleared.
func (s StageTaskIDs) Cleared() StageTaskIDs {
	return StageTaskIDs{}
}

// ErrorCounters tallies per-stage failures for operator visibility.
type ErrorCounters struct {
	Discovery   int `json:"discovery"`
	Preparation int `json:"preparation"`
	Generation  int `json:"generation"`
	Posting     int `json:"posting"`
}

// ProcessCounters tracks pipeline progress for a MonitoringProcess.
type ProcessCounters struct {
	ArticlesDiscovered int           `json:"articles_discovered"`
	ArticlesPrepared   int           `json:"articles_prepared"`
	CommentsGenerated  int           `json:"comments_generated"`
	CommentsPosted     int           `json:"comments_posted"`
	ErrorsByStage      ErrorCounters `json:"errors_by_stage"`
}

// MonitoringProcess is a user-configured, continuously-monitored pipeline run.
type MonitoringProcess struct {
	ID                 string          `db:"id"`
	UserID             string          `db:"user_id"`
	Name               string          `db:"name"`
	Description        string          `db:"description"`
	LLMProviderID       string          `db:"llm_provider_id"`
	CredentialIDs      []string        `db:"-"`
	TemplateIDs        []string        `db:"-"`
	Filters            ProcessFilters  `db:"-"`
	GenerateOnly       bool            `db:"generate_only"`
	MaxDurationMinutes int             `db:"max_duration_minutes"`
	Status             ProcessStatus   `db:"status"`
	StopReason         *StopReason     `db:"stop_reason"`
	StartedAt          *time.Time      `db:"started_at"`
	ExpiresAt          *time.Time      `db:"expires_at"`
	StoppedAt          *time.Time      `db:"stopped_at"`
	StageTaskIDs       StageTaskIDs    `db:"-"`
	Counters           ProcessCounters `db:"-"`
	ErrorMessage       *string         `db:"error_message"`
	CreatedAt          time.Time       `db:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at"`
}

// ConsumesStage reports whether the process dispatches the given stage.
// Posting never runs for a generate_only process.
func (p *MonitoringProcess) ConsumesStage(stage Stage) bool {
	if stage == StagePosting {
		return !p.GenerateOnly
	}
	return true
}

// WorkRecord is the per-(article, template, credential) unit of coordination.
type WorkRecord struct {
	ID                string           `db:"id"`
	ProcessID         string           `db:"process_id"`
	UserID            string           `db:"user_id"`
	CredentialID      string           `db:"credential_id"`
	TemplateID        string           `db:"template_id"`
	LLMProviderID      string           `db:"llm_provider_id"`
	UpstreamArticleID string           `db:"upstream_article_id"`
	ArticleTitle      string           `db:"article_title"`
	ArticleAuthor     string           `db:"article_author"`
	ArticleCategory   string           `db:"article_category"`
	ArticleURL        string           `db:"article_url"`
	ArticleEditedAt   *time.Time       `db:"article_edited_at"`
	ArticleContent    *string          `db:"article_content"`
	ArticleRawHTML    *string          `db:"article_raw_html"`
	ArticlePublishedAt *time.Time      `db:"article_published_at"`
	CommentContent    *string          `db:"comment_content"`
	UpstreamCommentID *string          `db:"upstream_comment_id"`
	AIModelName       *string          `db:"ai_model_name"`
	AIVendorTag       *string          `db:"ai_vendor_tag"`
	GenerationTokens  *int             `db:"generation_tokens"`
	GenerationTimeMs  *int             `db:"generation_time_ms"`
	Status            WorkRecordStatus `db:"status"`
	ErrorMessage      *string          `db:"error_message"`
	RetryCount        int              `db:"retry_count"`
	ArticleScrapedAt  *time.Time       `db:"article_scraped_at"`
	PostedAt          *time.Time       `db:"posted_at"`
	FailedAt          *time.Time       `db:"failed_at"`
	CreatedAt         time.Time        `db:"created_at"`
	UpdatedAt         time.Time        `db:"updated_at"`
}
