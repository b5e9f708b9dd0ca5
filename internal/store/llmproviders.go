package store

import (
	"context"
	"fmt"

	"github.com/yourmoment/core/internal/models"
)

// ListLLMProviders loads provider configs by id for the generation worker's
// read+cache step.
func (s *Store) ListLLMProviders(ctx context.Context, ids []string) ([]models.LLMProviderConfig, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var providers []models.LLMProviderConfig
	const q = `
		SELECT id, user_id, vendor_tag, model_name, api_key_encrypted, temperature, max_tokens, json_mode, is_active
		FROM llm_provider_configs WHERE id = ANY($1)`
	if err := s.db.SelectContext(ctx, &providers, q, ids); err != nil {
		return nil, fmt.Errorf("store: list llm providers: %w", err)
	}
	return providers, nil
}

// GetLLMProvider loads a single provider, used when validating process
// configuration at start().
func (s *Store) GetLLMProvider(ctx context.Context, id string) (*models.LLMProviderConfig, error) {
	var p models.LLMProviderConfig
	const q = `
		SELECT id, user_id, vendor_tag, model_name, api_key_encrypted, temperature, max_tokens, json_mode, is_active
		FROM llm_provider_configs WHERE id = $1`
	if err := s.db.GetContext(ctx, &p, q, id); err != nil {
		return nil, fmt.Errorf("store: get llm provider: %w", err)
	}
	return &p, nil
}

// CreateLLMProvider inserts a new provider config. apiKeyEncrypted must
// already be the envelope-encrypted token.
func (s *Store) CreateLLMProvider(ctx context.Context, p models.LLMProviderConfig) (string, error) {
	var id string
	const q = `
		INSERT INTO llm_provider_configs (user_id, vendor_tag, model_name, api_key_encrypted, temperature, max_tokens, json_mode, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	err := s.db.GetContext(ctx, &id, q,
		p.UserID, p.VendorTag, p.ModelName, p.APIKeyEncrypted, p.Temperature, p.MaxTokens, p.JSONMode, p.IsActive)
	if err != nil {
		return "", fmt.Errorf("store: create llm provider: %w", err)
	}
	return id, nil
}
