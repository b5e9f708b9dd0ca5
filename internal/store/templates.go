package store

import (
	"context"
	"fmt"

	"github.com/yourmoment/core/internal/models"
)

// ListTemplates loads prompt templates by id for the generation worker's
// read+cache step.
func (s *Store) ListTemplates(ctx context.Context, ids []string) ([]models.PromptTemplate, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var templates []models.PromptTemplate
	const q = `
		SELECT id, owner_user_id, name, system_prompt, user_prompt_template, is_system
		FROM prompt_templates WHERE id = ANY($1)`
	if err := s.db.SelectContext(ctx, &templates, q, ids); err != nil {
		return nil, fmt.Errorf("store: list templates: %w", err)
	}
	return templates, nil
}

// CreateTemplate inserts a new prompt template, system or user-owned.
func (s *Store) CreateTemplate(ctx context.Context, t models.PromptTemplate) (string, error) {
	var id string
	const q = `
		INSERT INTO prompt_templates (owner_user_id, name, system_prompt, user_prompt_template, is_system)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`
	err := s.db.GetContext(ctx, &id, q, t.OwnerUserID, t.Name, t.SystemPrompt, t.UserPromptTemplate, t.IsSystem)
	if err != nil {
		return "", fmt.Errorf("store: create template: %w", err)
	}
	return id, nil
}
