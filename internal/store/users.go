package store

import (
	"context"
	"fmt"

	"github.com/yourmoment/core/internal/models"
)

// GetUser reads a single user by id. Budget <100ms.
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	const q = `SELECT id, email, password_hash, created_at FROM users WHERE id = $1`
	if err := s.db.GetContext(ctx, &u, q, id); err != nil {
		return nil, fmt.Errorf("store: get user: %w", err)
	}
	return &u, nil
}

// CreateUser inserts a new user and returns its generated id. Used by test
// fixtures and the API collaborator's signup flow.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) (string, error) {
	var id string
	const q = `INSERT INTO users (email, password_hash) VALUES ($1, $2) RETURNING id`
	if err := s.db.GetContext(ctx, &id, q, email, passwordHash); err != nil {
		return "", fmt.Errorf("store: create user: %w", err)
	}
	return id, nil
}
