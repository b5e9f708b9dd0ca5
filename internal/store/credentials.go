package store

import (
	"context"
	"fmt"

	"github.com/yourmoment/core/internal/models"
)

// ListCredentials loads the credentials referenced by ids, for the posting
// worker's read+cache pattern. Budget <500ms total
// together with the preceding record read.
func (s *Store) ListCredentials(ctx context.Context, ids []string) ([]models.UpstreamCredential, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var creds []models.UpstreamCredential
	const q = `
		SELECT id, user_id, display_name, username, password_encrypted, is_active, created_at, last_used_at
		FROM upstream_credentials WHERE id = ANY($1)`
	if err := s.db.SelectContext(ctx, &creds, q, ids); err != nil {
		return nil, fmt.Errorf("store: list credentials: %w", err)
	}
	return creds, nil
}

// TouchCredential updates last_used_at for a credential after a successful
// upstream call. Single-record update, budget <50ms.
func (s *Store) TouchCredential(ctx context.Context, id string) error {
	const q = `UPDATE upstream_credentials SET last_used_at = now() WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("store: touch credential: %w", err)
	}
	return nil
}

// CreateCredential inserts a new upstream credential. passwordEncrypted must
// already be the envelope-encrypted token, never plaintext.
func (s *Store) CreateCredential(ctx context.Context, userID, displayName, username, passwordEncrypted string) (string, error) {
	var id string
	const q = `
		INSERT INTO upstream_credentials (user_id, display_name, username, password_encrypted)
		VALUES ($1, $2, $3, $4) RETURNING id`
	if err := s.db.GetContext(ctx, &id, q, userID, displayName, username, passwordEncrypted); err != nil {
		return "", fmt.Errorf("store: create credential: %w", err)
	}
	return id, nil
}
