package postgres

import (
	"context"
	"fmt"

	"github.com/okrtools/goalpost/internal/domain"
	"github.com/okrtools/goalpost/internal/domain/auth"
)

func (s *Store) CreateAPIKey(ctx context.Context, key *auth.APIKey) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO api_keys (name, prefix, key_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		key.Name, key.Prefix, key.KeyHash,
	).Scan(&key.ID, &key.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create api key %s: %w", key.Prefix, domain.ErrConflict)
		}
		return fmt.Errorf("create api key %s: %w", key.Prefix, err)
	}
	return nil
}

func (s *Store) GetAPIKeyByPrefix(ctx context.Context, prefix string) (*auth.APIKey, error) {
	var key auth.APIKey
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, prefix, key_hash, created_at, last_used_at
		 FROM api_keys WHERE prefix = $1`, prefix,
	).Scan(&key.ID, &key.Name, &key.Prefix, &key.KeyHash, &key.CreatedAt, &key.LastUsedAt)
	if err != nil {
		return nil, notFoundWrap(err, "get api key %s", prefix)
	}
	return &key, nil
}

func (s *Store) TouchAPIKey(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("touch api key %s: %w", id, err)
	}
	return nil
}
