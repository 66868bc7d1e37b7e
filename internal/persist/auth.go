package persist

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// CreateAPIToken generates a random-looking caller-supplied token's
// bcrypt hash and stores it, so the mutation HTTP surface can check
// bearer tokens without keeping plaintext secrets in Postgres.
func (s *Store) CreateAPIToken(ctx context.Context, label, token string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash API token: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.conn.Exec(ctx, `
		INSERT INTO api_tokens (label, token_hash) VALUES ($1, $2)
		ON CONFLICT (label) DO UPDATE SET token_hash = EXCLUDED.token_hash
	`, label, string(hash))
	if err != nil {
		return fmt.Errorf("failed to persist API token: %w", err)
	}
	return nil
}

// VerifyAPIToken reports whether token matches any stored hash. Every
// stored hash is checked rather than stopping at the first bcrypt
// failure, since bcrypt comparison time depends only on the candidate
// hash, not on token content, so this does not leak timing information
// about which label (if any) matched.
func (s *Store) VerifyAPIToken(ctx context.Context, token string) (bool, error) {
	s.mu.Lock()
	rows, err := s.conn.Query(ctx, `SELECT token_hash FROM api_tokens`)
	if err != nil {
		s.mu.Unlock()
		return false, fmt.Errorf("failed to load API tokens: %w", err)
	}
	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			rows.Close()
			s.mu.Unlock()
			return false, fmt.Errorf("failed to scan API token hash: %w", err)
		}
		hashes = append(hashes, h)
	}
	rows.Close()
	err = rows.Err()
	s.mu.Unlock()
	if err != nil {
		return false, err
	}

	matched := false
	for _, h := range hashes {
		if bcrypt.CompareHashAndPassword([]byte(h), []byte(token)) == nil {
			matched = true
		}
	}
	return matched, nil
}

// RevokeAPIToken deletes a token by label.
func (s *Store) RevokeAPIToken(ctx context.Context, label string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tag, err := s.conn.Exec(ctx, `DELETE FROM api_tokens WHERE label = $1`, label)
	if err != nil {
		return false, fmt.Errorf("failed to revoke API token %s: %w", label, err)
	}
	return tag.RowsAffected() > 0, nil
}
