// Package webhook provides the provider webhook bounded context.
// It manages per-client API keys and folds inbound Instantly and Smartlead
// events into the canonical lead table.
package webhook

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"bluereach_backend/internal/reconcile"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrAPIKeyNotFound = errors.New("webhook API key not found")

const keyColumns = `id, client_id, provider, name, key_hash, key_prefix, is_active, created_at, updated_at`

// APIKey represents a webhook API key stored in the database. A key is bound
// to one client and one provider.
type APIKey struct {
	ID        uuid.UUID
	ClientID  uuid.UUID
	Provider  reconcile.Provider
	Name      string
	KeyHash   string
	KeyPrefix string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// KeyStore is the key lookup used by the auth middleware.
type KeyStore interface {
	GetByHash(ctx context.Context, keyHash string) (APIKey, error)
}

// Repository provides data access for webhook API keys.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new webhook repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GenerateAPIKey creates a new random API key and returns the plaintext key and its hash.
// The plaintext key is returned only once; only the hash is stored.
func GenerateAPIKey() (plaintext string, hash string, prefix string, err error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", "", err
	}
	plaintext = "brk_" + hex.EncodeToString(bytes)
	hash = HashKey(plaintext)
	prefix = plaintext[:12]
	return plaintext, hash, prefix, nil
}

// HashKey hashes a plaintext API key for lookup.
func HashKey(plaintext string) string {
	h := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(h[:])
}

func scanKey(row pgx.Row) (APIKey, error) {
	var (
		key      APIKey
		provider string
	)
	err := row.Scan(&key.ID, &key.ClientID, &provider, &key.Name, &key.KeyHash, &key.KeyPrefix,
		&key.IsActive, &key.CreatedAt, &key.UpdatedAt)
	key.Provider = reconcile.Provider(provider)
	return key, err
}

// Create creates a new API key record.
func (r *Repository) Create(ctx context.Context, clientID uuid.UUID, provider reconcile.Provider, name, keyHash, keyPrefix string) (APIKey, error) {
	return scanKey(r.pool.QueryRow(ctx, `
		INSERT INTO webhook_api_keys (client_id, provider, name, key_hash, key_prefix)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+keyColumns,
		clientID, string(provider), name, keyHash, keyPrefix))
}

// GetByHash retrieves an active API key by its hash.
func (r *Repository) GetByHash(ctx context.Context, keyHash string) (APIKey, error) {
	key, err := scanKey(r.pool.QueryRow(ctx, `
		SELECT `+keyColumns+`
		FROM webhook_api_keys
		WHERE key_hash = $1 AND is_active = true
	`, keyHash))
	if errors.Is(err, pgx.ErrNoRows) {
		return APIKey{}, ErrAPIKeyNotFound
	}
	return key, err
}

// ListByClient returns all API keys for a client.
func (r *Repository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]APIKey, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+keyColumns+`
		FROM webhook_api_keys
		WHERE client_id = $1
		ORDER BY created_at DESC
	`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		key, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Revoke deactivates an API key.
func (r *Repository) Revoke(ctx context.Context, keyID uuid.UUID, clientID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE webhook_api_keys SET is_active = false, updated_at = now()
		WHERE id = $1 AND client_id = $2
	`, keyID, clientID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}
