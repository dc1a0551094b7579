// Package apikey issues and validates member API keys stored in PostgreSQL.
// Raw keys are generated with crypto/rand and only their SHA-256 digest is
// stored; a presented key is valid when its digest matches an active row.
package apikey

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/postgres"
)

var (
	ErrInvalidKey = errors.New("invalid api key")
	ErrExpiredKey = errors.New("api key expired")
)

// KeyPrefix starts every raw key so leaked keys are easy to recognise.
const KeyPrefix = "hd_"

const keysSchema = `CREATE TABLE IF NOT EXISTS member_keys (
	id          TEXT PRIMARY KEY,
	key_hash    TEXT NOT NULL UNIQUE,
	member      TEXT NOT NULL,
	is_admin    BOOLEAN NOT NULL DEFAULT FALSE,
	rate_limit  INTEGER NOT NULL,
	is_active   BOOLEAN NOT NULL DEFAULT TRUE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	expires_at  TIMESTAMPTZ
)`

// KeyInfo holds metadata about a validated API key.
type KeyInfo struct {
	ID        string     `json:"id"`
	Member    string     `json:"member"`
	Admin     bool       `json:"admin"`
	RateLimit int        `json:"rate_limit"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the key has an expiry before now.
func (k KeyInfo) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && k.ExpiresAt.Before(now)
}

// NewKey describes a key to issue.
type NewKey struct {
	Member    string
	Admin     bool
	RateLimit int
	ExpiresAt *time.Time
}

// Validate checks the fields CreateKey relies on and fills defaults.
func (n *NewKey) Validate() error {
	n.Member = strings.TrimSpace(n.Member)
	if n.Member == "" {
		return apperrors.New(apperrors.ErrInvalidInput, 400, "member is required")
	}
	if n.RateLimit < 0 {
		return apperrors.New(apperrors.ErrInvalidInput, 400, "rate limit must not be negative")
	}
	if n.RateLimit == 0 {
		n.RateLimit = 120
	}
	return nil
}

// Validator validates API keys against the member_keys table.
type Validator struct {
	db     *postgres.Client
	logger *slog.Logger
	now    func() time.Time
}

// NewValidator creates a new API key validator backed by PostgreSQL.
func NewValidator(db *postgres.Client) *Validator {
	return &Validator{
		db:     db,
		logger: slog.Default().With("component", "apikey-validator"),
		now:    time.Now,
	}
}

// Migrate creates the member_keys table if it does not exist.
func (v *Validator) Migrate(ctx context.Context) error {
	return v.db.Migrate(ctx, keysSchema)
}

// Validate checks a raw API key. It returns ErrInvalidKey for unknown or
// revoked keys and ErrExpiredKey for expired ones.
func (v *Validator) Validate(ctx context.Context, rawKey string) (*KeyInfo, error) {
	var info KeyInfo
	var expiresAt sql.NullTime
	err := v.db.DB.QueryRowContext(ctx,
		`SELECT id, member, is_admin, rate_limit, is_active, created_at, expires_at
		 FROM member_keys
		 WHERE key_hash = $1 AND is_active = true`,
		HashKey(rawKey),
	).Scan(&info.ID, &info.Member, &info.Admin, &info.RateLimit, &info.IsActive, &info.CreatedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidKey
	}
	if err != nil {
		return nil, fmt.Errorf("querying api key: %w", err)
	}
	if expiresAt.Valid {
		info.ExpiresAt = &expiresAt.Time
	}
	if info.Expired(v.now()) {
		return nil, ErrExpiredKey
	}
	return &info, nil
}

// CreateKey issues a key for a member and returns the raw key, which is
// never stored and cannot be retrieved again.
func (v *Validator) CreateKey(ctx context.Context, req NewKey) (string, *KeyInfo, error) {
	if err := req.Validate(); err != nil {
		return "", nil, err
	}
	rawKey, err := generateRawKey()
	if err != nil {
		return "", nil, err
	}

	info := &KeyInfo{
		ID:        uuid.NewString(),
		Member:    req.Member,
		Admin:     req.Admin,
		RateLimit: req.RateLimit,
		IsActive:  true,
		CreatedAt: v.now().UTC(),
		ExpiresAt: req.ExpiresAt,
	}
	var expiry sql.NullTime
	if req.ExpiresAt != nil {
		expiry = sql.NullTime{Time: *req.ExpiresAt, Valid: true}
	}
	_, err = v.db.DB.ExecContext(ctx,
		`INSERT INTO member_keys (id, key_hash, member, is_admin, rate_limit, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		info.ID, HashKey(rawKey), info.Member, info.Admin, info.RateLimit, info.CreatedAt, expiry,
	)
	if err != nil {
		return "", nil, fmt.Errorf("creating api key: %w", err)
	}

	v.logger.Info("api key created", "key_id", info.ID, "member", info.Member, "admin", info.Admin)
	return rawKey, info, nil
}

// RevokeKey deactivates the key with the given id.
func (v *Validator) RevokeKey(ctx context.Context, id string) error {
	result, err := v.db.DB.ExecContext(ctx,
		`UPDATE member_keys SET is_active = false WHERE id = $1 AND is_active = true`, id)
	if err != nil {
		return fmt.Errorf("revoking api key: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrInvalidKey
	}
	v.logger.Info("api key revoked", "key_id", id)
	return nil
}

// ListKeys returns all active keys, newest first.
func (v *Validator) ListKeys(ctx context.Context) ([]KeyInfo, error) {
	rows, err := v.db.DB.QueryContext(ctx,
		`SELECT id, member, is_admin, rate_limit, is_active, created_at, expires_at
		 FROM member_keys WHERE is_active = true ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing api keys: %w", err)
	}
	defer rows.Close()

	keys := make([]KeyInfo, 0)
	for rows.Next() {
		var k KeyInfo
		var expiresAt sql.NullTime
		if err := rows.Scan(&k.ID, &k.Member, &k.Admin, &k.RateLimit, &k.IsActive, &k.CreatedAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("scanning api key row: %w", err)
		}
		if expiresAt.Valid {
			k.ExpiresAt = &expiresAt.Time
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// HashKey returns the SHA-256 hex digest of a raw API key.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func generateRawKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating api key: %w", err)
	}
	return KeyPrefix + hex.EncodeToString(b), nil
}
