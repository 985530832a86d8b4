package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/okrtools/goalpost/internal/domain"
	"github.com/okrtools/goalpost/internal/domain/auth"
	"github.com/okrtools/goalpost/internal/port/database"
)

// keyPrefixTag marks goalpost-issued API keys.
const keyPrefixTag = "gp"

// ErrInvalidKey is returned for every key validation failure, deliberately
// without distinguishing the reason.
var ErrInvalidKey = errors.New("invalid api key")

// AuthService issues and validates API keys.
type AuthService struct {
	store  database.Store
	logger *slog.Logger
}

// NewAuthService creates an API key service.
func NewAuthService(store database.Store, logger *slog.Logger) *AuthService {
	return &AuthService{store: store, logger: logger}
}

// GenerateKey mints a new API key and returns the stored record plus the raw
// key. The raw key is shown exactly once; only its bcrypt hash is persisted.
func (s *AuthService) GenerateKey(ctx context.Context, name string) (*auth.APIKey, string, error) {
	if strings.TrimSpace(name) == "" {
		return nil, "", fmt.Errorf("%w: key name is required", domain.ErrValidation)
	}

	prefix, err := randomHex(4)
	if err != nil {
		return nil, "", fmt.Errorf("generate prefix: %w", err)
	}
	prefix = keyPrefixTag + "_" + prefix

	secret, err := randomHex(24)
	if err != nil {
		return nil, "", fmt.Errorf("generate secret: %w", err)
	}
	rawKey := prefix + "." + secret

	hash, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash key: %w", err)
	}

	key := &auth.APIKey{
		Name:    name,
		Prefix:  prefix,
		KeyHash: string(hash),
	}
	if err := s.store.CreateAPIKey(ctx, key); err != nil {
		return nil, "", err
	}

	s.logger.InfoContext(ctx, "api key created", "name", name, "prefix", prefix)
	return key, rawKey, nil
}

// ValidateKey checks a raw API key and updates its last-used timestamp.
// All invalid keys fail with the same error regardless of reason.
func (s *AuthService) ValidateKey(ctx context.Context, rawKey string) (*auth.APIKey, error) {
	prefix, _, ok := strings.Cut(rawKey, ".")
	if !ok {
		return nil, ErrInvalidKey
	}

	key, err := s.store.GetAPIKeyByPrefix(ctx, prefix)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidKey
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(rawKey)) != nil {
		return nil, ErrInvalidKey
	}

	if err := s.store.TouchAPIKey(ctx, key.ID); err != nil {
		s.logger.WarnContext(ctx, "touch api key", "prefix", prefix, "error", err)
	}
	return key, nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
