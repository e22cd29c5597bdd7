package auth

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidAPIKey is returned when key verification fails.
var ErrInvalidAPIKey = errors.New("invalid api key")

// Config holds the auth knobs.
type Config struct {
	// APIKeyHash is the bcrypt hash of the device's API key. Empty disables
	// the API key exchange (the service refuses to issue tokens).
	APIKeyHash string `mapstructure:"api_key_hash"`
	// JWTSecret signs access tokens.
	JWTSecret string `mapstructure:"jwt_secret"`
	// TokenTTL bounds access token lifetime.
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

// DefaultConfig returns the shipped auth configuration. The key hash and
// secret have no usable defaults; deployment must set them.
func DefaultConfig() Config {
	return Config{TokenTTL: time.Hour}
}

// Service verifies API keys and issues tokens for verified clients.
type Service struct {
	keyHash []byte
	tokens  *TokenService
}

// NewService creates the auth service.
func NewService(cfg Config) (*Service, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("auth: jwt_secret is required")
	}
	return &Service{
		keyHash: []byte(cfg.APIKeyHash),
		tokens:  NewTokenService([]byte(cfg.JWTSecret), cfg.TokenTTL),
	}, nil
}

// Tokens returns the underlying token service, for middleware wiring.
func (s *Service) Tokens() *TokenService {
	return s.tokens
}

// VerifyAPIKey compares the presented key against the configured bcrypt hash.
func (s *Service) VerifyAPIKey(key string) error {
	if len(s.keyHash) == 0 {
		return ErrInvalidAPIKey
	}
	if err := bcrypt.CompareHashAndPassword(s.keyHash, []byte(key)); err != nil {
		return ErrInvalidAPIKey
	}
	return nil
}

// HashAPIKey produces a bcrypt hash suitable for the api_key_hash setting.
func HashAPIKey(key string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash api key: %w", err)
	}
	return string(h), nil
}
