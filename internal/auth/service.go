package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

var ErrInvalidToken = errors.New("invalid token")

// Service guards the local API with a single static token. An empty token
// disables authentication, which suits a companion bound to localhost.
type Service struct {
	token          string
	cookieTTL      time.Duration
	cookieName     string
	headerName     string
	csrfCookieName string
	csrfHeaderName string
}

func NewService(token string, cookieTTL time.Duration) *Service {
	if cookieTTL <= 0 {
		cookieTTL = 24 * time.Hour
	}
	return &Service{
		token:          token,
		cookieTTL:      cookieTTL,
		cookieName:     "auth_token",
		headerName:     "Authorization",
		csrfCookieName: "csrf_token",
		csrfHeaderName: "X-CSRF-Token",
	}
}

// Enabled reports whether requests must carry the API token.
func (s *Service) Enabled() bool {
	return s.token != ""
}

// ValidateToken compares in constant time.
func (s *Service) ValidateToken(token string) error {
	if !s.Enabled() {
		return nil
	}
	if token == "" {
		return errors.New("token required")
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.token)) != 1 {
		return ErrInvalidToken
	}
	return nil
}

// NewCSRFToken returns a random token used for CSRF protection.
func (s *Service) NewCSRFToken() (string, error) {
	return generateToken()
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func (s *Service) AuthCookieName() string {
	return s.cookieName
}

func (s *Service) CSRFCookieName() string {
	return s.csrfCookieName
}

func (s *Service) CSRFHeaderName() string {
	return s.csrfHeaderName
}

// CookieTTL reports how long browser auth cookies live.
func (s *Service) CookieTTL() time.Duration {
	return s.cookieTTL
}
