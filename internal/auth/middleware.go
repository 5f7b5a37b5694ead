package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// credential is where a request's API token came from.
type credential int

const (
	credentialNone credential = iota
	credentialBearer
	credentialCookie
)

// Middleware guards the API when a token is configured. Bearer requests need
// only the token. Cookie requests that change state must also echo the CSRF
// cookie in the CSRF header.
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.Enabled() {
			c.Next()
			return
		}
		token, source := s.credential(c)
		if source == credentialNone {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		if err := s.ValidateToken(token); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		if source == credentialCookie && changesState(c.Request.Method) && !s.csrfEchoed(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid csrf token"})
			return
		}
		c.Next()
	}
}

func (s *Service) credential(c *gin.Context) (string, credential) {
	header := c.GetHeader(s.headerName)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		if token := strings.TrimSpace(header[7:]); token != "" {
			return token, credentialBearer
		}
	}
	if token, err := c.Cookie(s.cookieName); err == nil && token != "" {
		return token, credentialCookie
	}
	return "", credentialNone
}

func (s *Service) csrfEchoed(c *gin.Context) bool {
	sent := c.GetHeader(s.csrfHeaderName)
	stored, err := c.Cookie(s.csrfCookieName)
	if err != nil || sent == "" || stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(sent), []byte(stored)) == 1
}

func changesState(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}
