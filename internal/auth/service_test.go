package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newTestRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(svc.Middleware())
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	router.POST("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return router
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestValidateToken(t *testing.T) {
	svc := NewService("secret", time.Hour)
	if err := svc.ValidateToken("secret"); err != nil {
		t.Fatalf("ValidateToken error: %v", err)
	}
	if err := svc.ValidateToken("wrong"); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if err := svc.ValidateToken(""); err == nil {
		t.Fatalf("expected error for empty token")
	}
	if err := NewService("", 0).ValidateToken(""); err != nil {
		t.Fatalf("disabled service should accept anything: %v", err)
	}
}

func TestMiddlewareDisabledPassesThrough(t *testing.T) {
	router := newTestRouter(NewService("", 0))
	rec := serve(router, httptest.NewRequest(http.MethodPost, "/ping", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestMiddlewareBearer(t *testing.T) {
	router := newTestRouter(NewService("secret", time.Hour))

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/ping", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	if rec := serve(router, req); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/ping", nil)
	req.Header.Set("Authorization", "Bearer secret")
	if rec := serve(router, req); rec.Code != http.StatusOK {
		t.Fatalf("bearer request should skip csrf, got %d", rec.Code)
	}
}

func TestCookieRequestsNeedCSRF(t *testing.T) {
	svc := NewService("secret", time.Hour)
	router := newTestRouter(svc)
	authCookie := &http.Cookie{Name: svc.AuthCookieName(), Value: "secret"}

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.AddCookie(authCookie)
	if rec := serve(router, req); rec.Code != http.StatusOK {
		t.Fatalf("safe method should pass, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/ping", nil)
	req.AddCookie(authCookie)
	if rec := serve(router, req); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without csrf, got %d", rec.Code)
	}

	csrf, err := svc.NewCSRFToken()
	if err != nil {
		t.Fatalf("NewCSRFToken: %v", err)
	}
	req = httptest.NewRequest(http.MethodPost, "/ping", nil)
	req.AddCookie(authCookie)
	req.AddCookie(&http.Cookie{Name: svc.CSRFCookieName(), Value: csrf})
	req.Header.Set(svc.CSRFHeaderName(), csrf)
	if rec := serve(router, req); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with matching csrf, got %d", rec.Code)
	}
}

func TestCookieCSRFMismatchAndBadCookie(t *testing.T) {
	svc := NewService("secret", time.Hour)
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/ping", nil)
	req.AddCookie(&http.Cookie{Name: svc.AuthCookieName(), Value: "secret"})
	req.AddCookie(&http.Cookie{Name: svc.CSRFCookieName(), Value: "one"})
	req.Header.Set(svc.CSRFHeaderName(), "two")
	if rec := serve(router, req); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for mismatched csrf, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.AddCookie(&http.Cookie{Name: svc.AuthCookieName(), Value: "stale"})
	if rec := serve(router, req); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong cookie token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/ping", nil)
	req.Header.Set("Authorization", "Bearer ")
	if rec := serve(router, req); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for empty bearer, got %d", rec.Code)
	}
}
