package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/oralexam/internal/middleware"
	"github.com/stemsi/oralexam/internal/response"
	"github.com/stemsi/oralexam/internal/service"
	"golang.org/x/crypto/bcrypt"
)

func newAuthRouter(t *testing.T, password string) *gin.Engine {
	t.Helper()
	cfg := testConfig()
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		if err != nil {
			t.Fatal(err)
		}
		cfg.AdminPasswordHash = string(hash)
	}
	auth := service.NewAuthService(cfg, &logins{})
	h := NewAuthHandler(auth, zerolog.Nop())

	r := gin.New()
	r.POST("/login", h.AdminLogin)
	admin := r.Group("/admin", middleware.RequireAdminJWT(auth), middleware.CheckAdminSession(auth))
	admin.GET("/me", h.GetAdminProfile)
	admin.POST("/logout", h.AdminLogout)
	return r
}

type loginBody struct {
	Token string `json:"token"`
}

func TestAdminLogin(t *testing.T) {
	tests := []struct {
		name     string
		hashOf   string
		password string
		status   int
		code     response.ErrCode
	}{
		{"correct password", "s3cret-pass", "s3cret-pass", http.StatusOK, ""},
		{"wrong password", "s3cret-pass", "guess", http.StatusUnauthorized, response.ErrInvalidCredentials},
		{"login disabled", "", "anything", http.StatusServiceUnavailable, response.ErrLoginDisabled},
		{"missing password", "s3cret-pass", "", http.StatusBadRequest, response.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newAuthRouter(t, tt.hashOf)
			w := doJSON(t, r, http.MethodPost, "/login", "", map[string]string{"password": tt.password})
			if w.Code != tt.status {
				t.Fatalf("status %d, want %d: %s", w.Code, tt.status, w.Body.String())
			}
			body := decode[loginBody](t, w)
			if body.code() != string(tt.code) {
				t.Fatalf("code = %q, want %q", body.code(), tt.code)
			}
			if tt.status == http.StatusOK && body.Data.Token == "" {
				t.Fatal("missing token")
			}
		})
	}
}

func TestAdminLogoutRevokesToken(t *testing.T) {
	r := newAuthRouter(t, "s3cret-pass")
	w := doJSON(t, r, http.MethodPost, "/login", "", map[string]string{"password": "s3cret-pass"})
	token := decode[loginBody](t, w).Data.Token

	if w := doJSON(t, r, http.MethodGet, "/admin/me", token, nil); w.Code != http.StatusOK {
		t.Fatalf("me status %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, "/admin/logout", token, nil); w.Code != http.StatusOK {
		t.Fatalf("logout status %d", w.Code)
	}
	w = doJSON(t, r, http.MethodGet, "/admin/me", token, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("me after logout status %d, want 401", w.Code)
	}
	if code := decode[any](t, w).code(); code != string(response.ErrSessionInvalidated) {
		t.Fatalf("code = %s", code)
	}
}

func TestAttemptTokenCannotReachAdmin(t *testing.T) {
	cfg := testConfig()
	auth := service.NewAuthService(cfg, &logins{})
	h := NewAuthHandler(auth, zerolog.Nop())
	r := gin.New()
	r.GET("/admin/me", middleware.RequireAdminJWT(auth), h.GetAdminProfile)

	env := newExamEnv(t)
	_, token := startAttempt(t, env, "Ana")
	w := doJSON(t, r, http.MethodGet, "/admin/me", token, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status %d, want 403", w.Code)
	}
}
