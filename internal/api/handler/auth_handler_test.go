package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/backendauth/identity-service/internal/api/middleware"
	"github.com/backendauth/identity-service/internal/core/domain"
	"github.com/backendauth/identity-service/internal/core/ports"
	"github.com/backendauth/identity-service/internal/pkg/token"
)

type stubAuthService struct {
	loginFn    func(ctx context.Context, email, password string) (*ports.LoginResult, error)
	validateFn func(token string) bool
}

func (s *stubAuthService) Login(ctx context.Context, email, password string) (*ports.LoginResult, error) {
	return s.loginFn(ctx, email, password)
}

func (s *stubAuthService) Validate(token string) bool {
	return s.validateFn(token)
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

// serve runs h and renders any returned error through echo's default handler.
func serve(e *echo.Echo, c echo.Context, h echo.HandlerFunc) error {
	err := h(c)
	if err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return err
}

func TestAuthHandler_Login_Success(t *testing.T) {
	e := newEcho()
	expires := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	stub := &stubAuthService{
		loginFn: func(ctx context.Context, email, password string) (*ports.LoginResult, error) {
			if email != "alice@example.com" || password != "Secret1!" {
				t.Fatalf("unexpected args: %s %s", email, password)
			}
			return &ports.LoginResult{
				Token:     "token123",
				User:      &ports.UserDetail{ID: 1, Username: "alice", Email: email, IsActive: true, Roles: []string{"Admin"}},
				ExpiresAt: expires,
			}, nil
		},
	}
	handler := NewAuthHandler(stub)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/auth/login", `{"email":"alice@example.com","password":"Secret1!"}`), rec)

	if err := handler.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["token"] != "token123" {
		t.Fatalf("expected token, got %v", resp["token"])
	}
	if resp["expiresAt"] != "2030-01-01T12:00:00Z" {
		t.Fatalf("unexpected expiresAt: %v", resp["expiresAt"])
	}
	user, ok := resp["user"].(map[string]any)
	if !ok || user["username"] != "alice" || user["isActive"] != true {
		t.Fatalf("unexpected user payload: %+v", user)
	}
	if _, leaked := user["passwordHash"]; leaked {
		t.Fatalf("password hash must never be serialized")
	}
}

func TestAuthHandler_Login_ErrorsPassThrough(t *testing.T) {
	for _, want := range []error{domain.ErrInvalidCredentials, domain.ErrTooManyAttempts} {
		e := newEcho()
		stub := &stubAuthService{
			loginFn: func(ctx context.Context, email, password string) (*ports.LoginResult, error) {
				return nil, want
			},
		}
		handler := NewAuthHandler(stub)
		c := e.NewContext(jsonRequest(http.MethodPost, "/auth/login", `{"email":"a@example.com","password":"badpass"}`), httptest.NewRecorder())

		if err := handler.Login(c); !errors.Is(err, want) {
			t.Fatalf("expected %v, got %v", want, err)
		}
	}
}

func TestAuthHandler_Login_InvalidPayload(t *testing.T) {
	e := newEcho()
	stub := &stubAuthService{
		loginFn: func(ctx context.Context, email, password string) (*ports.LoginResult, error) {
			t.Fatalf("should not be called")
			return nil, nil
		},
	}
	handler := NewAuthHandler(stub)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"malformed json", "{", http.StatusBadRequest},
		{"missing password", `{"email":"a@example.com"}`, http.StatusUnprocessableEntity},
		{"bad email", `{"email":"nope","password":"Secret1!"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(jsonRequest(http.MethodPost, "/auth/login", tt.body), rec)
			_ = serve(e, c, handler.Login)
			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, rec.Code)
			}
		})
	}
}

func TestAuthHandler_Validate(t *testing.T) {
	stub := &stubAuthService{validateFn: func(tok string) bool { return tok == "good" }}
	handler := NewAuthHandler(stub)

	tests := []struct {
		name  string
		body  string
		code  int
		valid bool
	}{
		{"valid", `{"token":"good"}`, http.StatusOK, true},
		{"invalid", `{"token":"bad"}`, http.StatusUnauthorized, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEcho()
			rec := httptest.NewRecorder()
			c := e.NewContext(jsonRequest(http.MethodPost, "/auth/validate", tt.body), rec)

			if err := handler.Validate(c); err != nil {
				t.Fatalf("handler error: %v", err)
			}
			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, rec.Code)
			}
			var resp validateResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if resp.IsValid != tt.valid {
				t.Fatalf("expected isValid=%v", tt.valid)
			}
		})
	}
}

func TestAuthHandler_Validate_MissingToken(t *testing.T) {
	e := newEcho()
	handler := NewAuthHandler(&stubAuthService{validateFn: func(string) bool {
		t.Fatalf("should not be called")
		return false
	}})

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/auth/validate", `{}`), rec)
	_ = serve(e, c, handler.Validate)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAuthHandler_Me(t *testing.T) {
	e := newEcho()
	handler := NewAuthHandler(&stubAuthService{})

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/auth/me", nil), rec)
	c.Set(middleware.IdentityKey, token.Identity{UserID: 3, Username: "carol", Roles: []string{"Manager"}})

	if err := handler.Me(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp identityResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.ID != 3 || resp.Username != "carol" || len(resp.Roles) != 1 {
		t.Fatalf("unexpected identity: %+v", resp)
	}
}

func TestAuthHandler_Me_WithoutIdentity(t *testing.T) {
	e := newEcho()
	handler := NewAuthHandler(&stubAuthService{})

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/auth/me", nil), rec)
	_ = serve(e, c, handler.Me)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
