package service

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/backendauth/identity-service/internal/core/domain"
	"github.com/backendauth/identity-service/internal/pkg/token"
)

var testTokenConfig = token.Config{Secret: "secret", Issuer: "BackendAuth", Audience: "BackendAuthUsers"}

type authFixture struct {
	repo    *stubUserRepo
	limiter *stubLimiter
	rec     *stubRecorder
	codec   *token.Codec
	svc     *AuthService
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	f := &authFixture{
		repo:    newStubUserRepo(),
		limiter: newStubLimiter(),
		rec:     &stubRecorder{},
		codec:   token.NewCodec(testTokenConfig),
	}
	f.svc = NewAuthService(f.repo, testHasher(), f.codec, f.limiter, f.rec, time.Hour, zerolog.Nop())
	return f
}

func (f *authFixture) seed(t *testing.T, username, email, password string, active bool, roles ...domain.RoleID) *domain.User {
	t.Helper()
	hash, err := testHasher().Hash(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &domain.User{Username: username, Email: email, PasswordHash: hash, IsActive: active}
	u.AssignRoles(roles, time.Now().UTC())
	if err := f.repo.Create(context.Background(), u); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return u
}

func TestAuthService_Login_Success(t *testing.T) {
	f := newAuthFixture(t)
	seeded := f.seed(t, "carol", "carol@example.com", "S3cret!x", true, domain.RoleAdmin, domain.RoleEmployee)

	before := time.Now().UTC().Truncate(time.Second)
	res, err := f.svc.Login(context.Background(), "carol@example.com", "S3cret!x")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if res.Token == "" {
		t.Fatalf("expected token, got empty")
	}
	if res.User == nil || res.User.ID != seeded.ID || res.User.Username != "carol" {
		t.Fatalf("unexpected user: %+v", res.User)
	}

	claims, err := f.codec.Parse(res.Token)
	if err != nil {
		t.Fatalf("token invalid: %v", err)
	}
	if !reflect.DeepEqual(claims.Roles, []string{"Admin", "Employé"}) {
		t.Fatalf("expected token roles to equal persisted roles, got %v", claims.Roles)
	}
	if !reflect.DeepEqual(res.User.Roles, claims.Roles) {
		t.Fatalf("expected user roles %v to match token roles %v", res.User.Roles, claims.Roles)
	}
	if got := claims.ExpiresAt.Time.Sub(claims.IssuedAt.Time); got != time.Hour {
		t.Fatalf("expected expiry = issued + 1h, got %v", got)
	}
	if !res.ExpiresAt.Equal(claims.ExpiresAt.Time) {
		t.Fatalf("expected ExpiresAt %v to match token exp %v", res.ExpiresAt, claims.ExpiresAt.Time)
	}
	if res.ExpiresAt.Before(before.Add(time.Hour)) {
		t.Fatalf("expiry earlier than expected: %v", res.ExpiresAt)
	}
	if !f.svc.Validate(res.Token) {
		t.Fatalf("expected issued token to validate")
	}
	if len(f.limiter.resets) != 1 {
		t.Fatalf("expected limiter reset on success")
	}
	if acts := f.rec.actions(); len(acts) != 1 || acts[0] != domain.AuditLoginSucceeded {
		t.Fatalf("expected login_succeeded audit event, got %v", acts)
	}
}

func TestAuthService_Login_FailuresAreIndistinguishable(t *testing.T) {
	f := newAuthFixture(t)
	f.seed(t, "dave", "dave@example.com", "goodpass", true)
	f.seed(t, "eve", "eve@example.com", "goodpass", false)

	attempts := map[string][2]string{
		"unknown email":  {"ghost@example.com", "goodpass"},
		"wrong password": {"dave@example.com", "badpass"},
		"inactive user":  {"eve@example.com", "goodpass"},
	}

	var first error
	for name, creds := range attempts {
		res, err := f.svc.Login(context.Background(), creds[0], creds[1])
		if res != nil {
			t.Fatalf("%s: expected no result, got %+v", name, res)
		}
		if err != domain.ErrInvalidCredentials {
			t.Fatalf("%s: expected ErrInvalidCredentials, got %v", name, err)
		}
		if first == nil {
			first = err
		} else if err.Error() != first.Error() {
			t.Fatalf("%s: failure message differs: %q vs %q", name, err, first)
		}
	}

	for _, email := range []string{"ghost@example.com", "dave@example.com", "eve@example.com"} {
		if f.limiter.failures[email] != 1 {
			t.Fatalf("expected one failure registered for %s, got %d", email, f.limiter.failures[email])
		}
	}
	for _, a := range f.rec.actions() {
		if a != domain.AuditLoginFailed {
			t.Fatalf("expected only login_failed audit events, got %v", a)
		}
	}
}

func TestAuthService_Login_Throttled(t *testing.T) {
	f := newAuthFixture(t)
	f.seed(t, "frank", "frank@example.com", "goodpass", true)
	f.limiter.blocked = true

	if _, err := f.svc.Login(context.Background(), "frank@example.com", "goodpass"); !errors.Is(err, domain.ErrTooManyAttempts) {
		t.Fatalf("expected ErrTooManyAttempts, got %v", err)
	}
}

func TestAuthService_Login_LimiterErrorFailsOpen(t *testing.T) {
	f := newAuthFixture(t)
	f.seed(t, "gina", "gina@example.com", "goodpass", true)
	f.limiter.checkErr = errors.New("redis down")

	if _, err := f.svc.Login(context.Background(), "gina@example.com", "goodpass"); err != nil {
		t.Fatalf("expected login to proceed, got %v", err)
	}
}

func TestAuthService_Login_StoreErrorIsInternal(t *testing.T) {
	f := newAuthFixture(t)
	f.repo.findErr = errStoreDown

	_, err := f.svc.Login(context.Background(), "any@example.com", "pass")
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("expected store error, got %v", err)
	}
	if errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("store failure must not look like bad credentials")
	}
}

func TestAuthService_Login_NoRoles(t *testing.T) {
	f := newAuthFixture(t)
	f.seed(t, "hank", "hank@example.com", "goodpass", true)

	res, err := f.svc.Login(context.Background(), "hank@example.com", "goodpass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	ident, ok := token.Decode(res.Token)
	if !ok {
		t.Fatalf("expected token to decode")
	}
	if len(ident.Roles) != 0 {
		t.Fatalf("expected empty role list, got %v", ident.Roles)
	}
}

func TestAuthService_Validate(t *testing.T) {
	f := newAuthFixture(t)
	if f.svc.Validate("not-a-token") {
		t.Fatalf("expected garbage to be rejected")
	}

	other := token.NewCodec(token.Config{Secret: "other", Issuer: "BackendAuth", Audience: "BackendAuthUsers"})
	foreign, _, err := other.Issue(token.Subject{UserID: 1}, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if f.svc.Validate(foreign) {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
}

func TestNewAuthService_DefaultTTL(t *testing.T) {
	svc := NewAuthService(newStubUserRepo(), testHasher(), token.NewCodec(testTokenConfig), nil, nil, 0, zerolog.Nop())
	if svc.tokenTTL != defaultTokenTTL {
		t.Fatalf("expected default ttl, got %v", svc.tokenTTL)
	}
}
