// Package token issues and checks the HS256 bearer tokens handed out at login.
//
// Tokens are stateless: validity depends only on the signature, the
// issuer/audience pair and the expiry instant. There is no revocation list.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Config holds the signing settings shared by every Codec operation.
type Config struct {
	Secret   string
	Issuer   string
	Audience string
}

// Subject is the identity a token is issued for.
type Subject struct {
	UserID   int64
	Username string
	Email    string
	Roles    []string
}

// Claims is the token payload.
type Claims struct {
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// Identity is a decoded token subject.
type Identity struct {
	UserID    int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Roles     []string  `json:"roles"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// HasRole reports whether the identity carries role.
func (i Identity) HasRole(role string) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

var errMalformedSubject = errors.New("token subject is not a user id")

// Codec signs and verifies tokens with a symmetric secret.
type Codec struct {
	secret   []byte
	issuer   string
	audience string
	now      func() time.Time
}

// NewCodec returns a Codec for cfg.
func NewCodec(cfg Config) *Codec {
	return &Codec{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		now:      time.Now,
	}
}

// Issue signs a token for sub valid for ttl. The issue instant is truncated
// to whole seconds so the returned expiry is exactly issued-at + ttl.
func (c *Codec) Issue(sub Subject, ttl time.Duration) (string, time.Time, error) {
	issuedAt := c.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(ttl)

	roles := sub.Roles
	if roles == nil {
		roles = []string{}
	}
	claims := Claims{
		Username: sub.Username,
		Email:    sub.Email,
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(sub.UserID, 10),
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse verifies raw and returns its claims. Expiry is checked without any
// leeway: a token is rejected from its expiry instant on.
func (c *Codec) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(raw, claims, c.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, err
	}
	if !tkn.Valid {
		return nil, jwt.ErrTokenSignatureInvalid
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}
	return claims, nil
}

// Validate reports whether raw is a well-formed token signed by this codec,
// for its issuer and audience, and not yet expired.
func (c *Codec) Validate(raw string) bool {
	_, err := c.Parse(raw)
	return err == nil
}

func (c *Codec) keyFunc(*jwt.Token) (interface{}, error) {
	return c.secret, nil
}

// UserID parses the subject claim.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, errMalformedSubject
	}
	return id, nil
}

// Identity projects the claims onto an Identity.
func (c *Claims) Identity() Identity {
	id, _ := c.UserID()
	ident := Identity{
		UserID:   id,
		Username: c.Username,
		Email:    c.Email,
		Roles:    c.Roles,
	}
	if c.ExpiresAt != nil {
		ident.ExpiresAt = c.ExpiresAt.Time.UTC()
	}
	return ident
}

// Decode reads the payload of raw without verifying it. It never fails
// loudly: anything that does not decode to a user identity yields false.
func Decode(raw string) (Identity, bool) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return Identity{}, false
	}
	if _, err := claims.UserID(); err != nil {
		return Identity{}, false
	}
	return claims.Identity(), true
}
