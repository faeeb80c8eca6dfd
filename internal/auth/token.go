// Package auth turns a bearer token into an authz.Actor. Token issuance
// belongs to the identity provider; Issuer exists for local tooling and
// tests.
package auth

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/joao-fontenele/marketplace-orderflow/internal/apperr"
	"github.com/joao-fontenele/marketplace-orderflow/internal/authz"
)

const (
	GroupManager  = "marketplace-manager"
	GroupApprover = "marketplace-manager-approver"
)

type Claims struct {
	ClientID string   `json:"client_id"`
	Email    string   `json:"email,omitempty"`
	Groups   []string `json:"groups,omitempty"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Actor validates the Authorization header value and resolves the caller's
// role from the token's groups.
func (v *Verifier) Actor(header string) (authz.Actor, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return authz.Actor{}, apperr.Authentication(authz.MessageNoClientID)
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return authz.Actor{}, apperr.Wrap(apperr.Authentication(authz.MessageInvalidToken), err)
	}

	if claims.ClientID == "" {
		return authz.Actor{}, apperr.Authentication(authz.MessageNoClientID)
	}

	return authz.Actor{
		ClientID: claims.ClientID,
		UserID:   claims.Subject,
		Email:    claims.Email,
		Role:     roleFor(claims),
	}, nil
}

func roleFor(c *Claims) authz.Role {
	switch {
	case slices.Contains(c.Groups, GroupApprover):
		return authz.RoleApprover
	case slices.Contains(c.Groups, GroupManager):
		return authz.RoleManager
	case c.Subject != "":
		return authz.RoleMember
	default:
		return authz.RoleClient
	}
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

// Sign issues an HS256 token for the given identity.
func (i *Issuer) Sign(clientID, userID, email string, groups ...string) (string, error) {
	if clientID == "" {
		return "", errors.New("client id is required")
	}

	now := time.Now()
	claims := Claims{
		ClientID: clientID,
		Email:    email,
		Groups:   groups,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}
