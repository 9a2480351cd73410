package jwt

import (
	"errors"
	"fmt"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"

	"github.com/smallbiznis/valora-admin/internal/domain"
)

// Token uses distinguish access tokens from refresh tokens so one can never
// stand in for the other.
const (
	useAccess  = "access"
	useRefresh = "refresh"
)

// ErrInvalidToken covers tampered, expired, and wrong-use tokens.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the custom JWT payload bound to an admin session.
type Claims struct {
	AdminID  int64       `json:"id"`
	Role     domain.Role `json:"role"`
	IsActive bool        `json:"is_active"`
	TokenUse string      `json:"token_use"`
}

// Generator signs and validates admin session tokens. Both token kinds are
// stateless HS256 JWTs; the refresh token only differs in TTL and use claim.
type Generator struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewGenerator constructs a token generator from a shared signing secret.
func NewGenerator(secret []byte, issuer string, accessTTL, refreshTTL time.Duration) *Generator {
	return &Generator{secret: secret, issuer: issuer, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// GenerateAccessToken produces a short-lived signed JWT for the admin.
func (g *Generator) GenerateAccessToken(admin domain.Admin) (string, error) {
	return g.sign(admin, useAccess, g.accessTTL)
}

// GenerateRefreshToken produces the long-lived counterpart, intended to be
// delivered only via an HTTP-only cookie.
func (g *Generator) GenerateRefreshToken(admin domain.Admin) (string, error) {
	return g.sign(admin, useRefresh, g.refreshTTL)
}

// VerifyAccessToken validates signature, expiry, and token use.
func (g *Generator) VerifyAccessToken(token string) (*Claims, error) {
	return g.verify(token, useAccess)
}

// VerifyRefreshToken validates signature, expiry, and token use.
func (g *Generator) VerifyRefreshToken(token string) (*Claims, error) {
	return g.verify(token, useRefresh)
}

func (g *Generator) sign(admin domain.Admin, use string, ttl time.Duration) (string, error) {
	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.HS256, Key: g.secret},
		(&gojose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("new signer: %w", err)
	}

	now := time.Now().UTC()
	std := gojwt.Claims{
		Subject:   fmt.Sprintf("%d", admin.ID),
		Issuer:    g.issuer,
		IssuedAt:  gojwt.NewNumericDate(now),
		NotBefore: gojwt.NewNumericDate(now),
		Expiry:    gojwt.NewNumericDate(now.Add(ttl)),
	}
	custom := Claims{
		AdminID:  admin.ID,
		Role:     admin.Role,
		IsActive: admin.IsActive,
		TokenUse: use,
	}

	token, err := gojwt.Signed(signer).Claims(std).Claims(custom).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize jwt: %w", err)
	}
	return token, nil
}

func (g *Generator) verify(token, use string) (*Claims, error) {
	parsed, err := gojwt.ParseSigned(token, []gojose.SignatureAlgorithm{gojose.HS256})
	if err != nil {
		return nil, ErrInvalidToken
	}

	var (
		std    gojwt.Claims
		custom Claims
	)
	if err := parsed.Claims(g.secret, &std, &custom); err != nil {
		return nil, ErrInvalidToken
	}
	if err := std.Validate(gojwt.Expected{Issuer: g.issuer, Time: time.Now().UTC()}); err != nil {
		return nil, ErrInvalidToken
	}
	if custom.TokenUse != use {
		return nil, ErrInvalidToken
	}
	return &custom, nil
}
