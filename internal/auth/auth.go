package auth

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey int

// ClaimsKey is used to read the authenticated claims out of a request context.
const ClaimsKey ctxKey = 1

const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// Claims is the payload carried by the session token. Subject holds the
// user id; LoginName and Roles mirror the session fields the handlers and
// middleware authorize against.
type Claims struct {
	jwt.RegisteredClaims
	LoginName string   `json:"login_name"`
	Roles     []string `json:"roles"`
}

// HasRole reports whether the claims carry the given role.
func (c Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type Keys struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
}

// NewKeys parses the PEM encoded RSA key pair used to sign and verify
// session tokens.
func NewKeys(privatePEM []byte, publicPEM []byte) (*Keys, error) {
	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(privatePEM)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(publicPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}
	return &Keys{privateKey: privateKey, publicKey: publicKey}, nil
}

func (k *Keys) GenerateToken(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(k.privateKey)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

func (k *Keys) ValidateToken(tokenStr string) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return k.publicKey, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("parsing token: %w", err)
	}
	if !token.Valid {
		return Claims{}, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// NewClaims builds session claims for a freshly authenticated user.
func NewClaims(userID, loginName string, roles []string, validity time.Duration) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "tienda-service",
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validity)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		LoginName: loginName,
		Roles:     roles,
	}
}
