package principal

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "casedesk/pkg/domain-errors"
	"casedesk/pkg/requestcontext"
)

// Claims carries the user snapshot embedded in an access token.
type Claims struct {
	Username   string `json:"username"`
	Name       string `json:"name"`
	Position   string `json:"position"`
	Department string `json:"department"`
	jwt.RegisteredClaims
}

// Principal converts the claims into the request actor.
func (c *Claims) Principal() requestcontext.Principal {
	return requestcontext.Principal{
		Username:   c.Username,
		Name:       c.Name,
		Position:   c.Position,
		Department: c.Department,
	}
}

// JWTValidator verifies HS256 access tokens.
type JWTValidator struct {
	signingKey []byte
}

func NewJWTValidator(signingKey string) *JWTValidator {
	return &JWTValidator{signingKey: []byte(signingKey)}
}

// Issue signs a token for p. Tokens are normally minted by the identity
// service; this exists for tests and local tooling.
func (v *JWTValidator) Issue(p requestcontext.Principal, now time.Time, expiresIn time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Username:   p.Username,
		Name:       p.Name,
		Position:   p.Position,
		Department: p.Department,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Username,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(v.signingKey)
}

// Validate parses tokenString and returns its claims. All failures carry
// CodeUnauthorized.
func (v *JWTValidator) Validate(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return v.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	if claims.Username == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token has no username")
	}
	return claims, nil
}
