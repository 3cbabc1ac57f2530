package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// GatewayStudent is the student block embedded in the collect request token.
type GatewayStudent struct {
	Name  string `json:"name"`
	ID    string `json:"id"`
	Email string `json:"email"`
}

// GatewayClaims are signed into the token handed to the payment gateway.
type GatewayClaims struct {
	SchoolID    string         `json:"school_id"`
	PGKey       string         `json:"pg_key"`
	OrderID     string         `json:"order_id"`
	OrderAmount float64        `json:"order_amount"`
	StudentInfo GatewayStudent `json:"student_info"`
	Gateway     string         `json:"gateway"`
	jwt.RegisteredClaims
}

// SignGatewayToken signs claims with HS256 and sets iat/exp from ttl.
func SignGatewayToken(claims GatewayClaims, ttl time.Duration, secret string) (string, error) {
	if secret == "" {
		return "", errors.New("secret is required for token generation")
	}
	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign gateway token: %w", err)
	}
	return signed, nil
}

// VerifyGatewayToken parses and validates a token produced by SignGatewayToken.
func VerifyGatewayToken(token, secret string) (*GatewayClaims, error) {
	if secret == "" {
		return nil, errors.New("secret is required for token verification")
	}
	var claims GatewayClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	return &claims, nil
}
