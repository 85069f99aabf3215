package jwtkit

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Signer interface {
	CreateToken(claims jwt.MapClaims, ttl time.Duration) (string, error)
}

type Validator interface {
	Validate(tokenStr string) (jwt.MapClaims, error)
}

// stampClaims sets iat and exp so every issued token carries a lifetime.
func stampClaims(claims jwt.MapClaims, ttl time.Duration) jwt.MapClaims {
	now := time.Now()
	claims["iat"] = now.Unix()
	claims["exp"] = now.Add(ttl).Unix()
	return claims
}

// ValidateStandardClaims validates exp, nbf, and iat claims inside jwt.MapClaims.
// It returns an error if any are invalid or missing (for exp).
func ValidateStandardClaims(claims jwt.MapClaims) error {
	now := time.Now().Unix()

	if exp, ok := claims["exp"].(float64); ok {
		if now > int64(exp) {
			return fmt.Errorf("token has expired")
		}
	} else {
		return fmt.Errorf("expiration claim missing or invalid")
	}

	if nbf, ok := claims["nbf"].(float64); ok {
		if now < int64(nbf) {
			return fmt.Errorf("token not valid yet")
		}
	}

	if iat, ok := claims["iat"].(float64); ok {
		if now < int64(iat) {
			return fmt.Errorf("token issued in the future")
		}
	}

	return nil
}
