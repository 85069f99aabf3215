package jwtkit

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type HMAC256Signer struct {
	Secret []byte
}

func (s *HMAC256Signer) CreateToken(claims jwt.MapClaims, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, stampClaims(claims, ttl))
	return token.SignedString(s.Secret)
}

type HMAC256Validator struct {
	Secret []byte
}

func (v *HMAC256Validator) Validate(tokenStr string) (jwt.MapClaims, error) {
	parser := jwt.NewParser(jwt.WithStrictDecoding())

	token, err := parser.Parse(tokenStr, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if err := ValidateStandardClaims(claims); err != nil {
		return nil, err
	}

	return claims, nil
}
