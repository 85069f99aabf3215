package jwtkit

import (
	"fmt"
	"strings"
	"time"

	"github.com/fgrzl/claims"
	"github.com/golang-jwt/jwt/v5"
)

// NewClaimsPrincipal flattens validated token claims into a principal the
// router's authorization layer understands. List claims are joined with
// commas, matching the claim list's scope convention.
func NewClaimsPrincipal(raw jwt.MapClaims) claims.Principal {
	var list claims.ClaimList
	seeded := false

	for k, v := range raw {
		value := flattenClaim(v)
		if !seeded {
			list = claims.NewClaimsList(k, value)
			seeded = true
			continue
		}
		list = list.Add(k, value)
	}
	if !seeded {
		list = claims.NewClaimsList("scopes", "")
	}

	ttl := principalTTL(raw)
	return claims.NewPrincipalFromList(list, &ttl)
}

func flattenClaim(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(val)
	}
}

// principalTTL derives the principal lifetime from the token's exp claim.
// The validator has already rejected expired tokens, so a missing or
// elapsed exp only happens on hand-built claim sets.
func principalTTL(raw jwt.MapClaims) time.Duration {
	if exp, ok := raw["exp"].(float64); ok {
		if ttl := time.Until(time.Unix(int64(exp), 0)); ttl > 0 {
			return ttl
		}
	}
	return time.Minute
}
