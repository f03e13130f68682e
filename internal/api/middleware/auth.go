package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// OwnerClaims are the JWT claims carried by tokens issued upstream. The
// owner key lives in the subject; issuance itself is out of scope here.
type OwnerClaims struct {
	Owner string `json:"owner,omitempty"`
	jwt.RegisteredClaims
}

// ErrNoToken is returned when no bearer token is present
var ErrNoToken = errors.New("no bearer token")

// OwnerAuth validates the bearer token and stores the owner key in locals.
// With an empty secret the middleware is a no-op, for deployments where an
// upstream gateway already authenticated the call.
func OwnerAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return c.Next()
		}

		owner, err := ownerFromHeader(c.Get("Authorization"), secret)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid or missing token",
			})
		}

		c.Locals("owner", owner)
		return c.Next()
	}
}

// Owner returns the authenticated owner key, or "" when auth is disabled
func Owner(c *fiber.Ctx) string {
	owner, _ := c.Locals("owner").(string)
	return owner
}

func ownerFromHeader(header, secret string) (string, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", ErrNoToken
	}

	claims := &OwnerClaims{}
	token, err := jwt.ParseWithClaims(strings.TrimPrefix(header, prefix), claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(secret), nil
		})
	if err != nil || !token.Valid {
		return "", errors.New("invalid token")
	}

	if claims.Owner != "" {
		return claims.Owner, nil
	}
	if claims.Subject != "" {
		return claims.Subject, nil
	}
	return "", errors.New("token carries no owner")
}
