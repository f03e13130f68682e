package middleware

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newAuthApp(secret string) *fiber.App {
	app := fiber.New()
	app.Get("/whoami", OwnerAuth(secret), func(c *fiber.Ctx) error {
		return c.SendString(Owner(c))
	})
	return app
}

func signToken(t *testing.T, claims OwnerClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestOwnerAuth_ValidTokenExposesOwner(t *testing.T) {
	app := newAuthApp(testSecret)

	signed := signToken(t, OwnerClaims{
		Owner: "u42",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+signed)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "u42", string(body))
}

func TestOwnerAuth_SubjectFallsBackAsOwner(t *testing.T) {
	app := newAuthApp(testSecret)

	signed := signToken(t, OwnerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u7",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+signed)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "u7", string(body))
}

func TestOwnerAuth_MissingTokenRejected(t *testing.T) {
	app := newAuthApp(testSecret)

	resp, err := app.Test(httptest.NewRequest("GET", "/whoami", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestOwnerAuth_ExpiredTokenRejected(t *testing.T) {
	app := newAuthApp(testSecret)

	signed := signToken(t, OwnerClaims{
		Owner: "u42",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+signed)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestOwnerAuth_WrongSecretRejected(t *testing.T) {
	app := newAuthApp(testSecret)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, OwnerClaims{Owner: "u42"})
	signed, err := token.SignedString([]byte("other-secret"))
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+signed)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestOwnerAuth_EmptySecretDisablesAuth(t *testing.T) {
	app := newAuthApp("")

	resp, err := app.Test(httptest.NewRequest("GET", "/whoami", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
