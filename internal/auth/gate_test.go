package auth

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatedApp(secret string, reached *bool) *fiber.App {
	app := fiber.New()
	app.Get("/private", Gate(secret), func(c *fiber.Ctx) error {
		*reached = true
		id, ok := Caller(c)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.JSON(id)
	})
	return app
}

func TestGate(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	valid, err := tokens.Issue(Identity{ID: 7, Username: "bob"})
	require.NoError(t, err)

	expiredTokens := NewTokens("secret", time.Minute)
	expiredTokens.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, err := expiredTokens.Issue(Identity{ID: 7, Username: "bob"})
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		status int
		msg    string
	}{
		{"missing header", "", fiber.StatusUnauthorized, MsgNoToken},
		{"no bearer prefix", valid, fiber.StatusUnauthorized, MsgBadFormat},
		{"legacy header value", "Token " + valid, fiber.StatusUnauthorized, MsgBadFormat},
		{"empty bearer", "Bearer ", fiber.StatusUnauthorized, MsgBadFormat},
		{"garbage bearer", "Bearer x", fiber.StatusUnauthorized, MsgInvalidToken},
		{"tampered", "Bearer " + tamper(valid), fiber.StatusUnauthorized, MsgInvalidToken},
		{"expired", "Bearer " + expired, fiber.StatusUnauthorized, MsgInvalidToken},
		{"valid", "Bearer " + valid, fiber.StatusOK, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var reached bool
			app := gatedApp("secret", &reached)

			req := httptest.NewRequest("GET", "/private", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tc.status, resp.StatusCode)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)

			if tc.status != fiber.StatusOK {
				assert.False(t, reached, "handler must not run")
				var got map[string]string
				require.NoError(t, json.Unmarshal(body, &got))
				assert.Equal(t, tc.msg, got["msg"])
				return
			}
			assert.True(t, reached)
			var id Identity
			require.NoError(t, json.Unmarshal(body, &id))
			assert.Equal(t, Identity{ID: 7, Username: "bob"}, id)
		})
	}
}

func TestGateIgnoresLegacyHeader(t *testing.T) {
	valid, err := NewTokens("secret", time.Hour).Issue(Identity{ID: 7, Username: "bob"})
	require.NoError(t, err)

	var reached bool
	req := httptest.NewRequest("GET", "/private", nil)
	req.Header.Set("x-auth-token", valid)
	resp, err := gatedApp("secret", &reached).Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.False(t, reached)
}
