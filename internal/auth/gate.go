package auth

import (
	"strings"

	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	MsgNoToken      = "No token, authorization denied"
	MsgBadFormat    = "Token format is not valid"
	MsgInvalidToken = "Token is not valid"

	tokenKey    = "token"
	identityKey = "identity"
)

// Gate returns middleware that admits only requests carrying a valid
// "Authorization: Bearer <token>" header. The caller's identity is available
// to later handlers through Caller.
func Gate(secret string) fiber.Handler {
	verify := jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{JWTAlg: jwtware.HS256, Key: []byte(secret)},
		Claims:     &Claims{},
		ContextKey: tokenKey,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return unauthorized(c, MsgInvalidToken)
		},
		SuccessHandler: func(c *fiber.Ctx) error {
			token, ok := c.Locals(tokenKey).(*jwt.Token)
			if !ok {
				return unauthorized(c, MsgInvalidToken)
			}
			claims, ok := token.Claims.(*Claims)
			if !ok || claims.User.ID == 0 || claims.ExpiresAt == nil {
				return unauthorized(c, MsgInvalidToken)
			}
			c.Locals(identityKey, claims.User)
			return c.Next()
		},
	})

	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return unauthorized(c, MsgNoToken)
		}
		if !strings.HasPrefix(header, "Bearer ") {
			return unauthorized(c, MsgBadFormat)
		}
		return verify(c)
	}
}

// Caller returns the identity stored by Gate.
func Caller(c *fiber.Ctx) (Identity, bool) {
	id, ok := c.Locals(identityKey).(Identity)
	return id, ok
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"msg": msg})
}
