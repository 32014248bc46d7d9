package serverutils

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

var ErrUnauthorized = errors.New("unauthorized")

// bearerToken reads the Authorization header, falling back to the "token"
// query parameter for browser WebSocket clients.
func bearerToken(ctx *fiber.Ctx) string {
	if h := ctx.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return h[7:]
	}
	return ctx.Query("token")
}

func parseUserID(tokenStr, secret string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrUnauthorized
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", ErrUnauthorized
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrUnauthorized
	}
	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return "", ErrUnauthorized
	}
	return userID, nil
}

// JwtMiddleware stores the token's user_id claim in Locals("user_id"). When
// required is false, requests without a token pass through anonymously but a
// bad token is still rejected.
func JwtMiddleware(secret string, required bool) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		tokenStr := bearerToken(ctx)
		if tokenStr == "" {
			if required {
				return ErrUnauthorized
			}
			return ctx.Next()
		}
		userID, err := parseUserID(tokenStr, secret)
		if err != nil {
			return err
		}
		ctx.Locals("user_id", userID)
		return ctx.Next()
	}
}

// UserID returns the authenticated user, or "" for anonymous requests.
func UserID(ctx *fiber.Ctx) string {
	id, _ := ctx.Locals("user_id").(string)
	return id
}
