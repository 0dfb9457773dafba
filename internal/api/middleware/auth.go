package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"zawj-chat/internal/models"
)

const userIDKey = "user_id"

type AuthMiddleware struct {
	jwtSecret string
}

func NewAuthMiddleware(jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		jwtSecret: jwtSecret,
	}
}

// RequireAuth validates the bearer token. Browsers cannot set headers on a
// WebSocket handshake, so the token may also come from the "token" query
// parameter.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			abortUnauthorized(c, "authorization header is required")
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(am.jwtSecret), nil
		})
		if err != nil || !token.Valid {
			abortUnauthorized(c, "invalid or expired token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			abortUnauthorized(c, "invalid token claims")
			return
		}

		userID, ok := claims["user_id"].(string)
		if !ok || userID == "" {
			abortUnauthorized(c, "user_id claim must be a non-empty string")
			return
		}

		c.Set(userIDKey, userID)
		c.Set("email", claims["email"])
		c.Next()
	}
}

// UserID returns the authenticated user set by RequireAuth.
func UserID(c *gin.Context) (string, bool) {
	id := c.GetString(userIDKey)
	return id, id != ""
}

func bearerToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return c.Query("token")
}

func abortUnauthorized(c *gin.Context, details string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
		Code:    http.StatusUnauthorized,
		Message: "Unauthorized",
		Details: details,
	})
}
