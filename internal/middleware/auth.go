package middleware

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Token issuance is external; this middleware only verifies bearer
// tokens and extracts the authenticated identity.

func secret() []byte {
	return []byte(os.Getenv("JWT_SECRET"))
}

func parseToken(c *gin.Context) (jwt.MapClaims, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return nil, false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, false
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret(), nil
	})
	if err != nil || !token.Valid {
		return nil, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, false
	}

	return claims, true
}

func setIdentity(c *gin.Context, claims jwt.MapClaims) {
	if v, ok := claims["userId"].(float64); ok {
		c.Set("userId", uint(v))
	}
	if v, ok := claims["role"].(string); ok {
		c.Set("role", v)
	}
}

// Authenticate rejects requests without a valid bearer token.
func Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := parseToken(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Authentication required"})
			c.Abort()
			return
		}
		setIdentity(c, claims)
		c.Next()
	}
}

// OptionalAuthenticate attaches the identity when a valid token is
// present but lets guest requests through.
func OptionalAuthenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, ok := parseToken(c); ok {
			setIdentity(c, claims)
		}
		c.Next()
	}
}

// RequireAdmin must run after Authenticate.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if role, _ := c.Get("role"); role != "admin" {
			c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Admin access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// ActorFrom returns the authenticated identity, if any.
func ActorFrom(c *gin.Context) (userId *uint, role string) {
	if v, ok := c.Get("userId"); ok {
		if id, ok := v.(uint); ok {
			userId = &id
		}
	}
	if v, ok := c.Get("role"); ok {
		role, _ = v.(string)
	}
	return userId, role
}
