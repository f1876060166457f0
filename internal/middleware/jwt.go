package middleware

import (
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"biosculpture/internal/utils" // JWT utility functions

	"github.com/gin-gonic/gin" // Gin web framework
)

// bearerToken extracts the token from an Authorization header
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(authHeader, "Bearer "), true
}

// JWTAuthMiddleware validates JWT tokens and extracts user information
func JWTAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearerToken(c) // Extract the token string
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}
		claims, err := utils.ParseJWT(tokenStr, secret) // Parse the JWT token
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		c.Set("userID", claims.UserID) // Store userID in context
		c.Next()
	}
}

// OptionalJWTMiddleware stores the user id when a valid token is present and lets guests through
func OptionalJWTMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenStr, ok := bearerToken(c); ok {
			if claims, err := utils.ParseJWT(tokenStr, secret); err == nil {
				c.Set("userID", claims.UserID)
			}
		}
		c.Next()
	}
}
