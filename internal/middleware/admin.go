package middleware

import (
	"net/http" // HTTP status codes

	"biosculpture/internal/domain" // Importing domain models

	"github.com/gin-gonic/gin" // Gin web framework
	"gorm.io/gorm"             // GORM ORM library
)

// loadRole fetches the authenticated user and their role from the database
func loadRole(c *gin.Context, db *gorm.DB) (*domain.User, *domain.Role, bool) {
	userID, exists := c.Get("userID") // Get userID from context
	if !exists {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return nil, nil, false
	}
	var user domain.User
	if err := db.First(&user, userID).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return nil, nil, false
	}
	var role domain.Role
	if err := db.Where("name = ?", user.Role).First(&role).Error; err != nil {
		// Unknown role grants nothing
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
		return nil, nil, false
	}
	c.Set("user", &user)
	c.Set("role", &role)
	return &user, &role, true
}

// RequirePermission checks the user's role from the database on each request
func RequirePermission(db *gorm.DB, perm string) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, role, ok := loadRole(c, db)
		if !ok {
			return
		}
		if !role.Allows(perm) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}
		c.Next()
	}
}

// RequireRole admits only users whose role name is one of names
func RequireRole(db *gorm.DB, names ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, _, ok := loadRole(c, db)
		if !ok {
			return
		}
		for _, n := range names {
			if user.Role == n {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
	}
}
