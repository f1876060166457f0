package api

import (
	"encoding/json" // Audit details encoding
	"errors"        // Error inspection
	"net/http"      // HTTP status codes
	"strings"       // String manipulation
	"time"          // Cache TTL

	"biosculpture/internal/domain" // Importing domain models
	"biosculpture/internal/utils"  // Utility functions

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
	"gorm.io/gorm"                 // GORM ORM library
)

// recordAudit stores an admin action performed by the current user
func recordAudit(tx *gorm.DB, c *gin.Context, action, entityType string, entityID uint, details any) error {
	raw := ""
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			return err
		}
		raw = string(b)
	}
	entry := domain.AuditLog{
		ActorID:    currentUserID(c),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    raw,
		IP:         c.ClientIP(),
	}
	if err := tx.Create(&entry).Error; err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"actor_id":    entry.ActorID,
		"action":      action,
		"entity_type": entityType,
		"entity_id":   entityID,
	}).Info("Admin action")
	return nil
}

// UserAdminResponse represents the user data returned to admin
type UserAdminResponse struct {
	domain.User
	Orders int64 `json:"orders"` // Orders placed
}

// ListUsersHandler returns users filtered by q and role, cached per query
func ListUsersHandler(db *gorm.DB, rdb *redis.Client, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Create a cache key based on the query string
		cacheKey := "admin:users:" + c.Request.URL.RawQuery
		if serveCached(c, rdb, cacheKey) {
			return
		}
		p := utils.ParsePage(c)
		query := db.Model(&domain.User{})
		if q := c.Query("q"); q != "" {
			query = query.Where("email LIKE ? OR name LIKE ?", likePattern(q), likePattern(q))
		}
		if role := c.Query("role"); role != "" {
			query = query.Where("role = ?", role)
		}
		var total int64 // Total user count
		if err := query.Count(&total).Error; err != nil {
			respondError(c, err, "Failed to count users")
			return
		}
		var users []domain.User // Slice to hold users
		if err := query.Order("id desc").Offset(p.Offset()).Limit(p.PageSize).Find(&users).Error; err != nil {
			respondError(c, err, "Failed to fetch users")
			return
		}
		respData := utils.Paginated("users", users, p, total)
		// Cache the response for future requests
		storeCached(c, rdb, cacheKey, respData, ttl)
		c.JSON(http.StatusOK, respData) // Return the response
	}
}

// GetUserHandler returns one user with their order count
func GetUserHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var resp UserAdminResponse
		if err := db.First(&resp.User, id).Error; err != nil {
			notFound(c, "User")
			return
		}
		db.Model(&domain.Order{}).Where("user_id = ?", id).Count(&resp.Orders)
		c.JSON(http.StatusOK, gin.H{"user": resp})
	}
}

// actingSuperAdmin reports whether the permission middleware loaded the superadmin role
func actingSuperAdmin(c *gin.Context) bool {
	actor, _ := c.MustGet("role").(*domain.Role)
	return actor != nil && actor.Name == domain.RoleSuperAdmin
}

// AdminUpdateUserRequest holds the editable user fields
type AdminUpdateUserRequest struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
	Role  *string `json:"role"`
}

// UpdateUserHandler edits a user; changing the role needs a superadmin
func UpdateUserHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req AdminUpdateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		var user domain.User
		if err := db.First(&user, id).Error; err != nil {
			notFound(c, "User")
			return
		}
		updates := map[string]any{}
		if req.Name != nil {
			updates["name"] = strings.TrimSpace(*req.Name)
		}
		if req.Phone != nil {
			updates["phone"] = strings.TrimSpace(*req.Phone)
		}
		if req.Role != nil && *req.Role != user.Role {
			if !actingSuperAdmin(c) {
				c.JSON(http.StatusForbidden, gin.H{"error": "Only a superadmin can change roles"})
				return
			}
			if id == currentUserID(c) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "You cannot change your own role"})
				return
			}
			var n int64
			if err := db.Model(&domain.Role{}).Where("name = ?", *req.Role).Count(&n).Error; err != nil {
				respondError(c, err, "Failed to update user")
				return
			}
			if n == 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown role"})
				return
			}
			updates["role"] = *req.Role
		}
		if len(updates) == 0 {
			c.JSON(http.StatusOK, gin.H{"user": user})
			return
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&user).Updates(updates).Error; err != nil {
				return err
			}
			return recordAudit(tx, c, "update", "user", user.ID, updates)
		})
		if err != nil {
			respondError(c, err, "Failed to update user")
			return
		}
		invalidate(c, rdb, "admin:users:")
		db.First(&user, id)
		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}

// DeleteUserHandler removes an account and its personal data; orders are kept
func DeleteUserHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		if id == currentUserID(c) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "You cannot delete your own account"})
			return
		}
		var user domain.User
		if err := db.First(&user, id).Error; err != nil {
			notFound(c, "User")
			return
		}
		if user.Role == domain.RoleSuperAdmin && !actingSuperAdmin(c) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Only a superadmin can delete a superadmin"})
			return
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			var cartIDs []uint
			if err := tx.Model(&domain.Cart{}).Where("user_id = ?", id).Pluck("id", &cartIDs).Error; err != nil {
				return err
			}
			if len(cartIDs) > 0 {
				if err := tx.Where("cart_id IN ?", cartIDs).Delete(&domain.CartItem{}).Error; err != nil {
					return err
				}
			}
			for _, model := range []any{&domain.Cart{}, &domain.Notification{}, &domain.Review{}} {
				if err := tx.Where("user_id = ?", id).Delete(model).Error; err != nil {
					return err
				}
			}
			if err := tx.Delete(&user).Error; err != nil {
				return err
			}
			return recordAudit(tx, c, "delete", "user", id, gin.H{"email": user.Email})
		})
		if err != nil {
			respondError(c, err, "Failed to delete user")
			return
		}
		invalidate(c, rdb, "admin:users:")
		c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
	}
}

// RoleRequest is the body for creating or editing a role
type RoleRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Permissions []string `json:"permissions"`
}

// validatePermissions rejects unknown permission names
func validatePermissions(perms []string) error {
	for _, p := range perms {
		if !domain.ValidPermission(p) {
			return domain.Rule("unknown permission %q", p)
		}
	}
	return nil
}

// ListRolesHandler returns every role with its user count
func ListRolesHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var roles []domain.Role
		if err := db.Order("id").Find(&roles).Error; err != nil {
			respondError(c, err, "Failed to fetch roles")
			return
		}
		type row struct {
			Role  string
			Count int64
		}
		var counts []row
		db.Model(&domain.User{}).Select("role, COUNT(*) as count").Group("role").Scan(&counts)
		users := map[string]int64{}
		for _, r := range counts {
			users[r.Role] = r.Count
		}
		c.JSON(http.StatusOK, gin.H{"roles": roles, "user_counts": users, "permissions": domain.AllPermissions})
	}
}

// CreateRoleHandler adds a custom role
func CreateRoleHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RoleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		if req.Name == nil || domain.Slugify(*req.Name) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
			return
		}
		if err := validatePermissions(req.Permissions); err != nil {
			respondError(c, err, "Failed to create role")
			return
		}
		role := domain.Role{Name: domain.Slugify(*req.Name), Permissions: req.Permissions}
		if role.Permissions == nil {
			role.Permissions = []string{}
		}
		if req.Description != nil {
			role.Description = *req.Description
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&role).Error; err != nil {
				return err
			}
			return recordAudit(tx, c, "create", "role", role.ID, role)
		})
		if err != nil {
			respondError(c, err, "Failed to create role")
			return
		}
		c.JSON(http.StatusCreated, gin.H{"role": role})
	}
}

// UpdateRoleHandler edits a role; built-in roles keep their name and superadmin keeps full access
func UpdateRoleHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req RoleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		var role domain.Role
		if err := db.First(&role, id).Error; err != nil {
			notFound(c, "Role")
			return
		}
		oldName := role.Name
		if req.Name != nil && domain.Slugify(*req.Name) != role.Name {
			if role.BuiltIn {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Built-in roles cannot be renamed"})
				return
			}
			role.Name = domain.Slugify(*req.Name)
			if role.Name == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
				return
			}
		}
		if req.Description != nil {
			role.Description = *req.Description
		}
		if req.Permissions != nil {
			if role.Name == domain.RoleSuperAdmin {
				c.JSON(http.StatusBadRequest, gin.H{"error": "The superadmin role always has every permission"})
				return
			}
			if err := validatePermissions(req.Permissions); err != nil {
				respondError(c, err, "Failed to update role")
				return
			}
			role.Permissions = req.Permissions
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Save(&role).Error; err != nil {
				return err
			}
			if oldName != role.Name {
				// Users follow a renamed role
				if err := tx.Model(&domain.User{}).Where("role = ?", oldName).Update("role", role.Name).Error; err != nil {
					return err
				}
			}
			return recordAudit(tx, c, "update", "role", role.ID, role)
		})
		if err != nil {
			respondError(c, err, "Failed to update role")
			return
		}
		c.JSON(http.StatusOK, gin.H{"role": role})
	}
}

// DeleteRoleHandler removes an unused custom role
func DeleteRoleHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var role domain.Role
		if err := db.First(&role, id).Error; err != nil {
			notFound(c, "Role")
			return
		}
		if role.BuiltIn {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Built-in roles cannot be deleted"})
			return
		}
		var assigned int64
		db.Model(&domain.User{}).Where("role = ?", role.Name).Count(&assigned)
		if assigned > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "Role is still assigned to users", "users": assigned})
			return
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Delete(&role).Error; err != nil {
				return err
			}
			return recordAudit(tx, c, "delete", "role", role.ID, gin.H{"name": role.Name})
		})
		if err != nil {
			respondError(c, err, "Failed to delete role")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Role deleted"})
	}
}

// BanEmailRequest is the body for banning an address
type BanEmailRequest struct {
	Email  string `json:"email" binding:"required,email"`
	Reason string `json:"reason"`
}

// ListBannedEmailsHandler returns banned addresses newest first
func ListBannedEmailsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := utils.ParsePage(c)
		query := db.Model(&domain.BannedEmail{})
		if q := c.Query("q"); q != "" {
			query = query.Where("email LIKE ?", likePattern(q))
		}
		var total int64
		if err := query.Count(&total).Error; err != nil {
			respondError(c, err, "Failed to count banned emails")
			return
		}
		var rows []domain.BannedEmail
		if err := query.Order("id desc").Offset(p.Offset()).Limit(p.PageSize).Find(&rows).Error; err != nil {
			respondError(c, err, "Failed to fetch banned emails")
			return
		}
		c.JSON(http.StatusOK, utils.Paginated("banned_emails", rows, p, total))
	}
}

// BanEmailHandler adds an address to the banned list
func BanEmailHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req BanEmailRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		ban := domain.BannedEmail{Email: domain.NormalizeEmail(req.Email), Reason: strings.TrimSpace(req.Reason), CreatedByID: currentUserID(c)}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&ban).Error; err != nil {
				return err
			}
			return recordAudit(tx, c, "create", "banned_email", ban.ID, gin.H{"email": ban.Email, "reason": ban.Reason})
		})
		if isDuplicate(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "Email is already banned"})
			return
		}
		if err != nil {
			respondError(c, err, "Failed to ban email")
			return
		}
		c.JSON(http.StatusCreated, gin.H{"banned_email": ban})
	}
}

// UnbanEmailHandler removes an address from the banned list
func UnbanEmailHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var ban domain.BannedEmail
		if err := db.First(&ban, id).Error; err != nil {
			notFound(c, "Banned email")
			return
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Delete(&ban).Error; err != nil {
				return err
			}
			return recordAudit(tx, c, "delete", "banned_email", ban.ID, gin.H{"email": ban.Email})
		})
		if err != nil {
			respondError(c, err, "Failed to remove ban")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Email unbanned"})
	}
}

// ListAuditLogsHandler returns audit entries, with optional filtering by actor, entity, action or date
func ListAuditLogsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := utils.ParsePage(c)
		query := db.Model(&domain.AuditLog{}) // Start building the query
		if actorID, ok := queryUint(c, "actor_id"); ok {
			query = query.Where("actor_id = ?", actorID) // Filter by actor
		}
		if entityType := c.Query("entity_type"); entityType != "" {
			query = query.Where("entity_type = ?", entityType) // Filter by entity type
		}
		if action := c.Query("action"); action != "" {
			query = query.Where("action = ?", action) // Filter by action
		}
		from, err := queryTime(c, "from")
		if err == nil && from != nil {
			query = query.Where("created_at >= ?", *from) // Filter by start date
		}
		to, err2 := queryEnd(c, "to")
		if err2 == nil && to != nil {
			query = query.Where("created_at < ?", *to) // Filter by end date, inclusive
		}
		if err = errors.Join(err, err2); err != nil {
			respondError(c, err, "Invalid date filter")
			return
		}
		var total int64
		if err := query.Count(&total).Error; err != nil {
			respondError(c, err, "Failed to count audit logs")
			return
		}
		var logs []domain.AuditLog
		if err := query.Order("created_at desc, id desc").Offset(p.Offset()).Limit(p.PageSize).Find(&logs).Error; err != nil {
			respondError(c, err, "Failed to fetch audit logs")
			return
		}
		c.JSON(http.StatusOK, utils.Paginated("audit_logs", logs, p, total))
	}
}
