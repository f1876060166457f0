package domain

import (
	"strings" // Email normalisation
	"time"    // Timestamps
)

// Built-in role names
const (
	RoleUser       = "user"
	RoleEditor     = "editor"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

// Permissions checked by the admin routes
const (
	PermAll            = "*"
	PermUsers          = "users:manage"
	PermAudit          = "audit:read"
	PermProducts       = "products:write"
	PermOrders         = "orders:manage"
	PermCoupons        = "coupons:manage"
	PermBlogs          = "blogs:write"
	PermComments       = "comments:moderate"
	PermReviews        = "reviews:moderate"
	PermPages          = "pages:write"
	PermRewards        = "rewards:manage"
	PermAffiliates     = "affiliates:manage"
	PermSalons         = "salons:manage"
	PermSocial         = "social:write"
	PermFiles          = "files:write"
	PermCertifications = "certifications:manage"
)

// AllPermissions lists every grantable permission
var AllPermissions = []string{
	PermUsers, PermAudit, PermProducts, PermOrders, PermCoupons, PermBlogs, PermComments, PermReviews,
	PermPages, PermRewards, PermAffiliates, PermSalons, PermSocial, PermFiles, PermCertifications,
}

// ValidPermission reports whether p can be granted to a role
func ValidPermission(p string) bool {
	if p == PermAll {
		return true
	}
	for _, known := range AllPermissions {
		if known == p {
			return true
		}
	}
	return false
}

// User Model
type User struct {
	ID                    uint      `gorm:"primaryKey" json:"id"`                              // Primary key
	Email                 string    `gorm:"size:191;uniqueIndex;not null" json:"email"`        // Unique lower-case email
	Password              string    `gorm:"not null" json:"-"`                                 // Hashed password
	Name                  string    `gorm:"size:191" json:"name"`                              // Display name
	Phone                 string    `gorm:"size:50" json:"phone,omitempty"`                    // Contact phone
	Role                  string    `gorm:"size:50;default:user;index" json:"role"`            // Role name
	PointsBalance         int       `gorm:"not null;default:0" json:"points_balance"`          // Loyalty points balance
	ReferredByAffiliateID *uint     `gorm:"index" json:"referred_by_affiliate_id,omitempty"`   // Affiliate who referred the user
	GoogleSubject         *string   `gorm:"size:191;uniqueIndex" json:"-"`                     // OIDC subject for social login
	CreatedAt             time.Time `json:"created_at"`                                        // Creation time
	UpdatedAt             time.Time `json:"updated_at"`                                        // Last update time
}

// Role Model groups permissions under a name that users reference
type Role struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:50;uniqueIndex;not null" json:"name"`
	Description string    `gorm:"size:255" json:"description"`
	Permissions []string  `gorm:"serializer:json" json:"permissions"`
	BuiltIn     bool      `gorm:"not null;default:false" json:"built_in"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Allows reports whether the role grants perm
func (r *Role) Allows(perm string) bool {
	if r.Name == RoleSuperAdmin {
		return true
	}
	for _, p := range r.Permissions {
		if p == PermAll || p == perm {
			return true
		}
	}
	return false
}

// BannedEmail Model blocks an address from registering and posting
type BannedEmail struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Email       string    `gorm:"size:191;uniqueIndex;not null" json:"email"`
	Reason      string    `gorm:"size:255" json:"reason"`
	CreatedByID uint      `json:"created_by_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// NormalizeEmail lower-cases and trims an address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DefaultRoles returns the built-in roles seeded on migration
func DefaultRoles() []Role {
	return []Role{
		{Name: RoleUser, Description: "Customer account", Permissions: []string{}, BuiltIn: true},
		{Name: RoleEditor, Description: "Content editor", Permissions: []string{
			PermBlogs, PermComments, PermReviews, PermPages, PermSocial, PermFiles,
		}, BuiltIn: true},
		{Name: RoleAdmin, Description: "Store administrator", Permissions: []string{PermAll}, BuiltIn: true},
		{Name: RoleSuperAdmin, Description: "Full access including role management", Permissions: []string{PermAll}, BuiltIn: true},
	}
}
