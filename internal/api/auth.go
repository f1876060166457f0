package api

import (
	"errors"   // Error inspection
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"biosculpture/internal/config"  // Configuration
	"biosculpture/internal/domain"  // Importing domain models
	"biosculpture/internal/service" // Shared side effects
	"biosculpture/internal/utils"   // Utility functions

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/google/uuid"        // Random passwords for social accounts
	"github.com/redis/go-redis/v9"  // Redis client
	"github.com/shopspring/decimal" // Money amounts
	"github.com/sirupsen/logrus"    // Logging library
	"golang.org/x/crypto/bcrypt"    // Password hashing
	"gorm.io/gorm"                  // GORM ORM library
)

// RegisterRequest is the body of a registration
type RegisterRequest struct {
	Email        string `json:"email" binding:"required,email"` // Email must be provided
	Password     string `json:"password" binding:"required"`    // Password must be provided
	Name         string `json:"name"`                           // Display name
	ReferralCode string `json:"referral_code"`                  // Affiliate code from a referral link
}

// LoginRequest is the body of a login
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`    // Email must be provided
	Password string `json:"password" binding:"required"` // Password must be provided
}

// AuthResponse is returned by every successful sign-in
type AuthResponse struct {
	Token string       `json:"token"` // JWT token
	User  *domain.User `json:"user"`  // Signed-in user
}

// isValidPassword checks if the password length is between 8 and 72 characters
func isValidPassword(password string) bool {
	return len(password) >= 8 && len(password) <= 72 // bcrypt ignores bytes past 72
}

// isBanned reports whether email is on the banned list
func isBanned(db *gorm.DB, email string) (bool, error) {
	var n int64
	err := db.Model(&domain.BannedEmail{}).Where("email = ?", domain.NormalizeEmail(email)).Count(&n).Error
	return n > 0, err
}

// issueToken signs a session token and writes the auth response
func issueToken(c *gin.Context, cfg *config.Config, user *domain.User, status int) {
	token, err := utils.GenerateJWT(user.ID, user.Role, cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		// If token generation fails, return internal server error
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}
	c.JSON(status, AuthResponse{Token: token, User: user})
}

// RegisterHandler creates a customer account, links a referral and grants the signup bonus
func RegisterHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		// Validate password length
		if !isValidPassword(req.Password) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be 8-72 characters"})
			return
		}
		email := domain.NormalizeEmail(req.Email)
		banned, err := isBanned(db, email)
		if err != nil {
			respondError(c, err, "Registration failed")
			return
		}
		if banned {
			c.JSON(http.StatusForbidden, gin.H{"error": "This email address cannot be used"})
			return
		}
		// Hash the password and create the user
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
			return
		}
		user := domain.User{Email: email, Password: string(hash), Name: strings.TrimSpace(req.Name), Role: domain.RoleUser}
		err = db.Transaction(func(tx *gorm.DB) error {
			var aff *domain.Affiliate
			if code := strings.ToUpper(strings.TrimSpace(req.ReferralCode)); code != "" {
				var found domain.Affiliate
				err := tx.Where("code = ? AND status = ?", code, domain.AffiliateApproved).First(&found).Error
				if err == nil {
					aff = &found
					user.ReferredByAffiliateID = &found.ID
				} else if !errors.Is(err, gorm.ErrRecordNotFound) {
					return err
				} // Unknown codes are ignored
			}
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
			if aff != nil {
				if err := tx.Create(&domain.Referral{AffiliateID: aff.ID, ReferredUserID: user.ID, Status: domain.ReferralRegistered}).Error; err != nil {
					return err
				}
			}
			points, err := service.AwardPoints(tx, user.ID, domain.ActionSignup, decimal.Zero, "Welcome bonus",
				service.Reference{Type: "user", ID: user.ID})
			user.PointsBalance += points
			return err
		})
		if isDuplicate(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
			return
		}
		if err != nil {
			respondError(c, err, "Registration failed")
			return
		}
		invalidate(c, rdb, "admin:users:")
		logrus.WithFields(logrus.Fields{
			"user_id":  user.ID,
			"referred": user.ReferredByAffiliateID != nil,
		}).Info("User registered")
		issueToken(c, cfg, &user, http.StatusCreated)
	}
}

// LoginHandler authenticates a user and returns a JWT token
func LoginHandler(db *gorm.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		var user domain.User // Fetch user from database
		if err := db.Where("email = ?", domain.NormalizeEmail(req.Email)).First(&user).Error; err != nil {
			// If user not found, return unauthorized
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		// Compare provided password with stored hash
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		if banned, err := isBanned(db, user.Email); err != nil || banned {
			c.JSON(http.StatusForbidden, gin.H{"error": "This account is suspended"})
			return
		}
		issueToken(c, cfg, &user, http.StatusOK)
	}
}

// GoogleLoginRequest carries an ID token from Google Identity Services
type GoogleLoginRequest struct {
	IDToken string `json:"id_token" binding:"required"`
}

// GoogleLoginHandler signs in with a verified Google ID token, creating or linking the account
func GoogleLoginHandler(db *gorm.DB, cfg *config.Config, verifier IdentityVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if verifier == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google sign-in is not configured"})
			return
		}
		var req GoogleLoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		id, err := verifier.VerifyIdentity(c.Request.Context(), req.IDToken)
		if err != nil {
			logrus.WithField("error", err.Error()).Warn("Google token rejected")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid Google token"})
			return
		}
		if !id.EmailVerified || id.Email == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Google account email is not verified"})
			return
		}
		email := domain.NormalizeEmail(id.Email)
		if banned, err := isBanned(db, email); err != nil || banned {
			c.JSON(http.StatusForbidden, gin.H{"error": "This email address cannot be used"})
			return
		}

		var user domain.User
		status := http.StatusOK
		err = db.Transaction(func(tx *gorm.DB) error {
			err := tx.Where("google_subject = ?", id.Subject).First(&user).Error
			if err == nil {
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			err = tx.Where("email = ?", email).First(&user).Error
			if err == nil {
				// Link the existing password account
				user.GoogleSubject = &id.Subject
				return tx.Model(&user).Update("google_subject", id.Subject).Error
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			subject := id.Subject
			user = domain.User{Email: email, Password: string(hash), Name: id.Name, Role: domain.RoleUser, GoogleSubject: &subject}
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
			status = http.StatusCreated
			points, err := service.AwardPoints(tx, user.ID, domain.ActionSignup, decimal.Zero, "Welcome bonus",
				service.Reference{Type: "user", ID: user.ID})
			user.PointsBalance += points
			return err
		})
		if err != nil {
			respondError(c, err, "Google sign-in failed")
			return
		}
		issueToken(c, cfg, &user, status)
	}
}

// MeHandler returns the signed-in user's profile
func MeHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var user domain.User
		if err := db.First(&user, currentUserID(c)).Error; err != nil {
			notFound(c, "User")
			return
		}
		var unread int64
		db.Model(&domain.Notification{}).Where("user_id = ? AND read_at IS NULL", user.ID).Count(&unread)
		c.JSON(http.StatusOK, gin.H{"user": user, "unread_notifications": unread})
	}
}

// UpdateProfileRequest holds optional profile fields
type UpdateProfileRequest struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
}

// UpdateMeHandler edits the signed-in user's name and phone
func UpdateMeHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateProfileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		updates := map[string]any{}
		if req.Name != nil {
			updates["name"] = strings.TrimSpace(*req.Name)
		}
		if req.Phone != nil {
			updates["phone"] = strings.TrimSpace(*req.Phone)
		}
		var user domain.User
		if err := db.First(&user, currentUserID(c)).Error; err != nil {
			notFound(c, "User")
			return
		}
		if len(updates) > 0 {
			if err := db.Model(&user).Updates(updates).Error; err != nil {
				respondError(c, err, "Failed to update profile")
				return
			}
			db.First(&user, user.ID) // Reload updated values
		}
		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}

// ChangePasswordRequest is the body of a password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// ChangePasswordHandler replaces the password after checking the current one
func ChangePasswordHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ChangePasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		if !isValidPassword(req.NewPassword) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be 8-72 characters"})
			return
		}
		var user domain.User
		if err := db.First(&user, currentUserID(c)).Error; err != nil {
			notFound(c, "User")
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Current password is incorrect"})
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
			return
		}
		if err := db.Model(&user).Update("password", string(hash)).Error; err != nil {
			respondError(c, err, "Failed to change password")
			return
		}
		logrus.WithField("user_id", user.ID).Info("Password changed")
		c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
	}
}
