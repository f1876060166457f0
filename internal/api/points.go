package api

import (
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"biosculpture/internal/domain"  // Importing domain models
	"biosculpture/internal/service" // Points ledger
	"biosculpture/internal/utils"   // Utility functions

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Money amounts
	"github.com/sirupsen/logrus"    // Logging library
	"gorm.io/gorm"                  // GORM ORM library
)

// GetPointsHandler returns the caller's balance and paginated ledger
func GetPointsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := currentUserID(c) // Get userID from context
		var user domain.User
		// Query user for the current balance
		if err := db.Select("id", "points_balance").First(&user, userID).Error; err != nil {
			notFound(c, "User")
			return
		}
		p := utils.ParsePage(c)
		query := db.Model(&domain.PointsTransaction{}).Where("user_id = ?", userID)
		if typ := c.Query("type"); typ != "" {
			query = query.Where("type = ?", strings.ToUpper(typ))
		}
		var total int64 // Total count of ledger entries
		if err := query.Count(&total).Error; err != nil {
			respondError(c, err, "Failed to count transactions")
			return
		}
		var transactions []domain.PointsTransaction
		// Fetch paginated ledger entries, newest first
		if err := query.Order("created_at desc, id desc").Offset(p.Offset()).Limit(p.PageSize).
			Find(&transactions).Error; err != nil {
			respondError(c, err, "Failed to fetch transactions")
			return
		}
		resp := utils.Paginated("transactions", transactions, p, total)
		resp["balance"] = user.PointsBalance
		c.JSON(http.StatusOK, resp)
	}
}

// PointsBreakdownHandler groups the caller's ledger into day, week or month buckets
func PointsBreakdownHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		period := c.DefaultQuery("period", "month")
		if period != "day" && period != "week" && period != "month" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "period must be day, week or month"})
			return
		}
		from, err := queryTime(c, "from")
		if err != nil {
			respondError(c, err, "Invalid from")
			return
		}
		to, err := queryEnd(c, "to")
		if err != nil {
			respondError(c, err, "Invalid to")
			return
		}
		query := db.Where("user_id = ?", currentUserID(c))
		if from != nil {
			query = query.Where("created_at >= ?", *from)
		}
		if to != nil {
			query = query.Where("created_at < ?", *to)
		}
		var transactions []domain.PointsTransaction
		if err := query.Order("created_at").Find(&transactions).Error; err != nil {
			respondError(c, err, "Failed to fetch transactions")
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"period":  period,
			"buckets": domain.Breakdown(transactions, period),
		})
	}
}

// AdjustPointsRequest is a signed manual balance correction
type AdjustPointsRequest struct {
	Points int    `json:"points" binding:"required"`
	Reason string `json:"reason" binding:"required,max=255"`
}

// AdjustPointsHandler lets an admin credit or debit a user's balance
func AdjustPointsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req AdjustPointsRequest
		// Validate request
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		var user domain.User
		// Atomic adjustment with audit entry
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := service.AdjustPoints(tx, id, req.Points, req.Reason); err != nil {
				return err // Return error to rollback
			}
			if err := recordAudit(tx, c, "adjust_points", "user", id, req); err != nil {
				return err
			}
			return tx.Select("id", "points_balance").First(&user, id).Error
		})
		if err != nil {
			respondError(c, err, "Failed to adjust points")
			return
		}
		// Log successful adjustment
		logrus.WithFields(logrus.Fields{
			"user_id":  id,                 // Adjusted user
			"actor_id": currentUserID(c),   // Admin performing it
			"points":   req.Points,         // Signed amount
			"balance":  user.PointsBalance, // Resulting balance
		}).Info("Points adjusted")
		c.JSON(http.StatusOK, gin.H{"message": "Points adjusted", "balance": user.PointsBalance})
	}
}

// PointsConfigRequest holds earning rule fields; nil leaves a field unchanged
type PointsConfigRequest struct {
	Action        *string          `json:"action"`
	Name          *string          `json:"name"`
	Points        *int             `json:"points"`
	PointsPerUnit *decimal.Decimal `json:"points_per_unit"`
	MinAmount     *decimal.Decimal `json:"min_amount"`
	Active        *bool            `json:"active"`
}

// apply copies the set fields onto cfg and validates the rule
func (r *PointsConfigRequest) apply(cfg *domain.PointsConfiguration) error {
	if r.Action != nil {
		cfg.Action = strings.ToUpper(*r.Action)
	}
	if r.Name != nil {
		cfg.Name = strings.TrimSpace(*r.Name)
	}
	if r.Points != nil {
		cfg.Points = *r.Points
	}
	if r.PointsPerUnit != nil {
		cfg.PointsPerUnit = *r.PointsPerUnit
	}
	if r.MinAmount != nil {
		cfg.MinAmount = *r.MinAmount
	}
	if r.Active != nil {
		cfg.Active = *r.Active
	}
	if !domain.ValidAction(cfg.Action) {
		return domain.Rule("action must be PURCHASE, REVIEW, REFERRAL or SIGNUP")
	}
	if cfg.Points < 0 || cfg.PointsPerUnit.IsNegative() || cfg.MinAmount.IsNegative() {
		return domain.Rule("points, points_per_unit and min_amount cannot be negative")
	}
	return nil
}

// ListPointsConfigsHandler returns every earning rule
func ListPointsConfigsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var configs []domain.PointsConfiguration
		if err := db.Order("action, min_amount").Find(&configs).Error; err != nil {
			respondError(c, err, "Failed to fetch points configurations")
			return
		}
		c.JSON(http.StatusOK, gin.H{"configurations": configs})
	}
}

// CreatePointsConfigHandler adds an earning rule
func CreatePointsConfigHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PointsConfigRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		cfg := domain.PointsConfiguration{Active: true}
		if err := req.apply(&cfg); err != nil {
			respondError(c, err, "Failed to create points configuration")
			return
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&cfg).Error; err != nil {
				return err
			}
			return recordAudit(tx, c, "create", "points_configuration", cfg.ID, req)
		})
		if err != nil {
			respondError(c, err, "Failed to create points configuration")
			return
		}
		c.JSON(http.StatusCreated, gin.H{"configuration": cfg})
	}
}

// UpdatePointsConfigHandler edits an earning rule
func UpdatePointsConfigHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req PointsConfigRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		var cfg domain.PointsConfiguration
		if err := db.First(&cfg, id).Error; err != nil {
			notFound(c, "Points configuration")
			return
		}
		if err := req.apply(&cfg); err != nil {
			respondError(c, err, "Failed to update points configuration")
			return
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Save(&cfg).Error; err != nil {
				return err
			}
			return recordAudit(tx, c, "update", "points_configuration", cfg.ID, req)
		})
		if err != nil {
			respondError(c, err, "Failed to update points configuration")
			return
		}
		c.JSON(http.StatusOK, gin.H{"configuration": cfg})
	}
}

// DeletePointsConfigHandler removes an earning rule
func DeletePointsConfigHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			res := tx.Delete(&domain.PointsConfiguration{}, id)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return domain.ErrNotFound
			}
			return recordAudit(tx, c, "delete", "points_configuration", id, nil)
		})
		if err != nil {
			respondError(c, err, "Failed to delete points configuration")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Points configuration deleted"})
	}
}
