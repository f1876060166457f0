package api

import (
	"net/http" // HTTP status codes
	"strings"  // String manipulation
	"time"     // Coupon expiry

	"biosculpture/internal/domain"  // Importing domain models
	"biosculpture/internal/metrics" // Business counters
	"biosculpture/internal/service" // Points ledger
	"biosculpture/internal/utils"   // Utility functions

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Money amounts
	"github.com/sirupsen/logrus"    // Logging library
	"gorm.io/gorm"                  // GORM ORM library
)

// ListRewardsHandler returns active rewards ordered by cost
func ListRewardsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var rewards []domain.Reward
		if err := db.Where("active = ? AND stock <> 0", true).Order("points_cost, id").Find(&rewards).Error; err != nil {
			respondError(c, err, "Failed to fetch rewards")
			return
		}
		c.JSON(http.StatusOK, gin.H{"rewards": rewards})
	}
}

// RedeemRewardHandler spends the caller's points on a reward and issues its coupon
func RedeemRewardHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		userID := currentUserID(c)
		var reward domain.Reward
		if err := db.Where("id = ? AND active = ?", id, true).First(&reward).Error; err != nil {
			notFound(c, "Reward")
			return
		}
		var redemption domain.Redemption
		var coupon domain.Coupon
		// Atomic redemption
		err := db.Transaction(func(tx *gorm.DB) error {
			if reward.Stock != -1 {
				res := tx.Model(&domain.Reward{}).Where("id = ? AND stock > 0", reward.ID).
					Update("stock", gorm.Expr("stock - 1"))
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 0 {
					return domain.Rule("reward is out of stock")
				}
			}
			code, err := utils.RandomCode(8)
			if err != nil {
				return err
			}
			coupon = reward.CouponFor("RWD-"+code, userID, time.Now().UTC())
			coupon.ProductIDs = []uint{}
			coupon.CategoryIDs = []uint{}
			if err := tx.Create(&coupon).Error; err != nil {
				return err
			}
			redemption = domain.Redemption{
				UserID:      userID,
				RewardID:    reward.ID,
				PointsSpent: reward.PointsCost,
				CouponID:    coupon.ID,
				CouponCode:  coupon.Code,
			}
			if err := tx.Create(&redemption).Error; err != nil {
				return err
			}
			return service.SpendPoints(tx, userID, reward.PointsCost, "Redeemed "+reward.Name,
				service.Reference{Type: "redemption", ID: redemption.ID})
		})
		if err != nil {
			respondError(c, err, "Failed to redeem reward")
			return
		}
		metrics.RecordRedemption()
		logrus.WithFields(logrus.Fields{
			"user_id":     userID,
			"reward_id":   reward.ID,
			"points":      reward.PointsCost,
			"coupon_code": coupon.Code,
		}).Info("Reward redeemed")
		redemption.Reward = &reward
		c.JSON(http.StatusCreated, gin.H{"redemption": redemption, "coupon": coupon})
	}
}

// ListMyRedemptionsHandler returns the caller's redemptions
func ListMyRedemptionsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		listRedemptions(c, db.Model(&domain.Redemption{}).Where("user_id = ?", currentUserID(c)))
	}
}

// AdminListRedemptionsHandler returns every redemption, optionally for one user
func AdminListRedemptionsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := db.Model(&domain.Redemption{})
		if uid, ok := queryUint(c, "user_id"); ok {
			query = query.Where("user_id = ?", uid)
		}
		if rid, ok := queryUint(c, "reward_id"); ok {
			query = query.Where("reward_id = ?", rid)
		}
		listRedemptions(c, query)
	}
}

func listRedemptions(c *gin.Context, query *gorm.DB) {
	p := utils.ParsePage(c)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		respondError(c, err, "Failed to count redemptions")
		return
	}
	var redemptions []domain.Redemption
	if err := query.Preload("Reward").Order("created_at desc, id desc").
		Offset(p.Offset()).Limit(p.PageSize).Find(&redemptions).Error; err != nil {
		respondError(c, err, "Failed to fetch redemptions")
		return
	}
	c.JSON(http.StatusOK, utils.Paginated("redemptions", redemptions, p, total))
}

// RewardRequest holds reward fields; nil leaves a field unchanged
type RewardRequest struct {
	Name           *string          `json:"name"`
	Description    *string          `json:"description"`
	PointsCost     *int             `json:"points_cost"`
	DiscountType   *string          `json:"discount_type"`
	DiscountValue  *decimal.Decimal `json:"discount_value"`
	MinOrderAmount *decimal.Decimal `json:"min_order_amount"`
	Stock          *int             `json:"stock"`
	ValidDays      *int             `json:"valid_days"`
	Active         *bool            `json:"active"`
}

// apply copies the set fields onto r and validates the reward and the coupon it issues
func (req *RewardRequest) apply(r *domain.Reward) error {
	if req.Name != nil {
		r.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		r.Description = *req.Description
	}
	if req.PointsCost != nil {
		r.PointsCost = *req.PointsCost
	}
	if req.DiscountType != nil {
		r.DiscountType = strings.ToUpper(*req.DiscountType)
	}
	if req.DiscountValue != nil {
		r.DiscountValue = *req.DiscountValue
	}
	if req.MinOrderAmount != nil {
		r.MinOrderAmount = *req.MinOrderAmount
	}
	if req.Stock != nil {
		r.Stock = *req.Stock
	}
	if req.ValidDays != nil {
		r.ValidDays = *req.ValidDays
	}
	if req.Active != nil {
		r.Active = *req.Active
	}
	if r.Name == "" {
		return domain.Rule("name is required")
	}
	if r.PointsCost <= 0 {
		return domain.Rule("points_cost must be positive")
	}
	if r.Stock < -1 {
		return domain.Rule("stock must be -1 (unlimited) or more")
	}
	if r.ValidDays < 0 {
		return domain.Rule("valid_days cannot be negative")
	}
	probe := r.CouponFor("PROBE", 0, time.Now())
	return probe.ValidateDefinition()
}

// ListAllRewardsHandler returns rewards including inactive ones
func ListAllRewardsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var rewards []domain.Reward
		if err := db.Order("id").Find(&rewards).Error; err != nil {
			respondError(c, err, "Failed to fetch rewards")
			return
		}
		c.JSON(http.StatusOK, gin.H{"rewards": rewards})
	}
}

// CreateRewardHandler adds a reward; stock defaults to unlimited and validity to 90 days
func CreateRewardHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RewardRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		reward := domain.Reward{Stock: -1, ValidDays: 90, Active: true}
		if err := req.apply(&reward); err != nil {
			respondError(c, err, "Failed to create reward")
			return
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&reward).Error; err != nil {
				return err
			}
			return recordAudit(tx, c, "create", "reward", reward.ID, gin.H{"name": reward.Name, "points_cost": reward.PointsCost})
		})
		if err != nil {
			respondError(c, err, "Failed to create reward")
			return
		}
		c.JSON(http.StatusCreated, gin.H{"reward": reward})
	}
}

// UpdateRewardHandler edits a reward
func UpdateRewardHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req RewardRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		var reward domain.Reward
		if err := db.First(&reward, id).Error; err != nil {
			notFound(c, "Reward")
			return
		}
		if err := req.apply(&reward); err != nil {
			respondError(c, err, "Failed to update reward")
			return
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Save(&reward).Error; err != nil {
				return err
			}
			return recordAudit(tx, c, "update", "reward", reward.ID, req)
		})
		if err != nil {
			respondError(c, err, "Failed to update reward")
			return
		}
		c.JSON(http.StatusOK, gin.H{"reward": reward})
	}
}

// DeleteRewardHandler removes a reward that was never redeemed, otherwise deactivates it
func DeleteRewardHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var reward domain.Reward
		if err := db.First(&reward, id).Error; err != nil {
			notFound(c, "Reward")
			return
		}
		var redeemed int64
		db.Model(&domain.Redemption{}).Where("reward_id = ?", id).Count(&redeemed)
		err := db.Transaction(func(tx *gorm.DB) error {
			if redeemed > 0 {
				if err := tx.Model(&reward).Update("active", false).Error; err != nil {
					return err
				}
				return recordAudit(tx, c, "deactivate", "reward", id, gin.H{"redemptions": redeemed})
			}
			if err := tx.Delete(&reward).Error; err != nil {
				return err
			}
			return recordAudit(tx, c, "delete", "reward", id, gin.H{"name": reward.Name})
		})
		if err != nil {
			respondError(c, err, "Failed to delete reward")
			return
		}
		if redeemed > 0 {
			c.JSON(http.StatusOK, gin.H{"message": "Reward has redemptions and was deactivated"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Reward deleted"})
	}
}
