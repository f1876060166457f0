package api

import (
	"net/http" // HTTP status codes
	"strconv"  // Rating formatting
	"strings"  // String manipulation

	"biosculpture/internal/domain"  // Importing domain models
	"biosculpture/internal/service" // Points and notifications
	"biosculpture/internal/utils"   // Utility functions

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Money amounts
	"github.com/sirupsen/logrus"    // Logging library
	"gorm.io/gorm"                  // GORM ORM library
)

// ListProductReviewsHandler returns approved reviews of an active product with a summary
func ListProductReviewsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var product domain.Product
		if err := db.Where("slug = ? AND active = ?", c.Param("slug"), true).First(&product).Error; err != nil {
			notFound(c, "Product")
			return
		}
		p := utils.ParsePage(c)
		query := db.Model(&domain.Review{}).Where("product_id = ? AND status = ?", product.ID, domain.StatusApproved)
		var total int64
		if err := query.Count(&total).Error; err != nil {
			respondError(c, err, "Failed to count reviews")
			return
		}
		var reviews []domain.Review
		if err := query.Preload("User", publicUser).Order("created_at desc, id desc").
			Offset(p.Offset()).Limit(p.PageSize).Find(&reviews).Error; err != nil {
			respondError(c, err, "Failed to fetch reviews")
			return
		}
		summary, err := reviewSummary(db, product.ID)
		if err != nil {
			respondError(c, err, "Failed to summarise reviews")
			return
		}
		resp := utils.Paginated("reviews", reviews, p, total)
		resp["summary"] = summary
		c.JSON(http.StatusOK, resp)
	}
}

// ReviewRequest is a new product review
type ReviewRequest struct {
	Rating int    `json:"rating" binding:"required,min=1,max=5"`
	Title  string `json:"title" binding:"max=255"`
	Body   string `json:"body" binding:"max=5000"`
}

// CreateReviewHandler stores the caller's review of a product for moderation
func CreateReviewHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ReviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		var product domain.Product
		if err := db.Where("slug = ? AND active = ?", c.Param("slug"), true).First(&product).Error; err != nil {
			notFound(c, "Product")
			return
		}
		var user domain.User
		if err := db.First(&user, currentUserID(c)).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		banned, err := isBanned(db, user.Email)
		if err != nil {
			respondError(c, err, "Failed to create review")
			return
		}
		if banned {
			c.JSON(http.StatusForbidden, gin.H{"error": "This email address is banned"})
			return
		}
		var purchases int64
		if err := db.Model(&domain.OrderItem{}).
			Joins("JOIN orders ON orders.id = order_items.order_id").
			Where("orders.user_id = ? AND orders.status = ? AND order_items.product_id = ?",
				user.ID, domain.OrderDelivered, product.ID).
			Count(&purchases).Error; err != nil {
			respondError(c, err, "Failed to create review")
			return
		}
		review := domain.Review{
			ProductID:        product.ID,
			UserID:           user.ID,
			Rating:           req.Rating,
			Title:            strings.TrimSpace(req.Title),
			Body:             strings.TrimSpace(req.Body),
			Status:           domain.StatusPending,
			VerifiedPurchase: purchases > 0,
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&review).Error; err != nil {
				return err
			}
			_, err := service.NotifyAdmins(tx, service.NotifyReview, "New review awaiting moderation",
				strconv.Itoa(review.Rating)+"-star review of "+product.Name, "/admin/reviews")
			return err
		})
		if isDuplicate(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "You have already reviewed this product"})
			return
		}
		if err != nil {
			respondError(c, err, "Failed to create review")
			return
		}
		c.JSON(http.StatusCreated, gin.H{"review": review, "message": "Review submitted for moderation"})
	}
}

// AdminListReviewsHandler returns reviews for moderation
func AdminListReviewsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := utils.ParsePage(c)
		query := db.Model(&domain.Review{})
		if status := c.Query("status"); status != "" {
			query = query.Where("status = ?", strings.ToUpper(status))
		}
		if productID, ok := queryUint(c, "product_id"); ok {
			query = query.Where("product_id = ?", productID)
		}
		var total int64
		if err := query.Count(&total).Error; err != nil {
			respondError(c, err, "Failed to count reviews")
			return
		}
		var reviews []domain.Review
		if err := query.Preload("User", publicUser).Order("created_at desc, id desc").
			Offset(p.Offset()).Limit(p.PageSize).Find(&reviews).Error; err != nil {
			respondError(c, err, "Failed to fetch reviews")
			return
		}
		c.JSON(http.StatusOK, utils.Paginated("reviews", reviews, p, total))
	}
}

// ModerateReviewHandler sets a review's status; the first approval awards review points
func ModerateReviewHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req StatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		status := strings.ToUpper(req.Status)
		switch status {
		case domain.StatusPending, domain.StatusApproved, domain.StatusRejected:
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "status must be PENDING, APPROVED or REJECTED"})
			return
		}
		var review domain.Review
		if err := db.First(&review, id).Error; err != nil {
			notFound(c, "Review")
			return
		}
		previous := review.Status
		awarded := 0
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&review).Update("status", status).Error; err != nil {
				return err
			}
			if status == domain.StatusApproved {
				// Claim the award flag first so a repeated approval cannot pay twice
				res := tx.Model(&domain.Review{}).Where("id = ? AND points_awarded = ?", review.ID, false).
					Update("points_awarded", true)
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 1 {
					points, err := service.AwardPoints(tx, review.UserID, domain.ActionReview, decimal.Zero,
						"Approved product review", service.Reference{Type: "review", ID: review.ID})
					if err != nil {
						return err
					}
					awarded = points
					review.PointsAwarded = true
					if err := service.Notify(tx, review.UserID, service.NotifyReview, "Your review was approved",
						"Thanks for your review. You earned "+strconv.Itoa(points)+" points.", "/account/points"); err != nil {
						return err
					}
				}
			}
			return recordAudit(tx, c, "moderate", "review", review.ID, gin.H{"from": previous, "to": status})
		})
		if err != nil {
			respondError(c, err, "Failed to moderate review")
			return
		}
		logrus.WithFields(logrus.Fields{
			"review_id":      review.ID,
			"status":         status,
			"points_awarded": awarded,
		}).Info("Review moderated")
		c.JSON(http.StatusOK, gin.H{"review": review, "points_awarded": awarded})
	}
}

// DeleteReviewHandler removes a review
func DeleteReviewHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var review domain.Review
		if err := db.First(&review, id).Error; err != nil {
			notFound(c, "Review")
			return
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Delete(&review).Error; err != nil {
				return err
			}
			return recordAudit(tx, c, "delete", "review", id, gin.H{"product_id": review.ProductID, "user_id": review.UserID})
		})
		if err != nil {
			respondError(c, err, "Failed to delete review")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Review deleted"})
	}
}
