package api

import (
	"net/http" // HTTP status codes
	"strings"  // String manipulation
	"time"     // Validity windows

	"biosculpture/internal/domain" // Importing domain models
	"biosculpture/internal/utils"  // Utility functions

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Money amounts
	"gorm.io/gorm"                  // GORM ORM library
)

// ValidateCouponRequest names the code to check against the cart
type ValidateCouponRequest struct {
	Code string `json:"code" binding:"required"`
}

// ValidateCouponHandler previews a coupon against the caller's cart
func ValidateCouponHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ValidateCouponRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		cart, err := loadCart(db, currentUserID(c))
		if err != nil {
			respondError(c, err, "Failed to load cart")
			return
		}
		if len(cart.Items) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cart is empty"})
			return
		}
		coupon, res, err := evaluateCoupon(db, req.Code, currentUserID(c), couponLines(cart.Items))
		if err != nil {
			respondError(c, err, "Failed to validate coupon")
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"valid":             true,
			"code":              coupon.Code,
			"type":              coupon.Type,
			"description":       coupon.Description,
			"discount":          res.Discount,
			"free_shipping":     res.FreeShipping,
			"eligible_subtotal": res.EligibleSubtotal,
		})
	}
}

// CouponRequest holds coupon fields; nil leaves a field unchanged
type CouponRequest struct {
	Code           *string          `json:"code"`
	Description    *string          `json:"description"`
	Type           *string          `json:"type"`
	Value          *decimal.Decimal `json:"value"`
	MinOrderAmount *decimal.Decimal `json:"min_order_amount"`
	MaxDiscount    *decimal.Decimal `json:"max_discount"`
	UsageLimit     *int             `json:"usage_limit"`
	PerUserLimit   *int             `json:"per_user_limit"`
	FirstOrderOnly *bool            `json:"first_order_only"`
	UserID         *uint            `json:"user_id"` // Zero removes the restriction
	ProductIDs     []uint           `json:"product_ids"`
	CategoryIDs    []uint           `json:"category_ids"`
	StartsAt       *time.Time       `json:"starts_at"`
	ExpiresAt      *time.Time       `json:"expires_at"`
	Active         *bool            `json:"active"`
}

// apply copies the set fields onto cp and validates the definition
func (r *CouponRequest) apply(cp *domain.Coupon) error {
	if r.Code != nil {
		cp.Code = domain.NormalizeCode(*r.Code)
	}
	if r.Description != nil {
		cp.Description = strings.TrimSpace(*r.Description)
	}
	if r.Type != nil {
		cp.Type = strings.ToUpper(*r.Type)
	}
	if r.Value != nil {
		cp.Value = *r.Value
	}
	if r.MinOrderAmount != nil {
		cp.MinOrderAmount = *r.MinOrderAmount
	}
	if r.MaxDiscount != nil {
		cp.MaxDiscount = *r.MaxDiscount
	}
	if r.UsageLimit != nil {
		cp.UsageLimit = *r.UsageLimit
	}
	if r.PerUserLimit != nil {
		cp.PerUserLimit = *r.PerUserLimit
	}
	if r.FirstOrderOnly != nil {
		cp.FirstOrderOnly = *r.FirstOrderOnly
	}
	if r.UserID != nil {
		if *r.UserID == 0 {
			cp.UserID = nil
		} else {
			uid := *r.UserID
			cp.UserID = &uid
		}
	}
	if r.ProductIDs != nil {
		cp.ProductIDs = r.ProductIDs
	}
	if r.CategoryIDs != nil {
		cp.CategoryIDs = r.CategoryIDs
	}
	if r.StartsAt != nil {
		cp.StartsAt = utc(r.StartsAt)
	}
	if r.ExpiresAt != nil {
		cp.ExpiresAt = utc(r.ExpiresAt)
	}
	if r.Active != nil {
		cp.Active = *r.Active
	}
	if cp.ProductIDs == nil {
		cp.ProductIDs = []uint{}
	}
	if cp.CategoryIDs == nil {
		cp.CategoryIDs = []uint{}
	}
	return cp.ValidateDefinition()
}

// ListCouponsHandler returns coupons filtered by code search and active flag
func ListCouponsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := utils.ParsePage(c)
		query := db.Model(&domain.Coupon{})
		if q := c.Query("q"); q != "" {
			query = query.Where("code LIKE ? OR description LIKE ?", likePattern(strings.ToUpper(q)), likePattern(q))
		}
		if active := c.Query("active"); active != "" {
			query = query.Where("active = ?", active == "true")
		}
		if typ := c.Query("type"); typ != "" {
			query = query.Where("type = ?", strings.ToUpper(typ))
		}
		var total int64
		if err := query.Count(&total).Error; err != nil {
			respondError(c, err, "Failed to count coupons")
			return
		}
		var coupons []domain.Coupon
		if err := query.Order("id desc").Offset(p.Offset()).Limit(p.PageSize).Find(&coupons).Error; err != nil {
			respondError(c, err, "Failed to fetch coupons")
			return
		}
		c.JSON(http.StatusOK, utils.Paginated("coupons", coupons, p, total))
	}
}

// GetCouponHandler returns one coupon
func GetCouponHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var coupon domain.Coupon
		if err := db.First(&coupon, id).Error; err != nil {
			notFound(c, "Coupon")
			return
		}
		c.JSON(http.StatusOK, gin.H{"coupon": coupon})
	}
}

// CreateCouponHandler adds a coupon
func CreateCouponHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CouponRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		coupon := domain.Coupon{Active: true}
		if err := req.apply(&coupon); err != nil {
			respondError(c, err, "Failed to create coupon")
			return
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&coupon).Error; err != nil {
				return err
			}
			return recordAudit(tx, c, "create", "coupon", coupon.ID, gin.H{"code": coupon.Code, "type": coupon.Type})
		})
		if isDuplicate(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "Coupon code already exists"})
			return
		}
		if err != nil {
			respondError(c, err, "Failed to create coupon")
			return
		}
		c.JSON(http.StatusCreated, gin.H{"coupon": coupon})
	}
}

// UpdateCouponHandler edits a coupon
func UpdateCouponHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req CouponRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		var coupon domain.Coupon
		if err := db.First(&coupon, id).Error; err != nil {
			notFound(c, "Coupon")
			return
		}
		if err := req.apply(&coupon); err != nil {
			respondError(c, err, "Failed to update coupon")
			return
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			// used_count is owned by checkout
			if err := tx.Omit("used_count").Save(&coupon).Error; err != nil {
				return err
			}
			return recordAudit(tx, c, "update", "coupon", coupon.ID, req)
		})
		if isDuplicate(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "Coupon code already exists"})
			return
		}
		if err != nil {
			respondError(c, err, "Failed to update coupon")
			return
		}
		c.JSON(http.StatusOK, gin.H{"coupon": coupon})
	}
}

// DeleteCouponHandler removes a coupon that was never used
func DeleteCouponHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var coupon domain.Coupon
		if err := db.First(&coupon, id).Error; err != nil {
			notFound(c, "Coupon")
			return
		}
		var uses int64
		db.Model(&domain.CouponUsage{}).Where("coupon_id = ?", id).Count(&uses)
		if uses > 0 || coupon.UsedCount > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "Coupon has been used; deactivate it instead"})
			return
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Delete(&coupon).Error; err != nil {
				return err
			}
			return recordAudit(tx, c, "delete", "coupon", id, gin.H{"code": coupon.Code})
		})
		if err != nil {
			respondError(c, err, "Failed to delete coupon")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Coupon deleted"})
	}
}

// DuplicateCouponHandler copies a coupon under a fresh code, inactive and unused
func DuplicateCouponHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var source domain.Coupon
		if err := db.First(&source, id).Error; err != nil {
			notFound(c, "Coupon")
			return
		}
		clone := source
		clone.ID = 0
		clone.UsedCount = 0
		clone.Active = false
		clone.CreatedAt = time.Time{}
		clone.UpdatedAt = time.Time{}
		err := db.Transaction(func(tx *gorm.DB) error {
			code, err := domain.UniqueSlug(
				func(n int) string { return domain.NextCopyCode(source.Code, n) },
				func(code string) (bool, error) {
					var n int64
					err := tx.Model(&domain.Coupon{}).Where("code = ?", code).Count(&n).Error
					return n > 0, err
				})
			if err != nil {
				return err
			}
			clone.Code = code
			if err := tx.Create(&clone).Error; err != nil {
				return err
			}
			return recordAudit(tx, c, "duplicate", "coupon", clone.ID, gin.H{"source_id": source.ID, "code": clone.Code})
		})
		if err != nil {
			respondError(c, err, "Failed to duplicate coupon")
			return
		}
		c.JSON(http.StatusCreated, gin.H{"coupon": clone})
	}
}

// CouponAnalyticsHandler reports usage, discount and revenue for one coupon
func CouponAnalyticsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var coupon domain.Coupon
		if err := db.First(&coupon, id).Error; err != nil {
			notFound(c, "Coupon")
			return
		}
		var usages []domain.CouponUsage
		if err := db.Where("coupon_id = ?", id).Order("created_at").Find(&usages).Error; err != nil {
			respondError(c, err, "Failed to fetch coupon usage")
			return
		}
		orderIDs := make([]uint, len(usages))
		for i, u := range usages {
			orderIDs[i] = u.OrderID
		}
		totals := map[uint]decimal.Decimal{}
		if len(orderIDs) > 0 {
			var orders []domain.Order
			if err := db.Select("id", "total").Where("id IN ?", orderIDs).Find(&orders).Error; err != nil {
				respondError(c, err, "Failed to fetch orders")
				return
			}
			for _, o := range orders {
				totals[o.ID] = o.Total
			}
		}
		c.JSON(http.StatusOK, gin.H{"analytics": domain.BuildCouponAnalytics(&coupon, usages, totals)})
	}
}

// couponUsageRow is one aggregated row of the coupon overview
type couponUsageRow struct {
	CouponID      uint            `json:"coupon_id"`
	Code          string          `json:"code"`
	Uses          int64           `json:"uses"`
	TotalDiscount decimal.Decimal `json:"total_discount"`
}

// CouponsOverviewHandler reports totals across coupons and the most used ones
func CouponsOverviewHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var rows []couponUsageRow
		if err := db.Model(&domain.CouponUsage{}).
			Select("coupon_id, COUNT(*) AS uses, SUM(discount) AS total_discount").
			Group("coupon_id").Order("uses desc").Limit(10).
			Scan(&rows).Error; err != nil {
			respondError(c, err, "Failed to aggregate coupon usage")
			return
		}
		ids := make([]uint, len(rows))
		for i, r := range rows {
			ids[i] = r.CouponID
		}
		codes := map[uint]string{}
		if len(ids) > 0 {
			var coupons []domain.Coupon
			db.Select("id", "code").Where("id IN ?", ids).Find(&coupons)
			for _, cp := range coupons {
				codes[cp.ID] = cp.Code
			}
		}
		for i := range rows {
			rows[i].Code = codes[rows[i].CouponID]
		}

		var total, active, uses int64
		db.Model(&domain.Coupon{}).Count(&total)
		db.Model(&domain.Coupon{}).Where("active = ?", true).Count(&active)
		db.Model(&domain.CouponUsage{}).Count(&uses)
		var discounts []decimal.Decimal
		db.Model(&domain.CouponUsage{}).Pluck("discount", &discounts)
		sum := decimal.Zero
		for _, d := range discounts {
			sum = sum.Add(d)
		}
		c.JSON(http.StatusOK, gin.H{
			"total_coupons":  total,
			"active_coupons": active,
			"total_uses":     uses,
			"total_discount": sum.StringFixed(2),
			"top_coupons":    rows,
		})
	}
}
