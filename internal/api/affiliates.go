package api

import (
	"errors"   // Error inspection
	"net/http" // HTTP status codes
	"net/url"  // Redirect URL building
	"strings"  // String manipulation
	"time"     // Analytics windows

	"biosculpture/internal/domain"  // Importing domain models
	"biosculpture/internal/metrics" // Business counters
	"biosculpture/internal/service" // Affiliate side effects
	"biosculpture/internal/utils"   // Utility functions

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Money amounts
	"github.com/sirupsen/logrus"    // Logging library
	"gorm.io/gorm"                  // GORM ORM library
)

// AffiliateApplication is a request to join the affiliate programme
type AffiliateApplication struct {
	Website      string `json:"website" binding:"max=255"`
	SocialHandle string `json:"social_handle" binding:"max=191"`
}

// ApplyAffiliateHandler creates a pending affiliate profile for the caller
func ApplyAffiliateHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AffiliateApplication
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		userID := currentUserID(c)
		var existing int64
		db.Model(&domain.Affiliate{}).Where("user_id = ?", userID).Count(&existing)
		if existing > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "You have already applied"})
			return
		}
		code, err := utils.RandomCode(8)
		if err != nil {
			respondError(c, err, "Failed to create affiliate")
			return
		}
		aff := domain.Affiliate{
			UserID:         userID,
			Code:           code,
			Status:         domain.AffiliatePending,
			Tier:           domain.TierBronze,
			CommissionRate: domain.TierLadder[0].CommissionRate,
			TotalEarnings:  decimal.Zero,
			Website:        strings.TrimSpace(req.Website),
			SocialHandle:   strings.TrimSpace(req.SocialHandle),
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&aff).Error; err != nil {
				return err
			}
			_, err := service.NotifyAdmins(tx, service.NotifyAffiliate, "New affiliate application",
				"An affiliate application is waiting for review.", "/admin/affiliates")
			return err
		})
		if isDuplicate(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "You have already applied"})
			return
		}
		if err != nil {
			respondError(c, err, "Failed to create affiliate")
			return
		}
		c.JSON(http.StatusCreated, gin.H{"affiliate": aff})
	}
}

// affiliateProfile is an affiliate with its ladder progress
func affiliateProfile(db *gorm.DB, aff *domain.Affiliate) (gin.H, error) {
	conversions, revenue, err := service.AffiliateStats(db, aff.ID)
	if err != nil {
		return nil, err
	}
	var referrals int64
	if err := db.Model(&domain.Referral{}).Where("affiliate_id = ?", aff.ID).Count(&referrals).Error; err != nil {
		return nil, err
	}
	resp := gin.H{
		"affiliate":      aff,
		"effective_rate": aff.EffectiveRate(),
		"referrals":      referrals,
		"conversions":    conversions,
		"revenue":        revenue.StringFixed(2),
		"next_tier":      nil,
	}
	if next := domain.NextTier(aff.Tier); next != nil {
		remaining := next.MinRevenue.Sub(revenue)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}
		needed := next.MinConversions - conversions
		if needed < 0 {
			needed = 0
		}
		resp["next_tier"] = gin.H{
			"tier":                  next.Tier,
			"commission_rate":       next.CommissionRate,
			"conversions_remaining": needed,
			"revenue_remaining":     remaining.StringFixed(2),
		}
	}
	return resp, nil
}

// loadOwnAffiliate loads the caller's affiliate profile, writing 404 when absent
func loadOwnAffiliate(c *gin.Context, db *gorm.DB) (*domain.Affiliate, bool) {
	var aff domain.Affiliate
	if err := db.Where("user_id = ?", currentUserID(c)).First(&aff).Error; err != nil {
		notFound(c, "Affiliate profile")
		return nil, false
	}
	return &aff, true
}

// approvedAffiliate loads the caller's profile and requires it to be approved
func approvedAffiliate(c *gin.Context, db *gorm.DB) (*domain.Affiliate, bool) {
	aff, ok := loadOwnAffiliate(c, db)
	if !ok {
		return nil, false
	}
	if aff.Status != domain.AffiliateApproved {
		c.JSON(http.StatusForbidden, gin.H{"error": "Affiliate account is not approved"})
		return nil, false
	}
	return aff, true
}

// GetMyAffiliateHandler returns the caller's profile and progress towards the next tier
func GetMyAffiliateHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		aff, ok := loadOwnAffiliate(c, db)
		if !ok {
			return
		}
		resp, err := affiliateProfile(db, aff)
		if err != nil {
			respondError(c, err, "Failed to load affiliate stats")
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// ListMyReferralsHandler returns the users the caller referred
func ListMyReferralsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		aff, ok := approvedAffiliate(c, db)
		if !ok {
			return
		}
		p := utils.ParsePage(c)
		query := db.Model(&domain.Referral{}).Where("affiliate_id = ?", aff.ID)
		if status := c.Query("status"); status != "" {
			query = query.Where("status = ?", strings.ToUpper(status))
		}
		var total int64
		if err := query.Count(&total).Error; err != nil {
			respondError(c, err, "Failed to count referrals")
			return
		}
		var referrals []domain.Referral
		if err := query.Preload("ReferredUser", publicUser).Order("created_at desc, id desc").
			Offset(p.Offset()).Limit(p.PageSize).Find(&referrals).Error; err != nil {
			respondError(c, err, "Failed to fetch referrals")
			return
		}
		c.JSON(http.StatusOK, utils.Paginated("referrals", referrals, p, total))
	}
}

// listCommissions writes a paginated commission listing for query
func listCommissions(c *gin.Context, query *gorm.DB) {
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", strings.ToUpper(status))
	}
	p := utils.ParsePage(c)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		respondError(c, err, "Failed to count commissions")
		return
	}
	var commissions []domain.Commission
	if err := query.Order("created_at desc, id desc").Offset(p.Offset()).Limit(p.PageSize).
		Find(&commissions).Error; err != nil {
		respondError(c, err, "Failed to fetch commissions")
		return
	}
	c.JSON(http.StatusOK, utils.Paginated("commissions", commissions, p, total))
}

// ListMyCommissionsHandler returns the caller's commissions
func ListMyCommissionsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		aff, ok := approvedAffiliate(c, db)
		if !ok {
			return
		}
		listCommissions(c, db.Model(&domain.Commission{}).Where("affiliate_id = ?", aff.ID))
	}
}

// affiliateAnalytics loads one affiliate's funnel between the from and to query values, defaulting to 30 days
func affiliateAnalytics(c *gin.Context, db *gorm.DB, affiliateID uint) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)
	if t, err := queryTime(c, "from"); err != nil {
		respondError(c, err, "Invalid from")
		return
	} else if t != nil {
		from = *t
	}
	if t, err := queryEnd(c, "to"); err != nil {
		respondError(c, err, "Invalid to")
		return
	} else if t != nil {
		to = *t
	}
	if !from.Before(to) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from must be before to"})
		return
	}
	var clicks []domain.AffiliateClick
	var referrals []domain.Referral
	var commissions []domain.Commission
	window := "affiliate_id = ? AND created_at >= ? AND created_at < ?"
	if err := db.Select("visitor_hash", "created_at").Where(window, affiliateID, from, to).Find(&clicks).Error; err != nil {
		respondError(c, err, "Failed to fetch clicks")
		return
	}
	if err := db.Where(window, affiliateID, from, to).Find(&referrals).Error; err != nil {
		respondError(c, err, "Failed to fetch referrals")
		return
	}
	if err := db.Where(window, affiliateID, from, to).Find(&commissions).Error; err != nil {
		respondError(c, err, "Failed to fetch commissions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"analytics": domain.BuildAffiliateAnalytics(from, to, clicks, referrals, commissions)})
}

// MyAffiliateAnalyticsHandler reports the caller's funnel
func MyAffiliateAnalyticsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		aff, ok := approvedAffiliate(c, db)
		if !ok {
			return
		}
		affiliateAnalytics(c, db, aff.ID)
	}
}

// TrackClickHandler records a visit through an affiliate link and redirects to the storefront
func TrackClickHandler(db *gorm.DB, storefrontURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		code := strings.ToUpper(strings.TrimSpace(c.Param("code")))
		var aff domain.Affiliate
		if err := db.Where("code = ? AND status = ?", code, domain.AffiliateApproved).First(&aff).Error; err != nil {
			notFound(c, "Affiliate")
			return
		}
		target, err := url.Parse(storefrontURL)
		if err != nil {
			respondError(c, err, "Invalid storefront URL")
			return
		}
		q := target.Query()
		q.Set("ref", aff.Code)
		target.RawQuery = q.Encode()

		click := domain.AffiliateClick{
			AffiliateID: aff.ID,
			VisitorHash: utils.HashVisitor(c.ClientIP(), c.Request.UserAgent()),
			LandingPage: target.String(),
			Referrer:    c.Request.Referer(),
		}
		if len(click.Referrer) > 500 {
			click.Referrer = click.Referrer[:500]
		}
		if err := db.Create(&click).Error; err != nil {
			// A lost click must not break the visitor's navigation
			logrus.WithFields(logrus.Fields{"affiliate_id": aff.ID, "error": err.Error()}).Warn("Failed to record affiliate click")
		} else {
			metrics.RecordAffiliateClick()
		}
		c.Redirect(http.StatusFound, target.String())
	}
}

// AdminListAffiliatesHandler returns affiliates filtered by status and tier
func AdminListAffiliatesHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := utils.ParsePage(c)
		query := db.Model(&domain.Affiliate{})
		if status := c.Query("status"); status != "" {
			query = query.Where("status = ?", strings.ToUpper(status))
		}
		if tier := c.Query("tier"); tier != "" {
			query = query.Where("tier = ?", strings.ToUpper(tier))
		}
		if q := c.Query("q"); q != "" {
			query = query.Where("code LIKE ?", likePattern(strings.ToUpper(q)))
		}
		var total int64
		if err := query.Count(&total).Error; err != nil {
			respondError(c, err, "Failed to count affiliates")
			return
		}
		var affiliates []domain.Affiliate
		if err := query.Preload("User", func(db *gorm.DB) *gorm.DB { return db.Select("id", "name", "email") }).
			Order("created_at desc, id desc").Offset(p.Offset()).Limit(p.PageSize).
			Find(&affiliates).Error; err != nil {
			respondError(c, err, "Failed to fetch affiliates")
			return
		}
		c.JSON(http.StatusOK, utils.Paginated("affiliates", affiliates, p, total))
	}
}

// AdminGetAffiliateHandler returns one affiliate with its stats
func AdminGetAffiliateHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var aff domain.Affiliate
		if err := db.Preload("User", func(db *gorm.DB) *gorm.DB { return db.Select("id", "name", "email") }).
			First(&aff, id).Error; err != nil {
			notFound(c, "Affiliate")
			return
		}
		resp, err := affiliateProfile(db, &aff)
		if err != nil {
			respondError(c, err, "Failed to load affiliate stats")
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// AffiliateUpdateRequest holds admin changes; ClearCustomRate drops a pinned rate
type AffiliateUpdateRequest struct {
	Status          *string          `json:"status"`
	Tier            *string          `json:"tier"`
	CustomRate      *decimal.Decimal `json:"custom_rate"`
	ClearCustomRate bool             `json:"clear_custom_rate"`
}

// UpdateAffiliateHandler changes an affiliate's status, tier or pinned rate
func UpdateAffiliateHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req AffiliateUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		var aff domain.Affiliate
		if err := db.First(&aff, id).Error; err != nil {
			notFound(c, "Affiliate")
			return
		}
		previous := aff.Status
		if req.Status != nil {
			status := strings.ToUpper(*req.Status)
			switch status {
			case domain.AffiliatePending, domain.AffiliateApproved, domain.AffiliateRejected, domain.AffiliateSuspended:
			default:
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid affiliate status"})
				return
			}
			aff.Status = status
			if status == domain.AffiliateApproved && aff.ApprovedAt == nil {
				now := time.Now().UTC()
				aff.ApprovedAt = &now
			}
		}
		if req.Tier != nil {
			rank := domain.TierRank(strings.ToUpper(*req.Tier))
			if rank < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tier"})
				return
			}
			aff.Tier = domain.TierLadder[rank].Tier
			aff.CommissionRate = domain.TierLadder[rank].CommissionRate
		}
		if req.ClearCustomRate {
			aff.CustomRate = nil
		} else if req.CustomRate != nil {
			if req.CustomRate.IsNegative() || req.CustomRate.GreaterThan(decimal.NewFromInt(1)) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "custom_rate must be between 0 and 1"})
				return
			}
			rate := *req.CustomRate
			aff.CustomRate = &rate
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&aff).Select("status", "tier", "commission_rate", "custom_rate", "approved_at").
				Updates(&aff).Error; err != nil {
				return err
			}
			if aff.Status != previous {
				if err := service.Notify(tx, aff.UserID, service.NotifyAffiliate, "Affiliate application update",
					"Your affiliate account is now "+strings.ToLower(aff.Status)+".", "/affiliate"); err != nil {
					return err
				}
			}
			return recordAudit(tx, c, "update", "affiliate", aff.ID, req)
		})
		if err != nil {
			respondError(c, err, "Failed to update affiliate")
			return
		}
		logrus.WithFields(logrus.Fields{"affiliate_id": aff.ID, "status": aff.Status, "tier": aff.Tier}).Info("Affiliate updated")
		c.JSON(http.StatusOK, gin.H{"affiliate": aff})
	}
}

// PromoteAffiliateHandler re-evaluates one affiliate's tier now
func PromoteAffiliateHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var aff domain.Affiliate
		if err := db.First(&aff, id).Error; err != nil {
			notFound(c, "Affiliate")
			return
		}
		if aff.Status != domain.AffiliateApproved {
			c.JSON(http.StatusBadRequest, gin.H{"error": "only approved affiliates can be promoted"})
			return
		}
		var promoted bool
		err := db.Transaction(func(tx *gorm.DB) error {
			var err error
			if promoted, err = service.PromoteAffiliate(tx, &aff); err != nil || !promoted {
				return err
			}
			return recordAudit(tx, c, "promote", "affiliate", aff.ID, gin.H{"tier": aff.Tier})
		})
		if err != nil {
			respondError(c, err, "Failed to promote affiliate")
			return
		}
		c.JSON(http.StatusOK, gin.H{"affiliate": aff, "promoted": promoted})
	}
}

// AdminAffiliateAnalyticsHandler reports one affiliate's funnel
func AdminAffiliateAnalyticsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var n int64
		if db.Model(&domain.Affiliate{}).Where("id = ?", id).Count(&n); n == 0 {
			notFound(c, "Affiliate")
			return
		}
		affiliateAnalytics(c, db, id)
	}
}

// AdminListCommissionsHandler returns commissions across affiliates
func AdminListCommissionsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := db.Model(&domain.Commission{})
		if affID, ok := queryUint(c, "affiliate_id"); ok {
			query = query.Where("affiliate_id = ?", affID)
		}
		listCommissions(c, query)
	}
}

// UpdateCommissionStatusHandler approves, rejects or pays out a commission
func UpdateCommissionStatusHandler(db *gorm.DB) gin.HandlerFunc {
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
		var commission domain.Commission
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.First(&commission, id).Error; err != nil {
				return err
			}
			previous := commission.Status
			if err := service.SetCommissionStatus(tx, &commission, strings.ToUpper(req.Status)); err != nil {
				return err
			}
			return recordAudit(tx, c, "update_status", "commission", commission.ID, gin.H{"from": previous, "to": commission.Status})
		})
		if errors.Is(err, gorm.ErrRecordNotFound) {
			notFound(c, "Commission")
			return
		}
		if err != nil {
			respondError(c, err, "Failed to update commission")
			return
		}
		c.JSON(http.StatusOK, gin.H{"commission": commission})
	}
}
