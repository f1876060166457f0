package service

import (
	"fmt" // Message formatting

	"biosculpture/internal/domain" // Importing domain models

	"github.com/shopspring/decimal" // Money amounts
	"github.com/sirupsen/logrus"    // Logging library
	"gorm.io/gorm"                  // GORM ORM library
)

// AffiliateStats returns converted referrals and revenue from approved or paid commissions
func AffiliateStats(tx *gorm.DB, affiliateID uint) (int64, decimal.Decimal, error) {
	var conversions int64
	if err := tx.Model(&domain.Referral{}).
		Where("affiliate_id = ? AND status = ?", affiliateID, domain.ReferralConverted).
		Count(&conversions).Error; err != nil {
		return 0, decimal.Zero, err
	}
	var totals []decimal.Decimal
	if err := tx.Model(&domain.Commission{}).
		Where("affiliate_id = ? AND status IN ?", affiliateID, []string{domain.CommissionApproved, domain.CommissionPaid}).
		Pluck("order_total", &totals).Error; err != nil {
		return 0, decimal.Zero, err
	}
	revenue := decimal.Zero
	for _, t := range totals {
		revenue = revenue.Add(t)
	}
	return conversions, revenue, nil
}

// PromoteAffiliate re-evaluates the tier and persists a promotion; it reports whether the tier changed
func PromoteAffiliate(tx *gorm.DB, aff *domain.Affiliate) (bool, error) {
	if aff.Status != domain.AffiliateApproved {
		return false, nil
	}
	conversions, revenue, err := AffiliateStats(tx, aff.ID)
	if err != nil {
		return false, err
	}
	previous := aff.Tier
	if !aff.Promote(conversions, revenue) {
		return false, nil
	}
	if err := tx.Model(&domain.Affiliate{}).Where("id = ?", aff.ID).Updates(map[string]any{
		"tier":            aff.Tier,
		"commission_rate": aff.CommissionRate,
	}).Error; err != nil {
		return false, err
	}
	logrus.WithFields(logrus.Fields{
		"affiliate_id": aff.ID,
		"from":         previous,
		"to":           aff.Tier,
		"conversions":  conversions,
		"revenue":      revenue.StringFixed(2),
	}).Info("Affiliate promoted")
	msg := fmt.Sprintf("You reached the %s tier. New orders earn %s%% commission.",
		aff.Tier, aff.EffectiveRate().Mul(decimal.NewFromInt(100)).StringFixed(1))
	return true, Notify(tx, aff.UserID, NotifyAffiliate, "Affiliate tier upgraded", msg, "/affiliate")
}
