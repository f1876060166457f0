package service

import (
	"errors" // Error inspection
	"fmt"    // Message formatting
	"time"   // Conversion timestamps

	"biosculpture/internal/domain" // Importing domain models

	"github.com/shopspring/decimal" // Money amounts
	"github.com/sirupsen/logrus"    // Logging library
	"gorm.io/gorm"                  // GORM ORM library
)

// TransitionOrder moves order to status and applies the side effects of the new status.
// order must have its Items loaded.
func TransitionOrder(tx *gorm.DB, order *domain.Order, to string) error {
	if !domain.CanTransition(order.Status, to) {
		return domain.Rule("cannot change order status from %s to %s", order.Status, to)
	}
	if to == domain.OrderCancelled {
		// Approved commissions are already credited to the affiliate
		var settled int64
		if err := tx.Model(&domain.Commission{}).
			Where("order_id = ? AND status IN ?", order.ID, []string{domain.CommissionApproved, domain.CommissionPaid}).
			Count(&settled).Error; err != nil {
			return err
		}
		if settled > 0 {
			return domain.Rule("order %s has a settled affiliate commission and cannot be cancelled", order.Number)
		}
	}
	res := tx.Model(&domain.Order{}).
		Where("id = ? AND status = ?", order.ID, order.Status).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Rule("order status changed concurrently, reload and retry")
	}
	from := order.Status
	order.Status = to

	var err error
	switch to {
	case domain.OrderCancelled:
		err = cancelOrder(tx, order)
	case domain.OrderDelivered:
		err = deliverOrder(tx, order)
	}
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"order_id": order.ID,
		"number":   order.Number,
		"from":     from,
		"to":       to,
	}).Info("Order status changed")
	return Notify(tx, order.UserID, NotifyOrder, "Order "+order.Number+" updated",
		fmt.Sprintf("Your order is now %s.", to), fmt.Sprintf("/orders/%d", order.ID))
}

// cancelOrder restocks items, releases the coupon and rejects the pending commission
func cancelOrder(tx *gorm.DB, order *domain.Order) error {
	for _, item := range order.Items {
		if err := tx.Model(&domain.Product{}).Where("id = ?", item.ProductID).
			Update("stock", gorm.Expr("stock + ?", item.Quantity)).Error; err != nil {
			return err
		}
	}
	if order.CouponID != nil {
		res := tx.Where("order_id = ?", order.ID).Delete(&domain.CouponUsage{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			if err := tx.Model(&domain.Coupon{}).Where("id = ? AND used_count > 0", *order.CouponID).
				Update("used_count", gorm.Expr("used_count - 1")).Error; err != nil {
				return err
			}
		}
	}
	return tx.Model(&domain.Commission{}).
		Where("order_id = ? AND status = ?", order.ID, domain.CommissionPending).
		Update("status", domain.CommissionRejected).Error
}

// deliverOrder awards purchase points and settles the referral commission
func deliverOrder(tx *gorm.DB, order *domain.Order) error {
	spend := order.Subtotal.Sub(order.Discount)
	points, err := AwardPoints(tx, order.UserID, domain.ActionPurchase, spend,
		"Order "+order.Number, Reference{Type: "order", ID: order.ID})
	if err != nil {
		return err
	}
	if points > 0 {
		order.PointsAwarded = points
		if err := tx.Model(&domain.Order{}).Where("id = ?", order.ID).Update("points_awarded", points).Error; err != nil {
			return err
		}
	}

	var commission domain.Commission
	err = tx.Where("order_id = ? AND status = ?", order.ID, domain.CommissionPending).First(&commission).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil // Not a referred order
	}
	if err != nil {
		return err
	}
	return approveCommission(tx, &commission)
}

// approveCommission credits the affiliate, converts the referral once and re-evaluates the tier
func approveCommission(tx *gorm.DB, commission *domain.Commission) error {
	if err := tx.Model(commission).Update("status", domain.CommissionApproved).Error; err != nil {
		return err
	}
	if err := tx.Model(&domain.Affiliate{}).Where("id = ?", commission.AffiliateID).
		Update("total_earnings", gorm.Expr("total_earnings + ?", commission.Amount)).Error; err != nil {
		return err
	}

	var aff domain.Affiliate
	if err := tx.First(&aff, commission.AffiliateID).Error; err != nil {
		return err
	}
	converted := tx.Model(&domain.Referral{}).
		Where("id = ? AND status = ?", commission.ReferralID, domain.ReferralRegistered).
		Updates(map[string]any{"status": domain.ReferralConverted, "converted_at": time.Now()})
	if converted.Error != nil {
		return converted.Error
	}
	if converted.RowsAffected > 0 {
		// First order of the referred customer
		if _, err := AwardPoints(tx, aff.UserID, domain.ActionReferral, commission.OrderTotal,
			"Referral converted", Reference{Type: "referral", ID: commission.ReferralID}); err != nil {
			return err
		}
	}
	if err := Notify(tx, aff.UserID, NotifyAffiliate, "Commission approved",
		fmt.Sprintf("A commission of %s was approved.", commission.Amount.StringFixed(2)), "/affiliate/commissions"); err != nil {
		return err
	}
	_, err := PromoteAffiliate(tx, &aff)
	return err
}

// SetCommissionStatus applies an admin commission decision
func SetCommissionStatus(tx *gorm.DB, commission *domain.Commission, to string) error {
	allowed := map[string][]string{
		domain.CommissionPending:  {domain.CommissionApproved, domain.CommissionRejected},
		domain.CommissionApproved: {domain.CommissionPaid},
	}
	ok := false
	for _, s := range allowed[commission.Status] {
		if s == to {
			ok = true
		}
	}
	if !ok {
		return domain.Rule("cannot change commission status from %s to %s", commission.Status, to)
	}
	if to == domain.CommissionApproved {
		if err := approveCommission(tx, commission); err != nil {
			return err
		}
		commission.Status = to
		return nil
	}
	if err := tx.Model(commission).Update("status", to).Error; err != nil {
		return err
	}
	commission.Status = to
	return nil
}

// CommissionFor builds the pending commission for an order placed by a referred user, nil when not referred
func CommissionFor(tx *gorm.DB, user *domain.User, orderID uint, merchandise decimal.Decimal) (*domain.Commission, error) {
	if user.ReferredByAffiliateID == nil {
		return nil, nil
	}
	var aff domain.Affiliate
	if err := tx.First(&aff, *user.ReferredByAffiliateID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if aff.Status != domain.AffiliateApproved {
		return nil, nil
	}
	var ref domain.Referral
	if err := tx.Where("affiliate_id = ? AND referred_user_id = ?", aff.ID, user.ID).First(&ref).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	rate := aff.EffectiveRate()
	return &domain.Commission{
		AffiliateID: aff.ID,
		ReferralID:  ref.ID,
		OrderID:     orderID,
		OrderTotal:  merchandise,
		Rate:        rate,
		Amount:      domain.CommissionAmount(merchandise, rate),
		Status:      domain.CommissionPending,
	}, nil
}
