package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reward Model, a catalogue item bought with points that issues a coupon
type Reward struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	Name           string          `gorm:"size:191;not null" json:"name"`
	Description    string          `gorm:"type:text" json:"description"`
	PointsCost     int             `gorm:"not null" json:"points_cost"`
	DiscountType   string          `gorm:"size:20;not null" json:"discount_type"`
	DiscountValue  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"discount_value"`
	MinOrderAmount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"min_order_amount"`
	Stock          int             `gorm:"not null" json:"stock"` // -1 means unlimited
	ValidDays      int             `gorm:"not null" json:"valid_days"`
	Active         bool            `gorm:"not null" json:"active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Redemption Model
type Redemption struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"index;not null" json:"user_id"`
	RewardID    uint      `gorm:"index;not null" json:"reward_id"`
	Reward      *Reward   `json:"reward,omitempty"`
	PointsSpent int       `gorm:"not null" json:"points_spent"`
	CouponID    uint      `json:"coupon_id"`
	CouponCode  string    `gorm:"size:64" json:"coupon_code"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

// CouponFor builds the single-use coupon a redemption issues
func (r *Reward) CouponFor(code string, userID uint, now time.Time) Coupon {
	uid := userID
	c := Coupon{
		Code:           code,
		Description:    "Reward: " + r.Name,
		Type:           r.DiscountType,
		Value:          r.DiscountValue,
		MinOrderAmount: r.MinOrderAmount,
		UsageLimit:     1,
		PerUserLimit:   1,
		UserID:         &uid,
		Active:         true,
	}
	if r.ValidDays > 0 {
		exp := now.AddDate(0, 0, r.ValidDays)
		c.ExpiresAt = &exp
	}
	return c
}
