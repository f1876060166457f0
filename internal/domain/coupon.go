package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Coupon discount types
const (
	CouponPercentage   = "PERCENTAGE"
	CouponFixed        = "FIXED"
	CouponFreeShipping = "FREE_SHIPPING"
)

// Coupon Model
type Coupon struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	Code           string          `gorm:"size:64;uniqueIndex;not null" json:"code"`
	Description    string          `gorm:"size:255" json:"description"`
	Type           string          `gorm:"size:20;not null" json:"type"`
	Value          decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"value"`
	MinOrderAmount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"min_order_amount"`
	MaxDiscount    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"max_discount"` // Zero means uncapped
	UsageLimit     int             `gorm:"not null;default:0" json:"usage_limit"`                     // Zero means unlimited
	UsedCount      int             `gorm:"not null;default:0" json:"used_count"`
	PerUserLimit   int             `gorm:"not null;default:0" json:"per_user_limit"` // Zero means unlimited
	FirstOrderOnly bool            `gorm:"not null;default:false" json:"first_order_only"`
	UserID         *uint           `gorm:"index" json:"user_id,omitempty"` // Restricts the coupon to one customer
	ProductIDs     []uint          `gorm:"serializer:json" json:"product_ids"`
	CategoryIDs    []uint          `gorm:"serializer:json" json:"category_ids"`
	StartsAt       *time.Time      `json:"starts_at,omitempty"`
	ExpiresAt      *time.Time      `gorm:"index" json:"expires_at,omitempty"`
	Active         bool            `gorm:"not null" json:"active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// CouponUsage Model records one application of a coupon to an order
type CouponUsage struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	CouponID  uint            `gorm:"index;not null" json:"coupon_id"`
	UserID    uint            `gorm:"index;not null" json:"user_id"`
	OrderID   uint            `gorm:"uniqueIndex;not null" json:"order_id"`
	Discount  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"discount"`
	CreatedAt time.Time       `gorm:"index" json:"created_at"`
}

// CouponLine is one cart line as seen by coupon evaluation
type CouponLine struct {
	ProductID  uint
	CategoryID uint
	Subtotal   decimal.Decimal
}

// CouponContext carries everything eligibility depends on
type CouponContext struct {
	Now         time.Time
	UserID      uint
	UserUses    int64 // Times this user already used the coupon
	PriorOrders int64 // Non-cancelled orders the user placed before
	Lines       []CouponLine
}

// CouponResult is the outcome of a successful evaluation
type CouponResult struct {
	EligibleSubtotal decimal.Decimal `json:"eligible_subtotal"`
	Discount         decimal.Decimal `json:"discount"`
	FreeShipping     bool            `json:"free_shipping"`
}

// NormalizeCode upper-cases and trims a coupon code
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Evaluate checks eligibility rules in order and computes the discount
func (c *Coupon) Evaluate(in CouponContext) (CouponResult, error) {
	var res CouponResult
	if !c.Active {
		return res, Rule("coupon is not active")
	}
	if c.StartsAt != nil && in.Now.Before(*c.StartsAt) {
		return res, Rule("coupon is not valid yet")
	}
	if c.ExpiresAt != nil && !in.Now.Before(*c.ExpiresAt) {
		return res, Rule("coupon has expired")
	}
	if c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit {
		return res, Rule("coupon usage limit reached")
	}
	if c.UserID != nil && *c.UserID != in.UserID {
		return res, Rule("coupon is not valid for this account")
	}
	if c.PerUserLimit > 0 && in.UserUses >= int64(c.PerUserLimit) {
		return res, Rule("you have already used this coupon")
	}
	if c.FirstOrderOnly && in.PriorOrders > 0 {
		return res, Rule("coupon is only valid on a first order")
	}

	eligible := decimal.Zero
	for _, l := range in.Lines {
		if c.appliesTo(l) {
			eligible = eligible.Add(l.Subtotal)
		}
	}
	if !eligible.IsPositive() {
		return res, Rule("coupon does not apply to any item in the cart")
	}
	if c.MinOrderAmount.IsPositive() && eligible.LessThan(c.MinOrderAmount) {
		return res, Rule("order must be at least %s to use this coupon", c.MinOrderAmount.StringFixed(2))
	}
	res.EligibleSubtotal = eligible

	switch c.Type {
	case CouponPercentage:
		d := eligible.Mul(c.Value).Div(decimal.NewFromInt(100))
		if c.MaxDiscount.IsPositive() && d.GreaterThan(c.MaxDiscount) {
			d = c.MaxDiscount
		}
		res.Discount = RoundMoney(d)
	case CouponFixed:
		res.Discount = RoundMoney(decimal.Min(c.Value, eligible))
	case CouponFreeShipping:
		res.Discount = decimal.Zero
		res.FreeShipping = true
	default:
		return res, Rule("unknown coupon type %q", c.Type)
	}
	return res, nil
}

// appliesTo reports whether a line falls inside the product/category restriction
func (c *Coupon) appliesTo(l CouponLine) bool {
	if len(c.ProductIDs) == 0 && len(c.CategoryIDs) == 0 {
		return true
	}
	for _, id := range c.ProductIDs {
		if id == l.ProductID {
			return true
		}
	}
	for _, id := range c.CategoryIDs {
		if l.CategoryID != 0 && id == l.CategoryID {
			return true
		}
	}
	return false
}

// ValidateDefinition checks an admin supplied coupon for consistency
func (c *Coupon) ValidateDefinition() error {
	if c.Code == "" {
		return Rule("code is required")
	}
	switch c.Type {
	case CouponPercentage:
		if !c.Value.IsPositive() || c.Value.GreaterThan(decimal.NewFromInt(100)) {
			return Rule("percentage value must be between 0 and 100")
		}
	case CouponFixed:
		if !c.Value.IsPositive() {
			return Rule("fixed value must be positive")
		}
	case CouponFreeShipping:
	default:
		return Rule("type must be PERCENTAGE, FIXED or FREE_SHIPPING")
	}
	if c.MinOrderAmount.IsNegative() || c.MaxDiscount.IsNegative() {
		return Rule("amounts cannot be negative")
	}
	if c.UsageLimit < 0 || c.PerUserLimit < 0 {
		return Rule("limits cannot be negative")
	}
	if c.StartsAt != nil && c.ExpiresAt != nil && !c.StartsAt.Before(*c.ExpiresAt) {
		return Rule("starts_at must be before expires_at")
	}
	return nil
}

// NextCopyCode returns the n-th duplicate code candidate: CODE-COPY, CODE-COPY2, ...
func NextCopyCode(code string, n int) string {
	if n <= 1 {
		return code + "-COPY"
	}
	return code + "-COPY" + strconv.Itoa(n)
}
