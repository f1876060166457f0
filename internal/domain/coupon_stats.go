package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// CouponAnalytics summarises how one coupon performed
type CouponAnalytics struct {
	CouponID          uint              `json:"coupon_id"`
	Code              string            `json:"code"`
	Uses              int               `json:"uses"`
	UniqueUsers       int               `json:"unique_users"`
	TotalDiscount     decimal.Decimal   `json:"total_discount"`
	Revenue           decimal.Decimal   `json:"revenue"`
	AverageOrderValue decimal.Decimal   `json:"average_order_value"`
	RemainingUses     *int              `json:"remaining_uses"` // Nil when unlimited
	Daily             []CouponDailyStat `json:"daily"`
}

// CouponDailyStat is one day of coupon usage
type CouponDailyStat struct {
	Date     string          `json:"date"`
	Uses     int             `json:"uses"`
	Discount decimal.Decimal `json:"discount"`
}

// BuildCouponAnalytics aggregates usages; orderTotals maps order id to the order total
func BuildCouponAnalytics(c *Coupon, usages []CouponUsage, orderTotals map[uint]decimal.Decimal) CouponAnalytics {
	out := CouponAnalytics{
		CouponID:          c.ID,
		Code:              c.Code,
		TotalDiscount:     decimal.Zero,
		Revenue:           decimal.Zero,
		AverageOrderValue: decimal.Zero,
	}
	users := map[uint]bool{}
	days := map[string]*CouponDailyStat{}
	for _, u := range usages {
		out.Uses++
		users[u.UserID] = true
		out.TotalDiscount = out.TotalDiscount.Add(u.Discount)
		out.Revenue = out.Revenue.Add(orderTotals[u.OrderID])

		key := u.CreatedAt.UTC().Format("2006-01-02")
		d, ok := days[key]
		if !ok {
			d = &CouponDailyStat{Date: key, Discount: decimal.Zero}
			days[key] = d
		}
		d.Uses++
		d.Discount = d.Discount.Add(u.Discount)
	}
	out.UniqueUsers = len(users)
	if out.Uses > 0 {
		out.AverageOrderValue = RoundMoney(out.Revenue.Div(decimal.NewFromInt(int64(out.Uses))))
	}
	if c.UsageLimit > 0 {
		left := c.UsageLimit - c.UsedCount
		if left < 0 {
			left = 0
		}
		out.RemainingUses = &left
	}
	out.Daily = make([]CouponDailyStat, 0, len(days))
	for _, d := range days {
		out.Daily = append(out.Daily, *d)
	}
	sort.Slice(out.Daily, func(i, j int) bool { return out.Daily[i].Date < out.Daily[j].Date })
	return out
}

// ActiveAt reports whether the coupon is switched on and inside its validity window
func (c *Coupon) ActiveAt(now time.Time) bool {
	if !c.Active {
		return false
	}
	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		return false
	}
	return c.ExpiresAt == nil || now.Before(*c.ExpiresAt)
}
