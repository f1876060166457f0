package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func lines() []CouponLine {
	return []CouponLine{
		{ProductID: 1, CategoryID: 10, Subtotal: dec("40.00")},
		{ProductID: 2, CategoryID: 20, Subtotal: dec("60.00")},
	}
}

func TestCouponPercentageCapped(t *testing.T) {
	c := Coupon{Type: CouponPercentage, Value: dec("20"), MaxDiscount: dec("15"), Active: true}
	res, err := c.Evaluate(CouponContext{Now: time.Now(), Lines: lines()})
	require.NoError(t, err)
	assert.True(t, res.Discount.Equal(dec("15")))
	assert.True(t, res.EligibleSubtotal.Equal(dec("100")))
}

func TestCouponFixedNeverExceedsEligible(t *testing.T) {
	c := Coupon{Type: CouponFixed, Value: dec("50"), ProductIDs: []uint{1}, Active: true}
	res, err := c.Evaluate(CouponContext{Now: time.Now(), Lines: lines()})
	require.NoError(t, err)
	assert.True(t, res.Discount.Equal(dec("40")))
}

func TestCouponCategoryRestriction(t *testing.T) {
	c := Coupon{Type: CouponPercentage, Value: dec("10"), CategoryIDs: []uint{20}, Active: true}
	res, err := c.Evaluate(CouponContext{Now: time.Now(), Lines: lines()})
	require.NoError(t, err)
	assert.True(t, res.Discount.Equal(dec("6")))

	c.CategoryIDs = []uint{99}
	_, err = c.Evaluate(CouponContext{Now: time.Now(), Lines: lines()})
	assert.True(t, IsRule(err))
}

func TestCouponFreeShipping(t *testing.T) {
	c := Coupon{Type: CouponFreeShipping, Active: true}
	res, err := c.Evaluate(CouponContext{Now: time.Now(), Lines: lines()})
	require.NoError(t, err)
	assert.True(t, res.FreeShipping)
	assert.True(t, res.Discount.IsZero())
}

func TestCouponEligibilityRules(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	other := uint(7)

	cases := []struct {
		name   string
		coupon Coupon
		ctx    CouponContext
		msg    string
	}{
		{"inactive", Coupon{Type: CouponFixed, Value: dec("5")}, CouponContext{}, "not active"},
		{"not started", Coupon{Type: CouponFixed, Value: dec("5"), Active: true, StartsAt: &future}, CouponContext{}, "not valid yet"},
		{"expired", Coupon{Type: CouponFixed, Value: dec("5"), Active: true, ExpiresAt: &past}, CouponContext{}, "expired"},
		{"usage limit", Coupon{Type: CouponFixed, Value: dec("5"), Active: true, UsageLimit: 3, UsedCount: 3}, CouponContext{}, "usage limit"},
		{"other user", Coupon{Type: CouponFixed, Value: dec("5"), Active: true, UserID: &other}, CouponContext{UserID: 1}, "not valid for this account"},
		{"per user", Coupon{Type: CouponFixed, Value: dec("5"), Active: true, PerUserLimit: 1}, CouponContext{UserUses: 1}, "already used"},
		{"first order", Coupon{Type: CouponFixed, Value: dec("5"), Active: true, FirstOrderOnly: true}, CouponContext{PriorOrders: 2}, "first order"},
		{"minimum", Coupon{Type: CouponFixed, Value: dec("5"), Active: true, MinOrderAmount: dec("150")}, CouponContext{}, "at least 150.00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.ctx.Now = now
			tc.ctx.Lines = lines()
			_, err := tc.coupon.Evaluate(tc.ctx)
			require.Error(t, err)
			assert.True(t, IsRule(err))
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestCouponValidateDefinition(t *testing.T) {
	assert.Error(t, (&Coupon{Code: "X", Type: CouponPercentage, Value: dec("120")}).ValidateDefinition())
	assert.Error(t, (&Coupon{Code: "X", Type: "BOGUS"}).ValidateDefinition())
	assert.NoError(t, (&Coupon{Code: "X", Type: CouponFixed, Value: dec("5")}).ValidateDefinition())
}

func TestNextCopyCode(t *testing.T) {
	assert.Equal(t, "SPRING-COPY", NextCopyCode("SPRING", 1))
	assert.Equal(t, "SPRING-COPY3", NextCopyCode("SPRING", 3))
}

func TestBuildCouponAnalytics(t *testing.T) {
	c := &Coupon{ID: 3, Code: "SPRING", UsageLimit: 5, UsedCount: 3}
	day1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	usages := []CouponUsage{
		{UserID: 1, OrderID: 10, Discount: dec("5"), CreatedAt: day1},
		{UserID: 2, OrderID: 11, Discount: dec("7.50"), CreatedAt: day1},
		{UserID: 1, OrderID: 12, Discount: dec("5"), CreatedAt: day2},
	}
	totals := map[uint]decimal.Decimal{10: dec("50"), 11: dec("75"), 12: dec("40")}

	a := BuildCouponAnalytics(c, usages, totals)
	assert.Equal(t, 3, a.Uses)
	assert.Equal(t, 2, a.UniqueUsers)
	assert.Equal(t, "17.50", a.TotalDiscount.StringFixed(2))
	assert.Equal(t, "165.00", a.Revenue.StringFixed(2))
	assert.Equal(t, "55.00", a.AverageOrderValue.StringFixed(2))
	require.NotNil(t, a.RemainingUses)
	assert.Equal(t, 2, *a.RemainingUses)
	require.Len(t, a.Daily, 2)
	assert.Equal(t, "2026-03-01", a.Daily[0].Date)
	assert.Equal(t, 2, a.Daily[0].Uses)

	empty := BuildCouponAnalytics(&Coupon{}, nil, nil)
	assert.Nil(t, empty.RemainingUses)
	assert.True(t, empty.AverageOrderValue.IsZero())
}

func TestCouponActiveAt(t *testing.T) {
	now := time.Now()
	past, future := now.Add(-time.Hour), now.Add(time.Hour)
	assert.True(t, (&Coupon{Active: true}).ActiveAt(now))
	assert.False(t, (&Coupon{Active: false}).ActiveAt(now))
	assert.False(t, (&Coupon{Active: true, StartsAt: &future}).ActiveAt(now))
	assert.False(t, (&Coupon{Active: true, ExpiresAt: &past}).ActiveAt(now))
}
