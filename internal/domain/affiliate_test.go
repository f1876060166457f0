package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTierFor(t *testing.T) {
	assert.Equal(t, TierBronze, TierFor(9, dec("5000")).Tier)
	assert.Equal(t, TierSilver, TierFor(10, dec("1000")).Tier)
	assert.Equal(t, TierSilver, TierFor(30, dec("4999")).Tier)
	assert.Equal(t, TierPlatinum, TierFor(80, dec("20000")).Tier)
}

func TestPromoteOnlyMovesUp(t *testing.T) {
	a := Affiliate{Tier: TierGold, CommissionRate: dec("0.10")}
	assert.False(t, a.Promote(10, dec("1000")))
	assert.Equal(t, TierGold, a.Tier)

	b := Affiliate{Tier: TierBronze, CommissionRate: dec("0.05")}
	assert.True(t, b.Promote(10, dec("1000")))
	assert.Equal(t, TierSilver, b.Tier)
	assert.True(t, b.CommissionRate.Equal(dec("0.075")))
}

func TestEffectiveRateAndCommission(t *testing.T) {
	custom := dec("0.2")
	a := Affiliate{CommissionRate: dec("0.05"), CustomRate: &custom}
	assert.True(t, a.EffectiveRate().Equal(custom))
	assert.True(t, CommissionAmount(dec("99.99"), dec("0.075")).Equal(dec("7.50")))
}

func TestNextTier(t *testing.T) {
	assert.Equal(t, TierSilver, NextTier(TierBronze).Tier)
	assert.Nil(t, NextTier(TierPlatinum))
}

func TestBuildAffiliateAnalytics(t *testing.T) {
	d1 := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)
	clicks := []AffiliateClick{
		{VisitorHash: "a", CreatedAt: d1},
		{VisitorHash: "a", CreatedAt: d1},
		{VisitorHash: "b", CreatedAt: d2},
		{VisitorHash: "c", CreatedAt: d2},
	}
	refs := []Referral{
		{Status: ReferralConverted, CreatedAt: d1},
		{Status: ReferralRegistered, CreatedAt: d2},
	}
	comms := []Commission{
		{Status: CommissionApproved, Amount: dec("5"), OrderTotal: dec("100")},
		{Status: CommissionRejected, Amount: dec("3"), OrderTotal: dec("60")},
	}
	a := BuildAffiliateAnalytics(d1, d2, clicks, refs, comms)

	assert.Equal(t, 4, a.Clicks)
	assert.Equal(t, 3, a.UniqueVisitors)
	assert.Equal(t, 2, a.Referrals)
	assert.Equal(t, 1, a.Conversions)
	assert.Equal(t, 0.5, a.ClickToSignupRate)
	assert.Equal(t, 0.5, a.ConversionRate)
	assert.True(t, a.ReferredRevenue.Equal(dec("100")))
	assert.Equal(t, "5.00", a.Commissions[CommissionApproved])
	assert.Equal(t, "0.00", a.Commissions[CommissionPaid])
	assert.Equal(t, []AffiliateDailyStat{
		{Date: "2026-01-01", Clicks: 2, Referrals: 1},
		{Date: "2026-01-02", Clicks: 2, Referrals: 1},
	}, a.Daily)
}
