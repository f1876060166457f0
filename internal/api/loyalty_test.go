package api

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"biosculpture/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) balance(id uint) int {
	var u domain.User
	require.NoError(e.t, e.db.First(&u, id).Error)
	return u.PointsBalance
}

func TestRedeemReward(t *testing.T) {
	e := newEnv(t)
	admin := e.user("a@example.com", domain.RoleAdmin)
	customer := e.user("c@example.com", domain.RoleUser)
	adminTok, tok := e.token(admin), e.token(customer)
	reward := domain.Reward{Name: "5 off", PointsCost: 100, DiscountType: domain.CouponFixed, DiscountValue: decimal.NewFromInt(5),
		Stock: 1, ValidDays: 30, Active: true}
	require.NoError(t, e.db.Create(&reward).Error)
	redeem := "/api/rewards/" + itoa(reward.ID) + "/redeem"

	w := e.do("POST", redeem, nil, tok)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	require.NoError(t, e.db.First(&reward, reward.ID).Error)
	assert.Equal(t, 1, reward.Stock)

	w = e.do("POST", "/api/admin/users/"+itoa(customer.ID)+"/points", AdjustPointsRequest{Points: 150, Reason: "Goodwill"}, adminTok)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(150), decode[map[string]any](t, w)["balance"])

	w = e.do("POST", redeem, nil, tok)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode[struct {
		Redemption domain.Redemption `json:"redemption"`
		Coupon     domain.Coupon     `json:"coupon"`
	}](t, w)
	assert.True(t, strings.HasPrefix(body.Coupon.Code, "RWD-"), body.Coupon.Code)
	require.NotNil(t, body.Coupon.UserID)
	assert.Equal(t, customer.ID, *body.Coupon.UserID)
	assert.Equal(t, 1, body.Coupon.UsageLimit)
	require.NotNil(t, body.Coupon.ExpiresAt)
	assert.Equal(t, 100, body.Redemption.PointsSpent)
	assert.Equal(t, 50, e.balance(customer.ID))

	// Out of stock now and hidden from the catalogue
	assert.Equal(t, http.StatusBadRequest, e.do("POST", redeem, nil, tok).Code)
	w = e.do("GET", "/api/rewards", nil, "")
	assert.Empty(t, decode[struct {
		Rewards []domain.Reward `json:"rewards"`
	}](t, w).Rewards)

	w = e.do("GET", "/api/points?type=redeemed", nil, tok)
	require.Equal(t, http.StatusOK, w.Code)
	points := decode[struct {
		Balance      int                        `json:"balance"`
		Transactions []domain.PointsTransaction `json:"transactions"`
	}](t, w)
	assert.Equal(t, 50, points.Balance)
	require.Len(t, points.Transactions, 1)
	assert.Equal(t, -100, points.Transactions[0].Points)

	// A redeemed reward is retired rather than deleted
	require.Equal(t, http.StatusOK, e.do("DELETE", "/api/admin/rewards/"+itoa(reward.ID), nil, adminTok).Code)
	require.NoError(t, e.db.First(&reward, reward.ID).Error)
	assert.False(t, reward.Active)
}

func TestPointsBreakdown(t *testing.T) {
	e := newEnv(t)
	customer := e.user("c@example.com", domain.RoleUser)
	adminTok := e.token(e.user("a@example.com", domain.RoleAdmin))
	require.Equal(t, http.StatusOK, e.do("POST", "/api/admin/users/"+itoa(customer.ID)+"/points", AdjustPointsRequest{Points: 40, Reason: "Bonus"}, adminTok).Code)
	assert.Equal(t, http.StatusBadRequest, e.do("POST", "/api/admin/users/"+itoa(customer.ID)+"/points", AdjustPointsRequest{Points: -100, Reason: "Too much"}, adminTok).Code)

	tok := e.token(customer)
	assert.Equal(t, http.StatusBadRequest, e.do("GET", "/api/points/breakdown?period=year", nil, tok).Code)
	w := e.do("GET", "/api/points/breakdown?period=day", nil, tok)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[struct {
		Period  string           `json:"period"`
		Buckets []map[string]any `json:"buckets"`
	}](t, w)
	assert.Equal(t, "day", body.Period)
	assert.Len(t, body.Buckets, 1)
}

func TestAffiliateReferralFlow(t *testing.T) {
	e := newEnv(t)
	admin := e.user("a@example.com", domain.RoleAdmin)
	partner := e.user("p@example.com", domain.RoleUser)
	adminTok, partnerTok := e.token(admin), e.token(partner)

	w := e.do("POST", "/api/affiliate", AffiliateApplication{Website: "https://nails.example.com"}, partnerTok)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	aff := decode[struct {
		Affiliate domain.Affiliate `json:"affiliate"`
	}](t, w).Affiliate
	assert.Equal(t, domain.AffiliatePending, aff.Status)
	assert.Equal(t, domain.TierBronze, aff.Tier)
	assert.Equal(t, http.StatusConflict, e.do("POST", "/api/affiliate", AffiliateApplication{}, partnerTok).Code)

	// Pending affiliates neither track clicks nor see referrals
	assert.Equal(t, http.StatusNotFound, e.do("GET", "/api/affiliates/click/"+aff.Code, nil, "").Code)
	assert.Equal(t, http.StatusForbidden, e.do("GET", "/api/affiliate/referrals", nil, partnerTok).Code)

	w = e.do("PATCH", "/api/admin/affiliates/"+itoa(aff.ID), AffiliateUpdateRequest{Status: strPtr("approved")}, adminTok)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, int64(1), e.notifications(partner.ID))

	w = e.do("GET", "/api/affiliates/click/"+strings.ToLower(aff.Code), nil, "")
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://shop.example.com/?ref="+aff.Code, w.Header().Get("Location"))

	w = e.do("POST", "/api/auth/register", RegisterRequest{Email: "friend@example.com", Password: "password1", ReferralCode: aff.Code}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	friendTok := decode[AuthResponse](t, w).Token

	gel := e.product("gel", 100, 5)
	require.Equal(t, http.StatusOK, e.do("POST", "/api/cart/items", AddCartItemRequest{ProductID: gel.ID, Quantity: 1}, friendTok).Code)
	require.Equal(t, http.StatusCreated, e.do("POST", "/api/orders", shipTo, friendTok).Code)

	var commission domain.Commission
	require.NoError(t, e.db.Where("affiliate_id = ?", aff.ID).First(&commission).Error)
	assert.Equal(t, domain.CommissionPending, commission.Status)
	assert.True(t, decimal.NewFromInt(5).Equal(commission.Amount), commission.Amount.String())

	path := "/api/admin/commissions/" + itoa(commission.ID) + "/status"
	assert.Equal(t, http.StatusBadRequest, e.do("PATCH", path, StatusRequest{Status: "paid"}, adminTok).Code)
	require.Equal(t, http.StatusOK, e.do("PATCH", path, StatusRequest{Status: "approved"}, adminTok).Code)
	require.Equal(t, http.StatusOK, e.do("PATCH", path, StatusRequest{Status: "paid"}, adminTok).Code)

	var referral domain.Referral
	require.NoError(t, e.db.Where("affiliate_id = ?", aff.ID).First(&referral).Error)
	assert.Equal(t, domain.ReferralConverted, referral.Status)
	assert.Equal(t, 100, e.balance(partner.ID)) // Referral bonus

	w = e.do("GET", "/api/affiliate", nil, partnerTok)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = e.do("GET", "/api/affiliate/analytics", nil, partnerTok)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	today := time.Now().UTC().Format("2006-01-02")
	w = e.do("GET", "/api/affiliate/analytics?from="+today+"&to="+today, nil, partnerTok)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	analytics := decode[struct {
		Analytics domain.AffiliateAnalytics `json:"analytics"`
	}](t, w).Analytics
	assert.Equal(t, 1, analytics.Clicks)
	assert.Equal(t, 1, analytics.Referrals)

	var clicks int64
	e.db.Model(&domain.AffiliateClick{}).Where("affiliate_id = ?", aff.ID).Count(&clicks)
	assert.Equal(t, int64(1), clicks)
}
