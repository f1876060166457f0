package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Affiliate statuses
const (
	AffiliatePending   = "PENDING"
	AffiliateApproved  = "APPROVED"
	AffiliateRejected  = "REJECTED"
	AffiliateSuspended = "SUSPENDED"
)

// Affiliate tiers, lowest first
const (
	TierBronze   = "BRONZE"
	TierSilver   = "SILVER"
	TierGold     = "GOLD"
	TierPlatinum = "PLATINUM"
)

// Referral and commission statuses
const (
	ReferralRegistered = "REGISTERED"
	ReferralConverted  = "CONVERTED"

	CommissionPending  = "PENDING"
	CommissionApproved = "APPROVED"
	CommissionPaid     = "PAID"
	CommissionRejected = "REJECTED"
)

// Affiliate Model
type Affiliate struct {
	ID             uint             `gorm:"primaryKey" json:"id"`
	UserID         uint             `gorm:"uniqueIndex;not null" json:"user_id"`
	User           *User            `json:"user,omitempty"`
	Code           string           `gorm:"size:32;uniqueIndex;not null" json:"code"`
	Status         string           `gorm:"size:20;index;not null;default:PENDING" json:"status"`
	Tier           string           `gorm:"size:20;not null;default:BRONZE" json:"tier"`
	CommissionRate decimal.Decimal  `gorm:"type:decimal(5,4);not null" json:"commission_rate"`
	CustomRate     *decimal.Decimal `gorm:"type:decimal(5,4)" json:"custom_rate,omitempty"` // Pins the rate regardless of tier
	TotalEarnings  decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0" json:"total_earnings"`
	Website        string           `gorm:"size:255" json:"website"`
	SocialHandle   string           `gorm:"size:191" json:"social_handle"`
	ApprovedAt     *time.Time       `json:"approved_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// AffiliateClick Model, one tracked visit through an affiliate link
type AffiliateClick struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	AffiliateID uint      `gorm:"index;not null" json:"affiliate_id"`
	VisitorHash string    `gorm:"size:64;index" json:"visitor_hash"`
	LandingPage string    `gorm:"size:500" json:"landing_page"`
	Referrer    string    `gorm:"size:500" json:"referrer"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

// Referral Model links an affiliate to a user who registered with their code
type Referral struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	AffiliateID    uint       `gorm:"index;not null" json:"affiliate_id"`
	ReferredUserID uint       `gorm:"uniqueIndex;not null" json:"referred_user_id"`
	ReferredUser   *User      `json:"referred_user,omitempty"`
	Status         string     `gorm:"size:20;not null;default:REGISTERED" json:"status"`
	ConvertedAt    *time.Time `json:"converted_at,omitempty"`
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`
}

// Commission Model, earnings on one referred order
type Commission struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	AffiliateID uint            `gorm:"index;not null" json:"affiliate_id"`
	ReferralID  uint            `gorm:"index;not null" json:"referral_id"`
	OrderID     uint            `gorm:"uniqueIndex;not null" json:"order_id"`
	OrderTotal  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"order_total"`
	Rate        decimal.Decimal `gorm:"type:decimal(5,4);not null" json:"rate"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status      string          `gorm:"size:20;index;not null;default:PENDING" json:"status"`
	CreatedAt   time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TierRule is one rung of the affiliate ladder
type TierRule struct {
	Tier           string          `json:"tier"`
	MinConversions int64           `json:"min_conversions"`
	MinRevenue     decimal.Decimal `json:"min_revenue"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
}

// TierLadder lists tiers lowest first; both thresholds must be met
var TierLadder = []TierRule{
	{Tier: TierBronze, MinConversions: 0, MinRevenue: decimal.Zero, CommissionRate: decimal.RequireFromString("0.05")},
	{Tier: TierSilver, MinConversions: 10, MinRevenue: decimal.NewFromInt(1000), CommissionRate: decimal.RequireFromString("0.075")},
	{Tier: TierGold, MinConversions: 25, MinRevenue: decimal.NewFromInt(5000), CommissionRate: decimal.RequireFromString("0.10")},
	{Tier: TierPlatinum, MinConversions: 50, MinRevenue: decimal.NewFromInt(15000), CommissionRate: decimal.RequireFromString("0.125")},
}

// TierRank returns the ladder position of tier, -1 when unknown
func TierRank(tier string) int {
	for i, r := range TierLadder {
		if r.Tier == tier {
			return i
		}
	}
	return -1
}

// TierFor returns the highest rule whose thresholds are met
func TierFor(conversions int64, revenue decimal.Decimal) TierRule {
	best := TierLadder[0]
	for _, r := range TierLadder {
		if conversions >= r.MinConversions && revenue.GreaterThanOrEqual(r.MinRevenue) {
			best = r
		}
	}
	return best
}

// NextTier returns the rule above tier, nil at the top
func NextTier(tier string) *TierRule {
	i := TierRank(tier)
	if i < 0 || i+1 >= len(TierLadder) {
		return nil
	}
	r := TierLadder[i+1]
	return &r
}

// EffectiveRate is the commission rate applied to new orders
func (a *Affiliate) EffectiveRate() decimal.Decimal {
	if a.CustomRate != nil {
		return *a.CustomRate
	}
	return a.CommissionRate
}

// Promote moves the affiliate up the ladder when the stats qualify; it never demotes
func (a *Affiliate) Promote(conversions int64, revenue decimal.Decimal) bool {
	target := TierFor(conversions, revenue)
	if TierRank(target.Tier) <= TierRank(a.Tier) {
		return false
	}
	a.Tier = target.Tier
	a.CommissionRate = target.CommissionRate
	return true
}

// CommissionAmount is the rounded commission on an order total
func CommissionAmount(total, rate decimal.Decimal) decimal.Decimal {
	return RoundMoney(total.Mul(rate))
}

// AffiliateAnalytics summarises an affiliate's funnel over a window
type AffiliateAnalytics struct {
	From              time.Time            `json:"from"`
	To                time.Time            `json:"to"`
	Clicks            int                  `json:"clicks"`
	UniqueVisitors    int                  `json:"unique_visitors"`
	Referrals         int                  `json:"referrals"`
	Conversions       int                  `json:"conversions"`
	ClickToSignupRate float64              `json:"click_to_signup_rate"`
	ConversionRate    float64              `json:"conversion_rate"`
	ReferredRevenue   decimal.Decimal      `json:"referred_revenue"`
	Commissions       map[string]string    `json:"commissions"` // Status -> amount
	Daily             []AffiliateDailyStat `json:"daily"`
}

// AffiliateDailyStat is one day of the analytics series
type AffiliateDailyStat struct {
	Date      string `json:"date"`
	Clicks    int    `json:"clicks"`
	Referrals int    `json:"referrals"`
}

// BuildAffiliateAnalytics aggregates already-fetched rows in one pass each
func BuildAffiliateAnalytics(from, to time.Time, clicks []AffiliateClick, referrals []Referral, commissions []Commission) AffiliateAnalytics {
	out := AffiliateAnalytics{From: from, To: to, ReferredRevenue: decimal.Zero, Commissions: map[string]string{}}
	days := map[string]*AffiliateDailyStat{}
	day := func(t time.Time) *AffiliateDailyStat {
		key := t.UTC().Format("2006-01-02")
		d, ok := days[key]
		if !ok {
			d = &AffiliateDailyStat{Date: key}
			days[key] = d
		}
		return d
	}

	visitors := map[string]bool{}
	for _, c := range clicks {
		out.Clicks++
		visitors[c.VisitorHash] = true
		day(c.CreatedAt).Clicks++
	}
	out.UniqueVisitors = len(visitors)

	for _, r := range referrals {
		out.Referrals++
		if r.Status == ReferralConverted {
			out.Conversions++
		}
		day(r.CreatedAt).Referrals++
	}

	totals := map[string]decimal.Decimal{}
	for _, c := range commissions {
		totals[c.Status] = totals[c.Status].Add(c.Amount)
		if c.Status != CommissionRejected {
			out.ReferredRevenue = out.ReferredRevenue.Add(c.OrderTotal)
		}
	}
	for _, s := range []string{CommissionPending, CommissionApproved, CommissionPaid, CommissionRejected} {
		out.Commissions[s] = totals[s].StringFixed(2)
	}

	if out.Clicks > 0 {
		out.ClickToSignupRate = ratio(out.Referrals, out.Clicks)
	}
	if out.Referrals > 0 {
		out.ConversionRate = ratio(out.Conversions, out.Referrals)
	}

	out.Daily = make([]AffiliateDailyStat, 0, len(days))
	for _, d := range days {
		out.Daily = append(out.Daily, *d)
	}
	sort.Slice(out.Daily, func(i, j int) bool { return out.Daily[i].Date < out.Daily[j].Date })
	return out
}

// ratio returns n/d rounded to four places
func ratio(n, d int) float64 {
	f, _ := decimal.NewFromInt(int64(n)).Div(decimal.NewFromInt(int64(d))).Round(4).Float64()
	return f
}
