package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Point earning actions
const (
	ActionPurchase = "PURCHASE"
	ActionReview   = "REVIEW"
	ActionReferral = "REFERRAL"
	ActionSignup   = "SIGNUP"
)

// PointsConfiguration Model, one earning rule; several per action form amount tiers
type PointsConfiguration struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Action        string          `gorm:"size:20;index;not null" json:"action"`
	Name          string          `gorm:"size:191" json:"name"`
	Points        int             `gorm:"not null;default:0" json:"points"`                             // Flat points per event
	PointsPerUnit decimal.Decimal `gorm:"type:decimal(10,4);not null;default:0" json:"points_per_unit"` // Points per currency unit
	MinAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"min_amount"`      // Tier lower bound
	Active        bool            `gorm:"not null" json:"active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ValidAction reports whether a is a known earning action
func ValidAction(a string) bool {
	switch a {
	case ActionPurchase, ActionReview, ActionReferral, ActionSignup:
		return true
	}
	return false
}

// SelectConfiguration picks the active rule for action with the highest MinAmount not above amount
func SelectConfiguration(configs []PointsConfiguration, action string, amount decimal.Decimal) *PointsConfiguration {
	var best *PointsConfiguration
	for i := range configs {
		c := &configs[i]
		if !c.Active || c.Action != action || c.MinAmount.GreaterThan(amount) {
			continue
		}
		if best == nil || c.MinAmount.GreaterThan(best.MinAmount) {
			best = c
		}
	}
	return best
}

// Earned returns the points a rule grants for amount
func (c *PointsConfiguration) Earned(amount decimal.Decimal) int {
	if c == nil {
		return 0
	}
	variable := amount.Mul(c.PointsPerUnit).Floor().IntPart()
	total := int64(c.Points) + variable
	if total < 0 {
		return 0
	}
	return int(total)
}

// DefaultPointsConfigurations are seeded on first migration
func DefaultPointsConfigurations() []PointsConfiguration {
	return []PointsConfiguration{
		{Action: ActionPurchase, Name: "Purchase", PointsPerUnit: decimal.NewFromInt(1), Active: true},
		{Action: ActionPurchase, Name: "Purchase over 150", PointsPerUnit: decimal.NewFromFloat(1.5), MinAmount: decimal.NewFromInt(150), Active: true},
		{Action: ActionReview, Name: "Approved review", Points: 25, Active: true},
		{Action: ActionReferral, Name: "Referral converted", Points: 100, Active: true},
		{Action: ActionSignup, Name: "Welcome bonus", Points: 50, Active: true},
	}
}
