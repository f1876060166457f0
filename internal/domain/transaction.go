package domain

import (
	"fmt"
	"sort"
	"time"
)

// Ledger entry types
const (
	PointsEarned   = "EARNED"
	PointsRedeemed = "REDEEMED"
	PointsAdjusted = "ADJUSTED"
)

// PointsTransaction Model, one signed ledger entry against a user's balance
type PointsTransaction struct {
	ID            uint      `gorm:"primaryKey" json:"id"`                    // Primary key
	UserID        uint      `gorm:"index;not null" json:"user_id"`           // Owner of the balance
	Points        int       `gorm:"not null" json:"points"`                  // Positive credit, negative debit
	Type          string    `gorm:"size:20;index;not null" json:"type"`      // EARNED, REDEEMED or ADJUSTED
	Action        string    `gorm:"size:20" json:"action,omitempty"`         // Earning action when EARNED
	Reason        string    `gorm:"size:255" json:"reason"`                  // Human readable description
	ReferenceType string    `gorm:"size:50" json:"reference_type,omitempty"` // Related entity type
	ReferenceID   uint      `json:"reference_id,omitempty"`                  // Related entity id
	CreatedAt     time.Time `gorm:"index" json:"created_at"`                 // Timestamp of creation
}

// PointsBucket aggregates ledger entries over one period
type PointsBucket struct {
	Period   string `json:"period"`
	Earned   int    `json:"earned"`
	Redeemed int    `json:"redeemed"`
	Adjusted int    `json:"adjusted"`
	Net      int    `json:"net"`
}

// PeriodKey formats t as the bucket label for period day, week or month
func PeriodKey(t time.Time, period string) string {
	t = t.UTC()
	switch period {
	case "week":
		y, w := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", y, w)
	case "month":
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}

// Breakdown groups transactions into period buckets sorted chronologically
func Breakdown(txs []PointsTransaction, period string) []PointsBucket {
	buckets := make(map[string]*PointsBucket)
	for _, tx := range txs {
		key := PeriodKey(tx.CreatedAt, period)
		b, ok := buckets[key]
		if !ok {
			b = &PointsBucket{Period: key}
			buckets[key] = b
		}
		switch tx.Type {
		case PointsEarned:
			b.Earned += tx.Points
		case PointsRedeemed:
			b.Redeemed += -tx.Points // Stored negative, reported as a positive amount
		default:
			b.Adjusted += tx.Points
		}
		b.Net += tx.Points
	}
	out := make([]PointsBucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out
}
