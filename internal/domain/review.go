package domain

import (
	"math"
	"time"
)

// Review Model, at most one per user and product
type Review struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	ProductID        uint      `gorm:"uniqueIndex:idx_review_product_user;not null" json:"product_id"`
	UserID           uint      `gorm:"uniqueIndex:idx_review_product_user;not null" json:"user_id"`
	User             *User     `json:"user,omitempty"`
	Rating           int       `gorm:"not null" json:"rating"`
	Title            string    `gorm:"size:255" json:"title"`
	Body             string    `gorm:"type:text" json:"body"`
	Status           string    `gorm:"size:20;index;not null;default:PENDING" json:"status"`
	VerifiedPurchase bool      `gorm:"not null;default:false" json:"verified_purchase"`
	PointsAwarded    bool      `gorm:"not null;default:false" json:"-"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ReviewSummary contains aggregate review statistics for a product
type ReviewSummary struct {
	AverageRating float64     `json:"average_rating"`
	TotalCount    int         `json:"total_count"`
	Histogram     map[int]int `json:"histogram"` // Star -> count
}

// Summarize aggregates ratings into a summary rounded to one decimal
func Summarize(ratings []int) ReviewSummary {
	s := ReviewSummary{Histogram: map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}}
	sum := 0
	for _, r := range ratings {
		if r < 1 || r > 5 {
			continue
		}
		s.Histogram[r]++
		s.TotalCount++
		sum += r
	}
	if s.TotalCount > 0 {
		s.AverageRating = math.Round(float64(sum)/float64(s.TotalCount)*10) / 10
	}
	return s
}
