package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category Model
type Category struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:191;not null" json:"name"`
	Slug        string    `gorm:"size:191;uniqueIndex;not null" json:"slug"`
	Description string    `gorm:"type:text" json:"description"`
	ImageURL    string    `gorm:"size:500" json:"image_url"`
	ParentID    *uint     `gorm:"index" json:"parent_id"`
	SortOrder   int       `gorm:"not null;default:0" json:"sort_order"`
	Active      bool      `gorm:"not null" json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Product Model
type Product struct {
	ID             uint             `gorm:"primaryKey" json:"id"`
	Name           string           `gorm:"size:191;not null" json:"name"`
	Slug           string           `gorm:"size:191;uniqueIndex;not null" json:"slug"`
	SKU            string           `gorm:"column:sku;size:100;uniqueIndex;not null" json:"sku"`
	Description    string           `gorm:"type:text" json:"description"`
	Price          decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"price"`
	CompareAtPrice *decimal.Decimal `gorm:"type:decimal(12,2)" json:"compare_at_price,omitempty"`
	Stock          int              `gorm:"not null;default:0" json:"stock"`
	Active         bool             `gorm:"not null;index" json:"active"`
	Featured       bool             `gorm:"not null;default:false" json:"featured"`
	CategoryID     *uint            `gorm:"index" json:"category_id"`
	Category       *Category        `json:"category,omitempty"`
	Images         []string         `gorm:"serializer:json" json:"images"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// DescendantIDs walks parent links and returns rootID plus every category below it
func DescendantIDs(categories []Category, rootID uint) []uint {
	children := make(map[uint][]uint) // Parent id -> child ids
	for _, c := range categories {
		if c.ParentID != nil {
			children[*c.ParentID] = append(children[*c.ParentID], c.ID)
		}
	}
	ids := []uint{rootID}
	seen := map[uint]bool{rootID: true}
	for i := 0; i < len(ids); i++ {
		for _, child := range children[ids[i]] {
			if !seen[child] { // Guard against cycles
				seen[child] = true
				ids = append(ids, child)
			}
		}
	}
	return ids
}

// CreatesCycle reports whether assigning parentID to id would loop back to id
func CreatesCycle(categories []Category, id, parentID uint) bool {
	for _, d := range DescendantIDs(categories, id) {
		if d == parentID {
			return true
		}
	}
	return false
}
