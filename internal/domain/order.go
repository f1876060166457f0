package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses
const (
	OrderPending   = "PENDING"
	OrderPaid      = "PAID"
	OrderShipped   = "SHIPPED"
	OrderDelivered = "DELIVERED"
	OrderCancelled = "CANCELLED"
)

var orderTransitions = map[string][]string{
	OrderPending: {OrderPaid, OrderCancelled},
	OrderPaid:    {OrderShipped, OrderCancelled},
	OrderShipped: {OrderDelivered},
}

// CanTransition reports whether an order may move from one status to another
func CanTransition(from, to string) bool {
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Cart Model, one per user
type Cart struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"uniqueIndex;not null" json:"user_id"`
	Items     []CartItem `gorm:"constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CartItem Model, one row per product in a cart
type CartItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CartID    uint      `gorm:"uniqueIndex:idx_cart_product;not null" json:"cart_id"`
	ProductID uint      `gorm:"uniqueIndex:idx_cart_product;not null" json:"product_id"`
	Product   Product   `json:"product"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Order Model
type Order struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Number        string          `gorm:"size:40;uniqueIndex;not null" json:"number"`
	UserID        uint            `gorm:"index;not null" json:"user_id"`
	Status        string          `gorm:"size:20;index;not null;default:PENDING" json:"status"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	Discount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"discount"`
	Shipping      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"shipping"`
	Total         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
	CouponID      *uint           `gorm:"index" json:"coupon_id,omitempty"`
	CouponCode    string          `gorm:"size:64" json:"coupon_code,omitempty"`
	ShipName      string          `gorm:"size:191" json:"ship_name"`
	ShipAddress   string          `gorm:"size:255" json:"ship_address"`
	ShipCity      string          `gorm:"size:100" json:"ship_city"`
	ShipPostal    string          `gorm:"size:20" json:"ship_postal"`
	ShipCountry   string          `gorm:"size:100" json:"ship_country"`
	ShipPhone     string          `gorm:"size:50" json:"ship_phone"`
	Notes         string          `gorm:"type:text" json:"notes,omitempty"`
	PointsAwarded int             `gorm:"not null;default:0" json:"points_awarded"`
	Items         []OrderItem     `gorm:"constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt     time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// OrderItem Model snapshots the product at checkout time
type OrderItem struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	OrderID     uint            `gorm:"index;not null" json:"order_id"`
	ProductID   uint            `gorm:"index;not null" json:"product_id"`
	ProductName string          `gorm:"size:191" json:"product_name"`
	SKU         string          `gorm:"column:sku;size:100" json:"sku"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	LineTotal   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"line_total"`
}

// RoundMoney rounds an amount to cents
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ShippingFor returns the shipping charge for a discounted merchandise total
func ShippingFor(afterDiscount, flatRate, freeThreshold decimal.Decimal, freeShipping bool) decimal.Decimal {
	if freeShipping {
		return decimal.Zero
	}
	if freeThreshold.IsPositive() && afterDiscount.GreaterThanOrEqual(freeThreshold) {
		return decimal.Zero
	}
	return flatRate
}
