package domain

import (
	"strings"
	"time"
)

// Salon Model, a business listed in the public directory once approved
type Salon struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Name            string     `gorm:"size:191;not null" json:"name"`
	Description     string     `gorm:"type:text" json:"description"`
	Address         string     `gorm:"size:255;not null" json:"address"`
	City            string     `gorm:"size:100;index" json:"city"`
	State           string     `gorm:"size:100" json:"state"`
	PostalCode      string     `gorm:"size:20" json:"postal_code"`
	Country         string     `gorm:"size:100;index" json:"country"`
	Phone           string     `gorm:"size:50" json:"phone"`
	Email           string     `gorm:"size:191" json:"email"`
	Website         string     `gorm:"size:255" json:"website"`
	Instagram       string     `gorm:"size:191" json:"instagram"`
	Latitude        *float64   `gorm:"index" json:"latitude"`
	Longitude       *float64   `json:"longitude"`
	GeocodedAt      *time.Time `json:"geocoded_at,omitempty"`
	Status          string     `gorm:"size:20;index;not null;default:PENDING" json:"status"`
	RejectionReason string     `gorm:"size:500" json:"rejection_reason,omitempty"`
	SubmittedByID   uint       `gorm:"index;not null" json:"submitted_by_id"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// FullAddress joins the address parts for geocoding
func (s *Salon) FullAddress() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{s.Address, s.City, s.State, s.PostalCode, s.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
