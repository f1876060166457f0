package domain

import "time"

// Certification statuses
const (
	CertActive  = "ACTIVE"
	CertExpired = "EXPIRED"
	CertRevoked = "REVOKED"
)

// FileAsset Model, an uploaded file in the media gallery
type FileAsset struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	OriginalName string    `gorm:"size:255" json:"original_name"`
	StoredName   string    `gorm:"size:255;uniqueIndex;not null" json:"stored_name"`
	URL          string    `gorm:"size:500" json:"url"`
	MimeType     string    `gorm:"size:100;index" json:"mime_type"`
	Size         int64     `json:"size"`
	Folder       string    `gorm:"size:100;index;not null;default:general" json:"folder"`
	AltText      string    `gorm:"size:255" json:"alt_text"`
	UploadedByID uint      `gorm:"index" json:"uploaded_by_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AuditLog Model, one recorded admin action
type AuditLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ActorID    uint      `gorm:"index" json:"actor_id"`
	Action     string    `gorm:"size:50;index;not null" json:"action"`
	EntityType string    `gorm:"size:50;index;not null" json:"entity_type"`
	EntityID   uint      `gorm:"index" json:"entity_id"`
	Details    string    `gorm:"type:text" json:"details"` // JSON encoded
	IP         string    `gorm:"size:64" json:"ip"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

// Notification Model
type Notification struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	Type      string     `gorm:"size:50;index" json:"type"`
	Title     string     `gorm:"size:255;not null" json:"title"`
	Message   string     `gorm:"type:text" json:"message"`
	Link      string     `gorm:"size:500" json:"link,omitempty"`
	ReadAt    *time.Time `gorm:"index" json:"read_at,omitempty"`
	CreatedAt time.Time  `gorm:"index" json:"created_at"`
}

// Certification Model, a technician qualification issued by the company
type Certification struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	UserID            uint       `gorm:"index;not null" json:"user_id"`
	User              *User      `json:"user,omitempty"`
	Title             string     `gorm:"size:191;not null" json:"title"`
	Level             string     `gorm:"size:50" json:"level"`
	CertificateNumber string     `gorm:"size:64;uniqueIndex;not null" json:"certificate_number"`
	IssuedAt          time.Time  `json:"issued_at"`
	ExpiresAt         *time.Time `gorm:"index" json:"expires_at,omitempty"`
	Status            string     `gorm:"size:20;index;not null;default:ACTIVE" json:"status"`
	Notes             string     `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// ValidAt reports whether the certification is usable at now
func (c *Certification) ValidAt(now time.Time) bool {
	if c.Status != CertActive {
		return false
	}
	return c.ExpiresAt == nil || now.Before(*c.ExpiresAt)
}
