package domain

import "time"

// Social post statuses
const (
	PostDraft     = "DRAFT"
	PostScheduled = "SCHEDULED"
	PostPosted    = "POSTED"
	PostCancelled = "CANCELLED"
)

// SocialPlatforms lists the networks a post can be planned for
var SocialPlatforms = []string{"INSTAGRAM", "FACEBOOK", "TIKTOK", "PINTEREST", "X"}

// SocialMediaPost Model, a planned post on the marketing calendar
type SocialMediaPost struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Title         string     `gorm:"size:255;not null" json:"title"`
	Platform      string     `gorm:"size:20;index;not null" json:"platform"`
	Content       string     `gorm:"type:text" json:"content"`
	MediaURLs     []string   `gorm:"serializer:json" json:"media_urls"`
	Hashtags      []string   `gorm:"serializer:json" json:"hashtags"`
	ScheduledAt   *time.Time `gorm:"index" json:"scheduled_at,omitempty"`
	Status        string     `gorm:"size:20;index;not null;default:DRAFT" json:"status"`
	PostedAt      *time.Time `json:"posted_at,omitempty"`
	DueNotifiedAt *time.Time `json:"due_notified_at,omitempty"`
	CreatedByID   uint       `gorm:"index" json:"created_by_id"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ValidPlatform reports whether p is a supported network
func ValidPlatform(p string) bool {
	for _, s := range SocialPlatforms {
		if s == p {
			return true
		}
	}
	return false
}

// ValidatePlan checks status and schedule consistency at now
func (p *SocialMediaPost) ValidatePlan(now time.Time) error {
	if !ValidPlatform(p.Platform) {
		return Rule("unsupported platform %q", p.Platform)
	}
	switch p.Status {
	case PostDraft, PostCancelled:
	case PostScheduled:
		if p.ScheduledAt == nil || !p.ScheduledAt.After(now) {
			return Rule("scheduled posts need a future scheduled_at")
		}
	case PostPosted:
	default:
		return Rule("invalid status %q", p.Status)
	}
	return nil
}
