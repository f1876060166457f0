package domain

import "time"

// Publication statuses shared by blogs and pages
const (
	StatusDraft     = "DRAFT"
	StatusPublished = "PUBLISHED"
)

// Moderation statuses shared by comments, reviews and salons
const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
	StatusSpam     = "SPAM"
)

// Blog Model
type Blog struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Slug        string     `gorm:"size:191;uniqueIndex;not null" json:"slug"`
	Excerpt     string     `gorm:"size:500" json:"excerpt"`
	Content     string     `gorm:"type:text" json:"content"`
	CoverImage  string     `gorm:"size:500" json:"cover_image"`
	Tags        []string   `gorm:"serializer:json" json:"tags"`
	Status      string     `gorm:"size:20;index;not null;default:DRAFT" json:"status"`
	PublishedAt *time.Time `gorm:"index" json:"published_at,omitempty"`
	AuthorID    uint       `gorm:"index" json:"author_id"`
	Author      *User      `json:"author,omitempty"`
	ViewCount   int        `gorm:"not null;default:0" json:"view_count"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Comment Model
type Comment struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	BlogID      uint       `gorm:"index;not null" json:"blog_id"`
	ParentID    *uint      `gorm:"index" json:"parent_id,omitempty"`
	UserID      *uint      `gorm:"index" json:"user_id,omitempty"`
	AuthorName  string     `gorm:"size:191;not null" json:"author_name"`
	AuthorEmail string     `gorm:"size:191" json:"-"`
	Content     string     `gorm:"type:text;not null" json:"content"`
	Status      string     `gorm:"size:20;index;not null;default:PENDING" json:"status"`
	Replies     []*Comment `gorm:"-" json:"replies,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Page Model, a CMS managed static page
type Page struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Title           string    `gorm:"size:255;not null" json:"title"`
	Slug            string    `gorm:"size:191;uniqueIndex;not null" json:"slug"`
	Content         string    `gorm:"type:text" json:"content"`
	MetaTitle       string    `gorm:"size:255" json:"meta_title"`
	MetaDescription string    `gorm:"size:500" json:"meta_description"`
	Status          string    `gorm:"size:20;index;not null;default:DRAFT" json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ValidModeration reports whether s is a status an admin may set on a comment
func ValidModeration(s string) bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusSpam:
		return true
	}
	return false
}

// ThreadComments nests approved replies under their parents, preserving input order
func ThreadComments(comments []Comment) []*Comment {
	byID := make(map[uint]*Comment, len(comments))
	for i := range comments {
		c := comments[i]
		c.Replies = nil
		byID[c.ID] = &c
	}
	roots := make([]*Comment, 0, len(comments))
	for i := range comments {
		c := byID[comments[i].ID]
		if c.ParentID != nil {
			if parent, ok := byID[*c.ParentID]; ok {
				parent.Replies = append(parent.Replies, c)
				continue
			}
		}
		roots = append(roots, c) // Orphaned replies surface at top level
	}
	return roots
}
