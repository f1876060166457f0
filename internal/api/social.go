package api

import (
	"net/http" // HTTP status codes
	"strings"  // String manipulation
	"time"     // Schedule validation

	"biosculpture/internal/domain" // Importing domain models
	"biosculpture/internal/utils"  // Utility functions

	"github.com/gin-gonic/gin" // Gin web framework
	"gorm.io/gorm"             // GORM ORM library
)

// SocialPostRequest holds planner fields; nil leaves a field unchanged
type SocialPostRequest struct {
	Title       *string    `json:"title"`
	Platform    *string    `json:"platform"`
	Content     *string    `json:"content"`
	MediaURLs   []string   `json:"media_urls"`
	Hashtags    []string   `json:"hashtags"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	Status      *string    `json:"status"`
}

// apply copies the set fields onto p and validates the plan at now
func (r *SocialPostRequest) apply(p *domain.SocialMediaPost, now time.Time) error {
	if r.Title != nil {
		p.Title = strings.TrimSpace(*r.Title)
	}
	if r.Platform != nil {
		p.Platform = strings.ToUpper(*r.Platform)
	}
	if r.Content != nil {
		p.Content = *r.Content
	}
	if r.MediaURLs != nil {
		p.MediaURLs = r.MediaURLs
	}
	if r.Hashtags != nil {
		tags := make([]string, 0, len(r.Hashtags))
		for _, h := range r.Hashtags {
			if h = strings.TrimPrefix(strings.TrimSpace(h), "#"); h != "" {
				tags = append(tags, h)
			}
		}
		p.Hashtags = tags
	}
	if r.ScheduledAt != nil {
		if p.ScheduledAt == nil || !r.ScheduledAt.Equal(*p.ScheduledAt) {
			p.DueNotifiedAt = nil // A moved post is due again
		}
		p.ScheduledAt = utc(r.ScheduledAt)
	}
	if r.Status != nil {
		p.Status = strings.ToUpper(*r.Status)
	}
	if p.Title == "" {
		return domain.Rule("title is required")
	}
	if p.MediaURLs == nil {
		p.MediaURLs = []string{}
	}
	if p.Hashtags == nil {
		p.Hashtags = []string{}
	}
	if p.Status == domain.PostPosted && p.PostedAt == nil {
		t := now
		p.PostedAt = &t
	}
	return p.ValidatePlan(now)
}

// ListSocialPostsHandler returns planned posts for a calendar window
func ListSocialPostsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := db.Model(&domain.SocialMediaPost{})
		if platform := c.Query("platform"); platform != "" {
			query = query.Where("platform = ?", strings.ToUpper(platform))
		}
		if status := c.Query("status"); status != "" {
			query = query.Where("status = ?", strings.ToUpper(status))
		}
		from, err := queryTime(c, "from")
		if err != nil {
			respondError(c, err, "Invalid from")
			return
		}
		to, err := queryEnd(c, "to")
		if err != nil {
			respondError(c, err, "Invalid to")
			return
		}
		if from != nil {
			query = query.Where("scheduled_at >= ?", *from)
		}
		if to != nil {
			query = query.Where("scheduled_at < ?", *to)
		}
		p := utils.ParsePage(c)
		var total int64
		if err := query.Count(&total).Error; err != nil {
			respondError(c, err, "Failed to count posts")
			return
		}
		var posts []domain.SocialMediaPost
		if err := query.Order("scheduled_at, id").Offset(p.Offset()).Limit(p.PageSize).Find(&posts).Error; err != nil {
			respondError(c, err, "Failed to fetch posts")
			return
		}
		c.JSON(http.StatusOK, utils.Paginated("posts", posts, p, total))
	}
}

// GetSocialPostHandler returns one planned post
func GetSocialPostHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var post domain.SocialMediaPost
		if err := db.First(&post, id).Error; err != nil {
			notFound(c, "Post")
			return
		}
		c.JSON(http.StatusOK, gin.H{"post": post})
	}
}

// CreateSocialPostHandler plans a new post
func CreateSocialPostHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SocialPostRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		post := domain.SocialMediaPost{Status: domain.PostDraft, CreatedByID: currentUserID(c)}
		if err := req.apply(&post, time.Now().UTC()); err != nil {
			respondError(c, err, "Failed to create post")
			return
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&post).Error; err != nil {
				return err
			}
			return recordAudit(tx, c, "create", "social_post", post.ID, gin.H{"platform": post.Platform, "status": post.Status})
		})
		if err != nil {
			respondError(c, err, "Failed to create post")
			return
		}
		c.JSON(http.StatusCreated, gin.H{"post": post})
	}
}

// UpdateSocialPostHandler edits a planned post
func UpdateSocialPostHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req SocialPostRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		var post domain.SocialMediaPost
		if err := db.First(&post, id).Error; err != nil {
			notFound(c, "Post")
			return
		}
		if err := req.apply(&post, time.Now().UTC()); err != nil {
			respondError(c, err, "Failed to update post")
			return
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Save(&post).Error; err != nil {
				return err
			}
			return recordAudit(tx, c, "update", "social_post", post.ID, gin.H{"platform": post.Platform, "status": post.Status})
		})
		if err != nil {
			respondError(c, err, "Failed to update post")
			return
		}
		c.JSON(http.StatusOK, gin.H{"post": post})
	}
}

// DeleteSocialPostHandler removes a planned post
func DeleteSocialPostHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			res := tx.Delete(&domain.SocialMediaPost{}, id)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return domain.ErrNotFound
			}
			return recordAudit(tx, c, "delete", "social_post", id, nil)
		})
		if err != nil {
			respondError(c, err, "Failed to delete post")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Post deleted"})
	}
}

// MarkPostedHandler records that a planned post went out
func MarkPostedHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var post domain.SocialMediaPost
		if err := db.First(&post, id).Error; err != nil {
			notFound(c, "Post")
			return
		}
		if post.Status == domain.PostPosted || post.Status == domain.PostCancelled {
			c.JSON(http.StatusBadRequest, gin.H{"error": "post is already " + strings.ToLower(post.Status)})
			return
		}
		now := time.Now().UTC()
		post.Status = domain.PostPosted
		post.PostedAt = &now
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&post).Select("status", "posted_at").Updates(&post).Error; err != nil {
				return err
			}
			return recordAudit(tx, c, "posted", "social_post", post.ID, nil)
		})
		if err != nil {
			respondError(c, err, "Failed to update post")
			return
		}
		c.JSON(http.StatusOK, gin.H{"post": post})
	}
}
