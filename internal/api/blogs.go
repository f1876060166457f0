package api

import (
	"net/http" // HTTP status codes
	"strings"  // String manipulation
	"time"     // Cache TTL and publish time

	"biosculpture/internal/domain"  // Importing domain models
	"biosculpture/internal/service" // Notifications
	"biosculpture/internal/utils"   // Utility functions

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
	"gorm.io/gorm"                 // GORM ORM library
)

const blogCachePrefix = "blogs:"

// ListBlogsHandler returns published posts filtered by tag and search text
func ListBlogsHandler(db *gorm.DB, rdb *redis.Client, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		cacheKey := blogCachePrefix + c.Request.URL.RawQuery
		if serveCached(c, rdb, cacheKey) {
			return
		}
		p := utils.ParsePage(c)
		query := db.Model(&domain.Blog{}).Where("status = ?", domain.StatusPublished)
		if tag := strings.TrimSpace(c.Query("tag")); tag != "" {
			query = query.Where("tags LIKE ?", `%"`+tag+`"%`) // Tags are stored as a JSON array
		}
		if q := c.Query("q"); q != "" {
			query = query.Where("title LIKE ? OR excerpt LIKE ?", likePattern(q), likePattern(q))
		}
		var total int64
		if err := query.Count(&total).Error; err != nil {
			respondError(c, err, "Failed to count blogs")
			return
		}
		var blogs []domain.Blog
		if err := query.Omit("content").Preload("Author", publicUser).
			Order("published_at desc, id desc").Offset(p.Offset()).Limit(p.PageSize).
			Find(&blogs).Error; err != nil {
			respondError(c, err, "Failed to fetch blogs")
			return
		}
		respData := utils.Paginated("blogs", blogs, p, total)
		storeCached(c, rdb, cacheKey, respData, ttl)
		c.JSON(http.StatusOK, respData)
	}
}

// publishedBlog loads a published post by slug
func publishedBlog(db *gorm.DB, slug string) (*domain.Blog, error) {
	var blog domain.Blog
	err := db.Where("slug = ? AND status = ?", slug, domain.StatusPublished).First(&blog).Error
	return &blog, err
}

// GetBlogHandler returns a published post and counts the view
func GetBlogHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		blog, err := publishedBlog(db.Preload("Author", publicUser), c.Param("slug"))
		if err != nil {
			notFound(c, "Blog")
			return
		}
		if err := db.Model(&domain.Blog{}).Where("id = ?", blog.ID).
			UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error; err == nil {
			blog.ViewCount++
		}
		c.JSON(http.StatusOK, gin.H{"blog": blog})
	}
}

// ListBlogCommentsHandler returns the approved comments of a post as a thread
func ListBlogCommentsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		blog, err := publishedBlog(db, c.Param("slug"))
		if err != nil {
			notFound(c, "Blog")
			return
		}
		var comments []domain.Comment
		if err := db.Where("blog_id = ? AND status = ?", blog.ID, domain.StatusApproved).
			Order("created_at, id").Find(&comments).Error; err != nil {
			respondError(c, err, "Failed to fetch comments")
			return
		}
		c.JSON(http.StatusOK, gin.H{"comments": domain.ThreadComments(comments), "total": len(comments)})
	}
}

// CommentRequest is a new comment; guests must give a name and email
type CommentRequest struct {
	Content     string `json:"content" binding:"required,max=5000"`
	ParentID    *uint  `json:"parent_id"`
	AuthorName  string `json:"author_name" binding:"max=191"`
	AuthorEmail string `json:"author_email" binding:"omitempty,email"`
}

// CreateCommentHandler stores a comment awaiting moderation
func CreateCommentHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CommentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		blog, err := publishedBlog(db, c.Param("slug"))
		if err != nil {
			notFound(c, "Blog")
			return
		}
		comment := domain.Comment{
			BlogID:  blog.ID,
			Content: strings.TrimSpace(req.Content),
			Status:  domain.StatusPending,
		}
		if uid := currentUserID(c); uid != 0 {
			var user domain.User
			if err := db.First(&user, uid).Error; err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
				return
			}
			comment.UserID = &user.ID
			comment.AuthorName = user.Name
			comment.AuthorEmail = user.Email
			if comment.AuthorName == "" {
				comment.AuthorName = strings.SplitN(user.Email, "@", 2)[0]
			}
		} else {
			comment.AuthorName = strings.TrimSpace(req.AuthorName)
			comment.AuthorEmail = domain.NormalizeEmail(req.AuthorEmail)
			if comment.AuthorName == "" || comment.AuthorEmail == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "author_name and author_email are required"})
				return
			}
		}
		if comment.Content == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
			return
		}
		banned, err := isBanned(db, comment.AuthorEmail)
		if err != nil {
			respondError(c, err, "Failed to create comment")
			return
		}
		if banned {
			c.JSON(http.StatusForbidden, gin.H{"error": "This email address is banned"})
			return
		}
		if req.ParentID != nil {
			var parent domain.Comment
			if err := db.Where("id = ? AND blog_id = ? AND status = ?", *req.ParentID, blog.ID, domain.StatusApproved).
				First(&parent).Error; err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "parent comment not found on this post"})
				return
			}
			comment.ParentID = &parent.ID
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&comment).Error; err != nil {
				return err
			}
			_, err := service.NotifyAdmins(tx, service.NotifyComment, "New comment awaiting moderation",
				comment.AuthorName+" commented on "+blog.Title, "/admin/comments")
			return err
		})
		if err != nil {
			respondError(c, err, "Failed to create comment")
			return
		}
		c.JSON(http.StatusCreated, gin.H{"comment": comment, "message": "Comment submitted for moderation"})
	}
}

// BlogRequest holds blog fields; nil leaves a field unchanged
type BlogRequest struct {
	Title      *string  `json:"title"`
	Slug       *string  `json:"slug"`
	Excerpt    *string  `json:"excerpt"`
	Content    *string  `json:"content"`
	CoverImage *string  `json:"cover_image"`
	Tags       []string `json:"tags"`
	Status     *string  `json:"status"`
}

// apply copies the set fields onto b, publishing it the first time its status becomes PUBLISHED
func (r *BlogRequest) apply(b *domain.Blog) error {
	if r.Title != nil {
		b.Title = strings.TrimSpace(*r.Title)
	}
	if r.Slug != nil {
		b.Slug = domain.Slugify(*r.Slug)
	} else if b.Slug == "" {
		b.Slug = domain.Slugify(b.Title)
	}
	if r.Excerpt != nil {
		b.Excerpt = *r.Excerpt
	}
	if r.Content != nil {
		b.Content = *r.Content
	}
	if r.CoverImage != nil {
		b.CoverImage = *r.CoverImage
	}
	if r.Tags != nil {
		tags := make([]string, 0, len(r.Tags))
		for _, t := range r.Tags {
			if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
				tags = append(tags, t)
			}
		}
		b.Tags = tags
	}
	if r.Status != nil {
		b.Status = strings.ToUpper(*r.Status)
	}
	if b.Title == "" {
		return domain.Rule("title is required")
	}
	if b.Slug == "" {
		return domain.Rule("slug must contain letters or digits")
	}
	if b.Status != domain.StatusDraft && b.Status != domain.StatusPublished {
		return domain.Rule("status must be DRAFT or PUBLISHED")
	}
	if b.Tags == nil {
		b.Tags = []string{}
	}
	if b.Status == domain.StatusPublished && b.PublishedAt == nil {
		now := time.Now().UTC()
		b.PublishedAt = &now
	}
	return nil
}

// AdminListBlogsHandler returns posts of every status
func AdminListBlogsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := utils.ParsePage(c)
		query := db.Model(&domain.Blog{})
		if status := c.Query("status"); status != "" {
			query = query.Where("status = ?", strings.ToUpper(status))
		}
		if q := c.Query("q"); q != "" {
			query = query.Where("title LIKE ?", likePattern(q))
		}
		var total int64
		if err := query.Count(&total).Error; err != nil {
			respondError(c, err, "Failed to count blogs")
			return
		}
		var blogs []domain.Blog
		if err := query.Omit("content").Order("updated_at desc, id desc").
			Offset(p.Offset()).Limit(p.PageSize).Find(&blogs).Error; err != nil {
			respondError(c, err, "Failed to fetch blogs")
			return
		}
		c.JSON(http.StatusOK, utils.Paginated("blogs", blogs, p, total))
	}
}

// AdminGetBlogHandler returns any post by id
func AdminGetBlogHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var blog domain.Blog
		if err := db.Preload("Author", publicUser).First(&blog, id).Error; err != nil {
			notFound(c, "Blog")
			return
		}
		c.JSON(http.StatusOK, gin.H{"blog": blog})
	}
}

// CreateBlogHandler adds a post authored by the caller
func CreateBlogHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req BlogRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		blog := domain.Blog{Status: domain.StatusDraft, AuthorID: currentUserID(c)}
		if err := req.apply(&blog); err != nil {
			respondError(c, err, "Failed to create blog")
			return
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&blog).Error; err != nil {
				return err
			}
			return recordAudit(tx, c, "create", "blog", blog.ID, gin.H{"slug": blog.Slug, "status": blog.Status})
		})
		if isDuplicate(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "Slug already in use"})
			return
		}
		if err != nil {
			respondError(c, err, "Failed to create blog")
			return
		}
		invalidate(c, rdb, blogCachePrefix)
		c.JSON(http.StatusCreated, gin.H{"blog": blog})
	}
}

// UpdateBlogHandler edits a post
func UpdateBlogHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req BlogRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		var blog domain.Blog
		if err := db.First(&blog, id).Error; err != nil {
			notFound(c, "Blog")
			return
		}
		wasPublished := blog.Status == domain.StatusPublished
		if err := req.apply(&blog); err != nil {
			respondError(c, err, "Failed to update blog")
			return
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Omit("view_count").Save(&blog).Error; err != nil {
				return err
			}
			return recordAudit(tx, c, "update", "blog", blog.ID, gin.H{"slug": blog.Slug, "status": blog.Status})
		})
		if isDuplicate(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "Slug already in use"})
			return
		}
		if err != nil {
			respondError(c, err, "Failed to update blog")
			return
		}
		if !wasPublished && blog.Status == domain.StatusPublished {
			logrus.WithFields(logrus.Fields{"blog_id": blog.ID, "slug": blog.Slug}).Info("Blog published")
		}
		invalidate(c, rdb, blogCachePrefix)
		c.JSON(http.StatusOK, gin.H{"blog": blog})
	}
}

// DeleteBlogHandler removes a post and its comments
func DeleteBlogHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var blog domain.Blog
		if err := db.First(&blog, id).Error; err != nil {
			notFound(c, "Blog")
			return
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("blog_id = ?", id).Delete(&domain.Comment{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&blog).Error; err != nil {
				return err
			}
			return recordAudit(tx, c, "delete", "blog", id, gin.H{"slug": blog.Slug})
		})
		if err != nil {
			respondError(c, err, "Failed to delete blog")
			return
		}
		invalidate(c, rdb, blogCachePrefix)
		c.JSON(http.StatusOK, gin.H{"message": "Blog deleted"})
	}
}

// DuplicateBlogHandler copies a post as an unpublished draft under the next free copy slug
func DuplicateBlogHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var source domain.Blog
		if err := db.First(&source, id).Error; err != nil {
			notFound(c, "Blog")
			return
		}
		clone := domain.Blog{
			Title:      source.Title + " (Copy)",
			Excerpt:    source.Excerpt,
			Content:    source.Content,
			CoverImage: source.CoverImage,
			Tags:       append([]string{}, source.Tags...),
			Status:     domain.StatusDraft,
			AuthorID:   currentUserID(c),
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			slug, err := domain.UniqueSlug(
				func(n int) string { return domain.CopySlug(source.Slug, n) },
				func(slug string) (bool, error) {
					var n int64
					err := tx.Model(&domain.Blog{}).Where("slug = ?", slug).Count(&n).Error
					return n > 0, err
				})
			if err != nil {
				return err
			}
			clone.Slug = slug
			if err := tx.Create(&clone).Error; err != nil {
				return err
			}
			return recordAudit(tx, c, "duplicate", "blog", clone.ID, gin.H{"source_id": source.ID, "slug": clone.Slug})
		})
		if err != nil {
			respondError(c, err, "Failed to duplicate blog")
			return
		}
		c.JSON(http.StatusCreated, gin.H{"blog": clone})
	}
}

// AdminListCommentsHandler returns comments for moderation
func AdminListCommentsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := utils.ParsePage(c)
		query := db.Model(&domain.Comment{})
		if status := c.Query("status"); status != "" {
			query = query.Where("status = ?", strings.ToUpper(status))
		}
		if blogID, ok := queryUint(c, "blog_id"); ok {
			query = query.Where("blog_id = ?", blogID)
		}
		var total int64
		if err := query.Count(&total).Error; err != nil {
			respondError(c, err, "Failed to count comments")
			return
		}
		var comments []domain.Comment
		if err := query.Order("created_at desc, id desc").Offset(p.Offset()).Limit(p.PageSize).
			Find(&comments).Error; err != nil {
			respondError(c, err, "Failed to fetch comments")
			return
		}
		// Moderators see the author email hidden from the public listing
		rows := make([]gin.H, len(comments))
		for i, cm := range comments {
			rows[i] = gin.H{"comment": cm, "author_email": cm.AuthorEmail}
		}
		c.JSON(http.StatusOK, utils.Paginated("comments", rows, p, total))
	}
}

// StatusRequest carries a new moderation status and an optional reason
type StatusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

// ModerateCommentHandler sets a comment's status, notifying registered authors on approval
func ModerateCommentHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req StatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		status := strings.ToUpper(req.Status)
		if !domain.ValidModeration(status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "status must be PENDING, APPROVED, REJECTED or SPAM"})
			return
		}
		var comment domain.Comment
		if err := db.First(&comment, id).Error; err != nil {
			notFound(c, "Comment")
			return
		}
		previous := comment.Status
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&comment).Update("status", status).Error; err != nil {
				return err
			}
			if status == domain.StatusApproved && previous != domain.StatusApproved && comment.UserID != nil {
				var blog domain.Blog
				if err := tx.Select("id", "title", "slug").First(&blog, comment.BlogID).Error; err != nil {
					return err
				}
				if err := service.Notify(tx, *comment.UserID, service.NotifyComment, "Your comment was approved",
					"Your comment on "+blog.Title+" is now visible.", "/blog/"+blog.Slug); err != nil {
					return err
				}
			}
			return recordAudit(tx, c, "moderate", "comment", comment.ID, gin.H{"from": previous, "to": status})
		})
		if err != nil {
			respondError(c, err, "Failed to moderate comment")
			return
		}
		logrus.WithFields(logrus.Fields{"comment_id": comment.ID, "status": status}).Info("Comment moderated")
		c.JSON(http.StatusOK, gin.H{"comment": comment})
	}
}

// DeleteCommentHandler removes a comment together with its replies
func DeleteCommentHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var comment domain.Comment
		if err := db.First(&comment, id).Error; err != nil {
			notFound(c, "Comment")
			return
		}
		var removed int64
		err := db.Transaction(func(tx *gorm.DB) error {
			ids := []uint{comment.ID}
			for frontier := ids; len(frontier) > 0; {
				var children []uint
				if err := tx.Model(&domain.Comment{}).Where("parent_id IN ?", frontier).Pluck("id", &children).Error; err != nil {
					return err
				}
				ids = append(ids, children...)
				frontier = children
			}
			res := tx.Where("id IN ?", ids).Delete(&domain.Comment{})
			if res.Error != nil {
				return res.Error
			}
			removed = res.RowsAffected
			return recordAudit(tx, c, "delete", "comment", comment.ID, gin.H{"removed": removed})
		})
		if err != nil {
			respondError(c, err, "Failed to delete comment")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Comment deleted", "removed": removed})
	}
}
