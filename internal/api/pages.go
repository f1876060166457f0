package api

import (
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"biosculpture/internal/domain" // Importing domain models

	"github.com/gin-gonic/gin" // Gin web framework
	"gorm.io/gorm"             // GORM ORM library
)

// PageRequest holds CMS page fields; nil leaves a field unchanged
type PageRequest struct {
	Title           *string `json:"title"`
	Slug            *string `json:"slug"`
	Content         *string `json:"content"`
	MetaTitle       *string `json:"meta_title"`
	MetaDescription *string `json:"meta_description"`
	Status          *string `json:"status"`
}

func (r *PageRequest) apply(p *domain.Page) error {
	if r.Title != nil {
		p.Title = strings.TrimSpace(*r.Title)
	}
	if r.Slug != nil {
		p.Slug = domain.Slugify(*r.Slug)
	} else if p.Slug == "" {
		p.Slug = domain.Slugify(p.Title)
	}
	if r.Content != nil {
		p.Content = *r.Content
	}
	if r.MetaTitle != nil {
		p.MetaTitle = strings.TrimSpace(*r.MetaTitle)
	}
	if r.MetaDescription != nil {
		p.MetaDescription = strings.TrimSpace(*r.MetaDescription)
	}
	if r.Status != nil {
		p.Status = strings.ToUpper(*r.Status)
	}
	if p.Title == "" || p.Slug == "" {
		return domain.Rule("title and slug are required")
	}
	if p.Status != domain.StatusDraft && p.Status != domain.StatusPublished {
		return domain.Rule("status must be DRAFT or PUBLISHED")
	}
	return nil
}

// GetPageHandler returns a published page by slug
func GetPageHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var page domain.Page
		if err := db.Where("slug = ? AND status = ?", c.Param("slug"), domain.StatusPublished).First(&page).Error; err != nil {
			notFound(c, "Page")
			return
		}
		c.JSON(http.StatusOK, gin.H{"page": page})
	}
}

// AdminListPagesHandler returns every page without its body
func AdminListPagesHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var pages []domain.Page
		if err := db.Omit("content").Order("title").Find(&pages).Error; err != nil {
			respondError(c, err, "Failed to fetch pages")
			return
		}
		c.JSON(http.StatusOK, gin.H{"pages": pages})
	}
}

// AdminGetPageHandler returns any page by id
func AdminGetPageHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var page domain.Page
		if err := db.First(&page, id).Error; err != nil {
			notFound(c, "Page")
			return
		}
		c.JSON(http.StatusOK, gin.H{"page": page})
	}
}

// CreatePageHandler adds a page
func CreatePageHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		page := domain.Page{Status: domain.StatusDraft}
		if err := req.apply(&page); err != nil {
			respondError(c, err, "Failed to create page")
			return
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&page).Error; err != nil {
				return err
			}
			return recordAudit(tx, c, "create", "page", page.ID, gin.H{"slug": page.Slug})
		})
		if isDuplicate(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "Slug already in use"})
			return
		}
		if err != nil {
			respondError(c, err, "Failed to create page")
			return
		}
		c.JSON(http.StatusCreated, gin.H{"page": page})
	}
}

// UpdatePageHandler edits a page
func UpdatePageHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req PageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		var page domain.Page
		if err := db.First(&page, id).Error; err != nil {
			notFound(c, "Page")
			return
		}
		if err := req.apply(&page); err != nil {
			respondError(c, err, "Failed to update page")
			return
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Save(&page).Error; err != nil {
				return err
			}
			return recordAudit(tx, c, "update", "page", page.ID, gin.H{"slug": page.Slug, "status": page.Status})
		})
		if isDuplicate(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "Slug already in use"})
			return
		}
		if err != nil {
			respondError(c, err, "Failed to update page")
			return
		}
		c.JSON(http.StatusOK, gin.H{"page": page})
	}
}

// DeletePageHandler removes a page
func DeletePageHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			res := tx.Delete(&domain.Page{}, id)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return domain.ErrNotFound
			}
			return recordAudit(tx, c, "delete", "page", id, nil)
		})
		if err != nil {
			respondError(c, err, "Failed to delete page")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Page deleted"})
	}
}
