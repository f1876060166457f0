package api

import (
	"net/http" // HTTP status codes
	"strings"  // String manipulation
	"time"     // Read timestamps

	"biosculpture/internal/domain"  // Importing domain models
	"biosculpture/internal/service" // Notification fan-out
	"biosculpture/internal/utils"   // Utility functions

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

// ListNotificationsHandler returns the caller's notifications and unread count
func ListNotificationsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := currentUserID(c)
		p := utils.ParsePage(c)
		query := db.Model(&domain.Notification{}).Where("user_id = ?", userID)
		if c.Query("unread_only") == "true" {
			query = query.Where("read_at IS NULL")
		}
		var total int64
		if err := query.Count(&total).Error; err != nil {
			respondError(c, err, "Failed to count notifications")
			return
		}
		var notifications []domain.Notification
		if err := query.Order("created_at desc, id desc").Offset(p.Offset()).Limit(p.PageSize).
			Find(&notifications).Error; err != nil {
			respondError(c, err, "Failed to fetch notifications")
			return
		}
		var unread int64
		db.Model(&domain.Notification{}).Where("user_id = ? AND read_at IS NULL", userID).Count(&unread)
		resp := utils.Paginated("notifications", notifications, p, total)
		resp["unread"] = unread
		c.JSON(http.StatusOK, resp)
	}
}

// MarkNotificationReadHandler marks one of the caller's notifications as read
func MarkNotificationReadHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var n domain.Notification
		if err := db.Where("id = ? AND user_id = ?", id, currentUserID(c)).First(&n).Error; err != nil {
			notFound(c, "Notification")
			return
		}
		if n.ReadAt == nil {
			now := time.Now().UTC()
			if err := db.Model(&n).Update("read_at", now).Error; err != nil {
				respondError(c, err, "Failed to update notification")
				return
			}
			n.ReadAt = &now
		}
		c.JSON(http.StatusOK, gin.H{"notification": n})
	}
}

// MarkAllNotificationsReadHandler marks every unread notification of the caller as read
func MarkAllNotificationsReadHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		res := db.Model(&domain.Notification{}).
			Where("user_id = ? AND read_at IS NULL", currentUserID(c)).
			Update("read_at", time.Now().UTC())
		if res.Error != nil {
			respondError(c, res.Error, "Failed to update notifications")
			return
		}
		c.JSON(http.StatusOK, gin.H{"updated": res.RowsAffected})
	}
}

// SendNotificationRequest is an admin message; without UserID it goes to everyone
type SendNotificationRequest struct {
	UserID  *uint  `json:"user_id"`
	Title   string `json:"title" binding:"required,max=255"`
	Message string `json:"message" binding:"required"`
	Link    string `json:"link" binding:"max=500"`
}

// SendNotificationHandler notifies one user or broadcasts to all users
func SendNotificationHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SendNotificationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		title := strings.TrimSpace(req.Title)
		sent := 0
		err := db.Transaction(func(tx *gorm.DB) error {
			if req.UserID != nil {
				var n int64
				if err := tx.Model(&domain.User{}).Where("id = ?", *req.UserID).Count(&n).Error; err != nil {
					return err
				}
				if n == 0 {
					return domain.ErrNotFound
				}
				if err := service.Notify(tx, *req.UserID, service.NotifyAnnouncement, title, req.Message, req.Link); err != nil {
					return err
				}
				sent = 1
			} else {
				count, err := service.Broadcast(tx, service.NotifyAnnouncement, title, req.Message, req.Link)
				if err != nil {
					return err
				}
				sent = count
			}
			return recordAudit(tx, c, "notify", "notification", 0, gin.H{"title": title, "recipients": sent})
		})
		if err != nil {
			respondError(c, err, "Failed to send notification")
			return
		}
		logrus.WithFields(logrus.Fields{"title": title, "recipients": sent}).Info("Notification sent")
		c.JSON(http.StatusCreated, gin.H{"sent": sent})
	}
}
