package api

import (
	"net/http" // HTTP status codes
	"strings"  // String manipulation
	"time"     // Validity checks

	"biosculpture/internal/domain"  // Importing domain models
	"biosculpture/internal/service" // Notifications
	"biosculpture/internal/utils"   // Utility functions

	"github.com/gin-gonic/gin" // Gin web framework
	"gorm.io/gorm"             // GORM ORM library
)

// ListMyCertificationsHandler returns the caller's certifications
func ListMyCertificationsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var certs []domain.Certification
		if err := db.Where("user_id = ?", currentUserID(c)).Order("issued_at desc").Find(&certs).Error; err != nil {
			respondError(c, err, "Failed to fetch certifications")
			return
		}
		c.JSON(http.StatusOK, gin.H{"certifications": certs})
	}
}

// VerifyCertificationHandler lets anyone check a certificate number
func VerifyCertificationHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		number := strings.ToUpper(strings.TrimSpace(c.Param("number")))
		var cert domain.Certification
		if err := db.Preload("User", publicUser).Where("certificate_number = ?", number).First(&cert).Error; err != nil {
			notFound(c, "Certification")
			return
		}
		holder := ""
		if cert.User != nil {
			holder = cert.User.Name
		}
		c.JSON(http.StatusOK, gin.H{
			"valid":              cert.ValidAt(time.Now()),
			"status":             cert.Status,
			"holder":             holder,
			"title":              cert.Title,
			"level":              cert.Level,
			"certificate_number": cert.CertificateNumber,
			"issued_at":          cert.IssuedAt,
			"expires_at":         cert.ExpiresAt,
		})
	}
}

// CertificationRequest holds certification fields; nil leaves a field unchanged
type CertificationRequest struct {
	UserID    *uint      `json:"user_id"`
	Title     *string    `json:"title"`
	Level     *string    `json:"level"`
	IssuedAt  *time.Time `json:"issued_at"`
	ExpiresAt *time.Time `json:"expires_at"`
	Status    *string    `json:"status"`
	Notes     *string    `json:"notes"`
}

func (r *CertificationRequest) apply(cert *domain.Certification) error {
	if r.UserID != nil {
		cert.UserID = *r.UserID
	}
	if r.Title != nil {
		cert.Title = strings.TrimSpace(*r.Title)
	}
	if r.Level != nil {
		cert.Level = strings.TrimSpace(*r.Level)
	}
	if r.IssuedAt != nil {
		cert.IssuedAt = r.IssuedAt.UTC()
	}
	if r.ExpiresAt != nil {
		cert.ExpiresAt = utc(r.ExpiresAt)
	}
	if r.Status != nil {
		cert.Status = strings.ToUpper(*r.Status)
	}
	if r.Notes != nil {
		cert.Notes = *r.Notes
	}
	if cert.UserID == 0 || cert.Title == "" {
		return domain.Rule("user_id and title are required")
	}
	switch cert.Status {
	case domain.CertActive, domain.CertExpired, domain.CertRevoked:
	default:
		return domain.Rule("status must be ACTIVE, EXPIRED or REVOKED")
	}
	if cert.ExpiresAt != nil && !cert.ExpiresAt.After(cert.IssuedAt) {
		return domain.Rule("expires_at must be after issued_at")
	}
	return nil
}

// AdminListCertificationsHandler returns certifications filtered by holder and status
func AdminListCertificationsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := utils.ParsePage(c)
		query := db.Model(&domain.Certification{})
		if uid, ok := queryUint(c, "user_id"); ok {
			query = query.Where("user_id = ?", uid)
		}
		if status := c.Query("status"); status != "" {
			query = query.Where("status = ?", strings.ToUpper(status))
		}
		var total int64
		if err := query.Count(&total).Error; err != nil {
			respondError(c, err, "Failed to count certifications")
			return
		}
		var certs []domain.Certification
		if err := query.Preload("User", publicUser).Order("issued_at desc, id desc").
			Offset(p.Offset()).Limit(p.PageSize).Find(&certs).Error; err != nil {
			respondError(c, err, "Failed to fetch certifications")
			return
		}
		c.JSON(http.StatusOK, utils.Paginated("certifications", certs, p, total))
	}
}

// AdminGetCertificationHandler returns one certification
func AdminGetCertificationHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var cert domain.Certification
		if err := db.Preload("User", publicUser).First(&cert, id).Error; err != nil {
			notFound(c, "Certification")
			return
		}
		c.JSON(http.StatusOK, gin.H{"certification": cert})
	}
}

// IssueCertificationHandler issues a certification and notifies its holder
func IssueCertificationHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CertificationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		cert := domain.Certification{Status: domain.CertActive, IssuedAt: time.Now().UTC()}
		if err := req.apply(&cert); err != nil {
			respondError(c, err, "Failed to issue certification")
			return
		}
		code, err := utils.RandomCode(8)
		if err != nil {
			respondError(c, err, "Failed to issue certification")
			return
		}
		cert.CertificateNumber = "BSC-" + code
		err = db.Transaction(func(tx *gorm.DB) error {
			var holder int64
			if err := tx.Model(&domain.User{}).Where("id = ?", cert.UserID).Count(&holder).Error; err != nil {
				return err
			}
			if holder == 0 {
				return domain.Rule("user %d does not exist", cert.UserID)
			}
			if err := tx.Create(&cert).Error; err != nil {
				return err
			}
			if err := service.Notify(tx, cert.UserID, service.NotifyCertification, "Certification issued",
				"You are now certified: "+cert.Title+" ("+cert.CertificateNumber+").", "/account/certifications"); err != nil {
				return err
			}
			return recordAudit(tx, c, "issue", "certification", cert.ID, gin.H{"number": cert.CertificateNumber, "user_id": cert.UserID})
		})
		if err != nil {
			respondError(c, err, "Failed to issue certification")
			return
		}
		c.JSON(http.StatusCreated, gin.H{"certification": cert})
	}
}

// UpdateCertificationHandler edits a certification, for example to revoke it
func UpdateCertificationHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req CertificationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		var cert domain.Certification
		if err := db.First(&cert, id).Error; err != nil {
			notFound(c, "Certification")
			return
		}
		if err := req.apply(&cert); err != nil {
			respondError(c, err, "Failed to update certification")
			return
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Omit("User").Save(&cert).Error; err != nil {
				return err
			}
			return recordAudit(tx, c, "update", "certification", cert.ID, gin.H{"status": cert.Status})
		})
		if err != nil {
			respondError(c, err, "Failed to update certification")
			return
		}
		c.JSON(http.StatusOK, gin.H{"certification": cert})
	}
}

// DeleteCertificationHandler removes a certification
func DeleteCertificationHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			res := tx.Delete(&domain.Certification{}, id)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return domain.ErrNotFound
			}
			return recordAudit(tx, c, "delete", "certification", id, nil)
		})
		if err != nil {
			respondError(c, err, "Failed to delete certification")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Certification deleted"})
	}
}
