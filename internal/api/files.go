package api

import (
	"errors"        // Error inspection
	"net/http"      // HTTP status codes
	"os"            // File removal
	"path/filepath" // Storage paths
	"strings"       // String manipulation

	"biosculpture/internal/config" // Upload settings
	"biosculpture/internal/domain" // Importing domain models
	"biosculpture/internal/utils"  // Utility functions

	"github.com/gabriel-vasile/mimetype" // Content sniffing
	"github.com/gin-gonic/gin"           // Gin web framework
	"github.com/google/uuid"             // Stored file names
	"github.com/sirupsen/logrus"         // Logging library
	"gorm.io/gorm"                       // GORM ORM library
)

// allowedUpload reports whether a sniffed MIME type may be stored.
// SVG is refused since it can carry script.
func allowedUpload(m *mimetype.MIME) bool {
	if m.Is("image/svg+xml") {
		return false
	}
	s := m.String()
	return strings.HasPrefix(s, "image/") || strings.HasPrefix(s, "video/") || m.Is("application/pdf")
}

// uploadHeaders stops browsers from running or re-typing stored uploads
func uploadHeaders(c *gin.Context) {
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("Content-Security-Policy", "default-src 'none'; img-src 'self'; media-src 'self'; sandbox")
	c.Next()
}

// folderName normalises a gallery folder, defaulting to general
func folderName(s string) string {
	if f := domain.Slugify(s); f != "" {
		return f
	}
	return "general"
}

// UploadFileHandler stores a multipart upload after sniffing its content type
func UploadFileHandler(db *gorm.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, cfg.UploadMaxBytes+1<<20) // Room for form fields
		header, err := c.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File is too large"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		if header.Size > cfg.UploadMaxBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File is too large"})
			return
		}
		src, err := header.Open()
		if err != nil {
			respondError(c, err, "Failed to read upload")
			return
		}
		mime, err := mimetype.DetectReader(src)
		src.Close()
		if err != nil {
			respondError(c, err, "Failed to read upload")
			return
		}
		if !allowedUpload(mime) {
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "Only images, videos and PDF files are allowed", "detected": mime.String()})
			return
		}

		stored := uuid.NewString() + mime.Extension()
		if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
			respondError(c, err, "Failed to store upload")
			return
		}
		dst := filepath.Join(cfg.UploadDir, stored)
		if err := c.SaveUploadedFile(header, dst); err != nil {
			respondError(c, err, "Failed to store upload")
			return
		}
		asset := domain.FileAsset{
			OriginalName: filepath.Base(header.Filename),
			StoredName:   stored,
			URL:          strings.TrimRight(cfg.PublicBaseURL, "/") + "/uploads/" + stored,
			MimeType:     mime.String(),
			Size:         header.Size,
			Folder:       folderName(c.PostForm("folder")),
			AltText:      strings.TrimSpace(c.PostForm("alt_text")),
			UploadedByID: currentUserID(c),
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&asset).Error; err != nil {
				return err
			}
			return recordAudit(tx, c, "upload", "file", asset.ID, gin.H{"name": asset.OriginalName, "mime": asset.MimeType})
		})
		if err != nil {
			_ = os.Remove(dst) // Do not leave an unreferenced file behind
			respondError(c, err, "Failed to store upload")
			return
		}
		logrus.WithFields(logrus.Fields{
			"file_id": asset.ID,
			"mime":    asset.MimeType,
			"size":    asset.Size,
			"folder":  asset.Folder,
		}).Info("File uploaded")
		c.JSON(http.StatusCreated, gin.H{"file": asset})
	}
}

// listFiles writes a paginated file listing for query
func listFiles(c *gin.Context, query *gorm.DB) {
	if folder := c.Query("folder"); folder != "" {
		query = query.Where("folder = ?", folderName(folder))
	}
	p := utils.ParsePage(c)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		respondError(c, err, "Failed to count files")
		return
	}
	var files []domain.FileAsset
	if err := query.Order("created_at desc, id desc").Offset(p.Offset()).Limit(p.PageSize).Find(&files).Error; err != nil {
		respondError(c, err, "Failed to fetch files")
		return
	}
	c.JSON(http.StatusOK, utils.Paginated("files", files, p, total))
}

// ListFilesHandler returns uploaded files, optionally filtered by folder and type prefix
func ListFilesHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := db.Model(&domain.FileAsset{})
		if kind := c.Query("type"); kind != "" {
			query = query.Where("mime_type LIKE ?", strings.ToLower(kind)+"%")
		}
		listFiles(c, query)
	}
}

// GalleryHandler lists uploaded images for the public gallery
func GalleryHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		listFiles(c, db.Model(&domain.FileAsset{}).Where("mime_type LIKE ?", "image/%"))
	}
}

// folderCount is one row of the folder listing
type folderCount struct {
	Folder string `json:"folder"`
	Count  int64  `json:"count"`
}

// ListFoldersHandler returns the folders in use with their file counts
func ListFoldersHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var folders []folderCount
		if err := db.Model(&domain.FileAsset{}).Select("folder, COUNT(*) AS count").
			Group("folder").Order("folder").Scan(&folders).Error; err != nil {
			respondError(c, err, "Failed to fetch folders")
			return
		}
		c.JSON(http.StatusOK, gin.H{"folders": folders})
	}
}

// FileUpdateRequest edits file metadata
type FileUpdateRequest struct {
	AltText *string `json:"alt_text" binding:"omitempty,max=255"`
	Folder  *string `json:"folder"`
}

// UpdateFileHandler changes a file's alt text or folder
func UpdateFileHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req FileUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		var asset domain.FileAsset
		if err := db.First(&asset, id).Error; err != nil {
			notFound(c, "File")
			return
		}
		if req.AltText != nil {
			asset.AltText = strings.TrimSpace(*req.AltText)
		}
		if req.Folder != nil {
			asset.Folder = folderName(*req.Folder)
		}
		if err := db.Model(&asset).Select("alt_text", "folder").Updates(&asset).Error; err != nil {
			respondError(c, err, "Failed to update file")
			return
		}
		c.JSON(http.StatusOK, gin.H{"file": asset})
	}
}

// DeleteFileHandler removes a file record and its stored content
func DeleteFileHandler(db *gorm.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var asset domain.FileAsset
		if err := db.First(&asset, id).Error; err != nil {
			notFound(c, "File")
			return
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Delete(&asset).Error; err != nil {
				return err
			}
			if err := recordAudit(tx, c, "delete", "file", asset.ID, gin.H{"name": asset.OriginalName}); err != nil {
				return err
			}
			if err := os.Remove(filepath.Join(cfg.UploadDir, asset.StoredName)); err != nil && !os.IsNotExist(err) {
				return err
			}
			return nil
		})
		if err != nil {
			respondError(c, err, "Failed to delete file")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "File deleted"})
	}
}
