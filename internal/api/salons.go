package api

import (
	"errors"   // Error inspection
	"math"     // Distance rounding
	"net/http" // HTTP status codes
	"sort"     // Distance ordering
	"strconv"  // Coordinate parsing
	"strings"  // String manipulation
	"time"     // Approval and geocode timestamps

	"biosculpture/internal/domain"  // Importing domain models
	"biosculpture/internal/geocode" // Address lookup
	"biosculpture/internal/service" // Notifications
	"biosculpture/internal/utils"   // Utility functions

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

// SalonRequest holds salon fields; nil leaves a field unchanged
type SalonRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=191"`
	Description *string `json:"description"`
	Address     *string `json:"address" binding:"omitempty,max=255"`
	City        *string `json:"city" binding:"omitempty,max=100"`
	State       *string `json:"state" binding:"omitempty,max=100"`
	PostalCode  *string `json:"postal_code" binding:"omitempty,max=20"`
	Country     *string `json:"country" binding:"omitempty,max=100"`
	Phone       *string `json:"phone" binding:"omitempty,max=50"`
	Email       *string `json:"email" binding:"omitempty,max=191"`
	Website     *string `json:"website" binding:"omitempty,max=255"`
	Instagram   *string `json:"instagram" binding:"omitempty,max=191"`
}

// apply copies the set fields onto s and reports whether the address changed
func (r *SalonRequest) apply(s *domain.Salon) (bool, error) {
	before := s.FullAddress()
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	set(&s.Name, r.Name)
	set(&s.Description, r.Description)
	set(&s.Address, r.Address)
	set(&s.City, r.City)
	set(&s.State, r.State)
	set(&s.PostalCode, r.PostalCode)
	set(&s.Country, r.Country)
	set(&s.Phone, r.Phone)
	set(&s.Email, r.Email)
	set(&s.Website, r.Website)
	set(&s.Instagram, r.Instagram)
	if s.Name == "" || s.Address == "" {
		return false, domain.Rule("name and address are required")
	}
	return s.FullAddress() != before, nil
}

// locate geocodes the salon address, leaving the coordinates empty when the lookup fails
func locate(c *gin.Context, geo geocode.Geocoder, s *domain.Salon) bool {
	loc, err := geo.Geocode(c.Request.Context(), s.FullAddress())
	if err != nil {
		if !errors.Is(err, geocode.ErrDisabled) {
			logrus.WithFields(logrus.Fields{
				"salon_id": s.ID,
				"address":  s.FullAddress(),
				"error":    err.Error(),
			}).Warn("Salon geocoding failed")
		}
		s.Latitude, s.Longitude, s.GeocodedAt = nil, nil, nil
		return false
	}
	now := time.Now().UTC()
	s.Latitude, s.Longitude, s.GeocodedAt = &loc.Latitude, &loc.Longitude, &now
	return true
}

// SubmitSalonHandler lists a new salon for approval
func SubmitSalonHandler(db *gorm.DB, geo geocode.Geocoder) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SalonRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		salon := domain.Salon{Status: domain.StatusPending, SubmittedByID: currentUserID(c)}
		if _, err := req.apply(&salon); err != nil {
			respondError(c, err, "Failed to submit salon")
			return
		}
		geocoded := locate(c, geo, &salon)
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&salon).Error; err != nil {
				return err
			}
			_, err := service.NotifyAdmins(tx, service.NotifySalon, "New salon submitted",
				salon.Name+" is waiting for approval.", "/admin/salons")
			return err
		})
		if err != nil {
			respondError(c, err, "Failed to submit salon")
			return
		}
		c.JSON(http.StatusCreated, gin.H{"salon": salon, "geocoded": geocoded})
	}
}

// ListMySalonsHandler returns salons the caller submitted
func ListMySalonsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var salons []domain.Salon
		if err := db.Where("submitted_by_id = ?", currentUserID(c)).Order("created_at desc").Find(&salons).Error; err != nil {
			respondError(c, err, "Failed to fetch salons")
			return
		}
		c.JSON(http.StatusOK, gin.H{"salons": salons})
	}
}

// UpdateMySalonHandler edits the caller's salon and returns it to moderation
func UpdateMySalonHandler(db *gorm.DB, geo geocode.Geocoder) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req SalonRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		var salon domain.Salon
		if err := db.Where("id = ? AND submitted_by_id = ?", id, currentUserID(c)).First(&salon).Error; err != nil {
			notFound(c, "Salon")
			return
		}
		moved, err := req.apply(&salon)
		if err != nil {
			respondError(c, err, "Failed to update salon")
			return
		}
		if moved || salon.Latitude == nil {
			locate(c, geo, &salon)
		}
		salon.Status = domain.StatusPending
		salon.RejectionReason = ""
		salon.ApprovedAt = nil
		if err := db.Save(&salon).Error; err != nil {
			respondError(c, err, "Failed to update salon")
			return
		}
		c.JSON(http.StatusOK, gin.H{"salon": salon})
	}
}

// nearbySalon is a salon with its distance from the search point
type nearbySalon struct {
	domain.Salon
	DistanceKm float64 `json:"distance_km"`
}

// ListSalonsHandler returns approved salons, optionally within radius_km of lat,lng ordered by distance
func ListSalonsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := utils.ParsePage(c)
		query := db.Model(&domain.Salon{}).Where("status = ?", domain.StatusApproved)
		if city := c.Query("city"); city != "" {
			query = query.Where("LOWER(city) = ?", strings.ToLower(city))
		}
		if country := c.Query("country"); country != "" {
			query = query.Where("LOWER(country) = ?", strings.ToLower(country))
		}
		if q := c.Query("q"); q != "" {
			query = query.Where("name LIKE ? OR address LIKE ?", likePattern(q), likePattern(q))
		}

		if c.Query("lat") == "" && c.Query("lng") == "" {
			var total int64
			if err := query.Count(&total).Error; err != nil {
				respondError(c, err, "Failed to count salons")
				return
			}
			var salons []domain.Salon
			if err := query.Order("name, id").Offset(p.Offset()).Limit(p.PageSize).Find(&salons).Error; err != nil {
				respondError(c, err, "Failed to fetch salons")
				return
			}
			c.JSON(http.StatusOK, utils.Paginated("salons", salons, p, total))
			return
		}

		lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
		lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
		if errLat != nil || errLng != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng must be valid coordinates"})
			return
		}
		radius := 50.0
		if v := c.Query("radius_km"); v != "" {
			r, err := strconv.ParseFloat(v, 64)
			if err != nil || r <= 0 || r > 500 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "radius_km must be between 0 and 500"})
				return
			}
			radius = r
		}
		box := geocode.BoundingBox(lat, lng, radius)
		lngWindow := db.Where("longitude BETWEEN ? AND ?", box.Lng[0][0], box.Lng[0][1])
		for _, r := range box.Lng[1:] {
			lngWindow = lngWindow.Or("longitude BETWEEN ? AND ?", r[0], r[1])
		}
		var candidates []domain.Salon
		if err := query.Where("latitude BETWEEN ? AND ?", box.MinLat, box.MaxLat).Where(lngWindow).
			Find(&candidates).Error; err != nil {
			respondError(c, err, "Failed to fetch salons")
			return
		}
		// The box over-selects at the corners; filter by true distance
		nearby := make([]nearbySalon, 0, len(candidates))
		for _, s := range candidates {
			d := geocode.DistanceKm(lat, lng, *s.Latitude, *s.Longitude)
			if d <= radius {
				nearby = append(nearby, nearbySalon{Salon: s, DistanceKm: math.Round(d*100) / 100})
			}
		}
		sort.SliceStable(nearby, func(i, j int) bool { return nearby[i].DistanceKm < nearby[j].DistanceKm })
		total := int64(len(nearby))
		start := p.Offset()
		if start > len(nearby) {
			start = len(nearby)
		}
		end := start + p.PageSize
		if end > len(nearby) {
			end = len(nearby)
		}
		resp := utils.Paginated("salons", nearby[start:end], p, total)
		resp["radius_km"] = radius
		c.JSON(http.StatusOK, resp)
	}
}

// GetSalonHandler returns one approved salon
func GetSalonHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var salon domain.Salon
		if err := db.Where("id = ? AND status = ?", id, domain.StatusApproved).First(&salon).Error; err != nil {
			notFound(c, "Salon")
			return
		}
		c.JSON(http.StatusOK, gin.H{"salon": salon})
	}
}

// AdminListSalonsHandler returns salons of any status
func AdminListSalonsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := utils.ParsePage(c)
		query := db.Model(&domain.Salon{})
		if status := c.Query("status"); status != "" {
			query = query.Where("status = ?", strings.ToUpper(status))
		}
		if q := c.Query("q"); q != "" {
			query = query.Where("name LIKE ? OR city LIKE ?", likePattern(q), likePattern(q))
		}
		var total int64
		if err := query.Count(&total).Error; err != nil {
			respondError(c, err, "Failed to count salons")
			return
		}
		var salons []domain.Salon
		if err := query.Order("created_at desc, id desc").Offset(p.Offset()).Limit(p.PageSize).Find(&salons).Error; err != nil {
			respondError(c, err, "Failed to fetch salons")
			return
		}
		c.JSON(http.StatusOK, utils.Paginated("salons", salons, p, total))
	}
}

// UpdateSalonStatusHandler approves or rejects a salon; rejections need a reason
func UpdateSalonStatusHandler(db *gorm.DB) gin.HandlerFunc {
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
		reason := strings.TrimSpace(req.Reason)
		switch status {
		case domain.StatusPending, domain.StatusApproved:
			reason = ""
		case domain.StatusRejected:
			if reason == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "a reason is required to reject a salon"})
				return
			}
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "status must be PENDING, APPROVED or REJECTED"})
			return
		}
		var salon domain.Salon
		if err := db.First(&salon, id).Error; err != nil {
			notFound(c, "Salon")
			return
		}
		previous := salon.Status
		salon.Status = status
		salon.RejectionReason = reason
		if status == domain.StatusApproved {
			now := time.Now().UTC()
			salon.ApprovedAt = &now
		} else {
			salon.ApprovedAt = nil
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&salon).Select("status", "rejection_reason", "approved_at").Updates(&salon).Error; err != nil {
				return err
			}
			if status != previous && status != domain.StatusPending {
				msg := salon.Name + " is now listed in the salon directory."
				if status == domain.StatusRejected {
					msg = salon.Name + " was not approved: " + reason
				}
				if err := service.Notify(tx, salon.SubmittedByID, service.NotifySalon,
					"Salon "+strings.ToLower(status), msg, "/account/salons"); err != nil {
					return err
				}
			}
			return recordAudit(tx, c, "update_status", "salon", salon.ID, gin.H{"from": previous, "to": status, "reason": reason})
		})
		if err != nil {
			respondError(c, err, "Failed to update salon")
			return
		}
		logrus.WithFields(logrus.Fields{"salon_id": salon.ID, "status": status}).Info("Salon moderated")
		c.JSON(http.StatusOK, gin.H{"salon": salon})
	}
}

// GeocodeSalonHandler retries the address lookup for a salon
func GeocodeSalonHandler(db *gorm.DB, geo geocode.Geocoder) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var salon domain.Salon
		if err := db.First(&salon, id).Error; err != nil {
			notFound(c, "Salon")
			return
		}
		loc, err := geo.Geocode(c.Request.Context(), salon.FullAddress())
		switch {
		case errors.Is(err, geocode.ErrDisabled):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Geocoding is not configured"})
			return
		case errors.Is(err, geocode.ErrNoResults):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Address could not be geocoded"})
			return
		case err != nil:
			logrus.WithFields(logrus.Fields{"salon_id": salon.ID, "error": err.Error()}).Warn("Salon geocoding failed")
			c.JSON(http.StatusBadGateway, gin.H{"error": "Geocoding service failed"})
			return
		}
		now := time.Now().UTC()
		salon.Latitude, salon.Longitude, salon.GeocodedAt = &loc.Latitude, &loc.Longitude, &now
		if err := db.Model(&salon).Select("latitude", "longitude", "geocoded_at").Updates(&salon).Error; err != nil {
			respondError(c, err, "Failed to save coordinates")
			return
		}
		c.JSON(http.StatusOK, gin.H{"salon": salon, "formatted_address": loc.FormattedAddress})
	}
}

// DeleteSalonHandler removes a salon
func DeleteSalonHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var salon domain.Salon
		if err := db.First(&salon, id).Error; err != nil {
			notFound(c, "Salon")
			return
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Delete(&salon).Error; err != nil {
				return err
			}
			return recordAudit(tx, c, "delete", "salon", id, gin.H{"name": salon.Name})
		})
		if err != nil {
			respondError(c, err, "Failed to delete salon")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Salon deleted"})
	}
}
