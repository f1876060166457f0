package api

import (
	"errors"   // Error inspection
	"net/http" // HTTP status codes
	"strconv"  // ID parsing
	"strings"  // Error text matching
	"time"     // Date query parsing

	"biosculpture/internal/domain" // Importing domain models
	"biosculpture/internal/utils"  // Utility functions

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/redis/go-redis/v9"  // Redis client
	"github.com/shopspring/decimal" // Money amounts
	"github.com/sirupsen/logrus"    // Logging library
	"gorm.io/gorm"                  // GORM ORM library
)

// currentUserID returns the authenticated user id set by the JWT middleware
func currentUserID(c *gin.Context) uint {
	return c.GetUint("userID")
}

// parseID reads a numeric path parameter, writing 400 when it is malformed
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return uint(id), true
}

// queryUint reads an optional numeric query parameter
func queryUint(c *gin.Context, key string) (uint, bool) {
	id, err := strconv.ParseUint(c.Query(key), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// queryTime parses an RFC3339 or YYYY-MM-DD query value
func queryTime(c *gin.Context, key string) (*time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, domain.Rule("%s must be a date (YYYY-MM-DD) or RFC3339 timestamp", key)
}

// queryEnd parses the upper bound of a date window as an exclusive instant.
// A date-only value covers that whole day.
func queryEnd(c *gin.Context, key string) (*time.Time, error) {
	t, err := queryTime(c, key)
	if err != nil || t == nil {
		return t, err
	}
	end := t.Add(time.Nanosecond)
	if c.Query(key) == t.Format("2006-01-02") {
		end = t.AddDate(0, 0, 1)
	}
	return &end, nil
}

// queryDecimal parses an optional decimal query value
func queryDecimal(c *gin.Context, key string) (*decimal.Decimal, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, domain.Rule("%s must be a number", key)
	}
	return &d, nil
}

// invalidRequest reports a body that failed to bind
func invalidRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "detail": err.Error()})
}

// notFound writes a 404 naming the missing entity
func notFound(c *gin.Context, what string) {
	c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
}

// isDuplicate reports whether err is a unique constraint violation
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, domain.ErrConflict) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unique constraint") || strings.Contains(s, "duplicate entry") || strings.Contains(s, "duplicate key")
}

// respondError maps domain and database errors onto HTTP statuses; msg is used for unexpected failures
func respondError(c *gin.Context, err error, msg string) {
	var rule *domain.RuleError
	switch {
	case errors.As(err, &rule):
		c.JSON(http.StatusBadRequest, gin.H{"error": rule.Message})
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case isDuplicate(err):
		c.JSON(http.StatusConflict, gin.H{"error": "A record with the same unique value already exists"})
	default:
		logrus.WithFields(logrus.Fields{
			"path":       c.FullPath(),
			"request_id": c.GetString("requestID"),
			"error":      err.Error(),
		}).Error(msg)
		body := gin.H{"error": msg}
		if c.GetBool("debugErrors") {
			body["detail"] = err.Error()
		}
		c.JSON(http.StatusInternalServerError, body)
	}
}

// debugErrors exposes internal error text in 500 responses outside production
func debugErrors(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("debugErrors", enabled)
		c.Next()
	}
}

// serveCached writes a cached listing and reports whether one was found
func serveCached(c *gin.Context, rdb *redis.Client, key string) bool {
	var cached map[string]any
	found, err := utils.GetCache(c.Request.Context(), rdb, key, &cached)
	if err != nil || !found {
		return false
	}
	cached["cached"] = true // Indicate response is from cache
	c.JSON(http.StatusOK, cached)
	return true
}

// storeCached caches a listing response for ttl
func storeCached(c *gin.Context, rdb *redis.Client, key string, data gin.H, ttl time.Duration) {
	data["cached"] = false // Indicate response is not from cache
	if err := utils.SetCache(c.Request.Context(), rdb, key, data, ttl); err != nil {
		logrus.WithFields(logrus.Fields{"key": key, "error": err.Error()}).Warn("Cache write failed")
	}
}

// invalidate drops every cached key under prefix
func invalidate(c *gin.Context, rdb *redis.Client, prefix string) {
	if err := utils.DeleteCachePrefix(c.Request.Context(), rdb, prefix); err != nil {
		logrus.WithFields(logrus.Fields{"prefix": prefix, "error": err.Error()}).Warn("Cache invalidation failed")
	}
}

// publicUser limits preloaded users to their public columns
func publicUser(db *gorm.DB) *gorm.DB {
	return db.Select("id", "name")
}

// likePattern wraps a search term for a LIKE clause
func likePattern(q string) string {
	return "%" + strings.TrimSpace(q) + "%"
}

// utc normalises an optional timestamp to UTC
func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
