package api

import (
	"context"  // Ping timeouts
	"net/http" // HTTP status codes
	"time"     // Ping timeouts

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"gorm.io/gorm"                 // GORM ORM library
)

// HealthHandler reports database and cache reachability; only the database is fatal
func HealthHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		resp := gin.H{"status": "ok", "database": "ok", "redis": "disabled"}
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			status = http.StatusServiceUnavailable
			resp["status"] = "unavailable"
			resp["database"] = err.Error()
		}
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				resp["redis"] = err.Error()
			} else {
				resp["redis"] = "ok"
			}
		}
		c.JSON(status, resp)
	}
}
