package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"

	database "github.com/Armour007/docproc-backend/internal"
	"github.com/Armour007/docproc-backend/internal/processor"
)

// ListDocumentTypes returns the classification catalog and accepted upload formats.
func ListDocumentTypes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"documentTypes":      processor.DocumentTypes,
		"acceptedMimeTypes":  processor.AcceptedMIMETypes,
		"acceptedExtensions": processor.AcceptedExtensions,
		"operations":         processor.Operations(),
	})
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness pings the database and, when configured, Redis.
func Readiness(rc *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		checks := gin.H{}
		ready := true
		if database.DB == nil {
			checks["database"] = "not connected"
			ready = false
		} else if err := database.DB.PingContext(ctx); err != nil {
			checks["database"] = err.Error()
			ready = false
		} else {
			checks["database"] = "ok"
		}
		if rc != nil {
			if err := rc.Ping(ctx).Err(); err != nil {
				checks["redis"] = err.Error()
				ready = false
			} else {
				checks["redis"] = "ok"
			}
		}
		if !ready {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "checks": checks})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "checks": checks})
	}
}
