package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Health probes the two dependencies a register cannot operate without: the
// session store and the job queue. Either one failing means opens and closes
// will start erroring, so the endpoint goes 503 and the till UI can warn the
// cashier before they count a drawer. Response carries per-dependency status,
// never connection details.
func Health(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		sessionStore := "connected"
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			sessionStore = "error"
		}

		jobQueue := "connected"
		if rdb.Ping(ctx).Err() != nil {
			jobQueue = "error"
		}

		status := http.StatusOK
		if sessionStore != "connected" || jobQueue != "connected" {
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"ok":    status == http.StatusOK,
			"db":    sessionStore,
			"redis": jobQueue,
		})
	}
}
