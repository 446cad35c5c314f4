package dashboard

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/timedock/internal/audit"
	"github.com/zulandar/timedock/internal/store"
)

// registerRoutes sets up all operator API routes on the Gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	router.GET("/healthz", handleHealth)
	router.GET("/api/status", handleStatus(opts))
	router.GET("/api/jobs", handleJobs(opts))
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// handleStatus reports session state and queue depths.
func handleStatus(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		samples, err := store.CountSamples(opts.DB)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		shots, err := store.CountScreenshots(opts.DB)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		status := gin.H{
			"pending_samples":     samples,
			"pending_screenshots": shots,
		}
		if opts.Controller != nil {
			status["tracking"] = opts.Controller.IsRunning()
			if startedAt := opts.Controller.StartedAt(); !startedAt.IsZero() {
				status["started_at"] = startedAt.Format(time.RFC3339)
			}
		}
		if opts.Engine != nil {
			status["delivery_paused"] = opts.Engine.Paused()
		}
		c.JSON(http.StatusOK, status)
	}
}

// maxJobsPageSize bounds one history page so the endpoint can't be asked
// for a full-table dump.
const maxJobsPageSize = 500

// handleJobs returns paginated sync-job history, newest first.
func handleJobs(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		if limit > maxJobsPageSize {
			limit = maxJobsPageSize
		}
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

		jobs, total, err := opts.Trail.List(audit.Filter{
			Queue:  c.Query("queue"),
			Status: c.Query("status"),
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"jobs":   jobs,
			"total":  total,
			"limit":  limit,
			"offset": offset,
		})
	}
}
