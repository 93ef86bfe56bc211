package handlers

import (
	"net/http"
	"strconv"

	"backend/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ListActivityLogs returns audit entries, newest first, filterable by action
// and target.
// @Summary List audit log entries
// @Tags Audit
// @Produce json
// @Param action query string false "Action filter"
// @Param target_type query string false "Target type filter"
// @Param target_id query int false "Target id filter"
// @Param limit query int false "Max rows (default 100)"
// @Success 200 {array} models.AuditLog
// @Router /api/activity-logs [get]
func ListActivityLogs(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 100
		if raw := c.Query("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 1000 {
				limit = n
			}
		}

		query := db.Order("created_at DESC").Limit(limit)
		if action := c.Query("action"); action != "" {
			query = query.Where("action = ?", action)
		}
		if targetType := c.Query("target_type"); targetType != "" {
			query = query.Where("target_type = ?", targetType)
		}
		if targetID := c.Query("target_id"); targetID != "" {
			query = query.Where("target_id = ?", targetID)
		}

		var entries []models.AuditLog
		if err := query.Find(&entries).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, entries)
	}
}
