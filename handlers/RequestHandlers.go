package handlers

import (
	"net/http"
	"strings"
	"time"

	"backend/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CreateRequest is the public intake endpoint prospective clients submit.
// @Summary Submit a custom project request
// @Tags Requests
// @Accept json
// @Produce json
// @Param body body models.CreateRequestInput true "Request"
// @Success 201 {object} models.CustomProjectRequest
// @Failure 400 {object} models.ErrorResponse
// @Router /api/requests [post]
func CreateRequest(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.CreateRequestInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
			return
		}

		request := models.CustomProjectRequest{
			FullName:  strings.TrimSpace(input.FullName),
			Email:     strings.ToLower(strings.TrimSpace(input.Email)),
			Details:   input.Details,
			Status:    models.RequestStatusNew,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		if err := db.Create(&request).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, request)
	}
}

// ListRequests returns intake requests, optionally filtered by status.
// @Summary List custom project requests
// @Tags Requests
// @Produce json
// @Param status query string false "Status filter"
// @Success 200 {array} models.CustomProjectRequest
// @Router /api/requests [get]
func ListRequests(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := db.Order("created_at DESC")
		if status := c.Query("status"); status != "" {
			query = query.Where("status = ?", status)
		}
		var requests []models.CustomProjectRequest
		if err := query.Find(&requests).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, requests)
	}
}

// GetRequest returns one intake request with its quotes.
// @Summary Get a custom project request
// @Tags Requests
// @Produce json
// @Param request_id path int true "Request ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} models.ErrorResponse
// @Router /api/requests/{request_id} [get]
func GetRequest(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request models.CustomProjectRequest
		if err := db.First(&request, c.Param("request_id")).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Request not found"})
			return
		}

		var quotes []models.Quote
		db.Where("custom_request_id = ?", request.ID).Order("created_at DESC").Find(&quotes)

		c.JSON(http.StatusOK, gin.H{"request": request, "quotes": quotes})
	}
}
