package handlers

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"backend/models"
	"backend/repository"
	"backend/services"
	"backend/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CreateQuote drafts a quote for an intake request. The metadata blob, when
// present, is persisted as a QUOTE_META audit row so later edits keep history.
// @Summary Create a quote
// @Tags Quotes
// @Accept json
// @Produce json
// @Param body body models.CreateQuoteRequest true "Quote"
// @Success 201 {object} models.Quote
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/quotes [post]
func CreateQuote(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.CreateQuoteRequest
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
			return
		}

		var request models.CustomProjectRequest
		if err := db.First(&request, input.CustomRequestID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Request not found"})
			return
		}

		currency := input.Currency
		if currency == "" {
			currency = "USD"
		}

		quote := models.Quote{
			CustomRequestID: request.ID,
			Amount:          input.Amount,
			Currency:        currency,
			Scope:           input.Scope,
			Status:          models.QuoteStatusDraft,
			CreatedAt:       time.Now(),
			UpdatedAt:       time.Now(),
		}

		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&quote).Error; err != nil {
				return err
			}
			if input.Metadata != nil {
				if err := services.SaveAuditLog(tx, actorIDFromContext(c, db), models.ActionQuoteMeta,
					models.TargetQuote, quote.ID, input.Metadata); err != nil {
					return err
				}
			}
			return tx.Model(&models.CustomProjectRequest{}).Where("id = ?", request.ID).
				Updates(map[string]interface{}{"status": models.RequestStatusQuoted, "updated_at": time.Now()}).Error
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusCreated, quote)
	}
}

// UpdateQuoteMetadata appends a fresh QUOTE_META audit row; the latest row wins
// at acceptance time, so this never mutates earlier plans.
// @Summary Replace quote plan metadata
// @Tags Quotes
// @Accept json
// @Produce json
// @Param quote_id path int true "Quote ID"
// @Success 200 {object} models.MessageResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/quotes/{quote_id}/metadata [put]
func UpdateQuoteMetadata(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var quote models.Quote
		if err := db.First(&quote, c.Param("quote_id")).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Quote not found"})
			return
		}

		var metadata map[string]interface{}
		if err := c.ShouldBindJSON(&metadata); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
			return
		}

		if err := services.SaveAuditLog(db, actorIDFromContext(c, db), models.ActionQuoteMeta,
			models.TargetQuote, quote.ID, metadata); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Metadata updated"})
	}
}

// SendQuote mints a fresh accept token, stores only its hash on the quote, and
// emails the client the accept link. Resending rotates the token.
// @Summary Send a quote to the client
// @Tags Quotes
// @Accept json
// @Produce json
// @Param quote_id path int true "Quote ID"
// @Param body body models.SendQuoteRequest false "Delivery options"
// @Success 200 {object} models.Quote
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/quotes/{quote_id}/send [post]
func SendQuote(db *gorm.DB, emails *services.EmailService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var quote models.Quote
		if err := db.First(&quote, c.Param("quote_id")).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Quote not found"})
			return
		}
		if quote.Status != models.QuoteStatusDraft && quote.Status != models.QuoteStatusSent {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Quote can no longer be sent"})
			return
		}
		if quote.ArchivedAt != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Quote archived"})
			return
		}

		var input models.SendQuoteRequest
		_ = c.ShouldBindJSON(&input)
		if input.ExpiresInDays <= 0 {
			input.ExpiresInDays = 14
		}

		var request models.CustomProjectRequest
		if err := db.First(&request, quote.CustomRequestID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Request behind this quote not found"})
			return
		}

		plaintext, err := repository.NewMagicToken()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		hash := repository.HashToken(plaintext)
		expiresAt := time.Now().Add(time.Duration(input.ExpiresInDays) * 24 * time.Hour)

		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.Quote{}).Where("id = ?", quote.ID).
				Updates(map[string]interface{}{
					"status":      models.QuoteStatusSent,
					"magic_token": hash,
					"expires_at":  expiresAt,
					"updated_at":  time.Now(),
				}).Error; err != nil {
				return err
			}
			return services.SaveAuditLog(tx, actorIDFromContext(c, db), models.ActionQuoteSent,
				models.TargetQuote, quote.ID, models.QuoteSentData{
					TokenHash: hash,
					ExpiresAt: expiresAt,
					SentTo:    request.Email,
				})
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		acceptLink := utils.BaseURL() + "/quotes/" + strconv.Itoa(int(quote.ID)) + "/accept?token=" + plaintext
		if err := emails.SendQuoteEmail(&quote, &request, acceptLink); err != nil {
			log.Printf("Failed to email quote %d to %s: %v", quote.ID, request.Email, err)
		}

		db.First(&quote, quote.ID)
		c.JSON(http.StatusOK, quote)
	}
}

// GetQuote returns one quote.
// @Summary Get a quote
// @Tags Quotes
// @Produce json
// @Param quote_id path int true "Quote ID"
// @Success 200 {object} models.Quote
// @Failure 404 {object} models.ErrorResponse
// @Router /api/quotes/{quote_id} [get]
func GetQuote(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var quote models.Quote
		if err := db.First(&quote, c.Param("quote_id")).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Quote not found"})
			return
		}
		c.JSON(http.StatusOK, quote)
	}
}

// ListQuotes returns quotes, optionally filtered by status, newest first.
// @Summary List quotes
// @Tags Quotes
// @Produce json
// @Param status query string false "Status filter"
// @Success 200 {array} models.Quote
// @Router /api/quotes [get]
func ListQuotes(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := db.Order("created_at DESC")
		if status := c.Query("status"); status != "" {
			query = query.Where("status = ?", status)
		}
		var quotes []models.Quote
		if err := query.Find(&quotes).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, quotes)
	}
}

// RejectQuote marks a pending quote REJECTED. Authorization mirrors accept:
// magic token, owner session, or admin/partner.
// @Summary Reject a quote
// @Tags Quotes
// @Accept json
// @Produce json
// @Param quote_id path int true "Quote ID"
// @Param body body models.AcceptQuoteRequest false "Magic token"
// @Success 200 {object} models.Quote
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/quotes/{quote_id}/reject [post]
func RejectQuote(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body models.AcceptQuoteRequest
		_ = c.ShouldBindJSON(&body)
		token := body.Token
		if token == "" {
			token = c.Query("token")
		}

		quote, ok := resolveAcceptTarget(c, db, token)
		if !ok {
			return
		}
		if quote.ArchivedAt != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Quote archived"})
			return
		}
		if !models.QuoteCanTransition(quote.Status, models.QuoteStatusRejected) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Quote can no longer be rejected"})
			return
		}

		var request models.CustomProjectRequest
		if err := db.First(&request, quote.CustomRequestID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Request behind this quote not found"})
			return
		}

		usedHash, ok := authorizeAccept(c, db, quote, &request, token)
		if !ok {
			return
		}

		now := time.Now()
		err := db.Transaction(func(tx *gorm.DB) error {
			updates := map[string]interface{}{
				"status":     models.QuoteStatusRejected,
				"updated_at": now,
			}
			if usedHash != "" {
				updates["magic_token"] = "used:" + usedHash
			}
			res := tx.Model(&models.Quote{}).
				Where("id = ? AND status IN ?", quote.ID,
					[]string{models.QuoteStatusDraft, models.QuoteStatusSent}).
				Updates(updates)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errQuoteClaimed
			}
			return services.SaveAuditLog(tx, nil, models.ActionQuoteRejected,
				models.TargetQuote, quote.ID, nil)
		})
		if err == errQuoteClaimed {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Quote already settled"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		db.First(quote, quote.ID)
		c.JSON(http.StatusOK, quote)
	}
}

// ArchiveQuote soft-retires a quote; archived quotes cannot be resolved by
// token or accepted.
// @Summary Archive a quote
// @Tags Quotes
// @Produce json
// @Param quote_id path int true "Quote ID"
// @Success 200 {object} models.MessageResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/quotes/{quote_id}/archive [post]
func ArchiveQuote(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var quote models.Quote
		if err := db.First(&quote, c.Param("quote_id")).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Quote not found"})
			return
		}
		if err := db.Model(&quote).Updates(map[string]interface{}{
			"archived_at": time.Now(),
			"updated_at":  time.Now(),
		}).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Quote archived"})
	}
}

// actorIDFromContext extracts the acting user's id from the session header, nil
// when anonymous.
func actorIDFromContext(c *gin.Context, db *gorm.DB) *uint {
	_, user, err := GetSessionDetails(db, c.GetHeader("Authorization"))
	if err != nil {
		return nil
	}
	return &user.ID
}
