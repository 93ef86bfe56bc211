package handlers

import (
	"errors"
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

var errQuoteClaimed = errors.New("quote already claimed")

// AcceptQuote turns a signed quote into a live order, project, phase plan and
// payment schedule, provisioning the client account and a passwordless login.
// @Summary Accept a quote
// @Description Accepts a pending quote by id. Authorization: session of the quote owner (or admin/partner), or a magic token in the body/query. All provisioning writes are transactional.
// @Tags Quotes
// @Accept json
// @Produce json
// @Param quote_id path int true "Quote ID"
// @Param body body models.AcceptQuoteRequest false "Magic token"
// @Success 200 {object} models.AcceptQuoteResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /api/quotes/{quote_id}/accept [post]
func AcceptQuote(db *gorm.DB, emails *services.EmailService, push *services.PushService) gin.HandlerFunc {
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

		now := time.Now()
		switch {
		case quote.ArchivedAt != nil:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Quote archived"})
			return
		case quote.Status == models.QuoteStatusAccepted:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Quote already accepted"})
			return
		case quote.Status == models.QuoteStatusRejected:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Quote was rejected"})
			return
		case quote.ExpiresAt != nil && quote.ExpiresAt.Before(now):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Quote expired"})
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

		meta, err := services.LoadQuoteMetadata(db, quote.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		service, err := services.ResolveService(db, meta.ServiceID)
		if err == services.ErrNoService {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No service configured for custom projects", "field": "serviceId"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		referralCode, _ := c.Cookie("gt_ref")

		loginToken, err := repository.NewMagicToken()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		magicLink := utils.BaseURL() + "/magic/order?token=" + loginToken

		var (
			user    *models.User
			order   models.Order
			project models.Project
		)

		err = db.Transaction(func(tx *gorm.DB) error {
			// Claim the quote first: a conditional update serializes
			// concurrent accepts so at most one provisions.
			claim := map[string]interface{}{
				"status":      models.QuoteStatusAccepted,
				"accepted_at": now,
				"updated_at":  now,
			}
			if usedHash != "" {
				claim["magic_token"] = "used:" + usedHash
			}
			res := tx.Model(&models.Quote{}).
				Where("id = ? AND status IN ?", quote.ID,
					[]string{models.QuoteStatusDraft, models.QuoteStatusSent}).
				Updates(claim)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errQuoteClaimed
			}

			user, err = services.EnsureUser(tx, &request, referralCode)
			if err != nil {
				return err
			}

			order = models.Order{
				UserID:      user.ID,
				ServiceID:   service.ID,
				TotalAmount: quote.Amount,
				Currency:    quote.Currency,
				Status:      models.OrderStatusInProgress,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := tx.Create(&order).Error; err != nil {
				return err
			}

			title := meta.ProjectTitle
			if title == "" {
				title = "Custom project for " + request.FullName
			}
			description := meta.ProjectDescription
			if description == "" {
				description = quote.Scope
			}
			project = models.Project{
				OrderID:     order.ID,
				Title:       title,
				Description: description,
				Status:      models.PhaseGroupRequirements,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := tx.Create(&project).Error; err != nil {
				return err
			}

			if err := services.ProvisionProjectPlan(tx, project.ID, meta.Phases, meta.Payments); err != nil {
				return err
			}

			if err := tx.Model(&models.CustomProjectRequest{}).Where("id = ?", request.ID).
				Updates(map[string]interface{}{
					"order_id":   order.ID,
					"user_id":    user.ID,
					"status":     models.RequestStatusConvertedToOrder,
					"updated_at": now,
				}).Error; err != nil {
				return err
			}

			login := models.MagicLoginToken{
				TokenHash: repository.HashToken(loginToken),
				UserID:    user.ID,
				ProjectID: project.ID,
				ExpiresAt: now.Add(7 * 24 * time.Hour),
				CreatedAt: now,
			}
			if err := tx.Create(&login).Error; err != nil {
				return err
			}

			if err := services.SaveAuditLog(tx, &user.ID, models.ActionQuoteAccepted,
				models.TargetQuote, quote.ID, models.QuoteAcceptedData{
					OrderID:   order.ID,
					ProjectID: project.ID,
					MagicLink: magicLink,
				}); err != nil {
				return err
			}
			if err := services.SaveAuditLog(tx, &user.ID, models.ActionProjectPlan,
				models.TargetProject, project.ID, map[string]interface{}{
					"phases":          meta.Phases,
					"paymentSchedule": meta.Payments,
				}); err != nil {
				return err
			}
			if err := services.SaveAuditLog(tx, &user.ID, models.ActionUserActivated,
				models.TargetUser, user.ID, nil); err != nil {
				return err
			}

			return nil
		})
		if err == errQuoteClaimed {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Quote already accepted"})
			return
		}
		if err != nil {
			log.Printf("Quote %d acceptance failed: %v", quote.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		// Side channels run after commit and never undo an acceptance.
		if err := services.CreateReferralCommission(db, &order); err != nil {
			log.Printf("Failed to create referral commission for order %d: %v", order.ID, err)
		}
		if err := emails.SendWelcomeEmail(user, project.Title, magicLink); err != nil {
			log.Printf("Failed to send welcome email to %s: %v", user.Email, err)
		}
		if err := emails.SendQuoteAcceptedAdminEmail(quote, user, project.Title); err != nil {
			log.Printf("Failed to send admin notification for quote %d: %v", quote.ID, err)
		}
		if err := push.SendToTopic("admins", "Quote accepted",
			user.Name+" accepted quote "+strconv.Itoa(int(quote.ID)),
			map[string]string{"quote_id": strconv.Itoa(int(quote.ID)), "project_id": strconv.Itoa(int(project.ID))}); err != nil {
			log.Printf("Failed to push admin notification for quote %d: %v", quote.ID, err)
		}
		notifyAdmins(db, "Quote accepted: "+project.Title, utils.BaseURL()+"/admin/projects")

		c.JSON(http.StatusOK, models.AcceptQuoteResponse{
			ID:        quote.ID,
			Status:    models.QuoteStatusAccepted,
			OrderID:   order.ID,
			ProjectID: project.ID,
			MagicLink: magicLink,
		})
	}
}

// resolveAcceptTarget loads the quote by path id, falling back to token
// resolution when the path segment is not a numeric id. Writes the 404 itself.
func resolveAcceptTarget(c *gin.Context, db *gorm.DB, token string) (*models.Quote, bool) {
	idStr := c.Param("quote_id")
	if id, err := strconv.Atoi(idStr); err == nil {
		var quote models.Quote
		if err := db.First(&quote, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Quote not found"})
			return nil, false
		}
		return &quote, true
	}

	if token != "" {
		quote, _, err := services.ResolveQuoteToken(db, token)
		if err == nil {
			return quote, true
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "Quote not found"})
	return nil, false
}

// authorizeAccept enforces the access rules: a valid magic token, or a
// session belonging to the quote owner (by user id, email, or quote-scoped
// session), with admin/partner bypass. Returns the token hash when a token
// authorized the call so it can be marked spent.
func authorizeAccept(c *gin.Context, db *gorm.DB, quote *models.Quote, request *models.CustomProjectRequest, token string) (string, bool) {
	usedHash := ""
	if token != "" {
		resolved, hash, err := services.ResolveQuoteToken(db, token)
		if err == nil && resolved.ID == quote.ID {
			usedHash = hash
		}
	}
	if usedHash != "" {
		return usedHash, true
	}

	session, user, err := GetSessionDetails(db, c.GetHeader("Authorization"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return "", false
	}

	if user.Role == models.RoleAdmin || user.Role == models.RolePartner {
		return "", true
	}
	if request.UserID != nil && *request.UserID == user.ID {
		return "", true
	}
	if equalFold(user.Email, request.Email) {
		return "", true
	}
	if session.QuoteID != nil && *session.QuoteID == quote.ID {
		return "", true
	}

	c.JSON(http.StatusForbidden, gin.H{"error": "You are not allowed to act on this quote"})
	return "", false
}

// notifyAdmins inserts a notification row per admin user, best-effort.
func notifyAdmins(db *gorm.DB, message, action string) {
	var admins []models.User
	if err := db.Where("role = ?", models.RoleAdmin).Find(&admins).Error; err != nil {
		log.Printf("Failed to list admins for notification: %v", err)
		return
	}
	for _, admin := range admins {
		notif := models.Notification{
			UserID:    admin.ID,
			Message:   message,
			Status:    "unread",
			Action:    action,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		if err := db.Create(&notif).Error; err != nil {
			log.Printf("Failed to insert notification for user %d: %v", admin.ID, err)
		}
	}
}
