package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"backend/models"
	"backend/repository"
	"backend/services"
	"backend/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var errNoSession = errors.New("no valid session")

// GetSessionDetails resolves an Authorization header value (raw session id or
// "Bearer <session id>") to a live session and its user.
func GetSessionDetails(db *gorm.DB, authHeader string) (*models.Session, *models.User, error) {
	sessionID := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if sessionID == "" {
		return nil, nil, errNoSession
	}

	var session models.Session
	err := db.Where("session_id = ? AND expires_at > ?", sessionID, time.Now()).First(&session).Error
	if err != nil {
		return nil, nil, errNoSession
	}

	var user models.User
	if err := db.First(&user, session.UserID).Error; err != nil {
		return nil, nil, errNoSession
	}
	return &session, &user, nil
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// RequireRole wraps a handler so only sessions with one of the given roles get
// through.
func RequireRole(db *gorm.DB, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, user, err := GetSessionDetails(db, c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		for _, role := range roles {
			if user.Role == role {
				c.Set("user", user)
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
	}
}

// Login authenticates with email and password and opens a session.
// @Summary Password login
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body models.LoginRequest true "Credentials"
// @Success 200 {object} models.LoginResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /api/auth/login [post]
func Login(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.LoginRequest
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
			return
		}

		var user models.User
		err := db.Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(input.Email))).First(&user).Error
		if err != nil || !utils.ValidatePassword(user.Password, input.Password) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
			return
		}

		session := models.Session{
			UserID:    user.ID,
			SessionID: repository.NewSessionID(),
			HostName:  c.Request.Host,
			IPAddress: c.ClientIP(),
			CreatedAt: time.Now(),
			ExpiresAt: time.Now().Add(24 * time.Hour),
		}
		if err := db.Create(&session).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
			return
		}

		accessToken, err := utils.GenerateJWT(user.Email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
			return
		}

		c.JSON(http.StatusOK, models.LoginResponse{
			SessionID:   session.SessionID,
			AccessToken: accessToken,
			User:        user,
		})
	}
}

// Logout deletes the calling session.
// @Summary Logout
// @Tags Auth
// @Produce json
// @Success 200 {object} models.MessageResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /api/auth/logout [post]
func Logout(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, _, err := GetSessionDetails(db, c.GetHeader("Authorization"))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		if err := db.Delete(&models.Session{}, session.ID).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to end session"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
	}
}

// MagicOrderLogin redeems a single-use login token from an acceptance email and
// opens a project-scoped session.
// @Summary Redeem a magic login link
// @Tags Auth
// @Produce json
// @Param token query string true "Login token"
// @Success 200 {object} models.LoginResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /magic/order [get]
func MagicOrderLogin(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		plaintext := c.Query("token")
		if plaintext == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Token is required"})
			return
		}

		hash := repository.HashToken(plaintext)
		now := time.Now()

		var (
			login models.MagicLoginToken
			user  models.User
		)
		err := db.Transaction(func(tx *gorm.DB) error {
			// Single-use: claiming the row with a conditional update keeps
			// concurrent redemptions from both succeeding.
			res := tx.Model(&models.MagicLoginToken{}).
				Where("token_hash = ? AND used_at IS NULL AND expires_at > ?", hash, now).
				Update("used_at", now)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return services.ErrTokenNotFound
			}
			if err := tx.Where("token_hash = ?", hash).First(&login).Error; err != nil {
				return err
			}
			return tx.First(&user, login.UserID).Error
		})
		if err == services.ErrTokenNotFound {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired login link"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		session := models.Session{
			UserID:    user.ID,
			SessionID: repository.NewSessionID(),
			ProjectID: &login.ProjectID,
			HostName:  c.Request.Host,
			IPAddress: c.ClientIP(),
			CreatedAt: now,
			ExpiresAt: now.Add(24 * time.Hour),
		}
		if err := db.Create(&session).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
			return
		}

		accessToken, err := utils.GenerateJWT(user.Email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
			return
		}

		c.JSON(http.StatusOK, models.LoginResponse{
			SessionID:   session.SessionID,
			AccessToken: accessToken,
			User:        user,
		})
	}
}
