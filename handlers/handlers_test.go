package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"backend/models"
	"backend/repository"
	"backend/services"
	"backend/storage"
	"backend/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := storage.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func setupRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	emails := services.NewEmailService(db)

	r.POST("/api/requests", CreateRequest(db))
	r.POST("/api/quotes/:quote_id/accept", AcceptQuote(db, emails, nil))
	r.POST("/api/quotes/:quote_id/reject", RejectQuote(db))
	r.GET("/magic/order", MagicOrderLogin(db))
	r.POST("/api/auth/login", Login(db))
	r.POST("/api/auth/logout", Logout(db))

	admin := r.Group("/api", RequireRole(db, models.RoleAdmin, models.RolePartner))
	{
		admin.POST("/quotes", CreateQuote(db))
		admin.POST("/quotes/:quote_id/send", SendQuote(db, emails))
		admin.POST("/quotes/:quote_id/archive", ArchiveQuote(db))
		admin.PUT("/projects/:project_id/phases/:phase_id/status", UpdatePhaseStatus(db))
		admin.POST("/projects/:project_id/payments/:payment_id/paid", MarkPaymentPaid(db))
		admin.GET("/activity-logs", ListActivityLogs(db))
	}

	r.GET("/api/projects", ListProjects(db))
	r.GET("/api/projects/:project_id", GetProject(db))
	return r
}

func performJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// performJSONRequest posts an accept call carrying a referral cookie.
func performJSONRequest(t *testing.T, r *gin.Engine, quoteID uint, token, referralCode string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(map[string]string{"token": token}); err != nil {
		t.Fatalf("failed to encode body: %v", err)
	}
	req := httptest.NewRequest("POST", fmt.Sprintf("/api/quotes/%d/accept", quoteID), &buf)
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "gt_ref", Value: referralCode})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
}

func seedUser(t *testing.T, db *gorm.DB, email, role string) *models.User {
	t.Helper()
	hashed, err := utils.HashPassword("password123")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	user := models.User{
		Email:        email,
		Password:     hashed,
		Name:         email,
		Role:         role,
		ReferralCode: repository.GenerateReferralCode(),
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return &user
}

func seedSession(t *testing.T, db *gorm.DB, user *models.User) string {
	t.Helper()
	session := models.Session{
		UserID:    user.ID,
		SessionID: repository.NewSessionID(),
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := db.Create(&session).Error; err != nil {
		t.Fatalf("failed to seed session: %v", err)
	}
	return session.SessionID
}

func seedService(t *testing.T, db *gorm.DB) *models.Service {
	t.Helper()
	service := models.Service{
		Name:      "Custom Project",
		Slug:      "custom-project",
		Active:    true,
		CreatedAt: time.Now(),
	}
	if err := db.Create(&service).Error; err != nil {
		t.Fatalf("failed to seed service: %v", err)
	}
	return &service
}

func seedRequest(t *testing.T, db *gorm.DB, email string) *models.CustomProjectRequest {
	t.Helper()
	request := models.CustomProjectRequest{
		FullName:  "Test Client",
		Email:     email,
		Details:   "A website",
		Status:    models.RequestStatusNew,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.Create(&request).Error; err != nil {
		t.Fatalf("failed to seed request: %v", err)
	}
	return &request
}

// seedSentQuote seeds a SENT quote with a live token and returns the quote and
// the token plaintext.
func seedSentQuote(t *testing.T, db *gorm.DB, requestID uint, amount float64) (*models.Quote, string) {
	t.Helper()
	plaintext, err := repository.NewMagicToken()
	if err != nil {
		t.Fatalf("failed to mint token: %v", err)
	}
	hash := repository.HashToken(plaintext)
	expires := time.Now().Add(14 * 24 * time.Hour)
	quote := models.Quote{
		CustomRequestID: requestID,
		Amount:          amount,
		Currency:        "USD",
		Scope:           "Build the thing",
		Status:          models.QuoteStatusSent,
		MagicToken:      &hash,
		ExpiresAt:       &expires,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	if err := db.Create(&quote).Error; err != nil {
		t.Fatalf("failed to seed quote: %v", err)
	}
	return &quote, plaintext
}

func seedQuoteMetadata(t *testing.T, db *gorm.DB, quoteID uint, blob string) {
	t.Helper()
	entry := models.AuditLog{
		Action:     models.ActionQuoteMeta,
		TargetType: models.TargetQuote,
		TargetID:   quoteID,
		Data:       blob,
		CreatedAt:  time.Now(),
	}
	if err := db.Create(&entry).Error; err != nil {
		t.Fatalf("failed to seed metadata: %v", err)
	}
}

func countAudit(t *testing.T, db *gorm.DB, action string, targetID uint) int64 {
	t.Helper()
	var count int64
	db.Model(&models.AuditLog{}).Where("action = ? AND target_id = ?", action, targetID).Count(&count)
	return count
}
