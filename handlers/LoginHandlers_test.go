package handlers

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"backend/models"
	"backend/repository"
)

func TestLoginAndLogout(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)

	seedUser(t, db, "user@example.com", models.RoleClient)

	w := performJSON(t, r, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "User@Example.com",
		"password": "password123",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", w.Code, w.Body.String())
	}

	var resp models.LoginResponse
	decodeBody(t, w, &resp)
	if resp.SessionID == "" || resp.AccessToken == "" {
		t.Fatalf("expected session and access token, got %+v", resp)
	}

	w = performJSON(t, r, http.MethodPost, "/api/auth/logout", nil,
		map[string]string{"Authorization": resp.SessionID})
	if w.Code != http.StatusOK {
		t.Fatalf("logout failed: %d %s", w.Code, w.Body.String())
	}

	// The session is gone.
	w = performJSON(t, r, http.MethodPost, "/api/auth/logout", nil,
		map[string]string{"Authorization": resp.SessionID})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("reusing a deleted session should 401, got %d", w.Code)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)

	seedUser(t, db, "user@example.com", models.RoleClient)

	w := performJSON(t, r, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "user@example.com",
		"password": "nope",
	}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestMagicOrderLoginIsSingleUse(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)

	user := seedUser(t, db, "client@example.com", models.RoleClient)

	plaintext, err := repository.NewMagicToken()
	if err != nil {
		t.Fatalf("failed to mint token: %v", err)
	}
	login := models.MagicLoginToken{
		TokenHash: repository.HashToken(plaintext),
		UserID:    user.ID,
		ProjectID: 42,
		ExpiresAt: time.Now().Add(time.Hour),
		CreatedAt: time.Now(),
	}
	if err := db.Create(&login).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	w := performJSON(t, r, http.MethodGet, "/magic/order?token="+plaintext, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("redemption failed: %d %s", w.Code, w.Body.String())
	}

	var resp models.LoginResponse
	decodeBody(t, w, &resp)
	if resp.User.ID != user.ID {
		t.Errorf("session should belong to the token's user, got %d", resp.User.ID)
	}

	// The created session is scoped to the token's project.
	var session models.Session
	if err := db.Where("session_id = ?", resp.SessionID).First(&session).Error; err != nil {
		t.Fatalf("session row missing: %v", err)
	}
	if session.ProjectID == nil || *session.ProjectID != 42 {
		t.Errorf("session should be project-scoped, got %v", session.ProjectID)
	}

	// Second redemption fails.
	w = performJSON(t, r, http.MethodGet, "/magic/order?token="+plaintext, nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("second redemption should 401, got %d", w.Code)
	}
}

func TestMagicOrderLoginExpired(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)

	user := seedUser(t, db, "client@example.com", models.RoleClient)

	plaintext, _ := repository.NewMagicToken()
	login := models.MagicLoginToken{
		TokenHash: repository.HashToken(plaintext),
		UserID:    user.ID,
		ProjectID: 1,
		ExpiresAt: time.Now().Add(-time.Minute),
		CreatedAt: time.Now().Add(-time.Hour),
	}
	if err := db.Create(&login).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	w := performJSON(t, r, http.MethodGet, "/magic/order?token="+plaintext, nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expired token should 401, got %d", w.Code)
	}
}

func TestMagicSessionScopesProjectAccess(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)

	user := seedUser(t, db, "client@example.com", models.RoleClient)

	mine := models.Project{OrderID: 1, Title: "Mine", Status: models.PhaseGroupRequirements,
		CreatedAt: time.Now(), UpdatedAt: time.Now()}
	other := models.Project{OrderID: 2, Title: "Other", Status: models.PhaseGroupRequirements,
		CreatedAt: time.Now(), UpdatedAt: time.Now()}
	for _, p := range []*models.Project{&mine, &other} {
		if err := db.Create(p).Error; err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	session := models.Session{
		UserID:    user.ID,
		SessionID: repository.NewSessionID(),
		ProjectID: &mine.ID,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := db.Create(&session).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	w := performJSON(t, r, http.MethodGet,
		fmt.Sprintf("/api/projects/%d", mine.ID), nil,
		map[string]string{"Authorization": session.SessionID})
	if w.Code != http.StatusOK {
		t.Fatalf("scoped project should be visible: %d %s", w.Code, w.Body.String())
	}

	w = performJSON(t, r, http.MethodGet,
		fmt.Sprintf("/api/projects/%d", other.ID), nil,
		map[string]string{"Authorization": session.SessionID})
	if w.Code != http.StatusForbidden {
		t.Fatalf("out-of-scope project should 403, got %d", w.Code)
	}
}
