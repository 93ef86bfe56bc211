package services

import (
	"testing"
	"time"

	"backend/models"
)

func TestEnsureUserCreatesClient(t *testing.T) {
	db := setupTestDB(t)

	request := models.CustomProjectRequest{
		FullName:  "Ada Lovelace",
		Email:     "Ada@Example.COM",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.Create(&request).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	user, err := EnsureUser(db, &request, "")
	if err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if user.Email != "ada@example.com" {
		t.Errorf("email should be lowercased, got %q", user.Email)
	}
	if user.Role != models.RoleClient {
		t.Errorf("expected role CLIENT, got %q", user.Role)
	}
	if user.ReferralCode == "" {
		t.Error("new users should get a referral code")
	}
	if user.Password == "" {
		t.Error("new users should get a hashed password")
	}

	var reloaded models.CustomProjectRequest
	if err := db.First(&reloaded, request.ID).Error; err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.UserID == nil || *reloaded.UserID != user.ID {
		t.Errorf("request.user_id should be backfilled, got %v", reloaded.UserID)
	}
}

func TestEnsureUserReusesExistingByEmailCaseInsensitive(t *testing.T) {
	db := setupTestDB(t)

	existing := models.User{
		Email:        "client@example.com",
		Password:     "x",
		Name:         "Existing",
		Role:         models.RoleClient,
		ReferralCode: "AB12345",
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := db.Create(&existing).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	request := models.CustomProjectRequest{
		FullName:  "Client",
		Email:     "CLIENT@example.com",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.Create(&request).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	user, err := EnsureUser(db, &request, "")
	if err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if user.ID != existing.ID {
		t.Fatalf("expected existing user %d, got new user %d", existing.ID, user.ID)
	}

	var count int64
	db.Model(&models.User{}).Count(&count)
	if count != 1 {
		t.Errorf("expected exactly one user, got %d", count)
	}
}

func TestEnsureUserLinksReferrer(t *testing.T) {
	db := setupTestDB(t)

	referrer := models.User{
		Email:        "partner@example.com",
		Password:     "x",
		Name:         "Partner",
		Role:         models.RolePartner,
		ReferralCode: "PT99999",
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := db.Create(&referrer).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	request := models.CustomProjectRequest{
		FullName:  "Referred",
		Email:     "referred@example.com",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.Create(&request).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	user, err := EnsureUser(db, &request, "PT99999")
	if err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if user.ReferredByID == nil || *user.ReferredByID != referrer.ID {
		t.Fatalf("expected referred_by link to %d, got %v", referrer.ID, user.ReferredByID)
	}

	var audit models.AuditLog
	err = db.Where("action = ? AND target_id = ?", models.ActionReferralSignup, user.ID).First(&audit).Error
	if err != nil {
		t.Errorf("expected a REFERRAL_SIGNUP audit row: %v", err)
	}
}

func TestResolveServicePrefersOverrideThenSlugThenOldest(t *testing.T) {
	db := setupTestDB(t)

	oldest := models.Service{Name: "Oldest", Slug: "oldest", CreatedAt: time.Now().Add(-2 * time.Hour)}
	custom := models.Service{Name: "Custom Project", Slug: "custom-project", CreatedAt: time.Now().Add(-time.Hour)}
	other := models.Service{Name: "Other", Slug: "other", CreatedAt: time.Now()}
	for _, s := range []*models.Service{&oldest, &custom, &other} {
		if err := db.Create(s).Error; err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	got, err := ResolveService(db, &other.ID)
	if err != nil || got.ID != other.ID {
		t.Fatalf("override should win: %v %v", got, err)
	}

	got, err = ResolveService(db, nil)
	if err != nil || got.Slug != "custom-project" {
		t.Fatalf("configured slug should win without override: %v %v", got, err)
	}

	if err := db.Delete(&custom).Error; err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	got, err = ResolveService(db, nil)
	if err != nil || got.ID != oldest.ID {
		t.Fatalf("oldest service should be the last fallback: %v %v", got, err)
	}
}

func TestResolveServiceNoServices(t *testing.T) {
	db := setupTestDB(t)
	if _, err := ResolveService(db, nil); err != ErrNoService {
		t.Fatalf("expected ErrNoService, got %v", err)
	}
}

func TestProvisionProjectPlanOrderAndStatus(t *testing.T) {
	db := setupTestDB(t)

	project := models.Project{OrderID: 1, Title: "P", Status: models.PhaseGroupRequirements,
		CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := db.Create(&project).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	phases := []PhaseSeed{
		{Key: "build", Group: models.PhaseGroupDev, Title: "Build", Order: 2},
		{Key: "discovery", Group: models.PhaseGroupRequirements, Title: "Discovery", Order: 0},
		{Key: "design", Group: models.PhaseGroupDesign, Title: "Design", Order: 1},
	}
	if err := ProvisionProjectPlan(db, project.ID, phases, nil); err != nil {
		t.Fatalf("ProvisionProjectPlan: %v", err)
	}

	var stored []models.ProjectPhase
	db.Where("project_id = ?", project.ID).Order("phase_order ASC").Find(&stored)
	if len(stored) != 3 {
		t.Fatalf("expected 3 phases, got %d", len(stored))
	}
	if stored[0].Key != "discovery" || stored[1].Key != "design" || stored[2].Key != "build" {
		t.Errorf("phase order not preserved: %q, %q, %q", stored[0].Key, stored[1].Key, stored[2].Key)
	}

	var reloaded models.Project
	db.First(&reloaded, project.ID)
	if reloaded.Status != models.PhaseGroupRequirements {
		t.Errorf("project status should follow the order-0 phase's group, got %q", reloaded.Status)
	}
}

func TestProvisionProjectPlanPaymentGatingDueDateFallback(t *testing.T) {
	db := setupTestDB(t)

	project := models.Project{OrderID: 2, Title: "P", Status: models.PhaseGroupRequirements,
		CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := db.Create(&project).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	due := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	phases := []PhaseSeed{
		{Key: "qa", Group: models.PhaseGroupQA, Title: "QA", DueDate: &due, Order: 0},
	}
	payments := []PaymentSeed{
		{Label: "Before QA", Amount: 500, BeforePhaseKey: "qa"},
		{Label: "Unlinked", Amount: 300, BeforePhaseKey: "missing-key"},
	}
	if err := ProvisionProjectPlan(db, project.ID, phases, payments); err != nil {
		t.Fatalf("ProvisionProjectPlan: %v", err)
	}

	var stored []models.MilestonePayment
	db.Where("project_id = ?", project.ID).Order("id ASC").Find(&stored)
	if len(stored) != 2 {
		t.Fatalf("expected 2 payments, got %d", len(stored))
	}

	gated := stored[0]
	if gated.GatePhaseID == nil {
		t.Fatal("payment should be gated on the qa phase")
	}
	if gated.DueDate == nil || !gated.DueDate.Equal(due) {
		t.Errorf("payment without a due date should inherit the gate phase's, got %v", gated.DueDate)
	}
	if gated.Status != models.PaymentStatusPending {
		t.Errorf("payments start PENDING, got %q", gated.Status)
	}

	if stored[1].GatePhaseID != nil {
		t.Errorf("payment gating on an unknown key should stay ungated, got %v", stored[1].GatePhaseID)
	}
}

func TestCreateReferralCommission(t *testing.T) {
	db := setupTestDB(t)

	referrer := models.User{Email: "r@example.com", Password: "x", Name: "R",
		Role: models.RolePartner, ReferralCode: "RR11111", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := db.Create(&referrer).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	buyer := models.User{Email: "b@example.com", Password: "x", Name: "B",
		Role: models.RoleClient, ReferralCode: "BB22222", ReferredByID: &referrer.ID,
		CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := db.Create(&buyer).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	order := models.Order{UserID: buyer.ID, ServiceID: 1, TotalAmount: 2000, Currency: "USD",
		Status: models.OrderStatusInProgress, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	if err := CreateReferralCommission(db, &order); err != nil {
		t.Fatalf("CreateReferralCommission: %v", err)
	}

	var commission models.ReferralCommission
	if err := db.Where("order_id = ?", order.ID).First(&commission).Error; err != nil {
		t.Fatalf("commission row missing: %v", err)
	}
	if commission.ReferrerID != referrer.ID {
		t.Errorf("commission should credit the referrer, got %d", commission.ReferrerID)
	}
	if commission.Amount != 200 {
		t.Errorf("expected 10%% of 2000, got %f", commission.Amount)
	}
}

func TestCreateReferralCommissionNoReferrerIsNoop(t *testing.T) {
	db := setupTestDB(t)

	buyer := models.User{Email: "solo@example.com", Password: "x", Name: "S",
		Role: models.RoleClient, ReferralCode: "SS33333", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := db.Create(&buyer).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	order := models.Order{UserID: buyer.ID, ServiceID: 1, TotalAmount: 2000,
		Status: models.OrderStatusInProgress, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	if err := CreateReferralCommission(db, &order); err != nil {
		t.Fatalf("no referrer should be a no-op, got %v", err)
	}
	var count int64
	db.Model(&models.ReferralCommission{}).Count(&count)
	if count != 0 {
		t.Errorf("expected no commission rows, got %d", count)
	}
}
