package services

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"backend/models"
	"backend/repository"
	"backend/utils"

	"gorm.io/gorm"
)

// ErrNoService is returned when no service can back the order.
var ErrNoService = fmt.Errorf("no service available for custom projects")

// SaveAuditLog appends an audit entry. Data is marshalled to JSON; marshal
// failures degrade to an empty object rather than losing the entry.
func SaveAuditLog(db *gorm.DB, actorID *uint, action, targetType string, targetID uint, data interface{}) error {
	payload := "{}"
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			payload = string(raw)
		}
	}
	entry := models.AuditLog{
		ActorID:    actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Data:       payload,
		CreatedAt:  time.Now(),
	}
	return db.Create(&entry).Error
}

// EnsureUser finds or creates the client account behind a quote's requester.
// Lookup is case-insensitive on email. New accounts get role CLIENT, a bcrypt
// temp password, a referral code, and - when referralCode names an existing
// user - a referred_by link plus a REFERRAL_SIGNUP audit event. The intake
// request's user_id is backfilled when unset or stale.
func EnsureUser(db *gorm.DB, request *models.CustomProjectRequest, referralCode string) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(request.Email))

	var user models.User
	err := db.Where("LOWER(email) = ?", email).First(&user).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("user lookup failed: %w", err)
	}

	if err == gorm.ErrRecordNotFound {
		var referrer *models.User
		if referralCode != "" {
			var r models.User
			if db.Where("referral_code = ?", referralCode).First(&r).Error == nil {
				referrer = &r
			}
		}

		hashed, err := utils.HashPassword(repository.GenerateTempPassword())
		if err != nil {
			return nil, fmt.Errorf("password hashing failed: %w", err)
		}

		user = models.User{
			Email:        email,
			Password:     hashed,
			Name:         request.FullName,
			Role:         models.RoleClient,
			ReferralCode: repository.GenerateReferralCode(),
			CreatedAt:    time.Now(),
			UpdatedAt:    time.Now(),
		}
		if referrer != nil {
			user.ReferredByID = &referrer.ID
		}
		if err := db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("user creation failed: %w", err)
		}

		if referrer != nil {
			if err := SaveAuditLog(db, &referrer.ID, models.ActionReferralSignup,
				models.TargetUser, user.ID,
				map[string]interface{}{"referralCode": referralCode}); err != nil {
				log.Printf("Failed to record referral signup for user %d: %v", user.ID, err)
			}
		}
	}

	if request.UserID == nil || *request.UserID != user.ID {
		updates := map[string]interface{}{"user_id": user.ID, "updated_at": time.Now()}
		if err := db.Model(&models.CustomProjectRequest{}).Where("id = ?", request.ID).
			Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("request user backfill failed: %w", err)
		}
		request.UserID = &user.ID
	}

	return &user, nil
}

// ResolveService picks the service backing the order: the metadata override
// first, then the configured custom-project slug, then the oldest service.
func ResolveService(db *gorm.DB, override *uint) (*models.Service, error) {
	var service models.Service

	if override != nil {
		if err := db.First(&service, *override).Error; err == nil {
			return &service, nil
		}
	}

	slug := os.Getenv("CUSTOM_PROJECT_SERVICE_SLUG")
	if slug == "" {
		slug = "custom-project"
	}
	if err := db.Where("slug = ?", slug).First(&service).Error; err == nil {
		return &service, nil
	}

	err := db.Order("created_at ASC").First(&service).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrNoService
	}
	if err != nil {
		return nil, fmt.Errorf("service lookup failed: %w", err)
	}
	return &service, nil
}

// ProvisionProjectPlan materializes phase and payment rows for a project from
// parsed seeds. Phase seed order is preserved into phase_order; the project's
// status becomes the group of the lowest-order phase. Payments without an
// explicit due date inherit the due date of the phase they gate on.
func ProvisionProjectPlan(tx *gorm.DB, projectID uint, phases []PhaseSeed, payments []PaymentSeed) error {
	phaseByKey := make(map[string]*models.ProjectPhase, len(phases))

	var first *PhaseSeed
	for i := range phases {
		seed := &phases[i]
		phase := models.ProjectPhase{
			ProjectID:   projectID,
			Key:         seed.Key,
			Group:       seed.Group,
			Title:       seed.Title,
			Description: seed.Description,
			DueDate:     seed.DueDate,
			PhaseOrder:  seed.Order,
			CreatedAt:   time.Now(),
			UpdatedAt:   time.Now(),
		}
		if err := tx.Create(&phase).Error; err != nil {
			return fmt.Errorf("phase creation failed: %w", err)
		}
		phaseByKey[seed.Key] = &phase

		if first == nil || seed.Order < first.Order {
			first = seed
		}
	}

	if first != nil {
		if err := tx.Model(&models.Project{}).Where("id = ?", projectID).
			Updates(map[string]interface{}{"status": first.Group, "updated_at": time.Now()}).Error; err != nil {
			return fmt.Errorf("project status update failed: %w", err)
		}
	}

	for _, seed := range payments {
		payment := models.MilestonePayment{
			ProjectID: projectID,
			Label:     seed.Label,
			Amount:    seed.Amount,
			DueDate:   seed.DueDate,
			Status:    models.PaymentStatusPending,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		if gate, ok := phaseByKey[seed.BeforePhaseKey]; ok && seed.BeforePhaseKey != "" {
			payment.GatePhaseID = &gate.ID
			if payment.DueDate == nil {
				payment.DueDate = gate.DueDate
			}
		}
		if err := tx.Create(&payment).Error; err != nil {
			return fmt.Errorf("payment creation failed: %w", err)
		}
	}

	return nil
}

// referralCommissionRate is the share of the order amount credited to the
// referrer.
const referralCommissionRate = 0.10

// CreateReferralCommission records a commission for the referrer of the order's
// user, if any. Callers treat failures as best-effort.
func CreateReferralCommission(db *gorm.DB, order *models.Order) error {
	var user models.User
	if err := db.First(&user, order.UserID).Error; err != nil {
		return fmt.Errorf("order user lookup failed: %w", err)
	}
	if user.ReferredByID == nil {
		return nil
	}

	commission := models.ReferralCommission{
		OrderID:    order.ID,
		ReferrerID: *user.ReferredByID,
		Amount:     order.TotalAmount * referralCommissionRate,
		Status:     models.PaymentStatusPending,
		CreatedAt:  time.Now(),
	}
	if err := db.Create(&commission).Error; err != nil {
		return fmt.Errorf("commission creation failed: %w", err)
	}
	return nil
}
