package models

import (
	"time"

	"gorm.io/gorm"
)

// Quote statuses
const (
	QuoteStatusDraft    = "DRAFT"
	QuoteStatusSent     = "SENT"
	QuoteStatusAccepted = "ACCEPTED"
	QuoteStatusRejected = "REJECTED"
)

// Order statuses
const (
	OrderStatusInProgress = "IN_PROGRESS"
	OrderStatusCompleted  = "COMPLETED"
	OrderStatusCancelled  = "CANCELLED"
)

// Custom project request statuses
const (
	RequestStatusNew              = "NEW"
	RequestStatusQuoted           = "QUOTED"
	RequestStatusConvertedToOrder = "CONVERTED_TO_ORDER"
	RequestStatusClosed           = "CLOSED"
)

// Phase groups, in delivery order
const (
	PhaseGroupRequirements = "REQUIREMENTS"
	PhaseGroupDesign       = "DESIGN"
	PhaseGroupDev          = "DEV"
	PhaseGroupQA           = "QA"
	PhaseGroupDelivered    = "DELIVERED"
)

// Milestone payment statuses
const (
	PaymentStatusPending = "PENDING"
	PaymentStatusPaid    = "PAID"
	PaymentStatusWaived  = "WAIVED"
)

// User roles
const (
	RoleAdmin   = "ADMIN"
	RolePartner = "PARTNER"
	RoleClient  = "CLIENT"
)

// Audit log actions
const (
	ActionQuoteMeta      = "QUOTE_META"
	ActionQuoteSent      = "QUOTE_SENT"
	ActionQuoteAccepted  = "QUOTE_ACCEPTED"
	ActionQuoteRejected  = "QUOTE_REJECTED"
	ActionProjectPlan    = "PROJECT_PLAN"
	ActionUserActivated  = "USER_ACTIVATED"
	ActionReferralSignup = "REFERRAL_SIGNUP"
	ActionPaymentMarked  = "PAYMENT_RECEIVED"
)

// Audit log target types
const (
	TargetQuote   = "QUOTE"
	TargetOrder   = "ORDER"
	TargetProject = "PROJECT"
	TargetUser    = "USER"
	TargetPayment = "PAYMENT"
)

// ValidPhaseGroup reports whether group is one of the known phase groups.
func ValidPhaseGroup(group string) bool {
	switch group {
	case PhaseGroupRequirements, PhaseGroupDesign, PhaseGroupDev, PhaseGroupQA, PhaseGroupDelivered:
		return true
	}
	return false
}

// QuoteCanTransition reports whether a quote may move from its current status
// to a terminal status. Transitions only go DRAFT/SENT -> ACCEPTED|REJECTED.
func QuoteCanTransition(from, to string) bool {
	if to != QuoteStatusAccepted && to != QuoteStatusRejected {
		return false
	}
	return from == QuoteStatusDraft || from == QuoteStatusSent
}

// User represents the users table.
type User struct {
	ID           uint           `gorm:"primaryKey;column:id" json:"id"`
	Email        string         `gorm:"column:email;uniqueIndex;not null" json:"email"`
	Password     string         `gorm:"column:password;not null" json:"-"`
	Name         string         `gorm:"column:name;not null" json:"name"`
	Role         string         `gorm:"column:role;not null;default:'CLIENT'" json:"role"`
	ReferralCode string         `gorm:"column:referral_code;uniqueIndex" json:"referral_code"`
	ReferredByID *uint          `gorm:"column:referred_by_id" json:"referred_by_id,omitempty"`
	CreatedAt    time.Time      `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;not null" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string { return "users" }

// Session represents the session table. QuoteID/ProjectID scope a session
// created through a magic link to the record it was issued for.
type Session struct {
	ID        uint      `gorm:"primaryKey;column:id" json:"id"`
	UserID    uint      `gorm:"column:user_id;not null" json:"user_id"`
	SessionID string    `gorm:"column:session_id;uniqueIndex;not null" json:"session_id"`
	QuoteID   *uint     `gorm:"column:quote_id" json:"quote_id,omitempty"`
	ProjectID *uint     `gorm:"column:project_id" json:"project_id,omitempty"`
	HostName  string    `gorm:"column:host_name" json:"host_name"`
	IPAddress string    `gorm:"column:ip_address" json:"ip_address"`
	CreatedAt time.Time `gorm:"column:created_at;not null" json:"created_at"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null" json:"expires_at"`
}

func (Session) TableName() string { return "session" }

// Service represents a sellable service (the custom-project service among them).
type Service struct {
	ID        uint      `gorm:"primaryKey;column:id" json:"id"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	Slug      string    `gorm:"column:slug;uniqueIndex;not null" json:"slug"`
	Active    bool      `gorm:"column:active;default:true" json:"active"`
	CreatedAt time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

func (Service) TableName() string { return "services" }

// CustomProjectRequest is the original intake record a quote answers.
type CustomProjectRequest struct {
	ID        uint      `gorm:"primaryKey;column:id" json:"id"`
	FullName  string    `gorm:"column:full_name;not null" json:"full_name"`
	Email     string    `gorm:"column:email;not null" json:"email"`
	Details   string    `gorm:"column:details" json:"details"`
	UserID    *uint     `gorm:"column:user_id" json:"user_id,omitempty"`
	OrderID   *uint     `gorm:"column:order_id" json:"order_id,omitempty"`
	Status    string    `gorm:"column:status;not null;default:'NEW'" json:"status"`
	CreatedAt time.Time `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (CustomProjectRequest) TableName() string { return "custom_project_requests" }

// Quote represents a priced proposal sent to a prospective client.
// MagicToken holds the SHA-256 hex of the accept token, never the plaintext;
// once spent it is rewritten with a "used:" prefix.
type Quote struct {
	ID              uint       `gorm:"primaryKey;column:id" json:"id"`
	CustomRequestID uint       `gorm:"column:custom_request_id;not null" json:"custom_request_id"`
	Amount          float64    `gorm:"column:amount;not null" json:"amount"`
	Currency        string     `gorm:"column:currency;not null;default:'USD'" json:"currency"`
	Scope           string     `gorm:"column:scope" json:"scope"`
	Status          string     `gorm:"column:status;not null;default:'DRAFT'" json:"status"`
	MagicToken      *string    `gorm:"column:magic_token;index" json:"-"`
	ExpiresAt       *time.Time `gorm:"column:expires_at" json:"expires_at,omitempty"`
	AcceptedAt      *time.Time `gorm:"column:accepted_at" json:"accepted_at,omitempty"`
	ArchivedAt      *time.Time `gorm:"column:archived_at" json:"archived_at,omitempty"`
	CreatedAt       time.Time  `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (Quote) TableName() string { return "quotes" }

// Order is created exactly once per accepted quote.
type Order struct {
	ID          uint      `gorm:"primaryKey;column:id" json:"id"`
	UserID      uint      `gorm:"column:user_id;not null" json:"user_id"`
	ServiceID   uint      `gorm:"column:service_id;not null" json:"service_id"`
	TotalAmount float64   `gorm:"column:total_amount;not null" json:"total_amount"`
	Currency    string    `gorm:"column:currency;not null;default:'USD'" json:"currency"`
	Status      string    `gorm:"column:status;not null" json:"status"`
	CreatedAt   time.Time `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (Order) TableName() string { return "orders" }

// Project is one-to-one with Order in the acceptance flow. Status mirrors the
// group of the lowest-order phase.
type Project struct {
	ID          uint      `gorm:"primaryKey;column:id" json:"id"`
	OrderID     uint      `gorm:"column:order_id;not null;uniqueIndex" json:"order_id"`
	Title       string    `gorm:"column:title;not null" json:"title"`
	Description string    `gorm:"column:description" json:"description"`
	Status      string    `gorm:"column:status;not null;default:'REQUIREMENTS'" json:"status"`
	CreatedAt   time.Time `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (Project) TableName() string { return "projects" }

// ProjectPhase is a named delivery stage. PhaseOrder defines display and
// execution sequence; Key preserves the seed key so payments can gate on it.
type ProjectPhase struct {
	ID          uint       `gorm:"primaryKey;column:id" json:"id"`
	ProjectID   uint       `gorm:"column:project_id;not null;index" json:"project_id"`
	Key         string     `gorm:"column:phase_key;not null" json:"key"`
	Group       string     `gorm:"column:phase_group;not null" json:"group"`
	Title       string     `gorm:"column:title;not null" json:"title"`
	Description string     `gorm:"column:description" json:"description"`
	DueDate     *time.Time `gorm:"column:due_date" json:"due_date,omitempty"`
	PhaseOrder  int        `gorm:"column:phase_order;not null" json:"order"`
	CreatedAt   time.Time  `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (ProjectPhase) TableName() string { return "project_phases" }

// MilestonePayment is a scheduled payment. GatePhaseID encodes "must be paid
// before that phase starts"; it is a soft reference, not a state machine.
type MilestonePayment struct {
	ID          uint       `gorm:"primaryKey;column:id" json:"id"`
	ProjectID   uint       `gorm:"column:project_id;not null;index" json:"project_id"`
	Label       string     `gorm:"column:label;not null" json:"label"`
	Amount      float64    `gorm:"column:amount;not null" json:"amount"`
	DueDate     *time.Time `gorm:"column:due_date" json:"due_date,omitempty"`
	GatePhaseID *uint      `gorm:"column:gate_phase_id" json:"gate_phase_id,omitempty"`
	Status      string     `gorm:"column:status;not null;default:'PENDING'" json:"status"`
	PaidAt      *time.Time `gorm:"column:paid_at" json:"paid_at,omitempty"`
	CreatedAt   time.Time  `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (MilestonePayment) TableName() string { return "milestone_payments" }

// AuditLog is append-only. Data holds arbitrary JSON; QUOTE_META rows carry the
// quote plan blob and QUOTE_SENT rows carry the token hash, so this table
// doubles as the legacy token index (see services.ResolveQuoteToken).
type AuditLog struct {
	ID         uint      `gorm:"primaryKey;column:id" json:"id"`
	ActorID    *uint     `gorm:"column:actor_id" json:"actor_id,omitempty"`
	Action     string    `gorm:"column:action;not null;index" json:"action"`
	TargetType string    `gorm:"column:target_type;not null" json:"target_type"`
	TargetID   uint      `gorm:"column:target_id;not null;index" json:"target_id"`
	Data       string    `gorm:"column:data;type:text" json:"data"`
	CreatedAt  time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

// MagicLoginToken is the single-use passwordless login credential issued when a
// quote is accepted. Unlike quote accept tokens, these have no legacy audit-log
// fallback: the hash column is the only index.
type MagicLoginToken struct {
	ID        uint       `gorm:"primaryKey;column:id" json:"id"`
	TokenHash string     `gorm:"column:token_hash;uniqueIndex;not null" json:"-"`
	UserID    uint       `gorm:"column:user_id;not null" json:"user_id"`
	ProjectID uint       `gorm:"column:project_id;not null" json:"project_id"`
	ExpiresAt time.Time  `gorm:"column:expires_at;not null" json:"expires_at"`
	UsedAt    *time.Time `gorm:"column:used_at" json:"used_at,omitempty"`
	CreatedAt time.Time  `gorm:"column:created_at;not null" json:"created_at"`
}

func (MagicLoginToken) TableName() string { return "magic_login_tokens" }

// ReferralCommission is created best-effort for orders placed by referred users.
type ReferralCommission struct {
	ID         uint      `gorm:"primaryKey;column:id" json:"id"`
	OrderID    uint      `gorm:"column:order_id;not null;uniqueIndex" json:"order_id"`
	ReferrerID uint      `gorm:"column:referrer_id;not null" json:"referrer_id"`
	Amount     float64   `gorm:"column:amount;not null" json:"amount"`
	Status     string    `gorm:"column:status;not null;default:'PENDING'" json:"status"`
	CreatedAt  time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

func (ReferralCommission) TableName() string { return "referral_commissions" }

// Notification represents the notifications table.
type Notification struct {
	ID        uint      `gorm:"primaryKey;column:id" json:"id"`
	UserID    uint      `gorm:"column:user_id;not null;index" json:"user_id"`
	Message   string    `gorm:"column:message;not null" json:"message"`
	Status    string    `gorm:"column:status;not null;default:'unread'" json:"status"`
	Action    string    `gorm:"column:action" json:"action"`
	CreatedAt time.Time `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (Notification) TableName() string { return "notifications" }
