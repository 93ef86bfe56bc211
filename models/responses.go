package models

import "time"

// ErrorResponse is the uniform error body. Field is set only for form-level
// configuration errors (e.g. no resolvable service).
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// MessageResponse is a plain confirmation body.
type MessageResponse struct {
	Message string `json:"message"`
}

// AcceptQuoteRequest is the optional JSON body of the accept endpoint. The
// token may alternatively arrive as a `token` query parameter.
type AcceptQuoteRequest struct {
	Token string `json:"token"`
}

// AcceptQuoteResponse is returned on successful acceptance.
type AcceptQuoteResponse struct {
	ID        uint   `json:"id"`
	Status    string `json:"status"`
	OrderID   uint   `json:"orderId"`
	ProjectID uint   `json:"projectId"`
	MagicLink string `json:"magicLink"`
}

// CreateQuoteRequest creates a DRAFT quote for an intake request. Metadata is
// the free-form plan blob persisted as a QUOTE_META audit row.
type CreateQuoteRequest struct {
	CustomRequestID uint                   `json:"custom_request_id" binding:"required"`
	Amount          float64                `json:"amount" binding:"required"`
	Currency        string                 `json:"currency"`
	Scope           string                 `json:"scope"`
	Metadata        map[string]interface{} `json:"metadata"`
}

// SendQuoteRequest controls quote delivery.
type SendQuoteRequest struct {
	ExpiresInDays int `json:"expires_in_days"`
}

// CreateRequestInput is the public intake form payload.
type CreateRequestInput struct {
	FullName string `json:"full_name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Details  string `json:"details"`
}

// LoginRequest carries password credentials.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is returned on successful password login.
type LoginResponse struct {
	SessionID   string `json:"session_id"`
	AccessToken string `json:"access_token"`
	User        User   `json:"user"`
}

// UpdatePhaseStatusRequest moves a phase to another group.
type UpdatePhaseStatusRequest struct {
	Group string `json:"group" binding:"required"`
}

// ProjectDetailResponse bundles a project with its plan.
type ProjectDetailResponse struct {
	Project  Project            `json:"project"`
	Phases   []ProjectPhase     `json:"phases"`
	Payments []MilestonePayment `json:"payments"`
}

// QuoteSentData is the JSON persisted in the QUOTE_SENT audit row. TokenHash
// doubles as the legacy token index consumed by the resolver fallback, so the
// field names are a compatibility surface.
type QuoteSentData struct {
	TokenHash string    `json:"tokenHash"`
	ExpiresAt time.Time `json:"expiresAt"`
	SentTo    string    `json:"sentTo"`
}

// QuoteAcceptedData is the JSON persisted in the QUOTE_ACCEPTED audit row.
type QuoteAcceptedData struct {
	OrderID   uint   `json:"orderId"`
	ProjectID uint   `json:"projectId"`
	MagicLink string `json:"magicLink"`
}
