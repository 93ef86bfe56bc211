package models

import (
	"time"

	"gorm.io/gorm"
)

// Email template types
const (
	TemplateQuoteSent          = "quote_sent"
	TemplateQuoteAcceptedAdmin = "quote_accepted_admin"
	TemplateWelcomeClient      = "welcome_client"
	TemplatePaymentReminder    = "payment_reminder"
)

// EmailTemplate represents the email_templates table. Subject and Body may
// contain {{variable}} placeholders substituted by the email service.
type EmailTemplate struct {
	ID           uint      `gorm:"primaryKey;column:id" json:"id"`
	TemplateType string    `gorm:"column:template_type;not null;index" json:"template_type"`
	Name         string    `gorm:"column:name;not null" json:"name"`
	Subject      string    `gorm:"column:subject;not null" json:"subject"`
	Body         string    `gorm:"column:body;not null" json:"body"`
	IsDefault    bool      `gorm:"column:is_default;default:false" json:"is_default"`
	CreatedAt    time.Time `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (EmailTemplate) TableName() string { return "email_templates" }

// EmailData holds the variables available for template substitution.
type EmailData struct {
	ClientName   string
	Email        string
	QuoteAmount  string
	Currency     string
	ProjectTitle string
	MagicLink    string
	SupportEmail string
	CompanyName  string
}

// GetDefaultTemplate returns the default template for a type, falling back to
// a built-in template so mail still goes out on a fresh database.
func GetDefaultTemplate(db *gorm.DB, templateType string) (*EmailTemplate, error) {
	var tpl EmailTemplate
	err := db.Where("template_type = ? AND is_default = ?", templateType, true).
		Order("updated_at DESC").First(&tpl).Error
	if err == nil {
		return &tpl, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	if built, ok := builtinTemplates[templateType]; ok {
		return &built, nil
	}
	return nil, gorm.ErrRecordNotFound
}

// GetTemplateByID returns a specific template.
func GetTemplateByID(db *gorm.DB, id uint) (*EmailTemplate, error) {
	var tpl EmailTemplate
	if err := db.First(&tpl, id).Error; err != nil {
		return nil, err
	}
	return &tpl, nil
}

var builtinTemplates = map[string]EmailTemplate{
	TemplateQuoteSent: {
		TemplateType: TemplateQuoteSent,
		Name:         "Quote sent (built-in)",
		Subject:      "Your project quote from {{company_name}}",
		Body: "<p>Hi {{client_name}},</p>" +
			"<p>Your quote for {{quote_amount}} {{currency}} is ready.</p>" +
			"<p>Review and accept it here: {{magic_link}}</p>" +
			"<p>Questions? Write to {{support_email}}.</p>",
	},
	TemplateQuoteAcceptedAdmin: {
		TemplateType: TemplateQuoteAcceptedAdmin,
		Name:         "Quote accepted admin alert (built-in)",
		Subject:      "Quote accepted: {{project_title}}",
		Body: "<p>{{client_name}} ({{email}}) accepted their quote of " +
			"{{quote_amount}} {{currency}}.</p>" +
			"<p>Project: {{project_title}}</p>",
	},
	TemplateWelcomeClient: {
		TemplateType: TemplateWelcomeClient,
		Name:         "Welcome client (built-in)",
		Subject:      "Welcome to {{company_name}}",
		Body: "<p>Hi {{client_name}},</p>" +
			"<p>Your client account is ready. Use the project link in your " +
			"acceptance email to sign in without a password.</p>",
	},
	TemplatePaymentReminder: {
		TemplateType: TemplatePaymentReminder,
		Name:         "Payment reminder (built-in)",
		Subject:      "Payment due: {{project_title}}",
		Body: "<p>A milestone payment of {{quote_amount}} {{currency}} for " +
			"{{project_title}} is due.</p>",
	},
}
