package services

import (
	"fmt"
	"net/smtp"
	"os"
	"strings"

	"backend/models"

	"golang.org/x/net/html"
	"gorm.io/gorm"
)

// convertHTMLToText converts HTML template output to plain text for sending.
func convertHTMLToText(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return htmlContent
	}

	var text strings.Builder
	var extractText func(*html.Node)
	extractText = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			text.WriteString(n.Data)
		case html.ElementNode:
			switch n.Data {
			case "p", "div", "br", "h1", "h2", "h3", "h4", "h5", "h6", "table", "tr":
				text.WriteString("\n")
			case "li":
				text.WriteString("- ")
			case "td", "th":
				text.WriteString(" | ")
			}
		}

		for child := n.FirstChild; child != nil; child = child.NextSibling {
			extractText(child)
		}
	}

	extractText(doc)

	result := text.String()
	result = strings.ReplaceAll(result, "\n\n\n", "\n\n")
	return strings.TrimSpace(result)
}

// EmailService sends templated mail over SMTP.
type EmailService struct {
	db *gorm.DB
}

// NewEmailService creates a new email service instance.
func NewEmailService(db *gorm.DB) *EmailService {
	return &EmailService{db: db}
}

// SendTemplatedEmail renders the default template of the given type with
// variable substitution and delivers it to `to`.
func (es *EmailService) SendTemplatedEmail(templateType, to string, data models.EmailData) error {
	tpl, err := models.GetDefaultTemplate(es.db, templateType)
	if err != nil {
		return fmt.Errorf("failed to get template for type %q: %w", templateType, err)
	}

	subject := es.processTemplate(tpl.Subject, data)
	body := convertHTMLToText(es.processTemplate(tpl.Body, data))

	return es.sendEmail(to, subject, body)
}

// processTemplate substitutes {{variable}} placeholders.
func (es *EmailService) processTemplate(templateStr string, data models.EmailData) string {
	variables := map[string]string{
		"client_name":   data.ClientName,
		"email":         data.Email,
		"quote_amount":  data.QuoteAmount,
		"currency":      data.Currency,
		"project_title": data.ProjectTitle,
		"magic_link":    data.MagicLink,
		"support_email": data.SupportEmail,
		"company_name":  data.CompanyName,
	}

	result := templateStr
	for key, value := range variables {
		result = strings.ReplaceAll(result, fmt.Sprintf("{{%s}}", key), value)
	}
	return result
}

func (es *EmailService) sendEmail(to, subject, body string) error {
	host := os.Getenv("SMTP_HOST")
	port := os.Getenv("SMTP_PORT")
	user := os.Getenv("SMTP_USER")
	pass := os.Getenv("SMTP_PASSWORD")
	from := os.Getenv("SMTP_FROM")
	if from == "" {
		from = user
	}
	if host == "" {
		return fmt.Errorf("SMTP_HOST is not configured")
	}
	if port == "" {
		port = "587"
	}

	auth := smtp.PlainAuth("", user, pass, host)

	headers := []string{
		"From: " + from,
		"To: " + to,
		"Subject: " + subject,
		"",
		body,
	}
	msg := []byte(strings.Join(headers, "\r\n") + "\r\n")

	return smtp.SendMail(host+":"+port, auth, from, []string{to}, msg)
}

// SendQuoteEmail mails the client their quote with the accept link.
func (es *EmailService) SendQuoteEmail(quote *models.Quote, request *models.CustomProjectRequest, acceptLink string) error {
	data := models.EmailData{
		ClientName:   request.FullName,
		Email:        request.Email,
		QuoteAmount:  fmt.Sprintf("%.2f", quote.Amount),
		Currency:     quote.Currency,
		MagicLink:    acceptLink,
		SupportEmail: supportEmail(),
		CompanyName:  companyName(),
	}
	return es.SendTemplatedEmail(models.TemplateQuoteSent, request.Email, data)
}

// SendWelcomeEmail greets a freshly provisioned client with their passwordless
// project link.
func (es *EmailService) SendWelcomeEmail(user *models.User, projectTitle, magicLink string) error {
	data := models.EmailData{
		ClientName:   user.Name,
		Email:        user.Email,
		ProjectTitle: projectTitle,
		MagicLink:    magicLink,
		SupportEmail: supportEmail(),
		CompanyName:  companyName(),
	}
	return es.SendTemplatedEmail(models.TemplateWelcomeClient, user.Email, data)
}

// SendQuoteAcceptedAdminEmail alerts the configured admin address about an
// acceptance. Best-effort at call sites.
func (es *EmailService) SendQuoteAcceptedAdminEmail(quote *models.Quote, user *models.User, projectTitle string) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	if adminEmail == "" {
		return fmt.Errorf("ADMIN_EMAIL is not configured")
	}

	data := models.EmailData{
		ClientName:   user.Name,
		Email:        user.Email,
		QuoteAmount:  fmt.Sprintf("%.2f", quote.Amount),
		Currency:     quote.Currency,
		ProjectTitle: projectTitle,
		CompanyName:  companyName(),
	}
	return es.SendTemplatedEmail(models.TemplateQuoteAcceptedAdmin, adminEmail, data)
}

func supportEmail() string {
	if s := os.Getenv("SUPPORT_EMAIL"); s != "" {
		return s
	}
	return "support@gazeltech.example"
}

func companyName() string {
	if s := os.Getenv("COMPANY_NAME"); s != "" {
		return s
	}
	return "GazelTech Studio"
}
