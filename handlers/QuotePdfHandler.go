package handlers

import (
	"fmt"
	"net/http"
	"time"

	"backend/models"
	"backend/services"

	"github.com/gin-gonic/gin"
	"github.com/jung-kurt/gofpdf"
	"gorm.io/gorm"
)

// QuotePdf renders a quote as a downloadable PDF, including the parsed phase
// plan and payment schedule from the latest metadata.
// @Summary Download a quote as PDF
// @Tags Quotes
// @Produce application/pdf
// @Param quote_id path int true "Quote ID"
// @Success 200 {file} binary
// @Failure 404 {object} models.ErrorResponse
// @Router /api/quotes/{quote_id}/pdf [get]
func QuotePdf(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var quote models.Quote
		if err := db.First(&quote, c.Param("quote_id")).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Quote not found"})
			return
		}

		var request models.CustomProjectRequest
		if err := db.First(&request, quote.CustomRequestID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Request behind this quote not found"})
			return
		}

		meta, err := services.LoadQuoteMetadata(db, quote.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		pdf := gofpdf.New("P", "mm", "A4", "")
		pdf.AddPage()

		pdf.SetFont("Arial", "B", 18)
		pdf.Cell(0, 12, fmt.Sprintf("Quote #%d", quote.ID))
		pdf.Ln(14)

		pdf.SetFont("Arial", "", 11)
		pdf.Cell(0, 7, "Prepared for: "+request.FullName+" <"+request.Email+">")
		pdf.Ln(7)
		pdf.Cell(0, 7, fmt.Sprintf("Amount: %.2f %s", quote.Amount, quote.Currency))
		pdf.Ln(7)
		pdf.Cell(0, 7, "Status: "+quote.Status)
		pdf.Ln(7)
		if quote.ExpiresAt != nil {
			pdf.Cell(0, 7, "Valid until: "+quote.ExpiresAt.Format("2006-01-02"))
			pdf.Ln(7)
		}
		pdf.Ln(4)

		if quote.Scope != "" {
			pdf.SetFont("Arial", "B", 13)
			pdf.Cell(0, 9, "Scope")
			pdf.Ln(9)
			pdf.SetFont("Arial", "", 11)
			pdf.MultiCell(0, 6, quote.Scope, "", "L", false)
			pdf.Ln(4)
		}

		if len(meta.Phases) > 0 {
			pdf.SetFont("Arial", "B", 13)
			pdf.Cell(0, 9, "Delivery phases")
			pdf.Ln(9)
			pdf.SetFont("Arial", "", 11)
			for _, phase := range meta.Phases {
				line := fmt.Sprintf("%d. %s (%s)", phase.Order+1, phase.Title, phase.Group)
				if phase.DueDate != nil {
					line += " - due " + phase.DueDate.Format("2006-01-02")
				}
				pdf.Cell(0, 6, line)
				pdf.Ln(6)
			}
			pdf.Ln(4)
		}

		if len(meta.Payments) > 0 {
			pdf.SetFont("Arial", "B", 13)
			pdf.Cell(0, 9, "Payment schedule")
			pdf.Ln(9)
			pdf.SetFont("Arial", "", 11)
			for _, payment := range meta.Payments {
				line := fmt.Sprintf("%s: %.2f %s", payment.Label, payment.Amount, quote.Currency)
				if payment.DueDate != nil {
					line += " - due " + payment.DueDate.Format("2006-01-02")
				}
				pdf.Cell(0, 6, line)
				pdf.Ln(6)
			}
		}

		pdf.SetY(-20)
		pdf.SetFont("Arial", "I", 9)
		pdf.Cell(0, 6, "Generated "+time.Now().Format("2006-01-02 15:04"))

		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=quote-%d.pdf", quote.ID))
		c.Header("Content-Type", "application/pdf")
		if err := pdf.Output(c.Writer); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
	}
}
