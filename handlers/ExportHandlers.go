package handlers

import (
	"fmt"
	"net/http"
	"time"

	"backend/models"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

// ExportQuotesExcel streams all quotes as an .xlsx workbook.
// @Summary Export quotes to Excel
// @Tags Exports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} binary
// @Router /api/exports/quotes [get]
func ExportQuotesExcel(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var quotes []models.Quote
		if err := db.Order("created_at DESC").Find(&quotes).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		f := excelize.NewFile()
		defer f.Close()

		sheet := "Quotes"
		f.SetSheetName("Sheet1", sheet)

		titler := cases.Title(language.English)
		headers := []string{"id", "request", "amount", "currency", "status", "sent to expire", "accepted at", "created at"}
		for i, h := range headers {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			f.SetCellValue(sheet, cell, titler.String(h))
		}

		for row, quote := range quotes {
			values := []interface{}{
				quote.ID,
				quote.CustomRequestID,
				quote.Amount,
				quote.Currency,
				quote.Status,
				formatTimePtr(quote.ExpiresAt),
				formatTimePtr(quote.AcceptedAt),
				quote.CreatedAt.Format("2006-01-02 15:04"),
			}
			for col, v := range values {
				cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
				f.SetCellValue(sheet, cell, v)
			}
		}

		c.Header("Content-Disposition",
			fmt.Sprintf("attachment; filename=quotes-%s.xlsx", time.Now().Format("2006-01-02")))
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		if err := f.Write(c.Writer); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
	}
}

// ExportPaymentsExcel streams a project's payment schedule as an .xlsx workbook.
// @Summary Export a project's payments to Excel
// @Tags Exports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param project_id path int true "Project ID"
// @Success 200 {file} binary
// @Failure 404 {object} models.ErrorResponse
// @Router /api/exports/projects/{project_id}/payments [get]
func ExportPaymentsExcel(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var project models.Project
		if err := db.First(&project, c.Param("project_id")).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
			return
		}

		var payments []models.MilestonePayment
		if err := db.Where("project_id = ?", project.ID).Order("id ASC").Find(&payments).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		f := excelize.NewFile()
		defer f.Close()

		sheet := "Payments"
		f.SetSheetName("Sheet1", sheet)

		titler := cases.Title(language.English)
		headers := []string{"label", "amount", "due date", "status", "paid at"}
		for i, h := range headers {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			f.SetCellValue(sheet, cell, titler.String(h))
		}

		for row, payment := range payments {
			values := []interface{}{
				payment.Label,
				payment.Amount,
				formatTimePtr(payment.DueDate),
				payment.Status,
				formatTimePtr(payment.PaidAt),
			}
			for col, v := range values {
				cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
				f.SetCellValue(sheet, cell, v)
			}
		}

		c.Header("Content-Disposition",
			fmt.Sprintf("attachment; filename=payments-project-%d.xlsx", project.ID))
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		if err := f.Write(c.Writer); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
	}
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
