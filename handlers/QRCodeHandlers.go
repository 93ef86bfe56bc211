package handlers

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"net/http"
	"strconv"

	"backend/models"
	"backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/inconsolata"
	"golang.org/x/image/math/fixed"
	"gorm.io/gorm"
)

// addLabel draws text onto the composite image at the given position.
func addLabel(img *image.RGBA, x, y int, label string, bold bool) {
	face := inconsolata.Regular8x16
	if bold {
		face = inconsolata.Bold8x16
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{30, 30, 30, 255}),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.Int26_6(x * 64),
			Y: fixed.Int26_6(y * 64),
		},
	}
	d.DrawString(label)
}

// GenerateQuoteQR renders a JPEG QR code pointing at the quote's public page,
// with a caption band naming the quote and amount. Meant for printed proposals.
// @Summary Generate a quote QR code as JPEG
// @Tags Quotes
// @Produce image/jpeg
// @Param quote_id path int true "Quote ID"
// @Success 200 {file} binary
// @Failure 404 {object} models.ErrorResponse
// @Router /api/quotes/{quote_id}/qr [get]
func GenerateQuoteQR(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("quote_id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid quote ID"})
			return
		}

		var quote models.Quote
		if err := db.First(&quote, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Quote not found"})
			return
		}

		// The QR encodes the public quote page, never the accept token.
		target := utils.BaseURL() + "/quotes/" + strconv.Itoa(int(quote.ID))
		qr, err := qrcode.New(target, qrcode.Medium)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		qrImg := qr.Image(256)

		const captionHeight = 48
		bounds := qrImg.Bounds()
		composite := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()+captionHeight))
		draw.Draw(composite, composite.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
		draw.Draw(composite, bounds, qrImg, image.Point{}, draw.Over)

		addLabel(composite, 12, bounds.Dy()+18, fmt.Sprintf("Quote #%d", quote.ID), true)
		addLabel(composite, 12, bounds.Dy()+36,
			fmt.Sprintf("%.2f %s / %s", quote.Amount, quote.Currency, quote.Status), false)

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, composite, &jpeg.Options{Quality: 90}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.Header("Content-Disposition", fmt.Sprintf("inline; filename=quote-%d.jpg", quote.ID))
		c.Data(http.StatusOK, "image/jpeg", buf.Bytes())
	}
}
