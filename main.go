// @title           GazelTech Quotes API
// @version         1.0
// @description     Quote acceptance and project provisioning backend for the GazelTech studio platform.

// @contact.name   API Support
// @contact.url    https://gazeltech.example

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

// @schemes http https
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	_ "backend/docs"
	"backend/handlers"
	"backend/models"
	"backend/services"
	"backend/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

var cronRunning int32

func CORSConfig() cors.Config {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{
		"https://gazeltech.example",
		"http://localhost:3000",
		"http://localhost:8080",
	}
	if extra := os.Getenv("CORS_ORIGINS"); extra != "" {
		corsConfig.AllowOrigins = append(corsConfig.AllowOrigins, extra)
	}
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{
		"Content-Type", "Content-Length", "Accept-Encoding",
		"Accept", "Origin", "X-Requested-With", "Authorization", "User-Agent",
		"Cache-Control", "Referer",
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "HEAD", "PATCH"}
	corsConfig.ExposeHeaders = []string{"Content-Length", "Content-Type", "Content-Disposition"}
	corsConfig.MaxAge = 12 * time.Hour
	return corsConfig
}

// runPaymentReminders emails clients about pending milestone payments due in
// the next three days.
func runPaymentReminders(db *gorm.DB, emails *services.EmailService) error {
	cutoff := time.Now().Add(3 * 24 * time.Hour)

	var payments []models.MilestonePayment
	err := db.Where("status = ? AND due_date IS NOT NULL AND due_date < ?",
		models.PaymentStatusPending, cutoff).Find(&payments).Error
	if err != nil {
		return err
	}

	for _, payment := range payments {
		var project models.Project
		if err := db.First(&project, payment.ProjectID).Error; err != nil {
			continue
		}
		var order models.Order
		if err := db.First(&order, project.OrderID).Error; err != nil {
			continue
		}
		var user models.User
		if err := db.First(&user, order.UserID).Error; err != nil {
			continue
		}

		data := models.EmailData{
			ClientName:   user.Name,
			Email:        user.Email,
			QuoteAmount:  fmt.Sprintf("%.2f", payment.Amount),
			Currency:     order.Currency,
			ProjectTitle: project.Title,
		}
		if err := emails.SendTemplatedEmail(models.TemplatePaymentReminder, user.Email, data); err != nil {
			log.Printf("Failed to send payment reminder for payment %d: %v", payment.ID, err)
		}
	}
	return nil
}

func main() {
	db := storage.InitGormDB()

	emailService := services.NewEmailService(db)

	pushService, err := services.NewPushService()
	if err != nil {
		log.Printf("Warning: Failed to initialize push service: %v. Push notifications will be disabled.", err)
		pushService = nil
	} else if pushService != nil {
		log.Println("Push service initialized successfully")
	}

	// Daily maintenance at 02:30: expired session/token cleanup and payment
	// reminders.
	c := cron.New(
		cron.WithLogger(cron.VerbosePrintfLogger(log.New(os.Stdout, "cron: ", log.LstdFlags))),
	)
	_, err = c.AddFunc("30 2 * * *", func() {
		if !atomic.CompareAndSwapInt32(&cronRunning, 0, 1) {
			log.Println("Previous cron still running. Skipping this run.")
			return
		}
		defer atomic.StoreInt32(&cronRunning, 0)

		log.Println("Starting daily maintenance cron job")
		if err := storage.CleanupExpiredSessions(db); err != nil {
			log.Printf("Session cleanup failed: %v", err)
		}
		if err := storage.CleanupExpiredLoginTokens(db); err != nil {
			log.Printf("Login token cleanup failed: %v", err)
		}
		if err := runPaymentReminders(db, emailService); err != nil {
			log.Printf("Payment reminders failed: %v", err)
		}
		log.Println("Daily cron cycle completed")
	})
	if err != nil {
		log.Fatalf("Failed to schedule daily maintenance cron job: %v", err)
	}
	c.Start()

	r := gin.Default()
	r.Use(cors.New(CORSConfig()))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Public surface: intake, token-based quote actions, magic login.
	r.POST("/api/requests", handlers.CreateRequest(db))
	r.POST("/api/quotes/:quote_id/accept", handlers.AcceptQuote(db, emailService, pushService))
	r.POST("/api/quotes/:quote_id/reject", handlers.RejectQuote(db))
	r.GET("/magic/order", handlers.MagicOrderLogin(db))

	// Auth.
	r.POST("/api/auth/login", handlers.Login(db))
	r.POST("/api/auth/logout", handlers.Logout(db))

	// Staff surface.
	admin := r.Group("/api", handlers.RequireRole(db, models.RoleAdmin, models.RolePartner))
	{
		admin.GET("/requests", handlers.ListRequests(db))
		admin.GET("/requests/:request_id", handlers.GetRequest(db))

		admin.POST("/quotes", handlers.CreateQuote(db))
		admin.GET("/quotes", handlers.ListQuotes(db))
		admin.GET("/quotes/:quote_id", handlers.GetQuote(db))
		admin.PUT("/quotes/:quote_id/metadata", handlers.UpdateQuoteMetadata(db))
		admin.POST("/quotes/:quote_id/send", handlers.SendQuote(db, emailService))
		admin.POST("/quotes/:quote_id/archive", handlers.ArchiveQuote(db))
		admin.GET("/quotes/:quote_id/pdf", handlers.QuotePdf(db))
		admin.GET("/quotes/:quote_id/qr", handlers.GenerateQuoteQR(db))

		admin.PUT("/projects/:project_id/phases/:phase_id/status", handlers.UpdatePhaseStatus(db))
		admin.POST("/projects/:project_id/payments/:payment_id/paid", handlers.MarkPaymentPaid(db))

		admin.GET("/activity-logs", handlers.ListActivityLogs(db))
		admin.GET("/exports/quotes", handlers.ExportQuotesExcel(db))
		admin.GET("/exports/projects/:project_id/payments", handlers.ExportPaymentsExcel(db))
	}

	// Any authenticated session (clients included).
	r.GET("/api/projects", handlers.ListProjects(db))
	r.GET("/api/projects/:project_id", handlers.GetProject(db))
	r.GET("/api/notifications", handlers.ListNotifications(db))
	r.POST("/api/notifications/:notification_id/read", handlers.MarkNotificationRead(db))

	port := os.Getenv("PORT")
	if port == "" {
		port = "9000"
	}
	portInt, err := strconv.Atoi(port)
	if err != nil || portInt < 0 || portInt > 65535 {
		log.Fatalf("Invalid PORT environment variable: %s", port)
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c.Stop()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exiting")
}
