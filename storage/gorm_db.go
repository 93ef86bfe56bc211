package storage

import (
	"fmt"
	"log"
	"os"
	"time"

	"backend/models"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var gormDB *gorm.DB

// InitGormDB initializes the GORM database connection from the environment.
func InitGormDB() *gorm.DB {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment")
	}

	user := os.Getenv("DB_USER")
	password := os.Getenv("DB_PASSWORD")
	dbname := os.Getenv("DB_NAME")
	host := os.Getenv("DB_HOST")
	port := os.Getenv("DB_PORT")

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		host, user, password, dbname, port)

	var err error
	gormDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatal("Failed to connect to database with GORM:", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal("Failed to get underlying sql.DB:", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(10 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	if err := AutoMigrate(gormDB); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	return gormDB
}

// GetGormDB returns the GORM database instance.
func GetGormDB() *gorm.DB {
	return gormDB
}

// CleanupExpiredSessions removes sessions past their expiry.
func CleanupExpiredSessions(db *gorm.DB) error {
	return db.Where("expires_at < ?", time.Now()).Delete(&models.Session{}).Error
}

// CleanupExpiredLoginTokens removes magic login tokens that expired without
// being redeemed. Spent tokens stay for the audit trail.
func CleanupExpiredLoginTokens(db *gorm.DB) error {
	return db.Where("expires_at < ? AND used_at IS NULL", time.Now()).
		Delete(&models.MagicLoginToken{}).Error
}

// AutoMigrate creates or updates the schema for every persisted model. Also
// used by tests against sqlite.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.Service{},
		&models.CustomProjectRequest{},
		&models.Quote{},
		&models.Order{},
		&models.Project{},
		&models.ProjectPhase{},
		&models.MilestonePayment{},
		&models.AuditLog{},
		&models.MagicLoginToken{},
		&models.ReferralCommission{},
		&models.Notification{},
		&models.EmailTemplate{},
	)
}
