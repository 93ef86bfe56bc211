package services

import (
	"encoding/json"
	"fmt"
	"time"

	"backend/models"
	"backend/repository"

	"gorm.io/gorm"
)

// ErrTokenNotFound is returned when a token resolves to no live quote.
var ErrTokenNotFound = fmt.Errorf("no quote matches this token")

// ResolveQuoteToken resolves a caller-supplied plaintext token to a pending
// quote. Read-only; the returned hash lets the caller mark the token spent
// later.
//
// Primary path: quotes.magic_token equals the hash, not expired, not archived.
// Fallback path: legacy tokens issued before the magic_token column existed
// live only inside QUOTE_SENT audit rows, so those are scanned for a matching
// data.tokenHash and the referenced quote is loaded under the same freshness
// constraints.
func ResolveQuoteToken(db *gorm.DB, plaintext string) (*models.Quote, string, error) {
	hash := repository.HashToken(plaintext)
	now := time.Now()

	var quote models.Quote
	err := db.Where("magic_token = ? AND archived_at IS NULL AND (expires_at IS NULL OR expires_at > ?)",
		hash, now).First(&quote).Error
	if err == nil {
		return &quote, hash, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, "", fmt.Errorf("token lookup failed: %w", err)
	}

	quoteIDs, err := legacyQuoteIDsForHash(db, hash)
	if err != nil {
		return nil, "", err
	}
	if len(quoteIDs) == 0 {
		return nil, "", ErrTokenNotFound
	}

	err = db.Where("id IN ? AND status IN ? AND archived_at IS NULL AND (expires_at IS NULL OR expires_at > ?)",
		quoteIDs, []string{models.QuoteStatusSent, models.QuoteStatusDraft}, now).
		Order("created_at DESC").First(&quote).Error
	if err == gorm.ErrRecordNotFound {
		return nil, "", ErrTokenNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("legacy token lookup failed: %w", err)
	}
	return &quote, hash, nil
}

// legacyQuoteIDsForHash collects quote ids from QUOTE_SENT audit rows whose
// JSON payload carries the given token hash. A substring match narrows the scan
// in SQL (the hash is hex, so it cannot collide with JSON syntax); the JSON
// decode in Go confirms the match against the actual tokenHash field.
func legacyQuoteIDsForHash(db *gorm.DB, hash string) ([]uint, error) {
	var entries []models.AuditLog
	err := db.Where("action = ? AND target_type = ? AND data LIKE ?",
		models.ActionQuoteSent, models.TargetQuote, "%"+hash+"%").
		Order("created_at DESC").Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("audit log scan failed: %w", err)
	}

	var ids []uint
	for _, entry := range entries {
		var data struct {
			TokenHash string `json:"tokenHash"`
		}
		if json.Unmarshal([]byte(entry.Data), &data) != nil {
			continue
		}
		if data.TokenHash == hash {
			ids = append(ids, entry.TargetID)
		}
	}
	return ids, nil
}
