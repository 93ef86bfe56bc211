package services

import (
	"fmt"
	"testing"
	"time"

	"backend/models"
	"backend/repository"
)

func TestHashTokenIsStable(t *testing.T) {
	a := repository.HashToken("some-plaintext")
	b := repository.HashToken("some-plaintext")
	if a != b {
		t.Fatalf("hashing the same plaintext twice gave %q and %q", a, b)
	}
	if a == "some-plaintext" {
		t.Fatal("hash must not equal the plaintext")
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
}

func TestResolveQuoteTokenPrimaryPath(t *testing.T) {
	db := setupTestDB(t)

	plaintext := "token-abc"
	hash := repository.HashToken(plaintext)
	expires := time.Now().Add(time.Hour)
	quote := models.Quote{
		CustomRequestID: 1,
		Amount:          1000,
		Currency:        "USD",
		Status:          models.QuoteStatusSent,
		MagicToken:      &hash,
		ExpiresAt:       &expires,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	if err := db.Create(&quote).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	got, gotHash, err := ResolveQuoteToken(db, plaintext)
	if err != nil {
		t.Fatalf("ResolveQuoteToken: %v", err)
	}
	if got.ID != quote.ID {
		t.Errorf("resolved wrong quote: %d", got.ID)
	}
	if gotHash != hash {
		t.Errorf("expected returned hash %q, got %q", hash, gotHash)
	}
}

func TestResolveQuoteTokenRejectsExpired(t *testing.T) {
	db := setupTestDB(t)

	plaintext := "expired-token"
	hash := repository.HashToken(plaintext)
	expires := time.Now().Add(-time.Minute)
	quote := models.Quote{
		CustomRequestID: 1,
		Amount:          1000,
		Status:          models.QuoteStatusSent,
		MagicToken:      &hash,
		ExpiresAt:       &expires,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	if err := db.Create(&quote).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	if _, _, err := ResolveQuoteToken(db, plaintext); err != ErrTokenNotFound {
		t.Fatalf("expected ErrTokenNotFound for expired token, got %v", err)
	}
}

func TestResolveQuoteTokenRejectsArchived(t *testing.T) {
	db := setupTestDB(t)

	plaintext := "archived-token"
	hash := repository.HashToken(plaintext)
	archived := time.Now()
	quote := models.Quote{
		CustomRequestID: 1,
		Amount:          1000,
		Status:          models.QuoteStatusSent,
		MagicToken:      &hash,
		ArchivedAt:      &archived,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	if err := db.Create(&quote).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	if _, _, err := ResolveQuoteToken(db, plaintext); err != ErrTokenNotFound {
		t.Fatalf("expected ErrTokenNotFound for archived quote, got %v", err)
	}
}

func TestResolveQuoteTokenLegacyAuditFallback(t *testing.T) {
	db := setupTestDB(t)

	// Legacy quote: no magic_token column value, hash lives only in the
	// QUOTE_SENT audit row.
	quote := models.Quote{
		CustomRequestID: 1,
		Amount:          750,
		Status:          models.QuoteStatusSent,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	if err := db.Create(&quote).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	plaintext := "legacy-token"
	hash := repository.HashToken(plaintext)
	if err := SaveAuditLog(db, nil, models.ActionQuoteSent, models.TargetQuote, quote.ID,
		models.QuoteSentData{TokenHash: hash, ExpiresAt: time.Now().Add(time.Hour), SentTo: "a@b.c"}); err != nil {
		t.Fatalf("audit seed failed: %v", err)
	}

	got, gotHash, err := ResolveQuoteToken(db, plaintext)
	if err != nil {
		t.Fatalf("legacy fallback failed: %v", err)
	}
	if got.ID != quote.ID {
		t.Errorf("resolved wrong quote: %d", got.ID)
	}
	if gotHash != hash {
		t.Errorf("unexpected hash %q", gotHash)
	}
}

func TestResolveQuoteTokenLegacyBuriedUnderNewerRows(t *testing.T) {
	db := setupTestDB(t)

	quote := models.Quote{
		CustomRequestID: 1,
		Amount:          750,
		Status:          models.QuoteStatusSent,
		CreatedAt:       time.Now().Add(-48 * time.Hour),
		UpdatedAt:       time.Now().Add(-48 * time.Hour),
	}
	if err := db.Create(&quote).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	plaintext := "old-legacy-token"
	hash := repository.HashToken(plaintext)
	oldEntry := models.AuditLog{
		Action:     models.ActionQuoteSent,
		TargetType: models.TargetQuote,
		TargetID:   quote.ID,
		Data:       `{"tokenHash":"` + hash + `","sentTo":"a@b.c"}`,
		CreatedAt:  time.Now().Add(-48 * time.Hour),
	}
	if err := db.Create(&oldEntry).Error; err != nil {
		t.Fatalf("audit seed failed: %v", err)
	}

	// Bury the legacy row under a large pile of newer QUOTE_SENT rows for
	// other quotes: age must not push it out of the resolver's reach.
	newer := make([]models.AuditLog, 0, 600)
	for i := 0; i < 600; i++ {
		newer = append(newer, models.AuditLog{
			Action:     models.ActionQuoteSent,
			TargetType: models.TargetQuote,
			TargetID:   quote.ID + uint(i) + 1,
			Data:       `{"tokenHash":"` + repository.HashToken(fmt.Sprintf("other-%d", i)) + `"}`,
			CreatedAt:  time.Now(),
		})
	}
	if err := db.CreateInBatches(newer, 100).Error; err != nil {
		t.Fatalf("bulk audit seed failed: %v", err)
	}

	got, _, err := ResolveQuoteToken(db, plaintext)
	if err != nil {
		t.Fatalf("buried legacy token did not resolve: %v", err)
	}
	if got.ID != quote.ID {
		t.Errorf("resolved wrong quote: %d", got.ID)
	}
}

func TestResolveQuoteTokenOneCharacterDelta(t *testing.T) {
	db := setupTestDB(t)

	plaintext := "delta-token-0"
	hash := repository.HashToken(plaintext)
	quote := models.Quote{
		CustomRequestID: 1,
		Amount:          500,
		Status:          models.QuoteStatusSent,
		MagicToken:      &hash,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	if err := db.Create(&quote).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if err := SaveAuditLog(db, nil, models.ActionQuoteSent, models.TargetQuote, quote.ID,
		models.QuoteSentData{TokenHash: hash}); err != nil {
		t.Fatalf("audit seed failed: %v", err)
	}

	if repository.HashToken("delta-token-1") == hash {
		t.Fatal("hashes of different plaintexts must differ")
	}
	if _, _, err := ResolveQuoteToken(db, "delta-token-1"); err != ErrTokenNotFound {
		t.Fatalf("a near-miss token must not resolve on either path, got %v", err)
	}
}

func TestResolveQuoteTokenLegacyIgnoresSettledQuotes(t *testing.T) {
	db := setupTestDB(t)

	quote := models.Quote{
		CustomRequestID: 1,
		Amount:          750,
		Status:          models.QuoteStatusAccepted,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	if err := db.Create(&quote).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	plaintext := "settled-token"
	hash := repository.HashToken(plaintext)
	if err := SaveAuditLog(db, nil, models.ActionQuoteSent, models.TargetQuote, quote.ID,
		models.QuoteSentData{TokenHash: hash, ExpiresAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("audit seed failed: %v", err)
	}

	if _, _, err := ResolveQuoteToken(db, plaintext); err != ErrTokenNotFound {
		t.Fatalf("accepted quotes must not resolve via legacy path, got %v", err)
	}
}

func TestResolveQuoteTokenUnknown(t *testing.T) {
	db := setupTestDB(t)
	if _, _, err := ResolveQuoteToken(db, "never-issued"); err != ErrTokenNotFound {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
}
