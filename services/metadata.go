package services

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"backend/models"

	"gorm.io/gorm"
)

// PhaseSeed is a normalized phase entry parsed from the quote plan metadata.
type PhaseSeed struct {
	Key         string
	Group       string
	Title       string
	Description string
	DueDate     *time.Time
	Order       int
}

// PaymentSeed is a normalized payment entry. BeforePhaseKey references a
// PhaseSeed.Key the payment gates on.
type PaymentSeed struct {
	Label          string
	Amount         float64
	DueDate        *time.Time
	BeforePhaseKey string
}

// QuoteMetadata is the normalized view of the free-form plan blob an admin
// attached to a quote.
type QuoteMetadata struct {
	Phases             []PhaseSeed
	Payments           []PaymentSeed
	ServiceID          *uint
	ProjectTitle       string
	ProjectDescription string
}

// LoadQuoteMetadata reads the most recent QUOTE_META audit row for a quote and
// normalizes it. A quote without metadata yields an empty (non-nil) result.
func LoadQuoteMetadata(db *gorm.DB, quoteID uint) (*QuoteMetadata, error) {
	var entry models.AuditLog
	err := db.Where("action = ? AND target_type = ? AND target_id = ?",
		models.ActionQuoteMeta, models.TargetQuote, quoteID).
		Order("created_at DESC").Order("id DESC").
		First(&entry).Error
	if err == gorm.ErrRecordNotFound {
		return &QuoteMetadata{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load quote metadata: %w", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(entry.Data), &raw); err != nil {
		// Malformed blobs are treated as absent, not fatal.
		return &QuoteMetadata{}, nil
	}
	return ParseQuoteMetadata(raw), nil
}

// ParseQuoteMetadata normalizes a raw metadata blob. It never fails: malformed
// entries are dropped and missing fields get defaults.
func ParseQuoteMetadata(raw map[string]interface{}) *QuoteMetadata {
	meta := &QuoteMetadata{
		Phases:   ParsePhases(raw["phases"]),
		Payments: ParsePaymentSchedule(raw["paymentSchedule"]),
	}

	if id, ok := asUint(raw["serviceId"]); ok {
		meta.ServiceID = &id
	}
	if title, ok := raw["projectTitle"].(string); ok && strings.TrimSpace(title) != "" {
		meta.ProjectTitle = strings.TrimSpace(title)
	}
	if desc, ok := raw["projectDescription"].(string); ok && strings.TrimSpace(desc) != "" {
		meta.ProjectDescription = strings.TrimSpace(desc)
	}
	return meta
}

// ParsePhases normalizes the raw phases list. Non-object entries are dropped
// silently; missing fields default (group REQUIREMENTS, title "Phase N", order
// = array index, key "phase-N").
func ParsePhases(raw interface{}) []PhaseSeed {
	list, ok := raw.([]interface{})
	if !ok {
		return nil
	}

	var seeds []PhaseSeed
	for i, item := range list {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}

		seed := PhaseSeed{
			Key:   fmt.Sprintf("phase-%d", i+1),
			Group: models.PhaseGroupRequirements,
			Title: fmt.Sprintf("Phase %d", i+1),
			Order: i,
		}
		if key, ok := entry["key"].(string); ok && key != "" {
			seed.Key = key
		}
		if group, ok := entry["group"].(string); ok {
			group = strings.ToUpper(strings.TrimSpace(group))
			if models.ValidPhaseGroup(group) {
				seed.Group = group
			}
		}
		if title, ok := entry["title"].(string); ok && strings.TrimSpace(title) != "" {
			seed.Title = strings.TrimSpace(title)
		}
		if desc, ok := entry["description"].(string); ok {
			seed.Description = desc
		}
		seed.DueDate = parseDate(entry["dueDate"])
		if order, ok := asFloat(entry["order"]); ok {
			seed.Order = int(order)
		}

		seeds = append(seeds, seed)
	}
	return seeds
}

// ParsePaymentSchedule normalizes the raw payment list. Entries whose amount is
// missing, non-numeric, zero or negative are dropped: this is a validation
// gate, not a default-to-zero policy.
func ParsePaymentSchedule(raw interface{}) []PaymentSeed {
	list, ok := raw.([]interface{})
	if !ok {
		return nil
	}

	var seeds []PaymentSeed
	for i, item := range list {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}

		amount, ok := asFloat(entry["amount"])
		if !ok || amount <= 0 {
			continue
		}

		seed := PaymentSeed{
			Label:  fmt.Sprintf("Payment %d", i+1),
			Amount: amount,
		}
		if label, ok := entry["label"].(string); ok && strings.TrimSpace(label) != "" {
			seed.Label = strings.TrimSpace(label)
		}
		seed.DueDate = parseDate(entry["dueDate"])
		if key, ok := entry["beforePhaseKey"].(string); ok {
			seed.BeforePhaseKey = key
		}

		seeds = append(seeds, seed)
	}
	return seeds
}

// asFloat accepts JSON numbers and numeric strings.
func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func asUint(v interface{}) (uint, bool) {
	f, ok := asFloat(v)
	if !ok || f <= 0 || f != float64(uint(f)) {
		return 0, false
	}
	return uint(f), true
}

// parseDate accepts RFC 3339 timestamps and plain dates.
func parseDate(v interface{}) *time.Time {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return nil
	}
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
