package repository

import (
	"time"

	"signalboard/internal/models"
)

// ApplySignalDefaults fills the store-assigned defaults on create:
// status ACTIVE, style DAILY, category FOREX, creation timestamp.
func ApplySignalDefaults(item *models.Signal, now time.Time) {
	if item.Status == "" {
		item.Status = models.StatusActive
	}
	if item.Style == "" {
		item.Style = models.StyleDaily
	}
	if item.Category == "" {
		item.Category = models.CategoryForex
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
}
