package model

import "time"

// MerchantRecord is the persistent memory for one normalized merchant name.
// TimesSeen is at least 1 once the record exists. OverrideCount increments
// only through the human-correction path, never through automated
// classification.
type MerchantRecord struct {
	LastUpdated   time.Time
	Name          string
	CategoryLabel string
	Embedding     []float64
	TimesSeen     int
	OverrideCount int
}
