package models

import "time"

// AthleteCounts aggregates per-athlete reconciliation decisions
type AthleteCounts struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// ClubCounts aggregates per-club reconciliation decisions
type ClubCounts struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// SyncOutcome summarizes one roster reconciliation run. It is never persisted.
type SyncOutcome struct {
	Season   int           `json:"season"`
	Athletes AthleteCounts `json:"athletes"`
	Clubs    ClubCounts    `json:"clubs"`
	Duration time.Duration `json:"duration"`
}

// Processed returns the number of roster rows that were classified
func (o *SyncOutcome) Processed() int {
	return o.Athletes.Created + o.Athletes.Updated + o.Athletes.Skipped
}
