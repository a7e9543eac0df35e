package models

import "time"

// ExternalClub is the club reference carried by a roster feed row
type ExternalClub struct {
	Abbreviation string `json:"abbreviation"`
	Name         string `json:"name,omitempty"`
}

// ExternalRecord is one row of the federation roster feed. Values are kept as
// received; validation happens during reconciliation.
type ExternalRecord struct {
	License   string        `json:"license"`
	FirstName string        `json:"first_name"`
	LastName  string        `json:"last_name"`
	Gender    string        `json:"gender"`
	BirthDate string        `json:"birth_date"` // YYYY-MM-DD, may be empty
	Bib       string        `json:"bib,omitempty"`
	Club      *ExternalClub `json:"club,omitempty"`
}

// ClubDetails is the enrichment payload returned by the federation club lookup
type ClubDetails struct {
	Abbreviation string `json:"abbreviation"`
	Name         string `json:"name"`
	Country      string `json:"country"`
	City         string `json:"city"`
}

// Club is keyed by its abbreviation, which never changes once created
type Club struct {
	ID           int64     `json:"id"`
	Abbreviation string    `json:"abbreviation"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	Country      string    `json:"country"`
	City         string    `json:"city,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Athlete is keyed by its license number
type Athlete struct {
	ID        int64      `json:"id"`
	License   string     `json:"license"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Gender    string     `json:"gender"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// AthleteInfo holds the season-scoped part of an athlete (one row per athlete per season)
type AthleteInfo struct {
	ID        int64     `json:"id"`
	AthleteID int64     `json:"athlete_id"`
	Season    int       `json:"season"`
	ClubID    *int64    `json:"club_id,omitempty"`
	Bib       string    `json:"bib,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LogEntry is an application log row subject to retention cleanup
type LogEntry struct {
	ID        int64     `json:"id"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Context   []byte    `json:"context,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
