package services

import (
	"context"
	"time"

	"github.com/trackmeet/core/pkg/models"
)

// RosterSource yields the external roster feed
type RosterSource interface {
	FetchRoster(ctx context.Context) ([]models.ExternalRecord, error)
}

// ClubLookup enriches a club unknown to the local store
type ClubLookup interface {
	LookupClub(ctx context.Context, abbreviation string) (*models.ClubDetails, error)
}

// RosterStore is the local record store for athletes, season infos and clubs.
// Lookups return database.ErrNotFound when nothing matches.
type RosterStore interface {
	GetClubByAbbreviation(ctx context.Context, abbreviation string) (*models.Club, error)
	CreateClub(ctx context.Context, club *models.Club) (*models.Club, error)
	CountClubs(ctx context.Context) (int64, error)

	GetAthleteByLicense(ctx context.Context, license string) (*models.Athlete, error)
	CreateAthlete(ctx context.Context, athlete *models.Athlete) (*models.Athlete, error)
	UpdateAthlete(ctx context.Context, athlete *models.Athlete) error
	CountAthletes(ctx context.Context) (int64, error)

	GetAthleteInfo(ctx context.Context, athleteID int64, season int) (*models.AthleteInfo, error)
	CreateAthleteInfo(ctx context.Context, info *models.AthleteInfo) (*models.AthleteInfo, error)
	UpdateAthleteInfo(ctx context.Context, info *models.AthleteInfo) error
}

// LogStore is the local record store for application logs
type LogStore interface {
	CreateLog(ctx context.Context, entry *models.LogEntry) (*models.LogEntry, error)
	DeleteLogsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	CountLogs(ctx context.Context) (int64, error)
}
