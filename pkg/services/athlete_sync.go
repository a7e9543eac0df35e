package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/trackmeet/core/pkg/clock"
	"github.com/trackmeet/core/pkg/database"
	"github.com/trackmeet/core/pkg/logger"
	"github.com/trackmeet/core/pkg/models"
	"github.com/trackmeet/core/pkg/utils"
)

const (
	// Licenses at or below this number are federation placeholders
	reservedLicenseMax = 10000

	birthDateLayout = "2006-01-02"

	DefaultClubCountry = "UNK"
)

var minBirthDate = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

type decision int

const (
	decisionSkipped decision = iota
	decisionCreated
	decisionUpdated
)

// AthleteSyncService reconciles the federation roster into the local store
type AthleteSyncService struct {
	store          RosterStore
	source         RosterSource
	clubs          ClubLookup
	clock          clock.Clock
	logger         *logger.Logger
	defaultCountry string
}

// NewAthleteSyncService wires the reconciliation engine. clubs may be nil, in
// which case unknown clubs are always created from their abbreviation.
func NewAthleteSyncService(store RosterStore, source RosterSource, clubs ClubLookup, clk clock.Clock, log *logger.Logger, defaultCountry string) *AthleteSyncService {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = logger.Nop()
	}
	if defaultCountry == "" {
		defaultCountry = DefaultClubCountry
	}
	return &AthleteSyncService{
		store:          store,
		source:         source,
		clubs:          clubs,
		clock:          clk,
		logger:         log,
		defaultCountry: defaultCountry,
	}
}

// SyncAthletes fetches the roster and reconciles it for season. Fetch errors
// are returned as is; per-record problems only show up in the outcome.
func (s *AthleteSyncService) SyncAthletes(ctx context.Context, season int) (*models.SyncOutcome, error) {
	s.logger.Info().
		Str("action", "sync_start").
		Int("season", season).
		Msg("Starting athlete roster sync")

	records, err := s.source.FetchRoster(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roster: %w", err)
	}

	s.logger.Info().
		Str("action", "roster_fetched").
		Int("records", len(records)).
		Msg("Fetched roster from federation")

	return s.Reconcile(ctx, records, season)
}

// syncRun holds state scoped to a single Reconcile call
type syncRun struct {
	clubs map[string]*models.Club
}

// Reconcile classifies every record as created, updated or skipped against
// the local store. A failing record is counted as skipped and never stops the
// run; only context cancellation does, returning the partial outcome.
func (s *AthleteSyncService) Reconcile(ctx context.Context, records []models.ExternalRecord, season int) (*models.SyncOutcome, error) {
	start := s.clock.Now()
	outcome := &models.SyncOutcome{Season: season}
	run := &syncRun{clubs: make(map[string]*models.Club)}

	for i := range records {
		if err := ctx.Err(); err != nil {
			outcome.Duration = s.clock.Now().Sub(start)
			return outcome, err
		}

		rec := &records[i]
		d, err := s.reconcileRecord(ctx, run, rec, season, outcome)
		if err != nil {
			s.logger.WithAthlete(rec.License, rec.FirstName, rec.LastName).Error().
				Err(err).
				Str("action", "record_failed").
				Int("season", season).
				Msg("Failed to reconcile roster record")
			d = decisionSkipped
		}

		switch d {
		case decisionCreated:
			outcome.Athletes.Created++
		case decisionUpdated:
			outcome.Athletes.Updated++
		default:
			outcome.Athletes.Skipped++
		}
	}

	outcome.Duration = s.clock.Now().Sub(start)

	s.logger.Info().
		Str("action", "sync_complete").
		Int("season", season).
		Int("athletes_created", outcome.Athletes.Created).
		Int("athletes_updated", outcome.Athletes.Updated).
		Int("athletes_skipped", outcome.Athletes.Skipped).
		Int("clubs_created", outcome.Clubs.Created).
		Int("clubs_skipped", outcome.Clubs.Skipped).
		Dur("duration", outcome.Duration).
		Msg("Athlete roster reconciliation completed")

	return outcome, nil
}

func (s *AthleteSyncService) reconcileRecord(ctx context.Context, run *syncRun, rec *models.ExternalRecord, season int, outcome *models.SyncOutcome) (decision, error) {
	incoming, reason := s.validate(rec)
	if reason != "" {
		s.logger.Debug().
			Str("action", "record_skipped").
			Str("license", rec.License).
			Str("reason", reason).
			Msg("Skipping roster record")
		return decisionSkipped, nil
	}

	// The season row references the club, so the club must exist first
	var clubID *int64
	if rec.Club != nil && strings.TrimSpace(rec.Club.Abbreviation) != "" {
		club, err := s.resolveClub(ctx, run, rec.Club, outcome)
		if err != nil {
			return decisionSkipped, err
		}
		id := club.ID
		clubID = &id
	}

	athlete, err := s.store.GetAthleteByLicense(ctx, incoming.License)
	if errors.Is(err, database.ErrNotFound) {
		created, err := s.store.CreateAthlete(ctx, incoming)
		if err != nil {
			return decisionSkipped, fmt.Errorf("failed to create athlete: %w", err)
		}
		if err := s.createInfo(ctx, created.ID, season, clubID, rec.Bib); err != nil {
			return decisionSkipped, err
		}
		return decisionCreated, nil
	}
	if err != nil {
		return decisionSkipped, fmt.Errorf("failed to look up athlete: %w", err)
	}

	info, err := s.store.GetAthleteInfo(ctx, athlete.ID, season)
	if errors.Is(err, database.ErrNotFound) {
		if err := s.createInfo(ctx, athlete.ID, season, clubID, rec.Bib); err != nil {
			return decisionSkipped, err
		}
		if err := s.updateCoreFields(ctx, athlete, incoming); err != nil {
			return decisionSkipped, err
		}
		return decisionCreated, nil
	}
	if err != nil {
		return decisionSkipped, fmt.Errorf("failed to look up athlete info: %w", err)
	}

	info.ClubID = clubID
	info.Bib = rec.Bib
	if err := s.store.UpdateAthleteInfo(ctx, info); err != nil {
		return decisionSkipped, fmt.Errorf("failed to update athlete info: %w", err)
	}
	if err := s.updateCoreFields(ctx, athlete, incoming); err != nil {
		return decisionSkipped, err
	}
	return decisionUpdated, nil
}

func (s *AthleteSyncService) createInfo(ctx context.Context, athleteID int64, season int, clubID *int64, bib string) error {
	_, err := s.store.CreateAthleteInfo(ctx, &models.AthleteInfo{
		AthleteID: athleteID,
		Season:    season,
		ClubID:    clubID,
		Bib:       bib,
	})
	if err != nil {
		return fmt.Errorf("failed to create athlete info: %w", err)
	}
	return nil
}

// updateCoreFields writes name, gender and birth date only when one of them differs
func (s *AthleteSyncService) updateCoreFields(ctx context.Context, stored, incoming *models.Athlete) error {
	if !coreFieldsDiffer(stored, incoming) {
		return nil
	}

	updated := *stored
	updated.FirstName = incoming.FirstName
	updated.LastName = incoming.LastName
	updated.Gender = incoming.Gender
	updated.BirthDate = incoming.BirthDate
	if err := s.store.UpdateAthlete(ctx, &updated); err != nil {
		return fmt.Errorf("failed to update athlete: %w", err)
	}

	s.logger.Debug().
		Str("action", "athlete_updated").
		Str("license", stored.License).
		Msg("Updated athlete core fields")
	return nil
}

func (s *AthleteSyncService) resolveClub(ctx context.Context, run *syncRun, ext *models.ExternalClub, outcome *models.SyncOutcome) (*models.Club, error) {
	abbr := strings.ToUpper(strings.TrimSpace(ext.Abbreviation))
	if club, ok := run.clubs[abbr]; ok {
		return club, nil
	}

	club, err := s.store.GetClubByAbbreviation(ctx, abbr)
	if err == nil {
		run.clubs[abbr] = club
		outcome.Clubs.Skipped++
		return club, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up club %s: %w", abbr, err)
	}

	created, err := s.store.CreateClub(ctx, s.buildClub(ctx, abbr, ext))
	if err != nil {
		var conflict *database.ConstraintError
		if !errors.As(err, &conflict) {
			return nil, fmt.Errorf("failed to create club %s: %w", abbr, err)
		}
		// Another writer created it between our lookup and insert
		club, err := s.store.GetClubByAbbreviation(ctx, abbr)
		if err != nil {
			return nil, fmt.Errorf("failed to reload club %s: %w", abbr, err)
		}
		run.clubs[abbr] = club
		outcome.Clubs.Skipped++
		return club, nil
	}

	s.logger.Info().
		Str("action", "club_created").
		Str("club", abbr).
		Str("club_name", created.Name).
		Msg("Created club from roster")

	run.clubs[abbr] = created
	outcome.Clubs.Created++
	return created, nil
}

// buildClub enriches an unknown club from the federation registry and falls
// back to a minimal record when the lookup is unavailable.
func (s *AthleteSyncService) buildClub(ctx context.Context, abbr string, ext *models.ExternalClub) *models.Club {
	minimal := &models.Club{
		Abbreviation: abbr,
		Name:         abbr,
		Slug:         utils.GenerateClubSlug(abbr),
		Country:      s.defaultCountry,
	}
	if s.clubs == nil {
		return minimal
	}

	details, err := s.clubs.LookupClub(ctx, abbr)
	if err != nil || details == nil {
		s.logger.Warn().
			Err(err).
			Str("action", "club_enrichment_failed").
			Str("club", abbr).
			Str("feed_club_name", ext.Name).
			Msg("Club enrichment unavailable, creating minimal club")
		return minimal
	}

	club := &models.Club{
		Abbreviation: abbr,
		Name:         strings.TrimSpace(details.Name),
		Country:      strings.TrimSpace(details.Country),
		City:         strings.TrimSpace(details.City),
	}
	if club.Name == "" {
		club.Name = abbr
	}
	if club.Country == "" {
		club.Country = s.defaultCountry
	}
	club.Slug = utils.GenerateClubSlug(club.Name)
	return club
}

// validate normalizes a record into an athlete candidate, or returns the
// reason it must be skipped
func (s *AthleteSyncService) validate(rec *models.ExternalRecord) (*models.Athlete, string) {
	license := strings.TrimSpace(rec.License)
	firstName := strings.TrimSpace(rec.FirstName)
	lastName := strings.TrimSpace(rec.LastName)
	if license == "" || firstName == "" || lastName == "" {
		return nil, "missing_required_field"
	}

	athlete := &models.Athlete{
		License:   license,
		FirstName: firstName,
		LastName:  lastName,
		Gender:    normalizeGender(rec.Gender),
	}

	if raw := strings.TrimSpace(rec.BirthDate); raw != "" {
		birthDate, err := time.Parse(birthDateLayout, raw)
		if err != nil {
			return nil, "invalid_birth_date"
		}
		if birthDate.Before(minBirthDate) || birthDate.After(s.clock.Now()) {
			return nil, "birth_date_out_of_range"
		}
		athlete.BirthDate = &birthDate
	}

	if n, err := strconv.Atoi(license); err == nil && n <= reservedLicenseMax {
		return nil, "reserved_license"
	}

	return athlete, ""
}

func normalizeGender(raw string) string {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "M", "H", "MALE", "MAN", "HOMME":
		return "M"
	case "F", "W", "FEMALE", "WOMAN", "FEMME":
		return "F"
	default:
		return "X"
	}
}

func coreFieldsDiffer(stored, incoming *models.Athlete) bool {
	if stored.FirstName != incoming.FirstName ||
		stored.LastName != incoming.LastName ||
		stored.Gender != incoming.Gender {
		return true
	}
	return !sameDate(stored.BirthDate, incoming.BirthDate)
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
