// Package memstore is an in-process implementation of the roster and log
// stores. It backs tests and the STORE_DRIVER=memory mode.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/trackmeet/core/pkg/database"
	"github.com/trackmeet/core/pkg/models"
)

type infoKey struct {
	athleteID int64
	season    int
}

type Store struct {
	mu sync.RWMutex

	now func() time.Time

	nextID   int64
	clubs    map[string]*models.Club
	athletes map[string]*models.Athlete
	infos    map[infoKey]*models.AthleteInfo
	logs     []*models.LogEntry
}

// New returns an empty store. now stamps created_at/updated_at; nil means time.Now.
func New(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		now:      now,
		clubs:    make(map[string]*models.Club),
		athletes: make(map[string]*models.Athlete),
		infos:    make(map[infoKey]*models.AthleteInfo),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) GetClubByAbbreviation(_ context.Context, abbreviation string) (*models.Club, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.clubs[abbreviation]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Store) CreateClub(_ context.Context, club *models.Club) (*models.Club, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.clubs[club.Abbreviation]; exists {
		return nil, &database.ConstraintError{Table: "clubs", Key: club.Abbreviation}
	}
	c := *club
	c.ID = s.id()
	c.CreatedAt = s.now()
	c.UpdatedAt = c.CreatedAt
	s.clubs[c.Abbreviation] = &c

	cp := c
	return &cp, nil
}

func (s *Store) CountClubs(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.clubs)), nil
}

func (s *Store) GetAthleteByLicense(_ context.Context, license string) (*models.Athlete, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.athletes[license]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *Store) CreateAthlete(_ context.Context, athlete *models.Athlete) (*models.Athlete, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.athletes[athlete.License]; exists {
		return nil, &database.ConstraintError{Table: "athletes", Key: athlete.License}
	}
	a := *athlete
	a.ID = s.id()
	a.CreatedAt = s.now()
	a.UpdatedAt = a.CreatedAt
	s.athletes[a.License] = &a

	cp := a
	return &cp, nil
}

func (s *Store) UpdateAthlete(_ context.Context, athlete *models.Athlete) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.athletes {
		if a.ID != athlete.ID {
			continue
		}
		a.FirstName = athlete.FirstName
		a.LastName = athlete.LastName
		a.Gender = athlete.Gender
		a.BirthDate = athlete.BirthDate
		a.UpdatedAt = s.now()
		return nil
	}
	return database.ErrNotFound
}

func (s *Store) CountAthletes(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.athletes)), nil
}

func (s *Store) GetAthleteInfo(_ context.Context, athleteID int64, season int) (*models.AthleteInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.infos[infoKey{athleteID, season}]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *info
	return &cp, nil
}

func (s *Store) CreateAthleteInfo(_ context.Context, info *models.AthleteInfo) (*models.AthleteInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := infoKey{info.AthleteID, info.Season}
	if _, exists := s.infos[key]; exists {
		return nil, &database.ConstraintError{Table: "athlete_infos", Key: "athlete_id,season"}
	}
	i := *info
	i.ID = s.id()
	i.CreatedAt = s.now()
	i.UpdatedAt = i.CreatedAt
	s.infos[key] = &i

	cp := i
	return &cp, nil
}

func (s *Store) UpdateAthleteInfo(_ context.Context, info *models.AthleteInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, i := range s.infos {
		if i.ID != info.ID {
			continue
		}
		i.ClubID = info.ClubID
		i.Bib = info.Bib
		i.UpdatedAt = s.now()
		return nil
	}
	return database.ErrNotFound
}

// AthleteInfos returns every season row of the athlete, oldest season first
func (s *Store) AthleteInfos(athleteID int64) []models.AthleteInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.AthleteInfo
	for k, i := range s.infos {
		if k.athleteID == athleteID {
			out = append(out, *i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Season < out[b].Season })
	return out
}

func (s *Store) CreateLog(_ context.Context, entry *models.LogEntry) (*models.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := *entry
	e.ID = s.id()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	s.logs = append(s.logs, &e)

	cp := e
	return &cp, nil
}

func (s *Store) DeleteLogsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.logs[:0]
	var deleted int64
	for _, e := range s.logs {
		if e.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	s.logs = kept
	return deleted, nil
}

func (s *Store) CountLogs(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.logs)), nil
}
