package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/trackmeet/core/pkg/models"
)

const getAthleteByLicense = `
SELECT id, license, first_name, last_name, gender, birth_date, created_at, updated_at
FROM athletes
WHERE license = $1
`

func (q *Queries) GetAthleteByLicense(ctx context.Context, license string) (*models.Athlete, error) {
	row := q.db.QueryRow(ctx, getAthleteByLicense, license)
	var (
		a         models.Athlete
		birthDate pgtype.Date
	)
	err := row.Scan(
		&a.ID,
		&a.License,
		&a.FirstName,
		&a.LastName,
		&a.Gender,
		&birthDate,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	if birthDate.Valid {
		t := birthDate.Time
		a.BirthDate = &t
	}
	return &a, nil
}

const createAthlete = `
INSERT INTO athletes (license, first_name, last_name, gender, birth_date)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at, updated_at
`

func (q *Queries) CreateAthlete(ctx context.Context, athlete *models.Athlete) (*models.Athlete, error) {
	created := *athlete
	row := q.db.QueryRow(ctx, createAthlete,
		athlete.License,
		athlete.FirstName,
		athlete.LastName,
		athlete.Gender,
		dateParam(athlete.BirthDate),
	)
	if err := row.Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt); err != nil {
		return nil, uniqueViolation(err, "athletes", athlete.License)
	}
	return &created, nil
}

const updateAthlete = `
UPDATE athletes
SET first_name = $2, last_name = $3, gender = $4, birth_date = $5, updated_at = now()
WHERE id = $1
`

func (q *Queries) UpdateAthlete(ctx context.Context, athlete *models.Athlete) error {
	tag, err := q.db.Exec(ctx, updateAthlete,
		athlete.ID,
		athlete.FirstName,
		athlete.LastName,
		athlete.Gender,
		dateParam(athlete.BirthDate),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const countAthletes = `SELECT count(*) FROM athletes`

func (q *Queries) CountAthletes(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countAthletes).Scan(&count)
	return count, err
}

const getAthleteInfo = `
SELECT id, athlete_id, season, club_id, bib, created_at, updated_at
FROM athlete_infos
WHERE athlete_id = $1 AND season = $2
`

func (q *Queries) GetAthleteInfo(ctx context.Context, athleteID int64, season int) (*models.AthleteInfo, error) {
	row := q.db.QueryRow(ctx, getAthleteInfo, athleteID, int32(season))
	var (
		info     models.AthleteInfo
		season32 int32
		clubID   pgtype.Int8
	)
	err := row.Scan(
		&info.ID,
		&info.AthleteID,
		&season32,
		&clubID,
		&info.Bib,
		&info.CreatedAt,
		&info.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	info.Season = int(season32)
	if clubID.Valid {
		id := clubID.Int64
		info.ClubID = &id
	}
	return &info, nil
}

const createAthleteInfo = `
INSERT INTO athlete_infos (athlete_id, season, club_id, bib)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at, updated_at
`

func (q *Queries) CreateAthleteInfo(ctx context.Context, info *models.AthleteInfo) (*models.AthleteInfo, error) {
	created := *info
	row := q.db.QueryRow(ctx, createAthleteInfo,
		info.AthleteID,
		int32(info.Season),
		int8Param(info.ClubID),
		info.Bib,
	)
	if err := row.Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt); err != nil {
		return nil, uniqueViolation(err, "athlete_infos", "athlete_id,season")
	}
	return &created, nil
}

const updateAthleteInfo = `
UPDATE athlete_infos
SET club_id = $2, bib = $3, updated_at = now()
WHERE id = $1
`

func (q *Queries) UpdateAthleteInfo(ctx context.Context, info *models.AthleteInfo) error {
	tag, err := q.db.Exec(ctx, updateAthleteInfo, info.ID, int8Param(info.ClubID), info.Bib)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func dateParam(t *time.Time) pgtype.Date {
	if t == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: *t, Valid: true}
}

func int8Param(v *int64) pgtype.Int8 {
	if v == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *v, Valid: true}
}
