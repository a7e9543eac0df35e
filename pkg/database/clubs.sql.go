package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/trackmeet/core/pkg/models"
)

const getClubByAbbreviation = `
SELECT id, abbreviation, name, slug, country, city, created_at, updated_at
FROM clubs
WHERE abbreviation = $1
`

func (q *Queries) GetClubByAbbreviation(ctx context.Context, abbreviation string) (*models.Club, error) {
	row := q.db.QueryRow(ctx, getClubByAbbreviation, abbreviation)
	var (
		c    models.Club
		city pgtype.Text
	)
	err := row.Scan(
		&c.ID,
		&c.Abbreviation,
		&c.Name,
		&c.Slug,
		&c.Country,
		&city,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	c.City = city.String
	return &c, nil
}

const createClub = `
INSERT INTO clubs (abbreviation, name, slug, country, city)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at, updated_at
`

func (q *Queries) CreateClub(ctx context.Context, club *models.Club) (*models.Club, error) {
	created := *club
	row := q.db.QueryRow(ctx, createClub,
		club.Abbreviation,
		club.Name,
		club.Slug,
		club.Country,
		pgtype.Text{String: club.City, Valid: club.City != ""},
	)
	if err := row.Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt); err != nil {
		return nil, uniqueViolation(err, "clubs", club.Abbreviation)
	}
	return &created, nil
}

const countClubs = `SELECT count(*) FROM clubs`

func (q *Queries) CountClubs(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countClubs).Scan(&count)
	return count, err
}
