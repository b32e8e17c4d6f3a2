package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// CatalogRepo reads movies and theaters for the public browse endpoints.
// The catalog is maintained by another system; nothing here writes.
type CatalogRepo struct {
	db *sql.DB
}

// NewCatalogRepo constructs a CatalogRepo with the provided DB handle.
func NewCatalogRepo(db *sql.DB) *CatalogRepo {
	return &CatalogRepo{db: db}
}

const movieCols = `id, title, description, duration_min, poster_url, release_date`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMovie(s rowScanner) (model.Movie, error) {
	var m model.Movie
	var desc, poster sql.NullString
	if err := s.Scan(&m.ID, &m.Title, &desc, &m.DurationMin, &poster, &m.ReleaseDate); err != nil {
		return model.Movie{}, err
	}
	if desc.Valid {
		d := desc.String
		m.Description = &d
	}
	if poster.Valid {
		p := poster.String
		m.PosterURL = &p
	}
	return m, nil
}

// ListMovies returns all movies, newest release first.
func (r *CatalogRepo) ListMovies(ctx context.Context) ([]model.Movie, error) {
	const q = `SELECT ` + movieCols + ` FROM movies ORDER BY release_date DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Movie
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetMovie fetches a movie by id.
func (r *CatalogRepo) GetMovie(ctx context.Context, id uint64) (model.Movie, error) {
	const q = `SELECT ` + movieCols + ` FROM movies WHERE id = ?`
	m, err := scanMovie(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Movie{}, ErrNotFound
	}
	return m, err
}

// ListTheaters returns all theaters ordered by name.
func (r *CatalogRepo) ListTheaters(ctx context.Context) ([]model.Theater, error) {
	const q = `SELECT id, name, address FROM theaters ORDER BY name ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Theater
	for rows.Next() {
		var t model.Theater
		if err := rows.Scan(&t.ID, &t.Name, &t.Address); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
