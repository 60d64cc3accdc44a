package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"site-inspector/internal/model"
)

type SiteRepository struct {
	pool *pgxpool.Pool
}

func NewSiteRepository(pool *pgxpool.Pool) *SiteRepository {
	return &SiteRepository{pool: pool}
}

func (r *SiteRepository) GetByID(ctx context.Context, id string) (model.Site, error) {
	var s model.Site
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, address, created_at FROM sites WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, &s.Address, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Site{}, model.ErrSiteNotFound
	}
	if err != nil {
		return model.Site{}, storeErr("get site", err)
	}
	return s, nil
}

func (r *SiteRepository) Create(ctx context.Context, s model.Site) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sites (id, name, address, created_at) VALUES ($1, $2, $3, $4)`,
		s.ID, s.Name, s.Address, s.CreatedAt)
	if err != nil {
		return storeErr("create site", err)
	}
	return nil
}
