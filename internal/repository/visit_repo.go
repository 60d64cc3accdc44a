package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"site-inspector/internal/model"
)

const visitColumns = `id, site_id, engineer_id, status, notes, visited_at, reviewed_by, reviewed_at,
		        review_note, created_at, updated_at`

type VisitRepository struct {
	pool *pgxpool.Pool
}

func NewVisitRepository(pool *pgxpool.Pool) *VisitRepository {
	return &VisitRepository{pool: pool}
}

func (r *VisitRepository) GetByID(ctx context.Context, id string) (model.Visit, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+visitColumns+` FROM visits WHERE id = $1`, id)
	return scanVisit(row, "get visit")
}

func (r *VisitRepository) Create(ctx context.Context, v model.Visit) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO visits (id, site_id, engineer_id, status, notes, visited_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		v.ID, v.SiteID, v.EngineerID, v.Status, v.Notes, v.VisitedAt, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return storeErr("create visit", err)
	}
	return nil
}

func (r *VisitRepository) UpdateNotes(ctx context.Context, id string, notes string, now time.Time) (model.Visit, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE visits SET notes = $2, updated_at = $3
		 WHERE id = $1 AND status = $4
		 RETURNING `+visitColumns,
		id, notes, now, model.VisitPending)

	v, err := scanVisit(row, "update visit notes")
	if errors.Is(err, model.ErrVisitNotFound) {
		return model.Visit{}, r.missOrTransition(ctx, id)
	}
	return v, err
}

func (r *VisitRepository) UpdateStatus(ctx context.Context, c model.StatusChange) (model.Visit, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE visits
		 SET status = $2, reviewed_by = $3, reviewed_at = $4, review_note = $5, updated_at = $4
		 WHERE id = $1 AND status = $6
		 RETURNING `+visitColumns,
		c.VisitID, c.To, c.ReviewerID, c.At, c.Note, c.From)

	v, err := scanVisit(row, "update visit status")
	if errors.Is(err, model.ErrVisitNotFound) {
		return model.Visit{}, r.missOrTransition(ctx, c.VisitID)
	}
	return v, err
}

func (r *VisitRepository) ExistsForEngineerAtSite(ctx context.Context, engineerID string, siteID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM visits WHERE engineer_id = $1 AND site_id = $2)`,
		engineerID, siteID).Scan(&exists)
	if err != nil {
		return false, storeErr("check engineer visit at site", err)
	}
	return exists, nil
}

// missOrTransition tells a vanished row apart from one whose status moved on.
func (r *VisitRepository) missOrTransition(ctx context.Context, id string) error {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM visits WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return storeErr("check visit exists", err)
	}
	if exists {
		return model.ErrInvalidTransition
	}
	return model.ErrVisitNotFound
}

func scanVisit(row pgx.Row, op string) (model.Visit, error) {
	var v model.Visit
	err := row.Scan(&v.ID, &v.SiteID, &v.EngineerID, &v.Status, &v.Notes, &v.VisitedAt, &v.ReviewedBy,
		&v.ReviewedAt, &v.ReviewNote, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Visit{}, model.ErrVisitNotFound
	}
	if err != nil {
		return model.Visit{}, storeErr(op, err)
	}
	return v, nil
}
