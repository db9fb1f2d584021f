package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"comicframe/pkg/models"
)

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// Save records a finished render.
func (r *Repo) Save(ctx context.Context, rec models.RenderRecord) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO render_history (id, comic_id, title, image_url, attempts, width, height, rendered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.ComicID, rec.Title, rec.ImageURL, rec.Attempts, rec.Width, rec.Height, rec.RenderedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert render %s: %w", rec.ID, err)
	}
	return nil
}

// List returns renders, newest first.
func (r *Repo) List(ctx context.Context, limit, offset int) ([]models.RenderRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, comic_id, title, image_url, attempts, width, height, rendered_at
		FROM render_history
		ORDER BY rendered_at DESC, id
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query list: %w", err)
	}
	defer rows.Close()

	items := make([]models.RenderRecord, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return items, nil
}

func (r *Repo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM render_history`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// Latest returns the newest render, or nil when there is none.
func (r *Repo) Latest(ctx context.Context) (*models.RenderRecord, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, comic_id, title, image_url, attempts, width, height, rendered_at
		FROM render_history
		ORDER BY rendered_at DESC, id
		LIMIT 1
	`)
	rec, err := scanRecord(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (models.RenderRecord, error) {
	var (
		rec        models.RenderRecord
		title      sql.NullString
		renderedAt time.Time
	)
	if err := s.Scan(
		&rec.ID, &rec.ComicID, &title, &rec.ImageURL, &rec.Attempts, &rec.Width, &rec.Height, &renderedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return rec, err
		}
		return rec, fmt.Errorf("scan render: %w", err)
	}
	rec.Title = title.String
	rec.RenderedAt = renderedAt.UTC()
	return rec, nil
}
