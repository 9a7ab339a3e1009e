package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"habitchallenge/internal/model"
)

type challengeRepository struct {
	db *sqlx.DB
}

func NewChallengeRepository(db *sqlx.DB) ChallengeRepository {
	return &challengeRepository{db: db}
}

const challengeColumns = `id, title, thumbnail, frequency, start_date, end_date,
	auth_count_per_day, auth_description, created_at, updated_at`

// Create inserts a challenge. Dates are sent as YYYY-MM-DD so the session
// time zone never shifts them.
func (r *challengeRepository) Create(ctx context.Context, c *model.Challenge) error {
	query := `
		INSERT INTO challenges (title, thumbnail, frequency, start_date, end_date, auth_count_per_day, auth_description)
		VALUES ($1, $2, $3, $4::date, $5::date, $6, $7)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		c.Title,
		c.Thumbnail,
		c.Frequency,
		c.StartDate.Format(model.DateLayout),
		c.EndDate.Format(model.DateLayout),
		c.AuthCountPerDay,
		c.AuthDescription,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return storageError("insert challenge", err)
	}
	return nil
}

func (r *challengeRepository) GetByID(ctx context.Context, id int64) (*model.Challenge, error) {
	query := `SELECT ` + challengeColumns + ` FROM challenges WHERE id = $1`

	var c model.Challenge
	err := r.db.GetContext(ctx, &c, query, id)
	if err == sql.ErrNoRows {
		return nil, model.ErrChallengeNotFound
	}
	if err != nil {
		return nil, storageError("get challenge", err)
	}
	return &c, nil
}

func (r *challengeRepository) List(ctx context.Context, filter model.ChallengeFilter, today time.Time, limit, offset int) ([]model.Challenge, error) {
	var where string
	switch filter {
	case model.ChallengeFilterAll:
		where = "TRUE"
	case model.ChallengeFilterRecruiting:
		where = "start_date <= $3::date AND end_date >= $3::date"
	case model.ChallengeFilterUpcoming:
		where = "start_date > $3::date"
	case model.ChallengeFilterEnded:
		where = "end_date < $3::date"
	default:
		return nil, fmt.Errorf("%w: unknown filter %q", model.ErrValidation, filter)
	}

	args := []interface{}{limit, offset}
	if filter != model.ChallengeFilterAll {
		args = append(args, today.Format(model.DateLayout))
	}

	query := `
		SELECT ` + challengeColumns + `
		FROM challenges
		WHERE ` + where + `
		ORDER BY start_date DESC, id DESC
		LIMIT $1 OFFSET $2
	`

	challenges := []model.Challenge{}
	if err := r.db.SelectContext(ctx, &challenges, query, args...); err != nil {
		return nil, storageError("list challenges", err)
	}
	return challenges, nil
}

// Update writes every mutable column; the service merges partial updates first.
func (r *challengeRepository) Update(ctx context.Context, c *model.Challenge) error {
	query := `
		UPDATE challenges
		SET title = $2, thumbnail = $3, frequency = $4, start_date = $5::date, end_date = $6::date,
		    auth_count_per_day = $7, auth_description = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		c.ID,
		c.Title,
		c.Thumbnail,
		c.Frequency,
		c.StartDate.Format(model.DateLayout),
		c.EndDate.Format(model.DateLayout),
		c.AuthCountPerDay,
		c.AuthDescription,
	).Scan(&c.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.ErrChallengeNotFound
	}
	if err != nil {
		return storageError("update challenge", err)
	}
	return nil
}

// Delete removes a challenge; participations and proofs cascade.
func (r *challengeRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM challenges WHERE id = $1`, id)
	if err != nil {
		return storageError("delete challenge", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return storageError("get rows affected", err)
	}
	if rows == 0 {
		return model.ErrChallengeNotFound
	}
	return nil
}
