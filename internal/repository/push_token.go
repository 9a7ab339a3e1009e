package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"habitchallenge/internal/model"
)

type pushTokenRepository struct {
	db *sqlx.DB
}

func NewPushTokenRepository(db *sqlx.DB) PushTokenRepository {
	return &pushTokenRepository{db: db}
}

// Save inserts the token, or returns the existing row when Expo hands the
// same token out again.
func (r *pushTokenRepository) Save(ctx context.Context, token string) (*model.PushToken, error) {
	query := `
		WITH inserted AS (
			INSERT INTO push_tokens (token)
			VALUES ($1)
			ON CONFLICT (token) DO NOTHING
			RETURNING id, token
		)
		SELECT id, token FROM inserted
		UNION ALL
		SELECT id, token FROM push_tokens WHERE token = $1
		LIMIT 1
	`
	var pt model.PushToken
	if err := r.db.GetContext(ctx, &pt, query, token); err != nil {
		return nil, storageError("save push token", err)
	}
	return &pt, nil
}

func (r *pushTokenRepository) ListTokens(ctx context.Context) ([]string, error) {
	var tokens []string
	if err := r.db.SelectContext(ctx, &tokens, `SELECT token FROM push_tokens ORDER BY id`); err != nil {
		return nil, storageError("list push tokens", err)
	}
	return tokens, nil
}

func (r *pushTokenRepository) Delete(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM push_tokens WHERE token = $1`, token); err != nil {
		return storageError("delete push token", err)
	}
	return nil
}
