package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"habitchallenge/internal/model"
)

type participationRepository struct {
	db *sqlx.DB
}

func NewParticipationRepository(db *sqlx.DB) ParticipationRepository {
	return &participationRepository{db: db}
}

// Create enrolls a user in a challenge. The insert selects from challenges, so
// a missing challenge inserts nothing and returns model.ErrChallengeNotFound.
func (r *participationRepository) Create(ctx context.Context, userID, challengeID int64) (*model.Participation, error) {
	query := `
		INSERT INTO challenge_participations (status, user_id, challenge_id)
		SELECT $1, $2, c.id FROM challenges c WHERE c.id = $3
		RETURNING id, status, user_id, challenge_id, created_at, updated_at
	`
	var p model.Participation
	rows, err := r.db.QueryxContext(ctx, query, model.ParticipationInProgress, userID, challengeID)
	if err != nil {
		return nil, storageError("insert participation", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, storageError("insert participation", err)
		}
		return nil, model.ErrChallengeNotFound
	}
	if err := rows.StructScan(&p); err != nil {
		return nil, storageError("scan participation", err)
	}
	return &p, nil
}

// participationRow flattens a participation joined with its challenge.
type participationRow struct {
	model.Participation
	CTitle           string                `db:"c_title"`
	CThumbnail       string                `db:"c_thumbnail"`
	CFrequency       model.Frequency       `db:"c_frequency"`
	CStartDate       time.Time             `db:"c_start_date"`
	CEndDate         time.Time             `db:"c_end_date"`
	CAuthCountPerDay model.AuthCountPerDay `db:"c_auth_count_per_day"`
	CAuthDescription string                `db:"c_auth_description"`
	CCreatedAt       time.Time             `db:"c_created_at"`
	CUpdatedAt       time.Time             `db:"c_updated_at"`
}

func (row participationRow) toParticipation() model.Participation {
	p := row.Participation
	p.Challenge = &model.Challenge{
		ID:              row.ChallengeID,
		Title:           row.CTitle,
		Thumbnail:       row.CThumbnail,
		Frequency:       row.CFrequency,
		StartDate:       row.CStartDate,
		EndDate:         row.CEndDate,
		AuthCountPerDay: row.CAuthCountPerDay,
		AuthDescription: row.CAuthDescription,
		CreatedAt:       row.CCreatedAt,
		UpdatedAt:       row.CUpdatedAt,
	}
	return p
}

const challengeJoinColumns = `
	c.title AS c_title, c.thumbnail AS c_thumbnail, c.frequency AS c_frequency,
	c.start_date AS c_start_date, c.end_date AS c_end_date,
	c.auth_count_per_day AS c_auth_count_per_day, c.auth_description AS c_auth_description,
	c.created_at AS c_created_at, c.updated_at AS c_updated_at`

func (r *participationRepository) ListByUser(ctx context.Context, userID int64) ([]model.Participation, error) {
	query := `
		SELECT cp.id, cp.status, cp.user_id, cp.challenge_id, cp.created_at, cp.updated_at,` + challengeJoinColumns + `
		FROM challenge_participations cp
		JOIN challenges c ON c.id = cp.challenge_id
		WHERE cp.user_id = $1
		ORDER BY cp.created_at DESC, cp.id DESC
	`
	var rows []participationRow
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, storageError("list participations", err)
	}

	participations := make([]model.Participation, len(rows))
	for i, row := range rows {
		participations[i] = row.toParticipation()
	}
	return participations, nil
}
