package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"habitchallenge/internal/cache"
	"habitchallenge/internal/model"
)

const onceProofIndex = "uq_proofs_once_per_day"

type proofRepository struct {
	db *sqlx.DB
}

func NewProofRepository(db *sqlx.DB) ProofRepository {
	return &proofRepository{db: db}
}

// WithTx runs fn inside a read-committed transaction. The participation row
// lock taken by FindParticipationForUpdate serializes concurrent submissions.
func (r *proofRepository) WithTx(ctx context.Context, fn func(tx ProofTx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return storageError("begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(&proofTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err, onceProofIndex) {
			return model.ErrDailyLimitReached
		}
		return storageError("commit transaction", err)
	}
	return nil
}

type proofTx struct {
	tx *sqlx.Tx
}

func (t *proofTx) FindParticipationForUpdate(ctx context.Context, participationID, userID int64) (*model.ParticipationRule, error) {
	query := `
		SELECT cp.id, cp.user_id, cp.challenge_id, c.auth_count_per_day
		FROM challenge_participations cp
		JOIN challenges c ON c.id = cp.challenge_id
		WHERE cp.id = $1 AND cp.user_id = $2
		FOR UPDATE OF cp
	`
	var rule model.ParticipationRule
	err := t.tx.GetContext(ctx, &rule, query, participationID, userID)
	if err == sql.ErrNoRows {
		return nil, model.ErrParticipationNotFound
	}
	if err != nil {
		return nil, storageError("lock participation", err)
	}
	return &rule, nil
}

func (t *proofTx) CountInWindow(ctx context.Context, participationID int64, from, until time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM proofs
		WHERE participation_id = $1 AND created_at >= $2 AND created_at < $3
	`
	var count int
	if err := t.tx.GetContext(ctx, &count, query, participationID, from, until); err != nil {
		return 0, storageError("count proofs", err)
	}
	return count, nil
}

func (t *proofTx) Insert(ctx context.Context, p *model.Proof) error {
	query := `
		INSERT INTO proofs (content, image_url, user_id, participation_id, proof_date, once_per_day, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::date, $6, $7, $7)
		RETURNING id, created_at, updated_at
	`
	err := t.tx.QueryRowxContext(ctx, query,
		p.Content,
		p.ImageURL,
		p.UserID,
		p.ParticipationID,
		p.ProofDate.Format(model.DateLayout),
		p.OncePerDay,
		p.CreatedAt,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, onceProofIndex) {
			return model.ErrDailyLimitReached
		}
		return storageError("insert proof", err)
	}
	return nil
}

// proofRow flattens a proof joined with its author, participation and challenge.
type proofRow struct {
	model.Proof
	AuthorEmail    string                    `db:"author_email"`
	AuthorNickname string                    `db:"author_nickname"`
	PStatus        model.ParticipationStatus `db:"p_status"`
	PChallengeID   int64                     `db:"p_challenge_id"`
	PCreatedAt     time.Time                 `db:"p_created_at"`
	PUpdatedAt     time.Time                 `db:"p_updated_at"`

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

func (row proofRow) toProof() model.Proof {
	p := row.Proof
	p.User = &model.UserSummary{
		ID:       row.UserID,
		Email:    row.AuthorEmail,
		Nickname: row.AuthorNickname,
	}
	p.Participation = &model.Participation{
		ID:          row.ParticipationID,
		Status:      row.PStatus,
		UserID:      row.UserID,
		ChallengeID: row.PChallengeID,
		CreatedAt:   row.PCreatedAt,
		UpdatedAt:   row.PUpdatedAt,
		Challenge: &model.Challenge{
			ID:              row.PChallengeID,
			Title:           row.CTitle,
			Thumbnail:       row.CThumbnail,
			Frequency:       row.CFrequency,
			StartDate:       row.CStartDate,
			EndDate:         row.CEndDate,
			AuthCountPerDay: row.CAuthCountPerDay,
			AuthDescription: row.CAuthDescription,
			CreatedAt:       row.CCreatedAt,
			UpdatedAt:       row.CUpdatedAt,
		},
	}
	return p
}

const proofSelect = `
	SELECT pr.id, pr.content, pr.image_url, pr.user_id, pr.participation_id, pr.proof_date,
	       pr.once_per_day, pr.created_at, pr.updated_at,
	       u.email AS author_email, u.nickname AS author_nickname,
	       cp.status AS p_status, cp.challenge_id AS p_challenge_id,
	       cp.created_at AS p_created_at, cp.updated_at AS p_updated_at,` + challengeJoinColumns + `
	FROM proofs pr
	JOIN users u ON u.id = pr.user_id
	JOIN challenge_participations cp ON cp.id = pr.participation_id
	JOIN challenges c ON c.id = cp.challenge_id
`

func (r *proofRepository) selectProofs(ctx context.Context, op, query string, args ...interface{}) ([]model.Proof, error) {
	var rows []proofRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, storageError(op, err)
	}

	proofs := make([]model.Proof, len(rows))
	for i, row := range rows {
		proofs[i] = row.toProof()
	}
	return proofs, nil
}

func (r *proofRepository) List(ctx context.Context, limit, offset int) ([]model.Proof, error) {
	query := proofSelect + `
		ORDER BY pr.created_at DESC, pr.id DESC
		LIMIT $1 OFFSET $2
	`
	return r.selectProofs(ctx, "list proofs", query, limit, offset)
}

func (r *proofRepository) GetByID(ctx context.Context, id int64) (*model.Proof, error) {
	proofs, err := r.selectProofs(ctx, "get proof", proofSelect+` WHERE pr.id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(proofs) == 0 {
		return nil, model.ErrProofNotFound
	}
	return &proofs[0], nil
}

func (r *proofRepository) GetByIDs(ctx context.Context, ids []int64) ([]model.Proof, error) {
	if len(ids) == 0 {
		return []model.Proof{}, nil
	}

	proofs, err := r.selectProofs(ctx, "get proofs by ids", proofSelect+` WHERE pr.id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]model.Proof, len(proofs))
	for _, p := range proofs {
		byID[p.ID] = p
	}
	ordered := make([]model.Proof, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}
	return ordered, nil
}

func (r *proofRepository) ListByUser(ctx context.Context, userID int64) ([]model.Proof, error) {
	query := proofSelect + `
		WHERE pr.user_id = $1
		ORDER BY pr.created_at DESC, pr.id DESC
	`
	return r.selectProofs(ctx, "list user proofs", query, userID)
}

func (r *proofRepository) RecentScores(ctx context.Context, limit int) ([]cache.ProofScore, error) {
	query := `
		SELECT id, created_at
		FROM proofs
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`
	type row struct {
		ID        int64     `db:"id"`
		CreatedAt time.Time `db:"created_at"`
	}
	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, storageError("get recent proof scores", err)
	}

	scores := make([]cache.ProofScore, len(rows))
	for i, r := range rows {
		scores[i] = cache.ProofScore{ProofID: r.ID, CreatedAt: r.CreatedAt}
	}
	return scores, nil
}
