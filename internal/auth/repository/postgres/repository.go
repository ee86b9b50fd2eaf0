package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/S0uris666/Propsail/internal/auth/domain"
)

// PgxIface is satisfied by *pgxpool.Pool and by pgxmock pools in tests.
type PgxIface interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresRepository struct {
	db PgxIface
}

func NewPostgresRepository(db PgxIface) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	query := `
		SELECT id, email, username, full_name, password_hash, is_active, created_at, updated_at
		FROM users
		WHERE email = $1 OR username = $1
		LIMIT 1;
	`
	row := r.db.QueryRow(ctx, query, identifier)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by identifier: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `
		SELECT id, email, username, full_name, password_hash, is_active, created_at, updated_at
		FROM users
		WHERE id = $1
		LIMIT 1;
	`
	row := r.db.QueryRow(ctx, query, id)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) Create(ctx context.Context, user *domain.User) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (id, email, username, full_name, password_hash, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, user.ID, user.Email, user.Username, user.FullName, user.PasswordHash,
		user.IsActive, user.CreatedAt, user.UpdatedAt)

	return err
}

// PostgresChallengeStore persists second-factor challenges. Its Create and
// MarkUsedIfUnused are the two operations that carry the store-level
// atomicity guarantees.
type PostgresChallengeStore struct {
	db PgxIface
}

func NewPostgresChallengeStore(db PgxIface) *PostgresChallengeStore {
	return &PostgresChallengeStore{db: db}
}

func (r *PostgresChallengeStore) FindByID(ctx context.Context, id string) (*domain.Challenge, error) {
	query := `
		SELECT id, user_id, code, expires_at, used, created_at
		FROM two_factor_challenges
		WHERE id = $1
		LIMIT 1;
	`
	row := r.db.QueryRow(ctx, query, id)

	var c domain.Challenge
	err := row.Scan(&c.ID, &c.UserID, &c.Code, &c.ExpiresAt, &c.Used, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get challenge by id: %w", err)
	}

	return &c, nil
}

// Create invalidates every unused challenge of the user and inserts the new
// one inside a single transaction, so a concurrent "login again" can never
// leave two redeemable challenges behind.
func (r *PostgresChallengeStore) Create(ctx context.Context, userID, code string, expiresAt time.Time) (*domain.Challenge, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin challenge transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		UPDATE two_factor_challenges SET used = TRUE
		WHERE user_id = $1 AND used = FALSE
	`, userID); err != nil {
		return nil, fmt.Errorf("failed to invalidate previous challenges: %w", err)
	}

	challenge := &domain.Challenge{
		ID:        uuid.NewString(),
		UserID:    userID,
		Code:      code,
		ExpiresAt: expiresAt,
		Used:      false,
		CreatedAt: time.Now(),
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO two_factor_challenges (id, user_id, code, expires_at, used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, challenge.ID, challenge.UserID, challenge.Code, challenge.ExpiresAt,
		challenge.Used, challenge.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert challenge: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit challenge transaction: %w", err)
	}

	return challenge, nil
}

func (r *PostgresChallengeStore) InvalidateAllUnused(ctx context.Context, userID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE two_factor_challenges SET used = TRUE
		WHERE user_id = $1 AND used = FALSE
	`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate challenges: %w", err)
	}

	return tag.RowsAffected(), nil
}

// MarkUsedIfUnused is the redemption linearization point: the conditional
// UPDATE flips used in one statement, so exactly one caller sees true.
func (r *PostgresChallengeStore) MarkUsedIfUnused(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE two_factor_challenges SET used = TRUE
		WHERE id = $1 AND used = FALSE
	`, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark challenge used: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(&user.ID, &user.Email, &user.Username, &user.FullName,
		&user.PasswordHash, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
