package repository

import (
	"context"
	"errors"
	"fmt"

	"codedesk/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository interface {
	// CreateUserIfNotExists inserts u unless a row with the same user_id exists.
	// It reports whether a row was inserted.
	CreateUserIfNotExists(ctx context.Context, u *model.User) (bool, error)
	GetUserByID(ctx context.Context, userID string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByStripeCustomerID(ctx context.Context, customerID string) (*model.User, error)
	// UpsertProUser creates u as a Pro user or patches the existing row with the same user_id.
	UpsertProUser(ctx context.Context, u *model.User, grant model.ProGrant) (*model.User, error)
	// GrantProByInternalID patches the row with the given internal id. Returns nil when absent.
	GrantProByInternalID(ctx context.Context, id string, grant model.ProGrant) (*model.User, error)
}

const userColumns = `id::text, user_id, email, name, is_pro, pro_since, stripe_customer_id, stripe_subscription_id, created_at, updated_at`

type userRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) UserRepository {
	return &userRepo{pool: pool}
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.UserID,
		&u.Email,
		&u.Name,
		&u.IsPro,
		&u.ProSince,
		&u.StripeCustomerID,
		&u.StripeSubscriptionID,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) CreateUserIfNotExists(ctx context.Context, u *model.User) (bool, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	const q = `
        INSERT INTO users (id, user_id, email, name, is_pro, created_at, updated_at)
        VALUES ($1, $2, $3, $4, FALSE, NOW(), NOW())
        ON CONFLICT (user_id) DO NOTHING
        RETURNING created_at, updated_at
    `
	err := r.pool.QueryRow(ctx, q, u.ID, u.UserID, u.Email, u.Name).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("create user %s: %w", u.UserID, err)
	}
	return true, nil
}

func (r *userRepo) GetUserByID(ctx context.Context, userID string) (*model.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`
	u, err := scanUser(r.pool.QueryRow(ctx, q, userID))
	if err != nil {
		return nil, fmt.Errorf("fetch user %s: %w", userID, err)
	}
	return u, nil
}

func (r *userRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1) ORDER BY created_at ASC LIMIT 1`
	u, err := scanUser(r.pool.QueryRow(ctx, q, email))
	if err != nil {
		return nil, fmt.Errorf("fetch user by email: %w", err)
	}
	return u, nil
}

func (r *userRepo) GetUserByStripeCustomerID(ctx context.Context, customerID string) (*model.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE stripe_customer_id = $1 ORDER BY updated_at DESC LIMIT 1`
	u, err := scanUser(r.pool.QueryRow(ctx, q, customerID))
	if err != nil {
		return nil, fmt.Errorf("fetch user by stripe customer %s: %w", customerID, err)
	}
	return u, nil
}

func (r *userRepo) UpsertProUser(ctx context.Context, u *model.User, grant model.ProGrant) (*model.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	q := `
        INSERT INTO users (id, user_id, email, name, is_pro, pro_since, stripe_customer_id, stripe_subscription_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, TRUE, $5, NULLIF($6, ''), NULLIF($7, ''), NOW(), NOW())
        ON CONFLICT (user_id) DO UPDATE
        SET is_pro = TRUE,
            pro_since = COALESCE(users.pro_since, EXCLUDED.pro_since),
            stripe_customer_id = EXCLUDED.stripe_customer_id,
            stripe_subscription_id = EXCLUDED.stripe_subscription_id,
            updated_at = NOW()
        RETURNING ` + userColumns
	out, err := scanUser(r.pool.QueryRow(ctx, q,
		u.ID,
		u.UserID,
		u.Email,
		u.Name,
		grant.GrantedAt,
		grant.StripeCustomerID,
		grant.StripeSubscriptionID,
	))
	if err != nil {
		return nil, fmt.Errorf("upsert pro user %s: %w", u.UserID, err)
	}
	if out == nil {
		return nil, fmt.Errorf("upsert pro user %s: no row returned", u.UserID)
	}
	return out, nil
}

func (r *userRepo) GrantProByInternalID(ctx context.Context, id string, grant model.ProGrant) (*model.User, error) {
	q := `
        UPDATE users
        SET is_pro = TRUE,
            pro_since = COALESCE(pro_since, $2),
            stripe_customer_id = NULLIF($3, ''),
            stripe_subscription_id = NULLIF($4, ''),
            updated_at = NOW()
        WHERE id = $1
        RETURNING ` + userColumns
	out, err := scanUser(r.pool.QueryRow(ctx, q, id, grant.GrantedAt, grant.StripeCustomerID, grant.StripeSubscriptionID))
	if err != nil {
		return nil, fmt.Errorf("grant pro to user %s: %w", id, err)
	}
	return out, nil
}
