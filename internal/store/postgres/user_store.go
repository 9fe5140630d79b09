package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DemolaJames/xo-market-api/internal/domain"
)

// UserStore implements domain.UserStore using PostgreSQL.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore creates a UserStore backed by the given connection pool.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

const userCols = `id, wallet_address, is_admin, conviction_points, created_at`

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.WalletAddress, &u.IsAdmin, &u.ConvictionPoints, &u.CreatedAt)
	return u, err
}

// FindByID retrieves a user by primary key.
func (s *UserStore) FindByID(ctx context.Context, id int64) (domain.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("postgres: find user %d: %w", id, err)
	}
	return u, nil
}

// FindOrCreateByWallet returns the user with the given wallet address,
// inserting a fresh non-admin row if the address is unseen. The upsert is a
// single statement so concurrent first logins for the same wallet cannot
// create duplicates.
func (s *UserStore) FindOrCreateByWallet(ctx context.Context, walletAddress string) (domain.User, error) {
	// DO UPDATE with a no-op assignment so RETURNING also yields the existing
	// row on conflict.
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (wallet_address)
		VALUES ($1)
		ON CONFLICT (wallet_address) DO UPDATE SET wallet_address = EXCLUDED.wallet_address
		RETURNING `+userCols,
		walletAddress,
	)
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("postgres: find or create user %s: %w", walletAddress, err)
	}
	return u, nil
}

var _ domain.UserStore = (*UserStore)(nil)
