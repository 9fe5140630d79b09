package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DemolaJames/xo-market-api/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL. All status
// transitions are conditional updates guarded on the current status, so
// concurrent writers can never move a market backwards or apply a transition
// twice.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketCols = `id, title, description, expiry, conviction_level, status,
	creator_id, approved_by_id, market_type_id, tx_hash, onchain_id,
	created_at, approved_at`

func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	var status string
	err := row.Scan(
		&m.ID, &m.Title, &m.Description, &m.Expiry, &m.ConvictionLevel, &status,
		&m.CreatorID, &m.ApprovedByID, &m.MarketTypeID, &m.TxHash, &m.OnchainID,
		&m.CreatedAt, &m.ApprovedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.Status = domain.MarketStatus(status)
	return m, nil
}

// Create inserts a new market in state PENDING and returns the stored row.
func (s *MarketStore) Create(ctx context.Context, m domain.Market) (domain.Market, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO markets (title, description, expiry, conviction_level, status, creator_id, market_type_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+marketCols,
		m.Title, m.Description, m.Expiry, m.ConvictionLevel,
		string(domain.MarketStatusPending), m.CreatorID, m.MarketTypeID,
	)
	created, err := scanMarket(row)
	if err != nil {
		return domain.Market{}, fmt.Errorf("postgres: create market: %w", err)
	}
	return created, nil
}

// FindByID retrieves a market by primary key.
func (s *MarketStore) FindByID(ctx context.Context, id int64) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: find market %d: %w", id, err)
	}
	return m, nil
}

// FindMany returns markets matching the filter, newest-created first.
func (s *MarketStore) FindMany(ctx context.Context, f domain.MarketFilter) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets`
	var conds []string
	var args []any

	if f.Status != nil {
		args = append(args, string(*f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.MarketTypeID != nil {
		args = append(args, *f.MarketTypeID)
		conds = append(conds, fmt.Sprintf("market_type_id = $%d", len(args)))
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}

	query += " ORDER BY created_at DESC"

	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets rows: %w", err)
	}
	return markets, nil
}

// ListByCreator returns all markets created by the given user, newest first.
func (s *MarketStore) ListByCreator(ctx context.Context, creatorID int64) ([]domain.Market, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketCols+` FROM markets WHERE creator_id = $1 ORDER BY created_at DESC`,
		creatorID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets by creator %d: %w", creatorID, err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets by creator rows: %w", err)
	}
	return markets, nil
}

// ApproveAndCredit transitions a PENDING market to APPROVED and increments the
// creator's conviction points inside a single transaction. The market update
// is conditional on the current status, so of two concurrent approvals exactly
// one sees a modified row; the other gets ErrInvalidState.
func (s *MarketStore) ApproveAndCredit(ctx context.Context, marketID, marketTypeID, approverID int64) (domain.Market, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Market{}, fmt.Errorf("postgres: approve market %d: begin: %w", marketID, err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE markets
		SET status = $2, market_type_id = $3, approved_by_id = $4, approved_at = NOW()
		WHERE id = $1 AND status = $5
		RETURNING `+marketCols,
		marketID, string(domain.MarketStatusApproved), marketTypeID, approverID,
		string(domain.MarketStatusPending),
	)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Market missing, or present but not PENDING.
			var status string
			err2 := tx.QueryRow(ctx,
				`SELECT status FROM markets WHERE id = $1`, marketID).Scan(&status)
			if errors.Is(err2, pgx.ErrNoRows) {
				return domain.Market{}, domain.ErrNotFound
			}
			if err2 != nil {
				return domain.Market{}, fmt.Errorf("postgres: approve market %d: %w", marketID, err2)
			}
			return domain.Market{}, domain.ErrInvalidState
		}
		return domain.Market{}, fmt.Errorf("postgres: approve market %d: %w", marketID, err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE users SET conviction_points = conviction_points + 1 WHERE id = $1`,
		m.CreatorID,
	); err != nil {
		return domain.Market{}, fmt.Errorf("postgres: credit creator %d: %w", m.CreatorID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Market{}, fmt.Errorf("postgres: approve market %d: commit: %w", marketID, err)
	}
	return m, nil
}

// MarkLive transitions an APPROVED market to LIVE with its settlement results.
// If the market is no longer APPROVED the write is a no-op and the current row
// is returned with changed=false.
func (s *MarketStore) MarkLive(ctx context.Context, marketID int64, txHash string, onchainID int64) (domain.Market, bool, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE markets
		SET status = $2, tx_hash = $3, onchain_id = $4
		WHERE id = $1 AND status = $5
		RETURNING `+marketCols,
		marketID, string(domain.MarketStatusLive), txHash, onchainID,
		string(domain.MarketStatusApproved),
	)
	m, err := scanMarket(row)
	if err == nil {
		return m, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Market{}, false, fmt.Errorf("postgres: mark market %d live: %w", marketID, err)
	}

	current, err := s.FindByID(ctx, marketID)
	if err != nil {
		return domain.Market{}, false, err
	}
	return current, false, nil
}

// MarkFailed transitions an APPROVED market to FAILED. Guarded like MarkLive.
func (s *MarketStore) MarkFailed(ctx context.Context, marketID int64) (domain.Market, bool, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE markets
		SET status = $2
		WHERE id = $1 AND status = $3
		RETURNING `+marketCols,
		marketID, string(domain.MarketStatusFailed),
		string(domain.MarketStatusApproved),
	)
	m, err := scanMarket(row)
	if err == nil {
		return m, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Market{}, false, fmt.Errorf("postgres: mark market %d failed: %w", marketID, err)
	}

	current, err := s.FindByID(ctx, marketID)
	if err != nil {
		return domain.Market{}, false, err
	}
	return current, false, nil
}

var _ domain.MarketStore = (*MarketStore)(nil)
