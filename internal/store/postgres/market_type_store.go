package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DemolaJames/xo-market-api/internal/domain"
)

// MarketTypeStore implements domain.MarketTypeStore using PostgreSQL. The
// validation rule-set is stored as a JSONB column.
type MarketTypeStore struct {
	pool *pgxpool.Pool
}

// NewMarketTypeStore creates a MarketTypeStore backed by the given pool.
func NewMarketTypeStore(pool *pgxpool.Pool) *MarketTypeStore {
	return &MarketTypeStore{pool: pool}
}

const marketTypeCols = `id, name, description, is_active, validation_rules, created_at`

func scanMarketType(row pgx.Row) (domain.MarketType, error) {
	var mt domain.MarketType
	var rules []byte
	err := row.Scan(&mt.ID, &mt.Name, &mt.Description, &mt.IsActive, &rules, &mt.CreatedAt)
	if err != nil {
		return domain.MarketType{}, err
	}
	if len(rules) > 0 {
		if err := json.Unmarshal(rules, &mt.Rules); err != nil {
			return domain.MarketType{}, fmt.Errorf("decode validation rules: %w", err)
		}
	}
	return mt, nil
}

// FindByID retrieves a market type by primary key.
func (s *MarketTypeStore) FindByID(ctx context.Context, id int64) (domain.MarketType, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketTypeCols+` FROM market_types WHERE id = $1`, id)
	mt, err := scanMarketType(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.MarketType{}, domain.ErrNotFound
		}
		return domain.MarketType{}, fmt.Errorf("postgres: find market type %d: %w", id, err)
	}
	return mt, nil
}

// FindByName retrieves a market type by its unique name.
func (s *MarketTypeStore) FindByName(ctx context.Context, name string) (domain.MarketType, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketTypeCols+` FROM market_types WHERE name = $1`, name)
	mt, err := scanMarketType(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.MarketType{}, domain.ErrNotFound
		}
		return domain.MarketType{}, fmt.Errorf("postgres: find market type %q: %w", name, err)
	}
	return mt, nil
}

// ListActive returns all active market types ordered by name.
func (s *MarketTypeStore) ListActive(ctx context.Context) ([]domain.MarketType, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketTypeCols+` FROM market_types WHERE is_active ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active market types: %w", err)
	}
	defer rows.Close()

	var types []domain.MarketType
	for rows.Next() {
		mt, err := scanMarketType(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market type: %w", err)
		}
		types = append(types, mt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list active market types rows: %w", err)
	}
	return types, nil
}

// Seed inserts the given market types, leaving rows whose name already exists
// untouched. Re-running never duplicates or resets existing types.
func (s *MarketTypeStore) Seed(ctx context.Context, types []domain.MarketType) error {
	const query = `
		INSERT INTO market_types (name, description, is_active, validation_rules)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO NOTHING`

	for _, mt := range types {
		rules, err := json.Marshal(mt.Rules)
		if err != nil {
			return fmt.Errorf("postgres: encode rules for %q: %w", mt.Name, err)
		}
		if _, err := s.pool.Exec(ctx, query, mt.Name, mt.Description, mt.IsActive, rules); err != nil {
			return fmt.Errorf("postgres: seed market type %q: %w", mt.Name, err)
		}
	}
	return nil
}

var _ domain.MarketTypeStore = (*MarketTypeStore)(nil)
