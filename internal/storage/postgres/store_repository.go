package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vendaro/commerce-engine/internal/domain"
)

type storeRepository struct {
	db *sql.DB
}

// NewStoreRepository создаёт PostgreSQL-реализацию StoreRepository.
func NewStoreRepository(store *Store) domain.StoreRepository {
	return &storeRepository{db: store.DB()}
}

const storeColumns = `
	s.id, s.name, s.active, s.wholesale_enabled, s.wholesale_discount_bp,
	s.currency, s.created_at, s.updated_at
`

func (r *storeRepository) Get(id string) (domain.Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT `+storeColumns+`
		FROM stores s
		WHERE s.id = $1
	`, id)
	return r.scanStore(ctx, row)
}

func (r *storeRepository) GetByHost(host string) (domain.Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT `+storeColumns+`
		FROM stores s
		JOIN store_hosts h ON h.store_id = s.id
		WHERE h.host = $1
		  AND s.active
	`, domain.NormalizeHost(host))
	return r.scanStore(ctx, row)
}

func (r *storeRepository) FirstActive() (domain.Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT `+storeColumns+`
		FROM stores s
		WHERE s.active
		ORDER BY s.created_at, s.id
		LIMIT 1
	`)
	return r.scanStore(ctx, row)
}

func (r *storeRepository) scanStore(ctx context.Context, row *sql.Row) (domain.Store, error) {
	var store domain.Store
	err := row.Scan(
		&store.ID, &store.Name, &store.Active, &store.WholesaleEnabled,
		&store.WholesaleDiscountBP, &store.Currency, &store.CreatedAt, &store.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Store{}, domain.ErrStoreNotFound
		}
		return domain.Store{}, fmt.Errorf("select store: %w", err)
	}

	hosts, err := r.loadHosts(ctx, store.ID)
	if err != nil {
		return domain.Store{}, err
	}
	store.Hosts = hosts
	return store, nil
}

func (r *storeRepository) loadHosts(ctx context.Context, storeID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT host
		FROM store_hosts
		WHERE store_id = $1
		ORDER BY host
	`, storeID)
	if err != nil {
		return nil, fmt.Errorf("load store hosts: %w", err)
	}
	defer rows.Close()

	hosts := make([]string, 0)
	for rows.Next() {
		var host string
		if err := rows.Scan(&host); err != nil {
			return nil, fmt.Errorf("scan store host: %w", err)
		}
		hosts = append(hosts, host)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate store hosts: %w", err)
	}
	return hosts, nil
}

var _ domain.StoreRepository = (*storeRepository)(nil)
