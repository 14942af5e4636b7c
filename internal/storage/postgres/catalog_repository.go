package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vendaro/commerce-engine/internal/domain"
)

type catalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository создаёт PostgreSQL-реализацию CatalogRepository.
func NewCatalogRepository(store *Store) domain.CatalogRepository {
	return &catalogRepository{db: store.DB()}
}

const productColumns = `
	id, store_id, name, retail_minor, wholesale_minor, discount_minor,
	compare_at_minor, stock, has_variants, available, created_at, updated_at
`

const variantColumns = `
	id, product_id, size_id, stock, retail_override_minor,
	wholesale_override_minor, active, created_at, updated_at
`

func (r *catalogRepository) GetProduct(storeID, productID string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var p domain.Product
	err := r.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1 AND store_id = $2
	`, productID, storeID).Scan(
		&p.ID, &p.StoreID, &p.Name, &p.RetailMinor, &p.WholesaleMinor,
		&p.DiscountMinor, &p.CompareAtMinor, &p.Stock, &p.HasVariants,
		&p.Available, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}
	return p, nil
}

func (r *catalogRepository) GetVariant(productID, variantID string) (domain.Variant, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var v domain.Variant
	err := r.db.QueryRowContext(ctx, `
		SELECT `+variantColumns+`
		FROM product_variants
		WHERE id = $1 AND product_id = $2
	`, variantID, productID).Scan(
		&v.ID, &v.ProductID, &v.SizeID, &v.Stock, &v.RetailOverrideMinor,
		&v.WholesaleOverrideMinor, &v.Active, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Variant{}, domain.ErrVariantNotFound
		}
		return domain.Variant{}, fmt.Errorf("select variant: %w", err)
	}
	return v, nil
}

func (r *catalogRepository) ListActiveVariants(productID string) ([]domain.Variant, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+variantColumns+`
		FROM product_variants
		WHERE product_id = $1 AND active
		ORDER BY created_at, id
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("list active variants: %w", err)
	}
	defer rows.Close()

	variants := make([]domain.Variant, 0)
	for rows.Next() {
		var v domain.Variant
		if err := rows.Scan(
			&v.ID, &v.ProductID, &v.SizeID, &v.Stock, &v.RetailOverrideMinor,
			&v.WholesaleOverrideMinor, &v.Active, &v.CreatedAt, &v.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		variants = append(variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variants: %w", err)
	}
	return variants, nil
}

func (r *catalogRepository) ListSizes(ids []string) ([]domain.Size, error) {
	if len(ids) == 0 {
		return []domain.Size{}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, size_type, value, sort_order
		FROM sizes
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("list sizes: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]domain.Size, len(ids))
	for rows.Next() {
		var size domain.Size
		if err := rows.Scan(&size.ID, &size.Type, &size.Value, &size.SortOrder); err != nil {
			return nil, fmt.Errorf("scan size: %w", err)
		}
		byID[size.ID] = size
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sizes: %w", err)
	}

	// Порядок ответа — порядок запрошенных идентификаторов.
	result := make([]domain.Size, 0, len(ids))
	for _, id := range ids {
		if size, ok := byID[id]; ok {
			result = append(result, size)
		}
	}
	return result, nil
}

func (r *catalogRepository) AdjustStock(ref domain.StockRef, delta int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return adjustStockExec(ctx, r.db, ref, delta)
}

// execer покрывает *sql.DB и *sql.Tx: запись остатка одна и та же
// как отдельной операцией, так и внутри транзакции корзины.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// adjustStockExec — условная запись остатка одним UPDATE: проверка и
// декремент неразделимы, ноль затронутых строк означает отказ.
func adjustStockExec(ctx context.Context, ex execer, ref domain.StockRef, delta int64) error {
	now := time.Now().UTC()

	if ref.VariantID != domain.NoVariant {
		res, err := ex.ExecContext(ctx, `
			UPDATE product_variants
			SET stock = stock + $3,
			    updated_at = $4
			WHERE id = $1
			  AND product_id = $2
			  AND stock + $3 >= 0
		`, ref.VariantID, ref.ProductID, delta, now)
		if err != nil {
			return mapConflict("adjust variant stock", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return classifyVariantRejection(ctx, ex, ref)
		}
		return nil
	}

	res, err := ex.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + $2,
		    updated_at = $3
		WHERE id = $1
		  AND NOT has_variants
		  AND stock + $2 >= 0
	`, ref.ProductID, delta, now)
	if err != nil {
		return mapConflict("adjust product stock", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return classifyFlatRejection(ctx, ex, ref)
	}
	return nil
}

// classifyVariantRejection различает отсутствие строки и нехватку остатка.
func classifyVariantRejection(ctx context.Context, ex execer, ref domain.StockRef) error {
	var id string
	err := ex.QueryRowContext(ctx, `
		SELECT id FROM product_variants WHERE id = $1 AND product_id = $2
	`, ref.VariantID, ref.ProductID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrVariantNotFound
	}
	if err != nil {
		return fmt.Errorf("classify variant rejection: %w", err)
	}
	return domain.ErrInsufficientStock
}

func classifyFlatRejection(ctx context.Context, ex execer, ref domain.StockRef) error {
	var hasVariants bool
	err := ex.QueryRowContext(ctx, `
		SELECT has_variants FROM products WHERE id = $1
	`, ref.ProductID).Scan(&hasVariants)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrProductNotFound
	}
	if err != nil {
		return fmt.Errorf("classify stock rejection: %w", err)
	}
	if hasVariants {
		return domain.ErrFlatStockForbidden
	}
	return domain.ErrInsufficientStock
}

var _ domain.CatalogRepository = (*catalogRepository)(nil)
