package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vendaro/commerce-engine/internal/domain"
)

type cartRepository struct {
	db *sql.DB
}

// NewCartRepository создаёт PostgreSQL-реализацию CartRepository.
// Резервирующие методы объединяют запись остатка и строки корзины в одну
// транзакцию: промежуточное состояние невидимо конкурентным писателям.
func NewCartRepository(store *Store) domain.CartRepository {
	return &cartRepository{db: store.DB()}
}

const cartLineColumns = `
	id, cart_id, product_id, variant_id, quantity, unit_price_minor,
	pricing_class, created_at, updated_at
`

func (r *cartRepository) GetOrCreate(storeID string, owner domain.CartOwner) (domain.Cart, error) {
	if !owner.Valid() {
		return domain.Cart{}, domain.ErrCartOwnerInvalid
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	now := time.Now().UTC()
	// Пустые значения владельца хранятся как '', а не NULL: уникальный
	// индекс (store_id, buyer_id, session_key) тогда работает без частичных
	// индексов.
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO carts (id, store_id, buyer_id, session_key, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$5)
		ON CONFLICT (store_id, buyer_id, session_key) DO NOTHING
	`, uuid.NewString(), storeID, owner.BuyerID, owner.SessionKey, now)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("create cart: %w", err)
	}

	var cart domain.Cart
	err = r.db.QueryRowContext(ctx, `
		SELECT id, store_id, buyer_id, session_key, created_at, updated_at
		FROM carts
		WHERE store_id = $1 AND buyer_id = $2 AND session_key = $3
	`, storeID, owner.BuyerID, owner.SessionKey).Scan(
		&cart.ID, &cart.StoreID, &cart.Owner.BuyerID, &cart.Owner.SessionKey,
		&cart.CreatedAt, &cart.UpdatedAt,
	)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("select cart after create: %w", err)
	}
	return cart, nil
}

func (r *cartRepository) Get(storeID, cartID string) (domain.Cart, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var cart domain.Cart
	err := r.db.QueryRowContext(ctx, `
		SELECT id, store_id, buyer_id, session_key, created_at, updated_at
		FROM carts
		WHERE id = $1 AND store_id = $2
	`, cartID, storeID).Scan(
		&cart.ID, &cart.StoreID, &cart.Owner.BuyerID, &cart.Owner.SessionKey,
		&cart.CreatedAt, &cart.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Cart{}, domain.ErrCartNotFound
		}
		return domain.Cart{}, fmt.Errorf("select cart: %w", err)
	}
	return cart, nil
}

func (r *cartRepository) ListLines(cartID string) ([]domain.CartLine, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+cartLineColumns+`
		FROM cart_lines
		WHERE cart_id = $1
		ORDER BY created_at, id
	`, cartID)
	if err != nil {
		return nil, fmt.Errorf("list cart lines: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.CartLine, 0)
	for rows.Next() {
		line, err := scanCartLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart lines: %w", err)
	}
	return lines, nil
}

func (r *cartRepository) FindLine(key domain.LineKey) (domain.CartLine, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT `+cartLineColumns+`
		FROM cart_lines
		WHERE cart_id = $1 AND product_id = $2 AND variant_id = $3
	`, key.CartID, key.ProductID, key.VariantID)
	return scanCartLineRow(row)
}

func (r *cartRepository) GetLine(cartID, lineID string) (domain.CartLine, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT `+cartLineColumns+`
		FROM cart_lines
		WHERE id = $1 AND cart_id = $2
	`, lineID, cartID)
	return scanCartLineRow(row)
}

func (r *cartRepository) InsertLineReserving(line domain.CartLine) error {
	if line.Quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return r.inTx(ctx, "insert cart line", func(tx *sql.Tx) error {
		ref := domain.StockRef{ProductID: line.ProductID, VariantID: line.VariantID}
		if err := adjustStockExec(ctx, tx, ref, -line.Quantity); err != nil {
			return err
		}

		if line.ID == "" {
			line.ID = uuid.NewString()
		}
		now := time.Now().UTC()
		// Конкурентная вставка того же ключа складывается в существующую
		// строку: резерв под дельту уже удержан.
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cart_lines (
				id, cart_id, product_id, variant_id, quantity,
				unit_price_minor, pricing_class, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)
			ON CONFLICT (cart_id, product_id, variant_id) DO UPDATE
			SET quantity = cart_lines.quantity + EXCLUDED.quantity,
			    updated_at = EXCLUDED.updated_at
		`,
			line.ID, line.CartID, line.ProductID, line.VariantID, line.Quantity,
			line.UnitPriceMinor, string(line.Class), now,
		)
		if err != nil {
			return fmt.Errorf("upsert cart line: %w", err)
		}
		return nil
	})
}

func (r *cartRepository) UpdateLineQuantityReserving(line domain.CartLine, newQty int64) (domain.CartLine, error) {
	if newQty <= 0 {
		return domain.CartLine{}, domain.ErrInvalidQuantity
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var updated domain.CartLine
	err := r.inTx(ctx, "update cart line", func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT `+cartLineColumns+`
			FROM cart_lines
			WHERE id = $1
			FOR UPDATE
		`, line.ID)
		current, err := scanCartLineRow(row)
		if err != nil {
			return err
		}

		delta := newQty - current.Quantity
		if delta != 0 {
			ref := domain.StockRef{ProductID: current.ProductID, VariantID: current.VariantID}
			if err := adjustStockExec(ctx, tx, ref, -delta); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx, `
			UPDATE cart_lines
			SET quantity = $2,
			    updated_at = $3
			WHERE id = $1
		`, current.ID, newQty, now); err != nil {
			return fmt.Errorf("update cart line quantity: %w", err)
		}

		current.Quantity = newQty
		current.UpdatedAt = now
		updated = current
		return nil
	})
	if err != nil {
		return domain.CartLine{}, err
	}
	return updated, nil
}

func (r *cartRepository) DeleteLineReleasing(cartID, lineID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return r.inTx(ctx, "delete cart line", func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT `+cartLineColumns+`
			FROM cart_lines
			WHERE id = $1 AND cart_id = $2
			FOR UPDATE
		`, lineID, cartID)
		line, err := scanCartLineRow(row)
		if err != nil {
			if errors.Is(err, domain.ErrCartLineNotFound) {
				// Повторное удаление — не ошибка.
				return nil
			}
			return err
		}

		ref := domain.StockRef{ProductID: line.ProductID, VariantID: line.VariantID}
		if err := adjustStockExec(ctx, tx, ref, line.Quantity); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM cart_lines WHERE id = $1`, line.ID); err != nil {
			return fmt.Errorf("delete cart line: %w", err)
		}
		return nil
	})
}

func (r *cartRepository) ClearCartReleasing(cartID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return r.inTx(ctx, "clear cart", func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT `+cartLineColumns+`
			FROM cart_lines
			WHERE cart_id = $1
			FOR UPDATE
		`, cartID)
		if err != nil {
			return fmt.Errorf("select cart lines: %w", err)
		}
		lines := make([]domain.CartLine, 0)
		for rows.Next() {
			line, err := scanCartLine(rows)
			if err != nil {
				rows.Close()
				return err
			}
			lines = append(lines, line)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("iterate cart lines: %w", err)
		}
		rows.Close()

		for _, line := range lines {
			ref := domain.StockRef{ProductID: line.ProductID, VariantID: line.VariantID}
			if err := adjustStockExec(ctx, tx, ref, line.Quantity); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM cart_lines WHERE cart_id = $1`, cartID); err != nil {
			return fmt.Errorf("delete cart lines: %w", err)
		}
		return nil
	})
}

func (r *cartRepository) MergeCarts(destCartID, sourceCartID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return r.inTx(ctx, "merge carts", func(tx *sql.Tx) error {
		var id string
		err := tx.QueryRowContext(ctx, `SELECT id FROM carts WHERE id = $1`, destCartID).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrCartNotFound
		}
		if err != nil {
			return fmt.Errorf("check dest cart: %w", err)
		}

		now := time.Now().UTC()
		// Совпадающие ключи складываются в строку назначения.
		if _, err := tx.ExecContext(ctx, `
			UPDATE cart_lines dest
			SET quantity = dest.quantity + src.quantity,
			    updated_at = $3
			FROM cart_lines src
			WHERE dest.cart_id = $1
			  AND src.cart_id = $2
			  AND src.product_id = dest.product_id
			  AND src.variant_id = dest.variant_id
		`, destCartID, sourceCartID, now); err != nil {
			return fmt.Errorf("merge matching lines: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM cart_lines src
			USING cart_lines dest
			WHERE src.cart_id = $2
			  AND dest.cart_id = $1
			  AND src.product_id = dest.product_id
			  AND src.variant_id = dest.variant_id
		`, destCartID, sourceCartID); err != nil {
			return fmt.Errorf("drop merged source lines: %w", err)
		}

		// Остальные строки переезжают как есть: остатки не трогаются,
		// обе корзины уже удерживают свои резервы.
		if _, err := tx.ExecContext(ctx, `
			UPDATE cart_lines
			SET cart_id = $1,
			    updated_at = $3
			WHERE cart_id = $2
		`, destCartID, sourceCartID, now); err != nil {
			return fmt.Errorf("move source lines: %w", err)
		}
		return nil
	})
}

func (r *cartRepository) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return mapConflict(op, err)
	}

	if err := tx.Commit(); err != nil {
		return mapConflict("commit "+op, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCartLine(row rowScanner) (domain.CartLine, error) {
	var (
		line  domain.CartLine
		class string
	)
	err := row.Scan(
		&line.ID, &line.CartID, &line.ProductID, &line.VariantID,
		&line.Quantity, &line.UnitPriceMinor, &class,
		&line.CreatedAt, &line.UpdatedAt,
	)
	if err != nil {
		return domain.CartLine{}, fmt.Errorf("scan cart line: %w", err)
	}
	line.Class = domain.PricingClass(class)
	return line, nil
}

func scanCartLineRow(row *sql.Row) (domain.CartLine, error) {
	line, err := scanCartLine(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.CartLine{}, domain.ErrCartLineNotFound
		}
		return domain.CartLine{}, err
	}
	return line, nil
}

var _ domain.CartRepository = (*cartRepository)(nil)
