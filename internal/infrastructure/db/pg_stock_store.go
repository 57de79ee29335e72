package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ahsanhabibakik/rupomoti-stock-go/internal/domain"
)

// PgStockStore holds stock in a single row per product. The read-modify-write
// is a single conditional UPDATE, so the row lock serializes concurrent
// writers and a value below zero can never be committed, not even
// transiently.
type PgStockStore struct {
	db *sql.DB
}

func NewPgStockStore(db *sql.DB) *PgStockStore {
	return &PgStockStore{db: db}
}

func (s *PgStockStore) Get(ctx context.Context, productID string) (int, error) {
	q := `
        select stock
        from stock_items
        where product_id = $1
    `
	var stock int
	if err := s.db.QueryRowContext(ctx, q, productID).Scan(&stock); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, &domain.ProductNotFoundError{ProductID: productID}
		}
		return 0, err
	}
	return stock, nil
}

func (s *PgStockStore) ApplyDelta(ctx context.Context, productID string, delta int) (int, int, error) {
	q := `
        update stock_items
        set stock = stock + $2,
            updated_at_utc = now()
        where product_id = $1
          and stock + $2 >= 0
        returning stock
    `
	var next int
	err := s.db.QueryRowContext(ctx, q, productID, delta).Scan(&next)
	if err == nil {
		return next - delta, next, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, 0, err
	}

	// No row matched: either the product does not exist or the guard failed.
	available, getErr := s.Get(ctx, productID)
	if getErr != nil {
		return 0, 0, getErr
	}
	return 0, 0, &domain.InsufficientStockError{
		ProductID: productID,
		Requested: -delta,
		Available: available,
	}
}

func (s *PgStockStore) SetAbsolute(ctx context.Context, productID string, value int) (int, int, error) {
	// Self-join trick to get the pre-update value back from the same
	// statement; FOR UPDATE keeps a concurrent writer from sliding between
	// the read and the write.
	q := `
        update stock_items s
        set stock = $2,
            updated_at_utc = now()
        from (
            select product_id, stock
            from stock_items
            where product_id = $1
            for update
        ) old
        where s.product_id = old.product_id
        returning old.stock
    `
	var previous int
	if err := s.db.QueryRowContext(ctx, q, productID, value).Scan(&previous); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, &domain.ProductNotFoundError{ProductID: productID}
		}
		return 0, 0, err
	}
	return previous, value, nil
}

func (s *PgStockStore) Upsert(ctx context.Context, productID string, value int) error {
	q := `
        insert into stock_items (product_id, stock, updated_at_utc)
        values ($1, $2, now())
        on conflict (product_id) do update
        set stock = excluded.stock,
            updated_at_utc = excluded.updated_at_utc
    `
	_, err := s.db.ExecContext(ctx, q, productID, value)
	return err
}

func (s *PgStockStore) LowStock(ctx context.Context, threshold int) (map[string]int, error) {
	q := `
        select product_id, stock
        from stock_items
        where stock <= $1
    `
	rows, err := s.db.QueryContext(ctx, q, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var productID string
		var stock int
		if err := rows.Scan(&productID, &stock); err != nil {
			return nil, err
		}
		result[productID] = stock
	}
	return result, rows.Err()
}
