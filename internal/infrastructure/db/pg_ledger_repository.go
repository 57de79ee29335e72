package db

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/ahsanhabibakik/rupomoti-stock-go/internal/domain"
)

type PgLedgerRepository struct {
	db *sql.DB
}

func NewPgLedgerRepository(db *sql.DB) *PgLedgerRepository {
	return &PgLedgerRepository{db: db}
}

func (r *PgLedgerRepository) Append(ctx context.Context, entry *domain.LedgerEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	q := `
        insert into stock_ledger
        (id, product_id, order_id, operation, previous_stock, new_stock, delta, reason, actor_id, created_at_utc)
        values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
    `
	var orderID interface{}
	if entry.OrderID != nil {
		orderID = *entry.OrderID
	}
	var actorID sql.NullString
	if entry.ActorID != "" {
		actorID = sql.NullString{String: entry.ActorID, Valid: true}
	}

	_, err := r.db.ExecContext(
		ctx, q,
		entry.ID,
		entry.ProductID,
		orderID,
		string(entry.Operation),
		entry.PreviousStock,
		entry.NewStock,
		entry.Delta,
		entry.Reason,
		actorID,
		entry.CreatedAtUtc,
	)
	return err
}

func (r *PgLedgerRepository) History(ctx context.Context, productID string, limit int) ([]domain.LedgerEntry, error) {
	q := `
        select id, product_id, order_id, operation, previous_stock, new_stock, delta, reason, actor_id, created_at_utc
        from stock_ledger
        where product_id = $1
        order by created_at_utc desc
        limit $2
    `
	rows, err := r.db.QueryContext(ctx, q, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (r *PgLedgerRepository) HistoryForOrder(ctx context.Context, orderID uuid.UUID) ([]domain.LedgerEntry, error) {
	q := `
        select id, product_id, order_id, operation, previous_stock, new_stock, delta, reason, actor_id, created_at_utc
        from stock_ledger
        where order_id = $1
        order by created_at_utc asc
    `
	rows, err := r.db.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]domain.LedgerEntry, error) {
	entries := []domain.LedgerEntry{}
	for rows.Next() {
		var e domain.LedgerEntry
		var operation string
		var orderID uuid.NullUUID
		var actorID sql.NullString
		if err := rows.Scan(
			&e.ID,
			&e.ProductID,
			&orderID,
			&operation,
			&e.PreviousStock,
			&e.NewStock,
			&e.Delta,
			&e.Reason,
			&actorID,
			&e.CreatedAtUtc,
		); err != nil {
			return nil, err
		}
		e.Operation = domain.Operation(operation)
		if orderID.Valid {
			id := orderID.UUID
			e.OrderID = &id
		}
		if actorID.Valid {
			e.ActorID = actorID.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
