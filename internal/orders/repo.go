package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo is the pgx-backed Store. Order creation inserts the order, its lines and
// their customization snapshots in one transaction.
type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Create(ctx context.Context, o *Order) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders(order_id, customer_id, cashier_id, status, total_cents,
		                   payment_method_id, tendered_cents, change_cents, notes, created_at, updated_at)
		VALUES ($1, NULLIF($2,''), NULLIF($3,''), $4, $5, $6, $7, $8, $9, $10, $10)`,
		o.ID, o.CustomerID, o.CashierID, o.Status, o.TotalCents,
		o.PaymentMethodID, o.TenderedCents, o.ChangeCents, o.Notes, o.CreatedAt)
	if err != nil {
		return err
	}

	for _, l := range o.Lines {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_lines(line_id, order_id, product_id, product_name, quantity, unit_price_cents, subtotal_cents)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			l.ID, o.ID, l.ProductID, l.ProductName, l.Quantity, l.UnitPriceCents, l.SubtotalCents)
		if err != nil {
			return err
		}
		for _, c := range l.Customizations {
			_, err = tx.Exec(ctx, `
				INSERT INTO order_line_customizations(snapshot_id, line_id, customization_id, name_snapshot, price_adjustment_snapshot_cents)
				VALUES ($1, $2, $3, $4, $5)`,
				uuid.NewString(), l.ID, c.CustomizationID, c.Name, c.PriceAdjustmentCents)
			if err != nil {
				return err
			}
		}
	}

	return tx.Commit(ctx)
}

const orderColumns = `o.order_id, COALESCE(o.customer_id,''), COALESCE(o.cashier_id,''), o.status,
	o.total_cents, o.payment_method_id, m.name, o.tendered_cents, o.change_cents,
	COALESCE(o.notes,''), o.created_at, o.updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.CustomerID, &o.CashierID, &o.Status,
		&o.TotalCents, &o.PaymentMethodID, &o.PaymentMethodName, &o.TenderedCents, &o.ChangeCents,
		&o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Repo) GetByID(ctx context.Context, id string) (*Order, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders o JOIN payment_methods m ON m.payment_id = o.payment_method_id
		WHERE o.order_id = $1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadLines(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repo) ListByCustomer(ctx context.Context, customerID string) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders o JOIN payment_methods m ON m.payment_id = o.payment_method_id
		WHERE o.customer_id = $1
		ORDER BY o.created_at DESC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := r.loadLines(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// UpdateStatus is a guarded flip: the row changes only if status still equals
// from. Losing the race against a concurrent transition surfaces ErrConflict.
func (r *Repo) UpdateStatus(ctx context.Context, id string, from, to Status) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status = $3, updated_at = now()
		WHERE order_id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := r.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE order_id=$1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return &NotFoundError{Kind: "order", Ref: id}
	}
	return ErrConflict
}

func (r *Repo) loadLines(ctx context.Context, o *Order) error {
	rows, err := r.DB.Query(ctx, `
		SELECT line_id, product_id, product_name, quantity, unit_price_cents, subtotal_cents
		FROM order_lines WHERE order_id = $1 ORDER BY line_id`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	var lines []OrderLine
	var lineIDs []string
	for rows.Next() {
		var l OrderLine
		if err := rows.Scan(&l.ID, &l.ProductID, &l.ProductName, &l.Quantity, &l.UnitPriceCents, &l.SubtotalCents); err != nil {
			return err
		}
		lines = append(lines, l)
		lineIDs = append(lineIDs, l.ID)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	o.Lines = lines
	if len(lineIDs) == 0 {
		return nil
	}
	byID := make(map[string]*OrderLine, len(lines))
	for i := range o.Lines {
		byID[o.Lines[i].ID] = &o.Lines[i]
	}

	crows, err := r.DB.Query(ctx, `
		SELECT line_id, customization_id, name_snapshot, price_adjustment_snapshot_cents
		FROM order_line_customizations WHERE line_id = ANY($1)`, lineIDs)
	if err != nil {
		return err
	}
	defer crows.Close()

	for crows.Next() {
		var lineID string
		var c CustomizationSnapshot
		if err := crows.Scan(&lineID, &c.CustomizationID, &c.Name, &c.PriceAdjustmentCents); err != nil {
			return err
		}
		if l := byID[lineID]; l != nil {
			l.Customizations = append(l.Customizations, c)
		}
	}
	return crows.Err()
}
