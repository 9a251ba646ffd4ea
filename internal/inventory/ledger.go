package inventory

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/proyek/coffeeshop-pos/internal/catalog"
	"github.com/proyek/coffeeshop-pos/internal/orders"
)

// Ledger owns product stock counts. Availability is never stored: it is derived
// from the stock count and the catalog's manual disabled flag, so the ledger
// cannot override an explicit disable when restocking.
type Ledger struct {
	DB     *pgxpool.Pool
	Logger *slog.Logger
}

// Reserve decrements stock with a single conditional update. The guard on the
// current stock value makes the check-and-decrement uninterruptible per product
// row; two concurrent reservations of the last unit cannot both pass.
func (l *Ledger) Reserve(ctx context.Context, productID string, qty int) error {
	if qty < 1 {
		return &orders.ValidationError{Reason: "reserve quantity must be at least 1"}
	}
	var remaining int
	err := l.DB.QueryRow(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity - $2
		WHERE product_id = $1 AND stock_quantity >= $2
		RETURNING stock_quantity`, productID, qty).Scan(&remaining)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	// Guard did not match: either the product is missing or stock is short.
	var available int
	err = l.DB.QueryRow(ctx, `SELECT stock_quantity FROM products WHERE product_id=$1`, productID).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return &orders.NotFoundError{Kind: "product", Ref: productID}
	}
	if err != nil {
		return err
	}
	if available >= qty {
		// Stock was replenished between the two statements; the caller may retry.
		return orders.ErrConflict
	}
	return &orders.InsufficientStockError{ProductID: productID, Requested: qty, Available: available}
}

// Release returns stock, used for cancellations and restocking.
func (l *Ledger) Release(ctx context.Context, productID string, qty int) error {
	if qty < 1 {
		return &orders.ValidationError{Reason: "release quantity must be at least 1"}
	}
	ct, err := l.DB.Exec(ctx, `
		UPDATE products SET stock_quantity = stock_quantity + $2
		WHERE product_id = $1`, productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return &orders.NotFoundError{Kind: "product", Ref: productID}
	}
	return nil
}

// AddStock is the restock operation of the admin surface. Reason is recorded in
// the log only; there is no stock movement journal in this core.
func (l *Ledger) AddStock(ctx context.Context, productID string, qty int, reason string) (catalog.Product, error) {
	if err := l.Release(ctx, productID, qty); err != nil {
		return catalog.Product{}, err
	}
	l.log().Info("stock added", "product_id", productID, "qty", qty, "reason", reason)
	return l.StockInfo(ctx, productID)
}

// SetLevels overwrites the stock count and the advisory min/max levels.
func (l *Ledger) SetLevels(ctx context.Context, productID string, stock, minLevel, maxLevel int) (catalog.Product, error) {
	if stock < 0 {
		return catalog.Product{}, &orders.ValidationError{Reason: "stock quantity must not be negative"}
	}
	if minLevel < 0 || maxLevel < minLevel {
		return catalog.Product{}, &orders.ValidationError{Reason: "invalid min/max stock levels"}
	}
	ct, err := l.DB.Exec(ctx, `
		UPDATE products SET stock_quantity = $2, min_stock_level = $3, max_stock_level = $4
		WHERE product_id = $1`, productID, stock, minLevel, maxLevel)
	if err != nil {
		return catalog.Product{}, err
	}
	if ct.RowsAffected() == 0 {
		return catalog.Product{}, &orders.NotFoundError{Kind: "product", Ref: productID}
	}
	return l.StockInfo(ctx, productID)
}

func (l *Ledger) StockInfo(ctx context.Context, productID string) (catalog.Product, error) {
	p, err := (&catalog.Repo{DB: l.DB}).ProductByID(ctx, productID)
	if errors.Is(err, catalog.ErrNotFound) {
		return catalog.Product{}, &orders.NotFoundError{Kind: "product", Ref: productID}
	}
	return p, err
}

// LowStock lists products at or below their advisory minimum.
func (l *Ledger) LowStock(ctx context.Context) ([]catalog.Product, error) {
	all, err := (&catalog.Repo{DB: l.DB}).ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	low := all[:0:0]
	for _, p := range all {
		if p.LowStock() {
			low = append(low, p)
		}
	}
	return low, nil
}

func (l *Ledger) log() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}
