package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo provides read-only lookups of catalog records. Catalog CRUD lives in a
// separate admin surface; the order engine only ever reads.
type Repo struct{ DB *pgxpool.Pool }

const productColumns = `product_id, name, COALESCE(description,''), price_cents, category_id,
	COALESCE(img_url,''), disabled, stock_quantity, min_stock_level, max_stock_level`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.PriceCents, &p.CategoryID,
		&p.ImageURL, &p.Disabled, &p.StockQuantity, &p.MinStockLevel, &p.MaxStockLevel)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

func (r *Repo) ProductByID(ctx context.Context, id string) (Product, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE product_id=$1`, id)
	return scanProduct(row)
}

func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CustomizationsByIDs resolves every requested id. Callers are responsible for
// treating missing ids as a hard failure; this returns whatever exists.
func (r *Repo) CustomizationsByIDs(ctx context.Context, ids []string) (map[string]Customization, error) {
	out := make(map[string]Customization, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.DB.Query(ctx, `
		SELECT customization_id, name, COALESCE(type,''), COALESCE(description,''), price_adjustment_cents
		FROM customizations WHERE customization_id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var c Customization
		if err := rows.Scan(&c.ID, &c.Name, &c.Type, &c.Description, &c.PriceAdjustmentCents); err != nil {
			return nil, err
		}
		out[c.ID] = c
	}
	return out, rows.Err()
}

func (r *Repo) PaymentMethodByID(ctx context.Context, id string) (PaymentMethod, error) {
	return r.paymentMethod(ctx, `SELECT payment_id, name, COALESCE(description,'')
		FROM payment_methods WHERE payment_id=$1`, id)
}

func (r *Repo) PaymentMethodByName(ctx context.Context, name string) (PaymentMethod, error) {
	return r.paymentMethod(ctx, `SELECT payment_id, name, COALESCE(description,'')
		FROM payment_methods WHERE lower(name)=lower($1)`, name)
}

func (r *Repo) paymentMethod(ctx context.Context, query, arg string) (PaymentMethod, error) {
	var m PaymentMethod
	err := r.DB.QueryRow(ctx, query, arg).Scan(&m.ID, &m.Name, &m.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return PaymentMethod{}, ErrNotFound
	}
	return m, err
}

func (r *Repo) ActorByID(ctx context.Context, id string) (Actor, error) {
	var a Actor
	err := r.DB.QueryRow(ctx, `SELECT user_id, username, role FROM users WHERE user_id=$1`, id).
		Scan(&a.ID, &a.Username, &a.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return Actor{}, ErrNotFound
	}
	return a, err
}
