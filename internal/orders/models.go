package orders

import "time"

// CustomizationSnapshot is an immutable copy of a catalog customization taken
// when the line is built. Later catalog edits never change historical totals,
// which is why this is a distinct type and not a reference.
type CustomizationSnapshot struct {
	CustomizationID      string `json:"customization_id"`
	Name                 string `json:"name"`
	PriceAdjustmentCents int64  `json:"price_adjustment_cents"`
}

type OrderLine struct {
	ID             string                  `json:"id"`
	ProductID      string                  `json:"product_id"`
	ProductName    string                  `json:"product_name"`
	Quantity       int                     `json:"quantity"`
	UnitPriceCents int64                   `json:"unit_price_cents"`
	SubtotalCents  int64                   `json:"subtotal_cents"`
	Customizations []CustomizationSnapshot `json:"customizations,omitempty"`
}

type Order struct {
	ID string `json:"id"`

	// Exactly one of CustomerID / CashierID is set, depending on channel.
	CustomerID string `json:"customer_id,omitempty"`
	CashierID  string `json:"cashier_id,omitempty"`

	Status            Status      `json:"status"`
	Lines             []OrderLine `json:"lines"`
	TotalCents        int64       `json:"total_cents"`
	PaymentMethodID   string      `json:"payment_method_id"`
	PaymentMethodName string      `json:"payment_method_name"`

	// Cash settlement bookkeeping, cashier channel only.
	TenderedCents *int64 `json:"tendered_cents,omitempty"`
	ChangeCents   *int64 `json:"change_cents,omitempty"`

	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
