package catalog

import (
	"errors"
	"strings"
)

// ErrNotFound is returned by lookup adapters when a referenced record is absent.
var ErrNotFound = errors.New("not found")

type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	PriceCents  int64  `json:"price_cents"`
	CategoryID  string `json:"category_id"`
	ImageURL    string `json:"image_url,omitempty"`

	// Disabled is the manual catalog switch. It is owned by catalog management
	// and never written by the inventory ledger, so restocking cannot undo an
	// explicit disable.
	Disabled bool `json:"disabled"`

	StockQuantity int `json:"stock_quantity"`
	MinStockLevel int `json:"min_stock_level"`
	MaxStockLevel int `json:"max_stock_level"`
}

func (p Product) InStock() bool { return p.StockQuantity > 0 }

// Available combines the manual switch with the derived in-stock signal.
func (p Product) Available() bool { return !p.Disabled && p.InStock() }

// LowStock is an advisory signal for reporting, not a block on sales.
func (p Product) LowStock() bool { return p.StockQuantity <= p.MinStockLevel }

type Customization struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`

	// PriceAdjustmentCents may be zero or negative (e.g. "no whip" discounts).
	PriceAdjustmentCents int64 `json:"price_adjustment_cents"`
}

type PaymentMethod struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// IsCash reports whether settling with this method requires a tendered amount.
func (m PaymentMethod) IsCash() bool {
	n := strings.ToLower(m.Name)
	return n == "cash" || n == "tunai"
}

type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleCashier  Role = "CASHIER"
	RoleAdmin    Role = "ADMIN"
)

type Actor struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}
