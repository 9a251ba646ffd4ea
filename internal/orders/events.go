package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventStockLow           = "StockLow"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // usually order_id
	Payload       json.RawMessage `json:"payload"`
}

type ItemQty struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type OrderCreatedPayload struct {
	OrderID    string    `json:"order_id"`
	Channel    string    `json:"channel"` // "customer" | "cashier"
	ActorID    string    `json:"actor_id"`
	Status     Status    `json:"status"`
	Items      []ItemQty `json:"items"`
	TotalCents int64     `json:"total_cents"`
}

type OrderStatusChangedPayload struct {
	OrderID string `json:"order_id"`
	From    Status `json:"from"`
	To      Status `json:"to"`
}

type StockLowPayload struct {
	ProductID     string `json:"product_id"`
	Name          string `json:"name"`
	StockQuantity int    `json:"stock_quantity"`
	MinStockLevel int    `json:"min_stock_level"`
}
