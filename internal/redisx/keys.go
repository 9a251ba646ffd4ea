package redisx

import "time"

const (
	// Order status cache: order_status:{order_id} -> {"status": "..."}
	KeyOrderStatus = "order_status:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Low-stock advisory throttle: stock_low:{product_id}
	KeyStockLow = "stock_low:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
	TTLStockLow    = 1 * time.Hour
)
