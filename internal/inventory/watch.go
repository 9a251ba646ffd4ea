package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/proyek/coffeeshop-pos/internal/kafka"
	"github.com/proyek/coffeeshop-pos/internal/orders"
	"github.com/proyek/coffeeshop-pos/internal/redisx"
)

// Watcher consumes order events and publishes low-stock advisories for the
// products the order touched. Advisory only: sales are never blocked here.
type Watcher struct {
	Ledger      *Ledger
	Redis       *redis.Client
	Producer    *kafkax.Producer // publishes StockLow
	ServiceName string
}

// HandleOrderCreated is wired as the consumer handler for the order topic.
func (w *Watcher) HandleOrderCreated(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventOrderCreated {
		return nil
	}

	// Dedup by event id so redelivery does not re-alert.
	dkey := fmt.Sprintf(redisx.KeyDedup, "stockwatch", env.EventID)
	if exists, _ := redisx.Exists(ctx, w.Redis, dkey); exists {
		return nil
	}
	_ = w.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
	if err != nil {
		return err
	}

	for _, it := range p.Items {
		product, err := w.Ledger.StockInfo(ctx, it.ProductID)
		if err != nil {
			return err
		}
		if !product.LowStock() {
			continue
		}

		// Throttle per product so a busy hour does not flood the alert topic.
		tkey := fmt.Sprintf(redisx.KeyStockLow, product.ID)
		if throttled, _ := redisx.Exists(ctx, w.Redis, tkey); throttled {
			continue
		}
		_ = w.Redis.Set(ctx, tkey, "1", redisx.TTLStockLow).Err()

		w.publishLow(product.ID, product.Name, product.StockQuantity, product.MinStockLevel, env.TraceID)
	}
	return nil
}

func (w *Watcher) publishLow(productID, name string, stock, minLevel int, trace string) {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventStockLow,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      w.ServiceName,
		TraceID:       trace,
		CorrelationID: productID,
		Payload: kafkax.MustMarshal(orders.StockLowPayload{
			ProductID:     productID,
			Name:          name,
			StockQuantity: stock,
			MinStockLevel: minLevel,
		}),
	}
	w.Producer.Publish(orders.PartitionKey(productID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventStockLow)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
