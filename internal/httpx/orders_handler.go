package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/proyek/coffeeshop-pos/internal/kafka"
	"github.com/proyek/coffeeshop-pos/internal/orders"
	"github.com/proyek/coffeeshop-pos/internal/redisx"
)

type OrdersHandler struct {
	Service *orders.Service

	// Producers and Redis are optional; nil disables publishing / caching.
	Created *kafkax.Producer // pos.order.created
	Status  *kafkax.Producer // pos.order.status
	Redis   *redis.Client
	Source  string
}

type createCustomerOrderReq struct {
	CustomerID      string               `json:"customer_id"`
	Items           []orders.LineRequest `json:"items"`
	PaymentMethodID string               `json:"payment_method_id"`
	Notes           string               `json:"notes,omitempty"`
}

type createCashierOrderReq struct {
	CashierID     string               `json:"cashier_id"`
	Items         []orders.LineRequest `json:"items"`
	PaymentMethod string               `json:"payment_method"`
	TenderedCents *int64               `json:"tendered_cents,omitempty"`
	Notes         string               `json:"notes,omitempty"`
}

type cancelOrderReq struct {
	ActorID string `json:"actor_id"`
}

type updateStatusReq struct {
	Status orders.Status `json:"status"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.createCustomerOrder)
	r.Post("/orders/cashier", h.createCashierOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getOrderStatus)
	r.Post("/orders/{id}/payment", h.confirmPayment)
	r.Post("/orders/{id}/cancel", h.cancelOrder)
	r.Patch("/orders/{id}/status", h.updateStatus)
}

func (h *OrdersHandler) createCustomerOrder(w http.ResponseWriter, r *http.Request) {
	var req createCustomerOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.CustomerID == "" || len(req.Items) == 0 || req.PaymentMethodID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Service.ComposeCustomerOrder(ctx, req.CustomerID, req.Items, req.PaymentMethodID, req.Notes)
	if err != nil {
		writeEngineErr(w, err)
		return
	}

	h.cacheStatus(ctx, o)
	h.publishCreated(r, o, "customer", o.CustomerID)
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) createCashierOrder(w http.ResponseWriter, r *http.Request) {
	var req createCashierOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.CashierID == "" || len(req.Items) == 0 || req.PaymentMethod == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Service.ComposeCashierOrder(ctx, req.CashierID, req.Items, req.PaymentMethod, req.TenderedCents, req.Notes)
	if err != nil {
		writeEngineErr(w, err)
		return
	}

	h.cacheStatus(ctx, o)
	h.publishCreated(r, o, "cashier", o.CashierID)
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Service.Get(ctx, orderID)
	if err != nil {
		writeEngineErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	customerID := r.URL.Query().Get("customer_id")
	if customerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing customer_id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Service.ListByCustomer(ctx, customerID)
	if err != nil {
		writeEngineErr(w, err)
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, list)
}

// getOrderStatus serves the hot path from the status cache, falling back to the
// store on a miss.
func (h *OrdersHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if h.Redis != nil {
		key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	o, err := h.Service.Get(ctx, orderID)
	if err != nil {
		writeEngineErr(w, err)
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, map[string]any{"status": o.Status})
}

func (h *OrdersHandler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, orderID string) (*orders.Order, orders.Status, error) {
		o, err := h.Service.Get(ctx, orderID)
		if err != nil {
			return nil, "", err
		}
		from := o.Status
		o, err = h.Service.ConfirmPayment(ctx, orderID)
		return o, from, err
	})
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ActorID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing actor_id"})
		return
	}
	h.transition(w, r, func(ctx context.Context, orderID string) (*orders.Order, orders.Status, error) {
		o, err := h.Service.Get(ctx, orderID)
		if err != nil {
			return nil, "", err
		}
		from := o.Status
		o, err = h.Service.CancelOrder(ctx, orderID, req.ActorID)
		return o, from, err
	})
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing status"})
		return
	}
	h.transition(w, r, func(ctx context.Context, orderID string) (*orders.Order, orders.Status, error) {
		o, err := h.Service.Get(ctx, orderID)
		if err != nil {
			return nil, "", err
		}
		from := o.Status
		o, err = h.Service.TransitionStatus(ctx, orderID, req.Status)
		return o, from, err
	})
}

func (h *OrdersHandler) transition(w http.ResponseWriter, r *http.Request, apply func(context.Context, string) (*orders.Order, orders.Status, error)) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, from, err := apply(ctx, orderID)
	if err != nil {
		writeEngineErr(w, err)
		return
	}

	h.cacheStatus(ctx, o)
	h.publishStatusChanged(r, o, from)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, o *orders.Order) {
	if h.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	body, _ := json.Marshal(map[string]any{"status": o.Status})
	_ = h.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
}

func (h *OrdersHandler) publishCreated(r *http.Request, o *orders.Order, channel, actorID string) {
	if h.Created == nil {
		return
	}
	items := make([]orders.ItemQty, 0, len(o.Lines))
	for _, l := range o.Lines {
		items = append(items, orders.ItemQty{ProductID: l.ProductID, Qty: l.Quantity})
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderCreated,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Source,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(orders.OrderCreatedPayload{
			OrderID:    o.ID,
			Channel:    channel,
			ActorID:    actorID,
			Status:     o.Status,
			Items:      items,
			TotalCents: o.TotalCents,
		}),
	}
	h.Created.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderCreated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (h *OrdersHandler) publishStatusChanged(r *http.Request, o *orders.Order, from orders.Status) {
	if h.Status == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderStatusChanged,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Source,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(orders.OrderStatusChangedPayload{
			OrderID: o.ID,
			From:    from,
			To:      o.Status,
		}),
	}
	h.Status.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderStatusChanged)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
