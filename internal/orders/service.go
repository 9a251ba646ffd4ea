package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/proyek/coffeeshop-pos/internal/catalog"
)

// Catalog resolves the records an order references. Lookups are read-only;
// adapters signal absence with catalog.ErrNotFound.
type Catalog interface {
	ProductByID(ctx context.Context, id string) (catalog.Product, error)
	CustomizationsByIDs(ctx context.Context, ids []string) (map[string]catalog.Customization, error)
	PaymentMethodByID(ctx context.Context, id string) (catalog.PaymentMethod, error)
	PaymentMethodByName(ctx context.Context, name string) (catalog.PaymentMethod, error)
}

type Directory interface {
	ActorByID(ctx context.Context, id string) (catalog.Actor, error)
}

// Ledger owns stock counts. Reserve must be atomic per product: two concurrent
// reservations of the last unit may not both succeed.
type Ledger interface {
	Reserve(ctx context.Context, productID string, qty int) error
	Release(ctx context.Context, productID string, qty int) error
}

type Store interface {
	Create(ctx context.Context, o *Order) error
	// GetByID returns (nil, nil) when the order does not exist.
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]Order, error)
	// UpdateStatus flips status only if it still equals from; ErrConflict otherwise.
	UpdateStatus(ctx context.Context, id string, from, to Status) error
}

type LineRequest struct {
	ProductID        string   `json:"product_id"`
	Quantity         int      `json:"quantity"`
	CustomizationIDs []string `json:"customization_ids,omitempty"`
}

// Service composes priced, stock-reserved orders and drives their lifecycle.
type Service struct {
	Catalog Catalog
	Actors  Directory
	Ledger  Ledger
	Store   Store
	Logger  *slog.Logger
}

// ComposeCustomerOrder builds a self-service order in WAITING_PAYMENT. Stock is
// reserved during composition; any failure leaves no partial order or partial
// reservation behind.
func (s *Service) ComposeCustomerOrder(ctx context.Context, customerID string, lines []LineRequest, paymentMethodID, notes string) (*Order, error) {
	actor, err := s.actor(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if actor.Role != catalog.RoleCustomer {
		return nil, validationf("user %s is not a registered customer", actor.Username)
	}

	method, err := s.Catalog.PaymentMethodByID(ctx, paymentMethodID)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, &NotFoundError{Kind: "payment method", Ref: paymentMethodID}
	}
	if err != nil {
		return nil, err
	}

	built, err := s.buildLines(ctx, lines)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	o := &Order{
		ID:                uuid.NewString(),
		CustomerID:        actor.ID,
		Status:            StatusWaitingPayment,
		Lines:             built,
		TotalCents:        OrderTotal(built),
		PaymentMethodID:   method.ID,
		PaymentMethodName: method.Name,
		Notes:             notes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.persist(ctx, o); err != nil {
		return nil, err
	}
	s.log().Info("customer order created", "order_id", o.ID, "customer_id", actor.ID, "total_cents", o.TotalCents)
	return o, nil
}

// ComposeCashierOrder builds a walk-in order directly in PAID. Cash settlement
// requires a tendered amount covering the total; change is never clamped.
func (s *Service) ComposeCashierOrder(ctx context.Context, cashierID string, lines []LineRequest, paymentMethodName string, tenderedCents *int64, notes string) (*Order, error) {
	actor, err := s.actor(ctx, cashierID)
	if err != nil {
		return nil, err
	}
	if actor.Role != catalog.RoleCashier {
		return nil, validationf("user %s does not hold the cashier role", actor.Username)
	}

	method, err := s.Catalog.PaymentMethodByName(ctx, paymentMethodName)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, &NotFoundError{Kind: "payment method", Ref: paymentMethodName}
	}
	if err != nil {
		return nil, err
	}

	built, err := s.buildLines(ctx, lines)
	if err != nil {
		return nil, err
	}
	total := OrderTotal(built)

	var change *int64
	switch {
	case tenderedCents != nil:
		if *tenderedCents < total {
			return nil, validationf("tendered amount %d is less than order total %d", *tenderedCents, total)
		}
		c := *tenderedCents - total
		change = &c
	case method.IsCash():
		return nil, validationf("cash payment requires a tendered amount")
	}

	now := time.Now().UTC()
	o := &Order{
		ID:                uuid.NewString(),
		CashierID:         actor.ID,
		Status:            StatusPaid,
		Lines:             built,
		TotalCents:        total,
		PaymentMethodID:   method.ID,
		PaymentMethodName: method.Name,
		TenderedCents:     tenderedCents,
		ChangeCents:       change,
		Notes:             notes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.persist(ctx, o); err != nil {
		return nil, err
	}
	s.log().Info("cashier order created", "order_id", o.ID, "cashier_id", actor.ID, "total_cents", o.TotalCents)
	return o, nil
}

// ConfirmPayment is the named WAITING_PAYMENT -> PROCESSING transition.
func (s *Service) ConfirmPayment(ctx context.Context, orderID string) (*Order, error) {
	o, err := s.get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusWaitingPayment {
		return nil, &InvalidTransitionError{From: o.Status, To: StatusProcessing}
	}
	return s.applyTransition(ctx, o, StatusProcessing)
}

// CancelOrder cancels a whole order and releases the stock it reserved.
// Self-service orders may be cancelled by their customer or by staff; walk-in
// orders by staff only.
func (s *Service) CancelOrder(ctx context.Context, orderID, actorID string) (*Order, error) {
	o, err := s.get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	staff := actor.Role == catalog.RoleCashier || actor.Role == catalog.RoleAdmin
	if o.CustomerID != "" {
		if o.CustomerID != actor.ID && !staff {
			return nil, validationf("user %s cannot cancel this order", actor.Username)
		}
	} else if !staff {
		return nil, validationf("user %s cannot cancel this order", actor.Username)
	}
	if !Cancellable(o.Status) {
		return nil, &InvalidTransitionError{From: o.Status, To: StatusCancelled}
	}
	return s.applyTransition(ctx, o, StatusCancelled)
}

// TransitionStatus applies an arbitrary transition from the validated table.
func (s *Service) TransitionStatus(ctx context.Context, orderID string, next Status) (*Order, error) {
	if !KnownStatus(next) {
		return nil, validationf("unknown order status: %s", next)
	}
	o, err := s.get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, next) {
		return nil, &InvalidTransitionError{From: o.Status, To: next}
	}
	return s.applyTransition(ctx, o, next)
}

func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	return s.get(ctx, orderID)
}

func (s *Service) ListByCustomer(ctx context.Context, customerID string) ([]Order, error) {
	return s.Store.ListByCustomer(ctx, customerID)
}

// applyTransition flips the status with a guarded update first, so a concurrent
// transition loses with ErrConflict and stock can never be released twice.
func (s *Service) applyTransition(ctx context.Context, o *Order, next Status) (*Order, error) {
	if err := s.Store.UpdateStatus(ctx, o.ID, o.Status, next); err != nil {
		return nil, err
	}
	from := o.Status
	o.Status = next
	o.UpdatedAt = time.Now().UTC()

	if next == StatusCancelled {
		// Releasing the creation-time reservations is part of the transition,
		// not a separate manual step.
		if err := s.releaseLines(ctx, o.Lines); err != nil {
			return nil, fmt.Errorf("release reserved stock: %w", err)
		}
	}
	s.log().Info("order status changed", "order_id", o.ID, "from", from, "to", next)
	return o, nil
}

func (s *Service) buildLines(ctx context.Context, reqs []LineRequest) ([]OrderLine, error) {
	if len(reqs) == 0 {
		return nil, validationf("order must contain at least one line")
	}
	out := make([]OrderLine, 0, len(reqs))
	for _, req := range reqs {
		p, err := s.Catalog.ProductByID(ctx, req.ProductID)
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, &NotFoundError{Kind: "product", Ref: req.ProductID}
		}
		if err != nil {
			return nil, err
		}
		if !p.Available() {
			return nil, validationf("product %s is not available", p.Name)
		}
		snaps, err := s.resolveSnapshots(ctx, req.CustomizationIDs)
		if err != nil {
			return nil, err
		}
		subtotal, err := LineSubtotal(p.PriceCents, req.Quantity, snaps)
		if err != nil {
			return nil, err
		}
		out = append(out, OrderLine{
			ID:             uuid.NewString(),
			ProductID:      p.ID,
			ProductName:    p.Name,
			Quantity:       req.Quantity,
			UnitPriceCents: p.PriceCents,
			SubtotalCents:  subtotal,
			Customizations: snaps,
		})
	}
	return out, nil
}

// resolveSnapshots copies catalog customizations into snapshots. An unknown id
// is a hard failure: silently dropping a modifier would misstate the price.
func (s *Service) resolveSnapshots(ctx context.Context, ids []string) ([]CustomizationSnapshot, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	found, err := s.Catalog.CustomizationsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	snaps := make([]CustomizationSnapshot, 0, len(ids))
	for _, id := range ids {
		c, ok := found[id]
		if !ok {
			return nil, &NotFoundError{Kind: "customization", Ref: id}
		}
		snaps = append(snaps, CustomizationSnapshot{
			CustomizationID:      c.ID,
			Name:                 c.Name,
			PriceAdjustmentCents: c.PriceAdjustmentCents,
		})
	}
	return snaps, nil
}

// persist reserves stock then stores the order; a failure at either step rolls
// every reservation made for this order back.
func (s *Service) persist(ctx context.Context, o *Order) error {
	if err := s.reserveLines(ctx, o.Lines); err != nil {
		return err
	}
	if err := s.Store.Create(ctx, o); err != nil {
		_ = s.releaseLines(ctx, o.Lines)
		return err
	}
	return nil
}

func (s *Service) reserveLines(ctx context.Context, lines []OrderLine) error {
	reserved := lines[:0:0]
	for _, l := range lines {
		if err := s.Ledger.Reserve(ctx, l.ProductID, l.Quantity); err != nil {
			_ = s.releaseLines(ctx, reserved)
			return err
		}
		reserved = append(reserved, l)
	}
	return nil
}

func (s *Service) releaseLines(ctx context.Context, lines []OrderLine) error {
	var first error
	for _, l := range lines {
		if err := s.Ledger.Release(ctx, l.ProductID, l.Quantity); err != nil {
			s.log().Error("release reservation failed", "product_id", l.ProductID, "qty", l.Quantity, "error", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func (s *Service) actor(ctx context.Context, id string) (catalog.Actor, error) {
	a, err := s.Actors.ActorByID(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		return catalog.Actor{}, &NotFoundError{Kind: "user", Ref: id}
	}
	return a, err
}

func (s *Service) get(ctx context.Context, id string) (*Order, error) {
	o, err := s.Store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, &NotFoundError{Kind: "order", Ref: id}
	}
	return o, nil
}

func (s *Service) log() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
