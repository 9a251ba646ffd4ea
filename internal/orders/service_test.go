package orders

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/proyek/coffeeshop-pos/internal/catalog"
)

// In-memory collaborators. The ledger shares product state with the catalog so
// reservations are visible to availability checks, the way the real ledger and
// catalog share the products table.

type memCatalog struct {
	mu             sync.Mutex
	products       map[string]catalog.Product
	customizations map[string]catalog.Customization
	methods        map[string]catalog.PaymentMethod
	actors         map[string]catalog.Actor
}

func (m *memCatalog) ProductByID(_ context.Context, id string) (catalog.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

func (m *memCatalog) CustomizationsByIDs(_ context.Context, ids []string) (map[string]catalog.Customization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]catalog.Customization, len(ids))
	for _, id := range ids {
		if c, ok := m.customizations[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

func (m *memCatalog) PaymentMethodByID(_ context.Context, id string) (catalog.PaymentMethod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pm, ok := m.methods[id]
	if !ok {
		return catalog.PaymentMethod{}, catalog.ErrNotFound
	}
	return pm, nil
}

func (m *memCatalog) PaymentMethodByName(_ context.Context, name string) (catalog.PaymentMethod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pm := range m.methods {
		if strings.EqualFold(pm.Name, name) {
			return pm, nil
		}
	}
	return catalog.PaymentMethod{}, catalog.ErrNotFound
}

func (m *memCatalog) ActorByID(_ context.Context, id string) (catalog.Actor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.actors[id]
	if !ok {
		return catalog.Actor{}, catalog.ErrNotFound
	}
	return a, nil
}

func (m *memCatalog) stock(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].StockQuantity
}

type memLedger struct {
	cat *memCatalog
}

func (l *memLedger) Reserve(_ context.Context, productID string, qty int) error {
	l.cat.mu.Lock()
	defer l.cat.mu.Unlock()
	p, ok := l.cat.products[productID]
	if !ok {
		return &NotFoundError{Kind: "product", Ref: productID}
	}
	if p.StockQuantity < qty {
		return &InsufficientStockError{ProductID: productID, Requested: qty, Available: p.StockQuantity}
	}
	p.StockQuantity -= qty
	l.cat.products[productID] = p
	return nil
}

func (l *memLedger) Release(_ context.Context, productID string, qty int) error {
	l.cat.mu.Lock()
	defer l.cat.mu.Unlock()
	p, ok := l.cat.products[productID]
	if !ok {
		return &NotFoundError{Kind: "product", Ref: productID}
	}
	p.StockQuantity += qty
	l.cat.products[productID] = p
	return nil
}

type memStore struct {
	mu        sync.Mutex
	orders    map[string]Order
	createErr error
}

func (m *memStore) Create(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	cp := *o
	cp.Lines = append([]OrderLine(nil), o.Lines...)
	m.orders[o.ID] = cp
	return nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	cp := o
	cp.Lines = append([]OrderLine(nil), o.Lines...)
	return &cp, nil
}

func (m *memStore) ListByCustomer(_ context.Context, customerID string) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.orders {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memStore) UpdateStatus(_ context.Context, id string, from, to Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return &NotFoundError{Kind: "order", Ref: id}
	}
	if o.Status != from {
		return ErrConflict
	}
	o.Status = to
	m.orders[id] = o
	return nil
}

type fixture struct {
	cat   *memCatalog
	store *memStore
	svc   *Service
}

func newFixture() *fixture {
	cat := &memCatalog{
		products: map[string]catalog.Product{
			"p-espresso": {ID: "p-espresso", Name: "Espresso", PriceCents: 15000, StockQuantity: 10, MinStockLevel: 2},
			"p-latte":    {ID: "p-latte", Name: "Latte", PriceCents: 22000, StockQuantity: 3, MinStockLevel: 2},
			"p-retired":  {ID: "p-retired", Name: "Seasonal Blend", PriceCents: 18000, StockQuantity: 8, MinStockLevel: 2, Disabled: true},
		},
		customizations: map[string]catalog.Customization{
			"c-shot": {ID: "c-shot", Name: "Extra Shot", Type: "addon", PriceAdjustmentCents: 5000},
			"c-decaf": {ID: "c-decaf", Name: "Decaf", Type: "bean", PriceAdjustmentCents: 0},
		},
		methods: map[string]catalog.PaymentMethod{
			"pm-cash": {ID: "pm-cash", Name: "Cash"},
			"pm-card": {ID: "pm-card", Name: "Credit Card"},
		},
		actors: map[string]catalog.Actor{
			"cust-1":  {ID: "cust-1", Username: "alice", Role: catalog.RoleCustomer},
			"cust-2":  {ID: "cust-2", Username: "bob", Role: catalog.RoleCustomer},
			"kasir-1": {ID: "kasir-1", Username: "kasir001", Role: catalog.RoleCashier},
		},
	}
	store := &memStore{orders: map[string]Order{}}
	svc := &Service{
		Catalog: cat,
		Actors:  cat,
		Ledger:  &memLedger{cat: cat},
		Store:   store,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return &fixture{cat: cat, store: store, svc: svc}
}

func int64p(v int64) *int64 { return &v }

func TestComposeCustomerOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	o, err := f.svc.ComposeCustomerOrder(ctx, "cust-1", []LineRequest{
		{ProductID: "p-espresso", Quantity: 2, CustomizationIDs: []string{"c-shot"}},
		{ProductID: "p-latte", Quantity: 1},
	}, "pm-card", "no ice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if o.Status != StatusWaitingPayment {
		t.Errorf("status = %s, want %s", o.Status, StatusWaitingPayment)
	}
	if o.CustomerID != "cust-1" || o.CashierID != "" {
		t.Errorf("actor refs = (%q, %q), want customer only", o.CustomerID, o.CashierID)
	}
	if want := int64((15000+5000)*2 + 22000); o.TotalCents != want {
		t.Errorf("total = %d, want %d", o.TotalCents, want)
	}
	if got := f.cat.stock("p-espresso"); got != 8 {
		t.Errorf("espresso stock = %d, want 8", got)
	}
	if got := f.cat.stock("p-latte"); got != 2 {
		t.Errorf("latte stock = %d, want 2", got)
	}

	snaps := o.Lines[0].Customizations
	if len(snaps) != 1 || snaps[0].Name != "Extra Shot" || snaps[0].PriceAdjustmentCents != 5000 {
		t.Errorf("unexpected snapshots: %+v", snaps)
	}

	stored, err := f.svc.Get(ctx, o.ID)
	if err != nil {
		t.Fatalf("get after create: %v", err)
	}
	if stored.TotalCents != o.TotalCents {
		t.Errorf("stored total = %d, want %d", stored.TotalCents, o.TotalCents)
	}
}

func TestComposeCustomerOrderSnapshotIsolation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	o, err := f.svc.ComposeCustomerOrder(ctx, "cust-1", []LineRequest{
		{ProductID: "p-espresso", Quantity: 1, CustomizationIDs: []string{"c-shot"}},
	}, "pm-card", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A later catalog edit must never change the historical order.
	f.cat.mu.Lock()
	c := f.cat.customizations["c-shot"]
	c.Name = "Double Shot"
	c.PriceAdjustmentCents = 9000
	f.cat.customizations["c-shot"] = c
	f.cat.mu.Unlock()

	stored, err := f.svc.Get(ctx, o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.TotalCents != 20000 {
		t.Errorf("total after catalog edit = %d, want 20000", stored.TotalCents)
	}
	snap := stored.Lines[0].Customizations[0]
	if snap.Name != "Extra Shot" || snap.PriceAdjustmentCents != 5000 {
		t.Errorf("snapshot mutated by catalog edit: %+v", snap)
	}
}

func TestComposeCustomerOrderFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("wrong role", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.ComposeCustomerOrder(ctx, "kasir-1", []LineRequest{{ProductID: "p-espresso", Quantity: 1}}, "pm-card", "")
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("want ValidationError, got %v", err)
		}
	})

	t.Run("unknown actor", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.ComposeCustomerOrder(ctx, "ghost", []LineRequest{{ProductID: "p-espresso", Quantity: 1}}, "pm-card", "")
		var nf *NotFoundError
		if !errors.As(err, &nf) || nf.Kind != "user" {
			t.Fatalf("want user NotFoundError, got %v", err)
		}
	})

	t.Run("unknown product", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.ComposeCustomerOrder(ctx, "cust-1", []LineRequest{{ProductID: "p-nope", Quantity: 1}}, "pm-card", "")
		var nf *NotFoundError
		if !errors.As(err, &nf) || nf.Kind != "product" {
			t.Fatalf("want product NotFoundError, got %v", err)
		}
	})

	t.Run("unknown customization is a hard failure", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.ComposeCustomerOrder(ctx, "cust-1", []LineRequest{
			{ProductID: "p-espresso", Quantity: 1, CustomizationIDs: []string{"c-shot", "c-nope"}},
		}, "pm-card", "")
		var nf *NotFoundError
		if !errors.As(err, &nf) || nf.Kind != "customization" {
			t.Fatalf("want customization NotFoundError, got %v", err)
		}
		if got := f.cat.stock("p-espresso"); got != 10 {
			t.Errorf("stock touched on failed composition: %d", got)
		}
	})

	t.Run("unknown payment method", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.ComposeCustomerOrder(ctx, "cust-1", []LineRequest{{ProductID: "p-espresso", Quantity: 1}}, "pm-nope", "")
		var nf *NotFoundError
		if !errors.As(err, &nf) || nf.Kind != "payment method" {
			t.Fatalf("want payment method NotFoundError, got %v", err)
		}
	})

	t.Run("disabled product", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.ComposeCustomerOrder(ctx, "cust-1", []LineRequest{{ProductID: "p-retired", Quantity: 1}}, "pm-card", "")
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("want ValidationError, got %v", err)
		}
	})

	t.Run("empty order", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.ComposeCustomerOrder(ctx, "cust-1", nil, "pm-card", "")
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("want ValidationError, got %v", err)
		}
	})
}

func TestComposeOrderRollsBackEarlierReservations(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// Latte has 3 in stock; asking for 5 fails the second line after the first
	// already reserved.
	_, err := f.svc.ComposeCustomerOrder(ctx, "cust-1", []LineRequest{
		{ProductID: "p-espresso", Quantity: 2},
		{ProductID: "p-latte", Quantity: 5},
	}, "pm-card", "")

	var ise *InsufficientStockError
	if !errors.As(err, &ise) {
		t.Fatalf("want InsufficientStockError, got %v", err)
	}
	if ise.ProductID != "p-latte" || ise.Requested != 5 || ise.Available != 3 {
		t.Errorf("unexpected error detail: %+v", ise)
	}
	if got := f.cat.stock("p-espresso"); got != 10 {
		t.Errorf("espresso stock = %d, want 10 (rolled back)", got)
	}
	if got := f.cat.stock("p-latte"); got != 3 {
		t.Errorf("latte stock = %d, want 3", got)
	}
	if len(f.store.orders) != 0 {
		t.Errorf("partial order persisted: %d", len(f.store.orders))
	}
}

func TestComposeOrderRollsBackOnStoreFailure(t *testing.T) {
	f := newFixture()
	f.store.createErr = errors.New("connection reset")
	ctx := context.Background()

	_, err := f.svc.ComposeCustomerOrder(ctx, "cust-1", []LineRequest{
		{ProductID: "p-espresso", Quantity: 4},
	}, "pm-card", "")
	if err == nil {
		t.Fatal("want error, got nil")
	}
	if got := f.cat.stock("p-espresso"); got != 10 {
		t.Errorf("espresso stock = %d, want 10 (released after persist failure)", got)
	}
}

func TestComposeCashierOrderCash(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	o, err := f.svc.ComposeCashierOrder(ctx, "kasir-1", []LineRequest{
		{ProductID: "p-espresso", Quantity: 2, CustomizationIDs: []string{"c-shot"}},
	}, "Cash", int64p(50000), "walk-in")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if o.Status != StatusPaid {
		t.Errorf("status = %s, want %s", o.Status, StatusPaid)
	}
	if o.CashierID != "kasir-1" || o.CustomerID != "" {
		t.Errorf("actor refs = (%q, %q), want cashier only", o.CustomerID, o.CashierID)
	}
	if o.TotalCents != 40000 {
		t.Errorf("total = %d, want 40000", o.TotalCents)
	}
	if o.ChangeCents == nil || *o.ChangeCents != 10000 {
		t.Errorf("change = %v, want 10000", o.ChangeCents)
	}
	if got := f.cat.stock("p-espresso"); got != 8 {
		t.Errorf("stock = %d, want 8", got)
	}
}

func TestComposeCashierOrderPaymentRules(t *testing.T) {
	ctx := context.Background()

	t.Run("insufficient tender rejected, stock untouched", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.ComposeCashierOrder(ctx, "kasir-1", []LineRequest{
			{ProductID: "p-espresso", Quantity: 2, CustomizationIDs: []string{"c-shot"}},
		}, "Cash", int64p(30000), "")
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("want ValidationError, got %v", err)
		}
		if got := f.cat.stock("p-espresso"); got != 10 {
			t.Errorf("stock reserved despite rejected tender: %d", got)
		}
		if len(f.store.orders) != 0 {
			t.Error("order created despite rejected tender")
		}
	})

	t.Run("cash without tender rejected", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.ComposeCashierOrder(ctx, "kasir-1", []LineRequest{
			{ProductID: "p-espresso", Quantity: 1},
		}, "Cash", nil, "")
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("want ValidationError, got %v", err)
		}
	})

	t.Run("non-cash without tender leaves change unset", func(t *testing.T) {
		f := newFixture()
		o, err := f.svc.ComposeCashierOrder(ctx, "kasir-1", []LineRequest{
			{ProductID: "p-espresso", Quantity: 1},
		}, "Credit Card", nil, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if o.TenderedCents != nil || o.ChangeCents != nil {
			t.Errorf("tender/change = %v/%v, want unset", o.TenderedCents, o.ChangeCents)
		}
	})

	t.Run("exact tender gives zero change", func(t *testing.T) {
		f := newFixture()
		o, err := f.svc.ComposeCashierOrder(ctx, "kasir-1", []LineRequest{
			{ProductID: "p-espresso", Quantity: 1},
		}, "Cash", int64p(15000), "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if o.ChangeCents == nil || *o.ChangeCents != 0 {
			t.Errorf("change = %v, want 0", o.ChangeCents)
		}
	})

	t.Run("customer cannot use the cashier channel", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.ComposeCashierOrder(ctx, "cust-1", []LineRequest{
			{ProductID: "p-espresso", Quantity: 1},
		}, "Cash", int64p(20000), "")
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("want ValidationError, got %v", err)
		}
	})
}

func TestConfirmPayment(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	o, err := f.svc.ComposeCustomerOrder(ctx, "cust-1", []LineRequest{{ProductID: "p-espresso", Quantity: 1}}, "pm-card", "")
	if err != nil {
		t.Fatalf("compose: %v", err)
	}

	confirmed, err := f.svc.ConfirmPayment(ctx, o.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != StatusProcessing {
		t.Errorf("status = %s, want %s", confirmed.Status, StatusProcessing)
	}

	// Second confirmation must fail: the order is no longer WAITING_PAYMENT.
	_, err = f.svc.ConfirmPayment(ctx, o.ID)
	var ite *InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("want InvalidTransitionError, got %v", err)
	}
	if ite.From != StatusProcessing {
		t.Errorf("From = %s, want %s", ite.From, StatusProcessing)
	}

	_, err = f.svc.ConfirmPayment(ctx, "no-such-order")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("want NotFoundError, got %v", err)
	}
}

func TestCancelOrderReleasesStock(t *testing.T) {
	ctx := context.Background()

	for _, confirmFirst := range []bool{false, true} {
		name := "from WAITING_PAYMENT"
		if confirmFirst {
			name = "from PROCESSING"
		}
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			before := f.cat.stock("p-espresso")

			o, err := f.svc.ComposeCustomerOrder(ctx, "cust-1", []LineRequest{
				{ProductID: "p-espresso", Quantity: 3},
			}, "pm-card", "")
			if err != nil {
				t.Fatalf("compose: %v", err)
			}
			if confirmFirst {
				if _, err := f.svc.ConfirmPayment(ctx, o.ID); err != nil {
					t.Fatalf("confirm: %v", err)
				}
			}

			cancelled, err := f.svc.CancelOrder(ctx, o.ID, "cust-1")
			if err != nil {
				t.Fatalf("cancel: %v", err)
			}
			if cancelled.Status != StatusCancelled {
				t.Errorf("status = %s, want %s", cancelled.Status, StatusCancelled)
			}
			if got := f.cat.stock("p-espresso"); got != before {
				t.Errorf("stock = %d, want %d (exact release)", got, before)
			}
		})
	}
}

func TestCancelOrderGuards(t *testing.T) {
	ctx := context.Background()

	t.Run("not cancellable once ready for pickup", func(t *testing.T) {
		f := newFixture()
		o, _ := f.svc.ComposeCustomerOrder(ctx, "cust-1", []LineRequest{{ProductID: "p-espresso", Quantity: 1}}, "pm-card", "")
		if _, err := f.svc.ConfirmPayment(ctx, o.ID); err != nil {
			t.Fatalf("confirm: %v", err)
		}
		if _, err := f.svc.TransitionStatus(ctx, o.ID, StatusReadyForPickup); err != nil {
			t.Fatalf("transition: %v", err)
		}

		_, err := f.svc.CancelOrder(ctx, o.ID, "cust-1")
		var ite *InvalidTransitionError
		if !errors.As(err, &ite) {
			t.Fatalf("want InvalidTransitionError, got %v", err)
		}
		if ite.From != StatusReadyForPickup || ite.To != StatusCancelled {
			t.Errorf("transition detail = %s -> %s", ite.From, ite.To)
		}

		cur, _ := f.svc.Get(ctx, o.ID)
		if cur.Status != StatusReadyForPickup {
			t.Errorf("status changed to %s on failed cancel", cur.Status)
		}
		if got := f.cat.stock("p-espresso"); got != 9 {
			t.Errorf("stock = %d, want 9 (still reserved)", got)
		}
	})

	t.Run("another customer cannot cancel", func(t *testing.T) {
		f := newFixture()
		o, _ := f.svc.ComposeCustomerOrder(ctx, "cust-1", []LineRequest{{ProductID: "p-espresso", Quantity: 1}}, "pm-card", "")

		_, err := f.svc.CancelOrder(ctx, o.ID, "cust-2")
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("want ValidationError, got %v", err)
		}
	})

	t.Run("staff may cancel a customer order", func(t *testing.T) {
		f := newFixture()
		o, _ := f.svc.ComposeCustomerOrder(ctx, "cust-1", []LineRequest{{ProductID: "p-espresso", Quantity: 1}}, "pm-card", "")

		if _, err := f.svc.CancelOrder(ctx, o.ID, "kasir-1"); err != nil {
			t.Fatalf("staff cancel: %v", err)
		}
	})

	t.Run("settled walk-in order is not cancellable", func(t *testing.T) {
		f := newFixture()
		o, err := f.svc.ComposeCashierOrder(ctx, "kasir-1", []LineRequest{{ProductID: "p-espresso", Quantity: 1}}, "Cash", int64p(20000), "")
		if err != nil {
			t.Fatalf("compose: %v", err)
		}
		_, err = f.svc.CancelOrder(ctx, o.ID, "kasir-1")
		var ite *InvalidTransitionError
		if !errors.As(err, &ite) {
			t.Fatalf("want InvalidTransitionError, got %v", err)
		}
	})
}

func TestTransitionStatus(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	o, err := f.svc.ComposeCashierOrder(ctx, "kasir-1", []LineRequest{{ProductID: "p-espresso", Quantity: 1}}, "Credit Card", nil, "")
	if err != nil {
		t.Fatalf("compose: %v", err)
	}

	// PAID joins the shared lifecycle through PROCESSING.
	for _, next := range []Status{StatusProcessing, StatusReadyForPickup, StatusCompleted} {
		cur, err := f.svc.TransitionStatus(ctx, o.ID, next)
		if err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
		if cur.Status != next {
			t.Errorf("status = %s, want %s", cur.Status, next)
		}
	}

	// COMPLETED is terminal.
	_, err = f.svc.TransitionStatus(ctx, o.ID, StatusProcessing)
	var ite *InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("want InvalidTransitionError, got %v", err)
	}

	_, err = f.svc.TransitionStatus(ctx, o.ID, "READY_TO_SERVE")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("want ValidationError for unknown status, got %v", err)
	}
}

func TestTransitionStatusCancelReleasesStock(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	o, err := f.svc.ComposeCustomerOrder(ctx, "cust-1", []LineRequest{{ProductID: "p-latte", Quantity: 2}}, "pm-card", "")
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if got := f.cat.stock("p-latte"); got != 1 {
		t.Fatalf("stock = %d, want 1", got)
	}

	if _, err := f.svc.TransitionStatus(ctx, o.ID, StatusCancelled); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if got := f.cat.stock("p-latte"); got != 3 {
		t.Errorf("stock = %d, want 3 (released by cancellation transition)", got)
	}
}

func TestConcurrentReservationOfLastUnit(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.cat.mu.Lock()
	p := f.cat.products["p-espresso"]
	p.StockQuantity = 1
	f.cat.products["p-espresso"] = p
	f.cat.mu.Unlock()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.ComposeCashierOrder(ctx, "kasir-1", []LineRequest{
				{ProductID: "p-espresso", Quantity: 1},
			}, "Cash", int64p(20000), "")
		}(i)
	}
	wg.Wait()

	var ok, short int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		default:
			var ise *InsufficientStockError
			if !errors.As(err, &ise) {
				t.Fatalf("unexpected error: %v", err)
			}
			short++
		}
	}
	if ok != 1 || short != 1 {
		t.Fatalf("got %d successes and %d stock failures, want exactly 1 and 1", ok, short)
	}
	if got := f.cat.stock("p-espresso"); got != 0 {
		t.Errorf("final stock = %d, want 0", got)
	}

	f.cat.mu.Lock()
	sold := f.cat.products["p-espresso"]
	f.cat.mu.Unlock()
	if sold.Available() {
		t.Error("product still reports available at zero stock")
	}
}
