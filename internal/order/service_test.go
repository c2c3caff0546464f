package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juwura/storefront/internal/payment"
)

// fakeRepository implements Repository with overridable func fields so each
// test wires only the calls it expects.
type fakeRepository struct {
	UpsertCustomerByEmailFn  func(ctx context.Context, customer *Customer) (uuid.UUID, error)
	GetShippingMethodFn      func(ctx context.Context, id uuid.UUID) (*ShippingMethod, error)
	CreateOrderWithItemsFn   func(ctx context.Context, order *Order) (uuid.UUID, error)
	AttachPaymentSessionFn   func(ctx context.Context, orderID uuid.UUID, sessionID string) error
	MarkOrderCancelledFn     func(ctx context.Context, orderID uuid.UUID) error
	GetOrderByIDFn           func(ctx context.Context, id uuid.UUID) (*Order, error)
	GetOrderBySessionIDFn    func(ctx context.Context, sessionID string) (*Order, error)
	MarkOrderPaidFn          func(ctx context.Context, orderID uuid.UUID, paymentIntentID string) (bool, error)
	MarkOrderPaymentFailedFn func(ctx context.Context, orderID uuid.UUID) (bool, error)
	DecrementStockFn         func(ctx context.Context, productID uuid.UUID, quantity int) error
	InsertPaymentLogFn       func(ctx context.Context, entry *PaymentLog) error

	mu          sync.Mutex
	paymentLogs []PaymentLog
}

func (f *fakeRepository) UpsertCustomerByEmail(ctx context.Context, customer *Customer) (uuid.UUID, error) {
	if f.UpsertCustomerByEmailFn != nil {
		return f.UpsertCustomerByEmailFn(ctx, customer)
	}
	return uuid.Must(uuid.NewV4()), nil
}

func (f *fakeRepository) GetShippingMethod(ctx context.Context, id uuid.UUID) (*ShippingMethod, error) {
	if f.GetShippingMethodFn != nil {
		return f.GetShippingMethodFn(ctx, id)
	}
	return &ShippingMethod{ID: id, Name: "Standard Delivery", Price: 300000, IsActive: true}, nil
}

func (f *fakeRepository) CreateOrderWithItems(ctx context.Context, order *Order) (uuid.UUID, error) {
	if f.CreateOrderWithItemsFn != nil {
		return f.CreateOrderWithItemsFn(ctx, order)
	}
	order.ID = uuid.Must(uuid.NewV4())
	order.OrderNumber = "JW-20260901-000001"
	order.PaymentStatus = PaymentPending
	order.OrderStatus = StatusProcessing
	return order.ID, nil
}

func (f *fakeRepository) AttachPaymentSession(ctx context.Context, orderID uuid.UUID, sessionID string) error {
	if f.AttachPaymentSessionFn != nil {
		return f.AttachPaymentSessionFn(ctx, orderID, sessionID)
	}
	return nil
}

func (f *fakeRepository) MarkOrderCancelled(ctx context.Context, orderID uuid.UUID) error {
	if f.MarkOrderCancelledFn != nil {
		return f.MarkOrderCancelledFn(ctx, orderID)
	}
	return nil
}

func (f *fakeRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	if f.GetOrderByIDFn != nil {
		return f.GetOrderByIDFn(ctx, id)
	}
	return nil, ErrOrderNotFound
}

func (f *fakeRepository) GetOrderBySessionID(ctx context.Context, sessionID string) (*Order, error) {
	if f.GetOrderBySessionIDFn != nil {
		return f.GetOrderBySessionIDFn(ctx, sessionID)
	}
	return nil, ErrOrderNotFound
}

func (f *fakeRepository) MarkOrderPaid(ctx context.Context, orderID uuid.UUID, paymentIntentID string) (bool, error) {
	if f.MarkOrderPaidFn != nil {
		return f.MarkOrderPaidFn(ctx, orderID, paymentIntentID)
	}
	return false, nil
}

func (f *fakeRepository) MarkOrderPaymentFailed(ctx context.Context, orderID uuid.UUID) (bool, error) {
	if f.MarkOrderPaymentFailedFn != nil {
		return f.MarkOrderPaymentFailedFn(ctx, orderID)
	}
	return false, nil
}

func (f *fakeRepository) DecrementStock(ctx context.Context, productID uuid.UUID, quantity int) error {
	if f.DecrementStockFn != nil {
		return f.DecrementStockFn(ctx, productID, quantity)
	}
	return nil
}

func (f *fakeRepository) InsertPaymentLog(ctx context.Context, entry *PaymentLog) error {
	if f.InsertPaymentLogFn != nil {
		return f.InsertPaymentLogFn(ctx, entry)
	}
	f.mu.Lock()
	f.paymentLogs = append(f.paymentLogs, *entry)
	f.mu.Unlock()
	return nil
}

func (f *fakeRepository) loggedStatuses() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	statuses := make([]string, 0, len(f.paymentLogs))
	for _, entry := range f.paymentLogs {
		statuses = append(statuses, entry.Status)
	}
	return statuses
}

type fakeProvider struct {
	CreateFn   func(ctx context.Context, in payment.CreateSessionInput) (*payment.Session, error)
	RetrieveFn func(ctx context.Context, sessionID string) (*payment.Session, error)
}

func (f *fakeProvider) CreateCheckoutSession(ctx context.Context, in payment.CreateSessionInput) (*payment.Session, error) {
	if f.CreateFn != nil {
		return f.CreateFn(ctx, in)
	}
	return &payment.Session{ID: "cs_test_123", URL: "https://checkout.stripe.com/pay/cs_test_123"}, nil
}

func (f *fakeProvider) RetrieveSession(ctx context.Context, sessionID string) (*payment.Session, error) {
	if f.RetrieveFn != nil {
		return f.RetrieveFn(ctx, sessionID)
	}
	return nil, errors.New("retrieve not configured")
}

func validCheckoutInput() CheckoutInput {
	return CheckoutInput{
		Items: []CartItem{
			{
				ProductID: uuid.Must(uuid.NewV4()),
				Name:      "Ankara Midi Dress",
				UnitPrice: 2500000,
				Quantity:  1,
			},
		},
		Customer: CustomerInfo{
			FirstName: "Amina",
			LastName:  "Bello",
			Email:     "amina@example.com",
			Phone:     "+2348012345678",
		},
		ShippingAddress: ShippingAddress{
			StreetAddress: "12 Adeola Odeku St",
			City:          "Lagos",
			State:         "Lagos",
			Country:       "Nigeria",
		},
		ShippingMethodID: uuid.Must(uuid.NewV4()),
		PaymentMethod:    "stripe",
	}
}

func TestService_Checkout_EmptyCart(t *testing.T) {
	repo := &fakeRepository{
		GetShippingMethodFn: func(ctx context.Context, id uuid.UUID) (*ShippingMethod, error) {
			t.Fatal("GetShippingMethod should not be called for an empty cart")
			return nil, nil
		},
	}
	provider := &fakeProvider{
		CreateFn: func(ctx context.Context, in payment.CreateSessionInput) (*payment.Session, error) {
			t.Fatal("CreateCheckoutSession should not be called for an empty cart")
			return nil, nil
		},
	}
	svc := NewService(repo, provider, "ngn", "https://shop.example/success", "https://shop.example/cancel")

	input := validCheckoutInput()
	input.Items = nil

	result, err := svc.Checkout(context.Background(), input)

	require.ErrorIs(t, err, ErrEmptyCart)
	assert.Nil(t, result)
}

func TestService_Checkout_ValidationErrors(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(in *CheckoutInput)
	}{
		{
			name:   "missing product id",
			mutate: func(in *CheckoutInput) { in.Items[0].ProductID = uuid.Nil },
		},
		{
			name:   "zero quantity",
			mutate: func(in *CheckoutInput) { in.Items[0].Quantity = 0 },
		},
		{
			name:   "negative unit price",
			mutate: func(in *CheckoutInput) { in.Items[0].UnitPrice = -100 },
		},
		{
			name:   "missing email",
			mutate: func(in *CheckoutInput) { in.Customer.Email = "   " },
		},
		{
			name:   "missing name",
			mutate: func(in *CheckoutInput) { in.Customer.FirstName = "" },
		},
		{
			name:   "missing shipping method",
			mutate: func(in *CheckoutInput) { in.ShippingMethodID = uuid.Nil },
		},
		{
			name:   "missing payment method",
			mutate: func(in *CheckoutInput) { in.PaymentMethod = "" },
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &fakeRepository{}
			provider := &fakeProvider{
				CreateFn: func(ctx context.Context, in payment.CreateSessionInput) (*payment.Session, error) {
					t.Fatal("CreateCheckoutSession should not be called for invalid input")
					return nil, nil
				},
			}
			svc := NewService(repo, provider, "ngn", "https://shop.example/success", "https://shop.example/cancel")

			input := validCheckoutInput()
			tc.mutate(&input)

			result, err := svc.Checkout(context.Background(), input)

			require.ErrorIs(t, err, ErrValidation)
			assert.Nil(t, result)
		})
	}
}

func TestService_Checkout_InactiveShippingMethod(t *testing.T) {
	repo := &fakeRepository{
		GetShippingMethodFn: func(ctx context.Context, id uuid.UUID) (*ShippingMethod, error) {
			return &ShippingMethod{ID: id, Name: "Retired Courier", Price: 100000, IsActive: false}, nil
		},
	}
	svc := NewService(repo, &fakeProvider{}, "ngn", "https://shop.example/success", "https://shop.example/cancel")

	result, err := svc.Checkout(context.Background(), validCheckoutInput())

	require.ErrorIs(t, err, ErrShippingMethodNotFound)
	assert.Nil(t, result)
}

func TestService_Checkout_Success(t *testing.T) {
	var createdOrder *Order
	var attachedSessionID string

	repo := &fakeRepository{
		CreateOrderWithItemsFn: func(ctx context.Context, order *Order) (uuid.UUID, error) {
			order.ID = uuid.Must(uuid.NewV4())
			order.OrderNumber = "JW-20260901-000042"
			createdOrder = order
			return order.ID, nil
		},
		AttachPaymentSessionFn: func(ctx context.Context, orderID uuid.UUID, sessionID string) error {
			attachedSessionID = sessionID
			return nil
		},
	}
	provider := &fakeProvider{
		CreateFn: func(ctx context.Context, in payment.CreateSessionInput) (*payment.Session, error) {
			assert.Equal(t, "ngn", in.Currency)
			assert.Equal(t, "https://shop.example/success", in.SuccessURL)
			require.Len(t, in.LineItems, 1)
			assert.Equal(t, int64(2500000), in.LineItems[0].UnitAmount)
			assert.Equal(t, "JW-20260901-000042", in.Metadata["order_number"])
			return &payment.Session{ID: "cs_test_abc", URL: "https://checkout.stripe.com/pay/cs_test_abc"}, nil
		},
	}
	svc := NewService(repo, provider, "ngn", "https://shop.example/success", "https://shop.example/cancel")

	result, err := svc.Checkout(context.Background(), validCheckoutInput())

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "JW-20260901-000042", result.OrderNumber)
	assert.Equal(t, "https://checkout.stripe.com/pay/cs_test_abc", result.RedirectURL)
	assert.Equal(t, "cs_test_abc", attachedSessionID)

	require.NotNil(t, createdOrder)
	assert.Equal(t, int64(2500000), createdOrder.SubtotalAmount)
	assert.Equal(t, int64(300000), createdOrder.ShippingCost)
	assert.Equal(t, int64(2800000), createdOrder.TotalAmount)
	require.Len(t, createdOrder.Items, 1)
	assert.Equal(t, int64(2500000), createdOrder.Items[0].TotalPrice)

	assert.Equal(t, []string{"session_created"}, repo.loggedStatuses())
}

func TestService_Checkout_SessionCreationFails(t *testing.T) {
	cancelled := false
	repo := &fakeRepository{
		MarkOrderCancelledFn: func(ctx context.Context, orderID uuid.UUID) error {
			cancelled = true
			return nil
		},
	}
	provider := &fakeProvider{
		CreateFn: func(ctx context.Context, in payment.CreateSessionInput) (*payment.Session, error) {
			return nil, errors.New("stripe is down")
		},
	}
	svc := NewService(repo, provider, "ngn", "https://shop.example/success", "https://shop.example/cancel")

	result, err := svc.Checkout(context.Background(), validCheckoutInput())

	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, cancelled, "order should be cancelled when the session cannot be created")
	assert.Equal(t, []string{"session_failed"}, repo.loggedStatuses())
}

func TestService_Checkout_AttachSessionFails(t *testing.T) {
	cancelled := false
	repo := &fakeRepository{
		AttachPaymentSessionFn: func(ctx context.Context, orderID uuid.UUID, sessionID string) error {
			return errors.New("connection reset")
		},
		MarkOrderCancelledFn: func(ctx context.Context, orderID uuid.UUID) error {
			cancelled = true
			return nil
		},
	}
	svc := NewService(repo, &fakeProvider{}, "ngn", "https://shop.example/success", "https://shop.example/cancel")

	result, err := svc.Checkout(context.Background(), validCheckoutInput())

	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, cancelled, "order should be cancelled when the session id cannot be attached")
	assert.Equal(t, []string{"session_failed"}, repo.loggedStatuses())
}

func TestService_Checkout_ConcurrentOrderNumbersAreDistinct(t *testing.T) {
	var seq int64
	repo := &fakeRepository{
		CreateOrderWithItemsFn: func(ctx context.Context, order *Order) (uuid.UUID, error) {
			order.ID = uuid.Must(uuid.NewV4())
			order.OrderNumber = fmt.Sprintf("JW-20260901-%06d", atomic.AddInt64(&seq, 1))
			return order.ID, nil
		},
	}
	svc := NewService(repo, &fakeProvider{}, "ngn", "https://shop.example/success", "https://shop.example/cancel")

	const checkouts = 20
	results := make([]*CheckoutResult, checkouts)

	var wg sync.WaitGroup
	for i := 0; i < checkouts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := svc.Checkout(context.Background(), validCheckoutInput())
			assert.NoError(t, err)
			results[i] = result
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, checkouts)
	for _, result := range results {
		require.NotNil(t, result)
		assert.False(t, seen[result.OrderNumber], "duplicate order number %s", result.OrderNumber)
		seen[result.OrderNumber] = true
	}
}
