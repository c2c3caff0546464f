package order

import (
	"time"

	"github.com/gofrs/uuid"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

func (ps PaymentStatus) String() string {
	return string(ps)
}

type OrderStatus string

const (
	StatusProcessing OrderStatus = "processing"
	StatusConfirmed  OrderStatus = "confirmed"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

func (os OrderStatus) String() string {
	return string(os)
}

// ShippingAddress is stored as a JSONB document on the order row.
type ShippingAddress struct {
	StreetAddress string `json:"street_address"`
	City          string `json:"city"`
	State         string `json:"state"`
	PostalCode    string `json:"postal_code,omitempty"`
	Country       string `json:"country"`
}

type Customer struct {
	ID        uuid.UUID `json:"id" db:"id"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  string    `json:"last_name" db:"last_name"`
	Email     string    `json:"email" db:"email"`
	Phone     string    `json:"phone,omitempty" db:"phone"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CartItem is one line of the client-held cart snapshot submitted at
// checkout time. UnitPrice is in kobo.
type CartItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	ImageURL  string    `json:"image_url,omitempty"`
	UnitPrice int64     `json:"unit_price"`
	Quantity  int       `json:"quantity"`
}

type OrderItem struct {
	ID         uuid.UUID `json:"id" db:"id"`
	OrderID    uuid.UUID `json:"order_id" db:"order_id"`
	ProductID  uuid.UUID `json:"product_id" db:"product_id"`
	Quantity   int       `json:"quantity" db:"quantity"`
	UnitPrice  int64     `json:"unit_price" db:"unit_price"`
	TotalPrice int64     `json:"total_price" db:"total_price"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Order amounts are integers in kobo; the UI divides by 100 for display.
type Order struct {
	ID                    uuid.UUID       `json:"id" db:"id"`
	CustomerID            uuid.UUID       `json:"customer_id" db:"customer_id"`
	OrderNumber           string          `json:"order_number" db:"order_number"`
	SubtotalAmount        int64           `json:"subtotal_amount" db:"subtotal_amount"`
	ShippingCost          int64           `json:"shipping_cost" db:"shipping_cost"`
	TaxAmount             int64           `json:"tax_amount" db:"tax_amount"`
	DiscountAmount        int64           `json:"discount_amount" db:"discount_amount"`
	TotalAmount           int64           `json:"total_amount" db:"total_amount"`
	PaymentMethod         string          `json:"payment_method" db:"payment_method"`
	PaymentStatus         PaymentStatus   `json:"payment_status" db:"payment_status"`
	OrderStatus           OrderStatus     `json:"order_status" db:"order_status"`
	ShippingAddress       ShippingAddress `json:"shipping_address" db:"shipping_address"`
	ShippingMethodID      uuid.UUID       `json:"shipping_method_id" db:"shipping_method_id"`
	StripeSessionID       string          `json:"stripe_session_id,omitempty" db:"stripe_session_id"`
	StripePaymentIntentID string          `json:"stripe_payment_intent_id,omitempty" db:"stripe_payment_intent_id"`
	TrackingNumber        string          `json:"tracking_number,omitempty" db:"tracking_number"`
	Items                 []OrderItem     `json:"items" db:"-"`
	CreatedAt             time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at" db:"updated_at"`
}

type ShippingMethod struct {
	ID            uuid.UUID `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	Description   string    `json:"description,omitempty" db:"description"`
	Price         int64     `json:"price" db:"price"`
	EstimatedDays int       `json:"estimated_days" db:"estimated_days"`
	IsActive      bool      `json:"is_active" db:"is_active"`
}

// PaymentLog rows are append-only; nothing ever updates them.
type PaymentLog struct {
	ID              uuid.UUID         `json:"id" db:"id"`
	OrderID         uuid.UUID         `json:"order_id" db:"order_id"`
	PaymentMethod   string            `json:"payment_method" db:"payment_method"`
	Amount          int64             `json:"amount" db:"amount"`
	Status          string            `json:"status" db:"status"`
	StripeSessionID string            `json:"stripe_session_id,omitempty" db:"stripe_session_id"`
	ErrorMessage    string            `json:"error_message,omitempty" db:"error_message"`
	Metadata        map[string]string `json:"metadata,omitempty" db:"metadata"`
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
}
