package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var (
	ErrOrderNotFound          = errors.New("order not found")
	ErrProductNotFound        = errors.New("product not found")
	ErrShippingMethodNotFound = errors.New("shipping method not found")
	ErrInsufficientStock      = errors.New("insufficient stock")
)

type Repository interface {
	UpsertCustomerByEmail(ctx context.Context, customer *Customer) (uuid.UUID, error)
	GetShippingMethod(ctx context.Context, id uuid.UUID) (*ShippingMethod, error)
	CreateOrderWithItems(ctx context.Context, order *Order) (uuid.UUID, error)
	AttachPaymentSession(ctx context.Context, orderID uuid.UUID, sessionID string) error
	MarkOrderCancelled(ctx context.Context, orderID uuid.UUID) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetOrderBySessionID(ctx context.Context, sessionID string) (*Order, error)
	MarkOrderPaid(ctx context.Context, orderID uuid.UUID, paymentIntentID string) (bool, error)
	MarkOrderPaymentFailed(ctx context.Context, orderID uuid.UUID) (bool, error)
	DecrementStock(ctx context.Context, productID uuid.UUID, quantity int) error
	InsertPaymentLog(ctx context.Context, entry *PaymentLog) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) UpsertCustomerByEmail(ctx context.Context, customer *Customer) (uuid.UUID, error) {
	newID, err := uuid.NewV4()
	if err != nil {
		return uuid.Nil, fmt.Errorf("repository: failed to generate customer ID: %w", err)
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO customers (id, first_name, last_name, email, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (email) DO UPDATE
		SET first_name = EXCLUDED.first_name,
		    last_name  = EXCLUDED.last_name,
		    phone      = EXCLUDED.phone,
		    updated_at = EXCLUDED.updated_at
		RETURNING id
	`

	var customerID uuid.UUID
	err = r.db.QueryRow(ctx, query,
		newID,
		customer.FirstName,
		customer.LastName,
		customer.Email,
		customer.Phone,
		now,
	).Scan(&customerID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("repository: failed to upsert customer %s: %w", customer.Email, err)
	}

	customer.ID = customerID
	return customerID, nil
}

func (r *postgresRepository) GetShippingMethod(ctx context.Context, id uuid.UUID) (*ShippingMethod, error) {
	query := `
		SELECT id, name, description, price, estimated_days, is_active
		FROM shipping_methods
		WHERE id = $1
	`

	var m ShippingMethod
	err := r.db.QueryRow(ctx, query, id).Scan(
		&m.ID,
		&m.Name,
		&m.Description,
		&m.Price,
		&m.EstimatedDays,
		&m.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrShippingMethodNotFound
		}
		return nil, fmt.Errorf("repository: failed to select shipping method %s: %w", id, err)
	}

	return &m, nil
}

// CreateOrderWithItems inserts the order row and all its item rows in one
// transaction. The order number comes from order_number_seq inside the same
// transaction, so concurrent checkouts can never collide.
func (r *postgresRepository) CreateOrderWithItems(ctx context.Context, orderInput *Order) (orderID uuid.UUID, err error) {
	finalOrderID := orderInput.ID
	if finalOrderID == uuid.Nil {
		genID, genErr := uuid.NewV4()
		if genErr != nil {
			return uuid.Nil, fmt.Errorf("repository: failed to generate order ID: %w", genErr)
		}
		finalOrderID = genID
	}
	orderInput.ID = finalOrderID

	tx, beginErr := r.db.Begin(ctx)
	if beginErr != nil {
		return uuid.Nil, fmt.Errorf("repository: failed to begin transaction: %w", beginErr)
	}
	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id_attempted", finalOrderID).Msg("Failed to rollback transaction after panic")
			}
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id_attempted", finalOrderID).Msg("Failed to rollback transaction")
			}
		} else {
			if commitErr := tx.Commit(ctx); commitErr != nil {
				err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
			}
		}
	}()

	var seq int64
	if err = tx.QueryRow(ctx, `SELECT nextval('order_number_seq')`).Scan(&seq); err != nil {
		return uuid.Nil, fmt.Errorf("repository: failed to advance order number sequence: %w", err)
	}

	now := time.Now().UTC()
	orderInput.OrderNumber = fmt.Sprintf("JW-%s-%06d", now.Format("20060102"), seq)
	orderInput.PaymentStatus = PaymentPending
	orderInput.OrderStatus = StatusProcessing
	orderInput.CreatedAt = now
	orderInput.UpdatedAt = now

	queryOrder := `
		INSERT INTO orders (
			id, customer_id, order_number,
			subtotal_amount, shipping_cost, tax_amount, discount_amount, total_amount,
			payment_method, payment_status, order_status,
			shipping_address, shipping_method_id,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
	`
	_, err = tx.Exec(ctx, queryOrder,
		finalOrderID,
		orderInput.CustomerID,
		orderInput.OrderNumber,
		orderInput.SubtotalAmount,
		orderInput.ShippingCost,
		orderInput.TaxAmount,
		orderInput.DiscountAmount,
		orderInput.TotalAmount,
		orderInput.PaymentMethod,
		string(orderInput.PaymentStatus),
		string(orderInput.OrderStatus),
		orderInput.ShippingAddress,
		orderInput.ShippingMethodID,
		now,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("repository: failed to insert order: %w", err)
	}

	queryItem := `
		INSERT INTO order_items (id, order_id, product_id, quantity, unit_price, total_price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for i := range orderInput.Items {
		item := &orderInput.Items[i]

		itemID, genErr := uuid.NewV4()
		if genErr != nil {
			err = fmt.Errorf("repository: failed to generate order item ID: %w", genErr)
			return uuid.Nil, err
		}
		item.ID = itemID
		item.OrderID = finalOrderID
		item.CreatedAt = now

		_, err = tx.Exec(ctx, queryItem,
			item.ID,
			item.OrderID,
			item.ProductID,
			item.Quantity,
			item.UnitPrice,
			item.TotalPrice,
			item.CreatedAt,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
				err = fmt.Errorf("repository: order item references unknown product %s: %w", item.ProductID, ErrProductNotFound)
				return uuid.Nil, err
			}
			return uuid.Nil, fmt.Errorf("repository: failed to insert order item for order %s: %w", finalOrderID, err)
		}
	}

	return finalOrderID, nil
}

func (r *postgresRepository) AttachPaymentSession(ctx context.Context, orderID uuid.UUID, sessionID string) error {
	query := `
		UPDATE orders
		SET stripe_session_id = $1, updated_at = $2
		WHERE id = $3
	`

	cmdTag, err := r.db.Exec(ctx, query, sessionID, time.Now().UTC(), orderID)
	if err != nil {
		return fmt.Errorf("repository: failed to attach payment session to order %s: %w", orderID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}

	return nil
}

func (r *postgresRepository) MarkOrderCancelled(ctx context.Context, orderID uuid.UUID) error {
	query := `
		UPDATE orders
		SET payment_status = $1, order_status = $2, updated_at = $3
		WHERE id = $4
	`

	cmdTag, err := r.db.Exec(ctx, query,
		string(PaymentFailed),
		string(StatusCancelled),
		time.Now().UTC(),
		orderID,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to cancel order %s: %w", orderID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}

	return nil
}

const orderColumns = `
	id, customer_id, order_number,
	subtotal_amount, shipping_cost, tax_amount, discount_amount, total_amount,
	payment_method, payment_status, order_status,
	shipping_address, shipping_method_id,
	stripe_session_id, stripe_payment_intent_id, tracking_number,
	created_at, updated_at
`

func (r *postgresRepository) scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID,
		&o.CustomerID,
		&o.OrderNumber,
		&o.SubtotalAmount,
		&o.ShippingCost,
		&o.TaxAmount,
		&o.DiscountAmount,
		&o.TotalAmount,
		&o.PaymentMethod,
		&o.PaymentStatus,
		&o.OrderStatus,
		&o.ShippingAddress,
		&o.ShippingMethodID,
		&o.StripeSessionID,
		&o.StripePaymentIntentID,
		&o.TrackingNumber,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *postgresRepository) loadOrderItems(ctx context.Context, o *Order) error {
	query := `
		SELECT id, order_id, product_id, quantity, unit_price, total_price, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.Query(ctx, query, o.ID)
	if err != nil {
		return fmt.Errorf("repository: failed to query order items for order %s: %w", o.ID, err)
	}
	defer rows.Close()

	items := make([]OrderItem, 0)
	for rows.Next() {
		var item OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.Quantity,
			&item.UnitPrice,
			&item.TotalPrice,
			&item.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("repository: failed to scan order item for order %s: %w", o.ID, err)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("repository: error iterating order items for order %s: %w", o.ID, err)
	}

	o.Items = items
	return nil
}

func (r *postgresRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	o, err := r.scanOrder(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", id, err)
	}

	if err := r.loadOrderItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *postgresRepository) GetOrderBySessionID(ctx context.Context, sessionID string) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE stripe_session_id = $1`

	o, err := r.scanOrder(r.db.QueryRow(ctx, query, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by session id: %w", err)
	}

	if err := r.loadOrderItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// MarkOrderPaid transitions pending -> paid/confirmed. The WHERE clause on
// payment_status makes the transition apply at most once; the returned bool
// reports whether this call was the one that applied it.
func (r *postgresRepository) MarkOrderPaid(ctx context.Context, orderID uuid.UUID, paymentIntentID string) (bool, error) {
	query := `
		UPDATE orders
		SET payment_status = $1, order_status = $2, stripe_payment_intent_id = $3, updated_at = $4
		WHERE id = $5 AND payment_status = $6
	`

	cmdTag, err := r.db.Exec(ctx, query,
		string(PaymentPaid),
		string(StatusConfirmed),
		paymentIntentID,
		time.Now().UTC(),
		orderID,
		string(PaymentPending),
	)
	if err != nil {
		return false, fmt.Errorf("repository: failed to mark order %s paid: %w", orderID, err)
	}

	return cmdTag.RowsAffected() == 1, nil
}

func (r *postgresRepository) MarkOrderPaymentFailed(ctx context.Context, orderID uuid.UUID) (bool, error) {
	query := `
		UPDATE orders
		SET payment_status = $1, order_status = $2, updated_at = $3
		WHERE id = $4 AND payment_status = $5
	`

	cmdTag, err := r.db.Exec(ctx, query,
		string(PaymentFailed),
		string(StatusCancelled),
		time.Now().UTC(),
		orderID,
		string(PaymentPending),
	)
	if err != nil {
		return false, fmt.Errorf("repository: failed to mark order %s payment failed: %w", orderID, err)
	}

	return cmdTag.RowsAffected() == 1, nil
}

// DecrementStock is a conditional single-row update; the stock_quantity
// floor check happens inside the UPDATE itself, so concurrent purchases of
// the last unit cannot oversell.
func (r *postgresRepository) DecrementStock(ctx context.Context, productID uuid.UUID, quantity int) error {
	query := `
		UPDATE products
		SET stock_quantity = stock_quantity - $1, updated_at = $2
		WHERE id = $3 AND stock_quantity >= $1
	`

	cmdTag, err := r.db.Exec(ctx, query, quantity, time.Now().UTC(), productID)
	if err != nil {
		return fmt.Errorf("repository: failed to decrement stock for product %s: %w", productID, err)
	}
	if cmdTag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	err = r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("repository: failed to check product %s: %w", productID, err)
	}
	if !exists {
		return ErrProductNotFound
	}
	return ErrInsufficientStock
}

func (r *postgresRepository) InsertPaymentLog(ctx context.Context, entry *PaymentLog) error {
	newID, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("repository: failed to generate payment log ID: %w", err)
	}
	entry.ID = newID
	entry.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO payment_logs (id, order_id, payment_method, amount, status, stripe_session_id, error_message, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.db.Exec(ctx, query,
		entry.ID,
		entry.OrderID,
		entry.PaymentMethod,
		entry.Amount,
		entry.Status,
		entry.StripeSessionID,
		entry.ErrorMessage,
		entry.Metadata,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert payment log for order %s: %w", entry.OrderID, err)
	}

	return nil
}
