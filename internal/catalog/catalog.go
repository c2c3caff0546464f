package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Product struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Category      string    `json:"category,omitempty"`
	Color         string    `json:"color,omitempty"`
	ImageURL      string    `json:"image_url,omitempty"`
	Price         int64     `json:"price"`
	StockQuantity int       `json:"stock_quantity"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type ShippingMethod struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Price         int64     `json:"price"`
	EstimatedDays int       `json:"estimated_days"`
}

type Repository interface {
	ListProducts(ctx context.Context) ([]Product, error)
	ListShippingMethods(ctx context.Context) ([]ShippingMethod, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) ListProducts(ctx context.Context) ([]Product, error) {
	query := `
		SELECT id, name, description, category, color, image_url, price, stock_quantity, created_at, updated_at
		FROM products
		WHERE is_active
		ORDER BY name
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to query products: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		var p Product
		err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.Description,
			&p.Category,
			&p.Color,
			&p.ImageURL,
			&p.Price,
			&p.StockQuantity,
			&p.CreatedAt,
			&p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("catalog: failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: error iterating products: %w", err)
	}

	return products, nil
}

func (r *postgresRepository) ListShippingMethods(ctx context.Context) ([]ShippingMethod, error) {
	query := `
		SELECT id, name, description, price, estimated_days
		FROM shipping_methods
		WHERE is_active
		ORDER BY price
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to query shipping methods: %w", err)
	}
	defer rows.Close()

	methods := make([]ShippingMethod, 0)
	for rows.Next() {
		var m ShippingMethod
		err := rows.Scan(&m.ID, &m.Name, &m.Description, &m.Price, &m.EstimatedDays)
		if err != nil {
			return nil, fmt.Errorf("catalog: failed to scan shipping method: %w", err)
		}
		methods = append(methods, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: error iterating shipping methods: %w", err)
	}

	return methods, nil
}
