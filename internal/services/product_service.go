package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/catalog-api/internal/models"
)

// ProductInput is the payload for creating a product.
// Price and Stock are pointers so that an explicit zero is told apart from a missing field.
type ProductInput struct {
	Name        string   `json:"name" validate:"required,max=200"`
	Description string   `json:"description" validate:"max=2000"`
	Price       *float64 `json:"price" validate:"required,gte=0"`
	Category    string   `json:"category" validate:"required,max=100"`
	Stock       *int     `json:"stock" validate:"required,gte=0"`
}

// ProductUpdate carries the product fields to change. Nil fields are left as they are.
type ProductUpdate struct {
	Name        *string  `json:"name" validate:"omitnil,min=1,max=200"`
	Description *string  `json:"description" validate:"omitnil,max=2000"`
	Price       *float64 `json:"price" validate:"omitnil,gte=0"`
	Category    *string  `json:"category" validate:"omitnil,min=1,max=100"`
	Stock       *int     `json:"stock" validate:"omitnil,gte=0"`
}

// ProductServiceProvider defines the interface for product services.
type ProductServiceProvider interface {
	GetAllProducts(ctx context.Context) ([]models.Product, error)
	GetProductByID(ctx context.Context, id string) (models.Product, error)
	CreateProduct(ctx context.Context, input ProductInput) (models.Product, error)
	UpdateProduct(ctx context.Context, id string, update ProductUpdate) (models.Product, error)
	DeleteProduct(ctx context.Context, id string) error
}

// ProductService provides business logic for the product catalog.
type ProductService struct {
	db     *sql.DB
	events EventServiceProvider
}

// NewProductService creates a new ProductService.
func NewProductService(db *sql.DB, events EventServiceProvider) *ProductService {
	return &ProductService{db: db, events: events}
}

const productColumns = "id, name, description, price, category, stock, created_at, updated_at"

func scanProduct(row interface{ Scan(...interface{}) error }) (models.Product, error) {
	var p models.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Category, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// GetAllProducts returns every product, newest first.
func (s *ProductService) GetAllProducts(ctx context.Context) ([]models.Product, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+productColumns+" FROM products ORDER BY created_at DESC, rowid DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// GetProductByID retrieves a single product by its ID.
func (s *ProductService) GetProductByID(ctx context.Context, id string) (models.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Product{}, ErrProductNotFound
		}
		return models.Product{}, err
	}
	return p, nil
}

// CreateProduct validates and stores a new product.
func (s *ProductService) CreateProduct(ctx context.Context, input ProductInput) (models.Product, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Category = strings.TrimSpace(input.Category)
	if err := validateStruct(input); err != nil {
		return models.Product{}, err
	}

	now := time.Now().UTC()
	p := models.Product{
		ID:          uuid.New().String(),
		Name:        input.Name,
		Description: input.Description,
		Price:       *input.Price,
		Category:    input.Category,
		Stock:       *input.Stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO products ("+productColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		p.ID, p.Name, p.Description, p.Price, p.Category, p.Stock, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return models.Product{}, fmt.Errorf("insert product: %w", err)
	}

	recordEvent(ctx, s.events, "product.create", LevelInfo, fmt.Sprintf("Product '%s' created.", p.Name), p.ID)
	return p, nil
}

// UpdateProduct changes only the supplied fields of a product.
func (s *ProductService) UpdateProduct(ctx context.Context, id string, update ProductUpdate) (models.Product, error) {
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		update.Name = &name
	}
	if update.Category != nil {
		category := strings.TrimSpace(*update.Category)
		update.Category = &category
	}
	if err := validateStruct(update); err != nil {
		return models.Product{}, err
	}

	var price sql.NullFloat64
	if update.Price != nil {
		price = sql.NullFloat64{Float64: *update.Price, Valid: true}
	}
	var stock sql.NullInt64
	if update.Stock != nil {
		stock = sql.NullInt64{Int64: int64(*update.Stock), Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `UPDATE products SET
			name = COALESCE(?, name),
			description = COALESCE(?, description),
			price = COALESCE(?, price),
			category = COALESCE(?, category),
			stock = COALESCE(?, stock),
			updated_at = ?
		WHERE id = ?`,
		nullString(update.Name), nullString(update.Description), price,
		nullString(update.Category), stock, time.Now().UTC(), id)
	if err != nil {
		return models.Product{}, fmt.Errorf("update product: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.Product{}, err
	}
	if n == 0 {
		return models.Product{}, ErrProductNotFound
	}

	p, err := s.GetProductByID(ctx, id)
	if err != nil {
		return models.Product{}, err
	}
	recordEvent(ctx, s.events, "product.update", LevelInfo, fmt.Sprintf("Product '%s' updated.", p.Name), p.ID)
	return p, nil
}

// DeleteProduct removes a product.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrProductNotFound
	}

	recordEvent(ctx, s.events, "product.delete", LevelWarn, "Product deleted.", id)
	return nil
}
