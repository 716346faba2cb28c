package repositories

import (
	"context"
	"errors"
	"fmt"

	"toko/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMProductRepository is a GORM implementation of ProductRepository, used
// with the postgres and sqlite drivers.
type GORMProductRepository struct {
	db *gorm.DB
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *gorm.DB) *GORMProductRepository {
	return &GORMProductRepository{
		db: db,
	}
}

// List retrieves all products, projecting only the public columns.
func (r *GORMProductRepository) List(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := r.db.WithContext(ctx).Select("id", "name", "price", "product_image").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// GetByID retrieves a single product by its ID.
func (r *GORMProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	if err := parseProductUUID(id); err != nil {
		return nil, err
	}

	var product models.Product
	err := r.db.WithContext(ctx).
		Select("id", "name", "price", "product_image").
		First(&product, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product with ID %s: %w", id, ErrProductNotFound)
		}
		return nil, fmt.Errorf("failed to get product by ID %s: %w", id, err)
	}
	return &product, nil
}

// Create creates a new product, assigning its ID.
func (r *GORMProductRepository) Create(ctx context.Context, product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// Update sets the given fields on the product with the given ID and reports
// how many rows matched.
func (r *GORMProductRepository) Update(ctx context.Context, id string, fields map[string]interface{}) (int64, error) {
	columns := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		switch k {
		case models.FieldName:
			columns["name"] = v
		case models.FieldPrice:
			columns["price"] = v
		default:
			return 0, fmt.Errorf("field %s cannot be updated", k)
		}
	}

	if err := parseProductUUID(id); err != nil {
		return 0, err
	}

	res := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(columns)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to update product: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Delete deletes a product by its ID and reports how many rows were removed.
func (r *GORMProductRepository) Delete(ctx context.Context, id string) (int64, error) {
	if err := parseProductUUID(id); err != nil {
		return 0, err
	}

	res := r.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete product: %w", res.Error)
	}
	return res.RowsAffected, nil
}
