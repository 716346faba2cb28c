package repositories

import (
	"context"
	"errors"
	"fmt"

	"toko/internal/models"

	"github.com/google/uuid"
)

var (
	// ErrProductNotFound is returned when a lookup by id matches no product.
	ErrProductNotFound = errors.New("product not found")
	// ErrInvalidID is returned when a product id is not in the store's key
	// format. It is a store failure, not a miss.
	ErrInvalidID = errors.New("invalid product id")
	// ErrUserNotFound is returned when a user lookup matches no user.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when a new user collides with the unique
	// username or email of an existing one.
	ErrUserExists = errors.New("user already exists")
)

// parseProductUUID rejects ids that were not issued as UUIDs by the SQL and
// in-memory stores.
func parseProductUUID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("product with ID %q: %w: %w", id, ErrInvalidID, err)
	}
	return nil
}

// ProductRepository defines the interface for product data access.
// Update and Delete report how many records matched instead of failing on a
// miss.
type ProductRepository interface {
	List(ctx context.Context) ([]models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, id string, fields map[string]interface{}) (int64, error)
	Delete(ctx context.Context, id string) (int64, error)
}

// UserRepository defines the interface for user data access.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}
