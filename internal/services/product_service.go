package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"toko/internal/apperrors"
	"toko/internal/metrics"
	"toko/internal/models"
	"toko/internal/repositories"
	"toko/internal/storage"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// Product event types.
const (
	EventProductCreated = "product.created"
	EventProductUpdated = "product.updated"
	EventProductDeleted = "product.deleted"
)

// NotFoundMessage is returned to clients when a product id matches nothing.
const NotFoundMessage = "No valid entry found for provided ID"

// EventPublisher publishes domain events. A nil publisher disables events.
type EventPublisher interface {
	Publish(eventType string, payload interface{}) error
}

// ProductEvent is the payload of every product event.
type ProductEvent struct {
	ProductID  string                 `json:"product_id"`
	Product    *models.Product        `json:"product,omitempty"`
	Changes    map[string]interface{} `json:"changes,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// CreateProductInput carries the fields of a new product.
type CreateProductInput struct {
	Name  string   `validate:"required"`
	Price *float64 `validate:"required"`
	Image *storage.ImageFile
}

// UpdateOperation sets one property of a product.
type UpdateOperation struct {
	PropName string      `json:"propName"`
	Value    interface{} `json:"value"`
}

// ProductService handles business logic related to products.
type ProductService struct {
	repo     repositories.ProductRepository
	images   storage.ImageStore
	events   EventPublisher
	logger   *zap.Logger
	validate *validator.Validate
	timeout  time.Duration
}

// NewProductService creates a new ProductService. events may be nil.
func NewProductService(
	repo repositories.ProductRepository,
	images storage.ImageStore,
	events EventPublisher,
	logger *zap.Logger,
	timeout time.Duration,
) *ProductService {
	return &ProductService{
		repo:     repo,
		images:   images,
		events:   events,
		logger:   logger,
		validate: validator.New(),
		timeout:  timeout,
	}
}

func (s *ProductService) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// ListProducts retrieves all products.
func (s *ProductService) ListProducts(ctx context.Context) ([]models.Product, error) {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	products, err := s.repo.List(ctx)
	if err != nil {
		metrics.ObserveProductOperation("list", metrics.OutcomeError)
		return nil, apperrors.Internal(err)
	}
	metrics.ObserveProductOperation("list", metrics.OutcomeSuccess)
	return products, nil
}

// GetProduct retrieves a single product by its ID.
func (s *ProductService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrProductNotFound) {
			metrics.ObserveProductOperation("get", metrics.OutcomeNotFound)
			return nil, apperrors.NotFound(NotFoundMessage, err)
		}
		metrics.ObserveProductOperation("get", metrics.OutcomeError)
		return nil, apperrors.Internal(err)
	}
	metrics.ObserveProductOperation("get", metrics.OutcomeSuccess)
	return product, nil
}

// CreateProduct stores the uploaded image and persists a new product that
// references it. The store assigns the id.
func (s *ProductService) CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	product, err := s.createProduct(ctx, input)
	if err != nil {
		outcome := metrics.OutcomeRejected
		if apperrors.KindOf(err) == apperrors.KindInternal {
			outcome = metrics.OutcomeError
		}
		metrics.ObserveProductOperation("create", outcome)
		return nil, err
	}
	metrics.ObserveProductOperation("create", metrics.OutcomeSuccess)
	return product, nil
}

func (s *ProductService) createProduct(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := s.validate.Struct(input); err != nil {
		return nil, apperrors.New(apperrors.KindInvalidInput, validationMessage(err), err)
	}
	if input.Image == nil {
		return nil, apperrors.InvalidInput("productImage file is required")
	}

	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	imagePath, err := s.images.Save(ctx, *input.Image)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrUnsupportedType):
			return nil, apperrors.UnsupportedMediaType("productImage must be a JPEG or PNG image", err)
		case errors.Is(err, storage.ErrTooLarge):
			return nil, apperrors.PayloadTooLarge("productImage exceeds the upload size limit", err)
		default:
			return nil, apperrors.Internal(err)
		}
	}

	product := &models.Product{
		Name:         input.Name,
		Price:        *input.Price,
		ProductImage: imagePath,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		if rmErr := s.images.Remove(context.WithoutCancel(ctx), imagePath); rmErr != nil {
			s.logger.Warn("failed to remove orphaned image", zap.String("path", imagePath), zap.Error(rmErr))
		}
		return nil, apperrors.Internal(err)
	}

	s.publish(EventProductCreated, ProductEvent{ProductID: product.ID, Product: product})
	return product, nil
}

// UpdateProduct applies ops as a set-update to the product with the given
// id. Only name and price are mutable. A missing product is not an error.
func (s *ProductService) UpdateProduct(ctx context.Context, id string, ops []UpdateOperation) error {
	fields, err := BuildUpdateSet(ops)
	if err != nil {
		metrics.ObserveProductOperation("update", metrics.OutcomeRejected)
		return err
	}

	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	matched, err := s.repo.Update(ctx, id, fields)
	if err != nil {
		metrics.ObserveProductOperation("update", metrics.OutcomeError)
		return apperrors.Internal(err)
	}
	if matched == 0 {
		s.logger.Debug("update matched no product", zap.String("product_id", id))
		metrics.ObserveProductOperation("update", metrics.OutcomeNotFound)
		return nil
	}

	metrics.ObserveProductOperation("update", metrics.OutcomeSuccess)
	s.publish(EventProductUpdated, ProductEvent{ProductID: id, Changes: fields})
	return nil
}

// DeleteProduct removes the product with the given id. A missing product is
// not an error.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		metrics.ObserveProductOperation("delete", metrics.OutcomeError)
		return apperrors.Internal(err)
	}
	if deleted == 0 {
		s.logger.Debug("delete matched no product", zap.String("product_id", id))
		metrics.ObserveProductOperation("delete", metrics.OutcomeNotFound)
		return nil
	}

	metrics.ObserveProductOperation("delete", metrics.OutcomeSuccess)
	s.publish(EventProductDeleted, ProductEvent{ProductID: id})
	return nil
}

func (s *ProductService) publish(eventType string, event ProductEvent) {
	if s.events == nil {
		return
	}
	event.OccurredAt = time.Now().UTC()
	if err := s.events.Publish(eventType, event); err != nil {
		s.logger.Warn("failed to publish event",
			zap.String("type", eventType),
			zap.String("product_id", event.ProductID),
			zap.Error(err),
		)
	}
}

// BuildUpdateSet turns update operations into a field map. Unknown or
// immutable properties and ill-typed values are rejected; later operations on
// the same property win.
func BuildUpdateSet(ops []UpdateOperation) (map[string]interface{}, error) {
	if len(ops) == 0 {
		return nil, apperrors.InvalidInput("at least one update operation is required")
	}

	fields := make(map[string]interface{}, len(ops))
	for i, op := range ops {
		switch op.PropName {
		case models.FieldName:
			name, ok := op.Value.(string)
			if !ok || strings.TrimSpace(name) == "" {
				return nil, apperrors.InvalidInput(fmt.Sprintf("operation %d: name must be a non-empty string", i))
			}
			fields[models.FieldName] = strings.TrimSpace(name)
		case models.FieldPrice:
			price, err := toPrice(op.Value)
			if err != nil {
				return nil, apperrors.InvalidInput(fmt.Sprintf("operation %d: price %v", i, err))
			}
			fields[models.FieldPrice] = price
		case "":
			return nil, apperrors.InvalidInput(fmt.Sprintf("operation %d: propName is required", i))
		default:
			return nil, apperrors.InvalidInput(fmt.Sprintf("operation %d: property %q cannot be updated", i, op.PropName))
		}
	}
	return fields, nil
}

func toPrice(v interface{}) (float64, error) {
	switch t := v.(type) {
	case nil, bool:
		return 0, errors.New("must be a number")
	case string:
		if strings.TrimSpace(t) == "" {
			return 0, errors.New("must be a number")
		}
		v = strings.TrimSpace(t)
	}
	price, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, errors.New("must be a number")
	}
	return price, nil
}

func validationMessage(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return "invalid product"
	}
	fields := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		fields = append(fields, strings.ToLower(e.Field()))
	}
	return fmt.Sprintf("missing required fields: %s", strings.Join(fields, ", "))
}
