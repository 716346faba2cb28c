package handlers

import (
	"strconv"
	"strings"

	"toko/internal/apperrors"
	"toko/internal/models"
	"toko/internal/services"
	"toko/internal/storage"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ImageField is the multipart field carrying the product image.
const ImageField = "productImage"

// requestLink describes a follow-up request a client can make.
type requestLink struct {
	Type        string            `json:"type"`
	Description string            `json:"description,omitempty"`
	URL         string            `json:"url"`
	Body        map[string]string `json:"body,omitempty"`
}

type productView struct {
	Name         string       `json:"name"`
	Price        float64      `json:"price"`
	ProductImage string       `json:"productImage"`
	ID           string       `json:"id"`
	Requests     *requestLink `json:"requests,omitempty"`
}

type createdProductView struct {
	Name     string      `json:"name"`
	Price    float64     `json:"price"`
	ID       string      `json:"id"`
	Requests requestLink `json:"requests"`
}

// deleteBodyHint documents the shape of a product for clients re-creating one.
var deleteBodyHint = map[string]string{"name": "String", "price": "Number"}

// ProductHandler handles HTTP requests for products.
type ProductHandler struct {
	service *services.ProductService
	baseURL string
	logger  *zap.Logger
}

// NewProductHandler creates a new ProductHandler. baseURL prefixes every
// self-link in responses.
func NewProductHandler(service *services.ProductService, baseURL string, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		service: service,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// RegisterRoutes registers the product routes. Every route except the
// collection listing is guarded by auth.
func (h *ProductHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	productRoutes := router.Group("/products")
	productRoutes.Get("", h.HandleGetProducts)
	productRoutes.Post("", auth, h.HandleCreateProduct)
	productRoutes.Get("/:id", auth, h.HandleGetProductByID)
	productRoutes.Patch("/:id", auth, h.HandleUpdateProduct)
	productRoutes.Delete("/:id", auth, h.HandleDeleteProduct)
}

func (h *ProductHandler) collectionURL() string {
	return h.baseURL + "/products"
}

func (h *ProductHandler) productURL(id string) string {
	return h.collectionURL() + "/" + id
}

// HandleGetProducts lists every product.
func (h *ProductHandler) HandleGetProducts(c *fiber.Ctx) error {
	products, err := h.service.ListProducts(c.UserContext())
	if err != nil {
		return h.respondError(c, err)
	}

	if len(products) == 0 {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "No entries found",
		})
	}

	views := make([]productView, 0, len(products))
	for _, p := range products {
		v := toProductView(p)
		v.Requests = &requestLink{Type: fiber.MethodGet, URL: h.productURL(p.ID)}
		views = append(views, v)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"count":    len(views),
		"products": views,
	})
}

// HandleCreateProduct creates a product from a multipart form with name,
// price and a single productImage file.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	input := services.CreateProductInput{
		Name: c.FormValue("name"),
	}

	if raw := strings.TrimSpace(c.FormValue("price")); raw != "" {
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return h.respondError(c, apperrors.InvalidInput("price must be a number"))
		}
		input.Price = &price
	}

	if form, err := c.MultipartForm(); err == nil {
		for field, files := range form.File {
			if field != ImageField {
				return h.respondError(c, apperrors.InvalidInput("unexpected file field "+strconv.Quote(field)))
			}
			if len(files) > 1 {
				return h.respondError(c, apperrors.InvalidInput("only one productImage file may be uploaded"))
			}
		}
	}

	// A missing file is left nil; the service rejects it.
	if fileHeader, err := c.FormFile(ImageField); err == nil {
		file, err := fileHeader.Open()
		if err != nil {
			return h.respondError(c, apperrors.Internal(err))
		}
		defer file.Close()

		input.Image = &storage.ImageFile{
			Filename:    fileHeader.Filename,
			ContentType: fileHeader.Header.Get(fiber.HeaderContentType),
			Size:        fileHeader.Size,
			Content:     file,
		}
	}

	product, err := h.service.CreateProduct(c.UserContext(), input)
	if err != nil {
		return h.respondError(c, err)
	}

	h.logger.Info("product created",
		zap.String("product_id", product.ID),
		zap.String("product_image", product.ProductImage),
	)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Created product successfully",
		"createdProduct": createdProductView{
			Name:  product.Name,
			Price: product.Price,
			ID:    product.ID,
			Requests: requestLink{
				Type: fiber.MethodPost,
				URL:  h.productURL(product.ID),
			},
		},
	})
}

// HandleGetProductByID retrieves a single product. The request link points at
// the collection, not the item.
func (h *ProductHandler) HandleGetProductByID(c *fiber.Ctx) error {
	product, err := h.service.GetProduct(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"product": toProductView(*product),
		"request": requestLink{
			Type:        fiber.MethodGet,
			Description: "Get all products",
			URL:         h.collectionURL(),
		},
	})
}

// HandleUpdateProduct applies a JSON array of {propName, value} pairs.
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	id := c.Params("id")

	var ops []services.UpdateOperation
	if err := c.BodyParser(&ops); err != nil {
		return h.respondError(c, apperrors.New(
			apperrors.KindInvalidInput,
			"request body must be a JSON array of {propName, value}",
			err,
		))
	}

	if err := h.service.UpdateProduct(c.UserContext(), id, ops); err != nil {
		return h.respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Product updated",
		"request": requestLink{
			Type: fiber.MethodPatch,
			URL:  h.productURL(id),
		},
	})
}

// HandleDeleteProduct removes a product. Deleting an unknown id succeeds.
func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	id := c.Params("id")

	if err := h.service.DeleteProduct(c.UserContext(), id); err != nil {
		return h.respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Product deleted",
		"request": requestLink{
			Type: fiber.MethodDelete,
			URL:  h.productURL(id),
			Body: deleteBodyHint,
		},
	})
}

// respondError keeps the legacy {message} body for product misses and uses
// the error envelope for everything else.
func (h *ProductHandler) respondError(c *fiber.Ctx, err error) error {
	switch apperrors.KindOf(err) {
	case apperrors.KindNotFound:
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": services.NotFoundMessage,
		})
	case apperrors.KindInternal:
		h.logger.Error("product request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	default:
		h.logger.Debug("product request rejected", zap.Error(err))
	}
	return apperrors.Respond(c, err)
}

func toProductView(p models.Product) productView {
	return productView{
		Name:         p.Name,
		Price:        p.Price,
		ProductImage: p.ProductImage,
		ID:           p.ID,
	}
}
