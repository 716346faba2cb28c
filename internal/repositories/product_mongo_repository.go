package repositories

import (
	"context"
	"errors"
	"fmt"

	"toko/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const productCollectionName = "products"

// productProjection mirrors the public read shape: name, price, productImage, _id.
var productProjection = bson.M{"name": 1, "price": 1, "productImage": 1}

type productDocument struct {
	ID           primitive.ObjectID `bson:"_id"`
	Name         string             `bson:"name"`
	Price        float64            `bson:"price"`
	ProductImage string             `bson:"productImage,omitempty"`
}

func (d productDocument) toModel() models.Product {
	return models.Product{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Price:        d.Price,
		ProductImage: d.ProductImage,
	}
}

// MongoProductRepository is a MongoDB implementation of ProductRepository.
type MongoProductRepository struct {
	collection *mongo.Collection
}

// NewMongoProductRepository creates a repository backed by the products
// collection of db.
func NewMongoProductRepository(db *mongo.Database) *MongoProductRepository {
	return &MongoProductRepository{collection: db.Collection(productCollectionName)}
}

// List returns every product.
func (r *MongoProductRepository) List(ctx context.Context) ([]models.Product, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetProjection(productProjection))
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []productDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}

	products := make([]models.Product, 0, len(docs))
	for _, d := range docs {
		products = append(products, d.toModel())
	}
	return products, nil
}

// GetByID returns the product with the given hex ObjectID. An id that is not
// a valid ObjectID fails with ErrInvalidID.
func (r *MongoProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}

	var doc productDocument
	err = r.collection.FindOne(ctx, bson.M{"_id": oid}, options.FindOne().SetProjection(productProjection)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("product with ID %s: %w", id, ErrProductNotFound)
		}
		return nil, fmt.Errorf("failed to find product: %w", err)
	}

	product := doc.toModel()
	return &product, nil
}

// Create inserts product with a freshly generated ObjectID.
func (r *MongoProductRepository) Create(ctx context.Context, product *models.Product) error {
	doc := productDocument{
		ID:           primitive.NewObjectID(),
		Name:         product.Name,
		Price:        product.Price,
		ProductImage: product.ProductImage,
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	product.ID = doc.ID.Hex()
	return nil
}

// Update applies a $set of fields to the product with the given id.
func (r *MongoProductRepository) Update(ctx context.Context, id string, fields map[string]interface{}) (int64, error) {
	set, err := setDocument(fields)
	if err != nil {
		return 0, err
	}

	oid, err := parseObjectID(id)
	if err != nil {
		return 0, err
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return 0, fmt.Errorf("failed to update product: %w", err)
	}
	return result.MatchedCount, nil
}

// Delete removes the product with the given id.
func (r *MongoProductRepository) Delete(ctx context.Context, id string) (int64, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return 0, err
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return 0, fmt.Errorf("failed to delete product: %w", err)
	}
	return result.DeletedCount, nil
}

func parseObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("product with ID %q: %w: %w", id, ErrInvalidID, err)
	}
	return oid, nil
}

// setDocument maps product fields onto their document keys.
func setDocument(fields map[string]interface{}) (bson.M, error) {
	if len(fields) == 0 {
		return nil, errors.New("no fields to update")
	}

	set := bson.M{}
	for k, v := range fields {
		switch k {
		case models.FieldName:
			set["name"] = v
		case models.FieldPrice:
			set["price"] = v
		default:
			return nil, fmt.Errorf("field %s cannot be updated", k)
		}
	}
	return set, nil
}
