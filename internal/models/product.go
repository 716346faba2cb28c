package models

// Product represents a product in the catalog. Only these four fields are
// ever projected back to clients.
type Product struct {
	ID           string  `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name         string  `json:"name" gorm:"type:varchar(255);not null"`
	Price        float64 `json:"price" gorm:"not null"`
	ProductImage string  `json:"productImage" gorm:"column:product_image"`
}

// Mutable product fields, keyed by their JSON property name.
const (
	FieldName  = "name"
	FieldPrice = "price"
)
