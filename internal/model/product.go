package model

import (
	"errors"
	"math"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"
)

// Limits of the products table columns.
const (
	// MaxNameLength is the longest product name accepted, in characters.
	MaxNameLength = 150
	// MaxStock fits a 32-bit INTEGER column.
	MaxStock = math.MaxInt32
	// PriceScale is the number of decimal places a price may carry.
	PriceScale = 2
)

func init() {
	// Prices go out as JSON numbers. Input accepts numbers and strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// maxPrice is the exclusive upper bound of a DECIMAL(18,2) price.
var maxPrice = decimal.New(1, 18-PriceScale)

// Product errors.
var (
	ErrProductNotFound = errors.New("product not found")
	ErrNegativePrice   = errors.New("product price cannot be negative")
	ErrNegativeStock   = errors.New("product stock cannot be negative")
)

// Product is a catalogue entry. ID is assigned by the repository on insert.
type Product struct {
	ID    int64
	Name  string
	Stock int
	Price decimal.Decimal
}

// NewProduct builds a product and enforces its invariants.
func NewProduct(name string, stock int, price decimal.Decimal) (*Product, error) {
	p := &Product{Name: name, Stock: stock, Price: price}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the entity invariants: price and stock are not negative.
func (p *Product) Validate() error {
	if err := p.ValidatePrice(); err != nil {
		return err
	}
	return p.validateStock()
}

// ValidatePrice rejects negative prices. The repository and the HTTP
// boundary both rely on the entity holding this invariant.
func (p *Product) ValidatePrice() error {
	if p.Price.IsNegative() {
		return ErrNegativePrice
	}
	return nil
}

func (p *Product) validateStock() error {
	if p.Stock < 0 {
		return ErrNegativeStock
	}
	return nil
}

// Apply overwrites the mutable fields from in. ID is left untouched.
func (p *Product) Apply(in ProductInput) error {
	p.Name = in.Name
	p.Stock = in.Stock
	p.Price = in.Price
	return p.Validate()
}

// ToView maps the entity to its serialized snapshot.
func (p *Product) ToView() ProductView {
	return ProductView{
		ID:    p.ID,
		Name:  p.Name,
		Stock: p.Stock,
		Price: p.Price,
	}
}

// ProductInput is the create/update payload.
type ProductInput struct {
	Name  string          `json:"name"`
	Stock int             `json:"stock"`
	Price decimal.Decimal `json:"price"`
}

var notBlank = regexp.MustCompile(`\S`)

// Validate checks the payload before it reaches persistence.
// The returned error is a validation.Errors keyed by JSON field name.
func (in ProductInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name,
			validation.Required.Error("name is required"),
			validation.Match(notBlank).Error("name is required"),
			validation.RuneLength(1, MaxNameLength).Error("name must be at most 150 characters"),
		),
		validation.Field(&in.Stock,
			validation.Min(0).Error("stock cannot be negative"),
			validation.Max(MaxStock).Error("stock must be at most 2147483647"),
		),
		validation.Field(&in.Price,
			validation.By(validPrice),
		),
	)
}

func validPrice(value interface{}) error {
	d, ok := value.(decimal.Decimal)
	if !ok {
		return errors.New("must be a decimal")
	}
	switch {
	case d.IsNegative():
		return errors.New("price cannot be negative")
	case !d.Equal(d.Round(PriceScale)):
		return errors.New("price must have at most 2 decimal places")
	case d.GreaterThanOrEqual(maxPrice):
		return errors.New("price must be less than 10000000000000000")
	}
	return nil
}

// ProductView is the snapshot returned to clients and stored in the
// list cache. Field names and tags are part of the cache format.
type ProductView struct {
	ID    int64           `json:"id" msgpack:"id"`
	Name  string          `json:"name" msgpack:"name"`
	Stock int             `json:"stock" msgpack:"stock"`
	Price decimal.Decimal `json:"price" msgpack:"price"`
}

// Sort columns accepted by ListQuery.
const (
	SortByID    = "id"
	SortByName  = "name"
	SortByStock = "stock"
	SortByPrice = "price"
)

// ListQuery filters and orders a product listing. Empty fields mean
// "not supplied".
type ListQuery struct {
	Search    string
	SortBy    string
	Direction string
}

// SortColumn resolves SortBy case-insensitively. Unknown or empty
// values fall back to the identifier.
func (q ListQuery) SortColumn() string {
	switch strings.ToLower(q.SortBy) {
	case SortByName:
		return SortByName
	case SortByStock:
		return SortByStock
	case SortByPrice:
		return SortByPrice
	default:
		return SortByID
	}
}

// Descending reports whether results are ordered high to low. The
// identifier fallback is always ascending.
func (q ListQuery) Descending() bool {
	if q.SortColumn() == SortByID {
		return false
	}
	return strings.EqualFold(q.Direction, "desc")
}
