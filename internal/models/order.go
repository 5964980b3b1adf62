package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderType classifies an order by which line item collections it holds.
type OrderType string

const (
	OrderTypeEmpty        OrderType = "EMPTY"
	OrderTypeProductsOnly OrderType = "PRODUCTS_ONLY"
	OrderTypeRentalsOnly  OrderType = "RENTALS_ONLY"
	OrderTypeMixed        OrderType = "MIXED"
)

// Order holds the details of a successful checkout. StripePIID is the
// payment gateway's intent id and carries a uniqueness constraint: it is the
// idempotency key that guarantees at most one order per payment, no matter
// how many triggers race to create it.
type Order struct {
	ID           string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderNumber  string `json:"order_number" gorm:"uniqueIndex;type:varchar(32)"`
	StripePIID   string `json:"stripe_piid" gorm:"column:stripe_piid;uniqueIndex;type:varchar(255)"`
	FirstName    string `json:"first_name" gorm:"type:varchar(50)"`
	LastName     string `json:"last_name" gorm:"type:varchar(50)"`
	Email        string `json:"email" gorm:"type:varchar(254)"`
	Phone        string `json:"phone" gorm:"type:varchar(20)"`
	AddressLine1 string `json:"address_line1" gorm:"type:varchar(250)"`
	AddressLine2 string `json:"address_line2" gorm:"type:varchar(250)"`
	TownOrCity   string `json:"town_or_city" gorm:"type:varchar(100)"`
	PostalCode   string `json:"postal_code" gorm:"type:varchar(20)"`
	Country      string `json:"country" gorm:"type:varchar(2)"`
	Comments     string `json:"comments"`

	// OriginalCart is the serialized snapshot the order was created from,
	// kept for auditability.
	OriginalCart string `json:"original_cart" gorm:"type:text"`

	OrderTotal   decimal.Decimal `json:"order_total" gorm:"type:decimal(10,2)"`
	DeliveryCost decimal.Decimal `json:"delivery_cost" gorm:"type:decimal(10,2)"`
	HandlingFee  decimal.Decimal `json:"handling_fee" gorm:"type:decimal(10,2)"`
	GrandTotal   decimal.Decimal `json:"grand_total" gorm:"type:decimal(10,2)"`
	OrderType    OrderType       `json:"order_type" gorm:"type:varchar(16)"`

	Items    []OrderItem       `json:"items" gorm:"foreignKey:OrderID"`
	Bookings []CrashpadBooking `json:"bookings" gorm:"foreignKey:OrderID"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrderItem is a product line frozen at order creation time. ItemTotal is
// never recomputed from the live product price.
type OrderItem struct {
	ID        string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID   string          `json:"order_id" gorm:"index;type:varchar(36)"`
	ProductID string          `json:"product_id" gorm:"type:varchar(36)"`
	Quantity  int             `json:"quantity"`
	ItemTotal decimal.Decimal `json:"item_total" gorm:"type:decimal(10,2)"`
	CreatedAt time.Time       `json:"created_at"`
}

// OrderForm carries the customer details collected at checkout. It travels
// through the session on the redirect path and through gateway metadata on
// the webhook path.
type OrderForm struct {
	FirstName    string `json:"first_name" validate:"required,max=50"`
	LastName     string `json:"last_name" validate:"required,max=50"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone" validate:"required,max=20"`
	AddressLine1 string `json:"address_line1" validate:"required,max=250"`
	AddressLine2 string `json:"address_line2" validate:"omitempty,max=250"`
	TownOrCity   string `json:"town_or_city" validate:"required,max=100"`
	PostalCode   string `json:"postal_code" validate:"required,max=20"`
	Country      string `json:"country" validate:"required,iso3166_1_alpha2"`
	Comments     string `json:"comments" validate:"omitempty,max=1000"`
}

// FullName returns the customer name as frozen onto rental bookings.
func (f *OrderForm) FullName() string {
	return f.FirstName + " " + f.LastName
}
