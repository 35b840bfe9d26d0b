// Package receipt normalizes the two order representations served by the
// e-commerce API into a single receipt.
package receipt

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// ErrNoOrderID is returned when none of the order query parameters is set.
var ErrNoOrderID = errors.New("no order identifier")

// Shape is the representation an order is served in.
type Shape uint8

const (
	// ShapeModern is served by the orders and baskets endpoints.
	ShapeModern Shape = iota + 1
	// ShapeLegacy is served for payment processor order numbers.
	ShapeLegacy
)

func (s Shape) String() string {
	switch s {
	case ShapeModern:
		return "modern"
	case ShapeLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// Query parameters identifying an order.
const (
	ParamOrderNumber     = "order_number"
	ParamBasketID        = "basket_id"
	ParamPaymentOrderNum = "payment-order-num"
)

// Source identifies an order and the shape it is served in. It is resolved
// once from the receipt page query.
type Source struct {
	Shape       Shape
	OrderNumber string
	BasketID    string
	PaymentNum  string
}

// ResolveSource picks the order identifier from the query. order_number wins
// over basket_id, which wins over payment-order-num.
func ResolveSource(q url.Values) (Source, error) {
	src := Source{
		OrderNumber: strings.TrimSpace(q.Get(ParamOrderNumber)),
		BasketID:    strings.TrimSpace(q.Get(ParamBasketID)),
		PaymentNum:  strings.TrimSpace(q.Get(ParamPaymentOrderNum)),
	}
	switch {
	case src.OrderNumber != "" || src.BasketID != "":
		src.Shape = ShapeModern
	case src.PaymentNum != "":
		src.Shape = ShapeLegacy
	default:
		return Source{}, ErrNoOrderID
	}
	return src, nil
}

// ID returns the identifier used in the request path.
func (s Source) ID() string {
	switch {
	case s.OrderNumber != "":
		return s.OrderNumber
	case s.BasketID != "":
		return s.BasketID
	default:
		return s.PaymentNum
	}
}

// Path returns the API path the order is fetched from.
func (s Source) Path() string {
	id := url.PathEscape(s.ID())
	switch {
	case s.OrderNumber != "":
		return "/api/v2/orders/" + id + "/"
	case s.BasketID != "":
		return "/api/v2/baskets/" + id + "/order/"
	default:
		return "/api/v2/orders/" + id
	}
}

// Money is an amount as sent by the API: a JSON number, a numeric string,
// an empty string or null.
type Money struct {
	raw string
	set bool
}

// NewMoney returns a Money holding raw.
func NewMoney(raw string) Money { return Money{raw: raw, set: true} }

// Raw returns the amount as received.
func (m Money) Raw() string { return m.raw }

// MoneyError reports an amount that is not a number.
type MoneyError struct {
	Field string
	Value string
}

func (e *MoneyError) Error() string {
	return fmt.Sprintf("%s: %q is not a number", e.Field, e.Value)
}

// Format renders the amount with two decimals. Empty and null amounts are
// zero. Missing or non-numeric amounts render as "NaN" and return a
// MoneyError.
func (m Money) Format(field string) (string, error) {
	if !m.set {
		return "NaN", &MoneyError{Field: field}
	}
	raw := strings.TrimSpace(m.raw)
	if raw == "" {
		return "0.00", nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return "NaN", &MoneyError{Field: field, Value: m.raw}
	}
	return d.StringFixed(2), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Money) UnmarshalJSON(data []byte) error {
	d := jx.DecodeBytes(data)
	switch d.Next() {
	case jx.Null:
		*m = Money{set: true}
		return d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return errors.Wrap(err, "money")
		}
		*m = NewMoney(s)
		return nil
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return errors.Wrap(err, "money")
		}
		*m = NewMoney(n.String())
		return nil
	default:
		return errors.Errorf("money: unexpected %s", d.Next())
	}
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	var e jx.Encoder
	if !m.set {
		e.Null()
	} else {
		e.Str(m.raw)
	}
	return e.Bytes(), nil
}

// Attribute is a product attribute of an order line.
type Attribute struct {
	Name  string `json:"name"`
	Code  string `json:"code,omitempty"`
	Value string `json:"value"`
}

// Product is the product bought on an order line.
type Product struct {
	Title           string      `json:"title,omitempty"`
	AttributeValues []Attribute `json:"attribute_values"`
}

// Line is an order line of the modern shape.
type Line struct {
	Title            string  `json:"title,omitempty"`
	Description      string  `json:"description"`
	Quantity         int     `json:"quantity,omitempty"`
	LinePriceExclTax Money   `json:"line_price_excl_tax"`
	Product          Product `json:"product"`
}

// Address is a billing address of the modern shape.
type Address struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Line1     string `json:"line1,omitempty"`
	City      string `json:"city"`
	State     string `json:"state"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"`
}

// User is the purchaser of a modern order.
type User struct {
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
}

// Voucher is a voucher applied to a modern order.
type Voucher struct {
	ID   int    `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Code string `json:"code"`
}

// ModernOrder is the order representation of the e-commerce API.
type ModernOrder struct {
	Number           string    `json:"number"`
	Currency         string    `json:"currency"`
	Status           string    `json:"status,omitempty"`
	User             User      `json:"user"`
	Vouchers         []Voucher `json:"vouchers"`
	PaymentProcessor string    `json:"payment_processor"`
	DatePlaced       string    `json:"date_placed"`
	TotalExclTax     Money     `json:"total_excl_tax"`
	BillingAddress   *Address  `json:"billing_address"`
	Lines            []Line    `json:"lines"`
}

// LegacyAddress is a billing address of the legacy shape.
type LegacyAddress struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// LegacyItem is an order line of the legacy shape.
type LegacyItem struct {
	LineDesc  string `json:"line_desc"`
	LineCost  Money  `json:"line_cost"`
	CourseKey string `json:"course_key,omitempty"`
}

// LegacyOrder is the order representation keyed by payment order number.
type LegacyOrder struct {
	OrderNum         string         `json:"orderNum"`
	Currency         string         `json:"currency"`
	PurchaseDatetime string         `json:"purchase_datetime"`
	TotalCost        Money          `json:"total_cost"`
	Status           string         `json:"status"`
	BilledTo         *LegacyAddress `json:"billed_to"`
	Items            []LegacyItem   `json:"items"`
}

// Order holds exactly one of the two shapes, selected by Shape.
type Order struct {
	Shape  Shape
	Modern *ModernOrder
	Legacy *LegacyOrder
}

// NewModern wraps a modern order.
func NewModern(o ModernOrder) Order { return Order{Shape: ShapeModern, Modern: &o} }

// NewLegacy wraps a legacy order.
func NewLegacy(o LegacyOrder) Order { return Order{Shape: ShapeLegacy, Legacy: &o} }

// Number returns the order number of either shape.
func (o Order) Number() string {
	switch {
	case o.Modern != nil:
		return o.Modern.Number
	case o.Legacy != nil:
		return o.Legacy.OrderNum
	default:
		return ""
	}
}
