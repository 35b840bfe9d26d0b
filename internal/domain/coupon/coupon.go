package coupon

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// CouponType distinguishes discount codes from full-discount enrollment codes.
type CouponType string

const (
	TypeDiscountCode   CouponType = "Discount code"
	TypeEnrollmentCode CouponType = "Enrollment code"
)

// CatalogType tells whether a coupon targets a single course or a catalog query.
type CatalogType string

const (
	CatalogSingleCourse    CatalogType = "Single course"
	CatalogMultipleCourses CatalogType = "Multiple courses"
)

// BenefitType enumerates the discount mechanisms.
type BenefitType string

const (
	BenefitPercentage BenefitType = "Percentage"
	BenefitAbsolute   BenefitType = "Absolute"
)

// VoucherType limits how often and by whom a code may be redeemed.
type VoucherType string

const (
	VoucherSingleUse       VoucherType = "Single use"
	VoucherOncePerCustomer VoucherType = "Once per customer"
	VoucherMultiUse        VoucherType = "Multi-use"
)

// InvoiceType is the billing arrangement of a coupon.
type InvoiceType string

const (
	InvoicePrepaid       InvoiceType = "Prepaid"
	InvoicePostpaid      InvoiceType = "Postpaid"
	InvoiceNotApplicable InvoiceType = "Not-Applicable"
)

var (
	// ErrNoVouchers is returned when voucher data is derived from an empty
	// voucher list.
	ErrNoVouchers = errors.New("coupon has no vouchers")
	// ErrMissingBenefit is returned when a discount code voucher carries no
	// benefit.
	ErrMissingBenefit = errors.New("voucher has no benefit")
	// ErrMissingInvoice is returned when payment information has no invoice.
	ErrMissingInvoice = errors.New("payment information has no invoice")
)

// Category groups coupons for reporting.
type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// UnmarshalJSON accepts both {"id":3,"name":"..."} and a bare name.
func (c *Category) UnmarshalJSON(data []byte) error {
	d := jx.DecodeBytes(data)
	switch d.Next() {
	case jx.String:
		name, err := d.Str()
		if err != nil {
			return errors.Wrap(err, "category")
		}
		*c = Category{Name: name}
		return nil
	case jx.Null:
		*c = Category{}
		return d.Null()
	}

	var out Category
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "id":
			v, err := d.Int()
			if err != nil {
				return errors.Wrap(err, "id")
			}
			out.ID = v
		case "name":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "name")
			}
			out.Name = v
		default:
			return d.Skip()
		}
		return nil
	}); err != nil {
		return errors.Wrap(err, "category")
	}
	*c = out
	return nil
}

// Amount is a numeric form value kept as entered. It decodes from JSON
// numbers, strings and null.
type Amount string

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	d := jx.DecodeBytes(data)
	switch d.Next() {
	case jx.Null:
		*a = ""
		return d.Null()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return errors.Wrap(err, "amount")
		}
		*a = Amount(n.String())
		return nil
	default:
		s, err := d.Str()
		if err != nil {
			return errors.Wrap(err, "amount")
		}
		*a = Amount(s)
		return nil
	}
}

// Attribute is a product attribute of a seat, e.g. certificate_type.
type Attribute struct {
	Name  string `json:"name"`
	Code  string `json:"code,omitempty"`
	Value string `json:"value"`
}

// Seat is a purchasable course enrollment.
type Seat struct {
	ID              int             `json:"id,omitempty"`
	Title           string          `json:"title,omitempty"`
	Price           decimal.Decimal `json:"price"`
	AttributeValues []Attribute     `json:"attribute_values"`
}

// Benefit is the discount carried by a voucher.
type Benefit struct {
	Type  BenefitType     `json:"type"`
	Value decimal.Decimal `json:"value"`
}

// Voucher is a single redeemable code of a coupon.
type Voucher struct {
	ID            int         `json:"id,omitempty"`
	Name          string      `json:"name,omitempty"`
	Code          string      `json:"code"`
	Redeem        string      `json:"redeem_url,omitempty"`
	StartDatetime string      `json:"start_datetime"`
	EndDatetime   string      `json:"end_datetime"`
	Usage         VoucherType `json:"usage"`
	NumOrders     int         `json:"num_orders"`
	Benefit       *Benefit    `json:"benefit"`
}

// Invoice is the nested billing record of a coupon.
type Invoice struct {
	Type              InvoiceType         `json:"type"`
	Number            string              `json:"number"`
	PaymentDate       string              `json:"payment_date"`
	DiscountType      BenefitType         `json:"discount_type"`
	DiscountValue     decimal.NullDecimal `json:"discount_value"`
	TaxDeductedSource decimal.NullDecimal `json:"tax_deducted_source"`
}

// PaymentInformation wraps the invoice as returned by the API.
type PaymentInformation struct {
	Invoice *Invoice `json:"Invoice"`
}

// Coupon is the editable coupon record.
//
// Numeric fields entered through the form (price, benefit_value,
// invoice_discount_value) stay strings until validation confirms they parse.
type Coupon struct {
	ID       int      `json:"id,omitempty"`
	Title    string   `json:"title"`
	Category Category `json:"category"`
	Client   string   `json:"client"`
	Code     string   `json:"code"`
	Note     string   `json:"note,omitempty"`

	CouponType      CouponType  `json:"coupon_type"`
	CatalogType     CatalogType `json:"catalog_type"`
	CatalogQuery    string      `json:"catalog_query"`
	CourseSeatTypes []string    `json:"course_seat_types"`
	CourseID        string      `json:"course_id"`
	SeatType        string      `json:"seat_type"`
	Seats           []Seat      `json:"seats"`
	CourseSeats     []Seat      `json:"course_seats"`
	StockRecordIDs  []int       `json:"stock_record_ids"`

	Quantity   int                 `json:"quantity"`
	Price      Amount              `json:"price"`
	TotalValue decimal.NullDecimal `json:"total_value"`

	BenefitType  BenefitType `json:"benefit_type"`
	BenefitValue Amount      `json:"benefit_value"`
	VoucherType  VoucherType `json:"voucher_type"`
	MaxUses      int         `json:"max_uses,omitempty"`
	StartDate    string      `json:"start_date"`
	EndDate      string      `json:"end_date"`
	Vouchers     []Voucher   `json:"vouchers"`

	PaymentInformation   *PaymentInformation `json:"payment_information,omitempty"`
	InvoiceType          InvoiceType         `json:"invoice_type"`
	InvoiceNumber        string              `json:"invoice_number"`
	InvoicePaymentDate   string              `json:"invoice_payment_date"`
	InvoiceDiscountType  BenefitType         `json:"invoice_discount_type"`
	InvoiceDiscountValue Amount              `json:"invoice_discount_value"`
	TaxDeductedSource    decimal.NullDecimal `json:"tax_deducted_source"`
	TaxDeduction         string              `json:"tax_deduction"`

	// LastEdited is [username, datetime] as reported by the API.
	LastEdited []string `json:"last_edited,omitempty"`
}

// New returns a coupon with the form defaults applied.
func New() Coupon {
	return Coupon{
		Category:        Category{ID: 3, Name: "Affiliate Promotion"},
		CourseSeatTypes: []string{},
		Seats:           []Seat{},
		CourseSeats:     []Seat{},
		StockRecordIDs:  []int{},
		Quantity:        1,
		MaxUses:         1,
		Price:           "0",
		TotalValue:      decimal.NewNullDecimal(decimal.Zero),
	}
}

// SeatPrice returns the price of the first seat, if any.
func (c Coupon) SeatPrice() (decimal.Decimal, bool) {
	if len(c.Seats) == 0 {
		return decimal.Zero, false
	}
	return c.Seats[0].Price, true
}

// IsPrepaid reports whether the coupon is billed up front.
func (c Coupon) IsPrepaid() bool { return c.InvoiceType == InvoicePrepaid }

// FirstVoucher returns the voucher the coupon-wide fields are derived from.
func (c Coupon) FirstVoucher() (Voucher, bool) {
	if len(c.Vouchers) == 0 {
		return Voucher{}, false
	}
	return c.Vouchers[0], true
}

// attributeValue returns the value of the attribute with the given name or "".
func attributeValue(attrs []Attribute, name string) string {
	for _, a := range attrs {
		if a.Name == name {
			return a.Value
		}
	}
	return ""
}
