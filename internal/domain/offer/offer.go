// Package offer derives display values for the courses a voucher code
// applies to and pages through them.
package offer

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Benefit types of an offer.
const (
	BenefitPercentage = "Percentage"
	BenefitAbsolute   = "Absolute"
)

const dateLayout = "Jan 02, 2006"

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// Benefit is the discount a voucher applies to a course seat.
type Benefit struct {
	Type  string          `json:"type"`
	Value decimal.Decimal `json:"value"`
}

// StockRecord holds the list price of a seat.
type StockRecord struct {
	ID           int    `json:"id,omitempty"`
	PriceExclTax string `json:"price_excl_tax"`
}

// Offer is a course seat a voucher code can be redeemed for.
type Offer struct {
	ID               string      `json:"id"`
	Title            string      `json:"title"`
	ImageURL         string      `json:"image_url,omitempty"`
	Organization     string      `json:"organization,omitempty"`
	SeatType         string      `json:"seat_type"`
	CourseStartDate  string      `json:"course_start_date"`
	VoucherEndDate   string      `json:"voucher_end_date"`
	ContainsVerified bool        `json:"contains_verified"`
	Benefit          Benefit     `json:"benefit"`
	StockRecords     StockRecord `json:"stockrecords"`
}

// Item is an offer with its display values. Display values are computed
// every time a page is produced and never stored on the Offer.
type Item struct {
	Offer
	Price               string `json:"price"`
	NewPrice            string `json:"new_price"`
	BenefitValue        string `json:"benefit_value"`
	CourseStartDateText string `json:"course_start_date_text"`
	VoucherEndDateText  string `json:"voucher_end_date_text"`
	// NotVerified marks seats other than verified ones.
	NotVerified bool `json:"not_verified"`
}

// Display computes the display values of o.
func Display(o Offer) Item {
	price, newPrice := NewPrice(o.StockRecords.PriceExclTax, o.Benefit)
	return Item{
		Offer:               o,
		Price:               price,
		NewPrice:            newPrice,
		BenefitValue:        FormatBenefitValue(o.Benefit),
		CourseStartDateText: fmt.Sprintf("Course starts: %s", formatDate(o.CourseStartDate)),
		VoucherEndDateText:  fmt.Sprintf("Discount valid until %s", formatDate(o.VoucherEndDate)),
		NotVerified:         o.SeatType != "verified",
	}
}

// NewPrice applies the benefit to the list price. Both the list price and
// the discounted price are formatted with two decimals; the discounted price
// never drops below zero. A list price that is not a number yields "NaN".
func NewPrice(listPrice string, b Benefit) (price, newPrice string) {
	p, err := decimal.NewFromString(listPrice)
	if err != nil {
		return "NaN", "NaN"
	}
	p = p.Round(2)

	var out decimal.Decimal
	switch b.Type {
	case BenefitPercentage:
		out = p.Sub(p.Mul(b.Value).Div(hundred))
	default:
		out = p.Sub(b.Value)
	}
	return p.StringFixed(2), floorAtZero(out).StringFixed(2)
}

// FormatBenefitValue renders the benefit rounded to a whole number as "50%"
// or "$150".
func FormatBenefitValue(b Benefit) string {
	v := b.Value.Round(0).String()
	if b.Type == BenefitPercentage {
		return v + "%"
	}
	return "$" + v
}

// IsEnrollmentCode reports whether a benefit grants the whole seat.
func IsEnrollmentCode(b Benefit) bool {
	return b.Type == BenefitPercentage && b.Value.Round(0).Equal(hundred)
}

func formatDate(s string) string {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(dateLayout)
		}
	}
	return "Invalid date"
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return zero
	}
	return d
}
