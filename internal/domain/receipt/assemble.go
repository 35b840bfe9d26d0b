package receipt

import (
	"github.com/go-faster/errors"
)

// Attribute names looked up on order lines.
const (
	AttrCourseKey      = "course_key"
	AttrCreditProvider = "credit_provider"
)

// BilledTo is the normalized billing address.
type BilledTo struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// Item is a normalized receipt line.
type Item struct {
	LineDescription string `json:"lineDescription"`
	Cost            string `json:"cost"`
}

// Receipt is the display context shared by both order shapes.
type Receipt struct {
	OrderNum          string    `json:"orderNum"`
	Currency          string    `json:"currency"`
	Email             string    `json:"email,omitempty"`
	Vouchers          []Voucher `json:"vouchers,omitempty"`
	PaymentProcessor  string    `json:"payment_processor,omitempty"`
	PurchasedDatetime string    `json:"purchasedDatetime"`
	TotalCost         string    `json:"totalCost"`
	IsRefunded        bool      `json:"isRefunded"`
	BilledTo          *BilledTo `json:"billedTo"`
	Items             []Item    `json:"items"`

	// Problems lists money fields that did not parse. They render as "NaN".
	Problems []*MoneyError `json:"-"`
}

// Err joins the money problems of the receipt, or returns nil.
func (r Receipt) Err() error {
	if len(r.Problems) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Problems))
	for _, p := range r.Problems {
		errs = append(errs, p)
	}
	return errors.Join(errs...)
}

type moneyFormatter struct {
	problems []*MoneyError
}

func (f *moneyFormatter) format(field string, m Money) string {
	s, err := m.Format(field)
	if err != nil {
		var me *MoneyError
		if errors.As(err, &me) {
			f.problems = append(f.problems, me)
		}
	}
	return s
}

// Assemble normalizes an order into a receipt. It never fails: money that
// does not parse is reported in Receipt.Problems.
func Assemble(o Order) Receipt {
	var (
		f moneyFormatter
		r Receipt
	)
	switch {
	case o.Modern != nil:
		r = assembleModern(*o.Modern, &f)
	case o.Legacy != nil:
		r = assembleLegacy(*o.Legacy, &f)
	default:
		r = Receipt{Items: []Item{}}
	}
	r.Problems = f.problems
	return r
}

func assembleModern(o ModernOrder, f *moneyFormatter) Receipt {
	r := Receipt{
		OrderNum:          o.Number,
		Currency:          o.Currency,
		Email:             o.User.Email,
		Vouchers:          o.Vouchers,
		PaymentProcessor:  o.PaymentProcessor,
		PurchasedDatetime: o.DatePlaced,
		TotalCost:         f.format("total_excl_tax", o.TotalExclTax),
		Items:             make([]Item, 0, len(o.Lines)),
	}
	if a := o.BillingAddress; a != nil {
		r.BilledTo = &BilledTo{
			FirstName:  a.FirstName,
			LastName:   a.LastName,
			City:       a.City,
			State:      a.State,
			PostalCode: a.Postcode,
			Country:    a.Country,
		}
	}
	for _, l := range o.Lines {
		r.Items = append(r.Items, Item{
			LineDescription: l.Description,
			Cost:            f.format("line_price_excl_tax", l.LinePriceExclTax),
		})
	}
	return r
}

func assembleLegacy(o LegacyOrder, f *moneyFormatter) Receipt {
	r := Receipt{
		OrderNum:          o.OrderNum,
		Currency:          o.Currency,
		PurchasedDatetime: o.PurchaseDatetime,
		TotalCost:         f.format("total_cost", o.TotalCost),
		IsRefunded:        o.Status == "refunded",
		Items:             make([]Item, 0, len(o.Items)),
	}
	if a := o.BilledTo; a != nil {
		r.BilledTo = &BilledTo{
			FirstName:  a.FirstName,
			LastName:   a.LastName,
			City:       a.City,
			State:      a.State,
			PostalCode: a.PostalCode,
			Country:    a.Country,
		}
	}
	for _, it := range o.Items {
		r.Items = append(r.Items, Item{
			LineDescription: it.LineDesc,
			Cost:            f.format("line_cost", it.LineCost),
		})
	}
	return r
}

// CourseKey returns the course the order was placed for. Modern orders are
// scanned line by line for a course_key attribute, matched by code when the
// attribute has one and by name otherwise.
func CourseKey(o Order) (string, bool) {
	switch {
	case o.Modern != nil:
		for _, l := range o.Modern.Lines {
			for _, a := range l.Product.AttributeValues {
				match := a.Name
				if a.Code != "" {
					match = a.Code
				}
				if match == AttrCourseKey {
					return a.Value, true
				}
			}
		}
	case o.Legacy != nil:
		for _, it := range o.Legacy.Items {
			if it.CourseKey != "" {
				return it.CourseKey, true
			}
		}
	}
	return "", false
}

// CreditProviderID returns the credit provider of the first line of a modern
// order.
func CreditProviderID(o Order) (string, bool) {
	if o.Modern == nil || len(o.Modern.Lines) == 0 {
		return "", false
	}
	for _, a := range o.Modern.Lines[0].Product.AttributeValues {
		if a.Name == AttrCreditProvider {
			return a.Value, true
		}
	}
	return "", false
}
