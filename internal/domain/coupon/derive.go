package coupon

import (
	"slices"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Change is a set of primary inputs that changed since the last derivation.
type Change uint8

const (
	ChangeVoucherType Change = 1 << iota
	ChangeVouchers
	ChangeSeats
	ChangeQuantity
	ChangePaymentInformation

	// ChangeAll re-derives every dependent field, e.g. after a fetch.
	ChangeAll = ChangeVoucherType | ChangeVouchers | ChangeSeats | ChangeQuantity | ChangePaymentInformation
)

// Fetched returns the inputs to derive for a record read from the API:
// optional nested structures are only derived when present.
func Fetched(c Coupon) Change {
	changed := ChangeSeats | ChangeQuantity
	if len(c.Vouchers) > 0 {
		changed |= ChangeVouchers
	}
	if c.PaymentInformation != nil && c.PaymentInformation.Invoice != nil {
		changed |= ChangePaymentInformation
	}
	return changed
}

// Submitted returns the inputs to derive for a record entered through the
// form: the voucher type is always applied.
func Submitted(c Coupon) Change { return Fetched(c) | ChangeVoucherType }

// Has reports whether all bits of o are set.
func (c Change) Has(o Change) bool { return c&o == o }

// Derive returns c with every field depending on the changed inputs
// recomputed. Steps run in a fixed order: vouchers, voucher type, payment
// information, seats, quantity. A step may mark later inputs as changed.
//
// The input is never mutated.
func Derive(c Coupon, changed Change) (Coupon, error) {
	c = clone(c)

	if changed.Has(ChangeVouchers) {
		var (
			more Change
			err  error
		)
		c, more, err = deriveVouchers(c)
		if err != nil {
			return Coupon{}, errors.Wrap(err, "vouchers")
		}
		changed |= more
	}
	if changed.Has(ChangeVoucherType) && c.VoucherType == VoucherSingleUse {
		c.MaxUses = 1
		// Quantity taken from the voucher list wins over the single-use
		// reset, as both come from the same API representation.
		if !changed.Has(ChangeVouchers) {
			c.Quantity = 1
			changed |= ChangeQuantity
		}
	}
	if changed.Has(ChangePaymentInformation) {
		var err error
		if c, err = derivePaymentInformation(c); err != nil {
			return Coupon{}, errors.Wrap(err, "payment information")
		}
	}
	if changed.Has(ChangeSeats) {
		c = deriveSeats(c)
	}
	if changed.Has(ChangeQuantity) {
		c.TotalValue = totalValue(c)
	}
	return c, nil
}

// SetVoucherType applies a voucher type selection.
func SetVoucherType(c Coupon, vt VoucherType) Coupon {
	c.VoucherType = vt
	out, _ := Derive(c, ChangeVoucherType)
	return out
}

// SetQuantity applies a quantity change.
func SetQuantity(c Coupon, quantity int) Coupon {
	c.Quantity = quantity
	out, _ := Derive(c, ChangeQuantity)
	return out
}

func clone(c Coupon) Coupon {
	c.CourseSeatTypes = slices.Clone(c.CourseSeatTypes)
	c.Seats = slices.Clone(c.Seats)
	c.CourseSeats = slices.Clone(c.CourseSeats)
	c.StockRecordIDs = slices.Clone(c.StockRecordIDs)
	c.Vouchers = slices.Clone(c.Vouchers)
	c.LastEdited = slices.Clone(c.LastEdited)
	return c
}

func deriveVouchers(c Coupon) (Coupon, Change, error) {
	v, ok := c.FirstVoucher()
	if !ok {
		return c, 0, ErrNoVouchers
	}

	var more Change
	if c.VoucherType != v.Usage {
		more |= ChangeVoucherType
	}
	c.StartDate = v.StartDatetime
	c.EndDate = v.EndDatetime
	c.VoucherType = v.Usage
	c.Quantity = len(c.Vouchers)
	more |= ChangeQuantity

	if c.CouponType == TypeDiscountCode {
		if v.Benefit == nil {
			return c, 0, ErrMissingBenefit
		}
		c.BenefitType = v.Benefit.Type
		c.BenefitValue = Amount(v.Benefit.Value.String())
	}

	shared := 0
	for _, other := range c.Vouchers {
		if other.Code == v.Code {
			shared++
		}
	}
	if shared > 1 || len(c.Vouchers) == 1 {
		c.Code = v.Code
	}
	if v.Usage == VoucherSingleUse {
		c.MaxUses = 1
	}
	return c, more, nil
}

func derivePaymentInformation(c Coupon) (Coupon, error) {
	if c.PaymentInformation == nil || c.PaymentInformation.Invoice == nil {
		return c, ErrMissingInvoice
	}
	inv := c.PaymentInformation.Invoice

	c.InvoiceType = inv.Type
	c.InvoiceDiscountType = inv.DiscountType
	c.InvoiceDiscountValue = ""
	if inv.DiscountValue.Valid {
		c.InvoiceDiscountValue = Amount(inv.DiscountValue.Decimal.String())
	}
	c.InvoiceNumber = inv.Number
	c.InvoicePaymentDate = inv.PaymentDate
	c.TaxDeductedSource = inv.TaxDeductedSource
	c.TaxDeduction = "No"
	if inv.TaxDeductedSource.Valid && !inv.TaxDeductedSource.Decimal.IsZero() {
		c.TaxDeduction = "Yes"
	}
	return c, nil
}

func deriveSeats(c Coupon) Coupon {
	c.CatalogType = CatalogSingleCourse
	if c.CatalogQuery != "" {
		c.CatalogType = CatalogMultipleCourses
		return c
	}
	if len(c.Seats) == 0 {
		return c
	}
	attrs := c.Seats[0].AttributeValues
	c.SeatType = attributeValue(attrs, "certificate_type")
	c.CourseID = attributeValue(attrs, "course_key")
	c.TotalValue = totalValue(c)
	return c
}

// totalValue is quantity times the first seat price, or empty without seats.
func totalValue(c Coupon) decimal.NullDecimal {
	price, ok := c.SeatPrice()
	if !ok {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(price.Mul(decimal.NewFromInt(int64(c.Quantity))))
}
