package coupon

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func verifiedSeat(price string) Seat {
	return Seat{
		Price: d(price),
		AttributeValues: []Attribute{
			{Name: "certificate_type", Value: "verified"},
			{Name: "course_key", Value: "course-v1:edX+DemoX+Demo_Course"},
		},
	}
}

func voucher(code string, usage VoucherType, benefit *Benefit) Voucher {
	return Voucher{
		Code:          code,
		StartDatetime: "2015-01-01T00:00:00Z",
		EndDatetime:   "2016-01-01T00:00:00Z",
		Usage:         usage,
		Benefit:       benefit,
	}
}

func TestDerive_SingleUseForcesQuantityAndMaxUses(t *testing.T) {
	for _, prior := range []int{0, 1, 5, 100} {
		c := New()
		c.Quantity = prior
		c.MaxUses = prior
		c.Seats = []Seat{verifiedSeat("10.00")}

		got := SetVoucherType(c, VoucherSingleUse)
		assert.Equal(t, 1, got.Quantity)
		assert.Equal(t, 1, got.MaxUses)
		assert.True(t, got.TotalValue.Decimal.Equal(d("10.00")))
	}

	c := New()
	c.Quantity = 7
	c.MaxUses = 5
	got := SetVoucherType(c, VoucherMultiUse)
	assert.Equal(t, 7, got.Quantity)
	assert.Equal(t, 5, got.MaxUses)

	// A submitted form goes through the same step.
	c = New()
	c.VoucherType = VoucherSingleUse
	c.MaxUses = 5
	got, err := Derive(c, Submitted(c))
	require.NoError(t, err)
	assert.Equal(t, 1, got.MaxUses)
}

func TestDerive_TotalValue(t *testing.T) {
	tests := []struct {
		name     string
		seats    []Seat
		quantity int
		want     decimal.NullDecimal
	}{
		{
			name:     "quantity times first seat price",
			seats:    []Seat{verifiedSeat("100.00"), verifiedSeat("1.00")},
			quantity: 3,
			want:     decimal.NewNullDecimal(d("300")),
		},
		{
			name:     "no seat",
			quantity: 3,
			want:     decimal.NullDecimal{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			c.Seats = tt.seats
			got := SetQuantity(c, tt.quantity)
			assert.Equal(t, tt.want.Valid, got.TotalValue.Valid)
			if tt.want.Valid {
				assert.True(t, tt.want.Decimal.Equal(got.TotalValue.Decimal))
			}
		})
	}
}

func TestDerive_Seats(t *testing.T) {
	c := New()
	c.Quantity = 2
	c.Seats = []Seat{verifiedSeat("50.00")}

	got, err := Derive(c, ChangeSeats)
	require.NoError(t, err)
	assert.Equal(t, CatalogSingleCourse, got.CatalogType)
	assert.Equal(t, "verified", got.SeatType)
	assert.Equal(t, "course-v1:edX+DemoX+Demo_Course", got.CourseID)
	assert.True(t, got.TotalValue.Decimal.Equal(d("100")))

	c.Seats = []Seat{{Price: d("50.00")}}
	got, err = Derive(c, ChangeSeats)
	require.NoError(t, err)
	assert.Empty(t, got.SeatType)
	assert.Empty(t, got.CourseID)

	c = New()
	c.CatalogQuery = "org:edX"
	c.Seats = []Seat{verifiedSeat("50.00")}
	got, err = Derive(c, ChangeSeats)
	require.NoError(t, err)
	assert.Equal(t, CatalogMultipleCourses, got.CatalogType)
	assert.Empty(t, got.SeatType)
}

func TestDerive_Vouchers(t *testing.T) {
	benefit := &Benefit{Type: BenefitAbsolute, Value: d("12")}

	tests := []struct {
		name        string
		couponType  CouponType
		vouchers    []Voucher
		wantCode    string
		wantQty     int
		wantMaxUses int
		wantBenefit Amount
	}{
		{
			name:        "single voucher sets code",
			couponType:  TypeDiscountCode,
			vouchers:    []Voucher{voucher("SAVE12", VoucherOncePerCustomer, benefit)},
			wantCode:    "SAVE12",
			wantQty:     1,
			wantMaxUses: 5,
			wantBenefit: "12",
		},
		{
			name:       "shared code sets code",
			couponType: TypeDiscountCode,
			vouchers: []Voucher{
				voucher("SHARED", VoucherMultiUse, benefit),
				voucher("SHARED", VoucherMultiUse, benefit),
			},
			wantCode:    "SHARED",
			wantQty:     2,
			wantMaxUses: 5,
			wantBenefit: "12",
		},
		{
			name:       "distinct codes leave code alone",
			couponType: TypeEnrollmentCode,
			vouchers: []Voucher{
				voucher("AAA", VoucherSingleUse, nil),
				voucher("BBB", VoucherSingleUse, nil),
				voucher("CCC", VoucherSingleUse, nil),
			},
			wantQty:     3,
			wantMaxUses: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			c.MaxUses = 5
			c.CouponType = tt.couponType
			c.Seats = []Seat{verifiedSeat("10.00")}
			c.Vouchers = tt.vouchers

			got, err := Derive(c, ChangeVouchers)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantQty, got.Quantity)
			assert.Equal(t, tt.wantMaxUses, got.MaxUses)
			assert.Equal(t, tt.wantBenefit, got.BenefitValue)
			assert.Equal(t, tt.vouchers[0].Usage, got.VoucherType)
			assert.Equal(t, "2015-01-01T00:00:00Z", got.StartDate)
			assert.Equal(t, "2016-01-01T00:00:00Z", got.EndDate)
			assert.True(t, got.TotalValue.Decimal.Equal(d("10").Mul(decimal.NewFromInt(int64(tt.wantQty)))))
		})
	}
}

func TestDerive_Errors(t *testing.T) {
	c := New()
	_, err := Derive(c, ChangeVouchers)
	require.ErrorIs(t, err, ErrNoVouchers)

	c.CouponType = TypeDiscountCode
	c.Vouchers = []Voucher{voucher("X", VoucherMultiUse, nil)}
	_, err = Derive(c, ChangeVouchers)
	require.ErrorIs(t, err, ErrMissingBenefit)

	_, err = Derive(New(), ChangePaymentInformation)
	require.ErrorIs(t, err, ErrMissingInvoice)
}

func TestDerive_PaymentInformation(t *testing.T) {
	c := New()
	c.PaymentInformation = &PaymentInformation{Invoice: &Invoice{
		Type:              InvoicePostpaid,
		Number:            "INV-001",
		PaymentDate:       "2016-01-01T00:00:00Z",
		DiscountType:      BenefitPercentage,
		DiscountValue:     decimal.NewNullDecimal(d("50")),
		TaxDeductedSource: decimal.NewNullDecimal(d("25")),
	}}

	got, err := Derive(c, ChangePaymentInformation)
	require.NoError(t, err)
	assert.Equal(t, InvoicePostpaid, got.InvoiceType)
	assert.Equal(t, "INV-001", got.InvoiceNumber)
	assert.Equal(t, "2016-01-01T00:00:00Z", got.InvoicePaymentDate)
	assert.Equal(t, BenefitPercentage, got.InvoiceDiscountType)
	assert.Equal(t, Amount("50"), got.InvoiceDiscountValue)
	assert.Equal(t, "Yes", got.TaxDeduction)

	c.PaymentInformation.Invoice.TaxDeductedSource = decimal.NullDecimal{}
	got, err = Derive(c, ChangePaymentInformation)
	require.NoError(t, err)
	assert.Equal(t, "No", got.TaxDeduction)
}

func TestDerive_DoesNotMutateInput(t *testing.T) {
	c := New()
	c.CouponType = TypeDiscountCode
	c.Vouchers = []Voucher{voucher("SAVE", VoucherSingleUse, &Benefit{Type: BenefitPercentage, Value: d("10")})}
	c.Quantity = 9

	_, err := Derive(c, ChangeAll&^ChangePaymentInformation)
	require.NoError(t, err)
	assert.Equal(t, 9, c.Quantity)
	assert.Empty(t, c.Code)
}

func TestFetched(t *testing.T) {
	c := New()
	assert.Equal(t, ChangeSeats|ChangeQuantity, Fetched(c))

	c.Vouchers = []Voucher{voucher("X", VoucherMultiUse, nil)}
	c.PaymentInformation = &PaymentInformation{Invoice: &Invoice{Type: InvoicePrepaid}}
	assert.True(t, Fetched(c).Has(ChangeVouchers|ChangePaymentInformation))

	c.PaymentInformation = &PaymentInformation{}
	assert.False(t, Fetched(c).Has(ChangePaymentInformation))
}
