package coupon

import (
	"fmt"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
)

const displayTimeLayout = "01/02/2006 3:04 PM"

// Voucher code statuses.
const (
	StatusActive   = "ACTIVE"
	StatusInactive = "INACTIVE"
)

var hundred = decimal.NewFromInt(100)

// CodeStatus is ACTIVE while now falls inside the voucher window.
func CodeStatus(v Voucher, now time.Time) string {
	start, okStart := ParseDate(v.StartDatetime)
	end, okEnd := ParseDate(v.EndDatetime)
	if okStart && okEnd && now.After(start) && now.Before(end) {
		return StatusActive
	}
	return StatusInactive
}

// TypeLabel names the kind of code a voucher carries.
func TypeLabel(v Voucher) string {
	if v.Benefit != nil && v.Benefit.Type == BenefitPercentage && v.Benefit.Value.Equal(hundred) {
		return "Enrollment Code"
	}
	return "Discount Code"
}

// DiscountValue formats the voucher benefit as "50%" or "$12".
func DiscountValue(v Voucher) string {
	if v.Benefit == nil {
		return ""
	}
	return formatBenefit(v.Benefit.Type, v.Benefit.Value)
}

func formatBenefit(t BenefitType, value decimal.Decimal) string {
	if t == BenefitPercentage {
		return value.String() + "%"
	}
	return "$" + value.String()
}

// FormatDateTime renders an API datetime as MM/DD/YYYY h:mm A in UTC.
// Unparsable input is returned unchanged.
func FormatDateTime(s string) string {
	t, ok := ParseDate(s)
	if !ok {
		return s
	}
	return t.UTC().Format(displayTimeLayout)
}

// FormatLastEdited renders [user, datetime] as "user - 01/15/2016 7:26 AM".
func FormatLastEdited(edited []string) string {
	if len(edited) < 2 {
		return ""
	}
	return edited[0] + " - " + FormatDateTime(edited[1])
}

// UsageLimitation describes a voucher type in a sentence.
func UsageLimitation(vt VoucherType) string {
	switch vt {
	case VoucherSingleUse:
		return "Can be used once by one customer"
	case VoucherOncePerCustomer:
		return "Can be used once by multiple customers"
	case VoucherMultiUse:
		return "Can be used multiple times by multiple customers"
	default:
		return ""
	}
}

// TaxDeductedSource formats the deducted percentage, or "" when unset.
func TaxDeductedSource(v decimal.NullDecimal) string {
	if !v.Valid {
		return ""
	}
	return v.Decimal.String() + "%"
}

// FormatSeatTypes joins seat types for display.
func FormatSeatTypes(types []string) string {
	return strings.Join(types, ", ")
}

// InvoiceDiscountValue formats a postpaid invoice discount, or "" when unset.
func InvoiceDiscountValue(t BenefitType, value string) string {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return ""
	}
	return formatBenefit(t, d)
}

// ReportURL is the upstream path of the coupon CSV report.
func ReportURL(id int) string {
	return fmt.Sprintf("/api/v2/coupons/coupon_reports/%d", id)
}

// ReportFilename names the downloaded CSV report of a coupon.
func ReportFilename(title string) string {
	return slug.Make("Coupon Report for "+title) + ".csv"
}

// VoucherRow is one line of the voucher table.
type VoucherRow struct {
	Code        string `json:"code"`
	Status      string `json:"status"`
	RedeemURL   string `json:"redeem_url,omitempty"`
	NumOrders   int    `json:"num_orders"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Discount    string `json:"discount"`
	Limitations string `json:"usage_limitation"`
}

// Detail is the read-only presentation of a coupon.
type Detail struct {
	ID                   int          `json:"id"`
	Title                string       `json:"title"`
	Partner              string       `json:"partner,omitempty"`
	Type                 string       `json:"coupon_type"`
	Status               string       `json:"code_status"`
	LastEdited           string       `json:"last_edited"`
	Category             string       `json:"category"`
	DiscountValue        string       `json:"discount_value"`
	CatalogType          CatalogType  `json:"catalog_type"`
	CourseID             string       `json:"course_id,omitempty"`
	SeatType             string       `json:"seat_type,omitempty"`
	CatalogQuery         string       `json:"catalog_query,omitempty"`
	SeatTypes            string       `json:"seat_types"`
	StartDate            string       `json:"start_date"`
	EndDate              string       `json:"end_date"`
	UsageLimitation      string       `json:"usage_limitation"`
	Client               string       `json:"client"`
	MaxUses              int          `json:"max_uses"`
	InvoiceType          InvoiceType  `json:"invoice_type"`
	InvoiceNumber        string       `json:"invoice_number,omitempty"`
	InvoicedAmount       string       `json:"invoiced_amount,omitempty"`
	InvoicePaymentDate   string       `json:"invoice_payment_date,omitempty"`
	InvoiceDiscountType  BenefitType  `json:"invoice_discount_type,omitempty"`
	InvoiceDiscountValue string       `json:"invoice_discount_value,omitempty"`
	TaxDeductedSource    string       `json:"tax_deducted_source,omitempty"`
	ReportURL            string       `json:"report_url"`
	Vouchers             []VoucherRow `json:"vouchers"`
}

// NewDetail builds the presentation of a derived coupon. Invoice fields are
// only filled for the invoice type they belong to.
func NewDetail(c Coupon, partner string, now time.Time) Detail {
	d := Detail{
		ID:              c.ID,
		Title:           c.Title,
		Partner:         partner,
		LastEdited:      FormatLastEdited(c.LastEdited),
		Category:        c.Category.Name,
		CatalogType:     c.CatalogType,
		SeatTypes:       FormatSeatTypes(c.CourseSeatTypes),
		UsageLimitation: UsageLimitation(c.VoucherType),
		Client:          c.Client,
		MaxUses:         c.MaxUses,
		InvoiceType:     c.InvoiceType,
		ReportURL:       ReportURL(c.ID),
		Vouchers:        make([]VoucherRow, 0, len(c.Vouchers)),
	}
	if v, ok := c.FirstVoucher(); ok {
		d.Type = TypeLabel(v)
		d.Status = CodeStatus(v, now)
		d.DiscountValue = DiscountValue(v)
		d.StartDate = FormatDateTime(v.StartDatetime)
		d.EndDate = FormatDateTime(v.EndDatetime)
	}
	if c.CatalogType == CatalogMultipleCourses {
		d.CatalogQuery = c.CatalogQuery
	} else {
		d.CourseID = c.CourseID
		d.SeatType = c.SeatType
	}

	switch c.InvoiceType {
	case InvoicePrepaid:
		d.InvoiceNumber = c.InvoiceNumber
		d.InvoicedAmount = "$" + string(c.Price)
		d.InvoicePaymentDate = FormatDateTime(c.InvoicePaymentDate)
	case InvoicePostpaid:
		d.InvoiceDiscountType = c.InvoiceDiscountType
		d.InvoiceDiscountValue = InvoiceDiscountValue(c.InvoiceDiscountType, string(c.InvoiceDiscountValue))
	}
	if c.TaxDeduction == "Yes" {
		d.TaxDeductedSource = TaxDeductedSource(c.TaxDeductedSource)
	}

	for _, v := range c.Vouchers {
		d.Vouchers = append(d.Vouchers, VoucherRow{
			Code:        v.Code,
			Status:      CodeStatus(v, now),
			RedeemURL:   v.Redeem,
			NumOrders:   v.NumOrders,
			StartDate:   FormatDateTime(v.StartDatetime),
			EndDate:     FormatDateTime(v.EndDatetime),
			Discount:    DiscountValue(v),
			Limitations: UsageLimitation(v.Usage),
		})
	}
	return d
}
