package coupon

import (
	"slices"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// CreatePayload is the full record sent when a coupon is created.
type CreatePayload struct {
	Coupon        Coupon
	StartDatetime string
	EndDatetime   string
}

// NewCreatePayload applies the save-time derivation: start and end dates
// become UTC datetimes and enrollment codes are always a full discount.
func NewCreatePayload(c Coupon) (CreatePayload, error) {
	c = clone(c)

	start, err := utcTimestamp("start_date", c.StartDate)
	if err != nil {
		return CreatePayload{}, errors.Wrap(err, "start")
	}
	end, err := utcTimestamp("end_date", c.EndDate)
	if err != nil {
		return CreatePayload{}, errors.Wrap(err, "end")
	}

	if c.CouponType == TypeEnrollmentCode {
		c.BenefitType = BenefitPercentage
		c.BenefitValue = "100"
	}
	return CreatePayload{Coupon: c, StartDatetime: start, EndDatetime: end}, nil
}

// Encode writes the payload as a JSON object.
func (p CreatePayload) Encode(e *jx.Encoder) {
	c := p.Coupon

	e.ObjStart()
	if c.ID != 0 {
		e.FieldStart("id")
		e.Int(c.ID)
	}
	strField(e, "title", c.Title)
	e.FieldStart("category")
	e.ObjStart()
	e.FieldStart("id")
	e.Int(c.Category.ID)
	strField(e, "name", c.Category.Name)
	e.ObjEnd()
	strField(e, "client", c.Client)
	strField(e, "code", c.Code)
	if c.Note != "" {
		strField(e, "note", c.Note)
	}
	strField(e, "coupon_type", string(c.CouponType))
	strField(e, "catalog_type", string(c.CatalogType))
	strField(e, "catalog_query", c.CatalogQuery)
	strsField(e, "course_seat_types", c.CourseSeatTypes)
	strField(e, "course_id", c.CourseID)
	strField(e, "seat_type", c.SeatType)
	e.FieldStart("stock_record_ids")
	e.ArrStart()
	for _, id := range c.StockRecordIDs {
		e.Int(id)
	}
	e.ArrEnd()
	e.FieldStart("quantity")
	e.Int(c.Quantity)
	numField(e, "price", string(c.Price))
	e.FieldStart("total_value")
	if c.TotalValue.Valid {
		e.Raw([]byte(c.TotalValue.Decimal.String()))
	} else {
		e.Null()
	}
	strField(e, "benefit_type", string(c.BenefitType))
	numField(e, "benefit_value", string(c.BenefitValue))
	strField(e, "voucher_type", string(c.VoucherType))
	e.FieldStart("max_uses")
	e.Int(c.MaxUses)
	strField(e, "start_date", c.StartDate)
	strField(e, "end_date", c.EndDate)
	strField(e, "start_datetime", p.StartDatetime)
	strField(e, "end_datetime", p.EndDatetime)
	strField(e, "invoice_type", string(c.InvoiceType))
	strField(e, "invoice_number", c.InvoiceNumber)
	strField(e, "invoice_payment_date", c.InvoicePaymentDate)
	strField(e, "invoice_discount_type", string(c.InvoiceDiscountType))
	numField(e, "invoice_discount_value", string(c.InvoiceDiscountValue))
	e.FieldStart("tax_deducted_source")
	if c.TaxDeductedSource.Valid {
		e.Raw([]byte(c.TaxDeductedSource.Decimal.String()))
	} else {
		e.Null()
	}
	strField(e, "tax_deduction", c.TaxDeduction)
	e.ObjEnd()
}

// Patch holds the fields of a partial update. Nil fields are not sent.
type Patch struct {
	Title           *string  `json:"title,omitempty"`
	StartDate       *string  `json:"start_date,omitempty"`
	EndDate         *string  `json:"end_date,omitempty"`
	Note            *string  `json:"note,omitempty"`
	MaxUses         *int     `json:"max_uses,omitempty"`
	BenefitValue    *string  `json:"benefit_value,omitempty"`
	CatalogQuery    *string  `json:"catalog_query,omitempty"`
	CourseSeatTypes []string `json:"course_seat_types,omitempty"`
	InvoiceType     *string  `json:"invoice_type,omitempty"`
	InvoiceNumber   *string  `json:"invoice_number,omitempty"`
}

// Apply returns c with the patched fields overlaid.
func (p Patch) Apply(c Coupon) Coupon {
	c = clone(c)
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&c.Title, p.Title)
	set(&c.StartDate, p.StartDate)
	set(&c.EndDate, p.EndDate)
	set(&c.Note, p.Note)
	set(&c.CatalogQuery, p.CatalogQuery)
	set(&c.InvoiceNumber, p.InvoiceNumber)
	if p.MaxUses != nil {
		c.MaxUses = *p.MaxUses
	}
	if p.BenefitValue != nil {
		c.BenefitValue = Amount(*p.BenefitValue)
	}
	if p.CourseSeatTypes != nil {
		c.CourseSeatTypes = slices.Clone(p.CourseSeatTypes)
	}
	if p.InvoiceType != nil {
		c.InvoiceType = InvoiceType(*p.InvoiceType)
	}
	return c
}

// Fields returns the names of the rules affected by p. Both dates are
// checked when either changes, and a new invoice type rechecks the invoice
// fields it makes required.
func (p Patch) Fields() []string {
	var out []string
	if p.Title != nil {
		out = append(out, "title")
	}
	if p.StartDate != nil || p.EndDate != nil {
		out = append(out, "start_date", "end_date")
	}
	if p.BenefitValue != nil {
		out = append(out, "benefit_value")
	}
	if p.CatalogQuery != nil {
		out = append(out, "catalog_query")
	}
	if p.CourseSeatTypes != nil {
		out = append(out, "course_seat_types")
	}
	if p.InvoiceType != nil {
		out = append(out, "invoice_type", "invoice_number", "price", "invoice_payment_date", "invoice_discount_value")
	} else if p.InvoiceNumber != nil {
		out = append(out, "invoice_number")
	}
	return out
}

type patchField struct {
	key   string
	write func(e *jx.Encoder)
}

// PatchPayload is the renamed subset of fields sent on a partial update.
type PatchPayload struct {
	fields []patchField
}

// NewPatchPayload renames start_date and end_date to UTC start_datetime and
// end_datetime, and sends title both as name and title. Other fields pass
// through unchanged.
func NewPatchPayload(p Patch) (PatchPayload, error) {
	var out PatchPayload
	add := func(key string, write func(e *jx.Encoder)) {
		out.fields = append(out.fields, patchField{key: key, write: write})
	}
	str := func(key, v string) {
		add(key, func(e *jx.Encoder) { e.Str(v) })
	}

	if p.StartDate != nil {
		v, err := utcTimestamp("start_date", *p.StartDate)
		if err != nil {
			return PatchPayload{}, errors.Wrap(err, "start")
		}
		str("start_datetime", v)
	}
	if p.EndDate != nil {
		v, err := utcTimestamp("end_date", *p.EndDate)
		if err != nil {
			return PatchPayload{}, errors.Wrap(err, "end")
		}
		str("end_datetime", v)
	}
	if p.Title != nil {
		str("name", *p.Title)
		str("title", *p.Title)
	}
	if p.Note != nil {
		str("note", *p.Note)
	}
	if p.MaxUses != nil {
		n := *p.MaxUses
		add("max_uses", func(e *jx.Encoder) { e.Int(n) })
	}
	if p.BenefitValue != nil {
		v := *p.BenefitValue
		add("benefit_value", func(e *jx.Encoder) { writeNumber(e, v) })
	}
	if p.CatalogQuery != nil {
		str("catalog_query", *p.CatalogQuery)
	}
	if p.CourseSeatTypes != nil {
		types := p.CourseSeatTypes
		add("course_seat_types", func(e *jx.Encoder) { writeStrs(e, types) })
	}
	if p.InvoiceType != nil {
		str("invoice_type", *p.InvoiceType)
	}
	if p.InvoiceNumber != nil {
		str("invoice_number", *p.InvoiceNumber)
	}
	return out, nil
}

// Keys returns the transmitted field names in order.
func (p PatchPayload) Keys() []string {
	keys := make([]string, 0, len(p.fields))
	for _, f := range p.fields {
		keys = append(keys, f.key)
	}
	return keys
}

// Empty reports whether there is nothing to send.
func (p PatchPayload) Empty() bool { return len(p.fields) == 0 }

// Encode writes the payload as a JSON object.
func (p PatchPayload) Encode(e *jx.Encoder) {
	e.ObjStart()
	for _, f := range p.fields {
		e.FieldStart(f.key)
		f.write(e)
	}
	e.ObjEnd()
}

func strField(e *jx.Encoder, key, v string) {
	e.FieldStart(key)
	e.Str(v)
}

func strsField(e *jx.Encoder, key string, v []string) {
	e.FieldStart(key)
	writeStrs(e, v)
}

func writeStrs(e *jx.Encoder, v []string) {
	e.ArrStart()
	for _, s := range v {
		e.Str(s)
	}
	e.ArrEnd()
}

func numField(e *jx.Encoder, key, v string) {
	e.FieldStart(key)
	writeNumber(e, v)
}

// writeNumber writes v as a JSON number when it parses, as a string otherwise.
func writeNumber(e *jx.Encoder, v string) {
	d, err := decimal.NewFromString(v)
	if err != nil {
		e.Str(v)
		return
	}
	e.Raw([]byte(d.String()))
}
