package coupon

import (
	"regexp"

	"github.com/go-faster/errors"

	"github.com/xenking/course-coupons/internal/validation"
)

const (
	msgCode       = "This field must be empty or contain 1-16 alphanumeric characters."
	msgSeatTypes  = "At least one seat type must be selected."
	msgQuantity   = "This value must be at least 1."
	msgBeforeEnd  = "Must occur before end date"
	msgAfterStart = "Must occur after start date"
)

var codePattern = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// Validator checks coupon records before they are saved.
type Validator struct {
	rules *validation.Set[Coupon]
}

// NewValidator builds the coupon rule set. A nil registry uses the default
// named patterns.
func NewValidator(patterns *validation.Patterns) *Validator {
	return &Validator{rules: validation.NewSet(patterns, fields()...)}
}

// Validate returns the per-field failures of c. The result is empty when c
// may be saved.
func (v *Validator) Validate(c Coupon) validation.Errors {
	return v.rules.Validate(c)
}

// Field validates a single field of c.
func (v *Validator) Field(name string, c Coupon) string {
	return v.rules.Field(name, c)
}

// Check derives the dependent fields of c and validates the result.
func (v *Validator) Check(c Coupon, changed Change) (Coupon, validation.Errors, error) {
	derived, err := Derive(c, changed)
	if err != nil {
		return Coupon{}, nil, errors.Wrap(err, "derive")
	}
	return derived, v.Validate(derived), nil
}

// CheckPatch validates the fields p touches on c with p applied. Fields the
// patch leaves alone are not rechecked.
func (v *Validator) CheckPatch(c Coupon, p Patch) validation.Errors {
	merged := p.Apply(c)
	errs := validation.Errors{}
	for _, name := range p.Fields() {
		if msg := v.Field(name, merged); msg != "" {
			errs[name] = msg
		}
	}
	return errs
}

type rule = validation.Rule[Coupon]

func single(c Coupon) bool   { return c.CatalogType == CatalogSingleCourse }
func multiple(c Coupon) bool { return c.CatalogType == CatalogMultipleCourses }

func fields() []validation.Field[Coupon] {
	return []validation.Field[Coupon]{
		{
			Name: "category",
			Value: func(c Coupon) any {
				if c.Category.ID == 0 && c.Category.Name == "" {
					return nil
				}
				return c.Category.Name
			},
			Rules: []rule{validation.Required[Coupon]()},
		},
		{
			Name:    "course_id",
			Value:   func(c Coupon) any { return c.CourseID },
			Rules:   []rule{validation.Named[Coupon](validation.PatternCourseID), validation.RequiredIf(single)},
			Message: "A valid course ID is required",
		},
		{
			Name:  "title",
			Value: func(c Coupon) any { return c.Title },
			Rules: []rule{validation.Required[Coupon]()},
		},
		{
			Name:  "client",
			Value: func(c Coupon) any { return c.Client },
			Rules: []rule{validation.Required[Coupon]()},
		},
		{
			Name:  "seat_type",
			Value: func(c Coupon) any { return c.SeatType },
			Rules: []rule{validation.RequiredIf(single)},
		},
		{
			Name:  "quantity",
			Value: func(c Coupon) any { return c.Quantity },
			Rules: []rule{
				validation.Named[Coupon](validation.PatternNumber),
				validation.Custom(func(_ any, c Coupon) string {
					if c.Quantity < 1 {
						return msgQuantity
					}
					return ""
				}),
			},
		},
		{
			Name:  "benefit_value",
			Value: func(c Coupon) any { return string(c.BenefitValue) },
			Rules: []rule{
				validation.Named[Coupon](validation.PatternNumber),
				validation.RequiredIf(func(c Coupon) bool { return c.CouponType == TypeDiscountCode }),
			},
		},
		{
			Name:  "invoice_type",
			Value: func(c Coupon) any { return string(c.InvoiceType) },
			Rules: []rule{validation.Required[Coupon]()},
		},
		{
			Name:  "invoice_number",
			Value: func(c Coupon) any { return c.InvoiceNumber },
			Rules: []rule{validation.RequiredIf(Coupon.IsPrepaid)},
		},
		{
			Name:  "price",
			Value: func(c Coupon) any { return string(c.Price) },
			Rules: []rule{validation.Named[Coupon](validation.PatternNumber), validation.RequiredIf(Coupon.IsPrepaid)},
		},
		{
			Name:  "invoice_payment_date",
			Value: func(c Coupon) any { return c.InvoicePaymentDate },
			Rules: []rule{validation.RequiredIf(Coupon.IsPrepaid)},
		},
		{
			Name:  "invoice_discount_value",
			Value: func(c Coupon) any { return string(c.InvoiceDiscountValue) },
			Rules: []rule{
				validation.Named[Coupon](validation.PatternNumber),
				validation.RequiredIf(func(c Coupon) bool { return c.InvoiceType == InvoicePostpaid }),
			},
		},
		{
			Name:  "code",
			Value: func(c Coupon) any { return c.Code },
			Rules: []rule{
				validation.Pattern[Coupon](codePattern),
				validation.Optional[Coupon](),
				validation.RangeLength[Coupon](1, 16),
			},
			Message: msgCode,
		},
		{
			Name:  "catalog_query",
			Value: func(c Coupon) any { return c.CatalogQuery },
			Rules: []rule{validation.RequiredIf(multiple)},
		},
		{
			Name:  "course_seat_types",
			Value: func(c Coupon) any { return c.CourseSeatTypes },
			Rules: []rule{validation.Custom(func(v any, c Coupon) string {
				if multiple(c) && !validation.HasValue(v) {
					return msgSeatTypes
				}
				return ""
			})},
		},
		{
			Name:  "start_date",
			Value: func(c Coupon) any { return c.StartDate },
			Rules: []rule{validation.Custom(func(_ any, c Coupon) string {
				return checkDate(c.StartDate, c.EndDate, true)
			})},
		},
		{
			Name:  "end_date",
			Value: func(c Coupon) any { return c.EndDate },
			Rules: []rule{validation.Custom(func(_ any, c Coupon) string {
				return checkDate(c.EndDate, c.StartDate, false)
			})},
		},
	}
}

// checkDate validates value and orders it against other, which is only
// compared when it parses.
func checkDate(value, other string, isStart bool) string {
	if !validation.HasValue(value) {
		return validation.MsgRequired
	}
	t, ok := ParseDate(value)
	if !ok {
		return validation.MsgDate
	}
	o, ok := ParseDate(other)
	if !ok {
		return ""
	}
	switch {
	case isStart && t.After(o):
		return msgBeforeEnd
	case !isStart && t.Before(o):
		return msgAfterStart
	}
	return ""
}
