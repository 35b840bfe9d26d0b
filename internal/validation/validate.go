package validation

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Default messages of built-in rules.
const (
	MsgRequired = "This field is required."
	MsgNumber   = "This value must be a number."
	MsgDate     = "This value must be a date."
	MsgInvalid  = "This value is invalid."
)

// Names of the built-in named patterns.
const (
	PatternNumber   = "number"
	PatternCourseID = "courseId"
)

// courseIDPattern accepts both "org/course/run" and "course-v1:org+course+run".
var courseIDPattern = regexp.MustCompile(`^[^/+]+(/|\+)[^/+]+(/|\+)[^/?]+$`)

type namedPattern struct {
	tag string
	msg string
}

// Patterns is a registry of named patterns backed by validator tags.
type Patterns struct {
	mux      sync.RWMutex
	validate *validator.Validate
	named    map[string]namedPattern
}

// NewPatterns returns a registry with the "number" and "courseId" patterns.
func NewPatterns() *Patterns {
	p := &Patterns{
		validate: validator.New(),
		named:    map[string]namedPattern{},
	}
	p.named[PatternNumber] = namedPattern{tag: "numeric", msg: MsgNumber}
	if err := p.Register(PatternCourseID, courseIDPattern, "A valid course ID is required"); err != nil {
		panic(err)
	}
	return p
}

// Register adds a named pattern that matches re.
func (p *Patterns) Register(name string, re *regexp.Regexp, msg string) error {
	tag := tagFor(name)
	if err := p.validate.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}); err != nil {
		return errors.Wrapf(err, "register %q", name)
	}

	p.mux.Lock()
	defer p.mux.Unlock()
	p.named[name] = namedPattern{tag: tag, msg: msg}
	return nil
}

func tagFor(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return "pattern_" + b.String()
}

// Match reports whether value matches the named pattern, together with the
// default failure message of the pattern.
func (p *Patterns) Match(name, value string) (bool, string, error) {
	p.mux.RLock()
	np, ok := p.named[name]
	p.mux.RUnlock()
	if !ok {
		return false, "", errors.Errorf("unknown pattern %q", name)
	}
	if err := p.validate.Var(value, np.tag); err != nil {
		var verr validator.ValidationErrors
		if errors.As(err, &verr) {
			return false, np.msg, nil
		}
		return false, "", errors.Wrapf(err, "match %q", name)
	}
	return true, np.msg, nil
}

// Errors maps field names to failure messages.
type Errors map[string]string

// Valid reports whether no field failed.
func (e Errors) Valid() bool { return len(e) == 0 }

// Fields returns the failed field names in sorted order.
func (e Errors) Fields() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (e Errors) Error() string {
	var b strings.Builder
	for i, k := range e.Fields() {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(e[k])
	}
	return b.String()
}

// Set is an ordered list of fields validated together.
type Set[T any] struct {
	patterns *Patterns
	fields   []Field[T]
}

// NewSet builds a Set. A nil registry means NewPatterns().
func NewSet[T any](patterns *Patterns, fields ...Field[T]) *Set[T] {
	if patterns == nil {
		patterns = NewPatterns()
	}
	return &Set[T]{patterns: patterns, fields: fields}
}

// Fields returns the names of all fields in the set.
func (s *Set[T]) Fields() []string {
	names := make([]string, 0, len(s.fields))
	for _, f := range s.fields {
		names = append(names, f.Name)
	}
	return names
}

// Validate runs every field and returns the failures. The result is empty
// when the record is valid.
func (s *Set[T]) Validate(rec T) Errors {
	out := Errors{}
	for _, f := range s.fields {
		if msg := s.validateField(f, rec); msg != "" {
			out[f.Name] = msg
		}
	}
	return out
}

// Field validates a single named field. Unknown names pass.
func (s *Set[T]) Field(name string, rec T) string {
	for _, f := range s.fields {
		if f.Name == name {
			return s.validateField(f, rec)
		}
	}
	return ""
}

func (s *Set[T]) validateField(f Field[T], rec T) string {
	var value any
	if f.Value != nil {
		value = f.Value(rec)
	}
	present := HasValue(value)

	// Requiredness is resolved before anything else: an empty optional
	// value passes regardless of the remaining rules.
	for _, r := range f.Rules {
		switch r.kind {
		case KindRequired:
			if !present {
				return override(f, MsgRequired)
			}
		case KindRequiredIf:
			if present {
				continue
			}
			if r.when != nil && r.when(rec) {
				return override(f, MsgRequired)
			}
			return ""
		}
	}

	for _, r := range f.Rules {
		switch r.kind {
		case KindPattern:
			if !present || !r.pattern.MatchString(String(value)) {
				return override(f, MsgInvalid)
			}
		case KindNamed:
			if !present {
				return override(f, MsgRequired)
			}
			ok, msg, err := s.patterns.Match(r.named, String(value))
			if err != nil {
				return override(f, MsgInvalid)
			}
			if !ok {
				return override(f, msg)
			}
		case KindRangeLength:
			n := len([]rune(String(value)))
			if n < r.min || n > r.max {
				return override(f, fmt.Sprintf("Must be between %d and %d characters", r.min, r.max))
			}
		case KindCustom:
			if msg := r.check(value, rec); msg != "" {
				return msg
			}
		}
	}
	return ""
}

func override[T any](f Field[T], msg string) string {
	if f.Message != "" {
		return f.Message
	}
	return msg
}

// HasValue reports whether v counts as entered: nil, blank strings and
// empty collections do not.
func HasValue(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	case *string:
		return v != nil && strings.TrimSpace(*v) != ""
	case []string:
		return len(v) > 0
	case decimal.NullDecimal:
		return v.Valid
	case *decimal.Decimal:
		return v != nil
	default:
		return true
	}
}

// String returns the form of v that patterns are matched against.
func String(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case *string:
		if v == nil {
			return ""
		}
		return *v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case decimal.Decimal:
		return v.String()
	case decimal.NullDecimal:
		if !v.Valid {
			return ""
		}
		return v.Decimal.String()
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
