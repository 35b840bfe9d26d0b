// Package validation evaluates per-field rules against a typed record and
// reports failures as a field name to message mapping.
//
// A Set is built once and Validate is called with a snapshot of the record.
// Conditional requiredness reads sibling fields through the record argument.
package validation

import "regexp"

// Kind identifies the variant of a Rule.
type Kind uint8

const (
	// KindRequired fails when the value is empty.
	KindRequired Kind = iota + 1
	// KindRequiredIf fails when the value is empty and the predicate holds.
	KindRequiredIf
	// KindPattern matches the string form of the value against a regexp.
	KindPattern
	// KindNamed matches the string form of the value against a registered
	// named pattern, e.g. "number".
	KindNamed
	// KindRangeLength bounds the length of the string form of the value.
	KindRangeLength
	// KindCustom delegates to a function returning a message or "".
	KindCustom
)

func (k Kind) String() string {
	switch k {
	case KindRequired:
		return "required"
	case KindRequiredIf:
		return "required_if"
	case KindPattern:
		return "pattern"
	case KindNamed:
		return "named"
	case KindRangeLength:
		return "range_length"
	case KindCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// Rule is a single check on one field of a record of type T.
type Rule[T any] struct {
	kind    Kind
	when    func(T) bool
	pattern *regexp.Regexp
	named   string
	min     int
	max     int
	check   func(value any, rec T) string
}

// Kind reports the rule variant.
func (r Rule[T]) Kind() Kind { return r.kind }

// Required marks the field as always required.
func Required[T any]() Rule[T] {
	return Rule[T]{kind: KindRequired}
}

// RequiredIf marks the field as required when pred holds for the record
// at validation time. When pred does not hold and the value is empty, the
// remaining rules of the field are skipped.
func RequiredIf[T any](pred func(T) bool) Rule[T] {
	return Rule[T]{kind: KindRequiredIf, when: pred}
}

// Optional is RequiredIf with a predicate that never holds: an empty value
// passes and short-circuits the other rules of the field.
func Optional[T any]() Rule[T] {
	return RequiredIf(func(T) bool { return false })
}

// Pattern requires the value to match re.
func Pattern[T any](re *regexp.Regexp) Rule[T] {
	return Rule[T]{kind: KindPattern, pattern: re}
}

// Named requires the value to match the named pattern registered in the
// Patterns used by the Set.
func Named[T any](name string) Rule[T] {
	return Rule[T]{kind: KindNamed, named: name}
}

// RangeLength requires the length of the value to be within [min, max].
func RangeLength[T any](min, max int) Rule[T] {
	return Rule[T]{kind: KindRangeLength, min: min, max: max}
}

// Custom runs fn with the field value and the whole record. A non-empty
// return value is the failure message.
func Custom[T any](fn func(value any, rec T) string) Rule[T] {
	return Rule[T]{kind: KindCustom, check: fn}
}

// Field binds a list of rules to one field of the record.
type Field[T any] struct {
	// Name is the key used in Errors.
	Name string
	// Value extracts the field value from the record.
	Value func(T) any
	// Rules are evaluated in order; the first failure wins.
	Rules []Rule[T]
	// Message, when set, replaces the message of every built-in rule of
	// this field. Custom rule messages are never replaced.
	Message string
}
