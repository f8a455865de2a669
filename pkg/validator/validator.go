package validator

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/natusdeed/fashion-site-sub000/pkg/slug"
)

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	// Prices are compared as numbers, so gte/lte work on decimal fields.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slug.Valid(fl.Field().String())
	})
	return v
}

// Validate checks s against its go-playground/validator tags. Field errors
// are returned as a *ValidationError keyed by JSON field name.
func Validate(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	if fieldErrs, ok := err.(validator.ValidationErrors); ok {
		return &ValidationError{Errors: fieldErrs}
	}
	return err
}

// ValidationError lists the fields that failed and why.
type ValidationError struct {
	Errors validator.ValidationErrors
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("field '%s' %s", fieldPath(fe), message(fe)))
	}
	return strings.Join(msgs, "; ")
}

// Fields maps each failing field to a human readable message. Nested and
// list fields use their path below the validated struct, e.g. "sizes[1]".
func (e *ValidationError) Fields() map[string]string {
	fields := make(map[string]string, len(e.Errors))
	for _, fe := range e.Errors {
		fields[fieldPath(fe)] = message(fe)
	}
	return fields
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	p := fe.Param()
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_without":
		return fmt.Sprintf("is required when %s is empty", p)
	case "min", "max":
		bound := "at least"
		if fe.Tag() == "max" {
			bound = "at most"
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be %s %s characters", bound, p)
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must have %s %s entries", bound, p)
		}
		return fmt.Sprintf("must be %s %s", bound, p)
	case "gt":
		return "must be greater than " + p
	case "gte":
		return "must be greater than or equal to " + p
	case "lte":
		return "must be less than or equal to " + p
	case "slug":
		return "must be a lowercase, hyphen-separated slug"
	case "oneof":
		return "must be one of: " + p
	default:
		return fmt.Sprintf("failed on '%s' validation", fe.Tag())
	}
}
