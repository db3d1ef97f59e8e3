// Package validation checks request structs against their `validate` tags and
// converts failures into an apperr validation error naming every bad field.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"selaski/internal/apperr"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(fieldName)
	_ = v.RegisterValidation("iso8601", func(fl validator.FieldLevel) bool {
		_, err := ParseTimestamp(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("positive_int", func(fl validator.FieldLevel) bool {
		n, err := strconv.Atoi(strings.TrimSpace(fl.Field().String()))
		return err == nil && n >= 1
	})
	return v
}

// fieldName reports fields by their wire name: json first, then form.
func fieldName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return fld.Name
}

// Struct validates v. It returns nil or an *apperr.Error of kind validation.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Internal(fmt.Errorf("validate %T: %w", v, err))
	}
	fields := lo.Map(verrs, func(fe validator.FieldError, _ int) apperr.FieldError {
		return apperr.FieldError{Field: fe.Field(), Message: describe(fe)}
	})
	return apperr.Validation(fields...)
}

// Field builds a single-field validation error for checks done outside struct tags.
func Field(name, message string) error {
	return apperr.Validation(apperr.FieldError{Field: name, Message: message})
}

func describe(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required", "notblank":
		return name + " should not be empty"
	case "email":
		return name + " must be an email"
	case "iso8601":
		return name + " must be a valid ISO 8601 date string"
	case "positive_int":
		return name + " must be an integer not less than 1"
	case "gt", "gte", "min":
		return fmt.Sprintf("%s must not be less than %s", name, fe.Param())
	case "max", "lte":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", name, fe.Param())
		}
		return fmt.Sprintf("%s must not be greater than %s", name, fe.Param())
	default:
		return name + " is invalid"
	}
}

// Extended and basic zone offsets, minute precision, and reduced date forms.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006-01",
}

// ParseTimestamp accepts ISO 8601 date strings. Values without a zone are UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}
