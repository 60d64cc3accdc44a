// Package validate turns struct tag validation failures into the message
// lists carried by the response envelope.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"site-inspector/internal/model"
	"site-inspector/pkg/apierror"
)

var v = newValidator()

var messages = map[string]string{
	"required": "The field '%s' is required.",
	"email":    "The field '%s' must be a valid email address.",
	"uuid":     "The field '%s' must be a valid identifier.",
	"min":      "The field '%s' must be at least %s characters long.",
	"max":      "The field '%s' must be no longer than %s characters.",
	"oneof":    "The field '%s' must be one of [%s].",
	"nefield":  "The field '%s' must differ from '%s'.",
}

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	val.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return val
}

// Struct validates s and returns nil or an *apierror.APIError wrapping
// model.ErrValidation.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apierror.Validation(model.ErrValidation, err.Error())
	}

	out := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, message(fe))
	}
	return apierror.Validation(model.ErrValidation, out...)
}

// Fail builds a validation error from ad-hoc messages.
func Fail(msgs ...string) error {
	return apierror.Validation(model.ErrValidation, msgs...)
}

func message(fe validator.FieldError) string {
	tmpl, ok := messages[fe.Tag()]
	if !ok {
		return fmt.Sprintf("The field '%s' is invalid: %s.", fe.Field(), fe.Tag())
	}

	param := fe.Param()
	if fe.Tag() == "nefield" {
		param = toSnake(param)
	}

	if strings.Count(tmpl, "%s") == 2 {
		return fmt.Sprintf(tmpl, fe.Field(), param)
	}
	return fmt.Sprintf(tmpl, fe.Field())
}

// toSnake maps a Go field name such as CurrentPassword to current_password.
func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
