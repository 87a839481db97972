// Package validate checks user input before it is sent to the backend.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid matches every *FieldError.
var ErrInvalid = errors.New("invalid input")

// FieldError reports the first rule a value broke.
type FieldError struct {
	Field string // json name of the field, or "value" for single values
	Rule  string // validator tag, e.g. "required" or "email"
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: failed %s", e.Field, e.Rule)
}

func (e *FieldError) Is(target error) bool { return target == ErrInvalid }

var (
	once sync.Once
	v    *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		v = validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
	})
	return v
}

// Struct validates s against its validate tags.
func Struct(s any) error {
	return convert(instance().Struct(s), "")
}

// Var validates a single value against tag.
func Var(value any, tag string) error {
	return convert(instance().Var(value, tag), "value")
}

// Email checks that s is a non-empty, well-formed address.
func Email(s string) error {
	err := Var(strings.TrimSpace(s), "required,email")
	var fe *FieldError
	if errors.As(err, &fe) {
		fe.Field = "email"
	}
	return err
}

func convert(err error, field string) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	first := verrs[0]
	if field == "" {
		field = first.Field()
	}
	return &FieldError{Field: field, Rule: first.Tag()}
}
