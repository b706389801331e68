package shared

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator that reports fields by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// CollectFieldErrors copies validator failures into verr using msg to render
// each one. It returns err unchanged when it is not a validation failure.
func CollectFieldErrors(verr *ValidationError, err error, msg func(validator.FieldError) string) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	if msg == nil {
		msg = FieldMessage
	}
	for _, fe := range fieldErrs {
		verr.Add(fe.Field(), msg(fe))
	}
	return nil
}

// FieldMessage renders the common validator tags.
func FieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	}
	return fe.Error()
}
