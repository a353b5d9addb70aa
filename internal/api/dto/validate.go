package dto

import (
	"errors"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/spec-kit/defect-dispatch/pkg/util/errorutil"
)

// NewValidator returns a validator with coordinate range rules.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("latitude", func(fl validator.FieldLevel) bool {
		val, ok := fl.Field().Interface().(float64)
		if !ok {
			return false
		}
		return !math.IsNaN(val) && val >= -90 && val <= 90
	})
	_ = v.RegisterValidation("longitude", func(fl validator.FieldLevel) bool {
		val, ok := fl.Field().Interface().(float64)
		if !ok {
			return false
		}
		return !math.IsNaN(val) && val >= -180 && val <= 180
	})
	return v
}

// Validate runs struct validation and converts failures to a validation error
// listing the offending fields.
func Validate(v *validator.Validate, payload any) error {
	err := v.Struct(payload)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	details := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fieldName(fe.Namespace())] = fe.Tag()
	}
	return apperrors.NewValidationError("invalid payload", details)
}

// fieldName drops the root struct name from a validator namespace.
func fieldName(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}
