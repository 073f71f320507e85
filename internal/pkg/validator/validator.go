package validator

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerCustomValidations()
}

func registerCustomValidations() {
	// Targets accepted by the verification registry
	validate.RegisterValidation("verification_target", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "VERIFIED", "PENDING":
			return true
		}
		return false
	})

	// Ledger categories an administrator may post directly
	validate.RegisterValidation("adjustment_category", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "", "manual_adjustment", "service_accrual":
			return true
		}
		return false
	})
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"_": err.Error()}
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			fields[field] = "This field is required"
		case "min":
			fields[field] = "Value is too short (min: " + fe.Param() + ")"
		case "max":
			fields[field] = "Value is too long (max: " + fe.Param() + ")"
		case "gt":
			fields[field] = "Value must be greater than " + fe.Param()
		case "ne":
			fields[field] = "Value must not be " + fe.Param()
		case "gte":
			fields[field] = "Value must be at least " + fe.Param()
		case "lte":
			fields[field] = "Value must be at most " + fe.Param()
		case "verification_target":
			fields[field] = "Invalid status. Must be: VERIFIED or PENDING"
		case "adjustment_category":
			fields[field] = "Invalid category. Must be: manual_adjustment or service_accrual"
		default:
			fields[field] = "Invalid value"
		}
	}

	return fields
}
