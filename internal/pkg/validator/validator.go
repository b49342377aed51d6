package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Validator instance
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

	// Money fields are decimals; numeric tags (gt, gte, lte) compare their float value
	validate.RegisterCustomTypeFunc(func(v reflect.Value) interface{} {
		if d, ok := v.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	registerCustomValidations()
}

func oneOf(values ...string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		v := fl.Field().String()
		for _, allowed := range values {
			if v == allowed {
				return true
			}
		}
		return false
	}
}

// money accepts at most 2 decimal places. Decimals arrive here already
// converted to float64; the shortest decimal form of that float is checked.
func money(fl validator.FieldLevel) bool {
	switch fl.Field().Kind() {
	case reflect.Float32, reflect.Float64:
		d := decimal.NewFromFloat(fl.Field().Float())
		return d.Equal(d.Round(2))
	}
	return true
}

func registerCustomValidations() {
	validate.RegisterValidation("money", money)
	validate.RegisterValidation("discount_type", oneOf("percentage", "fixed"))
	validate.RegisterValidation("ledger_kind", oneOf("sale", "inventory_add", "refund", "expense", "coupon_discount", ""))
	validate.RegisterValidation("ledger_flow", oneOf("inflow", "outflow", ""))
	validate.RegisterValidation("ledger_status", oneOf("pending", "completed", "cancelled", ""))
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"_": err.Error()}
	}

	errors := make(map[string]string)
	for _, err := range validationErrors {
		field := err.Field()
		switch err.Tag() {
		case "required":
			errors[field] = "This field is required"
		case "email":
			errors[field] = "Invalid email format"
		case "min":
			errors[field] = "Value is too short (min: " + err.Param() + ")"
		case "max":
			errors[field] = "Value is too long (max: " + err.Param() + ")"
		case "gt":
			errors[field] = "Value must be greater than " + err.Param()
		case "gte":
			errors[field] = "Value must be at least " + err.Param()
		case "lte":
			errors[field] = "Value must be at most " + err.Param()
		case "gtfield":
			errors[field] = "Value must be after " + err.Param()
		case "money":
			errors[field] = "Value must have at most 2 decimal places"
		case "discount_type":
			errors[field] = "Invalid discount type. Must be: percentage or fixed"
		case "ledger_kind":
			errors[field] = "Invalid entry type. Must be: sale, inventory_add, refund, expense, or coupon_discount"
		case "ledger_flow":
			errors[field] = "Invalid flow. Must be: inflow or outflow"
		case "ledger_status":
			errors[field] = "Invalid status. Must be: pending, completed, or cancelled"
		default:
			errors[field] = "Invalid value"
		}
	}

	return errors
}

// ValidateVar validates a single variable
func ValidateVar(field interface{}, tag string) error {
	return validate.Var(field, tag)
}
