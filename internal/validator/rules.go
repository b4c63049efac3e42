package validator

import (
	"log"

	"github.com/go-playground/validator/v10"
)

// maxMinorAmount caps a single charge at 1,000,000.00 in minor units.
// Anything above this is a data-entry or abuse signal, not a real order.
const maxMinorAmount = 100_000_000

// registerCustomRules registers all custom validation functions on the
// given validator instance.
func registerCustomRules(v *validator.Validate) {
	mustRegister := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			// A rule that fails to register is a startup bug, do not run.
			log.Fatalf("failed to register custom validation tag '%s': %v", tag, err)
		}
	}

	// 'currency-code': three uppercase ASCII letters (ISO 4217 shape).
	mustRegister("currency-code", validateCurrencyCode)

	// 'minor-amount': positive integer amount in minor units with a cap.
	mustRegister("minor-amount", validateMinorAmount)
}

func validateCurrencyCode(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // emptiness is the job of 'required'
	}
	if len(value) != 3 {
		return false
	}
	for _, r := range value {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func validateMinorAmount(fl validator.FieldLevel) bool {
	value := fl.Field().Int()
	return value > 0 && value <= maxMinorAmount
}
