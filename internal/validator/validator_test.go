package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type chargeInput struct {
	Amount   int64  `json:"amount" validate:"required,minor-amount"`
	Currency string `json:"currency" validate:"required,currency-code"`
}

func TestValidateChargeInput(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(&chargeInput{Amount: 5000, Currency: "USD"}))
}

func TestCurrencyCodeRule(t *testing.T) {
	v := New()

	for _, bad := range []string{"usd", "US", "USDT", "U$D", "123"} {
		err := v.Validate(&chargeInput{Amount: 5000, Currency: bad})
		assert.Errorf(t, err, "currency %q must be rejected", bad)

		vErr, ok := err.(*ValidationError)
		assert.True(t, ok)
		assert.Contains(t, vErr.Errors, "currency", "error keyed by json tag")
	}
}

func TestMinorAmountRule(t *testing.T) {
	v := New()

	err := v.Validate(&chargeInput{Amount: -100, Currency: "USD"})
	assert.Error(t, err)

	err = v.Validate(&chargeInput{Amount: 100_000_001, Currency: "USD"})
	assert.Error(t, err, "amount above the cap must be rejected")

	assert.NoError(t, v.Validate(&chargeInput{Amount: 100_000_000, Currency: "USD"}))
}
