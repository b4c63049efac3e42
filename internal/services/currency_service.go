package services

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"payflow_backend/internal/config"
	"payflow_backend/pkg/apperrors"
)

// CurrencyService converts minor-unit amounts between currencies using the
// configured USD-relative rate table. A missing rate is a hard error: the
// caller aborts rather than guessing a rate.
type CurrencyService struct {
	settlement string
	rates      map[string]decimal.Decimal
}

func NewCurrencyService(cfg *config.Config) (*CurrencyService, error) {
	rates := make(map[string]decimal.Decimal, len(cfg.Currency.Rates))
	for code, raw := range cfg.Currency.Rates {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid rate for %s: %w", code, err)
		}
		if rate.IsZero() || rate.IsNegative() {
			return nil, fmt.Errorf("invalid rate for %s: must be positive", code)
		}
		rates[strings.ToUpper(code)] = rate
	}

	return &CurrencyService{
		settlement: strings.ToUpper(cfg.Currency.Settlement),
		rates:      rates,
	}, nil
}

func (s *CurrencyService) Settlement() string {
	return s.settlement
}

func (s *CurrencyService) HasRate(currency string) bool {
	_, ok := s.rates[strings.ToUpper(currency)]
	return ok
}

// Convert converts a minor-unit amount between currencies. Rates are
// expressed as units of currency per 1 USD, so from → USD → to. The result
// is rounded half-up to the nearest minor unit.
func (s *CurrencyService) Convert(amount int64, from, to string) (int64, error) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)

	if from == to {
		return amount, nil
	}

	fromRate, ok := s.rates[from]
	if !ok {
		return 0, apperrors.ErrRateUnavailable.WithDetails(map[string]string{"currency": from})
	}
	toRate, ok := s.rates[to]
	if !ok {
		return 0, apperrors.ErrRateUnavailable.WithDetails(map[string]string{"currency": to})
	}

	converted := decimal.NewFromInt(amount).
		DivRound(fromRate, 12).
		Mul(toRate).
		Round(0)

	return converted.IntPart(), nil
}

// ToSettlement converts an amount into the settlement currency, used by
// fraud screening for threshold comparison.
func (s *CurrencyService) ToSettlement(amount int64, from string) (int64, error) {
	return s.Convert(amount, from, s.settlement)
}
