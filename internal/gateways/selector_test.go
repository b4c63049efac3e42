package gateways

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"payflow_backend/internal/models"
)

type stubGateway struct {
	name       models.GatewayName
	currencies []string
}

func (s *stubGateway) Name() models.GatewayName      { return s.name }
func (s *stubGateway) SupportedCurrencies() []string { return s.currencies }
func (s *stubGateway) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	return nil, nil
}
func (s *stubGateway) Verify(ctx context.Context, ref string) (*VerifyResult, error) {
	return nil, nil
}
func (s *stubGateway) Refund(ctx context.Context, ref string, amount int64) (*RefundResult, error) {
	return nil, nil
}
func (s *stubGateway) VerifyWebhookSignature(body []byte, header http.Header) bool { return true }
func (s *stubGateway) ParseWebhookEvent(body []byte) (*WebhookEvent, error)        { return nil, nil }

func newTestSelector() *Selector {
	return NewSelector(
		[]Gateway{
			&stubGateway{name: models.GatewayStripe, currencies: []string{"USD", "EUR", "NGN"}},
			&stubGateway{name: models.GatewayPaystack, currencies: []string{"NGN", "GHS"}},
			&stubGateway{name: models.GatewayFlutterwave, currencies: []string{"NGN", "KES", "UGX"}},
			&stubGateway{name: models.GatewayMTNMoMo, currencies: []string{"UGX"}},
		},
		[]string{"stripe", "paystack", "flutterwave", "mtn_momo"},
		map[string][]string{
			"NG": {"paystack", "flutterwave"},
			"KE": {"flutterwave"},
			"UG": {"flutterwave", "mtn_momo"},
		},
	)
}

func TestSelectRegionalPreferenceWins(t *testing.T) {
	s := newTestSelector()

	g, err := s.Select("NGN", "NG", 5000)
	assert.NoError(t, err)
	assert.Equal(t, models.GatewayPaystack, g.Name())
}

func TestSelectRegionalPreferenceFiltersByCurrency(t *testing.T) {
	s := newTestSelector()

	// Paystack is preferred for NG but does not take KES; flutterwave is
	// next in the regional list but does not either, so selection falls
	// back to global priority order.
	g, err := s.Select("KES", "NG", 5000)
	assert.NoError(t, err)
	assert.Equal(t, models.GatewayFlutterwave, g.Name())
}

func TestSelectGlobalPriorityWithoutHint(t *testing.T) {
	s := newTestSelector()

	g, err := s.Select("NGN", "", 5000)
	assert.NoError(t, err)
	assert.Equal(t, models.GatewayStripe, g.Name(), "first in priority order that takes NGN")

	g, err = s.Select("GHS", "", 5000)
	assert.NoError(t, err)
	assert.Equal(t, models.GatewayPaystack, g.Name())
}

func TestSelectDeterministic(t *testing.T) {
	s := newTestSelector()

	first, err := s.Select("UGX", "UG", 5000)
	assert.NoError(t, err)
	for i := 0; i < 20; i++ {
		g, err := s.Select("UGX", "UG", 5000)
		assert.NoError(t, err)
		assert.Equal(t, first.Name(), g.Name())
	}
}

func TestSelectNoGatewayForCurrency(t *testing.T) {
	s := newTestSelector()

	_, err := s.Select("JPY", "", 5000)
	assert.ErrorIs(t, err, ErrNoGatewayAvailable)
}

func TestSelectUnknownRegionFallsBack(t *testing.T) {
	s := newTestSelector()

	g, err := s.Select("EUR", "ZZ", 5000)
	assert.NoError(t, err)
	assert.Equal(t, models.GatewayStripe, g.Name())
}

func TestGetByName(t *testing.T) {
	s := newTestSelector()

	g, ok := s.Get(models.GatewayMTNMoMo)
	assert.True(t, ok)
	assert.Equal(t, models.GatewayMTNMoMo, g.Name())

	_, ok = s.Get(models.GatewayName("nope"))
	assert.False(t, ok)
}
