package gateways

import (
	"fmt"

	"payflow_backend/internal/models"
)

// Selector routes a payment to a gateway. Selection is deterministic:
// regional preferences first, then the global priority order, both filtered
// by currency support. Ties are broken by declared position, never randomly.
type Selector struct {
	registry map[string]Gateway
	priority []string
	regional map[string][]string
}

// NewSelector builds a selector over the given adapters. Priority and
// regional preferences are externally supplied policy, not code.
func NewSelector(adapters []Gateway, priority []string, regional map[string][]string) *Selector {
	registry := make(map[string]Gateway, len(adapters))
	for _, g := range adapters {
		registry[string(g.Name())] = g
	}
	return &Selector{
		registry: registry,
		priority: priority,
		regional: regional,
	}
}

// Get returns a gateway by name, used for webhook dispatch.
func (s *Selector) Get(name models.GatewayName) (Gateway, bool) {
	g, ok := s.registry[string(name)]
	return g, ok
}

// Select chooses the gateway for a charge. The amount is accepted for
// future routing policy (e.g. amount-tiered acquirers) but does not affect
// selection today.
func (s *Selector) Select(currency, countryHint string, amount int64) (Gateway, error) {
	if prefs, ok := s.regional[countryHint]; ok {
		for _, name := range prefs {
			if g, ok := s.registry[name]; ok && supportsCurrency(g.SupportedCurrencies(), currency) {
				return g, nil
			}
		}
	}

	for _, name := range s.priority {
		if g, ok := s.registry[name]; ok && supportsCurrency(g.SupportedCurrencies(), currency) {
			return g, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrNoGatewayAvailable, currency)
}
