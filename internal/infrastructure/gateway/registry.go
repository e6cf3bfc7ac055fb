package gateway

import (
	"fmt"

	"github.com/Zhima-Mochi/minishop-settlement/internal/domain/payment"
)

// Registry resolves the gateway configured for a provider key.
type Registry struct {
	gateways map[payment.Provider]payment.Gateway
}

func NewRegistry() *Registry {
	return &Registry{gateways: make(map[payment.Provider]payment.Gateway)}
}

// Register binds g to p, replacing any earlier binding.
func (r *Registry) Register(p payment.Provider, g payment.Gateway) *Registry {
	r.gateways[p] = g
	return r
}

func (r *Registry) Gateway(p payment.Provider) (payment.Gateway, error) {
	g, ok := r.gateways[p]
	if !ok || g == nil {
		return nil, fmt.Errorf("%w: %q is not enabled", payment.ErrUnsupportedProvider, p)
	}
	return g, nil
}

// Providers lists the enabled providers.
func (r *Registry) Providers() []payment.Provider {
	out := make([]payment.Provider, 0, len(r.gateways))
	for _, p := range payment.Providers {
		if _, ok := r.gateways[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

var _ payment.Resolver = (*Registry)(nil)
