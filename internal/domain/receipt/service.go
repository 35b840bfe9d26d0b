package receipt

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Fetcher reads orders and credit providers from upstream services.
type Fetcher interface {
	GetOrder(ctx context.Context, src Source) (Order, error)
	GetCreditProvider(ctx context.Context, id string) (Provider, error)
}

// PageContext carries the values the receipt page is rendered with.
type PageContext struct {
	PlatformName string
	LMSURL       string
	Verified     bool
	Username     string
}

// ProviderBlock is the credit provider section of the receipt page.
type ProviderBlock struct {
	Provider
	CourseKey    string `json:"course_key"`
	Username     string `json:"username"`
	PlatformName string `json:"platformName"`
}

// Page is the full receipt page context.
type Page struct {
	PlatformName string  `json:"platformName"`
	Verified     bool    `json:"verified"`
	LMSURL       string  `json:"lmsUrl"`
	Receipt      Receipt `json:"receipt"`
	CourseKey    *string `json:"courseKey"`

	Provider *ProviderBlock `json:"provider,omitempty"`
	// ProviderError is set when the order has a credit provider that could
	// not be loaded.
	ProviderError bool `json:"providerError,omitempty"`
}

// Service builds receipt pages.
type Service struct {
	fetcher Fetcher
}

// NewService creates a Service backed by the given Fetcher.
func NewService(fetcher Fetcher) *Service {
	return &Service{fetcher: fetcher}
}

// Page fetches the order identified by src and assembles the page. Failing
// to load the credit provider does not fail the page.
func (s *Service) Page(ctx context.Context, src Source, pc PageContext) (*Page, error) {
	lg := zctx.From(ctx)

	order, err := s.fetcher.GetOrder(ctx, src)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}

	r := Assemble(order)
	if err := r.Err(); err != nil {
		lg.Warn("Receipt has malformed amounts",
			zap.String("order", order.Number()),
			zap.Error(err),
		)
	}

	p := &Page{
		PlatformName: pc.PlatformName,
		Verified:     pc.Verified,
		LMSURL:       pc.LMSURL,
		Receipt:      r,
	}
	courseKey, ok := CourseKey(order)
	if ok {
		p.CourseKey = &courseKey
	}

	providerID, ok := CreditProviderID(order)
	if !ok {
		return p, nil
	}
	provider, err := s.fetcher.GetCreditProvider(ctx, providerID)
	if err != nil {
		lg.Warn("Failed to load credit provider",
			zap.String("provider", providerID),
			zap.Error(err),
		)
		p.ProviderError = true
		return p, nil
	}
	p.Provider = &ProviderBlock{
		Provider:     provider,
		CourseKey:    courseKey,
		Username:     pc.Username,
		PlatformName: pc.PlatformName,
	}
	return p, nil
}
