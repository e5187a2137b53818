package application

import (
	"context"
	"strings"

	"github.com/eleva-labs/chatwoot/internal/domain"
	"github.com/eleva-labs/chatwoot/internal/ports"

	"github.com/rs/zerolog"
)

// myshopifySuffix is the canonical suffix of Shopify shop domains.
const myshopifySuffix = ".myshopify.com"

// NormalizeShopDomain appends the canonical suffix when absent. A
// domain that already contains the suffix anywhere is returned
// unchanged, so normalization is idempotent.
func NormalizeShopDomain(shopDomain string) string {
	if strings.Contains(shopDomain, myshopifySuffix) {
		return shopDomain
	}
	return shopDomain + myshopifySuffix
}

// AccountResolver maps an external shop domain to an internal tenant.
// Resolution failure is always a soft miss: callers get nil and decide
// to skip, never an error.
type AccountResolver struct {
	hooks   ports.IntegrationHookRepository
	tenants ports.TenantRepository
	logger  zerolog.Logger
}

// NewAccountResolver creates an account resolver.
func NewAccountResolver(hooks ports.IntegrationHookRepository, tenants ports.TenantRepository, logger zerolog.Logger) *AccountResolver {
	return &AccountResolver{
		hooks:   hooks,
		tenants: tenants,
		logger:  logger,
	}
}

// Resolve finds the active tenant owning the enabled Shopify hook for
// shopDomain, retrying once with the normalized domain when the raw
// lookup misses.
func (r *AccountResolver) Resolve(ctx context.Context, shopDomain string) *domain.Tenant {
	tenant, _ := r.ResolveWithHook(ctx, shopDomain)
	return tenant
}

// ResolveWithHook is Resolve plus the hook that matched, for callers
// that mutate the hook afterwards (shop-wide redaction).
func (r *AccountResolver) ResolveWithHook(ctx context.Context, shopDomain string) (*domain.Tenant, *domain.IntegrationHook) {
	if shopDomain == "" {
		return nil, nil
	}

	hook, err := r.hooks.FindEnabled(ctx, domain.AppShopify, shopDomain)
	if err != nil {
		r.logger.Error().Err(err).Str("shop_domain", shopDomain).Msg("hook lookup failed, treating as miss")
		return nil, nil
	}

	if hook == nil && !strings.Contains(shopDomain, myshopifySuffix) {
		normalized := NormalizeShopDomain(shopDomain)
		hook, err = r.hooks.FindEnabled(ctx, domain.AppShopify, normalized)
		if err != nil {
			r.logger.Error().Err(err).Str("shop_domain", normalized).Msg("normalized hook lookup failed, treating as miss")
			return nil, nil
		}
	}

	if hook == nil {
		r.logMiss(ctx, shopDomain)
		return nil, nil
	}

	tenant, err := r.tenants.GetByID(ctx, hook.AccountID)
	if err != nil {
		r.logger.Error().Err(err).
			Str("shop_domain", shopDomain).
			Int64("account_id", hook.AccountID).
			Msg("tenant lookup failed, treating as miss")
		return nil, nil
	}
	if tenant == nil {
		r.logger.Warn().
			Str("shop_domain", shopDomain).
			Int64("account_id", hook.AccountID).
			Msg("hook points at missing tenant")
		return nil, nil
	}
	if !tenant.Active() {
		r.logger.Warn().
			Str("shop_domain", shopDomain).
			Int64("account_id", tenant.ID).
			Str("tenant_status", string(tenant.Status)).
			Msg("tenant is not active, skipping")
		return nil, nil
	}

	return tenant, hook
}

// logMiss records diagnostic samples of existing hooks so an operator
// can spot domain mismatches. A failure while gathering diagnostics
// must not mask the original miss.
func (r *AccountResolver) logMiss(ctx context.Context, shopDomain string) {
	samples, total, err := r.hooks.SampleByApp(ctx, domain.AppShopify, 5)
	if err != nil {
		r.logger.Warn().Err(err).Str("shop_domain", shopDomain).Msg("no hook found for shop domain (diagnostics unavailable)")
		return
	}

	refs := make([]string, 0, len(samples))
	for _, s := range samples {
		refs = append(refs, s.ReferenceID+"("+string(s.Status)+")")
	}
	r.logger.Warn().
		Str("shop_domain", shopDomain).
		Strs("sample_hooks", refs).
		Int64("total_hooks", total).
		Msg("no hook found for shop domain")
}
