package ports

import (
	"context"

	"github.com/eleva-labs/chatwoot/internal/domain"
)

// ExportDelivery is what the notifier needs to hand an assembled data
// export to the tenant operator. Rendering differs for found vs
// not-found outcomes; the operator owes the requesting customer a
// response either way.
type ExportDelivery struct {
	Tenant     *domain.Tenant
	ShopDomain string
	CustomerID int64
	Email      string
	Found      bool
	Export     interface{} // *application.CustomerExport when Found
}

// ComplianceNotifier delivers export results and operator alerts.
// Delivery failures are legal-deadline-sensitive and must surface to a
// human; implementations never substitute a silent fallback.
type ComplianceNotifier interface {
	// DeliverExport delivers an assembled export (or an explicit
	// no-data notice) to the tenant's administrator.
	DeliverExport(ctx context.Context, d ExportDelivery) error

	// AlertManualIntervention emits an operator-facing alert for a hook
	// whose subscription retries are exhausted.
	AlertManualIntervention(ctx context.Context, hook *domain.IntegrationHook, finalErr string, retryCount int) error
}
