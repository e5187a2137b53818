package application

import (
	"strings"
	"time"

	"github.com/eleva-labs/chatwoot/internal/domain"
)

// SafeguardReport captures the business/legal conditions that override
// or limit a standard redaction. The checks are independent; the
// redaction service decides precedence.
type SafeguardReport struct {
	RecentTransactions bool
	LegalHold          bool
	ActiveDispute      bool
	ComplianceFlag     bool
}

// Restricted reports whether any safeguard fired.
func (r SafeguardReport) Restricted() bool {
	return r.RecentTransactions || r.LegalHold || r.ActiveDispute || r.ComplianceFlag
}

var legalHoldKeys = []string{"legal_hold", "legal_hold_active", "litigation_hold"}

var complianceFlagKeys = []string{"regulatory_hold", "compliance_hold", "compliance_review", "aml_review"}

// commerceKeywords flag transaction-like conversation activity.
var commerceKeywords = []string{
	"order", "purchase", "payment", "refund", "invoice", "transaction", "charge", "checkout",
}

// disputeKeywords flag active dispute or chargeback activity.
var disputeKeywords = []string{"chargeback", "dispute", "fraud"}

// evaluateSafeguards runs the four independent safeguard checks against
// a contact and its conversations. retentionWindow bounds how far back
// the transaction-activity heuristic looks.
func evaluateSafeguards(contact *domain.Contact, conversations []*domain.Conversation, now time.Time, retentionWindow time.Duration) SafeguardReport {
	report := SafeguardReport{}

	for _, key := range legalHoldKeys {
		if v, ok := contact.CustomAttributes[key]; ok && truthy(v) {
			report.LegalHold = true
			break
		}
	}
	for _, key := range complianceFlagKeys {
		if v, ok := contact.CustomAttributes[key]; ok && truthy(v) {
			report.ComplianceFlag = true
			break
		}
	}

	cutoff := now.Add(-retentionWindow)
	for _, conv := range conversations {
		open := conv.Status == domain.ConversationStatusOpen || conv.Status == domain.ConversationStatusPending
		for _, msg := range conv.Messages {
			content := strings.ToLower(msg.Content)
			if !report.RecentTransactions && msg.CreatedAt.After(cutoff) && containsAnyKeyword(content, commerceKeywords) {
				report.RecentTransactions = true
			}
			if !report.ActiveDispute && open && containsAnyKeyword(content, disputeKeywords) {
				report.ActiveDispute = true
			}
		}
		if report.RecentTransactions && report.ActiveDispute {
			break
		}
	}

	return report
}

func containsAnyKeyword(content string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(content, k) {
			return true
		}
	}
	return false
}
