package api

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"

	"github.com/eleva-labs/chatwoot/internal/application"
	"github.com/eleva-labs/chatwoot/internal/domain"
	"github.com/eleva-labs/chatwoot/internal/infrastructure/metrics"
	"github.com/eleva-labs/chatwoot/internal/infrastructure/shopify"
	"github.com/eleva-labs/chatwoot/internal/ports"

	"github.com/rs/zerolog"
)

// SignatureHeader carries Shopify's base64 HMAC-SHA256 of the raw
// request body.
const SignatureHeader = "X-Shopify-Hmac-SHA256"

// ComplianceHandler serves the three mandatory compliance webhook
// endpoints. Verification and validation run synchronously; all real
// work is enqueued. Rejections never echo request content back and
// carry no body on auth failure.
type ComplianceHandler struct {
	verifier *shopify.Verifier
	queue    ports.JobQueue
	events   ports.WebhookEventRepository
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	maxBytes int64
}

// NewComplianceHandler creates the webhook handler.
func NewComplianceHandler(
	verifier *shopify.Verifier,
	queue ports.JobQueue,
	events ports.WebhookEventRepository,
	m *metrics.Metrics,
	logger zerolog.Logger,
	maxBytes int64,
) *ComplianceHandler {
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}
	return &ComplianceHandler{
		verifier: verifier,
		queue:    queue,
		events:   events,
		metrics:  m,
		logger:   logger,
		maxBytes: maxBytes,
	}
}

// CustomersDataRequest handles POST /webhooks/customers_data_request.
func (h *ComplianceHandler) CustomersDataRequest(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, domain.TopicCustomersDataRequest, application.JobDataRequest, validateDataRequest)
}

// CustomersRedact handles POST /webhooks/customers_redact.
func (h *ComplianceHandler) CustomersRedact(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, domain.TopicCustomersRedact, application.JobCustomerRedact, validateCustomerRedact)
}

// ShopRedact handles POST /webhooks/shop_redact.
func (h *ComplianceHandler) ShopRedact(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, domain.TopicShopRedact, application.JobShopRedact, validateShopRedact)
}

type payloadValidator func(map[string]json.RawMessage) bool

func (h *ComplianceHandler) handle(w http.ResponseWriter, r *http.Request, topic, jobType string, validate payloadValidator) {
	log := h.logger.With().Str("topic", topic).Logger()

	if r.ContentLength > h.maxBytes {
		h.reject(w, log, http.StatusRequestEntityTooLarge, "payload_too_large")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBytes+1))
	if err != nil {
		h.reject(w, log, http.StatusBadRequest, "body_read_failed")
		return
	}
	if int64(len(body)) > h.maxBytes {
		h.reject(w, log, http.StatusRequestEntityTooLarge, "payload_too_large")
		return
	}

	// Authentication runs over the exact raw bytes, before any parsing.
	// Auth failures carry an empty body.
	if err := h.verifier.Verify(body, r.Header.Get(SignatureHeader)); err != nil {
		h.metrics.WebhooksRejected.WithLabelValues("auth").Inc()
		log.Warn().Int("body_bytes", len(body)).Msg("webhook signature verification failed")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		h.reject(w, log, http.StatusUnsupportedMediaType, "unsupported_media_type")
		return
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		h.reject(w, log, http.StatusBadRequest, "malformed_json")
		return
	}
	if !validate(fields) {
		h.reject(w, log, http.StatusBadRequest, "missing_required_fields")
		return
	}

	h.metrics.WebhooksReceived.WithLabelValues(topic).Inc()
	shop := stringField(fields, "shop_domain")

	if err := h.events.LogWebhook(r.Context(), &domain.WebhookEvent{
		Topic:    topic,
		Shop:     shop,
		Payload:  body,
		Verified: true,
	}); err != nil {
		log.Error().Err(err).Msg("failed to persist webhook audit record")
	}

	// Enqueue failures still return 200: signalling them to Shopify
	// would only trigger its retry storm against a broken queue.
	if err := h.queue.Enqueue(r.Context(), jobType, json.RawMessage(body)); err != nil {
		log.Error().Err(err).Str("shop_domain", shop).Msg("failed to enqueue compliance job")
	}
	w.WriteHeader(http.StatusOK)
}

func (h *ComplianceHandler) reject(w http.ResponseWriter, log zerolog.Logger, status int, reason string) {
	h.metrics.WebhooksRejected.WithLabelValues(reason).Inc()
	log.Warn().Int("status", status).Str("reason", reason).Msg("webhook request rejected")
	w.WriteHeader(status)
}

func validateDataRequest(fields map[string]json.RawMessage) bool {
	if stringField(fields, "shop_domain") == "" {
		return false
	}
	customer, ok := objectField(fields, "customer")
	if !ok {
		return false
	}
	return presentValue(customer["id"]) || stringField(customer, "email") != ""
}

func validateCustomerRedact(fields map[string]json.RawMessage) bool {
	if stringField(fields, "shop_domain") == "" {
		return false
	}
	_, ok := objectField(fields, "customer")
	return ok
}

func validateShopRedact(fields map[string]json.RawMessage) bool {
	return stringField(fields, "shop_domain") != "" && presentValue(fields["shop_id"])
}

// presentValue reports whether raw carries an actual JSON value. A
// literal null counts as absent.
func presentValue(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

func stringField(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func objectField(fields map[string]json.RawMessage, key string) (map[string]json.RawMessage, bool) {
	raw, ok := fields[key]
	if !ok {
		return nil, false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}
