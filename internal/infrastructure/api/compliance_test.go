package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/eleva-labs/chatwoot/internal/application"
	"github.com/eleva-labs/chatwoot/internal/domain"
	"github.com/eleva-labs/chatwoot/internal/infrastructure/metrics"
	"github.com/eleva-labs/chatwoot/internal/infrastructure/shopify"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "shpss_test_secret"

type capturedJob struct {
	jobType string
	payload interface{}
}

type fakeQueue struct {
	jobs []capturedJob
	err  error
}

func (f *fakeQueue) Enqueue(_ context.Context, jobType string, payload interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, capturedJob{jobType: jobType, payload: payload})
	return nil
}

func (f *fakeQueue) EnqueueIn(_ context.Context, jobType string, payload interface{}, _ time.Duration) error {
	return f.Enqueue(context.Background(), jobType, payload)
}

type fakeEvents struct {
	events []*domain.WebhookEvent
}

func (f *fakeEvents) LogWebhook(_ context.Context, e *domain.WebhookEvent) error {
	f.events = append(f.events, e)
	return nil
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func newTestHandler(queue *fakeQueue, events *fakeEvents) *ComplianceHandler {
	verifier := shopify.NewVerifier(testSecret, zerolog.Nop())
	return NewComplianceHandler(verifier, queue, events, metrics.NewNop(), zerolog.Nop(), 1<<20)
}

func post(h http.HandlerFunc, body []byte, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/test", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, sign(body))
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestCustomerRedactAcceptedAndEnqueued(t *testing.T) {
	queue := &fakeQueue{}
	events := &fakeEvents{}
	h := newTestHandler(queue, events)

	body := []byte(`{"shop_domain":"acme.myshopify.com","customer":{"id":777}}`)
	rec := post(h.CustomersRedact, body, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, application.JobCustomerRedact, queue.jobs[0].jobType)
	require.Len(t, events.events, 1)
	assert.Equal(t, domain.TopicCustomersRedact, events.events[0].Topic)
	assert.Equal(t, "acme.myshopify.com", events.events[0].Shop)
}

func TestTamperedBodyRejectedWithoutSideEffects(t *testing.T) {
	queue := &fakeQueue{}
	events := &fakeEvents{}
	h := newTestHandler(queue, events)

	body := []byte(`{"shop_domain":"acme.myshopify.com","customer":{"id":777}}`)
	rec := post(h.CustomersRedact, body, func(r *http.Request) {
		tampered := []byte(`{"shop_domain":"evil.myshopify.com","customer":{"id":777}}`)
		r.Body = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(tampered)).Body
		r.ContentLength = int64(len(tampered))
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Body.Bytes(), "auth failures carry no body")
	assert.Empty(t, queue.jobs)
	assert.Empty(t, events.events)
}

func TestMissingSignatureRejected(t *testing.T) {
	queue := &fakeQueue{}
	h := newTestHandler(queue, &fakeEvents{})

	body := []byte(`{"shop_domain":"acme.myshopify.com","customer":{}}`)
	rec := post(h.CustomersRedact, body, func(r *http.Request) {
		r.Header.Del(SignatureHeader)
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, queue.jobs)
}

func TestWrongContentTypeRejected(t *testing.T) {
	queue := &fakeQueue{}
	h := newTestHandler(queue, &fakeEvents{})

	body := []byte(`{"shop_domain":"acme.myshopify.com","customer":{}}`)
	rec := post(h.CustomersRedact, body, func(r *http.Request) {
		r.Header.Set("Content-Type", "text/plain")
	})
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Empty(t, queue.jobs)
}

func TestContentTypeCharsetAccepted(t *testing.T) {
	queue := &fakeQueue{}
	h := newTestHandler(queue, &fakeEvents{})

	body := []byte(`{"shop_domain":"acme.myshopify.com","customer":{"id":1}}`)
	rec := post(h.CustomersRedact, body, func(r *http.Request) {
		r.Header.Set("Content-Type", "application/json; charset=utf-8")
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOversizedBodyRejected(t *testing.T) {
	queue := &fakeQueue{}
	verifier := shopify.NewVerifier(testSecret, zerolog.Nop())
	h := NewComplianceHandler(verifier, queue, &fakeEvents{}, metrics.NewNop(), zerolog.Nop(), 64)

	body := []byte(`{"shop_domain":"acme.myshopify.com","padding":"` + strings.Repeat("x", 200) + `"}`)
	rec := post(h.CustomersRedact, body, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, queue.jobs)
}

func TestMalformedJSONRejected(t *testing.T) {
	queue := &fakeQueue{}
	h := newTestHandler(queue, &fakeEvents{})

	for _, body := range []string{`{not json`, `[1,2,3]`, `"just a string"`, `null`} {
		rec := post(h.CustomersRedact, []byte(body), nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body=%s", body)
	}
	assert.Empty(t, queue.jobs)
}

func TestDataRequestRequiresCustomerIdentifier(t *testing.T) {
	queue := &fakeQueue{}
	h := newTestHandler(queue, &fakeEvents{})

	// customer present but with neither id nor email
	rec := post(h.CustomersDataRequest, []byte(`{"shop_domain":"acme.myshopify.com","customer":{}}`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// a JSON null id is not an identifier
	rec = post(h.CustomersDataRequest, []byte(`{"shop_domain":"acme.myshopify.com","customer":{"id":null}}`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(h.CustomersDataRequest, []byte(`{"shop_domain":"acme.myshopify.com","customer":{"email":"a@b.co"}}`), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, application.JobDataRequest, queue.jobs[0].jobType)
}

func TestShopRedactRequiresShopID(t *testing.T) {
	queue := &fakeQueue{}
	h := newTestHandler(queue, &fakeEvents{})

	rec := post(h.ShopRedact, []byte(`{"shop_domain":"acme.myshopify.com"}`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(h.ShopRedact, []byte(`{"shop_domain":"acme.myshopify.com","shop_id":null}`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(h.ShopRedact, []byte(`{"shop_domain":"acme.myshopify.com","shop_id":9}`), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, application.JobShopRedact, queue.jobs[0].jobType)
}

func TestEnqueueFailureStillReturnsOK(t *testing.T) {
	queue := &fakeQueue{err: assert.AnError}
	h := newTestHandler(queue, &fakeEvents{})

	body := []byte(`{"shop_domain":"acme.myshopify.com","customer":{"id":1}}`)
	rec := post(h.CustomersRedact, body, nil)
	// Signalling queue trouble to Shopify would only trigger its retry
	// storm; the failure is logged instead.
	assert.Equal(t, http.StatusOK, rec.Code)
}
