package application

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/eleva-labs/chatwoot/internal/domain"
	"github.com/eleva-labs/chatwoot/internal/ports"
)

// In-memory fakes for the repository and collaborator ports, shared by
// the service tests in this package.

type fakeTenants struct {
	tenants map[int64]*domain.Tenant
}

func newFakeTenants(tenants ...*domain.Tenant) *fakeTenants {
	f := &fakeTenants{tenants: map[int64]*domain.Tenant{}}
	for _, t := range tenants {
		f.tenants[t.ID] = t
	}
	return f
}

func (f *fakeTenants) GetByID(_ context.Context, id int64) (*domain.Tenant, error) {
	return f.tenants[id], nil
}

type settingsMutation struct {
	set   map[string]interface{}
	unset []string
}

type fakeHooks struct {
	mu        sync.Mutex
	hooks     map[string]*domain.IntegrationHook
	mutations map[string][]settingsMutation
	disabled  map[string]bool
}

func newFakeHooks(hooks ...*domain.IntegrationHook) *fakeHooks {
	f := &fakeHooks{
		hooks:     map[string]*domain.IntegrationHook{},
		mutations: map[string][]settingsMutation{},
		disabled:  map[string]bool{},
	}
	for _, h := range hooks {
		f.hooks[h.ID] = h
	}
	return f
}

func (f *fakeHooks) GetByID(_ context.Context, id string) (*domain.IntegrationHook, error) {
	return f.hooks[id], nil
}

func (f *fakeHooks) FindEnabled(_ context.Context, appID, referenceID string) (*domain.IntegrationHook, error) {
	for _, h := range f.hooks {
		if h.AppID == appID && h.ReferenceID == referenceID && h.Enabled() {
			return h, nil
		}
	}
	return nil, nil
}

func (f *fakeHooks) ListByApp(_ context.Context, appID string) ([]*domain.IntegrationHook, error) {
	var out []*domain.IntegrationHook
	for _, h := range f.hooks {
		if h.AppID == appID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeHooks) SampleByApp(_ context.Context, appID string, limit int) ([]ports.HookSample, int64, error) {
	all, _ := f.ListByApp(context.Background(), appID)
	var samples []ports.HookSample
	for _, h := range all {
		if len(samples) == limit {
			break
		}
		samples = append(samples, ports.HookSample{ID: h.ID, ReferenceID: h.ReferenceID, Status: h.Status})
	}
	return samples, int64(len(all)), nil
}

func (f *fakeHooks) UpdateSettings(_ context.Context, hookID string, set map[string]interface{}, unset []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutations[hookID] = append(f.mutations[hookID], settingsMutation{set: set, unset: unset})
	if h, ok := f.hooks[hookID]; ok {
		applySettings(&h.Settings, set, unset)
	}
	return nil
}

func (f *fakeHooks) Disable(_ context.Context, hookID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disabled[hookID] = true
	if h, ok := f.hooks[hookID]; ok {
		h.Status = domain.HookStatusDisabled
	}
	return nil
}

func (f *fakeHooks) lastMutation(hookID string) settingsMutation {
	f.mu.Lock()
	defer f.mu.Unlock()
	ms := f.mutations[hookID]
	if len(ms) == 0 {
		return settingsMutation{}
	}
	return ms[len(ms)-1]
}

// applySettings mirrors the per-key set/unset behavior of the Mongo
// implementation onto the typed struct, for the keys the tests care
// about.
func applySettings(s *domain.HookSettings, set map[string]interface{}, unset []string) {
	for key, value := range set {
		switch key {
		case "compliance_webhooks_pending":
			b := value.(bool)
			s.ComplianceWebhooksPending = &b
		case "compliance_webhooks_subscribed":
			b := value.(bool)
			s.ComplianceWebhooksSubscribed = &b
		case "requires_manual_intervention":
			b := value.(bool)
			s.RequiresManualIntervention = &b
		case "webhook_subscription_retry_count":
			n := value.(int)
			s.SubscriptionRetryCount = &n
		case "webhook_subscription_final_retry_count":
			n := value.(int)
			s.SubscriptionFinalRetryCount = &n
		case "redacted_at":
			if str, ok := value.(string); ok {
				t, _ := time.Parse(time.RFC3339, str)
				s.RedactedAt = &t
			}
		}
	}
	for _, key := range unset {
		switch key {
		case "requires_manual_intervention":
			s.RequiresManualIntervention = nil
		case "webhook_subscription_retry_count":
			s.SubscriptionRetryCount = nil
		}
	}
}

type fakeContacts struct {
	mu       sync.Mutex
	contacts map[int64]*domain.Contact
	deferred map[int64]string
	applied  int
}

func newFakeContacts(contacts ...*domain.Contact) *fakeContacts {
	f := &fakeContacts{
		contacts: map[int64]*domain.Contact{},
		deferred: map[int64]string{},
	}
	for _, c := range contacts {
		f.contacts[c.ID] = c
	}
	return f
}

func (f *fakeContacts) GetByID(_ context.Context, _, contactID int64) (*domain.Contact, error) {
	return f.contacts[contactID], nil
}

func (f *fakeContacts) FindByAttribute(_ context.Context, accountID int64, key, value string) (*domain.Contact, error) {
	for _, c := range f.contacts {
		if c.AccountID == accountID && c.Attribute(key) == value {
			return c, nil
		}
	}
	return nil, nil
}

func (f *fakeContacts) FindByEmail(_ context.Context, accountID int64, email string) (*domain.Contact, error) {
	for _, c := range f.contacts {
		if c.AccountID == accountID && strings.EqualFold(c.Email, email) {
			return c, nil
		}
	}
	return nil, nil
}

func (f *fakeContacts) ListUnredacted(_ context.Context, accountID, afterID int64, limit int) ([]*domain.Contact, error) {
	var out []*domain.Contact
	for _, c := range f.contacts {
		if c.AccountID == accountID && c.RedactedAt == nil && c.ID > afterID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeContacts) ApplyRedaction(_ context.Context, _, contactID int64, u ports.ContactRedactionUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contacts[contactID]
	if !ok {
		return nil
	}
	c.Name = u.Name
	c.Email = u.Email
	c.PhoneNumber = u.PhoneNumber
	c.CustomAttributes = u.CustomAttributes
	c.AdditionalEmails = nil
	at := u.RedactedAt
	c.RedactedAt = &at
	f.applied++
	return nil
}

func (f *fakeContacts) MarkDeferred(_ context.Context, _, contactID int64, reason string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deferred[contactID] = reason
	return nil
}

type fakeConversations struct {
	mu      sync.Mutex
	byID    map[int64]*domain.Conversation
	created []*domain.Conversation
}

func newFakeConversations(conversations ...*domain.Conversation) *fakeConversations {
	f := &fakeConversations{byID: map[int64]*domain.Conversation{}}
	for _, c := range conversations {
		f.byID[c.ID] = c
	}
	return f
}

func (f *fakeConversations) ListByContact(_ context.Context, accountID, contactID int64) ([]*domain.Conversation, error) {
	var out []*domain.Conversation
	for _, c := range f.byID {
		if c.AccountID == accountID && c.ContactID == contactID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeConversations) CountByContact(ctx context.Context, accountID, contactID int64) (int64, error) {
	list, _ := f.ListByContact(ctx, accountID, contactID)
	return int64(len(list)), nil
}

func (f *fakeConversations) MergeAttributes(_ context.Context, _, conversationID int64, attrs map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[conversationID]
	if !ok {
		return nil
	}
	if c.AdditionalAttributes == nil {
		c.AdditionalAttributes = map[string]interface{}{}
	}
	for k, v := range attrs {
		c.AdditionalAttributes[k] = v
	}
	return nil
}

func (f *fakeConversations) AppendMessage(_ context.Context, _, conversationID int64, msg domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.byID[conversationID]; ok {
		c.Messages = append(c.Messages, msg)
	}
	return nil
}

func (f *fakeConversations) Create(_ context.Context, conv *domain.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, conv)
	return nil
}

type enqueuedJob struct {
	jobType string
	payload interface{}
	delay   time.Duration
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []enqueuedJob
}

func (f *fakeQueue) Enqueue(_ context.Context, jobType string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, enqueuedJob{jobType: jobType, payload: payload})
	return nil
}

func (f *fakeQueue) EnqueueIn(_ context.Context, jobType string, payload interface{}, delay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, enqueuedJob{jobType: jobType, payload: payload, delay: delay})
	return nil
}

type deliveredExport struct {
	delivery ports.ExportDelivery
}

type fakeNotifier struct {
	mu         sync.Mutex
	deliveries []deliveredExport
	alerts     int
	deliverErr error
}

func (f *fakeNotifier) DeliverExport(_ context.Context, d ports.ExportDelivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deliverErr != nil {
		return f.deliverErr
	}
	f.deliveries = append(f.deliveries, deliveredExport{delivery: d})
	return nil
}

func (f *fakeNotifier) AlertManualIntervention(_ context.Context, _ *domain.IntegrationHook, _ string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts++
	return nil
}

type fakeSubscriber struct {
	outcomes []*ports.SubscriptionOutcome
	calls    int
}

func (f *fakeSubscriber) SubscribeMandatoryTopics(_ context.Context, _, _ string) *ports.SubscriptionOutcome {
	outcome := f.outcomes[0]
	if len(f.outcomes) > 1 {
		f.outcomes = f.outcomes[1:]
	}
	f.calls++
	return outcome
}

func allSubscribedOutcome() *ports.SubscriptionOutcome {
	var results []ports.TopicResult
	for _, topic := range domain.MandatoryTopics() {
		results = append(results, ports.TopicResult{Topic: topic, Subscribed: true, Attempts: 1})
	}
	return &ports.SubscriptionOutcome{Results: results}
}

func failedOutcome(errMsg string) *ports.SubscriptionOutcome {
	topics := domain.MandatoryTopics()
	results := []ports.TopicResult{
		{Topic: topics[0], Subscribed: true, Attempts: 1},
		{Topic: topics[1], Subscribed: true, Attempts: 1},
		{Topic: topics[2], Subscribed: false, Attempts: 3, Error: errMsg},
	}
	return &ports.SubscriptionOutcome{Results: results}
}
