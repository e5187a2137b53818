package domain

// Mandatory compliance webhook topics. Shopify requires all three for
// app certification.
const (
	TopicCustomersDataRequest = "customers/data_request"
	TopicCustomersRedact      = "customers/redact"
	TopicShopRedact           = "shop/redact"
)

// MandatoryTopics returns the fixed set of compliance topics, in
// subscription order.
func MandatoryTopics() []string {
	return []string{
		TopicCustomersDataRequest,
		TopicCustomersRedact,
		TopicShopRedact,
	}
}

// WebhookCustomer identifies the customer a compliance webhook is
// about.
type WebhookCustomer struct {
	ID    int64  `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// DataRequestPayload is the body of a customers/data_request webhook.
type DataRequestPayload struct {
	ShopID          int64            `json:"shop_id,omitempty"`
	ShopDomain      string           `json:"shop_domain"`
	Customer        *WebhookCustomer `json:"customer,omitempty"`
	OrdersRequested []int64          `json:"orders_requested,omitempty"`
	DataRequest     struct {
		ID int64 `json:"id,omitempty"`
	} `json:"data_request,omitempty"`
}

// CustomerRedactPayload is the body of a customers/redact webhook.
type CustomerRedactPayload struct {
	ShopID         int64            `json:"shop_id,omitempty"`
	ShopDomain     string           `json:"shop_domain"`
	Customer       *WebhookCustomer `json:"customer,omitempty"`
	OrdersToRedact []int64          `json:"orders_to_redact,omitempty"`
}

// ShopRedactPayload is the body of a shop/redact webhook.
type ShopRedactPayload struct {
	ShopID     int64  `json:"shop_id"`
	ShopDomain string `json:"shop_domain"`
}

// WebhookEvent is the audit record of a verified inbound webhook.
type WebhookEvent struct {
	Topic    string `json:"topic" bson:"topic"`
	Shop     string `json:"shop" bson:"shop"`
	Payload  []byte `json:"payload" bson:"payload"`
	Verified bool   `json:"verified" bson:"verified"`
}
