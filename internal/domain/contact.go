package domain

import "time"

// Contact represents a tenant's end customer.
type Contact struct {
	ID               int64                  `json:"id" bson:"id"`
	AccountID        int64                  `json:"account_id" bson:"account_id"`
	Name             string                 `json:"name" bson:"name"`
	Email            string                 `json:"email" bson:"email"`
	PhoneNumber      string                 `json:"phone_number" bson:"phone_number"`
	AdditionalEmails []string               `json:"additional_emails,omitempty" bson:"additional_emails,omitempty"`
	CustomAttributes map[string]interface{} `json:"custom_attributes,omitempty" bson:"custom_attributes,omitempty"`
	RedactedAt       *time.Time             `json:"redacted_at,omitempty" bson:"redacted_at,omitempty"`
	CreatedAt        time.Time              `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at" bson:"updated_at"`
}

// Redacted reports whether this contact's PII has already been
// anonymized. Redaction is one-way; a redacted contact is never
// re-redacted.
func (c *Contact) Redacted() bool {
	return c != nil && c.RedactedAt != nil
}

// Attribute returns a custom attribute value as a string, or "" when
// absent or not a string.
func (c *Contact) Attribute(key string) string {
	if c == nil || c.CustomAttributes == nil {
		return ""
	}
	v, ok := c.CustomAttributes[key].(string)
	if !ok {
		return ""
	}
	return v
}
