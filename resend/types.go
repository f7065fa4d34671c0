package resend

import (
	"net/url"
	"strconv"
	"time"
)

// ListOptions paginates list endpoints. After and Before are resource ids;
// at most one of them may be set.
type ListOptions struct {
	Limit  int
	After  string
	Before string
}

func (o *ListOptions) values() url.Values {
	if o == nil {
		return nil
	}
	q := url.Values{}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.After != "" {
		q.Set("after", o.After)
	}
	if o.Before != "" {
		q.Set("before", o.Before)
	}
	return q
}

// List is a page of resources.
type List[T any] struct {
	Object  string `json:"object"`
	Data    []T    `json:"data"`
	HasMore bool   `json:"has_more"`
}

// Created is the minimal response to a create or update call.
type Created struct {
	Object string `json:"object,omitempty"`
	ID     string `json:"id"`
}

// Deleted is the response to a remove call. Contacts report their id in
// the Contact field.
type Deleted struct {
	Object  string `json:"object,omitempty"`
	ID      string `json:"id,omitempty"`
	Contact string `json:"contact,omitempty"`
	Deleted bool   `json:"deleted"`
}

// Timestamp parses the API's timestamp format. Resend emits both RFC 3339
// and a space-separated variant with a numeric zone offset.
type Timestamp string

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02 15:04:05.999999-07:00",
	"2006-01-02 15:04:05-07",
}

// Time returns the parsed timestamp, or false when it cannot be parsed.
func (t Timestamp) Time() (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if v, err := time.Parse(layout, string(t)); err == nil {
			return v, true
		}
	}
	return time.Time{}, false
}

// Tag is a name/value pair attached to an email.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Attachment is a file attached to an email, either inline base64 content or
// a URL the API fetches.
type Attachment struct {
	Filename    string `json:"filename,omitempty"`
	Content     string `json:"content,omitempty"`
	Path        string `json:"path,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// SendEmailRequest is the body of POST /emails.
type SendEmailRequest struct {
	From        string            `json:"from"`
	To          []string          `json:"to"`
	Subject     string            `json:"subject"`
	HTML        string            `json:"html,omitempty"`
	Text        string            `json:"text,omitempty"`
	Cc          []string          `json:"cc,omitempty"`
	Bcc         []string          `json:"bcc,omitempty"`
	ReplyTo     []string          `json:"reply_to,omitempty"`
	ScheduledAt string            `json:"scheduled_at,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Tags        []Tag             `json:"tags,omitempty"`
	Attachments []Attachment      `json:"attachments,omitempty"`

	// IdempotencyKey is sent as a header, not in the body. A key is
	// generated when empty.
	IdempotencyKey string `json:"-"`
}

// Email is a sent or scheduled email.
type Email struct {
	Object      string    `json:"object"`
	ID          string    `json:"id"`
	From        string    `json:"from"`
	To          []string  `json:"to"`
	Subject     string    `json:"subject"`
	HTML        string    `json:"html,omitempty"`
	Text        string    `json:"text,omitempty"`
	Cc          []string  `json:"cc,omitempty"`
	Bcc         []string  `json:"bcc,omitempty"`
	ReplyTo     []string  `json:"reply_to,omitempty"`
	LastEvent   string    `json:"last_event,omitempty"`
	ScheduledAt string    `json:"scheduled_at,omitempty"`
	CreatedAt   Timestamp `json:"created_at"`
}

// UpdateEmailRequest reschedules a scheduled email.
type UpdateEmailRequest struct {
	ScheduledAt string `json:"scheduled_at"`
}

// Contact is an entry in the team's contact book.
type Contact struct {
	Object       string         `json:"object"`
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	FirstName    string         `json:"first_name,omitempty"`
	LastName     string         `json:"last_name,omitempty"`
	Unsubscribed bool           `json:"unsubscribed"`
	Properties   map[string]any `json:"properties,omitempty"`
	CreatedAt    Timestamp      `json:"created_at"`
}

// CreateContactRequest is the body of POST /contacts.
type CreateContactRequest struct {
	Email        string         `json:"email"`
	FirstName    string         `json:"first_name,omitempty"`
	LastName     string         `json:"last_name,omitempty"`
	Unsubscribed *bool          `json:"unsubscribed,omitempty"`
	Properties   map[string]any `json:"properties,omitempty"`
	Segments     []string       `json:"segments,omitempty"`
}

// UpdateContactRequest is the body of PATCH /contacts/{id}. Nil fields are
// left unchanged.
type UpdateContactRequest struct {
	FirstName    *string        `json:"first_name,omitempty"`
	LastName     *string        `json:"last_name,omitempty"`
	Unsubscribed *bool          `json:"unsubscribed,omitempty"`
	Properties   map[string]any `json:"properties,omitempty"`
}

// Broadcast is a campaign sent to every contact in a segment.
type Broadcast struct {
	Object      string    `json:"object"`
	ID          string    `json:"id"`
	Name        string    `json:"name,omitempty"`
	SegmentID   string    `json:"segment_id,omitempty"`
	From        string    `json:"from,omitempty"`
	Subject     string    `json:"subject,omitempty"`
	ReplyTo     []string  `json:"reply_to,omitempty"`
	PreviewText string    `json:"preview_text,omitempty"`
	Status      string    `json:"status,omitempty"`
	TopicID     string    `json:"topic_id,omitempty"`
	ScheduledAt string    `json:"scheduled_at,omitempty"`
	SentAt      string    `json:"sent_at,omitempty"`
	CreatedAt   Timestamp `json:"created_at"`
}

// CreateBroadcastRequest is the body of POST /broadcasts.
type CreateBroadcastRequest struct {
	SegmentID   string   `json:"segment_id"`
	From        string   `json:"from"`
	Subject     string   `json:"subject"`
	ReplyTo     []string `json:"reply_to,omitempty"`
	HTML        string   `json:"html,omitempty"`
	Text        string   `json:"text,omitempty"`
	Name        string   `json:"name,omitempty"`
	PreviewText string   `json:"preview_text,omitempty"`
	TopicID     string   `json:"topic_id,omitempty"`
}

// UpdateBroadcastRequest is the body of PATCH /broadcasts/{id}. Only draft
// broadcasts can be updated.
type UpdateBroadcastRequest struct {
	SegmentID   string   `json:"segment_id,omitempty"`
	From        string   `json:"from,omitempty"`
	Subject     string   `json:"subject,omitempty"`
	ReplyTo     []string `json:"reply_to,omitempty"`
	HTML        string   `json:"html,omitempty"`
	Text        string   `json:"text,omitempty"`
	Name        string   `json:"name,omitempty"`
	PreviewText string   `json:"preview_text,omitempty"`
}

// SendBroadcastRequest is the body of POST /broadcasts/{id}/send.
type SendBroadcastRequest struct {
	ScheduledAt string `json:"scheduled_at,omitempty"`
}

// DomainRecord is a DNS record that must be published for a domain.
type DomainRecord struct {
	Record   string `json:"record"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	TTL      string `json:"ttl"`
	Status   string `json:"status"`
	Value    string `json:"value"`
	Priority int    `json:"priority,omitempty"`
}

// Domain is a sending domain.
type Domain struct {
	Object    string         `json:"object"`
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Status    string         `json:"status"`
	Region    string         `json:"region"`
	Records   []DomainRecord `json:"records,omitempty"`
	CreatedAt Timestamp      `json:"created_at"`
}

// CreateDomainRequest is the body of POST /domains.
type CreateDomainRequest struct {
	Name             string `json:"name"`
	Region           string `json:"region,omitempty"`
	CustomReturnPath string `json:"custom_return_path,omitempty"`
}

// UpdateDomainRequest is the body of PATCH /domains/{id}.
type UpdateDomainRequest struct {
	ClickTracking *bool  `json:"click_tracking,omitempty"`
	OpenTracking  *bool  `json:"open_tracking,omitempty"`
	TLS           string `json:"tls,omitempty"`
}

// Segment groups contacts for broadcasts.
type Segment struct {
	Object    string    `json:"object"`
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt Timestamp `json:"created_at"`
}

// Topic is a subscription category contacts can opt in or out of.
type Topic struct {
	Object              string    `json:"object"`
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Description         string    `json:"description,omitempty"`
	DefaultSubscription string    `json:"default_subscription"`
	CreatedAt           Timestamp `json:"created_at"`
}

// CreateTopicRequest is the body of POST /topics.
type CreateTopicRequest struct {
	Name                string `json:"name"`
	DefaultSubscription string `json:"default_subscription"`
	Description         string `json:"description,omitempty"`
}

// UpdateTopicRequest is the body of PATCH /topics/{id}.
type UpdateTopicRequest struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// ContactProperty is a custom attribute that can be set on contacts.
type ContactProperty struct {
	Object        string    `json:"object"`
	ID            string    `json:"id"`
	Key           string    `json:"key"`
	Type          string    `json:"type"`
	FallbackValue any       `json:"fallback_value,omitempty"`
	CreatedAt     Timestamp `json:"created_at"`
}

// CreateContactPropertyRequest is the body of POST /contact-properties.
type CreateContactPropertyRequest struct {
	Key           string `json:"key"`
	Type          string `json:"type"`
	FallbackValue any    `json:"fallback_value,omitempty"`
}

// UpdateContactPropertyRequest is the body of PATCH /contact-properties/{id}.
type UpdateContactPropertyRequest struct {
	FallbackValue any `json:"fallback_value"`
}

// APIKey describes an API key. Token is only populated on creation.
type APIKey struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Token     string    `json:"token,omitempty"`
	CreatedAt Timestamp `json:"created_at"`
}

// CreateAPIKeyRequest is the body of POST /api-keys.
type CreateAPIKeyRequest struct {
	Name       string `json:"name"`
	Permission string `json:"permission,omitempty"`
	DomainID   string `json:"domain_id,omitempty"`
}

// Webhook is an endpoint receiving event notifications.
type Webhook struct {
	Object        string    `json:"object"`
	ID            string    `json:"id"`
	Endpoint      string    `json:"endpoint"`
	Events        []string  `json:"events"`
	Status        string    `json:"status,omitempty"`
	SigningSecret string    `json:"signing_secret,omitempty"`
	CreatedAt     Timestamp `json:"created_at"`
}

// CreateWebhookRequest is the body of POST /webhooks.
type CreateWebhookRequest struct {
	Endpoint string   `json:"endpoint"`
	Events   []string `json:"events"`
}

// UpdateWebhookRequest is the body of PATCH /webhooks/{id}.
type UpdateWebhookRequest struct {
	Endpoint string   `json:"endpoint,omitempty"`
	Events   []string `json:"events,omitempty"`
	Status   string   `json:"status,omitempty"`
}
