package resend

import (
	"context"
	"net/http"
)

// WebhooksService manages webhook endpoints.
type WebhooksService service

// Create creates a webhook.
func (s *WebhooksService) Create(ctx context.Context, req *CreateWebhookRequest) (*Webhook, error) {
	var out Webhook
	if err := s.client.do(ctx, http.MethodPost, "/webhooks", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get retrieves a webhook.
func (s *WebhooksService) Get(ctx context.Context, id string) (*Webhook, error) {
	path, err := resourcePath("webhooks", id)
	if err != nil {
		return nil, err
	}
	var out Webhook
	if err := s.client.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns a page of webhooks.
func (s *WebhooksService) List(ctx context.Context, opts *ListOptions) (*List[Webhook], error) {
	var out List[Webhook]
	if err := s.client.do(ctx, http.MethodGet, "/webhooks", nil, &out, withQuery(opts.values())); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update modifies a webhook.
func (s *WebhooksService) Update(ctx context.Context, id string, req *UpdateWebhookRequest) (*Created, error) {
	path, err := resourcePath("webhooks", id)
	if err != nil {
		return nil, err
	}
	var out Created
	if err := s.client.do(ctx, http.MethodPatch, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Remove deletes a webhook.
func (s *WebhooksService) Remove(ctx context.Context, id string) (*Deleted, error) {
	path, err := resourcePath("webhooks", id)
	if err != nil {
		return nil, err
	}
	var out Deleted
	if err := s.client.do(ctx, http.MethodDelete, path, nil, &out); err != nil {
		return nil, err
	}
	if out.ID == "" && out.Contact == "" {
		out.ID = id
		out.Deleted = true
	}
	return &out, nil
}
