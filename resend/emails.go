package resend

import (
	"context"
	"errors"
	"net/http"
)

// EmailsService sends and inspects transactional email.
type EmailsService service

// BatchResponse lists the ids of emails accepted by a batch send, in
// request order.
type BatchResponse struct {
	Data []Created `json:"data"`
}

// Send sends a single email. The request's IdempotencyKey is generated when
// empty so that retries never deliver twice.
func (s *EmailsService) Send(ctx context.Context, req *SendEmailRequest) (*Created, error) {
	if req == nil {
		return nil, errors.New("resend: nil send request")
	}
	var out Created
	if err := s.client.do(ctx, http.MethodPost, "/emails", req, &out, withIdempotencyKey(req.IdempotencyKey)); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendBatch sends up to 100 emails in one call. Per-email idempotency keys
// are ignored; key applies to the whole batch.
func (s *EmailsService) SendBatch(ctx context.Context, reqs []SendEmailRequest, key string) (*BatchResponse, error) {
	if len(reqs) == 0 {
		return nil, errors.New("resend: empty batch")
	}
	var out BatchResponse
	if err := s.client.do(ctx, http.MethodPost, "/emails/batch", reqs, &out, withIdempotencyKey(key)); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get retrieves a single email.
func (s *EmailsService) Get(ctx context.Context, id string) (*Email, error) {
	path, err := resourcePath("emails", id)
	if err != nil {
		return nil, err
	}
	var out Email
	if err := s.client.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns a page of sent emails, newest first.
func (s *EmailsService) List(ctx context.Context, opts *ListOptions) (*List[Email], error) {
	var out List[Email]
	if err := s.client.do(ctx, http.MethodGet, "/emails", nil, &out, withQuery(opts.values())); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update reschedules a scheduled email.
func (s *EmailsService) Update(ctx context.Context, id string, req *UpdateEmailRequest) (*Created, error) {
	path, err := resourcePath("emails", id)
	if err != nil {
		return nil, err
	}
	var out Created
	if err := s.client.do(ctx, http.MethodPatch, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Cancel cancels a scheduled email that has not been sent yet.
func (s *EmailsService) Cancel(ctx context.Context, id string) (*Created, error) {
	path, err := resourcePath("emails", id, "cancel")
	if err != nil {
		return nil, err
	}
	var out Created
	if err := s.client.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
