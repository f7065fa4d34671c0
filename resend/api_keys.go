package resend

import (
	"context"
	"net/http"
)

// APIKeysService manages API keys. Key tokens are only returned on creation.
type APIKeysService service

// Create creates an API key.
func (s *APIKeysService) Create(ctx context.Context, req *CreateAPIKeyRequest) (*APIKey, error) {
	var out APIKey
	if err := s.client.do(ctx, http.MethodPost, "/api-keys", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns a page of API keys.
func (s *APIKeysService) List(ctx context.Context, opts *ListOptions) (*List[APIKey], error) {
	var out List[APIKey]
	if err := s.client.do(ctx, http.MethodGet, "/api-keys", nil, &out, withQuery(opts.values())); err != nil {
		return nil, err
	}
	return &out, nil
}

// Remove deletes an API key.
func (s *APIKeysService) Remove(ctx context.Context, id string) (*Deleted, error) {
	path, err := resourcePath("api-keys", id)
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
