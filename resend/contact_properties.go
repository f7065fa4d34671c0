package resend

import (
	"context"
	"net/http"
)

// ContactPropertiesService manages custom contact properties.
type ContactPropertiesService service

// Create creates a contact property.
func (s *ContactPropertiesService) Create(ctx context.Context, req *CreateContactPropertyRequest) (*Created, error) {
	var out Created
	if err := s.client.do(ctx, http.MethodPost, "/contact-properties", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get retrieves a contact property.
func (s *ContactPropertiesService) Get(ctx context.Context, id string) (*ContactProperty, error) {
	path, err := resourcePath("contact-properties", id)
	if err != nil {
		return nil, err
	}
	var out ContactProperty
	if err := s.client.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns a page of contact properties.
func (s *ContactPropertiesService) List(ctx context.Context, opts *ListOptions) (*List[ContactProperty], error) {
	var out List[ContactProperty]
	if err := s.client.do(ctx, http.MethodGet, "/contact-properties", nil, &out, withQuery(opts.values())); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update modifies a contact property.
func (s *ContactPropertiesService) Update(ctx context.Context, id string, req *UpdateContactPropertyRequest) (*Created, error) {
	path, err := resourcePath("contact-properties", id)
	if err != nil {
		return nil, err
	}
	var out Created
	if err := s.client.do(ctx, http.MethodPatch, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Remove deletes a contact property.
func (s *ContactPropertiesService) Remove(ctx context.Context, id string) (*Deleted, error) {
	path, err := resourcePath("contact-properties", id)
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
