package resend

import (
	"context"
	"net/http"
)

// DomainsService manages sending domains.
type DomainsService service

// Create creates a domain.
func (s *DomainsService) Create(ctx context.Context, req *CreateDomainRequest) (*Domain, error) {
	var out Domain
	if err := s.client.do(ctx, http.MethodPost, "/domains", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get retrieves a domain including its DNS records.
func (s *DomainsService) Get(ctx context.Context, id string) (*Domain, error) {
	path, err := resourcePath("domains", id)
	if err != nil {
		return nil, err
	}
	var out Domain
	if err := s.client.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns a page of domains.
func (s *DomainsService) List(ctx context.Context, opts *ListOptions) (*List[Domain], error) {
	var out List[Domain]
	if err := s.client.do(ctx, http.MethodGet, "/domains", nil, &out, withQuery(opts.values())); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update modifies a domain.
func (s *DomainsService) Update(ctx context.Context, id string, req *UpdateDomainRequest) (*Created, error) {
	path, err := resourcePath("domains", id)
	if err != nil {
		return nil, err
	}
	var out Created
	if err := s.client.do(ctx, http.MethodPatch, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Remove deletes a domain.
func (s *DomainsService) Remove(ctx context.Context, id string) (*Deleted, error) {
	path, err := resourcePath("domains", id)
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

// Verify asks the API to re-check a domain's DNS records.
func (s *DomainsService) Verify(ctx context.Context, id string) (*Created, error) {
	path, err := resourcePath("domains", id, "verify")
	if err != nil {
		return nil, err
	}
	var out Created
	if err := s.client.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
