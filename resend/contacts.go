package resend

import (
	"context"
	"net/http"
)

// ContactsService manages the team contact book. Contacts are addressed by
// id or by email address.
type ContactsService service

// Create creates a contact.
func (s *ContactsService) Create(ctx context.Context, req *CreateContactRequest) (*Created, error) {
	var out Created
	if err := s.client.do(ctx, http.MethodPost, "/contacts", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get retrieves a contact by id or email address.
func (s *ContactsService) Get(ctx context.Context, id string) (*Contact, error) {
	path, err := resourcePath("contacts", id)
	if err != nil {
		return nil, err
	}
	var out Contact
	if err := s.client.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns a page of contacts.
func (s *ContactsService) List(ctx context.Context, opts *ListOptions) (*List[Contact], error) {
	var out List[Contact]
	if err := s.client.do(ctx, http.MethodGet, "/contacts", nil, &out, withQuery(opts.values())); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update modifies a contact.
func (s *ContactsService) Update(ctx context.Context, id string, req *UpdateContactRequest) (*Created, error) {
	path, err := resourcePath("contacts", id)
	if err != nil {
		return nil, err
	}
	var out Created
	if err := s.client.do(ctx, http.MethodPatch, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Remove deletes a contact.
func (s *ContactsService) Remove(ctx context.Context, id string) (*Deleted, error) {
	path, err := resourcePath("contacts", id)
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
