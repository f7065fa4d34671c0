package resend

import (
	"context"
	"net/http"
)

// BroadcastsService manages broadcast campaigns.
type BroadcastsService service

// Create creates a broadcast.
func (s *BroadcastsService) Create(ctx context.Context, req *CreateBroadcastRequest) (*Created, error) {
	var out Created
	if err := s.client.do(ctx, http.MethodPost, "/broadcasts", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get retrieves a broadcast.
func (s *BroadcastsService) Get(ctx context.Context, id string) (*Broadcast, error) {
	path, err := resourcePath("broadcasts", id)
	if err != nil {
		return nil, err
	}
	var out Broadcast
	if err := s.client.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns a page of broadcasts.
func (s *BroadcastsService) List(ctx context.Context, opts *ListOptions) (*List[Broadcast], error) {
	var out List[Broadcast]
	if err := s.client.do(ctx, http.MethodGet, "/broadcasts", nil, &out, withQuery(opts.values())); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update modifies a broadcast.
func (s *BroadcastsService) Update(ctx context.Context, id string, req *UpdateBroadcastRequest) (*Created, error) {
	path, err := resourcePath("broadcasts", id)
	if err != nil {
		return nil, err
	}
	var out Created
	if err := s.client.do(ctx, http.MethodPatch, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Remove deletes a broadcast.
func (s *BroadcastsService) Remove(ctx context.Context, id string) (*Deleted, error) {
	path, err := resourcePath("broadcasts", id)
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

// Send sends a draft broadcast now, or schedules it when ScheduledAt is set.
func (s *BroadcastsService) Send(ctx context.Context, id string, req *SendBroadcastRequest) (*Created, error) {
	path, err := resourcePath("broadcasts", id, "send")
	if err != nil {
		return nil, err
	}
	if req == nil {
		req = &SendBroadcastRequest{}
	}
	var out Created
	if err := s.client.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
