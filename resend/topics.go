package resend

import (
	"context"
	"net/http"
)

// TopicsService manages subscription topics.
type TopicsService service

// Create creates a topic.
func (s *TopicsService) Create(ctx context.Context, req *CreateTopicRequest) (*Created, error) {
	var out Created
	if err := s.client.do(ctx, http.MethodPost, "/topics", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get retrieves a topic.
func (s *TopicsService) Get(ctx context.Context, id string) (*Topic, error) {
	path, err := resourcePath("topics", id)
	if err != nil {
		return nil, err
	}
	var out Topic
	if err := s.client.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns a page of topics.
func (s *TopicsService) List(ctx context.Context, opts *ListOptions) (*List[Topic], error) {
	var out List[Topic]
	if err := s.client.do(ctx, http.MethodGet, "/topics", nil, &out, withQuery(opts.values())); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update modifies a topic.
func (s *TopicsService) Update(ctx context.Context, id string, req *UpdateTopicRequest) (*Created, error) {
	path, err := resourcePath("topics", id)
	if err != nil {
		return nil, err
	}
	var out Created
	if err := s.client.do(ctx, http.MethodPatch, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Remove deletes a topic.
func (s *TopicsService) Remove(ctx context.Context, id string) (*Deleted, error) {
	path, err := resourcePath("topics", id)
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
