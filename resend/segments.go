package resend

import (
	"context"
	"net/http"
)

// SegmentsService manages contact segments.
type SegmentsService service

// Create creates a segment.
func (s *SegmentsService) Create(ctx context.Context, req *CreateSegmentRequest) (*Segment, error) {
	var out Segment
	if err := s.client.do(ctx, http.MethodPost, "/segments", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get retrieves a segment.
func (s *SegmentsService) Get(ctx context.Context, id string) (*Segment, error) {
	path, err := resourcePath("segments", id)
	if err != nil {
		return nil, err
	}
	var out Segment
	if err := s.client.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns a page of segments.
func (s *SegmentsService) List(ctx context.Context, opts *ListOptions) (*List[Segment], error) {
	var out List[Segment]
	if err := s.client.do(ctx, http.MethodGet, "/segments", nil, &out, withQuery(opts.values())); err != nil {
		return nil, err
	}
	return &out, nil
}

// Remove deletes a segment.
func (s *SegmentsService) Remove(ctx context.Context, id string) (*Deleted, error) {
	path, err := resourcePath("segments", id)
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

// CreateSegmentRequest is the body of POST /segments.
type CreateSegmentRequest struct {
	Name string `json:"name"`
}
