package users

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Requester performs authenticated calls against the API root.
// *apiclient.Client satisfies it.
type Requester interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
	Delete(ctx context.Context, path string, out any) error
}

// Page mirrors the server's paginated response envelope.
type Page struct {
	Content          []Profile `json:"content"`
	TotalElements    int64     `json:"totalElements"`
	TotalPages       int       `json:"totalPages"`
	Number           int       `json:"number"`
	Size             int       `json:"size"`
	NumberOfElements int       `json:"numberOfElements"`
	First            bool      `json:"first"`
	Last             bool      `json:"last"`
	Empty            bool      `json:"empty"`
}

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// ListOptions are the paging parameters of the admin listing endpoints.
// Zero values leave the server defaults in place (page 0, size 20,
// sorted by createdAt descending).
type ListOptions struct {
	Page      int
	Size      int
	SortBy    string
	Direction SortDirection
}

func (o ListOptions) values() url.Values {
	q := url.Values{}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.Size > 0 {
		q.Set("size", strconv.Itoa(o.Size))
	}
	if o.SortBy != "" {
		q.Set("sortBy", o.SortBy)
	}
	if o.Direction != "" {
		q.Set("direction", string(o.Direction))
	}
	return q
}

// Service is the client for the /users endpoints.
type Service struct {
	api Requester
}

func NewService(api Requester) *Service {
	return &Service{api: api}
}

// Me returns the profile of the authenticated user.
func (s *Service) Me(ctx context.Context) (*Profile, error) {
	var p Profile
	if err := s.api.Get(ctx, "/users/me", nil, &p); err != nil {
		return nil, fmt.Errorf("[users.Me] %w", err)
	}
	return &p, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Profile, error) {
	var p Profile
	if err := s.api.Get(ctx, "/users/"+id.String(), nil, &p); err != nil {
		return nil, fmt.Errorf("[users.Get] %w", err)
	}
	return &p, nil
}

// List pages through all users. Admin only.
func (s *Service) List(ctx context.Context, opts ListOptions) (*Page, error) {
	var page Page
	if err := s.api.Get(ctx, "/users", opts.values(), &page); err != nil {
		return nil, fmt.Errorf("[users.List] %w", err)
	}
	return &page, nil
}

// Search matches query against username and email. Admin only.
func (s *Service) Search(ctx context.Context, query string, opts ListOptions) (*Page, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("[users.Search] query is required")
	}
	q := url.Values{}
	q.Set("query", query)
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.Size > 0 {
		q.Set("size", strconv.Itoa(opts.Size))
	}
	var page Page
	if err := s.api.Get(ctx, "/users/search", q, &page); err != nil {
		return nil, fmt.Errorf("[users.Search] %w", err)
	}
	return &page, nil
}

// Delete removes a user. Admin only.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.api.Delete(ctx, "/users/"+id.String(), nil); err != nil {
		return fmt.Errorf("[users.Delete] %w", err)
	}
	return nil
}
