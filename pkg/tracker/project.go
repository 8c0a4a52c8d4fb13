package tracker

import (
	"context"
	"net/http"
)

// Project groups assets. The identifier is the slug used in API paths.
type Project struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
}

// ProjectPage is one page of a project listing.
type ProjectPage struct {
	Projects   []Project `json:"projects"`
	TotalCount int       `json:"total_count"`
	Offset     int       `json:"offset"`
	Limit      int       `json:"limit"`
}

type ProjectService struct {
	client *Client
}

// List returns the projects known to the service, in server order.
func (s *ProjectService) List(ctx context.Context) (*ProjectPage, error) {
	var page ProjectPage
	if err := s.client.Call(ctx, http.MethodGet, "/projects.json", nil, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}
