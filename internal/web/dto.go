package web

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/subwiki/internal/linkrouter"
	"github.com/starford/subwiki/internal/navigation"
)

// RouteRequest is the request body for POST /api/route.
type RouteRequest struct {
	URI string `json:"uri"`
}

// Validate implements validation.Validatable.
func (r RouteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.URI, validation.Required, validation.Length(1, 4096)),
	)
}

// OpenRecentRequest is the request body for POST /api/recents/open.
type OpenRecentRequest struct {
	Name string `json:"name"`
}

// Validate implements validation.Validatable.
func (r OpenRecentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
	)
}

// CompleteEditRequest is the request body for PUT /api/edit/{id}.
type CompleteEditRequest struct {
	Content   string `json:"content"`
	Cancelled bool   `json:"cancelled"`
}

// RouteResponse describes the outcome of a routed URI.
type RouteResponse struct {
	Outcome string   `json:"outcome"`
	Name    string   `json:"name,omitempty"`
	Path    []string `json:"path,omitempty"`
	URI     string   `json:"uri,omitempty"`
}

func routeResponse(o linkrouter.Outcome) RouteResponse {
	return RouteResponse{Outcome: o.Kind.String(), Name: o.Name, Path: o.Path, URI: o.URI}
}

// BackResponse describes the outcome of a back step.
type BackResponse struct {
	Outcome string `json:"outcome"`
	Name    string `json:"name,omitempty"`
}

func backResponse(o navigation.BackOutcome) BackResponse {
	if o.Kind == navigation.BackExit {
		return BackResponse{Outcome: "exit"}
	}
	return BackResponse{Outcome: "navigate", Name: o.Name}
}
