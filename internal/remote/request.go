package remote

import "net/http"

// Request is one call the client knows how to make.
//
// This is a sealed interface: each variant carries its own method and path,
// and new calls are added as new variants.
type Request interface {
	request() // Marker method - seals interface to this package

	// Method is the HTTP method.
	Method() string

	// Path is appended to the configured base URL.
	Path() string
}

// DefaultRecipesPath is where the service publishes the collection.
const DefaultRecipesPath = "/recipes.json"

// GetAllRecipes fetches the full recipe collection in one call.
type GetAllRecipes struct {
	// Resource overrides DefaultRecipesPath when set.
	Resource string
}

func (GetAllRecipes) request()       {}
func (GetAllRecipes) Method() string { return http.MethodGet }

func (r GetAllRecipes) Path() string {
	if r.Resource != "" {
		return r.Resource
	}
	return DefaultRecipesPath
}
