package remote

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/larder/internal/recipe"
)

// Envelope attribute names.
const (
	attrError        = "error"
	attrErrorMessage = "message"
	attrRecipes      = "recipes"
)

// UnknownServiceError is reported when the service sends an error object
// without a message.
const UnknownServiceError = "unknown error"

// ServiceError is a failure reported by the recipe service itself.
type ServiceError struct {
	Message string
}

// Envelope is a decoded response body.
type Envelope struct {
	// Error is set when the body carried an "error" object. Recipes is then
	// left empty: a rejected response is never persisted.
	Error *ServiceError

	// Recipes holds the undecoded records of the "recipes" array.
	Recipes []recipe.RawRecord
}

// DecodeEnvelope parses a response body.
//
// Order of checks:
//  1. body must be a JSON object, else ErrMalformedPayload
//  2. an "error" object yields Envelope.Error (non-object values are ignored)
//  3. "recipes" must be an array of objects, else ErrMalformedPayload
func DecodeEnvelope(p Payload) (Envelope, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(p, &top); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if top == nil {
		return Envelope{}, fmt.Errorf("%w: body is null", ErrMalformedPayload)
	}

	if svcErr, ok := decodeServiceError(top[attrError]); ok {
		return Envelope{Error: svcErr}, nil
	}

	rawRecipes, ok := top[attrRecipes]
	if !ok {
		return Envelope{}, fmt.Errorf("%w: missing %q", ErrMalformedPayload, attrRecipes)
	}

	var recipes []recipe.RawRecord
	if err := json.Unmarshal(rawRecipes, &recipes); err != nil {
		return Envelope{}, fmt.Errorf("%w: %q: %v", ErrMalformedPayload, attrRecipes, err)
	}
	if recipes == nil {
		return Envelope{}, fmt.Errorf("%w: %q is null", ErrMalformedPayload, attrRecipes)
	}
	for i, r := range recipes {
		if r == nil {
			return Envelope{}, fmt.Errorf("%w: %q[%d] is not an object", ErrMalformedPayload, attrRecipes, i)
		}
	}

	return Envelope{Recipes: recipes}, nil
}

// decodeServiceError recognizes {"message": "..."} objects. Any string
// message is kept verbatim, even "". A missing, null or non-string message
// falls back to UnknownServiceError.
func decodeServiceError(data json.RawMessage) (*ServiceError, bool) {
	if len(data) == 0 {
		return nil, false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return nil, false
	}

	var msg *string
	if err := json.Unmarshal(obj[attrErrorMessage], &msg); err != nil || msg == nil {
		return &ServiceError{Message: UnknownServiceError}, true
	}
	return &ServiceError{Message: *msg}, true
}
