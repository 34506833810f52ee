// Package remote talks to the recipe service.
//
// It owns the request variants, the HTTP transport and the decoding of the
// response envelope. It never touches the store: callers decide what to
// persist from a decoded Envelope.
//
// Envelope shape (unknown keys ignored):
//
//	{
//	  "error":   {"message": "..."},     // optional, service-reported failure
//	  "recipes": [{"uuid": "...", ...}]  // optional, the full collection
//	}
package remote
