// Package adapter defines the contract between the connector and the request handler
// it serves.
package adapter

import "github.com/indigo-web/connector/http"

// Adapter handles parsed requests. Neither the request nor the response must be retained
// after Service returns, as both are recycled for the next request on the connection.
type Adapter interface {
	// Service processes the request. Returned errors and panics result in 500 Internal
	// Server Error, unless the response is already committed, and the connection is closed.
	Service(request *http.Request, response *http.Response) error
	// Event is reserved for asynchronous continuation. It returns whether the handling
	// is complete.
	Event(request *http.Request, response *http.Response, isError bool) bool
}

// Func adapts an ordinary function to the Adapter.
type Func func(request *http.Request, response *http.Response) error

func (f Func) Service(request *http.Request, response *http.Response) error {
	return f(request, response)
}

func (Func) Event(*http.Request, *http.Response, bool) bool {
	return true
}
