package client

import "net/http"

// Doer sends authorized requests. Consuming projects should depend on this
// interface rather than *Manager to enable testing with mock implementations.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

var _ Doer = (*Manager)(nil)
