// Package backend is the typed REST contract of the finance backend.
package backend

import (
	"github.com/campusfin/client/internal/infrastructure/httpclient"
)

// API groups the backend endpoints. Each method maps to a single request.
type API struct {
	client *httpclient.Client
}

// New creates the API over an already configured transport
func New(client *httpclient.Client) *API {
	return &API{client: client}
}
