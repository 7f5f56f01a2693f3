// Package core provides the HTTP response envelope and transport-level error
// values shared by all modules.
package core

import "net/http"

// Response renders itself onto an http.ResponseWriter.
type Response interface {
	Render(w http.ResponseWriter, r *http.Request) error
}
