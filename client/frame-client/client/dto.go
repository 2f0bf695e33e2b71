package client

import "encoding/json"

// ProcessResponse is the body of a successful /video or /image upload
type ProcessResponse struct {
	Message string            `json:"message"`
	Images  []json.RawMessage `json:"images"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}
