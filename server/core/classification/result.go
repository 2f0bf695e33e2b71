package classification

import "encoding/json"

// Result is the classifier's answer for one batch of images
type Result struct {
	// Items holds one entry per submitted image, in submission order as far as the service honors it
	Items []json.RawMessage
	// Raw is the complete response body
	Raw json.RawMessage
	// NoContent is set when nothing was submitted
	NoContent bool
}

// Payload returns the value the upload boundary sends back to callers
func (r *Result) Payload() any {
	if r == nil || r.NoContent {
		return []json.RawMessage{}
	}
	return r.Items
}
