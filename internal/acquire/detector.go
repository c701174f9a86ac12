package acquire

import "bytes"

// Heuristic decides when a direct fetch should be promoted to a
// headless render.
type Heuristic struct {
	BodyLengthThreshold int
}

// NewHeuristic creates a new detector.
func NewHeuristic(threshold int) *Heuristic {
	if threshold == 0 {
		threshold = 2048
	}
	return &Heuristic{BodyLengthThreshold: threshold}
}

var spaMarkers = [][]byte{
	[]byte("__next"),
	[]byte("id=\"root\""),
	[]byte("id=\"app\""),
	[]byte("data-reactroot"),
	[]byte("window.__APOLLO_STATE__"),
}

// ShouldPromote reports whether the HTML looks like a client-rendered
// shell that needs a real browser to produce content.
func (h *Heuristic) ShouldPromote(html []byte, extractedText string) bool {
	if len(html) == 0 {
		return true
	}
	if len(extractedText) < h.BodyLengthThreshold/8 {
		return true
	}
	if len(html) < h.BodyLengthThreshold {
		for _, marker := range spaMarkers {
			if bytes.Contains(html, marker) {
				return true
			}
		}
	}
	return false
}
