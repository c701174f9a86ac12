// Package acquire fetches a text rendering of an entity's page.
//
// Acquisition runs as an ordered chain of legs: a hosted reader service
// that returns markdown, a direct HTTP fetch stripped to text, and an
// optional headless render for pages the direct fetch cannot read.
// The chain never fails the pipeline: when every leg comes up short it
// returns a synthetic knowledge-fallback block so the extractor always
// has something to work from.
package acquire
