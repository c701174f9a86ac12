package acquire

import "fmt"

// FallbackBlock builds the synthetic instruction handed to the
// extractor when the page could not be fetched. It names the literal
// domain so the model can reason from the domain alone, and forbids
// empty extraction fields.
func FallbackBlock(domain string) string {
	return fmt.Sprintf(`NOTE: The website content for %q could not be fetched.

Produce the structured profile from general background knowledge about
this business and from the domain name %q itself. Be conservative and
mark uncertainty in the score_explanation, but do not leave the summary
empty and do not omit any field; use empty arrays only where you truly
know nothing.`, domain, domain)
}
