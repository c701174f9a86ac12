package acquire

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// htmlToText strips an HTML document down to readable text, preferring
// a main content region when one exists.
func htmlToText(html []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript, svg, nav, footer").Remove()

	var content string
	for _, selector := range []string{"main", "article", "#content", ".content"} {
		if selected := doc.Find(selector); selected.Length() > 0 {
			content = selected.Text()
			break
		}
	}
	if content == "" {
		content = doc.Find("body").Text()
	}

	title := strings.TrimSpace(doc.Find("title").Text())
	cleaned := collapseWhitespace(content)
	if title != "" {
		return title + "\n\n" + cleaned, nil
	}
	return cleaned, nil
}

// collapseWhitespace folds runs of blank lines and intra-line spaces.
func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.Join(strings.Fields(line), " ")
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return strings.Join(out, "\n")
}
