package extractor

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type jsonLDPosting struct {
	Title       string
	Company     string
	Description string
}

// jsonLDPostings collects schema.org JobPosting objects from every
// ld+json script in doc, in document order.
func jsonLDPostings(doc *goquery.Document) []jsonLDPosting {
	if doc == nil {
		return nil
	}
	var out []jsonLDPosting
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		out = append(out, parseJSONLD(s.Text())...)
	})
	return out
}

func parseJSONLD(raw string) []jsonLDPosting {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var payload any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil
	}
	var postings []jsonLDPosting
	findJobPostings(payload, &postings)
	return postings
}

func findJobPostings(payload any, out *[]jsonLDPosting) {
	switch t := payload.(type) {
	case map[string]any:
		if posting, ok := postingFromMap(t); ok {
			*out = append(*out, posting)
		}
		if graph, ok := t["@graph"].([]any); ok {
			for _, item := range graph {
				findJobPostings(item, out)
			}
		}
	case []any:
		for _, item := range t {
			findJobPostings(item, out)
		}
	}
}

func postingFromMap(payload map[string]any) (jsonLDPosting, bool) {
	if !isJobPostingType(payload["@type"]) {
		return jsonLDPosting{}, false
	}
	posting := jsonLDPosting{
		Title:       stringField(payload["title"]),
		Company:     orgName(payload["hiringOrganization"]),
		Description: stringField(payload["description"]),
	}
	if posting.Title == "" && posting.Company == "" && posting.Description == "" {
		return jsonLDPosting{}, false
	}
	return posting, true
}

func isJobPostingType(t any) bool {
	switch v := t.(type) {
	case string:
		return v == "JobPosting"
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == "JobPosting" {
				return true
			}
		}
	}
	return false
}

func stringField(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		if str, ok := t["@value"].(string); ok {
			return strings.TrimSpace(str)
		}
	}
	return ""
}

func orgName(v any) string {
	if name := stringField(v); name != "" {
		return name
	}
	if org, ok := v.(map[string]any); ok {
		return stringField(org["name"])
	}
	return ""
}
