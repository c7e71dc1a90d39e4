package snapshot

import (
	"net/url"
	"strings"

	"github.com/young1lin/browsersearch/internal/models"
)

const maxDescriptionRunes = 300

// Filter decides which result URLs are kept.
type Filter struct {
	blocked []string
}

// NewFilter blocks each domain and all of its subdomains.
func NewFilter(blockedDomains []string) Filter {
	f := Filter{blocked: make([]string, 0, len(blockedDomains))}
	for _, d := range blockedDomains {
		d = strings.ToLower(strings.Trim(strings.TrimSpace(d), "."))
		if d != "" {
			f.blocked = append(f.blocked, d)
		}
	}
	return f
}

// Allow reports whether raw is an absolute http(s) URL outside the blocked domains.
func (f Filter) Allow(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !u.IsAbs() {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	for _, d := range f.blocked {
		if host == d || strings.HasSuffix(host, "."+d) {
			return false
		}
	}
	return true
}

// Extract walks the tree in pre-order and collects up to limit link results.
func Extract(root *Element, limit int, f Filter) []models.SearchResult {
	results := make([]models.SearchResult, 0, max(limit, 0))
	if root == nil || limit <= 0 {
		return results
	}

	seen := make(map[string]bool)
	var walk func(el *Element) bool
	walk = func(el *Element) bool {
		if el == nil {
			return true
		}
		if r, ok := toResult(el, f); ok && !seen[r.URL] {
			seen[r.URL] = true
			results = append(results, r)
			if len(results) >= limit {
				return false
			}
		}
		for _, child := range el.Children {
			if !walk(child) {
				return false
			}
		}
		return true
	}
	walk(root)

	return results
}

func toResult(el *Element, f Filter) (models.SearchResult, bool) {
	if el.Role != "" && !strings.EqualFold(el.Role, "link") {
		return models.SearchResult{}, false
	}
	title := strings.TrimSpace(el.Name)
	if title == "" || !f.Allow(el.URL) {
		return models.SearchResult{}, false
	}
	return models.SearchResult{
		Title:       title,
		URL:         strings.TrimSpace(el.URL),
		Description: describe(el, title),
	}, true
}

// describe joins the names found under a link, skipping repeats of its title.
func describe(el *Element, title string) string {
	var parts []string
	var collect func(children []*Element)
	collect = func(children []*Element) {
		for _, c := range children {
			if c == nil {
				continue
			}
			if name := strings.TrimSpace(c.Name); name != "" && name != title {
				parts = append(parts, name)
			}
			collect(c.Children)
		}
	}
	collect(el.Children)

	desc := strings.Join(parts, " ")
	if r := []rune(desc); len(r) > maxDescriptionRunes {
		desc = string(r[:maxDescriptionRunes])
	}
	return desc
}
