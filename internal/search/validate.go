package search

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/young1lin/browsersearch/internal/models"
)

const (
	// MaxQueryLength is the longest accepted query, in characters, after sanitizing.
	MaxQueryLength = 500

	MinLimit     = 1
	MaxLimit     = 10
	DefaultLimit = 5

	// DefaultEngine is the search endpoint queried through the browser.
	DefaultEngine = "https://www.google.com/search"
)

// ValidationError describes a rejected query
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid query: " + e.Reason
}

// ValidateInput sanitizes query and normalizes limit.
// Control characters (0x00-0x1F, 0x7F) and surrounding whitespace are removed;
// numeric limits are clamped to [MinLimit, MaxLimit], anything else becomes DefaultLimit.
func ValidateInput(query string, limit any) (models.SearchQuery, error) {
	text := sanitize(query)
	if text == "" {
		return models.SearchQuery{}, &ValidationError{Reason: "query must not be empty"}
	}
	if n := utf8.RuneCountInString(text); n > MaxQueryLength {
		return models.SearchQuery{}, &ValidationError{
			Reason: fmt.Sprintf("query is %d characters, maximum is %d", n, MaxQueryLength),
		}
	}
	return models.SearchQuery{Text: text, Limit: normalizeLimit(limit)}, nil
}

func sanitize(query string) string {
	stripped := strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, query)
	return strings.TrimSpace(stripped)
}

func normalizeLimit(limit any) int {
	var f float64
	switch v := limit.(type) {
	case int:
		f = float64(v)
	case int8:
		f = float64(v)
	case int16:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint:
		f = float64(v)
	case uint8:
		f = float64(v)
	case uint16:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case float32:
		f = float64(v)
	case float64:
		f = v
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return DefaultLimit
		}
		f = parsed
	default:
		return DefaultLimit
	}
	if math.IsNaN(f) {
		return DefaultLimit
	}
	return int(math.Max(MinLimit, math.Min(MaxLimit, math.Trunc(f))))
}

// ParseLimit converts a textual limit, as found in query strings or CLI flags, to a value
// ValidateInput understands. Unparseable text is passed through and ends up as DefaultLimit.
func ParseLimit(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// BuildSearchURL returns the Google query URL for query with a result-count hint.
func BuildSearchURL(query string, limit int) string {
	return buildSearchURL(DefaultEngine, query, limit)
}

func buildSearchURL(engine, query string, limit int) string {
	u, err := url.Parse(engine)
	if err != nil || !u.IsAbs() {
		u, _ = url.Parse(DefaultEngine)
	}
	v := u.Query()
	v.Set("q", query)
	v.Set("num", strconv.Itoa(limit))
	u.RawQuery = v.Encode()
	return u.String()
}
