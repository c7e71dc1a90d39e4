package models

// SearchQuery is a validated search request
type SearchQuery struct {
	Text  string `json:"text"`
	Limit int    `json:"limit"`
}

// SearchResult represents a single search result
type SearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// SearchResponse is the result of one search call
type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Source  string         `json:"source"` // "google"
	Query   string         `json:"query"`
}

// WebSearchArgs represents arguments for the web_search tool
type WebSearchArgs struct {
	Query string `json:"query"`
	Limit any    `json:"limit,omitempty"`
}

// StatusResponse reports browser readiness
type StatusResponse struct {
	Ready        bool   `json:"ready"`
	Instructions string `json:"instructions,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
