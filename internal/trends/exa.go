package trends

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const exaBaseURL = "https://api.exa.ai"

// ExaClient talks to the Exa search API.
type ExaClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	log        zerolog.Logger
}

// NewExaClient returns a client for the Exa API. An empty apiKey yields a
// client whose calls report a not-configured envelope.
func NewExaClient(apiKey string, log zerolog.Logger) *ExaClient {
	return &ExaClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    exaBaseURL,
		apiKey:     apiKey,
		log:        log,
	}
}

// ExaResult is one search hit with its extracted content.
type ExaResult struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	URL           string   `json:"url"`
	Author        *string  `json:"author"`
	PublishedDate *string  `json:"published_date"`
	Score         *float64 `json:"score"`
	Text          *string  `json:"text"`
	Highlights    []string `json:"highlights"`
	Summary       *string  `json:"summary,omitempty"`
}

// ExaSearch is the response envelope for both search and research calls.
type ExaSearch struct {
	Success    bool        `json:"success"`
	Query      string      `json:"query,omitempty"`
	Topic      string      `json:"topic,omitempty"`
	Results    []ExaResult `json:"results"`
	Count      int         `json:"count"`
	NumResults int         `json:"num_results"`
	Timestamp  string      `json:"timestamp"`
	Error      string      `json:"error,omitempty"`
	Message    string      `json:"message,omitempty"`
}

// OK reports whether the upstream call succeeded.
func (r *ExaSearch) OK() bool { return r.Success }

// SearchTrending finds recent content on a topic with a short text extract
// per result.
func (c *ExaClient) SearchTrending(ctx context.Context, query string, numResults int) *ExaSearch {
	numResults = clamp(numResults, 1, 100)
	res := &ExaSearch{
		Query:      query,
		Results:    []ExaResult{},
		NumResults: numResults,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	c.search(ctx, res, query, numResults, 500, false)
	return res
}

// DeepResearch fetches fewer results with longer extracts and an upstream
// summary per result.
func (c *ExaClient) DeepResearch(ctx context.Context, topic string, numResults int) *ExaSearch {
	numResults = clamp(numResults, 1, 50)
	res := &ExaSearch{
		Topic:      topic,
		Results:    []ExaResult{},
		NumResults: numResults,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	c.search(ctx, res, topic, numResults, 2000, true)
	return res
}

func (c *ExaClient) search(ctx context.Context, res *ExaSearch, query string, numResults, maxCharacters int, summary bool) {
	if c.apiKey == "" {
		res.Error = "API key not configured"
		res.Message = "Exa API key is not set. Please configure EXA_API_KEY."
		return
	}

	contents := map[string]any{
		"text": map[string]any{"maxCharacters": maxCharacters},
	}
	if summary {
		contents["summary"] = true
	}
	payload := map[string]any{
		"query":      query,
		"numResults": numResults,
		"contents":   contents,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		res.Error = "Internal error"
		res.Message = err.Error()
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		res.Error = "Internal error"
		res.Message = err.Error()
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("query", query).Msg("exa search")
		res.Error = "API request failed"
		res.Message = err.Error()
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		res.Error = "Authentication failed"
		res.Message = "Invalid Exa API key. Please check your API key configuration."
		return
	case http.StatusTooManyRequests:
		res.Error = "Rate limit exceeded"
		res.Message = "Exa API rate limit exceeded. Please try again later."
		return
	default:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		c.log.Error().Int("status", resp.StatusCode).Str("query", query).Msg("exa unexpected status")
		res.Error = "API request failed"
		res.Message = fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, data)
		return
	}

	var upstream struct {
		Results []struct {
			ID            string   `json:"id"`
			Title         string   `json:"title"`
			URL           string   `json:"url"`
			Author        *string  `json:"author"`
			PublishedDate *string  `json:"publishedDate"`
			Score         *float64 `json:"score"`
			Text          *string  `json:"text"`
			Highlights    []string `json:"highlights"`
			Summary       *string  `json:"summary"`
		} `json:"results"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&upstream); err != nil {
		res.Error = "API request failed"
		res.Message = "unexpected response shape"
		return
	}

	for _, item := range upstream.Results {
		res.Results = append(res.Results, ExaResult{
			ID:            item.ID,
			Title:         item.Title,
			URL:           item.URL,
			Author:        item.Author,
			PublishedDate: item.PublishedDate,
			Score:         item.Score,
			Text:          item.Text,
			Highlights:    item.Highlights,
			Summary:       item.Summary,
		})
	}

	res.Success = true
	res.Count = len(res.Results)
}
