package trends

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const youtubeBaseURL = "https://www.googleapis.com/youtube/v3"

// YouTubeClient talks to the YouTube Data API v3 with an API key.
type YouTubeClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	log        zerolog.Logger
}

// NewYouTubeClient returns a client for the Data API. An empty apiKey yields
// a client whose calls report a not-configured envelope.
func NewYouTubeClient(apiKey string, log zerolog.Logger) *YouTubeClient {
	return &YouTubeClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    youtubeBaseURL,
		apiKey:     apiKey,
		log:        log,
	}
}

// Video is the reshaped projection of a YouTube video resource.
type Video struct {
	VideoID     string            `json:"video_id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Channel     VideoChannel      `json:"channel"`
	Thumbnail   map[string]string `json:"thumbnail"`
	PublishedAt string            `json:"published_at"`
	CategoryID  string            `json:"category_id"`
	Tags        []string          `json:"tags"`
	Duration    string            `json:"duration"`
	Statistics  VideoStatistics   `json:"statistics"`
	URL         string            `json:"url"`
}

// VideoChannel identifies the uploading channel.
type VideoChannel struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// VideoStatistics carries the engagement counters.
type VideoStatistics struct {
	ViewCount    int64 `json:"view_count"`
	LikeCount    int64 `json:"like_count"`
	CommentCount int64 `json:"comment_count"`
}

// YouTubeVideos is the response envelope for trending and search calls.
type YouTubeVideos struct {
	Success    bool    `json:"success"`
	Country    string  `json:"country,omitempty"`
	Category   *string `json:"category,omitempty"`
	Query      string  `json:"query,omitempty"`
	Videos     []Video `json:"videos"`
	Count      int     `json:"count"`
	MaxResults int     `json:"max_results"`
	Timestamp  string  `json:"timestamp"`
	Error      string  `json:"error,omitempty"`
	Message    string  `json:"message,omitempty"`
}

// OK reports whether the upstream call succeeded.
func (r *YouTubeVideos) OK() bool { return r.Success }

// TrendingVideos returns the mostPopular chart for a region, optionally
// narrowed to a category.
func (c *YouTubeClient) TrendingVideos(ctx context.Context, country string, category *string, maxResults int) *YouTubeVideos {
	maxResults = clamp(maxResults, 1, 50)
	res := &YouTubeVideos{
		Country:    country,
		Category:   category,
		Videos:     []Video{},
		MaxResults: maxResults,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	if c.apiKey == "" {
		res.Error = "API key not configured"
		res.Message = "YouTube API key is not set. Please configure YOUTUBE_API_KEY."
		return res
	}

	query := url.Values{
		"part":       {"snippet,contentDetails,statistics"},
		"chart":      {"mostPopular"},
		"regionCode": {country},
		"maxResults": {strconv.Itoa(maxResults)},
	}
	if category != nil && *category != "" {
		query.Set("videoCategoryId", *category)
	}

	var payload youtubeListResponse
	if apiErr := c.get(ctx, "/videos", query, &payload); apiErr != nil {
		c.log.Error().Err(apiErr.cause).Str("country", country).Msg("youtube trending fetch")
		res.Error = apiErr.label
		res.Message = apiErr.message
		return res
	}

	res.Success = true
	res.Videos = reshapeVideos(payload.Items)
	res.Count = len(res.Videos)
	return res
}

// SearchVideos looks up videos by keyword, then hydrates full statistics
// with a second videos.list call.
func (c *YouTubeClient) SearchVideos(ctx context.Context, query, country string, maxResults int, order string) *YouTubeVideos {
	maxResults = clamp(maxResults, 1, 50)
	res := &YouTubeVideos{
		Query:      query,
		Videos:     []Video{},
		MaxResults: maxResults,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	if c.apiKey == "" {
		res.Error = "API key not configured"
		res.Message = "YouTube API key is not set. Please configure YOUTUBE_API_KEY."
		return res
	}
	if order == "" {
		order = "relevance"
	}

	searchQuery := url.Values{
		"part":       {"snippet"},
		"q":          {query},
		"type":       {"video"},
		"regionCode": {country},
		"maxResults": {strconv.Itoa(maxResults)},
		"order":      {order},
	}
	var search struct {
		Items []struct {
			ID struct {
				VideoID string `json:"videoId"`
			} `json:"id"`
		} `json:"items"`
	}
	if apiErr := c.get(ctx, "/search", searchQuery, &search); apiErr != nil {
		c.log.Error().Err(apiErr.cause).Str("query", query).Msg("youtube search")
		res.Error = apiErr.label
		res.Message = apiErr.message
		return res
	}

	ids := make([]string, 0, len(search.Items))
	for _, item := range search.Items {
		if item.ID.VideoID != "" {
			ids = append(ids, item.ID.VideoID)
		}
	}
	if len(ids) == 0 {
		res.Success = true
		return res
	}

	listQuery := url.Values{
		"part": {"snippet,contentDetails,statistics"},
		"id":   {strings.Join(ids, ",")},
	}
	var payload youtubeListResponse
	if apiErr := c.get(ctx, "/videos", listQuery, &payload); apiErr != nil {
		c.log.Error().Err(apiErr.cause).Str("query", query).Msg("youtube search hydrate")
		res.Error = apiErr.label
		res.Message = apiErr.message
		return res
	}

	res.Success = true
	res.Videos = reshapeVideos(payload.Items)
	res.Count = len(res.Videos)
	return res
}

type youtubeListResponse struct {
	Items []youtubeVideoItem `json:"items"`
}

type youtubeVideoItem struct {
	ID      string `json:"id"`
	Snippet struct {
		Title        string   `json:"title"`
		Description  string   `json:"description"`
		ChannelID    string   `json:"channelId"`
		ChannelTitle string   `json:"channelTitle"`
		PublishedAt  string   `json:"publishedAt"`
		CategoryID   string   `json:"categoryId"`
		Tags         []string `json:"tags"`
		Thumbnails   map[string]struct {
			URL string `json:"url"`
		} `json:"thumbnails"`
	} `json:"snippet"`
	ContentDetails struct {
		Duration string `json:"duration"`
	} `json:"contentDetails"`
	Statistics struct {
		ViewCount    string `json:"viewCount"`
		LikeCount    string `json:"likeCount"`
		CommentCount string `json:"commentCount"`
	} `json:"statistics"`
}

func reshapeVideos(items []youtubeVideoItem) []Video {
	videos := make([]Video, 0, len(items))
	for _, item := range items {
		thumbs := make(map[string]string, len(item.Snippet.Thumbnails))
		for _, size := range []string{"default", "medium", "high", "standard", "maxres"} {
			if t, ok := item.Snippet.Thumbnails[size]; ok {
				thumbs[size] = t.URL
			}
		}
		tags := item.Snippet.Tags
		if len(tags) > 10 {
			tags = tags[:10]
		}
		description := item.Snippet.Description
		if len(description) > 500 {
			description = description[:500]
		}
		videos = append(videos, Video{
			VideoID:     item.ID,
			Title:       item.Snippet.Title,
			Description: description,
			Channel: VideoChannel{
				ID:    item.Snippet.ChannelID,
				Title: item.Snippet.ChannelTitle,
			},
			Thumbnail:   thumbs,
			PublishedAt: item.Snippet.PublishedAt,
			CategoryID:  item.Snippet.CategoryID,
			Tags:        tags,
			Duration:    item.ContentDetails.Duration,
			Statistics: VideoStatistics{
				ViewCount:    parseCount(item.Statistics.ViewCount),
				LikeCount:    parseCount(item.Statistics.LikeCount),
				CommentCount: parseCount(item.Statistics.CommentCount),
			},
			URL: "https://www.youtube.com/watch?v=" + item.ID,
		})
	}
	return videos
}

// youtubeError pairs the envelope labels with the underlying cause for logs.
type youtubeError struct {
	label   string
	message string
	cause   error
}

func (c *YouTubeClient) get(ctx context.Context, path string, query url.Values, out any) *youtubeError {
	query.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return &youtubeError{label: "Internal error", message: err.Error(), cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &youtubeError{label: "API request failed", message: err.Error(), cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return &youtubeError{label: "API request failed", message: err.Error(), cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		return classifyYouTubeFailure(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &youtubeError{label: "API request failed", message: "unexpected response shape", cause: err}
	}
	return nil
}

func classifyYouTubeFailure(status int, body []byte) *youtubeError {
	var payload struct {
		Error struct {
			Errors []struct {
				Reason string `json:"reason"`
			} `json:"errors"`
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)

	reason := "unknown"
	if len(payload.Error.Errors) > 0 {
		reason = payload.Error.Errors[0].Reason
	}
	cause := fmt.Errorf("youtube api status %d: %s", status, reason)

	switch {
	case status == http.StatusForbidden && strings.Contains(reason, "quotaExceeded"):
		return &youtubeError{
			label:   "Quota exceeded",
			message: "YouTube API quota has been exceeded. Please try again later.",
			cause:   cause,
		}
	case status == http.StatusForbidden:
		return &youtubeError{
			label:   "Authentication failed",
			message: "Invalid or restricted API key. Please check your YouTube API key configuration.",
			cause:   cause,
		}
	case status == http.StatusBadRequest:
		return &youtubeError{
			label:   "Invalid request",
			message: fmt.Sprintf("Invalid request parameters: %s", reason),
			cause:   cause,
		}
	default:
		return &youtubeError{
			label:   "API request failed",
			message: payload.Error.Message,
			cause:   cause,
		}
	}
}

func parseCount(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
