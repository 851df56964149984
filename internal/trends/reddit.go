package trends

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

const redditBaseURL = "https://www.reddit.com"

// thumbnail placeholders Reddit uses instead of a real image URL.
var redditPlaceholders = map[string]bool{
	"self": true, "default": true, "nsfw": true, "spoiler": true, "image": true,
}

// RedditClient reads public subreddit listings. Reddit requires a descriptive
// User-Agent on unauthenticated requests and throttles generic ones hard.
type RedditClient struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	log        zerolog.Logger
}

// NewRedditClient returns a read-only listing client.
func NewRedditClient(userAgent string, log zerolog.Logger) *RedditClient {
	return &RedditClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    redditBaseURL,
		userAgent:  userAgent,
		log:        log,
	}
}

// RedditPost is the reshaped projection of one submission.
type RedditPost struct {
	PostID      string  `json:"post_id"`
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	Subreddit   string  `json:"subreddit"`
	Upvotes     int     `json:"upvotes"`
	UpvoteRatio float64 `json:"upvote_ratio"`
	NumComments int     `json:"num_comments"`
	URL         string  `json:"url"`
	CreatedAt   string  `json:"created_at"`
	IsSelf      bool    `json:"is_self"`
	Selftext    string  `json:"selftext"`
	LinkURL     *string `json:"link_url"`
	Thumbnail   *string `json:"thumbnail"`
	Over18      bool    `json:"over_18"`
	Spoiler     bool    `json:"spoiler"`
	Awards      int     `json:"awards"`
}

// RedditPosts is the response envelope for hot-posts listings.
type RedditPosts struct {
	Success   bool         `json:"success"`
	Subreddit string       `json:"subreddit"`
	Posts     []RedditPost `json:"posts"`
	Count     int          `json:"count"`
	Limit     int          `json:"limit"`
	Timestamp string       `json:"timestamp"`
	Error     string       `json:"error,omitempty"`
	Message   string       `json:"message,omitempty"`
}

// OK reports whether the upstream call succeeded.
func (r *RedditPosts) OK() bool { return r.Success }

// HotPosts returns up to limit non-stickied hot submissions of a subreddit.
func (c *RedditClient) HotPosts(ctx context.Context, subreddit string, limit int) *RedditPosts {
	limit = clamp(limit, 1, 100)
	res := &RedditPosts{
		Subreddit: subreddit,
		Posts:     []RedditPost{},
		Limit:     limit,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	query := url.Values{
		// Over-fetch so skipping stickied posts still fills the page.
		"limit":    {strconv.Itoa(clamp(limit+5, 1, 100))},
		"raw_json": {"1"},
	}
	endpoint := fmt.Sprintf("%s/r/%s/hot.json?%s", c.baseURL, url.PathEscape(subreddit), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		res.Error = "Internal error"
		res.Message = err.Error()
		return res
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("subreddit", subreddit).Msg("reddit fetch")
		res.Error = "API request failed"
		res.Message = err.Error()
		return res
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		res.Error = "Subreddit not found"
		res.Message = fmt.Sprintf("Subreddit r/%s not found or is banned.", subreddit)
		return res
	case http.StatusForbidden:
		res.Error = "Private subreddit"
		res.Message = fmt.Sprintf("Subreddit r/%s is private and cannot be accessed.", subreddit)
		return res
	case http.StatusUnauthorized:
		res.Error = "Authentication failed"
		res.Message = "Reddit rejected the request. Please check the configured user agent."
		return res
	default:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		c.log.Error().Int("status", resp.StatusCode).Str("subreddit", subreddit).Msg("reddit unexpected status")
		res.Error = "API request failed"
		res.Message = fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, data)
		return res
	}

	var listing struct {
		Data struct {
			Children []struct {
				Data struct {
					ID                  string  `json:"id"`
					Title               string  `json:"title"`
					Author              string  `json:"author"`
					Subreddit           string  `json:"subreddit"`
					Score               int     `json:"score"`
					UpvoteRatio         float64 `json:"upvote_ratio"`
					NumComments         int     `json:"num_comments"`
					Permalink           string  `json:"permalink"`
					CreatedUTC          float64 `json:"created_utc"`
					IsSelf              bool    `json:"is_self"`
					Selftext            string  `json:"selftext"`
					URL                 string  `json:"url"`
					Thumbnail           string  `json:"thumbnail"`
					Over18              bool    `json:"over_18"`
					Spoiler             bool    `json:"spoiler"`
					Stickied            bool    `json:"stickied"`
					TotalAwardsReceived int     `json:"total_awards_received"`
				} `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&listing); err != nil {
		res.Error = "API request failed"
		res.Message = "unexpected response shape"
		return res
	}

	for _, child := range listing.Data.Children {
		if len(res.Posts) == limit {
			break
		}
		post := child.Data
		if post.Stickied {
			continue
		}

		author := post.Author
		if author == "" {
			author = "[deleted]"
		}
		selftext := ""
		if post.IsSelf {
			selftext = post.Selftext
			if len(selftext) > 500 {
				selftext = selftext[:500]
			}
		}
		var linkURL *string
		if !post.IsSelf && post.URL != "" {
			u := post.URL
			linkURL = &u
		}
		var thumbnail *string
		if post.Thumbnail != "" && !redditPlaceholders[post.Thumbnail] {
			t := post.Thumbnail
			thumbnail = &t
		}

		res.Posts = append(res.Posts, RedditPost{
			PostID:      post.ID,
			Title:       post.Title,
			Author:      author,
			Subreddit:   post.Subreddit,
			Upvotes:     post.Score,
			UpvoteRatio: post.UpvoteRatio,
			NumComments: post.NumComments,
			URL:         "https://reddit.com" + post.Permalink,
			CreatedAt:   time.Unix(int64(post.CreatedUTC), 0).UTC().Format(time.RFC3339),
			IsSelf:      post.IsSelf,
			Selftext:    selftext,
			LinkURL:     linkURL,
			Thumbnail:   thumbnail,
			Over18:      post.Over18,
			Spoiler:     post.Spoiler,
			Awards:      post.TotalAwardsReceived,
		})
	}

	res.Success = true
	res.Count = len(res.Posts)
	return res
}
