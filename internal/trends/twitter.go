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

const twitterBaseURL = "https://api.twitter.com"

// TwitterClient talks to the Twitter/X API with an app bearer token. Without
// a token every call reports a structured not-configured failure, which the
// transport layer maps to 503.
type TwitterClient struct {
	httpClient *http.Client
	baseURL    string
	bearer     string
	log        zerolog.Logger
}

// NewTwitterClient returns a client for the Twitter API.
func NewTwitterClient(bearer string, log zerolog.Logger) *TwitterClient {
	return &TwitterClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    twitterBaseURL,
		bearer:     bearer,
		log:        log,
	}
}

// Configured reports whether credentials are present.
func (c *TwitterClient) Configured() bool { return c.bearer != "" }

// Tweet is the reshaped projection of one tweet with its author.
type Tweet struct {
	TweetID       string    `json:"tweet_id"`
	Text          string    `json:"text"`
	User          TweetUser `json:"user"`
	CreatedAt     string    `json:"created_at"`
	RetweetCount  int       `json:"retweet_count"`
	FavoriteCount int       `json:"favorite_count"`
	ReplyCount    int       `json:"reply_count"`
	URL           string    `json:"url"`
}

// TweetUser identifies a tweet's author.
type TweetUser struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	ScreenName     string  `json:"screen_name"`
	ProfileImage   *string `json:"profile_image"`
	FollowersCount int     `json:"followers_count"`
}

// TweetSearch is the response envelope for tweet search.
type TweetSearch struct {
	Success    bool    `json:"success"`
	Query      string  `json:"query"`
	Tweets     []Tweet `json:"tweets"`
	Count      int     `json:"count"`
	MaxResults int     `json:"max_results"`
	Timestamp  string  `json:"timestamp"`
	Error      string  `json:"error,omitempty"`
	Message    string  `json:"message,omitempty"`
}

// OK reports whether the upstream call succeeded.
func (r *TweetSearch) OK() bool { return r.Success }

// TwitterTrend is one trending topic.
type TwitterTrend struct {
	Rank       int     `json:"rank"`
	Name       string  `json:"name"`
	TweetCount *int    `json:"tweet_count"`
	URL        *string `json:"url"`
}

// TwitterTrends is the response envelope for trending topics.
type TwitterTrends struct {
	Success   bool           `json:"success"`
	Trends    []TwitterTrend `json:"trends"`
	Count     int            `json:"count"`
	Timestamp string         `json:"timestamp"`
	Error     string         `json:"error,omitempty"`
	Message   string         `json:"message,omitempty"`
}

// OK reports whether the upstream call succeeded.
func (r *TwitterTrends) OK() bool { return r.Success }

// SearchTweets returns recent tweets matching a query.
func (c *TwitterClient) SearchTweets(ctx context.Context, query string, maxResults int) *TweetSearch {
	maxResults = clamp(maxResults, 10, 100)
	res := &TweetSearch{
		Query:      query,
		Tweets:     []Tweet{},
		MaxResults: maxResults,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	if !c.Configured() {
		res.Error = "Not configured"
		res.Message = "Twitter credentials not configured. Please set TWITTER_BEARER_TOKEN."
		return res
	}

	params := url.Values{
		"query":        {query},
		"max_results":  {strconv.Itoa(maxResults)},
		"tweet.fields": {"created_at,public_metrics,author_id"},
		"expansions":   {"author_id"},
		"user.fields":  {"name,username,profile_image_url,public_metrics"},
	}

	body, failure := c.get(ctx, "/2/tweets/search/recent", params)
	if failure != nil {
		res.Error = failure.label
		res.Message = failure.message
		return res
	}

	var payload struct {
		Data []struct {
			ID            string `json:"id"`
			Text          string `json:"text"`
			AuthorID      string `json:"author_id"`
			CreatedAt     string `json:"created_at"`
			PublicMetrics struct {
				RetweetCount int `json:"retweet_count"`
				LikeCount    int `json:"like_count"`
				ReplyCount   int `json:"reply_count"`
			} `json:"public_metrics"`
		} `json:"data"`
		Includes struct {
			Users []struct {
				ID              string `json:"id"`
				Name            string `json:"name"`
				Username        string `json:"username"`
				ProfileImageURL string `json:"profile_image_url"`
				PublicMetrics   struct {
					FollowersCount int `json:"followers_count"`
				} `json:"public_metrics"`
			} `json:"users"`
		} `json:"includes"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		res.Error = "API request failed"
		res.Message = "unexpected response shape"
		return res
	}

	users := make(map[string]TweetUser, len(payload.Includes.Users))
	for _, u := range payload.Includes.Users {
		user := TweetUser{
			ID:             u.ID,
			Name:           u.Name,
			ScreenName:     u.Username,
			FollowersCount: u.PublicMetrics.FollowersCount,
		}
		if u.ProfileImageURL != "" {
			img := u.ProfileImageURL
			user.ProfileImage = &img
		}
		users[u.ID] = user
	}

	for _, tweet := range payload.Data {
		user, ok := users[tweet.AuthorID]
		if !ok {
			user = TweetUser{Name: "Unknown", ScreenName: "unknown"}
		}
		res.Tweets = append(res.Tweets, Tweet{
			TweetID:       tweet.ID,
			Text:          tweet.Text,
			User:          user,
			CreatedAt:     tweet.CreatedAt,
			RetweetCount:  tweet.PublicMetrics.RetweetCount,
			FavoriteCount: tweet.PublicMetrics.LikeCount,
			ReplyCount:    tweet.PublicMetrics.ReplyCount,
			URL:           fmt.Sprintf("https://twitter.com/%s/status/%s", user.ScreenName, tweet.ID),
		})
	}

	res.Success = true
	res.Count = len(res.Tweets)
	return res
}

// Trends returns the top 20 trending topics for a place identified by WOEID
// (1 is worldwide).
func (c *TwitterClient) Trends(ctx context.Context, woeid int) *TwitterTrends {
	res := &TwitterTrends{
		Trends:    []TwitterTrend{},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if !c.Configured() {
		res.Error = "Not configured"
		res.Message = "Twitter credentials not configured. Please set TWITTER_BEARER_TOKEN."
		return res
	}
	if woeid <= 0 {
		woeid = 1
	}

	params := url.Values{"id": {strconv.Itoa(woeid)}}
	body, failure := c.get(ctx, "/1.1/trends/place.json", params)
	if failure != nil {
		res.Error = failure.label
		res.Message = failure.message
		return res
	}

	var payload []struct {
		Trends []struct {
			Name       string `json:"name"`
			URL        string `json:"url"`
			TweetCount *int   `json:"tweet_volume"`
		} `json:"trends"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		res.Error = "API request failed"
		res.Message = "unexpected response shape"
		return res
	}

	if len(payload) > 0 {
		for i, trend := range payload[0].Trends {
			if i == 20 {
				break
			}
			entry := TwitterTrend{
				Rank:       i + 1,
				Name:       trend.Name,
				TweetCount: trend.TweetCount,
			}
			if trend.URL != "" {
				u := trend.URL
				entry.URL = &u
			}
			res.Trends = append(res.Trends, entry)
		}
	}

	res.Success = true
	res.Count = len(res.Trends)
	return res
}

type twitterFailure struct {
	label   string
	message string
}

func (c *TwitterClient) get(ctx context.Context, path string, params url.Values) ([]byte, *twitterFailure) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &twitterFailure{label: "Internal error", message: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+c.bearer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("path", path).Msg("twitter fetch")
		return nil, &twitterFailure{label: "API request failed", message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &twitterFailure{label: "API request failed", message: err.Error()}
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, &twitterFailure{
			label:   "Authentication failed",
			message: "Twitter rejected the bearer token. Please check your credentials.",
		}
	case http.StatusTooManyRequests:
		return nil, &twitterFailure{
			label:   "Rate limit exceeded",
			message: "Twitter API rate limit exceeded. Please try again later.",
		}
	default:
		c.log.Error().Int("status", resp.StatusCode).Str("path", path).Msg("twitter unexpected status")
		return nil, &twitterFailure{
			label:   "API request failed",
			message: fmt.Sprintf("unexpected status %d", resp.StatusCode),
		}
	}
}
