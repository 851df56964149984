// Package trends proxies trend data from Google Trends, YouTube, Reddit,
// Exa, and Twitter. Connectors translate one HTTP call into another and
// encode upstream failures inside the response envelope; the Service adds a
// snapshot cache in front of them so repeated lookups within the TTL skip
// the upstream entirely.
package trends

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"trendpulse/internal/metrics"
	"trendpulse/internal/models"
	"trendpulse/internal/store"
)

// envelope is satisfied by every connector response.
type envelope interface {
	OK() bool
}

// GoogleRequest selects a Google Trends action.
type GoogleRequest struct {
	Action    string `json:"action" validate:"required,oneof=trending_searches keyword_interest"`
	Country   string `json:"country,omitempty"`
	Keyword   string `json:"keyword,omitempty"`
	Timeframe string `json:"timeframe,omitempty"`
	Geo       string `json:"geo,omitempty"`
}

// YouTubeRequest fetches trending videos, or searches when Query is set.
type YouTubeRequest struct {
	Country    string  `json:"country,omitempty"`
	Category   *string `json:"category,omitempty"`
	MaxResults int     `json:"max_results,omitempty" validate:"omitempty,min=1,max=50"`
	Query      string  `json:"query,omitempty"`
	Order      string  `json:"order,omitempty" validate:"omitempty,oneof=relevance date viewCount rating"`
}

// RedditRequest fetches hot posts of a subreddit.
type RedditRequest struct {
	Subreddit string `json:"subreddit,omitempty"`
	Limit     int    `json:"limit,omitempty" validate:"omitempty,min=1,max=100"`
}

// ExaRequest selects an Exa action.
type ExaRequest struct {
	Action     string `json:"action" validate:"required,oneof=search_trending deep_research"`
	Query      string `json:"query,omitempty"`
	Topic      string `json:"topic,omitempty"`
	NumResults int    `json:"num_results,omitempty" validate:"omitempty,min=1,max=100"`
}

// TwitterRequest selects a Twitter action.
type TwitterRequest struct {
	Action     string `json:"action" validate:"required,oneof=search trends"`
	Query      string `json:"query,omitempty"`
	MaxResults int    `json:"max_results,omitempty" validate:"omitempty,min=10,max=100"`
	WOEID      int    `json:"woeid,omitempty"`
}

// Service fronts the connectors with TrendSnapshot caching.
type Service struct {
	store    store.Store
	cacheTTL time.Duration
	log      zerolog.Logger

	google  *GoogleClient
	youtube *YouTubeClient
	reddit  *RedditClient
	exa     *ExaClient
	twitter *TwitterClient
}

// NewService wires the connector set behind the snapshot cache.
func NewService(st store.Store, cacheTTL time.Duration, log zerolog.Logger, google *GoogleClient, youtube *YouTubeClient, reddit *RedditClient, exa *ExaClient, twitter *TwitterClient) *Service {
	return &Service{
		store:    st,
		cacheTTL: cacheTTL,
		log:      log,
		google:   google,
		youtube:  youtube,
		reddit:   reddit,
		exa:      exa,
		twitter:  twitter,
	}
}

// TwitterConfigured reports whether the Twitter connector has credentials.
func (s *Service) TwitterConfigured() bool { return s.twitter.Configured() }

// Google dispatches a Google Trends request.
func (s *Service) Google(ctx context.Context, req GoogleRequest) (json.RawMessage, error) {
	switch req.Action {
	case "trending_searches":
		country := req.Country
		if country == "" {
			country = "united_states"
		}
		key := "trending_searches:" + country
		return s.cached(ctx, "google", key, func() envelope {
			return s.google.TrendingSearches(ctx, country)
		})
	case "keyword_interest":
		timeframe := req.Timeframe
		if timeframe == "" {
			timeframe = "today 12-m"
		}
		geo := req.Geo
		if geo == "" {
			geo = "US"
		}
		key := strings.Join([]string{"keyword_interest", req.Keyword, timeframe, geo}, ":")
		return s.cached(ctx, "google", key, func() envelope {
			return s.google.KeywordInterest(ctx, req.Keyword, timeframe, geo)
		})
	default:
		return nil, fmt.Errorf("unknown google trends action %q", req.Action)
	}
}

// YouTube dispatches a YouTube request: trending videos by default, keyword
// search when a query is present.
func (s *Service) YouTube(ctx context.Context, req YouTubeRequest) (json.RawMessage, error) {
	country := req.Country
	if country == "" {
		country = "US"
	}
	maxResults := req.MaxResults
	if maxResults == 0 {
		maxResults = 20
	}

	if req.Query != "" {
		key := strings.Join([]string{"search", req.Query, country, strconv.Itoa(maxResults), req.Order}, ":")
		return s.cached(ctx, "youtube", key, func() envelope {
			return s.youtube.SearchVideos(ctx, req.Query, country, maxResults, req.Order)
		})
	}

	category := ""
	if req.Category != nil {
		category = *req.Category
	}
	key := strings.Join([]string{"trending", country, category, strconv.Itoa(maxResults)}, ":")
	return s.cached(ctx, "youtube", key, func() envelope {
		return s.youtube.TrendingVideos(ctx, country, req.Category, maxResults)
	})
}

// Reddit dispatches a hot-posts request.
func (s *Service) Reddit(ctx context.Context, req RedditRequest) (json.RawMessage, error) {
	subreddit := req.Subreddit
	if subreddit == "" {
		subreddit = "all"
	}
	limit := req.Limit
	if limit == 0 {
		limit = 20
	}
	key := strings.Join([]string{"hot", subreddit, strconv.Itoa(limit)}, ":")
	return s.cached(ctx, "reddit", key, func() envelope {
		return s.reddit.HotPosts(ctx, subreddit, limit)
	})
}

// Exa dispatches a search or research request.
func (s *Service) Exa(ctx context.Context, req ExaRequest) (json.RawMessage, error) {
	switch req.Action {
	case "search_trending":
		numResults := req.NumResults
		if numResults == 0 {
			numResults = 10
		}
		key := strings.Join([]string{"search", req.Query, strconv.Itoa(numResults)}, ":")
		return s.cached(ctx, "exa", key, func() envelope {
			return s.exa.SearchTrending(ctx, req.Query, numResults)
		})
	case "deep_research":
		numResults := req.NumResults
		if numResults == 0 {
			numResults = 5
		}
		key := strings.Join([]string{"research", req.Topic, strconv.Itoa(numResults)}, ":")
		return s.cached(ctx, "exa", key, func() envelope {
			return s.exa.DeepResearch(ctx, req.Topic, numResults)
		})
	default:
		return nil, fmt.Errorf("unknown exa action %q", req.Action)
	}
}

// Twitter dispatches a tweet search or trends request. Twitter results are
// never cached: the recent-search window moves too fast for snapshots to be
// meaningful.
func (s *Service) Twitter(ctx context.Context, req TwitterRequest) (json.RawMessage, error) {
	var res envelope
	switch req.Action {
	case "search":
		maxResults := req.MaxResults
		if maxResults == 0 {
			maxResults = 10
		}
		res = s.twitter.SearchTweets(ctx, req.Query, maxResults)
	case "trends":
		res = s.twitter.Trends(ctx, req.WOEID)
	default:
		return nil, fmt.Errorf("unknown twitter action %q", req.Action)
	}

	s.observe("twitter", res.OK())
	return json.Marshal(res)
}

// cached serves a fresh snapshot when one exists, otherwise calls fetch and
// stores the payload if the upstream call succeeded. Failed envelopes are
// returned to the caller but never cached.
func (s *Service) cached(ctx context.Context, provider, key string, fetch func() envelope) (json.RawMessage, error) {
	if s.cacheTTL > 0 {
		notBefore := time.Now().UTC().Add(-s.cacheTTL)
		payload, err := s.store.FreshSnapshot(ctx, provider, key, notBefore)
		switch {
		case err == nil:
			metrics.ConnectorRequests.WithLabelValues(provider, "cache_hit").Inc()
			return payload, nil
		case !errors.Is(err, store.ErrNotFound):
			s.log.Warn().Err(err).Str("provider", provider).Msg("snapshot lookup")
		}
	}

	res := fetch()
	payload, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encode %s response: %w", provider, err)
	}
	s.observe(provider, res.OK())

	if res.OK() && s.cacheTTL > 0 {
		snapshot := &models.TrendSnapshot{
			Provider:   provider,
			RequestKey: key,
			Payload:    datatypes.JSON(payload),
			FetchedAt:  time.Now().UTC(),
		}
		if err := s.store.SaveSnapshot(ctx, snapshot); err != nil {
			s.log.Warn().Err(err).Str("provider", provider).Msg("save snapshot")
		}
	}
	return payload, nil
}

func (s *Service) observe(provider string, ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	metrics.ConnectorRequests.WithLabelValues(provider, outcome).Inc()
}
