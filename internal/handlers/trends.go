package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"trendpulse/internal/trends"
)

func (a *API) handleGoogleTrends(w http.ResponseWriter, r *http.Request) {
	var req trends.GoogleRequest
	if !a.decodeTrendRequest(w, r, &req) {
		return
	}
	if req.Action == "keyword_interest" && req.Keyword == "" {
		respondError(w, http.StatusBadRequest, errors.New("keyword is required for keyword_interest"))
		return
	}

	a.serveTrend(r.Context(), w, "google", func(ctx context.Context) (json.RawMessage, error) {
		return a.trends.Google(ctx, req)
	})
}

func (a *API) handleYouTubeTrends(w http.ResponseWriter, r *http.Request) {
	var req trends.YouTubeRequest
	if !a.decodeTrendRequest(w, r, &req) {
		return
	}

	a.serveTrend(r.Context(), w, "youtube", func(ctx context.Context) (json.RawMessage, error) {
		return a.trends.YouTube(ctx, req)
	})
}

func (a *API) handleRedditTrends(w http.ResponseWriter, r *http.Request) {
	var req trends.RedditRequest
	if !a.decodeTrendRequest(w, r, &req) {
		return
	}

	a.serveTrend(r.Context(), w, "reddit", func(ctx context.Context) (json.RawMessage, error) {
		return a.trends.Reddit(ctx, req)
	})
}

func (a *API) handleExaTrends(w http.ResponseWriter, r *http.Request) {
	var req trends.ExaRequest
	if !a.decodeTrendRequest(w, r, &req) {
		return
	}
	if req.Action == "search_trending" && req.Query == "" {
		respondError(w, http.StatusBadRequest, errors.New("query is required for search_trending"))
		return
	}
	if req.Action == "deep_research" && req.Topic == "" {
		respondError(w, http.StatusBadRequest, errors.New("topic is required for deep_research"))
		return
	}

	a.serveTrend(r.Context(), w, "exa", func(ctx context.Context) (json.RawMessage, error) {
		return a.trends.Exa(ctx, req)
	})
}

func (a *API) handleTwitterTrends(w http.ResponseWriter, r *http.Request) {
	var req trends.TwitterRequest
	if !a.decodeTrendRequest(w, r, &req) {
		return
	}
	if req.Action == "search" && req.Query == "" {
		respondError(w, http.StatusBadRequest, errors.New("query is required for search"))
		return
	}
	if !a.trends.TwitterConfigured() {
		respondError(w, http.StatusServiceUnavailable, errors.New("twitter integration is not configured"))
		return
	}

	a.serveTrend(r.Context(), w, "twitter", func(ctx context.Context) (json.RawMessage, error) {
		return a.trends.Twitter(ctx, req)
	})
}

// decodeTrendRequest decodes and validates a connector payload, writing the
// 400 itself when the request is unusable.
func (a *API) decodeTrendRequest(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := decodeJSON(r, dest); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return false
	}
	if err := a.validate.Struct(dest); err != nil {
		respondError(w, http.StatusBadRequest, errors.New("invalid request parameters"))
		return false
	}
	return true
}

// serveTrend relays the connector envelope verbatim. Upstream failures live
// inside the envelope with success=false; only internal errors become 500s.
func (a *API) serveTrend(ctx context.Context, w http.ResponseWriter, provider string, fetch func(context.Context) (json.RawMessage, error)) {
	payload, err := fetch(ctx)
	if err != nil {
		a.log.Error().Err(err).Str("provider", provider).Msg("trend lookup")
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}
	respondRaw(w, http.StatusOK, payload)
}
