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

const (
	googleBaseURL = "https://trends.google.com"
	googleLocale  = "en-US"
	googleTZ      = "360"
)

// geoByCountry maps the human-readable country names accepted by the API to
// the geo codes the upstream endpoints expect.
var geoByCountry = map[string]string{
	"united_states":  "US",
	"united_kingdom": "GB",
	"brazil":         "BR",
	"germany":        "DE",
	"france":         "FR",
	"india":          "IN",
	"japan":          "JP",
	"canada":         "CA",
	"australia":      "AU",
	"mexico":         "MX",
	"spain":          "ES",
	"italy":          "IT",
	"netherlands":    "NL",
	"south_korea":    "KR",
	"argentina":      "AR",
}

// GoogleClient talks to the public Google Trends endpoints. The responses
// carry an anti-hijacking prefix that must be stripped before decoding.
type GoogleClient struct {
	httpClient *http.Client
	baseURL    string
	log        zerolog.Logger
}

// NewGoogleClient returns a client against the public Google Trends host.
func NewGoogleClient(log zerolog.Logger) *GoogleClient {
	return &GoogleClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    googleBaseURL,
		log:        log,
	}
}

// RankedTrend is one entry of a trending-searches listing.
type RankedTrend struct {
	Rank  int    `json:"rank"`
	Query string `json:"query"`
	Title string `json:"title"`
}

// TrendingSearches is the response envelope for the trending-searches action.
type TrendingSearches struct {
	Success   bool          `json:"success"`
	Country   string        `json:"country"`
	Trends    []RankedTrend `json:"trends"`
	Count     int           `json:"count"`
	Timestamp string        `json:"timestamp"`
	Error     string        `json:"error,omitempty"`
	Message   string        `json:"message,omitempty"`
}

// OK reports whether the upstream call succeeded.
func (r *TrendingSearches) OK() bool { return r.Success }

// InterestPoint is one sample of keyword interest over time.
type InterestPoint struct {
	Date  string `json:"date"`
	Value int    `json:"value"`
}

// RelatedQuery is a related search with its relative interest value. Rising
// queries report the value as a string because the upstream uses "Breakout"
// for queries with explosive growth.
type RelatedQuery struct {
	Query string `json:"query"`
	Value any    `json:"value"`
}

// KeywordInterest is the response envelope for the keyword-interest action.
type KeywordInterest struct {
	Success         bool                      `json:"success"`
	Keyword         string                    `json:"keyword"`
	Timeframe       string                    `json:"timeframe"`
	Geo             string                    `json:"geo"`
	Data            []InterestPoint           `json:"data"`
	Count           int                       `json:"count,omitempty"`
	RelatedQueries  map[string][]RelatedQuery `json:"related_queries,omitempty"`
	Timestamp       string                    `json:"timestamp"`
	AverageInterest float64                   `json:"average_interest,omitempty"`
	PeakInterest    int                       `json:"peak_interest,omitempty"`
	Error           string                    `json:"error,omitempty"`
	Message         string                    `json:"message,omitempty"`
}

// OK reports whether the upstream call succeeded.
func (r *KeywordInterest) OK() bool { return r.Success }

// TrendingSearches returns the top 20 trending searches for a country.
// Upstream failures are reported inside the envelope, not as errors.
func (c *GoogleClient) TrendingSearches(ctx context.Context, country string) *TrendingSearches {
	res := &TrendingSearches{
		Country:   country,
		Trends:    []RankedTrend{},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	geo, ok := geoByCountry[country]
	if !ok {
		res.Error = "Invalid country"
		res.Message = fmt.Sprintf("Unknown country %q", country)
		return res
	}

	query := url.Values{
		"hl":  {googleLocale},
		"tz":  {googleTZ},
		"geo": {geo},
		"ns":  {"15"},
	}
	body, err := c.get(ctx, "/trends/api/dailytrends", query)
	if err != nil {
		c.log.Error().Err(err).Str("country", country).Msg("google trends daily fetch")
		res.Error = "API request failed"
		res.Message = err.Error()
		return res
	}

	var payload struct {
		Default struct {
			TrendingSearchesDays []struct {
				TrendingSearches []struct {
					Title struct {
						Query string `json:"query"`
					} `json:"title"`
				} `json:"trendingSearches"`
			} `json:"trendingSearchesDays"`
		} `json:"default"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		res.Error = "API request failed"
		res.Message = "unexpected response shape"
		return res
	}

	for _, day := range payload.Default.TrendingSearchesDays {
		for _, t := range day.TrendingSearches {
			if len(res.Trends) == 20 {
				break
			}
			res.Trends = append(res.Trends, RankedTrend{
				Rank:  len(res.Trends) + 1,
				Query: t.Title.Query,
				Title: t.Title.Query,
			})
		}
	}

	if len(res.Trends) == 0 {
		res.Message = "No trending searches available"
		return res
	}

	res.Success = true
	res.Count = len(res.Trends)
	return res
}

// KeywordInterest returns interest-over-time samples plus best-effort related
// queries for a keyword. The explore endpoint hands out per-widget tokens
// that authorize the widgetdata calls.
func (c *GoogleClient) KeywordInterest(ctx context.Context, keyword, timeframe, geo string) *KeywordInterest {
	res := &KeywordInterest{
		Keyword:   keyword,
		Timeframe: timeframe,
		Geo:       geo,
		Data:      []InterestPoint{},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	widgets, err := c.explore(ctx, keyword, timeframe, geo)
	if err != nil {
		c.log.Error().Err(err).Str("keyword", keyword).Msg("google trends explore")
		res.Error = "API request failed"
		res.Message = err.Error()
		return res
	}

	series, ok := widgets["TIMESERIES"]
	if !ok {
		res.Message = "No interest data available"
		return res
	}

	points, err := c.timeline(ctx, series)
	if err != nil {
		c.log.Error().Err(err).Str("keyword", keyword).Msg("google trends timeline")
		res.Error = "API request failed"
		res.Message = err.Error()
		return res
	}
	if len(points) == 0 {
		res.Message = "No interest data available"
		return res
	}

	res.Success = true
	res.Data = points
	res.Count = len(points)

	var total, peak int
	for _, p := range points {
		total += p.Value
		if p.Value > peak {
			peak = p.Value
		}
	}
	res.AverageInterest = float64(total) / float64(len(points))
	res.PeakInterest = peak

	// Related queries are a nice-to-have; failures leave the map empty.
	if related, ok := widgets["RELATED_QUERIES"]; ok {
		queries, err := c.relatedQueries(ctx, related)
		if err != nil {
			c.log.Warn().Err(err).Str("keyword", keyword).Msg("google trends related queries")
		} else {
			res.RelatedQueries = queries
		}
	}
	if res.RelatedQueries == nil {
		res.RelatedQueries = map[string][]RelatedQuery{}
	}

	return res
}

type googleWidget struct {
	ID      string          `json:"id"`
	Token   string          `json:"token"`
	Request json.RawMessage `json:"request"`
}

func (c *GoogleClient) explore(ctx context.Context, keyword, timeframe, geo string) (map[string]googleWidget, error) {
	req := map[string]any{
		"comparisonItem": []map[string]string{
			{"keyword": keyword, "geo": geo, "time": timeframe},
		},
		"category": 0,
		"property": "",
	}
	encoded, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode explore request: %w", err)
	}

	query := url.Values{
		"hl":  {googleLocale},
		"tz":  {googleTZ},
		"req": {string(encoded)},
	}
	body, err := c.get(ctx, "/trends/api/explore", query)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Widgets []googleWidget `json:"widgets"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode explore response: %w", err)
	}

	widgets := make(map[string]googleWidget, len(payload.Widgets))
	for _, w := range payload.Widgets {
		widgets[w.ID] = w
	}
	return widgets, nil
}

func (c *GoogleClient) timeline(ctx context.Context, widget googleWidget) ([]InterestPoint, error) {
	query := url.Values{
		"hl":    {googleLocale},
		"tz":    {googleTZ},
		"req":   {string(widget.Request)},
		"token": {widget.Token},
	}
	body, err := c.get(ctx, "/trends/api/widgetdata/multiline", query)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Default struct {
			TimelineData []struct {
				Time  string `json:"time"`
				Value []int  `json:"value"`
			} `json:"timelineData"`
		} `json:"default"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode timeline response: %w", err)
	}

	points := make([]InterestPoint, 0, len(payload.Default.TimelineData))
	for _, sample := range payload.Default.TimelineData {
		unix, err := strconv.ParseInt(sample.Time, 10, 64)
		if err != nil {
			continue
		}
		var value int
		if len(sample.Value) > 0 {
			value = sample.Value[0]
		}
		points = append(points, InterestPoint{
			Date:  time.Unix(unix, 0).UTC().Format("2006-01-02"),
			Value: value,
		})
	}
	return points, nil
}

func (c *GoogleClient) relatedQueries(ctx context.Context, widget googleWidget) (map[string][]RelatedQuery, error) {
	query := url.Values{
		"hl":    {googleLocale},
		"tz":    {googleTZ},
		"req":   {string(widget.Request)},
		"token": {widget.Token},
	}
	body, err := c.get(ctx, "/trends/api/widgetdata/relatedsearches", query)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Default struct {
			RankedList []struct {
				RankedKeyword []struct {
					Query          string `json:"query"`
					Value          int    `json:"value"`
					FormattedValue string `json:"formattedValue"`
				} `json:"rankedKeyword"`
			} `json:"rankedList"`
		} `json:"default"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode related searches: %w", err)
	}

	// The first ranked list holds top queries, the second rising ones.
	out := map[string][]RelatedQuery{}
	for i, list := range payload.Default.RankedList {
		var queries []RelatedQuery
		for j, kw := range list.RankedKeyword {
			if j == 10 {
				break
			}
			if i == 0 {
				queries = append(queries, RelatedQuery{Query: kw.Query, Value: kw.Value})
			} else {
				queries = append(queries, RelatedQuery{Query: kw.Query, Value: kw.FormattedValue})
			}
		}
		switch i {
		case 0:
			out["top"] = queries
		case 1:
			out["rising"] = queries
		}
	}
	return out, nil
}

// get performs a GET and strips the `)]}'` anti-hijacking prefix the trends
// endpoints prepend to their JSON bodies.
func (c *GoogleClient) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("fetch %s: unexpected status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if idx := strings.IndexByte(string(body), '{'); idx > 0 {
		body = body[idx:]
	}
	return body, nil
}
