// Package allanime is a small client for the AllAnime GraphQL-ish catalog
// API, covering the two calls anitrack needs: free-text show search and
// per-mode episode-label lists. Remote failures are expected and degrade to
// warnings at the call sites; nothing here aborts a playback session.
package allanime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"github.com/natsukawa/anitrack/internal/episode"
	"github.com/natsukawa/anitrack/internal/utils"
)

const (
	defaultEndpoint = "https://api.allanime.day/api"
	defaultReferer  = "https://allmanga.to"
	userAgent       = "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/121.0"

	searchQuery = `query ($search: SearchInput, $limit: Int, $page: Int, $translationType: VaildTranslationTypeEnumType, $countryOrigin: VaildCountryOriginEnumType) { shows(search: $search, limit: $limit, page: $page, translationType: $translationType, countryOrigin: $countryOrigin) { edges { _id name availableEpisodes __typename } } }`
	showQuery   = `query ($showId: String!) { show(_id: $showId) { _id availableEpisodesDetail } }`
)

// SearchResult is one ranked hit from the search endpoint.
type SearchResult struct {
	ID    string
	Title string
}

// Client talks to the catalog/search service with bounded timeouts and a
// small retry budget for transient failures.
type Client struct {
	http     *retryablehttp.Client
	endpoint string
	referer  string
}

// New builds a Client. Empty endpoint or referer fall back to the production
// service.
func New(endpoint, referer string) *Client {
	rc := retryablehttp.NewClient()
	rc.Logger = log.New(io.Discard, "", 0)
	rc.RetryMax = 2
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = 6 * time.Second
	rc.HTTPClient.Transport = &http.Transport{
		DialContext: (&net.Dialer{Timeout: 3 * time.Second}).DialContext,
	}

	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	if referer == "" {
		referer = defaultReferer
	}
	return &Client{http: rc, endpoint: endpoint, referer: referer}
}

type searchVariables struct {
	Search struct {
		AllowAdult   bool   `json:"allowAdult"`
		AllowUnknown bool   `json:"allowUnknown"`
		Query        string `json:"query"`
	} `json:"search"`
	Limit           int    `json:"limit"`
	Page            int    `json:"page"`
	TranslationType string `json:"translationType"`
	CountryOrigin   string `json:"countryOrigin"`
}

// Search returns ranked shows for a free-text query in one translation mode.
func (c *Client) Search(ctx context.Context, query, mode string) ([]SearchResult, error) {
	vars := searchVariables{
		Limit:           40,
		Page:            1,
		TranslationType: mode,
		CountryOrigin:   "ALL",
	}
	vars.Search.Query = query

	body, err := c.get(ctx, searchQuery, vars)
	if err != nil {
		return nil, err
	}

	var results []SearchResult
	for _, edge := range gjson.Get(body, "data.shows.edges").Array() {
		id := edge.Get("_id").String()
		name := edge.Get("name").String()
		if id == "" || name == "" {
			continue
		}
		results = append(results, SearchResult{ID: id, Title: name})
	}
	utils.Log.Debugf("allanime: search %q mode=%s -> %d results", query, mode, len(results))
	return results, nil
}

// EpisodeLabels fetches the sub and dub episode-label variants for a show.
// Numeric labels are rendered as strings; null and empty entries are
// discarded.
func (c *Client) EpisodeLabels(ctx context.Context, showID string) (sub, dub []string, err error) {
	vars := struct {
		ShowID string `json:"showId"`
	}{ShowID: showID}

	body, err := c.get(ctx, showQuery, vars)
	if err != nil {
		return nil, nil, err
	}

	detail := gjson.Get(body, "data.show.availableEpisodesDetail")
	sub = labelList(detail.Get("sub"))
	dub = labelList(detail.Get("dub"))
	utils.Log.Debugf("allanime: episode detail for %s -> %d sub, %d dub", showID, len(sub), len(dub))
	return sub, dub, nil
}

func labelList(arr gjson.Result) []string {
	var labels []string
	for _, v := range arr.Array() {
		if v.Type == gjson.Null {
			continue
		}
		s := strings.TrimSpace(v.String())
		if s == "" {
			continue
		}
		labels = append(labels, s)
	}
	return labels
}

// Catalog fetches a show's episode labels and reduces them to one ordered,
// deduplicated list: the variant matching the total hint wins, else the
// longer one. Remote failure degrades to a nil catalog plus a warning.
func (c *Client) Catalog(ctx context.Context, showID string, totalHint int) ([]string, []string) {
	sub, dub, err := c.EpisodeLabels(ctx, showID)
	if err != nil {
		return nil, []string{fmt.Sprintf("failed to fetch episode list for %s: %v", showID, err)}
	}
	chosen := episode.ChooseVariant([][]string{sub, dub}, totalHint)
	if chosen == nil {
		return nil, nil
	}
	return episode.SortedUnique(chosen), nil
}

// ResolveRank finds the 1-based search rank of a show so ani-cli's -S flag
// can skip interactive disambiguation. The sanitized title is tried first,
// then the raw title if it differs, across the preferred mode then "sub"
// then "dub". Within one result list an exact show-id match beats a
// normalized-title match. Returns 0 with warnings when nothing resolves.
func (c *Client) ResolveRank(ctx context.Context, showID, title, preferredMode string) (int, []string) {
	queries := []string{episode.SanitizeTitle(title)}
	if raw := strings.TrimSpace(title); raw != "" && raw != queries[0] {
		queries = append(queries, raw)
	}

	var warnings []string
	for _, q := range queries {
		if q == "" {
			continue
		}
		for _, mode := range uniqueModes(preferredMode) {
			results, err := c.Search(ctx, q, mode)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("search %q (%s) failed: %v", q, mode, err))
				continue
			}
			if rank := rankIn(results, showID, title); rank > 0 {
				return rank, warnings
			}
		}
	}
	return 0, warnings
}

func uniqueModes(preferred string) []string {
	modes := []string{preferred, "sub", "dub"}
	seen := make(map[string]bool, len(modes))
	var out []string
	for _, m := range modes {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

func rankIn(results []SearchResult, showID, title string) int {
	for i, r := range results {
		if r.ID == showID {
			return i + 1
		}
	}
	want := NormalizeTitle(title)
	if want == "" {
		return 0
	}
	for i, r := range results {
		if NormalizeTitle(r.Title) == want {
			return i + 1
		}
	}
	return 0
}

// NormalizeTitle reduces a display title to a loose comparison key: episode
// annotation stripped, lowercased, non-alphanumerics spaced, whitespace
// collapsed.
func NormalizeTitle(title string) string {
	t := strings.ToLower(episode.DisplayTitle(title))
	var b strings.Builder
	b.Grow(len(t))
	for _, r := range t {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// get issues one GraphQL GET with url-encoded query and variables.
func (c *Client) get(ctx context.Context, query string, variables any) (string, error) {
	encoded, err := json.Marshal(variables)
	if err != nil {
		return "", fmt.Errorf("encode variables: %w", err)
	}

	params := url.Values{}
	params.Set("variables", string(encoded))
	params.Set("query", query)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Referer", c.referer)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
