package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/divisions-cli/internal/cache"
	"github.com/sells-group/divisions-cli/internal/config"
	"github.com/sells-group/divisions-cli/internal/division"
	"github.com/sells-group/divisions-cli/internal/geomcodec"
	"github.com/sells-group/divisions-cli/internal/resolver"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// stubResolver serves canned answers for a tiny two-country world: the US
// with one region, and the region-less Falkland Islands.
type stubResolver struct{}

func (stubResolver) Version(chain division.Chain) (string, error) {
	if !chain.IsRoot() {
		return "", &division.ChainDepthError{Op: "version", Chain: chain, Want: "root"}
	}
	return "2026-07-23.0", nil
}

func (stubResolver) Countries(ctx context.Context, chain division.Chain) ([]division.Candidate, error) {
	return []division.Candidate{
		{ID: "c-us", Subtype: division.SubtypeCountry, Country: "us", Name: "United States"},
	}, nil
}

func (stubResolver) Dependencies(ctx context.Context, chain division.Chain) ([]division.Candidate, error) {
	return []division.Candidate{
		{ID: "d-fk", Subtype: division.SubtypeDependency, Country: "fk", Name: "Falkland Islands"},
	}, nil
}

func (stubResolver) Subtypes(ctx context.Context, chain division.Chain) ([]string, error) {
	return []string{"country", "dependency", "region", "locality"}, nil
}

func (stubResolver) Regions(ctx context.Context, chain division.Chain) ([]division.Candidate, error) {
	switch chain.Country {
	case "us":
		return []division.Candidate{
			{ID: "r-ca", Subtype: division.SubtypeRegion, Country: "us", Region: "ca", Name: "California"},
		}, nil
	case "fk":
		return nil, division.ErrNoRegions
	default:
		return nil, division.ErrNotFound
	}
}

func (stubResolver) Places(ctx context.Context, chain division.Chain, kind division.PlaceKind) ([]division.Candidate, error) {
	if chain.Country == "us" && chain.Region == "" {
		return nil, &division.ChainDepthError{Op: "places", Chain: chain, Want: "country+region"}
	}
	return []division.Candidate{
		{ID: "l-sf", Subtype: division.SubtypeLocality, Country: "us", Region: "ca", Name: "San Francisco"},
	}, nil
}

func (stubResolver) Search(ctx context.Context, chain division.Chain, pattern string) ([]division.Candidate, error) {
	if len(pattern) < 2 {
		return nil, nil
	}
	return []division.Candidate{
		{ID: "l-sf", Subtype: division.SubtypeLocality, Country: "us", Region: "ca", Name: "San Francisco"},
	}, nil
}

func (stubResolver) Geometry(ctx context.Context, chain division.Chain, format geomcodec.Format, opts geomcodec.Options) (*resolver.Resolution, error) {
	if chain.Place == "atlantis" {
		return nil, division.ErrNotFound
	}
	return &resolver.Resolution{
		Candidate: division.Candidate{ID: "l-sf", Subtype: division.SubtypeLocality, Country: "us", Region: "ca", Name: "San Francisco"},
		Matches:   2,
		Ambiguous: true,
		Format:    format,
		Data:      []byte("POLYGON ((0 0, 1 0, 1 1, 0 0))"),
	}, nil
}

func (stubResolver) CacheStats() cache.Stats {
	return cache.Stats{Hits: 3, Misses: 1, Entries: 1}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := New(stubResolver{}, config.ServerConfig{CORSOrigins: []string{"*"}})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() }) //nolint:errcheck
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	var body map[string]string
	resp := getJSON(t, ts.URL+"/api/health", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestVersion(t *testing.T) {
	ts := newTestServer(t)

	var body map[string]string
	resp := getJSON(t, ts.URL+"/api/version", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "2026-07-23.0", body["version"])
}

func TestCountries(t *testing.T) {
	ts := newTestServer(t)

	var body struct {
		Countries []division.Candidate `json:"countries"`
	}
	resp := getJSON(t, ts.URL+"/api/countries", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body.Countries, 1)
	assert.Equal(t, "United States", body.Countries[0].Name)
}

func TestRegions(t *testing.T) {
	ts := newTestServer(t)

	var body struct {
		Regions    []division.Candidate `json:"regions"`
		HasRegions bool                 `json:"has_regions"`
	}
	resp := getJSON(t, ts.URL+"/api/regions?country=us", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, body.HasRegions)
	require.Len(t, body.Regions, 1)
}

func TestRegions_RegionlessCountryIsOK(t *testing.T) {
	ts := newTestServer(t)

	var body struct {
		Regions    []division.Candidate `json:"regions"`
		HasRegions bool                 `json:"has_regions"`
	}
	resp := getJSON(t, ts.URL+"/api/regions?country=fk", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, body.HasRegions)
	assert.Empty(t, body.Regions)
}

func TestRegions_UnknownCountry(t *testing.T) {
	ts := newTestServer(t)

	resp := getJSON(t, ts.URL+"/api/regions?country=zz", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPlaces_DepthErrorIsBadRequest(t *testing.T) {
	ts := newTestServer(t)

	var body map[string]string
	resp := getJSON(t, ts.URL+"/api/places?country=us", &body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "places")
}

func TestPlaces(t *testing.T) {
	ts := newTestServer(t)

	var body struct {
		Places []division.Candidate `json:"places"`
	}
	resp := getJSON(t, ts.URL+"/api/places?country=us&region=ca&kind=cities", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body.Places, 1)
}

func TestPlaces_BadKind(t *testing.T) {
	ts := newTestServer(t)

	resp := getJSON(t, ts.URL+"/api/places?country=us&region=ca&kind=villages", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSearch(t *testing.T) {
	ts := newTestServer(t)

	var body struct {
		Matches []division.Candidate `json:"matches"`
	}
	resp := getJSON(t, ts.URL+"/api/search?country=us&region=ca&q=san", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body.Matches, 1)
}

func TestSearch_ShortPatternIsEmptyNotError(t *testing.T) {
	ts := newTestServer(t)

	var body struct {
		Matches []division.Candidate `json:"matches"`
	}
	resp := getJSON(t, ts.URL+"/api/search?country=us&region=ca&q=s", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body.Matches)
}

func TestBoundary(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/boundary?country=us&region=ca&place=sanfrancisco&format=wkt")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, "l-sf", resp.Header.Get("X-Resolved-Id"))
	assert.Equal(t, "2", resp.Header.Get("X-Match-Count"))
	assert.Equal(t, "true", resp.Header.Get("X-Ambiguous"))
}

func TestBoundary_UnknownFormat(t *testing.T) {
	ts := newTestServer(t)

	resp := getJSON(t, ts.URL+"/api/boundary?country=us&format=kml", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBoundary_NotFound(t *testing.T) {
	ts := newTestServer(t)

	resp := getJSON(t, ts.URL+"/api/boundary?country=us&region=ca&place=atlantis&format=wkt", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBoundary_BadPrecision(t *testing.T) {
	ts := newTestServer(t)

	resp := getJSON(t, ts.URL+"/api/boundary?country=us&format=svg&precision=lots", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStats(t *testing.T) {
	ts := newTestServer(t)

	var stats cache.Stats
	resp := getJSON(t, ts.URL+"/api/stats", &stats)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(3), stats.Hits)
}

func TestRateLimit(t *testing.T) {
	srv := New(stubResolver{}, config.ServerConfig{RateLimit: 1, RateBurst: 1})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	resp := getJSON(t, ts.URL+"/api/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = getJSON(t, ts.URL+"/api/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestRequestIDEchoed(t *testing.T) {
	ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", "req-42")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, "req-42", resp.Header.Get("X-Request-Id"))
}
