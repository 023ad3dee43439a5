package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNominatimGeocode_Match(t *testing.T) {
	var gotQuery, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotUA = r.Header.Get("User-Agent")
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{
			"lat": "48.8566",
			"lon": "2.3522",
			"display_name": "Paris, Île-de-France, France",
			"importance": 0.92
		}]`)
	}))
	defer srv.Close()

	p := NewNominatimProvider(
		WithHTTPClient(newRewriteClient(srv.URL, nominatimSearchURL)),
		WithUserAgent("bdnb-test"),
		WithRateLimit(1000),
	)

	result, err := p.Geocode(context.Background(), "Hôtel de Ville, Paris")
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.InDelta(t, 48.8566, result.Latitude, 1e-9)
	assert.InDelta(t, 2.3522, result.Longitude, 1e-9)
	assert.Equal(t, "nominatim", result.Source)
	assert.Equal(t, "Paris, Île-de-France, France", result.DisplayName)
	assert.Equal(t, "Hôtel de Ville, Paris", gotQuery)
	assert.Equal(t, "bdnb-test", gotUA)
}

func TestNominatimGeocode_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	p := NewNominatimProvider(WithBaseURL(srv.URL), WithRateLimit(1000))

	result, err := p.Geocode(context.Background(), "nowhere at all")
	require.NoError(t, err)
	assert.False(t, result.Matched)
	assert.Equal(t, "nominatim", result.Source)
}

func TestNominatimGeocode_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewNominatimProvider(WithBaseURL(srv.URL), WithRateLimit(1000))

	_, err := p.Geocode(context.Background(), "Lyon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestNominatimGeocode_BadCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[{"lat": "north", "lon": "2.35"}]`)
	}))
	defer srv.Close()

	p := NewNominatimProvider(WithBaseURL(srv.URL), WithRateLimit(1000))

	_, err := p.Geocode(context.Background(), "Paris")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid lat")
}

func TestNominatimGeocode_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{not json`)
	}))
	defer srv.Close()

	p := NewNominatimProvider(WithBaseURL(srv.URL), WithRateLimit(1000))

	_, err := p.Geocode(context.Background(), "Paris")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse response")
}

func TestNominatimGeocode_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `[{"lat": "45.764", "lon": "4.8357"}]`)
	}))
	defer srv.Close()

	p := NewNominatimProvider(WithBaseURL(srv.URL), WithRateLimit(1000), WithRetry(3))

	result, err := p.Geocode(context.Background(), "Lyon")
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.InDelta(t, 45.764, result.Latitude, 1e-9)
	assert.Equal(t, int32(2), calls.Load())
}

func TestNominatimGeocode_PermanentStatusNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	p := NewNominatimProvider(WithBaseURL(srv.URL), WithRateLimit(1000), WithRetry(3))

	_, err := p.Geocode(context.Background(), "Lyon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
	assert.Equal(t, int32(1), calls.Load())
}
