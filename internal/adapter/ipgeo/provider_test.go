package ipgeo

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/whereami/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testProvider(endpoints ...Endpoint) *Provider {
	return &Provider{
		desc:       domain.Descriptor{Name: ProviderName, StaticWeight: DefaultWeight},
		endpoints:  endpoints,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     discardLogger(),
	}
}

func jsonServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, err := w.Write([]byte(body))
		require.NoError(t, err)
	}))
}

func TestResolve_IPAPISchema(t *testing.T) {
	srv := jsonServer(t, `{
		"status": "success",
		"lat": 59.3293, "lon": 18.0686,
		"city": "Stockholm", "regionName": "Stockholm County", "country": "Sweden",
		"isp": "Telia", "org": "Telia Company"
	}`)
	defer srv.Close()

	p := testProvider(Endpoint{Name: "ip-api", URL: srv.URL, parse: parseIPAPI})
	result, err := p.Resolve(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 59.3293, result.Lat)
	assert.Equal(t, 18.0686, result.Lon)
	assert.Equal(t, domain.MethodIP, result.Method)
	assert.Equal(t, "ip-api", result.Source)
	assert.Equal(t, "Stockholm", result.Place.City)
	assert.Equal(t, "Stockholm County", result.Place.Region)
	assert.Equal(t, "Sweden", result.Place.Country)
}

func TestResolve_IPWhoisSchema(t *testing.T) {
	srv := jsonServer(t, `{
		"success": true,
		"latitude": 52.52, "longitude": 13.405,
		"city": "Berlin", "region": "Berlin", "country": "Germany",
		"connection": {"org": "Deutsche Telekom", "isp": "Telekom"}
	}`)
	defer srv.Close()

	p := testProvider(Endpoint{Name: "ipwho.is", URL: srv.URL, parse: parseIPWhois})
	result, err := p.Resolve(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 52.52, result.Lat)
	assert.Equal(t, "ipwho.is", result.Source)
	assert.Equal(t, "Berlin", result.Place.City)
}

func TestResolve_IPInfoLocString(t *testing.T) {
	srv := jsonServer(t, `{
		"loc": "35.6762,139.6503",
		"city": "Tokyo", "region": "Tokyo", "country": "JP",
		"org": "AS2516 KDDI"
	}`)
	defer srv.Close()

	p := testProvider(Endpoint{Name: "ipinfo", URL: srv.URL, parse: parseIPInfo})
	result, err := p.Resolve(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 35.6762, result.Lat, 1e-9)
	assert.InDelta(t, 139.6503, result.Lon, 1e-9)
}

func TestResolve_FallsBackToNextEndpoint(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer failing.Close()

	working := jsonServer(t, `{"error": false, "latitude": 48.8566, "longitude": 2.3522,
		"city": "Paris", "region": "IDF", "country_name": "France", "org": "Orange"}`)
	defer working.Close()

	p := testProvider(
		Endpoint{Name: "ip-api", URL: failing.URL, parse: parseIPAPI},
		Endpoint{Name: "ipapi.co", URL: working.URL, parse: parseIPAPICo},
	)

	result, err := p.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ipapi.co", result.Source)
	assert.Equal(t, 48.8566, result.Lat)
}

func TestResolve_AllEndpointsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := testProvider(
		Endpoint{Name: "ip-api", URL: srv.URL, parse: parseIPAPI},
		Endpoint{Name: "ipwho.is", URL: srv.URL, parse: parseIPWhois},
	)

	_, err := p.Resolve(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTransport))
	assert.Contains(t, err.Error(), "ip-api")
	assert.Contains(t, err.Error(), "ipwho.is")
}

func TestResolve_RejectsOutOfRangeCoordinates(t *testing.T) {
	srv := jsonServer(t, `{"status": "success", "lat": 200, "lon": 18.07}`)
	defer srv.Close()

	p := testProvider(Endpoint{Name: "ip-api", URL: srv.URL, parse: parseIPAPI})
	_, err := p.Resolve(context.Background())
	assert.Error(t, err)
}

func TestResolve_EndpointStatusError(t *testing.T) {
	srv := jsonServer(t, `{"status": "fail", "message": "private range"}`)
	defer srv.Close()

	p := testProvider(Endpoint{Name: "ip-api", URL: srv.URL, parse: parseIPAPI})
	_, err := p.Resolve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "private range")
}

func TestResolve_DeadlineExceededMapsToTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	p := testProvider(Endpoint{Name: "ip-api", URL: srv.URL, parse: parseIPAPI})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.Resolve(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTimeout))
}

func TestResolve_CancellationIsNotTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	p := testProvider(Endpoint{Name: "ip-api", URL: srv.URL, parse: parseIPAPI})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := p.Resolve(ctx)
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrTimeout))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestLookupEndpoint_ReturnsLatency(t *testing.T) {
	srv := jsonServer(t, `{"status": "success", "lat": 59.33, "lon": 18.07,
		"city": "Stockholm", "regionName": "Stockholm", "country": "Sweden", "isp": "Telia", "org": "Telia"}`)
	defer srv.Close()

	p := testProvider(Endpoint{Name: "ip-api", URL: srv.URL, parse: parseIPAPI})

	fix, latency, err := p.LookupEndpoint(context.Background(), "ip-api")
	require.NoError(t, err)
	assert.Equal(t, 59.33, fix.Lat)
	assert.Equal(t, "Telia", fix.ISP)
	assert.Greater(t, latency, time.Duration(0))

	_, _, err = p.LookupEndpoint(context.Background(), "nonexistent")
	assert.Error(t, err)
}

func TestNew_DescriptorListsEndpoints(t *testing.T) {
	p, err := New(Options{Endpoints: []string{"ip-api", "ipwho.is"}}, discardLogger())
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, "ip-api,ipwho.is", p.Descriptor().Setting("endpoints", ""))
}

func TestNew_UnknownEndpoint(t *testing.T) {
	_, err := New(Options{Endpoints: []string{"geocities"}}, discardLogger())
	assert.Error(t, err)
}

func TestNew_IPInfoRequiresToken(t *testing.T) {
	_, err := New(Options{Endpoints: []string{"ipinfo"}}, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IPINFO_TOKEN")

	p, err := New(Options{Endpoints: []string{"ipinfo"}, IPInfoToken: "tok"}, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"ipinfo"}, p.EndpointNames())
}

func TestAvailable(t *testing.T) {
	p := testProvider()
	assert.False(t, p.Available(context.Background()))

	p = testProvider(Endpoint{Name: "ip-api"})
	assert.True(t, p.Available(context.Background()))
}
