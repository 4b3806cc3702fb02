// Package weather wraps the OpenWeatherMap current-conditions endpoint
// behind a session cache. Lookups for the same location hit the
// upstream API at most once per session; failures degrade to an
// unfetched snapshot instead of failing the turn.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"trailscout/internal/config"
	"trailscout/internal/core"
	"trailscout/internal/logging"
)

// Service fetches and caches current weather per location.
type Service struct {
	apiKey           string
	baseURL          string
	units            string
	maxRetries       int
	retryBackoffBase time.Duration
	httpClient       *http.Client

	cache *gocache.Cache
	group singleflight.Group

	mu    sync.Mutex
	stats Stats
}

// Stats tracks cache behavior for diagnostics.
type Stats struct {
	Lookups       int
	CacheHits     int
	UpstreamCalls int
	Failures      int
}

type openWeatherResponse struct {
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Name string `json:"name"`
}

// NewService builds a weather service from the application config.
func NewService(cfg *config.Config) *Service {
	units := cfg.Weather.Units
	if units == "" {
		units = "metric"
	}
	maxRetries := cfg.Weather.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Service{
		apiKey:           cfg.Weather.APIKey,
		baseURL:          strings.TrimSuffix(cfg.Weather.BaseURL, "/"),
		units:            units,
		maxRetries:       maxRetries,
		retryBackoffBase: 500 * time.Millisecond,
		httpClient: &http.Client{
			Timeout: cfg.GetWeatherTimeout(),
		},
		cache: gocache.New(gocache.NoExpiration, 0),
	}
}

func cacheKey(location string) string {
	return strings.ToLower(strings.TrimSpace(location))
}

// Current returns the weather snapshot for a location. Successful
// lookups are cached for the whole session under the normalized
// location key; degraded snapshots are returned but never cached, so a
// later turn can retry. Current never fails the turn.
func (s *Service) Current(ctx context.Context, location string) core.WeatherSnapshot {
	key := cacheKey(location)
	display := strings.TrimSpace(location)

	s.mu.Lock()
	s.stats.Lookups++
	s.mu.Unlock()

	if cached, ok := s.cache.Get(key); ok {
		s.mu.Lock()
		s.stats.CacheHits++
		s.mu.Unlock()
		logging.WeatherDebug("cache hit for %q", key)
		return cached.(core.WeatherSnapshot)
	}

	// Concurrent lookups for the same key share one upstream call.
	v, _, _ := s.group.Do(key, func() (interface{}, error) {
		if cached, ok := s.cache.Get(key); ok {
			return cached.(core.WeatherSnapshot), nil
		}
		snap := s.fetch(ctx, display)
		if snap.Fetched {
			s.cache.Set(key, snap, gocache.NoExpiration)
		} else {
			s.mu.Lock()
			s.stats.Failures++
			s.mu.Unlock()
		}
		return snap, nil
	})
	return v.(core.WeatherSnapshot)
}

func (s *Service) fetch(ctx context.Context, location string) core.WeatherSnapshot {
	if s.apiKey == "" {
		logging.Weather("lookup for %q skipped: no API key configured", location)
		return degraded(location, "no API key configured")
	}

	timer := logging.StartTimer(logging.CategoryWeather, "fetch "+location)
	defer timer.Stop()

	s.mu.Lock()
	s.stats.UpstreamCalls++
	s.mu.Unlock()

	endpoint := fmt.Sprintf("%s/weather?%s", s.baseURL, url.Values{
		"q":     {location},
		"appid": {s.apiKey},
		"units": {s.units},
	}.Encode())

	var lastErr error

	for i := 0; i <= s.maxRetries; i++ {
		if i > 0 {
			time.Sleep(time.Duration(1<<uint(i-1)) * s.retryBackoffBase)
		}

		req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
		if err != nil {
			return degraded(location, err.Error())
		}

		resp, err := s.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			var payload openWeatherResponse
			if err := json.Unmarshal(body, &payload); err != nil {
				lastErr = fmt.Errorf("bad payload: %w", err)
				continue
			}
			snap := snapshotFrom(location, payload)
			logging.Weather("fetched %q: %s", location, snap.Summary)
			return snap
		case resp.StatusCode == http.StatusUnauthorized:
			logging.Weather("lookup for %q rejected: invalid API key", location)
			return degraded(location, "invalid API key")
		default:
			lastErr = fmt.Errorf("API error %d", resp.StatusCode)
			continue
		}
	}

	logging.Weather("lookup for %q failed after retries: %v", location, lastErr)
	return degraded(location, lastErr.Error())
}

func snapshotFrom(location string, payload openWeatherResponse) core.WeatherSnapshot {
	description := ""
	if len(payload.Weather) > 0 {
		description = payload.Weather[0].Description
	}
	return core.WeatherSnapshot{
		Location:     location,
		Description:  description,
		TemperatureC: payload.Main.Temp,
		WindMS:       payload.Wind.Speed,
		Fetched:      true,
		Summary:      fmt.Sprintf("%s, %.0f°C, wind %.0fm/s", titleCase(description), payload.Main.Temp, payload.Wind.Speed),
	}
}

func degraded(location, reason string) core.WeatherSnapshot {
	return core.WeatherSnapshot{
		Location: location,
		Fetched:  false,
		Summary:  "Weather data unavailable - " + reason,
	}
}

// GetStats returns a copy of the service counters.
func (s *Service) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = []rune(strings.ToUpper(string(r[0])))[0]
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
