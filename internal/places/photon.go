// Package places proxies place-name autocomplete to the Photon geocoder.
package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"sanastro.app/internal/obs"
)

// ErrEmptyInput is returned for a blank query.
var ErrEmptyInput = errors.New("places: input is required")

// Place is one autocomplete suggestion.
type Place struct {
	Name      string  `json:"name"`
	City      string  `json:"city"`
	County    string  `json:"county"`
	State     string  `json:"state"`
	Country   string  `json:"country"`
	Type      string  `json:"type"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type featureCollection struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Name     string `json:"name"`
			City     string `json:"city"`
			County   string `json:"county"`
			State    string `json:"state"`
			Country  string `json:"country"`
			OSMValue string `json:"osm_value"`
			Type     string `json:"type"`
		} `json:"properties"`
	} `json:"features"`
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	Limit     int
	Timeout   time.Duration
	CacheSize int
	UserAgent string
}

// Client queries Photon and caches answers by normalised input.
type Client struct {
	baseURL   string
	limit     int
	userAgent string
	http      *http.Client
	cache     *lru.Cache[string, []Place]
}

func NewClient(opts Options) (*Client, error) {
	if opts.Limit <= 0 {
		opts.Limit = 7
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 512
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "sanastro-api"
	}
	cache, err := lru.New[string, []Place](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create places cache: %w", err)
	}
	return &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		limit:     opts.Limit,
		userAgent: opts.UserAgent,
		http:      &http.Client{Timeout: opts.Timeout},
		cache:     cache,
	}, nil
}

// Autocomplete returns up to the configured number of suggestions for input.
func (c *Client) Autocomplete(ctx context.Context, input string) ([]Place, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}
	key := strings.ToLower(input)
	if cached, ok := c.cache.Get(key); ok {
		obs.ObserveGeocode("cache", "hit")
		return cached, nil
	}

	results, err := c.fetch(ctx, input)
	if err != nil {
		obs.ObserveGeocode("upstream", "error")
		return nil, err
	}
	obs.ObserveGeocode("upstream", "ok")
	c.cache.Add(key, results)
	return results, nil
}

func (c *Client) fetch(ctx context.Context, input string) ([]Place, error) {
	q := url.Values{}
	q.Set("q", input)
	q.Set("limit", strconv.Itoa(c.limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build photon request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("photon request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("photon request: status %d", resp.StatusCode)
	}

	var fc featureCollection
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode photon response: %w", err)
	}

	out := make([]Place, 0, len(fc.Features))
	for _, f := range fc.Features {
		p := f.Properties
		place := Place{
			Name:    p.Name,
			City:    p.City,
			County:  p.County,
			State:   p.State,
			Country: p.Country,
			Type:    p.OSMValue,
		}
		if place.Type == "" {
			place.Type = p.Type
		}
		// GeoJSON order is [lon, lat].
		if coords := f.Geometry.Coordinates; len(coords) >= 2 {
			place.Longitude = coords[0]
			place.Latitude = coords[1]
		}
		out = append(out, place)
	}
	return out, nil
}
