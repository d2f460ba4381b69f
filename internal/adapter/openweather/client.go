package openweather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/couchcryptid/weather-sync-service/internal/domain"
)

const (
	// weatherPath must be an array; gjson would also resolve ".0" as an
	// object key.
	weatherPath = "current.weather"
	// conditionPath is the gjson path of the current condition group.
	conditionPath = weatherPath + ".0.main"

	maxBodyBytes = 1 << 20
)

// Options configures a Client. Zero values fall back to the public API.
type Options struct {
	BaseURL string
	Version string
	Exclude []string
	Timeout time.Duration
}

// Client implements pipeline.Fetcher and domain.Locator using the
// OpenWeatherMap One Call and Geocoding APIs.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	version    string
	exclude    []string
	logger     *slog.Logger
}

// NewClient creates an OpenWeatherMap client.
func NewClient(apiKey string, opts Options, logger *slog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.openweathermap.org"
	}
	if opts.Version == "" {
		opts.Version = "3.0"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		version: opts.Version,
		exclude: opts.Exclude,
		logger:  logger,
	}
}

// Fetch returns the current condition group for loc. Every failure is a
// *domain.FetchError; a payload without current.weather[0].main is
// FetchUnparseable rather than a guessed value.
func (c *Client) Fetch(ctx context.Context, loc domain.Location) (domain.RawObservation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.onecallURL(loc), nil)
	if err != nil {
		return "", &domain.FetchError{Kind: domain.FetchTransport, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &domain.FetchError{Kind: domain.FetchTransport, Err: redact(err, c.apiKey)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", &domain.FetchError{Kind: domain.FetchTransport, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &domain.FetchError{
			Kind:       domain.FetchAPIStatus,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	if !gjson.ValidBytes(body) {
		return "", &domain.FetchError{Kind: domain.FetchUnparseable, Body: string(body), Err: errors.New("invalid JSON")}
	}
	if !gjson.GetBytes(body, weatherPath).IsArray() {
		return "", &domain.FetchError{Kind: domain.FetchUnparseable, Body: string(body), Err: fmt.Errorf("%s is not an array", weatherPath)}
	}
	cond := gjson.GetBytes(body, conditionPath)
	if !cond.Exists() {
		return "", &domain.FetchError{Kind: domain.FetchUnparseable, Body: string(body), Err: fmt.Errorf("%s missing", conditionPath)}
	}
	if cond.Type != gjson.String {
		return "", &domain.FetchError{Kind: domain.FetchUnparseable, Body: string(body), Err: fmt.Errorf("%s is %s, want string", conditionPath, cond.Type)}
	}

	c.logger.Debug("observation fetched", "location", loc.String(), "main", cond.Str)
	return domain.RawObservation(cond.Str), nil
}

// CheckCredentials issues a HEAD request against the One Call endpoint to
// verify the API key and subscription without downloading a payload.
func (c *Client) CheckCredentials(ctx context.Context, loc domain.Location) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.onecallURL(loc), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("check credentials: %w", redact(err, c.apiKey))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("check credentials: status %d", resp.StatusCode)
	}
	return nil
}

// LocateZip resolves a postal code to coordinates via the Geocoding API.
func (c *Client) LocateZip(ctx context.Context, zip, country string) (domain.ZipLocation, error) {
	q := zip
	if country != "" {
		q = zip + "," + country
	}
	params := url.Values{
		"zip":   {q},
		"appid": {c.apiKey},
	}
	u := c.baseURL + "/geo/1.0/zip?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.ZipLocation{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ZipLocation{}, fmt.Errorf("geocode request: %w", redact(err, c.apiKey))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		return domain.ZipLocation{}, fmt.Errorf("openweathermap API error: status %d: %s", resp.StatusCode, body)
	}

	var zr zipResponse
	if err := json.NewDecoder(resp.Body).Decode(&zr); err != nil {
		return domain.ZipLocation{}, fmt.Errorf("decode response: %w", err)
	}

	return domain.ZipLocation{
		Location: domain.Location{Lat: zr.Lat, Lon: zr.Lon},
		Name:     zr.Name,
		Country:  zr.Country,
	}, nil
}

func (c *Client) onecallURL(loc domain.Location) string {
	params := url.Values{
		"lat":   {strconv.FormatFloat(loc.Lat, 'f', -1, 64)},
		"lon":   {strconv.FormatFloat(loc.Lon, 'f', -1, 64)},
		"appid": {c.apiKey},
	}
	if len(c.exclude) > 0 {
		params.Set("exclude", strings.Join(c.exclude, ","))
	}
	return fmt.Sprintf("%s/data/%s/onecall?%s", c.baseURL, c.version, params.Encode())
}

// redact strips the API key from transport errors, which embed the full URL.
func redact(err error, apiKey string) error {
	if apiKey == "" || !strings.Contains(err.Error(), apiKey) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), apiKey, "REDACTED"))
}

// OpenWeatherMap Geocoding API response.

type zipResponse struct {
	Zip     string  `json:"zip"`
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country"`
}
