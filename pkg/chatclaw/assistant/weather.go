// Package assistant – weather.go implements current-conditions lookups
// against the OpenWeatherMap API.
package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const defaultWeatherBase = "https://api.openweathermap.org/data/2.5"

// WeatherReport holds the fields shown to the user.
type WeatherReport struct {
	City        string
	Description string
	TempC       float64
	FeelsLikeC  float64
	Humidity    int
	WindSpeed   float64
}

// Format renders the report for a chat reply.
func (r *WeatherReport) Format() string {
	return fmt.Sprintf(`*Weather in %s*
%s
🌡 %.1f°C (feels like %.1f°C)
💧 Humidity: %d%%
💨 Wind: %.1f m/s`, r.City, r.Description, r.TempC, r.FeelsLikeC, r.Humidity, r.WindSpeed)
}

// WeatherClient queries OpenWeatherMap for current conditions.
type WeatherClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewWeatherClient creates a weather client from config.
func NewWeatherClient(cfg WeatherConfig, logger *slog.Logger) *WeatherClient {
	return &WeatherClient{
		baseURL: defaultWeatherBase,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger.With("component", "weather"),
	}
}

type owmResponse struct {
	Name    string `json:"name"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Cod     json.Number `json:"cod"`
	Message string      `json:"message"`
}

// Current fetches current conditions for a city in metric units.
func (c *WeatherClient) Current(ctx context.Context, city string) (*WeatherReport, error) {
	endpoint := fmt.Sprintf("%s/weather?q=%s&appid=%s&units=metric",
		c.baseURL, url.QueryEscape(city), url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var owm owmResponse
	if err := json.Unmarshal(body, &owm); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if owm.Message != "" {
			return nil, fmt.Errorf("weather API: %s", owm.Message)
		}
		return nil, fmt.Errorf("weather API returned %d", resp.StatusCode)
	}

	desc := ""
	if len(owm.Weather) > 0 {
		desc = owm.Weather[0].Description
	}

	c.logger.Debug("weather fetched", "city", owm.Name)

	return &WeatherReport{
		City:        owm.Name,
		Description: desc,
		TempC:       owm.Main.Temp,
		FeelsLikeC:  owm.Main.FeelsLike,
		Humidity:    owm.Main.Humidity,
		WindSpeed:   owm.Wind.Speed,
	}, nil
}
