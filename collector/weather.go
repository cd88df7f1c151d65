package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/briefops/research-agent/emit"
)

// Weather collects current conditions and a short forecast from wttr.in.
// Free, no API key. The query is a location name.
type Weather struct {
	base
	baseURL string
	client  *http.Client
}

// NewWeather returns a wttr.in collector.
func NewWeather(em emit.Emitter) *Weather {
	return &Weather{
		base:    newBase("weather", em),
		baseURL: "https://wttr.in",
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// wttrValue is wttr.in's {"value": "..."} wrapper.
type wttrValue struct {
	Value string `json:"value"`
}

type wttrReport struct {
	CurrentCondition []struct {
		TempC       string      `json:"temp_C"`
		TempF       string      `json:"temp_F"`
		FeelsLikeC  string      `json:"FeelsLikeC"`
		Humidity    string      `json:"humidity"`
		WindKmph    string      `json:"windspeedKmph"`
		WeatherDesc []wttrValue `json:"weatherDesc"`
	} `json:"current_condition"`
	NearestArea []struct {
		AreaName []wttrValue `json:"areaName"`
		Country  []wttrValue `json:"country"`
	} `json:"nearest_area"`
	Weather []struct {
		Date     string `json:"date"`
		MaxTempC string `json:"maxtempC"`
		MinTempC string `json:"mintempC"`
		Hourly   []struct {
			WeatherDesc []wttrValue `json:"weatherDesc"`
		} `json:"hourly"`
	} `json:"weather"`
}

func (c *Weather) Collect(ctx context.Context, query string, opts Options) ([]Item, error) {
	return c.retry(ctx, query, func(ctx context.Context) ([]Item, error) {
		return c.fetch(ctx, query)
	})
}

func (c *Weather) fetch(ctx context.Context, query string) ([]Item, error) {
	location := strings.ReplaceAll(query, " ", "+")
	endpoint := c.baseURL + "/" + location

	var report wttrReport
	if err := getJSON(ctx, c.client, endpoint, url.Values{"format": {"j1"}}, nil, &report); err != nil {
		return nil, err
	}

	areaName, country := query, ""
	if len(report.NearestArea) > 0 {
		if vals := report.NearestArea[0].AreaName; len(vals) > 0 {
			areaName = vals[0].Value
		}
		if vals := report.NearestArea[0].Country; len(vals) > 0 {
			country = vals[0].Value
		}
	}

	var tempC, tempF, feelsLike, humidity, wind, desc string
	if len(report.CurrentCondition) > 0 {
		cur := report.CurrentCondition[0]
		tempC, tempF, feelsLike = cur.TempC, cur.TempF, cur.FeelsLikeC
		humidity, wind = cur.Humidity, cur.WindKmph
		if len(cur.WeatherDesc) > 0 {
			desc = cur.WeatherDesc[0].Value
		}
	}

	content := fmt.Sprintf(
		"Weather in %s, %s: %s. Temperature: %s°C (%s°F), feels like %s°C. Humidity: %s%%, Wind: %s km/h.",
		areaName, country, desc, tempC, tempF, feelsLike, humidity, wind,
	)

	var forecastParts []string
	for i, day := range report.Weather {
		if i >= 3 {
			break
		}
		dayDesc := ""
		// Mid-morning hourly slot stands in for the day's conditions.
		if len(day.Hourly) > 4 && len(day.Hourly[4].WeatherDesc) > 0 {
			dayDesc = day.Hourly[4].WeatherDesc[0].Value
		}
		forecastParts = append(forecastParts, fmt.Sprintf("%s: %s-%s°C, %s", day.Date, day.MinTempC, day.MaxTempC, dayDesc))
	}
	if len(forecastParts) > 0 {
		content += " 3-day forecast: " + strings.Join(forecastParts, "; ")
	}

	return []Item{{
		Source:  "weather_wttr",
		Title:   fmt.Sprintf("Weather: %s, %s", areaName, country),
		Content: content,
		URL:     endpoint,
		Metadata: map[string]any{
			"temp_c":      tempC,
			"temp_f":      tempF,
			"humidity":    humidity,
			"wind_kmph":   wind,
			"description": desc,
			"location":    areaName,
			"country":     country,
		},
	}}, nil
}

func (c *Weather) Close() error { return closeClient(c.client) }
