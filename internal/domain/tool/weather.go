package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

type cityWeather struct {
	city      string
	tempF     int
	tempC     int
	condition string
}

// Demo data; ordering is fixed so the "available cities" hint is stable.
var weatherData = []cityWeather{
	{"Tokyo", 75, 24, "partly cloudy"},
	{"Paris", 64, 18, "sunny"},
	{"London", 59, 15, "rainy"},
	{"New York", 72, 22, "clear"},
	{"Seattle", 62, 17, "cloudy"},
	{"Sydney", 79, 26, "sunny"},
	{"Mumbai", 88, 31, "humid and hot"},
}

// Weather reports canned weather conditions for a handful of cities.
type Weather struct{}

// NewWeather creates the weather lookup tool.
func NewWeather() *Weather { return &Weather{} }

func (w *Weather) Name() string { return "get_weather" }

func (w *Weather) Description() string {
	return "Get current weather information for a city. Returns temperature and weather conditions. " +
		"Use this when the user asks about weather, temperature, or conditions in a specific location."
}

func (w *Weather) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"city": map[string]any{
				"type":        "string",
				"description": "City name, e.g. 'Tokyo' or 'Paris'",
			},
			"units": map[string]any{
				"type":        "string",
				"enum":        []string{"celsius", "fahrenheit"},
				"description": "Temperature unit (default: fahrenheit)",
			},
		},
		"required": []string{"city"},
	}
}

type weatherArgs struct {
	City  string `json:"city"`
	Units string `json:"units"`
}

// Call looks up the city. Unknown cities get a hint listing available ones.
func (w *Weather) Call(_ context.Context, args json.RawMessage) (string, error) {
	var in weatherArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("decode arguments: %w", err)
	}
	if in.City == "" {
		return "", fmt.Errorf("city is required")
	}

	for _, c := range weatherData {
		if strings.EqualFold(c.city, in.City) {
			temp, symbol := c.tempF, "°F"
			if strings.ToLower(in.Units) == "celsius" {
				temp, symbol = c.tempC, "°C"
			}
			return fmt.Sprintf("Current weather in %s: %d%s, %s", c.city, temp, symbol, c.condition), nil
		}
	}

	names := make([]string, len(weatherData))
	for i, c := range weatherData {
		names[i] = c.city
	}
	return fmt.Sprintf("Weather data not available for %s. Available cities: %s",
		in.City, strings.Join(names, ", ")), nil
}
