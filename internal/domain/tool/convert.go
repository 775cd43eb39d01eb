package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// TemperatureConverter converts between celsius and fahrenheit.
type TemperatureConverter struct{}

// NewTemperatureConverter creates the temperature conversion tool.
func NewTemperatureConverter() *TemperatureConverter { return &TemperatureConverter{} }

func (t *TemperatureConverter) Name() string { return "convert_temperature" }

func (t *TemperatureConverter) Description() string {
	return "Convert temperature between Celsius and Fahrenheit."
}

func (t *TemperatureConverter) Parameters() map[string]any {
	unit := map[string]any{
		"type": "string",
		"enum": []string{"celsius", "fahrenheit"},
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"value": map[string]any{
				"type":        "number",
				"description": "Temperature value to convert",
			},
			"from_unit": unit,
			"to_unit":   unit,
		},
		"required": []string{"value", "from_unit", "to_unit"},
	}
}

type convertArgs struct {
	Value    float64 `json:"value"`
	FromUnit string  `json:"from_unit"`
	ToUnit   string  `json:"to_unit"`
}

// Call converts the value. Same-unit requests echo the input.
func (t *TemperatureConverter) Call(_ context.Context, args json.RawMessage) (string, error) {
	var in convertArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("decode arguments: %w", err)
	}

	from := strings.ToLower(in.FromUnit)
	to := strings.ToLower(in.ToUnit)
	if !validTempUnit(from) || !validTempUnit(to) {
		return "", fmt.Errorf("invalid conversion: %s to %s", from, to)
	}

	if from == to {
		return fmt.Sprintf("%g%s = %g%s",
			in.Value, tempSymbol(from), in.Value, tempSymbol(to)), nil
	}

	var result float64
	if from == "celsius" {
		result = in.Value*9/5 + 32
	} else {
		result = (in.Value - 32) * 5 / 9
	}

	return fmt.Sprintf("%g%s = %.2f%s",
		in.Value, tempSymbol(from), result, tempSymbol(to)), nil
}

func validTempUnit(u string) bool { return u == "celsius" || u == "fahrenheit" }

func tempSymbol(u string) string {
	if u == "celsius" {
		return "°C"
	}
	return "°F"
}
