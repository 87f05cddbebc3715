package utils

import (
	"encoding/json"
	"fmt"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// ParseStrategy names the decoder that accepted a SmartParse input.
type ParseStrategy string

const (
	StrategyJSON   ParseStrategy = "json"
	StrategyHjson  ParseStrategy = "hjson"
	StrategyRepair ParseStrategy = "repair"
)

// ParseHJSONToStruct parses Hjson directly into a Go struct.
func ParseHJSONToStruct(hjsonData string, schema interface{}) error {
	if err := hjson.Unmarshal([]byte(hjsonData), schema); err != nil {
		return fmt.Errorf("hjson decode: %w", err)
	}
	return nil
}

// SmartParse decodes hand-edited or damaged data files into schema.
//
// Strict JSON is tried first, then Hjson (comments, trailing commas, unquoted
// keys), both of which keep full float64 precision. Only truncated or otherwise
// broken input reaches json-repair, whose output carries numbers at float32
// precision.
func SmartParse(input string, schema interface{}) (ParseStrategy, error) {
	if err := json.Unmarshal([]byte(input), schema); err == nil {
		return StrategyJSON, nil
	}

	if err := hjson.Unmarshal([]byte(input), schema); err == nil {
		return StrategyHjson, nil
	}

	repaired, err := jsonrepair.RepairJSON(input)
	if err != nil {
		return "", fmt.Errorf("smart parse: repair failed: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), schema); err != nil {
		return "", fmt.Errorf("smart parse: no strategy decoded the input: %w", err)
	}
	return StrategyRepair, nil
}
