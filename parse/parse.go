// Package parse decodes model output into Go values. Models asked for JSON
// frequently return near-JSON — single quotes, unquoted keys, trailing
// commas, markdown fences — so [As] falls back to jsonrepair before giving
// up. This leniency exists only here, for model-generated content; the wire
// protocol decoding in the client proper stays strict.
package parse

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// As parses model output into T. Strings, booleans, and numbers convert
// directly; everything else decodes as JSON, retrying through jsonrepair
// when the first decode fails.
//
// Example:
//
//	type Person struct {
//	    Name string `json:"name"`
//	    Age  int    `json:"age"`
//	}
//
//	person, err := parse.As[Person](`{name: 'John', age: 30}`) // repaired, then decoded
func As[T any](content string) (T, error) {
	var result T
	content = strings.TrimSpace(content)

	switch target := any(&result).(type) {
	case *string:
		*target = content
		return result, nil

	case *bool:
		value, err := strconv.ParseBool(content)
		if err != nil {
			return result, fmt.Errorf("failed to parse content as bool: %w", err)
		}
		*target = value
		return result, nil

	case *int:
		value, err := strconv.Atoi(content)
		if err != nil {
			return result, fmt.Errorf("failed to parse content as int: %w", err)
		}
		*target = value
		return result, nil

	case *int64:
		value, err := strconv.ParseInt(content, 10, 64)
		if err != nil {
			return result, fmt.Errorf("failed to parse content as int64: %w", err)
		}
		*target = value
		return result, nil

	case *float64:
		value, err := strconv.ParseFloat(content, 64)
		if err != nil {
			return result, fmt.Errorf("failed to parse content as float64: %w", err)
		}
		*target = value
		return result, nil
	}

	content = stripFences(content)

	firstErr := json.Unmarshal([]byte(content), &result)
	if firstErr == nil {
		return result, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(content)
	if repairErr != nil {
		return result, fmt.Errorf("failed to parse content as JSON: %w (repair also failed: %v)", firstErr, repairErr)
	}
	if err := json.Unmarshal([]byte(repaired), &result); err != nil {
		return result, fmt.Errorf("failed to parse repaired content as JSON: %w (original error: %v)", err, firstErr)
	}
	return result, nil
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag, the most common wrapper models put around JSON output.
func stripFences(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}

	trimmed := strings.TrimPrefix(content, "```")
	if newline := strings.IndexByte(trimmed, '\n'); newline >= 0 {
		// Drop the language tag line ("json", "JSON", or empty).
		trimmed = trimmed[newline+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
