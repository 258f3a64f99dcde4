// Package utils provides utility functions and abstractions for reelflow.
package utils

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	templateRe = regexp.MustCompile(`{{([^}]+)}}`)
	indexRe    = regexp.MustCompile(`^(.+)\[(\d+)\]$`)
)

// ProcessTemplate substitutes {{variable}} placeholders in a template string.
// Variable paths support dot notation ("input.result.text"), array indexing
// ("choices[0].message") and pipe functions ("raw | fromjson | .field").
// Referencing a variable that does not resolve is an error.
func ProcessTemplate(template string, variables map[string]interface{}) (string, error) {
	var firstErr error

	result := templateRe.ReplaceAllStringFunc(template, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-2])
		parts := strings.Split(expr, "|")

		varPath := strings.TrimSpace(parts[0])
		value, ok := getNestedValue(variables, varPath)
		if !ok {
			if firstErr == nil {
				firstErr = fmt.Errorf("template variable %q is not defined", varPath)
			}
			return match
		}

		for i := 1; i < len(parts); i++ {
			funcName := strings.TrimSpace(parts[i])

			switch {
			case funcName == "fromjson":
				strValue, isStr := value.(string)
				if !isStr {
					if firstErr == nil {
						firstErr = fmt.Errorf("fromjson requires string input for %q", varPath)
					}
					return match
				}
				var jsonValue interface{}
				if err := json.Unmarshal([]byte(strValue), &jsonValue); err != nil {
					if firstErr == nil {
						firstErr = fmt.Errorf("fromjson failed for %q: %w", varPath, err)
					}
					return match
				}
				value = jsonValue
			case strings.HasPrefix(funcName, "."):
				propName := funcName[1:]
				mapValue, isMap := value.(map[string]interface{})
				if !isMap {
					if firstErr == nil {
						firstErr = fmt.Errorf("cannot access property %q on non-object value for %q", propName, varPath)
					}
					return match
				}
				value = mapValue[propName]
			default:
				if firstErr == nil {
					firstErr = fmt.Errorf("unknown template function %q", funcName)
				}
				return match
			}
		}

		return stringify(value)
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// TemplateVariables returns the variable paths referenced by a template,
// in order of first appearance, without duplicates.
func TemplateVariables(template string) []string {
	matches := templateRe.FindAllStringSubmatch(template, -1)
	seen := make(map[string]bool)
	var paths []string
	for _, m := range matches {
		expr := strings.TrimSpace(m[1])
		varPath := strings.TrimSpace(strings.Split(expr, "|")[0])
		if varPath != "" && !seen[varPath] {
			seen[varPath] = true
			paths = append(paths, varPath)
		}
	}
	return paths
}

// stringify renders a resolved value for insertion into the template.
// Maps and slices are rendered as JSON so downstream nodes can parse them.
func stringify(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]interface{}, []interface{}:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// getNestedValue retrieves a nested value from a map using dot notation,
// e.g. "input.result.tool_calls[0].function.arguments". The second return
// value reports whether the full path resolved.
func getNestedValue(data map[string]interface{}, path string) (interface{}, bool) {
	var current interface{} = data

	for _, part := range strings.Split(path, ".") {
		indexMatch := indexRe.FindStringSubmatch(part)

		if indexMatch != nil {
			arrayName := indexMatch[1]
			index, err := strconv.Atoi(indexMatch[2])
			if err != nil {
				return nil, false
			}

			currentMap, ok := current.(map[string]interface{})
			if !ok {
				return nil, false
			}
			current, ok = currentMap[arrayName]
			if !ok {
				return nil, false
			}

			array, ok := current.([]interface{})
			if !ok || index < 0 || index >= len(array) {
				return nil, false
			}
			current = array[index]
		} else {
			currentMap, ok := current.(map[string]interface{})
			if !ok {
				return nil, false
			}
			current, ok = currentMap[part]
			if !ok {
				return nil, false
			}
		}
	}

	return current, true
}
