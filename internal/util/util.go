package util

import (
	"fmt"
	"strings"
)

// TagMatch reports whether inputTag matches the '*' wildcard pattern match.
func TagMatch(inputTag, match string) bool {
	// Split the pattern by '*' and get the parts.
	if match == "" && inputTag != "" {
		return false
	}
	parts := strings.Split(match, "*")

	// Keep track of the current position in the input string.
	pos := 0

	for i, part := range parts {
		if part == "" {
			continue
		}

		// If it's the first part, the input string must start with this part.
		if i == 0 && !strings.HasPrefix(inputTag, part) {
			return false
		}

		// If it's the last part, the input string must end with this part.
		if i == len(parts)-1 && !strings.HasSuffix(inputTag, part) {
			return false
		}

		// Find the next occurrence of the part in the input string starting from `pos`.
		index := strings.Index(inputTag[pos:], part)
		if index == -1 {
			return false
		}

		// Move the position forward.
		pos += index + len(part)
	}

	return true
}

func MustString(data any) string {
	if data == nil {
		return ""
	}
	stringData, ok := data.(string)
	if !ok {
		panic(fmt.Sprintf("cant convert %T to string", data))
	}
	return stringData
}

// IntValue reads an integer setting, falling back to def when key is absent.
func IntValue(config map[string]any, key string, def int) (int, error) {
	raw, exists := config[key]
	if !exists || raw == nil {
		return def, nil
	}
	value, ok := raw.(int)
	if !ok {
		return 0, fmt.Errorf("cant convert %s to int", key)
	}
	return value, nil
}
