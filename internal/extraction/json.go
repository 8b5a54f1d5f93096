// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

package extraction

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// extractJSONBlock finds the first balanced top-level JSON object in
// free-form text and unmarshals it into out. The understanding service
// wraps its structured answer in prose, markdown fences, or both; this is
// the defensive path that tolerates all of it.
func extractJSONBlock(text string, out interface{}) error {
	block, err := findJSONObject(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(block), out); err != nil {
		return fmt.Errorf("embedded block is not valid JSON: %w", err)
	}
	return nil
}

// findJSONObject returns the first balanced {...} in text, skipping
// braces inside string literals.
func findJSONObject(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", fmt.Errorf("no JSON object in response")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced JSON object in response")
}
