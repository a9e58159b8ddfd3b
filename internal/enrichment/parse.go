package enrichment

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/gookit/validate"
)

// parseProductJSON parses and validates the JSON response from a provider
func parseProductJSON(text string) (*ProductInfo, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty response")
	}

	// Remove opening markdown code blocks
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	// Find the JSON object boundaries - look for first { and last }
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}

	text = text[startIdx : endIdx+1]

	var info ProductInfo
	if err := json.Unmarshal([]byte(text), &info); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	info.Name = strings.TrimSpace(info.Name)
	info.Category = strings.TrimSpace(info.Category)
	info.Description = strings.TrimSpace(info.Description)
	info.EstimatedPrice = strings.TrimSpace(info.EstimatedPrice)

	v := validate.Struct(&info)
	if !v.Validate() {
		return nil, fmt.Errorf("response does not match schema: %s", v.Errors.One())
	}

	return &info, nil
}
