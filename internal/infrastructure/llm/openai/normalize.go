package openai

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/electroquote/cpq-backend/internal/core/domain"
)

var (
	errQuota        = errors.New("per-user analysis quota exhausted")
	errNoChoices    = errors.New("provider returned no choices")
	errNotObject    = errors.New("payload is not a JSON object")
	errBadStructure = errors.New("payload does not fit the product schema")
)

// decodeDraft parses the model reply into a ProductDraft, tolerating the
// shape drift real models produce: markdown fences, string prices and
// specifications given as bare strings instead of objects.
func decodeDraft(content string) (*domain.ProductDraft, error) {
	payload := stripFences(content)

	var generic any
	if err := json.Unmarshal([]byte(payload), &generic); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidJSON, "decode draft", err)
	}
	obj, ok := generic.(map[string]any)
	if !ok {
		return nil, domain.WrapError(domain.ErrSchemaMismatch, "decode draft", errNotObject)
	}

	sanitizeDraftMap(obj)

	canonical, err := json.Marshal(obj)
	if err != nil {
		return nil, domain.WrapError(domain.ErrSchemaMismatch, "decode draft", err)
	}
	var draft domain.ProductDraft
	if err := json.Unmarshal(canonical, &draft); err != nil {
		return nil, domain.WrapError(domain.ErrSchemaMismatch, "decode draft", errBadStructure)
	}

	draft.EnsureDefaults()
	normalizeConfidence(&draft.Confidence)
	return &draft, nil
}

// stripFences removes a surrounding markdown code fence and any prose
// before the first brace or after the last.
func stripFences(content string) string {
	s := strings.TrimSpace(content)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

func sanitizeDraftMap(obj map[string]any) {
	if basic, ok := obj["basic_info"].(map[string]any); ok {
		basic["base_price"] = coerceNumber(basic["base_price"])
	}
	if specs, ok := obj["specifications"].(map[string]any); ok {
		for name, v := range specs {
			switch entry := v.(type) {
			case string:
				specs[name] = map[string]any{"value": entry}
			case map[string]any:
				if _, exists := entry["value"]; !exists {
					entry["value"] = ""
				}
			default:
				delete(specs, name)
			}
		}
	}
	if accessories, ok := obj["accessories"].([]any); ok {
		for _, v := range accessories {
			entry, ok := v.(map[string]any)
			if !ok {
				continue
			}
			if t, _ := entry["type"].(string); t != string(domain.AccessoryOptional) {
				entry["type"] = string(domain.AccessoryStandard)
			}
		}
	}
}

func coerceNumber(v any) float64 {
	switch n := v.(type) {
	case float64:
		if n < 0 {
			return 0
		}
		return n
	case string:
		cleaned := strings.ReplaceAll(n, ",", "")
		cleaned = strings.TrimFunc(cleaned, func(r rune) bool {
			return (r < '0' || r > '9') && r != '.' && r != '-'
		})
		if f, err := strconv.ParseFloat(cleaned, 64); err == nil && f > 0 {
			return f
		}
	}
	return 0
}

// normalizeConfidence clamps self-reported scores to [0,1] and derives a
// missing overall from the section scores that are present.
func normalizeConfidence(c *domain.DraftConfidence) {
	c.BasicInfo = clamp01(c.BasicInfo)
	c.Specifications = clamp01(c.Specifications)
	c.Features = clamp01(c.Features)
	c.Overall = clamp01(c.Overall)

	if c.Overall == 0 {
		var sum float64
		var n int
		for _, v := range []float64{c.BasicInfo, c.Specifications, c.Features} {
			if v > 0 {
				sum += v
				n++
			}
		}
		if n > 0 {
			c.Overall = sum / float64(n)
		} else {
			c.Overall = 0.5
		}
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
