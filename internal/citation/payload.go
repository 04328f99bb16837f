package citation

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Payload is the request body sent to the citation generator.
type Payload map[string]any

// BuildPayload merges the stored form with the document fields. The auto
// variant needs no stored form; the others return ErrFormNotSaved without one.
func BuildPayload(kind FormType, stored []byte, title, content, style string) (Payload, error) {
	base := map[string]any{}
	switch kind {
	case FormAuto:
		base["formType"] = string(FormAuto)
	case FormWeb, FormFreeText:
		if len(strings.TrimSpace(string(stored))) == 0 {
			return nil, ErrFormNotSaved
		}
		if err := json.Unmarshal(stored, &base); err != nil {
			return nil, fmt.Errorf("decode stored form: %w", err)
		}
		if _, ok := base["formType"]; !ok {
			base["formType"] = string(kind)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormType, kind)
	}

	if strings.TrimSpace(style) == "" {
		if s, ok := base["citationStyle"].(string); ok && s != "" {
			style = s
		} else {
			style = DefaultCitationStyle
		}
	}
	base["title"] = title
	base["content"] = content
	base["citationStyle"] = style

	cleaned, _ := StripUIFields(base).(map[string]any)
	return Payload(cleaned), nil
}
