package citation

// uiFields are presentation keys removed before a payload leaves the process.
var uiFields = map[string]bool{
	"showOptionalFields": true,
	"showMetadata":       true,
}

// StripUIFields removes presentation keys at every nesting level. Slices are
// mapped element-wise, maps are filtered key-wise and anything else is
// returned unchanged.
func StripUIFields(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			if uiFields[k] {
				continue
			}
			out[k] = StripUIFields(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = StripUIFields(item)
		}
		return out
	default:
		return value
	}
}
