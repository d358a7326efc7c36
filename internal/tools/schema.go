package tools

// object builds a JSON Schema object with the given properties.
func object(props map[string]any, required ...string) map[string]any {
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func integer(desc string, def int) map[string]any {
	return map[string]any{"type": "integer", "description": desc, "default": def}
}
