package imageref

import (
	"encoding/json"
	"strings"
)

// Resolve нормализует сохранённую ссылку на изображения в плоский список.
// The posts table has been written by several generations of clients, so the
// raw column value can be a JSON array, a pg array literal ({a,b,c}), a bare
// URL/data URI or empty. Unparsable input yields nil, never an error.
func Resolve(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil
	}

	if strings.HasPrefix(raw, "[") {
		return resolveJSON(raw)
	}

	if strings.HasPrefix(raw, "{") && strings.HasSuffix(raw, "}") {
		return resolvePgLiteral(raw)
	}

	// Bare scalar written by the legacy single-image client.
	if isImageSource(raw) || isChatTarget(raw) {
		return []string{raw}
	}

	return nil
}

func resolveJSON(raw string) []string {
	decoder := json.NewDecoder(strings.NewReader(raw))
	decoder.UseNumber()

	var items []interface{}
	if err := decoder.Decode(&items); err != nil {
		return nil
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			if v != "" {
				out = append(out, v)
			}
		case json.Number:
			// Numeric channel ids ([-1001234567890]) are written by some
			// clients without quotes.
			out = append(out, v.String())
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func resolvePgLiteral(raw string) []string {
	inner := raw[1 : len(raw)-1]
	if strings.TrimSpace(inner) == "" {
		return nil
	}

	parts := strings.Split(inner, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		// Одна пара внешних кавычек, не больше
		if len(part) >= 2 && part[0] == '"' && part[len(part)-1] == '"' {
			part = part[1 : len(part)-1]
		}
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func isImageSource(s string) bool {
	return strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "data:")
}

// Chat targets share the same storage shapes as image references, so Resolve
// is reused for the chat_ids column as well.
func isChatTarget(s string) bool {
	return strings.HasPrefix(s, "@") || strings.HasPrefix(s, "-100")
}
