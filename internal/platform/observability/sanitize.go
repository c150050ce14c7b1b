package observability

import "unicode"

const defaultStringLimit = 256

// sanitizeString drops control characters (except whitespace) and caps the rune length so
// request supplied values cannot forge log lines.
func sanitizeString(value string, limit int) string {
	if limit <= 0 {
		limit = defaultStringLimit
	}
	out := make([]rune, 0, len(value))
	for _, r := range value {
		if len(out) == limit {
			break
		}
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return sanitizeString(route, 180)
}

func SanitizeMethod(method string) string {
	return sanitizeString(method, 10)
}

// SanitizeAccountID bounds account identifiers written to logs.
func SanitizeAccountID(id string) string {
	return sanitizeString(id, 64)
}
